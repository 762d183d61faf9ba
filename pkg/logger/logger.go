package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Log *zap.Logger

// project specific keys
const (
	RequestIDKey      = "request_id"
	UserIdKey         = "user_id"
	AdminIdKey        = "admin_id"
	ConversationIdKey = "conversation_id"
	ServiceKey        = "service"
	EnvKey            = "env"
	ErrorKey          = "error"
)

func init() {
	Log = build("production")
}

// Setup rebuilds the global logger for the given environment. Anything other
// than "production" gets a human readable console encoder at debug level.
func Setup(env string) {
	Log = build(env)
}

func build(env string) *zap.Logger {
	config := zap.NewProductionConfig()
	encoderConfig := zap.NewProductionEncoderConfig()

	if env != "production" {
		config = zap.NewDevelopmentConfig()
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		config.Encoding = "console"
	}

	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.StacktraceKey = ""
	encoderConfig.CallerKey = "caller"
	encoderConfig.MessageKey = "message"
	encoderConfig.LevelKey = "level"

	config.EncoderConfig = encoderConfig
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.InitialFields = map[string]interface{}{EnvKey: env, ServiceKey: "varlixo-api"}

	l, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	return l
}

type Fields map[string]interface{}

func Info(msg string, fields ...Fields) {
	Log.Info(msg, getZapFields(fields)...)
}

func Error(msg string, fields ...Fields) {
	Log.Error(msg, getZapFields(fields)...)
}

func Debug(msg string, fields ...Fields) {
	Log.Debug(msg, getZapFields(fields)...)
}

func Warn(msg string, fields ...Fields) {
	Log.Warn(msg, getZapFields(fields)...)
}

func Fatal(msg string, fields ...Fields) {
	Log.Fatal(msg, getZapFields(fields)...)
}

// Sync flushes buffered entries, call it before the process exits.
func Sync() {
	_ = Log.Sync()
}

// WithError adds an error field to the log entry
func WithError(err error) Fields {
	if err == nil {
		return Fields{}
	}
	return Fields{
		ErrorKey: err.Error(),
	}
}

func Merge(fields ...Fields) Fields {
	merged := make(Fields)
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	return merged
}

func getZapFields(fields []Fields) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	merged := Merge(fields...)
	zapFields := make([]zap.Field, 0, len(merged))
	for k, v := range merged {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	return zapFields
}
