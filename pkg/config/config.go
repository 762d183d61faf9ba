package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port           string
	Host           string
	Env            string
	AllowedOrigins []string
	PublicAPIURL   string

	DBUrl         string
	RedisURL      string
	RedisPassword string
	MongoURI      string
	MongoDatabase string

	JWTSecret string
	JWTTTL    time.Duration

	SMTP SMTPConfig

	AdminDefaultEmail    string
	AdminDefaultPassword string

	UploadDir string

	MinDepositAmount     decimal.Decimal
	MinWithdrawalAmount  decimal.Decimal
	WithdrawalFeePercent decimal.Decimal
	ReferralBonusPercent decimal.Decimal

	CryptoKeySecret string
	CoinGeckoAPIKey string
	FXTimeout       time.Duration
}

type SMTPConfig struct {
	Host   string
	Port   int
	Secure bool
	User   string
	Pass   string
	From   string
}

// LoadConfig reads .env (when present) and the process environment.
// DATABASE_URL and JWT_SECRET are required, everything else has a default.
func LoadConfig() Config {
	godotenv.Load()

	return Config{
		Port:           getEnvDefault("PORT", "8080"),
		Host:           getEnvDefault("HOST", "http://localhost:8080"),
		Env:            getEnvDefault("ENV", "development"),
		AllowedOrigins: strings.Split(getEnvDefault("ALLOWED_ORIGINS", "*"), ","),
		PublicAPIURL:   getEnvDefault("NEXT_PUBLIC_API_URL", "http://localhost:8080/api/v1"),

		DBUrl:         getEnv("DATABASE_URL"),
		RedisURL:      getEnvDefault("REDIS_URL", "redis://localhost:6379/0"),
		RedisPassword: getEnvDefault("REDIS_PASSWORD", ""),
		MongoURI:      getEnvDefault("MONGODB_URI", ""),
		MongoDatabase: getEnvDefault("MONGODB_DATABASE", "varlixo"),

		JWTSecret: getEnv("JWT_SECRET"),
		JWTTTL:    time.Duration(getEnvInt("JWT_TTL_HOURS", 72)) * time.Hour,

		SMTP: LoadSMTPConfig(),

		AdminDefaultEmail:    getEnvDefault("ADMIN_DEFAULT_EMAIL", "admin@varlixo.com"),
		AdminDefaultPassword: getEnvDefault("ADMIN_DEFAULT_PASSWORD", ""),

		UploadDir: getEnvDefault("UPLOAD_DIR", "uploads"),

		MinDepositAmount:     getEnvDecimal("MIN_DEPOSIT_AMOUNT", "10"),
		MinWithdrawalAmount:  getEnvDecimal("MIN_WITHDRAWAL_AMOUNT", "50"),
		WithdrawalFeePercent: getEnvDecimal("WITHDRAWAL_FEE_PERCENT", "0"),
		ReferralBonusPercent: getEnvDecimal("REFERRAL_BONUS_PERCENT", "0"),

		CryptoKeySecret: getEnvDefault("CRYPTO_KEY_SECRET", ""),
		CoinGeckoAPIKey: getEnvDefault("COINGECKO_API_KEY", ""),
		FXTimeout:       getEnvDuration("FX_TIMEOUT", 7*time.Second),
	}
}

// LoadSMTPConfig is split out so the SMTP test script can run without a database.
func LoadSMTPConfig() SMTPConfig {
	godotenv.Load()

	return SMTPConfig{
		Host:   getEnvDefault("SMTP_HOST", "localhost"),
		Port:   getEnvInt("SMTP_PORT", 587),
		Secure: getEnvBool("SMTP_SECURE", false),
		User:   getEnvDefault("SMTP_USER", ""),
		Pass:   getEnvDefault("SMTP_PASS", ""),
		From:   getEnvDefault("EMAIL_FROM", "Varlixo <no-reply@varlixo.com>"),
	}
}

// IsProduction reports whether the service runs with ENV=production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	panic(fmt.Sprintf("%s is required", key))
}

func getEnvDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		panic(fmt.Sprintf("%s must be a valid integer", key))
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		panic(fmt.Sprintf("%s must be true or false", key))
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		panic(fmt.Sprintf("%s must be a duration such as 7s", key))
	}
	return d
}

func getEnvDecimal(key, fallback string) decimal.Decimal {
	d, err := decimal.NewFromString(getEnvDefault(key, fallback))
	if err != nil || d.IsNegative() {
		panic(fmt.Sprintf("%s must be a non-negative number", key))
	}
	return d
}
