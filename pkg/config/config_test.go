package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/varlixo")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SMTP_PORT", "465")
	t.Setenv("SMTP_SECURE", "true")
	t.Setenv("MIN_WITHDRAWAL_AMOUNT", "25.5")
	t.Setenv("FX_TIMEOUT", "3s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg := LoadConfig()

	assert.Equal(t, "postgres://localhost/varlixo", cfg.DBUrl)
	assert.Equal(t, 465, cfg.SMTP.Port)
	assert.True(t, cfg.SMTP.Secure)
	assert.Equal(t, "25.5", cfg.MinWithdrawalAmount.String())
	assert.Equal(t, 3*time.Second, cfg.FXTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 72*time.Hour, cfg.JWTTTL)
}

func TestLoadConfigMissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")

	assert.PanicsWithValue(t, "DATABASE_URL is required", func() { LoadConfig() })
}

func TestLoadConfigInvalidNumber(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/varlixo")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("WITHDRAWAL_FEE_PERCENT", "-1")

	assert.Panics(t, func() { LoadConfig() })
}
