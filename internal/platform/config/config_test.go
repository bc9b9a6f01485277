package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/hrsched")
	t.Setenv("APP_ADDR", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 2, cfg.RequestMinNoticeDays)
	assert.Equal(t, 3, cfg.DailyApprovalLimit)
	assert.Equal(t, "11:00", cfg.MorningShiftMinDeparture)
	assert.Equal(t, 60*time.Second, cfg.SummaryCacheTTL)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	require.NoError(t, cfg.Validate())
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/hrsched")
	t.Setenv("DAILY_APPROVAL_LIMIT", "7")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://hr.example.com,https://ops.example.com")
	t.Setenv("PENDING_DIGEST_INTERVAL", "2h")
	t.Setenv("MORNING_SHIFT_MIN_DEPARTURE", "9:00")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.DailyApprovalLimit)
	assert.Equal(t, []string{"https://hr.example.com", "https://ops.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, 2*time.Hour, cfg.PendingDigestInterval)
	assert.Equal(t, "09:00", cfg.MorningShiftMinDeparture, "hour is zero-padded")
}

func TestValidate(t *testing.T) {
	base := Config{
		DatabaseURL:              "postgres://localhost/hrsched",
		MaxBodyBytes:             4096,
		RateLimitPerMinute:       10,
		MorningShiftMinDeparture: "11:00",
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid"},
		{name: "missing database", mutate: func(c *Config) { c.DatabaseURL = " " }, wantErr: "DATABASE_URL"},
		{name: "production without secret", mutate: func(c *Config) { c.Environment = "production" }, wantErr: "JWT_SECRET"},
		{name: "email without host", mutate: func(c *Config) { c.EmailEnabled = true }, wantErr: "SMTP_HOST"},
		{name: "telegram without chat", mutate: func(c *Config) { c.TelegramToken = "t" }, wantErr: "TELEGRAM_CHAT_ID"},
		{name: "bad departure", mutate: func(c *Config) { c.MorningShiftMinDeparture = "noon" }, wantErr: "MORNING_SHIFT_MIN_DEPARTURE"},
		{name: "negative limit", mutate: func(c *Config) { c.DailyApprovalLimit = -1 }, wantErr: "DAILY_APPROVAL_LIMIT"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			if tc.mutate != nil {
				tc.mutate(&cfg)
			}
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
