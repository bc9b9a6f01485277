package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr                     string        `env:"APP_ADDR" envDefault:":8080"`
	DatabaseURL              string        `env:"DATABASE_URL"`
	JWTSecret                string        `env:"JWT_SECRET"`
	FrontendDir              string        `env:"FRONTEND_DIR" envDefault:"frontend/dist"`
	Environment              string        `env:"APP_ENV" envDefault:"development"`
	LogLevel                 string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat                string        `env:"LOG_FORMAT" envDefault:"json"`
	SeedAdminEmail           string        `env:"SEED_ADMIN_EMAIL"`
	SeedAdminPassword        string        `env:"SEED_ADMIN_PASSWORD"`
	SeedFixturesFile         string        `env:"SEED_FIXTURES_FILE"`
	RunMigrations            bool          `env:"RUN_MIGRATIONS" envDefault:"true"`
	RunSeed                  bool          `env:"RUN_SEED" envDefault:"true"`
	CORSOrigins              []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	EmailFrom                string        `env:"EMAIL_FROM" envDefault:"no-reply@example.com"`
	EmailEnabled             bool          `env:"EMAIL_ENABLED" envDefault:"false"`
	SMTPHost                 string        `env:"SMTP_HOST"`
	SMTPPort                 int           `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser                 string        `env:"SMTP_USER"`
	SMTPPassword             string        `env:"SMTP_PASSWORD"`
	SMTPUseTLS               bool          `env:"SMTP_USE_TLS" envDefault:"true"`
	TelegramToken            string        `env:"TELEGRAM_TOKEN"`
	TelegramChatID           int64         `env:"TELEGRAM_CHAT_ID"`
	RedisURL                 string        `env:"REDIS_URL"`
	SummaryCacheTTL          time.Duration `env:"SUMMARY_CACHE_TTL" envDefault:"60s"`
	MaxBodyBytes             int64         `env:"MAX_BODY_BYTES" envDefault:"1048576"`
	RateLimitPerMinute       int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`
	MetricsEnabled           bool          `env:"METRICS_ENABLED" envDefault:"true"`
	PendingDigestInterval    time.Duration `env:"PENDING_DIGEST_INTERVAL" envDefault:"24h"`
	RequestMinNoticeDays     int           `env:"REQUEST_MIN_NOTICE_DAYS" envDefault:"2"`
	DailyApprovalLimit       int           `env:"DAILY_APPROVAL_LIMIT" envDefault:"3"`
	MorningShiftMinDeparture string        `env:"MORNING_SHIFT_MIN_DEPARTURE" envDefault:"11:00"`
	TokenTTL                 time.Duration `env:"TOKEN_TTL" envDefault:"8h"`
}

// Load reads .env files when present and parses the environment on top.
func Load() (Config, error) {
	if err := loadDotEnv(".env", ".env.local"); err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if t, err := time.Parse("15:04", strings.TrimSpace(cfg.MorningShiftMinDeparture)); err == nil {
		cfg.MorningShiftMinDeparture = t.Format("15:04")
	}
	return cfg, nil
}

func loadDotEnv(files ...string) error {
	existing := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.IsProduction() {
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
		}
		if c.RunSeed && strings.TrimSpace(c.SeedAdminPassword) == "" {
			return fmt.Errorf("SEED_ADMIN_PASSWORD must be changed or RUN_SEED disabled in production")
		}
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.EmailEnabled && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST must be set when EMAIL_ENABLED is true")
	}
	if c.TelegramToken != "" && c.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID must be set when TELEGRAM_TOKEN is configured")
	}
	if c.RequestMinNoticeDays < 0 {
		return fmt.Errorf("REQUEST_MIN_NOTICE_DAYS must not be negative")
	}
	if c.DailyApprovalLimit < 0 {
		return fmt.Errorf("DAILY_APPROVAL_LIMIT must not be negative")
	}
	if _, err := time.Parse("15:04", c.MorningShiftMinDeparture); err != nil {
		return fmt.Errorf("MORNING_SHIFT_MIN_DEPARTURE must be HH:MM")
	}
	return nil
}
