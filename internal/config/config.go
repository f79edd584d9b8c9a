package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ストレージドライバ
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Storage
	StorageDriver   string `envconfig:"STORAGE_DRIVER" default:"postgres"`
	DatabaseURL     string `envconfig:"DATABASE_URL"`
	LegacyMoodScale bool   `envconfig:"LEGACY_MOOD_SCALE" default:"false"`
	DevUserID       string `envconfig:"DEV_USER_ID"`

	// Cache
	RedisAddr       string        `envconfig:"REDIS_ADDR"`
	InsightCacheTTL time.Duration `envconfig:"INSIGHT_CACHE_TTL" default:"15m"`

	// Insight
	TZName           string        `envconfig:"TZ_NAME" default:"UTC"`
	DefaultRangeDays int           `envconfig:"DEFAULT_RANGE_DAYS" default:"30"`
	InsightTimeout   time.Duration `envconfig:"INSIGHT_TIMEOUT" default:"10s"`

	// Rate Limit
	RateLimitGeneral    int `envconfig:"RATE_LIMIT_GENERAL" default:"120"`
	RateLimitRegenerate int `envconfig:"RATE_LIMIT_REGENERATE" default:"6"`

	// Worker
	RegenerateSchedule      string `envconfig:"REGENERATE_SCHEDULE" default:"0 3 * * *"`
	CleanupSchedule         string `envconfig:"CLEANUP_SCHEDULE" default:"30 3 * * *"`
	RegenerateMaxConcurrent int    `envconfig:"REGENERATE_MAX_CONCURRENT" default:"4"`
	ActiveUserDays          int    `envconfig:"ACTIVE_USER_DAYS" default:"30"`
	InsightRetentionDays    int    `envconfig:"INSIGHT_RETENTION_DAYS" default:"90"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Server
	ServerPort        string `envconfig:"SERVER_PORT" default:"8080"`
	CORSAllowedOrigin string `envconfig:"CORS_ALLOWED_ORIGIN" default:"http://localhost:3000"`
	CookieSecure      bool   `envconfig:"COOKIE_SECURE" default:"false"`

	// Location はTZNameから解決したロケーション。
	Location *time.Location `ignored:"true"`
}

// Load は環境変数からConfigを読み込む。
// 値の型が不正な場合や、ドライバに必要な環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.TZName)
	if err != nil {
		return nil, fmt.Errorf("invalid TZ_NAME %q: %w", cfg.TZName, err)
	}
	cfg.Location = loc

	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string

	switch c.StorageDriver {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case StorageMemory:
		if c.DevUserID == "" {
			missing = append(missing, "DEV_USER_ID")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER: %q", c.StorageDriver)
	}

	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if c.RegenerateMaxConcurrent < 1 {
		c.RegenerateMaxConcurrent = 1
	}
	return nil
}
