package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Supported storage drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all configuration values for the application
type Config struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	Environment    string   `env:"ENVIRONMENT" envDefault:"production"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"postgres"`
	DatabaseURL    string `env:"DATABASE_URL"`
	SQLitePath     string `env:"SQLITE_PATH" envDefault:"scrimmage.db"`
	RedisURL       string `env:"REDIS_URL"` // optional; enables cross-instance fan-out and the sweep lock

	JWTSecret          string `env:"JWT_SECRET"`
	RateLimitPerMinute int    `env:"RATE_LIMIT_PER_MINUTE" envDefault:"600"` // per client ip; 0 disables

	CompetitionName          string `env:"COMPETITION_NAME" envDefault:"ST JAGO ROBOTICS SCRIMMAGE 2024"`
	LeaderboardSize          int    `env:"LEADERBOARD_SIZE" envDefault:"10"`
	RecentUpdatesCount       int    `env:"RECENT_UPDATES_COUNT" envDefault:"10"`
	RecentAnnouncementsCount int    `env:"RECENT_ANNOUNCEMENTS_COUNT" envDefault:"5"`

	BroadcastRetryInterval time.Duration `env:"BROADCAST_RETRY_INTERVAL" envDefault:"30s"`
	UpdateRetentionDays    int           `env:"UPDATE_RETENTION_DAYS" envDefault:"30"`
	CleanupInterval        time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`

	WSMaxMessageSize int64         `env:"WS_MAX_MESSAGE_SIZE" envDefault:"32768"`
	WSPingInterval   time.Duration `env:"WS_PING_INTERVAL" envDefault:"15s"`
	WSPongTimeout    time.Duration `env:"WS_PONG_TIMEOUT" envDefault:"30s"`
	WSSendBuffer     int           `env:"WS_SEND_BUFFER" envDefault:"256"`

	OTELEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that env tags cannot express
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}

	if c.LeaderboardSize <= 0 || c.RecentUpdatesCount <= 0 || c.RecentAnnouncementsCount <= 0 {
		return fmt.Errorf("leaderboard and recent-item sizes must be positive")
	}
	if c.BroadcastRetryInterval <= 0 || c.CleanupInterval <= 0 {
		return fmt.Errorf("sweep intervals must be positive")
	}
	if c.UpdateRetentionDays <= 0 {
		return fmt.Errorf("UPDATE_RETENTION_DAYS must be positive")
	}
	// Undelivered updates are purged by age, so the retry sweep must get
	// many chances before a record can age out.
	if c.RetentionWindow() < 100*c.BroadcastRetryInterval {
		return fmt.Errorf("UPDATE_RETENTION_DAYS (%d) is too short for BROADCAST_RETRY_INTERVAL %s",
			c.UpdateRetentionDays, c.BroadcastRetryInterval)
	}
	if c.WSPongTimeout <= c.WSPingInterval {
		return fmt.Errorf("WS_PONG_TIMEOUT must be longer than WS_PING_INTERVAL")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	if c.WSMaxMessageSize <= 0 || c.WSSendBuffer <= 0 {
		return fmt.Errorf("websocket limits must be positive")
	}
	return nil
}

// RetentionWindow is the age after which update records are purged
func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.UpdateRetentionDays) * 24 * time.Hour
}

// IsDevelopment reports whether the app runs in a local/dev environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "local"
}
