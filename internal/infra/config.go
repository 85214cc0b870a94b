package infra

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends.
const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL  string `env:"DATABASE_URL"`
	PGHost       string `env:"PGHOST" envDefault:"localhost"`
	PGPort       int    `env:"PGPORT" envDefault:"5435"`
	PGUser       string `env:"PGUSER" envDefault:"safestake"`
	PGPassword   string `env:"PGPASSWORD" envDefault:"safestake"`
	PGDatabase   string `env:"PGDATABASE" envDefault:"safestake"`
	PGMaxConns   int32  `env:"PG_MAX_CONNS" envDefault:"20"`
	StoreBackend string `env:"STORE_BACKEND" envDefault:"postgres"`

	// Migrations directory; empty means search upward for db/migrations
	MigrationsDir string `env:"MIGRATIONS_DIR"`

	// Age verification
	VerifierPublicKey string `env:"VERIFIER_PUBLIC_KEY"`

	// JWT
	JWTSecret         string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTAccountExpiry  time.Duration `env:"JWT_ACCOUNT_EXPIRY" envDefault:"24h"`
	JWTPlatformExpiry time.Duration `env:"JWT_PLATFORM_EXPIRY" envDefault:"8h"`

	// Server
	APIPort int `env:"API_PORT" envDefault:"3100"`

	// Registration throttling, per client IP
	RegisterRatePerSecond float64 `env:"REGISTER_RATE_PER_SECOND" envDefault:"1"`
	RegisterBurst         int     `env:"REGISTER_BURST" envDefault:"5"`

	// Comma-separated proxy IPs/CIDRs whose X-Forwarded-For is honored
	TrustedProxies string `env:"TRUSTED_PROXIES"`

	// Kafka
	KafkaBrokers     string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled     bool   `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaTopicPrefix string `env:"KAFKA_TOPIC_PREFIX" envDefault:"safestake"`

	// Outbox relay
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"500ms"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`

	// CORS
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for configuration the service cannot run with.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass the JWT secret checks (local dev only).
func (c *Config) Validate() error {
	key, err := hex.DecodeString(strings.TrimSpace(c.VerifierPublicKey))
	if err != nil || len(key) != 32 {
		return fmt.Errorf("VERIFIER_PUBLIC_KEY must be a hex-encoded 32-byte ed25519 public key")
	}
	switch c.StoreBackend {
	case StoreBackendPostgres, StoreBackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreBackendPostgres, StoreBackendMemory, c.StoreBackend)
	}
	if c.RegisterRatePerSecond <= 0 || c.RegisterBurst <= 0 {
		return fmt.Errorf("REGISTER_RATE_PER_SECOND and REGISTER_BURST must be positive")
	}

	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
