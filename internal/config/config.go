// Package config loads service configuration from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// State backends
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds every setting the referral binaries read
type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	StateBackend string `mapstructure:"STATE_BACKEND"`
	StateKey     string `mapstructure:"STATE_KEY"`
	RedisURL     string `mapstructure:"REDIS_URL"`
	DatabaseURL  string `mapstructure:"DATABASE_URL"`

	KafkaBrokers []string `mapstructure:"KAFKA_BROKERS"`
	EventsTopic  string   `mapstructure:"EVENTS_TOPIC"`
	InstanceID   string   `mapstructure:"INSTANCE_ID"`

	AnthropicAPIKey  string        `mapstructure:"ANTHROPIC_API_KEY"`
	LetterModel      string        `mapstructure:"LETTER_MODEL"`
	LetterMaxTokens  int64         `mapstructure:"LETTER_MAX_TOKENS"`
	LetterTimeout    time.Duration `mapstructure:"LETTER_TIMEOUT"`
	RecentNotesLimit int           `mapstructure:"RECENT_NOTES_LIMIT"`

	NotesSimulationDelay time.Duration `mapstructure:"NOTES_SIMULATION_DELAY"`
	ReferralSpecialty    string        `mapstructure:"REFERRAL_SPECIALTY"`

	ArchiveBackend   string `mapstructure:"ARCHIVE_BACKEND"`
	ArchiveLocalPath string `mapstructure:"ARCHIVE_LOCAL_PATH"`
	ArchiveS3Bucket  string `mapstructure:"ARCHIVE_S3_BUCKET"`
	ArchiveS3Region  string `mapstructure:"ARCHIVE_S3_REGION"`
	PDFFontPath      string `mapstructure:"PDF_FONT_PATH"`

	OTELEndpoint string `mapstructure:"OTEL_ENDPOINT"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"STATE_BACKEND", "STATE_KEY", "REDIS_URL", "DATABASE_URL",
	"KAFKA_BROKERS", "EVENTS_TOPIC", "INSTANCE_ID",
	"ANTHROPIC_API_KEY", "LETTER_MODEL", "LETTER_MAX_TOKENS", "LETTER_TIMEOUT", "RECENT_NOTES_LIMIT",
	"NOTES_SIMULATION_DELAY", "REFERRAL_SPECIALTY",
	"ARCHIVE_BACKEND", "ARCHIVE_LOCAL_PATH", "ARCHIVE_S3_BUCKET", "ARCHIVE_S3_REGION", "PDF_FONT_PATH",
	"OTEL_ENDPOINT",
}

// Load reads configuration from the environment, falling back to .env
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile reads configuration from the environment, falling back to the
// given dotenv file when it exists
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STATE_BACKEND", BackendMemory)
	v.SetDefault("STATE_KEY", "freed-referral-state")
	v.SetDefault("EVENTS_TOPIC", "referral.events")
	v.SetDefault("LETTER_MODEL", "claude-opus-4-5-20251101")
	v.SetDefault("LETTER_MAX_TOKENS", 1500)
	v.SetDefault("LETTER_TIMEOUT", "60s")
	v.SetDefault("RECENT_NOTES_LIMIT", 3)
	v.SetDefault("NOTES_SIMULATION_DELAY", "2s")
	v.SetDefault("REFERRAL_SPECIALTY", "Cardiology")
	v.SetDefault("ARCHIVE_BACKEND", "none")
	v.SetDefault("ARCHIVE_LOCAL_PATH", "./data/packets")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID, _ = os.Hostname()
	}
	return cfg, nil
}

// IsDev reports whether the service runs in development mode
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the selected backends have what they need
func (c *Config) Validate() error {
	switch c.StateBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STATE_BACKEND is %q", c.StateBackend)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STATE_BACKEND is %q", c.StateBackend)
		}
	default:
		return fmt.Errorf("STATE_BACKEND must be memory, redis or postgres, got %q", c.StateBackend)
	}

	switch c.ArchiveBackend {
	case "", "none", "local":
	case "s3":
		if c.ArchiveS3Bucket == "" {
			return fmt.Errorf("ARCHIVE_S3_BUCKET is required when ARCHIVE_BACKEND is s3")
		}
	default:
		return fmt.Errorf("ARCHIVE_BACKEND must be none, local or s3, got %q", c.ArchiveBackend)
	}

	if c.LetterTimeout <= 0 {
		return fmt.Errorf("LETTER_TIMEOUT must be positive")
	}
	if c.RecentNotesLimit <= 0 {
		return fmt.Errorf("RECENT_NOTES_LIMIT must be positive")
	}
	return nil
}

// EventsEnabled reports whether domain events are relayed through the outbox
func (c *Config) EventsEnabled() bool {
	return c.StateBackend == BackendPostgres && len(c.KafkaBrokers) > 0
}
