// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port          string
	FrontendURL   string
	DBPath        string
	SessionTTL    time.Duration
	Gateway       GatewayConfig
	Hesitation    HesitationConfig
	RateLimit     RateLimitConfig
	TranscriptLog TranscriptLogConfig
}

// GatewayConfig controls the remote completion gateway client.
type GatewayConfig struct {
	URL     string
	Timeout time.Duration
}

// HesitationConfig holds the tunable thresholds of the hesitation detector.
// The timing values are configuration, not contract: product experiments have
// shipped both a single short pause window and a two-stage pair.
type HesitationConfig struct {
	MinComposeLength int
	PauseAfter       time.Duration
	ExtendedAfter    time.Duration
	ShrinkFloor      int
	ShrinkThreshold  int
}

// RateLimitConfig controls per-user submission throttling.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// TranscriptLogConfig controls NDJSON transcript logging.
type TranscriptLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("TRANSCRIPT_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/aishura.db"),
		SessionTTL:  getEnvDuration("SESSION_TTL", 24*time.Hour),
		Gateway: GatewayConfig{
			URL:     getEnv("COMPLETION_GATEWAY_URL", ""),
			Timeout: getEnvDuration("COMPLETION_GATEWAY_TIMEOUT", 30*time.Second),
		},
		Hesitation: HesitationConfig{
			MinComposeLength: getEnvInt("HESITATION_MIN_COMPOSE_LENGTH", 4),
			PauseAfter:       getEnvDuration("HESITATION_PAUSE_AFTER", 6*time.Second),
			ExtendedAfter:    getEnvDuration("HESITATION_EXTENDED_AFTER", 12*time.Second),
			ShrinkFloor:      getEnvInt("HESITATION_SHRINK_FLOOR", 4),
			ShrinkThreshold:  getEnvInt("HESITATION_SHRINK_THRESHOLD", 2),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		TranscriptLog: TranscriptLogConfig{
			Enabled:       getEnvBool("TRANSCRIPT_LOG_ENABLED", true),
			Dir:           getEnv("TRANSCRIPT_LOG_DIR", "./data/logs/transcripts"),
			GlobalEnabled: getEnvBool("TRANSCRIPT_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("TRANSCRIPT_LOG_GLOBAL_PATH", "./data/logs/transcripts/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("COMPLETION_GATEWAY_TIMEOUT must be > 0")
	}
	if c.Hesitation.MinComposeLength < 0 {
		return fmt.Errorf("HESITATION_MIN_COMPOSE_LENGTH must be >= 0")
	}
	if c.Hesitation.PauseAfter <= 0 {
		return fmt.Errorf("HESITATION_PAUSE_AFTER must be > 0")
	}
	if c.Hesitation.ExtendedAfter < c.Hesitation.PauseAfter {
		return fmt.Errorf("HESITATION_EXTENDED_AFTER must be >= HESITATION_PAUSE_AFTER")
	}
	if c.Hesitation.ShrinkThreshold <= 0 {
		return fmt.Errorf("HESITATION_SHRINK_THRESHOLD must be > 0")
	}
	if c.TranscriptLog.Dir == "" {
		return fmt.Errorf("TRANSCRIPT_LOG_DIR cannot be empty")
	}
	if c.TranscriptLog.GlobalPath == "" {
		return fmt.Errorf("TRANSCRIPT_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.TranscriptLog.QueueSize <= 0 {
		return fmt.Errorf("TRANSCRIPT_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
