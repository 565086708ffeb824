// Package config loads the watcher configuration from environment variables.
// Required values and malformed optional values fail fast so a misconfigured
// deployment never reaches the network or the database.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config carries everything the commands need to wire the watcher.
type Config struct {
	// BaseURL is the application directory endpoint root. Required.
	BaseURL string

	// ConnString is the PostgreSQL DSN for the work source and sink. Required.
	ConnString string

	// Schedule is a cron expression or descriptor for serve mode.
	Schedule string

	// BatchSize is how many applications are fetched concurrently.
	BatchSize int

	// MaxAttempts bounds transient-error retries per item. Negative
	// disables the budget; zero is rejected as ambiguous.
	MaxAttempts int

	// MaxSubRounds bounds retry passes per batch. Zero disables retry
	// passes, negative retries until the batch succeeds.
	MaxSubRounds int

	// InitialRetryDelay seeds the per-item backoff.
	InitialRetryDelay time.Duration

	// MaxRetryDelay caps the per-item backoff. Negative removes the cap.
	MaxRetryDelay time.Duration

	// SubRoundDelay is the pause before each retry pass within a batch.
	SubRoundDelay time.Duration

	// BatchDelay is the pause between consecutive batches.
	BatchDelay time.Duration

	// RequestTimeout bounds one directory request attempt.
	RequestTimeout time.Duration

	// UserAgent identifies the poller. Empty means the binary fills in
	// its build identity.
	UserAgent string

	// MetricsAddr is the listen address for /metrics and /healthz.
	// Empty disables the listener.
	MetricsAddr string

	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string

	// LogPretty switches from JSON to console output.
	LogPretty bool
}

// Default returns the configuration used when no environment overrides are set.
func Default() Config {
	return Config{
		Schedule:          "@every 6h",
		BatchSize:         10,
		MaxAttempts:       5,
		MaxSubRounds:      3,
		InitialRetryDelay: 1 * time.Second,
		MaxRetryDelay:     60 * time.Second,
		SubRoundDelay:     2 * time.Second,
		BatchDelay:        2 * time.Second,
		RequestTimeout:    10 * time.Second,
		LogLevel:          "info",
	}
}

// FromEnv reads the environment on top of the defaults. It reports malformed
// values; presence checks belong to Validate.
func FromEnv() (Config, error) {
	cfg := Default()

	cfg.BaseURL = envString("BASE_URL", cfg.BaseURL)
	cfg.ConnString = envString("CONNECTION_STRING", cfg.ConnString)
	cfg.Schedule = envString("SCHEDULE", cfg.Schedule)
	cfg.UserAgent = envString("USER_AGENT", cfg.UserAgent)
	cfg.MetricsAddr = envString("METRICS_ADDR", cfg.MetricsAddr)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)

	var err error
	if cfg.BatchSize, err = envInt("BATCH_SIZE", cfg.BatchSize); err != nil {
		return Config{}, err
	}
	if cfg.MaxAttempts, err = envInt("MAX_ATTEMPTS", cfg.MaxAttempts); err != nil {
		return Config{}, err
	}
	if cfg.MaxSubRounds, err = envInt("MAX_SUB_ROUNDS", cfg.MaxSubRounds); err != nil {
		return Config{}, err
	}
	if cfg.InitialRetryDelay, err = envDuration("INITIAL_RETRY_DELAY", cfg.InitialRetryDelay); err != nil {
		return Config{}, err
	}
	if cfg.MaxRetryDelay, err = envDuration("MAX_RETRY_DELAY", cfg.MaxRetryDelay); err != nil {
		return Config{}, err
	}
	if cfg.SubRoundDelay, err = envDuration("SUB_ROUND_DELAY", cfg.SubRoundDelay); err != nil {
		return Config{}, err
	}
	if cfg.BatchDelay, err = envDuration("BATCH_DELAY", cfg.BatchDelay); err != nil {
		return Config{}, err
	}
	if cfg.RequestTimeout, err = envDuration("REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return Config{}, err
	}
	if cfg.LogPretty, err = envBool("LOG_PRETTY", cfg.LogPretty); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks required values and ranges.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("BASE_URL is required")
	}
	if c.ConnString == "" {
		return fmt.Errorf("CONNECTION_STRING is required")
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("invalid SCHEDULE %q: %w", c.Schedule, err)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be > 0 (got %d)", c.BatchSize)
	}
	if c.MaxAttempts == 0 {
		return fmt.Errorf("MAX_ATTEMPTS must not be 0 (negative disables the budget)")
	}
	if c.InitialRetryDelay <= 0 {
		return fmt.Errorf("INITIAL_RETRY_DELAY must be > 0 (got %v)", c.InitialRetryDelay)
	}
	if c.SubRoundDelay < 0 {
		return fmt.Errorf("SUB_ROUND_DELAY must be >= 0 (got %v)", c.SubRoundDelay)
	}
	if c.BatchDelay < 0 {
		return fmt.Errorf("BATCH_DELAY must be >= 0 (got %v)", c.BatchDelay)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be > 0 (got %v)", c.RequestTimeout)
	}
	return nil
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q (expected integer)", key, v)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q (expected duration, e.g. 10s, 2m)", key, v)
	}
	return d, nil
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	switch strings.ToLower(v) {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s=%q (expected boolean)", key, v)
	}
}
