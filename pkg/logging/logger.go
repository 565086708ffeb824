// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Individual fetch attempts and their classified outcome
//   - Backoff and rate-limit sleeps (reason, duration)
//   - Sub-round composition (which items are being resubmitted)
//
// Info: Normal operation events
//   - Run start/end with the run report summary
//   - Batch start/end with success/failure counts
//   - Scheduler trigger firing, process startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Rate-limited responses and the wait they impose
//   - Retry attempts for transient fetch errors
//   - Sink insert failures (item counted failed, run continues)
//
// Error: Error conditions requiring attention
//   - Items that exhausted their retry budget
//   - Work-source failures (run aborted)
//   - Configuration or store connectivity errors at startup
//
// Context Fields:
//   - run_id: UUID correlating all lines of one run
//   - app_id / bot_id: the work item being resolved
//   - batch / sub_round: scheduler position
//   - attempt: retry loop attempt counter
//   - outcome: fetch outcome tag (value, no_value, rate_limited, transient_error)
//   - duration: elapsed time for a request, an item, or a run
