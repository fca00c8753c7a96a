// Package logging builds the zerolog loggers handed to every component.
// Nothing in this module writes through a process-wide logger: the root
// logger returned by Setup is passed down explicitly.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
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

// Setup builds the root logger.
func Setup(cfg Config) zerolog.Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	return zerolog.New(output).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
}

// ValidLevel reports whether level names a known log level.
func ValidLevel(level LogLevel) bool {
	switch strings.ToLower(string(level)) {
	case "debug", "info", "warn", "warning", "error":
		return true
	default:
		return false
	}
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

// Component derives a logger tagged with the given component name.
func Component(parent zerolog.Logger, component string) zerolog.Logger {
	return parent.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Individual schedule fetches (room, month, outcome, duration)
//   - Aggregation and rendering totals
//   - Retry backoff decisions
//
// Info: Normal operation events
//   - Batch run start / per-batch progress / run summary
//   - HTTP access log lines
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Failed fetches (HTTP or transport failure)
//   - Early abort of a run (auth failure, cancellation)
//   - Cooldown guard refusals and Redis errors (guard fails open)
//
// Error: Error conditions requiring attention
//   - Upstream back-off (429/503) starting a cooldown
//   - Workbook rendering failures
//   - Configuration errors
//
// Context Fields:
//   - component: scheduler, schedule-client, aggregator, renderer, guard, service, api
//   - run_id: Scheduler run identifier
//   - room_id, year, month: WorkItem identity
//   - batch, batches: Batch position
//   - outcome: success, auth_failure, http_failure, transport_failure
//   - status_code: Upstream HTTP status code
//   - duration: Call or run duration
//   - request_id: Inbound HTTP request identifier
