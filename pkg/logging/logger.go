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

// Component names used across the edge service.
const (
	ComponentEdge      = "edge"
	ComponentCart      = "cart"
	ComponentRouter    = "router"
	ComponentRefresher = "refresher"
	ComponentPrecache  = "precache"
	ComponentClient    = "client"
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
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

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
	switch strings.ToLower(strings.TrimSpace(string(level))) {
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
//   - Request classification (strategy, store)
//   - Cache hits, misses and entry age
//   - Background refresh scheduling and dedup
//
// Info: Normal operation events
//   - Install / activate / periodic sync completion
//   - Stores deleted on activation
//   - Server startup/shutdown
//
// Warn: Conditions that don't prevent operation
//   - Rejected cart mutations (invalid input)
//   - Corrupt persisted cart state (reset to empty)
//   - Optional install steps failing (manifest, fonts)
//   - Network failures answered from cache or a synthetic 503
//
// Error: Conditions requiring attention
//   - Cart persistence failures
//   - Shell precache failure (install aborted)
//   - Panics recovered in background refresh tasks
//
// Context Fields:
//   - cart_id: cart identifier
//   - item_id / product_id: cart line item fields
//   - url: request URL being served
//   - strategy: cache_first, network_first, stale_while_revalidate
//   - store: cache store name
//   - age: cached entry age
//   - error_class: network, client, server
