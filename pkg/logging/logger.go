// Package logging configures the zerolog loggers used by the metrics
// registry, the snapshot service and the host process.
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
	// LevelDebug logs metric lifecycle events and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs registry, reporter and server lifecycle and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs omitted metrics and failed publishes and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs startup failures only.
	LevelError LogLevel = "error"
)

// Context field names shared by all components.
const (
	FieldComponent = "component"
	FieldService   = "service"
	FieldRegistry  = "registry"
	FieldBaseName  = "base_name"
	FieldMetric    = "metric"
	FieldKind      = "kind"
	FieldNamespace = "namespace"
	FieldSink      = "sink"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level written.
	Level LogLevel

	// Pretty switches from JSON lines to console output.
	Pretty bool

	// Output receives the log lines (default: os.Stderr).
	Output io.Writer

	// Service, when set, is attached to every line.
	Service string
}

// DefaultConfig returns JSON output at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup installs the global zerolog logger that NewLogger derives from
// and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(cfg.Level.zerolog())

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str(FieldService, cfg.Service)
	}
	log.Logger = ctx.Logger()

	return log.Logger
}

// ParseLogLevel normalizes a level name read from the environment or a
// flag. Unknown names fall back to LevelInfo.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch ParseLogLevel(string(l)) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str(FieldComponent, component).Logger()
}

// WithRegistry scopes logger to one registry.
func WithRegistry(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str(FieldRegistry, name).Logger()
}

// WithBaseName scopes logger to one measured object.
func WithBaseName(logger zerolog.Logger, baseName string) zerolog.Logger {
	return logger.With().Str(FieldBaseName, baseName).Logger()
}

// Log Level Guidelines:
//
// Debug: metric lifecycle
//   - Metric creation and removal (metric, kind)
//   - Reporter runs with nothing to publish
//   - Operations skipped on a closed registry
//
// Info: component lifecycle
//   - Registry shutdown (released count)
//   - Reporter start and stop
//   - Server startup and shutdown
//
// Warn: degraded results
//   - Gauge omitted from a snapshot (error, panic, timeout)
//   - Detached metric handed out (kind mismatch, closed registry)
//   - Sink publish failures
//
// Error: startup failures
//   - Invalid options or match rules
//   - Redis unavailable when the server starts
//
// Context fields are the Field* constants above.
