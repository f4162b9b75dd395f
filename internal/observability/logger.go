package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggingConfig drives the zerolog factory.
type LoggingConfig struct {
	// Level is the minimum level: trace, debug, info, warn, error, fatal,
	// panic. Unknown values mean info.
	Level string

	// Format selects json output or the human console writer
	// ("console"/"pretty").
	Format string

	// Output is "stdout" or "stderr".
	Output string

	// AddSource annotates entries with the calling file and line.
	AddSource bool

	// TimeFormat overrides the timestamp layout; empty means RFC 3339.
	TimeFormat string
}

// DefaultLoggingConfig returns json-to-stdout at info level.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		AddSource:  false,
		TimeFormat: time.RFC3339,
	}
}

// NewLogger builds the service logger. It also sets the zerolog global
// level so third-party code logging through zerolog honors the same floor.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	output := writerFor(cfg)

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.AddSource {
		ctx = ctx.Caller()
	}

	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)
	return ctx.Logger().Level(level)
}

func writerFor(cfg LoggingConfig) io.Writer {
	var output io.Writer = os.Stdout
	if strings.ToLower(cfg.Output) == "stderr" {
		output = os.Stderr
	}

	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
		return zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: zerolog.TimeFieldFormat,
		}
	}
	return output
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithReviewContext adds common review fields to a logger.
func WithReviewContext(logger zerolog.Logger, requestID, topic string) zerolog.Logger {
	return logger.With().
		Str("request_id", requestID).
		Str("topic", topic).
		Logger()
}

// WithSearchContext adds search-related fields to a logger.
func WithSearchContext(logger zerolog.Logger, query, source string) zerolog.Logger {
	return logger.With().
		Str("query", query).
		Str("source", source).
		Logger()
}

// WithPaperContext adds paper-related fields to a logger.
func WithPaperContext(logger zerolog.Logger, paperID, externalID string) zerolog.Logger {
	return logger.With().
		Str("paper_id", paperID).
		Str("external_id", externalID).
		Logger()
}

// WithAgentContext adds agent fields to a logger.
func WithAgentContext(logger zerolog.Logger, agent string, turn int) zerolog.Logger {
	return logger.With().
		Str("agent", agent).
		Int("turn", turn).
		Logger()
}

// WithWorkflowContext adds Temporal workflow fields to a logger.
func WithWorkflowContext(logger zerolog.Logger, workflowID, runID string) zerolog.Logger {
	return logger.With().
		Str("workflow_id", workflowID).
		Str("workflow_run_id", runID).
		Logger()
}

// WithActivityContext adds Temporal activity fields to a logger.
func WithActivityContext(logger zerolog.Logger, activityType string, attempt int) zerolog.Logger {
	return logger.With().
		Str("activity_type", activityType).
		Int("attempt", attempt).
		Logger()
}
