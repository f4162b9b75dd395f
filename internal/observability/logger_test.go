package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLoggingConfig(t *testing.T) {
	cfg := DefaultLoggingConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
	assert.False(t, cfg.AddSource)
}

func TestNewLogger(t *testing.T) {
	configs := map[string]LoggingConfig{
		"defaults":       DefaultLoggingConfig(),
		"debug level":    {Level: "debug", Format: "json", Output: "stdout"},
		"console format": {Level: "info", Format: "console", Output: "stdout"},
		"pretty format":  {Level: "info", Format: "pretty", Output: "stderr"},
	}

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			logger := NewLogger(cfg)
			assert.NotEqual(t, zerolog.Logger{}, logger)
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"Warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

// capture runs enrich against a buffer-backed logger, emits one message,
// and returns the decoded JSON line.
func capture(t *testing.T, msg string, enrich func(zerolog.Logger) zerolog.Logger) map[string]interface{} {
	t.Helper()

	var buf bytes.Buffer
	logger := enrich(zerolog.New(&buf))
	logger.Info().Msg(msg)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestWithReviewContext(t *testing.T) {
	entry := capture(t, "test message", func(l zerolog.Logger) zerolog.Logger {
		return WithReviewContext(l, "req-123", "quantum error correction")
	})

	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "quantum error correction", entry["topic"])
	assert.Equal(t, "test message", entry["message"])
}

func TestWithSearchContext(t *testing.T) {
	entry := capture(t, "search started", func(l zerolog.Logger) zerolog.Logger {
		return WithSearchContext(l, `all:"machine learning"`, "arxiv")
	})

	assert.Equal(t, `all:"machine learning"`, entry["query"])
	assert.Equal(t, "arxiv", entry["source"])
}

func TestWithPaperContext(t *testing.T) {
	entry := capture(t, "paper processed", func(l zerolog.Logger) zerolog.Logger {
		return WithPaperContext(l, "paper-123", "2301.04567")
	})

	assert.Equal(t, "paper-123", entry["paper_id"])
	assert.Equal(t, "2301.04567", entry["external_id"])
}

func TestWithAgentContext(t *testing.T) {
	entry := capture(t, "agent turn", func(l zerolog.Logger) zerolog.Logger {
		return WithAgentContext(l, "arxiv_agent", 1)
	})

	assert.Equal(t, "arxiv_agent", entry["agent"])
	assert.Equal(t, float64(1), entry["turn"])
}

func TestWithWorkflowContext(t *testing.T) {
	entry := capture(t, "workflow step", func(l zerolog.Logger) zerolog.Logger {
		return WithWorkflowContext(l, "review-123", "run-456")
	})

	assert.Equal(t, "review-123", entry["workflow_id"])
	assert.Equal(t, "run-456", entry["workflow_run_id"])
}

func TestWithActivityContext(t *testing.T) {
	entry := capture(t, "activity retry", func(l zerolog.Logger) zerolog.Logger {
		return WithActivityContext(l, "SearchPapers", 3)
	})

	assert.Equal(t, "SearchPapers", entry["activity_type"])
	assert.Equal(t, float64(3), entry["attempt"])
}

func TestLoggerContextChaining(t *testing.T) {
	entry := capture(t, "chained context", func(l zerolog.Logger) zerolog.Logger {
		l = WithReviewContext(l, "req-1", "graph neural networks")
		l = WithSearchContext(l, "all:graph neural networks", "arxiv")
		return WithAgentContext(l, "litreviewer", 2)
	})

	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "graph neural networks", entry["topic"])
	assert.Equal(t, "arxiv", entry["source"])
	assert.Equal(t, "litreviewer", entry["agent"])
	assert.Equal(t, float64(2), entry["turn"])
}
