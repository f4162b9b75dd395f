package observability

import (
	"fmt"

	"github.com/rs/zerolog"
)

// TemporalLogger satisfies the Temporal SDK's log.Logger over zerolog, so
// SDK internals log through the same pipeline as the rest of the service.
type TemporalLogger struct {
	logger zerolog.Logger
}

// NewTemporalLogger tags the given logger with component=temporal-sdk and
// wraps it.
func NewTemporalLogger(logger zerolog.Logger) *TemporalLogger {
	return &TemporalLogger{logger: logger.With().Str("component", "temporal-sdk").Logger()}
}

func (l *TemporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug().Fields(keyvalFields(keyvals)).Msg(msg)
}

func (l *TemporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info().Fields(keyvalFields(keyvals)).Msg(msg)
}

func (l *TemporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn().Fields(keyvalFields(keyvals)).Msg(msg)
}

func (l *TemporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error().Fields(keyvalFields(keyvals)).Msg(msg)
}

// keyvalFields folds the SDK's alternating key/value slice into a field
// map. Non-string keys are stringified rather than dropped.
func keyvalFields(keyvals []interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keyvals[i])
		}
		m[key] = keyvals[i+1]
	}
	return m
}
