package agents

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/scribeworks/litreview-service/internal/observability"
)

// DefaultMaxTurns is the default number of conversation turns: one for the
// search agent and one for the review agent.
const DefaultMaxTurns = 2

// Team runs a round-robin conversation between its participants.
type Team struct {
	participants []Agent
	maxTurns     int
	logger       zerolog.Logger
	metrics      *observability.Metrics
}

// TeamOption configures a Team.
type TeamOption func(*Team)

// WithMaxTurns overrides the number of conversation turns.
func WithMaxTurns(turns int) TeamOption {
	return func(t *Team) {
		if turns > 0 {
			t.maxTurns = turns
		}
	}
}

// WithMetrics attaches metrics recording to the team.
func WithMetrics(m *observability.Metrics) TeamOption {
	return func(t *Team) {
		t.metrics = m
	}
}

// NewTeam creates a round-robin team over the given participants.
func NewTeam(participants []Agent, logger zerolog.Logger, opts ...TeamOption) *Team {
	t := &Team{
		participants: participants,
		maxTurns:     DefaultMaxTurns,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run drives the conversation round-robin for up to maxTurns turns,
// appending each agent's message to the conversation transcript.
// The first error aborts the conversation.
func (t *Team) Run(ctx context.Context, conv *Conversation) error {
	if len(t.participants) == 0 {
		return fmt.Errorf("team has no participants")
	}

	for turn := 0; turn < t.maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		agent := t.participants[turn%len(t.participants)]
		logger := observability.WithAgentContext(t.logger, agent.Name(), turn+1)
		logger.Info().Str("topic", conv.Topic).Msg("agent turn started")

		msg, err := agent.HandleTurn(ctx, conv)
		if err != nil {
			logger.Error().Err(err).Msg("agent turn failed")
			return fmt.Errorf("%s turn %d: %w", agent.Name(), turn+1, err)
		}

		conv.Messages = append(conv.Messages, *msg)
		if t.metrics != nil {
			t.metrics.RecordAgentTurn(agent.Name())
		}
		logger.Info().Int("tokens_used", msg.TokensUsed).Msg("agent turn completed")
	}

	return nil
}
