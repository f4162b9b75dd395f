package agents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAgent records turns and optionally fails.
type stubAgent struct {
	name  string
	turns int
	err   error
}

func (a *stubAgent) Name() string        { return a.name }
func (a *stubAgent) Description() string { return "stub" }

func (a *stubAgent) HandleTurn(ctx context.Context, conv *Conversation) (*Message, error) {
	a.turns++
	if a.err != nil {
		return nil, a.err
	}
	return &Message{Agent: a.name, Content: "ok", TokensUsed: 10, CreatedAt: time.Now()}, nil
}

func TestTeam_Run(t *testing.T) {
	t.Run("round robin over two participants", func(t *testing.T) {
		search := &stubAgent{name: SearchAgentName}
		review := &stubAgent{name: ReviewAgentName}
		team := NewTeam([]Agent{search, review}, zerolog.Nop())

		conv := &Conversation{Topic: "topic", RequestedPapers: 5}
		err := team.Run(context.Background(), conv)
		require.NoError(t, err)

		assert.Equal(t, 1, search.turns)
		assert.Equal(t, 1, review.turns)
		require.Len(t, conv.Messages, 2)
		assert.Equal(t, SearchAgentName, conv.Messages[0].Agent)
		assert.Equal(t, ReviewAgentName, conv.Messages[1].Agent)
		assert.Equal(t, 20, conv.TotalTokensUsed())
	})

	t.Run("extra turns wrap around", func(t *testing.T) {
		a := &stubAgent{name: "a"}
		b := &stubAgent{name: "b"}
		team := NewTeam([]Agent{a, b}, zerolog.Nop(), WithMaxTurns(4))

		err := team.Run(context.Background(), &Conversation{})
		require.NoError(t, err)

		assert.Equal(t, 2, a.turns)
		assert.Equal(t, 2, b.turns)
	})

	t.Run("first error aborts the conversation", func(t *testing.T) {
		failing := &stubAgent{name: "a", err: errors.New("boom")}
		never := &stubAgent{name: "b"}
		team := NewTeam([]Agent{failing, never}, zerolog.Nop())

		err := team.Run(context.Background(), &Conversation{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "a turn 1")
		assert.Equal(t, 0, never.turns)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		team := NewTeam([]Agent{&stubAgent{name: "a"}}, zerolog.Nop())
		err := team.Run(ctx, &Conversation{})
		require.Error(t, err)
	})

	t.Run("empty team is an error", func(t *testing.T) {
		team := NewTeam(nil, zerolog.Nop())
		err := team.Run(context.Background(), &Conversation{})
		require.Error(t, err)
	})
}

func TestConversation_Task(t *testing.T) {
	conv := &Conversation{Topic: "machine learning"}
	assert.Equal(t, "Conduct a literature review on the topic machine learning", conv.Task())
}
