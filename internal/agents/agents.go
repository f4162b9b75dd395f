// Package agents implements the two-agent review pipeline: a search agent
// that crafts arXiv queries and down-selects candidates, and a review agent
// that produces a structured literature review per paper.
//
// The agents converse through a Conversation driven round-robin by a Team.
// Each agent also exposes its individual operations (CraftQuery, SelectPapers,
// Review) so callers that need finer-grained retries can invoke them directly.
package agents

import (
	"context"
	"time"

	"github.com/scribeworks/litreview-service/internal/domain"
)

// Agent names used for logging and metrics attribution.
const (
	SearchAgentName = "arxiv_agent"
	ReviewAgentName = "litreviewer"
)

// Message is a single turn's output in an agent conversation.
type Message struct {
	// Agent is the name of the agent that produced the message.
	Agent string

	// Content is the message text.
	Content string

	// TokensUsed is the LLM token count spent producing the message.
	TokensUsed int

	CreatedAt time.Time
}

// Conversation carries the shared state of a review conversation between
// agents. Agents read the fields produced by earlier turns and write their
// own results back.
type Conversation struct {
	// Topic is the user's research topic.
	Topic string

	// RequestedPapers is the exact number of papers the review must cover.
	RequestedPapers int

	// CraftedQuery is the arXiv query produced by the search agent.
	CraftedQuery string

	// Candidates holds the over-fetched search results before selection.
	Candidates []*domain.Paper

	// Selected holds the papers chosen for review, in relevance order.
	Selected []*domain.Paper

	// Reviews holds the structured per-paper reviews.
	Reviews []*domain.PaperReview

	// Messages is the conversation transcript, oldest first.
	Messages []Message
}

// Task renders the conversation's task statement.
func (c *Conversation) Task() string {
	return "Conduct a literature review on the topic " + c.Topic
}

// TotalTokensUsed sums token usage across all messages.
func (c *Conversation) TotalTokensUsed() int {
	total := 0
	for _, m := range c.Messages {
		total += m.TokensUsed
	}
	return total
}

// Agent is a conversation participant. HandleTurn reads the conversation
// state, performs the agent's work, and returns the message for its turn.
type Agent interface {
	// Name returns the agent's name.
	Name() string

	// Description returns a short human-readable description of the agent.
	Description() string

	// HandleTurn executes one conversation turn.
	HandleTurn(ctx context.Context, conv *Conversation) (*Message, error)
}
