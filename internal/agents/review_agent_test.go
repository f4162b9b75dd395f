package agents

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeworks/litreview-service/internal/domain"
	"github.com/scribeworks/litreview-service/internal/llm"
)

const sampleReviewOutput = `---
### Title: Attention Is Not All You Need

**Author Names:** Jane Doe, John Smith
**Publication Details:** 2023, arXiv

**Abstract:** We revisit the role of attention in sequence models.

**Description:** The paper questions whether attention is strictly necessary.

**Scope:** Sequence modeling architectures.

**Methodology:** Ablation studies over transformer variants.

**Research Gaps:** No evaluation on multimodal tasks.

**Research Questions:** Is attention necessary for strong sequence models?

**Important Points:**
- Attention can be replaced by gated convolutions in some settings
- Performance gap narrows with scale

**Important Sentences (direct quotes):**
1. "Attention is one mechanism among several that suffice."
2. "Scale compensates for architectural simplicity."

**Results & Conclusion:** Gated convolutions match attention within 1% on three benchmarks.

**Advantages:** Thorough ablations.
**Disadvantages:** Limited model sizes.
---`

func reviewTestPaper() *domain.Paper {
	date := time.Date(2023, 1, 11, 0, 0, 0, 0, time.UTC)
	return &domain.Paper{
		Title:    "Attention Is Not All You Need",
		Abstract: "We revisit the role of attention in sequence models.",
		Authors: []domain.Author{
			{Name: "Jane Doe"},
			{Name: "John Smith"},
		},
		PublicationDate: &date,
		RelevanceRank:   2,
	}
}

func TestReviewAgent_Review(t *testing.T) {
	t.Run("parses full structured output", func(t *testing.T) {
		client := &scriptedClient{responses: []*llm.Response{
			{Text: sampleReviewOutput, InputTokens: 500, OutputTokens: 300},
		}}
		agent := NewReviewAgent(client, ReviewAgentConfig{}, zerolog.Nop())

		review, err := agent.Review(context.Background(), "sequence models", reviewTestPaper())
		require.NoError(t, err)

		assert.Equal(t, "Attention Is Not All You Need", review.Title)
		assert.Equal(t, "Jane Doe, John Smith", review.AuthorNames)
		assert.Equal(t, "2023, arXiv", review.PublicationDetails)
		assert.Equal(t, "We revisit the role of attention in sequence models.", review.Abstract)
		assert.Equal(t, "The paper questions whether attention is strictly necessary.", review.Description)
		assert.Equal(t, "Sequence modeling architectures.", review.Scope)
		assert.Equal(t, "Ablation studies over transformer variants.", review.Methodology)
		assert.Equal(t, "No evaluation on multimodal tasks.", review.ResearchGaps)
		assert.Equal(t, "Is attention necessary for strong sequence models?", review.ResearchQuestions)
		require.Len(t, review.ImportantPoints, 2)
		assert.Equal(t, "Attention can be replaced by gated convolutions in some settings", review.ImportantPoints[0])
		require.Len(t, review.ImportantSentences, 2)
		assert.Equal(t, "Attention is one mechanism among several that suffice.", review.ImportantSentences[0])
		assert.Equal(t, "Gated convolutions match attention within 1% on three benchmarks.", review.ResultsConclusion)
		assert.Equal(t, "Thorough ablations.", review.Advantages)
		assert.Equal(t, "Limited model sizes.", review.Disadvantages)
		assert.Equal(t, 800, review.TokensUsed)
		assert.Equal(t, 2, review.Rank)
	})

	t.Run("backfills missing sections from paper metadata", func(t *testing.T) {
		client := &scriptedClient{responses: []*llm.Response{
			{Text: "**Description:** A short summary.\n"},
		}}
		agent := NewReviewAgent(client, ReviewAgentConfig{}, zerolog.Nop())
		paper := reviewTestPaper()

		review, err := agent.Review(context.Background(), "topic", paper)
		require.NoError(t, err)

		assert.Equal(t, paper.Title, review.Title)
		assert.Equal(t, "Jane Doe, John Smith", review.AuthorNames)
		assert.Equal(t, paper.Abstract, review.Abstract)
		assert.Equal(t, "2023, arXiv", review.PublicationDetails)
		assert.Equal(t, "A short summary.", review.Description)
	})

	t.Run("rejects nil paper", func(t *testing.T) {
		agent := NewReviewAgent(&scriptedClient{}, ReviewAgentConfig{}, zerolog.Nop())

		_, err := agent.Review(context.Background(), "topic", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("propagates provider error", func(t *testing.T) {
		client := &scriptedClient{errs: []error{&llm.APIError{Provider: "test", StatusCode: 500}}}
		agent := NewReviewAgent(client, ReviewAgentConfig{}, zerolog.Nop())

		_, err := agent.Review(context.Background(), "topic", reviewTestPaper())
		require.Error(t, err)
	})
}

func TestReviewAgent_HandleTurn(t *testing.T) {
	t.Run("reviews every selected paper", func(t *testing.T) {
		client := &scriptedClient{responses: []*llm.Response{
			{Text: sampleReviewOutput, InputTokens: 100, OutputTokens: 50},
			{Text: sampleReviewOutput, InputTokens: 100, OutputTokens: 60},
		}}
		agent := NewReviewAgent(client, ReviewAgentConfig{}, zerolog.Nop())

		conv := &Conversation{
			Topic:    "sequence models",
			Selected: []*domain.Paper{reviewTestPaper(), reviewTestPaper()},
		}
		msg, err := agent.HandleTurn(context.Background(), conv)
		require.NoError(t, err)

		assert.Equal(t, ReviewAgentName, msg.Agent)
		assert.Equal(t, 310, msg.TokensUsed)
		require.Len(t, conv.Reviews, 2)
		assert.Contains(t, msg.Content, "### Title: Attention Is Not All You Need")
	})

	t.Run("fails with no selected papers", func(t *testing.T) {
		agent := NewReviewAgent(&scriptedClient{}, ReviewAgentConfig{}, zerolog.Nop())

		_, err := agent.HandleTurn(context.Background(), &Conversation{Topic: "t"})
		require.Error(t, err)
	})
}

func TestParseReview(t *testing.T) {
	t.Run("tolerates sections with trailing colon inside bold", func(t *testing.T) {
		review := parseReview("**Methodology**: Transformers.\n")
		assert.Equal(t, "Transformers.", review.Methodology)
	})

	t.Run("handles results and conclusion variant", func(t *testing.T) {
		review := parseReview("**Results and Conclusion:** Strong results.\n")
		assert.Equal(t, "Strong results.", review.ResultsConclusion)
	})

	t.Run("ignores unknown sections", func(t *testing.T) {
		review := parseReview("**Funding:** NSF grant.\n**Scope:** Narrow.\n")
		assert.Equal(t, "Narrow.", review.Scope)
	})

	t.Run("collects multi-line section content", func(t *testing.T) {
		review := parseReview("**Description:** First line.\nSecond line.\n\n**Scope:** S.\n")
		assert.Equal(t, "First line.\nSecond line.", review.Description)
	})

	t.Run("empty input yields empty review", func(t *testing.T) {
		review := parseReview("")
		assert.Empty(t, review.Title)
		assert.Empty(t, review.ImportantPoints)
	})
}

func TestParseBullets(t *testing.T) {
	points := parseBullets("- first\n* second\nnot a bullet\n- third")
	assert.Equal(t, []string{"first", "second", "third"}, points)
}

func TestParseQuotes(t *testing.T) {
	quotes := parseQuotes("1. \"first quote\"\n2) \"second quote\"\nnot numbered\n3. \n")
	assert.Equal(t, []string{"first quote", "second quote"}, quotes)
}
