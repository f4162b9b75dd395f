package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/scribeworks/litreview-service/internal/agents"
	"github.com/scribeworks/litreview-service/internal/domain"
	"github.com/scribeworks/litreview-service/internal/observability"
	"github.com/scribeworks/litreview-service/internal/temporal/resilience"
)

// AgentActivities provides Temporal activities backed by the review agents.
// Methods on this struct are registered as Temporal activities via the worker.
type AgentActivities struct {
	searchAgent *agents.SearchAgent
	reviewAgent *agents.ReviewAgent
	metrics     *observability.Metrics
}

// NewAgentActivities creates a new AgentActivities instance.
// The metrics parameter may be nil (metrics recording will be skipped).
func NewAgentActivities(searchAgent *agents.SearchAgent, reviewAgent *agents.ReviewAgent, metrics *observability.Metrics) *AgentActivities {
	return &AgentActivities{
		searchAgent: searchAgent,
		reviewAgent: reviewAgent,
		metrics:     metrics,
	}
}

// CraftQuery turns the review topic into the best arXiv search query.
func (a *AgentActivities) CraftQuery(ctx context.Context, input CraftQueryInput) (*CraftQueryOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("crafting search query", "requestID", input.RequestID, "topic", input.Topic)

	crafted, err := a.searchAgent.CraftQuery(ctx, input.Topic)
	if err != nil {
		logger.Error("failed to craft query", "requestID", input.RequestID, "error", err)
		return nil, resilience.ActivityError(fmt.Errorf("craft query: %w", err))
	}

	if a.metrics != nil {
		a.metrics.RecordQueryCrafted()
	}

	logger.Info("query crafted",
		"requestID", input.RequestID,
		"query", crafted.Query,
		"tokensUsed", crafted.TokensUsed,
	)

	return &CraftQueryOutput{
		Query:      crafted.Query,
		Reasoning:  crafted.Reasoning,
		TokensUsed: crafted.TokensUsed,
	}, nil
}

// SelectPapers down-selects the candidate pool to exactly the requested count.
func (a *AgentActivities) SelectPapers(ctx context.Context, input SelectPapersInput) (*SelectPapersOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("selecting papers",
		"requestID", input.RequestID,
		"candidates", len(input.Candidates),
		"count", input.Count,
	)

	selection, err := a.searchAgent.SelectPapers(ctx, input.Topic, input.Candidates, input.Count)
	if err != nil {
		logger.Error("failed to select papers", "requestID", input.RequestID, "error", err)
		return nil, resilience.ActivityError(fmt.Errorf("select papers: %w", err))
	}

	if a.metrics != nil {
		a.metrics.RecordPapersSelected(len(selection.Papers))
	}

	logger.Info("papers selected",
		"requestID", input.RequestID,
		"selected", len(selection.Papers),
		"fallback", selection.Fallback,
	)

	return &SelectPapersOutput{
		Papers:     selection.Papers,
		Reasoning:  selection.Reasoning,
		TokensUsed: selection.TokensUsed,
		Fallback:   selection.Fallback,
	}, nil
}

// ReviewPaper runs the litreviewer agent against a single paper and returns
// the structured review with the paper's rank applied.
func (a *AgentActivities) ReviewPaper(ctx context.Context, input ReviewPaperInput) (*ReviewPaperOutput, error) {
	logger := activity.GetLogger(ctx)
	if input.Paper == nil {
		return nil, fmt.Errorf("review paper: %w", domain.NewValidationError("paper", "paper cannot be nil"))
	}

	logger.Info("reviewing paper",
		"requestID", input.RequestID,
		"paperID", input.Paper.ID,
		"title", input.Paper.Title,
		"rank", input.Rank,
	)

	review, err := a.reviewAgent.Review(ctx, input.Topic, input.Paper)
	if err != nil {
		if a.metrics != nil {
			a.metrics.RecordPaperReviewFailed()
		}
		logger.Error("paper review failed",
			"requestID", input.RequestID,
			"paperID", input.Paper.ID,
			"error", err,
		)
		return nil, resilience.ActivityError(fmt.Errorf("review paper %s: %w", input.Paper.ID, err))
	}

	review.RequestID = input.RequestID
	review.PaperID = input.Paper.ID
	review.Rank = input.Rank

	if a.metrics != nil {
		a.metrics.RecordPaperReviewed()
	}

	logger.Info("paper reviewed",
		"requestID", input.RequestID,
		"paperID", input.Paper.ID,
		"tokensUsed", review.TokensUsed,
	)

	return &ReviewPaperOutput{Review: review}, nil
}
