package activities

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/scribeworks/litreview-service/internal/domain"
	"github.com/scribeworks/litreview-service/internal/observability"
	"github.com/scribeworks/litreview-service/internal/outbox"
	"github.com/scribeworks/litreview-service/internal/repository"
)

// PersistenceActivities provides Temporal activities for review state
// persistence: status updates, paper/review/document saves, progress events,
// and outbox publishing.
type PersistenceActivities struct {
	reviewRepo   repository.ReviewRepository
	paperRepo    repository.PaperRepository
	documentRepo repository.DocumentRepository
	progressRepo repository.ProgressRepository
	outboxRepo   repository.OutboxRepository
	emitter      *outbox.Emitter
	metrics      *observability.Metrics
}

// NewPersistenceActivities creates a new PersistenceActivities instance.
// The metrics parameter may be nil (metrics recording will be skipped).
func NewPersistenceActivities(
	reviewRepo repository.ReviewRepository,
	paperRepo repository.PaperRepository,
	documentRepo repository.DocumentRepository,
	progressRepo repository.ProgressRepository,
	outboxRepo repository.OutboxRepository,
	emitter *outbox.Emitter,
	metrics *observability.Metrics,
) *PersistenceActivities {
	return &PersistenceActivities{
		reviewRepo:   reviewRepo,
		paperRepo:    paperRepo,
		documentRepo: documentRepo,
		progressRepo: progressRepo,
		outboxRepo:   outboxRepo,
		emitter:      emitter,
		metrics:      metrics,
	}
}

// UpdateStatus transitions the review request's status.
//
// For terminal states, metrics are recorded. The ErrorMsg field is stored
// only when transitioning to a failed state.
func (a *PersistenceActivities) UpdateStatus(ctx context.Context, input UpdateStatusInput) error {
	logger := activity.GetLogger(ctx)
	logger.Info("updating review status",
		"requestID", input.RequestID,
		"status", input.Status,
		"hasErrorMsg", input.ErrorMsg != "",
	)

	err := a.reviewRepo.UpdateStatus(ctx, input.RequestID, input.Status, input.ErrorMsg)
	if err != nil {
		logger.Error("failed to update review status",
			"requestID", input.RequestID,
			"status", input.Status,
			"error", err,
		)
		return fmt.Errorf("update review status to %s: %w", input.Status, err)
	}

	if a.metrics != nil {
		switch input.Status {
		case domain.ReviewStatusFailed:
			a.metrics.RecordReviewFailed(0)
		case domain.ReviewStatusCancelled:
			a.metrics.RecordReviewCancelled()
		}
	}

	return nil
}

// SetCraftedQuery records the crafted search query on the review request.
func (a *PersistenceActivities) SetCraftedQuery(ctx context.Context, input SetCraftedQueryInput) error {
	logger := activity.GetLogger(ctx)
	logger.Info("recording crafted query", "requestID", input.RequestID, "query", input.Query)

	err := a.reviewRepo.Update(ctx, input.RequestID, func(review *domain.ReviewRequest) error {
		review.CraftedQuery = input.Query
		return nil
	})
	if err != nil {
		return fmt.Errorf("set crafted query: %w", err)
	}
	return nil
}

// SavePapers upserts candidate papers and bumps the candidates counter.
// Papers already known by canonical ID are merged; the returned papers carry
// their database IDs.
func (a *PersistenceActivities) SavePapers(ctx context.Context, input SavePapersInput) (*SavePapersOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("saving papers", "requestID", input.RequestID, "paperCount", len(input.Papers))

	if len(input.Papers) == 0 {
		return &SavePapersOutput{}, nil
	}

	saved, err := a.paperRepo.UpsertAll(ctx, input.Papers)
	if err != nil {
		logger.Error("failed to save papers", "requestID", input.RequestID, "error", err)
		return nil, fmt.Errorf("upsert papers: %w", err)
	}

	err = a.reviewRepo.IncrementCounters(ctx, input.RequestID, repository.CounterDelta{
		CandidatesFound: len(saved),
	})
	if err != nil {
		return nil, fmt.Errorf("increment candidate counter: %w", err)
	}

	return &SavePapersOutput{
		Papers:     saved,
		SavedCount: len(saved),
	}, nil
}

// SaveSelection records the selected papers against the request in relevance
// order, replacing any previous selection, and bumps the selected counter.
func (a *PersistenceActivities) SaveSelection(ctx context.Context, input SaveSelectionInput) error {
	logger := activity.GetLogger(ctx)
	logger.Info("saving paper selection", "requestID", input.RequestID, "paperCount", len(input.Papers))

	if err := a.paperRepo.SelectForRequest(ctx, input.RequestID, input.Papers); err != nil {
		logger.Error("failed to save selection", "requestID", input.RequestID, "error", err)
		return fmt.Errorf("save selection: %w", err)
	}

	err := a.reviewRepo.IncrementCounters(ctx, input.RequestID, repository.CounterDelta{
		PapersSelected: len(input.Papers),
	})
	if err != nil {
		return fmt.Errorf("increment selected counter: %w", err)
	}

	return nil
}

// SaveReview persists a per-paper review, marks the paper reviewed, and bumps
// the reviewed counter. A duplicate review for the same paper is treated as a
// successful retry.
func (a *PersistenceActivities) SaveReview(ctx context.Context, input SaveReviewInput) error {
	logger := activity.GetLogger(ctx)
	if input.Review == nil {
		return fmt.Errorf("save review: %w", domain.NewValidationError("review", "review cannot be nil"))
	}

	logger.Info("saving paper review",
		"requestID", input.RequestID,
		"paperID", input.Review.PaperID,
		"rank", input.Review.Rank,
	)

	err := a.documentRepo.SaveReview(ctx, input.Review)
	if err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		logger.Error("failed to save review", "requestID", input.RequestID, "error", err)
		return fmt.Errorf("save review: %w", err)
	}
	duplicate := errors.Is(err, domain.ErrAlreadyExists)

	if err := a.paperRepo.UpdateOutcome(ctx, input.RequestID, input.Review.PaperID, domain.ReviewOutcomeReviewed, ""); err != nil {
		return fmt.Errorf("update paper outcome: %w", err)
	}

	if !duplicate {
		err := a.reviewRepo.IncrementCounters(ctx, input.RequestID, repository.CounterDelta{
			PapersReviewed: 1,
		})
		if err != nil {
			return fmt.Errorf("increment reviewed counter: %w", err)
		}
	}

	return nil
}

// MarkPaperFailed records a failed paper review and bumps the failed counter.
func (a *PersistenceActivities) MarkPaperFailed(ctx context.Context, input MarkPaperFailedInput) error {
	logger := activity.GetLogger(ctx)
	logger.Info("marking paper review failed",
		"requestID", input.RequestID,
		"paperID", input.PaperID,
		"error", input.ErrorMsg,
	)

	if err := a.paperRepo.UpdateOutcome(ctx, input.RequestID, input.PaperID, domain.ReviewOutcomeFailed, input.ErrorMsg); err != nil {
		return fmt.Errorf("mark paper failed: %w", err)
	}

	err := a.reviewRepo.IncrementCounters(ctx, input.RequestID, repository.CounterDelta{
		PapersFailed: 1,
	})
	if err != nil {
		return fmt.Errorf("increment failed counter: %w", err)
	}

	return nil
}

// SaveDocument assembles the final review document from the stored per-paper
// reviews and persists it, replacing any previous document for the request.
func (a *PersistenceActivities) SaveDocument(ctx context.Context, input SaveDocumentInput) (*SaveDocumentOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("assembling review document", "requestID", input.RequestID)

	reviews, err := a.documentRepo.ListReviews(ctx, input.RequestID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	if len(reviews) == 0 {
		return nil, fmt.Errorf("assemble document: no reviews stored for request %s", input.RequestID)
	}

	doc := domain.AssembleDocument(input.RequestID, input.Topic, input.CraftedQuery, reviews)
	if err := a.documentRepo.SaveDocument(ctx, doc); err != nil {
		logger.Error("failed to save document", "requestID", input.RequestID, "error", err)
		return nil, fmt.Errorf("save document: %w", err)
	}

	logger.Info("review document saved",
		"requestID", input.RequestID,
		"documentID", doc.ID,
		"reviewCount", len(reviews),
		"totalTokens", doc.TotalTokensUsed,
	)

	return &SaveDocumentOutput{
		DocumentID:      doc.ID,
		ReviewCount:     len(reviews),
		TotalTokensUsed: doc.TotalTokensUsed,
	}, nil
}

// RecordProgress appends a progress event for streaming consumers. The insert
// fires pg_notify so connected SSE subscribers wake immediately.
func (a *PersistenceActivities) RecordProgress(ctx context.Context, input RecordProgressInput) error {
	logger := activity.GetLogger(ctx)

	event := &domain.ReviewProgressEvent{
		RequestID: input.RequestID,
		EventType: input.EventType,
		EventData: input.EventData,
	}
	if err := a.progressRepo.Insert(ctx, event); err != nil {
		logger.Error("failed to record progress event",
			"requestID", input.RequestID,
			"eventType", input.EventType,
			"error", err,
		)
		return fmt.Errorf("record progress: %w", err)
	}

	return nil
}

// PublishEvent writes a review lifecycle event to the outbox for the relay to
// deliver. A duplicate event ID is treated as a successful retry.
func (a *PersistenceActivities) PublishEvent(ctx context.Context, input PublishEventInput) error {
	logger := activity.GetLogger(ctx)

	event, err := a.emitter.Emit(outbox.EmitParams{
		RequestID: input.RequestID,
		EventType: input.EventType,
		Payload:   input.Payload,
	})
	if err != nil {
		return fmt.Errorf("emit event: %w", err)
	}

	if err := a.outboxRepo.Insert(ctx, event); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil
		}
		logger.Error("failed to insert outbox event",
			"requestID", input.RequestID,
			"eventType", input.EventType,
			"error", err,
		)
		return fmt.Errorf("insert outbox event: %w", err)
	}

	return nil
}
