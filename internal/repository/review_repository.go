package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/scribeworks/litreview-service/internal/domain"
)

// ReviewRepository handles review request persistence and lifecycle management.
type ReviewRepository interface {
	// Create inserts a new review request.
	// Returns domain.ErrAlreadyExists if a request with the same ID exists.
	// Returns domain.ErrInvalidInput if required fields are missing.
	Create(ctx context.Context, review *domain.ReviewRequest) error

	// Get retrieves a review request by its ID.
	// Returns domain.ErrNotFound if no matching request exists.
	Get(ctx context.Context, id uuid.UUID) (*domain.ReviewRequest, error)

	// GetByWorkflowID retrieves a review request by its Temporal workflow ID.
	// Returns domain.ErrNotFound if no matching request exists.
	GetByWorkflowID(ctx context.Context, workflowID string) (*domain.ReviewRequest, error)

	// Update performs a locked update on a review request using SELECT FOR
	// UPDATE. The function receives the current state; changes it makes are
	// persisted. Returning an error aborts the update and rolls back.
	// Returns domain.ErrNotFound if no matching request exists.
	Update(ctx context.Context, id uuid.UUID, fn func(*domain.ReviewRequest) error) error

	// UpdateStatus transitions a review request's status, validating the
	// transition and stamping started_at/completed_at as appropriate.
	// The errorMsg is stored when transitioning to a failed state.
	// Returns domain.ErrInvalidInput on a disallowed transition.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ReviewStatus, errorMsg string) error

	// List retrieves review requests matching the filter, newest first.
	// Returns the matching page, the total count across all pages, and an
	// opaque token for the next page (empty when exhausted).
	List(ctx context.Context, filter ReviewFilter) ([]*domain.ReviewRequest, int64, string, error)

	// IncrementCounters atomically adjusts the progress counters.
	// Zero values leave the corresponding counter untouched.
	// Returns domain.ErrNotFound if no matching request exists.
	IncrementCounters(ctx context.Context, id uuid.UUID, delta CounterDelta) error
}

// CounterDelta holds increments for the review progress counters.
type CounterDelta struct {
	CandidatesFound int
	PapersSelected  int
	PapersReviewed  int
	PapersFailed    int
}

// ReviewFilter specifies criteria for listing review requests.
type ReviewFilter struct {
	// Status filters by one or more review statuses (optional). When multiple
	// statuses are provided, requests matching any of them are returned.
	Status []domain.ReviewStatus

	// CreatedAfter filters to requests created after this timestamp (optional).
	CreatedAfter *time.Time

	// CreatedBefore filters to requests created before this timestamp (optional).
	CreatedBefore *time.Time

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// PageToken is the opaque continuation token from a previous List call.
	PageToken string
}

// Validate normalizes the filter and checks its values.
func (f *ReviewFilter) Validate() error {
	applyPaginationDefaults(&f.Limit)
	if f.CreatedAfter != nil && f.CreatedBefore != nil && f.CreatedAfter.After(*f.CreatedBefore) {
		return domain.NewValidationError("created_after", "must not be after created_before")
	}
	return nil
}
