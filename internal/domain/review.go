package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Paper count choices surfaced by the API, mirroring the product's picker.
var PaperCountChoices = []int{3, 5, 8, 10}

// IsAllowedPaperCount reports whether n is one of the offered paper counts.
func IsAllowedPaperCount(n int) bool {
	for _, c := range PaperCountChoices {
		if n == c {
			return true
		}
	}
	return false
}

const (
	// DefaultRequestedPapers is the paper count used when the client omits it.
	DefaultRequestedPapers = 5

	// MinRequestedPapers and MaxRequestedPapers bound the accepted range.
	MinRequestedPapers = 1
	MaxRequestedPapers = 25

	// DefaultOverfetchFactor is how many candidates to fetch per requested paper.
	DefaultOverfetchFactor = 5
)

// ReviewConfiguration holds the configuration parameters for a literature review.
// This struct is stored as JSONB in PostgreSQL for flexibility and auditability.
type ReviewConfiguration struct {
	// RequestedPapers is the exact number of papers the final review must cover.
	RequestedPapers int `json:"requested_papers"`

	// OverfetchFactor multiplies RequestedPapers to size the candidate fetch,
	// giving the selection step room to drop weak matches.
	OverfetchFactor int `json:"overfetch_factor"`

	// MaxResults caps the candidate fetch regardless of the overfetch math.
	MaxResults int `json:"max_results,omitempty"`

	// Sources lists the paper sources to search.
	Sources []SourceType `json:"sources,omitempty"`

	// DateFrom is the earliest publication date to include.
	DateFrom *time.Time `json:"date_from,omitempty"`

	// DateTo is the latest publication date to include.
	DateTo *time.Time `json:"date_to,omitempty"`

	// ReviewBatchSize is how many papers are reviewed concurrently per batch.
	ReviewBatchSize int `json:"review_batch_size,omitempty"`

	// LLMModel overrides the configured model for this review.
	LLMModel string `json:"llm_model,omitempty"`

	// Custom holds any additional custom configuration.
	Custom map[string]interface{} `json:"custom,omitempty"`
}

// DefaultReviewConfiguration returns a ReviewConfiguration with default values.
func DefaultReviewConfiguration() ReviewConfiguration {
	return ReviewConfiguration{
		RequestedPapers: DefaultRequestedPapers,
		OverfetchFactor: DefaultOverfetchFactor,
		MaxResults:      100,
		Sources:         []SourceType{SourceTypeArXiv},
		ReviewBatchSize: 5,
	}
}

// Validate checks the configuration bounds.
func (c *ReviewConfiguration) Validate() error {
	if c.RequestedPapers < MinRequestedPapers || c.RequestedPapers > MaxRequestedPapers {
		return NewValidationError("requested_papers",
			fmt.Sprintf("must be between %d and %d", MinRequestedPapers, MaxRequestedPapers))
	}
	if c.OverfetchFactor < 1 {
		return NewValidationError("overfetch_factor", "must be at least 1")
	}
	if c.DateFrom != nil && c.DateTo != nil && c.DateFrom.After(*c.DateTo) {
		return NewValidationError("date_from", "must not be after date_to")
	}
	return nil
}

// CandidateLimit returns the number of candidate papers to fetch.
func (c *ReviewConfiguration) CandidateLimit() int {
	limit := c.RequestedPapers * c.OverfetchFactor
	if c.MaxResults > 0 && limit > c.MaxResults {
		limit = c.MaxResults
	}
	if limit < c.RequestedPapers {
		limit = c.RequestedPapers
	}
	return limit
}

// ReviewRequest represents a user's request for a literature review on a topic.
type ReviewRequest struct {
	ID uuid.UUID `json:"id"`

	// Topic is the research topic to review (required).
	Topic string `json:"topic"`

	// CraftedQuery is the arXiv query the search agent produced for the topic.
	CraftedQuery string `json:"crafted_query,omitempty"`

	// Temporal workflow tracking
	TemporalWorkflowID string `json:"temporal_workflow_id,omitempty"`
	TemporalRunID      string `json:"temporal_run_id,omitempty"`

	// Status and progress
	Status              ReviewStatus `json:"status"`
	ErrorMessage        string       `json:"error_message,omitempty"`
	CandidatesFound     int          `json:"candidates_found"`
	PapersSelected      int          `json:"papers_selected"`
	PapersReviewed      int          `json:"papers_reviewed"`
	PapersFailedCount   int          `json:"papers_failed_count"`

	// Configuration (stored as JSONB)
	Configuration ReviewConfiguration `json:"configuration"`

	// Timestamps
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Duration returns the duration of the review request.
// Returns zero if the request has not started.
// Returns elapsed time from start if still running.
// Returns total duration if completed.
func (r *ReviewRequest) Duration() time.Duration {
	if r.StartedAt == nil {
		return 0
	}

	if r.CompletedAt != nil {
		return r.CompletedAt.Sub(*r.StartedAt)
	}

	return time.Since(*r.StartedAt)
}

// IsActive returns true if the review request is still in progress.
func (r *ReviewRequest) IsActive() bool {
	return !r.Status.IsTerminal()
}

// RequestPaperMapping links a review request to a selected paper.
type RequestPaperMapping struct {
	ID            uuid.UUID     `json:"id"`
	RequestID     uuid.UUID     `json:"request_id"`
	PaperID       uuid.UUID     `json:"paper_id"`
	RelevanceRank int           `json:"relevance_rank"`
	Outcome       ReviewOutcome `json:"outcome"`
	OutcomeError  string        `json:"outcome_error,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// ReviewProgressEvent represents a real-time progress event for UI updates.
// These events are streamed to clients via the SSE endpoint.
type ReviewProgressEvent struct {
	// ID is the unique identifier for this progress event.
	ID uuid.UUID `json:"id"`

	// RequestID references the literature review request this event belongs to.
	RequestID uuid.UUID `json:"request_id"`

	// EventType describes the kind of progress event (e.g., "review.papers_found").
	EventType string `json:"event_type"`

	// EventData holds the event-specific payload as a flexible JSON object.
	EventData map[string]interface{} `json:"event_data"`

	// CreatedAt records when this progress event was generated.
	CreatedAt time.Time `json:"created_at"`
}

// ReviewProgress is a snapshot of a review's state used for progress reporting
// and streaming.
type ReviewProgress struct {
	// RequestID references the literature review request.
	RequestID uuid.UUID `json:"request_id"`

	// Status is the current review lifecycle status.
	Status ReviewStatus `json:"status"`

	// CurrentPhase describes the active processing phase in human-readable form.
	CurrentPhase string `json:"current_phase"`

	// CraftedQuery is the arXiv query once the search agent has produced it.
	CraftedQuery string `json:"crafted_query,omitempty"`

	// CandidatesFound is the number of candidate papers fetched from sources.
	CandidatesFound int `json:"candidates_found"`

	// PapersSelected is the number of papers chosen for review.
	PapersSelected int `json:"papers_selected"`

	// PapersReviewed is the number of per-paper reviews completed.
	PapersReviewed int `json:"papers_reviewed"`

	// PapersFailed is the number of papers whose review failed.
	PapersFailed int `json:"papers_failed"`

	// StartedAt records when the review processing began.
	StartedAt time.Time `json:"started_at"`

	// LastUpdatedAt records when the progress was last updated.
	LastUpdatedAt time.Time `json:"last_updated_at"`
}
