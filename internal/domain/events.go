package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type constants for outbox events.
const (
	EventTypeReviewStarted  = "review.started"
	EventTypeQueryCrafted   = "review.query_crafted"
	EventTypePapersFound    = "review.papers_found"
	EventTypePapersSelected = "review.papers_selected"
	EventTypePaperReviewed  = "review.paper_reviewed"
	EventTypeReviewComplete = "review.completed"
	EventTypeReviewFailed   = "review.failed"
	EventTypeReviewCancel   = "review.cancelled"
	EventTypeProgress       = "review.progress_updated"
)

// OutboxEvent represents an event to be published via the outbox pattern.
type OutboxEvent struct {
	EventID       string
	EventVersion  int
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       []byte
	Metadata      map[string]interface{}
	Attempts      int
	MaxAttempts   int
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// NewOutboxEvent creates a new outbox event with the given parameters.
// The payload is JSON-serialized automatically.
func NewOutboxEvent(eventType, aggregateID, aggregateType string, payload interface{}) (*OutboxEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &OutboxEvent{
		EventID:       uuid.New().String(),
		EventVersion:  1,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       payloadBytes,
		MaxAttempts:   5,
		CreatedAt:     time.Now(),
	}, nil
}

// WithMetadata sets the metadata on the event.
func (e *OutboxEvent) WithMetadata(metadata map[string]interface{}) *OutboxEvent {
	e.Metadata = metadata
	return e
}

// ReviewStartedPayload is the payload for review.started events.
type ReviewStartedPayload struct {
	RequestID       uuid.UUID `json:"request_id"`
	Topic           string    `json:"topic"`
	RequestedPapers int       `json:"requested_papers"`
}

// QueryCraftedPayload is the payload for review.query_crafted events.
type QueryCraftedPayload struct {
	RequestID uuid.UUID `json:"request_id"`
	Topic     string    `json:"topic"`
	Query     string    `json:"query"`
}

// PapersFoundPayload is the payload for review.papers_found events.
type PapersFoundPayload struct {
	RequestID uuid.UUID  `json:"request_id"`
	Source    SourceType `json:"source"`
	Count     int        `json:"count"`
}

// PapersSelectedPayload is the payload for review.papers_selected events.
type PapersSelectedPayload struct {
	RequestID uuid.UUID   `json:"request_id"`
	PaperIDs  []uuid.UUID `json:"paper_ids"`
	Count     int         `json:"count"`
}

// PaperReviewedPayload is the payload for review.paper_reviewed events.
type PaperReviewedPayload struct {
	RequestID uuid.UUID `json:"request_id"`
	PaperID   uuid.UUID `json:"paper_id"`
	Rank      int       `json:"rank"`
	Title     string    `json:"title"`
}

// ReviewCompletedPayload is the payload for review.completed events.
type ReviewCompletedPayload struct {
	RequestID      uuid.UUID     `json:"request_id"`
	PapersSelected int           `json:"papers_selected"`
	PapersReviewed int           `json:"papers_reviewed"`
	PapersFailed   int           `json:"papers_failed"`
	Duration       time.Duration `json:"duration_ns"`
}

// ReviewFailedPayload is the payload for review.failed events.
type ReviewFailedPayload struct {
	RequestID uuid.UUID `json:"request_id"`
	Error     string    `json:"error"`
	Phase     string    `json:"phase"`
}

// ReviewCancelledPayload is the payload for review.cancelled events.
type ReviewCancelledPayload struct {
	RequestID   uuid.UUID `json:"request_id"`
	CancelledBy string    `json:"cancelled_by"`
	Reason      string    `json:"reason,omitempty"`
}

// ProgressUpdatedPayload is the payload for review.progress_updated events.
type ProgressUpdatedPayload struct {
	RequestID       uuid.UUID    `json:"request_id"`
	Status          ReviewStatus `json:"status"`
	CurrentPhase    string       `json:"current_phase"`
	CandidatesFound int          `json:"candidates_found"`
	PapersSelected  int          `json:"papers_selected"`
	PapersReviewed  int          `json:"papers_reviewed"`
	PapersFailed    int          `json:"papers_failed"`
}
