// Package activities provides Temporal activity implementations for the
// literature review pipeline.
//
// Activity inputs and outputs are defined as serializable structs that cross
// the Temporal serialization boundary. Each activity receives an input struct
// and returns an output struct (or error). All fields must be exported for
// JSON serialization by the Temporal SDK's default data converter.
package activities

import (
	"time"

	"github.com/google/uuid"

	"github.com/scribeworks/litreview-service/internal/domain"
)

// CraftQueryInput contains the parameters for the query crafting activity.
type CraftQueryInput struct {
	// RequestID is the review request identifier.
	RequestID uuid.UUID

	// Topic is the research topic to craft a search query for.
	Topic string
}

// CraftQueryOutput contains the results of the query crafting activity.
type CraftQueryOutput struct {
	// Query is the crafted arXiv search query.
	Query string

	// Reasoning is the model's one-line justification for the query.
	Reasoning string

	// TokensUsed is the LLM token count spent crafting the query.
	TokensUsed int
}

// SearchCandidatesInput contains the parameters for the candidate search activity.
type SearchCandidatesInput struct {
	// RequestID is the review request identifier.
	RequestID uuid.UUID

	// Source is the paper source to search.
	Source domain.SourceType

	// Query is the crafted search query.
	Query string

	// MaxResults caps the number of candidates fetched.
	MaxResults int

	// DateFrom filters papers published on or after this date.
	DateFrom *time.Time

	// DateTo filters papers published on or before this date.
	DateTo *time.Time
}

// SearchCandidatesOutput contains the results of the candidate search activity.
type SearchCandidatesOutput struct {
	// Papers is the list of candidate papers found.
	Papers []*domain.Paper

	// TotalFound is the source's total match count for the query,
	// which may exceed len(Papers).
	TotalFound int

	// Source identifies the source that produced these candidates.
	Source domain.SourceType
}

// SelectPapersInput contains the parameters for the down-selection activity.
type SelectPapersInput struct {
	// RequestID is the review request identifier.
	RequestID uuid.UUID

	// Topic is the research topic being reviewed.
	Topic string

	// Candidates is the overfetched candidate pool.
	Candidates []*domain.Paper

	// Count is the exact number of papers to select.
	Count int
}

// SelectPapersOutput contains the results of the down-selection activity.
type SelectPapersOutput struct {
	// Papers is the selected papers in relevance order.
	Papers []*domain.Paper

	// Reasoning is the model's justification for the selection.
	Reasoning string

	// TokensUsed is the LLM token count spent on selection.
	TokensUsed int

	// Fallback is true when the selection came from the recency fallback
	// rather than the model.
	Fallback bool
}

// ReviewPaperInput contains the parameters for the per-paper review activity.
type ReviewPaperInput struct {
	// RequestID is the review request identifier.
	RequestID uuid.UUID

	// Topic is the research topic being reviewed.
	Topic string

	// Paper is the paper to review.
	Paper *domain.Paper

	// Rank is the paper's relevance rank within the review.
	Rank int
}

// ReviewPaperOutput contains the results of the per-paper review activity.
type ReviewPaperOutput struct {
	// Review is the structured review produced by the litreviewer agent.
	Review *domain.PaperReview
}

// UpdateStatusInput contains the parameters for the review status update activity.
type UpdateStatusInput struct {
	// RequestID is the review request identifier.
	RequestID uuid.UUID

	// Status is the new review status to set.
	Status domain.ReviewStatus

	// ErrorMsg contains an error message when transitioning to a failed state.
	ErrorMsg string
}

// SetCraftedQueryInput contains the parameters for recording the crafted query.
type SetCraftedQueryInput struct {
	// RequestID is the review request identifier.
	RequestID uuid.UUID

	// Query is the crafted arXiv search query.
	Query string
}

// SavePapersInput contains the parameters for the candidate persistence activity.
type SavePapersInput struct {
	// RequestID is the review request identifier.
	RequestID uuid.UUID

	// Papers is the list of candidate papers to save.
	Papers []*domain.Paper
}

// SavePapersOutput contains the results of the candidate persistence activity.
type SavePapersOutput struct {
	// Papers is the saved papers with their canonical database IDs.
	Papers []*domain.Paper

	// SavedCount is the number of papers persisted.
	SavedCount int
}

// SaveSelectionInput contains the parameters for persisting the paper selection.
type SaveSelectionInput struct {
	// RequestID is the review request identifier.
	RequestID uuid.UUID

	// Papers is the selected papers in relevance order. Rank is assigned
	// from position (1-based).
	Papers []*domain.Paper
}

// SaveReviewInput contains the parameters for persisting a per-paper review.
type SaveReviewInput struct {
	// RequestID is the review request identifier.
	RequestID uuid.UUID

	// Review is the structured review to save.
	Review *domain.PaperReview
}

// MarkPaperFailedInput contains the parameters for recording a failed paper review.
type MarkPaperFailedInput struct {
	// RequestID is the review request identifier.
	RequestID uuid.UUID

	// PaperID is the paper whose review failed.
	PaperID uuid.UUID

	// ErrorMsg is the failure reason.
	ErrorMsg string
}

// SaveDocumentInput contains the parameters for assembling and saving the
// final review document.
type SaveDocumentInput struct {
	// RequestID is the review request identifier.
	RequestID uuid.UUID

	// Topic is the research topic being reviewed.
	Topic string

	// CraftedQuery is the arXiv query used for the search.
	CraftedQuery string
}

// SaveDocumentOutput contains the results of the document assembly activity.
type SaveDocumentOutput struct {
	// DocumentID is the identifier of the saved document.
	DocumentID uuid.UUID

	// ReviewCount is the number of per-paper reviews in the document.
	ReviewCount int

	// TotalTokensUsed aggregates LLM token usage across the document.
	TotalTokensUsed int
}

// RecordProgressInput contains the parameters for the progress event activity.
type RecordProgressInput struct {
	// RequestID is the review request identifier.
	RequestID uuid.UUID

	// EventType describes the kind of progress event (e.g. "review.papers_found").
	EventType string

	// EventData holds the event-specific payload.
	EventData map[string]interface{}
}

// PublishEventInput contains the parameters for the outbox publishing activity.
type PublishEventInput struct {
	// RequestID is the review request identifier.
	RequestID uuid.UUID

	// EventType is the outbox event type (e.g. "review.completed").
	EventType string

	// Payload is the event payload.
	Payload map[string]interface{}
}
