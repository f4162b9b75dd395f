// Package domain provides domain models and business logic for the literature review service.
package domain

// ReviewStatus represents the lifecycle states of a literature review request.
// These values must match the database enum review_status.
type ReviewStatus string

const (
	ReviewStatusPending       ReviewStatus = "pending"
	ReviewStatusCraftingQuery ReviewStatus = "crafting_query"
	ReviewStatusSearching     ReviewStatus = "searching"
	ReviewStatusSelecting     ReviewStatus = "selecting"
	ReviewStatusReviewing     ReviewStatus = "reviewing"
	ReviewStatusCompleted     ReviewStatus = "completed"
	ReviewStatusPartial       ReviewStatus = "partial"
	ReviewStatusFailed        ReviewStatus = "failed"
	ReviewStatusCancelled     ReviewStatus = "cancelled"
)

// IsTerminal returns true if the status represents a final state that will not change.
func (s ReviewStatus) IsTerminal() bool {
	switch s {
	case ReviewStatusCompleted, ReviewStatusPartial, ReviewStatusFailed, ReviewStatusCancelled:
		return true
	default:
		return false
	}
}

// SearchStatus represents the state of a paper search against a source API.
// These values must match the database enum search_status.
type SearchStatus string

const (
	SearchStatusPending     SearchStatus = "pending"
	SearchStatusInProgress  SearchStatus = "in_progress"
	SearchStatusCompleted   SearchStatus = "completed"
	SearchStatusFailed      SearchStatus = "failed"
	SearchStatusRateLimited SearchStatus = "rate_limited"
)

// ReviewOutcome represents the per-paper review state within a request.
// These values must match the database enum review_outcome.
type ReviewOutcome string

const (
	ReviewOutcomePending  ReviewOutcome = "pending"
	ReviewOutcomeReviewed ReviewOutcome = "reviewed"
	ReviewOutcomeFailed   ReviewOutcome = "failed"
	ReviewOutcomeSkipped  ReviewOutcome = "skipped"
)

// SourceType represents the source API that provided paper data.
// These values must match the database enum source_type.
type SourceType string

const (
	SourceTypeArXiv SourceType = "arxiv"
)

// IsValidSourceType reports whether s is a known paper source.
func IsValidSourceType(s SourceType) bool {
	switch s {
	case SourceTypeArXiv:
		return true
	default:
		return false
	}
}
