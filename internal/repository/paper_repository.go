package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/scribeworks/litreview-service/internal/domain"
)

// PaperRepository handles paper persistence and the selection mapping
// between review requests and papers.
type PaperRepository interface {
	// Upsert creates a paper or updates the existing row matched by
	// canonical_id, merging newer metadata over older. The returned paper
	// carries the database-assigned ID and timestamps.
	// Returns domain.ErrInvalidInput if the paper has no canonical ID.
	Upsert(ctx context.Context, paper *domain.Paper) (*domain.Paper, error)

	// UpsertAll upserts multiple papers, returning them in input order with
	// database-assigned fields populated.
	UpsertAll(ctx context.Context, papers []*domain.Paper) ([]*domain.Paper, error)

	// GetByID retrieves a paper by its internal UUID.
	// Returns domain.ErrNotFound if no matching paper exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Paper, error)

	// GetByCanonicalID retrieves a paper by its canonical identifier.
	// Returns domain.ErrNotFound if no matching paper exists.
	GetByCanonicalID(ctx context.Context, canonicalID string) (*domain.Paper, error)

	// SelectForRequest records the papers selected for a review request with
	// their relevance ranks, replacing any previous selection.
	// Returns domain.ErrNotFound if the request does not exist.
	SelectForRequest(ctx context.Context, requestID uuid.UUID, papers []*domain.Paper) error

	// ListByRequest retrieves the papers selected for a review request in
	// rank order, with their review outcomes.
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*SelectedPaper, error)

	// UpdateOutcome records the review outcome for one selected paper.
	// Returns domain.ErrNotFound if the mapping does not exist.
	UpdateOutcome(ctx context.Context, requestID, paperID uuid.UUID, outcome domain.ReviewOutcome, outcomeError string) error
}

// SelectedPaper pairs a paper with its selection mapping for a request.
type SelectedPaper struct {
	Paper         *domain.Paper        `json:"paper"`
	RelevanceRank int                  `json:"relevance_rank"`
	Outcome       domain.ReviewOutcome `json:"outcome"`
	OutcomeError  string               `json:"outcome_error,omitempty"`
}
