package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/scribeworks/litreview-service/internal/domain"
)

// DocumentRepository handles per-paper reviews and assembled review documents.
type DocumentRepository interface {
	// SaveReview persists a single paper review.
	// Returns domain.ErrAlreadyExists if this paper already has a review
	// within the request.
	SaveReview(ctx context.Context, review *domain.PaperReview) error

	// ListReviews retrieves the paper reviews for a request in rank order.
	ListReviews(ctx context.Context, requestID uuid.UUID) ([]domain.PaperReview, error)

	// SaveDocument persists the assembled review document, replacing any
	// previous document for the request.
	SaveDocument(ctx context.Context, doc *domain.ReviewDocument) error

	// GetDocument retrieves the assembled document for a request, with its
	// per-paper reviews attached.
	// Returns domain.ErrNotFound if no document has been assembled yet.
	GetDocument(ctx context.Context, requestID uuid.UUID) (*domain.ReviewDocument, error)
}
