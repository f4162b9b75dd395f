package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/scribeworks/litreview-service/internal/domain"
)

// ProgressRepository handles real-time progress events for SSE streaming.
// Inserts NOTIFY the per-request channel so listeners wake immediately;
// ListSince backs the poll fallback for clients without a listener.
type ProgressRepository interface {
	// Insert persists a progress event and notifies the request's channel.
	Insert(ctx context.Context, event *domain.ReviewProgressEvent) error

	// ListSince retrieves progress events for a request created after the
	// given time, oldest first.
	ListSince(ctx context.Context, requestID uuid.UUID, since time.Time) ([]*domain.ReviewProgressEvent, error)
}

// ProgressChannel returns the LISTEN/NOTIFY channel name for a request.
func ProgressChannel(requestID uuid.UUID) string {
	return "review_progress_" + requestID.String()
}
