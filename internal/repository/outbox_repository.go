package repository

import (
	"context"
	"time"

	"github.com/scribeworks/litreview-service/internal/domain"
)

// OutboxRepository handles the transactional outbox table. Events are
// inserted in the same transaction as the state change they describe and
// published asynchronously by the relay.
type OutboxRepository interface {
	// Insert stores an outbox event. Pass a transaction-backed repository
	// to make the insert atomic with the surrounding state change.
	Insert(ctx context.Context, event *domain.OutboxEvent) error

	// FetchPending retrieves up to limit unpublished events that have not
	// exhausted their attempts, oldest first.
	FetchPending(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)

	// MarkPublished records that an event was successfully published.
	MarkPublished(ctx context.Context, eventID string) error

	// RecordFailure increments an event's attempt counter after a failed
	// publish. Events at max attempts stop being fetched.
	RecordFailure(ctx context.Context, eventID string) error

	// DeleteOlderThan prunes published events older than the cutoff,
	// returning how many rows were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
