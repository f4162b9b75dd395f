package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/scribeworks/litreview-service/internal/domain"
)

// Compile-time interface verification.
var _ OutboxRepository = (*PgOutboxRepository)(nil)

// PgOutboxRepository is a PostgreSQL implementation of OutboxRepository.
type PgOutboxRepository struct {
	db DBTX
}

// NewPgOutboxRepository creates a new PostgreSQL outbox repository.
func NewPgOutboxRepository(db DBTX) *PgOutboxRepository {
	return &PgOutboxRepository{db: db}
}

// Insert stores an outbox event.
func (r *PgOutboxRepository) Insert(ctx context.Context, event *domain.OutboxEvent) error {
	if event == nil {
		return domain.NewValidationError("event", "event cannot be nil")
	}
	if event.EventID == "" {
		return domain.NewValidationError("event_id", "event ID is required")
	}
	if event.EventType == "" {
		return domain.NewValidationError("event_type", "event type is required")
	}

	var metadataJSON []byte
	if event.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO outbox_events (
			event_id, event_version, aggregate_id, aggregate_type, event_type,
			payload, metadata, attempts, max_attempts, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		event.EventID, event.EventVersion, event.AggregateID, event.AggregateType, event.EventType,
		event.Payload, metadataJSON, event.Attempts, event.MaxAttempts, event.CreatedAt,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewAlreadyExistsError("outbox event", event.EventID)
		}
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	return nil
}

// FetchPending retrieves up to limit unpublished events, oldest first.
// Rows are locked with SKIP LOCKED so concurrent relays never double-publish.
func (r *PgOutboxRepository) FetchPending(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT event_id, event_version, aggregate_id, aggregate_type, event_type,
			payload, metadata, attempts, max_attempts, created_at, published_at
		FROM outbox_events
		WHERE published_at IS NULL AND attempts < max_attempts
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending events: %w", err)
	}
	defer rows.Close()

	var events []*domain.OutboxEvent
	for rows.Next() {
		var event domain.OutboxEvent
		var metadataJSON []byte

		err := rows.Scan(
			&event.EventID, &event.EventVersion, &event.AggregateID, &event.AggregateType, &event.EventType,
			&event.Payload, &metadataJSON, &event.Attempts, &event.MaxAttempts, &event.CreatedAt, &event.PublishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox events: %w", err)
	}

	return events, nil
}

// MarkPublished records that an event was successfully published.
func (r *PgOutboxRepository) MarkPublished(ctx context.Context, eventID string) error {
	query := `
		UPDATE outbox_events
		SET published_at = $1
		WHERE event_id = $2 AND published_at IS NULL`

	result, err := r.db.Exec(ctx, query, time.Now().UTC(), eventID)
	if err != nil {
		return fmt.Errorf("failed to mark event published: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("outbox event", eventID)
	}

	return nil
}

// RecordFailure increments an event's attempt counter.
func (r *PgOutboxRepository) RecordFailure(ctx context.Context, eventID string) error {
	query := `
		UPDATE outbox_events
		SET attempts = attempts + 1
		WHERE event_id = $1 AND published_at IS NULL`

	result, err := r.db.Exec(ctx, query, eventID)
	if err != nil {
		return fmt.Errorf("failed to record publish failure: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("outbox event", eventID)
	}

	return nil
}

// DeleteOlderThan prunes published events older than the cutoff.
func (r *PgOutboxRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE published_at IS NOT NULL AND published_at < $1`

	result, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune outbox events: %w", err)
	}

	return result.RowsAffected(), nil
}
