package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scribeworks/litreview-service/internal/domain"
)

// Compile-time interface verification.
var _ ProgressRepository = (*PgProgressRepository)(nil)

// PgProgressRepository is a PostgreSQL implementation of ProgressRepository.
type PgProgressRepository struct {
	db DBTX
}

// NewPgProgressRepository creates a new PostgreSQL progress repository.
func NewPgProgressRepository(db DBTX) *PgProgressRepository {
	return &PgProgressRepository{db: db}
}

// Insert persists a progress event and notifies the request's channel.
func (r *PgProgressRepository) Insert(ctx context.Context, event *domain.ReviewProgressEvent) error {
	if event == nil {
		return domain.NewValidationError("event", "event cannot be nil")
	}
	if event.RequestID == uuid.Nil {
		return domain.NewValidationError("request_id", "request ID is required")
	}
	if event.EventType == "" {
		return domain.NewValidationError("event_type", "event type is required")
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	dataJSON, err := json.Marshal(event.EventData)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	insertQuery := `
		INSERT INTO progress_events (id, request_id, event_type, event_data, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.db.Exec(ctx, insertQuery,
		event.ID, event.RequestID, event.EventType, dataJSON, event.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert progress event: %w", err)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notify payload: %w", err)
	}

	// NOTIFY payloads are capped at 8000 bytes; oversized events fall back
	// to an ID-only nudge and listeners re-read from the table.
	if len(payload) > 7500 {
		payload, _ = json.Marshal(map[string]interface{}{
			"id":         event.ID,
			"request_id": event.RequestID,
			"event_type": event.EventType,
		})
	}

	notifyQuery := `SELECT pg_notify($1, $2)`
	if _, err := r.db.Exec(ctx, notifyQuery, ProgressChannel(event.RequestID), string(payload)); err != nil {
		return fmt.Errorf("failed to notify progress channel: %w", err)
	}

	return nil
}

// ListSince retrieves progress events created after the given time.
func (r *PgProgressRepository) ListSince(ctx context.Context, requestID uuid.UUID, since time.Time) ([]*domain.ReviewProgressEvent, error) {
	query := `
		SELECT id, request_id, event_type, event_data, created_at
		FROM progress_events
		WHERE request_id = $1 AND created_at > $2
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, requestID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress events: %w", err)
	}
	defer rows.Close()

	var events []*domain.ReviewProgressEvent
	for rows.Next() {
		var event domain.ReviewProgressEvent
		var dataJSON []byte

		if err := rows.Scan(&event.ID, &event.RequestID, &event.EventType, &dataJSON, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan progress event: %w", err)
		}

		if len(dataJSON) > 0 {
			if err := json.Unmarshal(dataJSON, &event.EventData); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
			}
		}

		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating progress events: %w", err)
	}

	return events, nil
}
