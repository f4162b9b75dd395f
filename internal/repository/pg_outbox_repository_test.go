package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeworks/litreview-service/internal/domain"
)

func newTestOutboxEvent(t *testing.T) *domain.OutboxEvent {
	t.Helper()

	event, err := domain.NewOutboxEvent(
		domain.EventTypeReviewStarted,
		uuid.New().String(),
		"review",
		domain.ReviewStartedPayload{
			RequestID:       uuid.New(),
			Topic:           "diffusion models",
			RequestedPapers: 5,
		},
	)
	require.NoError(t, err)
	return event
}

func TestPgOutboxRepository_Insert(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts event", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgOutboxRepository(mock)
		event := newTestOutboxEvent(t)

		mock.ExpectExec("INSERT INTO outbox_events").
			WithArgs(
				event.EventID, event.EventVersion, event.AggregateID, event.AggregateType, event.EventType,
				event.Payload, pgxmock.AnyArg(), event.Attempts, event.MaxAttempts, event.CreatedAt,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = repo.Insert(ctx, event)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects nil event", func(t *testing.T) {
		repo := NewPgOutboxRepository(nil)
		err := repo.Insert(ctx, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("rejects missing event ID", func(t *testing.T) {
		repo := NewPgOutboxRepository(nil)
		event := newTestOutboxEvent(t)
		event.EventID = ""

		err := repo.Insert(ctx, event)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestPgOutboxRepository_FetchPending(t *testing.T) {
	ctx := context.Background()

	t.Run("returns unpublished events oldest first", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgOutboxRepository(mock)
		first := newTestOutboxEvent(t)
		second := newTestOutboxEvent(t)

		rows := pgxmock.NewRows([]string{
			"event_id", "event_version", "aggregate_id", "aggregate_type", "event_type",
			"payload", "metadata", "attempts", "max_attempts", "created_at", "published_at",
		}).
			AddRow(first.EventID, 1, first.AggregateID, "review", first.EventType,
				first.Payload, []byte(nil), 0, 5, first.CreatedAt, (*time.Time)(nil)).
			AddRow(second.EventID, 1, second.AggregateID, "review", second.EventType,
				second.Payload, []byte(`{"correlation_id":"abc"}`), 2, 5, second.CreatedAt, (*time.Time)(nil))

		mock.ExpectQuery("SELECT .* FROM outbox_events WHERE published_at IS NULL").
			WithArgs(50).
			WillReturnRows(rows)

		events, err := repo.FetchPending(ctx, 50)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, first.EventID, events[0].EventID)
		assert.Equal(t, 2, events[1].Attempts)
		assert.Equal(t, "abc", events[1].Metadata["correlation_id"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-positive limit defaults to 100", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgOutboxRepository(mock)

		mock.ExpectQuery("SELECT .* FROM outbox_events WHERE published_at IS NULL").
			WithArgs(100).
			WillReturnRows(pgxmock.NewRows([]string{
				"event_id", "event_version", "aggregate_id", "aggregate_type", "event_type",
				"payload", "metadata", "attempts", "max_attempts", "created_at", "published_at",
			}))

		events, err := repo.FetchPending(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, events)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgOutboxRepository_MarkPublished(t *testing.T) {
	ctx := context.Background()

	t.Run("marks event published", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgOutboxRepository(mock)
		eventID := uuid.New().String()

		mock.ExpectExec("UPDATE outbox_events").
			WithArgs(pgxmock.AnyArg(), eventID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err = repo.MarkPublished(ctx, eventID)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already published returns not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgOutboxRepository(mock)
		eventID := uuid.New().String()

		mock.ExpectExec("UPDATE outbox_events").
			WithArgs(pgxmock.AnyArg(), eventID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = repo.MarkPublished(ctx, eventID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgOutboxRepository_RecordFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("increments attempts", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgOutboxRepository(mock)
		eventID := uuid.New().String()

		mock.ExpectExec("UPDATE outbox_events").
			WithArgs(eventID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err = repo.RecordFailure(ctx, eventID)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgOutboxRepository_DeleteOlderThan(t *testing.T) {
	ctx := context.Background()

	t.Run("prunes published events", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgOutboxRepository(mock)
		cutoff := time.Now().UTC().Add(-24 * time.Hour)

		mock.ExpectExec("DELETE FROM outbox_events").
			WithArgs(cutoff).
			WillReturnResult(pgxmock.NewResult("DELETE", 17))

		deleted, err := repo.DeleteOlderThan(ctx, cutoff)
		require.NoError(t, err)
		assert.Equal(t, int64(17), deleted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
