//go:build integration

package integration

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeworks/litreview-service/internal/config"
	"github.com/scribeworks/litreview-service/internal/domain"
	"github.com/scribeworks/litreview-service/internal/outbox"
	"github.com/scribeworks/litreview-service/internal/repository"
)

// poolLocker adapts the test pool to the relay's Locker interface.
type poolLocker struct{}

func (poolLocker) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var acquired bool
	err := testPool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired)
	return acquired, err
}

func (poolLocker) ReleaseAdvisoryLock(ctx context.Context, key int64) error {
	_, err := testPool.Exec(ctx, "SELECT pg_advisory_unlock($1)", key)
	return err
}

// capturePublisher records published events and can be told to fail.
type capturePublisher struct {
	mu     sync.Mutex
	events []*domain.OutboxEvent
	fail   bool
}

func (p *capturePublisher) Publish(_ context.Context, event *domain.OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) setFail(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = fail
}

func (p *capturePublisher) published() []*domain.OutboxEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*domain.OutboxEvent(nil), p.events...)
}

func insertEvent(t *testing.T, repo *repository.PgOutboxRepository, emitter *outbox.Emitter, eventType string) *domain.OutboxEvent {
	t.Helper()
	event, err := emitter.Emit(outbox.EmitParams{
		RequestID: uuid.New(),
		EventType: eventType,
		Payload:   map[string]interface{}{"topic": "test topic"},
	})
	require.NoError(t, err)
	require.NoError(t, repo.Insert(context.Background(), event))
	return event
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestOutboxRepository(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewPgOutboxRepository(testPool)
	emitter := outbox.NewEmitter(outbox.EmitterConfig{ServiceName: "litreview-test"})

	t.Run("fetch pending returns unpublished events oldest first", func(t *testing.T) {
		cleanTables(t, "outbox_events")

		first := insertEvent(t, repo, emitter, domain.EventTypeReviewStarted)
		second := insertEvent(t, repo, emitter, domain.EventTypeReviewComplete)

		events, err := repo.FetchPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, first.EventID, events[0].EventID)
		assert.Equal(t, second.EventID, events[1].EventID)
		assert.Equal(t, "litreview-test", events[0].Metadata["source"])
	})

	t.Run("mark published removes the event from the pending set", func(t *testing.T) {
		cleanTables(t, "outbox_events")
		event := insertEvent(t, repo, emitter, domain.EventTypeReviewStarted)

		require.NoError(t, repo.MarkPublished(ctx, event.EventID))

		events, err := repo.FetchPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, events)

		// Double publish is reported, not silently ignored.
		err = repo.MarkPublished(ctx, event.EventID)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("exhausted attempts drop the event from the pending set", func(t *testing.T) {
		cleanTables(t, "outbox_events")
		event := insertEvent(t, repo, emitter, domain.EventTypeReviewFailed)

		for i := 0; i < event.MaxAttempts; i++ {
			require.NoError(t, repo.RecordFailure(ctx, event.EventID))
		}

		events, err := repo.FetchPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("delete older than prunes only published events", func(t *testing.T) {
		cleanTables(t, "outbox_events")

		published := insertEvent(t, repo, emitter, domain.EventTypeReviewComplete)
		insertEvent(t, repo, emitter, domain.EventTypeReviewStarted)
		require.NoError(t, repo.MarkPublished(ctx, published.EventID))

		deleted, err := repo.DeleteOlderThan(ctx, time.Now().UTC().Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		events, err := repo.FetchPending(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})
}

func TestOutboxRelay(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewPgOutboxRepository(testPool)
	emitter := outbox.NewEmitter(outbox.EmitterConfig{ServiceName: "litreview-test"})
	logger := zerolog.New(io.Discard)

	relayConfig := config.OutboxConfig{
		PollInterval: 25 * time.Millisecond,
		BatchSize:    10,
	}

	t.Run("relay publishes pending events and marks them", func(t *testing.T) {
		cleanTables(t, "outbox_events")

		event := insertEvent(t, repo, emitter, domain.EventTypeReviewStarted)

		publisher := &capturePublisher{}
		relay := outbox.NewRelay(poolLocker{}, repo, publisher, relayConfig, logger)
		relay.Start(ctx)
		defer relay.Stop()

		waitFor(t, 5*time.Second, func() bool {
			return len(publisher.published()) == 1
		})
		assert.Equal(t, event.EventID, publisher.published()[0].EventID)

		waitFor(t, 5*time.Second, func() bool {
			pending, err := repo.FetchPending(ctx, 10)
			return err == nil && len(pending) == 0
		})
	})

	t.Run("relay retries after a publish failure", func(t *testing.T) {
		cleanTables(t, "outbox_events")

		event := insertEvent(t, repo, emitter, domain.EventTypeReviewComplete)

		publisher := &capturePublisher{fail: true}
		relay := outbox.NewRelay(poolLocker{}, repo, publisher, relayConfig, logger)
		relay.Start(ctx)
		defer relay.Stop()

		// Let the relay burn at least one failed attempt.
		waitFor(t, 5*time.Second, func() bool {
			var attempts int
			err := testPool.QueryRow(ctx,
				"SELECT attempts FROM outbox_events WHERE event_id = $1", event.EventID,
			).Scan(&attempts)
			return err == nil && attempts > 0
		})
		assert.Empty(t, publisher.published())

		publisher.setFail(false)
		waitFor(t, 5*time.Second, func() bool {
			return len(publisher.published()) == 1
		})
	})

	t.Run("relay prune removes old published events", func(t *testing.T) {
		cleanTables(t, "outbox_events")

		event := insertEvent(t, repo, emitter, domain.EventTypeReviewCancel)
		require.NoError(t, repo.MarkPublished(ctx, event.EventID))

		relay := outbox.NewRelay(poolLocker{}, repo, &capturePublisher{}, relayConfig, logger)
		deleted, err := relay.Prune(ctx, -time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
	})
}
