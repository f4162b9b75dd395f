package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/scribeworks/litreview-service/internal/config"
	"github.com/scribeworks/litreview-service/internal/domain"
)

// relayLockKey is the advisory lock key guarding the relay poll loop.
// Only the holder polls, so a fleet of workers runs exactly one active relay.
const relayLockKey int64 = 7_421_001

// Store is the subset of the outbox repository the relay needs.
type Store interface {
	FetchPending(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, eventID string) error
	RecordFailure(ctx context.Context, eventID string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Locker provides session-level advisory locks.
type Locker interface {
	AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error)
	ReleaseAdvisoryLock(ctx context.Context, key int64) error
}

// Relay polls the outbox table and publishes pending events.
type Relay struct {
	locker    Locker
	store     Store
	publisher Publisher
	config    config.OutboxConfig
	logger    zerolog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewRelay creates a relay over the given store and publisher.
func NewRelay(locker Locker, store Store, publisher Publisher, cfg config.OutboxConfig, logger zerolog.Logger) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Relay{
		locker:    locker,
		store:     store,
		publisher: publisher,
		config:    cfg,
		logger:    logger.With().Str("component", "outbox_relay").Logger(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the poll loop in a background goroutine.
func (r *Relay) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop signals the poll loop to exit and waits for it to finish.
func (r *Relay) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

func (r *Relay) run(ctx context.Context) {
	defer close(r.done)

	r.logger.Info().
		Dur("poll_interval", r.config.PollInterval).
		Int("batch_size", r.config.BatchSize).
		Msg("outbox relay started")

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("outbox relay stopping: context cancelled")
			return
		case <-r.stop:
			r.logger.Info().Msg("outbox relay stopping")
			return
		case <-ticker.C:
			if err := r.relayOnce(ctx); err != nil {
				r.logger.Error().Err(err).Msg("outbox relay cycle failed")
			}
		}
	}
}

// relayOnce runs a single poll cycle. It holds the relay advisory lock for
// the duration of the cycle; if another relay holds it, the cycle is skipped.
func (r *Relay) relayOnce(ctx context.Context) error {
	acquired, err := r.locker.AcquireAdvisoryLock(ctx, relayLockKey)
	if err != nil {
		return err
	}
	if !acquired {
		return nil
	}
	defer func() {
		if err := r.locker.ReleaseAdvisoryLock(ctx, relayLockKey); err != nil {
			r.logger.Warn().Err(err).Msg("failed to release relay lock")
		}
	}()

	events, err := r.store.FetchPending(ctx, r.config.BatchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	published := 0
	for _, event := range events {
		if err := r.publisher.Publish(ctx, event); err != nil {
			r.logger.Warn().
				Err(err).
				Str("event_id", event.EventID).
				Str("event_type", event.EventType).
				Int("attempts", event.Attempts+1).
				Msg("failed to publish outbox event")
			if err := r.store.RecordFailure(ctx, event.EventID); err != nil {
				r.logger.Error().Err(err).Str("event_id", event.EventID).Msg("failed to record publish failure")
			}
			continue
		}

		if err := r.store.MarkPublished(ctx, event.EventID); err != nil {
			// The event will be fetched and re-published next cycle;
			// consumers must tolerate the duplicate.
			r.logger.Error().Err(err).Str("event_id", event.EventID).Msg("failed to mark event published")
			continue
		}
		published++
	}

	r.logger.Debug().
		Int("fetched", len(events)).
		Int("published", published).
		Msg("outbox relay cycle complete")

	return nil
}

// Prune deletes published events older than the retention window.
func (r *Relay) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	deleted, err := r.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		r.logger.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("pruned published outbox events")
	}
	return deleted, nil
}
