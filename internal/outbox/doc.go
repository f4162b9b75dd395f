// Package outbox implements the transactional outbox pattern for review
// lifecycle events.
//
// # Components
//
//   - Emitter: builds outbox events from review context, stamping service
//     metadata and correlation IDs
//   - KafkaPublisher: writes published events to a Kafka topic keyed by
//     aggregate ID
//   - Relay: polls the outbox table for pending events and publishes them,
//     holding an advisory lock so only one relay is active at a time
//
// # Event Types
//
// The service publishes an event for each review lifecycle stage:
//
//   - review.started: a new literature review was accepted
//   - review.query_crafted: the search query was crafted from the topic
//   - review.papers_found: candidate papers were fetched from arXiv
//   - review.papers_selected: the final paper set was chosen
//   - review.paper_reviewed: a single paper review finished
//   - review.completed: the review finished successfully
//   - review.failed: the review failed with an error
//   - review.cancelled: the review was cancelled by user request
//   - review.progress_updated: incremental progress was recorded
//
// # Usage
//
// Emit events alongside state changes:
//
//	emitter := outbox.NewEmitter(outbox.EmitterConfig{ServiceName: "litreview-service"})
//	event, err := emitter.Emit(outbox.EmitParams{
//	    RequestID: requestID,
//	    EventType: domain.EventTypeReviewStarted,
//	    Payload:   payload,
//	})
//	err = outboxRepo.Insert(ctx, event)
//
// Run the relay in the worker process:
//
//	relay := outbox.NewRelay(db, outboxRepo, publisher, cfg.Outbox, logger)
//	relay.Start(ctx)
//	defer relay.Stop()
package outbox
