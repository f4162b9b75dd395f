// Package observability bundles the service's logging, metrics, and context
// plumbing.
//
// Logging is zerolog throughout. NewLogger builds the root logger from
// LoggingConfig, and the With*Context helpers attach the standard fields for
// a pipeline stage:
//
//	logger := observability.NewLogger(cfg)
//	log := observability.WithReviewContext(logger, requestID, topic)
//	log.Info().Msg("review started")
//
// Metrics are Prometheus collectors grouped on the Metrics struct, created
// once per process with NewMetrics and shared by handlers, activities, and
// the outbox relay:
//
//	m := observability.NewMetrics("litreview")
//	m.RecordReviewStarted()
//	m.RecordSearchCompleted("arxiv", 25, 1.2)
//
// Request-scoped values (request ID, correlation ID) travel on the
// context.Context via WithRequestID and friends, so log enrichment works
// across goroutine and activity boundaries.
//
// Field names are shared across the service: request_id, topic, query,
// source, paper_id, agent, workflow_id. Everything here is safe for
// concurrent use.
package observability
