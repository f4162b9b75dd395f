package observability

import (
	"context"
)

type contextKey string

const (
	requestIDKey     contextKey = "request_id"
	correlationIDKey contextKey = "correlation_id"
	workflowIDKey    contextKey = "workflow_id"
	runIDKey         contextKey = "workflow_run_id"
)

// stringValue reads a string stored under key, or "" when absent or the
// wrong type.
func stringValue(ctx context.Context, key contextKey) string {
	s, _ := ctx.Value(key).(string)
	return s
}

// WithRequestID stores the review request ID on the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the stored request ID, or "".
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithCorrelationID stores the correlation ID on the context.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// CorrelationIDFromContext returns the stored correlation ID, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	return stringValue(ctx, correlationIDKey)
}

// WithWorkflow stores the Temporal workflow and run IDs on the context.
func WithWorkflow(ctx context.Context, workflowID, runID string) context.Context {
	ctx = context.WithValue(ctx, workflowIDKey, workflowID)
	return context.WithValue(ctx, runIDKey, runID)
}

// WorkflowFromContext returns the stored workflow and run IDs, or "".
func WorkflowFromContext(ctx context.Context) (workflowID, runID string) {
	return stringValue(ctx, workflowIDKey), stringValue(ctx, runIDKey)
}

// ReviewContext bundles the identifiers that travel with one review.
type ReviewContext struct {
	RequestID     string
	CorrelationID string
	WorkflowID    string
	RunID         string
}

// WithReviewContextFull stores every non-empty identifier from rc.
func WithReviewContextFull(ctx context.Context, rc ReviewContext) context.Context {
	if rc.RequestID != "" {
		ctx = WithRequestID(ctx, rc.RequestID)
	}
	if rc.CorrelationID != "" {
		ctx = WithCorrelationID(ctx, rc.CorrelationID)
	}
	if rc.WorkflowID != "" || rc.RunID != "" {
		ctx = WithWorkflow(ctx, rc.WorkflowID, rc.RunID)
	}
	return ctx
}

// ReviewContextFromContext collects whatever identifiers the context holds.
func ReviewContextFromContext(ctx context.Context) ReviewContext {
	workflowID, runID := WorkflowFromContext(ctx)
	return ReviewContext{
		RequestID:     RequestIDFromContext(ctx),
		CorrelationID: CorrelationIDFromContext(ctx),
		WorkflowID:    workflowID,
		RunID:         runID,
	}
}
