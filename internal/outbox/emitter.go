package outbox

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/scribeworks/litreview-service/internal/domain"
)

const (
	// AggregateTypeReview is the aggregate type for review lifecycle events.
	AggregateTypeReview = "review"

	// defaultServiceName identifies this service in event metadata.
	defaultServiceName = "litreview-service"
)

// EmitterConfig configures the Emitter with service context.
type EmitterConfig struct {
	// ServiceName identifies the source service in event metadata.
	ServiceName string
}

// EmitParams contains the parameters for emitting an event.
type EmitParams struct {
	// RequestID is the review request ID (aggregate ID).
	RequestID uuid.UUID
	// EventType is the type of event (e.g. "review.started").
	EventType string
	// Payload is the event payload, JSON-serialized into the event.
	Payload interface{}
	// CorrelationID for request tracing (optional).
	CorrelationID string
}

// Emitter creates outbox events enriched with service metadata.
type Emitter struct {
	config EmitterConfig
}

// NewEmitter creates a new Emitter with the given service configuration.
func NewEmitter(config EmitterConfig) *Emitter {
	if config.ServiceName == "" {
		config.ServiceName = defaultServiceName
	}
	return &Emitter{config: config}
}

// Emit creates an outbox event from the given parameters. The event is
// ready to be inserted into the outbox table.
func (e *Emitter) Emit(params EmitParams) (*domain.OutboxEvent, error) {
	if params.RequestID == uuid.Nil {
		return nil, fmt.Errorf("request_id is required")
	}
	if params.EventType == "" {
		return nil, fmt.Errorf("event_type is required")
	}

	event, err := domain.NewOutboxEvent(params.EventType, params.RequestID.String(), AggregateTypeReview, params.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	metadata := map[string]interface{}{
		"source": e.config.ServiceName,
	}
	if params.CorrelationID != "" {
		metadata["correlation_id"] = params.CorrelationID
	}
	event.WithMetadata(metadata)

	return event, nil
}

// EmitReviewStarted is a convenience method for emitting review.started events.
func (e *Emitter) EmitReviewStarted(requestID uuid.UUID, payload interface{}) (*domain.OutboxEvent, error) {
	return e.Emit(EmitParams{RequestID: requestID, EventType: domain.EventTypeReviewStarted, Payload: payload})
}

// EmitReviewCompleted is a convenience method for emitting review.completed events.
func (e *Emitter) EmitReviewCompleted(requestID uuid.UUID, payload interface{}) (*domain.OutboxEvent, error) {
	return e.Emit(EmitParams{RequestID: requestID, EventType: domain.EventTypeReviewComplete, Payload: payload})
}

// EmitReviewFailed is a convenience method for emitting review.failed events.
func (e *Emitter) EmitReviewFailed(requestID uuid.UUID, payload interface{}) (*domain.OutboxEvent, error) {
	return e.Emit(EmitParams{RequestID: requestID, EventType: domain.EventTypeReviewFailed, Payload: payload})
}

// EmitReviewCancelled is a convenience method for emitting review.cancelled events.
func (e *Emitter) EmitReviewCancelled(requestID uuid.UUID, payload interface{}) (*domain.OutboxEvent, error) {
	return e.Emit(EmitParams{RequestID: requestID, EventType: domain.EventTypeReviewCancel, Payload: payload})
}

// EmitProgressUpdated is a convenience method for emitting review.progress_updated events.
func (e *Emitter) EmitProgressUpdated(requestID uuid.UUID, payload interface{}) (*domain.OutboxEvent, error) {
	return e.Emit(EmitParams{RequestID: requestID, EventType: domain.EventTypeProgress, Payload: payload})
}
