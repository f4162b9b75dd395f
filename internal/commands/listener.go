// Package commands provides a Kafka listener for inbound review commands,
// letting other services cancel running literature reviews without going
// through the HTTP API.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/scribeworks/litreview-service/internal/domain"
	litemporal "github.com/scribeworks/litreview-service/internal/temporal"
)

// CommandCancel requests cancellation of a running review.
const CommandCancel = "cancel"

// ReviewCommand is the message format consumed from the command topic.
type ReviewCommand struct {
	// Command is the command name (currently only "cancel").
	Command string `json:"command"`
	// RequestID is the review request the command applies to.
	RequestID uuid.UUID `json:"request_id"`
	// Reason is an optional human-readable reason.
	Reason string `json:"reason,omitempty"`
	// IssuedBy identifies the issuing service.
	IssuedBy string `json:"issued_by,omitempty"`
}

// workflowSignaler sends signals to running workflows.
type workflowSignaler interface {
	SignalWorkflow(ctx context.Context, workflowID, runID, signalName string, arg interface{}) error
}

// reviewGetter looks up review requests.
type reviewGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.ReviewRequest, error)
}

// messageReader consumes messages from the command topic.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Listener consumes review commands from Kafka and signals the matching
// workflows.
type Listener struct {
	reader     messageReader
	signaler   workflowSignaler
	reviewRepo reviewGetter
	logger     zerolog.Logger
}

// Config holds configuration for the command listener.
type Config struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the Kafka topic carrying review commands.
	Topic string
	// GroupID is the consumer group ID.
	GroupID string
}

// NewListener creates a command listener reading from Kafka.
func NewListener(cfg Config, signaler workflowSignaler, reviewRepo reviewGetter, logger zerolog.Logger) *Listener {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  3 * time.Second,
	})

	return &Listener{
		reader:     reader,
		signaler:   signaler,
		reviewRepo: reviewRepo,
		logger:     logger.With().Str("component", "command_listener").Logger(),
	}
}

// Run starts the listener loop. Blocks until the context is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info().Msg("starting command listener")

	for {
		msg, err := l.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info().Msg("command listener stopped via context cancellation")
				return ctx.Err()
			}
			l.logger.Error().Err(err).Msg("failed to read message from kafka")
			continue
		}

		l.logger.Debug().
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("received review command")

		var cmd ReviewCommand
		if err := json.Unmarshal(msg.Value, &cmd); err != nil {
			l.logger.Error().Err(err).
				Str("raw_value", string(msg.Value)).
				Msg("failed to unmarshal review command")
			continue
		}

		if err := l.handleCommand(ctx, cmd); err != nil {
			l.logger.Error().Err(err).
				Str("command", cmd.Command).
				Str("request_id", cmd.RequestID.String()).
				Msg("failed to handle review command")
		}
	}
}

// handleCommand dispatches a single review command.
func (l *Listener) handleCommand(ctx context.Context, cmd ReviewCommand) error {
	switch cmd.Command {
	case CommandCancel:
		return l.handleCancel(ctx, cmd)
	default:
		l.logger.Warn().
			Str("command", cmd.Command).
			Str("request_id", cmd.RequestID.String()).
			Msg("ignoring unknown review command")
		return nil
	}
}

// handleCancel signals cancellation to the review's workflow.
func (l *Listener) handleCancel(ctx context.Context, cmd ReviewCommand) error {
	if cmd.RequestID == uuid.Nil {
		return fmt.Errorf("cancel command has no request ID")
	}

	review, err := l.reviewRepo.Get(ctx, cmd.RequestID)
	if err != nil {
		return fmt.Errorf("get review %s: %w", cmd.RequestID, err)
	}

	if review.Status.IsTerminal() {
		l.logger.Debug().
			Str("request_id", cmd.RequestID.String()).
			Str("status", string(review.Status)).
			Msg("review already terminal, ignoring cancel command")
		return nil
	}

	workflowID := review.TemporalWorkflowID
	if workflowID == "" {
		l.logger.Warn().
			Str("request_id", cmd.RequestID.String()).
			Msg("review has no workflow ID, skipping cancel command")
		return nil
	}

	reason := cmd.Reason
	if reason == "" && cmd.IssuedBy != "" {
		reason = "cancelled by " + cmd.IssuedBy
	}

	// Empty run ID targets the latest run.
	err = l.signaler.SignalWorkflow(ctx, workflowID, "",
		litemporal.SignalCancel, litemporal.CancelRequest{Reason: reason})
	if err != nil {
		return fmt.Errorf("signal workflow %s: %w", workflowID, err)
	}

	l.logger.Info().
		Str("request_id", cmd.RequestID.String()).
		Str("workflow_id", workflowID).
		Msg("sent cancel signal to workflow")
	return nil
}

// Close closes the Kafka reader.
func (l *Listener) Close() error {
	l.logger.Info().Msg("closing command listener")
	return l.reader.Close()
}
