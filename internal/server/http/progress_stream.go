package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/scribeworks/litreview-service/internal/domain"
	"github.com/scribeworks/litreview-service/internal/repository"
)

const (
	// ssePollInterval is how often we poll the DB for authoritative state.
	ssePollInterval = 2 * time.Second
	// sseMaxDuration is the maximum time an SSE stream may remain open.
	sseMaxDuration = 4 * time.Hour
)

// sseEvent represents an event sent via SSE.
type sseEvent struct {
	EventType string                 `json:"event_type"`
	RequestID string                 `json:"request_id"`
	Status    string                 `json:"status,omitempty"`
	Progress  *progressResponse      `json:"progress,omitempty"`
	EventData map[string]interface{} `json:"event_data,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// streamProgress handles GET /literature-reviews/{requestID}/events (SSE).
// Live events arrive over the request's Postgres NOTIFY channel; the DB poll
// backstops dropped notifications and is what decides the stream is done.
func (s *Server) streamProgress(w http.ResponseWriter, r *http.Request) {
	requestID, ok := parseUUID(w, chi.URLParam(r, "requestID"), "request_id")
	if !ok {
		return
	}

	review, err := s.reviewRepo.Get(r.Context(), requestID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	writeSSEHeaders(w)

	// A review that already finished gets a single event and no stream.
	if review.Status.IsTerminal() {
		sendSSEEvent(w, flusher, terminalSSEEvent(review, "review is in terminal state"))
		return
	}

	if s.metrics != nil {
		s.metrics.SSEStreamsActive.Inc()
		defer s.metrics.SSEStreamsActive.Dec()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	notifyCh := make(chan sseEvent, 100)
	if s.pool != nil {
		go s.listenForNotifications(ctx, requestID, notifyCh)
	}

	sendSSEEvent(w, flusher, sseEvent{
		EventType: "stream_started",
		RequestID: requestID.String(),
		Status:    string(review.Status),
		Progress:  buildProgressData(review),
		Message:   "progress stream started",
		Timestamp: time.Now(),
	})

	lastSeen := time.Now()

	deadlineTimer := time.NewTimer(sseMaxDuration)
	defer deadlineTimer.Stop()
	ticker := time.NewTicker(ssePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-deadlineTimer.C:
			sendSSEEvent(w, flusher, sseEvent{
				EventType: "timeout",
				RequestID: requestID.String(),
				Message:   "stream max duration exceeded",
				Timestamp: time.Now(),
			})
			return

		case event := <-notifyCh:
			lastSeen = event.Timestamp
			sendSSEEvent(w, flusher, event)
			if isTerminalEventType(event.EventType) {
				return
			}

		case <-ticker.C:
			lastSeen = s.replayMissedEvents(ctx, w, flusher, requestID, lastSeen)
			if done := s.pollReviewState(ctx, w, flusher, requestID); done {
				return
			}
		}
	}
}

// replayMissedEvents re-reads persisted progress events newer than lastSeen
// and emits them, returning the new watermark.
func (s *Server) replayMissedEvents(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, requestID uuid.UUID, lastSeen time.Time) time.Time {
	if s.progressRepo == nil {
		return lastSeen
	}

	events, err := s.progressRepo.ListSince(ctx, requestID, lastSeen)
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", requestID.String()).Msg("failed to poll progress events")
		return lastSeen
	}

	for _, ev := range events {
		lastSeen = ev.CreatedAt
		sendSSEEvent(w, flusher, sseEvent{
			EventType: ev.EventType,
			RequestID: requestID.String(),
			EventData: ev.EventData,
			Timestamp: ev.CreatedAt,
		})
	}
	return lastSeen
}

// pollReviewState emits the current review state and reports whether the
// review reached a terminal status.
func (s *Server) pollReviewState(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, requestID uuid.UUID) bool {
	current, err := s.reviewRepo.Get(ctx, requestID)
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", requestID.String()).Msg("failed to poll review status")
		return false
	}

	if current.Status.IsTerminal() {
		sendSSEEvent(w, flusher, terminalSSEEvent(current, "review completed with status: "+string(current.Status)))
		return true
	}

	sendSSEEvent(w, flusher, sseEvent{
		EventType: "progress_update",
		RequestID: current.ID.String(),
		Status:    string(current.Status),
		Progress:  buildProgressData(current),
		Message:   "status: " + string(current.Status),
		Timestamp: time.Now(),
	})
	return false
}

// listenForNotifications holds a dedicated connection on LISTEN for the
// request's progress channel and forwards payloads to out.
func (s *Server) listenForNotifications(ctx context.Context, requestID uuid.UUID, out chan<- sseEvent) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to acquire connection for LISTEN")
		return
	}
	defer conn.Release()

	channel := repository.ProgressChannel(requestID)
	sanitizedChannel := pgx.Identifier{channel}.Sanitize()

	// LISTEN must run on the raw pgx connection, not the pooled wrapper.
	pgConn := conn.Conn()
	if _, execErr := pgConn.Exec(ctx, fmt.Sprintf("LISTEN %s", sanitizedChannel)); execErr != nil {
		s.logger.Error().Err(execErr).Str("channel", channel).Msg("LISTEN failed")
		return
	}
	defer func() {
		_, _ = pgConn.Exec(context.Background(), fmt.Sprintf("UNLISTEN %s", sanitizedChannel))
	}()

	for {
		notification, waitErr := pgConn.WaitForNotification(ctx)
		if waitErr != nil {
			return
		}

		var progressEvent domain.ReviewProgressEvent
		if unmarshalErr := json.Unmarshal([]byte(notification.Payload), &progressEvent); unmarshalErr != nil {
			s.logger.Warn().Err(unmarshalErr).Msg("failed to parse notification payload")
			continue
		}

		event := notificationToSSEEvent(requestID, progressEvent)

		select {
		case out <- event:
		case <-ctx.Done():
			return
		default:
			// Never let a slow reader stall WaitForNotification.
			s.logger.Warn().
				Str("request_id", requestID.String()).
				Str("event_type", event.EventType).
				Msg("SSE notification channel full, dropping event")
		}
	}
}

// notificationToSSEEvent carries the persisted creation time into the SSE
// event so the poll watermark compares against the same clock ListSince
// uses. Oversized payloads arrive trimmed without created_at; those fall
// back to receive time.
func notificationToSSEEvent(requestID uuid.UUID, progressEvent domain.ReviewProgressEvent) sseEvent {
	ts := progressEvent.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return sseEvent{
		EventType: progressEvent.EventType,
		RequestID: requestID.String(),
		EventData: progressEvent.EventData,
		Timestamp: ts,
	}
}

func writeSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

func terminalSSEEvent(review *domain.ReviewRequest, message string) sseEvent {
	return sseEvent{
		EventType: "completed",
		RequestID: review.ID.String(),
		Status:    string(review.Status),
		Progress:  buildProgressData(review),
		Message:   message,
		Timestamp: time.Now(),
	}
}

// sendSSEEvent writes one event in wire format and flushes it immediately.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event sseEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.EventType, data)
	flusher.Flush()
}

func buildProgressData(r *domain.ReviewRequest) *progressResponse {
	return &progressResponse{
		CandidatesFound: r.CandidatesFound,
		PapersSelected:  r.PapersSelected,
		PapersReviewed:  r.PapersReviewed,
		PapersFailed:    r.PapersFailedCount,
	}
}

func isTerminalEventType(eventType string) bool {
	switch eventType {
	case "completed", domain.EventTypeReviewComplete, domain.EventTypeReviewFailed, domain.EventTypeReviewCancel:
		return true
	default:
		return false
	}
}
