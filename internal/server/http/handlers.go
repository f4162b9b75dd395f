package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/scribeworks/litreview-service/internal/domain"
	"github.com/scribeworks/litreview-service/internal/repository"
	"github.com/scribeworks/litreview-service/internal/temporal"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
	minTopicLength  = 3
	maxTopicLength  = 10000

	// maxRequestBodySize caps request bodies at 1 MB.
	maxRequestBodySize = 1 << 20
)

// startReviewRequest is the POST /literature-reviews body.
type startReviewRequest struct {
	Topic      string   `json:"topic"`
	PaperCount *int     `json:"paper_count,omitempty"`
	Sources    []string `json:"sources,omitempty"`
	DateFrom   *string  `json:"date_from,omitempty"`
	DateTo     *string  `json:"date_to,omitempty"`
	MaxResults *int     `json:"max_results,omitempty"`
	LLMModel   string   `json:"llm_model,omitempty"`
}

// cancelReviewRequest is the optional DELETE body carrying a reason.
type cancelReviewRequest struct {
	Reason string `json:"reason,omitempty"`
}

// startLiteratureReview handles POST /literature-reviews: persist the
// request, then kick off the Temporal workflow.
func (s *Server) startLiteratureReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req startReviewRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	req.Topic = strings.TrimSpace(req.Topic)
	if msg := validateTopic(req.Topic); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	cfg, msg := buildReviewConfiguration(&req)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if err := cfg.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	requestID := uuid.New()
	now := time.Now()
	review := &domain.ReviewRequest{
		ID:            requestID,
		Topic:         req.Topic,
		Status:        domain.ReviewStatusPending,
		Configuration: cfg,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.reviewRepo.Create(ctx, review); err != nil {
		writeDomainError(w, err)
		return
	}

	workflowID, runID, err := s.workflowClient.StartReviewWorkflow(ctx, temporal.ReviewWorkflowInput{
		RequestID: requestID,
		Topic:     req.Topic,
		Config:    cfg,
	}, s.workflowFunc)
	if err != nil {
		// The row was already created; mark it failed so it never sits in
		// pending with no workflow behind it.
		if updateErr := s.reviewRepo.UpdateStatus(ctx, requestID, domain.ReviewStatusFailed, err.Error()); updateErr != nil {
			s.logger.Error().Err(updateErr).Str("request_id", requestID.String()).Msg("failed to mark review failed after workflow start error")
		}
		writeDomainError(w, err)
		return
	}

	// Best-effort; the workflow will also persist these.
	_ = s.reviewRepo.Update(ctx, requestID, func(r *domain.ReviewRequest) error {
		r.TemporalWorkflowID = workflowID
		r.TemporalRunID = runID
		return nil
	})

	if s.metrics != nil {
		s.metrics.ReviewsStarted.Inc()
	}
	s.logger.Info().
		Str("request_id", requestID.String()).
		Str("workflow_id", workflowID).
		Int("requested_papers", cfg.RequestedPapers).
		Msg("literature review started")

	writeJSON(w, http.StatusCreated, startReviewResponse{
		RequestID:  requestID.String(),
		WorkflowID: workflowID,
		RunID:      runID,
		Status:     string(domain.ReviewStatusPending),
		CreatedAt:  now,
		Message:    "literature review started",
	})
}

// validateTopic returns an error message, or "" when the topic is acceptable.
func validateTopic(topic string) string {
	switch {
	case topic == "":
		return "topic is required"
	case !utf8.ValidString(topic):
		return "topic must be valid UTF-8"
	case len(topic) < minTopicLength:
		return fmt.Sprintf("topic must be at least %d characters", minTopicLength)
	case len(topic) > maxTopicLength:
		return fmt.Sprintf("topic must be at most %d characters", maxTopicLength)
	}
	return ""
}

// buildReviewConfiguration layers request overrides on top of the defaults.
// A non-empty second return is a client error message.
func buildReviewConfiguration(req *startReviewRequest) (domain.ReviewConfiguration, string) {
	cfg := domain.DefaultReviewConfiguration()

	if req.LLMModel != "" {
		cfg.LLMModel = req.LLMModel
	}
	if req.PaperCount != nil {
		if !domain.IsAllowedPaperCount(*req.PaperCount) {
			return cfg, fmt.Sprintf("paper_count must be one of %v", domain.PaperCountChoices)
		}
		cfg.RequestedPapers = *req.PaperCount
	}
	if len(req.Sources) > 0 {
		sources := make([]domain.SourceType, len(req.Sources))
		for i, src := range req.Sources {
			st := domain.SourceType(src)
			if !domain.IsValidSourceType(st) {
				return cfg, fmt.Sprintf("unsupported source: %s", src)
			}
			sources[i] = st
		}
		cfg.Sources = sources
	}
	if req.DateFrom != nil {
		t, err := time.Parse(time.RFC3339, *req.DateFrom)
		if err != nil {
			return cfg, "invalid date_from format: expected RFC3339"
		}
		cfg.DateFrom = &t
	}
	if req.DateTo != nil {
		t, err := time.Parse(time.RFC3339, *req.DateTo)
		if err != nil {
			return cfg, "invalid date_to format: expected RFC3339"
		}
		cfg.DateTo = &t
	}
	if req.MaxResults != nil {
		if *req.MaxResults < 1 || *req.MaxResults > 500 {
			return cfg, "max_results must be between 1 and 500"
		}
		cfg.MaxResults = *req.MaxResults
	}

	return cfg, ""
}

// getLiteratureReviewStatus handles GET /literature-reviews/{requestID}.
func (s *Server) getLiteratureReviewStatus(w http.ResponseWriter, r *http.Request) {
	requestID, ok := parseUUID(w, chi.URLParam(r, "requestID"), "request_id")
	if !ok {
		return
	}

	review, err := s.reviewRepo.Get(r.Context(), requestID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainReviewToStatusResponse(review))
}

// cancelLiteratureReview handles DELETE /literature-reviews/{requestID} by
// signalling the workflow. Reviews already in a terminal state get 409.
func (s *Server) cancelLiteratureReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID, ok := parseUUID(w, chi.URLParam(r, "requestID"), "request_id")
	if !ok {
		return
	}

	var cancelReq cancelReviewRequest
	if r.Body != nil {
		defer r.Body.Close()
		if r.ContentLength != 0 {
			// The reason is optional, so a bad body is ignored.
			body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
			if err == nil && len(body) > 0 {
				_ = json.Unmarshal(body, &cancelReq)
			}
		}
	}

	review, err := s.reviewRepo.Get(ctx, requestID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if review.Status.IsTerminal() {
		writeError(w, http.StatusConflict, "review is already in terminal state")
		return
	}

	err = s.workflowClient.SignalWorkflow(ctx, review.TemporalWorkflowID, review.TemporalRunID,
		temporal.SignalCancel, temporal.CancelRequest{Reason: cancelReq.Reason})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.logger.Info().
		Str("request_id", requestID.String()).
		Str("reason", cancelReq.Reason).
		Msg("review cancellation requested")

	writeJSON(w, http.StatusOK, cancelReviewResponse{
		Success:     true,
		Message:     "cancellation requested",
		FinalStatus: string(review.Status),
	})
}

// listLiteratureReviews handles GET /literature-reviews with paging and
// optional status/date filters.
func (s *Server) listLiteratureReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := repository.ReviewFilter{
		Limit:     parsePageSize(r),
		PageToken: q.Get("page_token"),
	}

	// Comma-separated statuses are OR'd together.
	if statusParam := q.Get("status"); statusParam != "" {
		for _, st := range strings.Split(statusParam, ",") {
			filter.Status = append(filter.Status, domain.ReviewStatus(strings.TrimSpace(st)))
		}
	}

	if createdAfter := q.Get("created_after"); createdAfter != "" {
		t, err := time.Parse(time.RFC3339, createdAfter)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid created_after format: expected RFC3339")
			return
		}
		filter.CreatedAfter = &t
	}
	if createdBefore := q.Get("created_before"); createdBefore != "" {
		t, err := time.Parse(time.RFC3339, createdBefore)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid created_before format: expected RFC3339")
			return
		}
		filter.CreatedBefore = &t
	}

	reviews, totalCount, nextToken, err := s.reviewRepo.List(ctx, filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	summaries := make([]reviewSummaryResponse, len(reviews))
	for i, rv := range reviews {
		summaries[i] = domainReviewToSummary(rv)
	}

	writeJSON(w, http.StatusOK, listReviewsResponse{
		Reviews:       summaries,
		NextPageToken: nextToken,
		TotalCount:    int(totalCount),
	})
}

// writeDomainError maps domain and temporal errors onto HTTP statuses.
// Internal detail stays out of the response body.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	case errors.Is(err, domain.ErrCancelled):
		writeError(w, http.StatusConflict, "operation cancelled")
	case errors.Is(err, temporal.ErrWorkflowNotFound):
		writeError(w, http.StatusNotFound, "workflow not found")
	case errors.Is(err, temporal.ErrWorkflowAlreadyStarted):
		writeError(w, http.StatusConflict, "workflow already started")
	case errors.Is(err, temporal.ErrConnectionFailed), errors.Is(err, temporal.ErrClientClosed):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseUUID writes a 400 on bad input. The parse error itself is never
// echoed back.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", fieldName))
		return uuid.Nil, false
	}
	return id, true
}

// parsePageSize reads page_size, clamped to [1, maxPageSize] with a default.
func parsePageSize(r *http.Request) int {
	limit := defaultPageSize
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return limit
}
