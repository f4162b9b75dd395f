// Package httpserver exposes the literature review REST API.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/scribeworks/litreview-service/internal/database"
	"github.com/scribeworks/litreview-service/internal/observability"
	"github.com/scribeworks/litreview-service/internal/repository"
	"github.com/scribeworks/litreview-service/internal/temporal"
)

// WorkflowClient is the slice of the Temporal client the API needs.
// *temporal.ReviewWorkflowClient satisfies it.
type WorkflowClient interface {
	StartReviewWorkflow(ctx context.Context, input temporal.ReviewWorkflowInput, workflowFunc interface{}) (workflowID, runID string, err error)
	SignalWorkflow(ctx context.Context, workflowID, runID, signalName string, arg interface{}) error
}

// Deps collects everything the server needs beyond its listener config.
type Deps struct {
	WorkflowClient WorkflowClient

	// WorkflowFunc is the Temporal workflow function reference
	// (workflows.LiteratureReviewWorkflow) handed to StartReviewWorkflow.
	WorkflowFunc interface{}

	ReviewRepo   repository.ReviewRepository
	PaperRepo    repository.PaperRepository
	DocumentRepo repository.DocumentRepository
	ProgressRepo repository.ProgressRepository

	DB      *database.DB
	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

// Server serves the REST API.
type Server struct {
	router         chi.Router
	httpServer     *http.Server
	workflowClient WorkflowClient
	workflowFunc   interface{}
	reviewRepo     repository.ReviewRepository
	paperRepo      repository.PaperRepository
	documentRepo   repository.DocumentRepository
	progressRepo   repository.ProgressRepository
	db             *database.DB
	pool           *pgxpool.Pool
	metrics        *observability.Metrics
	logger         zerolog.Logger
}

// Config holds the listener settings.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer wires the router and http.Server but does not start listening.
func NewServer(cfg Config, deps Deps) *Server {
	s := &Server{
		workflowClient: deps.WorkflowClient,
		workflowFunc:   deps.WorkflowFunc,
		reviewRepo:     deps.ReviewRepo,
		paperRepo:      deps.PaperRepo,
		documentRepo:   deps.DocumentRepo,
		progressRepo:   deps.ProgressRepo,
		db:             deps.DB,
		metrics:        deps.Metrics,
		logger:         deps.Logger.With().Str("component", "http-server").Logger(),
	}
	if deps.DB != nil {
		s.pool = deps.DB.Pool()
	}

	s.router = s.buildRouter()
	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(jsonContentTypeMiddleware)

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/literature-reviews", s.startLiteratureReview)
		r.Get("/literature-reviews", s.listLiteratureReviews)
		r.Get("/literature-reviews/{requestID}", s.getLiteratureReviewStatus)
		r.Delete("/literature-reviews/{requestID}", s.cancelLiteratureReview)
		r.Get("/literature-reviews/{requestID}/papers", s.getLiteratureReviewPapers)
		r.Get("/literature-reviews/{requestID}/document", s.getLiteratureReviewDocument)
		r.Get("/literature-reviews/{requestID}/events", s.streamProgress)
	})

	return r
}

// Start listens and serves until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "unhealthy",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
}

func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "database": "healthy"})
}

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// Encode errors past this point are unrecoverable; headers are out.
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
