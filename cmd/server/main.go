// Package main is the entry point for the literature review API server.
//
// The server exposes the REST API and the progress stream. It starts Temporal
// workflows for new review requests but does not execute them; that is the
// worker's job (see cmd/worker).
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.temporal.io/sdk/client"

	"github.com/scribeworks/litreview-service/internal/config"
	"github.com/scribeworks/litreview-service/internal/database"
	"github.com/scribeworks/litreview-service/internal/observability"
	"github.com/scribeworks/litreview-service/internal/repository"
	httpserver "github.com/scribeworks/litreview-service/internal/server/http"
	litemporal "github.com/scribeworks/litreview-service/internal/temporal"
	"github.com/scribeworks/litreview-service/internal/temporal/workflows"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine; real deployments set env vars directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().
		Str("http_address", cfg.Server.HTTPAddress()).
		Str("temporal_host", cfg.Temporal.HostPort).
		Msg("starting literature review server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		if err := migrator.Up(); err != nil {
			migrator.Close()
			return fmt.Errorf("run migrations: %w", err)
		}
		if err := migrator.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close migrator")
		}
		logger.Info().Msg("database migrations applied")
	}

	reviewRepo := repository.NewPgReviewRepository(db.Pool())
	paperRepo := repository.NewPgPaperRepository(db.Pool())
	documentRepo := repository.NewPgDocumentRepository(db.Pool())
	progressRepo := repository.NewPgProgressRepository(db.Pool())

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    observability.NewTemporalLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("connect to temporal: %w", err)
	}
	defer temporalClient.Close()
	logger.Info().
		Str("namespace", cfg.Temporal.Namespace).
		Str("task_queue", cfg.Temporal.TaskQueue).
		Msg("temporal client connected")

	workflowClient := litemporal.NewReviewWorkflowClient(temporalClient, cfg.Temporal.TaskQueue)

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics("litreview")
	}

	// WriteTimeout must accommodate long-lived progress streams.
	writeTimeout := cfg.Server.WriteTimeout
	if writeTimeout < 5*time.Minute {
		writeTimeout = 5 * time.Minute
	}

	srv := httpserver.NewServer(
		httpserver.Config{
			Address:         cfg.Server.HTTPAddress(),
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    writeTimeout,
			IdleTimeout:     2 * writeTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		},
		httpserver.Deps{
			WorkflowClient: workflowClient,
			WorkflowFunc:   workflows.LiteratureReviewWorkflow,
			ReviewRepo:     reviewRepo,
			PaperRepo:      paperRepo,
			DocumentRepo:   documentRepo,
			ProgressRepo:   progressRepo,
			DB:             db,
			Metrics:        metrics,
			Logger:         logger,
		},
	)

	errCh := make(chan error, 2)

	go func() {
		logger.Info().Str("address", cfg.Server.HTTPAddress()).Msg("http server listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsPath := cfg.Metrics.Path
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		mux := http.NewServeMux()
		mux.Handle(metricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server failed")
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown failed")
		}
	}

	logger.Info().Msg("server stopped")
	return nil
}
