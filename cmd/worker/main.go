// Package main is the entry point for the literature review worker.
//
// The worker hosts the review workflow and its activities: query crafting,
// paper search, selection, per-paper reviewing, and persistence. It also runs
// the outbox relay that publishes domain events to Kafka.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"

	"github.com/scribeworks/litreview-service/internal/agents"
	"github.com/scribeworks/litreview-service/internal/commands"
	"github.com/scribeworks/litreview-service/internal/config"
	"github.com/scribeworks/litreview-service/internal/database"
	"github.com/scribeworks/litreview-service/internal/domain"
	"github.com/scribeworks/litreview-service/internal/llm"
	"github.com/scribeworks/litreview-service/internal/observability"
	"github.com/scribeworks/litreview-service/internal/outbox"
	"github.com/scribeworks/litreview-service/internal/papersources"
	"github.com/scribeworks/litreview-service/internal/papersources/arxiv"
	"github.com/scribeworks/litreview-service/internal/repository"
	litemporal "github.com/scribeworks/litreview-service/internal/temporal"
	"github.com/scribeworks/litreview-service/internal/temporal/activities"
	"github.com/scribeworks/litreview-service/internal/temporal/resilience"
	"github.com/scribeworks/litreview-service/internal/temporal/workflows"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "worker error: %v\n", err)
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
	logger = logger.With().Str("component", "worker").Logger()
	logger.Info().
		Str("temporal_host", cfg.Temporal.HostPort).
		Str("task_queue", cfg.Temporal.TaskQueue).
		Msg("starting literature review worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	reviewRepo := repository.NewPgReviewRepository(db.Pool())
	paperRepo := repository.NewPgPaperRepository(db.Pool())
	documentRepo := repository.NewPgDocumentRepository(db.Pool())
	progressRepo := repository.NewPgProgressRepository(db.Pool())
	outboxRepo := repository.NewPgOutboxRepository(db.Pool())

	registry := papersources.NewRegistry()
	if cfg.PaperSources.ArXiv.Enabled {
		registry.Register(arxiv.New(arxiv.Config{
			BaseURL:    cfg.PaperSources.ArXiv.BaseURL,
			Timeout:    cfg.PaperSources.ArXiv.Timeout,
			RateLimit:  cfg.PaperSources.ArXiv.RateLimit,
			MaxResults: cfg.PaperSources.ArXiv.MaxResults,
			Enabled:    true,
		}))
		logger.Info().Str("source", "arxiv").Msg("paper source registered")
	}

	llmClient, err := llm.NewClient(ctx, llm.FactoryConfig{
		Provider:    cfg.LLM.Provider,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
		Gemini: llm.GeminiConfig{
			APIKey: cfg.LLM.Gemini.APIKey,
			Model:  cfg.LLM.Gemini.Model,
		},
		OpenAI: llm.OpenAIConfig{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			Model:   cfg.LLM.OpenAI.Model,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
		},
	})
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}
	logger.Info().Str("provider", cfg.LLM.Provider).Msg("llm client ready")

	arxivSource := registry.Get(domain.SourceTypeArXiv)
	if arxivSource == nil {
		return fmt.Errorf("no arxiv paper source registered; enable it in config")
	}

	searchAgent := agents.NewSearchAgent(llmClient, arxivSource, agents.SearchAgentConfig{
		OverfetchFactor: cfg.Review.OverfetchFactor,
		MaxResults:      cfg.Review.MaxResults,
		Temperature:     cfg.LLM.Temperature,
	}, logger)

	reviewAgent := agents.NewReviewAgent(llmClient, agents.ReviewAgentConfig{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, logger)

	metrics := observability.NewMetrics("litreview")

	emitter := outbox.NewEmitter(outbox.EmitterConfig{ServiceName: "litreview-worker"})

	agentActivities := activities.NewAgentActivities(searchAgent, reviewAgent, metrics)
	searchActivities := activities.NewSearchActivities(registry, resilience.NewBreakerRegistry(), metrics)
	persistenceActivities := activities.NewPersistenceActivities(
		reviewRepo, paperRepo, documentRepo, progressRepo, outboxRepo, emitter, metrics)

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    observability.NewTemporalLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("connect to temporal: %w", err)
	}
	defer temporalClient.Close()
	logger.Info().Str("namespace", cfg.Temporal.Namespace).Msg("temporal client connected")

	manager, err := litemporal.NewWorkerManager(temporalClient, litemporal.DefaultWorkerConfig(cfg.Temporal.TaskQueue))
	if err != nil {
		return fmt.Errorf("create worker: %w", err)
	}

	manager.RegisterWorkflow(workflows.LiteratureReviewWorkflow)
	manager.RegisterActivity(agentActivities)
	manager.RegisterActivity(searchActivities)
	manager.RegisterActivity(persistenceActivities)

	if cfg.Kafka.Enabled {
		publisher := outbox.NewKafkaPublisher(cfg.Kafka)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn().Err(err).Msg("failed to close kafka publisher")
			}
		}()

		relay := outbox.NewRelay(db, outboxRepo, publisher, cfg.Outbox, logger)
		relay.Start(ctx)
		defer relay.Stop()
		logger.Info().
			Strs("brokers", cfg.Kafka.Brokers).
			Str("topic", cfg.Kafka.Topic).
			Msg("outbox relay started")
	}

	if cfg.Kafka.Enabled && cfg.Kafka.CommandTopic != "" {
		listener := commands.NewListener(commands.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.CommandTopic,
			GroupID: cfg.Kafka.CommandGroupID,
		}, temporalClient, reviewRepo, logger)
		defer func() {
			if err := listener.Close(); err != nil {
				logger.Warn().Err(err).Msg("failed to close command listener")
			}
		}()

		go func() {
			if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("command listener stopped")
			}
		}()
		logger.Info().Str("topic", cfg.Kafka.CommandTopic).Msg("command listener started")
	}

	logger.Info().Msg("worker started")
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("run worker: %w", err)
	}

	logger.Info().Msg("worker stopped")
	return nil
}
