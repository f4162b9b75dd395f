// Command migrate manages the service's database schema.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/scribeworks/litreview-service/internal/config"
	"github.com/scribeworks/litreview-service/internal/database"
	"github.com/scribeworks/litreview-service/internal/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type action struct {
	name  string
	steps int
	force int
}

func pickAction(up, down, version bool, steps, force int) (action, error) {
	var chosen []action
	if up {
		chosen = append(chosen, action{name: "up"})
	}
	if down {
		chosen = append(chosen, action{name: "down"})
	}
	if steps != 0 {
		chosen = append(chosen, action{name: "steps", steps: steps})
	}
	if version {
		chosen = append(chosen, action{name: "version"})
	}
	if force >= 0 {
		chosen = append(chosen, action{name: "force", force: force})
	}

	switch len(chosen) {
	case 0:
		return action{}, fmt.Errorf("no action specified")
	case 1:
		return chosen[0], nil
	default:
		return action{}, fmt.Errorf("specify only one action at a time")
	}
}

func run() error {
	up := flag.Bool("up", false, "Run all pending migrations")
	down := flag.Bool("down", false, "Roll back all migrations")
	steps := flag.Int("steps", 0, "Run N migration steps (positive=up, negative=down)")
	version := flag.Bool("version", false, "Print the current migration version")
	force := flag.Int("force", -1, "Force set migration version (use to recover from failed migrations)")
	migrationsPath := flag.String("path", "", "Override the migrations directory path")
	flag.Parse()

	act, err := pickAction(*up, *down, *version, *steps, *force)
	if err != nil {
		flag.Usage()
		fmt.Fprintln(os.Stderr, "\nPlease specify one of: -up, -down, -steps N, -version, -force V")
		return err
	}

	// A missing .env file is fine; real deployments set env vars directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}).With().Str("component", "migrate").Logger()

	migrationDir := cfg.Database.MigrationPath
	if *migrationsPath != "" {
		migrationDir = *migrationsPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	migrator, err := database.NewMigrator(db, migrationDir, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	if err := execute(migrator, act, logger); err != nil {
		return err
	}
	printVersion(migrator, logger)
	return nil
}

func execute(migrator *database.Migrator, act action, logger zerolog.Logger) error {
	switch act.name {
	case "up":
		if err := migrator.Up(); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
	case "down":
		if err := migrator.Down(); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
	case "steps":
		if err := migrator.Steps(act.steps); err != nil {
			return fmt.Errorf("migrate steps: %w", err)
		}
	case "force":
		logger.Warn().Int("version", act.force).Msg("forcing migration version")
		if err := migrator.Force(act.force); err != nil {
			return fmt.Errorf("force version: %w", err)
		}
	case "version":
		// printVersion runs after every action.
	}
	return nil
}

func printVersion(migrator *database.Migrator, logger zerolog.Logger) {
	v, dirty, err := migrator.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("could not determine migration version")
		return
	}
	logger.Info().
		Uint("version", v).
		Bool("dirty", dirty).
		Msg("current migration version")
}
