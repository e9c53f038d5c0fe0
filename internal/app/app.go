package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"LegisImport/internal/config"
	"LegisImport/internal/coverage"
	"LegisImport/internal/infrastructure/enrich"
	"LegisImport/internal/infrastructure/mappers"
	"LegisImport/internal/infrastructure/storage"
	"LegisImport/internal/infrastructure/telegram"
	"LegisImport/internal/mapper"
	"LegisImport/internal/ports"
	"LegisImport/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	db     *sql.DB
	store  *storage.PostgresStore
	runner *usecase.Runner
	logger *slog.Logger
}

// New builds a runnable application instance connected to Postgres.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	store, db, err := storage.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	registry := mapper.NewRegistry()
	mappers.RegisterAll(registry)

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.BotToken != "" {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	var enricher ports.Enricher
	if cfg.Enrichment.Endpoint != "" && !cfg.Importer.SkipEnrichment {
		enricher = enrich.NewClient(cfg.Enrichment.Endpoint, cfg.Enrichment.APIKey)
	}

	runner := usecase.NewRunner(usecase.RunnerDeps{
		Store:     store,
		Registry:  registry,
		Validator: coverage.NewValidator(baseLogger.With("component", "coverage"), cfg.Importer.MaxUnmappedLogged),
		Enricher:  enricher,
		Notifier:  notifier,
		Logger:    baseLogger.With("component", "runner"),
	})

	return &Application{
		cfg:    cfg,
		db:     db,
		store:  store,
		runner: runner,
		logger: baseLogger,
	}, nil
}

// Runner exposes the import runner for the CLI.
func (a *Application) Runner() *usecase.Runner {
	return a.runner
}

// Store exposes the store for read-side consumers (provenance).
func (a *Application) Store() *storage.PostgresStore {
	return a.store
}

// Import discovers the configured input directory and runs one batch
// import over it.
func (a *Application) Import(ctx context.Context, opts usecase.Options) (usecase.RunSummary, error) {
	files, err := usecase.DiscoverFiles(a.cfg.Importer.InputDir)
	if err != nil {
		return usecase.RunSummary{}, err
	}
	if a.cfg.Importer.SkipEnrichment {
		for i := range files {
			files[i].SkipEnrichment = true
		}
	}
	return a.runner.Run(ctx, files, opts)
}

// Close releases the database connection.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
