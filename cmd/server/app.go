package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/dataset-forge/internal/api"
	"github.com/phrazzld/dataset-forge/internal/config"
	"github.com/phrazzld/dataset-forge/internal/events"
	"github.com/phrazzld/dataset-forge/internal/generation"
	"github.com/phrazzld/dataset-forge/internal/llm"
	"github.com/phrazzld/dataset-forge/internal/platform/gemini"
	"github.com/phrazzld/dataset-forge/internal/platform/ollama"
	"github.com/phrazzld/dataset-forge/internal/platform/postgres"
	"github.com/phrazzld/dataset-forge/internal/service/auth"
	"github.com/phrazzld/dataset-forge/internal/task"
)

// engine is the task engine as the server drives it.
type engine interface {
	api.TaskService
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// application holds the shared dependencies of the server and owns their
// shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	jwtService auth.JWTService
	tasks      api.TaskReader
	engine     engine
}

// newApplication wires stores, model providers, generation services and
// the task engine. The engine is not started.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	taskStore := postgres.NewPostgresTaskStore(db, logger)
	stores := task.Stores{
		Chunks:        postgres.NewPostgresChunkStore(db, logger),
		Questions:     postgres.NewPostgresQuestionStore(db, logger),
		Datasets:      postgres.NewPostgresDatasetStore(db, logger),
		Conversations: postgres.NewPostgresConversationStore(db, logger),
		Tags:          postgres.NewPostgresTagStore(db, logger),
		Images:        postgres.NewPostgresImageStore(db, logger),
		Evals:         postgres.NewPostgresEvalStore(db, logger),
		Files:         postgres.NewPostgresFileStore(db, logger),
	}

	router := llm.NewRouter(llm.RouterConfigFrom(cfg.LLM), logger,
		gemini.NewProvider(cfg.LLM, logger),
		ollama.NewProvider(cfg.LLM, logger),
	)
	logger.Info("LLM providers registered",
		"default_provider", cfg.LLM.DefaultProvider,
		"max_retries", cfg.LLM.MaxRetries)

	svc := generation.NewService(router, generation.Stores{
		Chunks:        stores.Chunks,
		Questions:     stores.Questions,
		Datasets:      stores.Datasets,
		Conversations: stores.Conversations,
		Tags:          stores.Tags,
		Images:        stores.Images,
		Evals:         stores.Evals,
		Files:         stores.Files,
	}, generation.DefaultConfig(), logger)

	registry := task.NewDefaultRegistry(stores, task.Services{
		Questions:      svc,
		Answers:        svc,
		Cleaner:        svc,
		Evaluator:      svc,
		Conversations:  svc,
		Tags:           svc,
		TagQuestions:   svc,
		ImageQuestions: svc,
		EvalQuestions:  svc,
		ModelEvaluator: svc,
		Files:          svc,
	})

	dispatcher := task.NewDispatcher(
		taskStore,
		postgres.NewPostgresProjectConfigStore(db, logger),
		registry,
		task.DispatcherConfig{
			DefaultConcurrency: cfg.Task.ConcurrencyLimit,
			MaxErrorDetails:    cfg.Task.MaxErrorDetails,
			NoteMaxLength:      cfg.Task.NoteMaxLength,
		},
		logger,
	)

	emitter := events.NewInMemoryEventEmitter(logger)
	eng := task.NewEngine(taskStore, dispatcher, registry, emitter, logger)
	emitter.RegisterHandler(eng)

	logger.Info("application initialized", "task_types", len(registry.Types()))
	return &application{
		config:     cfg,
		logger:     logger,
		db:         db,
		jwtService: jwtService,
		tasks:      taskStore,
		engine:     eng,
	}, nil
}

// Run starts the engine, serves HTTP until ctx is done and then shuts
// everything down.
func (app *application) Run(ctx context.Context) error {
	if err := app.engine.Start(ctx); err != nil {
		app.cleanup()
		return fmt.Errorf("failed to start task engine: %w", err)
	}

	err := app.startHTTPServer(ctx, app.setupRouter())
	app.cleanup()
	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup stops the engine, leaving unfinished runs for the next start,
// and closes the database.
func (app *application) cleanup() {
	timeout := time.Duration(app.config.Task.ShutdownTimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := app.engine.Stop(ctx); err != nil {
		app.logger.Warn("task runs still active at shutdown", "error", err)
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}
	app.logger.Info("application shutdown completed")
}
