package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/platform/logger"
	"github.com/phrazzld/dataset-forge/internal/store"
)

// PostgresProjectConfigStore implements store.ProjectConfigStore.
type PostgresProjectConfigStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresProjectConfigStore creates a project config store.
func NewPostgresProjectConfigStore(db store.DBTX, logger *slog.Logger) *PostgresProjectConfigStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresProjectConfigStore{
		db:     db,
		logger: logger.With(slog.String("component", "project_config_store")),
	}
}

var _ store.ProjectConfigStore = (*PostgresProjectConfigStore)(nil)

// GetTaskConfig implements store.ProjectConfigStore.GetTaskConfig
func (s *PostgresProjectConfigStore) GetTaskConfig(ctx context.Context, projectID string) (domain.TaskConfig, error) {
	cfg := domain.TaskConfig{ProjectID: projectID}
	err := s.db.QueryRowContext(ctx,
		`SELECT concurrency_limit FROM project_task_config WHERE project_id = $1`,
		projectID,
	).Scan(&cfg.ConcurrencyLimit)
	if errors.Is(err, sql.ErrNoRows) {
		return cfg, nil
	}
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to load task config",
			slog.String("error", err.Error()),
			slog.String("project_id", projectID))
		return cfg, MapError(err)
	}
	return cfg, nil
}

// SaveTaskConfig implements store.ProjectConfigStore.SaveTaskConfig
func (s *PostgresProjectConfigStore) SaveTaskConfig(ctx context.Context, cfg domain.TaskConfig) error {
	if cfg.ProjectID == "" {
		return domain.NewValidationError("project_id", "cannot be empty", domain.ErrValidation)
	}
	if cfg.ConcurrencyLimit <= 0 {
		return domain.NewValidationError("concurrency_limit", "must be positive", domain.ErrValidation)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_task_config (project_id, concurrency_limit)
		VALUES ($1, $2)
		ON CONFLICT (project_id) DO UPDATE SET concurrency_limit = EXCLUDED.concurrency_limit
	`, cfg.ProjectID, cfg.ConcurrencyLimit)
	return MapError(err)
}
