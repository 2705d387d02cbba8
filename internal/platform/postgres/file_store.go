package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/store"
)

// PostgresFileStore implements store.FileStore.
type PostgresFileStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresFileStore creates a project file store.
func NewPostgresFileStore(db store.DBTX, logger *slog.Logger) *PostgresFileStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresFileStore{db: db, logger: logger.With(slog.String("component", "file_store"))}
}

var _ store.FileStore = (*PostgresFileStore)(nil)

// ListPending implements store.FileStore.ListPending
func (s *PostgresFileStore) ListPending(ctx context.Context, projectID string) ([]domain.ProjectFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, name, path, status FROM project_files
		WHERE project_id = $1 AND status = $2
		ORDER BY name, id
	`, projectID, domain.FileStatusPending)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var files []domain.ProjectFile
	for rows.Next() {
		var f domain.ProjectFile
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Name, &f.Path, &f.Status); err != nil {
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// MarkProcessed implements store.FileStore.MarkProcessed
func (s *PostgresFileStore) MarkProcessed(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE project_files SET status = $2 WHERE id = $1`, id, domain.FileStatusProcessed)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrFileNotFound)
}
