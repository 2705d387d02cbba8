package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/store"
)

// PostgresImageStore implements store.ImageStore.
type PostgresImageStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresImageStore creates an image store.
func NewPostgresImageStore(db store.DBTX, logger *slog.Logger) *PostgresImageStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresImageStore{db: db, logger: logger.With(slog.String("component", "image_store"))}
}

var _ store.ImageStore = (*PostgresImageStore)(nil)

// ListByProject implements store.ImageStore.ListByProject
func (s *PostgresImageStore) ListByProject(ctx context.Context, projectID string) ([]domain.Image, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, name, path, mime_type FROM images WHERE project_id = $1 ORDER BY name, id`,
		projectID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var images []domain.Image
	for rows.Next() {
		var img domain.Image
		if err := rows.Scan(&img.ID, &img.ProjectID, &img.Name, &img.Path, &img.MimeType); err != nil {
			return nil, fmt.Errorf("failed to scan image row: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// Get implements store.ImageStore.Get
func (s *PostgresImageStore) Get(ctx context.Context, id string) (*domain.Image, error) {
	var img domain.Image
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, name, path, mime_type FROM images WHERE id = $1`, id,
	).Scan(&img.ID, &img.ProjectID, &img.Name, &img.Path, &img.MimeType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrImageNotFound
	}
	if err != nil {
		return nil, MapError(err)
	}
	return &img, nil
}
