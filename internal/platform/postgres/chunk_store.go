package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/platform/logger"
	"github.com/phrazzld/dataset-forge/internal/store"
)

const chunkColumns = `id, project_id, file_id, name, content, cleaned`

// PostgresChunkStore implements store.ChunkStore.
type PostgresChunkStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresChunkStore creates a chunk store.
func NewPostgresChunkStore(db store.DBTX, logger *slog.Logger) *PostgresChunkStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresChunkStore{db: db, logger: logger.With(slog.String("component", "chunk_store"))}
}

var _ store.ChunkStore = (*PostgresChunkStore)(nil)

// ListByProject implements store.ChunkStore.ListByProject
func (s *PostgresChunkStore) ListByProject(ctx context.Context, projectID string) ([]domain.Chunk, error) {
	return s.query(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE project_id = $1 ORDER BY name, id`, projectID)
}

// ListUncleaned implements store.ChunkStore.ListUncleaned
func (s *PostgresChunkStore) ListUncleaned(ctx context.Context, projectID string) ([]domain.Chunk, error) {
	return s.query(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE project_id = $1 AND NOT cleaned ORDER BY name, id`,
		projectID)
}

// Get implements store.ChunkStore.Get
func (s *PostgresChunkStore) Get(ctx context.Context, id string) (*domain.Chunk, error) {
	var c domain.Chunk
	err := s.db.QueryRowContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE id = $1`, id).
		Scan(&c.ID, &c.ProjectID, &c.FileID, &c.Name, &c.Content, &c.Cleaned)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrChunkNotFound
	}
	if err != nil {
		return nil, MapError(err)
	}
	return &c, nil
}

// UpdateContent implements store.ChunkStore.UpdateContent
func (s *PostgresChunkStore) UpdateContent(ctx context.Context, id, content string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE chunks SET content = $2, cleaned = true WHERE id = $1`, id, content)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrChunkNotFound)
}

// CreateMany implements store.ChunkStore.CreateMany
func (s *PostgresChunkStore) CreateMany(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	err := store.RunInTransaction(ctx, s.db, "chunks.create_many", func(ctx context.Context, db store.DBTX) error {
		for _, c := range chunks {
			if _, err := db.ExecContext(ctx, `
				INSERT INTO chunks (`+chunkColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, c.ID, c.ProjectID, c.FileID, c.Name, c.Content, c.Cleaned); err != nil {
				return MapError(err)
			}
		}
		return nil
	})
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create chunks",
			slog.String("error", err.Error()),
			slog.Int("count", len(chunks)))
		return fmt.Errorf("failed to create chunks: %w", err)
	}
	return nil
}

func (s *PostgresChunkStore) query(ctx context.Context, query string, args ...any) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.FileID, &c.Name, &c.Content, &c.Cleaned); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
