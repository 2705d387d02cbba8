package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/store"
)

// PostgresTagStore implements store.TagStore.
type PostgresTagStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTagStore creates a tag store.
func NewPostgresTagStore(db store.DBTX, logger *slog.Logger) *PostgresTagStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTagStore{db: db, logger: logger.With(slog.String("component", "tag_store"))}
}

var _ store.TagStore = (*PostgresTagStore)(nil)

// ListByTopic implements store.TagStore.ListByTopic
func (s *PostgresTagStore) ListByTopic(ctx context.Context, projectID, topic string) ([]domain.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, topic, COALESCE(parent_id, ''), label, depth
		FROM tags WHERE project_id = $1 AND topic = $2
		ORDER BY depth, label, id
	`, projectID, topic)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tags []domain.Tag
	for rows.Next() {
		var t domain.Tag
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Topic, &t.ParentID, &t.Label, &t.Depth); err != nil {
			return nil, fmt.Errorf("failed to scan tag row: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// CreateMany implements store.TagStore.CreateMany
func (s *PostgresTagStore) CreateMany(ctx context.Context, tags []domain.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	return store.RunInTransaction(ctx, s.db, "tags.create_many", func(ctx context.Context, db store.DBTX) error {
		for _, t := range tags {
			if _, err := db.ExecContext(ctx, `
				INSERT INTO tags (id, project_id, topic, parent_id, label, depth)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, t.ID, t.ProjectID, t.Topic, nullString(t.ParentID), t.Label, t.Depth); err != nil {
				return MapError(err)
			}
		}
		return nil
	})
}
