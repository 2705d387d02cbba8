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

const datasetColumns = `id, project_id, question_id, question, answer, cot, score`

// PostgresDatasetStore implements store.DatasetStore.
type PostgresDatasetStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresDatasetStore creates a dataset store.
func NewPostgresDatasetStore(db store.DBTX, logger *slog.Logger) *PostgresDatasetStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresDatasetStore{db: db, logger: logger.With(slog.String("component", "dataset_store"))}
}

var _ store.DatasetStore = (*PostgresDatasetStore)(nil)

// ListUnscored implements store.DatasetStore.ListUnscored
func (s *PostgresDatasetStore) ListUnscored(ctx context.Context, projectID string) ([]domain.Dataset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+datasetColumns+` FROM datasets WHERE project_id = $1 AND score IS NULL ORDER BY id`,
		projectID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var datasets []domain.Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dataset row: %w", err)
		}
		datasets = append(datasets, d)
	}
	return datasets, rows.Err()
}

// GetByQuestion implements store.DatasetStore.GetByQuestion
func (s *PostgresDatasetStore) GetByQuestion(ctx context.Context, questionID string) (*domain.Dataset, error) {
	return s.get(ctx, `SELECT `+datasetColumns+` FROM datasets WHERE question_id = $1 ORDER BY id LIMIT 1`, questionID)
}

// Get implements store.DatasetStore.Get
func (s *PostgresDatasetStore) Get(ctx context.Context, id string) (*domain.Dataset, error) {
	return s.get(ctx, `SELECT `+datasetColumns+` FROM datasets WHERE id = $1`, id)
}

// Create implements store.DatasetStore.Create
func (s *PostgresDatasetStore) Create(ctx context.Context, d *domain.Dataset) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO datasets (`+datasetColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, d.ID, d.ProjectID, d.QuestionID, d.Question, d.Answer, d.CoT, d.Score)
	return MapError(err)
}

// UpdateScore implements store.DatasetStore.UpdateScore
func (s *PostgresDatasetStore) UpdateScore(ctx context.Context, id string, score float64) error {
	result, err := s.db.ExecContext(ctx, `UPDATE datasets SET score = $2 WHERE id = $1`, id, score)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrDatasetNotFound)
}

func (s *PostgresDatasetStore) get(ctx context.Context, query string, arg string) (*domain.Dataset, error) {
	d, err := scanDataset(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrDatasetNotFound
	}
	if err != nil {
		return nil, MapError(err)
	}
	return &d, nil
}

func scanDataset(row rowScanner) (domain.Dataset, error) {
	var d domain.Dataset
	var score sql.NullFloat64
	err := row.Scan(&d.ID, &d.ProjectID, &d.QuestionID, &d.Question, &d.Answer, &d.CoT, &score)
	if score.Valid {
		v := score.Float64
		d.Score = &v
	}
	return d, err
}
