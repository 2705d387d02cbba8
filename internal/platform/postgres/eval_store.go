package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/platform/logger"
	"github.com/phrazzld/dataset-forge/internal/store"
)

const evalDatasetColumns = `id, project_id, COALESCE(chunk_id, ''), question_type, question, options, answer`

// PostgresEvalStore implements store.EvalStore.
type PostgresEvalStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresEvalStore creates an eval store.
func NewPostgresEvalStore(db store.DBTX, logger *slog.Logger) *PostgresEvalStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresEvalStore{db: db, logger: logger.With(slog.String("component", "eval_store"))}
}

var _ store.EvalStore = (*PostgresEvalStore)(nil)

// ListDatasets implements store.EvalStore.ListDatasets
func (s *PostgresEvalStore) ListDatasets(
	ctx context.Context,
	projectID string,
	ids []string,
) ([]domain.EvalDataset, error) {
	query := `SELECT ` + evalDatasetColumns + ` FROM eval_datasets WHERE project_id = $1`
	args := []any{projectID}
	if len(ids) > 0 {
		query += ` AND id IN (` + placeholders(2, len(ids)) + `)`
		args = append(args, stringArgs(ids)...)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.EvalDataset
	for rows.Next() {
		row, err := scanEvalDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan eval dataset row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ChunkIDsWithDatasets implements store.EvalStore.ChunkIDsWithDatasets
func (s *PostgresEvalStore) ChunkIDsWithDatasets(ctx context.Context, projectID string) (store.IDSet, error) {
	return queryIDSet(ctx, s.db,
		`SELECT DISTINCT chunk_id FROM eval_datasets WHERE project_id = $1 AND chunk_id IS NOT NULL`,
		projectID)
}

// GetDataset implements store.EvalStore.GetDataset
func (s *PostgresEvalStore) GetDataset(ctx context.Context, id string) (*domain.EvalDataset, error) {
	row, err := scanEvalDataset(s.db.QueryRowContext(ctx,
		`SELECT `+evalDatasetColumns+` FROM eval_datasets WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrEvalDatasetNotFound
	}
	if err != nil {
		return nil, MapError(err)
	}
	return &row, nil
}

// CreateDatasets implements store.EvalStore.CreateDatasets
func (s *PostgresEvalStore) CreateDatasets(ctx context.Context, rows []domain.EvalDataset) error {
	if len(rows) == 0 {
		return nil
	}
	err := store.RunInTransaction(ctx, s.db, "eval_datasets.create", func(ctx context.Context, db store.DBTX) error {
		for _, r := range rows {
			options, err := json.Marshal(r.Options)
			if err != nil {
				return fmt.Errorf("failed to encode options: %w", err)
			}
			if _, err := db.ExecContext(ctx, `
				INSERT INTO eval_datasets (id, project_id, chunk_id, question_type, question, options, answer)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, r.ID, r.ProjectID, nullString(r.ChunkID), r.QuestionType, r.Question, options, r.Answer); err != nil {
				return MapError(err)
			}
		}
		return nil
	})
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create eval datasets",
			slog.String("error", err.Error()),
			slog.Int("count", len(rows)))
		return fmt.Errorf("failed to create eval datasets: %w", err)
	}
	return nil
}

// DatasetIDsWithResults implements store.EvalStore.DatasetIDsWithResults
func (s *PostgresEvalStore) DatasetIDsWithResults(ctx context.Context, taskID string) (store.IDSet, error) {
	return queryIDSet(ctx, s.db, `SELECT eval_dataset_id FROM eval_results WHERE task_id = $1`, taskID)
}

// SaveResult implements store.EvalStore.SaveResult
func (s *PostgresEvalStore) SaveResult(ctx context.Context, r *domain.EvalResult) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO eval_results (task_id, eval_dataset_id, model_answer, correct, score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (task_id, eval_dataset_id) DO UPDATE
		SET model_answer = EXCLUDED.model_answer,
		    correct = EXCLUDED.correct,
		    score = EXCLUDED.score,
		    created_at = EXCLUDED.created_at
	`, r.TaskID, r.EvalDatasetID, r.ModelAnswer, r.Correct, r.Score, r.CreatedAt)
	return MapError(err)
}

// ResultSummary implements store.EvalStore.ResultSummary
func (s *PostgresEvalStore) ResultSummary(ctx context.Context, taskID string) (int, int, error) {
	var correct, total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE correct), COUNT(*)
		FROM eval_results WHERE task_id = $1
	`, taskID).Scan(&correct, &total)
	if err != nil {
		return 0, 0, MapError(err)
	}
	return correct, total, nil
}

func scanEvalDataset(row rowScanner) (domain.EvalDataset, error) {
	var r domain.EvalDataset
	var options []byte
	if err := row.Scan(&r.ID, &r.ProjectID, &r.ChunkID, &r.QuestionType, &r.Question, &options, &r.Answer); err != nil {
		return r, err
	}
	if len(options) > 0 {
		if err := json.Unmarshal(options, &r.Options); err != nil {
			return r, fmt.Errorf("failed to decode options: %w", err)
		}
	}
	return r, nil
}
