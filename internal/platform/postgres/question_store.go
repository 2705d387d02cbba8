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

const questionColumns = `id, project_id, COALESCE(chunk_id, ''), COALESCE(image_id, ''),
		COALESCE(tag_id, ''), label, question, answered`

// PostgresQuestionStore implements store.QuestionStore.
type PostgresQuestionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresQuestionStore creates a question store.
func NewPostgresQuestionStore(db store.DBTX, logger *slog.Logger) *PostgresQuestionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresQuestionStore{db: db, logger: logger.With(slog.String("component", "question_store"))}
}

var _ store.QuestionStore = (*PostgresQuestionStore)(nil)

// ChunkIDsWithQuestions implements store.QuestionStore.ChunkIDsWithQuestions
func (s *PostgresQuestionStore) ChunkIDsWithQuestions(ctx context.Context, projectID string) (store.IDSet, error) {
	return queryIDSet(ctx, s.db,
		`SELECT DISTINCT chunk_id FROM questions WHERE project_id = $1 AND chunk_id IS NOT NULL`,
		projectID)
}

// ImageIDsWithQuestions implements store.QuestionStore.ImageIDsWithQuestions
func (s *PostgresQuestionStore) ImageIDsWithQuestions(ctx context.Context, projectID string) (store.IDSet, error) {
	return queryIDSet(ctx, s.db,
		`SELECT DISTINCT image_id FROM questions WHERE project_id = $1 AND image_id IS NOT NULL`,
		projectID)
}

// ListUnanswered implements store.QuestionStore.ListUnanswered
func (s *PostgresQuestionStore) ListUnanswered(
	ctx context.Context,
	projectID string,
	imageOnly bool,
) ([]domain.Question, error) {
	filter := "image_id IS NULL"
	if imageOnly {
		filter = "image_id IS NOT NULL"
	}
	return s.query(ctx, `SELECT `+questionColumns+` FROM questions
		WHERE project_id = $1 AND NOT answered AND `+filter+`
		ORDER BY id`, projectID)
}

// ListAnswered implements store.QuestionStore.ListAnswered
func (s *PostgresQuestionStore) ListAnswered(ctx context.Context, projectID string) ([]domain.Question, error) {
	return s.query(ctx, `SELECT `+questionColumns+` FROM questions
		WHERE project_id = $1 AND answered AND image_id IS NULL
		ORDER BY id`, projectID)
}

// ListByTags implements store.QuestionStore.ListByTags
func (s *PostgresQuestionStore) ListByTags(ctx context.Context, tagIDs []string) ([]domain.Question, error) {
	if len(tagIDs) == 0 {
		return nil, nil
	}
	return s.query(ctx, `SELECT `+questionColumns+` FROM questions
		WHERE tag_id IN (`+placeholders(1, len(tagIDs))+`)
		ORDER BY id`, stringArgs(tagIDs)...)
}

// CountByTag implements store.QuestionStore.CountByTag
func (s *PostgresQuestionStore) CountByTag(ctx context.Context, projectID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tag_id, COUNT(*) FROM questions
		WHERE project_id = $1 AND tag_id IS NOT NULL
		GROUP BY tag_id
	`, projectID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var tagID string
		var n int
		if err := rows.Scan(&tagID, &n); err != nil {
			return nil, fmt.Errorf("failed to scan tag count: %w", err)
		}
		counts[tagID] = n
	}
	return counts, rows.Err()
}

// Get implements store.QuestionStore.Get
func (s *PostgresQuestionStore) Get(ctx context.Context, id string) (*domain.Question, error) {
	q, err := scanQuestion(s.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrQuestionNotFound
	}
	if err != nil {
		return nil, MapError(err)
	}
	return &q, nil
}

// CreateMany implements store.QuestionStore.CreateMany
func (s *PostgresQuestionStore) CreateMany(ctx context.Context, questions []domain.Question) error {
	if len(questions) == 0 {
		return nil
	}
	err := store.RunInTransaction(ctx, s.db, "questions.create_many", func(ctx context.Context, db store.DBTX) error {
		for _, q := range questions {
			if _, err := db.ExecContext(ctx, `
				INSERT INTO questions (id, project_id, chunk_id, image_id, tag_id, label, question, answered)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, q.ID, q.ProjectID, nullString(q.ChunkID), nullString(q.ImageID), nullString(q.TagID),
				q.Label, q.Text, q.Answered); err != nil {
				return MapError(err)
			}
		}
		return nil
	})
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create questions",
			slog.String("error", err.Error()),
			slog.Int("count", len(questions)))
		return fmt.Errorf("failed to create questions: %w", err)
	}
	return nil
}

// MarkAnswered implements store.QuestionStore.MarkAnswered
func (s *PostgresQuestionStore) MarkAnswered(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE questions SET answered = true WHERE id = $1`, id)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrQuestionNotFound)
}

func (s *PostgresQuestionStore) query(ctx context.Context, query string, args ...any) ([]domain.Question, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var questions []domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question row: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func scanQuestion(row rowScanner) (domain.Question, error) {
	var q domain.Question
	err := row.Scan(&q.ID, &q.ProjectID, &q.ChunkID, &q.ImageID, &q.TagID, &q.Label, &q.Text, &q.Answered)
	return q, err
}
