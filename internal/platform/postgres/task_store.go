package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/platform/logger"
	"github.com/phrazzld/dataset-forge/internal/store"
)

const taskColumns = `id, project_id, task_type, status, total_count, completed_count,
		detail, note, model_info, language, config, start_time, end_time, created_at`

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// Create implements store.TaskStore.Create
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.ProjectID,
		string(task.Type),
		int(task.Status),
		task.TotalCount,
		task.CompletedCount,
		task.Detail,
		task.Note,
		task.ModelInfo,
		task.Language,
		nullJSON(task.Config),
		task.StartTime,
		task.EndTime,
		task.CreatedAt,
	)
	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}

	log.Debug("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("task_type", string(task.Type)),
		slog.String("project_id", task.ProjectID))
	return nil
}

// Get implements store.TaskStore.Get
func (s *PostgresTaskStore) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, MapError(err)
	}
	return task, nil
}

// Update implements store.TaskStore.Update
func (s *PostgresTaskStore) Update(
	ctx context.Context,
	id uuid.UUID,
	update domain.TaskUpdate,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if update.IsEmpty() {
		return s.Get(ctx, id)
	}

	query, args := buildTaskUpdate(id, update, time.Now().UTC())
	task, err := scanTask(s.db.QueryRowContext(ctx, query, args...))
	if err == nil {
		return task, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, MapError(err)
	}

	// No row matched: either the task is gone or the status guard failed.
	current, getErr := s.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if update.IfStatus != nil {
		log.Debug("conditional task update skipped",
			slog.String("task_id", id.String()),
			slog.String("expected_status", update.IfStatus.String()),
			slog.String("status", current.Status.String()))
		return current, store.ErrTaskNotProcessing
	}
	return current, nil
}

// buildTaskUpdate renders the UPDATE statement for the non-nil fields of update.
func buildTaskUpdate(id uuid.UUID, update domain.TaskUpdate, now time.Time) (string, []any) {
	var sets []string
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Status != nil {
		add("status", int(*update.Status))
	}
	if update.TotalCount != nil {
		add("total_count", *update.TotalCount)
	}
	if update.CompletedCount != nil {
		add("completed_count", *update.CompletedCount)
	}
	if update.Detail != nil {
		add("detail", *update.Detail)
	}
	if update.Note != nil {
		add("note", *update.Note)
	}
	switch {
	case update.EndTime != nil:
		add("end_time", *update.EndTime)
	case update.Status != nil && (*update.Status == domain.TaskStatusCompleted ||
		*update.Status == domain.TaskStatusFailed):
		args = append(args, now)
		sets = append(sets, fmt.Sprintf("end_time = COALESCE(end_time, $%d)", len(args)))
	}

	query := "UPDATE tasks SET " + strings.Join(sets, ", ") + " WHERE id = $1"
	if update.IfStatus != nil {
		args = append(args, int(*update.IfStatus))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " RETURNING " + taskColumns
	return query, args
}

// ListByStatus implements store.TaskStore.ListByStatus
func (s *PostgresTaskStore) ListByStatus(ctx context.Context, status domain.TaskStatus) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE status = $1 ORDER BY created_at ASC`
	return s.queryTasks(ctx, query, int(status))
}

// ListByProject implements store.TaskStore.ListByProject
func (s *PostgresTaskStore) ListByProject(
	ctx context.Context,
	projectID string,
	limit, offset int,
) ([]*domain.Task, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	return s.queryTasks(ctx, query, projectID, limit, offset)
}

// Delete implements store.TaskStore.Delete
func (s *PostgresTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to delete task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

func (s *PostgresTaskStore) queryTasks(ctx context.Context, query string, args ...any) ([]*domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to query tasks",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task     domain.Task
		taskType string
		status   int
		config   []byte
		endTime  sql.NullTime
	)
	err := row.Scan(
		&task.ID,
		&task.ProjectID,
		&taskType,
		&status,
		&task.TotalCount,
		&task.CompletedCount,
		&task.Detail,
		&task.Note,
		&task.ModelInfo,
		&task.Language,
		&config,
		&task.StartTime,
		&endTime,
		&task.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	task.Type = domain.TaskType(taskType)
	task.Status = domain.TaskStatus(status)
	if len(config) > 0 {
		task.Config = config
	}
	if endTime.Valid {
		t := endTime.Time
		task.EndTime = &t
	}
	return &task, nil
}
