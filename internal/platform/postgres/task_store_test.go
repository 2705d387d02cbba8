package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/platform/logger"
	"github.com/phrazzld/dataset-forge/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var taskColumnNames = []string{
	"id", "project_id", "task_type", "status", "total_count", "completed_count",
	"detail", "note", "model_info", "language", "config", "start_time", "end_time", "created_at",
}

func newMockTaskStore(t *testing.T) (*PostgresTaskStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresTaskStore(db, logger.Discard()), mock
}

func taskRow(id uuid.UUID, status domain.TaskStatus, total, completed int) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(taskColumnNames).AddRow(
		id.String(), "p1", string(domain.TaskTypeEvalGeneration), int64(status),
		int64(total), int64(completed), "", "", `{"provider":"ollama","model":"m"}`, "en",
		nil, now, nil, now,
	)
}

func TestPostgresTaskStore_Create(t *testing.T) {
	s, mock := newMockTaskStore(t)

	task, err := domain.NewTask("p1", domain.TaskTypeEvalGeneration, `{"provider":"ollama","model":"m"}`, "en", nil)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tasks")).
		WithArgs(task.ID, "p1", "eval-generation", 0, 0, 0, "", "", task.ModelInfo, "en",
			nil, task.StartTime, task.EndTime, task.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Create(context.Background(), task))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTaskStore_CreateRejectsInvalid(t *testing.T) {
	s, mock := newMockTaskStore(t)

	err := s.Create(context.Background(), &domain.Task{ID: uuid.New(), Type: domain.TaskTypeDataCleaning})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTaskStore_GetNotFound(t *testing.T) {
	s, mock := newMockTaskStore(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM tasks WHERE id = $1")).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), id)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTaskStore_UpdateProgress(t *testing.T) {
	s, mock := newMockTaskStore(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(
		"UPDATE tasks SET completed_count = $2, detail = $3 WHERE id = $1 AND status = $4 RETURNING")).
		WithArgs(id, 3, "3/5", 0).
		WillReturnRows(taskRow(id, domain.TaskStatusProcessing, 5, 3))

	got, err := s.Update(context.Background(), id, domain.TaskUpdate{
		CompletedCount: domain.Ptr(3),
		Detail:         domain.Ptr("3/5"),
		IfStatus:       domain.Ptr(domain.TaskStatusProcessing),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, got.CompletedCount)
	assert.Equal(t, 5, got.TotalCount)
	assert.Equal(t, domain.TaskTypeEvalGeneration, got.Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTaskStore_UpdateGuardMismatch(t *testing.T) {
	s, mock := newMockTaskStore(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE tasks SET")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM tasks WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(taskRow(id, domain.TaskStatusInterrupted, 5, 2))

	got, err := s.Update(context.Background(), id, domain.TaskUpdate{
		Status:   domain.Ptr(domain.TaskStatusCompleted),
		IfStatus: domain.Ptr(domain.TaskStatusProcessing),
	})
	assert.ErrorIs(t, err, store.ErrTaskNotProcessing)
	require.NotNil(t, got)
	assert.Equal(t, domain.TaskStatusInterrupted, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTaskStore_UpdateMissing(t *testing.T) {
	s, mock := newMockTaskStore(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE tasks SET")).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM tasks WHERE id = $1")).WillReturnError(sql.ErrNoRows)

	_, err := s.Update(context.Background(), id, domain.TaskUpdate{Note: domain.Ptr("x")})
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestBuildTaskUpdate(t *testing.T) {
	t.Parallel()
	id := uuid.New()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("terminal status stamps end time once", func(t *testing.T) {
		query, args := buildTaskUpdate(id, domain.TaskUpdate{
			Status: domain.Ptr(domain.TaskStatusFailed),
			Note:   domain.Ptr("boom"),
		}, now)
		assert.Contains(t, query, "status = $2, note = $3, end_time = COALESCE(end_time, $4)")
		assert.NotContains(t, query, "AND status")
		assert.Equal(t, []any{id, 2, "boom", now}, args)
	})

	t.Run("explicit end time wins", func(t *testing.T) {
		end := now.Add(time.Hour)
		query, args := buildTaskUpdate(id, domain.TaskUpdate{
			Status:   domain.Ptr(domain.TaskStatusInterrupted),
			EndTime:  &end,
			IfStatus: domain.Ptr(domain.TaskStatusProcessing),
		}, now)
		assert.Contains(t, query, "end_time = $3 WHERE id = $1 AND status = $4")
		assert.Equal(t, []any{id, 3, end, 0}, args)
	})

	t.Run("interrupted without end time does not stamp", func(t *testing.T) {
		query, _ := buildTaskUpdate(id, domain.TaskUpdate{Status: domain.Ptr(domain.TaskStatusInterrupted)}, now)
		assert.NotContains(t, query, "end_time")
	})
}

func TestPostgresTaskStore_ListByStatus(t *testing.T) {
	s, mock := newMockTaskStore(t)
	a, b := uuid.New(), uuid.New()

	rows := taskRow(a, domain.TaskStatusProcessing, 10, 3)
	now := time.Now().UTC()
	rows.AddRow(b.String(), "p2", "data-distillation", int64(0), int64(0), int64(0), "", "", "{}", "zh",
		[]byte(`{"topic":"x"}`), now, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 ORDER BY created_at ASC")).
		WithArgs(0).
		WillReturnRows(rows)

	tasks, err := s.ListByStatus(context.Background(), domain.TaskStatusProcessing)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, a, tasks[0].ID)
	assert.Nil(t, tasks[0].EndTime)
	assert.JSONEq(t, `{"topic":"x"}`, string(tasks[1].Config))
	assert.NotNil(t, tasks[1].EndTime)
}

func TestPostgresTaskStore_ListByProjectDefaultsLimit(t *testing.T) {
	s, mock := newMockTaskStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $2 OFFSET $3")).
		WithArgs("p1", 50, 0).
		WillReturnRows(sqlmock.NewRows(taskColumnNames))

	tasks, err := s.ListByProject(context.Background(), "p1", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTaskStore_Delete(t *testing.T) {
	s, mock := newMockTaskStore(t)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tasks WHERE id = $1")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.Delete(context.Background(), id), store.ErrTaskNotFound)
}

func TestNewPostgresTaskStore_NilDBPanics(t *testing.T) {
	assert.Panics(t, func() { NewPostgresTaskStore(nil, nil) })
}
