package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/dataset-forge/internal/domain"
)

// TaskStore defines the interface for task record persistence.
type TaskStore interface {
	// Create saves a new task record.
	// Returns validation errors from the domain Task if data is invalid.
	Create(ctx context.Context, task *domain.Task) error

	// Get reads the current row for a task. Implementations must not cache:
	// interruption checks depend on seeing writes made by other callers.
	// Returns ErrTaskNotFound if the task does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// Update overwrites the non-nil fields of update and returns the row as
	// stored afterwards. Setting COMPLETED or FAILED stamps end_time when
	// the row has none.
	// When update.IfStatus is set and the row is in a different status,
	// nothing is written and the current row is returned together with
	// ErrTaskNotProcessing.
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, id uuid.UUID, update domain.TaskUpdate) (*domain.Task, error)

	// ListByStatus returns every task in the given status, oldest first.
	ListByStatus(ctx context.Context, status domain.TaskStatus) ([]*domain.Task, error)

	// ListByProject returns a project's tasks, newest first.
	ListByProject(ctx context.Context, projectID string, limit, offset int) ([]*domain.Task, error)

	// Delete removes a task record.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProjectConfigStore reads per-project engine settings.
type ProjectConfigStore interface {
	// GetTaskConfig returns the project's task settings. A project without
	// a stored row yields a config with ConcurrencyLimit 0, which callers
	// replace with their default.
	GetTaskConfig(ctx context.Context, projectID string) (domain.TaskConfig, error)

	// SaveTaskConfig inserts or replaces the project's task settings.
	SaveTaskConfig(ctx context.Context, cfg domain.TaskConfig) error
}
