package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind names what happened to a task.
type Kind string

const (
	// KindSubmitted is emitted after a task row is created and must be run.
	KindSubmitted Kind = "task.submitted"

	// KindInterrupted is emitted after a task is moved to INTERRUPTED.
	KindInterrupted Kind = "task.interrupted"
)

// TaskEvent reports a lifecycle change of one task.
type TaskEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	Kind      Kind      `json:"kind"`
	TaskID    uuid.UUID `json:"task_id"`
	TaskType  string    `json:"task_type"`
	ProjectID string    `json:"project_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTaskEvent creates an event of the given kind for a task.
func NewTaskEvent(kind Kind, taskID uuid.UUID, taskType, projectID string) *TaskEvent {
	return &TaskEvent{
		ID:        uuid.New(),
		Kind:      kind,
		TaskID:    taskID,
		TaskType:  taskType,
		ProjectID: projectID,
		CreatedAt: time.Now().UTC(),
	}
}

// EventHandler is implemented by subscribers. Handlers must not block:
// emitters call them synchronously.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// EventEmitter publishes events to subscribers.
type EventEmitter interface {
	// EmitEvent delivers event to every subscriber.
	// Returns the first subscriber error, if any.
	EmitEvent(ctx context.Context, event *TaskEvent) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *TaskEvent) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *TaskEvent) error {
	return f(ctx, event)
}
