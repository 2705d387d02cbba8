package task

import "errors"

var (
	// ErrUnknownTaskType is returned when no handler is registered for a task's type.
	ErrUnknownTaskType = errors.New("unsupported task type")

	// ErrInvalidModelInfo is returned when a task's model info cannot be parsed.
	ErrInvalidModelInfo = errors.New("invalid model info")

	// ErrDuplicateHandler is returned when two handlers claim the same task type.
	ErrDuplicateHandler = errors.New("duplicate handler")

	// ErrEngineStopped is returned by Submit after Stop has been called.
	ErrEngineStopped = errors.New("task engine stopped")
)
