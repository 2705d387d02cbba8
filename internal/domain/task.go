package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskType identifies which batch operation a task performs.
type TaskType string

// Known task types.
const (
	TaskTypeQuestionGeneration      TaskType = "question-generation"
	TaskTypeFileProcessing          TaskType = "file-processing"
	TaskTypeAnswerGeneration        TaskType = "answer-generation"
	TaskTypeDataCleaning            TaskType = "data-cleaning"
	TaskTypeDatasetEvaluation       TaskType = "dataset-evaluation"
	TaskTypeMultiTurnGeneration     TaskType = "multi-turn-generation"
	TaskTypeDataDistillation        TaskType = "data-distillation"
	TaskTypeImageQuestionGeneration TaskType = "image-question-generation"
	TaskTypeImageDatasetGeneration  TaskType = "image-dataset-generation"
	TaskTypeEvalGeneration          TaskType = "eval-generation"
	TaskTypeModelEvaluation         TaskType = "model-evaluation"
)

// AllTaskTypes lists every task type in declaration order.
var AllTaskTypes = []TaskType{
	TaskTypeQuestionGeneration,
	TaskTypeFileProcessing,
	TaskTypeAnswerGeneration,
	TaskTypeDataCleaning,
	TaskTypeDatasetEvaluation,
	TaskTypeMultiTurnGeneration,
	TaskTypeDataDistillation,
	TaskTypeImageQuestionGeneration,
	TaskTypeImageDatasetGeneration,
	TaskTypeEvalGeneration,
	TaskTypeModelEvaluation,
}

// ParseTaskType converts a raw string into a TaskType, rejecting unknown values.
func ParseTaskType(s string) (TaskType, error) {
	for _, t := range AllTaskTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTaskType, s)
}

// TaskStatus is the persisted lifecycle state of a task.
type TaskStatus int

// Task status values. The numeric values are stored in the database.
const (
	TaskStatusProcessing  TaskStatus = 0
	TaskStatusCompleted   TaskStatus = 1
	TaskStatusFailed      TaskStatus = 2
	TaskStatusInterrupted TaskStatus = 3
)

// IsTerminal reports whether no further transitions are allowed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusInterrupted
}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	return s >= TaskStatusProcessing && s <= TaskStatusInterrupted
}

// String returns a lower-case name for logs and API payloads.
func (s TaskStatus) String() string {
	switch s {
	case TaskStatusProcessing:
		return "processing"
	case TaskStatusCompleted:
		return "completed"
	case TaskStatusFailed:
		return "failed"
	case TaskStatusInterrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Task is the durable record of one batch job.
type Task struct {
	ID             uuid.UUID       `json:"id"`
	ProjectID      string          `json:"project_id"`
	Type           TaskType        `json:"task_type"`
	Status         TaskStatus      `json:"status"`
	TotalCount     int             `json:"total_count"`
	CompletedCount int             `json:"completed_count"`
	Detail         string          `json:"detail"`
	Note           string          `json:"note"`
	ModelInfo      string          `json:"-"`
	Language       string          `json:"language"`
	Config         json.RawMessage `json:"config,omitempty"`
	StartTime      time.Time       `json:"start_time"`
	EndTime        *time.Time      `json:"end_time,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewTask creates a task in the PROCESSING state with zero counters.
func NewTask(projectID string, taskType TaskType, modelInfo, language string, config json.RawMessage) (*Task, error) {
	now := time.Now().UTC()
	t := &Task{
		ID:        uuid.New(),
		ProjectID: projectID,
		Type:      taskType,
		Status:    TaskStatusProcessing,
		ModelInfo: modelInfo,
		Language:  language,
		Config:    config,
		StartTime: now,
		CreatedAt: now,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the fields a task must carry before it is persisted.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if t.ProjectID == "" {
		return NewValidationError("project_id", "cannot be empty", ErrValidation)
	}
	if _, err := ParseTaskType(string(t.Type)); err != nil {
		return err
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidTaskStatus, t.Status)
	}
	if t.CompletedCount < 0 || t.TotalCount < 0 {
		return NewValidationError("counts", "cannot be negative", ErrValidation)
	}
	if len(t.Config) > 0 && !json.Valid(t.Config) {
		return fmt.Errorf("%w: config is not valid JSON", ErrInvalidTaskConfig)
	}
	return nil
}

// TaskUpdate lists the fields to overwrite on a task row. Nil fields are
// left untouched. Counters are always full values, never deltas.
type TaskUpdate struct {
	Status         *TaskStatus
	TotalCount     *int
	CompletedCount *int
	Detail         *string
	Note           *string
	EndTime        *time.Time

	// IfStatus, when set, makes the update conditional on the row's
	// current status.
	IfStatus *TaskStatus
}

// IsEmpty reports whether the update would not change any column.
func (u TaskUpdate) IsEmpty() bool {
	return u.Status == nil && u.TotalCount == nil && u.CompletedCount == nil &&
		u.Detail == nil && u.Note == nil && u.EndTime == nil
}

// Ptr returns a pointer to v. Handy for building TaskUpdate literals.
func Ptr[T any](v T) *T {
	return &v
}
