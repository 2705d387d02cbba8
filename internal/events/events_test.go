package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTaskEvent(t *testing.T) {
	taskID := uuid.New()
	event := NewTaskEvent(KindSubmitted, taskID, "data-cleaning", "p1")

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, KindSubmitted, event.Kind)
	assert.Equal(t, taskID, event.TaskID)
	assert.Equal(t, "data-cleaning", event.TaskType)
	assert.Equal(t, "p1", event.ProjectID)
	assert.WithinDuration(t, time.Now(), event.CreatedAt, 2*time.Second)

	other := NewTaskEvent(KindSubmitted, taskID, "data-cleaning", "p1")
	assert.NotEqual(t, event.ID, other.ID, "every event gets its own id")
}

// MockEventHandler records the events it receives.
type MockEventHandler struct {
	LastEvent    *TaskEvent
	HandlerError error
	HandledCount int
}

// HandleEvent implements the EventHandler interface
func (h *MockEventHandler) HandleEvent(ctx context.Context, event *TaskEvent) error {
	h.LastEvent = event
	h.HandledCount++
	return h.HandlerError
}

func TestHandlerFunc(t *testing.T) {
	var got *TaskEvent
	h := HandlerFunc(func(ctx context.Context, event *TaskEvent) error {
		got = event
		return errors.New("boom")
	})

	event := NewTaskEvent(KindInterrupted, uuid.New(), "eval-generation", "p1")
	err := h.HandleEvent(context.Background(), event)

	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
	assert.Same(t, event, got)
}
