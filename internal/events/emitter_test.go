package events

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/dataset-forge/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryEventEmitter(t *testing.T) {
	log, buf := logger.NewTestLogger()

	t.Run("emit event with no handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(log)
		event := NewTaskEvent(KindSubmitted, uuid.New(), "data-cleaning", "p1")

		err := emitter.EmitEvent(context.Background(), event)
		assert.NoError(t, err)
		assert.Contains(t, buf.String(), "no handlers registered for event")
	})

	t.Run("emit event with successful handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(log)

		handler1 := &MockEventHandler{}
		handler2 := &MockEventHandler{}
		emitter.RegisterHandler(handler1)
		emitter.RegisterHandler(handler2)

		event := NewTaskEvent(KindSubmitted, uuid.New(), "data-cleaning", "p1")
		err := emitter.EmitEvent(context.Background(), event)
		require.NoError(t, err)

		assert.Equal(t, 1, handler1.HandledCount)
		assert.Equal(t, 1, handler2.HandledCount)
		assert.Equal(t, event, handler1.LastEvent)
		assert.Equal(t, event, handler2.LastEvent)
	})

	t.Run("failing handler does not stop delivery", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(log)

		failingHandler := &MockEventHandler{HandlerError: errors.New("handler error")}
		secondFailure := &MockEventHandler{HandlerError: errors.New("second error")}
		successHandler := &MockEventHandler{}
		emitter.RegisterHandler(failingHandler)
		emitter.RegisterHandler(secondFailure)
		emitter.RegisterHandler(successHandler)

		event := NewTaskEvent(KindInterrupted, uuid.New(), "data-cleaning", "p1")
		err := emitter.EmitEvent(context.Background(), event)

		require.Error(t, err)
		assert.Equal(t, "handler error", err.Error(), "first error wins")
		assert.Equal(t, 1, failingHandler.HandledCount)
		assert.Equal(t, 1, secondFailure.HandledCount)
		assert.Equal(t, 1, successHandler.HandledCount)
	})

	t.Run("nil logger falls back to default", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(nil)
		assert.NoError(t, emitter.EmitEvent(context.Background(),
			NewTaskEvent(KindSubmitted, uuid.New(), "data-cleaning", "p1")))
	})
}
