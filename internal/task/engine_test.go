package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/events"
	"github.com/phrazzld/dataset-forge/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, tasks *MockTaskStore, emitter events.EventEmitter, handlers ...Handler) *Engine {
	t.Helper()
	registry, err := NewRegistry(handlers...)
	require.NoError(t, err)
	d := NewDispatcher(tasks, nil, registry, DefaultDispatcherConfig(), testLogger())
	e := NewEngine(tasks, d, registry, emitter, testLogger())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = e.Stop(ctx)
	})
	return e
}

func cleaningRequest() SubmitRequest {
	return SubmitRequest{
		ProjectID: "project-1",
		Type:      domain.TaskTypeDataCleaning,
		ModelInfo: testModelInfo,
		Language:  "en",
	}
}

func TestEngine_SubmitThroughEmitter(t *testing.T) {
	t.Parallel()

	tasks := NewMockTaskStore()
	emitter := events.NewInMemoryEventEmitter(testLogger())
	svc := &fakeService{}
	e := newTestEngine(t, tasks, emitter,
		&dataCleaningHandler{chunks: &fakeChunks{chunks: chunks(3)}, svc: svc})
	emitter.RegisterHandler(e)

	task, err := e.Submit(context.Background(), cleaningRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusProcessing, task.Status)
	assert.Equal(t, 0, task.TotalCount)

	got := waitForStatus(t, tasks, task.ID, domain.TaskStatusCompleted)
	assert.Equal(t, 3, got.CompletedCount)
	assert.Len(t, svc.Calls(), 3)
}

func TestEngine_SubmitWithoutEmitter(t *testing.T) {
	t.Parallel()

	tasks := NewMockTaskStore()
	e := newTestEngine(t, tasks, nil, &fakeHandler{typ: domain.TaskTypeDataCleaning})

	task, err := e.Submit(context.Background(), cleaningRequest())
	require.NoError(t, err)
	waitForStatus(t, tasks, task.ID, domain.TaskStatusCompleted)
}

func TestEngine_SubmitValidation(t *testing.T) {
	t.Parallel()

	tasks := NewMockTaskStore()
	e := newTestEngine(t, tasks, nil)

	req := cleaningRequest()
	req.Type = "bogus"
	_, err := e.Submit(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidTaskType)

	req = cleaningRequest()
	req.ProjectID = ""
	_, err = e.Submit(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestEngine_SubmitEmitFailureFailsTask(t *testing.T) {
	t.Parallel()

	tasks := NewMockTaskStore()
	emitter := events.NewInMemoryEventEmitter(testLogger())
	emitter.RegisterHandler(events.HandlerFunc(func(context.Context, *events.TaskEvent) error {
		return errors.New("queue unavailable")
	}))
	e := newTestEngine(t, tasks, emitter)

	_, err := e.Submit(context.Background(), cleaningRequest())
	require.Error(t, err)

	list, err := tasks.ListByProject(context.Background(), "project-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.TaskStatusFailed, list[0].Status)
	assert.Equal(t, "failed to start task: queue unavailable", list[0].Note)
}

func TestEngine_Interrupt(t *testing.T) {
	t.Parallel()

	tasks := NewMockTaskStore()
	entered := make(chan struct{})
	h := &fakeHandler{
		typ: domain.TaskTypeDataCleaning,
		handle: func(ctx context.Context, run *Run) error {
			close(entered)
			assert.Eventually(t, func() bool { return run.CheckInterrupted(ctx) },
				2*time.Second, 5*time.Millisecond)
			return run.Finalize(ctx, "")
		},
	}
	emitter := events.NewInMemoryEventEmitter(testLogger())
	e := newTestEngine(t, tasks, emitter, h)
	emitter.RegisterHandler(e)

	var interrupted []uuid.UUID
	emitter.RegisterHandler(events.HandlerFunc(func(_ context.Context, ev *events.TaskEvent) error {
		if ev.Kind == events.KindInterrupted {
			interrupted = append(interrupted, ev.TaskID)
		}
		return nil
	}))

	task, err := e.Submit(context.Background(), cleaningRequest())
	require.NoError(t, err)
	<-entered

	got, err := e.Interrupt(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInterrupted, got.Status)
	assert.NotNil(t, got.EndTime)
	assert.Equal(t, []uuid.UUID{task.ID}, interrupted)

	require.Eventually(t, func() bool { return !e.dispatcher.Active(task.ID) },
		2*time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.TaskStatusInterrupted, mustGet(t, tasks, task.ID).Status)

	_, err = e.Interrupt(context.Background(), task.ID)
	assert.ErrorIs(t, err, store.ErrTaskNotProcessing, "a finished task cannot be interrupted")
}

func TestEngine_Delete(t *testing.T) {
	t.Parallel()

	tasks := NewMockTaskStore()
	e := newTestEngine(t, tasks, nil)
	task := newTestTask(t, tasks, domain.TaskTypeDataCleaning, "")

	require.NoError(t, e.Delete(context.Background(), task.ID))
	_, err := tasks.Get(context.Background(), task.ID)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)

	assert.ErrorIs(t, e.Delete(context.Background(), task.ID), store.ErrTaskNotFound)
}

func TestEngine_StartRecoversOnce(t *testing.T) {
	t.Parallel()

	tasks := NewMockTaskStore()
	task := newTestTask(t, tasks, domain.TaskTypeDataCleaning, "")
	h := &fakeHandler{typ: domain.TaskTypeDataCleaning, resumable: true}
	e := newTestEngine(t, tasks, nil, h)

	require.NoError(t, e.Start(context.Background()))
	waitForStatus(t, tasks, task.ID, domain.TaskStatusCompleted)
	require.NoError(t, e.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, e.Stop(ctx))
	assert.Equal(t, 1, h.Calls())
}

func TestEngine_StopLeavesRunsForRecovery(t *testing.T) {
	t.Parallel()

	tasks := NewMockTaskStore()
	entered := make(chan struct{})
	h := &fakeHandler{
		typ: domain.TaskTypeDataCleaning,
		handle: func(ctx context.Context, run *Run) error {
			close(entered)
			<-ctx.Done()
			return run.Finalize(ctx, "")
		},
	}
	e := newTestEngine(t, tasks, nil, h)

	task, err := e.Submit(context.Background(), cleaningRequest())
	require.NoError(t, err)
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, e.Stop(ctx))

	assert.Equal(t, domain.TaskStatusProcessing, mustGet(t, tasks, task.ID).Status)

	_, err = e.Submit(context.Background(), cleaningRequest())
	assert.ErrorIs(t, err, ErrEngineStopped)
}
