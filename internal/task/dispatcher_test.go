package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, tasks *MockTaskStore, handlers ...Handler) *Dispatcher {
	t.Helper()
	registry, err := NewRegistry(handlers...)
	require.NoError(t, err)
	return NewDispatcher(tasks, nil, registry, DefaultDispatcherConfig(), testLogger())
}

func TestDispatcher_UnknownType(t *testing.T) {
	t.Parallel()

	tasks := NewMockTaskStore()
	task := newTestTask(t, tasks, domain.TaskTypeDataCleaning, "")
	d := newTestDispatcher(t, tasks)

	err := d.ProcessTask(context.Background(), task.ID)
	assert.ErrorIs(t, err, ErrUnknownTaskType)

	got := mustGet(t, tasks, task.ID)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Equal(t, "unsupported task type: data-cleaning", got.Note)
	assert.NotNil(t, got.EndTime)
}

func TestDispatcher_TerminalTaskIsNoop(t *testing.T) {
	t.Parallel()

	tasks := NewMockTaskStore()
	task := newTestTask(t, tasks, domain.TaskTypeDataCleaning, "")
	_, err := tasks.Update(context.Background(), task.ID, domain.TaskUpdate{
		Status: domain.Ptr(domain.TaskStatusInterrupted),
	})
	require.NoError(t, err)

	h := &fakeHandler{typ: domain.TaskTypeDataCleaning}
	d := newTestDispatcher(t, tasks, h)

	require.NoError(t, d.ProcessTask(context.Background(), task.ID))
	assert.Equal(t, 0, h.Calls())
	assert.Equal(t, domain.TaskStatusInterrupted, mustGet(t, tasks, task.ID).Status)
}

func TestDispatcher_HandlerErrorFailsTask(t *testing.T) {
	t.Parallel()

	tasks := NewMockTaskStore()
	task := newTestTask(t, tasks, domain.TaskTypeDataCleaning, "")
	h := &fakeHandler{
		typ: domain.TaskTypeDataCleaning,
		handle: func(ctx context.Context, run *Run) error {
			return errors.New("could not list chunks")
		},
	}
	d := newTestDispatcher(t, tasks, h)

	err := d.ProcessTask(context.Background(), task.ID)
	require.Error(t, err)

	got := mustGet(t, tasks, task.ID)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Equal(t, "could not list chunks", got.Note)
}

func TestDispatcher_HandlerPanicFailsTask(t *testing.T) {
	t.Parallel()

	tasks := NewMockTaskStore()
	task := newTestTask(t, tasks, domain.TaskTypeDataCleaning, "")
	h := &fakeHandler{
		typ: domain.TaskTypeDataCleaning,
		handle: func(ctx context.Context, run *Run) error {
			panic("nil map")
		},
	}
	d := newTestDispatcher(t, tasks, h)

	err := d.ProcessTask(context.Background(), task.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler panic: nil map")
	assert.Equal(t, domain.TaskStatusFailed, mustGet(t, tasks, task.ID).Status)
}

func TestDispatcher_HandlerErrorDoesNotOverwriteInterrupt(t *testing.T) {
	t.Parallel()

	tasks := NewMockTaskStore()
	task := newTestTask(t, tasks, domain.TaskTypeDataCleaning, "")
	h := &fakeHandler{
		typ: domain.TaskTypeDataCleaning,
		handle: func(ctx context.Context, run *Run) error {
			_, err := tasks.Update(ctx, run.Task.ID, domain.TaskUpdate{
				Status: domain.Ptr(domain.TaskStatusInterrupted),
			})
			require.NoError(t, err)
			return errors.New("late failure")
		},
	}
	d := newTestDispatcher(t, tasks, h)

	_ = d.ProcessTask(context.Background(), task.ID)
	got := mustGet(t, tasks, task.ID)
	assert.Equal(t, domain.TaskStatusInterrupted, got.Status)
	assert.Empty(t, got.Note)
}

func TestDispatcher_DoubleInvokeRunsOnce(t *testing.T) {
	t.Parallel()

	tasks := NewMockTaskStore()
	task := newTestTask(t, tasks, domain.TaskTypeDataCleaning, "")

	release := make(chan struct{})
	entered := make(chan struct{})
	h := &fakeHandler{
		typ: domain.TaskTypeDataCleaning,
		handle: func(ctx context.Context, run *Run) error {
			close(entered)
			<-release
			return run.CompleteEmpty(ctx)
		},
	}
	d := newTestDispatcher(t, tasks, h)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, d.ProcessTask(context.Background(), task.ID))
	}()
	<-entered

	assert.True(t, d.Active(task.ID))
	require.NoError(t, d.ProcessTask(context.Background(), task.ID), "second call is a no-op")
	close(release)
	wg.Wait()

	assert.Equal(t, 1, h.Calls())
	assert.False(t, d.Active(task.ID))

	// Once finished, a late trigger sees a terminal task and does nothing.
	require.NoError(t, d.ProcessTask(context.Background(), task.ID))
	assert.Equal(t, 1, h.Calls())
}

func TestDispatcher_ConcurrencyLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		configs fakeConfigs
		want    int
	}{
		{name: "project limit", configs: fakeConfigs{limit: 7}, want: 7},
		{name: "unset falls back", configs: fakeConfigs{}, want: 4},
		{name: "error falls back", configs: fakeConfigs{limit: 9, err: errors.New("db down")}, want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks := NewMockTaskStore()
			task := newTestTask(t, tasks, domain.TaskTypeDataCleaning, "")

			var got int
			h := &fakeHandler{
				typ: domain.TaskTypeDataCleaning,
				handle: func(ctx context.Context, run *Run) error {
					got = run.ConcurrencyLimit
					return run.CompleteEmpty(ctx)
				},
			}
			registry, err := NewRegistry(h)
			require.NoError(t, err)

			cfg := DefaultDispatcherConfig()
			cfg.DefaultConcurrency = 4
			d := NewDispatcher(tasks, tt.configs, registry, cfg, testLogger())

			require.NoError(t, d.ProcessTask(context.Background(), task.ID))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDispatcher_ShutdownLeavesTaskProcessing(t *testing.T) {
	t.Parallel()

	tasks := NewMockTaskStore()
	task := newTestTask(t, tasks, domain.TaskTypeDataCleaning, "")

	ctx, cancel := context.WithCancel(context.Background())
	h := &fakeHandler{
		typ: domain.TaskTypeDataCleaning,
		handle: func(runCtx context.Context, run *Run) error {
			cancel()
			<-runCtx.Done()
			return runCtx.Err()
		},
	}
	d := newTestDispatcher(t, tasks, h)

	require.NoError(t, d.ProcessTask(ctx, task.ID))
	assert.Equal(t, domain.TaskStatusProcessing, mustGet(t, tasks, task.ID).Status)
}

func TestDispatcher_MissingTask(t *testing.T) {
	t.Parallel()

	tasks := NewMockTaskStore()
	d := newTestDispatcher(t, tasks)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	task, err := domain.NewTask("p", domain.TaskTypeDataCleaning, testModelInfo, "en", nil)
	require.NoError(t, err)

	assert.Error(t, d.ProcessTask(ctx, task.ID))
}
