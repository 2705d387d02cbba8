package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/events"
	"github.com/phrazzld/dataset-forge/internal/store"
)

// SubmitRequest describes a task to create.
type SubmitRequest struct {
	ProjectID string
	Type      domain.TaskType
	ModelInfo string
	Language  string
	Config    json.RawMessage
}

// Engine owns the lifecycle of task runs: it creates task records, launches
// runs in the background, runs recovery once at boot and drains runs on
// shutdown.
type Engine struct {
	tasks      store.TaskStore
	dispatcher *Dispatcher
	recovery   *Recovery
	emitter    events.EventEmitter
	logger     *slog.Logger

	ctx         context.Context
	cancelFunc  context.CancelFunc
	wg          sync.WaitGroup
	recoverOnce sync.Once

	mu      sync.Mutex
	stopped bool
}

// NewEngine creates an engine. When emitter is nil, submitted tasks are
// launched directly; otherwise the engine must be registered as a handler
// on the emitter.
func NewEngine(
	tasks store.TaskStore,
	dispatcher *Dispatcher,
	registry *Registry,
	emitter events.EventEmitter,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		tasks:      tasks,
		dispatcher: dispatcher,
		emitter:    emitter,
		logger:     logger.With("component", "task_engine"),
		ctx:        ctx,
		cancelFunc: cancel,
	}
	e.recovery = NewRecovery(tasks, registry, e.Launch, logger)
	return e
}

// Start runs the recovery sweep. Only the first call sweeps; later calls
// return nil.
func (e *Engine) Start(ctx context.Context) error {
	var err error
	e.recoverOnce.Do(func() {
		var report RecoveryReport
		report, err = e.recovery.Sweep(ctx)
		if err != nil {
			err = fmt.Errorf("failed to recover tasks: %w", err)
			return
		}
		e.logger.Info("task recovery finished",
			"resumed", len(report.Resumed),
			"failed", len(report.Failed))
	})
	return err
}

// Submit creates a PROCESSING task record and starts it in the background.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (*domain.Task, error) {
	if e.isStopped() {
		return nil, ErrEngineStopped
	}

	t, err := domain.NewTask(req.ProjectID, req.Type, req.ModelInfo, req.Language, req.Config)
	if err != nil {
		return nil, err
	}
	if err := e.tasks.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to save task: %w", err)
	}

	if e.emitter == nil {
		e.Launch(t.ID)
		return t, nil
	}

	event := events.NewTaskEvent(events.KindSubmitted, t.ID, string(t.Type), t.ProjectID)
	if err := e.emitter.EmitEvent(ctx, event); err != nil {
		e.logger.Error("failed to emit task event", "task_id", t.ID, "error", err)
		note := truncate("failed to start task: "+err.Error(), e.dispatcher.config.NoteMaxLength)
		if _, uerr := e.tasks.Update(ctx, t.ID, domain.TaskUpdate{
			Status:   domain.Ptr(domain.TaskStatusFailed),
			Note:     &note,
			IfStatus: domain.Ptr(domain.TaskStatusProcessing),
		}); uerr != nil {
			e.logger.Error("failed to mark task as failed", "task_id", t.ID, "error", uerr)
		}
		return nil, fmt.Errorf("failed to start task: %w", err)
	}
	return t, nil
}

// HandleEvent launches the task of a KindSubmitted event. Other kinds are
// ignored.
func (e *Engine) HandleEvent(ctx context.Context, event *events.TaskEvent) error {
	if event.Kind != events.KindSubmitted {
		return nil
	}
	if event.TaskID == uuid.Nil {
		return fmt.Errorf("event %s carries no task id", event.ID)
	}
	e.logger.Debug("launching task from event",
		"task_id", event.TaskID,
		"event_id", event.ID)
	e.Launch(event.TaskID)
	return nil
}

// Ensure Engine implements events.EventHandler
var _ events.EventHandler = (*Engine)(nil)

// Launch runs the task in a new goroutine. It is a no-op after Stop.
func (e *Engine) Launch(taskID uuid.UUID) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		e.logger.Warn("engine stopped, not launching task", "task_id", taskID)
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		if err := e.dispatcher.ProcessTask(e.ctx, taskID); err != nil {
			e.logger.Error("task run failed", "task_id", taskID, "error", err)
		}
	}()
}

// Interrupt moves a PROCESSING task to INTERRUPTED. The running handler
// notices at its next item boundary. Returns store.ErrTaskNotProcessing
// with the current row when the task has already finished.
func (e *Engine) Interrupt(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	now := time.Now().UTC()
	t, err := e.tasks.Update(ctx, taskID, domain.TaskUpdate{
		Status:   domain.Ptr(domain.TaskStatusInterrupted),
		EndTime:  &now,
		IfStatus: domain.Ptr(domain.TaskStatusProcessing),
	})
	if err != nil {
		return t, err
	}
	e.logger.Info("task interrupted", "task_id", taskID)
	if e.emitter != nil {
		event := events.NewTaskEvent(events.KindInterrupted, t.ID, string(t.Type), t.ProjectID)
		if err := e.emitter.EmitEvent(ctx, event); err != nil {
			e.logger.Warn("failed to emit interrupt event", "task_id", taskID, "error", err)
		}
	}
	return t, nil
}

// Delete interrupts the task if it is still running, then removes it.
func (e *Engine) Delete(ctx context.Context, taskID uuid.UUID) error {
	if _, err := e.Interrupt(ctx, taskID); err != nil && !errors.Is(err, store.ErrTaskNotProcessing) {
		return err
	}
	return e.tasks.Delete(ctx, taskID)
}

// Stop refuses new launches, cancels running tasks at their next item
// boundary and waits for them until ctx is done. Tasks stopped this way
// stay PROCESSING and are resumed by the next Start.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()

	e.cancelFunc()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for task runs: %w", ctx.Err())
	}
}

func (e *Engine) isStopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}
