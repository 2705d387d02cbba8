package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/store"
)

// DispatcherConfig holds engine-wide defaults applied to every run.
type DispatcherConfig struct {
	// DefaultConcurrency is used when a project has no limit of its own.
	DefaultConcurrency int
	MaxErrorDetails    int
	NoteMaxLength      int
}

// DefaultDispatcherConfig returns a DispatcherConfig with reasonable defaults
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		DefaultConcurrency: 3,
		MaxErrorDetails:    20,
		NoteMaxLength:      2000,
	}
}

// Dispatcher routes a task to its handler and is the backstop for handler
// failures. At most one run per task is active in the process.
type Dispatcher struct {
	tasks    store.TaskStore
	configs  store.ProjectConfigStore
	registry *Registry
	config   DispatcherConfig
	logger   *slog.Logger

	mu     sync.Mutex
	active map[uuid.UUID]struct{}
}

// NewDispatcher creates a dispatcher. configs may be nil, in which case
// every project uses the default concurrency.
func NewDispatcher(
	tasks store.TaskStore,
	configs store.ProjectConfigStore,
	registry *Registry,
	config DispatcherConfig,
	logger *slog.Logger,
) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if config.DefaultConcurrency <= 0 {
		config.DefaultConcurrency = DefaultDispatcherConfig().DefaultConcurrency
	}
	return &Dispatcher{
		tasks:    tasks,
		configs:  configs,
		registry: registry,
		config:   config,
		logger:   logger.With("component", "task_dispatcher"),
		active:   make(map[uuid.UUID]struct{}),
	}
}

// ProcessTask runs the task to completion. It is a no-op when the task is
// terminal or already running in this process, so the trigger and recovery
// may both call it. Unknown types and handler failures mark the task FAILED
// unless it is already terminal.
func (d *Dispatcher) ProcessTask(ctx context.Context, taskID uuid.UUID) error {
	if !d.acquire(taskID) {
		d.logger.Debug("task already running, ignoring", "task_id", taskID)
		return nil
	}
	defer d.release(taskID)

	task, err := d.tasks.Get(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to load task %s: %w", taskID, err)
	}
	if task.Status.IsTerminal() {
		d.logger.Debug("task already finished, ignoring",
			"task_id", taskID,
			"status", task.Status.String())
		return nil
	}

	log := d.logger.With(
		"task_id", task.ID,
		"task_type", task.Type,
		"project_id", task.ProjectID,
	)

	handler, ok := d.registry.Lookup(task.Type)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownTaskType, task.Type)
		log.Error("no handler for task type")
		d.fail(ctx, task.ID, err.Error(), log)
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	run := NewRun(task, d.tasks, cancel, RunConfig{
		ConcurrencyLimit: d.concurrencyLimit(ctx, task.ProjectID, log),
		MaxErrorDetails:  d.config.MaxErrorDetails,
		NoteMaxLength:    d.config.NoteMaxLength,
	}, log)

	log.Info("processing task", "concurrency_limit", run.ConcurrencyLimit)
	if err := invokeHandler(runCtx, handler, run); err != nil {
		if ctx.Err() != nil {
			log.Info("task run cancelled, leaving task for recovery", "error", err)
			return nil
		}
		log.Error("task handler failed", "error", err)
		d.fail(ctx, task.ID, err.Error(), log)
		return err
	}
	return nil
}

// Active reports whether a run for taskID is in progress.
func (d *Dispatcher) Active(taskID uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.active[taskID]
	return ok
}

func (d *Dispatcher) acquire(taskID uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.active[taskID]; busy {
		return false
	}
	d.active[taskID] = struct{}{}
	return true
}

func (d *Dispatcher) release(taskID uuid.UUID) {
	d.mu.Lock()
	delete(d.active, taskID)
	d.mu.Unlock()
}

func (d *Dispatcher) concurrencyLimit(ctx context.Context, projectID string, log *slog.Logger) int {
	if d.configs == nil {
		return d.config.DefaultConcurrency
	}
	cfg, err := d.configs.GetTaskConfig(ctx, projectID)
	if err != nil {
		log.Warn("failed to load project task config, using default", "error", err)
		return d.config.DefaultConcurrency
	}
	if cfg.ConcurrencyLimit <= 0 {
		return d.config.DefaultConcurrency
	}
	return cfg.ConcurrencyLimit
}

// fail marks the task FAILED unless it has already left PROCESSING.
func (d *Dispatcher) fail(ctx context.Context, taskID uuid.UUID, reason string, log *slog.Logger) {
	_, err := d.tasks.Update(context.WithoutCancel(ctx), taskID, domain.TaskUpdate{
		Status:   domain.Ptr(domain.TaskStatusFailed),
		Note:     domain.Ptr(truncate(reason, d.config.NoteMaxLength)),
		IfStatus: domain.Ptr(domain.TaskStatusProcessing),
	})
	if err != nil && !errors.Is(err, store.ErrTaskNotProcessing) {
		log.Error("failed to mark task as failed", "error", err)
	}
}

// invokeHandler converts a handler panic into an error.
func invokeHandler(ctx context.Context, h Handler, run *Run) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return h.Handle(ctx, run)
}
