package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/redact"
	"github.com/phrazzld/dataset-forge/internal/store"
)

// Run is one execution of a task. It owns the success and failure counters,
// writes progress to the task row, and carries the cancellation token that
// stops not-yet-started items once an interruption has been observed.
//
// A Run never writes to a row that has left PROCESSING: every write is
// conditional, and the first refused write stops the run.
type Run struct {
	// Task is the row as loaded when the run started.
	Task *domain.Task

	// ConcurrencyLimit bounds in-flight items per stage.
	ConcurrencyLimit int

	tasks           store.TaskStore
	cancel          context.CancelFunc
	logger          *slog.Logger
	maxErrorDetails int
	noteMaxLength   int

	mu            sync.Mutex
	stage         string
	total         int
	base          int
	lastCompleted int
	success       int
	failed        int
	errs          []string
	stopped       bool
	latestStatus  domain.TaskStatus
}

// RunConfig holds the limits a Run applies to its summaries.
type RunConfig struct {
	ConcurrencyLimit int
	MaxErrorDetails  int
	NoteMaxLength    int
}

// NewRun creates a run for task. cancel is called once the run observes
// that the task has been interrupted; it should cancel the context passed
// to the handler.
func NewRun(
	task *domain.Task,
	tasks store.TaskStore,
	cancel context.CancelFunc,
	cfg RunConfig,
	logger *slog.Logger,
) *Run {
	if cancel == nil {
		cancel = func() {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxErrorDetails <= 0 {
		cfg.MaxErrorDetails = 20
	}
	if cfg.NoteMaxLength <= 0 {
		cfg.NoteMaxLength = 2000
	}
	if cfg.ConcurrencyLimit <= 0 {
		cfg.ConcurrencyLimit = 1
	}
	return &Run{
		Task:             task,
		ConcurrencyLimit: cfg.ConcurrencyLimit,
		tasks:            tasks,
		cancel:           cancel,
		logger:           logger,
		maxErrorDetails:  cfg.MaxErrorDetails,
		noteMaxLength:    cfg.NoteMaxLength,
		latestStatus:     task.Status,
		total:            task.TotalCount,
		lastCompleted:    task.CompletedCount,
	}
}

// Options parses the task's model info into the options every service gets.
func (r *Run) Options() (domain.GenerationOptions, error) {
	mi, err := domain.ParseModelInfo(r.Task.ModelInfo)
	if err != nil {
		return domain.GenerationOptions{}, fmt.Errorf("%w: %w", ErrInvalidModelInfo, err)
	}
	return domain.GenerationOptions{Model: mi, Language: r.Task.Language}, nil
}

// Logger returns the run's logger.
func (r *Run) Logger() *slog.Logger {
	return r.logger
}

// SetStage names the current phase in progress details.
func (r *Run) SetStage(stage string) {
	r.mu.Lock()
	r.stage = stage
	r.mu.Unlock()
}

// Announce persists the size of the run. total never drops below the
// stored value; base is the amount of work already done before this run,
// which seeds completedCount.
func (r *Run) Announce(ctx context.Context, total, base int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if total < r.Task.TotalCount {
		total = r.Task.TotalCount
	}
	r.total = total
	r.base = min(base, total)
	completed := r.completedLocked()
	detail := r.detailLocked(completed)
	r.lastCompleted = completed

	return r.updateLocked(ctx, domain.TaskUpdate{
		TotalCount:     &total,
		CompletedCount: &completed,
		Detail:         &detail,
	})
}

// CheckInterrupted re-reads the task row and reports whether the run must
// stop. A terminal status, a deleted row or a cancelled ctx all stop it;
// the first two also cancel the run's context.
func (r *Run) CheckInterrupted(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	if r.Stopped() {
		return true
	}

	current, err := r.tasks.Get(context.WithoutCancel(ctx), r.Task.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.stop(domain.TaskStatusInterrupted)
			return true
		}
		r.logger.Warn("failed to re-read task, continuing", "error", err)
		return false
	}
	if current.Status != domain.TaskStatusProcessing {
		r.stop(current.Status)
		return true
	}
	return false
}

// Record counts one settled item of the given weight and persists progress.
// Failures keep the first MaxErrorDetails messages for the final note.
func (r *Run) Record(ctx context.Context, weight int, key string, err error) {
	if weight <= 0 {
		weight = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.failed += weight
		if len(r.errs) < r.maxErrorDetails {
			r.errs = append(r.errs, key+": "+redact.Error(err))
		}
		r.logger.Warn("work item failed", "item", key, "error", redact.Error(err))
	} else {
		r.success += weight
	}

	if r.stopped {
		return
	}
	completed := r.completedLocked()
	detail := r.detailLocked(completed)
	r.lastCompleted = completed
	if uerr := r.updateLocked(ctx, domain.TaskUpdate{
		CompletedCount: &completed,
		Detail:         &detail,
	}); uerr != nil {
		r.logger.Error("failed to persist progress", "error", uerr)
	}
}

// Finalize writes the terminal status unless the run was stopped. The task
// fails only when something failed and nothing succeeded. extra is appended
// to the summary note.
func (r *Run) Finalize(ctx context.Context, extra string) error {
	if ctx.Err() != nil {
		r.logger.Info("run cancelled, leaving task for recovery")
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		r.logger.Info("run stopped, skipping finalize",
			"status", r.latestStatus.String())
		return nil
	}

	status := domain.TaskStatusCompleted
	if r.failed > 0 && r.success == 0 {
		status = domain.TaskStatusFailed
	}
	completed := r.completedLocked()
	detail := r.detailLocked(completed)
	note := r.noteLocked(extra)
	r.lastCompleted = completed

	if err := r.updateLocked(ctx, domain.TaskUpdate{
		Status:         &status,
		CompletedCount: &completed,
		Detail:         &detail,
		Note:           &note,
	}); err != nil {
		return fmt.Errorf("failed to finalize task: %w", err)
	}

	r.logger.Info("task finished",
		"status", status.String(),
		"succeeded", r.success,
		"failed", r.failed)
	return nil
}

// CompleteEmpty finishes a run that found nothing to do. totalCount is kept
// as stored, which is zero for a fresh task.
func (r *Run) CompleteEmpty(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return nil
	}
	status := domain.TaskStatusCompleted
	total := r.Task.TotalCount
	note := "no work items to process"
	detail := fmt.Sprintf("%d/%d completed", total, total)
	return r.updateLocked(ctx, domain.TaskUpdate{
		Status:         &status,
		TotalCount:     &total,
		CompletedCount: &total,
		Detail:         &detail,
		Note:           &note,
	})
}

// Stopped reports whether the run observed that its task left PROCESSING.
func (r *Run) Stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

// Counts returns the success and failure totals so far.
func (r *Run) Counts() (success, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.success, r.failed
}

func (r *Run) stop(status domain.TaskStatus) {
	r.mu.Lock()
	r.stopLocked(status)
	r.mu.Unlock()
}

func (r *Run) stopLocked(status domain.TaskStatus) {
	if !r.stopped {
		r.logger.Info("task left processing, stopping run", "status", status.String())
	}
	r.stopped = true
	r.latestStatus = status
	r.cancel()
}

// updateLocked writes u guarded by status = PROCESSING. A refused write
// stops the run and is not reported as an error.
func (r *Run) updateLocked(ctx context.Context, u domain.TaskUpdate) error {
	u.IfStatus = domain.Ptr(domain.TaskStatusProcessing)
	current, err := r.tasks.Update(context.WithoutCancel(ctx), r.Task.ID, u)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrTaskNotProcessing):
		status := domain.TaskStatusInterrupted
		if current != nil {
			status = current.Status
		}
		r.stopLocked(status)
		return nil
	case errors.Is(err, store.ErrNotFound):
		r.stopLocked(domain.TaskStatusInterrupted)
		return nil
	default:
		return err
	}
}

func (r *Run) completedLocked() int {
	completed := max(r.lastCompleted, r.base+r.success+r.failed)
	return min(completed, r.total)
}

func (r *Run) detailLocked(completed int) string {
	prefix := ""
	if r.stage != "" {
		prefix = r.stage + ": "
	}
	return fmt.Sprintf("%s%d/%d completed, %d failed", prefix, completed, r.total, r.failed)
}

func (r *Run) noteLocked(extra string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "succeeded: %d, failed: %d", r.success, r.failed)
	if extra != "" {
		b.WriteString(", ")
		b.WriteString(extra)
	}
	if len(r.errs) > 0 {
		b.WriteString("\nerrors:\n")
		b.WriteString(strings.Join(r.errs, "\n"))
	}
	return truncate(b.String(), r.noteMaxLength)
}

// truncate cuts s to at most n runes, marking the cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if n <= 0 || len(runes) <= n {
		return s
	}
	const marker = "..."
	if n <= len(marker) {
		return string(runes[:n])
	}
	return string(runes[:n-len(marker)]) + marker
}
