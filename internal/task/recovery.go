package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/store"
)

// LaunchFunc starts a task run asynchronously.
type LaunchFunc func(taskID uuid.UUID)

// RecoveryReport summarizes one sweep.
type RecoveryReport struct {
	Resumed []uuid.UUID
	Failed  []uuid.UUID
}

// Recovery re-attaches to tasks left PROCESSING by a previous process.
type Recovery struct {
	tasks    store.TaskStore
	registry *Registry
	launch   LaunchFunc
	logger   *slog.Logger
}

// NewRecovery creates a recovery sweeper that starts runs through launch.
func NewRecovery(tasks store.TaskStore, registry *Registry, launch LaunchFunc, logger *slog.Logger) *Recovery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recovery{
		tasks:    tasks,
		registry: registry,
		launch:   launch,
		logger:   logger.With("component", "task_recovery"),
	}
}

// Sweep launches every resumable PROCESSING task and fails the rest with
// an explanatory note. Launches do not block. Unknown types are launched
// too, so the dispatcher records why they fail.
func (r *Recovery) Sweep(ctx context.Context) (RecoveryReport, error) {
	var report RecoveryReport

	tasks, err := r.tasks.ListByStatus(ctx, domain.TaskStatusProcessing)
	if err != nil {
		return report, fmt.Errorf("failed to list processing tasks: %w", err)
	}
	r.logger.Info("recovering unfinished tasks", "processing_count", len(tasks))

	for _, t := range tasks {
		h, ok := r.registry.Lookup(t.Type)
		if ok && !h.Resumable() {
			note := fmt.Sprintf("task interrupted by restart; %s cannot be resumed", t.Type)
			_, err := r.tasks.Update(ctx, t.ID, domain.TaskUpdate{
				Status:   domain.Ptr(domain.TaskStatusFailed),
				Note:     &note,
				IfStatus: domain.Ptr(domain.TaskStatusProcessing),
			})
			if err != nil && !errors.Is(err, store.ErrTaskNotProcessing) {
				r.logger.Error("failed to mark non-resumable task as failed",
					"task_id", t.ID,
					"task_type", t.Type,
					"error", err)
				continue
			}
			report.Failed = append(report.Failed, t.ID)
			continue
		}

		r.logger.Info("resuming task",
			"task_id", t.ID,
			"task_type", t.Type,
			"completed_count", t.CompletedCount,
			"total_count", t.TotalCount)
		r.launch(t.ID)
		report.Resumed = append(report.Resumed, t.ID)
	}

	return report, nil
}
