package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/phrazzld/dataset-forge/internal/domain"
)

// errSkipped marks items not run because the task was interrupted.
var errSkipped = errors.New("skipped: task interrupted")

// batch describes a single-stage handler: which items to process and what
// to do with each one.
type batch[T any] struct {
	// stage names the work in progress details, e.g. "chunks".
	stage string

	// list and processed enumerate the work, see UnprocessedWorkItems.
	list      ListFunc[T]
	processed ProcessedFunc
	key       func(T) string

	// process runs the domain service for one item.
	process func(ctx context.Context, item T, opts domain.GenerationOptions) error

	// withoutModel skips model info parsing for handlers that never call a model.
	withoutModel bool

	// summary, when set, is appended to the final note.
	summary func(ctx context.Context) string
}

// runBatch is the shared handler state machine: init, enumerate, empty
// check, announce, dispatch and finalize.
func runBatch[T any](ctx context.Context, run *Run, b batch[T]) error {
	opts := domain.GenerationOptions{Language: run.Task.Language}
	if !b.withoutModel {
		var err error
		if opts, err = run.Options(); err != nil {
			return err
		}
	}

	items, err := UnprocessedWorkItems(ctx, b.list, b.processed, b.key)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return run.CompleteEmpty(ctx)
	}

	run.SetStage(b.stage)
	// Progress a previous run persisted is the part already done; items
	// added since then grow the total instead of counting as finished.
	base := run.Task.CompletedCount
	total := max(run.Task.TotalCount, base+len(items))
	if err := run.Announce(ctx, total, base); err != nil {
		return fmt.Errorf("failed to announce task size: %w", err)
	}
	run.Logger().Info("processing work items", "stage", b.stage, "count", len(items))

	runStage(ctx, run, items, b.key, func(T) int { return 1 },
		func(ctx context.Context, item T) error { return b.process(ctx, item, opts) })

	extra := ""
	if b.summary != nil && !run.Stopped() && ctx.Err() == nil {
		extra = b.summary(context.WithoutCancel(ctx))
	}
	return run.Finalize(ctx, extra)
}

// runStage fans items out through ProcessInParallel. Each worker checks
// for interruption before starting, then records its outcome with the
// given weight. In-flight items are not preempted: the service call gets a
// context that survives the run's cancellation.
func runStage[T any](
	ctx context.Context,
	run *Run,
	items []T,
	key func(T) string,
	weight func(T) int,
	process func(ctx context.Context, item T) error,
) {
	ProcessInParallel(ctx, items, run.ConcurrencyLimit,
		func(ctx context.Context, item T) (struct{}, error) {
			if run.CheckInterrupted(ctx) {
				return struct{}{}, errSkipped
			}
			itemCtx := context.WithoutCancel(ctx)
			err := process(itemCtx, item)
			run.Record(itemCtx, weight(item), key(item), err)
			return struct{}{}, err
		}, nil)
}
