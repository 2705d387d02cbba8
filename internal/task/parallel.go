package task

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// WorkerFunc processes one item.
type WorkerFunc[T, R any] func(ctx context.Context, item T) (R, error)

// ProgressFunc is told how many items have settled so far. It is called
// once per settlement, never concurrently.
type ProgressFunc func(settled, total int)

// Result is the outcome of one item. Err is set when the worker failed,
// panicked, or was never started because ctx was cancelled.
type Result[R any] struct {
	Value R
	Err   error
}

// ProcessInParallel runs fn over items with at most limit calls in flight.
// A failing item never aborts the batch. Results are index-aligned with
// items. Once ctx is cancelled, items that have not started settle with
// ctx.Err() without calling fn; in-flight calls run to completion.
func ProcessInParallel[T, R any](
	ctx context.Context,
	items []T,
	limit int,
	fn WorkerFunc[T, R],
	onProgress ProgressFunc,
) []Result[R] {
	results := make([]Result[R], len(items))
	if len(items) == 0 {
		return results
	}
	if limit <= 0 {
		limit = 1
	}

	var (
		mu      sync.Mutex
		settled int
	)
	settle := func(i int, r Result[R]) {
		results[i] = r
		mu.Lock()
		defer mu.Unlock()
		settled++
		if onProgress != nil {
			onProgress(settled, len(items))
		}
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			settle(i, Result[R]{Err: err})
			continue
		}
		// Go blocks until a slot is free.
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				settle(i, Result[R]{Err: err})
				return nil
			}
			v, err := callWorker(ctx, fn, item)
			settle(i, Result[R]{Value: v, Err: err})
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func callWorker[T, R any](ctx context.Context, fn WorkerFunc[T, R], item T) (v R, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("worker panic: %v", p)
		}
	}()
	return fn(ctx, item)
}
