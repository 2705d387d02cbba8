package task

import (
	"context"
	"fmt"

	"github.com/phrazzld/dataset-forge/internal/store"
)

// ListFunc loads every eligible work item of a run.
type ListFunc[T any] func(ctx context.Context) ([]T, error)

// ProcessedFunc loads the ids of items that are already done. It may be nil
// when ListFunc already filters them out.
type ProcessedFunc func(ctx context.Context) (store.IDSet, error)

// UnprocessedWorkItems returns the items of all whose key is not in processed,
// preserving order.
func UnprocessedWorkItems[T any](
	ctx context.Context,
	all ListFunc[T],
	processed ProcessedFunc,
	key func(T) string,
) ([]T, error) {
	items, err := all(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}
	if processed == nil {
		return items, nil
	}
	done, err := processed(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processed work items: %w", err)
	}
	if len(done) == 0 {
		return items, nil
	}

	out := make([]T, 0, len(items))
	for _, item := range items {
		if !done.Has(key(item)) {
			out = append(out, item)
		}
	}
	return out, nil
}
