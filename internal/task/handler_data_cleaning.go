package task

import (
	"context"

	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/store"
)

// dataCleaningHandler rewrites every chunk not cleaned yet.
type dataCleaningHandler struct {
	chunks store.ChunkStore
	svc    ChunkCleaner
}

func (h *dataCleaningHandler) Type() domain.TaskType { return domain.TaskTypeDataCleaning }
func (h *dataCleaningHandler) Resumable() bool      { return true }

func (h *dataCleaningHandler) Handle(ctx context.Context, run *Run) error {
	projectID := run.Task.ProjectID
	return runBatch(ctx, run, batch[domain.Chunk]{
		stage: "chunks",
		list: func(ctx context.Context) ([]domain.Chunk, error) {
			return h.chunks.ListUncleaned(ctx, projectID)
		},
		key: chunkKey,
		process: func(ctx context.Context, c domain.Chunk, opts domain.GenerationOptions) error {
			return h.svc.CleanChunk(ctx, projectID, c.ID, opts)
		},
	})
}
