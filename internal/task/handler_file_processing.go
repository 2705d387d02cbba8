package task

import (
	"context"

	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/store"
)

// fileProcessingHandler splits pending uploads into chunks. A file caught
// mid-split leaves partial chunks behind, so this handler is not resumed
// after a restart.
type fileProcessingHandler struct {
	files store.FileStore
	svc   FileProcessor
}

func (h *fileProcessingHandler) Type() domain.TaskType { return domain.TaskTypeFileProcessing }
func (h *fileProcessingHandler) Resumable() bool      { return false }

func (h *fileProcessingHandler) Handle(ctx context.Context, run *Run) error {
	projectID := run.Task.ProjectID
	return runBatch(ctx, run, batch[domain.ProjectFile]{
		stage: "files",
		list: func(ctx context.Context) ([]domain.ProjectFile, error) {
			return h.files.ListPending(ctx, projectID)
		},
		key: func(f domain.ProjectFile) string { return f.ID },
		process: func(ctx context.Context, f domain.ProjectFile, opts domain.GenerationOptions) error {
			return h.svc.ProcessFile(ctx, f, opts)
		},
		withoutModel: true,
	})
}
