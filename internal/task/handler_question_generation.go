package task

import (
	"context"

	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/store"
)

func chunkKey(c domain.Chunk) string { return c.ID }

// questionGenerationHandler generates questions for every chunk that has none.
type questionGenerationHandler struct {
	chunks    store.ChunkStore
	questions store.QuestionStore
	svc       QuestionGenerator
}

func (h *questionGenerationHandler) Type() domain.TaskType { return domain.TaskTypeQuestionGeneration }
func (h *questionGenerationHandler) Resumable() bool      { return true }

func (h *questionGenerationHandler) Handle(ctx context.Context, run *Run) error {
	projectID := run.Task.ProjectID
	return runBatch(ctx, run, batch[domain.Chunk]{
		stage: "chunks",
		list: func(ctx context.Context) ([]domain.Chunk, error) {
			return h.chunks.ListByProject(ctx, projectID)
		},
		processed: func(ctx context.Context) (store.IDSet, error) {
			return h.questions.ChunkIDsWithQuestions(ctx, projectID)
		},
		key: chunkKey,
		process: func(ctx context.Context, c domain.Chunk, opts domain.GenerationOptions) error {
			return h.svc.GenerateQuestions(ctx, projectID, c.ID, opts)
		},
	})
}
