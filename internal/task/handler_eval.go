package task

import (
	"context"
	"fmt"

	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/store"
)

// evalGenerationHandler builds benchmark rows from every chunk that has none.
type evalGenerationHandler struct {
	chunks store.ChunkStore
	evals  store.EvalStore
	svc    EvalQuestionGenerator
}

func (h *evalGenerationHandler) Type() domain.TaskType { return domain.TaskTypeEvalGeneration }
func (h *evalGenerationHandler) Resumable() bool      { return true }

func (h *evalGenerationHandler) Handle(ctx context.Context, run *Run) error {
	projectID := run.Task.ProjectID
	return runBatch(ctx, run, batch[domain.Chunk]{
		stage: "chunks",
		list: func(ctx context.Context) ([]domain.Chunk, error) {
			return h.chunks.ListByProject(ctx, projectID)
		},
		processed: func(ctx context.Context) (store.IDSet, error) {
			return h.evals.ChunkIDsWithDatasets(ctx, projectID)
		},
		key: chunkKey,
		process: func(ctx context.Context, c domain.Chunk, opts domain.GenerationOptions) error {
			return h.svc.GenerateEvalQuestions(ctx, projectID, c.ID, opts)
		},
	})
}

// modelEvaluationHandler grades the task's model on the benchmark rows
// selected by the task config. Results are scoped to the task, so a rerun
// of the same task skips rows it already graded.
type modelEvaluationHandler struct {
	evals store.EvalStore
	svc   ModelEvaluator
}

func (h *modelEvaluationHandler) Type() domain.TaskType { return domain.TaskTypeModelEvaluation }
func (h *modelEvaluationHandler) Resumable() bool      { return true }

func (h *modelEvaluationHandler) Handle(ctx context.Context, run *Run) error {
	cfg, err := domain.ParseModelEvaluationConfig(run.Task.Config)
	if err != nil {
		return err
	}
	projectID := run.Task.ProjectID
	taskID := run.Task.ID.String()

	return runBatch(ctx, run, batch[domain.EvalDataset]{
		stage: "eval rows",
		list: func(ctx context.Context) ([]domain.EvalDataset, error) {
			return h.evals.ListDatasets(ctx, projectID, cfg.EvalDatasetIDs)
		},
		processed: func(ctx context.Context) (store.IDSet, error) {
			return h.evals.DatasetIDsWithResults(ctx, taskID)
		},
		key: func(r domain.EvalDataset) string { return r.ID },
		process: func(ctx context.Context, r domain.EvalDataset, opts domain.GenerationOptions) error {
			return h.svc.EvaluateModel(ctx, taskID, projectID, r.ID, opts)
		},
		summary: func(ctx context.Context) string {
			correct, total, err := h.evals.ResultSummary(ctx, taskID)
			if err != nil || total == 0 {
				return ""
			}
			return fmt.Sprintf("accuracy: %d/%d (%.1f%%)", correct, total, 100*float64(correct)/float64(total))
		},
	})
}
