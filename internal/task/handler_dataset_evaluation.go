package task

import (
	"context"

	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/store"
)

// datasetEvaluationHandler scores every dataset without a score.
type datasetEvaluationHandler struct {
	datasets store.DatasetStore
	svc      DatasetEvaluator
}

func (h *datasetEvaluationHandler) Type() domain.TaskType { return domain.TaskTypeDatasetEvaluation }
func (h *datasetEvaluationHandler) Resumable() bool      { return true }

func (h *datasetEvaluationHandler) Handle(ctx context.Context, run *Run) error {
	projectID := run.Task.ProjectID
	return runBatch(ctx, run, batch[domain.Dataset]{
		stage: "datasets",
		list: func(ctx context.Context) ([]domain.Dataset, error) {
			return h.datasets.ListUnscored(ctx, projectID)
		},
		key: func(d domain.Dataset) string { return d.ID },
		process: func(ctx context.Context, d domain.Dataset, opts domain.GenerationOptions) error {
			return h.svc.EvaluateDataset(ctx, projectID, d.ID, opts)
		},
	})
}
