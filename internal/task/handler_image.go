package task

import (
	"context"

	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/store"
)

// imageQuestionHandler generates questions for every image that has none.
type imageQuestionHandler struct {
	images    store.ImageStore
	questions store.QuestionStore
	svc       ImageQuestionGenerator
}

func (h *imageQuestionHandler) Type() domain.TaskType { return domain.TaskTypeImageQuestionGeneration }
func (h *imageQuestionHandler) Resumable() bool      { return true }

func (h *imageQuestionHandler) Handle(ctx context.Context, run *Run) error {
	projectID := run.Task.ProjectID
	return runBatch(ctx, run, batch[domain.Image]{
		stage: "images",
		list: func(ctx context.Context) ([]domain.Image, error) {
			return h.images.ListByProject(ctx, projectID)
		},
		processed: func(ctx context.Context) (store.IDSet, error) {
			return h.questions.ImageIDsWithQuestions(ctx, projectID)
		},
		key: func(img domain.Image) string { return img.ID },
		process: func(ctx context.Context, img domain.Image, opts domain.GenerationOptions) error {
			return h.svc.GenerateImageQuestions(ctx, projectID, img.ID, opts)
		},
	})
}

// imageDatasetHandler answers every unanswered image question.
type imageDatasetHandler struct {
	questions store.QuestionStore
	svc       AnswerGenerator
}

func (h *imageDatasetHandler) Type() domain.TaskType { return domain.TaskTypeImageDatasetGeneration }
func (h *imageDatasetHandler) Resumable() bool      { return true }

func (h *imageDatasetHandler) Handle(ctx context.Context, run *Run) error {
	projectID := run.Task.ProjectID
	return runBatch(ctx, run, batch[domain.Question]{
		stage: "image questions",
		list: func(ctx context.Context) ([]domain.Question, error) {
			return h.questions.ListUnanswered(ctx, projectID, true)
		},
		key: questionKey,
		process: func(ctx context.Context, q domain.Question, opts domain.GenerationOptions) error {
			return h.svc.GenerateAnswer(ctx, projectID, q.ID, opts)
		},
	})
}
