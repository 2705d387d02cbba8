package task

import (
	"context"

	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/store"
)

func questionKey(q domain.Question) string { return q.ID }

// answerGenerationHandler answers every unanswered text question.
type answerGenerationHandler struct {
	questions store.QuestionStore
	svc       AnswerGenerator
}

func (h *answerGenerationHandler) Type() domain.TaskType { return domain.TaskTypeAnswerGeneration }
func (h *answerGenerationHandler) Resumable() bool      { return true }

func (h *answerGenerationHandler) Handle(ctx context.Context, run *Run) error {
	projectID := run.Task.ProjectID
	return runBatch(ctx, run, batch[domain.Question]{
		stage: "questions",
		list: func(ctx context.Context) ([]domain.Question, error) {
			return h.questions.ListUnanswered(ctx, projectID, false)
		},
		key: questionKey,
		process: func(ctx context.Context, q domain.Question, opts domain.GenerationOptions) error {
			return h.svc.GenerateAnswer(ctx, projectID, q.ID, opts)
		},
	})
}
