package task

import (
	"context"

	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/store"
)

// multiTurnHandler turns every answered question without a conversation
// into a multi-turn dialogue.
type multiTurnHandler struct {
	questions     store.QuestionStore
	conversations store.ConversationStore
	svc           ConversationGenerator
}

func (h *multiTurnHandler) Type() domain.TaskType { return domain.TaskTypeMultiTurnGeneration }
func (h *multiTurnHandler) Resumable() bool      { return true }

func (h *multiTurnHandler) Handle(ctx context.Context, run *Run) error {
	projectID := run.Task.ProjectID
	return runBatch(ctx, run, batch[domain.Question]{
		stage: "conversations",
		list: func(ctx context.Context) ([]domain.Question, error) {
			return h.questions.ListAnswered(ctx, projectID)
		},
		processed: func(ctx context.Context) (store.IDSet, error) {
			return h.conversations.QuestionIDsWithConversations(ctx, projectID)
		},
		key: questionKey,
		process: func(ctx context.Context, q domain.Question, opts domain.GenerationOptions) error {
			return h.svc.GenerateConversation(ctx, projectID, q.ID, opts)
		},
	})
}
