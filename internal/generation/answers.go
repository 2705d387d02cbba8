package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/llm"
	"github.com/phrazzld/dataset-forge/internal/store"
)

type answerResponse struct {
	Answer string `json:"answer"`
	CoT    string `json:"cot"`
}

// GenerateAnswer answers one question from its source chunk, image or tag
// and stores the resulting dataset.
func (s *Service) GenerateAnswer(ctx context.Context, projectID, questionID string, opts domain.GenerationOptions) error {
	q, err := s.stores.Questions.Get(ctx, questionID)
	if err != nil {
		return fmt.Errorf("failed to load question %s: %w", questionID, err)
	}

	data := map[string]any{"Question": q.Text, "Label": q.Label}
	var images []llm.Image
	switch {
	case q.ChunkID != "":
		chunk, err := s.stores.Chunks.Get(ctx, q.ChunkID)
		if err != nil {
			return fmt.Errorf("failed to load chunk %s: %w", q.ChunkID, err)
		}
		data["Context"] = chunk.Content
	case q.ImageID != "":
		_, img, err := s.loadImage(ctx, q.ImageID)
		if err != nil {
			return err
		}
		images = append(images, img)
	}

	var resp answerResponse
	if err := s.completeJSON(ctx, opts, "answer.tmpl", data, images, &resp); err != nil {
		return err
	}
	if strings.TrimSpace(resp.Answer) == "" {
		return fmt.Errorf("%w: empty answer", ErrInvalidResponse)
	}

	if err := s.stores.Datasets.Create(ctx, &domain.Dataset{
		ID:         uuid.NewString(),
		ProjectID:  projectID,
		QuestionID: q.ID,
		Question:   q.Text,
		Answer:     strings.TrimSpace(resp.Answer),
		CoT:        strings.TrimSpace(resp.CoT),
	}); err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}
	if err := s.stores.Questions.MarkAnswered(ctx, q.ID); err != nil {
		return fmt.Errorf("failed to mark question answered: %w", err)
	}
	return nil
}

type conversationResponse struct {
	Turns []domain.ConversationTurn `json:"turns"`
}

// GenerateConversation extends an answered question into a multi-turn
// dialogue. The stored conversation opens with the original exchange.
func (s *Service) GenerateConversation(
	ctx context.Context,
	projectID, questionID string,
	opts domain.GenerationOptions,
) error {
	q, err := s.stores.Questions.Get(ctx, questionID)
	if err != nil {
		return fmt.Errorf("failed to load question %s: %w", questionID, err)
	}
	ds, err := s.stores.Datasets.GetByQuestion(ctx, questionID)
	if errors.Is(err, store.ErrDatasetNotFound) {
		return fmt.Errorf("question %s has no answer yet: %w", questionID, err)
	}
	if err != nil {
		return fmt.Errorf("failed to load dataset for question %s: %w", questionID, err)
	}

	var resp conversationResponse
	if err := s.completeJSON(ctx, opts, "conversation.tmpl", map[string]any{
		"Question": q.Text,
		"Answer":   ds.Answer,
		"Turns":    s.cfg.ConversationTurns,
	}, nil, &resp); err != nil {
		return err
	}

	turns := []domain.ConversationTurn{
		{Role: "user", Content: q.Text},
		{Role: "assistant", Content: ds.Answer},
	}
	for _, t := range resp.Turns {
		role := strings.ToLower(strings.TrimSpace(t.Role))
		content := strings.TrimSpace(t.Content)
		if content == "" || (role != "user" && role != "assistant") {
			continue
		}
		turns = append(turns, domain.ConversationTurn{Role: role, Content: content})
	}
	if len(turns) == 2 {
		return fmt.Errorf("%w: no follow-up turns", ErrInvalidResponse)
	}

	if err := s.stores.Conversations.Create(ctx, &domain.Conversation{
		ID:         uuid.NewString(),
		ProjectID:  projectID,
		QuestionID: q.ID,
		Turns:      turns,
	}); err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}
