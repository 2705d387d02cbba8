package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/llm"
)

type questionList struct {
	Questions []string `json:"questions"`
}

// GenerateQuestions asks the model for questions about one chunk.
func (s *Service) GenerateQuestions(ctx context.Context, projectID, chunkID string, opts domain.GenerationOptions) error {
	chunk, err := s.stores.Chunks.Get(ctx, chunkID)
	if err != nil {
		return fmt.Errorf("failed to load chunk %s: %w", chunkID, err)
	}
	if strings.TrimSpace(chunk.Content) == "" {
		return fmt.Errorf("%w: chunk %s", ErrEmptyContent, chunkID)
	}

	var resp questionList
	if err := s.completeJSON(ctx, opts, "questions.tmpl", map[string]any{
		"Count":   s.cfg.QuestionsPerChunk,
		"Name":    chunk.Name,
		"Content": chunk.Content,
	}, nil, &resp); err != nil {
		return err
	}

	return s.saveQuestions(ctx, resp.Questions, s.cfg.QuestionsPerChunk, domain.Question{
		ProjectID: projectID,
		ChunkID:   chunk.ID,
		Label:     chunk.Name,
	})
}

// GenerateTagQuestions asks the model for count questions about a leaf tag
// of the distillation tree.
func (s *Service) GenerateTagQuestions(
	ctx context.Context,
	projectID string,
	tag domain.TagPath,
	count int,
	opts domain.GenerationOptions,
) error {
	var resp questionList
	if err := s.completeJSON(ctx, opts, "tag_questions.tmpl", map[string]any{
		"Count": count,
		"Path":  tag.Labels,
	}, nil, &resp); err != nil {
		return err
	}

	return s.saveQuestions(ctx, resp.Questions, count, domain.Question{
		ProjectID: projectID,
		TagID:     tag.Tag.ID,
		Label:     tag.Tag.Label,
	})
}

// GenerateImageQuestions asks a vision model for questions about one image.
func (s *Service) GenerateImageQuestions(
	ctx context.Context,
	projectID, imageID string,
	opts domain.GenerationOptions,
) error {
	image, data, err := s.loadImage(ctx, imageID)
	if err != nil {
		return err
	}

	var resp questionList
	if err := s.completeJSON(ctx, opts, "image_questions.tmpl", map[string]any{
		"Count": s.cfg.QuestionsPerChunk,
		"Name":  image.Name,
	}, []llm.Image{data}, &resp); err != nil {
		return err
	}

	return s.saveQuestions(ctx, resp.Questions, s.cfg.QuestionsPerChunk, domain.Question{
		ProjectID: projectID,
		ImageID:   image.ID,
		Label:     image.Name,
	})
}

// saveQuestions stores up to limit non-blank questions, each a copy of
// template with its own ID and text.
func (s *Service) saveQuestions(ctx context.Context, texts []string, limit int, template domain.Question) error {
	texts = nonEmpty(texts, limit)
	if len(texts) == 0 {
		return fmt.Errorf("%w: no questions", ErrInvalidResponse)
	}

	questions := make([]domain.Question, len(texts))
	for i, text := range texts {
		q := template
		q.ID = uuid.NewString()
		q.Text = text
		questions[i] = q
	}
	if err := s.stores.Questions.CreateMany(ctx, questions); err != nil {
		return fmt.Errorf("failed to save questions: %w", err)
	}
	return nil
}

func (s *Service) loadImage(ctx context.Context, imageID string) (*domain.Image, llm.Image, error) {
	image, err := s.stores.Images.Get(ctx, imageID)
	if err != nil {
		return nil, llm.Image{}, fmt.Errorf("failed to load image %s: %w", imageID, err)
	}
	data, err := s.readFile(image.Path)
	if err != nil {
		return nil, llm.Image{}, fmt.Errorf("failed to read image %s: %w", image.Name, err)
	}
	mime := image.MimeType
	if mime == "" {
		mime = "image/png"
	}
	return image, llm.Image{Data: data, MimeType: mime}, nil
}
