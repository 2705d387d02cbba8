package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/phrazzld/dataset-forge/internal/domain"
)

// CleanChunk rewrites a chunk without markup noise and stores the result.
func (s *Service) CleanChunk(ctx context.Context, _, chunkID string, opts domain.GenerationOptions) error {
	chunk, err := s.stores.Chunks.Get(ctx, chunkID)
	if err != nil {
		return fmt.Errorf("failed to load chunk %s: %w", chunkID, err)
	}
	if strings.TrimSpace(chunk.Content) == "" {
		return fmt.Errorf("%w: chunk %s", ErrEmptyContent, chunkID)
	}

	cleaned, err := s.completeText(ctx, opts, "clean.tmpl", map[string]any{"Content": chunk.Content})
	if err != nil {
		return err
	}
	cleaned = stripFence(cleaned)
	if cleaned == "" {
		return fmt.Errorf("%w: empty cleaned text", ErrInvalidResponse)
	}

	if err := s.stores.Chunks.UpdateContent(ctx, chunk.ID, cleaned); err != nil {
		return fmt.Errorf("failed to save cleaned chunk: %w", err)
	}
	return nil
}

type scoreResponse struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// EvaluateDataset scores one question/answer pair from 0 to 5.
func (s *Service) EvaluateDataset(ctx context.Context, _, datasetID string, opts domain.GenerationOptions) error {
	ds, err := s.stores.Datasets.Get(ctx, datasetID)
	if err != nil {
		return fmt.Errorf("failed to load dataset %s: %w", datasetID, err)
	}

	var resp scoreResponse
	if err := s.completeJSON(ctx, opts, "score_dataset.tmpl", map[string]any{
		"Question": ds.Question,
		"Answer":   ds.Answer,
	}, nil, &resp); err != nil {
		return err
	}
	if resp.Score < 0 || resp.Score > 5 {
		return fmt.Errorf("%w: score %.2f out of range", ErrInvalidResponse, resp.Score)
	}

	if err := s.stores.Datasets.UpdateScore(ctx, ds.ID, resp.Score); err != nil {
		return fmt.Errorf("failed to save dataset score: %w", err)
	}
	return nil
}

// stripFence removes a markdown code fence wrapped around the whole text.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}
