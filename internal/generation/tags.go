package generation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/dataset-forge/internal/domain"
)

type tagList struct {
	Tags []string `json:"tags"`
}

// GenerateTags asks the model for count subtopics of parent and stores them
// one level below it.
func (s *Service) GenerateTags(
	ctx context.Context,
	projectID string,
	parent domain.TagPath,
	count int,
	opts domain.GenerationOptions,
) ([]domain.Tag, error) {
	if count <= 0 {
		return nil, nil
	}

	var resp tagList
	if err := s.completeJSON(ctx, opts, "tags.tmpl", map[string]any{
		"Count": count,
		"Path":  parent.Labels,
	}, nil, &resp); err != nil {
		return nil, err
	}

	labels := nonEmpty(dedupe(resp.Tags), count)
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: no tags", ErrInvalidResponse)
	}

	tags := make([]domain.Tag, len(labels))
	for i, label := range labels {
		tags[i] = domain.Tag{
			ID:        uuid.NewString(),
			ProjectID: projectID,
			Topic:     parent.Topic(),
			ParentID:  parent.Tag.ID,
			Label:     label,
			Depth:     parent.Tag.Depth + 1,
		}
	}
	if err := s.stores.Tags.CreateMany(ctx, tags); err != nil {
		return nil, fmt.Errorf("failed to save tags: %w", err)
	}

	s.logger.DebugContext(ctx, "generated tags",
		"project_id", projectID,
		"parent", parent.Tag.Label,
		"count", len(tags))
	return tags, nil
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := items[:0:0]
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
