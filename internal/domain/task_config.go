package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DistillationConfig parameterizes a data-distillation task.
type DistillationConfig struct {
	Topic           string `json:"topic"`
	Levels          int    `json:"levels"`
	TagsPerLevel    int    `json:"tagsPerLevel"`
	QuestionsPerTag int    `json:"questionsPerTag"`
	MultiTurn       bool   `json:"multiTurn"`
}

// ParseDistillationConfig decodes and validates a distillation config.
func ParseDistillationConfig(raw json.RawMessage) (DistillationConfig, error) {
	var cfg DistillationConfig
	if len(raw) == 0 {
		return cfg, fmt.Errorf("%w: distillation config is required", ErrInvalidTaskConfig)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidTaskConfig, err)
	}
	cfg.Topic = strings.TrimSpace(cfg.Topic)
	switch {
	case cfg.Topic == "":
		return cfg, fmt.Errorf("%w: topic is required", ErrInvalidTaskConfig)
	case cfg.Levels < 1 || cfg.Levels > 5:
		return cfg, fmt.Errorf("%w: levels must be between 1 and 5", ErrInvalidTaskConfig)
	case cfg.TagsPerLevel < 1 || cfg.TagsPerLevel > 50:
		return cfg, fmt.Errorf("%w: tagsPerLevel must be between 1 and 50", ErrInvalidTaskConfig)
	case cfg.QuestionsPerTag < 1 || cfg.QuestionsPerTag > 100:
		return cfg, fmt.Errorf("%w: questionsPerTag must be between 1 and 100", ErrInvalidTaskConfig)
	}
	return cfg, nil
}

// TargetTags is the number of non-root tags a full tree holds.
func (c DistillationConfig) TargetTags() int {
	total, width := 0, 1
	for d := 1; d <= c.Levels; d++ {
		width *= c.TagsPerLevel
		total += width
	}
	return total
}

// TargetLeaves is the number of tags at the deepest level.
func (c DistillationConfig) TargetLeaves() int {
	width := 1
	for d := 1; d <= c.Levels; d++ {
		width *= c.TagsPerLevel
	}
	return width
}

// ModelEvaluationConfig selects the benchmark rows a model-evaluation task grades.
type ModelEvaluationConfig struct {
	EvalDatasetIDs []string `json:"evalDatasetIds"`
}

// ParseModelEvaluationConfig decodes a model-evaluation config. An absent
// config means every eval dataset row of the project.
func ParseModelEvaluationConfig(raw json.RawMessage) (ModelEvaluationConfig, error) {
	var cfg ModelEvaluationConfig
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidTaskConfig, err)
	}
	return cfg, nil
}
