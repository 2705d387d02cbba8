package generation

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/dataset-forge/internal/domain"
)

type evalRow struct {
	Type     string   `json:"type"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

type evalRows struct {
	Items []evalRow `json:"items"`
}

// GenerateEvalQuestions builds benchmark rows from one chunk. Rows with an
// unknown type, or a choice answer missing from the options, are dropped.
func (s *Service) GenerateEvalQuestions(ctx context.Context, projectID, chunkID string, opts domain.GenerationOptions) error {
	chunk, err := s.stores.Chunks.Get(ctx, chunkID)
	if err != nil {
		return fmt.Errorf("failed to load chunk %s: %w", chunkID, err)
	}
	if strings.TrimSpace(chunk.Content) == "" {
		return fmt.Errorf("%w: chunk %s", ErrEmptyContent, chunkID)
	}

	var resp evalRows
	if err := s.completeJSON(ctx, opts, "eval_questions.tmpl", map[string]any{
		"Count":   s.cfg.EvalRowsPerChunk,
		"Content": chunk.Content,
	}, nil, &resp); err != nil {
		return err
	}

	rows := make([]domain.EvalDataset, 0, len(resp.Items))
	for _, item := range resp.Items {
		row, ok := normalizeEvalRow(item)
		if !ok {
			continue
		}
		row.ID = uuid.NewString()
		row.ProjectID = projectID
		row.ChunkID = chunk.ID
		rows = append(rows, row)
		if len(rows) == s.cfg.EvalRowsPerChunk {
			break
		}
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: no usable eval rows", ErrInvalidResponse)
	}

	if err := s.stores.Evals.CreateDatasets(ctx, rows); err != nil {
		return fmt.Errorf("failed to save eval rows: %w", err)
	}
	return nil
}

func normalizeEvalRow(item evalRow) (domain.EvalDataset, bool) {
	row := domain.EvalDataset{
		QuestionType: strings.ToLower(strings.TrimSpace(item.Type)),
		Question:     strings.TrimSpace(item.Question),
		Answer:       strings.TrimSpace(item.Answer),
		Options:      nonEmpty(item.Options, 0),
	}
	if row.Question == "" || row.Answer == "" {
		return row, false
	}
	switch row.QuestionType {
	case domain.EvalTypeTrueFalse:
		row.Options = []string{"true", "false"}
		row.Answer = strings.ToLower(row.Answer)
		return row, row.Answer == "true" || row.Answer == "false"
	case domain.EvalTypeSingleChoice:
		return row, slices.Contains(row.Options, row.Answer)
	case domain.EvalTypeShortAnswer:
		row.Options = nil
		return row, true
	default:
		return row, false
	}
}

// EvaluateModel asks the task's model one benchmark row and stores the graded
// answer. Choice rows are graded by comparison, short answers by the model.
func (s *Service) EvaluateModel(
	ctx context.Context,
	taskID, _, evalDatasetID string,
	opts domain.GenerationOptions,
) error {
	row, err := s.stores.Evals.GetDataset(ctx, evalDatasetID)
	if err != nil {
		return fmt.Errorf("failed to load eval row %s: %w", evalDatasetID, err)
	}

	answer, err := s.completeText(ctx, opts, "eval_answer.tmpl", row)
	if err != nil {
		return err
	}

	result := &domain.EvalResult{
		TaskID:        taskID,
		EvalDatasetID: row.ID,
		ModelAnswer:   answer,
		CreatedAt:     time.Now().UTC(),
	}

	if row.QuestionType == domain.EvalTypeShortAnswer {
		var grade scoreResponse
		if err := s.completeJSON(ctx, opts, "grade.tmpl", map[string]any{
			"Question":  row.Question,
			"Reference": row.Answer,
			"Answer":    answer,
		}, nil, &grade); err != nil {
			return err
		}
		result.Score = max(0, min(1, grade.Score))
		result.Correct = result.Score >= 0.5
	} else {
		result.Correct = matchesChoice(answer, row.Answer, row.Options)
		if result.Correct {
			result.Score = 1
		}
	}

	if err := s.stores.Evals.SaveResult(ctx, result); err != nil {
		return fmt.Errorf("failed to save eval result: %w", err)
	}
	return nil
}

// matchesChoice accepts the option text itself or its letter (A, B, ...).
func matchesChoice(answer, want string, options []string) bool {
	got := strings.ToLower(strings.Trim(strings.TrimSpace(answer), ".)"))
	want = strings.ToLower(want)
	if got == want {
		return true
	}
	for i, opt := range options {
		if strings.ToLower(opt) != want {
			continue
		}
		letter := string(rune('a' + i))
		return got == letter || strings.HasPrefix(got, letter+" ") || strings.HasPrefix(got, letter+".")
	}
	return false
}
