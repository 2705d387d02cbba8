package task

import (
	"context"
	"fmt"

	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/store"
)

const rootTagKey = "root"

// distillationHandler builds a dataset from a topic alone. It grows a label
// tree level by level, asks questions at the leaves, answers them and
// optionally expands the answers into conversations. Every stage recomputes
// its deficit from the stores, so a resumed run only does what is missing.
type distillationHandler struct {
	tags          store.TagStore
	questions     store.QuestionStore
	conversations store.ConversationStore
	tagSvc        TagGenerator
	questionSvc   TagQuestionGenerator
	answerSvc     AnswerGenerator
	convSvc       ConversationGenerator
}

func (h *distillationHandler) Type() domain.TaskType { return domain.TaskTypeDataDistillation }
func (h *distillationHandler) Resumable() bool      { return true }

// tagTree indexes one topic's tags for deficit computation.
type tagTree struct {
	topic    string
	byID     map[string]domain.Tag
	children map[string]int
	byDepth  map[int][]domain.Tag
}

func newTagTree(topic string, tags []domain.Tag) *tagTree {
	t := &tagTree{
		topic:    topic,
		byID:     make(map[string]domain.Tag, len(tags)),
		children: make(map[string]int),
		byDepth:  make(map[int][]domain.Tag),
	}
	for _, tag := range tags {
		t.byID[tag.ID] = tag
		t.children[tag.ParentID]++
		t.byDepth[tag.Depth] = append(t.byDepth[tag.Depth], tag)
	}
	return t
}

// path returns the labels from the topic down to tag.
func (t *tagTree) path(tag domain.Tag) domain.TagPath {
	var labels []string
	seen := make(map[string]bool)
	for cur, ok := tag, true; ok && cur.ID != "" && !seen[cur.ID]; cur, ok = t.byID[cur.ParentID] {
		seen[cur.ID] = true
		labels = append(labels, cur.Label)
	}
	labels = append(labels, t.topic)
	for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
		labels[i], labels[j] = labels[j], labels[i]
	}
	return domain.TagPath{Tag: tag, Labels: labels}
}

func (t *tagTree) rootPath() domain.TagPath {
	return domain.TagPath{Labels: []string{t.topic}}
}

func (t *tagTree) leafIDs(depth int) []string {
	ids := make([]string, 0, len(t.byDepth[depth]))
	for _, tag := range t.byDepth[depth] {
		ids = append(ids, tag.ID)
	}
	return ids
}

// tagDeficit is a node that still needs count children or questions.
type tagDeficit struct {
	path  domain.TagPath
	count int
}

func tagDeficitKey(d tagDeficit) string {
	if d.path.IsRoot() {
		return rootTagKey
	}
	return d.path.Tag.ID
}

func tagDeficitWeight(d tagDeficit) int { return d.count }

func (h *distillationHandler) Handle(ctx context.Context, run *Run) error {
	cfg, err := domain.ParseDistillationConfig(run.Task.Config)
	if err != nil {
		return err
	}
	opts, err := run.Options()
	if err != nil {
		return err
	}
	projectID := run.Task.ProjectID

	tree, err := h.loadTree(ctx, projectID, cfg.Topic)
	if err != nil {
		return err
	}
	total, base, err := h.progress(ctx, projectID, cfg, tree)
	if err != nil {
		return err
	}
	if base >= total {
		return run.CompleteEmpty(ctx)
	}
	if err := run.Announce(ctx, total, base); err != nil {
		return fmt.Errorf("failed to announce task size: %w", err)
	}
	run.Logger().Info("distilling dataset",
		"topic", cfg.Topic,
		"levels", cfg.Levels,
		"total", total,
		"already_done", base)

	stages := []func(context.Context, *Run, domain.DistillationConfig, domain.GenerationOptions) error{
		h.buildTags,
		h.askQuestions,
		h.answerQuestions,
	}
	if cfg.MultiTurn {
		stages = append(stages, h.expandConversations)
	}
	for _, stage := range stages {
		if err := stage(ctx, run, cfg, opts); err != nil {
			return err
		}
		if run.Stopped() || ctx.Err() != nil {
			break
		}
	}
	return run.Finalize(ctx, "")
}

func (h *distillationHandler) loadTree(ctx context.Context, projectID, topic string) (*tagTree, error) {
	tags, err := h.tags.ListByTopic(ctx, projectID, topic)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return newTagTree(topic, tags), nil
}

// progress returns the size of a complete run and how much of it already
// exists. Each stage's existing amount is capped at its target.
func (h *distillationHandler) progress(
	ctx context.Context,
	projectID string,
	cfg domain.DistillationConfig,
	tree *tagTree,
) (total, base int, err error) {
	targetTags := cfg.TargetTags()
	targetQuestions := cfg.TargetLeaves() * cfg.QuestionsPerTag

	total = targetTags + 2*targetQuestions
	if cfg.MultiTurn {
		total += targetQuestions
	}

	base = min(len(tree.byID), targetTags)

	leaves := tree.leafIDs(cfg.Levels)
	if len(leaves) == 0 {
		return total, base, nil
	}
	counts, err := h.questions.CountByTag(ctx, projectID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count questions by tag: %w", err)
	}
	asked := 0
	for _, id := range leaves {
		asked += min(counts[id], cfg.QuestionsPerTag)
	}
	base += min(asked, targetQuestions)

	questions, err := h.questions.ListByTags(ctx, leaves)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list tag questions: %w", err)
	}
	answered := 0
	for _, q := range questions {
		if q.Answered {
			answered++
		}
	}
	base += min(answered, targetQuestions)

	if cfg.MultiTurn {
		done, err := h.conversations.QuestionIDsWithConversations(ctx, projectID)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to list conversations: %w", err)
		}
		expanded := 0
		for _, q := range questions {
			if done.Has(q.ID) {
				expanded++
			}
		}
		base += min(expanded, targetQuestions)
	}
	return total, base, nil
}

// buildTags fills the tree one level at a time, so each level sees the
// labels its parents actually got.
func (h *distillationHandler) buildTags(
	ctx context.Context,
	run *Run,
	cfg domain.DistillationConfig,
	opts domain.GenerationOptions,
) error {
	projectID := run.Task.ProjectID
	for depth := 1; depth <= cfg.Levels; depth++ {
		tree, err := h.loadTree(ctx, projectID, cfg.Topic)
		if err != nil {
			return err
		}

		var parents []domain.TagPath
		if depth == 1 {
			parents = []domain.TagPath{tree.rootPath()}
		} else {
			for _, tag := range tree.byDepth[depth-1] {
				parents = append(parents, tree.path(tag))
			}
		}

		var work []tagDeficit
		for _, p := range parents {
			if n := cfg.TagsPerLevel - tree.children[p.Tag.ID]; n > 0 {
				work = append(work, tagDeficit{path: p, count: n})
			}
		}
		if len(work) == 0 {
			continue
		}

		run.SetStage(fmt.Sprintf("tags level %d", depth))
		run.Logger().Info("generating tags", "depth", depth, "parents", len(work))
		runStage(ctx, run, work, tagDeficitKey, tagDeficitWeight,
			func(ctx context.Context, d tagDeficit) error {
				_, err := h.tagSvc.GenerateTags(ctx, projectID, d.path, d.count, opts)
				return err
			})
		if run.Stopped() || ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

func (h *distillationHandler) askQuestions(
	ctx context.Context,
	run *Run,
	cfg domain.DistillationConfig,
	opts domain.GenerationOptions,
) error {
	projectID := run.Task.ProjectID
	tree, err := h.loadTree(ctx, projectID, cfg.Topic)
	if err != nil {
		return err
	}
	counts, err := h.questions.CountByTag(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to count questions by tag: %w", err)
	}

	var work []tagDeficit
	for _, leaf := range tree.byDepth[cfg.Levels] {
		if n := cfg.QuestionsPerTag - counts[leaf.ID]; n > 0 {
			work = append(work, tagDeficit{path: tree.path(leaf), count: n})
		}
	}
	if len(work) == 0 {
		return nil
	}

	run.SetStage("questions")
	run.Logger().Info("generating questions", "leaves", len(work))
	runStage(ctx, run, work, tagDeficitKey, tagDeficitWeight,
		func(ctx context.Context, d tagDeficit) error {
			return h.questionSvc.GenerateTagQuestions(ctx, projectID, d.path, d.count, opts)
		})
	return nil
}

func (h *distillationHandler) leafQuestions(
	ctx context.Context,
	projectID string,
	cfg domain.DistillationConfig,
) ([]domain.Question, error) {
	tree, err := h.loadTree(ctx, projectID, cfg.Topic)
	if err != nil {
		return nil, err
	}
	leaves := tree.leafIDs(cfg.Levels)
	if len(leaves) == 0 {
		return nil, nil
	}
	questions, err := h.questions.ListByTags(ctx, leaves)
	if err != nil {
		return nil, fmt.Errorf("failed to list tag questions: %w", err)
	}
	return questions, nil
}

func (h *distillationHandler) answerQuestions(
	ctx context.Context,
	run *Run,
	cfg domain.DistillationConfig,
	opts domain.GenerationOptions,
) error {
	projectID := run.Task.ProjectID
	questions, err := h.leafQuestions(ctx, projectID, cfg)
	if err != nil {
		return err
	}
	var work []domain.Question
	for _, q := range questions {
		if !q.Answered {
			work = append(work, q)
		}
	}
	if len(work) == 0 {
		return nil
	}

	run.SetStage("answers")
	run.Logger().Info("generating answers", "questions", len(work))
	runStage(ctx, run, work, questionKey, func(domain.Question) int { return 1 },
		func(ctx context.Context, q domain.Question) error {
			return h.answerSvc.GenerateAnswer(ctx, projectID, q.ID, opts)
		})
	return nil
}

func (h *distillationHandler) expandConversations(
	ctx context.Context,
	run *Run,
	cfg domain.DistillationConfig,
	opts domain.GenerationOptions,
) error {
	projectID := run.Task.ProjectID
	questions, err := h.leafQuestions(ctx, projectID, cfg)
	if err != nil {
		return err
	}
	done, err := h.conversations.QuestionIDsWithConversations(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}
	var work []domain.Question
	for _, q := range questions {
		if q.Answered && !done.Has(q.ID) {
			work = append(work, q)
		}
	}
	if len(work) == 0 {
		return nil
	}

	run.SetStage("conversations")
	run.Logger().Info("generating conversations", "questions", len(work))
	runStage(ctx, run, work, questionKey, func(domain.Question) int { return 1 },
		func(ctx context.Context, q domain.Question) error {
			return h.convSvc.GenerateConversation(ctx, projectID, q.ID, opts)
		})
	return nil
}
