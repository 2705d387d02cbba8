package task

import (
	"context"
	"fmt"
	"sort"

	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/store"
)

// Handler runs one task type.
type Handler interface {
	// Type is the task type this handler serves.
	Type() domain.TaskType

	// Resumable reports whether an interrupted run can be restarted after a
	// process restart. Handlers that recompute their remaining work are.
	Resumable() bool

	// Handle enumerates the task's work, processes it through run and
	// writes the terminal status. A returned error fails the task.
	Handle(ctx context.Context, run *Run) error
}

// Registry maps task types to handlers.
type Registry struct {
	handlers map[domain.TaskType]Handler
}

// NewRegistry builds a registry, rejecting two handlers for one type.
func NewRegistry(handlers ...Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[domain.TaskType]Handler, len(handlers))}
	for _, h := range handlers {
		if _, exists := r.handlers[h.Type()]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateHandler, h.Type())
		}
		r.handlers[h.Type()] = h
	}
	return r, nil
}

// Lookup returns the handler for t.
func (r *Registry) Lookup(t domain.TaskType) (Handler, bool) {
	h, ok := r.handlers[t]
	return h, ok
}

// Types returns the registered task types, sorted.
func (r *Registry) Types() []domain.TaskType {
	types := make([]domain.TaskType, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Stores groups the work-item stores handlers enumerate from.
type Stores struct {
	Chunks        store.ChunkStore
	Questions     store.QuestionStore
	Datasets      store.DatasetStore
	Conversations store.ConversationStore
	Tags          store.TagStore
	Images        store.ImageStore
	Evals         store.EvalStore
	Files         store.FileStore
}

// Services groups the per-item domain services.
type Services struct {
	Questions      QuestionGenerator
	Answers        AnswerGenerator
	Cleaner        ChunkCleaner
	Evaluator      DatasetEvaluator
	Conversations  ConversationGenerator
	Tags           TagGenerator
	TagQuestions   TagQuestionGenerator
	ImageQuestions ImageQuestionGenerator
	EvalQuestions  EvalQuestionGenerator
	ModelEvaluator ModelEvaluator
	Files          FileProcessor
}

// DefaultHandlers is the static table of every supported task type.
func DefaultHandlers(st Stores, svc Services) []Handler {
	return []Handler{
		&questionGenerationHandler{chunks: st.Chunks, questions: st.Questions, svc: svc.Questions},
		&answerGenerationHandler{questions: st.Questions, svc: svc.Answers},
		&dataCleaningHandler{chunks: st.Chunks, svc: svc.Cleaner},
		&datasetEvaluationHandler{datasets: st.Datasets, svc: svc.Evaluator},
		&multiTurnHandler{questions: st.Questions, conversations: st.Conversations, svc: svc.Conversations},
		&distillationHandler{
			tags:          st.Tags,
			questions:     st.Questions,
			conversations: st.Conversations,
			tagSvc:        svc.Tags,
			questionSvc:   svc.TagQuestions,
			answerSvc:     svc.Answers,
			convSvc:       svc.Conversations,
		},
		&imageQuestionHandler{images: st.Images, questions: st.Questions, svc: svc.ImageQuestions},
		&imageDatasetHandler{questions: st.Questions, svc: svc.Answers},
		&evalGenerationHandler{chunks: st.Chunks, evals: st.Evals, svc: svc.EvalQuestions},
		&modelEvaluationHandler{evals: st.Evals, svc: svc.ModelEvaluator},
		&fileProcessingHandler{files: st.Files, svc: svc.Files},
	}
}

// NewDefaultRegistry registers DefaultHandlers.
func NewDefaultRegistry(st Stores, svc Services) *Registry {
	r, err := NewRegistry(DefaultHandlers(st, svc)...)
	if err != nil {
		// ALLOW-PANIC: the static table is fixed at compile time
		panic(err)
	}
	return r
}
