package generation

import (
	"context"
	"strings"
	"sync"

	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/llm"
	"github.com/phrazzld/dataset-forge/internal/platform/logger"
	"github.com/phrazzld/dataset-forge/internal/store"
)

// fakeLLM answers with reply and records every request.
type fakeLLM struct {
	mu    sync.Mutex
	reply func(req llm.Request) (string, error)
	reqs  []llm.Request
}

func (f *fakeLLM) Complete(_ context.Context, _ domain.ModelInfo, req llm.Request) (string, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	return f.reply(req)
}

func replyWith(text string) *fakeLLM {
	return &fakeLLM{reply: func(llm.Request) (string, error) { return text, nil }}
}

func (f *fakeLLM) last() llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}

// world holds every entity the services touch.
type world struct {
	mu            sync.Mutex
	chunks        map[string]*domain.Chunk
	questions     map[string]*domain.Question
	datasets      map[string]*domain.Dataset
	conversations []domain.Conversation
	tags          []domain.Tag
	images        map[string]*domain.Image
	evalRows      map[string]*domain.EvalDataset
	results       []domain.EvalResult
	processed     []string
}

func newWorld() *world {
	return &world{
		chunks:    map[string]*domain.Chunk{},
		questions: map[string]*domain.Question{},
		datasets:  map[string]*domain.Dataset{},
		images:    map[string]*domain.Image{},
		evalRows:  map[string]*domain.EvalDataset{},
	}
}

func (w *world) stores() Stores {
	return Stores{
		Chunks:        chunkStore{w},
		Questions:     questionStore{w},
		Datasets:      datasetStore{w},
		Conversations: conversationStore{w},
		Tags:          tagStore{w},
		Images:        imageStore{w},
		Evals:         evalStore{w},
		Files:         fileStore{w},
	}
}

func (w *world) questionList() []domain.Question {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]domain.Question, 0, len(w.questions))
	for _, q := range w.questions {
		out = append(out, *q)
	}
	return out
}

func newTestService(w *world, completer llm.Completer, files map[string]string) *Service {
	s := NewService(completer, w.stores(), Config{QuestionsPerChunk: 2, EvalRowsPerChunk: 2, ChunkSize: 40}, logger.Discard())
	s.readFile = func(path string) ([]byte, error) {
		content, ok := files[path]
		if !ok {
			return nil, store.ErrNotFound
		}
		return []byte(content), nil
	}
	return s
}

type chunkStore struct{ *world }

func (s chunkStore) ListByProject(context.Context, string) ([]domain.Chunk, error) { return nil, nil }
func (s chunkStore) ListUncleaned(context.Context, string) ([]domain.Chunk, error) { return nil, nil }

func (s chunkStore) Get(_ context.Context, id string) (*domain.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chunks[id]
	if !ok {
		return nil, store.ErrChunkNotFound
	}
	cp := *c
	return &cp, nil
}

func (s chunkStore) UpdateContent(_ context.Context, id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[id].Content = content
	s.chunks[id].Cleaned = true
	return nil
}

func (s chunkStore) CreateMany(_ context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range chunks {
		c := chunks[i]
		s.chunks[c.ID] = &c
	}
	return nil
}

type questionStore struct{ *world }

func (s questionStore) ChunkIDsWithQuestions(context.Context, string) (store.IDSet, error) {
	return nil, nil
}

func (s questionStore) ImageIDsWithQuestions(context.Context, string) (store.IDSet, error) {
	return nil, nil
}

func (s questionStore) ListUnanswered(context.Context, string, bool) ([]domain.Question, error) {
	return nil, nil
}

func (s questionStore) ListAnswered(context.Context, string) ([]domain.Question, error) {
	return nil, nil
}

func (s questionStore) ListByTags(context.Context, []string) ([]domain.Question, error) {
	return nil, nil
}

func (s questionStore) CountByTag(context.Context, string) (map[string]int, error) { return nil, nil }

func (s questionStore) Get(_ context.Context, id string) (*domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		return nil, store.ErrQuestionNotFound
	}
	cp := *q
	return &cp, nil
}

func (s questionStore) CreateMany(_ context.Context, questions []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range questions {
		q := questions[i]
		s.questions[q.ID] = &q
	}
	return nil
}

func (s questionStore) MarkAnswered(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[id].Answered = true
	return nil
}

type datasetStore struct{ *world }

func (s datasetStore) ListUnscored(context.Context, string) ([]domain.Dataset, error) { return nil, nil }

func (s datasetStore) GetByQuestion(_ context.Context, questionID string) (*domain.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.datasets {
		if d.QuestionID == questionID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, store.ErrDatasetNotFound
}

func (s datasetStore) Get(_ context.Context, id string) (*domain.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.datasets[id]
	if !ok {
		return nil, store.ErrDatasetNotFound
	}
	cp := *d
	return &cp, nil
}

func (s datasetStore) Create(_ context.Context, d *domain.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.datasets[d.ID] = &cp
	return nil
}

func (s datasetStore) UpdateScore(_ context.Context, id string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets[id].Score = &score
	return nil
}

type conversationStore struct{ *world }

func (s conversationStore) QuestionIDsWithConversations(context.Context, string) (store.IDSet, error) {
	return nil, nil
}

func (s conversationStore) Create(_ context.Context, c *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = append(s.conversations, *c)
	return nil
}

type tagStore struct{ *world }

func (s tagStore) ListByTopic(_ context.Context, _, topic string) ([]domain.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Tag
	for _, tag := range s.tags {
		if tag.Topic == topic {
			out = append(out, tag)
		}
	}
	return out, nil
}

func (s tagStore) CreateMany(_ context.Context, tags []domain.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags = append(s.tags, tags...)
	return nil
}

type imageStore struct{ *world }

func (s imageStore) ListByProject(context.Context, string) ([]domain.Image, error) { return nil, nil }

func (s imageStore) Get(_ context.Context, id string) (*domain.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[id]
	if !ok {
		return nil, store.ErrImageNotFound
	}
	cp := *img
	return &cp, nil
}

type evalStore struct{ *world }

func (s evalStore) ListDatasets(context.Context, string, []string) ([]domain.EvalDataset, error) {
	return nil, nil
}

func (s evalStore) ChunkIDsWithDatasets(context.Context, string) (store.IDSet, error) { return nil, nil }

func (s evalStore) GetDataset(_ context.Context, id string) (*domain.EvalDataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.evalRows[id]
	if !ok {
		return nil, store.ErrEvalDatasetNotFound
	}
	cp := *row
	return &cp, nil
}

func (s evalStore) CreateDatasets(_ context.Context, rows []domain.EvalDataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range rows {
		r := rows[i]
		s.evalRows[r.ID] = &r
	}
	return nil
}

func (s evalStore) DatasetIDsWithResults(context.Context, string) (store.IDSet, error) {
	return nil, nil
}

func (s evalStore) SaveResult(_ context.Context, r *domain.EvalResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, *r)
	return nil
}

func (s evalStore) ResultSummary(context.Context, string) (int, int, error) { return 0, 0, nil }

type fileStore struct{ *world }

func (s fileStore) ListPending(context.Context, string) ([]domain.ProjectFile, error) { return nil, nil }

func (s fileStore) MarkProcessed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed = append(s.processed, id)
	return nil
}

var testOpts = domain.GenerationOptions{
	Model:    domain.ModelInfo{Provider: "gemini", Model: "gemini-2.0-flash"},
	Language: "en",
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
