package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/platform/logger"
	"github.com/phrazzld/dataset-forge/internal/store"
	"github.com/stretchr/testify/require"
)

const testModelInfo = `{"provider":"gemini","model":"gemini-2.0-flash","apiKey":"k"}`

var errModel = errors.New("model unavailable")

func testLogger() *slog.Logger {
	return logger.Discard()
}

// newTestTask creates a PROCESSING task in tasks.
func newTestTask(t *testing.T, tasks *MockTaskStore, typ domain.TaskType, config string) *domain.Task {
	t.Helper()
	var raw json.RawMessage
	if config != "" {
		raw = json.RawMessage(config)
	}
	task, err := domain.NewTask("project-1", typ, testModelInfo, "en", raw)
	require.NoError(t, err)
	require.NoError(t, tasks.Create(context.Background(), task))
	return task
}

// newTestRun builds a run around a stored task.
func newTestRun(tasks *MockTaskStore, task *domain.Task, limit int) (*Run, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	run := NewRun(task, tasks, cancel, RunConfig{ConcurrencyLimit: limit}, testLogger())
	return run, ctx
}

func mustGet(t *testing.T, tasks *MockTaskStore, id uuid.UUID) *domain.Task {
	t.Helper()
	got, err := tasks.Get(context.Background(), id)
	require.NoError(t, err)
	return got
}

// waitForStatus polls until the task reaches status or the deadline passes.
func waitForStatus(t *testing.T, tasks *MockTaskStore, id uuid.UUID, status domain.TaskStatus) *domain.Task {
	t.Helper()
	var got *domain.Task
	require.Eventually(t, func() bool {
		var err error
		got, err = tasks.Get(context.Background(), id)
		return err == nil && got.Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func chunks(n int) []domain.Chunk {
	out := make([]domain.Chunk, n)
	for i := range out {
		out[i] = domain.Chunk{ID: fmt.Sprintf("chunk-%d", i+1), ProjectID: "project-1", Content: "text"}
	}
	return out
}

// fakeChunks is a ChunkStore over a fixed slice.
type fakeChunks struct {
	chunks  []domain.Chunk
	listErr error
}

func (f *fakeChunks) ListByProject(context.Context, string) ([]domain.Chunk, error) {
	return f.chunks, f.listErr
}

func (f *fakeChunks) ListUncleaned(context.Context, string) ([]domain.Chunk, error) {
	var out []domain.Chunk
	for _, c := range f.chunks {
		if !c.Cleaned {
			out = append(out, c)
		}
	}
	return out, f.listErr
}

func (f *fakeChunks) Get(_ context.Context, id string) (*domain.Chunk, error) {
	for _, c := range f.chunks {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, store.ErrChunkNotFound
}

func (f *fakeChunks) UpdateContent(context.Context, string, string) error { return nil }
func (f *fakeChunks) CreateMany(context.Context, []domain.Chunk) error    { return nil }

// fakeQuestions is a QuestionStore over a fixed slice.
type fakeQuestions struct {
	questions []domain.Question
	chunkDone store.IDSet
	imageDone store.IDSet
}

func (f *fakeQuestions) ChunkIDsWithQuestions(context.Context, string) (store.IDSet, error) {
	return f.chunkDone, nil
}

func (f *fakeQuestions) ImageIDsWithQuestions(context.Context, string) (store.IDSet, error) {
	return f.imageDone, nil
}

func (f *fakeQuestions) ListUnanswered(_ context.Context, _ string, imageOnly bool) ([]domain.Question, error) {
	var out []domain.Question
	for _, q := range f.questions {
		if !q.Answered && (q.ImageID != "") == imageOnly {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeQuestions) ListAnswered(context.Context, string) ([]domain.Question, error) {
	var out []domain.Question
	for _, q := range f.questions {
		if q.Answered && q.ImageID == "" {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeQuestions) ListByTags(context.Context, []string) ([]domain.Question, error) {
	return nil, nil
}

func (f *fakeQuestions) CountByTag(context.Context, string) (map[string]int, error) {
	return map[string]int{}, nil
}

func (f *fakeQuestions) Get(context.Context, string) (*domain.Question, error) {
	return nil, store.ErrQuestionNotFound
}

func (f *fakeQuestions) CreateMany(context.Context, []domain.Question) error { return nil }
func (f *fakeQuestions) MarkAnswered(context.Context, string) error          { return nil }

// fakeEvals is an EvalStore recording graded results per task.
type fakeEvals struct {
	mu        sync.Mutex
	rows      []domain.EvalDataset
	chunkDone store.IDSet
	results   map[string]map[string]bool
}

func (f *fakeEvals) ListDatasets(_ context.Context, _ string, ids []string) ([]domain.EvalDataset, error) {
	if len(ids) == 0 {
		return f.rows, nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.EvalDataset
	for _, r := range f.rows {
		if want[r.ID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeEvals) ChunkIDsWithDatasets(context.Context, string) (store.IDSet, error) {
	return f.chunkDone, nil
}

func (f *fakeEvals) GetDataset(context.Context, string) (*domain.EvalDataset, error) {
	return nil, store.ErrEvalDatasetNotFound
}

func (f *fakeEvals) CreateDatasets(context.Context, []domain.EvalDataset) error { return nil }

func (f *fakeEvals) DatasetIDsWithResults(_ context.Context, taskID string) (store.IDSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := store.IDSet{}
	for id := range f.results[taskID] {
		out[id] = struct{}{}
	}
	return out, nil
}

func (f *fakeEvals) SaveResult(_ context.Context, r *domain.EvalResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.results == nil {
		f.results = make(map[string]map[string]bool)
	}
	if f.results[r.TaskID] == nil {
		f.results[r.TaskID] = make(map[string]bool)
	}
	f.results[r.TaskID][r.EvalDatasetID] = r.Correct
	return nil
}

func (f *fakeEvals) ResultSummary(_ context.Context, taskID string) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	correct := 0
	for _, ok := range f.results[taskID] {
		if ok {
			correct++
		}
	}
	return correct, len(f.results[taskID]), nil
}

// fakeFiles is a FileStore over a fixed slice.
type fakeFiles struct {
	files []domain.ProjectFile
}

func (f *fakeFiles) ListPending(context.Context, string) ([]domain.ProjectFile, error) {
	return f.files, nil
}

func (f *fakeFiles) MarkProcessed(context.Context, string) error { return nil }

// fakeService implements every per-item service. Calls are recorded by
// item id; failures are looked up in fail.
type fakeService struct {
	mu       sync.Mutex
	calls    []string
	fail     map[string]error
	opts     []domain.GenerationOptions
	inFlight int
	maxSeen  int
	delay    time.Duration

	// before runs at the start of every call, outside the lock.
	before func(id string)
}

func (s *fakeService) call(id string, opts domain.GenerationOptions) error {
	if s.before != nil {
		s.before(id)
	}
	s.mu.Lock()
	s.calls = append(s.calls, id)
	s.opts = append(s.opts, opts)
	s.inFlight++
	s.maxSeen = max(s.maxSeen, s.inFlight)
	err := s.fail[id]
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	return err
}

func (s *fakeService) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *fakeService) MaxInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxSeen
}

func (s *fakeService) GenerateQuestions(_ context.Context, _, chunkID string, opts domain.GenerationOptions) error {
	return s.call(chunkID, opts)
}

func (s *fakeService) GenerateAnswer(_ context.Context, _, questionID string, opts domain.GenerationOptions) error {
	return s.call(questionID, opts)
}

func (s *fakeService) CleanChunk(_ context.Context, _, chunkID string, opts domain.GenerationOptions) error {
	return s.call(chunkID, opts)
}

func (s *fakeService) EvaluateDataset(_ context.Context, _, datasetID string, opts domain.GenerationOptions) error {
	return s.call(datasetID, opts)
}

func (s *fakeService) GenerateConversation(_ context.Context, _, questionID string, opts domain.GenerationOptions) error {
	return s.call(questionID, opts)
}

func (s *fakeService) GenerateImageQuestions(_ context.Context, _, imageID string, opts domain.GenerationOptions) error {
	return s.call(imageID, opts)
}

func (s *fakeService) GenerateEvalQuestions(_ context.Context, _, chunkID string, opts domain.GenerationOptions) error {
	return s.call(chunkID, opts)
}

func (s *fakeService) ProcessFile(_ context.Context, file domain.ProjectFile, opts domain.GenerationOptions) error {
	return s.call(file.ID, opts)
}

// gradingEvaluator stores a result for every row, correct when the row id
// is in correct.
type gradingEvaluator struct {
	fakeService
	evals   *fakeEvals
	correct map[string]bool
}

func (g *gradingEvaluator) EvaluateModel(
	ctx context.Context,
	taskID, _, evalDatasetID string,
	opts domain.GenerationOptions,
) error {
	if err := g.call(evalDatasetID, opts); err != nil {
		return err
	}
	return g.evals.SaveResult(ctx, &domain.EvalResult{
		TaskID:        taskID,
		EvalDatasetID: evalDatasetID,
		Correct:       g.correct[evalDatasetID],
	})
}

// fakeHandler is a Handler driven by a function.
type fakeHandler struct {
	typ       domain.TaskType
	resumable bool
	handle    func(ctx context.Context, run *Run) error
	calls     int
	mu        sync.Mutex
}

func (h *fakeHandler) Type() domain.TaskType { return h.typ }
func (h *fakeHandler) Resumable() bool      { return h.resumable }

func (h *fakeHandler) Handle(ctx context.Context, run *Run) error {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	if h.handle == nil {
		return run.CompleteEmpty(ctx)
	}
	return h.handle(ctx, run)
}

func (h *fakeHandler) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

// fakeConfigs is a ProjectConfigStore returning a fixed limit.
type fakeConfigs struct {
	limit int
	err   error
}

func (f fakeConfigs) GetTaskConfig(_ context.Context, projectID string) (domain.TaskConfig, error) {
	return domain.TaskConfig{ProjectID: projectID, ConcurrencyLimit: f.limit}, f.err
}

func (f fakeConfigs) SaveTaskConfig(context.Context, domain.TaskConfig) error { return nil }
