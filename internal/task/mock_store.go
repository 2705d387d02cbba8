package task

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/store"
)

// MockTaskStore is an in-memory store.TaskStore for tests. It applies the
// same conditional-update and end_time rules as the Postgres store and
// keeps every accepted update for inspection.
type MockTaskStore struct {
	mutex   sync.Mutex
	tasks   map[uuid.UUID]domain.Task
	updates map[uuid.UUID][]domain.TaskUpdate
	now     func() time.Time

	// GetFn and UpdateFn, when set, are consulted before the default
	// behavior. Returning handled=false falls through to it.
	GetFn    func(ctx context.Context, id uuid.UUID) (t *domain.Task, handled bool, err error)
	UpdateFn func(ctx context.Context, id uuid.UUID, u domain.TaskUpdate) (t *domain.Task, handled bool, err error)
}

var _ store.TaskStore = (*MockTaskStore)(nil)

// NewMockTaskStore creates an empty MockTaskStore.
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{
		tasks:   make(map[uuid.UUID]domain.Task),
		updates: make(map[uuid.UUID][]domain.TaskUpdate),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create implements store.TaskStore.
func (m *MockTaskStore) Create(_ context.Context, t *domain.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, exists := m.tasks[t.ID]; exists {
		return store.ErrDuplicate
	}
	m.tasks[t.ID] = copyTask(*t)
	return nil
}

// Put stores t as is, overwriting any existing row.
func (m *MockTaskStore) Put(t *domain.Task) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.tasks[t.ID] = copyTask(*t)
}

// Get implements store.TaskStore.
func (m *MockTaskStore) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	if m.GetFn != nil {
		if t, handled, err := m.GetFn(ctx, id); handled {
			return t, err
		}
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	out := copyTask(t)
	return &out, nil
}

// Update implements store.TaskStore.
func (m *MockTaskStore) Update(ctx context.Context, id uuid.UUID, u domain.TaskUpdate) (*domain.Task, error) {
	if m.UpdateFn != nil {
		if t, handled, err := m.UpdateFn(ctx, id, u); handled {
			return t, err
		}
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	if u.IfStatus != nil && t.Status != *u.IfStatus {
		out := copyTask(t)
		return &out, store.ErrTaskNotProcessing
	}

	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.TotalCount != nil {
		t.TotalCount = *u.TotalCount
	}
	if u.CompletedCount != nil {
		t.CompletedCount = *u.CompletedCount
	}
	if u.Detail != nil {
		t.Detail = *u.Detail
	}
	if u.Note != nil {
		t.Note = *u.Note
	}
	switch {
	case u.EndTime != nil:
		t.EndTime = domain.Ptr(*u.EndTime)
	case u.Status != nil && t.EndTime == nil &&
		(*u.Status == domain.TaskStatusCompleted || *u.Status == domain.TaskStatusFailed):
		t.EndTime = domain.Ptr(m.now())
	}

	m.tasks[id] = t
	m.updates[id] = append(m.updates[id], u)
	out := copyTask(t)
	return &out, nil
}

// ListByStatus implements store.TaskStore.
func (m *MockTaskStore) ListByStatus(_ context.Context, status domain.TaskStatus) ([]*domain.Task, error) {
	return m.list(func(t domain.Task) bool { return t.Status == status }, false), nil
}

// ListByProject implements store.TaskStore.
func (m *MockTaskStore) ListByProject(_ context.Context, projectID string, limit, offset int) ([]*domain.Task, error) {
	out := m.list(func(t domain.Task) bool { return t.ProjectID == projectID }, true)
	if offset >= len(out) {
		return []*domain.Task{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Delete implements store.TaskStore.
func (m *MockTaskStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return store.ErrTaskNotFound
	}
	delete(m.tasks, id)
	return nil
}

// Updates returns the accepted updates for id, oldest first.
func (m *MockTaskStore) Updates(id uuid.UUID) []domain.TaskUpdate {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]domain.TaskUpdate(nil), m.updates[id]...)
}

// CompletedHistory returns every completedCount written for id, in order.
func (m *MockTaskStore) CompletedHistory(id uuid.UUID) []int {
	var out []int
	for _, u := range m.Updates(id) {
		if u.CompletedCount != nil {
			out = append(out, *u.CompletedCount)
		}
	}
	return out
}

func (m *MockTaskStore) list(keep func(domain.Task) bool, newestFirst bool) []*domain.Task {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	out := make([]*domain.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		if keep(t) {
			c := copyTask(t)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func copyTask(t domain.Task) domain.Task {
	if t.EndTime != nil {
		t.EndTime = domain.Ptr(*t.EndTime)
	}
	if t.Config != nil {
		t.Config = append([]byte(nil), t.Config...)
	}
	return t
}
