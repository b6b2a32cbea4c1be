package storage

import (
	"context"
	"sync"

	"rollcall/internal/model"
)

// Memory is a mutex-guarded in-process Store. It backs unit tests and the
// dev mode of the server; it intentionally favors clarity over performance.
type Memory struct {
	mu      sync.RWMutex
	users   map[string]model.User
	tokens  map[string]model.DailyToken
	records []model.AttendanceRecord // insertion order, oldest first
	index   map[string]int           // record id -> position in records
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:  make(map[string]model.User),
		tokens: make(map[string]model.DailyToken),
		index:  make(map[string]int),
	}
}

func (m *Memory) InsertUser(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; ok {
		return ErrDuplicate
	}
	m.users[u.ID] = u
	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) UpdateUser(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return ErrNotFound
	}
	m.users[u.ID] = u
	return nil
}

func (m *Memory) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *Memory) ListUsers(_ context.Context) ([]model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *Memory) GetDailyToken(_ context.Context, date string) (model.DailyToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[date]
	if !ok {
		return model.DailyToken{}, ErrNotFound
	}
	return t, nil
}

func (m *Memory) CreateDailyToken(_ context.Context, t model.DailyToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[t.Date]; ok {
		return ErrDuplicate
	}
	m.tokens[t.Date] = t
	return nil
}

func (m *Memory) InsertRecord(_ context.Context, r model.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.index[r.ID]; ok {
		return ErrDuplicate
	}
	r.Comments = cloneComments(r.Comments)
	m.index[r.ID] = len(m.records)
	m.records = append(m.records, r)
	return nil
}

func (m *Memory) GetRecord(_ context.Context, id string) (model.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pos, ok := m.index[id]
	if !ok {
		return model.AttendanceRecord{}, ErrNotFound
	}
	r := m.records[pos]
	r.Comments = cloneComments(r.Comments)
	return r, nil
}

func (m *Memory) ListRecords(_ context.Context) ([]model.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.AttendanceRecord, 0, len(m.records))
	for i := len(m.records) - 1; i >= 0; i-- {
		r := m.records[i]
		r.Comments = cloneComments(r.Comments)
		out = append(out, r)
	}
	return out, nil
}

func (m *Memory) AppendComment(_ context.Context, recordID string, c model.Comment) ([]model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.index[recordID]
	if !ok {
		return nil, ErrNotFound
	}
	m.records[pos].Comments = append(m.records[pos].Comments, c)
	return cloneComments(m.records[pos].Comments), nil
}

// cloneComments copies the slice so callers can never alias the stored
// history.
func cloneComments(in []model.Comment) []model.Comment {
	out := make([]model.Comment, len(in))
	copy(out, in)
	return out
}
