package enrollment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrNotFound = errors.New("enrollment not found")
	// ErrConflict is returned by a Repository when a concurrent write won:
	// a record for the user already exists, or the version moved on.
	ErrConflict = errors.New("enrollment write conflict")
)

// Repository persists enrollment records keyed by user.
type Repository interface {
	// GetByUser returns nil, nil when the user has no record.
	GetByUser(ctx context.Context, user string) (*Record, error)
	// Create assigns ID, CreatedAt and Version. ErrConflict when the user exists.
	Create(ctx context.Context, r *Record) error
	// UpdateData replaces Data when the stored Version equals version.
	UpdateData(ctx context.Context, id, version int64, data map[string]interface{}) (*Record, error)
	SetConfirmation(ctx context.Context, id int64, code string) error
	// List returns all records ordered by ID.
	List(ctx context.Context) ([]*Record, error)
}

// MemoryRepo is an in-memory Repository used by tests and when no
// database is configured.
type MemoryRepo struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*Record
	byUser map[string]int64
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[int64]*Record), byUser: make(map[string]int64)}
}

func (m *MemoryRepo) GetByUser(ctx context.Context, user string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byUser[user]
	if !ok {
		return nil, nil
	}
	return m.byID[id].clone(), nil
}

func (m *MemoryRepo) Create(ctx context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byUser[r.User]; exists {
		return ErrConflict
	}
	m.nextID++
	r.ID = m.nextID
	r.CreatedAt = time.Now().UTC()
	r.Version = 1
	m.byID[r.ID] = r.clone()
	m.byUser[r.User] = r.ID
	return nil
}

func (m *MemoryRepo) UpdateData(ctx context.Context, id, version int64, data map[string]interface{}) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Version != version {
		return nil, ErrConflict
	}
	r.Data = copyFields(data)
	r.Version++
	return r.clone(), nil
}

func (m *MemoryRepo) SetConfirmation(ctx context.Context, id int64, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	r.ConfirmationCode = code
	return nil
}

func (m *MemoryRepo) List(ctx context.Context) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Record, 0, len(m.byID))
	for _, r := range m.byID {
		out = append(out, r.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
