package profiles

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var ErrNotFound = errors.New("profile not found")

// Profile is a user record migrated from the previous account system.
// Only Username, Email and FullName feed the enrollment views; the
// reconciled_* fields are kept as imported.
type Profile struct {
	Username              string      `json:"username" bson:"username"`
	UsernameOrg           string      `json:"username_org" bson:"usernameOrg"`
	Email                 string      `json:"email" bson:"email"`
	FullName              string      `json:"full_name" bson:"fullName"`
	ReconciledAffiliation string      `json:"reconciled_affiliation" bson:"reconciledAffiliation"`
	ReconciledTerritory   string      `json:"reconciled_territory" bson:"reconciledTerritory"`
	ReconciledLanguages   interface{} `json:"reconciled_languages,omitempty" bson:"reconciledLanguages,omitempty"`
	ReconciledProjects    interface{} `json:"reconciled_projects,omitempty" bson:"reconciledProjects,omitempty"`
	ReconciledWantToLearn interface{} `json:"reconciled_want_to_learn,omitempty" bson:"reconciledWantToLearn,omitempty"`
	ReconciledWantToShare interface{} `json:"reconciled_want_to_share,omitempty" bson:"reconciledWantToShare,omitempty"`
}

// Repository persists profiles keyed by username.
type Repository interface {
	// Upsert inserts or replaces the profile with the same username.
	Upsert(ctx context.Context, p *Profile) error
	// UpdateContact sets email and full name. ErrNotFound when absent.
	UpdateContact(ctx context.Context, username, email, fullName string) error
	// List returns profiles ordered by username.
	List(ctx context.Context) ([]*Profile, error)
}

type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*Profile
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*Profile)}
}

func (m *MemoryRepo) Upsert(ctx context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *p
	m.store[p.Username] = &c
	return nil
}

func (m *MemoryRepo) UpdateContact(ctx context.Context, username, email, fullName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[username]
	if !ok {
		return ErrNotFound
	}
	p.Email = email
	p.FullName = fullName
	return nil
}

func (m *MemoryRepo) List(ctx context.Context) ([]*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Profile, 0, len(m.store))
	for _, p := range m.store {
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}
