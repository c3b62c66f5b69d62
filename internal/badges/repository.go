package badges

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var (
	ErrBadgeNotFound  = errors.New("badge not found")
	ErrAwardNotFound  = errors.New("award not found")
	ErrDuplicateAward = errors.New("badge already awarded to user")
	// ErrDuplicateCode is the store rejecting an award whose verification
	// code is already taken.
	ErrDuplicateCode = errors.New("verification code already in use")
)

// Repository persists badges and awards. Implementations must enforce
// unique verification codes and unique (username, badge) pairs themselves.
type Repository interface {
	CreateBadge(ctx context.Context, b *Badge) error
	UpdateBadge(ctx context.Context, b *Badge) error
	// GetBadge returns nil, nil when absent.
	GetBadge(ctx context.Context, id int64) (*Badge, error)
	ListBadges(ctx context.Context) ([]*Badge, error)
	// DeleteBadge removes the badge and all of its awards.
	DeleteBadge(ctx context.Context, id int64) error

	CreateAward(ctx context.Context, a *Award) error
	FindAward(ctx context.Context, username string, badgeID int64) (*Award, error)
	GetAwardByCode(ctx context.Context, code string) (*Award, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	DeleteAward(ctx context.Context, id int64) error
	// ListAwards and ListAwardsForUser return newest issued first.
	ListAwards(ctx context.Context) ([]*Award, error)
	ListAwardsForUser(ctx context.Context, username string) ([]*Award, error)
}

type MemoryRepo struct {
	mu          sync.RWMutex
	nextBadgeID int64
	nextAwardID int64
	badges      map[int64]*Badge
	awards      map[int64]*Award
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{badges: make(map[int64]*Badge), awards: make(map[int64]*Award)}
}

func (m *MemoryRepo) CreateBadge(ctx context.Context, b *Badge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextBadgeID++
	b.ID = m.nextBadgeID
	c := *b
	m.badges[b.ID] = &c
	return nil
}

func (m *MemoryRepo) UpdateBadge(ctx context.Context, b *Badge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.badges[b.ID]; !ok {
		return ErrBadgeNotFound
	}
	c := *b
	m.badges[b.ID] = &c
	return nil
}

func (m *MemoryRepo) GetBadge(ctx context.Context, id int64) (*Badge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.badges[id]
	if !ok {
		return nil, nil
	}
	c := *b
	return &c, nil
}

func (m *MemoryRepo) ListBadges(ctx context.Context) ([]*Badge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Badge, 0, len(m.badges))
	for _, b := range m.badges {
		c := *b
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepo) DeleteBadge(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.badges[id]; !ok {
		return ErrBadgeNotFound
	}
	delete(m.badges, id)
	for aid, a := range m.awards {
		if a.BadgeID == id {
			delete(m.awards, aid)
		}
	}
	return nil
}

func (m *MemoryRepo) CreateAward(ctx context.Context, a *Award) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.awards {
		if ex.VerificationCode == a.VerificationCode {
			return ErrDuplicateCode
		}
		if ex.Username == a.Username && ex.BadgeID == a.BadgeID {
			return ErrDuplicateAward
		}
	}
	m.nextAwardID++
	a.ID = m.nextAwardID
	c := *a
	m.awards[a.ID] = &c
	return nil
}

func (m *MemoryRepo) FindAward(ctx context.Context, username string, badgeID int64) (*Award, error) {
	return m.findAward(func(a *Award) bool { return a.Username == username && a.BadgeID == badgeID }), nil
}

func (m *MemoryRepo) GetAwardByCode(ctx context.Context, code string) (*Award, error) {
	return m.findAward(func(a *Award) bool { return a.VerificationCode == code }), nil
}

func (m *MemoryRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	a, _ := m.GetAwardByCode(ctx, code)
	return a != nil, nil
}

func (m *MemoryRepo) findAward(match func(*Award) bool) *Award {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.awards {
		if match(a) {
			c := *a
			return &c
		}
	}
	return nil
}

func (m *MemoryRepo) DeleteAward(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.awards[id]; !ok {
		return ErrAwardNotFound
	}
	delete(m.awards, id)
	return nil
}

func (m *MemoryRepo) ListAwards(ctx context.Context) ([]*Award, error) {
	return m.listAwards(func(*Award) bool { return true }), nil
}

func (m *MemoryRepo) ListAwardsForUser(ctx context.Context, username string) ([]*Award, error) {
	return m.listAwards(func(a *Award) bool { return a.Username == username }), nil
}

func (m *MemoryRepo) listAwards(match func(*Award) bool) []*Award {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*Award{}
	for _, a := range m.awards {
		if match(a) {
			c := *a
			out = append(out, &c)
		}
	}
	sortNewestFirst(out)
	return out
}

func sortNewestFirst(list []*Award) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].IssuedAt.Equal(list[j].IssuedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].IssuedAt.After(list[j].IssuedAt)
	})
}
