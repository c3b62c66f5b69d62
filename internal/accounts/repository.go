package accounts

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/openenroll/portal/internal/database"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound      = errors.New("account not found")
	ErrUsernameTaken = errors.New("username belongs to another account")
)

// Repository defines persistence operations for accounts
type Repository interface {
	// UpsertBySub refreshes profile fields. An upsert only ever raises
	// Approved and Staff: a.Staff promotes the account, otherwise both keep
	// their stored values (false for a new account).
	UpsertBySub(ctx context.Context, a *Account) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	SetApproved(ctx context.Context, sub string, approved bool) error
	ListByApproval(ctx context.Context, approved bool) ([]*Account, error)
}

// MongoRepository implements Repository using MongoDB
type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(ctx context.Context, col *mongo.Collection) (*MongoRepository, error) {
	for _, key := range []string{"sub", "username"} {
		if err := database.EnsureUnique(ctx, col, key); err != nil {
			return nil, err
		}
	}
	return &MongoRepository{col: col}, nil
}

func (r *MongoRepository) UpsertBySub(ctx context.Context, a *Account) (*Account, error) {
	now := time.Now().UTC()
	filter := bson.M{"sub": a.Sub}
	set := bson.M{
		"username":  a.Username,
		"email":     a.Email,
		"name":      a.Name,
		"updatedAt": now,
	}
	onInsert := bson.M{"createdAt": now}
	if a.Staff {
		set["approved"], set["staff"] = true, true
	} else {
		onInsert["approved"], onInsert["staff"] = false, false
	}
	upd := bson.M{"$set": set, "$setOnInsert": onInsert}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var updated Account
	if err := r.col.FindOneAndUpdate(ctx, filter, upd, opts).Decode(&updated); err != nil {
		if database.IsDuplicateKey(err) && strings.Contains(err.Error(), "username_1") {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return &updated, nil
}

func (r *MongoRepository) GetByUsername(ctx context.Context, username string) (*Account, error) {
	var a Account
	if err := r.col.FindOne(ctx, bson.M{"username": username}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *MongoRepository) SetApproved(ctx context.Context, sub string, approved bool) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"sub": sub}, bson.M{"$set": bson.M{"approved": approved, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) ListByApproval(ctx context.Context, approved bool) ([]*Account, error) {
	cur, err := r.col.Find(ctx, bson.M{"approved": approved}, options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*Account{}
	for cur.Next(ctx) {
		var a Account
		if err := cur.Decode(&a); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, cur.Err()
}

// MemoryRepository keeps accounts in process; used by tests and when no
// database is configured.
type MemoryRepository struct {
	mu    sync.RWMutex
	bySub map[string]*Account
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{bySub: make(map[string]*Account)}
}

func (m *MemoryRepository) UpsertBySub(ctx context.Context, a *Account) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for sub, other := range m.bySub {
		if sub != a.Sub && other.Username == a.Username {
			return nil, ErrUsernameTaken
		}
	}
	cur, ok := m.bySub[a.Sub]
	if !ok {
		cur = &Account{Sub: a.Sub, CreatedAt: now}
		m.bySub[a.Sub] = cur
	}
	if a.Staff {
		cur.Approved, cur.Staff = true, true
	}
	cur.Username = a.Username
	cur.Email = a.Email
	cur.Name = a.Name
	cur.UpdatedAt = now
	c := *cur
	return &c, nil
}

func (m *MemoryRepository) GetByUsername(ctx context.Context, username string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.bySub {
		if a.Username == username {
			c := *a
			return &c, nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) SetApproved(ctx context.Context, sub string, approved bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.bySub[sub]
	if !ok {
		return ErrNotFound
	}
	a.Approved = approved
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryRepository) ListByApproval(ctx context.Context, approved bool) ([]*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*Account{}
	for _, a := range m.bySub {
		if a.Approved == approved {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}
