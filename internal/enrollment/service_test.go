package enrollment

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/openenroll/portal/internal/profiles"
	"github.com/stretchr/testify/require"
)

var hex64 = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestIngest_NewRecordEqualsClaims(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	svc := NewService(repo, nil)

	claims := map[string]interface{}{"user": "alice", "email": "a@x.com", "age": float64(0), "nested": map[string]interface{}{"k": "v"}}
	rec, err := svc.Ingest(ctx, claims)
	require.NoError(t, err)
	require.Equal(t, "alice", rec.User)
	require.Equal(t, claims, rec.Data)
	require.Regexp(t, hex64, rec.ConfirmationCode)

	stored, err := repo.GetByUser(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, rec.ConfirmationCode, stored.ConfirmationCode)
}

func TestIngest_AliceMergeScenario(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepo(), nil)

	_, err := svc.Ingest(ctx, map[string]interface{}{"user": "alice", "email": "a@x.com", "age": float64(0)})
	require.NoError(t, err)
	rec, err := svc.Ingest(ctx, map[string]interface{}{"user": "alice", "email": "", "age": float64(30)})
	require.NoError(t, err)

	require.Equal(t, map[string]interface{}{"user": "alice", "email": "a@x.com", "age": float64(30)}, rec.Data)
}

func TestIngest_NeverRemovesOrBlanksKeys(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepo(), nil)

	first := map[string]interface{}{"user": "bob", "role": "mentor", "area": "north", "score": float64(7), "active": true}
	_, err := svc.Ingest(ctx, first)
	require.NoError(t, err)

	rec, err := svc.Ingest(ctx, map[string]interface{}{
		"user":   "bob",
		"role":   nil,
		"area":   "null",
		"score":  float64(0),
		"active": false,
		"gender": "",
		"city":   "Oslo",
	})
	require.NoError(t, err)

	for k := range first {
		require.Contains(t, rec.Data, k)
	}
	require.Equal(t, "mentor", rec.Data["role"])
	require.Equal(t, float64(7), rec.Data["score"])
	require.Equal(t, false, rec.Data["active"], "booleans are never treated as empty")
	require.Equal(t, "Oslo", rec.Data["city"])
	require.NotContains(t, rec.Data, "gender", "empty values do not introduce new keys")
}

// The literal string "null" counts as empty. This looks like a workaround for
// a client that serialises missing values as text; kept as observed, but it
// means a user can never store the word "null" in any field.
func TestIngest_LiteralNullStringIsEmpty_Suspicious(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepo(), nil)

	_, err := svc.Ingest(ctx, map[string]interface{}{"user": "nina", "nickname": "nn"})
	require.NoError(t, err)
	rec, err := svc.Ingest(ctx, map[string]interface{}{"user": "nina", "nickname": "null"})
	require.NoError(t, err)
	require.Equal(t, "nn", rec.Data["nickname"])
}

func TestIngest_ConfirmationCodesNeverRepeat(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepo(), nil)

	a, err := svc.Ingest(ctx, map[string]interface{}{"user": "carl"})
	require.NoError(t, err)
	b, err := svc.Ingest(ctx, map[string]interface{}{"user": "carl"})
	require.NoError(t, err)
	require.Equal(t, a.ID, b.ID)
	require.NotEqual(t, a.ConfirmationCode, b.ConfirmationCode)
}

func TestIngest_MissingUserIdentifier(t *testing.T) {
	svc := NewService(NewMemoryRepo(), nil)
	for _, claims := range []map[string]interface{}{
		{},
		{"email": "x@y"},
		{"user": ""},
		{"user": "   "},
		{"user": nil},
		{"user": map[string]interface{}{"id": "x"}},
	} {
		_, err := svc.Ingest(context.Background(), claims)
		require.ErrorIs(t, err, ErrMissingUserIdentifier, "claims=%v", claims)
	}
}

func TestUserIdentifier_Numeric(t *testing.T) {
	u, err := UserIdentifier(map[string]interface{}{"user": float64(1234)})
	require.NoError(t, err)
	require.Equal(t, "1234", u)
}

// racingRepo lets a competing writer create the record between the lookup
// and the create of the submission under test.
type racingRepo struct {
	*MemoryRepo
	raced bool
}

func (r *racingRepo) Create(ctx context.Context, rec *Record) error {
	if !r.raced {
		r.raced = true
		other := &Record{User: rec.User, Data: map[string]interface{}{"user": rec.User, "email": "first@x.com"}}
		if err := r.MemoryRepo.Create(ctx, other); err != nil {
			return err
		}
	}
	return r.MemoryRepo.Create(ctx, rec)
}

func TestIngest_CreateConflictFallsBackToMerge(t *testing.T) {
	ctx := context.Background()
	repo := &racingRepo{MemoryRepo: NewMemoryRepo()}
	svc := NewService(repo, nil)

	rec, err := svc.Ingest(ctx, map[string]interface{}{"user": "dora", "email": "", "role": "lead"})
	require.NoError(t, err)
	require.Equal(t, "first@x.com", rec.Data["email"])
	require.Equal(t, "lead", rec.Data["role"])

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

type alwaysConflictRepo struct {
	*MemoryRepo
	updates int
}

func (r *alwaysConflictRepo) UpdateData(ctx context.Context, id, version int64, data map[string]interface{}) (*Record, error) {
	r.updates++
	return nil, ErrConflict
}

func TestIngest_PersistentUpdateConflict(t *testing.T) {
	ctx := context.Background()
	repo := &alwaysConflictRepo{MemoryRepo: NewMemoryRepo()}
	require.NoError(t, repo.Create(ctx, &Record{User: "eve", Data: map[string]interface{}{"user": "eve"}}))

	_, err := NewService(repo, nil).Ingest(ctx, map[string]interface{}{"user": "eve", "x": "y"})
	require.ErrorIs(t, err, ErrStoreConflict)
	require.Equal(t, maxUpdateAttempts, repo.updates)
}

type failingConfirmRepo struct {
	*MemoryRepo
}

func (r *failingConfirmRepo) SetConfirmation(ctx context.Context, id int64, code string) error {
	return errors.New("disk full")
}

func TestIngest_ConfirmationWriteFailureKeepsMergedData(t *testing.T) {
	ctx := context.Background()
	repo := &failingConfirmRepo{MemoryRepo: NewMemoryRepo()}
	require.NoError(t, repo.Create(ctx, &Record{User: "fay", Data: map[string]interface{}{"user": "fay"}}))
	require.NoError(t, repo.MemoryRepo.SetConfirmation(ctx, 1, "old-code"))

	_, err := NewService(repo, nil).Ingest(ctx, map[string]interface{}{"user": "fay", "city": "Rome"})
	require.Error(t, err)

	stored, err := repo.GetByUser(ctx, "fay")
	require.NoError(t, err)
	require.Equal(t, "Rome", stored.Data["city"])
	require.Equal(t, "old-code", stored.ConfirmationCode)
}

func TestIngest_ConcurrentSameUserSingleRecord(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	svc := NewService(repo, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Ingest(ctx, map[string]interface{}{"user": "gus", "n": float64(i + 1)})
			if err != nil && !errors.Is(err, ErrStoreConflict) {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestListForDisplay(t *testing.T) {
	ctx := context.Background()
	prof := profiles.NewService(profiles.NewMemoryRepo())
	_, err := prof.Import(ctx, strings.NewReader(`[
		{"username": "alice", "email": "a@old.org", "full_name": "Alice A"},
		{"username": "zoe", "email": "z@old.org", "full_name": "Zoe Z"}
	]`))
	require.NoError(t, err)

	svc := NewService(NewMemoryRepo(), prof)
	_, err = svc.Ingest(ctx, map[string]interface{}{"user": "alice", "role": "mentor", "timestamp": float64(1700000000), "nonce": "n1"})
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, map[string]interface{}{"user": "bob", "area": "south"})
	require.NoError(t, err)

	table, err := svc.ListForDisplay(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"user", "area", "email", "full_name", "role"}, table.Columns)
	require.Len(t, table.Rows, 3)

	byUser := map[string]DisplayRow{}
	for _, r := range table.Rows {
		byUser[r.User] = r
	}
	require.True(t, byUser["alice"].Legacy)
	require.True(t, byUser["alice"].Enrolled)
	require.False(t, byUser["bob"].Legacy)
	require.True(t, byUser["zoe"].Legacy)
	require.False(t, byUser["zoe"].Enrolled)
	require.Equal(t, map[string]interface{}{"user": "zoe", "email": "z@old.org", "full_name": "Zoe Z"}, byUser["zoe"].Fields)

	var buf bytes.Buffer
	require.NoError(t, table.WriteCSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, "user,area,email,full_name,role,legacy,confirmation,timestamp", lines[0])
	require.True(t, strings.HasPrefix(lines[1], "alice,,,,mentor,true,"))
	require.Equal(t, "zoe,,z@old.org,Zoe Z,,true,,", lines[3])
}

func TestIsEmpty(t *testing.T) {
	for _, v := range []interface{}{nil, "", "null", float64(0), 0, int64(0)} {
		require.True(t, IsEmpty(v), "%#v", v)
	}
	for _, v := range []interface{}{"x", "NULL", " ", float64(0.5), -1, true, false, map[string]interface{}{}, []interface{}{}} {
		require.False(t, IsEmpty(v), "%#v", v)
	}
}
