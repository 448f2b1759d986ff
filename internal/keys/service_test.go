package keys

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keytrack-backend/internal/platform/apperr"
	"keytrack-backend/internal/platform/auth"
	"keytrack-backend/internal/testutil"
)

// stepClock は呼ばれるたびに1秒進む
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixture struct {
	svc   *Service
	conn  *sql.DB
	admin auth.Identity
	user  auth.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	h := testutil.NewDB(t)
	admin := testutil.CreateUser(t, h, "admin", auth.RoleAdmin)
	user := testutil.CreateUser(t, h, "clerk", auth.RoleUser)

	svc := NewService(h.DB).WithClock(&stepClock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)})
	return &fixture{
		svc:   svc,
		conn:  h.DB,
		admin: testutil.Identity(admin),
		user:  testutil.Identity(user),
	}
}

func (f *fixture) createKey(t *testing.T, name string, status Status) int64 {
	t.Helper()
	st := status
	k, err := f.svc.Create(context.Background(), CreateKeyRequest{
		Name:       name,
		Type:       "Door",
		Status:     &st,
		Department: "Library",
		Faculty:    "Administration",
		Building:   "Library Block",
		Room:       "L" + name,
	})
	require.NoError(t, err)
	return k.ID
}

// assignedTo が非空 ⟺ status=Assigned をテーブル全体で確認
func assertAssigneeInvariant(t *testing.T, conn *sql.DB) {
	t.Helper()
	rows, err := conn.Query(`SELECT id, status, assigned_to FROM access_keys`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var id int64
		var status string
		var assigned sql.NullString
		require.NoError(t, rows.Scan(&id, &status, &assigned))
		hasAssignee := assigned.Valid && assigned.String != ""
		assert.Equal(t, status == string(StatusAssigned), hasAssignee, "key %d status=%s assigned=%v", id, status, assigned)
	}
	require.NoError(t, rows.Err())
}

func TestCreate_DefaultsAndValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	k, err := f.svc.Create(ctx, CreateKeyRequest{Name: "  Lab 3  "})
	require.NoError(t, err)
	assert.Equal(t, "Lab 3", k.Name)
	assert.Equal(t, StatusAvailable, k.Status)
	assert.Nil(t, k.AssignedTo)

	_, err = f.svc.Create(ctx, CreateKeyRequest{Name: " "})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))

	assigned := StatusAssigned
	_, err = f.svc.Create(ctx, CreateKeyRequest{Name: "x", Status: &assigned})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))

	bogus := Status("Borrowed")
	_, err = f.svc.Create(ctx, CreateKeyRequest{Name: "x", Status: &bogus})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))
}

func TestAssignReturn_JaneDoeExample(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var id int64
	for i := 1; i <= 5; i++ {
		id = f.createKey(t, string(rune('A'+i-1)), StatusAvailable)
	}
	require.Equal(t, int64(5), id)

	k, err := f.svc.Assign(ctx, f.user, 5, AssignRequest{
		Person:     "Jane Doe",
		Department: "Library",
		Faculty:    "Administration",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusAssigned, k.Status)
	require.NotNil(t, k.AssignedTo)
	assert.Equal(t, "Jane Doe", *k.AssignedTo)

	k, err = f.svc.Return(ctx, f.user, 5, ReturnRequest{})
	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, k.Status)
	assert.Nil(t, k.AssignedTo)

	hist, err := f.svc.History(ctx, 5)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, ActionReturned, hist[0].Action)
	assert.Nil(t, hist[0].Person)
	assert.Equal(t, ActionAssigned, hist[1].Action)
	require.NotNil(t, hist[1].Person)
	assert.Equal(t, "Jane Doe", *hist[1].Person)
	assert.Equal(t, "Library", hist[1].Department)
	assert.Equal(t, "Administration", hist[1].Faculty)
	assert.Equal(t, "clerk", hist[1].Actor)
	assert.NotEmpty(t, hist[1].ULID)
	assert.True(t, hist[0].Date.After(hist[1].Date))

	assertAssigneeInvariant(t, f.conn)
}

func TestAssignThenReturn_AddsExactlyTwoEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createKey(t, "101", StatusAvailable)

	// 既存の履歴を作っておく
	_, err := f.svc.Assign(ctx, f.user, id, AssignRequest{Person: "Alice"})
	require.NoError(t, err)
	_, err = f.svc.Return(ctx, f.user, id, ReturnRequest{Notes: "ok"})
	require.NoError(t, err)

	before, err := f.svc.History(ctx, id)
	require.NoError(t, err)

	_, err = f.svc.Assign(ctx, f.user, id, AssignRequest{Person: "Bob"})
	require.NoError(t, err)
	k, err := f.svc.Return(ctx, f.user, id, ReturnRequest{})
	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, k.Status)

	after, err := f.svc.History(ctx, id)
	require.NoError(t, err)
	assert.Len(t, after, len(before)+2)
	assert.Equal(t, ActionReturned, after[0].Action)
	assert.Equal(t, ActionAssigned, after[1].Action)
}

func TestAssign_RejectsNonAvailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createKey(t, "201", StatusAvailable)

	_, err := f.svc.Assign(ctx, f.user, id, AssignRequest{Person: "Alice"})
	require.NoError(t, err)

	_, err = f.svc.Assign(ctx, f.user, id, AssignRequest{Person: "Mallory"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState))

	// 上書きされていない
	k, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, k.AssignedTo)
	assert.Equal(t, "Alice", *k.AssignedTo)

	hist, err := f.svc.History(ctx, id)
	require.NoError(t, err)
	assert.Len(t, hist, 1)

	lost := f.createKey(t, "202", StatusLost)
	_, err = f.svc.Assign(ctx, f.user, lost, AssignRequest{Person: "Alice"})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState))
}

func TestAssign_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Assign(ctx, f.user, 999, AssignRequest{Person: "Alice"})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	id := f.createKey(t, "301", StatusAvailable)
	_, err = f.svc.Assign(ctx, f.user, id, AssignRequest{Person: "   "})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))
}

func TestReturn_RejectsNotAssigned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createKey(t, "401", StatusAvailable)

	_, err := f.svc.Return(ctx, f.user, id, ReturnRequest{})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState))

	hist, err := f.svc.History(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, hist)

	_, err = f.svc.Return(ctx, f.user, 12345, ReturnRequest{})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestAssign_ConcurrentOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createKey(t, "501", StatusAvailable)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Assign(ctx, f.user, id, AssignRequest{Person: "P"})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, apperr.Is(err, apperr.CodeInvalidState), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok)

	hist, err := f.svc.History(ctx, id)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestEdit_PlainFieldsWriteNoHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createKey(t, "601", StatusAvailable)

	room := "B12"
	notes := "spare copy in safe"
	k, err := f.svc.Edit(ctx, f.user, id, UpdateKeyRequest{Room: &room, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "B12", k.Room)
	assert.Equal(t, "spare copy in safe", k.Notes)
	assert.Equal(t, "Door", k.Type)

	hist, err := f.svc.History(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, hist)

	_, err = f.svc.Edit(ctx, f.user, id, UpdateKeyRequest{})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))

	empty := " "
	_, err = f.svc.Edit(ctx, f.user, id, UpdateKeyRequest{Name: &empty})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))

	_, err = f.svc.Edit(ctx, f.user, 9999, UpdateKeyRequest{Room: &room})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestEdit_StatusChangeRecordsEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createKey(t, "701", StatusAvailable)

	_, err := f.svc.Assign(ctx, f.user, id, AssignRequest{Person: "Alice"})
	require.NoError(t, err)

	lost := StatusLost
	k, err := f.svc.Edit(ctx, f.admin, id, UpdateKeyRequest{Status: &lost})
	require.NoError(t, err)
	assert.Equal(t, StatusLost, k.Status)
	assert.Nil(t, k.AssignedTo, "leaving Assigned clears the assignee")

	hist, err := f.svc.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, ActionStatusChanged, hist[0].Action)
	assert.Equal(t, "admin", hist[0].Actor)
	assert.Contains(t, hist[0].Notes, "Assigned")
	assert.Contains(t, hist[0].Notes, "Lost")

	// 同じ status の再設定はイベントにならない
	_, err = f.svc.Edit(ctx, f.admin, id, UpdateKeyRequest{Status: &lost})
	require.NoError(t, err)
	hist, err = f.svc.History(ctx, id)
	require.NoError(t, err)
	assert.Len(t, hist, 2)

	assertAssigneeInvariant(t, f.conn)
}

func TestEdit_CannotMoveIntoAssigned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createKey(t, "801", StatusAvailable)

	assigned := StatusAssigned
	_, err := f.svc.Edit(ctx, f.admin, id, UpdateKeyRequest{Status: &assigned})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState))

	k, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, k.Status)
}

func TestDelete_AdminOnlyAndCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createKey(t, "901", StatusAvailable)
	_, err := f.svc.Assign(ctx, f.user, id, AssignRequest{Person: "Alice"})
	require.NoError(t, err)

	err = f.svc.Delete(ctx, f.user, id)
	assert.True(t, apperr.Is(err, apperr.CodeForbidden))

	require.NoError(t, f.svc.Delete(ctx, f.admin, id))

	_, err = f.svc.Get(ctx, id)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	var n int
	require.NoError(t, f.conn.QueryRow(`SELECT COUNT(*) FROM key_history WHERE key_id = ?`, id).Scan(&n))
	assert.Zero(t, n)

	err = f.svc.Delete(ctx, f.admin, id)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestStats_MatchesDistribution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty, err := f.svc.Stats(ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, StatsResponse{}, *empty)

	for i := 0; i < 4; i++ {
		f.createKey(t, "av", StatusAvailable)
	}
	for i := 0; i < 2; i++ {
		f.createKey(t, "lost", StatusLost)
	}
	f.createKey(t, "dmg", StatusDamaged)
	for i := 0; i < 3; i++ {
		id := f.createKey(t, "as", StatusAvailable)
		_, err := f.svc.Assign(ctx, f.user, id, AssignRequest{Person: "P"})
		require.NoError(t, err)
	}

	st, err := f.svc.Stats(ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, StatsResponse{
		TotalKeys:     10,
		AssignedKeys:  3,
		AvailableKeys: 4,
		LostKeys:      2,
		DamagedKeys:   1,
	}, *st)

	_, err = f.svc.Stats(ctx, f.user)
	assert.True(t, apperr.Is(err, apperr.CodeForbidden))
}

func TestList_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createKey(t, "Chem Lab", StatusAvailable)
	f.createKey(t, "Server Room", StatusDamaged)

	all, err := f.svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	dmg := StatusDamaged
	res, err := f.svc.List(ctx, Filter{Status: &dmg})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "Server Room", res[0].Name)

	q := "Chem"
	res, err = f.svc.List(ctx, Filter{Search: &q})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "Chem Lab", res[0].Name)

	bad := Status("nope")
	_, err = f.svc.List(ctx, Filter{Status: &bad})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))
}

func TestHistory_UnknownKey(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.History(context.Background(), 42)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

// failingIDGen は履歴の採番で必ず失敗する
type failingIDGen struct{}

func (failingIDGen) New(time.Time) (string, error) { return "", errors.New("idgen down") }

func TestAssign_HistoryFailureLeavesKeyUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createKey(t, "Store Room", StatusAvailable)
	before, err := f.svc.Get(ctx, id)
	require.NoError(t, err)

	f.svc.id = failingIDGen{}
	_, err = f.svc.Assign(ctx, f.user, id, AssignRequest{Person: "Alice"})
	require.Error(t, err)

	k, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, k.Status)
	assert.Nil(t, k.AssignedTo)
	assert.Equal(t, before.LastUpdated, k.LastUpdated)
	hist, err := f.svc.History(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, hist)
	assertAssigneeInvariant(t, f.conn)
}

func TestReturn_HistoryFailureLeavesKeyAssigned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createKey(t, "Server Room", StatusAvailable)
	_, err := f.svc.Assign(ctx, f.user, id, AssignRequest{Person: "Alice"})
	require.NoError(t, err)

	f.svc.id = failingIDGen{}
	_, err = f.svc.Return(ctx, f.user, id, ReturnRequest{})
	require.Error(t, err)

	k, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusAssigned, k.Status)
	require.NotNil(t, k.AssignedTo)
	assert.Equal(t, "Alice", *k.AssignedTo)
	hist, err := f.svc.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, ActionAssigned, hist[0].Action)
	assertAssigneeInvariant(t, f.conn)
}
