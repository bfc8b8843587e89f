package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payload/internal/domain"
	"payload/internal/repository/sqlite"
)

var (
	alice = domain.User{Username: "alice", Role: domain.RoleMember}
	bob   = domain.User{Username: "bob", Role: domain.RoleMember}
	admin = domain.User{Username: "admin", Role: domain.RoleAdmin}
)

func newStore(t *testing.T) RecordStore {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := sqlite.NewRecordRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	return New(repo)
}

func record(id, owner, date string) domain.DeliveryRecord {
	return domain.DeliveryRecord{
		ID:              id,
		UserID:          owner,
		Date:            date,
		Payload:         domain.Daily{JobIDs: []string{"RT55"}, TotalParcels: 120},
		CalculatedValue: decimal.NewFromInt(180),
		CreatedAt:       time.Now().UTC(),
	}
}

func TestAppend_VisibilityByRole(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, record("r1", "alice", "2024-03-01")))

	mine, err := s.ListVisible(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids(mine))

	theirs, err := s.ListVisible(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, theirs)

	all, err := s.ListVisible(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids(all))
}

func TestListVisible_NewestCreatedFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, record("r1", "alice", "2024-03-20")))
	require.NoError(t, s.Append(ctx, record("r2", "bob", "2024-03-01")))
	require.NoError(t, s.Append(ctx, record("r3", "alice", "2024-01-05")))

	all, err := s.ListVisible(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, []string{"r3", "r2", "r1"}, ids(all))

	mine, err := s.ListVisible(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"r3", "r1"}, ids(mine))
}

func TestAppend_DuplicateIDLeavesCollectionUnchanged(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, record("same", "alice", "2024-03-01")))
	before, err := s.ListVisible(ctx, admin)
	require.NoError(t, err)

	err = s.Append(ctx, record("same", "bob", "2024-04-01"))
	require.ErrorIs(t, err, domain.ErrIDCollision)

	after, err := s.ListVisible(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAppend_RequiresIDAndOwner(t *testing.T) {
	s := newStore(t)
	err := s.Append(context.Background(), record("", "alice", "2024-03-01"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	err = s.Append(context.Background(), record("x", "", "2024-03-01"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestListOwnedBy_MemberCannotReadOthers(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, record("r1", "alice", "2024-03-01")))

	_, err := s.ListOwnedBy(ctx, bob, "alice")
	assert.ErrorIs(t, err, domain.ErrAuthorizationDenied)

	own, err := s.ListOwnedBy(ctx, alice, "alice")
	require.NoError(t, err)
	assert.Len(t, own, 1)

	viaAdmin, err := s.ListOwnedBy(ctx, admin, "alice")
	require.NoError(t, err)
	assert.Equal(t, own, viaAdmin)
}

func TestGet_EnforcesOwnership(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	rec := record("r1", "alice", "2024-03-01")
	rec.Photos = []domain.PhotoRef{"photos/alice/r1/0.jpg"}
	require.NoError(t, s.Append(ctx, rec))

	got, err := s.Get(ctx, alice, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)

	_, err = s.Get(ctx, bob, "r1")
	assert.ErrorIs(t, err, domain.ErrAuthorizationDenied)

	_, err = s.Get(ctx, admin, "r1")
	assert.NoError(t, err)

	_, err = s.Get(ctx, alice, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.GetByPhoto(ctx, bob, "photos/alice/r1/0.jpg")
	assert.ErrorIs(t, err, domain.ErrAuthorizationDenied)

	byPhoto, err := s.GetByPhoto(ctx, alice, "photos/alice/r1/0.jpg")
	require.NoError(t, err)
	assert.Equal(t, "r1", byPhoto.ID)
}

func TestListVisible_AnonymousMemberDenied(t *testing.T) {
	s := newStore(t)
	_, err := s.ListVisible(context.Background(), domain.User{Role: domain.RoleMember})
	assert.ErrorIs(t, err, domain.ErrAuthorizationDenied)
}

func TestAppend_ConcurrentWritersAllLand(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			owner := "alice"
			if i%2 == 1 {
				owner = "bob"
			}
			errs <- s.Append(ctx, record(fmt.Sprintf("r%02d", i), owner, "2024-03-01"))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	all, err := s.ListVisible(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, n)

	mine, err := s.ListVisible(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, mine, n/2)
}

func ids(records []domain.DeliveryRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
