package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payload/internal/domain"
	"payload/internal/photos"
	"payload/internal/repository/sqlite"
	"payload/internal/store"
	"payload/internal/valuation"
)

var (
	alice = domain.User{Username: "alice", Role: domain.RoleMember}
	admin = domain.User{Username: "admin", Role: domain.RoleAdmin}
)

type fakeProcessor struct {
	mu        sync.Mutex
	processed int
	discarded []string
}

func (f *fakeProcessor) Process(ctx context.Context, owner, recordID string, uploads []photos.Upload) []domain.PhotoRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed += len(uploads)
	refs := make([]domain.PhotoRef, 0, len(uploads))
	for i := range uploads {
		refs = append(refs, domain.PhotoRef(owner+"/"+recordID+"/"+string(rune('0'+i))+".jpg"))
	}
	return refs
}

func (f *fakeProcessor) Discard(ctx context.Context, owner, recordID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discarded = append(f.discarded, owner+"/"+recordID)
	return nil
}

type failingStore struct {
	store.RecordStore
	err error
}

func (f failingStore) Append(ctx context.Context, record domain.DeliveryRecord) error {
	return f.err
}

func newRecordStore(t *testing.T) store.RecordStore {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := sqlite.NewRecordRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	return store.New(repo)
}

func fixedClock() time.Time {
	return time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
}

func TestCreate_Individual(t *testing.T) {
	records := newRecordStore(t)
	proc := &fakeProcessor{}
	svc := NewRecordService(records, proc, RecordServiceConfig{
		Table: valuation.Default(),
		Now:   fixedClock,
		NewID: func() string { return "rec-1" },
	})

	rec, err := svc.Create(context.Background(), alice, NewRecord{
		Date:    "2024-04-01",
		Payload: domain.Individual{JobID: " A1 ", ParcelCount: 10, CollectionCount: 5},
		Photos:  []photos.Upload{{Data: "x"}, {Data: "y"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "rec-1", rec.ID)
	assert.Equal(t, "alice", rec.UserID)
	assert.Equal(t, "14.00", rec.CalculatedValue.StringFixed(2))
	assert.Equal(t, domain.Individual{JobID: "A1", ParcelCount: 10, CollectionCount: 5}, rec.Payload)
	assert.Len(t, rec.Photos, 2)
	assert.Equal(t, fixedClock(), rec.CreatedAt)

	stored, err := records.Get(context.Background(), alice, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, rec.Photos, stored.Photos)
	assert.True(t, rec.CalculatedValue.Equal(stored.CalculatedValue))
}

func TestCreate_DailyBrackets(t *testing.T) {
	svc := NewRecordService(newRecordStore(t), nil, RecordServiceConfig{Table: valuation.Default()})
	ctx := context.Background()

	rec, err := svc.Create(ctx, alice, NewRecord{
		Date:    "2024-03-01",
		Payload: domain.Daily{JobIDs: []string{"RT55", "GT99"}, TotalParcels: 200},
	})
	require.NoError(t, err)
	assert.Equal(t, "300.00", rec.CalculatedValue.StringFixed(2))

	rec, err = svc.Create(ctx, alice, NewRecord{
		Date:    "2024-03-01",
		Payload: domain.Daily{JobIDs: []string{"RT55", "GT99"}, TotalParcels: 149},
	})
	require.NoError(t, err)
	assert.Equal(t, "260.00", rec.CalculatedValue.StringFixed(2))

	rec, err = svc.Create(ctx, alice, NewRecord{
		Date:    "2024-03-02",
		Payload: domain.Daily{JobIDs: []string{"RT55"}, TotalParcels: 400},
	})
	require.NoError(t, err)
	assert.Equal(t, "180.00", rec.CalculatedValue.StringFixed(2))
}

func TestCreate_ValueIsFrozenAtCreation(t *testing.T) {
	records := newRecordStore(t)
	ctx := context.Background()

	before := NewRecordService(records, nil, RecordServiceConfig{Table: valuation.Default()})
	rec, err := before.Create(ctx, alice, NewRecord{
		Date:    "2024-04-01",
		Payload: domain.Individual{JobID: "A1", ParcelCount: 10, CollectionCount: 5},
	})
	require.NoError(t, err)

	raised := valuation.Default()
	raised.RateParcel = decimal.NewFromInt(5)
	after := NewRecordService(records, nil, RecordServiceConfig{Table: raised})
	_, err = after.Create(ctx, alice, NewRecord{
		Date:    "2024-04-02",
		Payload: domain.Individual{JobID: "A2", ParcelCount: 10, CollectionCount: 5},
	})
	require.NoError(t, err)

	stored, err := records.Get(ctx, alice, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "14.00", stored.CalculatedValue.StringFixed(2))
}

func TestCreate_InvalidInput(t *testing.T) {
	svc := NewRecordService(newRecordStore(t), nil, RecordServiceConfig{Table: valuation.Default()})
	ctx := context.Background()

	cases := map[string]NewRecord{
		"bad date":         {Date: "01/04/2024", Payload: domain.Individual{JobID: "A1"}},
		"missing kind":     {Date: "2024-04-01"},
		"blank job id":     {Date: "2024-04-01", Payload: domain.Individual{JobID: "  "}},
		"negative parcels": {Date: "2024-04-01", Payload: domain.Individual{JobID: "A1", ParcelCount: -1}},
		"no daily ids":     {Date: "2024-04-01", Payload: domain.Daily{TotalParcels: 10}},
		"three daily ids":  {Date: "2024-04-01", Payload: domain.Daily{JobIDs: []string{"a", "b", "c"}}},
		"blank daily id":   {Date: "2024-04-01", Payload: domain.Daily{JobIDs: []string{"a", " "}}},
		"negative total":   {Date: "2024-04-01", Payload: domain.Daily{JobIDs: []string{"a"}, TotalParcels: -5}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, alice, in)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestCreate_RequiresMember(t *testing.T) {
	svc := NewRecordService(newRecordStore(t), nil, RecordServiceConfig{Table: valuation.Default()})
	in := NewRecord{Date: "2024-04-01", Payload: domain.Individual{JobID: "A1"}}

	_, err := svc.Create(context.Background(), domain.User{}, in)
	assert.ErrorIs(t, err, domain.ErrAuthorizationDenied)

	_, err = svc.Create(context.Background(), admin, in)
	assert.ErrorIs(t, err, domain.ErrAuthorizationDenied)
}

func TestCreate_DuplicateIDDiscardsPhotos(t *testing.T) {
	records := newRecordStore(t)
	proc := &fakeProcessor{}
	svc := NewRecordService(records, proc, RecordServiceConfig{
		Table: valuation.Default(),
		NewID: func() string { return "same" },
	})
	ctx := context.Background()
	in := NewRecord{
		Date:    "2024-04-01",
		Payload: domain.Individual{JobID: "A1"},
		Photos:  []photos.Upload{{Data: "x"}},
	}

	_, err := svc.Create(ctx, alice, in)
	require.NoError(t, err)

	_, err = svc.Create(ctx, alice, in)
	require.ErrorIs(t, err, domain.ErrIDCollision)
	assert.Equal(t, []string{"alice/same"}, proc.discarded)

	all, err := records.ListVisible(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCreate_StorageFailureIsLogged(t *testing.T) {
	logger, hook := test.NewNullLogger()
	svc := NewRecordService(failingStore{err: errors.New("disk full")}, nil, RecordServiceConfig{
		Table:  valuation.Default(),
		Logger: logger,
	})

	_, err := svc.Create(context.Background(), alice, NewRecord{
		Date:    "2024-04-01",
		Payload: domain.Individual{JobID: "A1"},
	})
	require.Error(t, err)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestPreview(t *testing.T) {
	svc := NewRecordService(nil, nil, RecordServiceConfig{Table: valuation.Default()})

	v, err := svc.Preview(domain.Individual{ParcelCount: 10, CollectionCount: 5})
	require.NoError(t, err)
	assert.Equal(t, "14.00", v.StringFixed(2))

	// no IDs typed yet prices as a single-ID day
	v, err = svc.Preview(domain.Daily{TotalParcels: 90})
	require.NoError(t, err)
	assert.Equal(t, "180.00", v.StringFixed(2))

	v, err = svc.Preview(domain.Daily{JobIDs: []string{"", ""}, TotalParcels: 251})
	require.NoError(t, err)
	assert.Equal(t, "360.00", v.StringFixed(2))

	_, err = svc.Preview(domain.Individual{ParcelCount: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Preview(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
