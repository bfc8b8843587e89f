// Package store holds every delivery record and decides which of them a
// given user may read. Members see their own records, admins see all.
// Listings are newest-created first.
package store

import (
	"context"
	"fmt"
	"sync"

	"payload/internal/domain"
	"payload/internal/repository"
)

// RecordStore is the role-gated collection of delivery records.
type RecordStore interface {
	Append(ctx context.Context, record domain.DeliveryRecord) error
	ListVisible(ctx context.Context, asUser domain.User) ([]domain.DeliveryRecord, error)
	ListOwnedBy(ctx context.Context, asUser domain.User, owner string) ([]domain.DeliveryRecord, error)
	Get(ctx context.Context, asUser domain.User, id string) (*domain.DeliveryRecord, error)
	GetByPhoto(ctx context.Context, asUser domain.User, ref domain.PhotoRef) (*domain.DeliveryRecord, error)
}

type recordStore struct {
	records repository.RecordRepository

	// appends are serialized; reads go straight to the repository
	mu sync.Mutex
}

func New(records repository.RecordRepository) RecordStore {
	return &recordStore{records: records}
}

// Append persists the record before returning. A duplicate ID fails with
// domain.ErrIDCollision and leaves the collection unchanged.
func (s *recordStore) Append(ctx context.Context, record domain.DeliveryRecord) error {
	if record.ID == "" || record.UserID == "" {
		return fmt.Errorf("%w: record id and owner are required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.records.Insert(ctx, &record); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

func (s *recordStore) ListVisible(ctx context.Context, asUser domain.User) ([]domain.DeliveryRecord, error) {
	if asUser.IsAdmin() {
		return s.records.List(ctx)
	}
	if asUser.Username == "" {
		return nil, domain.ErrAuthorizationDenied
	}
	return s.records.ListByUser(ctx, asUser.Username)
}

func (s *recordStore) ListOwnedBy(ctx context.Context, asUser domain.User, owner string) ([]domain.DeliveryRecord, error) {
	if !asUser.CanSee(owner) {
		return nil, fmt.Errorf("%s reading records of %s: %w", asUser.Username, owner, domain.ErrAuthorizationDenied)
	}
	return s.records.ListByUser(ctx, owner)
}

func (s *recordStore) Get(ctx context.Context, asUser domain.User, id string) (*domain.DeliveryRecord, error) {
	record, err := s.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return visible(asUser, record)
}

func (s *recordStore) GetByPhoto(ctx context.Context, asUser domain.User, ref domain.PhotoRef) (*domain.DeliveryRecord, error) {
	record, err := s.records.FindByPhoto(ctx, ref)
	if err != nil {
		return nil, err
	}
	return visible(asUser, record)
}

func visible(asUser domain.User, record *domain.DeliveryRecord) (*domain.DeliveryRecord, error) {
	if !asUser.CanSee(record.UserID) {
		return nil, fmt.Errorf("%s reading record %s: %w", asUser.Username, record.ID, domain.ErrAuthorizationDenied)
	}
	return record, nil
}

var _ RecordStore = (*recordStore)(nil)
