package repository

import (
	"context"

	"payload/internal/domain"
)

// RecordRepository exposes persistence operations for delivery records.
// Listing methods return records newest-inserted first.
type RecordRepository interface {
	Init(ctx context.Context) error
	Insert(ctx context.Context, record *domain.DeliveryRecord) error
	Get(ctx context.Context, id string) (*domain.DeliveryRecord, error)
	List(ctx context.Context) ([]domain.DeliveryRecord, error)
	ListByUser(ctx context.Context, userID string) ([]domain.DeliveryRecord, error)
	FindByPhoto(ctx context.Context, ref domain.PhotoRef) (*domain.DeliveryRecord, error)
}
