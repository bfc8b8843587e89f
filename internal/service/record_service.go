package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"payload/internal/domain"
	"payload/internal/photos"
	"payload/internal/store"
	"payload/internal/valuation"
)

// NewRecord is the input for logging a completed job.
type NewRecord struct {
	Date    string
	Payload domain.Payload
	Photos  []photos.Upload
}

// RecordService creates delivery records: it validates the job, freezes its
// value under the current pay-rule table, stores the photos and appends the
// record.
type RecordService interface {
	Create(ctx context.Context, asUser domain.User, in NewRecord) (*domain.DeliveryRecord, error)
	// Preview is the live estimate shown while the job is being entered.
	// A daily job with no IDs typed yet is priced as a single-ID job.
	Preview(payload domain.Payload) (decimal.Decimal, error)
}

type RecordServiceConfig struct {
	Table  valuation.Table
	Logger *logrus.Logger
	Now    func() time.Time
	NewID  func() string
}

type recordService struct {
	store  store.RecordStore
	photos photos.Processor
	cfg    RecordServiceConfig
}

func NewRecordService(records store.RecordStore, photoProcessor photos.Processor, cfg RecordServiceConfig) RecordService {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &recordService{
		store:  records,
		photos: photoProcessor,
		cfg:    cfg,
	}
}

func (s *recordService) Create(ctx context.Context, asUser domain.User, in NewRecord) (*domain.DeliveryRecord, error) {
	if asUser.Username == "" {
		return nil, domain.ErrAuthorizationDenied
	}
	if asUser.IsAdmin() {
		return nil, fmt.Errorf("admin account cannot log jobs: %w", domain.ErrAuthorizationDenied)
	}

	payload, err := normalizePayload(in.Payload)
	if err != nil {
		return nil, err
	}
	if _, err := domain.ParseDate(in.Date); err != nil {
		return nil, err
	}

	value, err := s.cfg.Table.Evaluate(payload)
	if err != nil {
		return nil, err
	}

	record := domain.DeliveryRecord{
		ID:              s.cfg.NewID(),
		UserID:          asUser.Username,
		Date:            in.Date,
		Payload:         payload,
		CalculatedValue: value,
		CreatedAt:       s.cfg.Now().UTC(),
	}

	logger := s.cfg.Logger.WithFields(logrus.Fields{"user": record.UserID, "record_id": record.ID})

	if len(in.Photos) > 0 && s.photos != nil {
		record.Photos = s.photos.Process(ctx, record.UserID, record.ID, in.Photos)
	}

	if err := s.store.Append(ctx, record); err != nil {
		if len(record.Photos) > 0 {
			if discardErr := s.photos.Discard(context.WithoutCancel(ctx), record.UserID, record.ID); discardErr != nil {
				logger.Warnf("discard photos of rejected record: %v", discardErr)
			}
		}
		if !errors.Is(err, domain.ErrIDCollision) && !errors.Is(err, domain.ErrInvalidInput) {
			logger.Errorf("record not persisted: %v", err)
		}
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"kind":   record.Kind(),
		"date":   record.Date,
		"value":  record.CalculatedValue.StringFixed(2),
		"photos": len(record.Photos),
	}).Info("record created")

	return &record, nil
}

func (s *recordService) Preview(payload domain.Payload) (decimal.Decimal, error) {
	if d, ok := payload.(domain.Daily); ok && len(d.JobIDs) == 0 {
		d.JobIDs = []string{""}
		payload = d
	}
	if err := checkCounts(payload); err != nil {
		return decimal.Zero, err
	}
	return s.cfg.Table.Evaluate(payload)
}

// normalizePayload trims job IDs and rejects anything the pay-rule table
// cannot price.
func normalizePayload(payload domain.Payload) (domain.Payload, error) {
	if err := checkCounts(payload); err != nil {
		return nil, err
	}

	switch p := payload.(type) {
	case domain.Individual:
		p.JobID = strings.TrimSpace(p.JobID)
		if p.JobID == "" {
			return nil, fmt.Errorf("%w: job id is required", domain.ErrInvalidInput)
		}
		return p, nil
	case domain.Daily:
		if len(p.JobIDs) < 1 || len(p.JobIDs) > 2 {
			return nil, fmt.Errorf("%w: daily job needs 1 or 2 ids, got %d", domain.ErrInvalidInput, len(p.JobIDs))
		}
		ids := make([]string, len(p.JobIDs))
		for i, id := range p.JobIDs {
			ids[i] = strings.TrimSpace(id)
			if ids[i] == "" {
				return nil, fmt.Errorf("%w: daily job id %d is blank", domain.ErrInvalidInput, i+1)
			}
		}
		p.JobIDs = ids
		return p, nil
	default:
		return nil, fmt.Errorf("%w: record kind is required", domain.ErrInvalidInput)
	}
}

func checkCounts(payload domain.Payload) error {
	switch p := payload.(type) {
	case domain.Individual:
		if p.ParcelCount < 0 || p.CollectionCount < 0 {
			return fmt.Errorf("%w: parcel and collection counts must not be negative", domain.ErrInvalidInput)
		}
	case domain.Daily:
		if p.TotalParcels < 0 {
			return fmt.Errorf("%w: total parcels must not be negative", domain.ErrInvalidInput)
		}
	case nil:
		return fmt.Errorf("%w: record kind is required", domain.ErrInvalidInput)
	}
	return nil
}

var _ RecordService = (*recordService)(nil)
