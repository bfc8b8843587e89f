package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"payload/internal/domain"
	"payload/internal/repository"
)

const createRecordsTable = `
CREATE TABLE IF NOT EXISTS records (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	user_id TEXT NOT NULL,
	date TEXT NOT NULL,
	kind TEXT NOT NULL CHECK (kind IN ('INDIVIDUAL', 'DAILY')),
	individual_id TEXT NULL,
	parcels INTEGER NULL,
	collections INTEGER NULL,
	daily_id_1 TEXT NULL,
	daily_id_2 TEXT NULL,
	total_parcels INTEGER NULL,
	calculated_value TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_user_id ON records(user_id);

CREATE TABLE IF NOT EXISTS record_photos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	object_key TEXT NOT NULL,
	FOREIGN KEY(record_id) REFERENCES records(id)
);
CREATE INDEX IF NOT EXISTS idx_record_photos_record_id ON record_photos(record_id);
CREATE INDEX IF NOT EXISTS idx_record_photos_object_key ON record_photos(object_key);
`

const selectRecordColumns = `
SELECT id, user_id, date, kind, individual_id, parcels, collections, daily_id_1, daily_id_2, total_parcels, calculated_value, created_at
FROM records`

// RecordRepository is an append-only store of delivery records. The seq
// column preserves insertion order.
type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) repository.RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createRecordsTable); err != nil {
		return fmt.Errorf("create records table: %w", err)
	}
	return nil
}

// Insert writes the record and its photo refs in one transaction.
func (r *RecordRepository) Insert(ctx context.Context, record *domain.DeliveryRecord) error {
	row, err := toRow(record)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // safe no-op on commit

	if _, err := tx.ExecContext(ctx, `
INSERT INTO records (id, user_id, date, kind, individual_id, parcels, collections, daily_id_1, daily_id_2, total_parcels, calculated_value, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.UserID,
		record.Date,
		string(record.Kind()),
		row.individualID,
		row.parcels,
		row.collections,
		row.dailyID1,
		row.dailyID2,
		row.totalParcels,
		record.CalculatedValue.String(),
		record.CreatedAt.UnixMilli(),
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert record %s: %w", record.ID, domain.ErrIDCollision)
		}
		return fmt.Errorf("insert record: %w", err)
	}

	for i, photo := range record.Photos {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO record_photos (record_id, position, object_key)
VALUES (?, ?, ?)`,
			record.ID,
			i,
			string(photo),
		); err != nil {
			return fmt.Errorf("insert record photo: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record insert: %w", err)
	}
	return nil
}

func (r *RecordRepository) Get(ctx context.Context, id string) (*domain.DeliveryRecord, error) {
	row := r.db.QueryRowContext(ctx, selectRecordColumns+`
WHERE id=?`, id)

	record, err := scanRecord(row)
	if err != nil {
		return nil, err
	}
	photos, err := r.photosFor(ctx, `WHERE p.record_id = ?`, id)
	if err != nil {
		return nil, err
	}
	record.Photos = photos[record.ID]
	return record, nil
}

func (r *RecordRepository) List(ctx context.Context) ([]domain.DeliveryRecord, error) {
	records, err := r.query(ctx, selectRecordColumns+`
ORDER BY seq DESC`)
	if err != nil {
		return nil, err
	}
	photos, err := r.photosFor(ctx, "")
	if err != nil {
		return nil, err
	}
	return attachPhotos(records, photos), nil
}

func (r *RecordRepository) ListByUser(ctx context.Context, userID string) ([]domain.DeliveryRecord, error) {
	records, err := r.query(ctx, selectRecordColumns+`
WHERE user_id=?
ORDER BY seq DESC`, userID)
	if err != nil {
		return nil, err
	}
	photos, err := r.photosFor(ctx, `WHERE r.user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	return attachPhotos(records, photos), nil
}

func (r *RecordRepository) FindByPhoto(ctx context.Context, ref domain.PhotoRef) (*domain.DeliveryRecord, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
SELECT record_id FROM record_photos WHERE object_key=? LIMIT 1`, string(ref)).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("photo %s: %w", ref, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("find photo: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *RecordRepository) query(ctx context.Context, query string, args ...any) ([]domain.DeliveryRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []domain.DeliveryRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

func (r *RecordRepository) photosFor(ctx context.Context, where string, args ...any) (map[string][]domain.PhotoRef, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT p.record_id, p.object_key
FROM record_photos p
JOIN records r ON r.id = p.record_id
`+where+`
ORDER BY p.record_id, p.position ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query record photos: %w", err)
	}
	defer rows.Close()

	photos := make(map[string][]domain.PhotoRef)
	for rows.Next() {
		var recordID, key string
		if err := rows.Scan(&recordID, &key); err != nil {
			return nil, fmt.Errorf("scan record photo: %w", err)
		}
		photos[recordID] = append(photos[recordID], domain.PhotoRef(key))
	}
	return photos, rows.Err()
}

func attachPhotos(records []domain.DeliveryRecord, photos map[string][]domain.PhotoRef) []domain.DeliveryRecord {
	for i := range records {
		records[i].Photos = photos[records[i].ID]
	}
	return records
}

type recordRow struct {
	individualID sql.NullString
	parcels      sql.NullInt64
	collections  sql.NullInt64
	dailyID1     sql.NullString
	dailyID2     sql.NullString
	totalParcels sql.NullInt64
}

func toRow(record *domain.DeliveryRecord) (recordRow, error) {
	var row recordRow
	switch p := record.Payload.(type) {
	case domain.Individual:
		row.individualID = sql.NullString{String: p.JobID, Valid: true}
		row.parcels = sql.NullInt64{Int64: int64(p.ParcelCount), Valid: true}
		row.collections = sql.NullInt64{Int64: int64(p.CollectionCount), Valid: true}
	case domain.Daily:
		if len(p.JobIDs) < 1 || len(p.JobIDs) > 2 {
			return row, fmt.Errorf("%w: daily record needs 1 or 2 ids", domain.ErrInvalidInput)
		}
		row.dailyID1 = sql.NullString{String: p.JobIDs[0], Valid: true}
		if len(p.JobIDs) == 2 {
			row.dailyID2 = sql.NullString{String: p.JobIDs[1], Valid: true}
		}
		row.totalParcels = sql.NullInt64{Int64: int64(p.TotalParcels), Valid: true}
	default:
		return row, fmt.Errorf("%w: unknown record payload %T", domain.ErrInvalidInput, record.Payload)
	}
	return row, nil
}

func scanRecord(scanner interface {
	Scan(dest ...any) error
}) (*domain.DeliveryRecord, error) {
	var (
		record    domain.DeliveryRecord
		kind      string
		row       recordRow
		value     string
		createdAt int64
	)

	if err := scanner.Scan(
		&record.ID,
		&record.UserID,
		&record.Date,
		&kind,
		&row.individualID,
		&row.parcels,
		&row.collections,
		&row.dailyID1,
		&row.dailyID2,
		&row.totalParcels,
		&value,
		&createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("record: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scan record: %w", err)
	}

	switch domain.RecordKind(kind) {
	case domain.KindIndividual:
		record.Payload = domain.Individual{
			JobID:           row.individualID.String,
			ParcelCount:     int(row.parcels.Int64),
			CollectionCount: int(row.collections.Int64),
		}
	case domain.KindDaily:
		ids := []string{row.dailyID1.String}
		if row.dailyID2.Valid {
			ids = append(ids, row.dailyID2.String)
		}
		record.Payload = domain.Daily{
			JobIDs:       ids,
			TotalParcels: int(row.totalParcels.Int64),
		}
	default:
		return nil, fmt.Errorf("scan record %s: unknown kind %q", record.ID, kind)
	}

	amount, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("parse calculated value of %s: %w", record.ID, err)
	}
	record.CalculatedValue = amount
	record.CreatedAt = time.UnixMilli(createdAt).UTC()

	return &record, nil
}
