package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used for record dates.
const DateLayout = "2006-01-02"

type RecordKind string

const (
	KindIndividual RecordKind = "INDIVIDUAL"
	KindDaily      RecordKind = "DAILY"
)

// Payload is the kind-specific part of a delivery record. It is implemented
// only by Individual and Daily.
type Payload interface {
	Kind() RecordKind
	isPayload()
}

// Individual is a job priced per parcel and per collection.
type Individual struct {
	JobID           string
	ParcelCount     int
	CollectionCount int
}

func (Individual) Kind() RecordKind { return KindIndividual }
func (Individual) isPayload()       {}

// Daily is a job priced by the fixed daily bracket table.
type Daily struct {
	JobIDs       []string
	TotalParcels int
}

func (Daily) Kind() RecordKind { return KindDaily }
func (Daily) isPayload()       {}

// PhotoRef is the object key of an uploaded proof-of-delivery photo.
type PhotoRef string

// DeliveryRecord is one completed job logged by a courier. CalculatedValue is
// a snapshot taken at creation and is never recomputed.
type DeliveryRecord struct {
	ID              string
	UserID          string
	Date            string
	Payload         Payload
	Photos          []PhotoRef
	CalculatedValue decimal.Decimal
	CreatedAt       time.Time
}

func (r DeliveryRecord) Kind() RecordKind {
	if r.Payload == nil {
		return ""
	}
	return r.Payload.Kind()
}

// MonthKey returns the YYYY-MM prefix of the record date.
func (r DeliveryRecord) MonthKey() string {
	return MonthKeyOf(r.Date)
}

func MonthKeyOf(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}

// ParseDate validates a YYYY-MM-DD calendar date.
func ParseDate(date string) (time.Time, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidInput, date)
	}
	return t, nil
}

// ParseMonthKey validates a YYYY-MM month key.
func ParseMonthKey(month string) (time.Time, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: month %q must be YYYY-MM", ErrInvalidInput, month)
	}
	return t, nil
}
