// Package valuation prices delivery jobs under the pay-rule table.
//
// All functions are pure. Negative counts are a caller precondition and are
// not checked here; ID counts outside the daily table are rejected.
package valuation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"payload/internal/domain"
)

// Table is the pay-rule table. Amounts are in currency units.
type Table struct {
	RateParcel     decimal.Decimal
	RateCollection decimal.Decimal

	DailySingle decimal.Decimal
	DailyLow    decimal.Decimal
	DailyMid    decimal.Decimal
	DailyHigh   decimal.Decimal
	// Parcel totals in [DailyLowerBound, DailyUpperBound] fall in the mid bracket.
	DailyLowerBound int
	DailyUpperBound int
}

// Default returns the fixed pay-rule table.
func Default() Table {
	return Table{
		RateParcel:      decimal.RequireFromString("1.00"),
		RateCollection:  decimal.RequireFromString("0.80"),
		DailySingle:     decimal.NewFromInt(180),
		DailyLow:        decimal.NewFromInt(260),
		DailyMid:        decimal.NewFromInt(300),
		DailyHigh:       decimal.NewFromInt(360),
		DailyLowerBound: 150,
		DailyUpperBound: 250,
	}
}

// EvaluateIndividual pays each parcel and collection at its flat rate.
func (t Table) EvaluateIndividual(parcelCount, collectionCount int) decimal.Decimal {
	parcels := decimal.NewFromInt(int64(parcelCount)).Mul(t.RateParcel)
	collections := decimal.NewFromInt(int64(collectionCount)).Mul(t.RateCollection)
	return parcels.Add(collections)
}

// EvaluateDaily returns the fixed day rate for one or two job IDs.
func (t Table) EvaluateDaily(idCount, totalParcels int) (decimal.Decimal, error) {
	switch idCount {
	case 1:
		return t.DailySingle, nil
	case 2:
		switch {
		case totalParcels < t.DailyLowerBound:
			return t.DailyLow, nil
		case totalParcels <= t.DailyUpperBound:
			return t.DailyMid, nil
		default:
			return t.DailyHigh, nil
		}
	default:
		return decimal.Zero, fmt.Errorf("%w: daily job needs 1 or 2 ids, got %d", domain.ErrInvalidInput, idCount)
	}
}

// Evaluate prices a record payload.
func (t Table) Evaluate(p domain.Payload) (decimal.Decimal, error) {
	switch v := p.(type) {
	case domain.Individual:
		return t.EvaluateIndividual(v.ParcelCount, v.CollectionCount), nil
	case domain.Daily:
		return t.EvaluateDaily(len(v.JobIDs), v.TotalParcels)
	default:
		return decimal.Zero, fmt.Errorf("%w: unknown record payload %T", domain.ErrInvalidInput, p)
	}
}

// EvaluateIndividual prices an individual job under the default table.
func EvaluateIndividual(parcelCount, collectionCount int) decimal.Decimal {
	return Default().EvaluateIndividual(parcelCount, collectionCount)
}

// EvaluateDaily prices a daily job under the default table.
func EvaluateDaily(idCount, totalParcels int) (decimal.Decimal, error) {
	return Default().EvaluateDaily(idCount, totalParcels)
}

// Evaluate prices a record payload under the default table.
func Evaluate(p domain.Payload) (decimal.Decimal, error) {
	return Default().Evaluate(p)
}
