// Package aggregate derives dashboard, history and admin views from a slice
// of delivery records. Every function is pure: inputs are never mutated and
// repeated calls return identical results.
package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"payload/internal/domain"
)

// DefaultRecentLimit is how many records the dashboard lists as recent activity.
const DefaultRecentLimit = 3

type MonthGroup struct {
	MonthKey string
	Label    string
	Items    []domain.DeliveryRecord
	Subtotal decimal.Decimal
}

type UserSummary struct {
	UserID         string
	Count          int
	Total          decimal.Decimal
	LastActiveDate string
}

type DashboardSummary struct {
	MonthKey string
	Total    decimal.Decimal
	Count    int
	// Average is the mean value per record in the month, rounded to cents.
	Average decimal.Decimal
	Recent  []domain.DeliveryRecord
}

type AdminOverview struct {
	MonthKey    string
	TotalPayout decimal.Decimal
	Couriers    int
	Users       []UserSummary
}

// MonthlyTotal sums the values of records dated within monthKey (YYYY-MM).
func MonthlyTotal(records []domain.DeliveryRecord, monthKey string) decimal.Decimal {
	total, _ := monthTotals(records, monthKey)
	return total
}

func monthTotals(records []domain.DeliveryRecord, monthKey string) (decimal.Decimal, int) {
	total := decimal.Zero
	count := 0
	for _, r := range records {
		if r.MonthKey() != monthKey {
			continue
		}
		total = total.Add(r.CalculatedValue)
		count++
	}
	return total, count
}

// GroupByMonth partitions records by month, most recent month first. Items
// within a month are ordered by date descending; equal dates keep input order.
func GroupByMonth(records []domain.DeliveryRecord) []MonthGroup {
	index := make(map[string]int)
	groups := []MonthGroup{}
	for _, r := range records {
		key := r.MonthKey()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, MonthGroup{
				MonthKey: key,
				Label:    MonthLabel(key),
				Subtotal: decimal.Zero,
			})
		}
		groups[i].Items = append(groups[i].Items, r)
		groups[i].Subtotal = groups[i].Subtotal.Add(r.CalculatedValue)
	}

	for i := range groups {
		items := groups[i].Items
		sort.SliceStable(items, func(a, b int) bool {
			return items[a].Date > items[b].Date
		})
	}
	sort.Slice(groups, func(a, b int) bool {
		return groups[a].MonthKey > groups[b].MonthKey
	})
	return groups
}

// GroupByUser summarizes records per owner, most recently active first.
// Owners with the same last active date keep their first-appearance order.
func GroupByUser(records []domain.DeliveryRecord) []UserSummary {
	index := make(map[string]int)
	summaries := []UserSummary{}
	for _, r := range records {
		i, ok := index[r.UserID]
		if !ok {
			i = len(summaries)
			index[r.UserID] = i
			summaries = append(summaries, UserSummary{UserID: r.UserID, Total: decimal.Zero})
		}
		s := &summaries[i]
		s.Count++
		s.Total = s.Total.Add(r.CalculatedValue)
		if r.Date > s.LastActiveDate {
			s.LastActiveDate = r.Date
		}
	}

	sort.SliceStable(summaries, func(a, b int) bool {
		return summaries[a].LastActiveDate > summaries[b].LastActiveDate
	})
	return summaries
}

// Dashboard builds the courier home view for monthKey. Recent takes the
// first recentLimit records in the given (store) order.
func Dashboard(records []domain.DeliveryRecord, monthKey string, recentLimit int) DashboardSummary {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLimit
	}
	total, count := monthTotals(records, monthKey)

	average := decimal.Zero
	if count > 0 {
		average = total.Div(decimal.NewFromInt(int64(count))).Round(2)
	}

	n := min(recentLimit, len(records))
	recent := make([]domain.DeliveryRecord, n)
	copy(recent, records[:n])

	return DashboardSummary{
		MonthKey: monthKey,
		Total:    total,
		Count:    count,
		Average:  average,
		Recent:   recent,
	}
}

// Overview builds the admin landing view: the month's payout across every
// courier plus the per-courier summaries.
func Overview(records []domain.DeliveryRecord, monthKey string) AdminOverview {
	users := GroupByUser(records)
	return AdminOverview{
		MonthKey:    monthKey,
		TotalPayout: MonthlyTotal(records, monthKey),
		Couriers:    len(users),
		Users:       users,
	}
}
