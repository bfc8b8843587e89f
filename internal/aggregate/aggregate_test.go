package aggregate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payload/internal/domain"
)

func rec(id, user, date, value string) domain.DeliveryRecord {
	return domain.DeliveryRecord{
		ID:              id,
		UserID:          user,
		Date:            date,
		Payload:         domain.Individual{JobID: id},
		CalculatedValue: decimal.RequireFromString(value),
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// sample is in store order (newest created first).
func sample() []domain.DeliveryRecord {
	return []domain.DeliveryRecord{
		rec("r6", "carol", "2024-02-10", "300"),
		rec("r5", "alice", "2024-04-01", "14.00"),
		rec("r4", "bob", "2024-03-15", "260"),
		rec("r3", "alice", "2024-03-15", "2.40"),
		rec("r2", "bob", "2024-04-03", "360"),
		rec("r1", "alice", "2024-03-01", "180"),
	}
}

func TestMonthlyTotal(t *testing.T) {
	records := []domain.DeliveryRecord{
		rec("a", "alice", "2024-03-01", "180"),
		rec("b", "alice", "2024-04-01", "14.00"),
	}
	assert.Equal(t, "180.00", money(MonthlyTotal(records, "2024-03")))
	assert.Equal(t, "14.00", money(MonthlyTotal(records, "2024-04")))
	assert.Equal(t, "0.00", money(MonthlyTotal(records, "2024-05")))
	assert.Equal(t, "0.00", money(MonthlyTotal(nil, "2024-03")))
}

func TestMonthlyTotal_UsesDateNotCreatedAt(t *testing.T) {
	r := rec("a", "alice", "2024-03-31", "10")
	r.CreatedAt = r.CreatedAt.AddDate(2030, 0, 0)
	assert.Equal(t, "10.00", money(MonthlyTotal([]domain.DeliveryRecord{r}, "2024-03")))
}

func TestMonthlyTotal_NoFloatDrift(t *testing.T) {
	var records []domain.DeliveryRecord
	for i := 0; i < 10; i++ {
		records = append(records, rec("x", "alice", "2024-03-01", "0.10"))
	}
	assert.True(t, decimal.NewFromInt(1).Equal(MonthlyTotal(records, "2024-03")))
}

func TestGroupByMonth_OrderAndSubtotals(t *testing.T) {
	groups := GroupByMonth(sample())
	require.Len(t, groups, 3)

	assert.Equal(t, "2024-04", groups[0].MonthKey)
	assert.Equal(t, "abril de 2024", groups[0].Label)
	assert.Equal(t, []string{"r2", "r5"}, ids(groups[0].Items))
	assert.Equal(t, "374.00", money(groups[0].Subtotal))

	assert.Equal(t, "2024-03", groups[1].MonthKey)
	assert.Equal(t, "março de 2024", groups[1].Label)
	// r4 and r3 share a date and keep store order
	assert.Equal(t, []string{"r4", "r3", "r1"}, ids(groups[1].Items))
	assert.Equal(t, "442.40", money(groups[1].Subtotal))

	assert.Equal(t, "2024-02", groups[2].MonthKey)
	assert.Equal(t, []string{"r6"}, ids(groups[2].Items))
}

func TestGroupByMonth_IsPartition(t *testing.T) {
	input := sample()
	groups := GroupByMonth(input)

	seen := map[string]int{}
	for i, g := range groups {
		if i > 0 {
			assert.Greater(t, groups[i-1].MonthKey, g.MonthKey)
		}
		for _, item := range g.Items {
			assert.Equal(t, g.MonthKey, item.MonthKey())
			seen[item.ID]++
		}
	}
	require.Len(t, seen, len(input))
	for id, n := range seen {
		assert.Equal(t, 1, n, "record %s", id)
	}
}

func TestGroupByMonth_DoesNotMutateInput(t *testing.T) {
	input := sample()
	snapshot := append([]domain.DeliveryRecord(nil), input...)

	first := GroupByMonth(input)
	second := GroupByMonth(input)

	assert.Equal(t, snapshot, input)
	assert.Equal(t, first, second)
}

func TestGroupByMonth_Empty(t *testing.T) {
	assert.Empty(t, GroupByMonth(nil))
}

func TestGroupByUser(t *testing.T) {
	summaries := GroupByUser(sample())
	require.Len(t, summaries, 3)

	assert.Equal(t, "bob", summaries[0].UserID)
	assert.Equal(t, 2, summaries[0].Count)
	assert.Equal(t, "620.00", money(summaries[0].Total))
	assert.Equal(t, "2024-04-03", summaries[0].LastActiveDate)

	assert.Equal(t, "alice", summaries[1].UserID)
	assert.Equal(t, 3, summaries[1].Count)
	assert.Equal(t, "196.40", money(summaries[1].Total))
	assert.Equal(t, "2024-04-01", summaries[1].LastActiveDate)

	assert.Equal(t, "carol", summaries[2].UserID)
	assert.Equal(t, "2024-02-10", summaries[2].LastActiveDate)
}

func TestGroupByUser_Idempotent(t *testing.T) {
	input := sample()
	assert.Equal(t, GroupByUser(input), GroupByUser(input))
}

func TestGroupByUser_TiesKeepFirstAppearance(t *testing.T) {
	summaries := GroupByUser([]domain.DeliveryRecord{
		rec("1", "zed", "2024-03-01", "1"),
		rec("2", "amy", "2024-03-01", "1"),
	})
	require.Len(t, summaries, 2)
	assert.Equal(t, "zed", summaries[0].UserID)
	assert.Equal(t, "amy", summaries[1].UserID)
}

func TestDashboard(t *testing.T) {
	input := sample()
	d := Dashboard(input, "2024-03", 0)

	assert.Equal(t, "2024-03", d.MonthKey)
	assert.Equal(t, 3, d.Count)
	assert.Equal(t, "442.40", money(d.Total))
	assert.Equal(t, "147.47", money(d.Average))
	assert.Equal(t, []string{"r6", "r5", "r4"}, ids(d.Recent))

	d = Dashboard(input, "2023-01", 10)
	assert.Zero(t, d.Count)
	assert.True(t, d.Average.IsZero())
	assert.Len(t, d.Recent, len(input))

	d = Dashboard(nil, "2024-03", 3)
	assert.Empty(t, d.Recent)
}

func TestOverview(t *testing.T) {
	o := Overview(sample(), "2024-04")
	assert.Equal(t, "2024-04", o.MonthKey)
	assert.Equal(t, "374.00", money(o.TotalPayout))
	assert.Equal(t, 3, o.Couriers)
	assert.Equal(t, GroupByUser(sample()), o.Users)
}

func TestMonthLabel(t *testing.T) {
	assert.Equal(t, "janeiro de 2025", MonthLabel("2025-01"))
	assert.Equal(t, "dezembro de 1999", MonthLabel("1999-12"))
	assert.Equal(t, "garbage", MonthLabel("garbage"))
}

func ids(records []domain.DeliveryRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
