package dashboard

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tiburcios-stuff/bling-adapter/pkg/model"
)

// Summarize aggregates a flat order set into the dashboard KPIs. Every row
// counts toward OrderCount; only rows with a non-nil total contribute to the
// revenue sums. Rows with a nil date are excluded from the by-day series, and
// rows with a nil store ID form their own by-store bucket.
func Summarize(orders []model.Order) model.Summary {
	revenue := decimal.Zero
	byDay := make(map[string]decimal.Decimal)
	byStore := make(map[int64]decimal.Decimal)
	noStore := decimal.Zero
	hasNoStore := false

	for _, o := range orders {
		if o.Total == nil {
			continue
		}
		revenue = revenue.Add(*o.Total)

		if o.Date != nil {
			day := o.Date.Format("2006-01-02")
			byDay[day] = byDay[day].Add(*o.Total)
		}

		if o.StoreID != nil {
			byStore[*o.StoreID] = byStore[*o.StoreID].Add(*o.Total)
		} else {
			noStore = noStore.Add(*o.Total)
			hasNoStore = true
		}
	}

	sum := model.Summary{
		OrderCount: len(orders),
		Revenue:    revenue,
	}
	if len(orders) > 0 {
		sum.AverageTicket = revenue.DivRound(decimal.NewFromInt(int64(len(orders))), 2)
	} else {
		sum.AverageTicket = decimal.Zero
	}

	sum.ByDay = make([]model.DayTotal, 0, len(byDay))
	for day, total := range byDay {
		sum.ByDay = append(sum.ByDay, model.DayTotal{Day: day, Total: total})
	}
	sort.Slice(sum.ByDay, func(i, j int) bool { return sum.ByDay[i].Day < sum.ByDay[j].Day })

	sum.ByStore = make([]model.StoreTotal, 0, len(byStore)+1)
	for id, total := range byStore {
		id := id
		sum.ByStore = append(sum.ByStore, model.StoreTotal{StoreID: &id, Total: total})
	}
	if hasNoStore {
		sum.ByStore = append(sum.ByStore, model.StoreTotal{Total: noStore})
	}
	sort.Slice(sum.ByStore, func(i, j int) bool {
		return sum.ByStore[i].Total.GreaterThan(sum.ByStore[j].Total)
	})

	return sum
}
