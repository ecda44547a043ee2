package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the canonical, flattened form of a Bling sales order. Date and Total
// are pointers because upstream fields are coerced to nil on parse failure
// instead of dropping the row.
type Order struct {
	ID               int64            `json:"id"`
	Date             *time.Time       `json:"date"`
	OrderNumber      string           `json:"orderNumber"`
	StoreOrderNumber string           `json:"storeOrderNumber"`
	Total            *decimal.Decimal `json:"total"`
	StoreID          *int64           `json:"storeId"`
}

// DateRange is an inclusive date window for order queries.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Summary carries the aggregate metrics rendered by the dashboard front end.
// Revenue sums only rows with a non-nil total; OrderCount counts every row.
type Summary struct {
	OrderCount    int             `json:"orderCount"`
	Revenue       decimal.Decimal `json:"revenue"`
	AverageTicket decimal.Decimal `json:"averageTicket"`
	ByDay         []DayTotal      `json:"byDay"`
	ByStore       []StoreTotal    `json:"byStore"`
}

// DayTotal is revenue aggregated per calendar day.
type DayTotal struct {
	Day   string          `json:"day"` // YYYY-MM-DD
	Total decimal.Decimal `json:"total"`
}

// StoreTotal is revenue aggregated per store ID. StoreID is nil for rows whose
// store could not be resolved from the raw record.
type StoreTotal struct {
	StoreID *int64          `json:"storeId"`
	Total   decimal.Decimal `json:"total"`
}
