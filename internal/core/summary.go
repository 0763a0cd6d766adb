package core

import "github.com/shopspring/decimal"

// Statistic kinds served by the statistics endpoints.
const (
	StatOverview StatKind = "overview"
	StatCategory StatKind = "category"
	StatTrend    StatKind = "trend"
)

// StatKind names a statistics endpoint.
type StatKind string

// StatisticResult is an opaque keyed result (totals, breakdowns, series).
// The client never interprets it beyond a few convenience accessors.
type StatisticResult map[string]any

// Amount reads a numeric field, accepting both JSON numbers and numeric strings.
func (r StatisticResult) Amount(field string) decimal.Decimal {
	switch v := r[field].(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero
		}
		return d
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	default:
		return decimal.Zero
	}
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	CategoryID int64           `json:"categoryId"`
	Name       string          `json:"categoryName"`
	Amount     decimal.Decimal `json:"amount"`
}
