// Package metrics is the aggregation engine of the dashboard: pure,
// deterministic report builders over an already-fetched order list and a
// resolved period. Every builder filters to the period first, tolerates
// empty input, and rounds monetary output to cents (half away from zero).
package metrics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-insights/internal/domain/order"
	"github.com/xenking/storefront-insights/internal/domain/period"
)

var hundred = decimal.NewFromInt(100)

// ShippingCosts looks up the fixed per-order shipping cost for a destination
// country. Unknown or empty codes must cost zero.
type ShippingCosts interface {
	Cost(countryCode string) decimal.Decimal
}

// CostOfGoodsFunc derives the product cost of an order's line items.
type CostOfGoodsFunc func(items []order.LineItem) decimal.Decimal

// Engine builds the three metric reports. It holds only configuration and is
// safe for concurrent use; all state lives in function locals.
type Engine struct {
	payoutRate  decimal.Decimal
	shipping    ShippingCosts
	costOfGoods CostOfGoodsFunc
}

// New creates an Engine. payoutRate is the referral payout fraction of an
// order's total price (0.30 pays partners 30%). shipping and costOfGoods may
// be nil, in which case shipping and product costs are zero.
func New(payoutRate float64, shipping ShippingCosts, costOfGoods CostOfGoodsFunc) *Engine {
	return &Engine{
		payoutRate:  decimal.NewFromFloat(payoutRate),
		shipping:    shipping,
		costOfGoods: costOfGoods,
	}
}

func (e *Engine) shippingCost(countryCode string) decimal.Decimal {
	if e.shipping == nil {
		return decimal.Zero
	}
	return e.shipping.Cost(countryCode)
}

func (e *Engine) productCost(items []order.LineItem) decimal.Decimal {
	if e.costOfGoods == nil {
		return decimal.Zero
	}
	return e.costOfGoods(items)
}

// Period describes the resolved window a report covers.
type Period struct {
	Label      string `json:"label"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Days       int    `json:"days"`
	OrderCount int    `json:"orderCount"`
}

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

func buildPeriod(rng period.Range, orderCount int) Period {
	return Period{
		Label:      rangeLabel(rng),
		Start:      rng.Start.UTC().Format(isoMillis),
		End:        rng.End.UTC().Format(isoMillis),
		Days:       rng.Days,
		OrderCount: orderCount,
	}
}

// rangeLabel renders a compact display label; the start year is shown only
// when it differs from the end year.
func rangeLabel(rng period.Range) string {
	start, end := rng.Start.UTC(), rng.End.UTC()
	if dateKey(start) == dateKey(end) {
		return end.Format("Jan 2, 2006")
	}
	startLayout := "Jan 2"
	if start.Year() != end.Year() {
		startLayout = "Jan 2, 2006"
	}
	return start.Format(startLayout) + " – " + end.Format("Jan 2, 2006")
}

func filterByRange(orders []order.Order, rng period.Range) []order.Order {
	filtered := make([]order.Order, 0, len(orders))
	for _, o := range orders {
		if rng.Contains(o.CreatedAt) {
			filtered = append(filtered, o)
		}
	}
	return filtered
}

// money rounds to cents and presents as a float64 for the JSON payload.
func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// share returns part/total as a percentage rounded to two decimals, or 0
// when total is zero.
func share(part, total decimal.Decimal) float64 {
	if total.IsZero() {
		return 0
	}
	return money(part.Div(total).Mul(hundred))
}

// average returns sum/count rounded to cents, or 0 when count is zero.
func average(sum decimal.Decimal, count int) float64 {
	if count == 0 {
		return 0
	}
	return money(sum.Div(decimal.NewFromInt(int64(count))))
}

func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
