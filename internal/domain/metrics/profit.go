package metrics

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-insights/internal/domain/order"
	"github.com/xenking/storefront-insights/internal/domain/period"
)

// ProfitReport combines gross and net revenue across discounts, referral
// payouts, shipping economics, and product costs.
type ProfitReport struct {
	Period  Period        `json:"period"`
	Summary ProfitSummary `json:"summary"`
	Trend   []ProfitPoint `json:"trend"`
}

// ProfitSummary totals the period. The bruto/netto JSON keys are kept for
// compatibility with the dashboard frontend.
type ProfitSummary struct {
	Gross                float64 `json:"bruto"`
	Net                  float64 `json:"netto"`
	TotalOrders          int     `json:"totalOrders"`
	TotalDiscounts       float64 `json:"totalDiscounts"`
	TotalReferralPayout  float64 `json:"totalReferralPayout"`
	TotalShippingCharged float64 `json:"totalShippingCharged"`
	TotalShippingCost    float64 `json:"totalShippingCost"`
	TotalProductCost     float64 `json:"totalProductCost"`
}

// ProfitPoint is one calendar day of the dense gross/net series: every day
// of the period appears, zero-valued when no orders landed on it.
type ProfitPoint struct {
	Date  string  `json:"date"`
	Gross float64 `json:"gross"`
	Net   float64 `json:"net"`
}

type profitAccum struct {
	gross decimal.Decimal
	net   decimal.Decimal
}

// Profit aggregates the combined gross/net report for the given period.
//
// Per order: gross = price + discounts + referral payout + shipping charged;
// net = price − referral payout − product cost + (shipping charged −
// shipping cost). The payout is taken on the full total price even when the
// order also carries product discounts.
func (e *Engine) Profit(orders []order.Order, rng period.Range) *ProfitReport {
	filtered := filterByRange(orders, rng)

	buckets := make(map[string]*profitAccum, rng.Days)

	var (
		grossTotal, netTotal decimal.Decimal
		discounts, payouts   decimal.Decimal
		shipCharged          decimal.Decimal
		shipCost             decimal.Decimal
		productCost          decimal.Decimal
	)

	for _, o := range filtered {
		payout := o.ReferralPayout(e.payoutRate)
		cost := e.shippingCost(o.ShippingCountryCode)
		cogs := e.productCost(o.LineItems)

		gross := o.TotalPrice.Add(o.TotalDiscounts).Add(payout).Add(o.TotalShippingPrice)
		net := o.TotalPrice.Sub(payout).Sub(cogs).Add(o.TotalShippingPrice.Sub(cost))

		grossTotal = grossTotal.Add(gross)
		netTotal = netTotal.Add(net)
		discounts = discounts.Add(o.TotalDiscounts)
		payouts = payouts.Add(payout)
		shipCharged = shipCharged.Add(o.TotalShippingPrice)
		shipCost = shipCost.Add(cost)
		productCost = productCost.Add(cogs)

		key := dateKey(o.CreatedAt)
		b, ok := buckets[key]
		if !ok {
			b = &profitAccum{}
			buckets[key] = b
		}
		b.gross = b.gross.Add(gross)
		b.net = b.net.Add(net)
	}

	// Dense fill: one point per calendar day in range, in order.
	trend := make([]ProfitPoint, 0, rng.Days)
	for cursor := rng.Start.UTC(); !cursor.After(rng.End); cursor = cursor.AddDate(0, 0, 1) {
		key := dateKey(cursor)
		point := ProfitPoint{Date: key}
		if b, ok := buckets[key]; ok {
			point.Gross = money(b.gross)
			point.Net = money(b.net)
		}
		trend = append(trend, point)
	}

	return &ProfitReport{
		Period: buildPeriod(rng, len(filtered)),
		Summary: ProfitSummary{
			Gross:                money(grossTotal),
			Net:                  money(netTotal),
			TotalOrders:          len(filtered),
			TotalDiscounts:       money(discounts),
			TotalReferralPayout:  money(payouts),
			TotalShippingCharged: money(shipCharged),
			TotalShippingCost:    money(shipCost),
			TotalProductCost:     money(productCost),
		},
		Trend: trend,
	}
}
