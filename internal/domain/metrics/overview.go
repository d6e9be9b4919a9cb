package metrics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-insights/internal/domain/order"
	"github.com/xenking/storefront-insights/internal/domain/period"
)

// OverviewReport is the discount-focused dashboard payload.
type OverviewReport struct {
	Period              Period         `json:"period"`
	Summary             Summary        `json:"summary"`
	TopDiscounts        []DiscountStat `json:"topDiscounts"`
	ReferralPerformance []ReferralStat `json:"referralPerformance"`
	DealPerformance     []DealStat     `json:"dealPerformance"`
	Trend               []TrendPoint   `json:"trend"`
}

// Summary holds the headline totals for the period.
type Summary struct {
	TotalOrders         int     `json:"totalOrders"`
	DiscountedOrders    int     `json:"discountedOrders"`
	TotalRevenue        float64 `json:"totalRevenue"`
	TotalDiscountAmount float64 `json:"totalDiscountAmount"`
	AverageOrderValue   float64 `json:"averageOrderValue"`
	DiscountRate        float64 `json:"discountRate"`
	MissedOpportunity   float64 `json:"missedOpportunity"`
	PotentialRevenue    float64 `json:"potentialRevenue"`
}

// DiscountStat ranks one discount group. Revenue is the sum of the full
// total price of every order the discount occurred on; an order carrying two
// discounts contributes its price to both groups. Reported as-is for parity
// with the historical dashboard.
type DiscountStat struct {
	ID            string  `json:"id"`
	Code          string  `json:"code,omitempty"`
	Title         string  `json:"title"`
	Type          string  `json:"type"`
	Redemptions   int     `json:"redemptions"`
	DiscountGiven float64 `json:"discountGiven"`
	Revenue       float64 `json:"revenue"`
	RevenueShare  float64 `json:"revenueShare"`
}

// ReferralStat aggregates the orders attributed to one referral source.
type ReferralStat struct {
	Source            string  `json:"source"`
	Orders            int     `json:"orders"`
	Revenue           float64 `json:"revenue"`
	DiscountAmount    float64 `json:"discountAmount"`
	AverageOrderValue float64 `json:"averageOrderValue"`
}

// DealStat ranks one automatic bundle/deal discount.
type DealStat struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Type          string  `json:"type"`
	Redemptions   int     `json:"redemptions"`
	DiscountGiven float64 `json:"discountGiven"`
	Revenue       float64 `json:"revenue"`
}

// TrendPoint is one calendar day of the sparse daily series: only days with
// at least one order appear.
type TrendPoint struct {
	Date             string  `json:"date"`
	Orders           int     `json:"orders"`
	DiscountedOrders int     `json:"discountedOrders"`
	Revenue          float64 `json:"revenue"`
	DiscountAmount   float64 `json:"discountAmount"`
}

// Overview aggregates the discount dashboard report for the given period.
func (e *Engine) Overview(orders []order.Order, rng period.Range) *OverviewReport {
	filtered := filterByRange(orders, rng)

	summary, totalRevenue := summarize(filtered)

	return &OverviewReport{
		Period:              buildPeriod(rng, len(filtered)),
		Summary:             summary,
		TopDiscounts:        topDiscounts(filtered, totalRevenue),
		ReferralPerformance: referralPerformance(filtered),
		DealPerformance:     dealPerformance(filtered),
		Trend:               dailyTrend(filtered),
	}
}

func summarize(orders []order.Order) (Summary, decimal.Decimal) {
	var (
		revenue, discount, missed decimal.Decimal
		discounted                int
	)
	for _, o := range orders {
		revenue = revenue.Add(o.TotalPrice)
		discount = discount.Add(o.TotalDiscounts)
		missed = missed.Add(o.EstimatedMissedDiscount)
		if o.Discounted() {
			discounted++
		}
	}

	s := Summary{
		TotalOrders:         len(orders),
		DiscountedOrders:    discounted,
		TotalRevenue:        money(revenue),
		TotalDiscountAmount: money(discount),
		AverageOrderValue:   average(revenue, len(orders)),
		MissedOpportunity:   money(missed),
		PotentialRevenue:    money(revenue.Add(discount)),
	}
	if len(orders) > 0 {
		s.DiscountRate = share(decimal.NewFromInt(int64(discounted)), decimal.NewFromInt(int64(len(orders))))
	}
	return s, revenue
}

// discountAccum carries group totals in decimals until the final rounding.
type discountAccum struct {
	stat          DiscountStat
	discountGiven decimal.Decimal
	revenue       decimal.Decimal
}

func topDiscounts(orders []order.Order, totalRevenue decimal.Decimal) []DiscountStat {
	groups := make(map[order.DiscountKey]*discountAccum)
	keys := make([]order.DiscountKey, 0)

	for _, o := range orders {
		for _, app := range o.DiscountApplications {
			key := app.Key()
			g, ok := groups[key]
			if !ok {
				id := key.Value
				if id == "" {
					id = key.Kind.String()
				}
				g = &discountAccum{stat: DiscountStat{
					ID:    id,
					Code:  app.Code,
					Title: app.DisplayTitle(),
					Type:  app.Kind.String(),
				}}
				groups[key] = g
				keys = append(keys, key)
			}
			g.stat.Redemptions++
			g.discountGiven = g.discountGiven.Add(app.Amount)
			g.revenue = g.revenue.Add(o.TotalPrice)
		}
	}

	stats := make([]DiscountStat, 0, len(keys))
	for _, key := range keys {
		g := groups[key]
		g.stat.DiscountGiven = money(g.discountGiven)
		g.stat.Revenue = money(g.revenue)
		g.stat.RevenueShare = share(g.revenue, totalRevenue)
		stats = append(stats, g.stat)
	}

	// Stable: ties keep first-encounter order.
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Redemptions > stats[j].Redemptions
	})
	return stats
}

type referralAccum struct {
	orders   int
	revenue  decimal.Decimal
	discount decimal.Decimal
}

func referralPerformance(orders []order.Order) []ReferralStat {
	groups := make(map[string]*referralAccum)
	sources := make([]string, 0)

	for _, o := range orders {
		if o.ReferralSource == "" {
			continue
		}
		g, ok := groups[o.ReferralSource]
		if !ok {
			g = &referralAccum{}
			groups[o.ReferralSource] = g
			sources = append(sources, o.ReferralSource)
		}
		g.orders++
		g.revenue = g.revenue.Add(o.TotalPrice)
		g.discount = g.discount.Add(o.TotalDiscounts)
	}

	stats := make([]ReferralStat, 0, len(sources))
	for _, src := range sources {
		g := groups[src]
		stats = append(stats, ReferralStat{
			Source:            src,
			Orders:            g.orders,
			Revenue:           money(g.revenue),
			DiscountAmount:    money(g.discount),
			AverageOrderValue: average(g.revenue, g.orders),
		})
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Revenue > stats[j].Revenue
	})
	return stats
}

type dealAccum struct {
	stat          DealStat
	discountGiven decimal.Decimal
	revenue       decimal.Decimal
}

func dealPerformance(orders []order.Order) []DealStat {
	groups := make(map[string]*dealAccum)
	ids := make([]string, 0)

	for _, o := range orders {
		for _, deal := range o.DealApplications {
			id := deal.ID
			if id == "" {
				id = deal.Title
			}
			g, ok := groups[id]
			if !ok {
				g = &dealAccum{stat: DealStat{ID: id, Title: deal.Title, Type: order.KindAuto.String()}}
				groups[id] = g
				ids = append(ids, id)
			}
			g.stat.Redemptions++
			g.discountGiven = g.discountGiven.Add(deal.Amount)
			g.revenue = g.revenue.Add(o.TotalPrice)
		}
	}

	stats := make([]DealStat, 0, len(ids))
	for _, id := range ids {
		g := groups[id]
		g.stat.DiscountGiven = money(g.discountGiven)
		g.stat.Revenue = money(g.revenue)
		stats = append(stats, g.stat)
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Redemptions > stats[j].Redemptions
	})
	return stats
}

type trendAccum struct {
	orders     int
	discounted int
	revenue    decimal.Decimal
	discount   decimal.Decimal
}

func dailyTrend(orders []order.Order) []TrendPoint {
	buckets := make(map[string]*trendAccum)
	dates := make([]string, 0)

	for _, o := range orders {
		key := dateKey(o.CreatedAt)
		b, ok := buckets[key]
		if !ok {
			b = &trendAccum{}
			buckets[key] = b
			dates = append(dates, key)
		}
		b.orders++
		b.revenue = b.revenue.Add(o.TotalPrice)
		b.discount = b.discount.Add(o.TotalDiscounts)
		if o.Discounted() {
			b.discounted++
		}
	}

	sort.Strings(dates)

	points := make([]TrendPoint, 0, len(dates))
	for _, d := range dates {
		b := buckets[d]
		points = append(points, TrendPoint{
			Date:             d,
			Orders:           b.orders,
			DiscountedOrders: b.discounted,
			Revenue:          money(b.revenue),
			DiscountAmount:   money(b.discount),
		})
	}
	return points
}
