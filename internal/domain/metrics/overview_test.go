package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-insights/internal/domain/order"
	"github.com/xenking/storefront-insights/internal/domain/period"
)

var referenceNow = time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)

func resolveDays(days int) period.Range {
	return period.Resolver{FallbackDays: days, MaxRangeDays: 180}.Resolve("", "", referenceNow)
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ts(day int, hour int) time.Time {
	return time.Date(2025, 2, day, hour, 0, 0, 0, time.UTC)
}

// sampleOrders is the February 2025 snapshot used across the engine tests:
// eight orders, six discounted, two referral partners plus a loyalty source,
// one volume deal redeemed twice.
func sampleOrders() []order.Order {
	return []order.Order{
		{
			ID: "gid://shopify/Order/1001", Name: "#1001",
			CreatedAt:      ts(2, 10),
			TotalPrice:     d("310.40"),
			TotalDiscounts: d("31.04"),
			DiscountApplications: []order.DiscountApplication{
				{Kind: order.KindCode, Code: "WELCOME10", Title: "Welcome 10%", Amount: d("31.04")},
			},
			Tags:           []string{"Referral - INFLUENCER_JAY"},
			ReferralSource: "INFLUENCER_JAY",
		},
		{
			ID: "gid://shopify/Order/1002", Name: "#1002",
			CreatedAt:      ts(5, 9),
			TotalPrice:     d("285.00"),
			TotalDiscounts: d("28.50"),
			DiscountApplications: []order.DiscountApplication{
				{Kind: order.KindCode, Code: "WELCOME10", Title: "Welcome 10%", Amount: d("28.50")},
			},
		},
		{
			ID: "gid://shopify/Order/1003", Name: "#1003",
			CreatedAt:      ts(8, 14),
			TotalPrice:     d("240.00"),
			TotalDiscounts: d("40.00"),
			DiscountApplications: []order.DiscountApplication{
				{Kind: order.KindAuto, Title: "Volume Deal 3+1", Amount: d("40.00")},
			},
			DealApplications: []order.DealApplication{
				{ID: "deal-volume-1", Title: "Volume Deal 3+1", Amount: d("40.00")},
			},
		},
		{
			ID: "gid://shopify/Order/1004", Name: "#1004",
			CreatedAt:      ts(8, 16),
			TotalPrice:     d("199.00"),
			TotalDiscounts: d("40.00"),
			DiscountApplications: []order.DiscountApplication{
				{Kind: order.KindAuto, Title: "Volume Deal 3+1", Amount: d("40.00")},
			},
			DealApplications: []order.DealApplication{
				{ID: "deal-volume-1", Title: "Volume Deal 3+1", Amount: d("40.00")},
			},
		},
		{
			ID: "gid://shopify/Order/1005", Name: "#1005",
			CreatedAt:      ts(6, 11),
			TotalPrice:     d("180.00"),
			TotalDiscounts: d("18.46"),
			DiscountApplications: []order.DiscountApplication{
				{Kind: order.KindCode, Code: "LOYALTY15", Title: "Loyalty 15", Amount: d("18.46")},
			},
			Tags:           []string{"Referral - LOYALTY_PROGRAM"},
			ReferralSource: "LOYALTY_PROGRAM",
		},
		{
			ID: "gid://shopify/Order/1006", Name: "#1006",
			CreatedAt:               ts(3, 8),
			TotalPrice:              d("248.00"),
			EstimatedMissedDiscount: d("25.00"),
		},
		{
			ID: "gid://shopify/Order/1007", Name: "#1007",
			CreatedAt:      ts(12, 13),
			TotalPrice:     d("310.00"),
			TotalDiscounts: d("40.00"),
			DiscountApplications: []order.DiscountApplication{
				{Kind: order.KindCode, Code: "SPRING25", Title: "Spring 25", Amount: d("40.00")},
			},
			Tags:           []string{"Referral - EMAIL_NEWSLETTER"},
			ReferralSource: "EMAIL_NEWSLETTER",
		},
		{
			ID: "gid://shopify/Order/1008", Name: "#1008",
			CreatedAt:               ts(20, 17),
			TotalPrice:              d("455.00"),
			Tags:                    []string{"VIP", "Referral - INFLUENCER_JAY"},
			ReferralSource:          "INFLUENCER_JAY",
			EstimatedMissedDiscount: d("35.00"),
		},
	}
}

func newTestEngine() *Engine {
	return New(0.30, nil, nil)
}

func TestOverview_Summary(t *testing.T) {
	report := newTestEngine().Overview(sampleOrders(), resolveDays(30))

	assert.Equal(t, Summary{
		TotalOrders:         8,
		DiscountedOrders:    6,
		TotalRevenue:        2227.40,
		TotalDiscountAmount: 198,
		AverageOrderValue:   278.43,
		DiscountRate:        75,
		MissedOpportunity:   60,
		PotentialRevenue:    2425.40,
	}, report.Summary)

	assert.Equal(t, 8, report.Period.OrderCount)
	assert.Equal(t, 30, report.Period.Days)
}

func TestOverview_FiltersToPeriod(t *testing.T) {
	report := newTestEngine().Overview(sampleOrders(), resolveDays(20))

	assert.Equal(t, 2, report.Summary.TotalOrders)
	assert.Equal(t, 765.0, report.Summary.TotalRevenue)
}

func TestOverview_TopDiscounts(t *testing.T) {
	report := newTestEngine().Overview(sampleOrders(), resolveDays(30))

	require.Len(t, report.TopDiscounts, 4)

	top := report.TopDiscounts[0]
	assert.Equal(t, "Welcome 10%", top.Title)
	assert.Equal(t, "WELCOME10", top.Code)
	assert.Equal(t, 2, top.Redemptions)
	assert.Equal(t, 59.54, top.DiscountGiven)
	assert.Equal(t, 595.40, top.Revenue)
	assert.Equal(t, 26.73, top.RevenueShare)

	// Tied on redemptions with the welcome code; encounter order breaks the tie.
	assert.Equal(t, "Volume Deal 3+1", report.TopDiscounts[1].Title)
	assert.Equal(t, 2, report.TopDiscounts[1].Redemptions)
}

func TestOverview_ReferralAndDealPerformance(t *testing.T) {
	report := newTestEngine().Overview(sampleOrders(), resolveDays(30))

	sources := make([]string, 0, len(report.ReferralPerformance))
	for _, r := range report.ReferralPerformance {
		sources = append(sources, r.Source)
	}
	assert.Equal(t, []string{"INFLUENCER_JAY", "EMAIL_NEWSLETTER", "LOYALTY_PROGRAM"}, sources)

	jay := report.ReferralPerformance[0]
	assert.Equal(t, 2, jay.Orders)
	assert.Equal(t, 765.40, jay.Revenue)
	assert.Equal(t, 382.70, jay.AverageOrderValue)

	require.NotEmpty(t, report.DealPerformance)
	topDeal := report.DealPerformance[0]
	assert.Equal(t, "deal-volume-1", topDeal.ID)
	assert.Equal(t, 2, topDeal.Redemptions)
	assert.Equal(t, 80.0, topDeal.DiscountGiven)
}

func TestOverview_Trend(t *testing.T) {
	report := newTestEngine().Overview(sampleOrders(), resolveDays(30))

	require.Len(t, report.Trend, 7, "sparse trend: only days with orders")

	dates := make([]string, 0, len(report.Trend))
	for _, p := range report.Trend {
		dates = append(dates, p.Date)
	}
	assert.IsIncreasing(t, dates)

	// Two orders landed on Feb 8.
	feb8 := report.Trend[4]
	assert.Equal(t, "2025-02-08", feb8.Date)
	assert.Equal(t, 2, feb8.Orders)
	assert.Equal(t, 2, feb8.DiscountedOrders)
	assert.Equal(t, 439.0, feb8.Revenue)
	assert.Equal(t, 80.0, feb8.DiscountAmount)
}

func TestOverview_EmptyInput(t *testing.T) {
	report := newTestEngine().Overview(nil, resolveDays(30))

	assert.Equal(t, Summary{}, report.Summary)
	assert.Empty(t, report.TopDiscounts)
	assert.Empty(t, report.ReferralPerformance)
	assert.Empty(t, report.DealPerformance)
	assert.Empty(t, report.Trend)
	assert.Equal(t, 0, report.Period.OrderCount)
}

func TestOverview_OutOfRangeOrdersDoNotMatter(t *testing.T) {
	rng := resolveDays(30)
	engine := newTestEngine()

	inRange := sampleOrders()
	withNoise := append(sampleOrders(),
		order.Order{ID: "old", CreatedAt: time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC), TotalPrice: d("9999")},
		order.Order{ID: "future", CreatedAt: time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), TotalPrice: d("9999")},
	)

	assert.Equal(t, engine.Overview(inRange, rng), engine.Overview(withNoise, rng))
}

func TestOverview_Idempotent(t *testing.T) {
	rng := resolveDays(30)
	orders := sampleOrders()
	engine := newTestEngine()

	first := engine.Overview(orders, rng)
	second := engine.Overview(orders, rng)

	assert.Equal(t, first, second)
}

func TestOverview_MonetaryFieldsAreCents(t *testing.T) {
	report := newTestEngine().Overview(sampleOrders(), resolveDays(30))

	assertCents := func(v float64, name string) {
		t.Helper()
		cents := v * 100
		assert.InDelta(t, math.Round(cents), cents, 1e-6, "%s = %v is not a multiple of 0.01", name, v)
	}

	assertCents(report.Summary.TotalRevenue, "totalRevenue")
	assertCents(report.Summary.TotalDiscountAmount, "totalDiscountAmount")
	assertCents(report.Summary.AverageOrderValue, "averageOrderValue")
	assertCents(report.Summary.PotentialRevenue, "potentialRevenue")
	for _, s := range report.TopDiscounts {
		assertCents(s.DiscountGiven, "discountGiven")
		assertCents(s.Revenue, "revenue")
	}
	for _, p := range report.Trend {
		assertCents(p.Revenue, "trend revenue")
		assertCents(p.DiscountAmount, "trend discountAmount")
	}
}
