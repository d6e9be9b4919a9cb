package metrics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-insights/internal/domain/order"
	"github.com/xenking/storefront-insights/internal/domain/period"
)

// ShippingReport breaks shipping economics down per destination country.
// Income is what the customer was charged minus the carrier cost.
type ShippingReport struct {
	Period    Period          `json:"period"`
	Summary   ShippingSummary `json:"summary"`
	Shipments Shipments       `json:"shipments"`
}

// ShippingSummary holds the aggregate shipping totals for the period.
type ShippingSummary struct {
	TotalOrders        int     `json:"totalOrders"`
	OrdersWithShipping int     `json:"ordersWithShipping"`
	TotalCharged       float64 `json:"totalCharged"`
	TotalCost          float64 `json:"totalCost"`
	Income             float64 `json:"income"`
}

// Shipments carries the per-country breakdown alongside the totals the
// shipments page renders.
type Shipments struct {
	TotalCharged       float64           `json:"totalCharged"`
	TotalCost          float64           `json:"totalCost"`
	Income             float64           `json:"income"`
	OrdersWithShipping int               `json:"ordersWithShipping"`
	ByCountry          []CountryShipping `json:"byCountry"`
}

// CountryShipping aggregates one destination country. Orders without a
// country code group under an empty code with the name "Unknown".
type CountryShipping struct {
	CountryCode string  `json:"countryCode"`
	CountryName string  `json:"countryName"`
	Orders      int     `json:"orders"`
	Charged     float64 `json:"charged"`
	Cost        float64 `json:"cost"`
	Income      float64 `json:"income"`
}

type countryAccum struct {
	name    string
	orders  int
	charged decimal.Decimal
	cost    decimal.Decimal
}

// Shipping aggregates the shipping economics report for the given period.
func (e *Engine) Shipping(orders []order.Order, rng period.Range) *ShippingReport {
	filtered := filterByRange(orders, rng)

	groups := make(map[string]*countryAccum)
	codes := make([]string, 0)

	var (
		totalCharged, totalCost decimal.Decimal
		withShipping            int
	)

	for _, o := range filtered {
		code := o.ShippingCountryCode
		name := o.ShippingCountryName
		if name == "" {
			name = code
		}
		if name == "" {
			name = "Unknown"
		}

		g, ok := groups[code]
		if !ok {
			g = &countryAccum{name: name}
			groups[code] = g
			codes = append(codes, code)
		}

		cost := e.shippingCost(code)
		g.orders++
		g.charged = g.charged.Add(o.TotalShippingPrice)
		g.cost = g.cost.Add(cost)

		totalCharged = totalCharged.Add(o.TotalShippingPrice)
		totalCost = totalCost.Add(cost)
		if o.TotalShippingPrice.IsPositive() {
			withShipping++
		}
	}

	byCountry := make([]CountryShipping, 0, len(codes))
	for _, code := range codes {
		g := groups[code]
		byCountry = append(byCountry, CountryShipping{
			CountryCode: code,
			CountryName: g.name,
			Orders:      g.orders,
			Charged:     money(g.charged),
			Cost:        money(g.cost),
			Income:      money(g.charged.Sub(g.cost)),
		})
	}
	sort.SliceStable(byCountry, func(i, j int) bool {
		return byCountry[i].Income > byCountry[j].Income
	})

	income := money(totalCharged.Sub(totalCost))

	return &ShippingReport{
		Period: buildPeriod(rng, len(filtered)),
		Summary: ShippingSummary{
			TotalOrders:        len(filtered),
			OrdersWithShipping: withShipping,
			TotalCharged:       money(totalCharged),
			TotalCost:          money(totalCost),
			Income:             income,
		},
		Shipments: Shipments{
			TotalCharged:       money(totalCharged),
			TotalCost:          money(totalCost),
			Income:             income,
			OrdersWithShipping: withShipping,
			ByCountry:          byCountry,
		},
	}
}
