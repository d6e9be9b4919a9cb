// Package costs holds the static cost lookups used by the metrics engine:
// per-country shipping costs and per-product buy prices. Both are data
// lookups, not estimates, and both are injectable so tests can substitute
// their own tables.
package costs

import (
	_ "embed"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Highest carrier rate per destination country in EUR, keyed by ISO 3166-1
// alpha-2 code. Sourced from the carrier rate card.
//
//go:embed shipping_costs.json
var defaultShippingCosts []byte

// ShippingTable maps destination country codes to a fixed per-order shipping
// cost. The zero value behaves as an empty table (every lookup costs 0).
type ShippingTable struct {
	costs map[string]decimal.Decimal
}

// Cost returns the shipping cost for the given country code, or zero when
// the code is empty or not in the table.
func (t *ShippingTable) Cost(countryCode string) decimal.Decimal {
	if t == nil || countryCode == "" {
		return decimal.Zero
	}
	return t.costs[countryCode]
}

// Len returns the number of countries in the table.
func (t *ShippingTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.costs)
}

// DefaultShippingTable returns the table embedded in the binary.
func DefaultShippingTable() *ShippingTable {
	t, err := parseShippingTable(defaultShippingCosts)
	if err != nil {
		// The embedded table is validated by tests; a decode failure here is
		// a build defect, not a runtime condition.
		panic(err)
	}
	return t
}

// LoadShippingTable reads a JSON object of country code to cost from path.
func LoadShippingTable(path string) (*ShippingTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read shipping costs")
	}
	t, err := parseShippingTable(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "parse shipping costs %s", path)
	}
	return t, nil
}

func parseShippingTable(raw []byte) (*ShippingTable, error) {
	costs := make(map[string]decimal.Decimal)
	d := jx.DecodeBytes(raw)
	if err := d.Obj(func(d *jx.Decoder, code string) error {
		num, err := d.Num()
		if err != nil {
			return errors.Wrapf(err, "cost for %s", code)
		}
		cost, err := decimal.NewFromString(num.String())
		if err != nil {
			return errors.Wrapf(err, "cost for %s", code)
		}
		costs[code] = cost
		return nil
	}); err != nil {
		return nil, err
	}
	return &ShippingTable{costs: costs}, nil
}
