package costs

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-insights/internal/domain/order"
)

// buyPriceRule matches a product title when every substring in contains is
// present (case-insensitive).
type buyPriceRule struct {
	contains []string
	price    decimal.Decimal
}

func rule(price string, contains ...string) buyPriceRule {
	return buyPriceRule{contains: contains, price: decimal.RequireFromString(price)}
}

// Buy prices per product, matched by title text. Most specific rules first:
// the bag multipacks must match before the single-bag rule.
var buyPriceRules = []buyPriceRule{
	rule("2.10", "delicates laundry bag (3x)"),
	rule("1.40", "delicates laundry bag (2x)"),
	rule("7.50", "trial kit"),
	rule("5.50", "laundry perfume", "250ml"),
	rule("9.90", "laundry perfume", "500ml"),
	rule("0.50", "cleaner tabs"),
	rule("0.70", "delicates laundry bag"),
	rule("1.50", "wool dryer balls"),
	rule("1.80", "laundry sheets bio"),
	rule("2.50", "premium laundry sheets"),
	rule("15.80", "handheld steamer"),
	rule("49.00", "steamer xl"),
	rule("9.00", "fabric shaver"),
	rule("5.50", "space saving hanger"),
}

// BuyPrice returns the unit buy price for a product title, or zero when no
// rule matches.
func BuyPrice(title string) decimal.Decimal {
	t := strings.ToLower(title)
	for _, r := range buyPriceRules {
		if matchesAll(t, r.contains) {
			return r.price
		}
	}
	return decimal.Zero
}

func matchesAll(title string, contains []string) bool {
	for _, c := range contains {
		if !strings.Contains(title, c) {
			return false
		}
	}
	return true
}

// CostOfGoods sums unit buy price times quantity over the order's line items.
func CostOfGoods(items []order.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		total = total.Add(BuyPrice(it.Title).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}
