package order

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// referralTagPrefix marks an order as attributed to a referral partner.
// The source name follows the prefix, e.g. "Referral - INFLUENCER_JAY".
const referralTagPrefix = "Referral - "

// DiscountKind enumerates the discount application types reported by the
// commerce platform.
type DiscountKind uint8

const (
	// KindCode is a customer-entered discount code.
	KindCode DiscountKind = iota
	// KindAuto is an automatic discount (bundle deals and similar).
	KindAuto
	// KindManual is a discount applied by staff on the order.
	KindManual
)

// String returns the wire name of the kind, matching the dashboard's
// historical "code"/"auto"/"manual" values.
func (k DiscountKind) String() string {
	switch k {
	case KindCode:
		return "code"
	case KindAuto:
		return "auto"
	default:
		return "manual"
	}
}

// DiscountKey identifies a discount group across orders. Code discounts key
// by code, everything else keys by title with the kind as a tag, so an
// automatic discount titled "SAVE10" can never collide with the code "SAVE10".
type DiscountKey struct {
	Kind  DiscountKind
	Value string
}

// DiscountApplication is a single code, automatic, or manual discount applied
// to an order, with the monetary amount attributed to it.
type DiscountApplication struct {
	Kind   DiscountKind
	Code   string
	Title  string
	Amount decimal.Decimal
}

// Key returns the grouping key for this application: the code when present,
// otherwise the title, otherwise the kind name alone.
func (a DiscountApplication) Key() DiscountKey {
	if a.Kind == KindCode && a.Code != "" {
		return DiscountKey{Kind: KindCode, Value: a.Code}
	}
	if a.Title != "" {
		return DiscountKey{Kind: a.Kind, Value: a.Title}
	}
	return DiscountKey{Kind: a.Kind}
}

// DisplayTitle returns the human-readable name for this application.
func (a DiscountApplication) DisplayTitle() string {
	switch {
	case a.Title != "":
		return a.Title
	case a.Code != "":
		return a.Code
	default:
		return a.Kind.String()
	}
}

// DealApplication is an automatic discount reported separately as bundle/deal
// performance.
type DealApplication struct {
	ID     string
	Title  string
	Amount decimal.Decimal
}

// LineItem is the subset of an order line needed for cost-of-goods lookup.
type LineItem struct {
	Title    string
	Quantity int
}

// Order is the canonical order record the metrics engine consumes. All
// monetary fields are in the shop currency. Instances are built once by the
// order source and never mutated afterwards.
type Order struct {
	ID                 string
	Name               string
	CreatedAt          time.Time
	TotalPrice         decimal.Decimal
	TotalDiscounts     decimal.Decimal
	TotalShippingPrice decimal.Decimal

	DiscountApplications []DiscountApplication
	DealApplications     []DealApplication
	LineItems            []LineItem

	Tags           []string
	ReferralSource string

	ShippingCountryCode string
	ShippingCountryName string

	// EstimatedMissedDiscount is an advisory amount of discount the customer
	// could have claimed but did not. Zero for platform-fetched orders.
	EstimatedMissedDiscount decimal.Decimal
}

// Discounted reports whether at least one discount application is present.
func (o *Order) Discounted() bool {
	return len(o.DiscountApplications) > 0
}

// ReferralPayout returns the payout owed for this order at the given rate,
// or zero when the order carries no referral source.
func (o *Order) ReferralPayout(rate decimal.Decimal) decimal.Decimal {
	if o.ReferralSource == "" {
		return decimal.Zero
	}
	return o.TotalPrice.Mul(rate)
}

// ReferralSourceFromTags extracts the referral source from raw order tags.
// The first tag matching "Referral - <source>" wins; the source is trimmed.
// Returns "" when no referral tag is present.
func ReferralSourceFromTags(tags []string) string {
	for _, t := range tags {
		if strings.HasPrefix(t, referralTagPrefix) {
			return strings.TrimSpace(strings.TrimPrefix(t, referralTagPrefix))
		}
	}
	return ""
}
