package shopify

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-insights/internal/domain/order"
)

type ordersPage struct {
	orders      []order.Order
	hasNextPage bool
	endCursor   string
}

// parseOrdersPage decodes one GraphQL response page. GraphQL errors travel in
// the payload next to data, so they are surfaced here rather than as HTTP
// status codes.
func parseOrdersPage(data []byte) (*ordersPage, error) {
	var (
		page   ordersPage
		apiErr error
	)
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "errors":
			return d.Arr(func(d *jx.Decoder) error {
				err := decodeAPIError(d)
				if apiErr == nil || errors.Is(err, ErrMissingScope) {
					apiErr = err
				}
				return nil
			})
		case "data":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "orders" {
					return d.Skip()
				}
				if d.Next() == jx.Null {
					return d.Null()
				}
				return decodeOrdersConnection(d, &page)
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, err
	}
	if apiErr != nil {
		return nil, apiErr
	}
	return &page, nil
}

func decodeAPIError(d *jx.Decoder) error {
	var message, code string
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "message":
			s, err := optStr(d)
			message = s
			return err
		case "extensions":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "code" {
					return d.Skip()
				}
				s, err := optStr(d)
				code = s
				return err
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return err
	}
	if code == "ACCESS_DENIED" {
		return ErrMissingScope
	}
	return errors.Errorf("graphql error: %s", message)
}

func decodeOrdersConnection(d *jx.Decoder, page *ordersPage) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "edges":
			return d.Arr(func(d *jx.Decoder) error {
				return d.Obj(func(d *jx.Decoder, key string) error {
					if key != "node" {
						return d.Skip()
					}
					o, err := decodeOrder(d)
					if err != nil {
						return err
					}
					page.orders = append(page.orders, o)
					return nil
				})
			})
		case "pageInfo":
			return d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "hasNextPage":
					b, err := d.Bool()
					page.hasNextPage = b
					return err
				case "endCursor":
					s, err := optStr(d)
					page.endCursor = s
					return err
				default:
					return d.Skip()
				}
			})
		default:
			return d.Skip()
		}
	})
}

func decodeOrder(d *jx.Decoder) (order.Order, error) {
	var o order.Order
	allocations := make(map[order.DiscountKey]decimal.Decimal)

	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			s, err := d.Str()
			o.ID = s
			return err
		case "name":
			s, err := d.Str()
			o.Name = s
			return err
		case "createdAt":
			s, err := d.Str()
			if err != nil {
				return err
			}
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return errors.Wrap(err, "createdAt")
			}
			o.CreatedAt = t
			return nil
		case "tags":
			return d.Arr(func(d *jx.Decoder) error {
				s, err := d.Str()
				if err != nil {
					return err
				}
				o.Tags = append(o.Tags, s)
				return nil
			})
		case "totalPriceSet":
			v, err := decodeMoneySet(d)
			o.TotalPrice = v
			return err
		case "totalDiscountsSet":
			v, err := decodeMoneySet(d)
			o.TotalDiscounts = v
			return err
		case "totalShippingPriceSet":
			v, err := decodeMoneySet(d)
			o.TotalShippingPrice = v
			return err
		case "shippingAddress":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "countryCodeV2":
					s, err := optStr(d)
					o.ShippingCountryCode = s
					return err
				case "country":
					s, err := optStr(d)
					o.ShippingCountryName = s
					return err
				default:
					return d.Skip()
				}
			})
		case "discountApplications":
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "nodes" {
					return d.Skip()
				}
				return d.Arr(func(d *jx.Decoder) error {
					app, err := decodeApplication(d)
					if err != nil {
						return err
					}
					o.DiscountApplications = append(o.DiscountApplications, app)
					return nil
				})
			})
		case "lineItems":
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "edges" {
					return d.Skip()
				}
				return d.Arr(func(d *jx.Decoder) error {
					return d.Obj(func(d *jx.Decoder, key string) error {
						if key != "node" {
							return d.Skip()
						}
						item, err := decodeLineItem(d, allocations)
						if err != nil {
							return err
						}
						o.LineItems = append(o.LineItems, item)
						return nil
					})
				})
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return o, err
	}

	// Applications carry no amount of their own; the per-application totals
	// come from summing the line item allocations attributed to them.
	for i := range o.DiscountApplications {
		app := &o.DiscountApplications[i]
		app.Amount = allocations[app.Key()]
		if app.Kind == order.KindAuto {
			o.DealApplications = append(o.DealApplications, order.DealApplication{
				ID:     app.DisplayTitle(),
				Title:  app.DisplayTitle(),
				Amount: app.Amount,
			})
		}
	}
	o.ReferralSource = order.ReferralSourceFromTags(o.Tags)
	return o, nil
}

func decodeApplication(d *jx.Decoder) (order.DiscountApplication, error) {
	var (
		app      order.DiscountApplication
		typename string
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "__typename":
			s, err := d.Str()
			typename = s
			return err
		case "code":
			s, err := optStr(d)
			app.Code = s
			return err
		case "title":
			s, err := optStr(d)
			app.Title = s
			return err
		default:
			return d.Skip()
		}
	})
	app.Kind = discountKind(typename)
	return app, err
}

func discountKind(typename string) order.DiscountKind {
	switch typename {
	case "DiscountCodeApplication":
		return order.KindCode
	case "ManualDiscountApplication":
		return order.KindManual
	default:
		return order.KindAuto
	}
}

func decodeLineItem(d *jx.Decoder, allocations map[order.DiscountKey]decimal.Decimal) (order.LineItem, error) {
	var item order.LineItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "title":
			s, err := d.Str()
			item.Title = s
			return err
		case "quantity":
			n, err := d.Int()
			item.Quantity = n
			return err
		case "discountAllocations":
			return d.Arr(func(d *jx.Decoder) error {
				var (
					amount decimal.Decimal
					app    order.DiscountApplication
					seen   bool
				)
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					switch key {
					case "allocatedAmountSet":
						v, err := decodeMoneySet(d)
						amount = v
						return err
					case "discountApplication":
						if d.Next() == jx.Null {
							return d.Null()
						}
						a, err := decodeApplication(d)
						app = a
						seen = true
						return err
					default:
						return d.Skip()
					}
				}); err != nil {
					return err
				}
				if seen {
					key := app.Key()
					allocations[key] = allocations[key].Add(amount)
				}
				return nil
			})
		default:
			return d.Skip()
		}
	})
	return item, err
}

// decodeMoneySet reads a MoneyBag's shopMoney amount. Shopify sends amounts
// as strings; absent or malformed amounts coerce to zero.
func decodeMoneySet(d *jx.Decoder) (decimal.Decimal, error) {
	val := decimal.Zero
	if d.Next() == jx.Null {
		return val, d.Null()
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "shopMoney" {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "amount" {
				return d.Skip()
			}
			s, err := optStr(d)
			if err != nil {
				return err
			}
			if v, parseErr := decimal.NewFromString(s); parseErr == nil {
				val = v
			}
			return nil
		})
	})
	return val, err
}

func optStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}
