package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-insights/internal/domain/order"
)

// testClient points a Client at the given test server.
func testClient(t *testing.T, srv *httptest.Server, cfg Config) *Client {
	t.Helper()
	if cfg.ShopDomain == "" {
		cfg.ShopDomain = "demo-store.myshopify.com"
	}
	if cfg.AccessToken == "" {
		cfg.AccessToken = "shpat_test"
	}
	cfg.HTTPClient = srv.Client()

	c, err := NewClient(cfg)
	require.NoError(t, err)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	c.endpoint = fmt.Sprintf("http://%s/admin/api/2025-01/graphql.json", u.Host)
	return c
}

func orderNode(id, createdAt string, extra string) string {
	if extra != "" {
		extra = "," + extra
	}
	return fmt.Sprintf(`{
		"id": %q,
		"name": "#%s",
		"createdAt": %q,
		"tags": [],
		"totalPriceSet": {"shopMoney": {"amount": "100.00"}},
		"totalDiscountsSet": {"shopMoney": {"amount": "0.00"}},
		"totalShippingPriceSet": {"shopMoney": {"amount": "0.00"}},
		"shippingAddress": null,
		"discountApplications": {"nodes": []},
		"lineItems": {"edges": []}%s
	}`, id, id, createdAt, extra)
}

func pageResponse(hasNext bool, cursor string, nodes ...string) string {
	edges := make([]string, 0, len(nodes))
	for _, n := range nodes {
		edges = append(edges, `{"node": `+n+`}`)
	}
	endCursor := "null"
	if cursor != "" {
		endCursor = fmt.Sprintf("%q", cursor)
	}
	return fmt.Sprintf(`{"data": {"orders": {
		"edges": [%s],
		"pageInfo": {"hasNextPage": %t, "endCursor": %s}
	}}}`, strings.Join(edges, ","), hasNext, endCursor)
}

func between(t *testing.T, c *Client) []order.Order {
	t.Helper()
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 2, 28, 23, 59, 59, 999000000, time.UTC)
	orders, err := c.OrdersBetween(context.Background(), start, end)
	require.NoError(t, err)
	return orders
}

func TestClient_Pagination(t *testing.T) {
	var afters []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "shpat_test", r.Header.Get("X-Shopify-Access-Token"))

		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Variables["query"], "created_at:>=2025-02-01T00:00:00.000Z")
		assert.Contains(t, req.Variables["query"], "created_at:<=2025-02-28T23:59:59.999Z")

		after, _ := req.Variables["after"].(string)
		afters = append(afters, after)

		switch len(afters) {
		case 1:
			fmt.Fprint(w, pageResponse(true, "cur-1",
				orderNode("1", "2025-02-02T10:00:00Z", ""),
				orderNode("2", "2025-02-03T10:00:00Z", "")))
		default:
			fmt.Fprint(w, pageResponse(false, "",
				orderNode("3", "2025-02-04T10:00:00Z", "")))
		}
	}))
	defer srv.Close()

	orders := between(t, testClient(t, srv, Config{}))

	require.Len(t, orders, 3)
	assert.Equal(t, []string{"", "cur-1"}, afters, "second page follows the end cursor")
	assert.Equal(t, "1", orders[0].ID)
	assert.Equal(t, "3", orders[2].ID)
}

func TestClient_OrderMapping(t *testing.T) {
	node := `{
		"id": "gid://shopify/Order/42",
		"name": "#1042",
		"createdAt": "2025-02-10T08:30:00Z",
		"tags": ["VIP", "Referral - INFLUENCER_JAY"],
		"totalPriceSet": {"shopMoney": {"amount": "310.40"}},
		"totalDiscountsSet": {"shopMoney": {"amount": "31.04"}},
		"totalShippingPriceSet": {"shopMoney": {"amount": "4.95"}},
		"shippingAddress": {"countryCodeV2": "NL", "country": "Netherlands"},
		"discountApplications": {"nodes": [
			{"__typename": "DiscountCodeApplication", "code": "WELCOME10"},
			{"__typename": "AutomaticDiscountApplication", "title": "Volume Deal 3+1"}
		]},
		"lineItems": {"edges": [
			{"node": {
				"title": "Wool Dryer Balls",
				"quantity": 2,
				"discountAllocations": [
					{
						"allocatedAmountSet": {"shopMoney": {"amount": "20.00"}},
						"discountApplication": {"__typename": "DiscountCodeApplication", "code": "WELCOME10"}
					},
					{
						"allocatedAmountSet": {"shopMoney": {"amount": "15.00"}},
						"discountApplication": {"__typename": "AutomaticDiscountApplication", "title": "Volume Deal 3+1"}
					}
				]
			}},
			{"node": {
				"title": "Fabric Shaver",
				"quantity": 1,
				"discountAllocations": [
					{
						"allocatedAmountSet": {"shopMoney": {"amount": "11.04"}},
						"discountApplication": {"__typename": "DiscountCodeApplication", "code": "WELCOME10"}
					}
				]
			}}
		]}
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, pageResponse(false, "", node))
	}))
	defer srv.Close()

	orders := between(t, testClient(t, srv, Config{}))
	require.Len(t, orders, 1)
	o := orders[0]

	assert.Equal(t, "gid://shopify/Order/42", o.ID)
	assert.Equal(t, "#1042", o.Name)
	assert.Equal(t, time.Date(2025, 2, 10, 8, 30, 0, 0, time.UTC), o.CreatedAt)
	assert.Equal(t, "310.4", o.TotalPrice.String())
	assert.Equal(t, "31.04", o.TotalDiscounts.String())
	assert.Equal(t, "4.95", o.TotalShippingPrice.String())
	assert.Equal(t, "NL", o.ShippingCountryCode)
	assert.Equal(t, "Netherlands", o.ShippingCountryName)
	assert.Equal(t, "INFLUENCER_JAY", o.ReferralSource)

	require.Len(t, o.DiscountApplications, 2)
	code := o.DiscountApplications[0]
	assert.Equal(t, order.KindCode, code.Kind)
	assert.Equal(t, "WELCOME10", code.Code)
	assert.Equal(t, "31.04", code.Amount.String(), "allocations across line items are summed")

	auto := o.DiscountApplications[1]
	assert.Equal(t, order.KindAuto, auto.Kind)
	assert.Equal(t, "15", auto.Amount.String())

	require.Len(t, o.DealApplications, 1)
	assert.Equal(t, "Volume Deal 3+1", o.DealApplications[0].ID)
	assert.Equal(t, "15", o.DealApplications[0].Amount.String())

	require.Len(t, o.LineItems, 2)
	assert.Equal(t, "Wool Dryer Balls", o.LineItems[0].Title)
	assert.Equal(t, 2, o.LineItems[0].Quantity)
}

func TestClient_MalformedAmountCoercesToZero(t *testing.T) {
	node := orderNode("1", "2025-02-02T10:00:00Z", "")
	node = strings.Replace(node, `"amount": "100.00"`, `"amount": "not-a-number"`, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, pageResponse(false, "", node))
	}))
	defer srv.Close()

	orders := between(t, testClient(t, srv, Config{}))
	require.Len(t, orders, 1)
	assert.True(t, orders[0].TotalPrice.IsZero())
}

func TestClient_AccessDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"errors": [
			{"message": "Access denied for orders field.", "extensions": {"code": "ACCESS_DENIED"}}
		], "data": null}`)
	}))
	defer srv.Close()

	c := testClient(t, srv, Config{})
	_, err := c.OrdersBetween(context.Background(), time.Now().Add(-time.Hour), time.Now())
	assert.ErrorIs(t, err, ErrMissingScope)
}

func TestClient_GraphQLError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"errors": [{"message": "Something went wrong"}]}`)
	}))
	defer srv.Close()

	c := testClient(t, srv, Config{})
	_, err := c.OrdersBetween(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Something went wrong")
}

func TestClient_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(t, srv, Config{})
	_, err := c.OrdersBetween(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestClient_PageCap(t *testing.T) {
	var pages int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		pages++
		fmt.Fprint(w, pageResponse(true, fmt.Sprintf("cur-%d", pages),
			orderNode(fmt.Sprintf("%d", pages), "2025-02-02T10:00:00Z", "")))
	}))
	defer srv.Close()

	c := testClient(t, srv, Config{MaxPages: 3})
	orders := between(t, c)

	assert.Equal(t, 3, pages, "fetch stops at the page cap")
	assert.Len(t, orders, 3)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{AccessToken: "t"})
	assert.Error(t, err)

	_, err = NewClient(Config{ShopDomain: "x.myshopify.com"})
	assert.Error(t, err)

	c, err := NewClient(Config{ShopDomain: "x.myshopify.com", AccessToken: "t", PageSize: 9000})
	require.NoError(t, err)
	assert.Equal(t, 250, c.pageSize, "page size is capped at the API limit")
	assert.Equal(t, "https://x.myshopify.com/admin/api/2025-01/graphql.json", c.endpoint)
}
