// Package handler exposes the dashboard metrics reports over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-insights/internal/domain/metrics"
	"github.com/xenking/storefront-insights/internal/domain/order"
	"github.com/xenking/storefront-insights/internal/domain/period"
	"github.com/xenking/storefront-insights/internal/memcache"
	"github.com/xenking/storefront-insights/internal/shopify"
)

const (
	// cacheControl mirrors the freshness the dashboard frontend expects.
	cacheControl = "private, max-age=15"
	headerCache  = "X-Cache"

	isoMillis = "2006-01-02T15:04:05.000Z07:00"
)

// OrderSource fetches the orders created within a resolved window.
type OrderSource interface {
	OrdersBetween(ctx context.Context, start, end time.Time) ([]order.Order, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ShopDomain namespaces cache keys; one process serves one shop.
	ShopDomain string
	// FallbackDays is the default window length. See period.Resolver.
	FallbackDays int
	// MaxRangeDays caps the window length.
	MaxRangeDays int
}

// Handler serves the three metrics endpoints, fetching orders through the
// cache and delegating aggregation to the metrics engine.
type Handler struct {
	source   OrderSource
	engine   *metrics.Engine
	cache    *memcache.Cache[[]order.Order]
	shop     string
	trailing period.Resolver
	monthly  period.Resolver
	now      func() time.Time
}

// New constructs a Handler with the required dependencies.
func New(cfg Config, source OrderSource, engine *metrics.Engine, cache *memcache.Cache[[]order.Order]) *Handler {
	trailing := period.Resolver{
		FallbackDays: cfg.FallbackDays,
		MaxRangeDays: cfg.MaxRangeDays,
	}
	monthly := trailing
	monthly.Policy = period.MonthToDate

	return &Handler{
		source:   source,
		engine:   engine,
		cache:    cache,
		shop:     cfg.ShopDomain,
		trailing: trailing,
		monthly:  monthly,
		now:      time.Now,
	}
}

// Register mounts the metrics routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/metrics/overview", h.overview)
	mux.HandleFunc("GET /api/metrics/summary", h.summary)
	mux.HandleFunc("GET /api/metrics/shipments", h.shipments)
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "overview", h.trailing, func(orders []order.Order, rng period.Range) any {
		return h.engine.Overview(orders, rng)
	})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "summary", h.trailing, func(orders []order.Order, rng period.Range) any {
		return h.engine.Profit(orders, rng)
	})
}

// shipments defaults to the current calendar month when no dates are given,
// matching how the shipments page frames its numbers.
func (h *Handler) shipments(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "shipments", h.monthly, func(orders []order.Order, rng period.Range) any {
		return h.engine.Shipping(orders, rng)
	})
}

func (h *Handler) serve(
	w http.ResponseWriter,
	r *http.Request,
	kind string,
	resolver period.Resolver,
	build func([]order.Order, period.Range) any,
) {
	ctx := r.Context()
	q := r.URL.Query()
	rng := resolver.Resolve(q.Get("startDate"), q.Get("endDate"), h.now())

	key := fmt.Sprintf("orders:%s:%s:%s:%s",
		kind, h.shop, rng.Start.UTC().Format(isoMillis), rng.End.UTC().Format(isoMillis))

	orders, hit, err := h.cache.GetOrFetch(ctx, key, func(ctx context.Context) ([]order.Order, error) {
		return h.source.OrdersBetween(ctx, rng.Start, rng.End)
	})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	report := build(orders, rng)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", cacheControl)
	if hit {
		w.Header().Set(headerCache, "HIT")
	} else {
		w.Header().Set(headerCache, "MISS")
	}
	if err := json.NewEncoder(w).Encode(report); err != nil {
		zctx.From(ctx).Error("Failed to encode metrics response", zap.Error(err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	message := "failed to fetch orders from Shopify"
	if errors.Is(err, shopify.ErrMissingScope) {
		status = http.StatusForbidden
		message = "access token is missing the read_orders scope"
	}

	zctx.From(ctx).Error("Metrics request failed", zap.Error(err))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message})
}
