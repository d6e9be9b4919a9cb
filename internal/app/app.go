package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-insights/internal/domain/costs"
	"github.com/xenking/storefront-insights/internal/domain/metrics"
	"github.com/xenking/storefront-insights/internal/domain/order"
	"github.com/xenking/storefront-insights/internal/handler"
	"github.com/xenking/storefront-insights/internal/memcache"
	"github.com/xenking/storefront-insights/internal/shopify"
	"github.com/xenking/storefront-insights/pkg/health"
	"github.com/xenking/storefront-insights/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("shop", cfg.Shopify.ShopDomain),
	)

	// Shipping cost table: built-in defaults, optionally overridden from disk.
	shippingTable := costs.DefaultShippingTable()
	if cfg.Metrics.ShippingCostsFile != "" {
		t, err := costs.LoadShippingTable(cfg.Metrics.ShippingCostsFile)
		if err != nil {
			return errors.Wrap(err, "load shipping costs")
		}
		shippingTable = t
		lg.Info("Loaded shipping cost table",
			zap.String("file", cfg.Metrics.ShippingCostsFile),
			zap.Int("countries", t.Len()),
		)
	}

	// Shopify Admin API client.
	client, err := shopify.NewClient(shopify.Config{
		ShopDomain:  cfg.Shopify.ShopDomain,
		AccessToken: cfg.Shopify.AccessToken,
		APIVersion:  cfg.Shopify.APIVersion,
		PageSize:    cfg.Shopify.PageSize,
		MaxPages:    cfg.Shopify.MaxPages,
	})
	if err != nil {
		return errors.Wrap(err, "create shopify client")
	}

	// Aggregation engine and order cache.
	engine := metrics.New(cfg.Metrics.ReferralPayoutRate, shippingTable, costs.CostOfGoods)
	cache := memcache.New[[]order.Order](cfg.Cache.TTL)

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.SetReady(true)

	// HTTP handlers.
	h := handler.New(handler.Config{
		ShopDomain:   cfg.Shopify.ShopDomain,
		FallbackDays: cfg.Metrics.FallbackDays,
		MaxRangeDays: cfg.Metrics.MaxRangeDays,
	}, client, engine, cache)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("storefront-insights", m),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
