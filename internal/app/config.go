package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (INSIGHTS_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Shopify   ShopifyConfig
	Metrics   MetricsConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// ShopifyConfig holds the Admin API connection settings.
type ShopifyConfig struct {
	ShopDomain  string `usage:"myshopify.com shop domain (INSIGHTS_SHOPIFY_SHOP_DOMAIN or SHOPIFY_SHOP_DOMAIN)" flag:"shop-domain"`
	AccessToken string `usage:"Admin API access token (INSIGHTS_SHOPIFY_ACCESS_TOKEN or SHOPIFY_ACCESS_TOKEN)" flag:"access-token"`
	APIVersion  string `default:"2025-01" usage:"Admin API version" flag:"api-version"`
	PageSize    int    `default:"250" usage:"Orders fetched per page (max 250)" flag:"page-size"`
	MaxPages    int    `default:"10" usage:"Pagination page cap per fetch" flag:"max-pages"`
}

// MetricsConfig tunes period resolution and the economics constants.
type MetricsConfig struct {
	FallbackDays       int     `default:"30" usage:"Default reporting window length in days" flag:"fallback-days"`
	MaxRangeDays       int     `default:"180" usage:"Maximum reporting window length in days" flag:"max-range-days"`
	ReferralPayoutRate float64 `default:"0.3" usage:"Referral payout fraction of order total" flag:"referral-payout-rate"`
	ShippingCostsFile  string  `usage:"JSON file overriding the built-in per-country shipping cost table" flag:"shipping-costs-file"`
}

// CacheConfig controls the in-process order cache.
type CacheConfig struct {
	TTL time.Duration `default:"5m" usage:"Order cache TTL"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "INSIGHTS",
		Files:     []string{"config.yaml", "/etc/insights/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.Shopify.ShopDomain == "" {
		return nil, errors.New("shop domain is required: set INSIGHTS_SHOPIFY_SHOP_DOMAIN or SHOPIFY_SHOP_DOMAIN")
	}
	if cfg.Shopify.AccessToken == "" {
		return nil, errors.New("access token is required: set INSIGHTS_SHOPIFY_ACCESS_TOKEN or SHOPIFY_ACCESS_TOKEN")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps environment variables with standard names
// (SHOPIFY_*, PORT) to the INSIGHTS_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Shopify.ShopDomain == "" {
		if v := os.Getenv("SHOPIFY_SHOP_DOMAIN"); v != "" {
			c.Shopify.ShopDomain = v
		}
	}
	if c.Shopify.AccessToken == "" {
		if v := os.Getenv("SHOPIFY_ACCESS_TOKEN"); v != "" {
			c.Shopify.AccessToken = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
