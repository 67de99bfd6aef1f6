package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (HAL_ prefix), flags, or YAML config files.
type Config struct {
	Addr              string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL       string `usage:"PostgreSQL connection URL (HAL_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL          string `default:"" usage:"Redis URL for the analytics cache; empty disables caching" flag:"redis-url"`
	APIKeyPepper      string `usage:"HMAC pepper for API key hashing (HAL_API_KEY_PEPPER)" flag:"api-key-pepper"`
	OrderNumberPrefix string `default:"HAL" usage:"Order number prefix" flag:"order-prefix"`
	Shipping          ShippingConfig
	Coupons           CouponConfig
	RateLimit         RateLimitConfig
	CORS              CORSConfig
	Graceful          GracefulConfig
	StoreTimeout      time.Duration `default:"5s" usage:"Per-request storage deadline" flag:"store-timeout"`
}

// ShippingConfig holds the flat shipping cost per delivery area, as decimal
// strings.
type ShippingConfig struct {
	InsideZone  string `default:"60"  usage:"Shipping cost inside the delivery zone" flag:"shipping-inside"`
	OutsideZone string `default:"120" usage:"Shipping cost outside the delivery zone" flag:"shipping-outside"`
}

// CouponConfig sizes the coupon code prefilter.
type CouponConfig struct {
	ExpectedCodes     uint          `default:"100000" usage:"Expected number of coupon codes" flag:"coupon-expected-codes"`
	FalsePositiveRate float64       `default:"0.001"  usage:"Prefilter false positive rate" flag:"coupon-fp-rate"`
	RewarmInterval    time.Duration `default:"15s"    usage:"How often the prefilter picks up newly created codes" flag:"coupon-rewarm-interval"`
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
		EnvPrefix: "HAL",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set HAL_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like DATABASE_URL and PORT to the HAL_-prefixed
// configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.RedisURL == "" {
		if v := os.Getenv("REDIS_URL"); v != "" {
			c.RedisURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
