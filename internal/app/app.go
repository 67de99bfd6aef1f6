// Package app wires configuration, storage, domain services, and the HTTP
// server into a running process.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/halchash/storefront/internal/domain/analytics"
	"github.com/halchash/storefront/internal/domain/coupon"
	"github.com/halchash/storefront/internal/domain/order"
	"github.com/halchash/storefront/internal/domain/pricing"
	"github.com/halchash/storefront/internal/handler"
	"github.com/halchash/storefront/internal/postgres"
	"github.com/halchash/storefront/internal/redis"
	"github.com/halchash/storefront/pkg/health"
	"github.com/halchash/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	shipping, err := parseShipping(cfg.Shipping)
	if err != nil {
		return err
	}

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Optional analytics cache.
	var cache analytics.Cache
	if cfg.RedisURL != "" {
		rc, err := redis.New(ctx, cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = rc.Close() }()
		cache = rc
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	analyticsRepo := postgres.NewAnalyticsRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)
	store := postgres.NewStore(pool)

	// Coupon prefilter, warmed from the known codes and rewarmed in the
	// background so codes created by the seeding tools become visible
	// without a restart.
	prefilter := coupon.NewPrefilter(cfg.Coupons.ExpectedCodes, cfg.Coupons.FalsePositiveRate)
	if err := prefilter.Warm(ctx, couponRepo); err != nil {
		return errors.Wrap(err, "warm coupon prefilter")
	}
	go func() {
		ticker := time.NewTicker(cfg.Coupons.RewarmInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := prefilter.Warm(ctx, couponRepo); err != nil {
					lg.Warn("Coupon prefilter rewarm failed", zap.Error(err))
				}
			}
		}
	}()

	// Domain services.
	calc := pricing.NewCalculator(shipping)
	validator := coupon.NewValidator(couponRepo, prefilter)
	orderService := order.NewService(productRepo, calc, validator, orderRepo, store, cfg.OrderNumberPrefix)
	analyticsService := analytics.NewService(analyticsRepo, cache)

	// HTTP handlers.
	security := handler.NewSecurityHandler(apikeyRepo, []byte(cfg.APIKeyPepper))
	h := handler.NewHandler(orderService, analyticsService, security)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Routes(mux)

	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "X-API-Key"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("storefront-api", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
			httpmiddleware.Timeout(cfg.StoreTimeout),
		),
	}

	// Graceful shutdown: flip readiness, drain, then stop.
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
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

func parseShipping(cfg ShippingConfig) (pricing.ShippingTable, error) {
	inside, err := decimal.NewFromString(cfg.InsideZone)
	if err != nil {
		return pricing.ShippingTable{}, errors.Wrap(err, "parse inside zone shipping cost")
	}
	outside, err := decimal.NewFromString(cfg.OutsideZone)
	if err != nil {
		return pricing.ShippingTable{}, errors.Wrap(err, "parse outside zone shipping cost")
	}
	return pricing.ShippingTable{InsideZone: inside, OutsideZone: outside}, nil
}
