// Package app wires the checkout API together: configuration, storage,
// collaborators, HTTP surface, and graceful shutdown.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/feastbox/checkout-api/internal/cartstore"
	"github.com/feastbox/checkout-api/internal/domain/discount"
	"github.com/feastbox/checkout-api/internal/domain/fulfillment"
	"github.com/feastbox/checkout-api/internal/domain/order"
	"github.com/feastbox/checkout-api/internal/handler"
	"github.com/feastbox/checkout-api/internal/notify"
	"github.com/feastbox/checkout-api/internal/payment"
	"github.com/feastbox/checkout-api/internal/repository"
	"github.com/feastbox/checkout-api/pkg/health"
	"github.com/feastbox/checkout-api/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Repositories.
	catalogRepo := repository.NewCatalogRepository(pool)
	zoneRepo := repository.NewZoneRepository(pool)
	pointRepo := repository.NewCollectionPointRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	giftCardRepo := repository.NewGiftCardRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	apikeyRepo := repository.NewAPIKeyRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)

	// Payment processor client.
	payments, err := payment.NewClient(cfg.PaymentBaseURL, cfg.PaymentSecretKey,
		payment.WithTracerProvider(m.TracerProvider()))
	if err != nil {
		return errors.Wrap(err, "create payment client")
	}

	// Optional order event publisher.
	var notifier order.Notifier = notify.Noop{}
	if cfg.AMQPURL != "" {
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			return errors.Wrap(err, "connect amqp")
		}
		defer conn.Close()

		pub, err := notify.NewPublisher(conn)
		if err != nil {
			return errors.Wrap(err, "create publisher")
		}
		defer pub.Close()
		notifier = pub
	}

	// Optional draft cart store.
	var carts handler.CartStore
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "parse redis url")
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		healthSvc.AddReadinessCheck("redis", 5*time.Second, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		carts = cartstore.New(rdb)
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Domain services.
	couponValidator := discount.NewCouponValidator(couponRepo)
	giftCardValidator := discount.NewGiftCardValidator(giftCardRepo)
	feeResolver := fulfillment.NewResolver(zoneRepo, pointRepo)
	checkoutSvc := order.NewService(
		catalogRepo,
		feeResolver,
		couponValidator,
		giftCardValidator,
		orderRepo,
		payments,
		settingsRepo,
		notifier,
		cfg.Currency,
	)

	// HTTP surface.
	h := handler.NewHandler(
		catalogRepo,
		pointRepo,
		checkoutSvc,
		couponValidator,
		giftCardValidator,
		carts,
		orderRepo,
		handler.NewAPIKeyAuth(apikeyRepo, []byte(cfg.APIKeyPepper)),
	)

	r := chi.NewRouter()
	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)
	r.Mount("/api", h.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(r,
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
				Skip: func(r *http.Request) bool {
					return r.URL.Path == "/livez" || r.URL.Path == "/readyz"
				},
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
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
