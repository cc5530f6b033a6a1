// File: cmd/app/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeyera-studio/zeyera-studio-main/internal/config"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/ports/adapter"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/ports/repository"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/adapters/events"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/adapters/payment"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/api"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/api/apiv1"
	pg "github.com/zeyera-studio/zeyera-studio-main/internal/infra/db/postgres"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/logging"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/metrics"
	red "github.com/zeyera-studio/zeyera-studio-main/internal/infra/redis"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/sched"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/worker"
	"github.com/zeyera-studio/zeyera-studio-main/internal/usecase"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Config ----
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.New(config.LogConfig{Level: "info", Format: "console"}, true).Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled: buyer details are logged unredacted")
	}

	// ---- Metrics ----
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 15*time.Second)

	// ---- Repositories ----
	var contents repository.ContentRepository = pg.NewContentRepo(pool)
	var seasons repository.SeasonPriceRepository = pg.NewSeasonPriceRepo(pool)
	purchases := pg.NewPurchaseRepo(pool)
	txManager := pg.NewTxManager(pool)

	checks := map[string]api.HealthCheck{"postgres": pool.Ping}

	// ---- Redis (optional): price caches, checkout lock, rate limiter ----
	var (
		locker  adapter.Locker
		limiter apiv1.Limiter
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		contents = pg.NewContentRepoCacheDecorator(contents, redisClient, cfg.Redis.TTL, logger)
		seasons = pg.NewSeasonPriceRepoCacheDecorator(seasons, redisClient, cfg.Redis.TTL, logger)
		locker = red.NewLocker(redisClient)
		limiter = red.NewRateLimiter(redisClient)
		checks["redis"] = redisClient.Ping
	} else {
		logger.Warn().Msg("redis.url not set; price caching, checkout locking and rate limiting are disabled")
	}

	// ---- Events ----
	var publisher adapter.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.Kafka, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("kafka")
		}
		publisher = kp
	} else {
		publisher = events.NewNoopPublisher(logger)
	}
	defer publisher.Close()

	// ---- Payment gateway ----
	gateway := payment.New(cfg.Payment.PayHere, &http.Client{Timeout: 15 * time.Second}, logger)
	if !gateway.Configured() {
		logger.Warn().Msg("payment gateway not configured; checkout is disabled")
	}

	// ---- Use cases ----
	pricingUC := usecase.NewPricingUseCase(contents, seasons, txManager, cfg.Payment.Currency, logger)
	ledgerUC := usecase.NewLedgerUseCase(purchases, publisher, cfg.Payment.Currency, logger)
	entitlementUC := usecase.NewEntitlementUseCase(pricingUC, ledgerUC, logger)
	checkoutUC := usecase.NewCheckoutUseCase(pricingUC, ledgerUC, entitlementUC, gateway, locker, usecase.CheckoutOptions{
		ReturnBaseURL: cfg.HTTP.PublicBaseURL + "/payment/return",
		LockTTL:       cfg.Checkout.LockTTL,
		Dev:           cfg.Runtime.Dev,
	}, logger)

	// ---- Reconciler (needs the gateway retrieval API) ----
	var reconciler *sched.PaymentReconciler
	var workers *worker.Pool
	if gateway.CanRetrieve() {
		workers = worker.NewPool(cfg.Scheduler.Workers, logger)
		workers.Start(ctx)
		reconciler = sched.NewPaymentReconciler(checkoutUC, ledgerUC, workers, cfg.Scheduler, logger)
		if err := reconciler.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("payment reconciler")
		}
	} else {
		logger.Info().Msg("gateway retrieval credentials not set; pending purchases settle only through notifications")
	}

	// ---- HTTP ----
	v1 := apiv1.NewServer(pricingUC, entitlementUC, ledgerUC, checkoutUC, limiter, apiv1.CheckoutLimit{
		Limit:  cfg.Checkout.RateLimit,
		Window: cfg.Checkout.RateWindow,
	}, cfg.HTTP.PublicBaseURL, logger)
	auth := apiv1.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, logger)
	server := api.NewServer(cfg.HTTP, v1, auth, checks, logger)

	errc := make(chan error, 1)
	go func() { errc <- server.Start() }()

	// ---- Graceful shutdown ----
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if reconciler != nil {
		reconciler.Stop(shutdownCtx)
		workers.Stop()
	}
	logger.Info().Msg("bye")
}
