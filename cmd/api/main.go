package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sibusisodube/canopay-backend/api/controllers"
	"github.com/sibusisodube/canopay-backend/api/routes"
	"github.com/sibusisodube/canopay-backend/internal/ledger"
	"github.com/sibusisodube/canopay-backend/internal/memberships"
	"github.com/sibusisodube/canopay-backend/internal/obligations"
	"github.com/sibusisodube/canopay-backend/internal/payouts"
	"github.com/sibusisodube/canopay-backend/pkg/config"
	"github.com/sibusisodube/canopay-backend/pkg/db"
	"github.com/sibusisodube/canopay-backend/pkg/logger"
	"github.com/sibusisodube/canopay-backend/pkg/metrics"
	"github.com/sibusisodube/canopay-backend/pkg/migrate"
	"github.com/sibusisodube/canopay-backend/pkg/outbox"
	"github.com/sibusisodube/canopay-backend/pkg/redis"
	"github.com/sibusisodube/canopay-backend/pkg/security"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	vault, err := security.NewBankingVault(cfg.Earnings.BankingKey)
	if err != nil {
		logg.Error(context.Background(), "failed to create banking vault", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	ledgerRepo := ledger.NewRepository(gormDB)
	membershipRepo := memberships.NewRepository(gormDB)
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	ledgerService, err := ledger.NewService(ledgerRepo, dbClient, outboxService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	obligationService, err := obligations.NewService(obligations.NewRepository(gormDB), membershipRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create obligations service", err)
		os.Exit(1)
	}

	payoutService, err := payouts.NewService(
		payouts.NewRepository(gormDB),
		ledgerRepo,
		obligationService,
		membershipRepo,
		vault,
		dbClient,
		outboxService,
		cfg.Earnings,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payout service", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	earningsMetrics := metrics.NewEarningsMetrics(promRegistry)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:       cfg,
			Logger:       logg,
			Idempotency:  redisClient,
			RateLimiter:  redisClient,
			Ledger:       ledgerService,
			Obligations:  obligationService,
			Payouts:      payoutService,
			Members:      membershipRepo,
			Metrics:      earningsMetrics,
			PromRegistry: promRegistry,
			Pingers: map[string]controllers.Pinger{
				"postgres": dbClient,
				"redis":    redisClient,
			},
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
