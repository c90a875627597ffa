package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sibusisodube/canopay-backend/api/controllers"
	"github.com/sibusisodube/canopay-backend/api/middleware"
	"github.com/sibusisodube/canopay-backend/internal/ledger"
	"github.com/sibusisodube/canopay-backend/internal/obligations"
	"github.com/sibusisodube/canopay-backend/internal/payouts"
	"github.com/sibusisodube/canopay-backend/pkg/config"
	"github.com/sibusisodube/canopay-backend/pkg/enums"
	"github.com/sibusisodube/canopay-backend/pkg/logger"
	"github.com/sibusisodube/canopay-backend/pkg/metrics"
	"github.com/sibusisodube/canopay-backend/pkg/redis"
)

// RouterParams carries the wired dependencies for the HTTP surface.
type RouterParams struct {
	Config       *config.Config
	Logger       *logger.Logger
	Idempotency  redis.IdempotencyStore
	RateLimiter  middleware.RateLimiterStore
	Ledger       ledger.Service
	Obligations  obligations.Service
	Payouts      payouts.Service
	Members      middleware.MembershipChecker
	Metrics      *metrics.EarningsMetrics
	PromRegistry *prometheus.Registry
	Pingers      map[string]controllers.Pinger
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.Pingers))
	})

	if params.PromRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.PromRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(params.Idempotency, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/stores/{storeID}/earnings", func(r chi.Router) {
			r.Use(middleware.StoreScope(logg))

			r.Get("/", controllers.EarningsSummary(params.Ledger, params.Obligations, logg))
			r.Get("/transactions", controllers.EarningsTransactions(params.Ledger, logg))

			r.Route("/payouts", func(r chi.Router) {
				r.Get("/", controllers.ListPayouts(params.Payouts, logg))
				r.Get("/{payoutID}", controllers.PayoutDetail(params.Payouts, logg))
				r.With(
					middleware.PayoutRateLimit(
						middleware.NewPayoutRateLimitPolicy(cfg.Earnings.PayoutRateWindow, cfg.Earnings.PayoutRateLimit),
						params.RateLimiter, logg,
					),
					middleware.RequireStoreRoles(
						params.Members, logg,
						enums.MemberRoleOwner, enums.MemberRoleAdmin, enums.MemberRoleManager, enums.MemberRoleStaff,
					),
				).Post("/", controllers.CreatePayout(params.Payouts, params.Metrics, logg))
			})
		})
	})

	return r
}
