package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sibusisodube/canopay-backend/api/responses"
	pkgerrors "github.com/sibusisodube/canopay-backend/pkg/errors"
	"github.com/sibusisodube/canopay-backend/pkg/logger"
)

// RateLimiterStore is the counter surface rate limiting needs from Redis.
type RateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// PayoutRateLimitPolicy caps payout submissions per requesting user and per
// store within a fixed window.
type PayoutRateLimitPolicy struct {
	window time.Duration
	limit  int
}

// NewPayoutRateLimitPolicy builds a policy with the supplied window and limit.
func NewPayoutRateLimitPolicy(window time.Duration, limit int) PayoutRateLimitPolicy {
	return PayoutRateLimitPolicy{window: window, limit: limit}
}

func (p PayoutRateLimitPolicy) enabled() bool {
	return p.window > 0 && p.limit > 0
}

func (p PayoutRateLimitPolicy) userScope(userID string) string {
	if userID == "" {
		return ""
	}
	return fmt.Sprintf("payouts:user:%s", userID)
}

func (p PayoutRateLimitPolicy) storeScope(storeID string) string {
	if storeID == "" {
		return ""
	}
	return fmt.Sprintf("payouts:store:%s", storeID)
}

// PayoutRateLimit throttles payout requests. The user scope stops one member
// hammering the endpoint; the store scope bounds the reservation churn a
// single store can generate across its members.
func PayoutRateLimit(policy PayoutRateLimitPolicy, store RateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			scopes := []struct {
				kind  string
				scope string
			}{
				{kind: "user", scope: policy.userScope(strings.TrimSpace(UserIDFromContext(ctx)))},
				{kind: "store", scope: policy.storeScope(strings.TrimSpace(StoreIDFromContext(ctx)))},
			}
			for _, s := range scopes {
				if s.scope == "" {
					continue
				}
				allowed, count, err := store.FixedWindowAllow(ctx, s.scope, int64(policy.limit), policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !allowed {
					respondPayoutRateLimited(ctx, logg, w, policy, s.kind, count)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func respondPayoutRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy PayoutRateLimitPolicy, scope string, count int64) {
	if logg != nil {
		logCtx := logg.WithFields(ctx, map[string]any{
			"scope":          scope,
			"attempts":       count,
			"limit":          policy.limit,
			"window_seconds": int(policy.window.Seconds()),
		})
		logg.Warn(logCtx, "payouts.rate_limit.blocked")
	}
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "payout rate limit exceeded"))
}
