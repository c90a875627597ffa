package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sibusisodube/canopay-backend/pkg/logger"
)

type fakeLimiter struct {
	counts map[string]int64
	err    error
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{counts: map[string]int64{}}
}

func (f *fakeLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func rateLimitedHandler(t *testing.T, store RateLimiterStore, limit int) (http.Handler, *int) {
	t.Helper()
	calls := 0
	logg := logger.New(logger.Options{ServiceName: "middleware-test", Output: io.Discard})
	mw := PayoutRateLimit(NewPayoutRateLimitPolicy(time.Minute, limit), store, logg)
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusAccepted)
	})), &calls
}

func payoutRequest(userID, storeID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stores/"+storeID+"/earnings/payouts", strings.NewReader("{}"))
	ctx := WithUserID(req.Context(), userID)
	ctx = WithStoreID(ctx, storeID)
	return req.WithContext(ctx)
}

func TestPayoutRateLimitBlocksOverLimit(t *testing.T) {
	store := newFakeLimiter()
	handler, calls := rateLimitedHandler(t, store, 2)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, payoutRequest("user-1", "store-1"))
		if rec.Code != http.StatusAccepted {
			t.Fatalf("request %d: expected 202, got %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, payoutRequest("user-1", "store-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "RATE_LIMIT_EXCEEDED") {
		t.Fatalf("expected rate limit code in body, got %s", rec.Body.String())
	}
	if *calls != 2 {
		t.Fatalf("expected handler invoked twice, got %d", *calls)
	}
}

func TestPayoutRateLimitScopesPerUser(t *testing.T) {
	store := newFakeLimiter()
	handler, calls := rateLimitedHandler(t, store, 1)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, payoutRequest("user-1", "store-1"))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	// A different user in a different store starts with fresh counters.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, payoutRequest("user-2", "store-2"))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for unrelated user, got %d", rec.Code)
	}
	if *calls != 2 {
		t.Fatalf("expected both requests through, got %d", *calls)
	}
}

func TestPayoutRateLimitStoreScopeSpansMembers(t *testing.T) {
	store := newFakeLimiter()
	handler, _ := rateLimitedHandler(t, store, 1)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, payoutRequest("user-1", "store-1"))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	// A second member exhausts the shared store counter.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, payoutRequest("user-2", "store-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on shared store scope, got %d", rec.Code)
	}
}

func TestPayoutRateLimitDisabledPassesThrough(t *testing.T) {
	handler, calls := rateLimitedHandler(t, newFakeLimiter(), 0)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, payoutRequest("user-1", "store-1"))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected passthrough, got %d", rec.Code)
	}
	if *calls != 1 {
		t.Fatalf("expected handler invoked, got %d", *calls)
	}
}

func TestPayoutRateLimitNilStorePassesThrough(t *testing.T) {
	handler, calls := rateLimitedHandler(t, nil, 5)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, payoutRequest("user-1", "store-1"))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected passthrough, got %d", rec.Code)
	}
	if *calls != 1 {
		t.Fatalf("expected handler invoked, got %d", *calls)
	}
}

func TestPayoutRateLimitStoreErrorFailsClosed(t *testing.T) {
	store := newFakeLimiter()
	store.err = errors.New("redis down")
	handler, calls := rateLimitedHandler(t, store, 5)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, payoutRequest("user-1", "store-1"))
	if rec.Code == http.StatusAccepted {
		t.Fatal("expected rejection when the counter store is unavailable")
	}
	if *calls != 0 {
		t.Fatalf("handler must not run, got %d calls", *calls)
	}
}
