package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestEarningsMetricsObserveAccrual(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewEarningsMetrics(reg)

	metrics.ObserveAccrual("applied", 1250)
	metrics.ObserveAccrual("applied", 750)
	metrics.ObserveAccrual("duplicate", 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "earnings_accruals_total", "outcome", "applied"); err != nil {
		t.Fatalf("fetch accruals: %v", err)
	} else if got != 2 {
		t.Fatalf("expected applied accruals=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "earnings_accrued_cents_total", "outcome", "applied"); err != nil {
		t.Fatalf("fetch accrued cents: %v", err)
	} else if got != 2000 {
		t.Fatalf("expected accrued cents=2000, got %f", got)
	}
}

func TestEarningsMetricsObservePayoutRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewEarningsMetrics(reg)

	metrics.ObservePayoutRequest("combined", "accepted", 50000)
	metrics.ObservePayoutRequest("individual", "rejected", 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "earnings_payout_requests_total", "mode", "combined"); err != nil {
		t.Fatalf("fetch payouts: %v", err)
	} else if got != 1 {
		t.Fatalf("expected combined payouts=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "earnings_payout_reserved_cents_total", "mode", "combined"); err != nil {
		t.Fatalf("fetch reserved cents: %v", err)
	} else if got != 50000 {
		t.Fatalf("expected reserved cents=50000, got %f", got)
	}
}

func TestEarningsMetricsNilSafe(t *testing.T) {
	var metrics *EarningsMetrics
	metrics.ObserveAccrual("applied", 100)
	metrics.ObservePayoutRequest("individual", "accepted", 100)

	empty := NewEarningsMetrics(nil)
	empty.ObserveAccrual("applied", 100)
	empty.ObservePayoutRequest("individual", "accepted", 100)
}
