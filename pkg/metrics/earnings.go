package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EarningsMetrics records commission accruals and payout activity.
type EarningsMetrics struct {
	accruals      *prometheus.CounterVec
	accruedCents  *prometheus.CounterVec
	payouts       *prometheus.CounterVec
	reservedCents *prometheus.CounterVec
}

// NewEarningsMetrics registers the earnings metrics on the provided registerer.
func NewEarningsMetrics(reg prometheus.Registerer) *EarningsMetrics {
	if reg == nil {
		return &EarningsMetrics{}
	}
	accruals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "earnings_accruals_total",
		Help: "Commission accruals applied to earnings accounts.",
	}, []string{"outcome"})
	accruedCents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "earnings_accrued_cents_total",
		Help: "Total commission amount accrued, in cents.",
	}, []string{"outcome"})
	payouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "earnings_payout_requests_total",
		Help: "Payout requests by mode and outcome.",
	}, []string{"mode", "outcome"})
	reservedCents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "earnings_payout_reserved_cents_total",
		Help: "Total amount moved into pending balances for payouts, in cents.",
	}, []string{"mode"})
	reg.MustRegister(accruals, accruedCents, payouts, reservedCents)
	return &EarningsMetrics{
		accruals:      accruals,
		accruedCents:  accruedCents,
		payouts:       payouts,
		reservedCents: reservedCents,
	}
}

// ObserveAccrual records one accrual attempt and the amount involved.
func (m *EarningsMetrics) ObserveAccrual(outcome string, amountCents int64) {
	if m == nil || m.accruals == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	m.accruals.WithLabelValues(outcome).Inc()
	if amountCents > 0 {
		m.accruedCents.WithLabelValues(outcome).Add(float64(amountCents))
	}
}

// ObservePayoutRequest records one payout request and the amount reserved.
func (m *EarningsMetrics) ObservePayoutRequest(mode, outcome string, reservedCents int64) {
	if m == nil || m.payouts == nil {
		return
	}
	mode = normalizeLabel(mode)
	m.payouts.WithLabelValues(mode, normalizeLabel(outcome)).Inc()
	if reservedCents > 0 {
		m.reservedCents.WithLabelValues(mode).Add(float64(reservedCents))
	}
}
