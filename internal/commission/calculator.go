package commission

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/sibusisodube/canopay-backend/pkg/errors"
	"github.com/sibusisodube/canopay-backend/pkg/money"
)

// Calculate computes the commission in cents for an order total using the
// given rate, rounding half-up to the cent. The rate is a fraction in (0, 1].
func Calculate(orderTotalCents int64, rate decimal.Decimal) (int64, error) {
	if rate.LessThanOrEqual(decimal.Zero) || rate.GreaterThan(decimal.NewFromInt(1)) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "commission rate must be in (0, 1]")
	}
	total := money.ToRand(orderTotalCents)
	return money.FromRand(total.Mul(rate)), nil
}

// Resolve picks the commission amount for an order event. A platform
// pre-computed amount, when present, wins over local recomputation so that
// orders priced under older rules keep their original split.
func Resolve(orderTotalCents int64, preComputedCents *int64, rate decimal.Decimal) (int64, error) {
	if preComputedCents != nil {
		if *preComputedCents <= 0 {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "pre-computed commission must be positive")
		}
		return *preComputedCents, nil
	}
	return Calculate(orderTotalCents, rate)
}
