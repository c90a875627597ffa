package commission

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/sibusisodube/canopay-backend/pkg/errors"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name            string
		orderTotalCents int64
		rate            string
		want            int64
	}{
		{name: "ten percent", orderTotalCents: 150000, rate: "0.10", want: 15000},
		{name: "rounds half up", orderTotalCents: 105, rate: "0.10", want: 11},
		{name: "rounds down below half", orderTotalCents: 104, rate: "0.10", want: 10},
		{name: "full rate", orderTotalCents: 9999, rate: "1", want: 9999},
		{name: "zero total", orderTotalCents: 0, rate: "0.10", want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Calculate(tc.orderTotalCents, decimal.RequireFromString(tc.rate))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCalculateInvalidRate(t *testing.T) {
	for _, rate := range []string{"0", "-0.1", "1.01"} {
		t.Run(rate, func(t *testing.T) {
			_, err := Calculate(10000, decimal.RequireFromString(rate))
			require.Error(t, err)
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
		})
	}
}

func TestResolvePrefersPreComputed(t *testing.T) {
	pre := int64(1234)
	got, err := Resolve(150000, &pre, decimal.RequireFromString("0.10"))
	require.NoError(t, err)
	assert.Equal(t, int64(1234), got)
}

func TestResolveRejectsNonPositivePreComputed(t *testing.T) {
	for _, cents := range []int64{0, -500} {
		pre := cents
		_, err := Resolve(150000, &pre, decimal.RequireFromString("0.10"))
		require.Error(t, err)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	}
}

func TestResolveFallsBackToRate(t *testing.T) {
	got, err := Resolve(150000, nil, decimal.RequireFromString("0.10"))
	require.NoError(t, err)
	assert.Equal(t, int64(15000), got)
}
