package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Balances are stored as integer ZAR cents. Decimal values only appear at the
// edges: parsing configured rates, computing commission splits and formatting
// amounts for humans.

var centsPerRand = decimal.NewFromInt(100)

// FromRand converts a decimal rand amount to cents, rounding half-up to the
// nearest cent.
func FromRand(amount decimal.Decimal) int64 {
	return amount.Mul(centsPerRand).Round(0).IntPart()
}

// ToRand converts cents into a decimal rand amount.
func ToRand(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(centsPerRand)
}

// FormatRand renders cents as a human-readable rand string, e.g. "R1 500.00".
func FormatRand(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	rands := cents / 100
	rem := cents % 100
	return fmt.Sprintf("%sR%s.%02d", sign, groupThousands(rands), rem)
}

func groupThousands(n int64) string {
	raw := fmt.Sprintf("%d", n)
	if len(raw) <= 3 {
		return raw
	}
	var out []byte
	for i, ch := range []byte(raw) {
		if i > 0 && (len(raw)-i)%3 == 0 {
			out = append(out, ' ')
		}
		out = append(out, ch)
	}
	return string(out)
}
