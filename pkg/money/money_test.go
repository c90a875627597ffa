package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFromRandRoundsHalfUp(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"150.00", 15000},
		{"0.005", 1},
		{"0.004", 0},
		{"499.995", 50000},
		{"-1.005", -101},
	}
	for _, tc := range tests {
		d, err := decimal.NewFromString(tc.in)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if got := FromRand(d); got != tc.want {
			t.Fatalf("FromRand(%s) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestToRandRoundTrip(t *testing.T) {
	if got := ToRand(15000); !got.Equal(decimal.RequireFromString("150")) {
		t.Fatalf("ToRand(15000) = %s", got)
	}
}

func TestFormatRand(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{15000, "R150.00"},
		{50000, "R500.00"},
		{123456789, "R1 234 567.89"},
		{-4999, "-R49.99"},
		{5, "R0.05"},
	}
	for _, tc := range tests {
		if got := FormatRand(tc.cents); got != tc.want {
			t.Fatalf("FormatRand(%d) = %q, want %q", tc.cents, got, tc.want)
		}
	}
}
