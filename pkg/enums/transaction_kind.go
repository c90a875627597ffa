package enums

import "fmt"

// TransactionKind maps to the transaction_kind_enum enum in Postgres.
type TransactionKind string

const (
	TransactionKindCommission    TransactionKind = "commission"
	TransactionKindPayoutReserve TransactionKind = "payout_reserve"
	TransactionKindAdjustment    TransactionKind = "adjustment"
)

var validTransactionKinds = []TransactionKind{
	TransactionKindCommission,
	TransactionKindPayoutReserve,
	TransactionKindAdjustment,
}

// String implements fmt.Stringer.
func (t TransactionKind) String() string {
	return string(t)
}

// IsValid reports whether the value matches the canonical transaction kind enum.
func (t TransactionKind) IsValid() bool {
	for _, candidate := range validTransactionKinds {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionKind converts raw input into a TransactionKind.
func ParseTransactionKind(value string) (TransactionKind, error) {
	for _, candidate := range validTransactionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction kind %q", value)
}
