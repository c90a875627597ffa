package enums

import "fmt"

// ObligationStatus maps to the obligation_status_enum enum in Postgres.
// Obligations in pending or approved state still count against a store's
// funds; paid and rejected ones are settled history.
type ObligationStatus string

const (
	ObligationStatusPending  ObligationStatus = "pending"
	ObligationStatusApproved ObligationStatus = "approved"
	ObligationStatusPaid     ObligationStatus = "paid"
	ObligationStatusRejected ObligationStatus = "rejected"
)

var validObligationStatuses = []ObligationStatus{
	ObligationStatusPending,
	ObligationStatusApproved,
	ObligationStatusPaid,
	ObligationStatusRejected,
}

// String implements fmt.Stringer.
func (o ObligationStatus) String() string {
	return string(o)
}

// IsOutstanding reports whether the obligation still counts against funds.
func (o ObligationStatus) IsOutstanding() bool {
	return o == ObligationStatusPending || o == ObligationStatusApproved
}

// IsValid reports whether the value matches the canonical obligation status enum.
func (o ObligationStatus) IsValid() bool {
	for _, candidate := range validObligationStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseObligationStatus converts raw input into an ObligationStatus.
func ParseObligationStatus(value string) (ObligationStatus, error) {
	for _, candidate := range validObligationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid obligation status %q", value)
}
