package enums

import "fmt"

// PayoutStatus maps to the payout_status_enum enum in Postgres. The paid and
// rejected transitions are applied by the back-office disbursement process,
// not by this service.
type PayoutStatus string

const (
	PayoutStatusPending  PayoutStatus = "pending"
	PayoutStatusApproved PayoutStatus = "approved"
	PayoutStatusPaid     PayoutStatus = "paid"
	PayoutStatusRejected PayoutStatus = "rejected"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusPending,
	PayoutStatusApproved,
	PayoutStatusPaid,
	PayoutStatusRejected,
}

// String implements fmt.Stringer.
func (p PayoutStatus) String() string {
	return string(p)
}

// IsValid reports whether the value matches the canonical payout status enum.
func (p PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePayoutStatus converts raw input into a PayoutStatus.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	for _, candidate := range validPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout status %q", value)
}

// PayoutMode distinguishes a single-account payout from an admin-initiated
// sweep across member accounts.
type PayoutMode string

const (
	PayoutModeIndividual PayoutMode = "individual"
	PayoutModeCombined   PayoutMode = "combined"
)

var validPayoutModes = []PayoutMode{
	PayoutModeIndividual,
	PayoutModeCombined,
}

// String implements fmt.Stringer.
func (p PayoutMode) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutMode.
func (p PayoutMode) IsValid() bool {
	for _, candidate := range validPayoutModes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePayoutMode converts raw input into a PayoutMode.
func ParsePayoutMode(value string) (PayoutMode, error) {
	for _, candidate := range validPayoutModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout mode %q", value)
}
