package enums

import "fmt"

// CrewKind classifies a staff membership into the payable crew it belongs to.
// Legacy memberships created before crews were introduced carry no crew at all.
type CrewKind string

const (
	CrewKindDriver CrewKind = "driver"
	CrewKindVendor CrewKind = "vendor"
)

var validCrewKinds = []CrewKind{
	CrewKindDriver,
	CrewKindVendor,
}

// String implements fmt.Stringer.
func (c CrewKind) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CrewKind.
func (c CrewKind) IsValid() bool {
	for _, candidate := range validCrewKinds {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCrewKind converts raw input into a CrewKind.
func ParseCrewKind(value string) (CrewKind, error) {
	for _, candidate := range validCrewKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid crew kind %q", value)
}
