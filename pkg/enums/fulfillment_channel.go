package enums

import "fmt"

// FulfillmentChannel identifies who fulfilled an order. Only store-fulfilled
// orders accrue commission to the store's earnings; house-fulfilled products
// are settled by the platform directly.
type FulfillmentChannel string

const (
	FulfillmentChannelStore FulfillmentChannel = "store"
	FulfillmentChannelHouse FulfillmentChannel = "house"
)

var validFulfillmentChannels = []FulfillmentChannel{
	FulfillmentChannelStore,
	FulfillmentChannelHouse,
}

// String implements fmt.Stringer.
func (f FulfillmentChannel) String() string {
	return string(f)
}

// Accrues reports whether orders from this channel earn store commission.
func (f FulfillmentChannel) Accrues() bool {
	return f == FulfillmentChannelStore
}

// IsValid reports whether the value is a known FulfillmentChannel.
func (f FulfillmentChannel) IsValid() bool {
	for _, candidate := range validFulfillmentChannels {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFulfillmentChannel converts raw input into a FulfillmentChannel.
func ParseFulfillmentChannel(value string) (FulfillmentChannel, error) {
	for _, candidate := range validFulfillmentChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fulfillment channel %q", value)
}
