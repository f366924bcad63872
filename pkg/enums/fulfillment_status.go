package enums

import (
	"fmt"
	"strings"
)

// FulfillmentStatus tracks the operator-driven delivery lifecycle of an order.
type FulfillmentStatus string

const (
	FulfillmentStatusPending        FulfillmentStatus = "pending"
	FulfillmentStatusProcessing     FulfillmentStatus = "processing"
	FulfillmentStatusOutForDelivery FulfillmentStatus = "out for delivery"
	FulfillmentStatusDelivered      FulfillmentStatus = "delivered"
	FulfillmentStatusFailedDelivery FulfillmentStatus = "failed delivery"
	FulfillmentStatusCancelled      FulfillmentStatus = "cancelled"
)

var validFulfillmentStatuses = []FulfillmentStatus{
	FulfillmentStatusPending,
	FulfillmentStatusProcessing,
	FulfillmentStatusOutForDelivery,
	FulfillmentStatusDelivered,
	FulfillmentStatusFailedDelivery,
	FulfillmentStatusCancelled,
}

// String implements fmt.Stringer.
func (f FulfillmentStatus) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FulfillmentStatus.
func (f FulfillmentStatus) IsValid() bool {
	for _, candidate := range validFulfillmentStatuses {
		if candidate == f {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from the status.
func (f FulfillmentStatus) IsTerminal() bool {
	return f == FulfillmentStatusDelivered || f == FulfillmentStatusCancelled
}

// ParseFulfillmentStatus converts raw input into a FulfillmentStatus.
// Input is case-insensitive; surrounding whitespace is ignored.
func ParseFulfillmentStatus(value string) (FulfillmentStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validFulfillmentStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fulfillment status %q", value)
}
