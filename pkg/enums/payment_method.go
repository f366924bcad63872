package enums

import "fmt"

// PaymentMethod is how the buyer chose to pay at checkout.
type PaymentMethod string

const (
	PaymentMethodGcash PaymentMethod = "gcash"
	PaymentMethodCOD   PaymentMethod = "cod"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodGcash,
	PaymentMethodCOD,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// RequiresHostedSession reports whether checkout must create a hosted
// payment session with the gateway for this method.
func (p PaymentMethod) RequiresHostedSession() bool {
	return p == PaymentMethodGcash
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
