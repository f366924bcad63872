package enums

import "strings"

// RefundReason is the fixed vocabulary the payment gateway accepts on
// refund requests.
type RefundReason string

const (
	RefundReasonDuplicate           RefundReason = "duplicate"
	RefundReasonFraudulent          RefundReason = "fraudulent"
	RefundReasonRequestedByCustomer RefundReason = "requested_by_customer"
	RefundReasonOthers              RefundReason = "others"
)

var validRefundReasons = []RefundReason{
	RefundReasonDuplicate,
	RefundReasonFraudulent,
	RefundReasonRequestedByCustomer,
	RefundReasonOthers,
}

// Common operator phrasings mapped onto the gateway vocabulary.
var refundReasonSynonyms = map[string]RefundReason{
	"customer requested refund": RefundReasonRequestedByCustomer,
	"requested by customer":     RefundReasonRequestedByCustomer,
	"duplicate payment":         RefundReasonDuplicate,
	"fraud":                     RefundReasonFraudulent,
	"other":                     RefundReasonOthers,
}

// String implements fmt.Stringer.
func (r RefundReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RefundReason.
func (r RefundReason) IsValid() bool {
	for _, candidate := range validRefundReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// NormalizeRefundReason maps free text onto the gateway vocabulary.
// Unrecognized input defaults to requested_by_customer.
func NormalizeRefundReason(value string) RefundReason {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if mapped, ok := refundReasonSynonyms[normalized]; ok {
		return mapped
	}
	if reason := RefundReason(normalized); reason.IsValid() {
		return reason
	}
	return RefundReasonRequestedByCustomer
}
