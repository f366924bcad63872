package paymongowebhook

import (
	"encoding/json"
	"strings"

	pkgerrors "github.com/jmab/shop-backend/pkg/errors"
)

// Event types the reconciler acts on. Anything else is acknowledged untouched.
const (
	EventPaymentPaid     = "payment.paid"
	EventPaymentFailed   = "payment.failed"
	EventPaymentRefunded = "payment.refunded"
	EventRefundUpdated   = "refund.updated"
)

// Event is the normalized view of a PayMongo webhook payload.
type Event struct {
	ID              string
	Type            string
	ResourceID      string
	ResourceStatus  string
	PaymentID       string
	SessionID       string
	PaymentIntentID string
	RefundID        string
}

type rawEvent struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Type string `json:"type"`
			Data struct {
				ID         string `json:"id"`
				Attributes struct {
					Status            string `json:"status"`
					PaymentIntentID   string `json:"payment_intent_id"`
					PaymentID         string `json:"payment_id"`
					CheckoutSessionID string `json:"checkout_session_id"`
				} `json:"attributes"`
			} `json:"data"`
		} `json:"attributes"`
	} `json:"data"`
}

// ParseEvent decodes a verified webhook body. Callers must have checked the
// signature first; this function trusts its input.
func ParseEvent(body []byte) (*Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decoding webhook payload")
	}
	if raw.Data.ID == "" || raw.Data.Attributes.Type == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook payload missing event id or type")
	}

	resource := raw.Data.Attributes.Data
	event := &Event{
		ID:              raw.Data.ID,
		Type:            strings.ToLower(raw.Data.Attributes.Type),
		ResourceID:      resource.ID,
		ResourceStatus:  resource.Attributes.Status,
		PaymentID:       resource.Attributes.PaymentID,
		SessionID:       resource.Attributes.CheckoutSessionID,
		PaymentIntentID: resource.Attributes.PaymentIntentID,
	}

	switch {
	case strings.HasPrefix(resource.ID, "pay_"):
		event.PaymentID = resource.ID
	case strings.HasPrefix(resource.ID, "cs_"):
		event.SessionID = resource.ID
	case strings.HasPrefix(resource.ID, "ref_"):
		event.RefundID = resource.ID
	}
	return event, nil
}
