package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jmab/shop-backend/pkg/enums"
	"github.com/jmab/shop-backend/pkg/logger"
)

// Event types published on the order-events channel.
const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
	EventPaymentReconciled  = "payment.reconciled"
	EventRefundInitiated    = "refund.initiated"
)

// Event is the outbound order-lifecycle notification payload.
type Event struct {
	Type              string                  `json:"type"`
	OrderID           uuid.UUID               `json:"order_id"`
	UserID            uuid.UUID               `json:"user_id"`
	ReferenceNumber   string                  `json:"reference_number"`
	FulfillmentStatus enums.FulfillmentStatus `json:"fulfillment_status"`
	PaymentStatus     *enums.PaymentStatus    `json:"payment_status,omitempty"`
	OccurredAt        time.Time               `json:"occurred_at"`
}

// Notifier is a one-way outbound port. Implementations must never block order
// processing: publish failures are logged and dropped. Callers invoke it only
// after the surrounding transaction has committed.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

type publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

type redisNotifier struct {
	pub     publisher
	channel string
	logg    *logger.Logger
}

// NewRedisNotifier publishes order events on a Redis channel.
func NewRedisNotifier(pub publisher, channel string, logg *logger.Logger) Notifier {
	return &redisNotifier{pub: pub, channel: channel, logg: logg}
}

func (n *redisNotifier) Notify(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		if n.logg != nil {
			n.logg.Error(ctx, "marshaling order event", err)
		}
		return
	}
	if err := n.pub.Publish(ctx, n.channel, payload); err != nil && n.logg != nil {
		ctx = n.logg.WithField(ctx, "event_type", event.Type)
		n.logg.Error(ctx, "publishing order event", err)
	}
}

// Noop discards every event. Used when eventing is not configured.
type Noop struct{}

func (Noop) Notify(context.Context, Event) {}
