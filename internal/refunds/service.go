package refunds

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jmab/shop-backend/internal/notifier"
	"github.com/jmab/shop-backend/internal/orders"
	"github.com/jmab/shop-backend/pkg/db/models"
	"github.com/jmab/shop-backend/pkg/enums"
	pkgerrors "github.com/jmab/shop-backend/pkg/errors"
	"github.com/jmab/shop-backend/pkg/logger"
	"github.com/jmab/shop-backend/pkg/paymongo"
)

// Input asks for a full refund of one order. Reason is free text; it maps
// onto the provider's fixed vocabulary.
type Input struct {
	OrderID uuid.UUID
	Reason  string
}

// Result reports the provider-accepted refund. The order's payment status is
// deliberately untouched here; it flips to refunded when the provider's
// webhook lands.
type Result struct {
	Order    *models.Order
	RefundID string
	Status   string
}

// Service initiates provider refunds for paid orders.
type Service interface {
	Execute(ctx context.Context, input Input) (*Result, error)
}

type service struct {
	orders  orders.Repository
	gateway paymongo.Gateway
	events  notifier.Notifier
	logg    *logger.Logger
}

// NewService builds the refund initiator.
func NewService(orderRepo orders.Repository, gateway paymongo.Gateway, events notifier.Notifier, logg *logger.Logger) (Service, error) {
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if events == nil {
		events = notifier.Noop{}
	}
	return &service{orders: orderRepo, gateway: gateway, events: events, logg: logg}, nil
}

// Execute refunds the order's frozen total. Orders that were never paid
// through the provider are rejected before any network call.
func (s *service) Execute(ctx context.Context, input Input) (*Result, error) {
	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	if order.GatewayPaymentID == nil || *order.GatewayPaymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no provider payment to refund")
	}
	if order.PaymentStatus == nil || *order.PaymentStatus != enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only paid orders can be refunded").
			WithDetails(map[string]any{"payment_status": order.PaymentStatus})
	}
	if order.GatewayRefundID != nil && *order.GatewayRefundID != "" {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "refund already initiated").
			WithDetails(map[string]any{"refund_id": *order.GatewayRefundID})
	}

	reason := enums.NormalizeRefundReason(input.Reason)
	refund, err := s.gateway.CreateRefund(ctx, paymongo.RefundParams{
		PaymentID:   *order.GatewayPaymentID,
		AmountCents: order.TotalCents,
		Reason:      reason.String(),
	})
	if err != nil {
		return nil, err
	}

	if err := s.orders.Update(ctx, order.ID, map[string]any{"gateway_refund_id": refund.ID}); err != nil {
		// The provider accepted the refund; the webhook will still reconcile
		// the payment status even though the id write failed.
		if s.logg != nil {
			ctx = s.logg.WithOrderID(ctx, order.ID.String())
			s.logg.Error(ctx, "recording refund id failed", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording refund id").
			WithDetails(map[string]any{"refund_id": refund.ID})
	}
	order.GatewayRefundID = &refund.ID

	s.events.Notify(ctx, notifier.Event{
		Type:              notifier.EventRefundInitiated,
		OrderID:           order.ID,
		UserID:            order.UserID,
		ReferenceNumber:   order.ReferenceNumber,
		FulfillmentStatus: order.FulfillmentStatus,
		PaymentStatus:     order.PaymentStatus,
	})

	return &Result{Order: order, RefundID: refund.ID, Status: refund.Status}, nil
}
