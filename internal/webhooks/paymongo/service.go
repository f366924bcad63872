package paymongowebhook

import (
	"context"

	"gorm.io/gorm"

	"github.com/jmab/shop-backend/internal/inventory"
	"github.com/jmab/shop-backend/internal/notifier"
	"github.com/jmab/shop-backend/internal/orders"
	"github.com/jmab/shop-backend/pkg/db/models"
	"github.com/jmab/shop-backend/pkg/enums"
	pkgerrors "github.com/jmab/shop-backend/pkg/errors"
	"github.com/jmab/shop-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// DuplicateFilter short-circuits events already seen recently.
type DuplicateFilter interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// ServiceParams lists the reconciler dependencies.
type ServiceParams struct {
	OrdersRepo        orders.Repository
	InventoryRepo     inventory.Repository
	TransactionRunner txRunner
	Guard             DuplicateFilter
	Events            notifier.Notifier
	Logger            *logger.Logger
}

// Service reconciles provider payment events into order state.
type Service struct {
	orders    orders.Repository
	inventory inventory.Repository
	txRunner  txRunner
	guard     DuplicateFilter
	events    notifier.Notifier
	logg      *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.OrdersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.InventoryRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	events := params.Events
	if events == nil {
		events = notifier.Noop{}
	}
	return &Service{
		orders:    params.OrdersRepo,
		inventory: params.InventoryRepo,
		txRunner:  params.TransactionRunner,
		guard:     params.Guard,
		events:    events,
		logg:      params.Logger,
	}, nil
}

// Process applies one verified webhook body. Replays and unknown event types
// are acknowledged without effect; processing failures release the duplicate
// marker so the provider's retry can land.
func (s *Service) Process(ctx context.Context, body []byte) error {
	event, err := ParseEvent(body)
	if err != nil {
		return err
	}

	switch event.Type {
	case EventPaymentPaid, EventPaymentFailed, EventPaymentRefunded, EventRefundUpdated:
	default:
		return nil
	}
	// refund.updated fires for declined refunds too; only a settled refund
	// moves the order.
	if event.Type == EventRefundUpdated && event.ResourceStatus != "succeeded" {
		return nil
	}

	if s.guard != nil {
		seen, err := s.guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			// Redis being down must not stop reconciliation.
			s.warn(ctx, "idempotency guard unavailable, falling back to db state check")
		} else if seen {
			return nil
		}
	}

	if err := s.handle(ctx, event); err != nil {
		if s.guard != nil {
			if releaseErr := s.guard.Release(ctx, event.ID); releaseErr != nil {
				s.warn(ctx, "releasing idempotency marker failed")
			}
		}
		return err
	}
	return nil
}

func (s *Service) handle(ctx context.Context, event *Event) error {
	order, err := s.resolveOrder(ctx, event)
	if err != nil {
		return err
	}
	if order == nil {
		s.warn(ctx, "webhook event matches no order, acknowledging")
		return nil
	}

	var updated *models.Order
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		locked, err := repo.FindByIDForUpdate(ctx, order.ID)
		if err != nil {
			return err
		}

		var changed bool
		switch event.Type {
		case EventPaymentPaid:
			changed, err = s.applyPaid(ctx, repo, locked, event)
		case EventPaymentFailed:
			changed, err = s.applyFailed(ctx, tx, repo, locked)
		case EventPaymentRefunded, EventRefundUpdated:
			changed, err = s.applyRefunded(ctx, tx, repo, locked, event)
		}
		if err != nil {
			return err
		}
		if changed {
			updated = locked
		}
		return nil
	})
	if err != nil {
		return err
	}

	if updated != nil {
		s.events.Notify(ctx, notifier.Event{
			Type:              notifier.EventPaymentReconciled,
			OrderID:           updated.ID,
			UserID:            updated.UserID,
			ReferenceNumber:   updated.ReferenceNumber,
			FulfillmentStatus: updated.FulfillmentStatus,
			PaymentStatus:     updated.PaymentStatus,
		})
	}
	return nil
}

// resolveOrder walks the lookup precedence: provider payment id, provider
// session id, then the newest gcash order still awaiting payment.
func (s *Service) resolveOrder(ctx context.Context, event *Event) (*models.Order, error) {
	if event.PaymentID != "" {
		order, err := s.orders.FindByGatewayPaymentID(ctx, event.PaymentID)
		if err != nil || order != nil {
			return order, err
		}
	}
	if event.SessionID != "" {
		order, err := s.orders.FindByGatewaySessionID(ctx, event.SessionID)
		if err != nil || order != nil {
			return order, err
		}
	}
	order, err := s.orders.FindLatestProcessingGcash(ctx)
	if err != nil {
		return nil, err
	}
	if order != nil {
		s.warn(ctx, "webhook order resolved by last-resort gcash fallback")
	}
	return order, nil
}

// applyPaid records the settlement. Target state already reached means a
// replay: accepted, nothing to do.
func (s *Service) applyPaid(ctx context.Context, repo orders.Repository, order *models.Order, event *Event) (bool, error) {
	if order.PaymentStatus != nil && *order.PaymentStatus == enums.PaymentStatusPaid {
		return false, nil
	}
	paid := enums.PaymentStatusPaid
	updates := map[string]any{"payment_status": paid}
	if event.PaymentID != "" {
		updates["gateway_payment_id"] = event.PaymentID
		order.GatewayPaymentID = &event.PaymentID
	}
	if err := repo.Update(ctx, order.ID, updates); err != nil {
		return false, err
	}
	order.PaymentStatus = &paid
	return true, nil
}

// applyFailed cancels the unpaid order and returns its stock. An order that
// is already cancelled keeps its state; stock is never restored twice.
func (s *Service) applyFailed(ctx context.Context, tx *gorm.DB, repo orders.Repository, order *models.Order) (bool, error) {
	if order.FulfillmentStatus == enums.FulfillmentStatusCancelled {
		return false, nil
	}
	if err := restoreOrderStock(ctx, s.inventory.WithTx(tx), order); err != nil {
		return false, err
	}
	failed := enums.PaymentStatusFailed
	if err := repo.Update(ctx, order.ID, map[string]any{
		"payment_status":     failed,
		"fulfillment_status": enums.FulfillmentStatusCancelled,
	}); err != nil {
		return false, err
	}
	order.PaymentStatus = &failed
	order.FulfillmentStatus = enums.FulfillmentStatusCancelled
	return true, nil
}

// applyRefunded marks the money returned. Orders already out the door keep
// their fulfillment progress and their stock stays consumed; anything earlier
// is cancelled with the stock returned.
func (s *Service) applyRefunded(ctx context.Context, tx *gorm.DB, repo orders.Repository, order *models.Order, event *Event) (bool, error) {
	if order.PaymentStatus != nil && *order.PaymentStatus == enums.PaymentStatusRefunded {
		return false, nil
	}

	refunded := enums.PaymentStatusRefunded
	updates := map[string]any{"payment_status": refunded}
	if event.PaymentID != "" {
		updates["gateway_payment_id"] = event.PaymentID
		order.GatewayPaymentID = &event.PaymentID
	}
	if event.RefundID != "" {
		updates["gateway_refund_id"] = event.RefundID
		order.GatewayRefundID = &event.RefundID
	}

	switch order.FulfillmentStatus {
	case enums.FulfillmentStatusOutForDelivery,
		enums.FulfillmentStatusDelivered,
		enums.FulfillmentStatusFailedDelivery,
		enums.FulfillmentStatusCancelled:
		// Post-dispatch refunds and already-cancelled orders leave
		// fulfillment and stock alone.
	default:
		if err := restoreOrderStock(ctx, s.inventory.WithTx(tx), order); err != nil {
			return false, err
		}
		updates["fulfillment_status"] = enums.FulfillmentStatusCancelled
		order.FulfillmentStatus = enums.FulfillmentStatusCancelled
	}

	if err := repo.Update(ctx, order.ID, updates); err != nil {
		return false, err
	}
	order.PaymentStatus = &refunded
	return true, nil
}

func restoreOrderStock(ctx context.Context, inv inventory.Repository, order *models.Order) error {
	for _, item := range order.Items {
		if err := inv.Restore(ctx, item.VariantID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) warn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}
