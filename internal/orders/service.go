package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmab/shop-backend/internal/inventory"
	"github.com/jmab/shop-backend/internal/notifier"
	"github.com/jmab/shop-backend/pkg/db/models"
	"github.com/jmab/shop-backend/pkg/enums"
	pkgerrors "github.com/jmab/shop-backend/pkg/errors"
	"github.com/jmab/shop-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// allowedTransitions is the full fulfillment lifecycle. Delivered and
// cancelled are terminal; failed delivery can be retried or given up on.
var allowedTransitions = map[enums.FulfillmentStatus][]enums.FulfillmentStatus{
	enums.FulfillmentStatusPending: {
		enums.FulfillmentStatusProcessing,
		enums.FulfillmentStatusOutForDelivery,
		enums.FulfillmentStatusCancelled,
	},
	enums.FulfillmentStatusProcessing: {
		enums.FulfillmentStatusOutForDelivery,
		enums.FulfillmentStatusCancelled,
	},
	enums.FulfillmentStatusOutForDelivery: {
		enums.FulfillmentStatusDelivered,
		enums.FulfillmentStatusFailedDelivery,
	},
	enums.FulfillmentStatusFailedDelivery: {
		enums.FulfillmentStatusOutForDelivery,
		enums.FulfillmentStatusCancelled,
	},
	enums.FulfillmentStatusDelivered: nil,
	enums.FulfillmentStatusCancelled: nil,
}

func transitionAllowed(from, to enums.FulfillmentStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// UpdateStatusInput carries a requested fulfillment transition.
type UpdateStatusInput struct {
	OrderID uuid.UUID
	Target  string
}

// Service drives the fulfillment lifecycle and order reads.
type Service interface {
	UpdateFulfillmentStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, params ListParams) ([]models.Order, error)
	ListOrders(ctx context.Context, params ListParams) ([]models.Order, error)
}

type service struct {
	repo      Repository
	inventory inventory.Repository
	tx        txRunner
	events    notifier.Notifier
	logg      *logger.Logger
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, inv inventory.Repository, tx txRunner, events notifier.Notifier, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if events == nil {
		events = notifier.Noop{}
	}
	return &service{repo: repo, inventory: inv, tx: tx, events: events, logg: logg}, nil
}

// UpdateFulfillmentStatus applies one transition from the lifecycle table.
// Moving to cancelled restores stock and marks the payment failed; delivering
// a cash-on-delivery order marks it paid. All effects share one transaction.
func (s *service) UpdateFulfillmentStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	target, err := enums.ParseFulfillmentStatus(input.Target)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid fulfillment status").
			WithDetails(map[string]any{"requested": input.Target})
	}

	var updated *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if !transitionAllowed(order.FulfillmentStatus, target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "fulfillment transition not allowed").
				WithDetails(map[string]any{
					"current":   order.FulfillmentStatus.String(),
					"requested": target.String(),
					"allowed":   allowedTransitions[order.FulfillmentStatus],
				})
		}

		updates := map[string]any{"fulfillment_status": target}
		switch {
		case target == enums.FulfillmentStatusCancelled:
			if err := restoreOrderStock(ctx, s.inventory.WithTx(tx), order); err != nil {
				return err
			}
			failed := enums.PaymentStatusFailed
			updates["payment_status"] = failed
			order.PaymentStatus = &failed
		case target == enums.FulfillmentStatusDelivered && order.PaymentMethod == enums.PaymentMethodCOD:
			paid := enums.PaymentStatusPaid
			updates["payment_status"] = paid
			order.PaymentStatus = &paid
		}

		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return err
		}
		order.FulfillmentStatus = target
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Notify(ctx, notifier.Event{
		Type:              notifier.EventOrderStatusChanged,
		OrderID:           updated.ID,
		UserID:            updated.UserID,
		ReferenceNumber:   updated.ReferenceNumber,
		FulfillmentStatus: updated.FulfillmentStatus,
		PaymentStatus:     updated.PaymentStatus,
	})
	return updated, nil
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.repo.FindByID(ctx, orderID)
}

func (s *service) ListUserOrders(ctx context.Context, userID uuid.UUID, params ListParams) ([]models.Order, error) {
	return s.repo.ListByUser(ctx, userID, params)
}

func (s *service) ListOrders(ctx context.Context, params ListParams) ([]models.Order, error) {
	return s.repo.ListAll(ctx, params)
}

// restoreOrderStock returns every item snapshot's quantity to its variant.
func restoreOrderStock(ctx context.Context, inv inventory.Repository, order *models.Order) error {
	for _, item := range order.Items {
		if err := inv.Restore(ctx, item.VariantID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}
