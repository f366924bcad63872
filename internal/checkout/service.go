package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmab/shop-backend/internal/cart"
	"github.com/jmab/shop-backend/internal/inventory"
	"github.com/jmab/shop-backend/internal/notifier"
	"github.com/jmab/shop-backend/internal/orders"
	"github.com/jmab/shop-backend/internal/users"
	"github.com/jmab/shop-backend/pkg/db/models"
	"github.com/jmab/shop-backend/pkg/enums"
	pkgerrors "github.com/jmab/shop-backend/pkg/errors"
	"github.com/jmab/shop-backend/pkg/logger"
	"github.com/jmab/shop-backend/pkg/paymongo"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Input is a checkout request for a set of the user's cart lines.
type Input struct {
	UserID        uuid.UUID
	CartItemIDs   []uuid.UUID
	PaymentMethod string
	AddressID     uuid.UUID
}

// Result carries the committed order. CheckoutURL is set only for gcash,
// where the purchaser must finish payment on the hosted session page.
type Result struct {
	Order       *models.Order
	CheckoutURL string
}

// URLs are the redirect targets handed to the payment provider.
type URLs struct {
	Success string
	Cancel  string
}

// Service turns cart lines into orders.
type Service interface {
	Execute(ctx context.Context, input Input) (*Result, error)
}

type service struct {
	carts     cart.Repository
	orders    orders.Repository
	inventory inventory.Repository
	users     users.Repository
	tx        txRunner
	gateway   paymongo.Gateway
	urls      URLs
	events    notifier.Notifier
	logg      *logger.Logger
}

// NewService builds the checkout orchestrator.
func NewService(
	carts cart.Repository,
	orderRepo orders.Repository,
	inv inventory.Repository,
	userRepo users.Repository,
	tx txRunner,
	gateway paymongo.Gateway,
	urls URLs,
	events notifier.Notifier,
	logg *logger.Logger,
) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if events == nil {
		events = notifier.Noop{}
	}
	return &service{
		carts:     carts,
		orders:    orderRepo,
		inventory: inv,
		users:     userRepo,
		tx:        tx,
		gateway:   gateway,
		urls:      urls,
		events:    events,
		logg:      logg,
	}, nil
}

// Execute places an order from the user's selected cart lines. The order
// insert, stock decrements, and cart cleanup commit atomically; any
// insufficient stock aborts the whole checkout. For gcash the hosted session
// is created only after the commit, so a provider outage can never undo a
// placed order.
func (s *service) Execute(ctx context.Context, input Input) (*Result, error) {
	method, err := enums.ParsePaymentMethod(input.PaymentMethod)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
			WithDetails(map[string]any{"requested": input.PaymentMethod})
	}
	if len(input.CartItemIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "missing cart item ids")
	}

	address, err := s.users.FindAddressForUser(ctx, input.AddressID, input.UserID)
	if err != nil {
		return nil, err
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		lines, err := s.carts.WithTx(tx).FindForCheckout(ctx, input.UserID, input.CartItemIDs)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no cart items found for user")
		}
		if len(lines) != len(input.CartItemIDs) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "some cart items do not belong to the user")
		}

		order = buildOrder(input.UserID, method, address, lines)
		if _, err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating order")
		}

		inv := s.inventory.WithTx(tx)
		for _, line := range lines {
			if err := inv.Decrement(ctx, line.VariantID, line.Quantity); err != nil {
				return err
			}
		}

		return s.carts.WithTx(tx).DeleteByIDs(ctx, input.CartItemIDs)
	})
	if err != nil {
		return nil, err
	}

	s.events.Notify(ctx, notifier.Event{
		Type:              notifier.EventOrderPlaced,
		OrderID:           order.ID,
		UserID:            order.UserID,
		ReferenceNumber:   order.ReferenceNumber,
		FulfillmentStatus: order.FulfillmentStatus,
	})

	result := &Result{Order: order}
	if !method.RequiresHostedSession() {
		return result, nil
	}

	checkoutURL, err := s.openPaymentSession(ctx, order)
	if err != nil {
		// The order is committed and payable; only the session link failed.
		return nil, err
	}
	result.CheckoutURL = checkoutURL
	return result, nil
}

func (s *service) openPaymentSession(ctx context.Context, order *models.Order) (string, error) {
	billingName := ""
	if purchaser, err := s.users.FindByID(ctx, order.UserID); err == nil {
		billingName = strings.TrimSpace(purchaser.FirstName + " " + purchaser.LastName)
	}

	lineItems := make([]paymongo.LineItem, 0, len(order.Items))
	for _, item := range order.Items {
		name := item.ProductName
		if item.Size != nil && *item.Size != "" {
			name = fmt.Sprintf("%s (%s)", name, *item.Size)
		}
		lineItems = append(lineItems, paymongo.LineItem{
			Name:        name,
			AmountCents: item.UnitPriceCents,
			Quantity:    item.Quantity,
		})
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, paymongo.CheckoutSessionParams{
		LineItems:       lineItems,
		BillingName:     billingName,
		ReferenceNumber: order.ReferenceNumber,
		Description:     "Order " + order.ReferenceNumber,
		SuccessURL:      s.urls.Success,
		CancelURL:       s.urls.Cancel,
	})
	if err != nil {
		if s.logg != nil {
			ctx = s.logg.WithOrderID(ctx, order.ID.String())
			s.logg.Error(ctx, "payment session creation failed after checkout commit", err)
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment session unavailable").
			WithDetails(map[string]any{"order_id": order.ID.String()})
	}

	if err := s.orders.Update(ctx, order.ID, map[string]any{"gateway_session_id": session.ID}); err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "persisting gateway session id failed", err)
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "linking payment session").
			WithDetails(map[string]any{"order_id": order.ID.String()})
	}
	order.GatewaySessionID = &session.ID
	return session.CheckoutURL, nil
}

func buildOrder(userID uuid.UUID, method enums.PaymentMethod, address *models.UserAddress, lines []cart.CheckoutLine) *models.Order {
	status := enums.FulfillmentStatusPending
	if method.RequiresHostedSession() {
		status = enums.FulfillmentStatusProcessing
	}

	items := make([]models.OrderItem, 0, len(lines))
	total := 0
	for _, line := range lines {
		total += line.PriceCents * line.Quantity
		items = append(items, models.OrderItem{
			ID:             uuid.New(),
			VariantID:      line.VariantID,
			ProductName:    line.ProductName,
			Size:           line.Size,
			Quantity:       line.Quantity,
			UnitPriceCents: line.PriceCents,
		})
	}

	return &models.Order{
		ID:                uuid.New(),
		UserID:            userID,
		TotalCents:        total,
		PaymentMethod:     method,
		FulfillmentStatus: status,
		ReferenceNumber:   "order_" + uuid.NewString(),
		HomeAddress:       address.HomeAddress,
		Barangay:          address.Barangay,
		City:              address.City,
		Items:             items,
	}
}
