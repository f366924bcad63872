package refunds

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmab/shop-backend/internal/orders"
	"github.com/jmab/shop-backend/pkg/db/models"
	"github.com/jmab/shop-backend/pkg/enums"
	pkgerrors "github.com/jmab/shop-backend/pkg/errors"
	"github.com/jmab/shop-backend/pkg/paymongo"
)

type stubOrdersRepo struct {
	order   *models.Order
	updates map[string]any
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubOrdersRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	copied := *s.order
	return &copied, nil
}

func (s *stubOrdersRepo) FindByIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.FindByID(ctx, orderID)
}

func (s *stubOrdersRepo) FindByGatewayPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) FindByGatewaySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) FindLatestProcessingGcash(ctx context.Context) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) FindByReferenceNumber(ctx context.Context, reference string) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) ListByUser(ctx context.Context, userID uuid.UUID, params orders.ListParams) ([]models.Order, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) ListAll(ctx context.Context, params orders.ListParams) ([]models.Order, error) {
	panic("not implemented")
}

func (s *stubOrdersRepo) Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	s.updates = updates
	return nil
}

type stubGateway struct {
	refunds   []paymongo.RefundParams
	refundErr error
}

func (s *stubGateway) CreateCheckoutSession(ctx context.Context, params paymongo.CheckoutSessionParams) (*paymongo.CheckoutSession, error) {
	panic("not implemented")
}

func (s *stubGateway) CreateRefund(ctx context.Context, params paymongo.RefundParams) (*paymongo.Refund, error) {
	s.refunds = append(s.refunds, params)
	if s.refundErr != nil {
		return nil, s.refundErr
	}
	return &paymongo.Refund{ID: "ref_stub", Status: "pending"}, nil
}

func (s *stubGateway) VerifySignature(body []byte, header string) error {
	panic("not implemented")
}

func paidOrder() *models.Order {
	paymentID := "pay_123"
	paid := enums.PaymentStatusPaid
	return &models.Order{
		ID:                uuid.New(),
		UserID:            uuid.New(),
		TotalCents:        25000,
		PaymentMethod:     enums.PaymentMethodGcash,
		FulfillmentStatus: enums.FulfillmentStatusProcessing,
		PaymentStatus:     &paid,
		GatewayPaymentID:  &paymentID,
		ReferenceNumber:   "order_" + uuid.NewString(),
	}
}

func newRefundService(t *testing.T, repo *stubOrdersRepo, gateway *stubGateway) Service {
	t.Helper()
	svc, err := NewService(repo, gateway, nil, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestExecuteRefundsFrozenTotal(t *testing.T) {
	repo := &stubOrdersRepo{order: paidOrder()}
	gateway := &stubGateway{}
	svc := newRefundService(t, repo, gateway)

	result, err := svc.Execute(context.Background(), Input{
		OrderID: repo.order.ID,
		Reason:  "customer requested refund",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RefundID != "ref_stub" {
		t.Fatalf("refund id = %q", result.RefundID)
	}

	if len(gateway.refunds) != 1 {
		t.Fatalf("expected one gateway call, got %d", len(gateway.refunds))
	}
	call := gateway.refunds[0]
	if call.PaymentID != "pay_123" || call.AmountCents != 25000 {
		t.Fatalf("gateway call = %+v", call)
	}
	if call.Reason != "requested_by_customer" {
		t.Fatalf("reason = %q, want normalized requested_by_customer", call.Reason)
	}

	if repo.updates["gateway_refund_id"] != "ref_stub" {
		t.Fatalf("refund id not persisted: %v", repo.updates)
	}
	if _, ok := repo.updates["payment_status"]; ok {
		t.Fatal("payment status must not change synchronously")
	}
}

func TestExecuteRejectsUnpaidOrderWithoutGatewayCall(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(order *models.Order)
	}{
		{"no payment id", func(o *models.Order) { o.GatewayPaymentID = nil }},
		{"never paid", func(o *models.Order) { o.PaymentStatus = nil }},
		{"payment failed", func(o *models.Order) {
			failed := enums.PaymentStatusFailed
			o.PaymentStatus = &failed
		}},
		{"already refunded", func(o *models.Order) {
			refunded := enums.PaymentStatusRefunded
			o.PaymentStatus = &refunded
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := paidOrder()
			tc.mutate(order)
			repo := &stubOrdersRepo{order: order}
			gateway := &stubGateway{}
			svc := newRefundService(t, repo, gateway)

			_, err := svc.Execute(context.Background(), Input{OrderID: order.ID, Reason: "others"})
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
				t.Fatalf("expected state conflict, got %v", err)
			}
			if len(gateway.refunds) != 0 {
				t.Fatal("gateway must not be called for unrefundable orders")
			}
		})
	}
}

func TestExecuteRejectsDoubleInitiation(t *testing.T) {
	order := paidOrder()
	existing := "ref_existing"
	order.GatewayRefundID = &existing
	repo := &stubOrdersRepo{order: order}
	gateway := &stubGateway{}
	svc := newRefundService(t, repo, gateway)

	_, err := svc.Execute(context.Background(), Input{OrderID: order.ID})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(gateway.refunds) != 0 {
		t.Fatal("gateway must not be called twice")
	}
}

func TestExecutePropagatesGatewayFailure(t *testing.T) {
	repo := &stubOrdersRepo{order: paidOrder()}
	gateway := &stubGateway{refundErr: pkgerrors.New(pkgerrors.CodeDependency, "provider unreachable")}
	svc := newRefundService(t, repo, gateway)

	_, err := svc.Execute(context.Background(), Input{OrderID: repo.order.ID})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if repo.updates != nil {
		t.Fatal("nothing must be persisted when the provider call fails")
	}
}

func TestExecuteUnknownOrder(t *testing.T) {
	svc := newRefundService(t, &stubOrdersRepo{}, &stubGateway{})

	_, err := svc.Execute(context.Background(), Input{OrderID: uuid.New()})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
