package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jmab/shop-backend/api/middleware"
	"github.com/jmab/shop-backend/internal/checkout"
	internalorders "github.com/jmab/shop-backend/internal/orders"
	"github.com/jmab/shop-backend/internal/refunds"
	"github.com/jmab/shop-backend/pkg/db/models"
	"github.com/jmab/shop-backend/pkg/enums"
	pkgerrors "github.com/jmab/shop-backend/pkg/errors"
)

type stubCheckoutService struct {
	execute func(ctx context.Context, input checkout.Input) (*checkout.Result, error)
}

func (s *stubCheckoutService) Execute(ctx context.Context, input checkout.Input) (*checkout.Result, error) {
	if s.execute != nil {
		return s.execute(ctx, input)
	}
	return &checkout.Result{Order: &models.Order{}}, nil
}

type stubOrdersService struct {
	update   func(ctx context.Context, input internalorders.UpdateStatusInput) (*models.Order, error)
	get      func(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	listUser func(ctx context.Context, userID uuid.UUID, params internalorders.ListParams) ([]models.Order, error)
	listAll  func(ctx context.Context, params internalorders.ListParams) ([]models.Order, error)
}

func (s *stubOrdersService) UpdateFulfillmentStatus(ctx context.Context, input internalorders.UpdateStatusInput) (*models.Order, error) {
	if s.update != nil {
		return s.update(ctx, input)
	}
	return &models.Order{}, nil
}

func (s *stubOrdersService) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.get != nil {
		return s.get(ctx, orderID)
	}
	return &models.Order{}, nil
}

func (s *stubOrdersService) ListUserOrders(ctx context.Context, userID uuid.UUID, params internalorders.ListParams) ([]models.Order, error) {
	if s.listUser != nil {
		return s.listUser(ctx, userID, params)
	}
	return nil, nil
}

func (s *stubOrdersService) ListOrders(ctx context.Context, params internalorders.ListParams) ([]models.Order, error) {
	if s.listAll != nil {
		return s.listAll(ctx, params)
	}
	return nil, nil
}

type stubRefundsService struct {
	execute func(ctx context.Context, input refunds.Input) (*refunds.Result, error)
}

func (s *stubRefundsService) Execute(ctx context.Context, input refunds.Input) (*refunds.Result, error) {
	if s.execute != nil {
		return s.execute(ctx, input)
	}
	return &refunds.Result{Order: &models.Order{}}, nil
}

func TestCheckoutCreatesOrder(t *testing.T) {
	userID := uuid.New()
	cartItemID := uuid.New()
	addressID := uuid.New()

	var captured checkout.Input
	svc := &stubCheckoutService{
		execute: func(ctx context.Context, input checkout.Input) (*checkout.Result, error) {
			captured = input
			return &checkout.Result{
				Order:       &models.Order{ID: uuid.New(), UserID: input.UserID},
				CheckoutURL: "https://checkout.example/cs_1",
			}, nil
		},
	}

	body := fmt.Sprintf(`{"cart_item_ids":[%q],"payment_method":"gcash","address_id":%q}`, cartItemID, addressID)
	req := requestWithUserID(http.MethodPost, "/api/v1/users/"+userID.String()+"/orders", userID, strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	rec := httptest.NewRecorder()

	Checkout(svc, nil, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if captured.UserID != userID {
		t.Fatalf("expected user %s, got %s", userID, captured.UserID)
	}
	if len(captured.CartItemIDs) != 1 || captured.CartItemIDs[0] != cartItemID {
		t.Fatalf("cart item ids not forwarded: %v", captured.CartItemIDs)
	}
	if captured.AddressID != addressID {
		t.Fatalf("address id not forwarded")
	}

	var envelope struct {
		Data struct {
			CheckoutURL string `json:"checkout_url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.CheckoutURL != "https://checkout.example/cs_1" {
		t.Fatalf("expected checkout url in response, got %q", envelope.Data.CheckoutURL)
	}
}

func TestCheckoutRejectsBadBody(t *testing.T) {
	svc := &stubCheckoutService{}

	cases := map[string]string{
		"missing cart items":  `{"payment_method":"cod","address_id":"` + uuid.NewString() + `"}`,
		"malformed cart item": `{"cart_item_ids":["nope"],"payment_method":"cod","address_id":"` + uuid.NewString() + `"}`,
		"unknown field":       `{"cart_item_ids":["` + uuid.NewString() + `"],"payment_method":"cod","address_id":"` + uuid.NewString() + `","extra":true}`,
	}

	userID := uuid.New()
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := requestWithUserID(http.MethodPost, "/api/v1/users/"+userID.String()+"/orders", userID, strings.NewReader(body))
			req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
			rec := httptest.NewRecorder()

			Checkout(svc, nil, nil).ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCheckoutRequiresUserContext(t *testing.T) {
	userID := uuid.New()
	body := fmt.Sprintf(`{"cart_item_ids":[%q],"payment_method":"cod","address_id":%q}`, uuid.New(), uuid.New())
	req := requestWithUserID(http.MethodPost, "/api/v1/users/"+userID.String()+"/orders", userID, strings.NewReader(body))
	rec := httptest.NewRecorder()

	Checkout(&stubCheckoutService{}, nil, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCheckoutRejectsMismatchedUser(t *testing.T) {
	target := uuid.New()
	body := fmt.Sprintf(`{"cart_item_ids":[%q],"payment_method":"cod","address_id":%q}`, uuid.New(), uuid.New())
	req := requestWithUserID(http.MethodPost, "/api/v1/users/"+target.String()+"/orders", target, strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	req = req.WithContext(middleware.WithRole(req.Context(), string(enums.UserRoleCustomer)))
	rec := httptest.NewRecorder()

	Checkout(&stubCheckoutService{}, nil, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestListUserOrdersForwardsFilters(t *testing.T) {
	userID := uuid.New()
	var capturedUser uuid.UUID
	var capturedParams internalorders.ListParams
	svc := &stubOrdersService{
		listUser: func(ctx context.Context, uid uuid.UUID, params internalorders.ListParams) ([]models.Order, error) {
			capturedUser = uid
			capturedParams = params
			return []models.Order{{ID: uuid.New()}}, nil
		},
	}

	req := requestWithUserID(http.MethodGet, "/api/v1/users/"+userID.String()+"/orders?limit=10&offset=20", userID, nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	rec := httptest.NewRecorder()

	ListUserOrders(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if capturedUser != userID {
		t.Fatalf("expected user %s, got %s", userID, capturedUser)
	}
	if capturedParams.Limit != 10 || capturedParams.Offset != 20 {
		t.Fatalf("params not forwarded: %+v", capturedParams)
	}
}

func TestAdminListParsesStatusFilter(t *testing.T) {
	var captured internalorders.ListParams
	svc := &stubOrdersService{
		listAll: func(ctx context.Context, params internalorders.ListParams) ([]models.Order, error) {
			captured = params
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?fulfillment_status=processing", nil)
	rec := httptest.NewRecorder()

	AdminList(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if captured.FulfillmentStatus == nil || *captured.FulfillmentStatus != enums.FulfillmentStatusProcessing {
		t.Fatalf("status filter not parsed: %+v", captured.FulfillmentStatus)
	}
}

func TestAdminListRejectsUnknownStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?fulfillment_status=shipped", nil)
	rec := httptest.NewRecorder()

	AdminList(&stubOrdersService{}, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDetailDeniesOtherCustomersOrder(t *testing.T) {
	orderID := uuid.New()
	owner := uuid.New()
	svc := &stubOrdersService{
		get: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
			return &models.Order{ID: id, UserID: owner}, nil
		},
	}

	req := requestWithOrderID(http.MethodGet, "/api/v1/orders/"+orderID.String(), orderID, nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	req = req.WithContext(middleware.WithRole(req.Context(), string(enums.UserRoleCustomer)))
	rec := httptest.NewRecorder()

	Detail(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestDetailAllowsAdminReadingAnyOrder(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{
		get: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
			return &models.Order{ID: id, UserID: uuid.New()}, nil
		},
	}

	req := requestWithOrderID(http.MethodGet, "/api/v1/orders/"+orderID.String(), orderID, nil)
	req = req.WithContext(middleware.WithRole(req.Context(), string(enums.UserRoleAdmin)))
	rec := httptest.NewRecorder()

	Detail(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestUpdateStatusForwardsTarget(t *testing.T) {
	orderID := uuid.New()
	var captured internalorders.UpdateStatusInput
	svc := &stubOrdersService{
		update: func(ctx context.Context, input internalorders.UpdateStatusInput) (*models.Order, error) {
			captured = input
			return &models.Order{ID: input.OrderID}, nil
		},
	}

	req := requestWithOrderID(http.MethodPatch, "/api/v1/orders/"+orderID.String()+"/status", orderID,
		strings.NewReader(`{"fulfillment_status":"out for delivery"}`))
	rec := httptest.NewRecorder()

	UpdateStatus(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if captured.OrderID != orderID || captured.Target != "out for delivery" {
		t.Fatalf("input not forwarded: %+v", captured)
	}
}

func TestUpdateStatusSurfacesTransitionConflict(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{
		update: func(ctx context.Context, input internalorders.UpdateStatusInput) (*models.Order, error) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transition not allowed")
		},
	}

	req := requestWithOrderID(http.MethodPatch, "/api/v1/orders/"+orderID.String()+"/status", orderID,
		strings.NewReader(`{"fulfillment_status":"delivered"}`))
	rec := httptest.NewRecorder()

	UpdateStatus(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestRefundForwardsReason(t *testing.T) {
	orderID := uuid.New()
	var captured refunds.Input
	svc := &stubRefundsService{
		execute: func(ctx context.Context, input refunds.Input) (*refunds.Result, error) {
			captured = input
			return &refunds.Result{
				Order:    &models.Order{ID: input.OrderID},
				RefundID: "ref_1",
				Status:   "pending",
			}, nil
		},
	}

	req := requestWithOrderID(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/refund", orderID,
		strings.NewReader(`{"reason":"damaged on arrival"}`))
	rec := httptest.NewRecorder()

	Refund(svc, nil, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d (%s)", rec.Code, rec.Body.String())
	}
	if captured.OrderID != orderID || captured.Reason != "damaged on arrival" {
		t.Fatalf("input not forwarded: %+v", captured)
	}

	var envelope struct {
		Data struct {
			RefundID string `json:"refund_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.RefundID != "ref_1" {
		t.Fatalf("expected refund id in response, got %q", envelope.Data.RefundID)
	}
}

func TestRefundRejectsInvalidOrderID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/nope/refund", strings.NewReader(`{}`))
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("orderId", "nope")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	rec := httptest.NewRecorder()

	Refund(&stubRefundsService{}, nil, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func requestWithOrderID(method, target string, orderID uuid.UUID, body *strings.Reader) *http.Request {
	return requestWithParam(method, target, "orderId", orderID.String(), body)
}

func requestWithUserID(method, target string, userID uuid.UUID, body *strings.Reader) *http.Request {
	return requestWithParam(method, target, "userId", userID.String(), body)
}

func requestWithParam(method, target, key, value string, body *strings.Reader) *http.Request {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, body)
	}
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}
