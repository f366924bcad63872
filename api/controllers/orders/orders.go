package orders

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jmab/shop-backend/api/middleware"
	"github.com/jmab/shop-backend/api/responses"
	"github.com/jmab/shop-backend/api/validators"
	"github.com/jmab/shop-backend/internal/checkout"
	internalorders "github.com/jmab/shop-backend/internal/orders"
	"github.com/jmab/shop-backend/internal/refunds"
	"github.com/jmab/shop-backend/pkg/enums"
	pkgerrors "github.com/jmab/shop-backend/pkg/errors"
	"github.com/jmab/shop-backend/pkg/logger"
	"github.com/jmab/shop-backend/pkg/metrics"
)

const maxListLimit = 100

type checkoutRequest struct {
	CartItemIDs   []string `json:"cart_item_ids" validate:"required,min=1,dive,uuid4"`
	PaymentMethod string   `json:"payment_method" validate:"required"`
	AddressID     string   `json:"address_id" validate:"required,uuid4"`
}

// Checkout converts the caller's selected cart lines into an order.
func Checkout(svc checkout.Service, m *metrics.OrderMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := matchedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cartItemIDs := make([]uuid.UUID, 0, len(payload.CartItemIDs))
		for _, raw := range payload.CartItemIDs {
			id, err := uuid.Parse(strings.TrimSpace(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cart item id"))
				return
			}
			cartItemIDs = append(cartItemIDs, id)
		}

		addressID, err := uuid.Parse(strings.TrimSpace(payload.AddressID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address id"))
			return
		}

		start := time.Now()
		result, err := svc.Execute(r.Context(), checkout.Input{
			UserID:        userID,
			CartItemIDs:   cartItemIDs,
			PaymentMethod: payload.PaymentMethod,
			AddressID:     addressID,
		})
		if m != nil {
			m.ObserveCheckout(strings.ToLower(strings.TrimSpace(payload.PaymentMethod)), time.Since(start), err == nil)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		body := map[string]any{"order": result.Order}
		if result.CheckoutURL != "" {
			body["checkout_url"] = result.CheckoutURL
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, body)
	}
}

// ListUserOrders returns one user's orders, newest first. Customers may only
// read their own.
func ListUserOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		userID, err := matchedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := buildListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListUserOrders(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AdminList returns all orders with optional fulfillment status filtering.
func AdminList(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		params, err := buildListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListOrders(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns one order. Customers may only read their own.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if middleware.RoleFromContext(r.Context()) != string(enums.UserRoleAdmin) {
			userID, err := actorUserID(r)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if order.UserID != userID {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user"))
				return
			}
		}

		responses.WriteSuccess(w, order)
	}
}

type updateStatusRequest struct {
	FulfillmentStatus string `json:"fulfillment_status" validate:"required"`
}

// UpdateStatus moves an order through the fulfillment lifecycle.
func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.UpdateFulfillmentStatus(r.Context(), internalorders.UpdateStatusInput{
			OrderID: orderID,
			Target:  payload.FulfillmentStatus,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type refundRequest struct {
	Reason string `json:"reason"`
}

// Refund asks the payment provider to return a paid order's money.
func Refund(svc refunds.Service, m *metrics.OrderMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refunds service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload refundRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Execute(r.Context(), refunds.Input{
			OrderID: orderID,
			Reason:  payload.Reason,
		})
		if m != nil {
			m.IncRefund(err == nil)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]any{
			"order":     result.Order,
			"refund_id": result.RefundID,
			"status":    result.Status,
		})
	}
}

// matchedUserID resolves the {userId} path param and checks the caller may
// act for that user. Admins may act for anyone.
func matchedUserID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "userId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	target, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}

	actor, err := actorUserID(r)
	if err != nil {
		return uuid.Nil, err
	}
	if actor != target && middleware.RoleFromContext(r.Context()) != string(enums.UserRoleAdmin) {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot act for another user")
	}
	return target, nil
}

func actorUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return userID, nil
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}

func buildListParams(r *http.Request) (internalorders.ListParams, error) {
	var params internalorders.ListParams

	limit, err := validators.ParseQueryInt(r, "limit", 0, 1, maxListLimit)
	if err != nil {
		return params, err
	}
	params.Limit = limit

	offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<30)
	if err != nil {
		return params, err
	}
	params.Offset = offset

	if raw := strings.TrimSpace(r.URL.Query().Get("fulfillment_status")); raw != "" {
		status, err := enums.ParseFulfillmentStatus(raw)
		if err != nil {
			return params, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid fulfillment_status %q", raw))
		}
		params.FulfillmentStatus = &status
	}

	return params, nil
}
