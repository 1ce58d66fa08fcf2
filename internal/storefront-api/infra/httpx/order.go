package httpx

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	orderapp "github.com/jcmexdev/storefront/internal/order-service/app"
	order "github.com/jcmexdev/storefront/internal/order-service/domain"
	"github.com/jcmexdev/storefront/internal/pkg/apperr"
	"github.com/jcmexdev/storefront/internal/pkg/reqctx"
	"github.com/jcmexdev/storefront/internal/store"
)

// PlaceOrder converts the caller's cart into an order. A request repeated with
// the same X-Idempotency-Key returns the original order with 200.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	in := orderapp.PlaceOrderInput{
		UserID: caller(r),
		Recipient: order.Recipient{
			Name:    strings.TrimSpace(req.Name),
			Phone:   strings.TrimSpace(req.Phone),
			Address: strings.TrimSpace(req.Address),
		},
		IdempotencyKey: reqctx.IdempotencyKey(r.Context()),
	}
	if req.TransactionID != "" || req.Amount != nil {
		amount := decimal.Zero
		if req.Amount != nil {
			amount = *req.Amount
		}
		in.Payment = &orderapp.PaymentInput{
			TransactionID: req.TransactionID,
			InitiatorID:   req.InitiatorID,
			Amount:        amount,
		}
	}

	slog.InfoContext(r.Context(), "placing order", "user_id", in.UserID, "idempotent", in.IdempotencyKey != "")

	res, err := h.orders.PlaceOrder(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.Replayed {
		writeSuccess(w, http.StatusOK, "Order already created", mapOrder(res.Order))
		return
	}
	writeSuccess(w, http.StatusCreated, "Order created successfully", mapOrder(res.Order))
}

func (h *Handler) ChangeOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req ChangeStatusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		writeError(w, r, apperr.New(apperr.KindValidation, "Order ID is required"))
		return
	}

	change, err := h.orders.UpdateOrderStatus(r.Context(), caller(r), req.OrderID, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg := fmt.Sprintf("Order status updated to %s", change.To)
	if !change.Changed {
		msg = fmt.Sprintf("Order is already %s", change.To)
	}
	writeSuccess(w, http.StatusOK, msg, StatusChangeResponse{
		Order:     mapOrder(change.Order),
		From:      string(change.From),
		To:        string(change.To),
		Changed:   change.Changed,
		Restocked: change.Restocked,
	})
}

// ListOrders is the admin listing with search on the order code.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	filter := store.OrderFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Page:   page,
		Limit:  limit,
	}
	orders, total, err := h.orders.ListOrders(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{
		Success: true,
		Message: "Orders retrieved successfully",
		Data:    mapOrders(orders),
		Meta:    newMeta(total, page, limit),
	})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	details, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := mapOrder(details.Order)
	resp.History = mapHistory(details.History)
	writeSuccess(w, http.StatusOK, "Order details retrieved successfully", resp)
}

// OrderDetails lists the caller's own orders.
func (h *Handler) OrderDetails(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListUserOrders(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Orders retrieved successfully", mapOrders(orders))
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	payments, total, err := h.orders.ListPayments(r.Context(), store.OrderFilter{Page: page, Limit: limit})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{
		Success: true,
		Data:    mapPayments(payments),
		Meta:    newMeta(total, page, limit),
	})
}
