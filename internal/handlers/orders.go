package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/printworks/api/internal/domain"
	"github.com/printworks/api/internal/platform/httpx"
	"github.com/printworks/api/internal/services"
)

const maxTransitionBodySize = 4 * 1024

var validOrderStatuses = map[domain.OrderStatus]struct{}{
	domain.OrderStatusPending:    {},
	domain.OrderStatusConfirmed:  {},
	domain.OrderStatusProcessing: {},
	domain.OrderStatusShipped:    {},
	domain.OrderStatusDelivered:  {},
	domain.OrderStatusCancelled:  {},
}

type transitionRequest struct {
	Target string `json:"target"`
}

type orderResponse struct {
	Number        string `json:"number"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

// OrderHandlers exposes order lifecycle endpoints used by staff tooling.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/{number}/transition", h.transition)
}

func (h *OrderHandlers) transition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	number := strings.TrimSpace(chi.URLParam(r, "number"))

	var req transitionRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTransitionBodySize))
	if err := decoder.Decode(&req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	target := domain.OrderStatus(strings.ToLower(strings.TrimSpace(req.Target)))
	if _, ok := validOrderStatuses[target]; !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("unknown order status %q", req.Target), http.StatusBadRequest))
		return
	}

	quote, err := h.orders.Transition(ctx, number, target)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotFound):
			httpx.WriteError(ctx, w, httpx.NewError("order_not_found", fmt.Sprintf("order %s not found", number), http.StatusNotFound))
		case errors.Is(err, services.ErrInvalidTransition):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusConflict))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unable to transition order", http.StatusInternalServerError))
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, orderResponse{
		Number:        quote.Number,
		Status:        string(quote.Status),
		PaymentStatus: string(quote.Payment.Status),
	})
}
