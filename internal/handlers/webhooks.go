package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/printworks/api/internal/platform/httpx"
	"github.com/printworks/api/internal/services"
)

const maxWebhookBodySize = 1 << 20

type webhookResponse struct {
	Outcome     string `json:"outcome"`
	Duplicate   bool   `json:"duplicate"`
	OrderNumber string `json:"order_number,omitempty"`
}

// WebhookHandlers receives payment gateway callbacks.
type WebhookHandlers struct {
	reconciler      services.PaymentReconciler
	signatureHeader string
}

// NewWebhookHandlers constructs a new WebhookHandlers instance.
func NewWebhookHandlers(reconciler services.PaymentReconciler, signatureHeader string) *WebhookHandlers {
	header := strings.TrimSpace(signatureHeader)
	if header == "" {
		header = "X-Gateway-Signature"
	}
	return &WebhookHandlers{
		reconciler:      reconciler,
		signatureHeader: header,
	}
}

// Routes registers the /webhooks endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/payments", h.paymentEvent)
}

// paymentEvent responds 200 to every authenticated, decodable delivery even
// when the event is a duplicate or is ignored, so the gateway stops retrying.
func (h *WebhookHandlers) paymentEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reconciler == nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_unavailable", "payment reconciler unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodySize))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read request body", http.StatusBadRequest))
		return
	}

	result, err := h.reconciler.HandleEvent(ctx, body, r.Header.Get(h.signatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSignatureInvalid):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusUnauthorized))
		case errors.Is(err, services.ErrMalformedEvent):
			httpx.WriteError(ctx, w, httpx.NewError("malformed_event", "webhook payload could not be decoded", http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unable to process webhook", http.StatusInternalServerError))
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, webhookResponse{
		Outcome:     string(result.Outcome),
		Duplicate:   result.Duplicate,
		OrderNumber: result.OrderNumber,
	})
}
