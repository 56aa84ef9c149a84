package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/printworks/api/internal/domain"
	"github.com/printworks/api/internal/platform/httpx"
	"github.com/printworks/api/internal/services"
)

const maxQuoteBodySize = 256 * 1024

type quoteItemRequest struct {
	FileKey   string            `json:"file_key"`
	ProductID string            `json:"product_id"`
	Quantity  int               `json:"quantity"`
	Options   map[string]string `json:"options"`
}

type submitQuoteRequest struct {
	Customer struct {
		Phone string `json:"phone"`
		Email string `json:"email"`
	} `json:"customer"`
	Delivery struct {
		Method  string `json:"method"`
		Address string `json:"address"`
	} `json:"delivery"`
	Items         []quoteItemRequest `json:"items"`
	Message       string             `json:"message"`
	PromotionCode string             `json:"promotion_code"`
}

type pricingResponse struct {
	Subtotal        int64  `json:"subtotal"`
	TaxAmount       int64  `json:"tax_amount"`
	ShippingAmount  int64  `json:"shipping_amount"`
	DiscountAmount  int64  `json:"discount_amount"`
	GrandTotal      int64  `json:"grand_total"`
	Currency        string `json:"currency"`
	PromotionCode   string `json:"promotion_code,omitempty"`
	PromotionReason string `json:"promotion_reason,omitempty"`
}

type quoteResponse struct {
	Number        string          `json:"number"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	Pricing       pricingResponse `json:"pricing"`
	CreatedAt     time.Time       `json:"created_at"`
	FileURLs      []string        `json:"file_urls,omitempty"`
}

// QuoteHandlers exposes quote submission and retrieval endpoints.
type QuoteHandlers struct {
	quotes services.QuoteService
}

// NewQuoteHandlers constructs a new QuoteHandlers instance.
func NewQuoteHandlers(quotes services.QuoteService) *QuoteHandlers {
	return &QuoteHandlers{quotes: quotes}
}

// Routes registers the /quotes endpoints.
func (h *QuoteHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.submitQuote)
	r.Get("/", h.listQuotes)
	r.Get("/{number}", h.getQuote)
}

func (h *QuoteHandlers) submitQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.quotes == nil {
		httpx.WriteError(ctx, w, httpx.NewError("quote_service_unavailable", "quote service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req submitQuoteRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuoteBodySize))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	items := make([]domain.QuoteItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.QuoteItem{
			FileKey:   strings.TrimSpace(item.FileKey),
			ProductID: strings.TrimSpace(item.ProductID),
			Quantity:  item.Quantity,
			Options:   item.Options,
		})
	}

	quote, err := h.quotes.Submit(ctx, services.SubmitQuoteCommand{
		Customer: domain.Customer{
			Phone: strings.TrimSpace(req.Customer.Phone),
			Email: strings.TrimSpace(req.Customer.Email),
		},
		Delivery: domain.Delivery{
			Method:  strings.TrimSpace(req.Delivery.Method),
			Address: strings.TrimSpace(req.Delivery.Address),
		},
		Items:         items,
		Message:       req.Message,
		PromotionCode: req.PromotionCode,
	})
	if err != nil {
		writeSubmitError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toQuoteResponse(quote, nil))
}

func (h *QuoteHandlers) getQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.quotes == nil {
		httpx.WriteError(ctx, w, httpx.NewError("quote_service_unavailable", "quote service unavailable", http.StatusServiceUnavailable))
		return
	}

	number := strings.TrimSpace(chi.URLParam(r, "number"))
	view, err := h.quotes.Get(ctx, number)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrQuoteNotFound):
			httpx.WriteError(ctx, w, httpx.NewError("quote_not_found", fmt.Sprintf("quote %s not found", number), http.StatusNotFound))
		case errors.Is(err, services.ErrQuoteInvalidInput):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "quote number is required", http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unable to load quote", http.StatusInternalServerError))
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toQuoteResponse(view.Quote, view.FileURLs))
}

func (h *QuoteHandlers) listQuotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.quotes == nil {
		httpx.WriteError(ctx, w, httpx.NewError("quote_service_unavailable", "quote service unavailable", http.StatusServiceUnavailable))
		return
	}

	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	if phone == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "phone query parameter is required", http.StatusBadRequest))
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a positive integer", http.StatusBadRequest))
			return
		}
		limit = parsed
	}

	quotes, err := h.quotes.History(ctx, phone, limit)
	if err != nil {
		if errors.Is(err, services.ErrQuoteInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "phone must be 10-15 digits", http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unable to list quotes", http.StatusInternalServerError))
		return
	}

	responses := make([]quoteResponse, 0, len(quotes))
	for _, quote := range quotes {
		responses = append(responses, toQuoteResponse(quote, nil))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"quotes": responses})
}

func writeSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var limitErr *services.RateLimitError
	switch {
	case errors.As(err, &limitErr):
		seconds := int(limitErr.RetryAfter / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "maximum limit of quote requests reached, try again later", http.StatusTooManyRequests))
	case errors.Is(err, services.ErrQuoteInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrSequenceExhausted):
		httpx.WriteError(ctx, w, httpx.NewError("capacity_exhausted", "quote numbering capacity exhausted for today", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unable to submit quote", http.StatusInternalServerError))
	}
}

func toQuoteResponse(quote domain.Quote, fileURLs []string) quoteResponse {
	return quoteResponse{
		Number:        quote.Number,
		Status:        string(quote.Status),
		PaymentStatus: string(quote.Payment.Status),
		Pricing: pricingResponse{
			Subtotal:        quote.Pricing.Subtotal,
			TaxAmount:       quote.Pricing.TaxAmount,
			ShippingAmount:  quote.Pricing.ShippingAmount,
			DiscountAmount:  quote.Pricing.DiscountAmount,
			GrandTotal:      quote.Pricing.GrandTotal,
			Currency:        quote.Pricing.Currency,
			PromotionCode:   quote.Pricing.PromotionCode,
			PromotionReason: string(quote.Pricing.PromotionReason),
		},
		CreatedAt: quote.CreatedAt,
		FileURLs:  fileURLs,
	}
}
