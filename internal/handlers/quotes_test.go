package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/printworks/api/internal/domain"
	"github.com/printworks/api/internal/services"
)

type stubQuoteService struct {
	submitFn  func(ctx context.Context, cmd services.SubmitQuoteCommand) (domain.Quote, error)
	getFn     func(ctx context.Context, number string) (services.QuoteView, error)
	historyFn func(ctx context.Context, phone string, limit int) ([]domain.Quote, error)
}

func (s *stubQuoteService) Submit(ctx context.Context, cmd services.SubmitQuoteCommand) (domain.Quote, error) {
	return s.submitFn(ctx, cmd)
}

func (s *stubQuoteService) Get(ctx context.Context, number string) (services.QuoteView, error) {
	return s.getFn(ctx, number)
}

func (s *stubQuoteService) History(ctx context.Context, phone string, limit int) ([]domain.Quote, error) {
	return s.historyFn(ctx, phone, limit)
}

func sampleQuote() domain.Quote {
	return domain.Quote{
		ID:     "quo_test",
		Number: "Q-260831-0042",
		Customer: domain.Customer{
			Phone: "+919876543210",
		},
		Items: []domain.QuoteItem{
			{FileKey: "uploads/poster.pdf", ProductID: "prod_flyer", Quantity: 3},
		},
		Pricing: domain.PricingSnapshot{
			Subtotal:       45000,
			TaxAmount:      8100,
			ShippingAmount: 5000,
			GrandTotal:     58100,
			Currency:       "INR",
		},
		Status: domain.OrderStatusPending,
		Payment: domain.Payment{
			Status: domain.PaymentStatusPending,
		},
		CreatedAt: time.Date(2026, time.August, 31, 10, 0, 0, 0, time.UTC),
	}
}

func submitPayload() string {
	return `{
		"customer": {"phone": "+919876543210"},
		"delivery": {"method": "courier", "address": "12 MG Road, Pune"},
		"items": [{"file_key": "uploads/poster.pdf", "product_id": "prod_flyer", "quantity": 3}],
		"message": "Need these by Friday"
	}`
}

func newQuoteRouter(svc services.QuoteService) http.Handler {
	return NewRouter(WithQuoteRoutes(NewQuoteHandlers(svc).Routes))
}

func TestSubmitQuoteCreated(t *testing.T) {
	svc := &stubQuoteService{
		submitFn: func(_ context.Context, cmd services.SubmitQuoteCommand) (domain.Quote, error) {
			if cmd.Customer.Phone != "+919876543210" {
				t.Errorf("phone = %q", cmd.Customer.Phone)
			}
			if len(cmd.Items) != 1 || cmd.Items[0].Quantity != 3 {
				t.Errorf("items = %+v", cmd.Items)
			}
			return sampleQuote(), nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", strings.NewReader(submitPayload()))
	rec := httptest.NewRecorder()
	newQuoteRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var resp quoteResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Number != "Q-260831-0042" {
		t.Errorf("number = %q", resp.Number)
	}
	if resp.Pricing.GrandTotal != 58100 {
		t.Errorf("grand total = %d, want 58100", resp.Pricing.GrandTotal)
	}
	if resp.Status != "pending" || resp.PaymentStatus != "pending" {
		t.Errorf("status = %q payment = %q, want pending/pending", resp.Status, resp.PaymentStatus)
	}
}

func TestSubmitQuoteInvalidInput(t *testing.T) {
	svc := &stubQuoteService{
		submitFn: func(context.Context, services.SubmitQuoteCommand) (domain.Quote, error) {
			return domain.Quote{}, fmt.Errorf("%w: customer phone is invalid", services.ErrQuoteInvalidInput)
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", strings.NewReader(submitPayload()))
	rec := httptest.NewRecorder()
	newQuoteRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSubmitQuoteMalformedBody(t *testing.T) {
	svc := &stubQuoteService{
		submitFn: func(context.Context, services.SubmitQuoteCommand) (domain.Quote, error) {
			t.Fatal("service called for malformed body")
			return domain.Quote{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", strings.NewReader(`{"customer"`))
	rec := httptest.NewRecorder()
	newQuoteRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSubmitQuoteRateLimited(t *testing.T) {
	svc := &stubQuoteService{
		submitFn: func(context.Context, services.SubmitQuoteCommand) (domain.Quote, error) {
			return domain.Quote{}, &services.RateLimitError{RetryAfter: 42 * time.Minute}
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", strings.NewReader(submitPayload()))
	rec := httptest.NewRecorder()
	newQuoteRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2520" {
		t.Errorf("Retry-After = %q, want 2520", got)
	}
	if body := rec.Body.String(); !strings.Contains(body, "maximum limit") || !strings.Contains(body, "reached") {
		t.Errorf("body = %s, want a maximum-limit-reached message", body)
	}
}

func TestSubmitQuoteSequenceExhausted(t *testing.T) {
	svc := &stubQuoteService{
		submitFn: func(context.Context, services.SubmitQuoteCommand) (domain.Quote, error) {
			return domain.Quote{}, fmt.Errorf("allocate: %w", services.ErrSequenceExhausted)
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", strings.NewReader(submitPayload()))
	rec := httptest.NewRecorder()
	newQuoteRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestGetQuote(t *testing.T) {
	svc := &stubQuoteService{
		getFn: func(_ context.Context, number string) (services.QuoteView, error) {
			if number != "Q-260831-0042" {
				t.Errorf("number = %q", number)
			}
			return services.QuoteView{
				Quote:    sampleQuote(),
				FileURLs: []string{"https://files.example.com/uploads/poster.pdf"},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quotes/Q-260831-0042", nil)
	rec := httptest.NewRecorder()
	newQuoteRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp quoteResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.FileURLs) != 1 || !strings.HasSuffix(resp.FileURLs[0], "poster.pdf") {
		t.Errorf("file urls = %v", resp.FileURLs)
	}
}

func TestGetQuoteNotFound(t *testing.T) {
	svc := &stubQuoteService{
		getFn: func(context.Context, string) (services.QuoteView, error) {
			return services.QuoteView{}, fmt.Errorf("%w: Q-260831-9999", services.ErrQuoteNotFound)
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quotes/Q-260831-9999", nil)
	rec := httptest.NewRecorder()
	newQuoteRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListQuotesByPhone(t *testing.T) {
	svc := &stubQuoteService{
		historyFn: func(_ context.Context, phone string, limit int) ([]domain.Quote, error) {
			if phone != "+919876543210" {
				t.Errorf("phone = %q", phone)
			}
			if limit != 5 {
				t.Errorf("limit = %d, want 5", limit)
			}
			return []domain.Quote{sampleQuote()}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quotes?phone=%2B919876543210&limit=5", nil)
	rec := httptest.NewRecorder()
	newQuoteRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Quotes []quoteResponse `json:"quotes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Quotes) != 1 || resp.Quotes[0].Number != "Q-260831-0042" {
		t.Errorf("quotes = %+v", resp.Quotes)
	}
}

func TestListQuotesRequiresPhone(t *testing.T) {
	svc := &stubQuoteService{
		historyFn: func(context.Context, string, int) ([]domain.Quote, error) {
			t.Error("history should not be called without a phone")
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quotes", nil)
	rec := httptest.NewRecorder()
	newQuoteRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListQuotesRejectsBadLimit(t *testing.T) {
	svc := &stubQuoteService{
		historyFn: func(context.Context, string, int) ([]domain.Quote, error) {
			t.Error("history should not be called with a bad limit")
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quotes?phone=%2B919876543210&limit=zero", nil)
	rec := httptest.NewRecorder()
	newQuoteRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
