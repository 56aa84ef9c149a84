package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"testing"
)

func TestVerifierAcceptsValidSignature(t *testing.T) {
	verifier, err := NewVerifier("whsec-test")
	if err != nil {
		t.Fatalf("NewVerifier returned error: %v", err)
	}

	body := []byte(`{"event":"payment.captured"}`)
	if err := verifier.Verify(body, verifier.Sign(body)); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestVerifierAcceptsBase64Signature(t *testing.T) {
	verifier, err := NewVerifier("whsec-test")
	if err != nil {
		t.Fatalf("NewVerifier returned error: %v", err)
	}

	body := []byte(`{"event":"payment.captured"}`)
	mac := hmac.New(sha256.New, []byte("whsec-test"))
	mac.Write(body)
	encoded := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if err := verifier.Verify(body, encoded); err != nil {
		t.Fatalf("expected valid base64 signature, got %v", err)
	}
}

func TestVerifierRejectsTamperedBody(t *testing.T) {
	verifier, err := NewVerifier("whsec-test")
	if err != nil {
		t.Fatalf("NewVerifier returned error: %v", err)
	}

	signature := verifier.Sign([]byte(`{"amount":100}`))
	if err := verifier.Verify([]byte(`{"amount":999}`), signature); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestVerifierRejectsMissingSignature(t *testing.T) {
	verifier, err := NewVerifier("whsec-test")
	if err != nil {
		t.Fatalf("NewVerifier returned error: %v", err)
	}
	if err := verifier.Verify([]byte("{}"), "  "); !errors.Is(err, ErrSignatureMissing) {
		t.Fatalf("expected ErrSignatureMissing, got %v", err)
	}
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	if _, err := NewVerifier("   "); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestParseEventCaptured(t *testing.T) {
	body := []byte(`{
		"id": "evt_001",
		"event": "payment.captured",
		"payload": {"payment": {"entity": {
			"id": "pay_123",
			"order_id": "Q-251108-0001",
			"status": "captured",
			"amount": 53100,
			"currency": "inr",
			"method": "upi"
		}}}
	}`)

	event, err := ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent returned error: %v", err)
	}
	if event.Type != EventPaymentCaptured {
		t.Errorf("unexpected type %s", event.Type)
	}
	if event.PaymentID != "pay_123" || event.OrderNumber != "Q-251108-0001" {
		t.Errorf("unexpected identifiers %#v", event)
	}
	if event.Amount != 53100 || event.Currency != "INR" {
		t.Errorf("unexpected amount fields %#v", event)
	}
	if event.LedgerKey() != "pay_123:payment.captured" {
		t.Errorf("unexpected ledger key %s", event.LedgerKey())
	}
}

func TestParseEventFailedCarriesFailureCode(t *testing.T) {
	body := []byte(`{
		"id": "evt_002",
		"event": "payment.failed",
		"payload": {"payment": {"entity": {
			"id": "pay_124",
			"order_id": "Q-251108-0002",
			"status": "failed",
			"error_description": "card_declined"
		}}}
	}`)

	event, err := ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent returned error: %v", err)
	}
	if event.Type != EventPaymentFailed {
		t.Errorf("unexpected type %s", event.Type)
	}
	if event.FailureCode != "card_declined" {
		t.Errorf("unexpected failure code %q", event.FailureCode)
	}
}

func TestParseEventRejectsMalformed(t *testing.T) {
	cases := map[string][]byte{
		"invalid json":    []byte(`{not json`),
		"missing event":   []byte(`{"id":"evt","payload":{}}`),
		"unknown event":   []byte(`{"id":"evt","event":"order.created","payload":{}}`),
		"missing ids":     []byte(`{"id":"evt","event":"payment.captured","payload":{}}`),
		"missing orderid": []byte(`{"id":"evt","event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1"}}}}`),
	}

	for name, body := range cases {
		if _, err := ParseEvent(body); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
