package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// EventType identifies the webhook event kinds the reconciler understands.
type EventType string

const (
	EventPaymentCaptured EventType = "payment.captured"
	EventPaymentFailed   EventType = "payment.failed"
)

var (
	// ErrEventMalformed indicates the payload could not be decoded.
	ErrEventMalformed = errors.New("gateway: event malformed")
	// ErrEventUnknown indicates a structurally valid payload for an
	// unsupported event kind.
	ErrEventUnknown = errors.New("gateway: event type unknown")
)

// Event is the normalised form of a gateway webhook payload.
type Event struct {
	ID          string
	Type        EventType
	PaymentID   string
	OrderNumber string
	Amount      int64
	Currency    string
	Method      string
	FailureCode string
}

type eventEnvelope struct {
	ID      string `json:"id"`
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				Status           string `json:"status"`
				Amount           int64  `json:"amount"`
				Currency         string `json:"currency"`
				Method           string `json:"method"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// ParseEvent decodes and validates a raw webhook body.
func ParseEvent(body []byte) (Event, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrEventMalformed, err)
	}

	eventType := EventType(strings.TrimSpace(envelope.Event))
	switch eventType {
	case EventPaymentCaptured, EventPaymentFailed:
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrEventUnknown, envelope.Event)
	}

	entity := envelope.Payload.Payment.Entity
	if strings.TrimSpace(envelope.ID) == "" {
		return Event{}, fmt.Errorf("%w: event id missing", ErrEventMalformed)
	}
	if strings.TrimSpace(entity.ID) == "" {
		return Event{}, fmt.Errorf("%w: payment id missing", ErrEventMalformed)
	}
	if strings.TrimSpace(entity.OrderID) == "" {
		return Event{}, fmt.Errorf("%w: order reference missing", ErrEventMalformed)
	}

	return Event{
		ID:          strings.TrimSpace(envelope.ID),
		Type:        eventType,
		PaymentID:   strings.TrimSpace(entity.ID),
		OrderNumber: strings.TrimSpace(entity.OrderID),
		Amount:      entity.Amount,
		Currency:    strings.ToUpper(strings.TrimSpace(entity.Currency)),
		Method:      strings.TrimSpace(entity.Method),
		FailureCode: strings.TrimSpace(entity.ErrorDescription),
	}, nil
}

// LedgerKey derives the idempotency key for the payment event ledger. Two
// deliveries of the same logical event share a key; distinct kinds for the
// same payment do not.
func (e Event) LedgerKey() string {
	return e.PaymentID + ":" + string(e.Type)
}
