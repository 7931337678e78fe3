package gateway

import (
	"encoding/json"
	"errors"
	"strings"
)

// Event kinds after classification. Unhandled is not an error: gateways grow
// new event types and retry on non-2xx, so unknown kinds are acknowledged.
const (
	EventPaymentCaptured = "payment_captured"
	EventPaymentFailed   = "payment_failed"
	EventRefundProcessed = "refund_processed"
	EventUnhandled       = "unhandled"
)

// NoteCorrelationKey is the notes field the checkout flow sets when creating
// the gateway order, echoed back on every webhook for that payment.
const NoteCorrelationKey = "booking_token"

var ErrMalformedPayload = errors.New("malformed webhook payload")

// Event is the typed result of parsing a verified webhook body.
type Event struct {
	Kind             string
	Type             string // raw gateway event string, e.g. "payment.captured"
	GatewayPaymentID string
	CorrelationToken string
	Captured         bool
	AmountMinor      int64
	Currency         string
	Method           string
	RefundID         string
	Raw              []byte
}

type paymentEntity struct {
	ID       string          `json:"id"`
	Status   string          `json:"status"`
	Captured bool            `json:"captured"`
	Amount   int64           `json:"amount"`
	Currency string          `json:"currency"`
	Method   string          `json:"method"`
	Notes    json.RawMessage `json:"notes"`
}

type refundEntity struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
}

type envelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity *paymentEntity `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity *refundEntity `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

// Parse decodes and classifies a webhook body. It fails closed on malformed
// JSON and on handled event types that are missing the nested entity the
// engine depends on; unknown event types come back as EventUnhandled.
func Parse(rawBody []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(rawBody, &env); err != nil {
		return nil, ErrMalformedPayload
	}
	if env.Event == "" {
		return nil, ErrMalformedPayload
	}

	ev := &Event{Type: env.Event, Raw: rawBody}
	switch env.Event {
	case "payment.captured", "payment.failed":
		p := env.Payload.Payment.Entity
		if p == nil || p.ID == "" {
			return nil, ErrMalformedPayload
		}
		ev.GatewayPaymentID = p.ID
		ev.Captured = p.Captured || p.Status == "captured"
		ev.AmountMinor = p.Amount
		ev.Currency = p.Currency
		ev.Method = p.Method
		ev.CorrelationToken = noteValue(p.Notes, NoteCorrelationKey)
		if env.Event == "payment.captured" {
			ev.Kind = EventPaymentCaptured
		} else {
			ev.Kind = EventPaymentFailed
		}
	case "refund.processed":
		r := env.Payload.Refund.Entity
		if r == nil || r.PaymentID == "" {
			// Some gateways nest the payment entity alongside the refund.
			p := env.Payload.Payment.Entity
			if p == nil || p.ID == "" {
				return nil, ErrMalformedPayload
			}
			ev.GatewayPaymentID = p.ID
			ev.CorrelationToken = noteValue(p.Notes, NoteCorrelationKey)
		} else {
			ev.RefundID = r.ID
			ev.GatewayPaymentID = r.PaymentID
			ev.AmountMinor = r.Amount
		}
		if p := env.Payload.Payment.Entity; p != nil && ev.CorrelationToken == "" {
			ev.CorrelationToken = noteValue(p.Notes, NoteCorrelationKey)
		}
		ev.Kind = EventRefundProcessed
	default:
		ev.Kind = EventUnhandled
	}
	return ev, nil
}

// noteValue extracts a string note. Gateways serialize empty notes as an
// array and populated notes as an object, so decode failures are tolerated.
func noteValue(notes json.RawMessage, key string) string {
	if len(notes) == 0 {
		return ""
	}
	var m map[string]interface{}
	if err := json.Unmarshal(notes, &m); err != nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
