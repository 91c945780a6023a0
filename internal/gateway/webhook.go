// Webhook event envelope parsing.
//
// Events arrive as a JSON envelope with an event name and a data object.
// Parsing is defensive: unexpected shapes are rejected so that a malformed
// (but correctly signed) delivery can never reach the reconciliation path
// with missing fields.
package gateway

import (
	"encoding/json"
	"errors"
	"strings"
)

// EventChargeSuccess is the only event name that finalizes a payment.
// All other events are acknowledged and ignored.
const EventChargeSuccess = "charge.success"

// ErrMalformedEvent indicates a webhook body that decoded but does not carry
// the fields the reconciliation path requires.
var ErrMalformedEvent = errors.New("malformed webhook event")

// WebhookEvent is the decoded gateway event envelope.
//
// RawData preserves the data object exactly as delivered; it is what gets
// stored on the payment row as the audit payload.
type WebhookEvent struct {
	Event     string
	Reference string
	Status    string
	Amount    int64
	RawData   []byte
}

// ParseWebhookEvent decodes and validates a raw webhook body. It returns
// ErrMalformedEvent when the body is not JSON, the event name is empty, or
// the data object lacks a reference.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var outer struct {
		Event string `json:"event"`
		Data  struct {
			Reference string `json:"reference"`
			Status    string `json:"status"`
			Amount    int64  `json:"amount"`
		} `json:"data"`
		RawData json.RawMessage `json:"-"`
	}
	if err := json.Unmarshal(body, &outer); err != nil {
		return nil, errors.Join(ErrMalformedEvent, err)
	}
	if strings.TrimSpace(outer.Event) == "" {
		return nil, errors.Join(ErrMalformedEvent, errors.New("missing event name"))
	}
	if strings.TrimSpace(outer.Data.Reference) == "" {
		return nil, errors.Join(ErrMalformedEvent, errors.New("missing data.reference"))
	}

	// Re-extract the data object verbatim for the audit trail.
	var raw struct {
		Data json.RawMessage `json:"data"`
	}
	_ = json.Unmarshal(body, &raw)

	return &WebhookEvent{
		Event:     outer.Event,
		Reference: outer.Data.Reference,
		Status:    outer.Data.Status,
		Amount:    outer.Data.Amount,
		RawData:   append([]byte(nil), raw.Data...),
	}, nil
}
