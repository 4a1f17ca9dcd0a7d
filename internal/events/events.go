package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	RoutingChargesGenerated = "charges.generated"
	RoutingPaymentRecorded  = "payment.recorded"
)

// Publisher announces committed ledger mutations. Publish is called after the
// transaction commits; failures never roll back the ledger.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
	Close() error
}

type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type ChargesGenerated struct {
	Period       string   `json:"period"`
	ItemCodes    []string `json:"item_codes"`
	CreatedCount int      `json:"created_count"`
	SkippedCount int      `json:"skipped_count"`
	StudentIDs   []string `json:"student_ids"`
}

type PaymentRecorded struct {
	PaymentID        string   `json:"payment_id"`
	StudentID        string   `json:"student_id"`
	Amount           int64    `json:"amount"`
	Method           string   `json:"method"`
	PaidOn           string   `json:"paid_on"`
	SettledChargeIDs []string `json:"settled_charge_ids"`
	Remaining        int64    `json:"remaining"`
}

// newEnvelope wraps payload with a ULID so consumers can drop redeliveries.
func newEnvelope(routingKey string, payload any, now time.Time) (string, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", nil, err
	}
	id := ulid.Make().String()
	body, err := json.Marshal(Envelope{
		ID:         id,
		Type:       routingKey,
		OccurredAt: now.UTC(),
		Data:       data,
	})
	return id, body, err
}

type noopPublisher struct{}

// NewNoop returns a Publisher that drops every event.
func NewNoop() Publisher { return noopPublisher{} }

func (noopPublisher) Publish(context.Context, string, any) error { return nil }
func (noopPublisher) Close() error                               { return nil }
