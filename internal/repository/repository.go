package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fjod/go_checkout/domain"
)

// EventPaymentExecuted is the outbox event type written once per executed payment.
const EventPaymentExecuted = "payment.executed"

var (
	ErrStaleIntent  = errors.New("payment intent status changed concurrently")
	ErrIntentExists = errors.New("payment intent already exists")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// IntentStore persists payment intents. Update is a compare-and-swap on the
// stored status: it fails with ErrStaleIntent when the stored status is not expected.
type IntentStore interface {
	SaveIntent(ctx context.Context, intent *domain.PaymentIntent) error
	GetIntent(ctx context.Context, id string) (*domain.PaymentIntent, error)
	UpdateIntent(ctx context.Context, intent *domain.PaymentIntent, expected domain.IntentStatus) error
}

// OrderStore records executed payments. Recording the same intent twice is a no-op.
type OrderStore interface {
	OnPaymentExecuted(ctx context.Context, intentID string, details *domain.PaymentDetails) error
}

type OutboxStore interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
	// GetUnrecordedExecutions lists executed intents that have no order record yet.
	GetUnrecordedExecutions(ctx context.Context, limit int) ([]*domain.PaymentIntent, error)
	OrderStore
}

type RepoInterface interface {
	IntentStore
	OutboxStore
	Close() error
}

type OutboxEvent struct {
	ID          int64
	AggregateId string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

type executedPayload struct {
	IntentID    string            `json:"intent_id"`
	SaleID      string            `json:"sale_id,omitempty"`
	PayerID     string            `json:"payer_id,omitempty"`
	PayerEmail  string            `json:"payer_email,omitempty"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description,omitempty"`
	Items       []domain.LineItem `json:"items,omitempty"`
	ExecutedAt  time.Time         `json:"executed_at"`
}

func newExecutedPayload(intentID string, details *domain.PaymentDetails, at time.Time) ([]byte, error) {
	return json.Marshal(executedPayload{
		IntentID:    intentID,
		SaleID:      details.SaleID,
		PayerID:     details.PayerID,
		PayerEmail:  details.PayerEmail,
		Amount:      details.Amount.Amount,
		Currency:    details.Amount.Currency,
		Description: details.Description,
		Items:       details.Items,
		ExecutedAt:  at,
	})
}
