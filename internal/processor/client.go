// Package processor talks to the external payment processor's REST API.
package processor

import (
	"context"

	"github.com/fjod/go_checkout/domain"
)

// Client is the set of processor calls the checkout flow depends on.
type Client interface {
	Create(ctx context.Context, req domain.CreatePaymentRequest) (*domain.CreatedPayment, error)
	Execute(ctx context.Context, intentID, payerID string) (*domain.PaymentDetails, error)
	Get(ctx context.Context, intentID string) (*domain.PaymentDetails, error)
	List(ctx context.Context, limit, offset int) ([]domain.PaymentDetails, error)
}
