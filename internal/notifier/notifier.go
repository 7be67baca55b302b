// Package notifier delivers payment receipts to payers.
package notifier

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/pkg/logger"
)

var ErrNoRecipient = errors.New("payment has no payer email")

// Notifier sends a receipt for an executed payment. Delivery is best-effort:
// callers log failures and never roll back the payment.
type Notifier interface {
	SendReceipt(ctx context.Context, details *domain.PaymentDetails) error
}

// LogNotifier writes the receipt to the log instead of mailing it.
type LogNotifier struct{}

func (LogNotifier) SendReceipt(ctx context.Context, details *domain.PaymentDetails) error {
	logger.FromContext(ctx).Info("receipt_logged",
		zap.String("payment_id", details.ID),
		zap.String("payer_email", details.PayerEmail),
		zap.String("amount", domain.Format(details.Amount)),
	)
	return nil
}
