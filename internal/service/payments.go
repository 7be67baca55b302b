package service

import (
	"context"
	"fmt"

	"github.com/fjod/go_checkout/domain"
)

func (s *CheckoutServiceImpl) GetPayment(ctx context.Context, intentID string) (details *domain.PaymentDetails, err error) {
	ctx, done := s.begin(ctx, opGet)
	defer func() { done(outcomeOf(err), err) }()

	return s.getPayment(ctx, intentID)
}

// ListPayments pages through the processor's payments, newest first as the
// processor returns them.
func (s *CheckoutServiceImpl) ListPayments(ctx context.Context, limit, offset int) (payments []domain.PaymentDetails, err error) {
	ctx, done := s.begin(ctx, opList)
	defer func() { done(outcomeOf(err), err) }()

	if limit <= 0 {
		return nil, domain.ErrInvalidPageSize
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset %d", domain.ErrInvalidPageSize, offset)
	}
	return s.listPayments(ctx, limit, offset)
}
