package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/processor"
)

type ProcessorHandler struct {
	client  processor.Client
	timeout time.Duration
}

func NewProcessorHandler(client processor.Client, timeout time.Duration) *ProcessorHandler {
	return &ProcessorHandler{
		client:  client,
		timeout: timeout,
	}
}

func (s *CheckoutServiceImpl) createPayment(ctx context.Context, req domain.CreatePaymentRequest) (*domain.CreatedPayment, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.processor.timeout)
	defer cancel()
	created, err := s.processor.client.Create(callCtx, req)
	return created, unavailableOnDeadline(err)
}

func (s *CheckoutServiceImpl) executePayment(ctx context.Context, intentID, payerID string) (*domain.PaymentDetails, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.processor.timeout)
	defer cancel()
	details, err := s.processor.client.Execute(callCtx, intentID, payerID)
	return details, unavailableOnDeadline(err)
}

func (s *CheckoutServiceImpl) getPayment(ctx context.Context, intentID string) (*domain.PaymentDetails, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.processor.timeout)
	defer cancel()
	details, err := s.processor.client.Get(callCtx, intentID)
	return details, unavailableOnDeadline(err)
}

func (s *CheckoutServiceImpl) listPayments(ctx context.Context, limit, offset int) ([]domain.PaymentDetails, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.processor.timeout)
	defer cancel()
	payments, err := s.processor.client.List(callCtx, limit, offset)
	return payments, unavailableOnDeadline(err)
}

// unavailableOnDeadline reports an expired call deadline as an outage.
func unavailableOnDeadline(err error) error {
	if err == nil || errors.Is(err, domain.ErrProcessorUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrProcessorUnavailable, err)
	}
	return err
}
