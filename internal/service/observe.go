package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/metrics"
)

const (
	opCreate   = "create_checkout"
	opComplete = "complete_checkout"
	opGet      = "get_payment"
	opList     = "list_payments"
)

// begin opens a span for op and returns the function that closes it and
// records the outcome.
func (s *CheckoutServiceImpl) begin(ctx context.Context, op string) (context.Context, func(outcome string, err error)) {
	ctx, span := s.tracer.Start(ctx, "checkout."+op,
		trace.WithAttributes(attribute.String("checkout.operation", op)))
	started := time.Now()

	return ctx, func(outcome string, err error) {
		span.SetAttributes(attribute.String("checkout.outcome", outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.metrics.ObserveOperation(op, outcome, started)
	}
}

func outcomeOf(err error) string {
	if err != nil {
		return metrics.OutcomeError
	}
	return metrics.OutcomeSuccess
}

func completeOutcome(result *domain.PaymentResult, err error) string {
	if err == nil && result != nil && result.Status == domain.PaymentResultCancelled {
		return metrics.OutcomeCancelled
	}
	return outcomeOf(err)
}
