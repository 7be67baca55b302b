package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fjod/go_checkout/domain"
	r "github.com/fjod/go_checkout/internal/repository"
	"github.com/fjod/go_checkout/internal/session"
	"github.com/fjod/go_checkout/pkg/logger"
)

const (
	reasonPayerCancelled    = "cancelled by payer"
	reasonMalformedCallback = "callback is missing the payer id or the authorization token"
)

// CompleteCheckout finishes the checkout the session token points at. The
// session entry is consumed first, so a second delivery of the same callback
// gets ErrNoPendingCheckout whatever happened to the first one.
func (s *CheckoutServiceImpl) CompleteCheckout(ctx context.Context, sessionToken string, params domain.CallbackParams) (result *domain.PaymentResult, err error) {
	ctx, done := s.begin(ctx, opComplete)
	defer func() { done(completeOutcome(result, err), err) }()

	if sessionToken == "" {
		return nil, domain.ErrNoPendingCheckout
	}
	intentID, err := s.sessions.GetAndDelete(ctx, sessionToken)
	if errors.Is(err, session.ErrSessionNotFound) {
		return nil, domain.ErrNoPendingCheckout
	}
	if err != nil {
		return nil, fmt.Errorf("consume checkout session: %w", err)
	}

	intent, err := s.intents.GetIntent(ctx, intentID)
	if errors.Is(err, domain.ErrIntentNotFound) {
		return nil, fmt.Errorf("%w: payment %s is unknown", domain.ErrNoPendingCheckout, intentID)
	}
	if err != nil {
		return nil, fmt.Errorf("load payment intent: %w", err)
	}
	ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(zap.String("intent_id", intent.ID)))

	switch intent.Status {
	case domain.IntentStatusAwaitingAuthorization:
	case domain.IntentStatusExecuted:
		return executedResult(intent), nil
	case domain.IntentStatusAuthorized:
		return nil, domain.ErrCheckoutInProgress
	default:
		return nil, fmt.Errorf("%w: payment %s is %s", domain.ErrNoPendingCheckout, intent.ID, intent.Status)
	}

	if !params.Authorized() {
		return s.cancel(ctx, intent, params)
	}
	if paymentID := params.Extras[domain.CallbackPaymentID]; paymentID != "" && paymentID != intent.ID {
		s.failQuietly(ctx, intent, domain.IntentStatusAwaitingAuthorization, "callback names a different payment")
		return nil, fmt.Errorf("%w: callback is for payment %s", domain.ErrNoPendingCheckout, paymentID)
	}

	current, err := s.getPayment(ctx, intent.ID)
	if err != nil {
		return nil, s.fail(ctx, intent, domain.IntentStatusAwaitingAuthorization, err)
	}
	if current.IsExecuted() {
		return s.recordExecuted(ctx, intent, domain.IntentStatusAwaitingAuthorization, current)
	}

	authorized := intent.Clone()
	if err := authorized.MarkAuthorized(params.PayerID, params.AuthorizationToken); err != nil {
		return nil, err
	}
	if err := s.intents.UpdateIntent(ctx, authorized, domain.IntentStatusAwaitingAuthorization); err != nil {
		if errors.Is(err, r.ErrStaleIntent) {
			return s.resolveConcurrent(ctx, intent.ID)
		}
		return nil, fmt.Errorf("authorize payment intent: %w", err)
	}
	intent = authorized

	details, err := s.executePayment(ctx, intent.ID, params.PayerID)
	if err != nil {
		if errors.Is(err, domain.ErrProcessorUnavailable) {
			// the execute may have landed before the connection dropped
			if current, gerr := s.getPayment(ctx, intent.ID); gerr == nil && current.IsExecuted() {
				return s.recordExecuted(ctx, intent, domain.IntentStatusAuthorized, current)
			}
		}
		return nil, s.fail(ctx, intent, domain.IntentStatusAuthorized, err)
	}
	if details == nil || !details.IsExecuted() {
		return nil, s.fail(ctx, intent, domain.IntentStatusAuthorized, notExecuted(details))
	}
	return s.recordExecuted(ctx, intent, domain.IntentStatusAuthorized, details)
}

func notExecuted(details *domain.PaymentDetails) error {
	state := ""
	if details != nil {
		state = details.State
	}
	return &domain.ProcessorRejectedError{
		Name:   domain.RejectionNotExecuted,
		Reason: fmt.Sprintf("execute answered with payment state %q", state),
	}
}

func (s *CheckoutServiceImpl) cancel(ctx context.Context, intent *domain.PaymentIntent, params domain.CallbackParams) (*domain.PaymentResult, error) {
	reason := reasonPayerCancelled
	if !params.Empty() {
		reason = reasonMalformedCallback
	}
	if err := intent.MarkCancelled(reason); err != nil {
		return nil, err
	}
	if err := s.intents.UpdateIntent(ctx, intent, domain.IntentStatusAwaitingAuthorization); err != nil {
		if errors.Is(err, r.ErrStaleIntent) {
			return s.resolveConcurrent(ctx, intent.ID)
		}
		return nil, fmt.Errorf("cancel payment intent: %w", err)
	}

	logger.FromContext(ctx).Info("checkout_cancelled", zap.String("reason", reason))
	return &domain.PaymentResult{IntentID: intent.ID, Status: domain.PaymentResultCancelled}, nil
}

// fail records an execution failure on intent and returns it as a *domain.PaymentError.
func (s *CheckoutServiceImpl) fail(ctx context.Context, intent *domain.PaymentIntent, expected domain.IntentStatus, cause error) error {
	s.failQuietly(ctx, intent, expected, cause.Error())
	logger.FromContext(ctx).Warn("checkout_execute_failed", zap.Error(cause))
	return &domain.PaymentError{Op: domain.OpExecute, IntentID: intent.ID, Err: cause}
}

// recordExecuted moves intent to EXECUTED. Only the caller that wins this
// transition runs the post-execution steps.
func (s *CheckoutServiceImpl) recordExecuted(ctx context.Context, intent *domain.PaymentIntent, expected domain.IntentStatus, details *domain.PaymentDetails) (*domain.PaymentResult, error) {
	log := logger.FromContext(ctx)
	if err := intent.MarkExecuted(details); err != nil {
		return nil, err
	}
	if err := s.intents.UpdateIntent(ctx, intent, expected); err != nil {
		if errors.Is(err, r.ErrStaleIntent) {
			return s.resolveConcurrent(ctx, intent.ID)
		}
		// the money has moved; report success and leave a trail
		log.Error("intent_update_failed",
			zap.String("status", intent.Status.String()),
			zap.String("sale_id", details.SaleID),
			zap.Error(err),
		)
	}

	s.afterExecuted(ctx, intent.ID, details)
	log.Info("checkout_completed",
		zap.String("amount", domain.Format(details.Amount)),
		zap.String("sale_id", details.SaleID),
	)
	return executedResult(intent), nil
}

func (s *CheckoutServiceImpl) afterExecuted(ctx context.Context, intentID string, details *domain.PaymentDetails) {
	log := logger.FromContext(ctx)
	if s.orders != nil {
		if err := s.orders.OnPaymentExecuted(ctx, intentID, details); err != nil {
			s.metrics.PostExecutionFailure("order_store")
			log.Error("order_record_failed", zap.Error(err))
		}
	}
	if s.notifier != nil {
		if err := s.notifier.SendReceipt(ctx, details); err != nil {
			s.metrics.PostExecutionFailure("notify")
			log.Warn("receipt_failed", zap.Error(err))
		}
	}
}

// resolveConcurrent is used after losing a status compare-and-swap.
func (s *CheckoutServiceImpl) resolveConcurrent(ctx context.Context, intentID string) (*domain.PaymentResult, error) {
	current, err := s.intents.GetIntent(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("reload payment intent: %w", err)
	}
	switch {
	case current.Status == domain.IntentStatusExecuted:
		return executedResult(current), nil
	case current.Status.IsTerminal():
		return nil, fmt.Errorf("%w: payment %s is %s", domain.ErrNoPendingCheckout, current.ID, current.Status)
	default:
		return nil, domain.ErrCheckoutInProgress
	}
}

func executedResult(intent *domain.PaymentIntent) *domain.PaymentResult {
	return &domain.PaymentResult{
		IntentID: intent.ID,
		Status:   domain.PaymentResultExecuted,
		Details:  intent.Result,
	}
}
