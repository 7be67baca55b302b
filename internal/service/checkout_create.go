package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/pkg/logger"
)

// CreateCheckout opens a payment with the processor for a snapshot of the
// cart and parks it until the payer returns. On a processor failure the FAILED
// intent is returned together with the error.
func (s *CheckoutServiceImpl) CreateCheckout(ctx context.Context, req CheckoutRequest) (intent *domain.PaymentIntent, err error) {
	ctx, done := s.begin(ctx, opCreate)
	defer func() { done(outcomeOf(err), err) }()

	if req.Cart == nil || req.Cart.Len() == 0 {
		return nil, domain.ErrEmptyCart
	}
	if strings.TrimSpace(req.SuccessURL) == "" {
		return nil, domain.ErrMissingReturnURL
	}

	intent = domain.NewPaymentIntent(req.Cart, req.SuccessURL, req.CancelURL, req.Description)
	log := logger.FromContext(ctx)

	created, err := s.createPayment(ctx, domain.CreatePaymentRequest{
		Amount:      intent.Total(),
		Items:       intent.Cart.Items(),
		SuccessURL:  intent.SuccessURL,
		CancelURL:   intent.CancelURL,
		Description: intent.Description,
	})
	if err != nil {
		_ = intent.MarkFailed(err.Error())
		log.Warn("checkout_create_failed", zap.Error(err))
		return intent, &domain.PaymentError{Op: domain.OpCreate, Err: err}
	}

	if err := intent.MarkCreated(created.ID, created.RedirectURL); err != nil {
		return intent, err
	}
	log = log.With(zap.String("intent_id", intent.ID))

	if err := s.intents.SaveIntent(ctx, intent); err != nil {
		_ = intent.MarkFailed("intent not persisted")
		return intent, fmt.Errorf("save payment intent: %w", err)
	}

	token := s.newToken()
	if err := s.sessions.Put(ctx, token, intent.ID, s.sessionTTL); err != nil {
		s.failQuietly(ctx, intent, domain.IntentStatusCreated, "session not stored")
		return intent, fmt.Errorf("store checkout session: %w", err)
	}

	if err := intent.MarkAwaitingAuthorization(token); err != nil {
		return intent, err
	}
	if err := s.intents.UpdateIntent(ctx, intent, domain.IntentStatusCreated); err != nil {
		s.failQuietly(ctx, intent, domain.IntentStatusCreated, "intent not persisted")
		return intent, fmt.Errorf("update payment intent: %w", err)
	}

	log.Info("checkout_created",
		zap.String("amount", domain.Format(intent.Total())),
		zap.Int("items", intent.Cart.Len()),
	)
	return intent, nil
}

// failQuietly moves intent to FAILED and persists it on a best-effort basis;
// the caller reports the original error.
func (s *CheckoutServiceImpl) failQuietly(ctx context.Context, intent *domain.PaymentIntent, expected domain.IntentStatus, reason string) {
	if err := intent.MarkFailed(reason); err != nil {
		return
	}
	if err := s.intents.UpdateIntent(ctx, intent, expected); err != nil {
		logger.FromContext(ctx).Error("intent_update_failed",
			zap.String("intent_id", intent.ID),
			zap.String("status", intent.Status.String()),
			zap.Error(err),
		)
	}
}
