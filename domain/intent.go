package domain

import (
	"fmt"
	"time"
)

// PaymentIntent is one attempt to collect payment for a cart.
type PaymentIntent struct {
	ID               string
	Status           IntentStatus
	Cart             *Cart
	Description      string
	SuccessURL       string
	CancelURL        string
	RedirectURL      string
	SessionToken     string
	AuthorizationRef string
	PayerID          string
	FailureReason    string
	Result           *PaymentDetails
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewPaymentIntent starts a draft for a snapshot of cart. An empty cancelURL
// falls back to successURL; this happens here and nowhere else.
func NewPaymentIntent(cart *Cart, successURL, cancelURL, description string) *PaymentIntent {
	if cancelURL == "" {
		cancelURL = successURL
	}
	now := time.Now().UTC()
	return &PaymentIntent{
		Status:      IntentStatusDraft,
		Cart:        cart.Snapshot(),
		Description: description,
		SuccessURL:  successURL,
		CancelURL:   cancelURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (p *PaymentIntent) Total() Money {
	return p.Cart.Total()
}

func (p *PaymentIntent) MarkCreated(id, redirectURL string) error {
	if err := p.transition(IntentStatusCreated); err != nil {
		return err
	}
	p.ID = id
	p.RedirectURL = redirectURL
	return nil
}

func (p *PaymentIntent) MarkAwaitingAuthorization(sessionToken string) error {
	if err := p.transition(IntentStatusAwaitingAuthorization); err != nil {
		return err
	}
	p.SessionToken = sessionToken
	return nil
}

func (p *PaymentIntent) MarkAuthorized(payerID, authorizationRef string) error {
	if err := p.transition(IntentStatusAuthorized); err != nil {
		return err
	}
	p.PayerID = payerID
	p.AuthorizationRef = authorizationRef
	return nil
}

func (p *PaymentIntent) MarkExecuted(details *PaymentDetails) error {
	if err := p.transition(IntentStatusExecuted); err != nil {
		return err
	}
	p.Result = details
	p.FailureReason = ""
	return nil
}

func (p *PaymentIntent) MarkFailed(reason string) error {
	if err := p.transition(IntentStatusFailed); err != nil {
		return err
	}
	p.FailureReason = reason
	return nil
}

func (p *PaymentIntent) MarkCancelled(reason string) error {
	if err := p.transition(IntentStatusCancelled); err != nil {
		return err
	}
	p.FailureReason = reason
	return nil
}

func (p *PaymentIntent) transition(to IntentStatus) error {
	if !CanTransitionTo(p.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, p.Status, to)
	}
	p.Status = to
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Clone returns a copy that shares no mutable state with p.
func (p *PaymentIntent) Clone() *PaymentIntent {
	c := *p
	if p.Cart != nil {
		c.Cart = p.Cart.Snapshot()
	}
	if p.Result != nil {
		r := p.Result.clone()
		c.Result = &r
	}
	return &c
}
