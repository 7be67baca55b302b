package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draftIntent(t *testing.T) *PaymentIntent {
	t.Helper()
	cart := newUSDCart(t)
	require.NoError(t, cart.AddItem(LineItem{SKU: "A", UnitPrice: usd(500), Quantity: 2}))
	return NewPaymentIntent(cart, "https://shop/ok", "", "Order #1")
}

func TestNewPaymentIntent_DefaultsCancelURL(t *testing.T) {
	intent := draftIntent(t)
	assert.Equal(t, IntentStatusDraft, intent.Status)
	assert.Equal(t, "https://shop/ok", intent.CancelURL)
	assert.Empty(t, intent.ID)

	cart := newUSDCart(t)
	explicit := NewPaymentIntent(cart, "https://shop/ok", "https://shop/cancel", "")
	assert.Equal(t, "https://shop/cancel", explicit.CancelURL)
}

func TestNewPaymentIntent_SnapshotsCart(t *testing.T) {
	cart := newUSDCart(t)
	require.NoError(t, cart.AddItem(LineItem{SKU: "A", UnitPrice: usd(500), Quantity: 1}))
	intent := NewPaymentIntent(cart, "https://shop/ok", "", "")

	require.NoError(t, cart.AddItem(LineItem{SKU: "B", UnitPrice: usd(500), Quantity: 1}))
	assert.Equal(t, usd(500), intent.Total())
}

func TestPaymentIntent_HappyPath(t *testing.T) {
	intent := draftIntent(t)

	require.NoError(t, intent.MarkCreated("PAY-1", "https://processor/approve"))
	assert.Equal(t, IntentStatusCreated, intent.Status)
	assert.Equal(t, "PAY-1", intent.ID)

	require.NoError(t, intent.MarkAwaitingAuthorization("tok"))
	assert.Equal(t, IntentStatusAwaitingAuthorization, intent.Status)
	assert.Equal(t, "tok", intent.SessionToken)

	require.NoError(t, intent.MarkAuthorized("PAYER", "EC-1"))
	assert.Equal(t, "EC-1", intent.AuthorizationRef)

	details := &PaymentDetails{ID: "PAY-1", State: ProcessorStateApproved}
	require.NoError(t, intent.MarkExecuted(details))
	assert.Equal(t, IntentStatusExecuted, intent.Status)
	assert.True(t, intent.Status.IsTerminal())
	assert.Same(t, details, intent.Result)
}

func TestPaymentIntent_IllegalTransitions(t *testing.T) {
	intent := draftIntent(t)

	assert.ErrorIs(t, intent.MarkExecuted(&PaymentDetails{}), ErrIllegalTransition)
	assert.ErrorIs(t, intent.MarkCancelled("x"), ErrIllegalTransition)
	assert.Equal(t, IntentStatusDraft, intent.Status)

	require.NoError(t, intent.MarkFailed("boom"))
	assert.Equal(t, "boom", intent.FailureReason)
	assert.ErrorIs(t, intent.MarkCreated("id", "url"), ErrIllegalTransition)
	assert.ErrorIs(t, intent.MarkFailed("again"), ErrIllegalTransition)
}

func TestPaymentIntent_ExecutedIsFinal(t *testing.T) {
	intent := draftIntent(t)
	require.NoError(t, intent.MarkCreated("PAY-1", "u"))
	require.NoError(t, intent.MarkAwaitingAuthorization("tok"))
	require.NoError(t, intent.MarkExecuted(&PaymentDetails{ID: "PAY-1"}))

	assert.ErrorIs(t, intent.MarkExecuted(&PaymentDetails{ID: "PAY-1"}), ErrIllegalTransition)
	assert.ErrorIs(t, intent.MarkFailed("x"), ErrIllegalTransition)
}

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to IntentStatus
		want     bool
	}{
		{IntentStatusDraft, IntentStatusCreated, true},
		{IntentStatusDraft, IntentStatusAwaitingAuthorization, false},
		{IntentStatusCreated, IntentStatusAwaitingAuthorization, true},
		{IntentStatusAwaitingAuthorization, IntentStatusCancelled, true},
		{IntentStatusAwaitingAuthorization, IntentStatusAuthorized, true},
		{IntentStatusAuthorized, IntentStatusExecuted, true},
		{IntentStatusAuthorized, IntentStatusCancelled, false},
		{IntentStatusExecuted, IntentStatusFailed, false},
		{IntentStatusCancelled, IntentStatusAuthorized, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransitionTo(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestClone(t *testing.T) {
	intent := draftIntent(t)
	require.NoError(t, intent.MarkCreated("PAY-1", "u"))
	require.NoError(t, intent.MarkAwaitingAuthorization("tok"))
	require.NoError(t, intent.MarkExecuted(&PaymentDetails{ID: "PAY-1", Items: []LineItem{{SKU: "A"}}}))

	c := intent.Clone()
	c.Result.Items[0].SKU = "Z"
	c.Status = IntentStatusFailed
	assert.Equal(t, "A", intent.Result.Items[0].SKU)
	assert.Equal(t, IntentStatusExecuted, intent.Status)
}

func TestCallbackParamsFromValues(t *testing.T) {
	p := CallbackParamsFromValues(map[string][]string{
		"PayerID":   {"PAYER"},
		"token":     {"EC-1"},
		"paymentId": {"PAY-1"},
		"empty":     {},
	})
	assert.Equal(t, "PAYER", p.PayerID)
	assert.Equal(t, "EC-1", p.AuthorizationToken)
	assert.Equal(t, "PAY-1", p.Extras["paymentId"])
	assert.True(t, p.Authorized())
	assert.False(t, p.Empty())

	assert.True(t, CallbackParamsFromValues(nil).Empty())
}

func TestErrors(t *testing.T) {
	rejected := &ProcessorRejectedError{StatusCode: 400, Name: "VALIDATION_ERROR", Reason: "bad"}
	assert.ErrorIs(t, rejected, ErrProcessorRejected)

	err := &PaymentError{Op: OpCreate, Err: rejected}
	assert.ErrorIs(t, err, ErrPaymentCreationFailed)
	assert.NotErrorIs(t, err, ErrPaymentExecutionFailed)
	assert.ErrorIs(t, err, ErrProcessorRejected)
	assert.Contains(t, err.Error(), "bad")

	var target *ProcessorRejectedError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, 400, target.StatusCode)

	exec := &PaymentError{Op: OpExecute, IntentID: "PAY-1", Err: ErrProcessorUnavailable}
	assert.ErrorIs(t, exec, ErrPaymentExecutionFailed)
	assert.ErrorIs(t, exec, ErrProcessorUnavailable)
	assert.Contains(t, exec.Error(), "PAY-1")
}
