package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/metrics"
)

func TestCreateCheckout_Success(t *testing.T) {
	env := newTestEnv(t)

	intent, err := env.svc.CreateCheckout(context.Background(), CheckoutRequest{
		Cart:        scenarioCart(t),
		SuccessURL:  testSuccessURL,
		Description: "order 42",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.IntentStatusAwaitingAuthorization, intent.Status)
	assert.Equal(t, testIntentID, intent.ID)
	assert.Equal(t, "https://processor.example/approve?token=EC-1", intent.RedirectURL)
	assert.Equal(t, "session-a", intent.SessionToken)
	assert.Equal(t, testSuccessURL, intent.CancelURL, "cancel url defaults to success url")

	require.Len(t, env.processor.Requests, 1)
	req := env.processor.Requests[0]
	assert.Equal(t, usd(2500), req.Amount)
	assert.Equal(t, testSuccessURL, req.SuccessURL)
	assert.Equal(t, testSuccessURL, req.CancelURL)
	assert.Equal(t, "order 42", req.Description)
	assert.Len(t, req.Items, 2)

	stored := env.storedIntent(t)
	assert.Equal(t, domain.IntentStatusAwaitingAuthorization, stored.Status)
	assert.Equal(t, "session-a", stored.SessionToken)

	intentID, err := env.sessions.GetAndDelete(context.Background(), "session-a")
	require.NoError(t, err)
	assert.Equal(t, testIntentID, intentID)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Operations().WithLabelValues(opCreate, metrics.OutcomeSuccess)))
}

func TestCreateCheckout_KeepsExplicitCancelURL(t *testing.T) {
	env := newTestEnv(t)

	intent, err := env.svc.CreateCheckout(context.Background(), CheckoutRequest{
		Cart:       scenarioCart(t),
		SuccessURL: testSuccessURL,
		CancelURL:  testCancelURL,
	})
	require.NoError(t, err)
	assert.Equal(t, testCancelURL, intent.CancelURL)
	assert.Equal(t, testCancelURL, env.processor.Requests[0].CancelURL)
}

func TestCreateCheckout_CartSnapshotIsIndependent(t *testing.T) {
	env := newTestEnv(t)
	cart := scenarioCart(t)

	intent, err := env.svc.CreateCheckout(context.Background(), CheckoutRequest{Cart: cart, SuccessURL: testSuccessURL})
	require.NoError(t, err)

	require.NoError(t, cart.AddItem(domain.LineItem{Name: "C", SKU: "c", UnitPrice: usd(100), Quantity: 1}))
	assert.Equal(t, usd(2500), intent.Total())
	assert.Equal(t, usd(2500), env.storedIntent(t).Total())
}

func TestCreateCheckout_ValidationMakesNoProcessorCall(t *testing.T) {
	emptyCart, err := domain.NewCart("USD")
	require.NoError(t, err)

	tests := []struct {
		name    string
		req     CheckoutRequest
		wantErr error
	}{
		{"nil cart", CheckoutRequest{SuccessURL: testSuccessURL}, domain.ErrEmptyCart},
		{"empty cart", CheckoutRequest{Cart: emptyCart, SuccessURL: testSuccessURL}, domain.ErrEmptyCart},
		{"missing success url", CheckoutRequest{Cart: scenarioCart(t), SuccessURL: "  "}, domain.ErrMissingReturnURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			intent, err := env.svc.CreateCheckout(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, intent)
			assert.Empty(t, env.processor.Requests)
			assert.Empty(t, env.tokens)
		})
	}
}

func TestCreateCheckout_ProcessorRejection(t *testing.T) {
	env := newTestEnv(t)
	env.processor.CreateErr = &domain.ProcessorRejectedError{StatusCode: 400, Name: "VALIDATION_ERROR", Reason: "bad amount"}

	intent, err := env.svc.CreateCheckout(context.Background(), CheckoutRequest{Cart: scenarioCart(t), SuccessURL: testSuccessURL})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPaymentCreationFailed)
	assert.ErrorIs(t, err, domain.ErrProcessorRejected)

	var payErr *domain.PaymentError
	require.ErrorAs(t, err, &payErr)
	assert.Equal(t, domain.OpCreate, payErr.Op)

	require.NotNil(t, intent)
	assert.Equal(t, domain.IntentStatusFailed, intent.Status)
	assert.Contains(t, intent.FailureReason, "bad amount")
	assert.Empty(t, env.tokens, "no session is issued for a failed payment")

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Operations().WithLabelValues(opCreate, metrics.OutcomeError)))
}

func TestCreateCheckout_ProcessorUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.processor.CreateErr = domain.ErrProcessorUnavailable

	intent, err := env.svc.CreateCheckout(context.Background(), CheckoutRequest{Cart: scenarioCart(t), SuccessURL: testSuccessURL})

	assert.ErrorIs(t, err, domain.ErrPaymentCreationFailed)
	assert.ErrorIs(t, err, domain.ErrProcessorUnavailable)
	assert.Equal(t, domain.IntentStatusFailed, intent.Status)
}

func TestCreateCheckout_TimeoutIsUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.processor.Delay = time.Second
	env.svc.processor.timeout = 20 * time.Millisecond

	intent, err := env.svc.CreateCheckout(context.Background(), CheckoutRequest{Cart: scenarioCart(t), SuccessURL: testSuccessURL})

	assert.ErrorIs(t, err, domain.ErrPaymentCreationFailed)
	assert.ErrorIs(t, err, domain.ErrProcessorUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, domain.IntentStatusFailed, intent.Status)
}

func TestCreateCheckout_SaveFailure(t *testing.T) {
	env := newTestEnv(t)
	env.intents.SaveErr = errors.New("connection refused")

	intent, err := env.svc.CreateCheckout(context.Background(), CheckoutRequest{Cart: scenarioCart(t), SuccessURL: testSuccessURL})

	assert.ErrorContains(t, err, "save payment intent")
	assert.Equal(t, domain.IntentStatusFailed, intent.Status)
	assert.Empty(t, env.tokens)
}

func TestCreateCheckout_SessionStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.sessions.PutErr = errors.New("redis down")

	intent, err := env.svc.CreateCheckout(context.Background(), CheckoutRequest{Cart: scenarioCart(t), SuccessURL: testSuccessURL})

	assert.ErrorContains(t, err, "store checkout session")
	assert.Equal(t, domain.IntentStatusFailed, intent.Status)
	assert.Equal(t, domain.IntentStatusFailed, env.storedIntent(t).Status)
}
