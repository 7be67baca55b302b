package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/metrics"
	r "github.com/fjod/go_checkout/internal/repository"
	"github.com/fjod/go_checkout/internal/session"
)

const (
	testSuccessURL = "https://shop.example/return"
	testCancelURL  = "https://shop.example/cancel"
	testIntentID   = "PAY-1"
	testPayerID    = "PAYER-9"
	testAuthToken  = "EC-1"
)

type testEnv struct {
	svc       *CheckoutServiceImpl
	processor *MockProcessorClient
	sessions  *MockSessionStore
	intents   *MockIntentStore
	orders    *MockOrderStore
	notifier  *MockNotifier
	metrics   *metrics.Metrics
	tokens    []string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	memSessions := session.NewMemoryStore()
	t.Cleanup(func() { memSessions.Close() })

	env := &testEnv{
		processor: &MockProcessorClient{
			Created:        &domain.CreatedPayment{ID: testIntentID, RedirectURL: "https://processor.example/approve?token=" + testAuthToken},
			ExecuteDetails: approvedDetails(),
			GetDetails:     []*domain.PaymentDetails{createdDetails()},
		},
		sessions: &MockSessionStore{Store: memSessions},
		intents:  &MockIntentStore{MemoryRepository: r.NewMemoryRepository()},
		orders:   &MockOrderStore{},
		notifier: &MockNotifier{},
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
	env.svc = NewCheckoutService(
		NewProcessorHandler(env.processor, time.Second),
		env.sessions,
		env.intents,
		WithOrderStore(env.orders),
		WithNotifier(env.notifier),
		WithMetrics(env.metrics),
		WithSessionTTL(time.Hour),
	)
	env.svc.newToken = func() string {
		token := "session-" + string(rune('a'+len(env.tokens)))
		env.tokens = append(env.tokens, token)
		return token
	}
	return env
}

func usd(amount int64) domain.Money {
	return domain.Money{Amount: amount, Currency: "USD"}
}

// scenarioCart holds 3 x 500 + 1 x 1000 = 2500 USD.
func scenarioCart(t *testing.T) *domain.Cart {
	t.Helper()
	cart, err := domain.NewCart("USD")
	require.NoError(t, err)
	require.NoError(t, cart.AddItems(
		domain.LineItem{Name: "A", SKU: "a", UnitPrice: usd(500), Quantity: 3},
		domain.LineItem{Name: "B", SKU: "b", UnitPrice: usd(1000), Quantity: 1},
	))
	return cart
}

func createdDetails() *domain.PaymentDetails {
	return &domain.PaymentDetails{ID: testIntentID, State: domain.ProcessorStateCreated, Amount: usd(2500)}
}

func approvedDetails() *domain.PaymentDetails {
	return &domain.PaymentDetails{
		ID:         testIntentID,
		State:      domain.ProcessorStateApproved,
		Amount:     usd(2500),
		PayerID:    testPayerID,
		PayerEmail: "buyer@example.com",
		SaleID:     "SALE-7",
	}
}

func authorizedParams() domain.CallbackParams {
	return domain.CallbackParams{
		PayerID:            testPayerID,
		AuthorizationToken: testAuthToken,
		Extras:             map[string]string{domain.CallbackPaymentID: testIntentID},
	}
}

// startCheckout runs a successful CreateCheckout and returns the session token.
func (e *testEnv) startCheckout(t *testing.T) string {
	t.Helper()
	intent, err := e.svc.CreateCheckout(context.Background(), CheckoutRequest{
		Cart:       scenarioCart(t),
		SuccessURL: testSuccessURL,
		CancelURL:  testCancelURL,
	})
	require.NoError(t, err)
	return intent.SessionToken
}

func (e *testEnv) storedIntent(t *testing.T) *domain.PaymentIntent {
	t.Helper()
	intent, err := e.intents.GetIntent(context.Background(), testIntentID)
	require.NoError(t, err)
	return intent
}
