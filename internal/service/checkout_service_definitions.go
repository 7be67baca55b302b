package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/metrics"
	"github.com/fjod/go_checkout/internal/notifier"
	r "github.com/fjod/go_checkout/internal/repository"
	"github.com/fjod/go_checkout/internal/session"
)

// DefaultSessionTTL matches how long the processor keeps an approval link valid.
const DefaultSessionTTL = 3 * time.Hour

const tracerName = "github.com/fjod/go_checkout/internal/service"

type CheckoutService interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*domain.PaymentIntent, error)
	CompleteCheckout(ctx context.Context, sessionToken string, params domain.CallbackParams) (*domain.PaymentResult, error)
	GetPayment(ctx context.Context, intentID string) (*domain.PaymentDetails, error)
	ListPayments(ctx context.Context, limit, offset int) ([]domain.PaymentDetails, error)
}

type CheckoutRequest struct {
	Cart        *domain.Cart
	SuccessURL  string
	CancelURL   string
	Description string
}

type CheckoutServiceImpl struct {
	processor  *ProcessorHandler
	sessions   session.Store
	intents    r.IntentStore
	orders     r.OrderStore
	notifier   notifier.Notifier
	sessionTTL time.Duration
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	newToken   func() string
}

type Option func(*CheckoutServiceImpl)

func WithOrderStore(orders r.OrderStore) Option {
	return func(s *CheckoutServiceImpl) { s.orders = orders }
}

func WithNotifier(n notifier.Notifier) Option {
	return func(s *CheckoutServiceImpl) { s.notifier = n }
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(s *CheckoutServiceImpl) { s.sessionTTL = ttl }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *CheckoutServiceImpl) { s.metrics = m }
}

func NewCheckoutService(processor *ProcessorHandler, sessions session.Store, intents r.IntentStore, opts ...Option) *CheckoutServiceImpl {
	s := &CheckoutServiceImpl{
		processor:  processor,
		sessions:   sessions,
		intents:    intents,
		sessionTTL: DefaultSessionTTL,
		tracer:     otel.Tracer(tracerName),
		newToken:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
