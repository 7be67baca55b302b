package processor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/fjod/go_checkout/domain"
	"github.com/fjod/go_checkout/internal/metrics"
	"github.com/fjod/go_checkout/pkg/circuitbreaker"
	"github.com/fjod/go_checkout/pkg/logger"
)

const (
	tokenPath   = "/v1/oauth2/token"
	paymentPath = "/v1/payments/payment"
	paymentByID = "/v1/payments/payment/{id}"
	executePath = "/v1/payments/payment/{id}/execute"

	// tokenExpiryMargin renews the bearer token before the processor expires it.
	tokenExpiryMargin = time.Minute
)

const (
	callToken   = "token"
	callCreate  = "create"
	callExecute = "execute"
	callGet     = "get"
	callList    = "list"
)

const (
	outcomeRejected    = "rejected"
	outcomeUnavailable = "unavailable"
)

type Config struct {
	BaseURL  string
	ClientID string
	Secret   string
	Timeout  time.Duration
}

// HTTPClient implements Client against the processor's REST API.
type HTTPClient struct {
	rest     *resty.Client
	clientID string
	secret   string
	breaker  *circuitbreaker.Breaker
	metrics  *metrics.Metrics
	now      func() time.Time

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

type Option func(*HTTPClient)

func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(c *HTTPClient) { c.breaker = b }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *HTTPClient) { c.metrics = m }
}

// WithTransport replaces the underlying HTTP transport, e.g. with otelhttp.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *HTTPClient) { c.rest.SetTransport(rt) }
}

func NewHTTPClient(cfg Config, opts ...Option) *HTTPClient {
	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}

	c := &HTTPClient{
		rest:     rc,
		clientID: cfg.ClientID,
		secret:   cfg.Secret,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsRejection reports errors that must not count against the circuit breaker.
func IsRejection(err error) bool {
	return errors.Is(err, domain.ErrProcessorRejected)
}

func (c *HTTPClient) Create(ctx context.Context, req domain.CreatePaymentRequest) (*domain.CreatedPayment, error) {
	var out payment
	err := c.call(ctx, callCreate, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(newPaymentRequest(req)).SetResult(&out).Post(paymentPath)
	})
	if err != nil {
		return nil, err
	}

	redirect := out.approvalURL()
	if out.ID == "" || redirect == "" {
		return nil, &domain.ProcessorRejectedError{
			StatusCode: http.StatusOK,
			Name:       "MISSING_APPROVAL_URL",
			Reason:     "created payment carries no approval link",
		}
	}
	return &domain.CreatedPayment{ID: out.ID, RedirectURL: redirect}, nil
}

// Execute is never retried: a repeated execute could charge the payer twice.
func (c *HTTPClient) Execute(ctx context.Context, intentID, payerID string) (*domain.PaymentDetails, error) {
	var out payment
	err := c.call(ctx, callExecute, func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("id", intentID).
			SetBody(executeRequest{PayerID: payerID}).
			SetResult(&out).
			Post(executePath)
	})
	if err != nil {
		return nil, err
	}
	return out.toDetails()
}

func (c *HTTPClient) Get(ctx context.Context, intentID string) (*domain.PaymentDetails, error) {
	var out payment
	err := c.call(ctx, callGet, func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("id", intentID).SetResult(&out).Get(paymentByID)
	})
	if err != nil {
		return nil, err
	}
	return out.toDetails()
}

func (c *HTTPClient) List(ctx context.Context, limit, offset int) ([]domain.PaymentDetails, error) {
	if limit <= 0 {
		return nil, domain.ErrInvalidPageSize
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset %d", domain.ErrInvalidPageSize, offset)
	}

	var out paymentList
	err := c.call(ctx, callList, func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParams(map[string]string{
			"count":       strconv.Itoa(limit),
			"start_index": strconv.Itoa(offset),
		}).SetResult(&out).Get(paymentPath)
	})
	if err != nil {
		return nil, err
	}

	payments := make([]domain.PaymentDetails, 0, len(out.Payments))
	for _, p := range out.Payments {
		d, err := p.toDetails()
		if err != nil {
			return nil, fmt.Errorf("decode payment %s: %w", p.ID, err)
		}
		payments = append(payments, *d)
	}
	return payments, nil
}

// call runs one authenticated request through the circuit breaker.
func (c *HTTPClient) call(ctx context.Context, name string, send func(*resty.Request) (*resty.Response, error)) error {
	_, err := circuitbreaker.Do(c.breaker, func() (struct{}, error) {
		token, err := c.token(ctx)
		if err != nil {
			return struct{}{}, err
		}
		r := c.rest.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetHeader("Content-Type", "application/json").
			SetError(&errorResponse{})
		resp, err := send(r)
		if resp != nil && resp.StatusCode() == http.StatusUnauthorized {
			c.invalidateToken()
		}
		return struct{}{}, classify(resp, err)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		err = fmt.Errorf("%w: %w", domain.ErrProcessorUnavailable, err)
	}

	c.metrics.ObserveProcessorCall(name, outcome(err))
	if err != nil {
		logger.FromContext(ctx).Warn("processor_call_failed",
			zap.String("call", name),
			zap.Error(err),
		)
	}
	return err
}

func (c *HTTPClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.now().Before(c.expiresAt) {
		return c.accessToken, nil
	}

	var out tokenResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBasicAuth(c.clientID, c.secret).
		SetFormData(map[string]string{"grant_type": "client_credentials"}).
		SetResult(&out).
		SetError(&errorResponse{}).
		Post(tokenPath)
	if err := classify(resp, err); err != nil {
		c.metrics.ObserveProcessorCall(callToken, outcome(err))
		return "", fmt.Errorf("obtain access token: %w", err)
	}
	c.metrics.ObserveProcessorCall(callToken, metrics.OutcomeSuccess)

	c.accessToken = out.AccessToken
	c.expiresAt = c.now().Add(time.Duration(out.ExpiresIn)*time.Second - tokenExpiryMargin)
	return c.accessToken, nil
}

func (c *HTTPClient) invalidateToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = ""
}

// classify maps transport failures and 5xx to ErrProcessorUnavailable and
// 4xx to *domain.ProcessorRejectedError.
func classify(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrProcessorUnavailable, err)
	}
	status := resp.StatusCode()
	if status >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", domain.ErrProcessorUnavailable, status)
	}
	if !resp.IsError() {
		return nil
	}

	rejected := &domain.ProcessorRejectedError{StatusCode: status}
	if body, ok := resp.Error().(*errorResponse); ok && body != nil {
		rejected.Name = body.Name
		rejected.Reason = body.Message
		if rejected.Name == "" {
			rejected.Name = body.Error
			rejected.Reason = body.ErrorDescription
		}
		if rejected.Reason == "" && len(body.Details) > 0 {
			rejected.Reason = fmt.Sprintf("%s: %s", body.Details[0].Field, body.Details[0].Issue)
		}
	}
	if rejected.Reason == "" {
		rejected.Reason = http.StatusText(status)
	}
	return rejected
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case IsRejection(err):
		return outcomeRejected
	case errors.Is(err, domain.ErrProcessorUnavailable):
		return outcomeUnavailable
	default:
		return metrics.OutcomeError
	}
}
