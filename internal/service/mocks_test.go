package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fjod/go_checkout/domain"
	r "github.com/fjod/go_checkout/internal/repository"
	"github.com/fjod/go_checkout/internal/session"
)

// MockProcessorClient implements processor.Client for testing
type MockProcessorClient struct {
	mu sync.Mutex

	Created   *domain.CreatedPayment
	CreateErr error
	Requests  []domain.CreatePaymentRequest

	ExecuteDetails *domain.PaymentDetails
	ExecuteErr     error
	ExecuteCalls   int
	ExecutePayers  []string
	// ExecuteEntered and ExecuteRelease, when set, make Execute block until released.
	ExecuteEntered chan struct{}
	ExecuteRelease chan struct{}

	GetDetails []*domain.PaymentDetails // returned in order, last one repeats
	GetErr     error
	GetCalls   int

	ListPayments []domain.PaymentDetails
	ListErr      error
	ListCalls    int

	Delay time.Duration
}

func (m *MockProcessorClient) Create(ctx context.Context, req domain.CreatePaymentRequest) (*domain.CreatedPayment, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	created, err := m.Created, m.CreateErr
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return created, err
}

func (m *MockProcessorClient) Execute(_ context.Context, _ string, payerID string) (*domain.PaymentDetails, error) {
	m.mu.Lock()
	m.ExecuteCalls++
	m.ExecutePayers = append(m.ExecutePayers, payerID)
	entered, release := m.ExecuteEntered, m.ExecuteRelease
	details, err := m.ExecuteDetails, m.ExecuteErr
	m.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}
	return details, err
}

func (m *MockProcessorClient) Get(_ context.Context, _ string) (*domain.PaymentDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if len(m.GetDetails) == 0 {
		return nil, errors.New("no payment configured")
	}
	d := m.GetDetails[0]
	if len(m.GetDetails) > 1 {
		m.GetDetails = m.GetDetails[1:]
	}
	return d, nil
}

func (m *MockProcessorClient) List(_ context.Context, _, _ int) ([]domain.PaymentDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls++
	return m.ListPayments, m.ListErr
}

func (m *MockProcessorClient) executeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ExecuteCalls
}

// MockSessionStore implements session.Store with injectable failures
type MockSessionStore struct {
	session.Store
	PutErr error
	GetErr error
}

func (m *MockSessionStore) Put(ctx context.Context, token, intentID string, ttl time.Duration) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	return m.Store.Put(ctx, token, intentID, ttl)
}

func (m *MockSessionStore) GetAndDelete(ctx context.Context, token string) (string, error) {
	if m.GetErr != nil {
		return "", m.GetErr
	}
	return m.Store.GetAndDelete(ctx, token)
}

// MockIntentStore wraps the in-memory repository and fails selected updates
type MockIntentStore struct {
	*r.MemoryRepository
	SaveErr   error
	UpdateErr map[domain.IntentStatus]error // keyed by the status being written
}

func (m *MockIntentStore) SaveIntent(ctx context.Context, intent *domain.PaymentIntent) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	return m.MemoryRepository.SaveIntent(ctx, intent)
}

func (m *MockIntentStore) UpdateIntent(ctx context.Context, intent *domain.PaymentIntent, expected domain.IntentStatus) error {
	if err := m.UpdateErr[intent.Status]; err != nil {
		return err
	}
	return m.MemoryRepository.UpdateIntent(ctx, intent, expected)
}

// MockOrderStore implements r.OrderStore for testing
type MockOrderStore struct {
	mu       sync.Mutex
	Err      error
	Recorded []string
}

func (m *MockOrderStore) OnPaymentExecuted(_ context.Context, intentID string, _ *domain.PaymentDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Recorded = append(m.Recorded, intentID)
	return m.Err
}

// MockNotifier implements notifier.Notifier for testing
type MockNotifier struct {
	mu   sync.Mutex
	Err  error
	Sent []string
}

func (m *MockNotifier) SendReceipt(_ context.Context, details *domain.PaymentDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, details.ID)
	return m.Err
}
