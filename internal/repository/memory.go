package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fjod/go_checkout/domain"
)

// MemoryRepository implements RepoInterface in process memory. It backs
// single-instance deployments without Postgres and the service tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	intents  map[string]*domain.PaymentIntent
	executed map[string]*domain.PaymentDetails
	events   []*OutboxEvent
	nextID   int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		intents:  make(map[string]*domain.PaymentIntent),
		executed: make(map[string]*domain.PaymentDetails),
	}
}

func (m *MemoryRepository) SaveIntent(_ context.Context, intent *domain.PaymentIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.intents[intent.ID]; exists {
		return ErrIntentExists
	}
	m.intents[intent.ID] = intent.Clone()
	return nil
}

func (m *MemoryRepository) GetIntent(_ context.Context, id string) (*domain.PaymentIntent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	intent, exists := m.intents[id]
	if !exists {
		return nil, domain.ErrIntentNotFound
	}
	return intent.Clone(), nil
}

func (m *MemoryRepository) UpdateIntent(_ context.Context, intent *domain.PaymentIntent, expected domain.IntentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, exists := m.intents[intent.ID]
	if !exists {
		return domain.ErrIntentNotFound
	}
	if stored.Status != expected {
		return ErrStaleIntent
	}
	m.intents[intent.ID] = intent.Clone()
	return nil
}

func (m *MemoryRepository) OnPaymentExecuted(_ context.Context, intentID string, details *domain.PaymentDetails) error {
	executedAt := time.Now().UTC()
	payload, err := newExecutedPayload(intentID, details, executedAt)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, done := m.executed[intentID]; done {
		return nil
	}
	d := *details
	m.executed[intentID] = &d

	m.nextID++
	m.events = append(m.events, &OutboxEvent{
		ID:          m.nextID,
		AggregateId: intentID,
		EventType:   EventPaymentExecuted,
		Payload:     payload,
		CreatedAt:   executedAt,
	})
	return nil
}

// Executed returns the recorded details for intentID, if any.
func (m *MemoryRepository) Executed(intentID string) (*domain.PaymentDetails, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.executed[intentID]
	return d, ok
}

func (m *MemoryRepository) GetUnprocessedEvents(_ context.Context, limit int) ([]*OutboxEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*OutboxEvent, 0, len(m.events))
	for _, e := range m.events {
		if len(events) == limit {
			break
		}
		ev := *e
		events = append(events, &ev)
	}
	return events, nil
}

func (m *MemoryRepository) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, e := range m.events {
		if e.ID == id {
			m.events = append(m.events[:i], m.events[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MemoryRepository) GetUnrecordedExecutions(_ context.Context, limit int) ([]*domain.PaymentIntent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var intents []*domain.PaymentIntent
	for id, intent := range m.intents {
		if intent.Status != domain.IntentStatusExecuted {
			continue
		}
		if _, done := m.executed[id]; done {
			continue
		}
		intents = append(intents, intent.Clone())
	}
	sort.Slice(intents, func(i, j int) bool {
		return intents[i].UpdatedAt.Before(intents[j].UpdatedAt)
	})
	if len(intents) > limit {
		intents = intents[:limit]
	}
	return intents, nil
}

func (m *MemoryRepository) Close() error {
	return nil
}
