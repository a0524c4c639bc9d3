package orders

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MockRepository implements Repository in memory for testing
type MockRepository struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*Order
	byKey    map[string]*Order
	GetErr   error
	CreateErr error
	Creates  int
}

func NewMockRepository() *MockRepository {
	return &MockRepository{byID: map[uuid.UUID]*Order{}, byKey: map[string]*Order{}}
}

func (m *MockRepository) CreateOrder(_ context.Context, order *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Creates++
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if order.IdempotencyKey != "" {
		if _, ok := m.byKey[order.IdempotencyKey]; ok {
			return ErrDuplicateOrder
		}
		m.byKey[order.IdempotencyKey] = order
	}
	m.byID[order.ID] = order
	return nil
}

func (m *MockRepository) GetOrderByID(_ context.Context, id uuid.UUID) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if order, ok := m.byID[id]; ok {
		return order, nil
	}
	return nil, ErrOrderNotFound
}

func (m *MockRepository) GetOrderByIdempotencyKey(_ context.Context, key string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if order, ok := m.byKey[key]; ok {
		return order, nil
	}
	return nil, ErrOrderNotFound
}

// MockPublisher records published orders
type MockPublisher struct {
	mu        sync.Mutex
	Published []*Order
	Err       error
}

func (m *MockPublisher) OrderPlaced(_ context.Context, order *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Published = append(m.Published, order)
	return nil
}
