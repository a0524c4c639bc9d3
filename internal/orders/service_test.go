package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/averkiev79-droid/avk-pro-sub000/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSubmission() domain.OrderSubmission {
	cart := domain.Cart{Items: []domain.LineItem{
		{ID: "p1", Name: "Jersey", Price: decimal.NewFromInt(3500), Quantity: 12, SizeCategory: "adult", Color: "red"},
		{ID: "p2", Name: "Socks", Price: decimal.RequireFromString("199.50"), Quantity: 10},
	}}
	return domain.NewOrderSubmission(cart, domain.Customer{Name: "Ivan", Phone: "+70000000000", Email: "ivan@x.ru"})
}

func TestPlace_NewOrder(t *testing.T) {
	repo := NewMockRepository()
	pub := &MockPublisher{}
	svc := NewService(repo, pub, nil)

	order, created, err := svc.Place(context.Background(), newSubmission(), "key-1")

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, StatusNew, order.Status)
	assert.Equal(t, "key-1", order.IdempotencyKey)
	assert.True(t, decimal.RequireFromString("43995").Equal(order.TotalAmount))
	require.Len(t, pub.Published, 1)
	assert.Equal(t, order.ID, pub.Published[0].ID)
}

func TestPlace_DuplicateKeyReturnsFirstOrder(t *testing.T) {
	repo := NewMockRepository()
	pub := &MockPublisher{}
	svc := NewService(repo, pub, nil)

	first, _, err := svc.Place(context.Background(), newSubmission(), "key-1")
	require.NoError(t, err)
	second, created, err := svc.Place(context.Background(), newSubmission(), "key-1")
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, repo.Creates)
	assert.Len(t, pub.Published, 1)
}

func TestPlace_WithoutKeyAlwaysCreates(t *testing.T) {
	repo := NewMockRepository()
	svc := NewService(repo, nil, nil)

	first, _, err := svc.Place(context.Background(), newSubmission(), "")
	require.NoError(t, err)
	second, _, err := svc.Place(context.Background(), newSubmission(), "")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}

func TestPlace_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.OrderSubmission)
	}{
		{name: "missing name", mutate: func(s *domain.OrderSubmission) { s.CustomerName = "" }},
		{name: "missing phone", mutate: func(s *domain.OrderSubmission) { s.CustomerPhone = "" }},
		{name: "bad email", mutate: func(s *domain.OrderSubmission) { s.CustomerEmail = "nope" }},
		{name: "no items", mutate: func(s *domain.OrderSubmission) { s.Items = nil }},
		{name: "unnamed item", mutate: func(s *domain.OrderSubmission) { s.Items[0].ProductName = "" }},
		{name: "negative price", mutate: func(s *domain.OrderSubmission) {
			s.Items[0].Price = decimal.NewFromInt(-1)
		}},
		{name: "wrong total", mutate: func(s *domain.OrderSubmission) { s.TotalAmount = decimal.NewFromInt(1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockRepository()
			svc := NewService(repo, nil, nil)
			sub := newSubmission()
			tt.mutate(&sub)

			_, _, err := svc.Place(context.Background(), sub, "key")

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			assert.NotEmpty(t, vErr.Detail)
			assert.Zero(t, repo.Creates)
		})
	}
}

func TestPlace_RepositoryError(t *testing.T) {
	repo := NewMockRepository()
	repo.GetErr = errors.New("repository error")
	svc := NewService(repo, nil, nil)

	_, _, err := svc.Place(context.Background(), newSubmission(), "key")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to check idempotency")
}

func TestPlace_PublishFailureStillAccepts(t *testing.T) {
	repo := NewMockRepository()
	svc := NewService(repo, &MockPublisher{Err: errors.New("broker down")}, nil)

	order, created, err := svc.Place(context.Background(), newSubmission(), "key")

	require.NoError(t, err)
	assert.True(t, created)
	stored, err := repo.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, stored.ID)
}
