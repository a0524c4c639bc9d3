// Package orders is the reference receiver of POST /api/orders: it stores
// submitted orders in Postgres and announces them on Kafka.
package orders

import (
	"time"

	"github.com/averkiev79-droid/avk-pro-sub000/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusNew       Status = "NEW"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
)

type Order struct {
	ID              uuid.UUID          `json:"id"`
	IdempotencyKey  string             `json:"-"`
	CustomerName    string             `json:"customer_name"`
	CustomerPhone   string             `json:"customer_phone"`
	CustomerEmail   string             `json:"customer_email"`
	ShippingAddress string             `json:"shipping_address"`
	OrderNotes      string             `json:"order_notes"`
	Items           []domain.OrderItem `json:"items"`
	TotalAmount     decimal.Decimal    `json:"total_amount"`
	Status          Status             `json:"status"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

func NewOrder(sub domain.OrderSubmission, idempotencyKey string) *Order {
	return &Order{
		ID:              uuid.New(),
		IdempotencyKey:  idempotencyKey,
		CustomerName:    sub.CustomerName,
		CustomerPhone:   sub.CustomerPhone,
		CustomerEmail:   sub.CustomerEmail,
		ShippingAddress: sub.ShippingAddress,
		OrderNotes:      sub.OrderNotes,
		Items:           sub.Items,
		TotalAmount:     sub.TotalAmount,
		Status:          StatusNew,
	}
}

// ItemsTotal recomputes the order value from its lines.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}
