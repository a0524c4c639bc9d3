package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// OrderItem is a cart line reduced to what the Order API needs.
type OrderItem struct {
	ProductName  string          `json:"product_name" validate:"required"`
	Quantity     int             `json:"quantity" validate:"gte=1"`
	Price        decimal.Decimal `json:"price"`
	SizeCategory string          `json:"size_category"`
	Color        string          `json:"color"`
}

// OrderSubmission is the document sent to POST /api/orders.
type OrderSubmission struct {
	CustomerName    string          `json:"customer_name" validate:"required"`
	CustomerPhone   string          `json:"customer_phone" validate:"required"`
	CustomerEmail   string          `json:"customer_email" validate:"required,email"`
	ShippingAddress string          `json:"shipping_address"`
	OrderNotes      string          `json:"order_notes"`
	Items           []OrderItem     `json:"items" validate:"required,min=1,dive"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
}

// NewOrderSubmission snapshots the cart at submission time.
func NewOrderSubmission(cart Cart, customer Customer) OrderSubmission {
	items := make([]OrderItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, OrderItem{
			ProductName:  item.Name,
			Quantity:     item.Quantity,
			Price:        item.Price,
			SizeCategory: item.SizeCategory,
			Color:        item.Color,
		})
	}

	return OrderSubmission{
		CustomerName:    customer.Name,
		CustomerPhone:   customer.Phone,
		CustomerEmail:   customer.Email,
		ShippingAddress: customer.Address,
		OrderNotes:      ComposeNotes(customer.TeamName, customer.Notes),
		Items:           items,
		TotalAmount:     cart.Total(),
	}
}

// Customer holds the checkout form fields.
type Customer struct {
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	TeamName string `json:"team_name"`
	Address  string `json:"address"`
	Notes    string `json:"notes"`
}

// ComposeNotes joins the optional team name and free-form notes.
func ComposeNotes(teamName, notes string) string {
	parts := make([]string, 0, 2)
	if t := strings.TrimSpace(teamName); t != "" {
		parts = append(parts, "Team: "+t)
	}
	if n := strings.TrimSpace(notes); n != "" {
		parts = append(parts, n)
	}
	return strings.Join(parts, "\n")
}
