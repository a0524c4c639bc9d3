package domain

import "github.com/shopspring/decimal"

// MinOrderQuantity is the smallest quantity a single line item may carry.
const MinOrderQuantity = 10

func init() {
	// prices travel as plain JSON numbers, the browser record never quoted them
	decimal.MarshalJSONWithoutQuotes = true
}

// LineItem is one row of the cart. Name and Price are snapshotted when the
// item is added and never looked up again.
type LineItem struct {
	ID           string          `json:"id" validate:"required"`
	Name         string          `json:"name" validate:"required"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity" validate:"gte=10"`
	Image        string          `json:"image,omitempty"`
	SizeCategory string          `json:"sizeCategory,omitempty"`
	Color        string          `json:"color,omitempty"`
}

func (i LineItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the ordered list of line items persisted under the `cart` key.
type Cart struct {
	Items []LineItem
}

func (c Cart) Empty() bool {
	return len(c.Items) == 0
}

// Total is recomputed on every call; it is never cached on the items.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Count is the number of units across all lines, never negative.
func (c Cart) Count() int {
	count := 0
	for _, item := range c.Items {
		if item.Quantity > 0 {
			count += item.Quantity
		}
	}
	return count
}

// Find returns the index of the line with the given id or -1.
func (c Cart) Find(id string) int {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone copies the item slice so callers can mutate without aliasing.
func (c Cart) Clone() Cart {
	if c.Items == nil {
		return Cart{}
	}
	items := make([]LineItem, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}
