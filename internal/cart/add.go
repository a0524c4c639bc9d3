package cart

import (
	"context"
	"fmt"

	"github.com/averkiev79-droid/avk-pro-sub000/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Add is the catalog's add-to-cart path. Adding an id already in the cart
// raises the quantity of the existing line; its snapshotted name and price
// are kept.
func Add(ctx context.Context, store Store, item domain.LineItem) (domain.Cart, error) {
	if item.Quantity < domain.MinOrderQuantity {
		return domain.Cart{}, ErrBelowMinimum
	}
	if err := validate.Struct(item); err != nil {
		return domain.Cart{}, fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	if item.Price.IsNegative() {
		return domain.Cart{}, fmt.Errorf("%w: price must not be negative", ErrInvalidItem)
	}

	cart := store.Load(ctx)
	if idx := cart.Find(item.ID); idx >= 0 {
		cart.Items[idx].Quantity += item.Quantity
	} else {
		cart.Items = append(cart.Items, item)
	}

	if err := store.Save(ctx, cart); err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}
