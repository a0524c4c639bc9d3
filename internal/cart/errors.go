package cart

import "errors"

var (
	ErrBelowMinimum = errors.New("quantity is below the minimum order quantity")
	ErrItemNotFound = errors.New("item not found in cart")
	ErrInvalidItem  = errors.New("invalid cart item")
)
