package storage

import (
	"context"
	"errors"
	"fmt"
)

// Well-known record keys inside an origin.
const (
	KeyCart            = "cart"
	KeyCookiesAccepted = "cookiesAccepted"
)

var ErrNotFound = errors.New("record not found")

// Storage is durable key-value persistence scoped to a storage origin
// (one shopper session). Values are opaque strings.
type Storage interface {
	Get(ctx context.Context, origin, key string) (string, error)
	Set(ctx context.Context, origin, key, value string) error
	Delete(ctx context.Context, origin, key string) error
}

func recordKey(origin, key string) string {
	return fmt.Sprintf("sf:%s:%s", origin, key)
}
