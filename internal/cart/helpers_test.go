package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/averkiev79-droid/avk-pro-sub000/internal/domain"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/notify"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testOrigin = "origin-1"

var errStorageDown = errors.New("storage down")

// countingStorage wraps MemoryStorage, counting writes and optionally failing.
type countingStorage struct {
	*storage.MemoryStorage

	mu      sync.Mutex
	writes  int
	failGet bool
	failSet bool
}

func newCountingStorage() *countingStorage {
	return &countingStorage{MemoryStorage: storage.NewMemoryStorage()}
}

func (c *countingStorage) Get(ctx context.Context, origin, key string) (string, error) {
	c.mu.Lock()
	fail := c.failGet
	c.mu.Unlock()
	if fail {
		return "", errStorageDown
	}
	return c.MemoryStorage.Get(ctx, origin, key)
}

func (c *countingStorage) Set(ctx context.Context, origin, key, value string) error {
	c.mu.Lock()
	fail := c.failSet
	if !fail {
		c.writes++
	}
	c.mu.Unlock()
	if fail {
		return errStorageDown
	}
	return c.MemoryStorage.Set(ctx, origin, key, value)
}

func (c *countingStorage) Delete(ctx context.Context, origin, key string) error {
	c.mu.Lock()
	fail := c.failSet
	if !fail {
		c.writes++
	}
	c.mu.Unlock()
	if fail {
		return errStorageDown
	}
	return c.MemoryStorage.Delete(ctx, origin, key)
}

func (c *countingStorage) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

func (c *countingStorage) raw(t *testing.T) (string, bool) {
	t.Helper()
	value, err := c.MemoryStorage.Get(context.Background(), testOrigin, storage.KeyCart)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false
	}
	require.NoError(t, err)
	return value, true
}

func lineItem(id, name string, price int64, qty int) domain.LineItem {
	return domain.LineItem{ID: id, Name: name, Price: decimal.NewFromInt(price), Quantity: qty}
}

// newTab wires a store for one tab of testOrigin.
func newTab(st storage.Storage, tabID string, bc notify.Broadcaster) (*DurableStore, *notify.Bus) {
	bus := notify.NewBus()
	return NewDurableStore(st, testOrigin, tabID, bus, bc, nil), bus
}
