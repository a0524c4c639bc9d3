package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage_RoundTrip(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	_, err := store.Get(ctx, "o", KeyCart)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "o", KeyCart, "[]"))
	value, err := store.Get(ctx, "o", KeyCart)
	require.NoError(t, err)
	assert.Equal(t, "[]", value)

	// origins do not see each other's records
	_, err = store.Get(ctx, "other", KeyCart)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete(ctx, "o", KeyCart))
	_, err = store.Get(ctx, "o", KeyCart)
	assert.ErrorIs(t, err, ErrNotFound)
}
