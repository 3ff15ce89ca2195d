package gueststore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trikooo/storefront/internal/domain"
)

type mapKV struct {
	m    sync.Mutex
	data map[string][]byte
	err  error
}

func newMapKV() *mapKV {
	return &mapKV{data: make(map[string][]byte)}
}

func (k *mapKV) Get(_ context.Context, key string) ([]byte, error) {
	k.m.Lock()
	defer k.m.Unlock()
	if k.err != nil {
		return nil, k.err
	}
	data, ok := k.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (k *mapKV) Set(_ context.Context, key string, value []byte) error {
	k.m.Lock()
	defer k.m.Unlock()
	if k.err != nil {
		return k.err
	}
	k.data[key] = value
	return nil
}

func (k *mapKV) Del(_ context.Context, key string) error {
	k.m.Lock()
	defer k.m.Unlock()
	delete(k.data, key)
	return nil
}

func (k *mapKV) has(key string) bool {
	k.m.Lock()
	defer k.m.Unlock()
	_, ok := k.data[key]
	return ok
}

func TestCartRoundTrip(t *testing.T) {
	kv := newMapKV()
	store := NewStore(kv, zap.NewNop())
	ctx := context.Background()

	items := []domain.CartItem{
		{ProductID: "p1", Quantity: 2, Price: 100, Product: domain.ProductSnapshot{Name: "Keyboard"}},
	}
	require.NoError(t, store.SetCart(ctx, "g1", items))

	got, err := store.Cart(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ProductID)
	assert.Equal(t, 2, got[0].Quantity)
}

func TestCartMissingIsEmpty(t *testing.T) {
	store := NewStore(newMapKV(), zap.NewNop())

	got, err := store.Cart(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCorruptCartIsDroppedAndDeleted(t *testing.T) {
	kv := newMapKV()
	store := NewStore(kv, zap.NewNop())
	ctx := context.Background()

	key := cartKey("g1")
	kv.data[key] = []byte(`{not json!`)

	got, err := store.Cart(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, kv.has(key), "corrupt entry should be deleted")
}

func TestCorruptSelectedAddressIsDroppedAndDeleted(t *testing.T) {
	kv := newMapKV()
	store := NewStore(kv, zap.NewNop())
	ctx := context.Background()

	key := selectedKey("g1")
	kv.data[key] = []byte(`[]`) // valid JSON, wrong shape

	got, err := store.SelectedAddress(ctx, "g1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, kv.has(key))
}

func TestTransportErrorSurfaces(t *testing.T) {
	kv := newMapKV()
	kv.err = errors.New("connection refused")
	store := NewStore(kv, zap.NewNop())

	_, err := store.Cart(context.Background(), "g1")
	assert.Error(t, err)
}

func TestClearCartRemovesKey(t *testing.T) {
	kv := newMapKV()
	store := NewStore(kv, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.SetCart(ctx, "g1", []domain.CartItem{{ProductID: "p1", Quantity: 1}}))
	require.NoError(t, store.ClearCart(ctx, "g1"))

	got, err := store.Cart(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, got)
}
