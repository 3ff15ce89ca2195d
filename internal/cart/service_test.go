package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trikooo/storefront/internal/cache"
	"github.com/trikooo/storefront/internal/domain"
	"github.com/trikooo/storefront/internal/repository"
)

type mockRepository struct {
	m       sync.RWMutex
	cart    *domain.Cart
	err     error
	upserts int
}

func (m *mockRepository) GetCart(context.Context, string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.cart == nil {
		return nil, repository.ErrCartNotFound
	}
	clone := *m.cart
	clone.Items = append([]domain.CartItem(nil), m.cart.Items...)
	return &clone, nil
}

func (m *mockRepository) UpsertCart(_ context.Context, c *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.cart = c
	m.upserts++
	return nil
}

func (m *mockRepository) AddItem(_ context.Context, _ string, item domain.CartItem) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.cart == nil {
		m.cart = &domain.Cart{Items: []domain.CartItem{item}}
		return nil
	}
	m.cart.Items = append(m.cart.Items, item)
	return nil
}

func (m *mockRepository) UpdateItemQuantity(_ context.Context, _ string, productID string, quantity int) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	for i := range m.cart.Items {
		if m.cart.Items[i].ProductID == productID {
			m.cart.Items[i].Quantity = quantity
			return nil
		}
	}
	return repository.ErrItemNotFound
}

func (m *mockRepository) RemoveItem(_ context.Context, _ string, productID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	for i, item := range m.cart.Items {
		if item.ProductID == productID {
			m.cart.Items = append(m.cart.Items[:i], m.cart.Items[i+1:]...)
			return nil
		}
	}
	return repository.ErrItemNotFound
}

func (m *mockRepository) DeleteCart(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.cart = nil
	return nil
}

type mockCache struct {
	m    sync.Mutex
	cart *domain.Cart
}

func (m *mockCache) Get(context.Context, string) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.cart == nil {
		return nil, cache.ErrCacheMiss
	}
	return m.cart, nil
}

func (m *mockCache) Set(_ context.Context, _ string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cart = cart
	return nil
}

func (m *mockCache) Delete(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cart = nil
	return nil
}

type mockGuestCarts struct {
	m     sync.Mutex
	items []domain.CartItem
	err   error
}

func (m *mockGuestCarts) Cart(context.Context, string) ([]domain.CartItem, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.items, nil
}

func (m *mockGuestCarts) SetCart(_ context.Context, _ string, items []domain.CartItem) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.items = items
	return nil
}

func (m *mockGuestCarts) ClearCart(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.items = nil
	return nil
}

func newTestService(repo *mockRepository, guests *mockGuestCarts) *Service {
	return NewService(repo, &mockCache{}, guests, zap.NewNop())
}

func TestReconcileAccumulatesQuantities(t *testing.T) {
	repo := &mockRepository{cart: &domain.Cart{
		UserID: "u1",
		Items: []domain.CartItem{
			{ProductID: "A", Quantity: 2, Price: 100},
		},
	}}
	guests := &mockGuestCarts{items: []domain.CartItem{
		{ProductID: "A", Quantity: 3, Price: 100},
		{ProductID: "B", Quantity: 1, Price: 50},
	}}
	svc := newTestService(repo, guests)

	merged, err := svc.Reconcile(context.Background(), "u1", "g1")
	require.NoError(t, err)

	require.Len(t, merged.Items, 2, "no duplicate product ids after merge")
	assert.Equal(t, "A", merged.Items[0].ProductID)
	assert.Equal(t, 5, merged.Items[0].Quantity)
	assert.Equal(t, float64(100), merged.Items[0].Price, "price is not re-summed")
	assert.Equal(t, "B", merged.Items[1].ProductID)
	assert.Equal(t, 1, merged.Items[1].Quantity)
}

func TestReconcileIsAtMostOnce(t *testing.T) {
	repo := &mockRepository{cart: &domain.Cart{
		UserID: "u1",
		Items:  []domain.CartItem{{ProductID: "A", Quantity: 2, Price: 100}},
	}}
	guests := &mockGuestCarts{items: []domain.CartItem{{ProductID: "A", Quantity: 3, Price: 100}}}
	svc := newTestService(repo, guests)
	ctx := context.Background()

	first, err := svc.Reconcile(ctx, "u1", "g1")
	require.NoError(t, err)
	assert.Equal(t, 5, first.Items[0].Quantity)
	assert.Empty(t, guests.items, "guest cart cleared right after the merge")

	second, err := svc.Reconcile(ctx, "u1", "g1")
	require.NoError(t, err)
	assert.Equal(t, 5, second.Items[0].Quantity, "second reconcile must not double-count")
	assert.Equal(t, 1, repo.upserts, "remote state changed exactly once")
}

func TestReconcileCreatesCartWhenNoneExists(t *testing.T) {
	repo := &mockRepository{} // no remote cart yet
	guests := &mockGuestCarts{items: []domain.CartItem{{ProductID: "A", Quantity: 1, Price: 100}}}
	svc := newTestService(repo, guests)

	merged, err := svc.Reconcile(context.Background(), "u1", "g1")
	require.NoError(t, err)

	assert.Equal(t, "u1", merged.UserID)
	require.Len(t, merged.Items, 1)
	assert.Empty(t, guests.items)
	assert.Equal(t, 1, repo.upserts)
}

func TestReconcileFailsClosedOnRemoteError(t *testing.T) {
	repo := &mockRepository{err: errors.New("mongo down")}
	guests := &mockGuestCarts{items: []domain.CartItem{{ProductID: "A", Quantity: 3, Price: 100}}}
	svc := newTestService(repo, guests)

	_, err := svc.Reconcile(context.Background(), "u1", "g1")
	require.Error(t, err)

	assert.Len(t, guests.items, 1, "guest cart must stay intact on failure")
	assert.Equal(t, 0, repo.upserts, "no partial persistence")
}

func TestReconcileWithEmptyGuestCartIsNoOp(t *testing.T) {
	repo := &mockRepository{cart: &domain.Cart{
		UserID: "u1",
		Items:  []domain.CartItem{{ProductID: "A", Quantity: 2, Price: 100}},
	}}
	guests := &mockGuestCarts{}
	svc := newTestService(repo, guests)

	merged, err := svc.Reconcile(context.Background(), "u1", "g1")
	require.NoError(t, err)

	assert.Equal(t, 2, merged.Items[0].Quantity)
	assert.Equal(t, 0, repo.upserts, "nothing to merge, nothing written")
}

func TestGetCartReturnsEmptyCartWhenMissing(t *testing.T) {
	svc := newTestService(&mockRepository{}, &mockGuestCarts{})

	got, err := svc.GetCart(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Empty(t, got.Items)
}

func TestAddGuestItemMergesByProductID(t *testing.T) {
	guests := &mockGuestCarts{items: []domain.CartItem{{ProductID: "A", Quantity: 1, Price: 100}}}
	svc := newTestService(&mockRepository{}, guests)
	ctx := context.Background()

	require.NoError(t, svc.AddGuestItem(ctx, "g1", domain.CartItem{ProductID: "A", Quantity: 2, Price: 100}))
	require.NoError(t, svc.AddGuestItem(ctx, "g1", domain.CartItem{ProductID: "B", Quantity: 1, Price: 50}))

	require.Len(t, guests.items, 2)
	assert.Equal(t, 3, guests.items[0].Quantity)
	assert.Equal(t, "B", guests.items[1].ProductID)
}
