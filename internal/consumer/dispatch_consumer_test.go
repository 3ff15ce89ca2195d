package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trikooo/storefront/internal/domain"
	"github.com/trikooo/storefront/internal/orders"
	"github.com/trikooo/storefront/internal/shipment"
)

type mockOrderRepo struct {
	order    *domain.Order
	getErr   error
	stamped  []string
	tracking string
}

func (m *mockOrderRepo) CreateOrder(context.Context, *domain.Order) error { return nil }

func (m *mockOrderRepo) GetOrder(context.Context, string) (*domain.Order, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.order, nil
}

func (m *mockOrderRepo) ListOrders(context.Context, string) ([]domain.Order, error) {
	return nil, nil
}

func (m *mockOrderRepo) SetItemTracking(_ context.Context, _ string, productIDs []string, tracking string) error {
	m.stamped = productIDs
	m.tracking = tracking
	return nil
}

func (m *mockOrderRepo) GetUnprocessedEvents(context.Context, int) ([]*orders.OutboxEvent, error) {
	return nil, nil
}

func (m *mockOrderRepo) MarkEventAsProcessed(context.Context, string) error { return nil }

func (m *mockOrderRepo) Close() error { return nil }

type mockProvider struct {
	tracking string
	err      error
	calls    int
}

func (m *mockProvider) Create(context.Context, *shipment.Request) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.tracking, nil
}

func (m *mockProvider) Update(context.Context, string, *shipment.Request) error { return nil }
func (m *mockProvider) Cancel(context.Context, string) error                    { return nil }
func (m *mockProvider) Label(context.Context, string) ([]byte, error)           { return nil, nil }

func shippableOrder() *domain.Order {
	return &domain.Order{
		ID: "order-1",
		GuestAddress: &domain.Address{
			FullName:    "Amine B",
			PhoneNumber: "0550000000",
			WilayaValue: "16",
			Commune:     "Bab Ezzouar",
			Address:     "12 rue des Frères",
		},
		Items: []domain.OrderLineItem{
			{ProductID: "A", Quantity: 1, Price: 100, NoestReady: true, Product: domain.ProductSnapshot{Name: "Mug", Weight: 500}},
		},
	}
}

func TestDispatchStampsTracking(t *testing.T) {
	repo := &mockOrderRepo{order: shippableOrder()}
	provider := &mockProvider{tracking: "TRK-9"}
	c := NewDispatchConsumer(repo, provider, zap.NewNop(), "localhost:9092")
	defer c.Close()

	require.NoError(t, c.dispatch(context.Background(), "order-1"))

	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, "TRK-9", repo.tracking)
	assert.Equal(t, []string{"A"}, repo.stamped)
}

func TestDispatchSkipsOrderWithoutAddress(t *testing.T) {
	order := shippableOrder()
	order.GuestAddress = nil
	repo := &mockOrderRepo{order: order}
	provider := &mockProvider{tracking: "TRK-9"}
	c := NewDispatchConsumer(repo, provider, zap.NewNop(), "localhost:9092")
	defer c.Close()

	require.NoError(t, c.dispatch(context.Background(), "order-1"))

	assert.Equal(t, 0, provider.calls, "sentinel-address request must not be submitted")
	assert.Empty(t, repo.tracking)
}

func TestDispatchNothingEligible(t *testing.T) {
	order := shippableOrder()
	order.Items[0].TrackingNumber = "TRK-1"
	repo := &mockOrderRepo{order: order}
	provider := &mockProvider{}
	c := NewDispatchConsumer(repo, provider, zap.NewNop(), "localhost:9092")
	defer c.Close()

	require.NoError(t, c.dispatch(context.Background(), "order-1"))
	assert.Equal(t, 0, provider.calls)
}

func TestDispatchPropagatesProviderError(t *testing.T) {
	repo := &mockOrderRepo{order: shippableOrder()}
	provider := &mockProvider{err: errors.New("provider down")}
	c := NewDispatchConsumer(repo, provider, zap.NewNop(), "localhost:9092")
	defer c.Close()

	err := c.dispatch(context.Background(), "order-1")
	require.Error(t, err)
	assert.Empty(t, repo.tracking, "no tracking stamped on failure")
}
