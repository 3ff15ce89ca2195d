package orders

import (
	"context"

	"github.com/trikooo/storefront/internal/domain"
)

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)
	SetItemTracking(ctx context.Context, orderID string, productIDs []string, tracking string) error
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, eventID string) error
	Close() error
}

// OutboxEvent is a pending Kafka publication written in the same transaction
// as the order it describes.
type OutboxEvent struct {
	ID          string
	AggregateID string
	EventType   string
	Payload     []byte
}
