package consumer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/trikooo/storefront/internal/orders"
	"github.com/trikooo/storefront/internal/shipment"
)

type orderCreatedEvent struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
}

// DispatchConsumer submits freshly created orders to the delivery provider.
// Grouping excludes already-tracked items, so replaying an event never
// double-books a shipment; the worst case for a crash between Create and the
// tracking stamp is one duplicate submission, which the provider dedupes on
// the order reference.
type DispatchConsumer struct {
	repo     orders.OrderRepository
	provider shipment.Provider
	reader   *kafka.Reader
	log      *zap.Logger
}

func NewDispatchConsumer(repo orders.OrderRepository, provider shipment.Provider, log *zap.Logger, brokers ...string) *DispatchConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    "orders-outbox",
		GroupID:  "shipment-dispatcher",
		MaxBytes: 10e6, // 10MB
	})
	return &DispatchConsumer{repo, provider, reader, log}
}

func (c *DispatchConsumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *DispatchConsumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Warn("error closing kafka reader", zap.Error(err))
	}
}

func (c *DispatchConsumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.log.Warn("error reading message", zap.Error(err))
		return
	}

	var event orderCreatedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		c.log.Warn("error parsing message", zap.Error(err))
		return
	}
	if event.OrderID == "" {
		c.log.Warn("missing order_id in event")
		return
	}

	if err := c.dispatch(ctx, event.OrderID); err != nil {
		c.log.Warn("dispatch failed", zap.String("order_id", event.OrderID), zap.Error(err))
	}
}

func (c *DispatchConsumer) dispatch(ctx context.Context, orderID string) error {
	order, err := c.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	for _, req := range shipment.Group(order) {
		if !req.Submittable() {
			c.log.Warn("skipping shipment with no usable address",
				zap.String("order_id", orderID))
			continue
		}

		tracking, err := c.provider.Create(ctx, &req)
		if err != nil {
			return err
		}

		if err := c.repo.SetItemTracking(ctx, orderID, req.ProductIDs, tracking); err != nil {
			return err
		}

		c.log.Info("shipment created",
			zap.String("order_id", orderID), zap.String("tracking", tracking))
	}

	return nil
}
