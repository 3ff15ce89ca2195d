package consumer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/trikooo/storefront/internal/cache"
	"github.com/trikooo/storefront/internal/repository"
)

// CartClearConsumer empties a user's account cart once an order has been
// placed from it. Guest orders carry no user id and are skipped.
type CartClearConsumer struct {
	repo   repository.CartRepository
	cache  cache.CartCache
	reader *kafka.Reader
	log    *zap.Logger
}

func NewCartClearConsumer(repo repository.CartRepository, cache cache.CartCache, log *zap.Logger, brokers ...string) *CartClearConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    "orders-outbox",
		GroupID:  "cart-clear-consumer",
		MaxBytes: 10e6, // 10MB
	})
	return &CartClearConsumer{repo, cache, reader, log}
}

func (c *CartClearConsumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *CartClearConsumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Warn("error closing kafka reader", zap.Error(err))
	}
}

func (c *CartClearConsumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.log.Warn("error reading message", zap.Error(err))
		return
	}

	var payload map[string]interface{}
	if errUnMarshal := json.Unmarshal(m.Value, &payload); errUnMarshal != nil {
		c.log.Warn("error parsing message", zap.Error(errUnMarshal))
		return
	}
	userID, ok := payload["user_id"].(string)
	if !ok || userID == "" {
		return // guest order, nothing to clear
	}

	errDelete := c.repo.DeleteCart(ctx, userID)
	if errDelete != nil && !errors.Is(errDelete, repository.ErrCartNotFound) {
		c.log.Warn("failed to delete cart", zap.String("user_id", userID), zap.Error(errDelete))
	}

	errCacheDelete := c.cache.Delete(ctx, userID)
	if errCacheDelete != nil {
		c.log.Warn("failed to delete cart cache", zap.String("user_id", userID), zap.Error(errCacheDelete))
	}
}
