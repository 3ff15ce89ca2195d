package publisher

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/trikooo/storefront/internal/orders"
)

const Topic = "orders-outbox"

// OutboxPoller ships unprocessed order events from Postgres to Kafka.
type OutboxPoller struct {
	tick   time.Duration
	repo   orders.OrderRepository
	writer *kafka.Writer
	log    *zap.Logger
}

func NewOutboxPoller(repo orders.OrderRepository, log *zap.Logger, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &OutboxPoller{time.Second, repo, w, log}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() {
	if err := p.writer.Close(); err != nil {
		p.log.Warn("error closing kafka writer", zap.Error(err))
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, 100)
	if err != nil {
		p.log.Warn("failed to fetch outbox events", zap.Error(err))
		return
	}

	for _, event := range events {
		errPublish := p.publishToKafka(ctx, event)
		if errPublish != nil {
			p.log.Warn("failed to publish event",
				zap.String("event_id", event.ID), zap.Error(errPublish))
			continue
		}

		errMark := p.repo.MarkEventAsProcessed(ctx, event.ID)
		if errMark != nil {
			p.log.Warn("failed to mark event as processed",
				zap.String("event_id", event.ID), zap.Error(errMark))
			continue
		}
	}
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *orders.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order_id for ordering
		Value: event.Payload,             // Already JSON from database
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	return p.writer.WriteMessages(ctx, msg)
}
