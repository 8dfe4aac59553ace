package notification

import (
	"context"
	"strconv"

	"candle-shop/kafka"
	"candle-shop/models"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// EventPublisher hands notifications to the notify worker through Kafka.
type EventPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

func NewEventPublisher(producer sarama.SyncProducer, topic string, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, topic: topic, logger: logger}
}

func (p *EventPublisher) Notify(ctx context.Context, event models.OrderEvent) error {
	key := strconv.Itoa(event.OrderID)
	return kafka.PublishEvent(ctx, p.producer, p.topic, key, event, p.logger)
}
