package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"candle-shop/config"
	"candle-shop/middleware"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func InitProducer(cfg config.KafkaConfig, logger *zap.Logger) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Brokers))
	return producer, nil
}

// PublishEvent sends event as JSON keyed by key, carrying the caller's trace
// context in the record headers.
func PublishEvent(ctx context.Context, producer sarama.SyncProducer, topic, key string, event any, logger *zap.Logger) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	carrier := make(headerCarrier, 0)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)

	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Key:     sarama.StringEncoder(key),
		Value:   sarama.ByteEncoder(eventJSON),
		Headers: []sarama.RecordHeader(carrier),
	}

	partition, offset, err := producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	logger.Info("Event published",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("topic", topic),
		zap.String("key", key),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}
