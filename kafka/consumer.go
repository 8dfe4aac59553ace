package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"candle-shop/config"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// MessageHandler processes one message. ctx carries the producer's trace
// context.
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

const maxHandleAttempts = 3

// retryBackoff is multiplied by the attempt number between retries.
var retryBackoff = time.Second

func InitConsumer(cfg config.KafkaConfig, logger *zap.Logger) (sarama.Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true
	config.Consumer.Retry.Backoff = 1 * time.Second

	consumer, err := sarama.NewConsumer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	logger.Info("Kafka consumer initialized", zap.Strings("brokers", cfg.Brokers))
	return consumer, nil
}

// StartConsumer reads every partition of topic from the newest offset until
// ctx is cancelled. Messages that still fail after retries are logged and
// skipped.
func StartConsumer(ctx context.Context, consumer sarama.Consumer, topic string, handle MessageHandler, logger *zap.Logger) error {
	partitions, err := consumer.Partitions(topic)
	if err != nil {
		return fmt.Errorf("failed to list partitions: %w", err)
	}

	messages := make(chan *sarama.ConsumerMessage)
	for _, partition := range partitions {
		pc, err := consumer.ConsumePartition(topic, partition, sarama.OffsetNewest)
		if err != nil {
			return fmt.Errorf("failed to consume partition %d: %w", partition, err)
		}
		defer pc.Close()

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-pc.Messages():
					if !ok {
						return
					}
					select {
					case messages <- msg:
					case <-ctx.Done():
						return
					}
				case err, ok := <-pc.Errors():
					if !ok {
						return
					}
					logger.Error("Kafka consumer error", zap.Error(err))
				}
			}
		}()
	}

	logger.Info("Kafka consumer started",
		zap.String("topic", topic),
		zap.Int("partitions", len(partitions)),
	)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Kafka consumer stopped", zap.String("topic", topic))
			return nil
		case msg := <-messages:
			if err := handleWithRetry(ctx, msg, handle, logger); err != nil {
				logger.Error("Failed to handle message after retries",
					zap.Int32("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err),
				)
			}
		}
	}
}

func handleWithRetry(ctx context.Context, msg *sarama.ConsumerMessage, handle MessageHandler, logger *zap.Logger) error {
	msgCtx := otel.GetTextMapPropagator().Extract(ctx, consumedHeaderCarrier(msg.Headers))

	var lastErr error
	for attempt := 1; attempt <= maxHandleAttempts; attempt++ {
		err := handle(msgCtx, msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrPermanent) || attempt == maxHandleAttempts {
			break
		}

		backoff := time.Duration(attempt) * retryBackoff
		logger.Warn("Retrying message handling",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// ErrPermanent marks handler errors that retrying cannot fix, such as
// undecodable payloads.
var ErrPermanent = errors.New("permanent message failure")
