package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"candle-shop/kafka"
	"candle-shop/middleware"
	"candle-shop/models"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Dispatcher turns consumed order events into notifications.
type Dispatcher struct {
	notifier Notifier
	logger   *zap.Logger
}

func NewDispatcher(notifier Notifier, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{notifier: notifier, logger: logger}
}

// Handle satisfies kafka.MessageHandler. Undecodable and unknown events are
// reported as permanent failures so they are not retried.
func (d *Dispatcher) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	ctx, span := otel.Tracer("notification-service").Start(ctx, "ProcessNotification")
	defer span.End()

	var event models.OrderEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: failed to unmarshal event: %w", kafka.ErrPermanent, err)
	}

	span.SetAttributes(
		attribute.String("event.type", event.EventType),
		attribute.Int("order.id", event.OrderID),
	)

	switch event.EventType {
	case models.EventOrderPaid, models.EventOrderDelivered:
	default:
		d.logger.Debug("Unknown event type", zap.String("event_type", event.EventType))
		return nil
	}

	if err := d.notifier.Notify(ctx, event); err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrNoRecipient) || errors.Is(err, ErrUnknownEvent) {
			err = fmt.Errorf("%w: %w", kafka.ErrPermanent, err)
		}
		middleware.RecordNotificationSent(event.EventType, "failed")
		return err
	}

	middleware.RecordNotificationSent(event.EventType, "sent")
	d.logger.Info("Notification sent",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("event_type", event.EventType),
		zap.Int("order_id", event.OrderID),
	)
	return nil
}
