// Package notification delivers customer emails for order milestones,
// either directly over SMTP or through the order events topic.
package notification

import (
	"context"

	"candle-shop/models"
)

// Notifier sends the customer-facing message for an order event.
type Notifier interface {
	Notify(ctx context.Context, event models.OrderEvent) error
}

type NotifierFunc func(ctx context.Context, event models.OrderEvent) error

func (f NotifierFunc) Notify(ctx context.Context, event models.OrderEvent) error {
	return f(ctx, event)
}

// Noop drops every notification.
type Noop struct{}

func (Noop) Notify(context.Context, models.OrderEvent) error { return nil }
