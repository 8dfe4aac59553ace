package payment

import (
	"context"
	"math/rand"
	"time"

	"candle-shop/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MockSignature is returned by the simulator in place of a real signature.
const MockSignature = "mock_signature"

// Mock simulates a payment provider. Verification only checks that the
// order id was paid through this simulator; it is not an authenticity check
// and must stay out of production configurations.
type Mock struct {
	store       ConsumedStore
	delay       time.Duration
	successRate float64
	roll        func() float64
	logger      *zap.Logger
}

type MockOption func(*Mock)

func WithDelay(d time.Duration) MockOption {
	return func(m *Mock) { m.delay = d }
}

func WithSuccessRate(rate float64) MockOption {
	return func(m *Mock) { m.successRate = rate }
}

// WithRoll replaces the random source; a roll below the success rate succeeds.
func WithRoll(roll func() float64) MockOption {
	return func(m *Mock) { m.roll = roll }
}

func NewMock(store ConsumedStore, logger *zap.Logger, opts ...MockOption) *Mock {
	m := &Mock{
		store:       store,
		delay:       time.Second,
		successRate: 0.9,
		roll:        rand.Float64,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type MockPayment struct {
	PaymentID      string `json:"payment_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	Signature      string `json:"signature"`
}

func (m *Mock) Method() models.PaymentMethod {
	return models.PaymentMethodMock
}

func (m *Mock) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (models.GatewayOrder, error) {
	id := "order_mock_" + uuid.NewString()
	m.store.Issue(id)

	m.logger.Debug("Mock payment order created",
		zap.String("gateway_order_id", id),
		zap.Int64("amount", amount),
		zap.String("receipt", receipt),
	)

	return models.GatewayOrder{ID: id, Amount: amount, Currency: currency}, nil
}

// ProcessPayment plays the role of the customer paying in the provider's
// widget.
func (m *Mock) ProcessPayment(ctx context.Context, gatewayOrderID string) (MockPayment, error) {
	if !m.store.Issued(gatewayOrderID) {
		return MockPayment{}, ErrUnknownOrder
	}
	if m.store.Consumed(gatewayOrderID) {
		return MockPayment{}, ErrAlreadyProcessed
	}

	if err := m.wait(ctx); err != nil {
		return MockPayment{}, err
	}

	if m.roll() >= m.successRate {
		m.logger.Info("Mock payment declined", zap.String("gateway_order_id", gatewayOrderID))
		return MockPayment{}, ErrPaymentDeclined
	}

	if !m.store.Consume(gatewayOrderID) {
		return MockPayment{}, ErrAlreadyProcessed
	}

	return MockPayment{
		PaymentID:      "pay_mock_" + uuid.NewString(),
		GatewayOrderID: gatewayOrderID,
		Signature:      MockSignature,
	}, nil
}

func (m *Mock) VerifyPayment(ctx context.Context, gatewayOrderID, paymentID, signature string) (bool, error) {
	return m.store.Consumed(gatewayOrderID), nil
}

// Refund returns a refund id. The consumed entry is kept.
func (m *Mock) Refund(ctx context.Context, paymentID string) (string, error) {
	if err := m.wait(ctx); err != nil {
		return "", err
	}
	refundID := "rfnd_mock_" + uuid.NewString()
	m.logger.Info("Mock refund issued", zap.String("payment_id", paymentID), zap.String("refund_id", refundID))
	return refundID, nil
}

func (m *Mock) wait(ctx context.Context) error {
	if m.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(m.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
