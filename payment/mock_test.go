package payment

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"candle-shop/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestMock(t *testing.T, roll float64) *Mock {
	return NewMock(NewMemoryStore(), zaptest.NewLogger(t),
		WithDelay(0),
		WithRoll(func() float64 { return roll }),
	)
}

func TestMock_CreateOrderIssuesFreshIDs(t *testing.T) {
	m := newTestMock(t, 0)
	ctx := context.Background()

	a, err := m.CreateOrder(ctx, 6750, "INR", "order_1")
	require.NoError(t, err)
	b, err := m.CreateOrder(ctx, 6750, "INR", "order_2")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, strings.HasPrefix(a.ID, "order_mock_"))
	assert.Equal(t, int64(6750), a.Amount)
	assert.Equal(t, models.PaymentMethodMock, m.Method())
}

func TestMock_ProcessThenVerify(t *testing.T) {
	m := newTestMock(t, 0.1)
	ctx := context.Background()

	order, err := m.CreateOrder(ctx, 100, "INR", "r")
	require.NoError(t, err)

	ok, err := m.VerifyPayment(ctx, order.ID, "", "")
	require.NoError(t, err)
	assert.False(t, ok, "unpaid order must not verify")

	pay, err := m.ProcessPayment(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, pay.GatewayOrderID)
	assert.Equal(t, MockSignature, pay.Signature)
	assert.True(t, strings.HasPrefix(pay.PaymentID, "pay_mock_"))

	ok, err = m.VerifyPayment(ctx, order.ID, pay.PaymentID, pay.Signature)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMock_VerifyRejectsNeverIssuedOrder(t *testing.T) {
	m := newTestMock(t, 0)

	ok, err := m.VerifyPayment(context.Background(), "order_mock_forged", "pay_x", MockSignature)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMock_ProcessRejectsUnknownAndDuplicate(t *testing.T) {
	m := newTestMock(t, 0)
	ctx := context.Background()

	_, err := m.ProcessPayment(ctx, "order_mock_unknown")
	assert.ErrorIs(t, err, ErrUnknownOrder)

	order, _ := m.CreateOrder(ctx, 100, "INR", "r")
	_, err = m.ProcessPayment(ctx, order.ID)
	require.NoError(t, err)

	_, err = m.ProcessPayment(ctx, order.ID)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestMock_DeclinedPaymentIsNotConsumed(t *testing.T) {
	m := newTestMock(t, 0.95)
	ctx := context.Background()

	order, _ := m.CreateOrder(ctx, 100, "INR", "r")
	_, err := m.ProcessPayment(ctx, order.ID)
	assert.ErrorIs(t, err, ErrPaymentDeclined)

	ok, _ := m.VerifyPayment(ctx, order.ID, "", "")
	assert.False(t, ok)
}

func TestMock_SuccessRateIsNinetyPercent(t *testing.T) {
	ctx := context.Background()
	successes := 0
	for i := 0; i < 100; i++ {
		roll := float64(i) / 100
		m := newTestMock(t, roll)
		order, _ := m.CreateOrder(ctx, 100, "INR", "r")
		if _, err := m.ProcessPayment(ctx, order.ID); err == nil {
			successes++
		}
	}
	assert.Equal(t, 90, successes)
}

func TestMock_ConcurrentProcessConsumesOnce(t *testing.T) {
	m := newTestMock(t, 0)
	ctx := context.Background()
	order, _ := m.CreateOrder(ctx, 100, "INR", "r")

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.ProcessPayment(ctx, order.ID); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
}

func TestMock_RefundKeepsConsumedEntry(t *testing.T) {
	m := newTestMock(t, 0)
	ctx := context.Background()
	order, _ := m.CreateOrder(ctx, 100, "INR", "r")
	pay, err := m.ProcessPayment(ctx, order.ID)
	require.NoError(t, err)

	refundID, err := m.Refund(ctx, pay.PaymentID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(refundID, "rfnd_mock_"))

	ok, _ := m.VerifyPayment(ctx, order.ID, pay.PaymentID, pay.Signature)
	assert.True(t, ok)
}

func TestMock_DelayHonoursContext(t *testing.T) {
	m := NewMock(NewMemoryStore(), zaptest.NewLogger(t), WithDelay(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	order, _ := m.CreateOrder(ctx, 100, "INR", "r")
	cancel()

	_, err := m.ProcessPayment(ctx, order.ID)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, m.store.Consumed(order.ID))
}

func TestRegistry_DefaultsToFirstGateway(t *testing.T) {
	m := newTestMock(t, 0)
	r := NewRegistry(m)

	g, ok := r.Get("")
	require.True(t, ok)
	assert.Equal(t, models.PaymentMethodMock, g.Method())

	_, ok = r.Get(models.PaymentMethodRazorpay)
	assert.False(t, ok)
	assert.Equal(t, models.PaymentMethodMock, r.Default())
}
