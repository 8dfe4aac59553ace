package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"candle-shop/circuitbreaker"
	"candle-shop/models"

	"github.com/razorpay/razorpay-go"
	"go.uber.org/zap"
)

// orderCreator is the slice of the Razorpay SDK used here.
type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type Razorpay struct {
	keyID          string
	keySecret      string
	orders         orderCreator
	circuitBreaker *circuitbreaker.CircuitBreaker
	logger         *zap.Logger
}

func NewRazorpay(keyID, keySecret string, logger *zap.Logger) *Razorpay {
	client := razorpay.NewClient(keyID, keySecret)
	return newRazorpay(keyID, keySecret, client.Order, logger)
}

func newRazorpay(keyID, keySecret string, orders orderCreator, logger *zap.Logger) *Razorpay {
	return &Razorpay{
		keyID:          keyID,
		keySecret:      keySecret,
		orders:         orders,
		circuitBreaker: circuitbreaker.NewCircuitBreaker("razorpay", 5, 30*time.Second),
		logger:         logger,
	}
}

func (r *Razorpay) Method() models.PaymentMethod {
	return models.PaymentMethodRazorpay
}

func (r *Razorpay) KeyID() string {
	return r.keyID
}

func (r *Razorpay) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (models.GatewayOrder, error) {
	var body map[string]interface{}
	err := r.circuitBreaker.Execute(ctx, func() error {
		var err error
		body, err = r.orders.Create(map[string]interface{}{
			"amount":   amount,
			"currency": currency,
			"receipt":  receipt,
		}, nil)
		return err
	})
	if err != nil {
		return models.GatewayOrder{}, fmt.Errorf("failed to create razorpay order: %w", err)
	}

	id, _ := body["id"].(string)
	if id == "" {
		return models.GatewayOrder{}, fmt.Errorf("razorpay order response has no id")
	}

	r.logger.Info("Razorpay order created", zap.String("gateway_order_id", id), zap.String("receipt", receipt))
	return models.GatewayOrder{ID: id, Amount: amount, Currency: currency, KeyID: r.keyID}, nil
}

func (r *Razorpay) VerifyPayment(ctx context.Context, gatewayOrderID, paymentID, signature string) (bool, error) {
	expected := Sign(r.keySecret, gatewayOrderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature)), nil
}

// Sign computes the checkout signature Razorpay attaches to a successful
// payment: hex(HMAC-SHA256(secret, orderID + "|" + paymentID)).
func Sign(secret, gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
