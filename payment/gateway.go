// Package payment holds the payment providers the order workflow talks to:
// the live Razorpay gateway and an in-process simulator for demo setups.
package payment

import (
	"context"
	"errors"

	"candle-shop/models"
)

var (
	ErrUnknownOrder     = errors.New("payment order was not issued by this gateway")
	ErrAlreadyProcessed = errors.New("payment order already processed")
	ErrPaymentDeclined  = errors.New("payment declined")
)

// Gateway is a payment provider able to open a provider-side order and to
// authenticate the client's payment confirmation for it.
type Gateway interface {
	Method() models.PaymentMethod
	// CreateOrder opens a provider order for amount in minor currency units.
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (models.GatewayOrder, error)
	VerifyPayment(ctx context.Context, gatewayOrderID, paymentID, signature string) (bool, error)
}

// Registry resolves the gateway for an order's payment method.
type Registry struct {
	gateways map[models.PaymentMethod]Gateway
	fallback models.PaymentMethod
}

// NewRegistry registers gateways; the first one is the default for orders
// that do not name a method.
func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[models.PaymentMethod]Gateway, len(gateways))}
	for i, g := range gateways {
		if i == 0 {
			r.fallback = g.Method()
		}
		r.gateways[g.Method()] = g
	}
	return r
}

func (r *Registry) Get(method models.PaymentMethod) (Gateway, bool) {
	if method == "" {
		method = r.fallback
	}
	g, ok := r.gateways[method]
	return g, ok
}

func (r *Registry) Default() models.PaymentMethod {
	return r.fallback
}
