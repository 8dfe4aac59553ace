package models

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodRazorpay PaymentMethod = "razorpay"
	PaymentMethodMock     PaymentMethod = "mock"
)

type OrderItem struct {
	ProductID int     `json:"product_id" binding:"required"`
	Name      string  `json:"name" binding:"required"`
	Price     float64 `json:"price" binding:"gte=0"`
	Quantity  int     `json:"quantity" binding:"required,gt=0"`
	Image     string  `json:"image"`
}

type ShippingAddress struct {
	Address    string `json:"address" binding:"required"`
	City       string `json:"city" binding:"required"`
	PostalCode string `json:"postal_code" binding:"required"`
	Country    string `json:"country" binding:"required"`
}

type PaymentResult struct {
	PaymentID      string `json:"payment_id,omitempty"`
	GatewayOrderID string `json:"gateway_order_id,omitempty"`
	Signature      string `json:"signature,omitempty"`
	Status         string `json:"status,omitempty"`
	EmailAddress   string `json:"email_address,omitempty"`
}

type Order struct {
	ID              int             `json:"id"`
	UserID          int             `json:"user_id"`
	Items           []OrderItem     `json:"items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	PaymentResult   PaymentResult   `json:"payment_result"`
	ItemsPrice      float64         `json:"items_price"`
	TaxPrice        float64         `json:"tax_price"`
	ShippingPrice   float64         `json:"shipping_price"`
	TotalPrice      float64         `json:"total_price"`
	IsPaid          bool            `json:"is_paid"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	IsDelivered     bool            `json:"is_delivered"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	Status          OrderStatus     `json:"status"`
	TrackingNumber  string          `json:"tracking_number,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type CreateOrderRequest struct {
	Items           []OrderItem     `json:"items" binding:"dive"`
	ShippingAddress ShippingAddress `json:"shipping_address" binding:"required"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
}

type PayOrderRequest struct {
	PaymentID      string `json:"payment_id" binding:"required"`
	GatewayOrderID string `json:"gateway_order_id" binding:"required"`
	Signature      string `json:"signature" binding:"required"`
}

type DeliverOrderRequest struct {
	TrackingNumber string `json:"tracking_number" binding:"required"`
}

type UpdateStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
}

// GatewayOrder is what the client needs to open the payment widget.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"key_id,omitempty"`
}

type CreateOrderResponse struct {
	Order        *Order       `json:"order"`
	GatewayOrder GatewayOrder `json:"gateway_order"`
}
