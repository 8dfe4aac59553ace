package models

const (
	EventOrderPaid      = "order_paid"
	EventOrderDelivered = "order_delivered"
)

type OrderEvent struct {
	EventType      string      `json:"event_type"`
	OrderID        int         `json:"order_id"`
	UserID         int         `json:"user_id"`
	CustomerName   string      `json:"customer_name"`
	CustomerEmail  string      `json:"customer_email"`
	TotalPrice     float64     `json:"total_price"`
	PaymentID      string      `json:"payment_id,omitempty"`
	TrackingNumber string      `json:"tracking_number,omitempty"`
	Items          []OrderItem `json:"items,omitempty"`

	ShippingAddress ShippingAddress `json:"shipping_address"`
}
