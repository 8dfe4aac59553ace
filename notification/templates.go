package notification

import (
	"bytes"
	"fmt"
	"html/template"

	"candle-shop/models"
)

var emailTemplates = template.Must(template.New("emails").Funcs(template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"lineTotal": func(item models.OrderItem) string {
		return fmt.Sprintf("%.2f", item.Price*float64(item.Quantity))
	},
}).Parse(`
{{define "order_paid"}}<html><body>
<h2>Thank you for your order, {{.Event.CustomerName}}!</h2>
<p>We have received your payment for order #{{.Event.OrderID}}.</p>
<p>Payment ID: {{.Event.PaymentID}}</p>
<table>
<tr><th>Item</th><th>Qty</th><th>Price</th></tr>
{{range .Event.Items}}<tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{lineTotal .}}</td></tr>
{{end}}</table>
<p><strong>Total: {{money .Event.TotalPrice}}</strong></p>
{{template "address" .}}
<p><a href="{{.OrderURL}}">View your order</a></p>
</body></html>{{end}}

{{define "order_delivered"}}<html><body>
<h2>Your order is on its way, {{.Event.CustomerName}}!</h2>
<p>Order #{{.Event.OrderID}} has been shipped.</p>
{{if .Event.TrackingNumber}}<p>Tracking number: <strong>{{.Event.TrackingNumber}}</strong></p>{{end}}
{{template "address" .}}
<p><a href="{{.OrderURL}}">View your order</a></p>
</body></html>{{end}}

{{define "address"}}<p>Shipping to:<br>
{{.Event.ShippingAddress.Address}}<br>
{{.Event.ShippingAddress.City}} {{.Event.ShippingAddress.PostalCode}}<br>
{{.Event.ShippingAddress.Country}}</p>{{end}}
`))

type emailData struct {
	Event    models.OrderEvent
	OrderURL string
}

func subjectFor(event models.OrderEvent) (string, error) {
	switch event.EventType {
	case models.EventOrderPaid:
		return fmt.Sprintf("Order Confirmation - Order #%d", event.OrderID), nil
	case models.EventOrderDelivered:
		return fmt.Sprintf("Your Order Has Been Shipped - Order #%d", event.OrderID), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEvent, event.EventType)
	}
}

func renderBody(event models.OrderEvent, orderURL string) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, event.EventType, emailData{Event: event, OrderURL: orderURL}); err != nil {
		return "", fmt.Errorf("failed to render %s email: %w", event.EventType, err)
	}
	return buf.String(), nil
}
