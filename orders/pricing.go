package orders

import (
	"fmt"

	"candle-shop/models"

	"github.com/shopspring/decimal"
)

var (
	freeShippingThreshold = decimal.NewFromInt(100)
	flatShippingFee       = decimal.NewFromInt(10)
	taxRate               = decimal.RequireFromString("0.15")
	minorUnitsPerMajor    = decimal.NewFromInt(100)
)

type Prices struct {
	Items    decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// ValidatePrices rejects line items priced below a cent. Order items are
// stored with two decimals, so finer prices would not add up to items_price.
func ValidatePrices(items []models.OrderItem) error {
	for _, item := range items {
		if decimal.NewFromFloat(item.Price).Exponent() < -2 {
			return fmt.Errorf("%w: %q costs %v", ErrInvalidItemPrice, item.Name, item.Price)
		}
	}
	return nil
}

// CalculatePrices derives the order totals from the line-item snapshots.
// Shipping is free strictly above the threshold; tax is rounded to cents.
func CalculatePrices(items []models.OrderItem) Prices {
	subtotal := decimal.Zero
	for _, item := range items {
		price := decimal.NewFromFloat(item.Price)
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	shipping := flatShippingFee
	if subtotal.GreaterThan(freeShippingThreshold) {
		shipping = decimal.Zero
	}

	tax := subtotal.Mul(taxRate).Round(2)
	subtotal = subtotal.Round(2)

	return Prices{
		Items:    subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Add(shipping).Add(tax),
	}
}

// MinorUnits returns the total in the currency's smallest unit (paise, cents).
func (p Prices) MinorUnits() int64 {
	return p.Total.Mul(minorUnitsPerMajor).Round(0).IntPart()
}

func (p Prices) Apply(o *models.Order) {
	o.ItemsPrice = p.Items.InexactFloat64()
	o.ShippingPrice = p.Shipping.InexactFloat64()
	o.TaxPrice = p.Tax.InexactFloat64()
	o.TotalPrice = p.Total.InexactFloat64()
}
