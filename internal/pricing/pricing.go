package pricing

import (
	"github.com/dimamanhura/rozetka/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	FreeShippingOver = decimal.NewFromInt(100)
	FlatShipping     = decimal.NewFromInt(10)
	TaxRate          = decimal.RequireFromString("0.15")
)

// Round2 rounds half away from zero, which is half-up for the non-negative
// amounts a cart can hold.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Calculate derives the four cart prices from its lines. Total is the sum
// of the already rounded parts and is not rounded again. A cart without lines
// costs nothing, shipping included.
func Calculate(items []domain.CartLineItem) domain.PriceBreakdown {
	if len(items) == 0 {
		return Zero()
	}

	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Qty))))
	}
	itemsPrice := Round2(sum)

	shipping := FlatShipping
	if itemsPrice.GreaterThan(FreeShippingOver) {
		shipping = decimal.Zero
	}
	tax := Round2(itemsPrice.Mul(TaxRate))

	return domain.PriceBreakdown{
		ItemsPrice:    itemsPrice,
		ShippingPrice: shipping,
		TaxPrice:      tax,
		TotalPrice:    itemsPrice.Add(shipping).Add(tax),
	}
}

// Zero is the breakdown of a cleared cart.
func Zero() domain.PriceBreakdown {
	return domain.PriceBreakdown{
		ItemsPrice:    decimal.Zero,
		ShippingPrice: decimal.Zero,
		TaxPrice:      decimal.Zero,
		TotalPrice:    decimal.Zero,
	}
}

// Format renders a money value as a fixed two decimal string.
func Format(d decimal.Decimal) string {
	return domain.FormatMoney(d)
}
