package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CartLineItem struct {
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Qty       int             `json:"qty"`
}

// Cart belongs to an anonymous session key until UserID is bound.
// Version grows with every write; caches keep the highest one they saw.
type Cart struct {
	ID            uuid.UUID      `json:"id"`
	SessionCartID string         `json:"sessionCartId"`
	UserID        *uuid.UUID     `json:"userId,omitempty"`
	Items         []CartLineItem `json:"items"`
	PriceBreakdown
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int64     `json:"version"`
}

// Line returns the index of the line holding productID, or -1.
func (c *Cart) Line(productID uuid.UUID) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// PriceBreakdown is always derived from line items, never edited by hand.
type PriceBreakdown struct {
	ItemsPrice    decimal.Decimal `json:"itemsPrice"`
	ShippingPrice decimal.Decimal `json:"shippingPrice"`
	TaxPrice      decimal.Decimal `json:"taxPrice"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
}
