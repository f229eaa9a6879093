package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is owned by the catalog. Only Stock, Rating and NumReviews are
// written here.
type Product struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	Slug       string          `json:"slug"`
	Image      string          `json:"image"`
	Price      decimal.Decimal `json:"price"`
	Stock      int             `json:"stock"`
	Rating     decimal.Decimal `json:"rating"`
	NumReviews int             `json:"numReviews"`
}

type Review struct {
	ID                 uuid.UUID `json:"id"`
	UserID             uuid.UUID `json:"userId"`
	ProductID          uuid.UUID `json:"productId"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	Rating             int       `json:"rating"`
	IsVerifiedPurchase bool      `json:"isVerifiedPurchase"`
	CreatedAt          time.Time `json:"createdAt"`
	UserName           string    `json:"userName,omitempty"`
}
