package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderItem struct {
	OrderID   uuid.UUID       `json:"orderId"`
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Qty       int             `json:"qty"`
}

// OrderUser is the minimal customer identity shown next to an order.
type OrderUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Order is a frozen snapshot of a cart. Only the payment and delivery
// fields change after creation.
type Order struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"userId"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	PaymentResult   *PaymentResult  `json:"paymentResult,omitempty"`
	PriceBreakdown
	IsPaid      bool        `json:"isPaid"`
	PaidAt      *time.Time  `json:"paidAt,omitempty"`
	IsDelivered bool        `json:"isDelivered"`
	DeliveredAt *time.Time  `json:"deliveredAt,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	Items       []OrderItem `json:"orderItems"`
	User        *OrderUser  `json:"user,omitempty"`
}

// NewOrderFromCart snapshots the cart lines and prices into a new order.
func NewOrderFromCart(cart *Cart, user *User) *Order {
	id := uuid.New()
	items := make([]OrderItem, len(cart.Items))
	for i, line := range cart.Items {
		items[i] = OrderItem{
			OrderID:   id,
			ProductID: line.ProductID,
			Name:      line.Name,
			Slug:      line.Slug,
			Image:     line.Image,
			Price:     line.Price,
			Qty:       line.Qty,
		}
	}
	return &Order{
		ID:              id,
		UserID:          user.ID,
		ShippingAddress: *user.Address,
		PaymentMethod:   user.PaymentMethod,
		PriceBreakdown:  cart.PriceBreakdown,
		CreatedAt:       time.Now().UTC(),
		Items:           items,
		User:            &OrderUser{Name: user.Name, Email: user.Email},
	}
}

// AmountInCents converts the order total to integer minor units.
func (o *Order) AmountInCents() int64 {
	return o.TotalPrice.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// MonthlySales totals every order placed in one month, labelled "MM/YY".
type MonthlySales struct {
	Month      string          `json:"month"`
	TotalSales decimal.Decimal `json:"totalSales"`
}

// OrderSummary is the admin dashboard overview.
type OrderSummary struct {
	OrdersCount   int             `json:"ordersCount"`
	ProductsCount int             `json:"productsCount"`
	UsersCount    int             `json:"usersCount"`
	TotalSales    decimal.Decimal `json:"totalSales"`
	SalesData     []MonthlySales  `json:"salesData"`
	LatestSales   []*Order        `json:"latestSales"`
}
