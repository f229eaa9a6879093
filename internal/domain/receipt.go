package domain

import "time"

const EventOrderPaid = "order.paid"

type ReceiptItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Image     string `json:"image"`
	Price     string `json:"price"`
	Qty       int    `json:"qty"`
}

// Receipt is the payload handed to the notification sink once an order is paid.
type Receipt struct {
	OrderID         string          `json:"order_id"`
	UserName        string          `json:"user_name"`
	UserEmail       string          `json:"user_email"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	ItemsPrice      string          `json:"items_price"`
	ShippingPrice   string          `json:"shipping_price"`
	TaxPrice        string          `json:"tax_price"`
	TotalPrice      string          `json:"total_price"`
	Items           []ReceiptItem   `json:"items"`
	PaidAt          time.Time       `json:"paid_at"`
	CreatedAt       time.Time       `json:"created_at"`
}

func NewReceipt(o *Order) Receipt {
	r := Receipt{
		OrderID:         o.ID.String(),
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod.String(),
		ItemsPrice:      FormatMoney(o.ItemsPrice),
		ShippingPrice:   FormatMoney(o.ShippingPrice),
		TaxPrice:        FormatMoney(o.TaxPrice),
		TotalPrice:      FormatMoney(o.TotalPrice),
		Items:           make([]ReceiptItem, len(o.Items)),
		CreatedAt:       o.CreatedAt,
	}
	if o.User != nil {
		r.UserName = o.User.Name
		r.UserEmail = o.User.Email
	}
	if o.PaidAt != nil {
		r.PaidAt = *o.PaidAt
	}
	for i, it := range o.Items {
		r.Items[i] = ReceiptItem{
			ProductID: it.ProductID.String(),
			Name:      it.Name,
			Slug:      it.Slug,
			Image:     it.Image,
			Price:     FormatMoney(it.Price),
			Qty:       it.Qty,
		}
	}
	return r
}
