package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// FormatMoney renders an amount the way every monetary value leaves the
// service: a string with exactly two decimal places.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// The MarshalJSON methods below replace decimal's shortest form ("10.5",
// "0") with FormatMoney. A field declared on the outer struct shadows the
// promoted one of the same name. Unmarshalling keeps decimal's parser, which
// accepts both forms.
//
// PriceBreakdown must not get a MarshalJSON of its own: it is embedded in
// Cart and Order and the method would be promoted over theirs.

func (it CartLineItem) MarshalJSON() ([]byte, error) {
	type plain CartLineItem
	return json.Marshal(struct {
		plain
		Price string `json:"price"`
	}{plain(it), FormatMoney(it.Price)})
}

func (it OrderItem) MarshalJSON() ([]byte, error) {
	type plain OrderItem
	return json.Marshal(struct {
		plain
		Price string `json:"price"`
	}{plain(it), FormatMoney(it.Price)})
}

func (c Cart) MarshalJSON() ([]byte, error) {
	type plain Cart
	return json.Marshal(struct {
		plain
		ItemsPrice    string `json:"itemsPrice"`
		ShippingPrice string `json:"shippingPrice"`
		TaxPrice      string `json:"taxPrice"`
		TotalPrice    string `json:"totalPrice"`
	}{
		plain(c),
		FormatMoney(c.ItemsPrice),
		FormatMoney(c.ShippingPrice),
		FormatMoney(c.TaxPrice),
		FormatMoney(c.TotalPrice),
	})
}

func (o Order) MarshalJSON() ([]byte, error) {
	type plain Order
	return json.Marshal(struct {
		plain
		ItemsPrice    string `json:"itemsPrice"`
		ShippingPrice string `json:"shippingPrice"`
		TaxPrice      string `json:"taxPrice"`
		TotalPrice    string `json:"totalPrice"`
	}{
		plain(o),
		FormatMoney(o.ItemsPrice),
		FormatMoney(o.ShippingPrice),
		FormatMoney(o.TaxPrice),
		FormatMoney(o.TotalPrice),
	})
}

func (r PaymentResult) MarshalJSON() ([]byte, error) {
	type plain PaymentResult
	return json.Marshal(struct {
		plain
		PricePaid string `json:"pricePaid"`
	}{plain(r), FormatMoney(r.PricePaid)})
}

func (p Product) MarshalJSON() ([]byte, error) {
	type plain Product
	return json.Marshal(struct {
		plain
		Price  string `json:"price"`
		Rating string `json:"rating"`
	}{plain(p), FormatMoney(p.Price), p.Rating.StringFixed(2)})
}

func (m MonthlySales) MarshalJSON() ([]byte, error) {
	type plain MonthlySales
	return json.Marshal(struct {
		plain
		TotalSales string `json:"totalSales"`
	}{plain(m), FormatMoney(m.TotalSales)})
}

func (s OrderSummary) MarshalJSON() ([]byte, error) {
	type plain OrderSummary
	return json.Marshal(struct {
		plain
		TotalSales string `json:"totalSales"`
	}{plain(s), FormatMoney(s.TotalSales)})
}
