package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodPayPal         PaymentMethod = "PayPal"
	PaymentMethodStripe         PaymentMethod = "Stripe"
	PaymentMethodCashOnDelivery PaymentMethod = "CashOnDelivery"
)

var PaymentMethods = []PaymentMethod{
	PaymentMethodPayPal,
	PaymentMethodStripe,
	PaymentMethodCashOnDelivery,
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	for _, m := range PaymentMethods {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

func (m PaymentMethod) String() string {
	return string(m)
}

// PaymentResult records what the provider reported. A result with an empty
// Status is a pending placeholder written before capture.
type PaymentResult struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	EmailAddress string          `json:"email_address"`
	PricePaid    decimal.Decimal `json:"pricePaid"`
}

func (r *PaymentResult) IsPending() bool {
	return r != nil && r.Status == ""
}
