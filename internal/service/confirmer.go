package service

import (
	"context"

	"github.com/dimamanhura/rozetka/internal/domain"
	"github.com/dimamanhura/rozetka/internal/payment/paypal"
	stripepay "github.com/dimamanhura/rozetka/internal/payment/stripe"
	"github.com/shopspring/decimal"
)

type PayPalClient interface {
	CreateOrder(ctx context.Context, total decimal.Decimal) (string, error)
	CapturePayment(ctx context.Context, orderID string) (*paypal.Capture, error)
}

type StripeClient interface {
	CreateIntent(ctx context.Context, orderID string, amountCents int64) (*stripepay.Intent, error)
	GetIntent(ctx context.Context, intentID string) (*stripepay.Intent, error)
	ParseEvent(payload []byte, signature string) (*stripepay.Event, error)
}

// Confirmer checks provider evidence that an order was paid and returns the
// payment result to record. ref is the provider's reference for the payment.
type Confirmer interface {
	Confirm(ctx context.Context, order *domain.Order, ref string) (*domain.PaymentResult, error)
}

type payPalConfirmer struct {
	client PayPalClient
}

// Confirm captures the PayPal order and accepts it only when the capture
// matches the pending id stored on the order and is COMPLETED.
func (c payPalConfirmer) Confirm(ctx context.Context, order *domain.Order, ref string) (*domain.PaymentResult, error) {
	capture, err := c.client.CapturePayment(ctx, ref)
	if err != nil {
		return nil, Provider(err)
	}
	if order.PaymentResult == nil || capture.ID != order.PaymentResult.ID || capture.Status != "COMPLETED" {
		return nil, ErrPaymentVerificationFailed
	}
	return &domain.PaymentResult{
		ID:           capture.ID,
		Status:       capture.Status,
		EmailAddress: capture.PayerEmail,
		PricePaid:    capture.Amount,
	}, nil
}

type stripeConfirmer struct {
	client StripeClient
}

// Confirm checks that the intent belongs to this order and has succeeded.
func (c stripeConfirmer) Confirm(ctx context.Context, order *domain.Order, ref string) (*domain.PaymentResult, error) {
	intent, err := c.client.GetIntent(ctx, ref)
	if err != nil {
		return nil, Provider(err)
	}
	if intent.OrderID == "" || intent.OrderID != order.ID.String() {
		return nil, NotFound("order")
	}
	if intent.Status != stripepay.StatusSucceeded {
		return nil, &Error{
			Kind:       KindPaymentVerificationFailed,
			Message:    ErrPaymentVerificationFailed.Message,
			RedirectTo: "/order/" + order.ID.String(),
		}
	}
	return &domain.PaymentResult{
		ID:        intent.ID,
		Status:    "COMPLETED",
		PricePaid: decimal.New(intent.AmountCents, -2),
	}, nil
}

// cashConfirmer has no provider to ask, the admin's word is the evidence.
type cashConfirmer struct{}

func (cashConfirmer) Confirm(context.Context, *domain.Order, string) (*domain.PaymentResult, error) {
	return nil, nil
}
