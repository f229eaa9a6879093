package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dimamanhura/rozetka/pkg/circuitbreaker"
	"github.com/sony/gobreaker/v2"
	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

const (
	Currency             = "usd"
	MetadataOrderID      = "orderId"
	StatusSucceeded      = string(stripeapi.PaymentIntentStatusSucceeded)
	EventChargeSucceeded = "charge.succeeded"
)

var ErrInvalidSignature = errors.New("stripe: invalid webhook signature")

type Config struct {
	SecretKey     string
	WebhookSecret string
	// Backends overrides the Stripe API endpoints, nil uses the live ones.
	Backends *stripeapi.Backends
}

// Intent is the subset of a PaymentIntent the shop needs.
type Intent struct {
	ID           string
	Status       string
	OrderID      string
	ClientSecret string
	AmountCents  int64
}

// Charge describes a succeeded charge delivered by webhook.
type Charge struct {
	ID          string
	OrderID     string
	Email       string
	AmountCents int64
}

type Event struct {
	ID     string
	Type   string
	Charge *Charge
}

type Client struct {
	api           *client.API
	webhookSecret string
	cb            *gobreaker.CircuitBreaker[*stripeapi.PaymentIntent]
}

func NewClient(cfg Config) *Client {
	api := &client.API{}
	api.Init(cfg.SecretKey, cfg.Backends)

	cbCfg := circuitbreaker.DefaultConfig("stripe")
	cbCfg.IsSuccessful = isSuccessful

	return &Client{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		cb:            circuitbreaker.New[*stripeapi.PaymentIntent](cbCfg),
	}
}

// isSuccessful keeps card and request errors from tripping the breaker.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	var stripeErr *stripeapi.Error
	return errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode > 0 && stripeErr.HTTPStatusCode < 500
}

// CreateIntent opens a PaymentIntent for an order total in cents.
func (c *Client) CreateIntent(ctx context.Context, orderID string, amountCents int64) (*Intent, error) {
	params := &stripeapi.PaymentIntentParams{
		Amount:   stripeapi.Int64(amountCents),
		Currency: stripeapi.String(Currency),
	}
	params.Context = ctx
	params.AddMetadata(MetadataOrderID, orderID)

	pi, err := c.cb.Execute(func() (*stripeapi.PaymentIntent, error) {
		return c.api.PaymentIntents.New(params)
	})
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return toIntent(pi), nil
}

func (c *Client) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	params := &stripeapi.PaymentIntentParams{}
	params.Context = ctx

	pi, err := c.cb.Execute(func() (*stripeapi.PaymentIntent, error) {
		return c.api.PaymentIntents.Get(intentID, params)
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve payment intent %s: %w", intentID, err)
	}
	return toIntent(pi), nil
}

// ParseEvent verifies a webhook signature and decodes the event. Only
// charge.succeeded carries a Charge.
func (c *Client) ParseEvent(payload []byte, signature string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if out.Type != EventChargeSucceeded {
		return out, nil
	}

	var charge stripeapi.Charge
	if err := json.Unmarshal(ev.Data.Raw, &charge); err != nil {
		return nil, fmt.Errorf("decode charge: %w", err)
	}
	out.Charge = &Charge{
		ID:          charge.ID,
		OrderID:     charge.Metadata[MetadataOrderID],
		AmountCents: charge.Amount,
	}
	if charge.BillingDetails != nil {
		out.Charge.Email = charge.BillingDetails.Email
	}
	return out, nil
}

func toIntent(pi *stripeapi.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		Status:       string(pi.Status),
		OrderID:      pi.Metadata[MetadataOrderID],
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
	}
}
