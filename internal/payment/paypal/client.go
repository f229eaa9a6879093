package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dimamanhura/rozetka/pkg/circuitbreaker"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

type Config struct {
	BaseURL  string
	ClientID string
	Secret   string
	Timeout  time.Duration
}

// APIError is a non-2xx answer from PayPal.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypal: status %d: %s", e.StatusCode, e.Body)
}

// Capture is the part of a capture response the shop records.
type Capture struct {
	ID         string
	Status     string
	PayerEmail string
	Amount     decimal.Decimal
}

type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
}

func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.Secret,
		TokenURL:     base + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: cfg.Timeout})

	httpClient := cc.Client(tokenCtx)
	httpClient.Timeout = cfg.Timeout

	cbCfg := circuitbreaker.DefaultConfig("paypal")
	cbCfg.IsSuccessful = isSuccessful

	return &Client{
		baseURL: base,
		http:    httpClient,
		cb:      circuitbreaker.New[[]byte](cbCfg),
	}
}

// isSuccessful keeps client-side rejections from tripping the breaker.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError
}

type amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	Amount amount `json:"amount"`
}

type createOrderRequest struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type captureResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Payer  struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				Amount amount `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// CreateOrder opens a PayPal checkout order for amount and returns its id.
func (c *Client) CreateOrder(ctx context.Context, total decimal.Decimal) (string, error) {
	req := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{
			{Amount: amount{CurrencyCode: "USD", Value: total.StringFixed(2)}},
		},
	}
	body, err := c.post(ctx, "/v2/checkout/orders", req)
	if err != nil {
		return "", fmt.Errorf("create paypal order: %w", err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode paypal order: %w", err)
	}
	if resp.ID == "" {
		return "", errors.New("paypal order response has no id")
	}
	return resp.ID, nil
}

// CapturePayment captures an approved PayPal order.
func (c *Client) CapturePayment(ctx context.Context, orderID string) (*Capture, error) {
	body, err := c.post(ctx, "/v2/checkout/orders/"+url.PathEscape(orderID)+"/capture", nil)
	if err != nil {
		return nil, fmt.Errorf("capture paypal order: %w", err)
	}

	var resp captureResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode paypal capture: %w", err)
	}

	capture := &Capture{
		ID:         resp.ID,
		Status:     resp.Status,
		PayerEmail: resp.Payer.EmailAddress,
	}
	if len(resp.PurchaseUnits) > 0 && len(resp.PurchaseUnits[0].Payments.Captures) > 0 {
		value := resp.PurchaseUnits[0].Payments.Captures[0].Amount.Value
		if capture.Amount, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("parse captured amount %q: %w", value, err)
		}
	}
	return capture, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	return c.cb.Execute(func() ([]byte, error) {
		var reader io.Reader
		if payload != nil {
			data, err := json.Marshal(payload)
			if err != nil {
				return nil, err
			}
			reader = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		res, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		body, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, err
		}
		if res.StatusCode < 200 || res.StatusCode >= 300 {
			return nil, &APIError{StatusCode: res.StatusCode, Body: string(body)}
		}
		return body, nil
	})
}
