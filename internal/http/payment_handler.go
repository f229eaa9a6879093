package http

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/dimamanhura/rozetka/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PaymentService interface {
	CreatePayPalOrder(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (string, error)
	ApprovePayPalOrder(ctx context.Context, actor domain.Actor, orderID uuid.UUID, providerOrderID string) (*domain.Order, error)
	CreateStripePaymentIntent(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (string, error)
	VerifyStripePayment(ctx context.Context, actor domain.Actor, orderID uuid.UUID, intentID string) (*domain.Order, error)
	HandleStripeEvent(ctx context.Context, payload []byte, signature string) error
	MarkPaidCOD(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*domain.Order, error)
	MarkDelivered(ctx context.Context, actor domain.Actor, orderID uuid.UUID) error
}

type PaymentHandler struct {
	base
	payments PaymentService
	maxBody  int64
}

func NewPaymentHandler(payments PaymentService, log *zap.Logger, timeout time.Duration, maxBody int64) *PaymentHandler {
	return &PaymentHandler{base: base{log: log, timeout: timeout}, payments: payments, maxBody: maxBody}
}

type approvePayPalRequest struct {
	OrderID string `json:"orderId"`
}

// POST /api/v1/orders/{orderId}/paypal
func (h *PaymentHandler) CreatePayPalOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	id, ok := uuidParam(r, "orderId")
	if !ok {
		h.badRequest(w, "orderId", "must be a valid id")
		return
	}

	providerID, err := h.payments.CreatePayPalOrder(ctx, actorFromContext(r.Context()), id)
	var data any
	if err == nil {
		data = map[string]string{"paypalOrderId": providerID}
	}
	h.respondResult(w, r, http.StatusOK, err, "paypal order created", data)
}

// POST /api/v1/orders/{orderId}/paypal/capture
func (h *PaymentHandler) ApprovePayPalOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	id, ok := uuidParam(r, "orderId")
	if !ok {
		h.badRequest(w, "orderId", "must be a valid id")
		return
	}
	var req approvePayPalRequest
	if err := decodeJSON(r, &req); err != nil || req.OrderID == "" {
		h.badRequest(w, "orderId", "paypal order id is required")
		return
	}

	order, err := h.payments.ApprovePayPalOrder(ctx, actorFromContext(r.Context()), id, req.OrderID)
	h.respondResult(w, r, http.StatusOK, err, "your order has been paid", order)
}

// POST /api/v1/orders/{orderId}/stripe/intent
func (h *PaymentHandler) CreateStripePaymentIntent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	id, ok := uuidParam(r, "orderId")
	if !ok {
		h.badRequest(w, "orderId", "must be a valid id")
		return
	}

	secret, err := h.payments.CreateStripePaymentIntent(ctx, actorFromContext(r.Context()), id)
	var data any
	if err == nil {
		data = map[string]string{"clientSecret": secret}
	}
	h.respondResult(w, r, http.StatusOK, err, "payment intent created", data)
}

// GET /api/v1/orders/{orderId}/stripe/verify?payment_intent=
func (h *PaymentHandler) VerifyStripePayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	id, ok := uuidParam(r, "orderId")
	if !ok {
		h.badRequest(w, "orderId", "must be a valid id")
		return
	}
	intentID := r.URL.Query().Get("payment_intent")
	if intentID == "" {
		h.badRequest(w, "payment_intent", "is required")
		return
	}

	order, err := h.payments.VerifyStripePayment(ctx, actorFromContext(r.Context()), id, intentID)
	h.respondResult(w, r, http.StatusOK, err, "payment verified", order)
}

// POST /api/v1/webhooks/stripe
func (h *PaymentHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		h.badRequest(w, "body", "unreadable payload")
		return
	}

	err = h.payments.HandleStripeEvent(ctx, payload, r.Header.Get("Stripe-Signature"))
	h.respondResult(w, r, http.StatusOK, err, "event received", nil)
}

// POST /api/v1/admin/orders/{orderId}/pay
func (h *PaymentHandler) MarkPaidCOD(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	id, ok := uuidParam(r, "orderId")
	if !ok {
		h.badRequest(w, "orderId", "must be a valid id")
		return
	}

	_, err := h.payments.MarkPaidCOD(ctx, actorFromContext(r.Context()), id)
	h.respondResult(w, r, http.StatusOK, err, "order marked as paid", nil)
}

// POST /api/v1/admin/orders/{orderId}/deliver
func (h *PaymentHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	id, ok := uuidParam(r, "orderId")
	if !ok {
		h.badRequest(w, "orderId", "must be a valid id")
		return
	}

	err := h.payments.MarkDelivered(ctx, actorFromContext(r.Context()), id)
	h.respondResult(w, r, http.StatusOK, err, "order marked as delivered", nil)
}
