package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dimamanhura/rozetka/internal/domain"
	"go.uber.org/zap"
)

type UserService interface {
	UpdateAddress(ctx context.Context, actor domain.Actor, addr domain.ShippingAddress) error
	UpdatePaymentMethod(ctx context.Context, actor domain.Actor, method string) error
}

type UserHandler struct {
	base
	users UserService
}

func NewUserHandler(users UserService, log *zap.Logger, timeout time.Duration) *UserHandler {
	return &UserHandler{base: base{log: log, timeout: timeout}, users: users}
}

type paymentMethodRequest struct {
	Type string `json:"type"`
}

// PUT /api/v1/me/address
func (h *UserHandler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	var addr domain.ShippingAddress
	if err := decodeJSON(r, &addr); err != nil {
		h.badRequest(w, "body", "invalid JSON body")
		return
	}

	err := h.users.UpdateAddress(ctx, actorFromContext(r.Context()), addr)
	h.respondResult(w, r, http.StatusOK, err, "user updated successfully", nil)
}

// PUT /api/v1/me/payment-method
func (h *UserHandler) UpdatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	var req paymentMethodRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "body", "invalid JSON body")
		return
	}

	err := h.users.UpdatePaymentMethod(ctx, actorFromContext(r.Context()), req.Type)
	h.respondResult(w, r, http.StatusOK, err, "user updated successfully", nil)
}
