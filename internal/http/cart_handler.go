package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dimamanhura/rozetka/internal/domain"
	"github.com/dimamanhura/rozetka/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CartService interface {
	GetCart(ctx context.Context, actor domain.Actor) (*domain.Cart, error)
	AddItem(ctx context.Context, actor domain.Actor, req service.AddItemRequest) (*service.CartChange, error)
	RemoveItem(ctx context.Context, actor domain.Actor, productID uuid.UUID) (*service.CartChange, error)
	MergeAnonymousCart(ctx context.Context, actor domain.Actor) error
}

type CartHandler struct {
	base
	carts CartService
}

func NewCartHandler(carts CartService, log *zap.Logger, timeout time.Duration) *CartHandler {
	return &CartHandler{base: base{log: log, timeout: timeout}, carts: carts}
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	cart, err := h.carts.GetCart(ctx, actorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	var req service.AddItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "body", "invalid JSON body")
		return
	}

	change, err := h.carts.AddItem(ctx, actorFromContext(r.Context()), req)
	h.respondChange(w, r, change, err)
}

// DELETE /api/v1/cart/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	productID, ok := uuidParam(r, "productId")
	if !ok {
		h.badRequest(w, "productId", "must be a valid id")
		return
	}

	change, err := h.carts.RemoveItem(ctx, actorFromContext(r.Context()), productID)
	h.respondChange(w, r, change, err)
}

// POST /api/v1/cart/merge, called right after sign-in.
func (h *CartHandler) MergeCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	err := h.carts.MergeAnonymousCart(ctx, actorFromContext(r.Context()))
	h.respondResult(w, r, http.StatusOK, err, "cart merged", nil)
}

func (h *CartHandler) respondChange(w http.ResponseWriter, r *http.Request, change *service.CartChange, err error) {
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondResult(w, r, http.StatusOK, nil, change.Message, change.Cart)
}
