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

type ReviewService interface {
	UpsertReview(ctx context.Context, actor domain.Actor, req service.ReviewRequest) (bool, error)
	ListReviews(ctx context.Context, productID uuid.UUID) ([]*domain.Review, error)
	GetMyReview(ctx context.Context, actor domain.Actor, productID uuid.UUID) (*domain.Review, error)
}

type ReviewHandler struct {
	base
	reviews ReviewService
}

func NewReviewHandler(reviews ReviewService, log *zap.Logger, timeout time.Duration) *ReviewHandler {
	return &ReviewHandler{base: base{log: log, timeout: timeout}, reviews: reviews}
}

// POST /api/v1/products/{productId}/reviews
func (h *ReviewHandler) UpsertReview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	productID, ok := uuidParam(r, "productId")
	if !ok {
		h.badRequest(w, "productId", "must be a valid id")
		return
	}
	var req service.ReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "body", "invalid JSON body")
		return
	}
	req.ProductID = productID

	created, err := h.reviews.UpsertReview(ctx, actorFromContext(r.Context()), req)
	msg, status := "review updated successfully", http.StatusOK
	if created {
		msg, status = "review created successfully", http.StatusCreated
	}
	h.respondResult(w, r, status, err, msg, nil)
}

// GET /api/v1/products/{productId}/reviews
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	productID, ok := uuidParam(r, "productId")
	if !ok {
		h.badRequest(w, "productId", "must be a valid id")
		return
	}

	reviews, err := h.reviews.ListReviews(ctx, productID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": reviews})
}

// GET /api/v1/products/{productId}/reviews/mine
func (h *ReviewHandler) GetMyReview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	productID, ok := uuidParam(r, "productId")
	if !ok {
		h.badRequest(w, "productId", "must be a valid id")
		return
	}

	review, err := h.reviews.GetMyReview(ctx, actorFromContext(r.Context()), productID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, review)
}
