package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dimamanhura/rozetka/internal/cache"
	"github.com/dimamanhura/rozetka/internal/domain"
	"github.com/dimamanhura/rozetka/internal/repository"
	"github.com/dimamanhura/rozetka/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReviewRequest struct {
	ProductID   uuid.UUID `json:"productId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Rating      int       `json:"rating"`
}

type ReviewService struct {
	store repository.Store
	pages cache.PageInvalidator
	log   *zap.Logger
}

func NewReviewService(store repository.Store, pages cache.PageInvalidator, log *zap.Logger) *ReviewService {
	return &ReviewService{store: store, pages: pages, log: log}
}

// UpsertReview writes the actor's single review of a product and refreshes
// the product's rating and review count in the same transaction. It reports
// whether a new review was created.
func (s *ReviewService) UpsertReview(ctx context.Context, actor domain.Actor, req ReviewRequest) (bool, error) {
	if !actor.IsAuthenticated() {
		return false, ErrUnauthenticated
	}
	if err := validateReview(&req); err != nil {
		return false, err
	}

	var (
		created bool
		slug    string
	)
	err := s.store.WithTransaction(ctx, func(tx repository.Tx) error {
		// the product lock orders concurrent reviews so each rating refresh
		// counts every review committed before it
		product, err := tx.LockProduct(ctx, req.ProductID)
		if errors.Is(err, repository.ErrProductNotFound) {
			return NotFound("product")
		}
		if err != nil {
			return err
		}
		slug = product.Slug

		created, err = tx.UpsertReview(ctx, &domain.Review{
			ID:                 uuid.New(),
			UserID:             actor.UserID,
			ProductID:          req.ProductID,
			Title:              req.Title,
			Description:        req.Description,
			Rating:             req.Rating,
			IsVerifiedPurchase: true,
			CreatedAt:          time.Now().UTC(),
		})
		if errors.Is(err, repository.ErrDuplicate) {
			return Conflict("review")
		}
		if err != nil {
			return err
		}
		return tx.RefreshProductRating(ctx, req.ProductID)
	})
	if err != nil {
		return false, err
	}

	ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.pages.InvalidateProductPage(ictx, slug); err != nil {
		logger.WithContext(ctx, s.log).Warn("product page invalidate failed", zap.String("slug", slug), zap.Error(err))
	}
	return created, nil
}

func (s *ReviewService) ListReviews(ctx context.Context, productID uuid.UUID) ([]*domain.Review, error) {
	return s.store.ListReviews(ctx, productID)
}

func (s *ReviewService) GetMyReview(ctx context.Context, actor domain.Actor, productID uuid.UUID) (*domain.Review, error) {
	if !actor.IsAuthenticated() {
		return nil, ErrUnauthenticated
	}
	review, err := s.store.GetReview(ctx, actor.UserID, productID)
	if errors.Is(err, repository.ErrReviewNotFound) {
		return nil, NotFound("review")
	}
	return review, err
}

func validateReview(req *ReviewRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)

	fields := map[string]string{}
	if req.ProductID == uuid.Nil {
		fields["productId"] = "is required"
	}
	if len(req.Title) < 3 {
		fields["title"] = "must be at least 3 characters"
	}
	if len(req.Description) < 3 {
		fields["description"] = "must be at least 3 characters"
	}
	if req.Rating < 1 || req.Rating > 5 {
		fields["rating"] = "must be between 1 and 5"
	}
	if len(fields) > 0 {
		return Validation(fields)
	}
	return nil
}
