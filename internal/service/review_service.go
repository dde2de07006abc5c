package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/seludoto/dolesecommerce/internal/datamodels/order"
	"github.com/seludoto/dolesecommerce/internal/datamodels/review"
)

var (
	ErrAlreadyReviewed = errors.New("已经评价过该商品")
	ErrBadRating       = errors.New("评分必须在 1 到 5 之间")
)

// ReviewService 商品评价：创建、查询、有用投票，评分聚合
type ReviewService struct {
	reviews review.Repository
	orders  order.Repository
}

func NewReviewService(reviews review.Repository, orders order.Repository) *ReviewService {
	return &ReviewService{reviews: reviews, orders: orders}
}

// Create 发表评价。同一用户对同一商品只能评价一次，
// 在该用户已支付订单中出现过的商品标记为真实购买。
func (s *ReviewService) Create(ctx context.Context, userID, productID int64, rating int, title, comment string) (*review.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrBadRating
	}
	if _, err := s.reviews.GetByProductAndUser(ctx, productID, userID); err == nil {
		return nil, ErrAlreadyReviewed
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	r := &review.Review{
		ProductID:          productID,
		UserID:             userID,
		Rating:             rating,
		Title:              title,
		Comment:            comment,
		IsVerifiedPurchase: s.hasPurchased(ctx, userID, productID),
		IsApproved:         true,
	}
	if err := s.reviews.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// hasPurchased 用户是否在已支付的订单里买过该商品
func (s *ReviewService) hasPurchased(ctx context.Context, userID, productID int64) bool {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return false
	}
	for _, o := range orders {
		if o.Status < order.StatusPaid || o.Status == order.StatusCancelled {
			continue
		}
		items, err := s.orders.ListItems(ctx, o.ID)
		if err != nil {
			continue
		}
		for _, it := range items {
			if it.ProductID == productID {
				return true
			}
		}
	}
	return false
}

func (s *ReviewService) ListByProduct(ctx context.Context, productID int64) ([]*review.Review, error) {
	return s.reviews.ListByProduct(ctx, productID)
}

func (s *ReviewService) ListByUser(ctx context.Context, userID int64) ([]*review.Review, error) {
	return s.reviews.ListByUser(ctx, userID)
}

func (s *ReviewService) Summary(ctx context.Context, productID int64) (*review.RatingSummary, error) {
	return s.reviews.Summary(ctx, productID)
}

// MarkHelpful 有用投票
func (s *ReviewService) MarkHelpful(ctx context.Context, reviewID int64) error {
	return s.reviews.IncrementHelpful(ctx, reviewID)
}

// Moderate 后台审核：下架或恢复评价
func (s *ReviewService) Moderate(ctx context.Context, reviewID int64, approved bool) error {
	r, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return err
	}
	r.IsApproved = approved
	return s.reviews.Update(ctx, r)
}

func (s *ReviewService) Delete(ctx context.Context, reviewID int64) error {
	return s.reviews.Delete(ctx, reviewID)
}
