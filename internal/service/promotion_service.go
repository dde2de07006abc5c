package service

import (
	"context"
	"errors"
	"time"

	"github.com/seludoto/dolesecommerce/internal/datamodels/cart"
	"github.com/seludoto/dolesecommerce/internal/datamodels/order"
	"github.com/seludoto/dolesecommerce/internal/datamodels/promotion"
)

var (
	ErrPromoNotFound  = errors.New("优惠码不存在")
	ErrPromoInvalid   = errors.New("优惠码已失效或不在有效期内")
	ErrPromoUsedUp    = errors.New("优惠码使用次数已达上限")
	ErrPromoFirstOnly = errors.New("优惠码仅限首单使用")
	ErrPromoMinOrder  = errors.New("未达到优惠码最低消费金额")
)

// PromotionService 优惠码校验与折扣计算
type PromotionService struct {
	promos promotion.Repository
	orders order.Repository
}

func NewPromotionService(promos promotion.Repository, orders order.Repository) *PromotionService {
	return &PromotionService{promos: promos, orders: orders}
}

// Validate 校验用户能否使用优惠码。userID 为 0 表示匿名会话，
// 匿名用户不能使用限首单或限每人次数的优惠码。
func (s *PromotionService) Validate(ctx context.Context, code string, userID, cartTotal int64) (*promotion.PromoCode, error) {
	p, err := s.promos.GetByCode(ctx, code)
	if err != nil {
		return nil, ErrPromoNotFound
	}
	now := time.Now()
	if !p.IsValidAt(now) {
		if p.UsageLimit > 0 && p.UsageCount >= p.UsageLimit {
			return nil, ErrPromoUsedUp
		}
		return nil, ErrPromoInvalid
	}
	if cartTotal < p.MinOrderAmount {
		return nil, ErrPromoMinOrder
	}

	if p.FirstTimeOnly {
		if userID == 0 {
			return nil, ErrPromoFirstOnly
		}
		n, err := s.orders.CountByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, ErrPromoFirstOnly
		}
	}

	if p.UsagePerUser > 0 && userID != 0 {
		used, err := s.promos.CountRedemptionsByUser(ctx, p.ID, userID)
		if err != nil {
			return nil, err
		}
		if used >= p.UsagePerUser {
			return nil, ErrPromoUsedUp
		}
	}

	return p, nil
}

// Discount 计算优惠码对当前购物车的折扣金额（单位分）。
// remaining 为前序优惠已扣减后的剩余应付小计，折扣不会超过它。
// BOGO 按行项目计算：每行每两件免一件，以该行单价计。
func (s *PromotionService) Discount(p *promotion.PromoCode, items []*cart.Item, remaining, shippingFee int64) int64 {
	if p.DiscountType != promotion.TypeBOGO {
		return p.CalculateDiscount(remaining, shippingFee)
	}

	if remaining < p.MinOrderAmount {
		return 0
	}
	var discount int64
	for _, it := range items {
		free := it.Quantity / 2
		discount += free * it.UnitPrice
	}
	if p.MaxDiscountAmount > 0 && discount > p.MaxDiscountAmount {
		discount = p.MaxDiscountAmount
	}
	if discount > remaining {
		discount = remaining
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

// Redeem 核销：带条件递增使用次数并写核销记录。
// 返回 false 表示并发下使用次数已被抢完。
func (s *PromotionService) Redeem(ctx context.Context, p *promotion.PromoCode, userID, orderID, amount int64) (bool, error) {
	ok, err := s.promos.IncrementUsage(ctx, p.ID)
	if err != nil || !ok {
		return ok, err
	}
	err = s.promos.CreateRedemption(ctx, &promotion.Redemption{
		PromoCodeID: p.ID,
		UserID:      userID,
		OrderID:     orderID,
		Amount:      amount,
	})
	return true, err
}

func (s *PromotionService) GetByCode(ctx context.Context, code string) (*promotion.PromoCode, error) {
	return s.promos.GetByCode(ctx, code)
}

func (s *PromotionService) GetByID(ctx context.Context, id int64) (*promotion.PromoCode, error) {
	return s.promos.GetByID(ctx, id)
}

func (s *PromotionService) ListAll(ctx context.Context) ([]*promotion.PromoCode, error) {
	return s.promos.ListAll(ctx)
}

func (s *PromotionService) Create(ctx context.Context, p *promotion.PromoCode) error {
	return s.promos.Create(ctx, p)
}

func (s *PromotionService) Update(ctx context.Context, p *promotion.PromoCode) error {
	return s.promos.Update(ctx, p)
}

func (s *PromotionService) Delete(ctx context.Context, id int64) error {
	return s.promos.Delete(ctx, id)
}
