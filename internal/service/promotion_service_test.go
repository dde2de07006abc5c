package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/seludoto/dolesecommerce/internal/datamodels/cart"
	"github.com/seludoto/dolesecommerce/internal/datamodels/order"
	"github.com/seludoto/dolesecommerce/internal/datamodels/promotion"
	"github.com/seludoto/dolesecommerce/internal/repository/mysql"
)

func newTestPromotionService(t *testing.T) (*PromotionService, promotion.Repository, order.Repository) {
	t.Helper()
	db := newServiceTestDB(t)
	promos := mysql.NewPromotionRepository(db)
	orders := mysql.NewOrderRepository(db)
	return NewPromotionService(promos, orders), promos, orders
}

func TestValidateMinOrderAmount(t *testing.T) {
	svc, promos, _ := newTestPromotionService(t)
	ctx := context.Background()

	now := time.Now()
	if err := promos.Create(ctx, &promotion.PromoCode{
		Code: "MIN2000", DiscountType: promotion.TypeFixed, DiscountValue: 10000,
		MinOrderAmount: 200000, UsagePerUser: 1, IsActive: true,
		ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("create promo: %v", err)
	}

	if _, err := svc.Validate(ctx, "MIN2000", 7, 100000); !errors.Is(err, ErrPromoMinOrder) {
		t.Fatalf("expected ErrPromoMinOrder, got %v", err)
	}
	if _, err := svc.Validate(ctx, "MIN2000", 7, 250000); err != nil {
		t.Fatalf("should validate above min order, got %v", err)
	}
}

func TestValidateUsageLimitReached(t *testing.T) {
	svc, promos, _ := newTestPromotionService(t)
	ctx := context.Background()

	now := time.Now()
	if err := promos.Create(ctx, &promotion.PromoCode{
		Code: "LIMITED", DiscountType: promotion.TypeFixed, DiscountValue: 10000,
		UsageLimit: 5, UsageCount: 5, UsagePerUser: 1, IsActive: true,
		ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("create promo: %v", err)
	}

	if _, err := svc.Validate(ctx, "LIMITED", 7, 100000); !errors.Is(err, ErrPromoUsedUp) {
		t.Fatalf("expected ErrPromoUsedUp, got %v", err)
	}
}

func TestValidateFirstTimeOnly(t *testing.T) {
	svc, promos, orders := newTestPromotionService(t)
	ctx := context.Background()

	now := time.Now()
	if err := promos.Create(ctx, &promotion.PromoCode{
		Code: "WELCOME", DiscountType: promotion.TypePercentage, DiscountValue: 10,
		FirstTimeOnly: true, UsagePerUser: 1, IsActive: true,
		ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("create promo: %v", err)
	}

	// 匿名用户不能用首单码
	if _, err := svc.Validate(ctx, "WELCOME", 0, 100000); !errors.Is(err, ErrPromoFirstOnly) {
		t.Fatalf("expected ErrPromoFirstOnly for anonymous, got %v", err)
	}

	// 新用户可以
	if _, err := svc.Validate(ctx, "WELCOME", 7, 100000); err != nil {
		t.Fatalf("new user should validate, got %v", err)
	}

	// 已下过单的用户不行
	if err := orders.CreateWithItems(ctx, &order.Order{
		Number: "DO-TEST-1", UserID: 7, Subtotal: 100, TotalAmount: 100,
	}, nil); err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := svc.Validate(ctx, "WELCOME", 7, 100000); !errors.Is(err, ErrPromoFirstOnly) {
		t.Fatalf("expected ErrPromoFirstOnly after first order, got %v", err)
	}
}

func TestValidatePerUserLimit(t *testing.T) {
	svc, promos, _ := newTestPromotionService(t)
	ctx := context.Background()

	now := time.Now()
	p := &promotion.PromoCode{
		Code: "TWICE", DiscountType: promotion.TypeFixed, DiscountValue: 5000,
		UsagePerUser: 2, IsActive: true,
		ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(time.Hour),
	}
	if err := promos.Create(ctx, p); err != nil {
		t.Fatalf("create promo: %v", err)
	}

	for i := int64(1); i <= 2; i++ {
		if err := promos.CreateRedemption(ctx, &promotion.Redemption{
			PromoCodeID: p.ID, UserID: 7, OrderID: i, Amount: 5000,
		}); err != nil {
			t.Fatalf("create redemption: %v", err)
		}
	}

	if _, err := svc.Validate(ctx, "TWICE", 7, 100000); !errors.Is(err, ErrPromoUsedUp) {
		t.Fatalf("expected ErrPromoUsedUp after per-user limit, got %v", err)
	}
	// 别的用户不受影响
	if _, err := svc.Validate(ctx, "TWICE", 8, 100000); err != nil {
		t.Fatalf("other user should validate, got %v", err)
	}
}

func TestRedeemGuardedAtUsageLimit(t *testing.T) {
	svc, promos, _ := newTestPromotionService(t)
	ctx := context.Background()

	now := time.Now()
	p := &promotion.PromoCode{
		Code: "LAST1", DiscountType: promotion.TypeFixed, DiscountValue: 5000,
		UsageLimit: 1, UsagePerUser: 1, IsActive: true,
		ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(time.Hour),
	}
	if err := promos.Create(ctx, p); err != nil {
		t.Fatalf("create promo: %v", err)
	}

	ok, err := svc.Redeem(ctx, p, 7, 1, 5000)
	if err != nil || !ok {
		t.Fatalf("first redeem should succeed, ok=%v err=%v", ok, err)
	}
	ok, err = svc.Redeem(ctx, p, 8, 2, 5000)
	if err != nil {
		t.Fatalf("second redeem: %v", err)
	}
	if ok {
		t.Fatal("redeem past usage limit must be rejected")
	}
}

func TestDiscountBOGO(t *testing.T) {
	svc, _, _ := newTestPromotionService(t)

	p := &promotion.PromoCode{DiscountType: promotion.TypeBOGO}
	items := []*cart.Item{
		{UnitPrice: 10000, Quantity: 3}, // 1 件免
		{UnitPrice: 5000, Quantity: 4},  // 2 件免
		{UnitPrice: 8000, Quantity: 1},  // 不满一对
	}

	// 10000 + 2*5000 = 20000
	if got := svc.Discount(p, items, 100000, 0); got != 20000 {
		t.Fatalf("bogo discount = %d, want 20000", got)
	}

	p.MaxDiscountAmount = 15000
	if got := svc.Discount(p, items, 100000, 0); got != 15000 {
		t.Fatalf("capped bogo discount = %d, want 15000", got)
	}

	p.MaxDiscountAmount = 0
	if got := svc.Discount(p, items, 12000, 0); got != 12000 {
		t.Fatalf("bogo discount must not exceed remaining, got %d", got)
	}
}
