package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/seludoto/dolesecommerce/internal/config"
	"github.com/seludoto/dolesecommerce/internal/datamodels/product"
	"github.com/seludoto/dolesecommerce/internal/datamodels/promotion"
	"github.com/seludoto/dolesecommerce/internal/repository/mysql"
)

// newServiceTestDB 每个测试独立的内存库
func newServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := mysql.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testCheckoutConfig() *config.CheckoutConfig {
	return &config.CheckoutConfig{
		TaxRatePercent:        8,
		ShippingFee:           20000,
		FreeShippingThreshold: 500000,
	}
}

func newTestCartService(t *testing.T, db *gorm.DB) *CartService {
	t.Helper()
	promoSvc := NewPromotionService(mysql.NewPromotionRepository(db), mysql.NewOrderRepository(db))
	return NewCartService(
		mysql.NewCartRepository(db),
		mysql.NewProductRepository(db),
		promoSvc,
		testCheckoutConfig(),
	)
}

func seedProduct(t *testing.T, db *gorm.DB, price, stock int64) *product.Product {
	t.Helper()
	p := &product.Product{
		StoreID:    1,
		Name:       fmt.Sprintf("商品-%s-%d", t.Name(), price),
		Slug:       fmt.Sprintf("p-%s-%d", t.Name(), price),
		SKU:        fmt.Sprintf("sku-%s-%d", t.Name(), price),
		Price:      price,
		CategoryID: 1,
		Stock:      stock,
		Status:     product.StatusOnline,
	}
	if err := mysql.NewProductRepository(db).Create(context.Background(), p); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func seedPromo(t *testing.T, db *gorm.DB, code, discountType string, value, maxDiscount int64) *promotion.PromoCode {
	t.Helper()
	now := time.Now()
	p := &promotion.PromoCode{
		Code:              code,
		DiscountType:      discountType,
		DiscountValue:     value,
		MaxDiscountAmount: maxDiscount,
		UsagePerUser:      10,
		IsActive:          true,
		ValidFrom:         now.Add(-time.Hour),
		ValidUntil:        now.Add(time.Hour),
	}
	if err := mysql.NewPromotionRepository(db).Create(context.Background(), p); err != nil {
		t.Fatalf("seed promo: %v", err)
	}
	return p
}

func TestAddItemAccumulatesSameLine(t *testing.T) {
	db := newServiceTestDB(t)
	svc := newTestCartService(t, db)
	ctx := context.Background()

	p := seedProduct(t, db, 100000, 10)
	c, err := svc.GetOrCreate(ctx, 7, "")
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}

	if _, err := svc.AddItem(ctx, c, p.ID, 2, "M", "red"); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if _, err := svc.AddItem(ctx, c, p.ID, 3, "M", "red"); err != nil {
		t.Fatalf("add same line: %v", err)
	}
	if _, err := svc.AddItem(ctx, c, p.ID, 1, "L", "red"); err != nil {
		t.Fatalf("add different size: %v", err)
	}

	items, err := svc.ListItems(ctx, c.ID)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(items))
	}
	for _, it := range items {
		if it.Size == "M" && it.Quantity != 5 {
			t.Fatalf("same line should accumulate to 5, got %d", it.Quantity)
		}
	}
}

func TestAddItemRejectsOverStock(t *testing.T) {
	db := newServiceTestDB(t)
	svc := newTestCartService(t, db)
	ctx := context.Background()

	p := seedProduct(t, db, 100000, 3)
	c, _ := svc.GetOrCreate(ctx, 7, "")

	if _, err := svc.AddItem(ctx, c, p.ID, 5, "", ""); err != ErrInsufficientQty {
		t.Fatalf("expected ErrInsufficientQty, got %v", err)
	}
}

func TestComputeTotalsTaxAndShipping(t *testing.T) {
	db := newServiceTestDB(t)
	svc := newTestCartService(t, db)
	ctx := context.Background()

	p := seedProduct(t, db, 100000, 10)
	c, _ := svc.GetOrCreate(ctx, 7, "")
	if _, err := svc.AddItem(ctx, c, p.ID, 2, "", ""); err != nil {
		t.Fatalf("add item: %v", err)
	}

	tt, err := svc.ComputeTotals(ctx, c)
	if err != nil {
		t.Fatalf("compute totals: %v", err)
	}
	if tt.Subtotal != 200000 {
		t.Fatalf("subtotal = %d, want 200000", tt.Subtotal)
	}
	if tt.ShippingFee != 20000 {
		t.Fatalf("shipping = %d, want 20000", tt.ShippingFee)
	}
	if tt.TaxAmount != 16000 {
		t.Fatalf("tax = %d, want 16000 (8%%)", tt.TaxAmount)
	}
	if tt.Total != 236000 {
		t.Fatalf("total = %d, want 236000", tt.Total)
	}
}

func TestComputeTotalsFreeShippingOverThreshold(t *testing.T) {
	db := newServiceTestDB(t)
	svc := newTestCartService(t, db)
	ctx := context.Background()

	p := seedProduct(t, db, 300000, 10)
	c, _ := svc.GetOrCreate(ctx, 7, "")
	if _, err := svc.AddItem(ctx, c, p.ID, 2, "", ""); err != nil {
		t.Fatalf("add item: %v", err)
	}

	tt, err := svc.ComputeTotals(ctx, c)
	if err != nil {
		t.Fatalf("compute totals: %v", err)
	}
	if tt.ShippingFee != 0 {
		t.Fatalf("subtotal over threshold should ship free, got %d", tt.ShippingFee)
	}
}

func TestComputeTotalsSequentialPromos(t *testing.T) {
	db := newServiceTestDB(t)
	svc := newTestCartService(t, db)
	ctx := context.Background()

	p := seedProduct(t, db, 100000, 10)
	c, _ := svc.GetOrCreate(ctx, 7, "")
	if _, err := svc.AddItem(ctx, c, p.ID, 2, "", ""); err != nil {
		t.Fatalf("add item: %v", err)
	}

	seedPromo(t, db, "PCT20", promotion.TypePercentage, 20, 0)
	seedPromo(t, db, "FIX500", promotion.TypeFixed, 50000, 0)

	if _, err := svc.ApplyPromo(ctx, c, "PCT20"); err != nil {
		t.Fatalf("apply PCT20: %v", err)
	}
	if _, err := svc.ApplyPromo(ctx, c, "FIX500"); err != nil {
		t.Fatalf("apply FIX500: %v", err)
	}

	tt, err := svc.ComputeTotals(ctx, c)
	if err != nil {
		t.Fatalf("compute totals: %v", err)
	}
	// 200000 先八折扣 40000，剩 160000 再立减 50000，剩 110000
	if tt.DiscountAmount != 90000 {
		t.Fatalf("discount = %d, want 90000", tt.DiscountAmount)
	}
	if tt.TaxAmount != 8800 {
		t.Fatalf("tax = %d, want 8800 (8%% of 110000)", tt.TaxAmount)
	}
	if tt.Total != 110000+20000+8800 {
		t.Fatalf("total = %d, want 138800", tt.Total)
	}
}

func TestComputeTotalsDiscountNeverExceedsSubtotal(t *testing.T) {
	db := newServiceTestDB(t)
	svc := newTestCartService(t, db)
	ctx := context.Background()

	p := seedProduct(t, db, 40000, 10)
	c, _ := svc.GetOrCreate(ctx, 7, "")
	if _, err := svc.AddItem(ctx, c, p.ID, 1, "", ""); err != nil {
		t.Fatalf("add item: %v", err)
	}

	seedPromo(t, db, "BIG", promotion.TypeFixed, 999999, 0)
	if _, err := svc.ApplyPromo(ctx, c, "BIG"); err != nil {
		t.Fatalf("apply promo: %v", err)
	}

	tt, err := svc.ComputeTotals(ctx, c)
	if err != nil {
		t.Fatalf("compute totals: %v", err)
	}
	if tt.DiscountAmount != 40000 {
		t.Fatalf("discount = %d, must be clamped to subtotal 40000", tt.DiscountAmount)
	}
	if tt.TaxAmount != 0 {
		t.Fatalf("tax on zero base should be 0, got %d", tt.TaxAmount)
	}
	if tt.Total != tt.ShippingFee {
		t.Fatalf("total should be shipping only, got %d", tt.Total)
	}
}

func TestComputeTotalsFreeShippingPromoOnlyZeroesShipping(t *testing.T) {
	db := newServiceTestDB(t)
	svc := newTestCartService(t, db)
	ctx := context.Background()

	p := seedProduct(t, db, 100000, 10)
	c, _ := svc.GetOrCreate(ctx, 7, "")
	if _, err := svc.AddItem(ctx, c, p.ID, 1, "", ""); err != nil {
		t.Fatalf("add item: %v", err)
	}

	seedPromo(t, db, "SHIPFREE", promotion.TypeFreeShipping, 0, 0)
	if _, err := svc.ApplyPromo(ctx, c, "SHIPFREE"); err != nil {
		t.Fatalf("apply promo: %v", err)
	}

	tt, err := svc.ComputeTotals(ctx, c)
	if err != nil {
		t.Fatalf("compute totals: %v", err)
	}
	if tt.ShippingFee != 0 {
		t.Fatalf("shipping should be zeroed, got %d", tt.ShippingFee)
	}
	if !tt.FreeShipping {
		t.Fatal("free-shipping flag should be set for downstream quoting")
	}
	// 免邮不进入小计扣减
	if tt.DiscountAmount != 0 {
		t.Fatalf("free shipping must not reduce subtotal, discount = %d", tt.DiscountAmount)
	}
	if tt.TaxAmount != 8000 {
		t.Fatalf("tax = %d, want 8000", tt.TaxAmount)
	}
}

func TestMergeSessionCartIntoUserCart(t *testing.T) {
	db := newServiceTestDB(t)
	svc := newTestCartService(t, db)
	ctx := context.Background()

	p := seedProduct(t, db, 100000, 20)

	sc, _ := svc.GetOrCreate(ctx, 0, "sess-1")
	if _, err := svc.AddItem(ctx, sc, p.ID, 2, "M", ""); err != nil {
		t.Fatalf("add to session cart: %v", err)
	}

	uc, _ := svc.GetOrCreate(ctx, 7, "")
	if _, err := svc.AddItem(ctx, uc, p.ID, 1, "M", ""); err != nil {
		t.Fatalf("add to user cart: %v", err)
	}

	if err := svc.Merge(ctx, "sess-1", 7); err != nil {
		t.Fatalf("merge: %v", err)
	}

	items, err := svc.ListItems(ctx, uc.ID)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 1 || items[0].Quantity != 3 {
		t.Fatalf("expected single merged line with qty 3, got %+v", items)
	}

	if _, err := svc.GetOrCreate(ctx, 0, "sess-1"); err != nil {
		// 会话购物车应已删除，GetOrCreate 会重建一个空车
		t.Fatalf("get session cart after merge: %v", err)
	}
}
