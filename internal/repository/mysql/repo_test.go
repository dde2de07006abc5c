package mysql

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/seludoto/dolesecommerce/internal/datamodels/cart"
	"github.com/seludoto/dolesecommerce/internal/datamodels/order"
	"github.com/seludoto/dolesecommerce/internal/datamodels/promotion"
	"github.com/seludoto/dolesecommerce/internal/datamodels/review"
	"github.com/seludoto/dolesecommerce/internal/datamodels/store"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// 购物车/订单行项目与商品/店铺评价在同一个库里各有各的表，
// 互相写入不能串表。
func TestSameNameModelsMigrateToSeparateTables(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	carts := NewCartRepository(db)
	c := &cart.Cart{SessionKey: "sess-tables"}
	if err := carts.Create(ctx, c); err != nil {
		t.Fatalf("create cart: %v", err)
	}
	if err := carts.AddItem(ctx, &cart.Item{
		CartID: c.ID, ProductID: 9, Quantity: 2, UnitPrice: 1500,
	}); err != nil {
		t.Fatalf("add cart item: %v", err)
	}

	orders := NewOrderRepository(db)
	o := &order.Order{Number: "DO-T-SEP", UserID: 7, Subtotal: 3000, TotalAmount: 3000, Status: order.StatusCreated}
	if err := orders.CreateWithItems(ctx, o, []*order.Item{
		{ProductID: 9, StoreID: 1, Name: "p", UnitPrice: 1500, Quantity: 2, Subtotal: 3000},
	}); err != nil {
		t.Fatalf("create order: %v", err)
	}

	cartItems, err := carts.ListItems(ctx, c.ID)
	if err != nil || len(cartItems) != 1 || cartItems[0].CartID != c.ID {
		t.Fatalf("cart items: %v, %+v", err, cartItems)
	}
	orderItems, err := orders.ListItems(ctx, o.ID)
	if err != nil || len(orderItems) != 1 || orderItems[0].StoreID != 1 {
		t.Fatalf("order items: %v, %+v", err, orderItems)
	}

	reviews := NewReviewRepository(db)
	if err := reviews.Create(ctx, &review.Review{ProductID: 9, UserID: 7, Rating: 4}); err != nil {
		t.Fatalf("create product review: %v", err)
	}

	stores := NewStoreRepository(db)
	st := &store.Store{OwnerID: 7, Name: "Sep Store", Slug: "sep-store", Status: store.StatusActive}
	if err := stores.Create(ctx, st); err != nil {
		t.Fatalf("create store: %v", err)
	}
	if err := stores.CreateReview(ctx, &store.Review{StoreID: st.ID, UserID: 7, Rating: 5}); err != nil {
		t.Fatalf("create store review: %v", err)
	}

	productReviews, err := reviews.ListByProduct(ctx, 9)
	if err != nil || len(productReviews) != 1 || productReviews[0].ProductID != 9 {
		t.Fatalf("product reviews: %v, %+v", err, productReviews)
	}
	storeReviews, err := stores.ListReviews(ctx, st.ID)
	if err != nil || len(storeReviews) != 1 || storeReviews[0].StoreID != st.ID {
		t.Fatalf("store reviews: %v, %+v", err, storeReviews)
	}
}

func TestIncrementUsageGuard(t *testing.T) {
	db := newTestDB(t)
	repo := NewPromotionRepository(db)
	ctx := context.Background()

	now := time.Now()
	p := &promotion.PromoCode{
		Code: "ONCE", DiscountType: promotion.TypeFixed, DiscountValue: 100,
		UsageLimit: 2, IsActive: true,
		ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(time.Hour),
	}
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 2; i++ {
		ok, err := repo.IncrementUsage(ctx, p.ID)
		if err != nil || !ok {
			t.Fatalf("increment %d should succeed, ok=%v err=%v", i, ok, err)
		}
	}
	ok, err := repo.IncrementUsage(ctx, p.ID)
	if err != nil {
		t.Fatalf("increment at limit: %v", err)
	}
	if ok {
		t.Fatal("increment past usage_limit must not take effect")
	}

	got, _ := repo.GetByID(ctx, p.ID)
	if got.UsageCount != 2 {
		t.Fatalf("usage_count = %d, want 2", got.UsageCount)
	}
}

func TestIncrementSoldGuard(t *testing.T) {
	db := newTestDB(t)
	repo := NewFlashSaleRepository(db)
	ctx := context.Background()

	sale := &promotion.FlashSale{
		Name: "test sale", IsActive: true,
		StartTime: time.Now().Add(-time.Hour), EndTime: time.Now().Add(time.Hour),
	}
	if err := repo.Create(ctx, sale); err != nil {
		t.Fatalf("create sale: %v", err)
	}
	fp := &promotion.FlashSaleProduct{
		FlashSaleID: sale.ID, ProductID: 1, SalePrice: 10000, StockLimit: 3,
	}
	if err := repo.AddProduct(ctx, fp); err != nil {
		t.Fatalf("add product: %v", err)
	}

	ok, err := repo.IncrementSold(ctx, fp.ID, 2)
	if err != nil || !ok {
		t.Fatalf("sell 2 of 3 should work, ok=%v err=%v", ok, err)
	}
	// 剩 1，再卖 2 必须被拒绝
	ok, err = repo.IncrementSold(ctx, fp.ID, 2)
	if err != nil {
		t.Fatalf("oversell attempt: %v", err)
	}
	if ok {
		t.Fatal("sold_count must never exceed stock_limit")
	}
	ok, err = repo.IncrementSold(ctx, fp.ID, 1)
	if err != nil || !ok {
		t.Fatalf("selling the last unit should work, ok=%v err=%v", ok, err)
	}

	got, _ := repo.GetProduct(ctx, fp.ID)
	if got.SoldCount != 3 || got.Remaining() != 0 {
		t.Fatalf("sold=%d remaining=%d, want 3/0", got.SoldCount, got.Remaining())
	}

	if err := repo.DecrementSold(ctx, fp.ID, 1); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	got, _ = repo.GetProduct(ctx, fp.ID)
	if got.SoldCount != 2 {
		t.Fatalf("sold after rollback = %d, want 2", got.SoldCount)
	}
}

func TestMarkPaidIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	o := &order.Order{Number: "DO-T-1", UserID: 7, Subtotal: 100, TotalAmount: 100, Status: order.StatusCreated}
	if err := repo.CreateWithItems(ctx, o, []*order.Item{
		{ProductID: 1, StoreID: 1, Name: "p", UnitPrice: 100, Quantity: 1, Subtotal: 100},
	}); err != nil {
		t.Fatalf("create order: %v", err)
	}

	now := time.Now()
	changed, err := repo.MarkPaid(ctx, o.ID, now)
	if err != nil || !changed {
		t.Fatalf("first mark paid, changed=%v err=%v", changed, err)
	}
	changed, err = repo.MarkPaid(ctx, o.ID, now)
	if err != nil {
		t.Fatalf("second mark paid: %v", err)
	}
	if changed {
		t.Fatal("marking an already-paid order must be a no-op")
	}

	got, _ := repo.GetByID(ctx, o.ID)
	if got.Status != order.StatusPaid || got.PaidAt == nil {
		t.Fatalf("order not in paid state: status=%d paid_at=%v", got.Status, got.PaidAt)
	}

	items, err := repo.ListItems(ctx, o.ID)
	if err != nil || len(items) != 1 {
		t.Fatalf("list items: %v, n=%d", err, len(items))
	}
}

func TestAnalyticsAddSaleUpsert(t *testing.T) {
	db := newTestDB(t)
	repo := NewAnalyticsRepository(db)
	ctx := context.Background()

	day := time.Date(2026, 8, 25, 15, 30, 0, 0, time.UTC)
	if err := repo.AddSale(ctx, 1, day, 1, 2, 200000); err != nil {
		t.Fatalf("first add: %v", err)
	}
	// 同一天第二笔应累加到同一行
	if err := repo.AddSale(ctx, 1, day.Add(2*time.Hour), 1, 1, 100000); err != nil {
		t.Fatalf("second add: %v", err)
	}

	from := day.Add(-24 * time.Hour)
	to := day.Add(24 * time.Hour)
	series, err := repo.SeriesByStore(ctx, 1, from, to)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	if len(series) != 1 {
		t.Fatalf("expected single daily row, got %d", len(series))
	}
	if series[0].Orders != 2 || series[0].Units != 3 || series[0].Revenue != 300000 {
		t.Fatalf("unexpected aggregates: %+v", series[0])
	}

	totals, err := repo.Totals(ctx, from, to)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.Orders != 2 || totals.Revenue != 300000 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
}

func TestStoreRefreshRating(t *testing.T) {
	db := newTestDB(t)
	repo := NewStoreRepository(db)
	ctx := context.Background()

	st := &store.Store{OwnerID: 7, Name: "Rated Store", Slug: "rated-store", Status: store.StatusActive}
	if err := repo.Create(ctx, st); err != nil {
		t.Fatalf("create store: %v", err)
	}

	for i, rating := range []int{5, 4, 3} {
		if err := repo.CreateReview(ctx, &store.Review{
			StoreID: st.ID, UserID: int64(i + 1), Rating: rating,
		}); err != nil {
			t.Fatalf("create review: %v", err)
		}
	}
	if err := repo.RefreshRating(ctx, st.ID); err != nil {
		t.Fatalf("refresh rating: %v", err)
	}

	got, _ := repo.GetByID(ctx, st.ID)
	if got.ReviewCount != 3 {
		t.Fatalf("review_count = %d, want 3", got.ReviewCount)
	}
	if got.Rating < 3.99 || got.Rating > 4.01 {
		t.Fatalf("rating = %f, want 4.0", got.Rating)
	}
}
