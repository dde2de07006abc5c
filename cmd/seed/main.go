package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/seludoto/dolesecommerce/internal/config"
	"github.com/seludoto/dolesecommerce/internal/datamodels/product"
	"github.com/seludoto/dolesecommerce/internal/datamodels/promotion"
	"github.com/seludoto/dolesecommerce/internal/datamodels/shipping"
	"github.com/seludoto/dolesecommerce/internal/datamodels/store"
	"github.com/seludoto/dolesecommerce/internal/infra/logger"
	"github.com/seludoto/dolesecommerce/internal/repository/mysql"
	"github.com/seludoto/dolesecommerce/internal/service"
)

// 初始化示例数据：管理员、卖家与店铺、分类品牌商品、
// 优惠码、配送方式和一场进行中的限时抢购。
func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Init(true)

	db := mysql.Init(&cfg.MySQL)
	if err := mysql.Migrate(db); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	ctx := context.Background()

	userRepo := mysql.NewUserRepository(db)
	userSvc := service.NewUserService(userRepo, &cfg.JWT)

	admin, err := userSvc.Register(ctx, "admin", "admin@doles.co.ke", "0700000001", "admin123")
	if err != nil {
		log.Fatalf("failed to create admin: %v", err)
	}
	admin.IsAdmin = true
	if err := userRepo.Update(ctx, admin); err != nil {
		log.Fatalf("failed to mark admin: %v", err)
	}

	seller, err := userSvc.Register(ctx, "seller", "seller@doles.co.ke", "0711000002", "seller123")
	if err != nil {
		log.Fatalf("failed to create seller: %v", err)
	}

	storeRepo := mysql.NewStoreRepository(db)
	now := time.Now()
	st := &store.Store{
		OwnerID:     seller.ID,
		Name:        "Doles Flagship Store",
		Slug:        "doles-flagship-store",
		Description: "平台自营旗舰店",
		Status:      store.StatusActive,
		Email:       "flagship@doles.co.ke",
		Phone:       "254711000002",
		City:        "Nairobi",
		Country:     "Kenya",
		PayoutPhone: "254711000002",
		ApprovedAt:  &now,
	}
	if err := storeRepo.Create(ctx, st); err != nil {
		log.Fatalf("failed to create store: %v", err)
	}

	categoryRepo := mysql.NewCategoryRepository(db)
	categories := []*product.Category{
		{Name: "Electronics", Slug: "electronics", IsFeatured: true},
		{Name: "Fashion", Slug: "fashion", IsFeatured: true},
		{Name: "Home & Kitchen", Slug: "home-kitchen"},
	}
	for _, c := range categories {
		if err := categoryRepo.Create(ctx, c); err != nil {
			log.Fatalf("failed to create category %s: %v", c.Name, err)
		}
	}

	brandRepo := mysql.NewBrandRepository(db)
	brands := []*product.Brand{
		{Name: "Safarika", Slug: "safarika", CountryOfOrigin: "Kenya", IsFeatured: true},
		{Name: "Nyota", Slug: "nyota", CountryOfOrigin: "Kenya"},
	}
	for _, b := range brands {
		if err := brandRepo.Create(ctx, b); err != nil {
			log.Fatalf("failed to create brand %s: %v", b.Name, err)
		}
	}

	productRepo := mysql.NewProductRepository(db)
	products := []*product.Product{
		{
			StoreID:          st.ID,
			Name:             "Wireless Earbuds Pro",
			Slug:             "wireless-earbuds-pro",
			ShortDescription: "主动降噪无线耳机",
			Price:            349900, // 3499 KES
			ComparePrice:     499900,
			CategoryID:       categories[0].ID,
			BrandID:          &brands[0].ID,
			Stock:            200,
			SKU:              "ELE-EARBUD-001",
			IsFeatured:       true,
			Status:           product.StatusOnline,
		},
		{
			StoreID:          st.ID,
			Name:             "Ankara Print Dress",
			Slug:             "ankara-print-dress",
			ShortDescription: "传统印花连衣裙",
			Price:            189900,
			CategoryID:       categories[1].ID,
			BrandID:          &brands[1].ID,
			Stock:            80,
			SKU:              "FAS-DRESS-001",
			Status:           product.StatusOnline,
		},
		{
			StoreID:          st.ID,
			Name:             "Ceramic Cookware Set",
			Slug:             "ceramic-cookware-set",
			ShortDescription: "陶瓷不粘锅具六件套",
			Price:            579900,
			ComparePrice:     699900,
			CategoryID:       categories[2].ID,
			Stock:            50,
			SKU:              "HOM-COOK-001",
			Status:           product.StatusOnline,
		},
	}
	for _, p := range products {
		if err := productRepo.Create(ctx, p); err != nil {
			log.Fatalf("failed to create product %s: %v", p.Name, err)
		}
	}

	promoRepo := mysql.NewPromotionRepository(db)
	promos := []*promotion.PromoCode{
		{
			Code:              "KARIBU10",
			Description:       "新客九折",
			DiscountType:      promotion.TypePercentage,
			DiscountValue:     10,
			MaxDiscountAmount: 100000,
			UsagePerUser:      1,
			FirstTimeOnly:     true,
			IsActive:          true,
			ValidFrom:         now.AddDate(0, 0, -1),
			ValidUntil:        now.AddDate(0, 3, 0),
		},
		{
			Code:           "FREESHIP",
			Description:    "满 2000 KES 免运费",
			DiscountType:   promotion.TypeFreeShipping,
			MinOrderAmount: 200000,
			UsagePerUser:   5,
			IsActive:       true,
			ValidFrom:      now.AddDate(0, 0, -1),
			ValidUntil:     now.AddDate(0, 1, 0),
		},
	}
	for _, p := range promos {
		if err := promoRepo.Create(ctx, p); err != nil {
			log.Fatalf("failed to create promo %s: %v", p.Code, err)
		}
	}

	shippingRepo := mysql.NewShippingRepository(db)
	methods := []*shipping.Method{
		{Name: "Standard Delivery", Description: "3-7 个工作日", Fee: 20000, FreeThreshold: 500000, EtaDaysMin: 3, EtaDaysMax: 7, IsActive: true},
		{Name: "Express Delivery", Description: "1-2 个工作日", Fee: 45000, EtaDaysMin: 1, EtaDaysMax: 2, IsActive: true},
	}
	for _, m := range methods {
		if err := shippingRepo.CreateMethod(ctx, m); err != nil {
			log.Fatalf("failed to create shipping method %s: %v", m.Name, err)
		}
	}

	flashRepo := mysql.NewFlashSaleRepository(db)
	sale := &promotion.FlashSale{
		Name:            "Midweek Flash Deals",
		Description:     "限时抢购，售完即止",
		DiscountPercent: 40,
		StartTime:       now.Add(-time.Hour),
		EndTime:         now.Add(48 * time.Hour),
		IsActive:        true,
		MaxQtyPerUser:   2,
		Featured:        true,
	}
	if err := flashRepo.Create(ctx, sale); err != nil {
		log.Fatalf("failed to create flash sale: %v", err)
	}
	fp := &promotion.FlashSaleProduct{
		FlashSaleID: sale.ID,
		ProductID:   products[0].ID,
		SalePrice:   209900,
		StockLimit:  30,
	}
	if err := flashRepo.AddProduct(ctx, fp); err != nil {
		log.Fatalf("failed to add flash sale product: %v", err)
	}

	fmt.Println("seed data created:")
	fmt.Printf("  admin user:  admin / admin123\n")
	fmt.Printf("  seller user: seller / seller123\n")
	fmt.Printf("  store:       %s (id=%d)\n", st.Name, st.ID)
	fmt.Printf("  products:    %d\n", len(products))
	fmt.Printf("  promo codes: KARIBU10, FREESHIP\n")
	fmt.Printf("  flash sale:  %s (id=%d)\n", sale.Name, sale.ID)
}
