package mysql

import (
	"sync"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/seludoto/dolesecommerce/internal/config"
	"github.com/seludoto/dolesecommerce/internal/datamodels/analytics"
	"github.com/seludoto/dolesecommerce/internal/datamodels/cart"
	"github.com/seludoto/dolesecommerce/internal/datamodels/earnings"
	"github.com/seludoto/dolesecommerce/internal/datamodels/order"
	"github.com/seludoto/dolesecommerce/internal/datamodels/payment"
	"github.com/seludoto/dolesecommerce/internal/datamodels/product"
	"github.com/seludoto/dolesecommerce/internal/datamodels/promotion"
	"github.com/seludoto/dolesecommerce/internal/datamodels/review"
	"github.com/seludoto/dolesecommerce/internal/datamodels/shipping"
	"github.com/seludoto/dolesecommerce/internal/datamodels/store"
	"github.com/seludoto/dolesecommerce/internal/datamodels/user"
)

var (
	db   *gorm.DB
	once sync.Once
)

// Init 初始化全局 GORM 实例并自动迁移表结构
func Init(cfg *config.MySQLConfig) *gorm.DB {
	once.Do(func() {
		var err error
		db, err = gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{})
		if err != nil {
			zap.L().Fatal("failed to connect mysql", zap.Error(err))
		}
		if err = Migrate(db); err != nil {
			zap.L().Fatal("auto migrate failed", zap.Error(err))
		}
	})
	return db
}

// Migrate 迁移全部表结构，测试中可对 sqlite 实例复用
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&user.User{},
		&product.Category{},
		&product.Brand{},
		&product.Product{},
		&cart.Cart{},
		&cart.Item{},
		&cart.AppliedPromo{},
		&promotion.PromoCode{},
		&promotion.Redemption{},
		&promotion.FlashSale{},
		&promotion.FlashSaleProduct{},
		&promotion.FlashSalePurchase{},
		&order.Order{},
		&order.Item{},
		&payment.Payment{},
		&payment.MpesaC2B{},
		&payment.MpesaB2C{},
		&payment.PiPayment{},
		&review.Review{},
		&shipping.Method{},
		&shipping.Shipment{},
		&store.Store{},
		&store.Application{},
		&store.Review{},
		&earnings.SellerBalance{},
		&earnings.LedgerEntry{},
		&analytics.StoreDailyStat{},
	)
}

// DB 获取全局 DB
func DB() *gorm.DB {
	return db
}
