package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seludoto/dolesecommerce/internal/datamodels/analytics"
	"github.com/seludoto/dolesecommerce/internal/datamodels/order"
)

type analyticsRepo struct {
	db *gorm.DB
}

// NewAnalyticsRepository 创建统计仓储
func NewAnalyticsRepository(db *gorm.DB) analytics.Repository {
	return &analyticsRepo{db: db}
}

// AddSale 以 (store, date) 为冲突键做累加 upsert
func (r *analyticsRepo) AddSale(ctx context.Context, storeID int64, date time.Time, orders, units, revenue int64) error {
	day := date.Truncate(24 * time.Hour)
	stat := analytics.StoreDailyStat{
		StoreID: storeID,
		Date:    day,
		Orders:  orders,
		Units:   units,
		Revenue: revenue,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "store_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"orders":  gorm.Expr("orders + ?", orders),
			"units":   gorm.Expr("units + ?", units),
			"revenue": gorm.Expr("revenue + ?", revenue),
		}),
	}).Create(&stat).Error
}

func (r *analyticsRepo) AddView(ctx context.Context, storeID int64, date time.Time) error {
	day := date.Truncate(24 * time.Hour)
	stat := analytics.StoreDailyStat{
		StoreID:      storeID,
		Date:         day,
		ProductViews: 1,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "store_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"product_views": gorm.Expr("product_views + 1"),
		}),
	}).Create(&stat).Error
}

func (r *analyticsRepo) SeriesByStore(ctx context.Context, storeID int64, from, to time.Time) ([]*analytics.StoreDailyStat, error) {
	var list []*analytics.StoreDailyStat
	if err := r.db.WithContext(ctx).
		Where("store_id = ? AND date BETWEEN ? AND ?", storeID, from, to).
		Order("date").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *analyticsRepo) Totals(ctx context.Context, from, to time.Time) (*analytics.PlatformTotals, error) {
	var t analytics.PlatformTotals
	err := r.db.WithContext(ctx).Model(&analytics.StoreDailyStat{}).
		Select("COALESCE(SUM(orders), 0) AS orders, COALESCE(SUM(units), 0) AS units, COALESCE(SUM(revenue), 0) AS revenue").
		Where("date BETWEEN ? AND ?", from, to).
		Scan(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TopProducts 从已支付订单的行项目里统计热销商品
func (r *analyticsRepo) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]*analytics.TopProduct, error) {
	var list []*analytics.TopProduct
	err := r.db.WithContext(ctx).Model(&order.Item{}).
		Select("order_items.product_id, order_items.name, SUM(order_items.quantity) AS units, SUM(order_items.subtotal) AS revenue").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.status >= ? AND orders.created_at BETWEEN ? AND ?", order.StatusPaid, from, to).
		Where("orders.status <> ?", order.StatusCancelled).
		Group("order_items.product_id, order_items.name").
		Order("units DESC").
		Limit(limit).
		Scan(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}
