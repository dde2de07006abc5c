package analytics

import (
	"context"
	"time"
)

// StoreDailyStat 店铺日维度统计，(store, date) 唯一
type StoreDailyStat struct {
	ID           int64     `gorm:"primaryKey"`
	StoreID      int64     `gorm:"index;not null;uniqueIndex:uk_store_date,priority:1"`
	Date         time.Time `gorm:"type:date;not null;uniqueIndex:uk_store_date,priority:2"`
	Orders       int64     `gorm:"default:0"`
	Units        int64     `gorm:"default:0"`
	Revenue      int64     `gorm:"default:0"` // 分
	ProductViews int64     `gorm:"default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PlatformTotals 平台总量聚合
type PlatformTotals struct {
	Orders  int64 `json:"orders"`
	Units   int64 `json:"units"`
	Revenue int64 `json:"revenue"`
}

// TopProduct 热销商品条目
type TopProduct struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Units     int64  `json:"units"`
	Revenue   int64  `json:"revenue"`
}

// Repository 统计仓储接口
type Repository interface {
	// AddSale 将一笔成交累加到 (store, date) 行，行不存在则插入
	AddSale(ctx context.Context, storeID int64, date time.Time, orders, units, revenue int64) error
	// AddView 商品浏览计数
	AddView(ctx context.Context, storeID int64, date time.Time) error
	SeriesByStore(ctx context.Context, storeID int64, from, to time.Time) ([]*StoreDailyStat, error)
	Totals(ctx context.Context, from, to time.Time) (*PlatformTotals, error)
	TopProducts(ctx context.Context, from, to time.Time, limit int) ([]*TopProduct, error)
}
