package service

import (
	"context"
	"time"

	"github.com/seludoto/dolesecommerce/internal/datamodels/analytics"
)

// AnalyticsService 统计查询：店铺日报、平台总量、热销榜
type AnalyticsService struct {
	stats analytics.Repository
}

func NewAnalyticsService(stats analytics.Repository) *AnalyticsService {
	return &AnalyticsService{stats: stats}
}

// StoreSeries 店铺最近 days 天的日维度序列
func (s *AnalyticsService) StoreSeries(ctx context.Context, storeID int64, days int) ([]*analytics.StoreDailyStat, error) {
	if days <= 0 {
		days = 30
	}
	to := time.Now()
	from := to.AddDate(0, 0, -days)
	return s.stats.SeriesByStore(ctx, storeID, from, to)
}

// PlatformTotals 平台最近 days 天的总量
func (s *AnalyticsService) PlatformTotals(ctx context.Context, days int) (*analytics.PlatformTotals, error) {
	if days <= 0 {
		days = 30
	}
	to := time.Now()
	from := to.AddDate(0, 0, -days)
	return s.stats.Totals(ctx, from, to)
}

// TopProducts 平台热销商品榜
func (s *AnalyticsService) TopProducts(ctx context.Context, days, limit int) ([]*analytics.TopProduct, error) {
	if days <= 0 {
		days = 30
	}
	if limit <= 0 {
		limit = 10
	}
	to := time.Now()
	from := to.AddDate(0, 0, -days)
	return s.stats.TopProducts(ctx, from, to, limit)
}
