package review

import (
	"context"
	"time"
)

// Review 商品评价，(product, user) 唯一
type Review struct {
	ID                 int64  `gorm:"primaryKey"`
	ProductID          int64  `gorm:"index;not null;uniqueIndex:uk_product_user,priority:1"`
	UserID             int64  `gorm:"index;not null;uniqueIndex:uk_product_user,priority:2"`
	Rating             int    `gorm:"not null"` // 1-5
	Title              string `gorm:"size:200"`
	Comment            string `gorm:"size:2048"`
	IsVerifiedPurchase bool   `gorm:"default:false"` // 是否来自已支付订单
	IsApproved         bool   `gorm:"default:true"`
	HelpfulCount       int64  `gorm:"default:0"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TableName 与店铺评价区分表名
func (Review) TableName() string { return "product_reviews" }

// RatingSummary 商品评分聚合
type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

// Repository 评价仓储接口
type Repository interface {
	Create(ctx context.Context, r *Review) error
	Update(ctx context.Context, r *Review) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*Review, error)
	GetByProductAndUser(ctx context.Context, productID, userID int64) (*Review, error)
	ListByProduct(ctx context.Context, productID int64) ([]*Review, error)
	ListByUser(ctx context.Context, userID int64) ([]*Review, error)
	// Summary 只统计已通过审核的评价
	Summary(ctx context.Context, productID int64) (*RatingSummary, error)
	IncrementHelpful(ctx context.Context, id int64) error
}
