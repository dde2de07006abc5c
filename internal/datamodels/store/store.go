package store

import (
	"context"
	"time"
)

// 店铺状态
const (
	StatusPending   = 0 // 待审核
	StatusActive    = 1 // 正常营业
	StatusSuspended = 2 // 已封禁
)

// 入驻申请状态
const (
	ApplicationPending  = 0 // 待审核
	ApplicationApproved = 1 // 已通过
	ApplicationRejected = 2 // 已驳回
)

// Store 店铺，一个用户最多拥有一个
type Store struct {
	ID                int64   `gorm:"primaryKey"`
	OwnerID           int64   `gorm:"uniqueIndex;not null"`
	Name              string  `gorm:"size:200;uniqueIndex;not null"`
	Slug              string  `gorm:"size:220;uniqueIndex"`
	Description       string  `gorm:"size:2048"`
	Status            int     `gorm:"index;not null;default:0"`
	Email             string  `gorm:"size:128"`
	Phone             string  `gorm:"size:20"`
	Address           string  `gorm:"size:512"`
	City              string  `gorm:"size:100"`
	Country           string  `gorm:"size:100"`
	CommissionRateBps int64   `gorm:"default:1000"` // 平台抽成，万分比，默认 10%
	PayoutPhone       string  `gorm:"size:15"`      // B2C 提现收款手机号
	TotalSales        int64   `gorm:"default:0"`
	TotalRevenue      int64   `gorm:"default:0"`    // 分
	Rating            float64 `gorm:"type:decimal(3,2);default:0"`
	ReviewCount       int64   `gorm:"default:0"`
	ApprovedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CommissionFor 根据抽成比例计算平台佣金，单位分
func (s *Store) CommissionFor(amount int64) int64 {
	return amount * s.CommissionRateBps / 10000
}

// Application 开店申请
type Application struct {
	ID              int64  `gorm:"primaryKey"`
	UserID          int64  `gorm:"index;not null"`
	StoreName       string `gorm:"size:200;not null"`
	Description     string `gorm:"size:2048"`
	BusinessType    string `gorm:"size:20"` // individual / company
	ContactEmail    string `gorm:"size:128"`
	ContactPhone    string `gorm:"size:20"`
	Address         string `gorm:"size:512"`
	Status          int    `gorm:"index;not null;default:0"`
	AdminNotes      string `gorm:"size:512"`
	RejectionReason string `gorm:"size:512"`
	ReviewedBy      *int64
	ReviewedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Review 店铺评价，(store, user) 唯一
type Review struct {
	ID         int64  `gorm:"primaryKey"`
	StoreID    int64  `gorm:"index;not null;uniqueIndex:uk_store_user,priority:1"`
	UserID     int64  `gorm:"index;not null;uniqueIndex:uk_store_user,priority:2"`
	Rating     int    `gorm:"not null"` // 1-5
	Title      string `gorm:"size:200"`
	Comment    string `gorm:"size:2048"`
	IsVerified bool   `gorm:"default:false"` // 是否真实买家
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName 与商品评价区分表名
func (Review) TableName() string { return "store_reviews" }

// Repository 店铺仓储接口
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Store, error)
	GetByOwner(ctx context.Context, ownerID int64) (*Store, error)
	GetBySlug(ctx context.Context, slug string) (*Store, error)
	ListActive(ctx context.Context) ([]*Store, error)
	ListAll(ctx context.Context) ([]*Store, error)
	Create(ctx context.Context, s *Store) error
	Update(ctx context.Context, s *Store) error
	// AddSales 累计销量与营收，原子 UPDATE
	AddSales(ctx context.Context, id, units, revenue int64) error

	CreateApplication(ctx context.Context, a *Application) error
	GetApplication(ctx context.Context, id int64) (*Application, error)
	ListApplications(ctx context.Context, status int) ([]*Application, error)
	UpdateApplication(ctx context.Context, a *Application) error

	CreateReview(ctx context.Context, r *Review) error
	GetReviewByStoreAndUser(ctx context.Context, storeID, userID int64) (*Review, error)
	ListReviews(ctx context.Context, storeID int64) ([]*Review, error)
	// RefreshRating 重算店铺评分聚合字段
	RefreshRating(ctx context.Context, storeID int64) error
}
