package product

import (
	"context"
	"time"
)

// 商品状态
const (
	StatusOffline = 0 // 下线
	StatusOnline  = 1 // 正常
)

// Category 商品分类，支持父子层级
type Category struct {
	ID          int64  `gorm:"primaryKey"`
	Name        string `gorm:"size:100;uniqueIndex;not null"`
	Slug        string `gorm:"size:120;uniqueIndex"`
	Description string `gorm:"size:512"`
	ParentID    *int64 `gorm:"index"`
	SortOrder   int    `gorm:"default:0"`
	IsFeatured  bool   `gorm:"default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Brand 品牌
type Brand struct {
	ID              int64  `gorm:"primaryKey"`
	Name            string `gorm:"size:100;uniqueIndex;not null"`
	Slug            string `gorm:"size:120;uniqueIndex"`
	Description     string `gorm:"size:512"`
	CountryOfOrigin string `gorm:"size:100"`
	IsFeatured      bool   `gorm:"default:false"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Product 商品模型，属于某个店铺（多商户）
type Product struct {
	ID                int64  `gorm:"primaryKey"`
	StoreID           int64  `gorm:"index;not null"`
	Name              string `gorm:"size:200;not null"`
	Slug              string `gorm:"size:220;uniqueIndex"`
	Description       string `gorm:"size:2048"`
	ShortDescription  string `gorm:"size:500"`
	Price             int64  `gorm:"not null"` // 分
	ComparePrice      int64  // 划线价，0 表示无
	Currency          string `gorm:"size:3;default:KES"`
	CategoryID        int64  `gorm:"index;not null"`
	BrandID           *int64 `gorm:"index"`
	Stock             int64  `gorm:"not null"`
	LowStockThreshold int64  `gorm:"default:5"`
	SKU               string `gorm:"size:100;uniqueIndex"`
	Tags              string `gorm:"size:500"`
	ViewsCount        int64  `gorm:"default:0"`
	SalesCount        int64  `gorm:"default:0"`
	IsFeatured        bool   `gorm:"default:false"`
	IsBestseller      bool   `gorm:"default:false"`
	IsDigital         bool   `gorm:"default:false"`
	Status            int    `gorm:"index"` // 0:下线 1:正常
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DiscountPercent 根据划线价计算折扣百分比，无划线价时为 0
func (p *Product) DiscountPercent() int64 {
	if p.ComparePrice <= 0 || p.ComparePrice <= p.Price {
		return 0
	}
	return (p.ComparePrice - p.Price) * 100 / p.ComparePrice
}

// 库存状态
const (
	StockStatusIn  = "in_stock"
	StockStatusLow = "low_stock"
	StockStatusOut = "out_of_stock"
)

// StockStatus 商品库存状态
func (p *Product) StockStatus() string {
	switch {
	case p.Stock <= 0:
		return StockStatusOut
	case p.Stock <= p.LowStockThreshold:
		return StockStatusLow
	default:
		return StockStatusIn
	}
}

// Repository 商品仓储接口
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetBySlug(ctx context.Context, slug string) (*Product, error)
	ListAll(ctx context.Context) ([]*Product, error)
	ListOnline(ctx context.Context) ([]*Product, error)
	ListByCategory(ctx context.Context, categoryID int64) ([]*Product, error)
	ListByStore(ctx context.Context, storeID int64) ([]*Product, error)
	Search(ctx context.Context, keyword string) ([]*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id int64) error
	// IncrementViews 浏览数 +1，原子 UPDATE
	IncrementViews(ctx context.Context, id int64) error
	// DeductStock 带条件扣减库存：stock >= qty 才会生效，返回是否扣减成功
	DeductStock(ctx context.Context, id, qty int64) (bool, error)
	// AddSales 销量累加，原子 UPDATE
	AddSales(ctx context.Context, id, qty int64) error
}

// CategoryRepository 分类仓储接口
type CategoryRepository interface {
	GetByID(ctx context.Context, id int64) (*Category, error)
	ListAll(ctx context.Context) ([]*Category, error)
	Create(ctx context.Context, c *Category) error
	Update(ctx context.Context, c *Category) error
	Delete(ctx context.Context, id int64) error
}

// BrandRepository 品牌仓储接口
type BrandRepository interface {
	GetByID(ctx context.Context, id int64) (*Brand, error)
	ListAll(ctx context.Context) ([]*Brand, error)
	Create(ctx context.Context, b *Brand) error
	Update(ctx context.Context, b *Brand) error
	Delete(ctx context.Context, id int64) error
}
