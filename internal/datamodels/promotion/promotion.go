package promotion

import (
	"context"
	"time"
)

// 优惠码折扣类型
const (
	TypePercentage   = "PERCENTAGE"
	TypeFixed        = "FIXED"
	TypeFreeShipping = "FREE_SHIPPING"
	TypeBOGO         = "BOGO" // 买一送一
)

// PromoCode 优惠码
type PromoCode struct {
	ID                int64  `gorm:"primaryKey"`
	Code              string `gorm:"size:20;uniqueIndex;not null"`
	Description       string `gorm:"size:200"`
	DiscountType      string `gorm:"size:15;not null;default:PERCENTAGE"`
	DiscountValue     int64  `gorm:"not null"` // 百分比类型为百分数，固定类型为分
	MinOrderAmount    int64  `gorm:"default:0"`
	MaxDiscountAmount int64  `gorm:"default:0"` // 0 表示不设上限
	UsageLimit        int64  `gorm:"default:0"` // 0 表示不限次数
	UsageCount        int64  `gorm:"default:0"`
	UsagePerUser      int64  `gorm:"default:1"`
	FirstTimeOnly     bool   `gorm:"default:false"`
	IsActive          bool   `gorm:"default:true"`
	ValidFrom         time.Time
	ValidUntil        time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsValidAt 优惠码有效性判定：启用中、处于有效期内、未达使用上限
func (p *PromoCode) IsValidAt(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	if now.Before(p.ValidFrom) || now.After(p.ValidUntil) {
		return false
	}
	if p.UsageLimit > 0 && p.UsageCount >= p.UsageLimit {
		return false
	}
	return true
}

// CalculateDiscount 计算折扣金额，单位分。
// 结果始终落在 [0, cartTotal]，百分比类型另受 MaxDiscountAmount 约束；
// 免邮类型返回当前应付运费。BOGO 需要行项目信息，由服务层单独处理。
func (p *PromoCode) CalculateDiscount(cartTotal, shippingFee int64) int64 {
	if cartTotal < p.MinOrderAmount {
		return 0
	}

	var discount int64
	switch p.DiscountType {
	case TypePercentage:
		discount = cartTotal * p.DiscountValue / 100
		if p.MaxDiscountAmount > 0 && discount > p.MaxDiscountAmount {
			discount = p.MaxDiscountAmount
		}
	case TypeFixed:
		discount = p.DiscountValue
	case TypeFreeShipping:
		discount = shippingFee
	default:
		return 0
	}

	if discount > cartTotal {
		discount = cartTotal
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

// Redemption 优惠码核销记录，用于每人限用与审计
type Redemption struct {
	ID          int64 `gorm:"primaryKey"`
	PromoCodeID int64 `gorm:"index;not null"`
	UserID      int64 `gorm:"index;not null"`
	OrderID     int64 `gorm:"index;not null"`
	Amount      int64 `gorm:"not null"` // 实际抵扣金额，单位分
	CreatedAt   time.Time
}

// FlashSale 限时抢购活动
type FlashSale struct {
	ID              int64     `gorm:"primaryKey"`
	Name            string    `gorm:"size:200;not null"`
	Description     string    `gorm:"size:512"`
	DiscountPercent int64     `gorm:"not null"`      // 活动整体折扣百分比，用于展示
	StartTime       time.Time `gorm:"index"`
	EndTime         time.Time `gorm:"index"`
	IsActive        bool      `gorm:"default:true"`
	MaxQtyPerUser   int64     `gorm:"default:1"`
	Featured        bool      `gorm:"default:false"` // 是否首页展示
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsLiveAt 活动是否进行中
func (f *FlashSale) IsLiveAt(now time.Time) bool {
	return f.IsActive && !now.Before(f.StartTime) && !now.After(f.EndTime)
}

// FlashSaleProduct 活动商品，(flash_sale, product) 唯一。
// 不变量 sold_count <= stock_limit 由带条件 UPDATE 与 Redis 预扣共同保证。
type FlashSaleProduct struct {
	ID          int64 `gorm:"primaryKey"`
	FlashSaleID int64 `gorm:"index;not null;uniqueIndex:uk_sale_product,priority:1"`
	ProductID   int64 `gorm:"index;not null;uniqueIndex:uk_sale_product,priority:2"`
	SalePrice   int64 `gorm:"not null"` // 活动价，单位分
	StockLimit  int64 `gorm:"not null"`
	SoldCount   int64 `gorm:"default:0"`
	CreatedAt   time.Time
}

// Remaining 活动剩余库存
func (fp *FlashSaleProduct) Remaining() int64 {
	if r := fp.StockLimit - fp.SoldCount; r > 0 {
		return r
	}
	return 0
}

// FlashSalePurchase 抢购成功记录，归属用户或匿名会话
type FlashSalePurchase struct {
	ID                 int64  `gorm:"primaryKey"`
	UserID             *int64 `gorm:"index"`
	SessionKey         string `gorm:"size:64;index"`
	FlashSaleProductID int64  `gorm:"index;not null"`
	OrderID            int64  `gorm:"index"`
	Quantity           int64  `gorm:"not null;default:1"`
	CreatedAt          time.Time
}

// Repository 优惠码仓储接口
type Repository interface {
	GetByID(ctx context.Context, id int64) (*PromoCode, error)
	GetByCode(ctx context.Context, code string) (*PromoCode, error)
	ListAll(ctx context.Context) ([]*PromoCode, error)
	Create(ctx context.Context, p *PromoCode) error
	Update(ctx context.Context, p *PromoCode) error
	Delete(ctx context.Context, id int64) error
	// IncrementUsage 带条件递增使用次数（usage_count < usage_limit 时才生效），
	// 返回是否递增成功；usage_limit 为 0 时仅做普通递增。
	IncrementUsage(ctx context.Context, id int64) (bool, error)
	CreateRedemption(ctx context.Context, r *Redemption) error
	CountRedemptionsByUser(ctx context.Context, promoCodeID, userID int64) (int64, error)
}

// FlashSaleRepository 限时抢购仓储接口
type FlashSaleRepository interface {
	GetByID(ctx context.Context, id int64) (*FlashSale, error)
	ListAll(ctx context.Context) ([]*FlashSale, error)
	ListLive(ctx context.Context, now time.Time) ([]*FlashSale, error)
	Create(ctx context.Context, f *FlashSale) error
	Update(ctx context.Context, f *FlashSale) error
	Delete(ctx context.Context, id int64) error

	AddProduct(ctx context.Context, fp *FlashSaleProduct) error
	RemoveProduct(ctx context.Context, flashSaleID, productID int64) error
	GetProduct(ctx context.Context, fsProductID int64) (*FlashSaleProduct, error)
	ListProducts(ctx context.Context, flashSaleID int64) ([]*FlashSaleProduct, error)
	// IncrementSold 带条件递增已售数（sold_count + qty <= stock_limit 时才生效），
	// 返回是否递增成功
	IncrementSold(ctx context.Context, fsProductID, qty int64) (bool, error)
	// DecrementSold 回滚已售数，下游下单失败时使用
	DecrementSold(ctx context.Context, fsProductID, qty int64) error

	CreatePurchase(ctx context.Context, p *FlashSalePurchase) error
	CountPurchases(ctx context.Context, fsProductID int64, userID *int64, sessionKey string) (int64, error)
}
