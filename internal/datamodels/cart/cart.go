package cart

import (
	"context"
	"time"
)

// Cart 购物车，归属于一个登录用户或一个匿名会话，二者互斥
type Cart struct {
	ID          int64   `gorm:"primaryKey"`
	UserID      *int64  `gorm:"index"`
	SessionKey  string  `gorm:"size:64;index"`
	IsAbandoned bool    `gorm:"default:false"`
	AbandonedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Item 购物车行项目，(cart, product, size, color) 唯一
type Item struct {
	ID        int64  `gorm:"primaryKey"`
	CartID    int64  `gorm:"index;not null;uniqueIndex:uk_cart_line,priority:1"`
	ProductID int64  `gorm:"index;not null;uniqueIndex:uk_cart_line,priority:2"`
	Size      string `gorm:"size:20;uniqueIndex:uk_cart_line,priority:3"`
	Color     string `gorm:"size:30;uniqueIndex:uk_cart_line,priority:4"`
	Quantity  int64  `gorm:"not null;default:1"`
	UnitPrice int64  `gorm:"not null"` // 加入时的单价快照，单位分
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 与订单行项目区分表名
func (Item) TableName() string { return "cart_items" }

// AppliedPromo 购物车上已应用的优惠码，(cart, promo) 唯一
type AppliedPromo struct {
	ID             int64  `gorm:"primaryKey"`
	CartID         int64  `gorm:"index;not null;uniqueIndex:uk_cart_promo,priority:1"`
	PromoCodeID    int64  `gorm:"not null;uniqueIndex:uk_cart_promo,priority:2"`
	Code           string `gorm:"size:20;not null"`
	DiscountAmount int64  `gorm:"not null"` // 应用时计算出的折扣，单位分
	AppliedAt      time.Time
}

// Repository 购物车仓储接口
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Cart, error)
	GetByUser(ctx context.Context, userID int64) (*Cart, error)
	GetBySession(ctx context.Context, sessionKey string) (*Cart, error)
	Create(ctx context.Context, c *Cart) error
	Update(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, id int64) error

	GetItem(ctx context.Context, cartID, productID int64, size, color string) (*Item, error)
	GetItemByID(ctx context.Context, itemID int64) (*Item, error)
	AddItem(ctx context.Context, it *Item) error
	UpdateItem(ctx context.Context, it *Item) error
	RemoveItem(ctx context.Context, itemID int64) error
	ListItems(ctx context.Context, cartID int64) ([]*Item, error)
	ClearItems(ctx context.Context, cartID int64) error

	AddPromo(ctx context.Context, ap *AppliedPromo) error
	RemovePromo(ctx context.Context, cartID, promoCodeID int64) error
	// ListPromos 按应用时间升序返回，折扣按此顺序依次生效
	ListPromos(ctx context.Context, cartID int64) ([]*AppliedPromo, error)
	ClearPromos(ctx context.Context, cartID int64) error
}
