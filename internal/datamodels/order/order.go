package order

import (
	"context"
	"time"
)

// 订单状态
const (
	StatusCreated   = 0 // 已创建，待支付
	StatusPaid      = 1 // 已支付
	StatusShipped   = 2 // 已发货
	StatusDelivered = 3 // 已送达
	StatusCancelled = 4 // 已取消
)

// Order 订单模型，金额字段均为下单时的快照，单位分
type Order struct {
	ID             int64  `gorm:"primaryKey"`
	Number         string `gorm:"size:32;uniqueIndex;not null"`
	UserID         int64  `gorm:"index;not null"`
	Subtotal       int64  `gorm:"not null"`
	ShippingFee    int64  `gorm:"not null"`
	TaxAmount      int64  `gorm:"not null"`
	DiscountAmount int64  `gorm:"not null"`
	TotalAmount    int64  `gorm:"not null"`
	Status         int    `gorm:"index;not null"`

	// 收货信息快照
	ShippingName     string `gorm:"size:128"`
	ShippingPhone    string `gorm:"size:20"`
	ShippingAddress  string `gorm:"size:512"`
	ShippingCity     string `gorm:"size:100"`
	ShippingCountry  string `gorm:"size:100"`
	ShippingMethodID *int64 `gorm:"index"`

	PaidAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item 订单行项目，记录下单时的商品快照；StoreID 用于分账
type Item struct {
	ID        int64  `gorm:"primaryKey"`
	OrderID   int64  `gorm:"index;not null"`
	ProductID int64  `gorm:"index;not null"`
	StoreID   int64  `gorm:"index;not null"`
	Name      string `gorm:"size:200;not null"`
	UnitPrice int64  `gorm:"not null"`
	Quantity  int64  `gorm:"not null"`
	Subtotal  int64  `gorm:"not null"`
	CreatedAt time.Time
}

// TableName 与购物车行项目区分表名
func (Item) TableName() string { return "order_items" }

// Repository 订单仓储接口
type Repository interface {
	// CreateWithItems 同一事务内写入订单与行项目
	CreateWithItems(ctx context.Context, o *Order, items []*Item) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	ListByUser(ctx context.Context, userID int64) ([]*Order, error)
	ListRecent(ctx context.Context, limit int) ([]*Order, error)
	ListItems(ctx context.Context, orderID int64) ([]*Item, error)
	UpdateStatus(ctx context.Context, id int64, status int) error
	// MarkPaid 仅当订单处于已创建状态时置为已支付，返回是否生效
	MarkPaid(ctx context.Context, id int64, paidAt time.Time) (bool, error)
	CountByUser(ctx context.Context, userID int64) (int64, error)
}
