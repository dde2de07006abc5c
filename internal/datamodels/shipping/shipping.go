package shipping

import (
	"context"
	"time"
)

// 运单状态
const (
	StatusPreparing = 0 // 备货中
	StatusInTransit = 1 // 运输中
	StatusDelivered = 2 // 已送达
)

// Method 配送方式
type Method struct {
	ID            int64  `gorm:"primaryKey"`
	Name          string `gorm:"size:100;uniqueIndex;not null"`
	Description   string `gorm:"size:255"`
	Fee           int64  `gorm:"not null"`  // 分
	FreeThreshold int64  `gorm:"default:0"` // 满额免运费门槛，0 表示不免
	EtaDaysMin    int    `gorm:"default:1"`
	EtaDaysMax    int    `gorm:"default:7"`
	IsActive      bool   `gorm:"default:true"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// QuoteFee 根据小计金额计算应付运费
func (m *Method) QuoteFee(subtotal int64) int64 {
	if m.FreeThreshold > 0 && subtotal >= m.FreeThreshold {
		return 0
	}
	return m.Fee
}

// Shipment 运单，与订单一一对应
type Shipment struct {
	ID             int64  `gorm:"primaryKey"`
	OrderID        int64  `gorm:"uniqueIndex;not null"`
	MethodID       int64  `gorm:"index;not null"`
	Carrier        string `gorm:"size:100"`
	TrackingNumber string `gorm:"size:100;index"`
	Status         int    `gorm:"index;not null;default:0"`
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Repository 配送仓储接口
type Repository interface {
	GetMethod(ctx context.Context, id int64) (*Method, error)
	ListMethods(ctx context.Context) ([]*Method, error)
	ListActiveMethods(ctx context.Context) ([]*Method, error)
	CreateMethod(ctx context.Context, m *Method) error
	UpdateMethod(ctx context.Context, m *Method) error
	DeleteMethod(ctx context.Context, id int64) error

	CreateShipment(ctx context.Context, s *Shipment) error
	GetShipmentByOrder(ctx context.Context, orderID int64) (*Shipment, error)
	UpdateShipment(ctx context.Context, s *Shipment) error
}
