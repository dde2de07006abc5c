package earnings

import (
	"context"
	"time"
)

// 流水类型
const (
	TypeOrderIncome    = "order_income"    // 订单分账入账
	TypePayout         = "payout"          // B2C 提现出账
	TypePayoutReversal = "payout_reversal" // 提现失败回补
	TypeAdjustment     = "adjustment"      // 人工调整
)

// SellerBalance 商家账户余额，单位分
type SellerBalance struct {
	ID        int64 `gorm:"primaryKey"`
	StoreID   int64 `gorm:"uniqueIndex;not null"`
	Available int64 `gorm:"not null"` // 可用余额
	Frozen    int64 `gorm:"not null"` // 冻结金额（提现在途）
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LedgerEntry 商家账户流水
type LedgerEntry struct {
	ID        int64     `gorm:"primaryKey"`
	StoreID   int64     `gorm:"index;not null"`
	Amount    int64     `gorm:"not null"`      // 正数入账，负数出账，单位分
	Type      string    `gorm:"size:32;index"` // order_income / payout / payout_reversal / adjustment
	Status    string    `gorm:"size:32;index"` // success / pending / failed
	Note      string    `gorm:"size:255"`
	CreatedAt time.Time `gorm:"index"`
}

// Repository 商家账务仓储接口
type Repository interface {
	GetByStoreID(ctx context.Context, storeID int64) (*SellerBalance, error)
	UpsertByStoreID(ctx context.Context, storeID int64) (*SellerBalance, error)
	Update(ctx context.Context, b *SellerBalance) error
	ListAll(ctx context.Context) ([]*SellerBalance, error)

	CreateEntry(ctx context.Context, e *LedgerEntry) error
	ListEntries(ctx context.Context, storeID int64, limit int) ([]*LedgerEntry, error)
}
