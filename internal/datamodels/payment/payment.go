package payment

import (
	"context"
	"time"
)

// 支付方式
const (
	MethodMpesa = "mpesa"
	MethodPi    = "pi"
	MethodCard  = "card"
)

// 支付状态
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
	StatusRefunded   = "refunded"
)

// transitions 支付状态机允许的迁移。
// 回调只会推动 pending/processing 向前，completed 之后仅允许退款。
var transitions = map[string][]string{
	StatusPending:    {StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted:  {StatusRefunded},
}

// CanTransition 判定 from -> to 是否为合法状态迁移
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal 是否终态（failed/cancelled/refunded 不再变化）
func IsTerminal(status string) bool {
	return status == StatusFailed || status == StatusCancelled || status == StatusRefunded
}

// Payment 支付单，与订单一一对应
type Payment struct {
	ID              int64  `gorm:"primaryKey"`
	OrderID         int64  `gorm:"uniqueIndex;not null"`
	UserID          int64  `gorm:"index;not null"`
	Method          string `gorm:"size:20;index;not null"`
	Amount          int64  `gorm:"not null"`  // 分
	Status          string `gorm:"size:20;index;not null;default:pending"`
	Reference       string `gorm:"size:64;uniqueIndex;not null"`
	GatewayResponse string `gorm:"size:2048"` // 网关原始响应快照
	FailureReason   string `gorm:"size:512"`
	ProcessedBy     *int64 `gorm:"index"`     // 人工处理人（退款等）
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MpesaC2B STK Push 收款流水
type MpesaC2B struct {
	ID                int64  `gorm:"primaryKey"`
	PaymentID         int64  `gorm:"index;not null"`
	CheckoutRequestID string `gorm:"size:64;uniqueIndex;not null"`
	MerchantRequestID string `gorm:"size:64"`
	PhoneNumber       string `gorm:"size:15;not null"`
	Amount            int64  `gorm:"not null"`
	AccountReference  string `gorm:"size:64"`
	TransactionDesc   string `gorm:"size:255"`
	Status            string `gorm:"size:20;index;not null;default:pending"`
	ResultCode        string `gorm:"size:10"`
	ResultDesc        string `gorm:"size:512"`
	ReceiptNumber     string `gorm:"size:64"`
	TransactionDate   *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// MpesaB2C 对商家的付款流水（提现）
type MpesaB2C struct {
	ID                       int64  `gorm:"primaryKey"`
	StoreID                  int64  `gorm:"index;not null"`
	ConversationID           string `gorm:"size:64;uniqueIndex;not null"`
	OriginatorConversationID string `gorm:"size:64"`
	PhoneNumber              string `gorm:"size:15;not null"`
	Amount                   int64  `gorm:"not null"`
	Remarks                  string `gorm:"size:255"`
	Status                   string `gorm:"size:20;index;not null;default:pending"`
	ResponseCode             string `gorm:"size:10"`
	ResponseDescription      string `gorm:"size:512"`
	TransactionID            string `gorm:"size:64"`
	TransactionReceipt       string `gorm:"size:64"`
	CompletedAt              *time.Time
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// PiPayment Pi Network 结算流水
type PiPayment struct {
	ID          int64   `gorm:"primaryKey"`
	PaymentID   int64   `gorm:"index;not null"`
	PiPaymentID string  `gorm:"size:64;uniqueIndex;not null"`
	TxID        string  `gorm:"size:128"` // 链上交易 ID
	AmountPi    float64 `gorm:"type:decimal(18,7);not null"`
	KESPerPi    int64   `gorm:"not null"` // 下单时汇率快照：1 Pi 折合分
	Memo        string  `gorm:"size:255"`
	Status      string  `gorm:"size:20;index;not null;default:pending"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository 支付仓储接口
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id int64) (*Payment, error)
	GetByOrderID(ctx context.Context, orderID int64) (*Payment, error)
	GetByReference(ctx context.Context, ref string) (*Payment, error)
	Update(ctx context.Context, p *Payment) error
	ListRecent(ctx context.Context, limit int) ([]*Payment, error)
	ListByStatus(ctx context.Context, status string, limit int) ([]*Payment, error)

	CreateC2B(ctx context.Context, t *MpesaC2B) error
	GetC2BByCheckoutID(ctx context.Context, checkoutRequestID string) (*MpesaC2B, error)
	UpdateC2B(ctx context.Context, t *MpesaC2B) error

	CreateB2C(ctx context.Context, t *MpesaB2C) error
	GetB2CByConversationID(ctx context.Context, conversationID string) (*MpesaB2C, error)
	UpdateB2C(ctx context.Context, t *MpesaB2C) error

	CreatePi(ctx context.Context, t *PiPayment) error
	GetPiByPiPaymentID(ctx context.Context, piPaymentID string) (*PiPayment, error)
	UpdatePi(ctx context.Context, t *PiPayment) error
}
