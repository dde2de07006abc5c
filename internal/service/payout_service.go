package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seludoto/dolesecommerce/internal/datamodels/earnings"
	"github.com/seludoto/dolesecommerce/internal/datamodels/order"
	"github.com/seludoto/dolesecommerce/internal/datamodels/payment"
	"github.com/seludoto/dolesecommerce/internal/datamodels/store"
	"github.com/seludoto/dolesecommerce/internal/gateway/mpesa"
)

var (
	ErrInsufficientBalance = errors.New("可用余额不足")
	ErrNoPayoutPhone       = errors.New("店铺未配置提现手机号")
)

// PayoutService 商家账务：订单分账入账、B2C 提现、流水查询
type PayoutService struct {
	db       *gorm.DB
	balances earnings.Repository
	stores   store.Repository
	payments payment.Repository
	daraja   *mpesa.Client
}

func NewPayoutService(
	db *gorm.DB,
	balances earnings.Repository,
	stores store.Repository,
	payments payment.Repository,
	daraja *mpesa.Client,
) *PayoutService {
	return &PayoutService{
		db:       db,
		balances: balances,
		stores:   stores,
		payments: payments,
		daraja:   daraja,
	}
}

// GetBalance 查询商家余额，不存在则建零余额账户
func (s *PayoutService) GetBalance(ctx context.Context, storeID int64) (*earnings.SellerBalance, error) {
	return s.balances.UpsertByStoreID(ctx, storeID)
}

// ListEntries 查询账务流水
func (s *PayoutService) ListEntries(ctx context.Context, storeID int64, limit int) ([]*earnings.LedgerEntry, error) {
	return s.balances.ListEntries(ctx, storeID, limit)
}

// CreditOrderIncome 订单支付完成后给各店铺入账。
// 按行项目归集到店铺，扣除平台佣金后记可用余额，幂等由调用方（worker 的订单状态门）保证。
func (s *PayoutService) CreditOrderIncome(ctx context.Context, o *order.Order, items []*order.Item) error {
	byStore := make(map[int64]int64)
	for _, it := range items {
		byStore[it.StoreID] += it.Subtotal
	}

	for storeID, gross := range byStore {
		st, err := s.stores.GetByID(ctx, storeID)
		if err != nil {
			zap.L().Error("credit income: store not found",
				zap.Int64("store_id", storeID), zap.Int64("order_id", o.ID))
			continue
		}
		commission := st.CommissionFor(gross)
		net := gross - commission

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var b earnings.SellerBalance
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("store_id = ?", storeID).
				First(&b).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					b = earnings.SellerBalance{StoreID: storeID}
					if err := tx.Create(&b).Error; err != nil {
						return err
					}
				} else {
					return err
				}
			}
			b.Available += net
			if err := tx.Save(&b).Error; err != nil {
				return err
			}
			return tx.Create(&earnings.LedgerEntry{
				StoreID: storeID,
				Amount:  net,
				Type:    earnings.TypeOrderIncome,
				Status:  "success",
				Note:    fmt.Sprintf("订单 %s 分账，佣金 %d 分", o.Number, commission),
			}).Error
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// RequestPayout 发起 B2C 提现：余额转冻结，调用 Daraja B2C，登记流水。
// 网关同步失败时立即解冻。
func (s *PayoutService) RequestPayout(ctx context.Context, storeID, amount int64) (*payment.MpesaB2C, error) {
	if amount <= 0 {
		return nil, errors.New("提现金额需大于 0")
	}
	st, err := s.stores.GetByID(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if st.PayoutPhone == "" {
		return nil, ErrNoPayoutPhone
	}

	// 1) 余额转冻结
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b earnings.SellerBalance
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("store_id = ?", storeID).
			First(&b).Error; err != nil {
			return ErrInsufficientBalance
		}
		if b.Available < amount {
			return ErrInsufficientBalance
		}
		b.Available -= amount
		b.Frozen += amount
		return tx.Save(&b).Error
	})
	if err != nil {
		return nil, err
	}

	// 2) 调用网关
	amountKES := amount / 100
	resp, err := s.daraja.B2C(ctx, st.PayoutPhone, amountKES, fmt.Sprintf("payout store %d", storeID))
	if err != nil {
		// 同步失败，解冻回补
		_ = s.unfreeze(ctx, storeID, amount, "提现请求失败回补")
		return nil, err
	}

	// 3) 登记提现流水
	t := &payment.MpesaB2C{
		StoreID:                  storeID,
		ConversationID:           resp.ConversationID,
		OriginatorConversationID: resp.OriginatorConversationID,
		PhoneNumber:              st.PayoutPhone,
		Amount:                   amount,
		Remarks:                  fmt.Sprintf("payout store %d", storeID),
		Status:                   payment.StatusProcessing,
		ResponseCode:             resp.ResponseCode,
		ResponseDescription:      resp.ResponseDescription,
	}
	if err := s.payments.CreateB2C(ctx, t); err != nil {
		return nil, err
	}
	if err := s.balances.CreateEntry(ctx, &earnings.LedgerEntry{
		StoreID: storeID,
		Amount:  -amount,
		Type:    earnings.TypePayout,
		Status:  "pending",
		Note:    "B2C " + resp.ConversationID,
	}); err != nil {
		return nil, err
	}
	return t, nil
}

// HandleB2CResult 处理 B2C 异步结果回调。签名校验与 STK 回调一致。
// 成功则扣减冻结金额，失败则解冻回补；未知 ConversationID 忽略。
func (s *PayoutService) HandleB2CResult(ctx context.Context, body []byte, signature, webhookSecret string) error {
	if !mpesa.VerifySignature(webhookSecret, body, signature) {
		return ErrBadSignature
	}

	var res mpesa.B2CResult
	if err := json.Unmarshal(body, &res); err != nil {
		return fmt.Errorf("解析 B2C 结果失败: %w", err)
	}

	t, err := s.payments.GetB2CByConversationID(ctx, res.Result.ConversationID)
	if err != nil {
		zap.L().Warn("b2c result for unknown conversation id",
			zap.String("conversation_id", res.Result.ConversationID))
		return nil
	}
	if t.Status == payment.StatusCompleted || t.Status == payment.StatusFailed {
		// 重复回调
		return nil
	}

	if res.Result.ResultCode == 0 {
		return s.settlePayout(ctx, t, &res)
	}
	return s.reversePayout(ctx, t, res.Result.ResultDesc)
}

// HandleB2CTimeout 处理 B2C 超时回调：按失败处理，解冻回补
func (s *PayoutService) HandleB2CTimeout(ctx context.Context, body []byte, signature, webhookSecret string) error {
	if !mpesa.VerifySignature(webhookSecret, body, signature) {
		return ErrBadSignature
	}
	var res mpesa.B2CResult
	if err := json.Unmarshal(body, &res); err != nil {
		return fmt.Errorf("解析 B2C 超时回调失败: %w", err)
	}
	t, err := s.payments.GetB2CByConversationID(ctx, res.Result.ConversationID)
	if err != nil {
		return nil
	}
	if t.Status == payment.StatusCompleted || t.Status == payment.StatusFailed {
		return nil
	}
	return s.reversePayout(ctx, t, "网关处理超时")
}

func (s *PayoutService) settlePayout(ctx context.Context, t *payment.MpesaB2C, res *mpesa.B2CResult) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b earnings.SellerBalance
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("store_id = ?", t.StoreID).
			First(&b).Error; err != nil {
			return err
		}
		b.Frozen -= t.Amount
		if b.Frozen < 0 {
			b.Frozen = 0
		}
		if err := tx.Save(&b).Error; err != nil {
			return err
		}

		now := time.Now()
		t.Status = payment.StatusCompleted
		t.TransactionID = res.Result.TransactionID
		t.TransactionReceipt = res.ReceiptNumber()
		t.CompletedAt = &now
		if err := tx.Save(t).Error; err != nil {
			return err
		}

		return tx.Model(&earnings.LedgerEntry{}).
			Where("store_id = ? AND type = ? AND note = ? AND status = ?",
				t.StoreID, earnings.TypePayout, "B2C "+t.ConversationID, "pending").
			Update("status", "success").Error
	})
}

func (s *PayoutService) reversePayout(ctx context.Context, t *payment.MpesaB2C, reason string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b earnings.SellerBalance
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("store_id = ?", t.StoreID).
			First(&b).Error; err != nil {
			return err
		}
		b.Frozen -= t.Amount
		if b.Frozen < 0 {
			b.Frozen = 0
		}
		b.Available += t.Amount
		if err := tx.Save(&b).Error; err != nil {
			return err
		}

		t.Status = payment.StatusFailed
		t.ResponseDescription = reason
		if err := tx.Save(t).Error; err != nil {
			return err
		}

		if err := tx.Model(&earnings.LedgerEntry{}).
			Where("store_id = ? AND type = ? AND note = ? AND status = ?",
				t.StoreID, earnings.TypePayout, "B2C "+t.ConversationID, "pending").
			Update("status", "failed").Error; err != nil {
			return err
		}
		return tx.Create(&earnings.LedgerEntry{
			StoreID: t.StoreID,
			Amount:  t.Amount,
			Type:    earnings.TypePayoutReversal,
			Status:  "success",
			Note:    reason,
		}).Error
	})
}

func (s *PayoutService) unfreeze(ctx context.Context, storeID, amount int64, note string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b earnings.SellerBalance
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("store_id = ?", storeID).
			First(&b).Error; err != nil {
			return err
		}
		b.Frozen -= amount
		if b.Frozen < 0 {
			b.Frozen = 0
		}
		b.Available += amount
		if err := tx.Save(&b).Error; err != nil {
			return err
		}
		return tx.Create(&earnings.LedgerEntry{
			StoreID: storeID,
			Amount:  amount,
			Type:    earnings.TypePayoutReversal,
			Status:  "success",
			Note:    note,
		}).Error
	})
}
