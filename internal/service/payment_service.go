package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seludoto/dolesecommerce/internal/config"
	"github.com/seludoto/dolesecommerce/internal/datamodels/order"
	"github.com/seludoto/dolesecommerce/internal/datamodels/payment"
	"github.com/seludoto/dolesecommerce/internal/gateway/mpesa"
	"github.com/seludoto/dolesecommerce/internal/gateway/pinetwork"
	"github.com/seludoto/dolesecommerce/internal/infra/mq"
)

var (
	ErrPaymentNotFound   = errors.New("支付单不存在")
	ErrPaymentTransition = errors.New("支付状态不允许该操作")
	ErrBadSignature      = errors.New("回调签名校验失败")
	ErrAmountMismatch    = errors.New("支付金额与订单不符")
)

// PaymentEvent 支付完成事件，payment-worker 消费后做订单落账
type PaymentEvent struct {
	PaymentID int64  `json:"payment_id"`
	OrderID   int64  `json:"order_id"`
	Method    string `json:"method"`
	Amount    int64  `json:"amount"`
}

// PaymentService 支付：发起 M-Pesa STK / Pi 支付，处理网关回调。
// 回调处理是幂等的：重复、乱序、未知流水都不会破坏已有状态。
type PaymentService struct {
	payments payment.Repository
	orders   order.Repository
	daraja   *mpesa.Client
	pi       *pinetwork.Client
	mqConn   *amqp.Connection
	mpesaCfg *config.MpesaConfig
	piCfg    *config.PiConfig
}

func NewPaymentService(
	payments payment.Repository,
	orders order.Repository,
	daraja *mpesa.Client,
	pi *pinetwork.Client,
	mqConn *amqp.Connection,
	mpesaCfg *config.MpesaConfig,
	piCfg *config.PiConfig,
) *PaymentService {
	return &PaymentService{
		payments: payments,
		orders:   orders,
		daraja:   daraja,
		pi:       pi,
		mqConn:   mqConn,
		mpesaCfg: mpesaCfg,
		piCfg:    piCfg,
	}
}

// getOrCreatePayment 订单维度的支付单。pending/processing 直接复用；
// failed/cancelled 视为重试，重置回 pending 并换新流水号，否则状态机会把
// 后续的成功回调当成终态重复而丢弃；completed/refunded 拒绝再次发起。
func (s *PaymentService) getOrCreatePayment(ctx context.Context, o *order.Order, method string) (*payment.Payment, error) {
	p, err := s.payments.GetByOrderID(ctx, o.ID)
	if err == nil {
		if p.Status == payment.StatusCompleted || p.Status == payment.StatusRefunded {
			return nil, ErrOrderNotPayable
		}
		if p.Status == payment.StatusFailed || p.Status == payment.StatusCancelled {
			p.Status = payment.StatusPending
			p.FailureReason = ""
			p.Reference = uuid.NewString()
		}
		// 买家在 mpesa/pi 之间切换时跟随最新选择
		p.Method = method
		if err := s.payments.Update(ctx, p); err != nil {
			return nil, err
		}
		return p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	p = &payment.Payment{
		OrderID:   o.ID,
		UserID:    o.UserID,
		Method:    method,
		Amount:    o.TotalAmount,
		Status:    payment.StatusPending,
		Reference: uuid.NewString(),
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// InitiateMpesa 向用户手机推送 STK 支付请求
func (s *PaymentService) InitiateMpesa(ctx context.Context, orderID int64, phone string) (*payment.Payment, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, ErrOrderNotFound
	}
	if o.Status != order.StatusCreated {
		return nil, ErrOrderNotPayable
	}

	p, err := s.getOrCreatePayment(ctx, o, payment.MethodMpesa)
	if err != nil {
		return nil, err
	}
	GetMonitor().RecordPaymentInitiated()

	// Daraja 金额为整数 KES，分向上取整
	amountKES := (o.TotalAmount + 99) / 100
	resp, err := s.daraja.STKPush(ctx, normalizePhone(phone), amountKES, o.Number, "Order "+o.Number)
	if err != nil {
		GetMonitor().RecordPaymentError()
		p.Status = payment.StatusFailed
		p.FailureReason = err.Error()
		_ = s.payments.Update(ctx, p)
		return nil, err
	}

	if err := s.payments.CreateC2B(ctx, &payment.MpesaC2B{
		PaymentID:         p.ID,
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		PhoneNumber:       normalizePhone(phone),
		Amount:            o.TotalAmount,
		AccountReference:  o.Number,
		TransactionDesc:   "Order " + o.Number,
		Status:            payment.StatusPending,
	}); err != nil {
		return nil, err
	}

	if payment.CanTransition(p.Status, payment.StatusProcessing) {
		p.Status = payment.StatusProcessing
		raw, _ := json.Marshal(resp)
		p.GatewayResponse = string(raw)
		if err := s.payments.Update(ctx, p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// HandleSTKCallback 处理 STK 异步回调。
// 先校验 HMAC 签名；未知 CheckoutRequestID 或已终态的支付单直接忽略。
func (s *PaymentService) HandleSTKCallback(ctx context.Context, body []byte, signature string) error {
	if !mpesa.VerifySignature(s.mpesaCfg.WebhookSecret, body, signature) {
		GetMonitor().RecordPaymentError()
		return ErrBadSignature
	}

	var cb mpesa.STKCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		return fmt.Errorf("解析回调失败: %w", err)
	}
	sc := cb.Body.StkCallback

	t, err := s.payments.GetC2BByCheckoutID(ctx, sc.CheckoutRequestID)
	if err != nil {
		// 未知流水：不是本系统发起的请求，忽略
		zap.L().Warn("stk callback for unknown checkout id",
			zap.String("checkout_request_id", sc.CheckoutRequestID))
		return nil
	}

	p, err := s.payments.GetByID(ctx, t.PaymentID)
	if err != nil {
		return err
	}
	if p.Status == payment.StatusCompleted || payment.IsTerminal(p.Status) {
		// 重复回调，幂等忽略
		return nil
	}

	t.ResultCode = fmt.Sprintf("%d", sc.ResultCode)
	t.ResultDesc = sc.ResultDesc

	if sc.ResultCode == 0 {
		t.Status = payment.StatusCompleted
		t.ReceiptNumber = cb.MetadataString("MpesaReceiptNumber")
		now := time.Now()
		t.TransactionDate = &now
		if err := s.payments.UpdateC2B(ctx, t); err != nil {
			return err
		}
		return s.completePayment(ctx, p, string(body))
	}

	t.Status = payment.StatusFailed
	if err := s.payments.UpdateC2B(ctx, t); err != nil {
		return err
	}
	return s.failPayment(ctx, p, sc.ResultDesc)
}

// InitiatePi 发起 Pi 支付：按下单时汇率折算 Pi 数量并登记流水
func (s *PaymentService) InitiatePi(ctx context.Context, orderID int64, piPaymentID string) (*payment.Payment, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, ErrOrderNotFound
	}
	if o.Status != order.StatusCreated {
		return nil, ErrOrderNotPayable
	}

	p, err := s.getOrCreatePayment(ctx, o, payment.MethodPi)
	if err != nil {
		return nil, err
	}
	GetMonitor().RecordPaymentInitiated()

	amountPi := float64(o.TotalAmount) / float64(s.piCfg.KESPerPi)
	if err := s.payments.CreatePi(ctx, &payment.PiPayment{
		PaymentID:   p.ID,
		PiPaymentID: piPaymentID,
		AmountPi:    amountPi,
		KESPerPi:    s.piCfg.KESPerPi,
		Memo:        "Order " + o.Number,
		Status:      payment.StatusPending,
	}); err != nil {
		return nil, err
	}
	return p, nil
}

// ApprovePi 服务端批准阶段：向平台核对支付后放行
func (s *PaymentService) ApprovePi(ctx context.Context, piPaymentID string) error {
	t, err := s.payments.GetPiByPiPaymentID(ctx, piPaymentID)
	if err != nil {
		return ErrPaymentNotFound
	}
	p, err := s.payments.GetByID(ctx, t.PaymentID)
	if err != nil {
		return err
	}
	if payment.IsTerminal(p.Status) || p.Status == payment.StatusCompleted {
		return nil
	}

	remote, err := s.pi.GetPayment(ctx, piPaymentID)
	if err != nil {
		GetMonitor().RecordPaymentError()
		return err
	}
	// 金额按汇率快照折回分比对，容忍一分以内的浮点误差
	expected := t.AmountPi
	if diff := remote.Amount - expected; diff > 0.0000001 || diff < -0.0000001 {
		return ErrAmountMismatch
	}

	if _, err := s.pi.ApprovePayment(ctx, piPaymentID); err != nil {
		return err
	}

	if payment.CanTransition(p.Status, payment.StatusProcessing) {
		p.Status = payment.StatusProcessing
		if err := s.payments.Update(ctx, p); err != nil {
			return err
		}
	}
	t.Status = payment.StatusProcessing
	return s.payments.UpdatePi(ctx, t)
}

// CompletePi 完成阶段：以链上 txid 向平台完结，并推动支付单到 completed。
// 完结前重新拉取平台侧支付对象核验交易。
func (s *PaymentService) CompletePi(ctx context.Context, piPaymentID, txid string) error {
	t, err := s.payments.GetPiByPiPaymentID(ctx, piPaymentID)
	if err != nil {
		return ErrPaymentNotFound
	}
	p, err := s.payments.GetByID(ctx, t.PaymentID)
	if err != nil {
		return err
	}
	if p.Status == payment.StatusCompleted || payment.IsTerminal(p.Status) {
		return nil
	}

	remote, err := s.pi.GetPayment(ctx, piPaymentID)
	if err != nil {
		GetMonitor().RecordPaymentError()
		return err
	}
	if remote.Transaction == nil || !remote.Transaction.Verified || remote.Transaction.TxID != txid {
		return fmt.Errorf("链上交易未通过平台校验")
	}

	if _, err := s.pi.CompletePayment(ctx, piPaymentID, txid); err != nil {
		return err
	}

	t.TxID = txid
	t.Status = payment.StatusCompleted
	if err := s.payments.UpdatePi(ctx, t); err != nil {
		return err
	}
	raw, _ := json.Marshal(remote)
	return s.completePayment(ctx, p, string(raw))
}

// CancelPi 用户取消 Pi 支付。与批准/完结一样先向平台核对，
// 只有平台侧确认已取消才落本地终态，防止拿到 PiPaymentID 就能杀单。
func (s *PaymentService) CancelPi(ctx context.Context, piPaymentID string) error {
	t, err := s.payments.GetPiByPiPaymentID(ctx, piPaymentID)
	if err != nil {
		return ErrPaymentNotFound
	}
	p, err := s.payments.GetByID(ctx, t.PaymentID)
	if err != nil {
		return err
	}
	if !payment.CanTransition(p.Status, payment.StatusCancelled) {
		return nil
	}

	remote, err := s.pi.GetPayment(ctx, piPaymentID)
	if err != nil {
		GetMonitor().RecordPaymentError()
		return err
	}
	if !remote.Status.Cancelled && !remote.Status.UserCancelled {
		return fmt.Errorf("平台侧支付未取消")
	}

	t.Status = payment.StatusCancelled
	if err := s.payments.UpdatePi(ctx, t); err != nil {
		return err
	}
	p.Status = payment.StatusCancelled
	return s.payments.Update(ctx, p)
}

// completePayment 推进支付单到 completed 并发布支付事件。
// 订单侧落账（标记已支付、销量、分账、统计）由 payment-worker 完成。
func (s *PaymentService) completePayment(ctx context.Context, p *payment.Payment, gatewayResp string) error {
	if !payment.CanTransition(p.Status, payment.StatusCompleted) {
		return ErrPaymentTransition
	}
	p.Status = payment.StatusCompleted
	if gatewayResp != "" {
		p.GatewayResponse = gatewayResp
	}
	if err := s.payments.Update(ctx, p); err != nil {
		return err
	}
	GetMonitor().RecordPaymentCompleted()

	body, err := json.Marshal(&PaymentEvent{
		PaymentID: p.ID,
		OrderID:   p.OrderID,
		Method:    p.Method,
		Amount:    p.Amount,
	})
	if err != nil {
		return err
	}
	if err := mq.DeclareAndPublish(ctx, s.mqConn, mq.PaymentEventQueue, body); err != nil {
		GetMonitor().RecordMQError()
		zap.L().Error("publish payment event failed",
			zap.Int64("payment_id", p.ID), zap.Error(err))
		return err
	}
	return nil
}

func (s *PaymentService) failPayment(ctx context.Context, p *payment.Payment, reason string) error {
	if !payment.CanTransition(p.Status, payment.StatusFailed) {
		return nil
	}
	p.Status = payment.StatusFailed
	p.FailureReason = reason
	GetMonitor().RecordPaymentError()
	return s.payments.Update(ctx, p)
}

// Refund 人工退款，仅允许 completed -> refunded
func (s *PaymentService) Refund(ctx context.Context, paymentID, adminID int64, reason string) error {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return ErrPaymentNotFound
	}
	if !payment.CanTransition(p.Status, payment.StatusRefunded) {
		return ErrPaymentTransition
	}
	p.Status = payment.StatusRefunded
	p.FailureReason = reason
	p.ProcessedBy = &adminID
	return s.payments.Update(ctx, p)
}

func (s *PaymentService) GetByOrderID(ctx context.Context, orderID int64) (*payment.Payment, error) {
	return s.payments.GetByOrderID(ctx, orderID)
}

func (s *PaymentService) ListRecent(ctx context.Context, limit int) ([]*payment.Payment, error) {
	return s.payments.ListRecent(ctx, limit)
}
