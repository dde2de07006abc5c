package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/seludoto/dolesecommerce/internal/datamodels/payment"
)

type paymentRepo struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付仓储
func NewPaymentRepository(db *gorm.DB) payment.Repository {
	return &paymentRepo{db: db}
}

func (r *paymentRepo) Create(ctx context.Context, p *payment.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *paymentRepo) GetByID(ctx context.Context, id int64) (*payment.Payment, error) {
	var p payment.Payment
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) GetByOrderID(ctx context.Context, orderID int64) (*payment.Payment, error) {
	var p payment.Payment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) GetByReference(ctx context.Context, ref string) (*payment.Payment, error) {
	var p payment.Payment
	if err := r.db.WithContext(ctx).Where("reference = ?", ref).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) Update(ctx context.Context, p *payment.Payment) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *paymentRepo) ListRecent(ctx context.Context, limit int) ([]*payment.Payment, error) {
	var list []*payment.Payment
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *paymentRepo) ListByStatus(ctx context.Context, status string, limit int) ([]*payment.Payment, error) {
	var list []*payment.Payment
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *paymentRepo) CreateC2B(ctx context.Context, t *payment.MpesaC2B) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *paymentRepo) GetC2BByCheckoutID(ctx context.Context, checkoutRequestID string) (*payment.MpesaC2B, error) {
	var t payment.MpesaC2B
	if err := r.db.WithContext(ctx).
		Where("checkout_request_id = ?", checkoutRequestID).
		First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *paymentRepo) UpdateC2B(ctx context.Context, t *payment.MpesaC2B) error {
	return r.db.WithContext(ctx).Save(t).Error
}

func (r *paymentRepo) CreateB2C(ctx context.Context, t *payment.MpesaB2C) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *paymentRepo) GetB2CByConversationID(ctx context.Context, conversationID string) (*payment.MpesaB2C, error) {
	var t payment.MpesaB2C
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *paymentRepo) UpdateB2C(ctx context.Context, t *payment.MpesaB2C) error {
	return r.db.WithContext(ctx).Save(t).Error
}

func (r *paymentRepo) CreatePi(ctx context.Context, t *payment.PiPayment) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *paymentRepo) GetPiByPiPaymentID(ctx context.Context, piPaymentID string) (*payment.PiPayment, error) {
	var t payment.PiPayment
	if err := r.db.WithContext(ctx).
		Where("pi_payment_id = ?", piPaymentID).
		First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *paymentRepo) UpdatePi(ctx context.Context, t *payment.PiPayment) error {
	return r.db.WithContext(ctx).Save(t).Error
}
