package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/seludoto/dolesecommerce/internal/datamodels/shipping"
)

type shippingRepo struct {
	db *gorm.DB
}

// NewShippingRepository 创建配送仓储
func NewShippingRepository(db *gorm.DB) shipping.Repository {
	return &shippingRepo{db: db}
}

func (r *shippingRepo) GetMethod(ctx context.Context, id int64) (*shipping.Method, error) {
	var m shipping.Method
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *shippingRepo) ListMethods(ctx context.Context) ([]*shipping.Method, error) {
	var list []*shipping.Method
	if err := r.db.WithContext(ctx).Order("fee").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *shippingRepo) ListActiveMethods(ctx context.Context) ([]*shipping.Method, error) {
	var list []*shipping.Method
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("fee").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *shippingRepo) CreateMethod(ctx context.Context, m *shipping.Method) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *shippingRepo) UpdateMethod(ctx context.Context, m *shipping.Method) error {
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *shippingRepo) DeleteMethod(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&shipping.Method{}, id).Error
}

func (r *shippingRepo) CreateShipment(ctx context.Context, s *shipping.Shipment) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *shippingRepo) GetShipmentByOrder(ctx context.Context, orderID int64) (*shipping.Shipment, error) {
	var s shipping.Shipment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *shippingRepo) UpdateShipment(ctx context.Context, s *shipping.Shipment) error {
	return r.db.WithContext(ctx).Save(s).Error
}
