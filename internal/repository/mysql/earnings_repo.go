package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/seludoto/dolesecommerce/internal/datamodels/earnings"
)

type earningsRepo struct {
	db *gorm.DB
}

// NewEarningsRepository 创建商家账务仓储
func NewEarningsRepository(db *gorm.DB) earnings.Repository {
	return &earningsRepo{db: db}
}

func (r *earningsRepo) GetByStoreID(ctx context.Context, storeID int64) (*earnings.SellerBalance, error) {
	var b earnings.SellerBalance
	if err := r.db.WithContext(ctx).Where("store_id = ?", storeID).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// UpsertByStoreID 不存在则创建零余额账户
func (r *earningsRepo) UpsertByStoreID(ctx context.Context, storeID int64) (*earnings.SellerBalance, error) {
	var b earnings.SellerBalance
	err := r.db.WithContext(ctx).Where("store_id = ?", storeID).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		b = earnings.SellerBalance{StoreID: storeID}
		if err := r.db.WithContext(ctx).Create(&b).Error; err != nil {
			return nil, err
		}
		return &b, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *earningsRepo) Update(ctx context.Context, b *earnings.SellerBalance) error {
	return r.db.WithContext(ctx).Save(b).Error
}

func (r *earningsRepo) ListAll(ctx context.Context) ([]*earnings.SellerBalance, error) {
	var list []*earnings.SellerBalance
	if err := r.db.WithContext(ctx).Order("store_id").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *earningsRepo) CreateEntry(ctx context.Context, e *earnings.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *earningsRepo) ListEntries(ctx context.Context, storeID int64, limit int) ([]*earnings.LedgerEntry, error) {
	var list []*earnings.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
