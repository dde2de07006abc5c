package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/seludoto/dolesecommerce/internal/datamodels/promotion"
)

type promoRepo struct {
	db *gorm.DB
}

// NewPromotionRepository 创建优惠码仓储
func NewPromotionRepository(db *gorm.DB) promotion.Repository {
	return &promoRepo{db: db}
}

func (r *promoRepo) GetByID(ctx context.Context, id int64) (*promotion.PromoCode, error) {
	var p promotion.PromoCode
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *promoRepo) GetByCode(ctx context.Context, code string) (*promotion.PromoCode, error) {
	var p promotion.PromoCode
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *promoRepo) ListAll(ctx context.Context) ([]*promotion.PromoCode, error) {
	var list []*promotion.PromoCode
	if err := r.db.WithContext(ctx).Order("id DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *promoRepo) Create(ctx context.Context, p *promotion.PromoCode) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *promoRepo) Update(ctx context.Context, p *promotion.PromoCode) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *promoRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&promotion.PromoCode{}, id).Error
}

// IncrementUsage 带条件递增使用次数，并发下不会超过 usage_limit
func (r *promoRepo) IncrementUsage(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&promotion.PromoCode{}).
		Where("id = ? AND (usage_limit = 0 OR usage_count < usage_limit)", id).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *promoRepo) CreateRedemption(ctx context.Context, rd *promotion.Redemption) error {
	return r.db.WithContext(ctx).Create(rd).Error
}

func (r *promoRepo) CountRedemptionsByUser(ctx context.Context, promoCodeID, userID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&promotion.Redemption{}).
		Where("promo_code_id = ? AND user_id = ?", promoCodeID, userID).
		Count(&n).Error
	return n, err
}

type flashSaleRepo struct {
	db *gorm.DB
}

// NewFlashSaleRepository 创建限时抢购仓储
func NewFlashSaleRepository(db *gorm.DB) promotion.FlashSaleRepository {
	return &flashSaleRepo{db: db}
}

func (r *flashSaleRepo) GetByID(ctx context.Context, id int64) (*promotion.FlashSale, error) {
	var f promotion.FlashSale
	if err := r.db.WithContext(ctx).First(&f, id).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *flashSaleRepo) ListAll(ctx context.Context) ([]*promotion.FlashSale, error) {
	var list []*promotion.FlashSale
	if err := r.db.WithContext(ctx).Order("start_time DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *flashSaleRepo) ListLive(ctx context.Context, now time.Time) ([]*promotion.FlashSale, error) {
	var list []*promotion.FlashSale
	if err := r.db.WithContext(ctx).
		Where("is_active = ? AND start_time <= ? AND end_time >= ?", true, now, now).
		Order("end_time").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *flashSaleRepo) Create(ctx context.Context, f *promotion.FlashSale) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *flashSaleRepo) Update(ctx context.Context, f *promotion.FlashSale) error {
	return r.db.WithContext(ctx).Save(f).Error
}

func (r *flashSaleRepo) Delete(ctx context.Context, id int64) error {
	if err := r.db.WithContext(ctx).
		Where("flash_sale_id = ?", id).
		Delete(&promotion.FlashSaleProduct{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(&promotion.FlashSale{}, id).Error
}

func (r *flashSaleRepo) AddProduct(ctx context.Context, fp *promotion.FlashSaleProduct) error {
	return r.db.WithContext(ctx).Create(fp).Error
}

func (r *flashSaleRepo) RemoveProduct(ctx context.Context, flashSaleID, productID int64) error {
	return r.db.WithContext(ctx).
		Where("flash_sale_id = ? AND product_id = ?", flashSaleID, productID).
		Delete(&promotion.FlashSaleProduct{}).Error
}

func (r *flashSaleRepo) GetProduct(ctx context.Context, fsProductID int64) (*promotion.FlashSaleProduct, error) {
	var fp promotion.FlashSaleProduct
	if err := r.db.WithContext(ctx).First(&fp, fsProductID).Error; err != nil {
		return nil, err
	}
	return &fp, nil
}

func (r *flashSaleRepo) ListProducts(ctx context.Context, flashSaleID int64) ([]*promotion.FlashSaleProduct, error) {
	var list []*promotion.FlashSaleProduct
	if err := r.db.WithContext(ctx).
		Where("flash_sale_id = ?", flashSaleID).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// IncrementSold 带条件递增已售数，保证 sold_count 不越过 stock_limit
func (r *flashSaleRepo) IncrementSold(ctx context.Context, fsProductID, qty int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&promotion.FlashSaleProduct{}).
		Where("id = ? AND sold_count + ? <= stock_limit", fsProductID, qty).
		UpdateColumn("sold_count", gorm.Expr("sold_count + ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *flashSaleRepo) DecrementSold(ctx context.Context, fsProductID, qty int64) error {
	return r.db.WithContext(ctx).Model(&promotion.FlashSaleProduct{}).
		Where("id = ? AND sold_count >= ?", fsProductID, qty).
		UpdateColumn("sold_count", gorm.Expr("sold_count - ?", qty)).Error
}

func (r *flashSaleRepo) CreatePurchase(ctx context.Context, p *promotion.FlashSalePurchase) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *flashSaleRepo) CountPurchases(ctx context.Context, fsProductID int64, userID *int64, sessionKey string) (int64, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(&promotion.FlashSalePurchase{}).
		Where("flash_sale_product_id = ?", fsProductID)
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	} else {
		q = q.Where("session_key = ?", sessionKey)
	}
	err := q.Count(&n).Error
	return n, err
}
