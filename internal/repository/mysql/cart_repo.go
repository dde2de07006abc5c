package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/seludoto/dolesecommerce/internal/datamodels/cart"
)

type cartRepo struct {
	db *gorm.DB
}

// NewCartRepository 创建购物车仓储
func NewCartRepository(db *gorm.DB) cart.Repository {
	return &cartRepo{db: db}
}

func (r *cartRepo) GetByID(ctx context.Context, id int64) (*cart.Cart, error) {
	var c cart.Cart
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *cartRepo) GetByUser(ctx context.Context, userID int64) (*cart.Cart, error) {
	var c cart.Cart
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_abandoned = ?", userID, false).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *cartRepo) GetBySession(ctx context.Context, sessionKey string) (*cart.Cart, error) {
	var c cart.Cart
	if err := r.db.WithContext(ctx).
		Where("session_key = ? AND user_id IS NULL AND is_abandoned = ?", sessionKey, false).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *cartRepo) Create(ctx context.Context, c *cart.Cart) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *cartRepo) Update(ctx context.Context, c *cart.Cart) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *cartRepo) Delete(ctx context.Context, id int64) error {
	if err := r.db.WithContext(ctx).Where("cart_id = ?", id).Delete(&cart.Item{}).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Where("cart_id = ?", id).Delete(&cart.AppliedPromo{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(&cart.Cart{}, id).Error
}

func (r *cartRepo) GetItem(ctx context.Context, cartID, productID int64, size, color string) (*cart.Item, error) {
	var it cart.Item
	if err := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ? AND size = ? AND color = ?", cartID, productID, size, color).
		First(&it).Error; err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *cartRepo) GetItemByID(ctx context.Context, itemID int64) (*cart.Item, error) {
	var it cart.Item
	if err := r.db.WithContext(ctx).First(&it, itemID).Error; err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *cartRepo) AddItem(ctx context.Context, it *cart.Item) error {
	return r.db.WithContext(ctx).Create(it).Error
}

func (r *cartRepo) UpdateItem(ctx context.Context, it *cart.Item) error {
	return r.db.WithContext(ctx).Save(it).Error
}

func (r *cartRepo) RemoveItem(ctx context.Context, itemID int64) error {
	return r.db.WithContext(ctx).Delete(&cart.Item{}, itemID).Error
}

func (r *cartRepo) ListItems(ctx context.Context, cartID int64) ([]*cart.Item, error) {
	var list []*cart.Item
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("id").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *cartRepo) ClearItems(ctx context.Context, cartID int64) error {
	return r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&cart.Item{}).Error
}

func (r *cartRepo) AddPromo(ctx context.Context, ap *cart.AppliedPromo) error {
	return r.db.WithContext(ctx).Create(ap).Error
}

func (r *cartRepo) RemovePromo(ctx context.Context, cartID, promoCodeID int64) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ? AND promo_code_id = ?", cartID, promoCodeID).
		Delete(&cart.AppliedPromo{}).Error
}

func (r *cartRepo) ListPromos(ctx context.Context, cartID int64) ([]*cart.AppliedPromo, error) {
	var list []*cart.AppliedPromo
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("applied_at, id").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *cartRepo) ClearPromos(ctx context.Context, cartID int64) error {
	return r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&cart.AppliedPromo{}).Error
}
