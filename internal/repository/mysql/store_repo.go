package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/seludoto/dolesecommerce/internal/datamodels/store"
)

type storeRepo struct {
	db *gorm.DB
}

// NewStoreRepository 创建店铺仓储
func NewStoreRepository(db *gorm.DB) store.Repository {
	return &storeRepo{db: db}
}

func (r *storeRepo) GetByID(ctx context.Context, id int64) (*store.Store, error) {
	var s store.Store
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *storeRepo) GetByOwner(ctx context.Context, ownerID int64) (*store.Store, error) {
	var s store.Store
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *storeRepo) GetBySlug(ctx context.Context, slug string) (*store.Store, error) {
	var s store.Store
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *storeRepo) ListActive(ctx context.Context) ([]*store.Store, error) {
	var list []*store.Store
	if err := r.db.WithContext(ctx).
		Where("status = ?", store.StatusActive).
		Order("total_sales DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *storeRepo) ListAll(ctx context.Context) ([]*store.Store, error) {
	var list []*store.Store
	if err := r.db.WithContext(ctx).Order("id DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *storeRepo) Create(ctx context.Context, s *store.Store) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *storeRepo) Update(ctx context.Context, s *store.Store) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *storeRepo) AddSales(ctx context.Context, id, units, revenue int64) error {
	return r.db.WithContext(ctx).Model(&store.Store{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"total_sales":   gorm.Expr("total_sales + ?", units),
			"total_revenue": gorm.Expr("total_revenue + ?", revenue),
		}).Error
}

func (r *storeRepo) CreateApplication(ctx context.Context, a *store.Application) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *storeRepo) GetApplication(ctx context.Context, id int64) (*store.Application, error) {
	var a store.Application
	if err := r.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *storeRepo) ListApplications(ctx context.Context, status int) ([]*store.Application, error) {
	var list []*store.Application
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("id").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *storeRepo) UpdateApplication(ctx context.Context, a *store.Application) error {
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *storeRepo) CreateReview(ctx context.Context, rv *store.Review) error {
	return r.db.WithContext(ctx).Create(rv).Error
}

func (r *storeRepo) GetReviewByStoreAndUser(ctx context.Context, storeID, userID int64) (*store.Review, error) {
	var rv store.Review
	if err := r.db.WithContext(ctx).
		Where("store_id = ? AND user_id = ?", storeID, userID).
		First(&rv).Error; err != nil {
		return nil, err
	}
	return &rv, nil
}

func (r *storeRepo) ListReviews(ctx context.Context, storeID int64) ([]*store.Review, error) {
	var list []*store.Review
	if err := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// RefreshRating 用评价表重算店铺的评分与评价数
func (r *storeRepo) RefreshRating(ctx context.Context, storeID int64) error {
	var agg struct {
		Average float64
		Count   int64
	}
	if err := r.db.WithContext(ctx).Model(&store.Review{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Where("store_id = ?", storeID).
		Scan(&agg).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&store.Store{}).
		Where("id = ?", storeID).
		UpdateColumns(map[string]interface{}{
			"rating":       agg.Average,
			"review_count": agg.Count,
		}).Error
}
