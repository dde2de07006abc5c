package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/seludoto/dolesecommerce/internal/datamodels/analytics"
	"github.com/seludoto/dolesecommerce/internal/datamodels/product"
)

// CatalogService 商品目录：商品、分类、品牌的查询与维护
type CatalogService struct {
	products   product.Repository
	categories product.CategoryRepository
	brands     product.BrandRepository
	stats      analytics.Repository
}

func NewCatalogService(
	products product.Repository,
	categories product.CategoryRepository,
	brands product.BrandRepository,
	stats analytics.Repository,
) *CatalogService {
	return &CatalogService{
		products:   products,
		categories: categories,
		brands:     brands,
		stats:      stats,
	}
}

func (s *CatalogService) ListOnline(ctx context.Context) ([]*product.Product, error) {
	return s.products.ListOnline(ctx)
}

func (s *CatalogService) ListAll(ctx context.Context) ([]*product.Product, error) {
	return s.products.ListAll(ctx)
}

func (s *CatalogService) ListByCategory(ctx context.Context, categoryID int64) ([]*product.Product, error) {
	return s.products.ListByCategory(ctx, categoryID)
}

func (s *CatalogService) ListByStore(ctx context.Context, storeID int64) ([]*product.Product, error) {
	return s.products.ListByStore(ctx, storeID)
}

func (s *CatalogService) Search(ctx context.Context, keyword string) ([]*product.Product, error) {
	return s.products.Search(ctx, keyword)
}

func (s *CatalogService) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	return s.products.GetByID(ctx, id)
}

func (s *CatalogService) GetBySlug(ctx context.Context, slug string) (*product.Product, error) {
	return s.products.GetBySlug(ctx, slug)
}

// View 商品详情访问：浏览数 +1，并计入店铺日统计。
// 统计失败只记日志，不影响查询结果。
func (s *CatalogService) View(ctx context.Context, id int64) (*product.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.products.IncrementViews(ctx, id); err != nil {
		zap.L().Warn("increment product views failed", zap.Int64("product_id", id), zap.Error(err))
	}
	if s.stats != nil {
		if err := s.stats.AddView(ctx, p.StoreID, time.Now()); err != nil {
			zap.L().Warn("record product view stat failed", zap.Int64("store_id", p.StoreID), zap.Error(err))
		}
	}
	return p, nil
}

func (s *CatalogService) Create(ctx context.Context, p *product.Product) error {
	return s.products.Create(ctx, p)
}

func (s *CatalogService) Update(ctx context.Context, p *product.Product) error {
	return s.products.Update(ctx, p)
}

func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	return s.products.Delete(ctx, id)
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]*product.Category, error) {
	return s.categories.ListAll(ctx)
}

func (s *CatalogService) CreateCategory(ctx context.Context, c *product.Category) error {
	return s.categories.Create(ctx, c)
}

func (s *CatalogService) UpdateCategory(ctx context.Context, c *product.Category) error {
	return s.categories.Update(ctx, c)
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id int64) error {
	return s.categories.Delete(ctx, id)
}

func (s *CatalogService) ListBrands(ctx context.Context) ([]*product.Brand, error) {
	return s.brands.ListAll(ctx)
}

func (s *CatalogService) CreateBrand(ctx context.Context, b *product.Brand) error {
	return s.brands.Create(ctx, b)
}

func (s *CatalogService) UpdateBrand(ctx context.Context, b *product.Brand) error {
	return s.brands.Update(ctx, b)
}

func (s *CatalogService) DeleteBrand(ctx context.Context, id int64) error {
	return s.brands.Delete(ctx, id)
}
