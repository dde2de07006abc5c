package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/seludoto/dolesecommerce/internal/config"
	"github.com/seludoto/dolesecommerce/internal/datamodels/cart"
	"github.com/seludoto/dolesecommerce/internal/datamodels/product"
	"github.com/seludoto/dolesecommerce/internal/datamodels/promotion"
)

var (
	ErrCartEmpty       = errors.New("购物车是空的")
	ErrProductOffline  = errors.New("商品已下架")
	ErrInsufficientQty = errors.New("商品库存不足")
)

// CartService 购物车：行项目维护、优惠码应用、结算金额计算
type CartService struct {
	carts    cart.Repository
	products product.Repository
	promoSvc *PromotionService
	checkout *config.CheckoutConfig
}

func NewCartService(
	carts cart.Repository,
	products product.Repository,
	promoSvc *PromotionService,
	checkout *config.CheckoutConfig,
) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		promoSvc: promoSvc,
		checkout: checkout,
	}
}

// GetOrCreate 获取用户或匿名会话的购物车，没有则新建。
// userID 非 0 时按用户查找，否则按会话键。
func (s *CartService) GetOrCreate(ctx context.Context, userID int64, sessionKey string) (*cart.Cart, error) {
	var (
		c   *cart.Cart
		err error
	)
	if userID != 0 {
		c, err = s.carts.GetByUser(ctx, userID)
	} else {
		c, err = s.carts.GetBySession(ctx, sessionKey)
	}
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	c = &cart.Cart{SessionKey: sessionKey}
	if userID != 0 {
		c.UserID = &userID
		c.SessionKey = ""
	}
	if err := s.carts.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// AddItem 加入商品。同规格行已存在时累加数量，单价取当前售价快照。
func (s *CartService) AddItem(ctx context.Context, c *cart.Cart, productID, qty int64, size, color string) (*cart.Item, error) {
	if qty <= 0 {
		qty = 1
	}
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.Status != product.StatusOnline {
		return nil, ErrProductOffline
	}

	it, err := s.carts.GetItem(ctx, c.ID, productID, size, color)
	if err == nil {
		it.Quantity += qty
		if p.Stock < it.Quantity {
			return nil, ErrInsufficientQty
		}
		if err := s.carts.UpdateItem(ctx, it); err != nil {
			return nil, err
		}
		return it, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if p.Stock < qty {
		return nil, ErrInsufficientQty
	}
	it = &cart.Item{
		CartID:    c.ID,
		ProductID: productID,
		Size:      size,
		Color:     color,
		Quantity:  qty,
		UnitPrice: p.Price,
	}
	if err := s.carts.AddItem(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

// UpdateQuantity 修改行项目数量，qty <= 0 时删除该行
func (s *CartService) UpdateQuantity(ctx context.Context, itemID, qty int64) error {
	if qty <= 0 {
		return s.carts.RemoveItem(ctx, itemID)
	}
	it, err := s.carts.GetItemByID(ctx, itemID)
	if err != nil {
		return err
	}
	p, err := s.products.GetByID(ctx, it.ProductID)
	if err != nil {
		return err
	}
	if p.Stock < qty {
		return ErrInsufficientQty
	}
	it.Quantity = qty
	return s.carts.UpdateItem(ctx, it)
}

// RemoveItem 删除行项目
func (s *CartService) RemoveItem(ctx context.Context, itemID int64) error {
	return s.carts.RemoveItem(ctx, itemID)
}

// ListItems 查询购物车行项目
func (s *CartService) ListItems(ctx context.Context, cartID int64) ([]*cart.Item, error) {
	return s.carts.ListItems(ctx, cartID)
}

// Clear 清空购物车（行项目与优惠码）
func (s *CartService) Clear(ctx context.Context, cartID int64) error {
	if err := s.carts.ClearItems(ctx, cartID); err != nil {
		return err
	}
	return s.carts.ClearPromos(ctx, cartID)
}

// ApplyPromo 应用优惠码。校验通过后记录到购物车，折扣在结算时重算。
func (s *CartService) ApplyPromo(ctx context.Context, c *cart.Cart, code string) (*cart.AppliedPromo, error) {
	items, err := s.carts.ListItems(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrCartEmpty
	}

	subtotal := itemsSubtotal(items)
	var userID int64
	if c.UserID != nil {
		userID = *c.UserID
	}
	p, err := s.promoSvc.Validate(ctx, code, userID, subtotal)
	if err != nil {
		return nil, err
	}

	shippingFee := s.quoteShipping(subtotal)
	discount := s.promoSvc.Discount(p, items, subtotal, shippingFee)

	ap := &cart.AppliedPromo{
		CartID:         c.ID,
		PromoCodeID:    p.ID,
		Code:           p.Code,
		DiscountAmount: discount,
		AppliedAt:      time.Now(),
	}
	if err := s.carts.AddPromo(ctx, ap); err != nil {
		return nil, err
	}
	return ap, nil
}

// RemovePromo 移除已应用的优惠码
func (s *CartService) RemovePromo(ctx context.Context, cartID, promoCodeID int64) error {
	return s.carts.RemovePromo(ctx, cartID, promoCodeID)
}

// Totals 结算金额明细，单位分
type Totals struct {
	Subtotal         int64                `json:"subtotal"`
	ShippingFee      int64                `json:"shipping_fee"`
	FreeShipping     bool                 `json:"free_shipping"` // 免邮优惠已生效
	TaxAmount        int64                `json:"tax_amount"`
	DiscountAmount   int64                `json:"discount_amount"`
	Total            int64                `json:"total"`
	ItemCount        int64                `json:"item_count"`
	Promos           []*cart.AppliedPromo `json:"promos"`
	Items            []*cart.Item         `json:"items"`
	AppliedDiscounts map[int64]int64      `json:"-"` // promoCodeID -> 实际抵扣
}

// ComputeTotals 计算结算金额。优惠按应用时间先后依次生效，
// 每个折扣都以前序扣减后的剩余小计为基数，总折扣不会超过小计。
// 免邮优惠只作用于运费，不进入小计扣减。
func (s *CartService) ComputeTotals(ctx context.Context, c *cart.Cart) (*Totals, error) {
	items, err := s.carts.ListItems(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	t := &Totals{
		Items:            items,
		AppliedDiscounts: make(map[int64]int64),
	}
	for _, it := range items {
		t.Subtotal += it.UnitPrice * it.Quantity
		t.ItemCount += it.Quantity
	}
	t.ShippingFee = s.quoteShipping(t.Subtotal)

	promos, err := s.carts.ListPromos(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	t.Promos = promos

	now := time.Now()
	remaining := t.Subtotal
	for _, ap := range promos {
		p, err := s.promoSvc.GetByID(ctx, ap.PromoCodeID)
		if err != nil {
			continue
		}
		if !p.IsValidAt(now) {
			continue
		}
		if p.DiscountType == promotion.TypeFreeShipping {
			if t.ShippingFee > 0 && t.Subtotal >= p.MinOrderAmount {
				t.AppliedDiscounts[p.ID] = t.ShippingFee
				t.ShippingFee = 0
				t.FreeShipping = true
			}
			continue
		}
		d := s.promoSvc.Discount(p, items, remaining, t.ShippingFee)
		if d <= 0 {
			continue
		}
		remaining -= d
		t.DiscountAmount += d
		t.AppliedDiscounts[p.ID] = d
	}

	t.TaxAmount = remaining * s.checkout.TaxRatePercent / 100
	t.Total = remaining + t.ShippingFee + t.TaxAmount
	return t, nil
}

// quoteShipping 基础运费规则：满额免运费
func (s *CartService) quoteShipping(subtotal int64) int64 {
	if subtotal <= 0 {
		return 0
	}
	if s.checkout.FreeShippingThreshold > 0 && subtotal >= s.checkout.FreeShippingThreshold {
		return 0
	}
	return s.checkout.ShippingFee
}

// Merge 登录后把匿名会话购物车并入用户购物车。
// 同规格行累加数量，会话购物车随后删除。
func (s *CartService) Merge(ctx context.Context, sessionKey string, userID int64) error {
	sc, err := s.carts.GetBySession(ctx, sessionKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	uc, err := s.GetOrCreate(ctx, userID, "")
	if err != nil {
		return err
	}

	items, err := s.carts.ListItems(ctx, sc.ID)
	if err != nil {
		return err
	}
	for _, it := range items {
		existing, err := s.carts.GetItem(ctx, uc.ID, it.ProductID, it.Size, it.Color)
		if err == nil {
			existing.Quantity += it.Quantity
			if err := s.carts.UpdateItem(ctx, existing); err != nil {
				return err
			}
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := s.carts.AddItem(ctx, &cart.Item{
			CartID:    uc.ID,
			ProductID: it.ProductID,
			Size:      it.Size,
			Color:     it.Color,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}); err != nil {
			return err
		}
	}

	if err := s.Clear(ctx, sc.ID); err != nil {
		return err
	}
	return s.carts.Delete(ctx, sc.ID)
}

func itemsSubtotal(items []*cart.Item) int64 {
	var total int64
	for _, it := range items {
		total += it.UnitPrice * it.Quantity
	}
	return total
}
