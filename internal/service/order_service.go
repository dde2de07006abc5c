package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seludoto/dolesecommerce/internal/datamodels/cart"
	"github.com/seludoto/dolesecommerce/internal/datamodels/order"
	"github.com/seludoto/dolesecommerce/internal/datamodels/product"
	"github.com/seludoto/dolesecommerce/internal/datamodels/promotion"
	"github.com/seludoto/dolesecommerce/internal/datamodels/shipping"
)

var (
	ErrOrderNotFound   = errors.New("订单不存在")
	ErrOrderNotPayable = errors.New("订单当前状态不可支付")
	ErrOrderNotShipped = errors.New("订单尚未发货")
	ErrOrderNotOwned   = errors.New("无权操作该订单")
)

// CheckoutInput 结算请求
type CheckoutInput struct {
	UserID           int64
	ShippingName     string
	ShippingPhone    string
	ShippingAddress  string
	ShippingCity     string
	ShippingCountry  string
	ShippingMethodID *int64
}

// OrderService 订单：结算下单、查询、发货、取消
type OrderService struct {
	db        *gorm.DB
	orders    order.Repository
	cartSvc   *CartService
	promoSvc  *PromotionService
	shipments shipping.Repository
}

func NewOrderService(
	db *gorm.DB,
	orders order.Repository,
	cartSvc *CartService,
	promoSvc *PromotionService,
	shipments shipping.Repository,
) *OrderService {
	return &OrderService{
		db:        db,
		orders:    orders,
		cartSvc:   cartSvc,
		promoSvc:  promoSvc,
		shipments: shipments,
	}
}

// newOrderNumber 订单号：日期 + uuid 片段
func newOrderNumber() string {
	return fmt.Sprintf("DO%s%s",
		time.Now().Format("20060102"),
		strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12]))
}

// Checkout 结算下单。同一事务内锁定商品行、校验并扣减库存、
// 写订单与行项目、核销优惠码，最后清空购物车。
func (s *OrderService) Checkout(ctx context.Context, in *CheckoutInput) (*order.Order, error) {
	c, err := s.cartSvc.GetOrCreate(ctx, in.UserID, "")
	if err != nil {
		return nil, err
	}
	totals, err := s.cartSvc.ComputeTotals(ctx, c)
	if err != nil {
		return nil, err
	}
	if len(totals.Items) == 0 {
		return nil, ErrCartEmpty
	}

	// 指定配送方式时按其报价覆盖基础运费；免邮优惠已生效则运费保持 0
	if in.ShippingMethodID != nil {
		m, err := s.shipments.GetMethod(ctx, *in.ShippingMethodID)
		if err != nil {
			return nil, fmt.Errorf("配送方式不存在: %w", err)
		}
		if !totals.FreeShipping {
			fee := m.QuoteFee(totals.Subtotal)
			totals.Total += fee - totals.ShippingFee
			totals.ShippingFee = fee
		}
	}

	var result *order.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o := &order.Order{
			Number:           newOrderNumber(),
			UserID:           in.UserID,
			Subtotal:         totals.Subtotal,
			ShippingFee:      totals.ShippingFee,
			TaxAmount:        totals.TaxAmount,
			DiscountAmount:   totals.DiscountAmount,
			TotalAmount:      totals.Total,
			Status:           order.StatusCreated,
			ShippingName:     in.ShippingName,
			ShippingPhone:    in.ShippingPhone,
			ShippingAddress:  in.ShippingAddress,
			ShippingCity:     in.ShippingCity,
			ShippingCountry:  in.ShippingCountry,
			ShippingMethodID: in.ShippingMethodID,
		}
		if err := tx.Create(o).Error; err != nil {
			return err
		}

		for _, it := range totals.Items {
			// 锁定商品行，校验状态与库存后扣减
			var p product.Product
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&p, it.ProductID).Error; err != nil {
				return fmt.Errorf("商品不存在: %w", err)
			}
			if p.Status != product.StatusOnline {
				return fmt.Errorf("商品 %s 已下架", p.Name)
			}
			if p.Stock < it.Quantity {
				return fmt.Errorf("商品 %s 库存不足", p.Name)
			}
			p.Stock -= it.Quantity
			if err := tx.Save(&p).Error; err != nil {
				return err
			}

			if err := tx.Create(&order.Item{
				OrderID:   o.ID,
				ProductID: p.ID,
				StoreID:   p.StoreID,
				Name:      p.Name,
				UnitPrice: it.UnitPrice,
				Quantity:  it.Quantity,
				Subtotal:  it.UnitPrice * it.Quantity,
			}).Error; err != nil {
				return err
			}
		}

		// 核销优惠码：带条件递增使用次数，并发下抢不到名额则整单回退
		for _, ap := range totals.Promos {
			amount, ok := totals.AppliedDiscounts[ap.PromoCodeID]
			if !ok {
				continue
			}
			res := tx.Model(&promotion.PromoCode{}).
				Where("id = ? AND (usage_limit = 0 OR usage_count < usage_limit)", ap.PromoCodeID).
				UpdateColumn("usage_count", gorm.Expr("usage_count + 1"))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("优惠码 %s 使用次数已达上限", ap.Code)
			}
			if err := tx.Create(&promotion.Redemption{
				PromoCodeID: ap.PromoCodeID,
				UserID:      in.UserID,
				OrderID:     o.ID,
				Amount:      amount,
			}).Error; err != nil {
				return err
			}
		}

		// 清空购物车
		if err := tx.Where("cart_id = ?", c.ID).Delete(&cart.Item{}).Error; err != nil {
			return err
		}
		if err := tx.Where("cart_id = ?", c.ID).Delete(&cart.AppliedPromo{}).Error; err != nil {
			return err
		}

		result = o
		return nil
	})
	if err != nil {
		GetMonitor().RecordDBError()
		return nil, err
	}
	return result, nil
}

// Cancel 取消未支付订单并回补库存
func (s *OrderService) Cancel(ctx context.Context, userID, orderID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o order.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&o, orderID).Error; err != nil {
			return ErrOrderNotFound
		}
		if o.UserID != userID {
			return ErrOrderNotOwned
		}
		if o.Status != order.StatusCreated {
			return fmt.Errorf("订单当前状态不可取消")
		}

		var items []*order.Item
		if err := tx.Where("order_id = ?", o.ID).Find(&items).Error; err != nil {
			return err
		}
		for _, it := range items {
			if err := tx.Model(&product.Product{}).
				Where("id = ?", it.ProductID).
				UpdateColumn("stock", gorm.Expr("stock + ?", it.Quantity)).Error; err != nil {
				return err
			}
		}

		o.Status = order.StatusCancelled
		return tx.Save(&o).Error
	})
}

// Ship 发货：创建运单并推进订单状态
func (s *OrderService) Ship(ctx context.Context, orderID int64, carrier, trackingNumber string) (*shipping.Shipment, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, ErrOrderNotFound
	}
	if o.Status != order.StatusPaid {
		return nil, fmt.Errorf("订单未支付，不能发货")
	}

	methodID := int64(0)
	if o.ShippingMethodID != nil {
		methodID = *o.ShippingMethodID
	}
	now := time.Now()
	sh := &shipping.Shipment{
		OrderID:        o.ID,
		MethodID:       methodID,
		Carrier:        carrier,
		TrackingNumber: trackingNumber,
		Status:         shipping.StatusInTransit,
		ShippedAt:      &now,
	}
	if err := s.shipments.CreateShipment(ctx, sh); err != nil {
		return nil, err
	}
	if err := s.orders.UpdateStatus(ctx, o.ID, order.StatusShipped); err != nil {
		return nil, err
	}
	zap.L().Info("order shipped",
		zap.Int64("order_id", o.ID),
		zap.String("carrier", carrier),
		zap.String("tracking", trackingNumber))
	return sh, nil
}

// MarkDelivered 确认送达
func (s *OrderService) MarkDelivered(ctx context.Context, orderID int64) error {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return ErrOrderNotFound
	}
	if o.Status != order.StatusShipped {
		return ErrOrderNotShipped
	}

	sh, err := s.shipments.GetShipmentByOrder(ctx, orderID)
	if err == nil {
		now := time.Now()
		sh.Status = shipping.StatusDelivered
		sh.DeliveredAt = &now
		if err := s.shipments.UpdateShipment(ctx, sh); err != nil {
			return err
		}
	}
	return s.orders.UpdateStatus(ctx, orderID, order.StatusDelivered)
}

func (s *OrderService) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *OrderService) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	return s.orders.GetByNumber(ctx, number)
}

func (s *OrderService) ListByUser(ctx context.Context, userID int64) ([]*order.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// ListRecent 查询最新的订单记录
func (s *OrderService) ListRecent(ctx context.Context, limit int) ([]*order.Order, error) {
	return s.orders.ListRecent(ctx, limit)
}

func (s *OrderService) ListItems(ctx context.Context, orderID int64) ([]*order.Item, error) {
	return s.orders.ListItems(ctx, orderID)
}
