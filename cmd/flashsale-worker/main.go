package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/seludoto/dolesecommerce/internal/config"
	"github.com/seludoto/dolesecommerce/internal/datamodels/order"
	"github.com/seludoto/dolesecommerce/internal/datamodels/product"
	"github.com/seludoto/dolesecommerce/internal/datamodels/promotion"
	"github.com/seludoto/dolesecommerce/internal/infra/logger"
	"github.com/seludoto/dolesecommerce/internal/infra/mq"
	"github.com/seludoto/dolesecommerce/internal/infra/redis"
	"github.com/seludoto/dolesecommerce/internal/repository/mysql"
	"github.com/seludoto/dolesecommerce/internal/service"
)

func init() {
	// 初始化监控
	_ = service.GetMonitor()
}

// worker 持有落库所需的依赖
type worker struct {
	flash    promotion.FlashSaleRepository
	products product.Repository
	orders   order.Repository
	flashSvc *service.FlashSaleService
}

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Init(false)

	db := mysql.Init(&cfg.MySQL)
	mqConn := mq.Init(&cfg.RabbitMQ)
	redisClient := redis.Init(&cfg.Redis)

	flashRepo := mysql.NewFlashSaleRepository(db)
	w := &worker{
		flash:    flashRepo,
		products: mysql.NewProductRepository(db),
		orders:   mysql.NewOrderRepository(db),
		flashSvc: service.NewFlashSaleService(flashRepo, redisClient, mqConn, &cfg.JWT),
	}

	ch, err := mqConn.Channel()
	if err != nil {
		log.Fatalf("failed to open channel: %v", err)
	}
	defer ch.Close()

	if _, err = ch.QueueDeclare(mq.FlashSaleQueue, true, false, false, false, nil); err != nil {
		log.Fatalf("failed to declare queue: %v", err)
	}

	// 手动确认模式，落库成功才 Ack
	msgs, err := ch.Consume(mq.FlashSaleQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("failed to consume: %v", err)
	}

	log.Println("flash sale worker started, waiting for messages...")

	for d := range msgs {
		var m service.FlashSaleMessage
		if err := json.Unmarshal(d.Body, &m); err != nil {
			log.Printf("invalid message: %v", err)
			// 消息格式错误，拒绝并丢弃
			_ = d.Nack(false, false)
			continue
		}
		w.handleMessage(context.Background(), &m, d)
	}
}

// handleMessage 把一次 Redis 预扣成功的抢购落库：
// 带条件递增 sold_count，创建抢购订单与抢购记录。
// 数据库是最终权威，条件递增失败说明活动库存已售罄，回补 Redis 预扣。
func (w *worker) handleMessage(ctx context.Context, m *service.FlashSaleMessage, d amqp.Delivery) {
	ok, err := w.flash.IncrementSold(ctx, m.FlashSaleProductID, m.Quantity)
	if err != nil {
		log.Printf("increment sold failed: %v", err)
		service.GetMonitor().RecordDBError()
		service.GetMonitor().RecordWorkerFailed()
		// 数据库暂时不可用，重新入队稍后再试
		_ = d.Nack(false, true)
		return
	}
	if !ok {
		// 活动库存已售罄，预扣作废
		log.Printf("flash sale product %d sold out, dropping message", m.FlashSaleProductID)
		if err := w.flashSvc.RollbackStock(ctx, m.FlashSaleProductID, m.Quantity); err != nil {
			log.Printf("failed to rollback redis stock: %v", err)
		}
		service.GetMonitor().RecordWorkerFailed()
		_ = d.Nack(false, false)
		return
	}

	o, err := w.createOrder(ctx, m)
	if err != nil {
		log.Printf("create flash sale order failed: %v", err)
		service.GetMonitor().RecordDBError()
		service.GetMonitor().RecordWorkerFailed()
		// 回滚 sold_count 与 Redis 预扣，消息重新入队
		if err := w.flash.DecrementSold(ctx, m.FlashSaleProductID, m.Quantity); err != nil {
			log.Printf("failed to rollback sold count: %v", err)
		}
		if err := w.flashSvc.RollbackStock(ctx, m.FlashSaleProductID, m.Quantity); err != nil {
			log.Printf("failed to rollback redis stock: %v", err)
		}
		_ = d.Nack(false, true)
		return
	}

	rec := &promotion.FlashSalePurchase{
		UserID:             &m.UserID,
		FlashSaleProductID: m.FlashSaleProductID,
		OrderID:            o.ID,
		Quantity:           m.Quantity,
	}
	if err := w.flash.CreatePurchase(ctx, rec); err != nil {
		// 订单已生成，抢购记录写失败只记日志，不影响用户
		log.Printf("create purchase record failed: %v", err)
		service.GetMonitor().RecordDBError()
	}

	log.Printf("flash sale order created, order=%s user=%d product=%d qty=%d",
		o.Number, m.UserID, m.ProductID, m.Quantity)
	service.GetMonitor().RecordWorkerProcessed()

	if err := d.Ack(false); err != nil {
		log.Printf("failed to ack message: %v", err)
	}
}

// createOrder 以活动价生成待支付订单
func (w *worker) createOrder(ctx context.Context, m *service.FlashSaleMessage) (*order.Order, error) {
	fp, err := w.flash.GetProduct(ctx, m.FlashSaleProductID)
	if err != nil {
		return nil, fmt.Errorf("get flash sale product: %w", err)
	}
	p, err := w.products.GetByID(ctx, m.ProductID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}

	subtotal := fp.SalePrice * m.Quantity
	o := &order.Order{
		Number:      newFlashOrderNumber(),
		UserID:      m.UserID,
		Subtotal:    subtotal,
		TotalAmount: subtotal,
		Status:      order.StatusCreated,
	}
	items := []*order.Item{{
		ProductID: p.ID,
		StoreID:   p.StoreID,
		Name:      p.Name,
		UnitPrice: fp.SalePrice,
		Quantity:  m.Quantity,
		Subtotal:  subtotal,
	}}
	if err := w.orders.CreateWithItems(ctx, o, items); err != nil {
		return nil, err
	}
	return o, nil
}

// 抢购订单号前缀区别于普通订单
func newFlashOrderNumber() string {
	return fmt.Sprintf("DF%s%s",
		time.Now().Format("20060102"),
		strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12]))
}
