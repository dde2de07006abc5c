package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/seludoto/dolesecommerce/internal/config"
	"github.com/seludoto/dolesecommerce/internal/datamodels/analytics"
	"github.com/seludoto/dolesecommerce/internal/datamodels/order"
	"github.com/seludoto/dolesecommerce/internal/datamodels/product"
	"github.com/seludoto/dolesecommerce/internal/datamodels/store"
	"github.com/seludoto/dolesecommerce/internal/gateway/mpesa"
	"github.com/seludoto/dolesecommerce/internal/infra/logger"
	"github.com/seludoto/dolesecommerce/internal/infra/mq"
	"github.com/seludoto/dolesecommerce/internal/repository/mysql"
	"github.com/seludoto/dolesecommerce/internal/service"
)

func init() {
	_ = service.GetMonitor()
}

// worker 支付完成后的落账：订单置已支付、销量累计、店铺分账、日报统计
type worker struct {
	orders    order.Repository
	products  product.Repository
	stores    store.Repository
	stats     analytics.Repository
	payoutSvc *service.PayoutService
}

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Init(false)

	db := mysql.Init(&cfg.MySQL)
	mqConn := mq.Init(&cfg.RabbitMQ)

	storeRepo := mysql.NewStoreRepository(db)
	w := &worker{
		orders:   mysql.NewOrderRepository(db),
		products: mysql.NewProductRepository(db),
		stores:   storeRepo,
		stats:    mysql.NewAnalyticsRepository(db),
		payoutSvc: service.NewPayoutService(
			db,
			mysql.NewEarningsRepository(db),
			storeRepo,
			mysql.NewPaymentRepository(db),
			mpesa.NewClient(&cfg.Mpesa),
		),
	}

	ch, err := mqConn.Channel()
	if err != nil {
		log.Fatalf("failed to open channel: %v", err)
	}
	defer ch.Close()

	if _, err = ch.QueueDeclare(mq.PaymentEventQueue, true, false, false, false, nil); err != nil {
		log.Fatalf("failed to declare queue: %v", err)
	}

	msgs, err := ch.Consume(mq.PaymentEventQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("failed to consume: %v", err)
	}

	log.Println("payment worker started, waiting for messages...")

	for d := range msgs {
		var ev service.PaymentEvent
		if err := json.Unmarshal(d.Body, &ev); err != nil {
			log.Printf("invalid message: %v", err)
			_ = d.Nack(false, false)
			continue
		}
		w.handleEvent(context.Background(), &ev, d)
	}
}

// handleEvent 按支付事件落账。MarkPaid 是幂等闸门：
// 只有把订单从已创建推进到已支付的那次消费才执行后续动作，
// 重复投递的事件直接确认丢弃。
func (w *worker) handleEvent(ctx context.Context, ev *service.PaymentEvent, d amqp.Delivery) {
	now := time.Now()
	changed, err := w.orders.MarkPaid(ctx, ev.OrderID, now)
	if err != nil {
		log.Printf("mark order %d paid failed: %v", ev.OrderID, err)
		service.GetMonitor().RecordDBError()
		service.GetMonitor().RecordWorkerFailed()
		_ = d.Nack(false, true)
		return
	}
	if !changed {
		log.Printf("order %d already paid, skipping side effects", ev.OrderID)
		_ = d.Ack(false)
		return
	}

	o, err := w.orders.GetByID(ctx, ev.OrderID)
	if err != nil {
		log.Printf("get order %d failed: %v", ev.OrderID, err)
		service.GetMonitor().RecordDBError()
		service.GetMonitor().RecordWorkerFailed()
		_ = d.Nack(false, true)
		return
	}
	items, err := w.orders.ListItems(ctx, o.ID)
	if err != nil {
		log.Printf("list items of order %d failed: %v", o.ID, err)
		service.GetMonitor().RecordDBError()
		service.GetMonitor().RecordWorkerFailed()
		_ = d.Nack(false, true)
		return
	}

	// 商品销量
	for _, it := range items {
		if err := w.products.AddSales(ctx, it.ProductID, it.Quantity); err != nil {
			log.Printf("add product %d sales failed: %v", it.ProductID, err)
			service.GetMonitor().RecordDBError()
		}
	}

	// 店铺销量营收与日报统计，按店铺聚合
	type storeAgg struct {
		units   int64
		revenue int64
	}
	byStore := make(map[int64]*storeAgg)
	for _, it := range items {
		agg := byStore[it.StoreID]
		if agg == nil {
			agg = &storeAgg{}
			byStore[it.StoreID] = agg
		}
		agg.units += it.Quantity
		agg.revenue += it.Subtotal
	}
	for storeID, agg := range byStore {
		if err := w.stores.AddSales(ctx, storeID, agg.units, agg.revenue); err != nil {
			log.Printf("add store %d sales failed: %v", storeID, err)
			service.GetMonitor().RecordDBError()
		}
		if err := w.stats.AddSale(ctx, storeID, now, 1, agg.units, agg.revenue); err != nil {
			log.Printf("add store %d daily stat failed: %v", storeID, err)
			service.GetMonitor().RecordDBError()
		}
	}

	// 卖家分账入账
	if err := w.payoutSvc.CreditOrderIncome(ctx, o, items); err != nil {
		log.Printf("credit order %d income failed: %v", o.ID, err)
		service.GetMonitor().RecordDBError()
	}

	log.Printf("payment settled, order=%s method=%s amount=%d", o.Number, ev.Method, ev.Amount)
	service.GetMonitor().RecordWorkerProcessed()

	if err := d.Ack(false); err != nil {
		log.Printf("failed to ack message: %v", err)
	}
}
