package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	radix "github.com/mediocregopher/radix/v3"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/seludoto/dolesecommerce/internal/config"
	"github.com/seludoto/dolesecommerce/internal/datamodels/promotion"
	"github.com/seludoto/dolesecommerce/internal/infra/mq"
)

const (
	redisFlashPathKey  = "flash:path:%d:%d"     // userID, fsProductID
	redisFlashStockKey = "flash:stock:%d"       // fsProductID
	redisFlashLimitKey = "flash:limit:%d:%d:%d" // userID, fsProductID, flashSaleID
)

// FlashSaleMessage 抢购队列消息，由 flashsale-worker 消费落库
type FlashSaleMessage struct {
	UserID             int64 `json:"user_id"`
	FlashSaleID        int64 `json:"flash_sale_id"`
	FlashSaleProductID int64 `json:"flash_sale_product_id"`
	ProductID          int64 `json:"product_id"`
	Quantity           int64 `json:"quantity"`
}

// FlashSaleService 限时抢购：动态地址、Redis 预扣库存、每人限购、MQ 削峰
type FlashSaleService struct {
	sales  promotion.FlashSaleRepository
	redis  radix.Client
	mqConn *amqp.Connection
	jwtCfg *config.JWTConfig
}

func NewFlashSaleService(
	sales promotion.FlashSaleRepository,
	redis radix.Client,
	mqConn *amqp.Connection,
	jwtCfg *config.JWTConfig,
) *FlashSaleService {
	return &FlashSaleService{
		sales:  sales,
		redis:  redis,
		mqConn: mqConn,
		jwtCfg: jwtCfg,
	}
}

// ListLive 当前进行中的活动
func (s *FlashSaleService) ListLive(ctx context.Context) ([]*promotion.FlashSale, error) {
	return s.sales.ListLive(ctx, time.Now())
}

// ListProducts 活动商品
func (s *FlashSaleService) ListProducts(ctx context.Context, flashSaleID int64) ([]*promotion.FlashSaleProduct, error) {
	return s.sales.ListProducts(ctx, flashSaleID)
}

// InitStock 把活动商品剩余库存同步到 Redis，活动上线或库存调整时调用
func (s *FlashSaleService) InitStock(ctx context.Context, fp *promotion.FlashSaleProduct) error {
	key := fmt.Sprintf(redisFlashStockKey, fp.ID)
	return s.redis.Do(radix.FlatCmd(nil, "SET", key, fp.Remaining()))
}

// GeneratePath 生成一次性抢购地址，5 分钟有效
func (s *FlashSaleService) GeneratePath(ctx context.Context, userID, fsProductID int64) (string, error) {
	raw := fmt.Sprintf("u%d-f%d-%d-%s", userID, fsProductID, time.Now().UnixNano(), s.jwtCfg.Secret)
	sum := md5.Sum([]byte(raw))
	path := hex.EncodeToString(sum[:])

	key := fmt.Sprintf(redisFlashPathKey, userID, fsProductID)
	err := s.redis.Do(radix.FlatCmd(nil, "SETEX", key, 300, path))
	return path, err
}

// Purchase 发起抢购：校验 path 与活动时间、每人限购计数、预减库存、写 MQ。
// 真正的落库（sold_count、抢购记录、订单）由 worker 异步完成。
func (s *FlashSaleService) Purchase(ctx context.Context, userID, fsProductID, qty int64, path string) error {
	GetMonitor().RecordFlashSaleRequest()
	if qty <= 0 {
		qty = 1
	}

	fp, err := s.sales.GetProduct(ctx, fsProductID)
	if err != nil {
		return fmt.Errorf("活动商品不存在: %v", err)
	}
	sale, err := s.sales.GetByID(ctx, fp.FlashSaleID)
	if err != nil {
		return fmt.Errorf("活动不存在: %v", err)
	}

	now := time.Now()
	if !sale.IsLiveAt(now) {
		GetMonitor().RecordFlashSaleError()
		if now.Before(sale.StartTime) {
			return fmt.Errorf("抢购尚未开始")
		}
		return fmt.Errorf("抢购已结束")
	}

	// 1. 校验动态地址
	pathKey := fmt.Sprintf(redisFlashPathKey, userID, fsProductID)
	var stored string
	if err := s.redis.Do(radix.Cmd(&stored, "GET", pathKey)); err != nil {
		return err
	}
	if stored == "" || stored != path {
		return fmt.Errorf("抢购地址无效或已过期")
	}

	// 2. 每人限购，Redis INCR 原子计数
	limit := sale.MaxQtyPerUser
	if limit <= 0 {
		limit = 1
	}
	limitKey := fmt.Sprintf(redisFlashLimitKey, userID, fsProductID, sale.ID)
	var used int64
	if err := s.redis.Do(radix.FlatCmd(&used, "INCRBY", limitKey, qty)); err != nil {
		return err
	}
	if used == qty {
		_ = s.redis.Do(radix.Cmd(nil, "EXPIRE", limitKey, "86400"))
	}
	if used > limit {
		_ = s.redis.Do(radix.FlatCmd(nil, "DECRBY", limitKey, qty))
		return fmt.Errorf("超过每人限购数量")
	}

	// 3. 预减库存
	stockKey := fmt.Sprintf(redisFlashStockKey, fsProductID)
	var left int64
	if err := s.redis.Do(radix.FlatCmd(&left, "DECRBY", stockKey, qty)); err != nil {
		GetMonitor().RecordRedisError()
		_ = s.redis.Do(radix.FlatCmd(nil, "DECRBY", limitKey, qty))
		return err
	}
	if left < 0 {
		// 回滚
		_ = s.redis.Do(radix.FlatCmd(nil, "INCRBY", stockKey, qty))
		_ = s.redis.Do(radix.FlatCmd(nil, "DECRBY", limitKey, qty))
		return fmt.Errorf("抢购库存不足")
	}

	// 4. 写 MQ
	body, err := json.Marshal(&FlashSaleMessage{
		UserID:             userID,
		FlashSaleID:        sale.ID,
		FlashSaleProductID: fsProductID,
		ProductID:          fp.ProductID,
		Quantity:           qty,
	})
	if err != nil {
		return err
	}
	if err := mq.DeclareAndPublish(ctx, s.mqConn, mq.FlashSaleQueue, body); err != nil {
		GetMonitor().RecordMQError()
		// 发布失败时回滚预扣，避免库存丢失
		_ = s.redis.Do(radix.FlatCmd(nil, "INCRBY", stockKey, qty))
		_ = s.redis.Do(radix.FlatCmd(nil, "DECRBY", limitKey, qty))
		return err
	}
	GetMonitor().RecordFlashSaleSuccess()
	return nil
}

// RollbackStock worker 落库失败时回补 Redis 预扣库存
func (s *FlashSaleService) RollbackStock(ctx context.Context, fsProductID, qty int64) error {
	stockKey := fmt.Sprintf(redisFlashStockKey, fsProductID)
	return s.redis.Do(radix.FlatCmd(nil, "INCRBY", stockKey, qty))
}

// SyncStock 将数据库剩余库存写回 Redis，stock-sync 定时对账使用
func (s *FlashSaleService) SyncStock(ctx context.Context) error {
	sales, err := s.sales.ListLive(ctx, time.Now())
	if err != nil {
		return err
	}
	for _, sale := range sales {
		products, err := s.sales.ListProducts(ctx, sale.ID)
		if err != nil {
			return err
		}
		for _, fp := range products {
			if err := s.InitStock(ctx, fp); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *FlashSaleService) GetByID(ctx context.Context, id int64) (*promotion.FlashSale, error) {
	return s.sales.GetByID(ctx, id)
}

func (s *FlashSaleService) ListAll(ctx context.Context) ([]*promotion.FlashSale, error) {
	return s.sales.ListAll(ctx)
}

func (s *FlashSaleService) Create(ctx context.Context, f *promotion.FlashSale) error {
	return s.sales.Create(ctx, f)
}

func (s *FlashSaleService) Update(ctx context.Context, f *promotion.FlashSale) error {
	return s.sales.Update(ctx, f)
}

func (s *FlashSaleService) Delete(ctx context.Context, id int64) error {
	return s.sales.Delete(ctx, id)
}

// AddProduct 把商品加入活动并初始化 Redis 库存
func (s *FlashSaleService) AddProduct(ctx context.Context, fp *promotion.FlashSaleProduct) error {
	if err := s.sales.AddProduct(ctx, fp); err != nil {
		return err
	}
	return s.InitStock(ctx, fp)
}

func (s *FlashSaleService) RemoveProduct(ctx context.Context, flashSaleID, productID int64) error {
	return s.sales.RemoveProduct(ctx, flashSaleID, productID)
}
