package main

import (
	"context"
	"log"
	"time"

	"github.com/seludoto/dolesecommerce/internal/config"
	"github.com/seludoto/dolesecommerce/internal/infra/logger"
	"github.com/seludoto/dolesecommerce/internal/infra/mq"
	"github.com/seludoto/dolesecommerce/internal/infra/redis"
	"github.com/seludoto/dolesecommerce/internal/repository/mysql"
	"github.com/seludoto/dolesecommerce/internal/service"
)

// 每5分钟以数据库为准修正一次 Redis 预扣库存
const checkInterval = 5 * time.Minute

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Init(false)

	db := mysql.Init(&cfg.MySQL)
	redisClient := redis.Init(&cfg.Redis)
	mqConn := mq.Init(&cfg.RabbitMQ)

	flashSvc := service.NewFlashSaleService(
		mysql.NewFlashSaleRepository(db), redisClient, mqConn, &cfg.JWT)

	log.Println("stock sync service started")
	log.Printf("check interval: %v", checkInterval)

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	syncOnce(flashSvc)
	for range ticker.C {
		syncOnce(flashSvc)
	}
}

func syncOnce(flashSvc *service.FlashSaleService) {
	if err := flashSvc.SyncStock(context.Background()); err != nil {
		log.Printf("stock sync failed: %v", err)
		return
	}
	log.Println("stock sync completed")
}
