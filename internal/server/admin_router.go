package server

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kataras/iris/v12"

	"github.com/seludoto/dolesecommerce/internal/auth"
	"github.com/seludoto/dolesecommerce/internal/config"
	"github.com/seludoto/dolesecommerce/internal/datamodels/product"
	"github.com/seludoto/dolesecommerce/internal/datamodels/promotion"
	"github.com/seludoto/dolesecommerce/internal/datamodels/shipping"
	"github.com/seludoto/dolesecommerce/internal/gateway/mpesa"
	"github.com/seludoto/dolesecommerce/internal/gateway/pinetwork"
	"github.com/seludoto/dolesecommerce/internal/infra/mq"
	"github.com/seludoto/dolesecommerce/internal/infra/redis"
	"github.com/seludoto/dolesecommerce/internal/repository/mysql"
	"github.com/seludoto/dolesecommerce/internal/service"
)

// RegisterAdminRoutes 注册后台管理端的 HTTP 路由
// 端口通常是 8081，与前台 Web 服务分离。
func RegisterAdminRoutes(app *iris.Application, cfg *config.Config) {
	// 初始化基础设施
	db := mysql.Init(&cfg.MySQL)
	redisClient := redis.Init(&cfg.Redis)
	mqConn := mq.Init(&cfg.RabbitMQ)

	// 仓储
	userRepo := mysql.NewUserRepository(db)
	productRepo := mysql.NewProductRepository(db)
	categoryRepo := mysql.NewCategoryRepository(db)
	brandRepo := mysql.NewBrandRepository(db)
	promoRepo := mysql.NewPromotionRepository(db)
	flashRepo := mysql.NewFlashSaleRepository(db)
	orderRepo := mysql.NewOrderRepository(db)
	paymentRepo := mysql.NewPaymentRepository(db)
	reviewRepo := mysql.NewReviewRepository(db)
	shippingRepo := mysql.NewShippingRepository(db)
	storeRepo := mysql.NewStoreRepository(db)
	earningsRepo := mysql.NewEarningsRepository(db)
	statsRepo := mysql.NewAnalyticsRepository(db)

	darajaClient := mpesa.NewClient(&cfg.Mpesa)
	piClient := pinetwork.NewClient(&cfg.Pi)

	// 服务
	userSvc := service.NewUserService(userRepo, &cfg.JWT)
	catalogSvc := service.NewCatalogService(productRepo, categoryRepo, brandRepo, statsRepo)
	promoSvc := service.NewPromotionService(promoRepo, orderRepo)
	cartSvc := service.NewCartService(mysql.NewCartRepository(db), productRepo, promoSvc, &cfg.Checkout)
	flashSvc := service.NewFlashSaleService(flashRepo, redisClient, mqConn, &cfg.JWT)
	orderSvc := service.NewOrderService(db, orderRepo, cartSvc, promoSvc, shippingRepo)
	paymentSvc := service.NewPaymentService(paymentRepo, orderRepo, darajaClient, piClient, mqConn, &cfg.Mpesa, &cfg.Pi)
	payoutSvc := service.NewPayoutService(db, earningsRepo, storeRepo, paymentRepo, darajaClient)
	reviewSvc := service.NewReviewService(reviewRepo, orderRepo)
	storeSvc := service.NewStoreService(storeRepo)
	analyticsSvc := service.NewAnalyticsService(statsRepo)

	// 后台鉴权：JWT + 管理员标记
	mustAdmin := func(ctx iris.Context) {
		token := ctx.GetHeader("Authorization")
		if token == "" {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "missing token"})
			return
		}
		claims, err := auth.ParseToken(&cfg.JWT, token)
		if err != nil {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "invalid token"})
			return
		}
		if !userSvc.IsAdmin(ctx.Request().Context(), claims.UserID) {
			ctx.StopWithJSON(403, iris.Map{"code": 403, "msg": "需要管理员权限"})
			return
		}
		ctx.Values().Set("user_id", claims.UserID)
		ctx.Next()
	}

	app.Post("/api/login", func(ctx iris.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		token, err := userSvc.Login(ctx.Request().Context(), req.Username, req.Password)
		if err != nil {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{"token": token}})
	})

	api := app.Party("/api", mustAdmin)

	// ---------- 商品管理 ----------

	api.Get("/products", func(ctx iris.Context) {
		list, err := catalogSvc.ListAll(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Post("/products", func(ctx iris.Context) {
		var p product.Product
		if err := ctx.ReadJSON(&p); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if p.Name == "" || p.StoreID == 0 {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": "name 与 store_id 必填"})
			return
		}
		if err := catalogSvc.Create(ctx.Request().Context(), &p); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	api.Put("/products/{id:uint64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetUint64("id")
		p, err := catalogSvc.GetByID(ctx.Request().Context(), int64(id))
		if err != nil {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "商品不存在"})
			return
		}
		if err := ctx.ReadJSON(p); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		p.ID = int64(id)
		if err := catalogSvc.Update(ctx.Request().Context(), p); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	api.Delete("/products/{id:uint64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetUint64("id")
		if err := catalogSvc.Delete(ctx.Request().Context(), int64(id)); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "deleted"})
	})

	// 分类与品牌
	api.Post("/categories", func(ctx iris.Context) {
		var c product.Category
		if err := ctx.ReadJSON(&c); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := catalogSvc.CreateCategory(ctx.Request().Context(), &c); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": c})
	})

	api.Put("/categories/{id:uint64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetUint64("id")
		var c product.Category
		if err := ctx.ReadJSON(&c); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		c.ID = int64(id)
		if err := catalogSvc.UpdateCategory(ctx.Request().Context(), &c); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": c})
	})

	api.Delete("/categories/{id:uint64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetUint64("id")
		if err := catalogSvc.DeleteCategory(ctx.Request().Context(), int64(id)); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "deleted"})
	})

	api.Post("/brands", func(ctx iris.Context) {
		var b product.Brand
		if err := ctx.ReadJSON(&b); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := catalogSvc.CreateBrand(ctx.Request().Context(), &b); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": b})
	})

	api.Delete("/brands/{id:uint64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetUint64("id")
		if err := catalogSvc.DeleteBrand(ctx.Request().Context(), int64(id)); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "deleted"})
	})

	// ---------- 优惠码管理 ----------

	api.Get("/promo-codes", func(ctx iris.Context) {
		list, err := promoSvc.ListAll(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Post("/promo-codes", func(ctx iris.Context) {
		var req struct {
			Code              string `json:"code"`
			Description       string `json:"description"`
			DiscountType      string `json:"discount_type"`
			DiscountValue     int64  `json:"discount_value"`
			MinOrderAmount    int64  `json:"min_order_amount"`
			MaxDiscountAmount int64  `json:"max_discount_amount"`
			UsageLimit        int64  `json:"usage_limit"`
			UsagePerUser      int64  `json:"usage_per_user"`
			FirstTimeOnly     bool   `json:"first_time_only"`
			ValidFrom         string `json:"valid_from"`
			ValidUntil        string `json:"valid_until"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		from, err := parseAdminTime(req.ValidFrom)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": "invalid valid_from: " + err.Error()})
			return
		}
		until, err := parseAdminTime(req.ValidUntil)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": "invalid valid_until: " + err.Error()})
			return
		}
		p := &promotion.PromoCode{
			Code:              req.Code,
			Description:       req.Description,
			DiscountType:      req.DiscountType,
			DiscountValue:     req.DiscountValue,
			MinOrderAmount:    req.MinOrderAmount,
			MaxDiscountAmount: req.MaxDiscountAmount,
			UsageLimit:        req.UsageLimit,
			UsagePerUser:      req.UsagePerUser,
			FirstTimeOnly:     req.FirstTimeOnly,
			IsActive:          true,
			ValidFrom:         from,
			ValidUntil:        until,
		}
		if err := promoSvc.Create(ctx.Request().Context(), p); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	api.Put("/promo-codes/{id:uint64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetUint64("id")
		p, err := promoSvc.GetByID(ctx.Request().Context(), int64(id))
		if err != nil {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "优惠码不存在"})
			return
		}
		if err := ctx.ReadJSON(p); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		p.ID = int64(id)
		if err := promoSvc.Update(ctx.Request().Context(), p); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	api.Delete("/promo-codes/{id:uint64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetUint64("id")
		if err := promoSvc.Delete(ctx.Request().Context(), int64(id)); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "deleted"})
	})

	// ---------- 限时抢购管理 ----------

	api.Get("/flash-sales", func(ctx iris.Context) {
		list, err := flashSvc.ListAll(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Post("/flash-sales", func(ctx iris.Context) {
		var req struct {
			Name            string `json:"name"`
			Description     string `json:"description"`
			DiscountPercent int64  `json:"discount_percent"`
			StartTime       string `json:"start_time"`
			EndTime         string `json:"end_time"`
			MaxQtyPerUser   int64  `json:"max_qty_per_user"`
			Featured        bool   `json:"featured"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		start, err := parseAdminTime(req.StartTime)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": "invalid start_time: " + err.Error()})
			return
		}
		end, err := parseAdminTime(req.EndTime)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": "invalid end_time: " + err.Error()})
			return
		}
		if req.MaxQtyPerUser <= 0 {
			req.MaxQtyPerUser = 1
		}
		f := &promotion.FlashSale{
			Name:            req.Name,
			Description:     req.Description,
			DiscountPercent: req.DiscountPercent,
			StartTime:       start,
			EndTime:         end,
			IsActive:        true,
			MaxQtyPerUser:   req.MaxQtyPerUser,
			Featured:        req.Featured,
		}
		if err := flashSvc.Create(ctx.Request().Context(), f); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": f})
	})

	api.Post("/flash-sales/{id:uint64}/products", func(ctx iris.Context) {
		fid, _ := ctx.Params().GetUint64("id")
		var req struct {
			ProductID  int64 `json:"product_id"`
			SalePrice  int64 `json:"sale_price"`
			StockLimit int64 `json:"stock_limit"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if req.SalePrice <= 0 || req.StockLimit <= 0 {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": "sale_price 与 stock_limit 必须大于 0"})
			return
		}
		fp := &promotion.FlashSaleProduct{
			FlashSaleID: int64(fid),
			ProductID:   req.ProductID,
			SalePrice:   req.SalePrice,
			StockLimit:  req.StockLimit,
		}
		if err := flashSvc.AddProduct(ctx.Request().Context(), fp); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": fp})
	})

	api.Delete("/flash-sales/{id:uint64}/products/{pid:uint64}", func(ctx iris.Context) {
		fid, _ := ctx.Params().GetUint64("id")
		pid, _ := ctx.Params().GetUint64("pid")
		if err := flashSvc.RemoveProduct(ctx.Request().Context(), int64(fid), int64(pid)); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "deleted"})
	})

	// 活动上线前同步 Redis 库存
	api.Post("/flash-sales/{id:uint64}/start", func(ctx iris.Context) {
		fid, _ := ctx.Params().GetUint64("id")
		f, err := flashSvc.GetByID(ctx.Request().Context(), int64(fid))
		if err != nil {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "活动不存在"})
			return
		}
		f.IsActive = true
		if err := flashSvc.Update(ctx.Request().Context(), f); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		products, err := flashSvc.ListProducts(ctx.Request().Context(), f.ID)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		for _, fp := range products {
			if err := flashSvc.InitStock(ctx.Request().Context(), fp); err != nil {
				ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
				return
			}
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "activity started"})
	})

	api.Delete("/flash-sales/{id:uint64}", func(ctx iris.Context) {
		fid, _ := ctx.Params().GetUint64("id")
		if err := flashSvc.Delete(ctx.Request().Context(), int64(fid)); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "deleted"})
	})

	// ---------- 用户管理 ----------

	api.Get("/users", func(ctx iris.Context) {
		list, err := userRepo.ListAll(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// ---------- 订单管理 ----------

	api.Get("/orders", func(ctx iris.Context) {
		limit, err := strconv.Atoi(ctx.URLParamDefault("limit", "20"))
		if err != nil || limit <= 0 {
			limit = 20
		}
		list, err := orderSvc.ListRecent(ctx.Request().Context(), limit)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Post("/orders/{id:uint64}/ship", func(ctx iris.Context) {
		oid, _ := ctx.Params().GetUint64("id")
		var req struct {
			Carrier        string `json:"carrier"`
			TrackingNumber string `json:"tracking_number"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		sh, err := orderSvc.Ship(ctx.Request().Context(), int64(oid), req.Carrier, req.TrackingNumber)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": sh})
	})

	api.Post("/orders/{id:uint64}/delivered", func(ctx iris.Context) {
		oid, _ := ctx.Params().GetUint64("id")
		if err := orderSvc.MarkDelivered(ctx.Request().Context(), int64(oid)); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	// ---------- 支付管理 ----------

	api.Get("/payments", func(ctx iris.Context) {
		limit, err := strconv.Atoi(ctx.URLParamDefault("limit", "20"))
		if err != nil || limit <= 0 {
			limit = 20
		}
		list, err := paymentSvc.ListRecent(ctx.Request().Context(), limit)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Post("/payments/{id:uint64}/refund", func(ctx iris.Context) {
		pid, _ := ctx.Params().GetUint64("id")
		adminID := ctx.Values().GetInt64Default("user_id", 0)
		var req struct {
			Reason string `json:"reason"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := paymentSvc.Refund(ctx.Request().Context(), int64(pid), adminID, req.Reason); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "refunded"})
	})

	// ---------- 店铺管理 ----------

	api.Get("/stores", func(ctx iris.Context) {
		list, err := storeSvc.ListAll(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Get("/store-applications", func(ctx iris.Context) {
		status, err := strconv.Atoi(ctx.URLParamDefault("status", "0"))
		if err != nil {
			status = 0
		}
		list, err := storeSvc.ListApplications(ctx.Request().Context(), status)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Post("/store-applications/{id:uint64}/approve", func(ctx iris.Context) {
		aid, _ := ctx.Params().GetUint64("id")
		adminID := ctx.Values().GetInt64Default("user_id", 0)
		var req struct {
			Notes string `json:"notes"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		st, err := storeSvc.Approve(ctx.Request().Context(), int64(aid), adminID, req.Notes)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": st})
	})

	api.Post("/store-applications/{id:uint64}/reject", func(ctx iris.Context) {
		aid, _ := ctx.Params().GetUint64("id")
		adminID := ctx.Values().GetInt64Default("user_id", 0)
		var req struct {
			Reason string `json:"reason"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := storeSvc.Reject(ctx.Request().Context(), int64(aid), adminID, req.Reason); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "rejected"})
	})

	api.Post("/stores/{id:uint64}/suspend", func(ctx iris.Context) {
		sid, _ := ctx.Params().GetUint64("id")
		if err := storeSvc.Suspend(ctx.Request().Context(), int64(sid)); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "suspended"})
	})

	api.Post("/stores/{id:uint64}/reactivate", func(ctx iris.Context) {
		sid, _ := ctx.Params().GetUint64("id")
		if err := storeSvc.Reactivate(ctx.Request().Context(), int64(sid)); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "reactivated"})
	})

	api.Get("/stores/{id:uint64}/balance", func(ctx iris.Context) {
		sid, _ := ctx.Params().GetUint64("id")
		b, err := payoutSvc.GetBalance(ctx.Request().Context(), int64(sid))
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": b})
	})

	// ---------- 评价审核 ----------

	api.Post("/reviews/{id:uint64}/moderate", func(ctx iris.Context) {
		rid, _ := ctx.Params().GetUint64("id")
		var req struct {
			Approved bool `json:"approved"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := reviewSvc.Moderate(ctx.Request().Context(), int64(rid), req.Approved); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	// ---------- 配送方式管理 ----------

	api.Get("/shipping-methods", func(ctx iris.Context) {
		list, err := shippingRepo.ListMethods(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Post("/shipping-methods", func(ctx iris.Context) {
		var m shipping.Method
		if err := ctx.ReadJSON(&m); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := shippingRepo.CreateMethod(ctx.Request().Context(), &m); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": m})
	})

	api.Put("/shipping-methods/{id:uint64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetUint64("id")
		m, err := shippingRepo.GetMethod(ctx.Request().Context(), int64(id))
		if err != nil {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "配送方式不存在"})
			return
		}
		if err := ctx.ReadJSON(m); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		m.ID = int64(id)
		if err := shippingRepo.UpdateMethod(ctx.Request().Context(), m); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": m})
	})

	api.Delete("/shipping-methods/{id:uint64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetUint64("id")
		if err := shippingRepo.DeleteMethod(ctx.Request().Context(), int64(id)); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "deleted"})
	})

	// ---------- 统计与监控 ----------

	api.Get("/analytics/totals", func(ctx iris.Context) {
		days, err := strconv.Atoi(ctx.URLParamDefault("days", "30"))
		if err != nil {
			days = 30
		}
		t, err := analyticsSvc.PlatformTotals(ctx.Request().Context(), days)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": t})
	})

	api.Get("/analytics/top-products", func(ctx iris.Context) {
		days, err := strconv.Atoi(ctx.URLParamDefault("days", "30"))
		if err != nil {
			days = 30
		}
		limit, err := strconv.Atoi(ctx.URLParamDefault("limit", "10"))
		if err != nil {
			limit = 10
		}
		list, err := analyticsSvc.TopProducts(ctx.Request().Context(), days, limit)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Get("/analytics/stores/{id:uint64}", func(ctx iris.Context) {
		sid, _ := ctx.Params().GetUint64("id")
		days, err := strconv.Atoi(ctx.URLParamDefault("days", "30"))
		if err != nil {
			days = 30
		}
		series, err := analyticsSvc.StoreSeries(ctx.Request().Context(), int64(sid), days)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": series})
	})

	api.Get("/monitor", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"code": 0, "data": service.GetMonitor().GetStats()})
	})
}

// 支持多种常见时间格式，精确到秒
func parseAdminTime(v string) (time.Time, error) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time format: %s", v)
}
