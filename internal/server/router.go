package server

import (
	"strconv"
	"time"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/sessions"

	"github.com/seludoto/dolesecommerce/internal/auth"
	"github.com/seludoto/dolesecommerce/internal/config"
	"github.com/seludoto/dolesecommerce/internal/datamodels/store"
	"github.com/seludoto/dolesecommerce/internal/gateway/mpesa"
	"github.com/seludoto/dolesecommerce/internal/gateway/pinetwork"
	"github.com/seludoto/dolesecommerce/internal/infra/mq"
	"github.com/seludoto/dolesecommerce/internal/infra/redis"
	"github.com/seludoto/dolesecommerce/internal/middleware"
	"github.com/seludoto/dolesecommerce/internal/repository/mysql"
	"github.com/seludoto/dolesecommerce/internal/service"
)

// RegisterRoutes 注册前台商城的 HTTP 路由
func RegisterRoutes(app *iris.Application, cfg *config.Config) {
	// 初始化基础设施
	db := mysql.Init(&cfg.MySQL)
	redisClient := redis.Init(&cfg.Redis)
	mqConn := mq.Init(&cfg.RabbitMQ)

	// 匿名购物车依赖会话
	sess := sessions.New(sessions.Config{
		Cookie:  "doles_session",
		Expires: 30 * 24 * time.Hour,
	})
	app.Use(sess.Handler())

	// 仓储
	userRepo := mysql.NewUserRepository(db)
	productRepo := mysql.NewProductRepository(db)
	categoryRepo := mysql.NewCategoryRepository(db)
	brandRepo := mysql.NewBrandRepository(db)
	cartRepo := mysql.NewCartRepository(db)
	promoRepo := mysql.NewPromotionRepository(db)
	flashRepo := mysql.NewFlashSaleRepository(db)
	orderRepo := mysql.NewOrderRepository(db)
	paymentRepo := mysql.NewPaymentRepository(db)
	reviewRepo := mysql.NewReviewRepository(db)
	shippingRepo := mysql.NewShippingRepository(db)
	storeRepo := mysql.NewStoreRepository(db)
	earningsRepo := mysql.NewEarningsRepository(db)
	statsRepo := mysql.NewAnalyticsRepository(db)

	// 网关
	darajaClient := mpesa.NewClient(&cfg.Mpesa)
	piClient := pinetwork.NewClient(&cfg.Pi)

	// 服务
	userSvc := service.NewUserService(userRepo, &cfg.JWT)
	catalogSvc := service.NewCatalogService(productRepo, categoryRepo, brandRepo, statsRepo)
	promoSvc := service.NewPromotionService(promoRepo, orderRepo)
	cartSvc := service.NewCartService(cartRepo, productRepo, promoSvc, &cfg.Checkout)
	flashSvc := service.NewFlashSaleService(flashRepo, redisClient, mqConn, &cfg.JWT)
	orderSvc := service.NewOrderService(db, orderRepo, cartSvc, promoSvc, shippingRepo)
	paymentSvc := service.NewPaymentService(paymentRepo, orderRepo, darajaClient, piClient, mqConn, &cfg.Mpesa, &cfg.Pi)
	payoutSvc := service.NewPayoutService(db, earningsRepo, storeRepo, paymentRepo, darajaClient)
	reviewSvc := service.NewReviewService(reviewRepo, orderRepo)
	storeSvc := service.NewStoreService(storeRepo)
	analyticsSvc := service.NewAnalyticsService(statsRepo)

	// JWT 解析结果缓存（一致性哈希分桶）
	ring := auth.NewConsistentHashRing(cfg.Auth.Nodes, cfg.Auth.HashReplicas)
	tokenCache := auth.NewTokenCache(redisClient, ring,
		time.Duration(cfg.Auth.TokenCacheTTLSeconds)*time.Second)

	// tryAuth 尽力解析 token，匿名请求放行
	tryAuth := func(ctx iris.Context) {
		token := ctx.GetHeader("Authorization")
		if token == "" {
			ctx.Next()
			return
		}
		if claims, hit, _ := tokenCache.Get(ctx.Request().Context(), token); hit {
			ctx.Values().Set("user_id", claims.UserID)
			ctx.Values().Set("username", claims.Username)
			ctx.Next()
			return
		}
		claims, err := auth.ParseToken(&cfg.JWT, token)
		if err != nil {
			ctx.Next()
			return
		}
		_ = tokenCache.Set(ctx.Request().Context(), token, claims)
		ctx.Values().Set("user_id", claims.UserID)
		ctx.Values().Set("username", claims.Username)
		ctx.Next()
	}

	// mustAuth 需要登录
	mustAuth := func(ctx iris.Context) {
		if ctx.Values().GetInt64Default("user_id", 0) == 0 {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "missing or invalid token"})
			return
		}
		ctx.Next()
	}

	// currentCart 解析当前请求归属的购物车：登录用户按 userID，匿名按会话
	currentCart := func(ctx iris.Context) (int64, string) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		if userID != 0 {
			return userID, ""
		}
		return 0, sess.Start(ctx).ID()
	}

	api := app.Party("/api", tryAuth)

	// 健康检查
	api.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	// ---------- 用户 ----------

	api.Post("/register", func(ctx iris.Context) {
		var req struct {
			Username string `json:"username"`
			Email    string `json:"email"`
			Phone    string `json:"phone"`
			Password string `json:"password"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		u, err := userSvc.Register(ctx.Request().Context(), req.Username, req.Email, req.Phone, req.Password)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{"id": u.ID, "username": u.Username}})
	})

	api.Post("/login", func(ctx iris.Context) {
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
		// 登录后把匿名购物车并入用户购物车
		claims, err := auth.ParseToken(&cfg.JWT, token)
		if err == nil {
			sessionKey := sess.Start(ctx).ID()
			if err := cartSvc.Merge(ctx.Request().Context(), sessionKey, claims.UserID); err != nil {
				ctx.Application().Logger().Warnf("merge cart on login failed: %v", err)
			}
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{"token": token}})
	})

	// ---------- 商品目录 ----------

	api.Get("/products", func(ctx iris.Context) {
		rctx := ctx.Request().Context()
		if kw := ctx.URLParam("q"); kw != "" {
			list, err := catalogSvc.Search(rctx, kw)
			if err != nil {
				ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
				return
			}
			ctx.JSON(iris.Map{"code": 0, "data": list})
			return
		}
		if cid, err := ctx.URLParamInt64("category_id"); err == nil && cid > 0 {
			list, err := catalogSvc.ListByCategory(rctx, cid)
			if err != nil {
				ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
				return
			}
			ctx.JSON(iris.Map{"code": 0, "data": list})
			return
		}
		list, err := catalogSvc.ListOnline(rctx)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Get("/products/{id:uint64}", func(ctx iris.Context) {
		pid, _ := ctx.Params().GetUint64("id")
		p, err := catalogSvc.View(ctx.Request().Context(), int64(pid))
		if err != nil {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "商品不存在"})
			return
		}
		summary, _ := reviewSvc.Summary(ctx.Request().Context(), p.ID)
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{
			"product":          p,
			"discount_percent": p.DiscountPercent(),
			"stock_status":     p.StockStatus(),
			"rating":           summary,
		}})
	})

	api.Get("/categories", func(ctx iris.Context) {
		list, err := catalogSvc.ListCategories(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Get("/brands", func(ctx iris.Context) {
		list, err := catalogSvc.ListBrands(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// ---------- 店铺 ----------

	api.Get("/stores", func(ctx iris.Context) {
		list, err := storeSvc.ListActive(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Get("/stores/{id:uint64}", func(ctx iris.Context) {
		sid, _ := ctx.Params().GetUint64("id")
		st, err := storeSvc.GetByID(ctx.Request().Context(), int64(sid))
		if err != nil {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "店铺不存在"})
			return
		}
		products, _ := catalogSvc.ListByStore(ctx.Request().Context(), st.ID)
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{
			"store":    st,
			"products": products,
		}})
	})

	api.Get("/stores/{id:uint64}/reviews", func(ctx iris.Context) {
		sid, _ := ctx.Params().GetUint64("id")
		list, err := storeSvc.ListReviews(ctx.Request().Context(), int64(sid))
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// ---------- 商品评价 ----------

	api.Get("/products/{id:uint64}/reviews", func(ctx iris.Context) {
		pid, _ := ctx.Params().GetUint64("id")
		list, err := reviewSvc.ListByProduct(ctx.Request().Context(), int64(pid))
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// ---------- 限时抢购（公开部分） ----------

	api.Get("/flash-sales", func(ctx iris.Context) {
		list, err := flashSvc.ListLive(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Get("/flash-sales/{id:uint64}/products", func(ctx iris.Context) {
		fid, _ := ctx.Params().GetUint64("id")
		list, err := flashSvc.ListProducts(ctx.Request().Context(), int64(fid))
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// ---------- 配送方式 ----------

	api.Get("/shipping-methods", func(ctx iris.Context) {
		list, err := shippingRepo.ListActiveMethods(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// ---------- 购物车（登录或匿名会话均可） ----------

	api.Get("/cart", func(ctx iris.Context) {
		userID, sessionKey := currentCart(ctx)
		c, err := cartSvc.GetOrCreate(ctx.Request().Context(), userID, sessionKey)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		totals, err := cartSvc.ComputeTotals(ctx.Request().Context(), c)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": totals})
	})

	api.Post("/cart/items", func(ctx iris.Context) {
		var req struct {
			ProductID int64  `json:"product_id"`
			Quantity  int64  `json:"quantity"`
			Size      string `json:"size"`
			Color     string `json:"color"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		userID, sessionKey := currentCart(ctx)
		c, err := cartSvc.GetOrCreate(ctx.Request().Context(), userID, sessionKey)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		it, err := cartSvc.AddItem(ctx.Request().Context(), c, req.ProductID, req.Quantity, req.Size, req.Color)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": it})
	})

	api.Put("/cart/items/{id:uint64}", func(ctx iris.Context) {
		itemID, _ := ctx.Params().GetUint64("id")
		var req struct {
			Quantity int64 `json:"quantity"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := cartSvc.UpdateQuantity(ctx.Request().Context(), int64(itemID), req.Quantity); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	api.Delete("/cart/items/{id:uint64}", func(ctx iris.Context) {
		itemID, _ := ctx.Params().GetUint64("id")
		if err := cartSvc.RemoveItem(ctx.Request().Context(), int64(itemID)); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	api.Post("/cart/promo", func(ctx iris.Context) {
		var req struct {
			Code string `json:"code"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		userID, sessionKey := currentCart(ctx)
		c, err := cartSvc.GetOrCreate(ctx.Request().Context(), userID, sessionKey)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ap, err := cartSvc.ApplyPromo(ctx.Request().Context(), c, req.Code)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": ap})
	})

	api.Delete("/cart/promo/{promoId:uint64}", func(ctx iris.Context) {
		promoID, _ := ctx.Params().GetUint64("promoId")
		userID, sessionKey := currentCart(ctx)
		c, err := cartSvc.GetOrCreate(ctx.Request().Context(), userID, sessionKey)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		if err := cartSvc.RemovePromo(ctx.Request().Context(), c.ID, int64(promoID)); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	// ---------- 需要登录的接口 ----------

	authAPI := api.Party("/", mustAuth)

	// 结算下单
	authAPI.Post("/checkout", func(ctx iris.Context) {
		var req struct {
			ShippingName     string `json:"shipping_name"`
			ShippingPhone    string `json:"shipping_phone"`
			ShippingAddress  string `json:"shipping_address"`
			ShippingCity     string `json:"shipping_city"`
			ShippingCountry  string `json:"shipping_country"`
			ShippingMethodID *int64 `json:"shipping_method_id"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		o, err := orderSvc.Checkout(ctx.Request().Context(), &service.CheckoutInput{
			UserID:           ctx.Values().GetInt64Default("user_id", 0),
			ShippingName:     req.ShippingName,
			ShippingPhone:    req.ShippingPhone,
			ShippingAddress:  req.ShippingAddress,
			ShippingCity:     req.ShippingCity,
			ShippingCountry:  req.ShippingCountry,
			ShippingMethodID: req.ShippingMethodID,
		})
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": o})
	})

	// 订单
	authAPI.Get("/orders", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		list, err := orderSvc.ListByUser(ctx.Request().Context(), userID)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	authAPI.Get("/orders/{id:uint64}", func(ctx iris.Context) {
		oid, _ := ctx.Params().GetUint64("id")
		userID := ctx.Values().GetInt64Default("user_id", 0)
		o, err := orderSvc.GetByID(ctx.Request().Context(), int64(oid))
		if err != nil || o.UserID != userID {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "订单不存在"})
			return
		}
		items, _ := orderSvc.ListItems(ctx.Request().Context(), o.ID)
		pay, _ := paymentSvc.GetByOrderID(ctx.Request().Context(), o.ID)
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{
			"order":   o,
			"items":   items,
			"payment": pay,
		}})
	})

	authAPI.Post("/orders/{id:uint64}/cancel", func(ctx iris.Context) {
		oid, _ := ctx.Params().GetUint64("id")
		userID := ctx.Values().GetInt64Default("user_id", 0)
		if err := orderSvc.Cancel(ctx.Request().Context(), userID, int64(oid)); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	// 支付
	authAPI.Post("/orders/{id:uint64}/pay/mpesa", middleware.PaymentRateLimit(), func(ctx iris.Context) {
		oid, _ := ctx.Params().GetUint64("id")
		var req struct {
			Phone string `json:"phone"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		p, err := paymentSvc.InitiateMpesa(ctx.Request().Context(), int64(oid), req.Phone)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	authAPI.Post("/orders/{id:uint64}/pay/pi", middleware.PaymentRateLimit(), func(ctx iris.Context) {
		oid, _ := ctx.Params().GetUint64("id")
		var req struct {
			PiPaymentID string `json:"pi_payment_id"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		p, err := paymentSvc.InitiatePi(ctx.Request().Context(), int64(oid), req.PiPaymentID)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	// 限时抢购
	authAPI.Get("/flash-sales/products/{id:uint64}/path", func(ctx iris.Context) {
		fpid, _ := ctx.Params().GetUint64("id")
		userID := ctx.Values().GetInt64Default("user_id", 0)
		path, err := flashSvc.GeneratePath(ctx.Request().Context(), userID, int64(fpid))
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{"path": path}})
	})

	authAPI.Post("/flash-sales/products/{id:uint64}/{path:string}", middleware.FlashSaleRateLimit(), func(ctx iris.Context) {
		fpid, _ := ctx.Params().GetUint64("id")
		path := ctx.Params().Get("path")
		userID := ctx.Values().GetInt64Default("user_id", 0)
		qty := int64(1)
		if v, err := ctx.URLParamInt64("qty"); err == nil && v > 0 {
			qty = v
		}
		if err := flashSvc.Purchase(ctx.Request().Context(), userID, int64(fpid), qty, path); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "queued"})
	})

	// 评价
	authAPI.Post("/products/{id:uint64}/reviews", func(ctx iris.Context) {
		pid, _ := ctx.Params().GetUint64("id")
		userID := ctx.Values().GetInt64Default("user_id", 0)
		var req struct {
			Rating  int    `json:"rating"`
			Title   string `json:"title"`
			Comment string `json:"comment"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		r, err := reviewSvc.Create(ctx.Request().Context(), userID, int64(pid), req.Rating, req.Title, req.Comment)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": r})
	})

	authAPI.Post("/reviews/{id:uint64}/helpful", func(ctx iris.Context) {
		rid, _ := ctx.Params().GetUint64("id")
		if err := reviewSvc.MarkHelpful(ctx.Request().Context(), int64(rid)); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	authAPI.Post("/stores/{id:uint64}/reviews", func(ctx iris.Context) {
		sid, _ := ctx.Params().GetUint64("id")
		userID := ctx.Values().GetInt64Default("user_id", 0)
		var req struct {
			Rating  int    `json:"rating"`
			Title   string `json:"title"`
			Comment string `json:"comment"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		rv, err := storeSvc.Review(ctx.Request().Context(), int64(sid), userID, req.Rating, req.Title, req.Comment)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": rv})
	})

	// ---------- 商家入驻与账务 ----------

	authAPI.Post("/store/apply", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		var req struct {
			StoreName    string `json:"store_name"`
			Description  string `json:"description"`
			BusinessType string `json:"business_type"`
			ContactEmail string `json:"contact_email"`
			ContactPhone string `json:"contact_phone"`
			Address      string `json:"address"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		a := &store.Application{
			UserID:       userID,
			StoreName:    req.StoreName,
			Description:  req.Description,
			BusinessType: req.BusinessType,
			ContactEmail: req.ContactEmail,
			ContactPhone: req.ContactPhone,
			Address:      req.Address,
		}
		if err := storeSvc.Apply(ctx.Request().Context(), a); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": a})
	})

	// requireStore 店铺归属校验
	requireStore := func(ctx iris.Context) (*store.Store, bool) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		st, err := storeSvc.GetByOwner(ctx.Request().Context(), userID)
		if err != nil {
			ctx.StopWithJSON(403, iris.Map{"code": 403, "msg": "没有店铺"})
			return nil, false
		}
		return st, true
	}

	authAPI.Get("/store/balance", func(ctx iris.Context) {
		st, ok := requireStore(ctx)
		if !ok {
			return
		}
		b, err := payoutSvc.GetBalance(ctx.Request().Context(), st.ID)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": b})
	})

	authAPI.Get("/store/entries", func(ctx iris.Context) {
		st, ok := requireStore(ctx)
		if !ok {
			return
		}
		limit, err := strconv.Atoi(ctx.URLParamDefault("limit", "50"))
		if err != nil || limit <= 0 {
			limit = 50
		}
		list, err := payoutSvc.ListEntries(ctx.Request().Context(), st.ID, limit)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	authAPI.Post("/store/payout", func(ctx iris.Context) {
		st, ok := requireStore(ctx)
		if !ok {
			return
		}
		var req struct {
			Amount int64 `json:"amount"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		t, err := payoutSvc.RequestPayout(ctx.Request().Context(), st.ID, req.Amount)
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": t})
	})

	authAPI.Get("/store/analytics", func(ctx iris.Context) {
		st, ok := requireStore(ctx)
		if !ok {
			return
		}
		days, err := strconv.Atoi(ctx.URLParamDefault("days", "30"))
		if err != nil {
			days = 30
		}
		series, err := analyticsSvc.StoreSeries(ctx.Request().Context(), st.ID, days)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": series})
	})

	// ---------- 网关回调 ----------

	callbacks := app.Party("/callbacks")

	// M-Pesa STK 回调，HMAC 签名在服务层校验
	callbacks.Post("/mpesa/stk", func(ctx iris.Context) {
		body, err := ctx.GetBody()
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": "bad body"})
			return
		}
		sig := ctx.GetHeader("X-Signature")
		if err := paymentSvc.HandleSTKCallback(ctx.Request().Context(), body, sig); err != nil {
			if err == service.ErrBadSignature {
				ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "invalid signature"})
				return
			}
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"ResultCode": 0, "ResultDesc": "Accepted"})
	})

	callbacks.Post("/mpesa/b2c/result", func(ctx iris.Context) {
		body, err := ctx.GetBody()
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": "bad body"})
			return
		}
		sig := ctx.GetHeader("X-Signature")
		if err := payoutSvc.HandleB2CResult(ctx.Request().Context(), body, sig, cfg.Mpesa.WebhookSecret); err != nil {
			if err == service.ErrBadSignature {
				ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "invalid signature"})
				return
			}
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"ResultCode": 0, "ResultDesc": "Accepted"})
	})

	callbacks.Post("/mpesa/b2c/timeout", func(ctx iris.Context) {
		body, err := ctx.GetBody()
		if err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": "bad body"})
			return
		}
		sig := ctx.GetHeader("X-Signature")
		if err := payoutSvc.HandleB2CTimeout(ctx.Request().Context(), body, sig, cfg.Mpesa.WebhookSecret); err != nil {
			if err == service.ErrBadSignature {
				ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "invalid signature"})
				return
			}
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"ResultCode": 0, "ResultDesc": "Accepted"})
	})

	// Pi 支付两阶段回调，由商城前端的 Pi SDK 触发
	callbacks.Post("/pi/approve", func(ctx iris.Context) {
		var req struct {
			PaymentID string `json:"payment_id"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := paymentSvc.ApprovePi(ctx.Request().Context(), req.PaymentID); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "approved"})
	})

	callbacks.Post("/pi/complete", func(ctx iris.Context) {
		var req struct {
			PaymentID string `json:"payment_id"`
			TxID      string `json:"txid"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := paymentSvc.CompletePi(ctx.Request().Context(), req.PaymentID, req.TxID); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "completed"})
	})

	callbacks.Post("/pi/cancel", func(ctx iris.Context) {
		var req struct {
			PaymentID string `json:"payment_id"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := paymentSvc.CancelPi(ctx.Request().Context(), req.PaymentID); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "cancelled"})
	})
}
