package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/api"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/cache"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/config"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/database"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/limiter"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/logger"
	mw "github.com/nazmul199512/ecommerce-order-management-system/internal/middleware"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/mq"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/repo"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/resp"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/service"
)

// AppDependencies 包含API服务的全部处理器与中间件依赖
type AppDependencies struct {
	UserHandler      *api.UserHandler
	ProductHandler   *api.ProductHandler
	OrderHandler     *api.OrderHandler
	InventoryHandler *api.InventoryHandler
	JWTService       service.JWTService
	Cache            cache.Cache
	RateLimiter      limiter.Limiter
}

// initConfigAndLogger 初始化配置和日志器
func initConfigAndLogger() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %v", err)
	}

	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, cfg.App.Name, cfg.App.Version)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %v", err)
	}

	return cfg, lg, nil
}

// initDatabase 初始化数据库连接并执行迁移。
// 迁移在HTTP服务器启动前完成，处理请求时表结构已就绪。
func initDatabase(cfg *config.Config, lg *zap.Logger) (*database.DB, error) {
	db, err := database.New(cfg, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	lg.Sugar().Infow("using migrations directory", "path", cfg.Migrations.Dir)
	if err := db.RunMigrations(cfg.Migrations.Dir); err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %v", err)
	}

	return db, nil
}

// initCache 初始化缓存实例。Redis不可用时退回进程内缓存。
func initCache(cfg *config.Config, lg *zap.Logger) cache.Cache {
	if !cfg.Cache.Enabled {
		lg.Sugar().Infow("cache disabled")
		return nil
	}

	switch cfg.Cache.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(&cfg.Redis)
		if err != nil {
			lg.Sugar().Warnw("failed to connect to redis, falling back to memory cache", "error", err)
			return cache.NewMemoryCache()
		}
		lg.Sugar().Infow("cache enabled", "type", "redis", "ttl", cfg.Cache.TTL)
		return redisCache
	case "memory":
		lg.Sugar().Infow("cache enabled", "type", "memory", "ttl", cfg.Cache.TTL)
		return cache.NewMemoryCache()
	default:
		lg.Sugar().Warnw("unknown cache type, using memory cache", "type", cfg.Cache.Type)
		return cache.NewMemoryCache()
	}
}

// initRateLimiter 初始化API限流器，未启用时返回nil
func initRateLimiter(cfg *config.Config, lg *zap.Logger) limiter.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lg.Sugar().Infow("rate limiter enabled",
		"rate", cfg.RateLimit.Rate, "burst", cfg.RateLimit.Burst, "window_sec", cfg.RateLimit.WindowSec)

	return limiter.NewTokenBucketLimiter(client, limiter.Config{
		Rate:      cfg.RateLimit.Rate,
		Burst:     cfg.RateLimit.Burst,
		WindowSec: cfg.RateLimit.WindowSec,
		KeyPrefix: "ratelimit",
	})
}

// initDependencies 组装依赖注入链：仓储 -> 服务 -> API处理器
func initDependencies(cfg *config.Config, db *database.DB, cacheInstance cache.Cache, producer *mq.Producer, lg *zap.Logger) *AppDependencies {
	userRepo := repo.NewUserRepository(db)
	productRepo := repo.NewProductRepository(db)
	if cacheInstance != nil {
		productRepo = repo.NewCachedProductRepository(productRepo, cacheInstance, cfg.Cache.TTL)
	}
	inventoryRepo := repo.NewInventoryRepository(db)
	orderRepo := repo.NewOrderRepository(db)
	importRepo := repo.NewImportRepository(db)
	outboxRepo := repo.NewOutboxRepository(db)

	userService := service.NewUserService(userRepo, lg)
	jwtService := service.NewJWTService(cfg)
	inventoryService := service.NewInventoryService(db, inventoryRepo, outboxRepo, lg, cfg.Worker.LowStockBatchSize)
	productService := service.NewProductService(db, productRepo, importRepo, inventoryRepo, inventoryService, lg)
	orderService := service.NewOrderService(db, orderRepo, productRepo, inventoryService, outboxRepo, lg, cfg.Order)

	return &AppDependencies{
		UserHandler:      api.NewUserHandler(userService, jwtService, lg),
		ProductHandler:   api.NewProductHandler(productService, producer, cfg.App.UploadDir, lg),
		OrderHandler:     api.NewOrderHandler(orderService, lg),
		InventoryHandler: api.NewInventoryHandler(inventoryService, lg),
		JWTService:       jwtService,
		Cache:            cacheInstance,
		RateLimiter:      initRateLimiter(cfg, lg),
	}
}

// setupRoutes 注册路由并构建中间件链
func setupRoutes(cfg *config.Config, deps *AppDependencies, lg *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	authMW := mw.Auth(deps.JWTService, lg)
	staffMW := mw.RequireStaff(lg)

	authed := func(h http.HandlerFunc) http.Handler {
		return authMW(http.HandlerFunc(h))
	}
	staff := func(h http.HandlerFunc) http.Handler {
		return authMW(staffMW(http.HandlerFunc(h)))
	}
	// 订单创建支持客户端幂等键重试
	createOrder := authed(deps.OrderHandler.CreateOrder)
	if deps.Cache != nil {
		idemMW := mw.Idempotency(deps.Cache, cfg.Idempotency.TTL, lg)
		createOrder = authMW(idemMW(http.HandlerFunc(deps.OrderHandler.CreateOrder)))
	}

	// 健康检查
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp.OK(w, map[string]string{"status": "ok", "version": cfg.App.Version}, "", "")
	})

	// 认证
	mux.HandleFunc("/api/v1/auth/register", deps.UserHandler.Register)
	mux.HandleFunc("/api/v1/auth/login", deps.UserHandler.Login)
	mux.HandleFunc("/api/v1/auth/refresh", deps.UserHandler.RefreshToken)
	mux.Handle("/api/v1/users/me", authed(deps.UserHandler.Me))

	// 商品目录。列表与详情公开，写操作限卖家与管理员。
	mux.HandleFunc("/api/v1/products", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			deps.ProductHandler.ListProducts(w, r)
		case http.MethodPost:
			staff(deps.ProductHandler.CreateProduct).ServeHTTP(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/products/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/v1/products/")
		switch {
		case rest == "import":
			staff(deps.ProductHandler.ImportProducts).ServeHTTP(w, r)
		case strings.HasPrefix(rest, "imports/"):
			staff(deps.ProductHandler.GetImport).ServeHTTP(w, r)
		case strings.HasSuffix(rest, "/variants"):
			switch r.Method {
			case http.MethodGet:
				deps.ProductHandler.ListVariants(w, r)
			case http.MethodPost:
				staff(deps.ProductHandler.CreateVariant).ServeHTTP(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		default:
			switch r.Method {
			case http.MethodGet:
				deps.ProductHandler.GetProduct(w, r)
			case http.MethodPut:
				staff(deps.ProductHandler.UpdateProduct).ServeHTTP(w, r)
			case http.MethodDelete:
				staff(deps.ProductHandler.DeleteProduct).ServeHTTP(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		}
	})

	// 订单
	mux.HandleFunc("/api/v1/orders", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			authed(deps.OrderHandler.ListOrders).ServeHTTP(w, r)
		case http.MethodPost:
			createOrder.ServeHTTP(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/orders/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/cancel") && r.Method == http.MethodPost:
			authed(deps.OrderHandler.CancelOrder).ServeHTTP(w, r)
		case strings.HasSuffix(r.URL.Path, "/status") && r.Method == http.MethodPut:
			staff(deps.OrderHandler.UpdateOrderStatus).ServeHTTP(w, r)
		case strings.HasSuffix(r.URL.Path, "/invoice") && r.Method == http.MethodGet:
			authed(deps.OrderHandler.GetInvoice).ServeHTTP(w, r)
		case r.Method == http.MethodGet:
			authed(deps.OrderHandler.GetOrder).ServeHTTP(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// 库存管理，限卖家与管理员
	mux.HandleFunc("/api/v1/inventory", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			staff(deps.InventoryHandler.GetInventory).ServeHTTP(w, r)
		case http.MethodPut:
			staff(deps.InventoryHandler.UpsertInventory).ServeHTTP(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.Handle("/api/v1/inventory/", staff(deps.InventoryHandler.ListInventoryLogs))

	// 构建中间件链：请求进入时执行顺序为 access log → CORS → timeout →
	// 限流 → recovery → request ID
	handler := mw.RequestID(mux)
	handler = mw.Recovery(lg)(handler)
	if deps.RateLimiter != nil {
		handler = limiter.Middleware(deps.RateLimiter, lg)(handler)
	}
	handler = mw.Timeout(cfg.App.RequestTimeout)(handler)
	handler = mw.CORS(cfg.CORS)(handler)
	handler = mw.AccessLog(lg)(handler)

	return handler
}

// startServer 启动服务器并处理优雅关闭
func startServer(cfg *config.Config, handler http.Handler, lg *zap.Logger) {
	addr := fmt.Sprintf(":%d", cfg.App.Port)
	lg.Sugar().Infow("server starting", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	select {
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			lg.Sugar().Fatalw("server error", "err", err)
		}
	case <-quit:
		lg.Sugar().Infow("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Sugar().Errorw("graceful shutdown failed", "err", err)
	}
	lg.Sugar().Infow("server stopped")
}

func main() {
	cfg, lg, err := initConfigAndLogger()
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer func() { _ = lg.Sync() }()

	db, err := initDatabase(cfg, lg)
	if err != nil {
		lg.Sugar().Fatalw("init database", "err", err)
	}
	defer db.Close()

	mqConn, err := mq.Dial(&cfg.MQ, lg)
	if err != nil {
		lg.Sugar().Fatalw("connect rabbitmq", "err", err)
	}
	defer mqConn.Close()
	producer := mq.NewProducer(mqConn, lg)
	defer producer.Close()

	cacheInstance := initCache(cfg, lg)
	if cacheInstance != nil {
		defer cacheInstance.Close()
	}

	deps := initDependencies(cfg, db, cacheInstance, producer, lg)
	handler := setupRoutes(cfg, deps, lg)
	startServer(cfg, handler, lg)
}
