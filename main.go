package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Olleigeigei/ObeliskUsdt/config"
	"github.com/Olleigeigei/ObeliskUsdt/internal/handler"
	"github.com/Olleigeigei/ObeliskUsdt/internal/middleware"
	"github.com/Olleigeigei/ObeliskUsdt/internal/model"
	"github.com/Olleigeigei/ObeliskUsdt/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库（使用配置的连接池参数）
	dbConfig := model.DBConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
	}
	if err := model.InitDBWithConfig(cfg.Database.DSN(), dbConfig); err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}

	// 初始化Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancelPing()
		log.Fatalf("Failed to connect redis: %v", err)
	}
	cancelPing()

	// 初始化服务
	locker := service.NewRedisLocker(redisClient)
	initServices(cfg, redisClient, locker)

	// 设置Gin模式
	gin.SetMode(gin.ReleaseMode)

	// 创建路由
	r := gin.Default()
	registerRoutes(r, cfg, locker)

	// 启动后台服务
	bgCtx, cancelBg := context.WithCancel(context.Background())
	startBackgroundServices(bgCtx)

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("ObeliskUSDT server starting on %s", addr)

	go func() {
		if err := r.Run(addr); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	cancelBg()
	service.GetScannerService().Stop()
	log.Println("Server exited")
}

// initServices 初始化服务依赖
func initServices(cfg *config.Config, redisClient *redis.Client, locker service.Locker) {
	settings := service.GetSettingsService()

	service.GetAmountService().Init(locker)
	service.GetOrderTokenService().Init(redisClient)
	service.GetOrderService().Init(service.GetAmountService(), settings)

	// 回调通知器，未配置URL时订单确认后直接完成
	var notifier service.ConfirmedHandler
	if cfg.Callback.URL != "" {
		secret := cfg.Callback.Secret
		if secret == "" {
			secret = cfg.Sign.Secret
		}
		notifier = service.NewWebhookNotifier(cfg.Callback.URL, secret, cfg.Callback.TimeoutSeconds)
	}

	ledger := service.NewTronClient(settings)
	service.GetScannerService().Init(ledger, service.GetAmountService(), settings, notifier)
}

// registerRoutes 注册路由
func registerRoutes(r *gin.Engine, cfg *config.Config, locker service.Locker) {
	r.Use(middleware.CORS())

	settings := service.GetSettingsService()
	paymentHandler := handler.NewPaymentHandler(service.GetOrderService(), service.GetOrderTokenService())
	adminHandler := handler.NewAdminHandler(cfg, settings, service.GetOrderService(), service.GetScannerService())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		status := "ok"
		if err := model.CheckDBHealth(); err != nil {
			status = "degraded"
		}
		c.JSON(200, gin.H{"status": status, "time": time.Now().Unix()})
	})

	// ============ 对外支付接口 ============
	api := r.Group("/api/payment")
	api.Use(middleware.RateLimit())
	{
		// 创建订单需要HMAC签名
		api.POST("/create", middleware.SignGuard(settings, locker), paymentHandler.CreatePayment)

		// 查询/取消/二维码通过订单令牌授权
		api.GET("/:orderNo/status", paymentHandler.GetPaymentStatus)
		api.POST("/:orderNo/cancel", paymentHandler.CancelPayment)
		api.GET("/:orderNo/qrcode", paymentHandler.GetPaymentQR)
	}

	// ============ 管理后台接口 ============
	admin := r.Group("/api/admin")
	{
		admin.POST("/login", middleware.LoginRateLimit(), adminHandler.Login)

		authed := admin.Group("")
		authed.Use(middleware.AdminAuth(cfg))
		{
			authed.POST("/password", adminHandler.ChangePassword)
			authed.GET("/dashboard", adminHandler.Dashboard)

			authed.GET("/wallets", adminHandler.ListWallets)
			authed.POST("/wallets", adminHandler.CreateWallet)
			authed.PUT("/wallets/:id", adminHandler.UpdateWallet)
			authed.DELETE("/wallets/:id", adminHandler.DeleteWallet)

			authed.GET("/orders", adminHandler.ListOrders)
			authed.GET("/orders/:id", adminHandler.GetOrder)
			authed.POST("/orders/:id/cancel", adminHandler.CancelOrder)
			authed.POST("/orders/:id/resend", adminHandler.ResendCallback)

			authed.GET("/settings", adminHandler.GetSettings)
			authed.POST("/settings", adminHandler.UpdateSetting)

			authed.POST("/ops/sweep-expired", adminHandler.SweepExpiredOrders)
			authed.POST("/ops/refresh-confirmations", adminHandler.RefreshConfirmations)
		}
	}
}

// startBackgroundServices 启动后台任务
func startBackgroundServices(ctx context.Context) {
	service.GetScannerService().Start(ctx)
	service.GetOrderService().StartExpireWorker(ctx)
}
