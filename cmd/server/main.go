package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/chargegazer/internal/analytics"
	"github.com/langchou/chargegazer/internal/api/geocoder"
	"github.com/langchou/chargegazer/internal/api/handlers"
	"github.com/langchou/chargegazer/internal/config"
	"github.com/langchou/chargegazer/internal/repository"
	"github.com/langchou/chargegazer/internal/service"
	"github.com/langchou/chargegazer/pkg/ws"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting ChargeGazer",
		zap.String("port", cfg.ServerPort),
		zap.String("version", handlers.Version))

	// 创建 context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := analytics.New(cfg.AnalyticsOptions())
	if err != nil {
		logger.Fatal("Invalid analytics options", zap.Error(err))
	}

	// 车队存储：配置了数据库时使用 PostgreSQL，否则保存在内存中
	var fleetStore service.FleetStore
	if cfg.DatabaseURL != "" {
		db, err := repository.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to connect database", zap.Error(err))
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		logger.Info("Database migrated successfully")

		fleetStore = repository.NewFleetRepository(db)
	} else {
		logger.Warn("DATABASE_URL not set, fleet statistics are kept in memory")
		fleetStore = service.NewMemoryFleetStore()
	}
	fleetService := service.NewFleetService(fleetStore, engine, logger)

	// 创建 WebSocket Hub
	wsHub := ws.NewHub(logger)
	go wsHub.Run(ctx)

	// 创建工作区服务
	workspaceService := service.NewWorkspaceService(
		logger,
		fleetService,
		wsHub,
		cfg.WorkspaceTTL,
		cfg.WorkspaceCleanupInterval,
	)
	wsHub.SetInitDataProvider(workspaceService.InitData)
	workspaceService.Start(ctx)

	// 逆地理编码（可选）
	var namer handlers.LocationNamer
	if cfg.GeocoderEnabled {
		geo := geocoder.NewClient(cfg.AmapAPIKey, logger)
		logger.Info("Geocoder enabled", zap.String("provider", geo.GetProvider()))
		namer = geo
	}

	// 创建 HTTP 处理器
	handler := handlers.NewHandler(
		cfg,
		logger,
		engine,
		workspaceService,
		fleetService,
		namer,
		wsHub,
	)

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(cors.New(corsConfig()))

	// 注册路由
	handler.RegisterRoutes(router)

	// 启动 HTTP 服务器
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", server.Addr))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 停止服务
	workspaceService.Stop()

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// 关闭 WebSocket 连接
	cancel()

	logger.Info("Server exited")
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}

// corsConfig 工作区依赖 cookie，因此不能使用通配符来源
func corsConfig() cors.Config {
	return cors.Config{
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-Workspace-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}

// requestLogger 请求日志
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
