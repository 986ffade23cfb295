package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	"github.com/spf13/pflag"

	"dify-adapter-go/internal/api/handler"
	"dify-adapter-go/internal/api/middleware"
	"dify-adapter-go/internal/api/router"
	"dify-adapter-go/internal/auth"
	"dify-adapter-go/internal/config"
	"dify-adapter-go/internal/converter"
	appCoreLogger "dify-adapter-go/internal/logger"
	"dify-adapter-go/internal/search"
	"dify-adapter-go/pkg/ratelimit"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	initLogger(cfg.Logger)
	glog.Info("配置加载成功")

	// 进程级可变状态: 限流窗口与统计计数器，全部显式注入，不使用包级单例
	limiter := ratelimit.NewSlidingWindow(
		ratelimit.WithWindow(time.Duration(cfg.RateLimit.WindowSeconds) * time.Second),
	)
	authStats := auth.NewStats()
	adapterStats := handler.NewAdapterStats()

	validator := auth.NewValidator(cfg, limiter, authStats)
	glog.Infof("认证校验器初始化成功: %d个静态Key, 动态Key前缀 %q", len(cfg.APIKeys), cfg.DynamicKeys.KeyPrefix)

	conv := converter.NewConverter(cfg.InternalSearch.EmbeddingModel)

	searchClient := search.NewClient(
		cfg.InternalSearch.BaseURL,
		search.WithTimeout(time.Duration(cfg.InternalSearch.TimeoutSeconds)*time.Second),
		search.WithHealthTimeout(time.Duration(cfg.InternalSearch.HealthTimeoutSeconds)*time.Second),
		search.WithHealthPath(cfg.InternalSearch.HealthPath),
	)
	glog.Infof("内部搜索客户端初始化成功: %s", cfg.InternalSearch.BaseURL)

	retrievalHandler := handler.NewRetrievalHandler(cfg, validator, conv, searchClient, adapterStats)
	adminHandler := handler.NewAdminHandler(cfg, searchClient, adapterStats, authStats)

	// 认证中间件失败时同步维护适配器统计，保证运维面板反映真实失败率
	authMiddleware := middleware.APIKeyAuth(validator, func() {
		adapterStats.RecordAttempt()
		adapterStats.RecordFailure()
	})

	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	)
	h.Use(middleware.Recovery(), middleware.AccessLog())

	router.RegisterRoutes(h, authMiddleware, retrievalHandler, adminHandler)
	glog.Info("HTTP路由注册成功")

	glog.Infof("Dify适配器启动中，监听地址: %s", cfg.Server.Address)

	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Fatalf("服务器关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

// initLogger 初始化zerolog并桥接到Hertz的hlog
func initLogger(cfg config.LoggerConfig) {
	appCoreLogger.Init(cfg)

	hertzCompatibleLogger := hertzadapter.From(appCoreLogger.Logger)
	glog.SetLogger(hertzCompatibleLogger)

	switch cfg.Level {
	case "debug":
		glog.SetLevel(glog.LevelDebug)
	case "warn":
		glog.SetLevel(glog.LevelWarn)
	case "error":
		glog.SetLevel(glog.LevelError)
	default:
		glog.SetLevel(glog.LevelInfo)
	}
}
