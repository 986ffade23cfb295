package handler

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"dify-adapter-go/internal/auth"
	"dify-adapter-go/internal/config"
	"dify-adapter-go/internal/constants"
	"dify-adapter-go/internal/search"
	"dify-adapter-go/internal/types"
)

// AdminHandler 提供健康检查和统计信息的只读端点
type AdminHandler struct {
	cfg          *config.Config
	searchClient *search.Client
	stats        *AdapterStats
	authStats    *auth.Stats
	logger       *log.Logger
}

// NewAdminHandler 创建运维端点处理器
func NewAdminHandler(cfg *config.Config, searchClient *search.Client, stats *AdapterStats, authStats *auth.Stats) *AdminHandler {
	return &AdminHandler{
		cfg:          cfg,
		searchClient: searchClient,
		stats:        stats,
		authStats:    authStats,
		logger:       log.New(os.Stdout, "[Admin] ", log.LstdFlags),
	}
}

// HandleHealthCheck 健康检查端点
// GET /health
// 对下游搜索服务做尽力而为的探测；下游不可达时状态标记为unreachable，
// 不影响适配器自身返回200。
func (h *AdminHandler) HandleHealthCheck(ctx context.Context, c *app.RequestContext) {
	searchStatus := h.searchClient.CheckHealth(ctx)

	c.JSON(consts.StatusOK, types.HealthCheckResponse{
		Status:    "healthy",
		Version:   constants.AdapterVersion,
		Timestamp: time.Now().Format(time.RFC3339),
		Dependencies: map[string]string{
			"internal_search": searchStatus,
			"adapter_service": "healthy",
		},
	})
}

// HandleStats 适配器统计端点
// GET /stats
func (h *AdminHandler) HandleStats(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, h.stats.Snapshot(h.cfg.ActiveCollections()))
}

// HandleAuthStats 认证统计端点，包含成功率和使用最多的Key
// GET /auth/stats
func (h *AdminHandler) HandleAuthStats(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, h.authStats.Snapshot())
}
