package router

import (
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"

	"dify-adapter-go/internal/api/handler"
)

// RegisterRoutes 注册适配器的全部路由
// 认证中间件只挂在/retrieval上；健康检查和统计端点不需要认证。
func RegisterRoutes(h *server.Hertz, authMiddleware app.HandlerFunc, retrievalHandler *handler.RetrievalHandler, adminHandler *handler.AdminHandler) {
	h.POST("/retrieval", authMiddleware, retrievalHandler.HandleRetrieval)

	h.GET("/health", adminHandler.HandleHealthCheck)
	h.GET("/stats", adminHandler.HandleStats)
	h.GET("/auth/stats", adminHandler.HandleAuthStats)
}
