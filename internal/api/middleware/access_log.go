package middleware

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"

	"dify-adapter-go/internal/constants"
	"dify-adapter-go/internal/types"
)

// RequestIDHeader 响应中携带请求ID的头
const RequestIDHeader = "X-Request-ID"

// AccessLog 记录每个请求的方法、路径、状态码和耗时，并为请求分配唯一ID
func AccessLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		requestID := uuid.NewString()
		c.Set("request_id", requestID)
		c.Response.Header.Set(RequestIDHeader, requestID)

		start := time.Now()
		hlog.CtxInfof(ctx, "Request: %s %s [%s]", string(c.Method()), string(c.Path()), requestID)

		c.Next(ctx)

		hlog.CtxInfof(ctx, "Response: status %d in %v [%s]",
			c.Response.StatusCode(), time.Since(start), requestID)
	}
}

// Recovery 捕获处理链中的panic，转换为通用500错误
// 绝不向响应体泄露内部堆栈信息。
func Recovery() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		defer func() {
			if r := recover(); r != nil {
				hlog.CtxErrorf(ctx, "panic recovered: %v", r)
				c.JSON(consts.StatusInternalServerError, types.NewErrorResponse(constants.CodeInternalError))
				c.Abort()
			}
		}()
		c.Next(ctx)
	}
}
