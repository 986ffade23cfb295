package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"

	"dify-adapter-go/internal/auth"
	"dify-adapter-go/internal/constants"
	"dify-adapter-go/internal/types"
)

// APIKeyContextKey 认证通过后存放*auth.KeyConfig的上下文键
const APIKeyContextKey = "api_key_config"

// APIKeyAuth 构造基于Bearer Token的认证中间件
// 认证流程: 提取Bearer Token -> 解析Key配置(静态表或动态派生) -> 速率限制检查。
// 失败时按Dify契约返回 1001(格式错误)/1002(无效Key)/4001(限流, HTTP 429)。
// onFailure在每次认证失败时被调用，用于维护网关的请求统计。
func APIKeyAuth(validator *auth.Validator, onFailure func()) app.HandlerFunc {
	return keyauth.New(
		keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
		keyauth.WithContextKey("api_key_token"),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, token string) (bool, error) {
			kc, err := validator.Resolve(token)
			if err != nil {
				return false, err
			}
			if err := validator.CheckRateLimit(kc); err != nil {
				return false, err
			}
			c.Set(APIKeyContextKey, kc)
			return true, nil
		}),
		keyauth.WithErrorHandler(func(ctx context.Context, c *app.RequestContext, err error) {
			status, code := classifyAuthError(err)
			recordAuthFailure(validator.Stats(), c, err)
			if onFailure != nil {
				onFailure()
			}
			c.AbortWithStatusJSON(status, types.NewErrorResponse(code))
		}),
	)
}

// classifyAuthError 将认证错误映射到HTTP状态码和Dify错误码
func classifyAuthError(err error) (int, int) {
	switch {
	case errors.Is(err, keyauth.ErrMissingOrMalformedAPIKey):
		return consts.StatusForbidden, constants.CodeMalformedAuthHeader
	case errors.Is(err, auth.ErrRateLimited):
		return consts.StatusTooManyRequests, constants.CodeRateLimited
	case errors.Is(err, auth.ErrUnknownKey):
		return consts.StatusForbidden, constants.CodeInvalidAPIKey
	default:
		return consts.StatusForbidden, constants.CodeInvalidAPIKey
	}
}

// recordAuthFailure 把认证失败计入认证统计
// 限流命中时单独归类，便于观察限流触发频率；失败尽可能归因到具体的Key。
func recordAuthFailure(stats *auth.Stats, c *app.RequestContext, err error) {
	if stats == nil {
		return
	}
	stats.RecordRequest(bearerToken(c), false, errors.Is(err, auth.ErrRateLimited))
}

// bearerToken 从Authorization头中提取Bearer Token，格式无效时返回空串
func bearerToken(c *app.RequestContext) string {
	header := string(c.GetHeader("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
