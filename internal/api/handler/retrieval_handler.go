package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"dify-adapter-go/internal/api/middleware"
	"dify-adapter-go/internal/auth"
	"dify-adapter-go/internal/config"
	"dify-adapter-go/internal/constants"
	"dify-adapter-go/internal/converter"
	"dify-adapter-go/internal/search"
	"dify-adapter-go/internal/types"
)

// RetrievalHandler Dify外部知识库检索接口的编排处理器
// 每个请求经过: 认证(中间件) -> Collection授权 -> 请求转换 -> 内部搜索 ->
// 响应过滤与转换，任一步失败都进入错误终态并按Dify契约返回。
type RetrievalHandler struct {
	cfg          *config.Config
	validator    *auth.Validator
	converter    *converter.Converter
	searchClient *search.Client
	stats        *AdapterStats
	logger       *log.Logger
}

// NewRetrievalHandler 创建检索处理器
func NewRetrievalHandler(cfg *config.Config, validator *auth.Validator, conv *converter.Converter, searchClient *search.Client, stats *AdapterStats) *RetrievalHandler {
	return &RetrievalHandler{
		cfg:          cfg,
		validator:    validator,
		converter:    conv,
		searchClient: searchClient,
		stats:        stats,
		logger:       log.New(os.Stdout, "[Retrieval] ", log.LstdFlags),
	}
}

// HandleRetrieval 处理Dify外部知识库检索请求
// POST /retrieval
func (h *RetrievalHandler) HandleRetrieval(ctx context.Context, c *app.RequestContext) {
	start := time.Now()
	h.stats.RecordAttempt()

	// 认证中间件已把解析好的Key配置放入上下文
	kcValue, exists := c.Get(middleware.APIKeyContextKey)
	if !exists {
		h.fail(c, "", consts.StatusInternalServerError, constants.CodeInternalError, "")
		return
	}
	kc := kcValue.(*auth.KeyConfig)

	// 1. 解析并校验请求体
	var req types.RetrievalRequest
	if err := json.Unmarshal(c.Request.Body(), &req); err != nil {
		h.fail(c, kc.Key, consts.StatusBadRequest, constants.CodeInvalidParams, "")
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		h.fail(c, kc.Key, consts.StatusBadRequest, constants.CodeInvalidParams,
			fmt.Sprintf("%s: %v", constants.ErrorMessage(constants.CodeInvalidParams), err))
		return
	}

	h.logger.Printf("处理检索请求: knowledge_id=%s, query=%s", req.KnowledgeID, truncateQuery(req.Query))

	// 2. Collection访问授权
	if err := h.validator.Authorize(kc, req.KnowledgeID); err != nil {
		h.fail(c, kc.Key, consts.StatusForbidden, constants.CodeCollectionForbidden, "")
		return
	}

	// 3. 转换请求并调用内部搜索API
	params := h.converter.DifyToInternal(&req)
	searchResp, err := h.searchClient.Search(ctx, params)
	if err != nil {
		status, code := mapSearchError(err)
		h.fail(c, kc.Key, status, code, searchErrorMessage(err, code))
		return
	}

	// 4. 过滤并转换响应
	filter := h.converter.BuildMetadataFilter(req.MetadataCondition)
	difyResp := h.converter.InternalToDify(searchResp, req.Threshold(), filter)

	// 5. 记录成功统计并返回
	elapsed := time.Since(start)
	h.stats.RecordSuccess(elapsed)
	h.validator.Stats().RecordRequest(kc.Key, true, false)

	c.Response.Header.Set("X-RateLimit-Limit", strconv.Itoa(kc.RateLimit))
	c.Response.Header.Set("X-RateLimit-Remaining", strconv.Itoa(h.validator.Remaining(kc)))

	h.logger.Printf("检索成功: 返回%d条记录, 耗时%.3f秒", len(difyResp.Records), elapsed.Seconds())
	c.JSON(consts.StatusOK, difyResp)
}

// fail 统一的失败出口: 更新统计并按Dify错误契约返回
func (h *RetrievalHandler) fail(c *app.RequestContext, apiKey string, status, code int, msg string) {
	h.stats.RecordFailure()
	if apiKey != "" {
		h.validator.Stats().RecordRequest(apiKey, false, false)
	}

	resp := types.NewErrorResponse(code)
	if msg != "" {
		resp.ErrorMsg = msg
	}
	c.JSON(status, resp)
}

// mapSearchError 将搜索客户端的类型化错误映射到HTTP状态码和Dify错误码
func mapSearchError(err error) (int, int) {
	var searchErr *search.Error
	if !errors.As(err, &searchErr) {
		return consts.StatusInternalServerError, constants.CodeInternalError
	}

	switch searchErr.Kind {
	case search.KindNotFound:
		return consts.StatusNotFound, constants.CodeCollectionNotFound
	case search.KindUnavailable:
		return consts.StatusServiceUnavailable, constants.CodeServiceUnavailable
	case search.KindTimeout:
		return consts.StatusGatewayTimeout, constants.CodeUpstreamTimeout
	default:
		return consts.StatusInternalServerError, constants.CodeInternalError
	}
}

// searchErrorMessage 内部错误时把上游状态带入错误消息，其余场景用默认消息
func searchErrorMessage(err error, code int) string {
	var searchErr *search.Error
	if code == constants.CodeInternalError && errors.As(err, &searchErr) && searchErr.Kind == search.KindInternal {
		return searchErr.Message
	}
	return ""
}

// truncateQuery 日志中只展示查询的前50个字符
func truncateQuery(query string) string {
	runes := []rune(query)
	if len(runes) <= 50 {
		return query
	}
	return string(runes[:50]) + "..."
}
