package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"dify-adapter-go/internal/types"
)

// ErrorKind 搜索客户端错误的封闭分类
// 在客户端边界做一次分类，网关层只需按Kind映射到HTTP状态码和Dify错误码。
type ErrorKind int

const (
	KindNotFound    ErrorKind = iota // 上游404，Collection不存在
	KindInternal                     // 上游非200/404或响应不可解析
	KindUnavailable                  // 连接被拒绝或不可达
	KindTimeout                      // 请求超时
)

// Error 搜索调用的类型化错误
type Error struct {
	Kind       ErrorKind
	StatusCode int // 上游HTTP状态码，传输层错误时为0
	Message    string
}

// Error 实现error接口
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("internal search error (kind=%d, status=%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("internal search error (kind=%d): %s", e.Kind, e.Message)
}

// Client 内部向量搜索服务的HTTP客户端
type Client struct {
	baseURL       string
	healthPath    string
	httpClient    *http.Client
	healthTimeout time.Duration
	logger        *log.Logger
}

// ClientOption 定义配置选项函数
type ClientOption func(*Client)

// WithTimeout 配置搜索请求超时时间
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHealthTimeout 配置健康探测超时时间
func WithHealthTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.healthTimeout = timeout
	}
}

// WithHealthPath 配置健康检查路径
func WithHealthPath(path string) ClientOption {
	return func(c *Client) {
		c.healthPath = path
	}
}

// WithClientLogger 配置自定义日志记录器
func WithClientLogger(logger *log.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient 创建内部搜索客户端，默认30秒搜索超时、5秒健康探测超时
func NewClient(baseURL string, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		healthPath: "/health",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		healthTimeout: 5 * time.Second,
		logger:        log.New(os.Stdout, "[SearchClient] ", log.LstdFlags),
	}

	for _, option := range options {
		option(c)
	}

	return c
}

// Search 调用内部搜索API
// 空结果列表的200响应是正常返回而非错误，调用方可以据此区分
// "没有匹配"与"搜索失败"。
func (c *Client) Search(ctx context.Context, params types.SearchParams) (*types.SearchResponse, error) {
	query := url.Values{}
	query.Set("query", params.Query)
	query.Set("collection_name", params.CollectionName)
	query.Set("k", strconv.Itoa(params.K))
	query.Set("embedding_model", params.EmbeddingModel)

	searchURL := fmt.Sprintf("%s/search?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindInternal, Message: fmt.Sprintf("构造搜索请求失败: %v", err)}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.logger.Printf("Collection不存在: %s", params.CollectionName)
		return nil, &Error{
			Kind:       KindNotFound,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("collection not found: %s", params.CollectionName),
		}
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Printf("内部搜索API返回异常状态: %d", resp.StatusCode)
		return nil, &Error{
			Kind:       KindInternal,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Internal search API error: %d", resp.StatusCode),
		}
	}

	var searchResp types.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, &Error{
			Kind:       KindInternal,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("解析搜索响应失败: %v", err),
		}
	}

	return &searchResp, nil
}

// CheckHealth 对内部搜索服务做尽力而为的健康探测
// 返回 "healthy" / "unhealthy" / "unreachable"，探测失败不影响适配器自身的健康状态。
func (c *Client) CheckHealth(ctx context.Context) string {
	probeCtx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.baseURL+c.healthPath, nil)
	if err != nil {
		return "unreachable"
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "unreachable"
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return "healthy"
	}
	return "unhealthy"
}

// classifyTransportError 将传输层错误归入封闭的错误分类
func classifyTransportError(err error) *Error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &Error{Kind: KindTimeout, Message: "Search request timeout"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "Search request timeout"}
	}
	return &Error{Kind: KindUnavailable, Message: "Internal search service unavailable"}
}
