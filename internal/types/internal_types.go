package types

// SearchParams 内部向量搜索API的查询参数
type SearchParams struct {
	Query          string `json:"query"`
	CollectionName string `json:"collection_name"`
	K              int    `json:"k"`
	EmbeddingModel string `json:"embedding_model"`
}

// SearchResult 内部搜索API返回的单条候选结果
type SearchResult struct {
	Content         string                 `json:"content"`
	SimilarityScore float64                `json:"similarity_score"`
	Metadata        map[string]interface{} `json:"metadata"`
}

// SearchResponse 内部搜索API的完整响应
type SearchResponse struct {
	Results    []SearchResult `json:"results"`
	TotalCount int            `json:"total_count"`
	QueryTime  float64        `json:"query_time"`
}

// HealthCheckResponse 健康检查响应
type HealthCheckResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version"`
	Timestamp    string            `json:"timestamp"`
	Dependencies map[string]string `json:"dependencies"`
}

// AdapterStatsResponse 适配器请求统计
type AdapterStatsResponse struct {
	TotalRequests       int64    `json:"total_requests"`
	SuccessfulRequests  int64    `json:"successful_requests"`
	FailedRequests      int64    `json:"failed_requests"`
	AverageResponseTime float64  `json:"average_response_time"` // 秒
	ActiveCollections   []string `json:"active_collections"`
}

// AuthStatsSnapshot 认证统计快照
type AuthStatsSnapshot struct {
	TotalRequests   int64            `json:"total_requests"`
	SuccessfulAuths int64            `json:"successful_auths"`
	FailedAuths     int64            `json:"failed_auths"`
	RateLimitHits   int64            `json:"rate_limit_hits"`
	SuccessRate     float64          `json:"success_rate"`
	TopAPIKeys      map[string]int64 `json:"top_api_keys"`
}
