package types

import (
	"fmt"
	"strings"

	"dify-adapter-go/internal/constants"
)

// 逻辑操作符
const (
	LogicalAnd = "and"
	LogicalOr  = "or"
)

// 元数据条件操作符（封闭集合）
const (
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpIn          = "in"
	OpNotIn       = "not_in"
)

// MetadataCondition 单个元数据过滤条件
type MetadataCondition struct {
	Key      string      `json:"key"`      // 元数据字段名
	Operator string      `json:"operator"` // 条件操作符
	Value    interface{} `json:"value"`    // 条件值，可以是字符串、数字或列表
}

// MetadataFilter 元数据过滤器，conditions为空时匹配所有结果
type MetadataFilter struct {
	LogicalOperator string              `json:"logical_operator"` // and / or
	Conditions      []MetadataCondition `json:"conditions"`
}

// RetrievalSetting 检索设置
// score_threshold使用指针以区分"未提供"(使用默认值0.5)与显式的0.0
type RetrievalSetting struct {
	TopK           int      `json:"top_k"`
	ScoreThreshold *float64 `json:"score_threshold"`
}

// RetrievalRequest Dify外部知识库检索请求
type RetrievalRequest struct {
	KnowledgeID       string           `json:"knowledge_id"` // 对应内部Collection名称
	Query             string           `json:"query"`
	RetrievalSetting  RetrievalSetting `json:"retrieval_setting"`
	MetadataCondition *MetadataFilter  `json:"metadata_condition,omitempty"`
}

// Normalize 修剪输入并填充默认值，必须在Validate之前调用
func (r *RetrievalRequest) Normalize() {
	r.KnowledgeID = strings.TrimSpace(r.KnowledgeID)
	r.Query = strings.TrimSpace(r.Query)
	if r.RetrievalSetting.TopK == 0 {
		r.RetrievalSetting.TopK = constants.DefaultTopK
	}
	if r.RetrievalSetting.ScoreThreshold == nil {
		threshold := float64(constants.DefaultScoreThreshold)
		r.RetrievalSetting.ScoreThreshold = &threshold
	}
	if r.MetadataCondition != nil && r.MetadataCondition.LogicalOperator == "" {
		r.MetadataCondition.LogicalOperator = LogicalAnd
	}
}

// Validate 校验请求参数是否在有效范围内
func (r *RetrievalRequest) Validate() error {
	if r.KnowledgeID == "" {
		return fmt.Errorf("knowledge_id cannot be empty")
	}
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if r.RetrievalSetting.TopK < 1 || r.RetrievalSetting.TopK > constants.MaxTopK {
		return fmt.Errorf("top_k must be between 1 and %d", constants.MaxTopK)
	}
	threshold := r.Threshold()
	if threshold < constants.MinScoreThreshold || threshold > constants.MaxScoreThreshold {
		return fmt.Errorf("score_threshold must be between %.1f and %.1f",
			constants.MinScoreThreshold, constants.MaxScoreThreshold)
	}
	return nil
}

// Threshold 返回生效的相似度阈值
func (r *RetrievalRequest) Threshold() float64 {
	if r.RetrievalSetting.ScoreThreshold == nil {
		return constants.DefaultScoreThreshold
	}
	return *r.RetrievalSetting.ScoreThreshold
}

// RetrievalRecord Dify检索结果记录
type RetrievalRecord struct {
	Content  string                 `json:"content"`
	Score    float64                `json:"score"` // 始终在[0,1]区间内
	Title    string                 `json:"title"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// RetrievalResponse Dify外部知识库检索响应
type RetrievalResponse struct {
	Records []RetrievalRecord `json:"records"`
}

// ErrorResponse Dify错误响应，所有非200响应均使用此结构
type ErrorResponse struct {
	ErrorCode int    `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// NewErrorResponse 按错误码构造带默认消息的错误响应
func NewErrorResponse(code int) ErrorResponse {
	return ErrorResponse{
		ErrorCode: code,
		ErrorMsg:  constants.ErrorMessage(code),
	}
}
