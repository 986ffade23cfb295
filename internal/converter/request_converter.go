package converter

import (
	"log"
	"os"
	"time"

	"dify-adapter-go/internal/types"
)

// Converter 负责Dify格式与内部搜索API格式之间的双向转换
type Converter struct {
	embeddingModel string
	logger         *log.Logger
	now            func() time.Time
}

// Option 定义配置选项函数
type Option func(*Converter)

// WithLogger 配置自定义日志记录器
func WithLogger(logger *log.Logger) Option {
	return func(c *Converter) {
		c.logger = logger
	}
}

// WithClock 配置自定义时钟函数，用于测试processed_at时间戳
func WithClock(now func() time.Time) Option {
	return func(c *Converter) {
		c.now = now
	}
}

// NewConverter 创建格式转换器，embeddingModel为附加到内部搜索参数的默认嵌入模型
func NewConverter(embeddingModel string, options ...Option) *Converter {
	c := &Converter{
		embeddingModel: embeddingModel,
		logger:         log.New(os.Stdout, "[Converter] ", log.LstdFlags),
		now:            time.Now,
	}

	for _, option := range options {
		option(c)
	}

	return c
}

// DifyToInternal 将Dify检索请求转换为内部搜索API参数
// 纯转换，无I/O；参数校验由请求模型层完成。
func (c *Converter) DifyToInternal(req *types.RetrievalRequest) types.SearchParams {
	return types.SearchParams{
		Query:          req.Query,
		CollectionName: req.KnowledgeID,
		K:              req.RetrievalSetting.TopK,
		EmbeddingModel: c.embeddingModel,
	}
}

// BuildMetadataFilter 规范化元数据过滤条件
// 未提供条件或条件列表为空时返回nil，表示不做元数据过滤。
func (c *Converter) BuildMetadataFilter(condition *types.MetadataFilter) *types.MetadataFilter {
	if condition == nil || len(condition.Conditions) == 0 {
		return nil
	}

	filter := &types.MetadataFilter{
		LogicalOperator: condition.LogicalOperator,
		Conditions:      condition.Conditions,
	}
	if filter.LogicalOperator == "" {
		filter.LogicalOperator = types.LogicalAnd
	}
	return filter
}
