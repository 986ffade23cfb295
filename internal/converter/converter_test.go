package converter

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dify-adapter-go/internal/types"
)

// newTestConverter 构造带固定时钟的转换器，避免processed_at时间戳不确定
func newTestConverter() *Converter {
	fixedTime := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	return NewConverter("bge-m3",
		WithClock(func() time.Time { return fixedTime }),
		WithLogger(log.New(io.Discard, "", 0)),
	)
}

// TestDifyToInternal 验证Dify请求到内部搜索参数的映射
func TestDifyToInternal(t *testing.T) {
	c := newTestConverter()

	req := &types.RetrievalRequest{
		KnowledgeID: "pdf_documents",
		Query:       "机器学习的应用场景",
		RetrievalSetting: types.RetrievalSetting{
			TopK: 10,
		},
	}

	params := c.DifyToInternal(req)
	assert.Equal(t, "机器学习的应用场景", params.Query)
	assert.Equal(t, "pdf_documents", params.CollectionName)
	assert.Equal(t, 10, params.K)
	assert.Equal(t, "bge-m3", params.EmbeddingModel, "嵌入模型应该来自转换器配置")
}

// TestBuildMetadataFilter 验证过滤器规范化
func TestBuildMetadataFilter(t *testing.T) {
	c := newTestConverter()

	assert.Nil(t, c.BuildMetadataFilter(nil), "未提供条件时应该返回nil")
	assert.Nil(t, c.BuildMetadataFilter(&types.MetadataFilter{}), "空条件列表应该返回nil")

	filter := c.BuildMetadataFilter(&types.MetadataFilter{
		Conditions: []types.MetadataCondition{
			{Key: "source", Operator: types.OpEquals, Value: "report.pdf"},
		},
	})
	require.NotNil(t, filter)
	assert.Equal(t, types.LogicalAnd, filter.LogicalOperator, "缺省逻辑操作符应该是and")
}

// TestInternalToDifyThresholdFilter 验证相似度阈值过滤保序且阈值为包含边界
func TestInternalToDifyThresholdFilter(t *testing.T) {
	c := newTestConverter()

	resp := &types.SearchResponse{
		Results: []types.SearchResult{
			{Content: "候选1", SimilarityScore: 0.9},
			{Content: "候选2", SimilarityScore: 0.6},
			{Content: "候选3", SimilarityScore: 0.5},
			{Content: "候选4", SimilarityScore: 0.3},
			{Content: "候选5", SimilarityScore: 0.1},
		},
	}

	out := c.InternalToDify(resp, 0.4, nil)
	require.Len(t, out.Records, 3, "阈值0.4应该恰好保留前3条")
	assert.Equal(t, "候选1", out.Records[0].Content)
	assert.Equal(t, "候选2", out.Records[1].Content)
	assert.Equal(t, "候选3", out.Records[2].Content)

	// 阈值是包含边界: 分数恰好等于阈值的候选保留
	out = c.InternalToDify(resp, 0.5, nil)
	require.Len(t, out.Records, 3)
	assert.Equal(t, 0.5, out.Records[2].Score)
}

// TestInternalToDifyScoreClamp 验证分数截断到[0,1]区间
func TestInternalToDifyScoreClamp(t *testing.T) {
	c := newTestConverter()

	resp := &types.SearchResponse{
		Results: []types.SearchResult{
			{Content: "超出上界", SimilarityScore: 1.2},
			{Content: "正常分数", SimilarityScore: 0.75},
		},
	}

	out := c.InternalToDify(resp, 0.0, nil)
	require.Len(t, out.Records, 2)
	assert.Equal(t, 1.0, out.Records[0].Score, "超过1.0的分数应该被截断为1.0")
	assert.Equal(t, 0.75, out.Records[1].Score)
}

// TestInternalToDifyDropsEmptyContent 验证空内容候选被静默丢弃
func TestInternalToDifyDropsEmptyContent(t *testing.T) {
	c := newTestConverter()

	resp := &types.SearchResponse{
		Results: []types.SearchResult{
			{Content: "   \n\t  ", SimilarityScore: 0.9},
			{Content: "有效内容", SimilarityScore: 0.8},
		},
	}

	out := c.InternalToDify(resp, 0.0, nil)
	require.Len(t, out.Records, 1, "修剪后为空的内容应该被丢弃")
	assert.Equal(t, "有效内容", out.Records[0].Content)
}

// TestExtractTitle 验证标题提取的字段优先级链
func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]interface{}
		want     string
	}{
		{
			name:     "source_filename优先",
			metadata: map[string]interface{}{"source_filename": "报告.pdf", "file_name": "b.pdf", "source": "c.pdf"},
			want:     "报告.pdf",
		},
		{
			name:     "回退到file_name",
			metadata: map[string]interface{}{"file_name": "b.pdf", "source": "c.pdf"},
			want:     "b.pdf",
		},
		{
			name:     "回退到source",
			metadata: map[string]interface{}{"source": "c.pdf"},
			want:     "c.pdf",
		},
		{
			name:     "空字符串视为缺失",
			metadata: map[string]interface{}{"source_filename": "", "source": "c.pdf"},
			want:     "c.pdf",
		},
		{
			name:     "全部缺失使用占位标题",
			metadata: map[string]interface{}{"page": float64(3)},
			want:     "Unknown Document",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractTitle(tt.metadata))
		})
	}
}

// TestNormalizeMetadata 验证元数据字段重命名、未知字段剔除和时间戳附加
func TestNormalizeMetadata(t *testing.T) {
	c := newTestConverter()

	clean := c.normalizeMetadata(map[string]interface{}{
		"source":          "docs/report.pdf",
		"source_filename": "report.pdf",
		"page":            float64(7),
		"chunk_id":        float64(2),
		"internal_vector": []float64{0.1, 0.2}, // 未知字段不应该泄露
	})

	assert.Equal(t, "docs/report.pdf", clean["source"])
	assert.Equal(t, "report.pdf", clean["filename"], "source_filename应该重命名为filename")
	assert.Equal(t, float64(7), clean["page_number"], "page应该重命名为page_number")
	assert.Equal(t, float64(2), clean["chunk_index"], "chunk_id应该重命名为chunk_index")
	assert.NotContains(t, clean, "internal_vector", "未映射的内部字段不应该出现在输出中")
	assert.Equal(t, "2025-06-15T10:30:00Z", clean["processed_at"])
}

// TestEvaluateCondition 验证各操作符的匹配语义
func TestEvaluateCondition(t *testing.T) {
	c := newTestConverter()

	tests := []struct {
		name      string
		metaValue interface{}
		operator  string
		condValue interface{}
		want      bool
	}{
		{"equals命中", "zh", types.OpEquals, "zh", true},
		{"equals未命中", "en", types.OpEquals, "zh", false},
		{"数字equals跨类型", float64(3), types.OpEquals, 3, true},
		{"not_equals", "en", types.OpNotEquals, "zh", true},
		{"contains大小写不敏感", "Annual-Report.PDF", types.OpContains, "report", true},
		{"contains未命中", "summary.txt", types.OpContains, "report", false},
		{"not_contains", "summary.txt", types.OpNotContains, "report", true},
		{"in列表命中", "zh", types.OpIn, []interface{}{"zh", "en"}, true},
		{"in列表未命中", "fr", types.OpIn, []interface{}{"zh", "en"}, false},
		{"in非列表退化为相等", "zh", types.OpIn, "zh", true},
		{"not_in", "fr", types.OpNotIn, []interface{}{"zh", "en"}, true},
		{"未知操作符按不匹配处理", "zh", "regex", "z.*", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.evaluateCondition(tt.metaValue, tt.operator, tt.condValue)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestMatchesMetadataFilter 验证and/or合并语义和缺失字段处理
func TestMatchesMetadataFilter(t *testing.T) {
	c := newTestConverter()
	metadata := map[string]interface{}{
		"source": "report.pdf",
		"lang":   "zh",
	}

	andFilter := &types.MetadataFilter{
		LogicalOperator: types.LogicalAnd,
		Conditions: []types.MetadataCondition{
			{Key: "source", Operator: types.OpContains, Value: "report"},
			{Key: "lang", Operator: types.OpEquals, Value: "en"},
		},
	}
	assert.False(t, c.matchesMetadataFilter(metadata, andFilter), "and要求全部条件成立")

	orFilter := &types.MetadataFilter{
		LogicalOperator: types.LogicalOr,
		Conditions:      andFilter.Conditions,
	}
	assert.True(t, c.matchesMetadataFilter(metadata, orFilter), "or只要任一条件成立")

	missingKeyFilter := &types.MetadataFilter{
		LogicalOperator: types.LogicalAnd,
		Conditions: []types.MetadataCondition{
			{Key: "author", Operator: types.OpEquals, Value: "anyone"},
		},
	}
	assert.False(t, c.matchesMetadataFilter(metadata, missingKeyFilter), "缺失字段视为条件不成立")

	assert.True(t, c.matchesMetadataFilter(metadata, &types.MetadataFilter{}), "空条件列表匹配所有结果")
}

// TestInternalToDifyWithMetadataFilter 验证阈值与元数据过滤的组合
func TestInternalToDifyWithMetadataFilter(t *testing.T) {
	c := newTestConverter()

	resp := &types.SearchResponse{
		Results: []types.SearchResult{
			{Content: "第一章", SimilarityScore: 0.9, Metadata: map[string]interface{}{"source": "report.pdf"}},
			{Content: "第二章", SimilarityScore: 0.8, Metadata: map[string]interface{}{"source": "notes.txt"}},
			{Content: "第三章", SimilarityScore: 0.2, Metadata: map[string]interface{}{"source": "report.pdf"}},
		},
	}
	filter := &types.MetadataFilter{
		LogicalOperator: types.LogicalAnd,
		Conditions: []types.MetadataCondition{
			{Key: "source", Operator: types.OpContains, Value: "report"},
		},
	}

	out := c.InternalToDify(resp, 0.5, filter)
	require.Len(t, out.Records, 1, "只有同时满足阈值和元数据条件的候选保留")
	assert.Equal(t, "第一章", out.Records[0].Content)
}
