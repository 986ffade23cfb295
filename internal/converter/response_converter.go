package converter

import (
	"strings"
	"time"

	"dify-adapter-go/internal/types"
)

// metadataFieldMapping 元数据字段重命名表，只保留已知字段
var metadataFieldMapping = []struct {
	source string
	target string
}{
	{"source", "source"},
	{"source_filename", "filename"},
	{"file_name", "filename"},
	{"page", "page_number"},
	{"chunk_id", "chunk_index"},
	{"file_path", "file_path"},
	{"task_id", "task_id"},
}

// titleFields 标题提取的字段优先级链
var titleFields = []string{"source_filename", "file_name", "source"}

// unknownDocumentTitle 所有标题字段都缺失时的占位标题
const unknownDocumentTitle = "Unknown Document"

// InternalToDify 将内部搜索响应转换为Dify格式
// 逐条应用相似度阈值(等于阈值时保留)和元数据过滤，输出顺序跟随内部
// 搜索引擎返回的候选顺序，本层不做重排序。
func (c *Converter) InternalToDify(resp *types.SearchResponse, scoreThreshold float64, filter *types.MetadataFilter) types.RetrievalResponse {
	records := make([]types.RetrievalRecord, 0, len(resp.Results))

	for _, result := range resp.Results {
		// 1. 相似度阈值过滤
		if result.SimilarityScore < scoreThreshold {
			continue
		}

		// 2. 元数据条件过滤
		if filter != nil && !c.matchesMetadataFilter(result.Metadata, filter) {
			continue
		}

		// 3. 转换为Dify记录
		record, ok := c.convertSingleResult(result)
		if !ok {
			continue
		}
		records = append(records, record)
	}

	return types.RetrievalResponse{Records: records}
}

// convertSingleResult 转换单条搜索结果
// 内容修剪后为空的记录被丢弃(记录日志但不中断整个请求)。
func (c *Converter) convertSingleResult(result types.SearchResult) (types.RetrievalRecord, bool) {
	content := strings.TrimSpace(result.Content)
	if content == "" {
		c.logger.Printf("跳过内容为空的搜索结果")
		return types.RetrievalRecord{}, false
	}

	return types.RetrievalRecord{
		Content:  content,
		Score:    clampScore(result.SimilarityScore),
		Title:    extractTitle(result.Metadata),
		Metadata: c.normalizeMetadata(result.Metadata),
	}, true
}

// clampScore 将相似度分数截断到[0,1]区间
func clampScore(score float64) float64 {
	if score < 0.0 {
		return 0.0
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}

// extractTitle 按 source_filename > file_name > source 的优先级提取标题
func extractTitle(metadata map[string]interface{}) string {
	for _, field := range titleFields {
		if v, ok := metadata[field]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return unknownDocumentTitle
}

// normalizeMetadata 重命名并筛选已知的元数据字段，附加processed_at时间戳
func (c *Converter) normalizeMetadata(metadata map[string]interface{}) map[string]interface{} {
	clean := make(map[string]interface{}, len(metadataFieldMapping)+1)

	for _, mapping := range metadataFieldMapping {
		if v, ok := metadata[mapping.source]; ok {
			clean[mapping.target] = v
		}
	}

	clean["processed_at"] = c.now().Format(time.RFC3339)
	return clean
}
