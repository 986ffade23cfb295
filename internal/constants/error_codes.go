package constants

// Dify外部知识库API错误码
// 这些错误码是对外契约的一部分，Dify侧依赖它们区分失败原因，不可随意改动
const (
	CodeMalformedAuthHeader = 1001 // Authorization头格式错误
	CodeInvalidAPIKey       = 1002 // API Key无效
	CodeCollectionNotFound  = 2001 // 知识库(Collection)不存在
	CodeCollectionForbidden = 2002 // 无权访问指定Collection
	CodeInvalidParams       = 3001 // 检索参数无效
	CodeRateLimited         = 4001 // 超过速率限制
	CodeInternalError       = 500  // 内部错误
	CodeServiceUnavailable  = 503  // 内部搜索服务不可达
	CodeUpstreamTimeout     = 504  // 内部搜索服务超时
)

// ErrorMessage 返回错误码对应的默认错误消息
func ErrorMessage(code int) string {
	switch code {
	case CodeMalformedAuthHeader:
		return "Invalid Authorization header format. Expected 'Bearer <api-key>' format."
	case CodeInvalidAPIKey:
		return "Authorization failed. Invalid API key."
	case CodeCollectionNotFound:
		return "The knowledge does not exist. Invalid collection name."
	case CodeCollectionForbidden:
		return "Collection access denied. Insufficient permissions."
	case CodeInvalidParams:
		return "Invalid retrieval parameters."
	case CodeRateLimited:
		return "Rate limit exceeded. Please try again later."
	case CodeServiceUnavailable:
		return "Internal search service unavailable"
	case CodeUpstreamTimeout:
		return "Search request timeout"
	default:
		return "Internal server error."
	}
}
