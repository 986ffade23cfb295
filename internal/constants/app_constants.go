package constants

import "time"

const (
	// Application-level constants
	AdapterVersion = "1.0.0"

	// 检索参数默认值与边界
	DefaultTopK           = 5
	MaxTopK               = 20
	DefaultScoreThreshold = 0.5
	MinScoreThreshold     = 0.0
	MaxScoreThreshold     = 1.0

	// 速率限制默认值
	DefaultRateLimit  = 100 // 每个时间窗口的默认请求上限
	DefaultRateWindow = time.Hour

	// 动态用户知识库API Key模式
	// 格式: dify-user-{user_id} -> user_kb_{user_id}
	DefaultDynamicKeyPrefix        = "dify-user-"
	DefaultDynamicCollectionPrefix = "user_kb_"
)
