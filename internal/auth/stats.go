package auth

import (
	"sort"
	"sync"

	"dify-adapter-go/internal/types"
)

// topKeyCount Snapshot中top_api_keys保留的条目数
const topKeyCount = 5

// Stats 认证统计信息
// 作为显式注入的状态对象由网关持有，不使用包级单例，便于测试时构造独立实例。
type Stats struct {
	mutex           sync.Mutex
	totalRequests   int64
	successfulAuths int64
	failedAuths     int64
	rateLimitHits   int64
	keyUsage        map[string]int64
}

// NewStats 创建认证统计对象
func NewStats() *Stats {
	return &Stats{
		keyUsage: make(map[string]int64),
	}
}

// RecordRequest 记录一次认证结果
// success为true时计入成功并累计该Key的使用次数；rateLimited为true时计入限流命中。
func (s *Stats) RecordRequest(apiKey string, success bool, rateLimited bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.totalRequests++

	switch {
	case rateLimited:
		s.rateLimitHits++
	case success && apiKey != "":
		s.successfulAuths++
		s.keyUsage[apiKey]++
	default:
		s.failedAuths++
	}
}

// Snapshot 生成当前统计的快照，包含成功率和使用最多的前5个Key
func (s *Stats) Snapshot() types.AuthStatsSnapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	total := s.totalRequests
	if total == 0 {
		total = 1
	}

	type usage struct {
		key   string
		count int64
	}
	usages := make([]usage, 0, len(s.keyUsage))
	for k, c := range s.keyUsage {
		usages = append(usages, usage{key: k, count: c})
	}
	sort.Slice(usages, func(i, j int) bool {
		if usages[i].count != usages[j].count {
			return usages[i].count > usages[j].count
		}
		return usages[i].key < usages[j].key
	})
	if len(usages) > topKeyCount {
		usages = usages[:topKeyCount]
	}

	top := make(map[string]int64, len(usages))
	for _, u := range usages {
		top[u.key] = u.count
	}

	return types.AuthStatsSnapshot{
		TotalRequests:   s.totalRequests,
		SuccessfulAuths: s.successfulAuths,
		FailedAuths:     s.failedAuths,
		RateLimitHits:   s.rateLimitHits,
		SuccessRate:     float64(s.successfulAuths) / float64(total),
		TopAPIKeys:      top,
	}
}
