package handler

import (
	"sync"
	"time"

	"dify-adapter-go/internal/types"
)

// AdapterStats 适配器进程级请求统计
// 作为显式注入的状态对象由网关和中间件共享，每次检索尝试(无论结果)都会更新；
// 只在进程重启时归零。
type AdapterStats struct {
	mutex              sync.Mutex
	startTime          time.Time
	totalRequests      int64
	successfulRequests int64
	failedRequests     int64
	totalResponseTime  float64 // 秒，只累计成功请求
}

// NewAdapterStats 创建适配器统计对象
func NewAdapterStats() *AdapterStats {
	return &AdapterStats{
		startTime: time.Now(),
	}
}

// RecordAttempt 记录一次检索尝试(在请求进入时调用)
func (s *AdapterStats) RecordAttempt() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.totalRequests++
}

// RecordSuccess 记录一次成功及其响应耗时
func (s *AdapterStats) RecordSuccess(elapsed time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.successfulRequests++
	s.totalResponseTime += elapsed.Seconds()
}

// RecordFailure 记录一次失败
func (s *AdapterStats) RecordFailure() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.failedRequests++
}

// Snapshot 生成统计快照，平均响应时间按成功请求数计算
func (s *AdapterStats) Snapshot(activeCollections []string) types.AdapterStatsResponse {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	successful := s.successfulRequests
	if successful == 0 {
		successful = 1
	}

	return types.AdapterStatsResponse{
		TotalRequests:       s.totalRequests,
		SuccessfulRequests:  s.successfulRequests,
		FailedRequests:      s.failedRequests,
		AverageResponseTime: s.totalResponseTime / float64(successful),
		ActiveCollections:   activeCollections,
	}
}
