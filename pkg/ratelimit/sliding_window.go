package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindow 实现滑动窗口算法的按Key限流器
// 每个Key维护一个窗口内的请求时间戳列表，每次检查时惰性清理过期记录。
// 由于达到上限后直接拒绝而不追加时间戳，单个Key存储的条目数不会超过其limit。
type SlidingWindow struct {
	window   time.Duration          // 滑动窗口长度
	requests map[string][]time.Time // api_key -> 窗口内的请求时间戳
	mutex    sync.Mutex             // 互斥锁，保证并发安全
	now      func() time.Time       // 时钟函数，测试时可注入
}

// SlidingWindowOption 定义配置选项函数
type SlidingWindowOption func(*SlidingWindow)

// WithWindow 配置滑动窗口长度
func WithWindow(window time.Duration) SlidingWindowOption {
	return func(sw *SlidingWindow) {
		if window > 0 {
			sw.window = window
		}
	}
}

// WithClock 配置自定义时钟函数，用于测试
func WithClock(now func() time.Time) SlidingWindowOption {
	return func(sw *SlidingWindow) {
		if now != nil {
			sw.now = now
		}
	}
}

// NewSlidingWindow 创建一个新的滑动窗口限流器，默认窗口为1小时
func NewSlidingWindow(options ...SlidingWindowOption) *SlidingWindow {
	sw := &SlidingWindow{
		window:   time.Hour,
		requests: make(map[string][]time.Time),
		now:      time.Now,
	}

	for _, option := range options {
		option(sw)
	}

	return sw
}

// Allow 检查指定Key是否在速率限制内，允许时记录本次请求
func (sw *SlidingWindow) Allow(key string, limit int) bool {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()

	now := sw.now()
	kept := sw.pruneLocked(key, now)

	if len(kept) >= limit {
		sw.requests[key] = kept
		return false
	}

	sw.requests[key] = append(kept, now)
	return true
}

// Remaining 返回指定Key在当前窗口内的剩余请求次数，不消耗配额
func (sw *SlidingWindow) Remaining(key string, limit int) int {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()

	kept := sw.pruneLocked(key, sw.now())
	sw.requests[key] = kept

	remaining := limit - len(kept)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// pruneLocked 清理指定Key的过期时间戳，调用方必须持有锁
func (sw *SlidingWindow) pruneLocked(key string, now time.Time) []time.Time {
	cutoff := now.Add(-sw.window)
	timestamps := sw.requests[key]

	kept := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
