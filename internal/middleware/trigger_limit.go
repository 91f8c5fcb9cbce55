package middleware

import (
	"sync"
	"time"
)

// ==================== TriggerRateLimiter 手动触发限流器 ====================

// TriggerRateLimiter 手动触发限流器
// 防止操作员频繁触发手动批次导致上游目录 API 限流
type TriggerRateLimiter struct {
	locks sync.Map // key -> *lockEntry
}

// lockEntry 锁条目
type lockEntry struct {
	lastTime time.Time
	mu       sync.Mutex
}

// 全局限流器实例
var globalLimiter = &TriggerRateLimiter{}

// GetLimiter 获取全局限流器
func GetLimiter() *TriggerRateLimiter {
	return globalLimiter
}

// ==================== 限流检查 ====================

// CheckResult 检查结果
type CheckResult struct {
	Allowed    bool          // 是否允许
	RetryAfter time.Duration // 剩余冷却时间
}

// Check 检查是否允许执行
// key: 限流键，如 "scheduler:run"
// interval: 冷却间隔
func (r *TriggerRateLimiter) Check(key string, interval time.Duration) CheckResult {
	actual, _ := r.locks.LoadOrStore(key, &lockEntry{})
	entry := actual.(*lockEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(entry.lastTime)

	if elapsed < interval {
		return CheckResult{
			Allowed:    false,
			RetryAfter: interval - elapsed,
		}
	}

	entry.lastTime = now
	return CheckResult{Allowed: true}
}

// Reset 清除指定键的冷却状态（测试用）
func (r *TriggerRateLimiter) Reset(key string) {
	r.locks.Delete(key)
}
