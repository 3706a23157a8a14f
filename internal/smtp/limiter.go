package smtp

import (
	"sync"
	"time"
)

// ConnectionLimiter 限制并发 SMTP 连接数，叠加新建连接速率限制。
type ConnectionLimiter struct {
	mu      sync.Mutex
	current int
	max     int
	rate    *RateLimiter
}

// NewConnectionLimiter 创建连接限制器。
// maxConns 为最大并发连接数，perSecond 为每秒允许的新建连接数。
func NewConnectionLimiter(maxConns, perSecond int) *ConnectionLimiter {
	return &ConnectionLimiter{
		max:  maxConns,
		rate: NewRateLimiter(perSecond, perSecond),
	}
}

// Acquire 尝试占用一个连接槽位，超限返回 false。
func (l *ConnectionLimiter) Acquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current >= l.max {
		return false
	}
	if !l.rate.Allow() {
		return false
	}
	l.current++
	return true
}

// Release 释放连接槽位。
func (l *ConnectionLimiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current > 0 {
		l.current--
	}
}

// Current 返回当前并发连接数。
func (l *ConnectionLimiter) Current() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// RateLimiter 简单令牌桶。
type RateLimiter struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64
	last     time.Time
}

// NewRateLimiter 创建令牌桶，rate 为每秒补充的令牌数。
func NewRateLimiter(rate, capacity int) *RateLimiter {
	return &RateLimiter{
		tokens:   float64(capacity),
		capacity: float64(capacity),
		rate:     float64(rate),
		last:     time.Now(),
	}
}

// Allow 消耗一个令牌，桶空时返回 false。
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.last).Seconds()
	r.last = now

	r.tokens += elapsed * r.rate
	if r.tokens > r.capacity {
		r.tokens = r.capacity
	}
	if r.tokens < 1 {
		return false
	}
	r.tokens--
	return true
}
