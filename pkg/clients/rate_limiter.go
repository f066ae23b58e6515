package clients

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter defines the interface for rate limiting implementations.
type RateLimiter interface {
	// Allow reports whether a request may happen now, consuming a token if so
	Allow() bool
	// Wait blocks until a request is allowed or ctx is done
	Wait(ctx context.Context) error
	// SetRate updates the rate limit in requests per second
	SetRate(r float64)
	// SetBurst updates the burst size
	SetBurst(burst int)
	// GetStats returns rate limiter statistics
	GetStats() RateLimiterStats
}

// RateLimiterStats provides statistics about rate limiter usage.
type RateLimiterStats struct {
	Rate            float64       `json:"rate"`
	Burst           int           `json:"burst"`
	AllowedRequests int64         `json:"allowed_requests"`
	BlockedRequests int64         `json:"blocked_requests"`
	TotalWaitTime   time.Duration `json:"total_wait_time"`
}

// TokenBucketRateLimiter adapts golang.org/x/time/rate.Limiter to RateLimiter.
type TokenBucketRateLimiter struct {
	limiter *rate.Limiter

	allowedRequests int64
	blockedRequests int64
	totalWaitNanos  int64
}

// NewRateLimiter creates a token bucket limiter with r tokens per second and
// the given burst.
func NewRateLimiter(r float64, burst int) *TokenBucketRateLimiter {
	return &TokenBucketRateLimiter{limiter: rate.NewLimiter(rate.Limit(r), burst)}
}

// Allow reports whether a token is available and consumes it.
func (tb *TokenBucketRateLimiter) Allow() bool {
	if tb.limiter.Allow() {
		atomic.AddInt64(&tb.allowedRequests, 1)
		return true
	}
	atomic.AddInt64(&tb.blockedRequests, 1)
	return false
}

// Wait blocks until a token is available.
func (tb *TokenBucketRateLimiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := tb.limiter.Wait(ctx); err != nil {
		atomic.AddInt64(&tb.blockedRequests, 1)
		return err
	}
	atomic.AddInt64(&tb.totalWaitNanos, int64(time.Since(start)))
	atomic.AddInt64(&tb.allowedRequests, 1)
	return nil
}

// SetRate updates the limit.
func (tb *TokenBucketRateLimiter) SetRate(r float64) {
	tb.limiter.SetLimit(rate.Limit(r))
}

// SetBurst updates the burst.
func (tb *TokenBucketRateLimiter) SetBurst(burst int) {
	tb.limiter.SetBurst(burst)
}

// GetStats returns rate limiter statistics.
func (tb *TokenBucketRateLimiter) GetStats() RateLimiterStats {
	return RateLimiterStats{
		Rate:            float64(tb.limiter.Limit()),
		Burst:           tb.limiter.Burst(),
		AllowedRequests: atomic.LoadInt64(&tb.allowedRequests),
		BlockedRequests: atomic.LoadInt64(&tb.blockedRequests),
		TotalWaitTime:   time.Duration(atomic.LoadInt64(&tb.totalWaitNanos)),
	}
}
