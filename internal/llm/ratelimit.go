package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// rateLimiter is a token bucket that accrues capacity lazily from elapsed
// time instead of running a refill goroutine. The bucket starts full, so a
// burst up to capacity goes through immediately after startup.
type rateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	perSecond  float64
	lastAccrue time.Time
}

// newRateLimiter creates a limiter allowing requestsPerMinute sustained
// throughput. Non-positive rates default to 60.
func newRateLimiter(requestsPerMinute int) *rateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &rateLimiter{
		tokens:     float64(requestsPerMinute),
		capacity:   float64(requestsPerMinute),
		perSecond:  float64(requestsPerMinute) / 60,
		lastAccrue: time.Now(),
	}
}

// wait blocks until a token is available or the context is canceled.
func (rl *rateLimiter) wait(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if rl.take() {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("rate limiter canceled: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// take accrues tokens for the time elapsed since the last call and consumes
// one if available.
func (rl *rateLimiter) take() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.tokens += now.Sub(rl.lastAccrue).Seconds() * rl.perSecond
	if rl.tokens > rl.capacity {
		rl.tokens = rl.capacity
	}
	rl.lastAccrue = now

	if rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}

// Close is a no-op; the limiter holds no background resources. Kept so the
// categorizer can release tiers uniformly.
func (rl *rateLimiter) Close() {}
