package ledger

import (
	"sync"
	"time"
)

// rateLimiter caps gateway requests per sliding window. The gateway applies
// its own limits; staying under them locally avoids burning confirmations
// on rejected submissions.
type rateLimiter struct {
	mu          sync.Mutex
	requests    int
	maxRequests int
	windowStart time.Time
	windowSize  time.Duration
}

func newRateLimiter(maxRequests int, windowSize time.Duration) *rateLimiter {
	return &rateLimiter{
		maxRequests: maxRequests,
		windowSize:  windowSize,
		windowStart: time.Now(),
	}
}

func (rl *rateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.windowStart) >= rl.windowSize {
		rl.requests = 0
		rl.windowStart = now
	}
	if rl.requests >= rl.maxRequests {
		return false
	}
	rl.requests++
	return true
}
