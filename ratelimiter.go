package qec

import (
	"sync"
	"time"
)

/*
RateLimiter is a token bucket. Collect uses it to keep progress logging
readable when many small batches finish at once; callbacks are never limited.

The bucket starts full, so the first burst operations pass immediately, and one
token comes back every interval up to the burst size.
*/
type RateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	interval   time.Duration
	lastRefill time.Time
}

// NewRateLimiter allows burst operations at once and one more per interval.
func NewRateLimiter(burst int, interval time.Duration) *RateLimiter {
	burst = max(burst, 1)
	return &RateLimiter{
		tokens:     burst,
		maxTokens:  burst,
		interval:   interval,
		lastRefill: time.Now(),
	}
}

// Allow takes a token if one is available.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill(time.Now())
	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

// Tokens reports how many operations would pass right now.
func (rl *RateLimiter) Tokens() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill(time.Now())
	return rl.tokens
}

// refill assumes the caller holds mu. Only whole intervals are credited.
func (rl *RateLimiter) refill(now time.Time) {
	if rl.interval <= 0 {
		rl.tokens = rl.maxTokens
		return
	}

	periods := int(now.Sub(rl.lastRefill) / rl.interval)
	if periods <= 0 {
		return
	}
	rl.tokens = min(rl.maxTokens, rl.tokens+periods)
	rl.lastRefill = rl.lastRefill.Add(time.Duration(periods) * rl.interval)
}
