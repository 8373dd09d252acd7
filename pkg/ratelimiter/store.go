package ratelimiter

import (
	"context"
	"time"
)

// Store defines the interface for rate limit storage backends.
type Store interface {
	// ConsumeTokens refills the bucket for now and takes tokens if enough are
	// left. A denied request consumes nothing and reports a negative
	// remaining count.
	ConsumeTokens(ctx context.Context, key string, tokens int, config Config, now time.Time) (remaining int, resetAt time.Time, err error)

	// Reset clears the rate limit state for the given key.
	Reset(ctx context.Context, key string) error
}

// refill returns the token count after the intervals elapsed since
// lastRefill, and the new refill mark.
func refill(tokens int, lastRefill, now time.Time, config Config) (int, time.Time) {
	elapsed := now.Sub(lastRefill)
	if elapsed < config.RefillInterval {
		return tokens, lastRefill
	}
	// Cap intervals to prevent integer overflow in high-capacity/low-rate scenarios
	maxIntervals := int64(config.Capacity/config.RefillRate + 1)
	intervals := min(int64(elapsed/config.RefillInterval), maxIntervals)
	return min(tokens+int(intervals)*config.RefillRate, config.Capacity), now
}
