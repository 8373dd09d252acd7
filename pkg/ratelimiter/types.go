package ratelimiter

import "time"

// Result contains the result of a rate limit check.
type Result struct {
	Limit     int       // Maximum tokens (bucket capacity)
	Remaining int       // Tokens remaining; negative when the request was denied
	ResetAt   time.Time // Time of the next refill
}

// Allowed returns whether the request is allowed based on remaining tokens.
func (r *Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter returns how long to wait, measured from now, before the next
// request. Returns 0 if the request was allowed.
func (r *Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed() {
		return 0
	}
	return max(0, r.ResetAt.Sub(now))
}

// Config defines the token bucket configuration.
type Config struct {
	// Maximum tokens the bucket can hold (burst limit)
	Capacity int `env:"RATE_LIMIT_CAPACITY" envDefault:"10"`
	// Number of tokens added per refill interval
	RefillRate int `env:"RATE_LIMIT_REFILL_RATE" envDefault:"1"`
	// How often tokens are added
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"6s"`
}
