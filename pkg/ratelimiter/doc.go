// Package ratelimiter provides token bucket rate limiting with in-memory and
// Redis storage and an HTTP middleware.
//
// A bucket holds up to Capacity tokens and gains RefillRate tokens every
// RefillInterval. Each request takes one token; a request that finds too
// few is denied without consuming anything.
//
//	store, _ := ratelimiter.NewRedisStore(redisClient, "")
//	limiter, err := ratelimiter.NewBucket(store, ratelimiter.Config{
//		Capacity:       10,
//		RefillRate:     1,
//		RefillInterval: 6 * time.Second,
//	})
//	if err != nil {
//		return err
//	}
//	r.With(ratelimiter.Middleware(limiter, ratelimiter.ByIP())).Get("/ai/random_llm_request", h)
//
// The middleware sets X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset on every limited route, and Retry-After on denials.
package ratelimiter
