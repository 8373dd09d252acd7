package ratelimiter_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/todokit/pkg/ratelimiter"
)

func TestMiddleware(t *testing.T) {
	t.Parallel()

	b, clock := newTestBucket(t, ratelimiter.Config{Capacity: 2, RefillRate: 1, RefillInterval: 10 * time.Second})

	h := ratelimiter.Middleware(b, ratelimiter.ByIP(),
		ratelimiter.WithLimitedHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("slow down"))
		})),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/ai/random_llm_request", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := do("10.0.0.1:1234")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))

	rec = do("10.0.0.1:5678")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do("10.0.0.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "slow down", rec.Body.String())
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "10", rec.Header().Get("Retry-After"))

	rec = do("10.0.0.2:1234")
	assert.Equal(t, http.StatusOK, rec.Code, "another address has its own bucket")

	clock.Advance(10 * time.Second)
	rec = do("10.0.0.1:1234")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_EmptyKeyPassesThrough(t *testing.T) {
	t.Parallel()

	b, _ := newTestBucket(t, ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Hour})
	h := ratelimiter.Middleware(b, ratelimiter.Static(""))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}

type brokenStore struct{}

func (brokenStore) ConsumeTokens(ctx context.Context, key string, tokens int, cfg ratelimiter.Config, now time.Time) (int, time.Time, error) {
	return 0, time.Time{}, ratelimiter.ErrStoreUnavailable
}

func (brokenStore) Reset(ctx context.Context, key string) error { return nil }

func TestMiddleware_StoreError(t *testing.T) {
	t.Parallel()

	b, err := ratelimiter.NewBucket(brokenStore{}, ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Second})
	require.NoError(t, err)

	var got error
	h := ratelimiter.Middleware(b, ratelimiter.Static("route"),
		ratelimiter.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			got = err
			w.WriteHeader(http.StatusServiceUnavailable)
		}),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, errors.Is(got, ratelimiter.ErrStoreUnavailable))
}

func TestComposite(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/todos/cleanup", nil)
	req.RemoteAddr = "192.168.1.10:4000"

	key := ratelimiter.Composite(ratelimiter.Static("cleanup"), ratelimiter.ByIP())(req)
	assert.Equal(t, "cleanup:192.168.1.10", key)

	long := ratelimiter.Composite(ratelimiter.Static(strings.Repeat("x", 80)), ratelimiter.ByIP())(req)
	assert.LessOrEqual(t, len(long), 13)
	assert.NotEmpty(t, long)

	assert.Empty(t, ratelimiter.Composite(ratelimiter.Static(""))(req))
}
