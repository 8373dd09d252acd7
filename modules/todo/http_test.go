package todo_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/todokit/handler"
	"github.com/dmitrymomot/todokit/modules/todo"
	"github.com/dmitrymomot/todokit/pkg/queue"
	"github.com/dmitrymomot/todokit/pkg/ratelimiter"
)

type apiResponse struct {
	Data  json.RawMessage      `json:"data"`
	Meta  map[string]any       `json:"meta"`
	Error *handler.ErrorDetail `json:"error"`
}

func newRouter(t *testing.T, enqueuer queue.TaskEnqueuer) http.Handler {
	t.Helper()
	svc, err := todo.NewService(todo.NewMemoryStore(), enqueuer,
		todo.WithServiceLogger(discardLogger),
		todo.WithAppMeta(map[string]any{"app_name": "Todos", "app_version": "1.0.0"}))
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Get("/", svc.Index())
	r.Mount("/todos", svc.Handle())
	return r
}

func call(t *testing.T, h http.Handler, method, target, body string) (int, apiResponse) {
	t.Helper()

	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	var resp apiResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w.Code, resp
}

func decodeData[T any](t *testing.T, resp apiResponse) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Data, &v))
	return v
}

func TestHTTP_CRUD(t *testing.T) {
	t.Parallel()
	h := newRouter(t, nil)

	code, resp := call(t, h, http.MethodPost, "/todos", `{"title":"Buy milk"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Todo created successfully!", resp.Meta["notice"])
	assert.Equal(t, "Todos", resp.Meta["app_name"])
	created := decodeData[todo.Item](t, resp)
	assert.Equal(t, 1, created.Position)

	code, resp = call(t, h, http.MethodPatch, fmt.Sprintf("/todos/%d", created.ID), `{"title":"Buy oat milk"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Todo updated successfully!", resp.Meta["notice"])
	assert.Equal(t, "Buy oat milk", decodeData[todo.Item](t, resp).Title)

	code, resp = call(t, h, http.MethodPatch, fmt.Sprintf("/todos/%d/toggle", created.ID), "")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, decodeData[todo.Item](t, resp).Completed)
	assert.Nil(t, resp.Meta["notice"])

	code, resp = call(t, h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, code)
	list := decodeData[todo.ListResponse](t, resp)
	require.Len(t, list.Todos, 1)
	assert.Equal(t, 1, list.CompletedCount)
	assert.Equal(t, "1.0.0", resp.Meta["app_version"])

	code, resp = call(t, h, http.MethodDelete, fmt.Sprintf("/todos/%d", created.ID), "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Todo deleted successfully!", resp.Meta["notice"])

	code, resp = call(t, h, http.MethodDelete, fmt.Sprintf("/todos/%d", created.ID), "")
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "not_found", resp.Error.Code)
}

func TestHTTP_ValidationErrors(t *testing.T) {
	t.Parallel()
	h := newRouter(t, nil)

	code, resp := call(t, h, http.MethodPost, "/todos", `{"title":"","position":-1}`)
	require.Equal(t, http.StatusUnprocessableEntity, code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "validation_error", resp.Error.Code)
	assert.Equal(t,
		"Title can't be blank, Title is too short (minimum is 1 character), Position must be greater than or equal to 0",
		resp.Error.Message)
	assert.Contains(t, resp.Error.Details, "title")
	assert.Contains(t, resp.Error.Details, "position")
}

func TestHTTP_ValidationErrors_StorageLimits(t *testing.T) {
	t.Parallel()
	h := newRouter(t, nil)

	code, resp := call(t, h, http.MethodPost, "/todos", `{"title":"x","position":3000000000}`)
	require.Equal(t, http.StatusUnprocessableEntity, code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "validation_error", resp.Error.Code)
	assert.Equal(t, "Position must be less than or equal to 2147483647", resp.Error.Message)

	code, resp = call(t, h, http.MethodPost, "/todos", `{"title":"Buy\u0000milk"}`)
	require.Equal(t, http.StatusUnprocessableEntity, code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "Title contains invalid characters", resp.Error.Message)

	code, resp = call(t, h, http.MethodPost, "/todos", `{"title":"Buy milk"}`)
	require.Equal(t, http.StatusCreated, code)
	created := decodeData[todo.Item](t, resp)

	code, resp = call(t, h, http.MethodPatch, fmt.Sprintf("/todos/%d", created.ID), `{"position":3000000000}`)
	require.Equal(t, http.StatusUnprocessableEntity, code)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Details, "position")
}

func TestHTTP_BadRequests(t *testing.T) {
	t.Parallel()
	h := newRouter(t, nil)

	code, _ := call(t, h, http.MethodPost, "/todos", `{"title":"x","owner":"me"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, h, http.MethodPatch, "/todos/abc/toggle", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, h, http.MethodPatch, "/todos/999/toggle", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHTTP_ClearCompleted(t *testing.T) {
	t.Parallel()
	h := newRouter(t, nil)

	for _, title := range []string{"a", "b"} {
		code, resp := call(t, h, http.MethodPost, "/todos", fmt.Sprintf(`{"title":%q}`, title))
		require.Equal(t, http.StatusCreated, code)
		it := decodeData[todo.Item](t, resp)
		code, _ = call(t, h, http.MethodPatch, fmt.Sprintf("/todos/%d/toggle", it.ID), "")
		require.Equal(t, http.StatusOK, code)
	}

	code, resp := call(t, h, http.MethodDelete, "/todos/clear_completed", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Cleared 2 completed todos!", resp.Meta["notice"])
	assert.Equal(t, int64(2), decodeData[todo.ClearResponse](t, resp).Deleted)
}

func TestHTTP_Cleanup(t *testing.T) {
	t.Parallel()

	storage := queue.NewMemoryStorage()
	t.Cleanup(func() { _ = storage.Close() })
	enq, err := queue.NewEnqueuer(storage, queue.WithEnqueuerLogger(discardLogger))
	require.NoError(t, err)
	h := newRouter(t, enq)

	code, resp := call(t, h, http.MethodPost, "/todos/cleanup?days_old=10", "")
	require.Equal(t, http.StatusAccepted, code)
	first := decodeData[todo.CleanupResponse](t, resp)
	assert.True(t, first.Enqueued)
	assert.Equal(t, 10, first.DaysOld)
	assert.NotEmpty(t, first.TaskID)

	code, resp = call(t, h, http.MethodPost, "/todos/cleanup", `{"days_old":10}`)
	require.Equal(t, http.StatusAccepted, code)
	assert.False(t, decodeData[todo.CleanupResponse](t, resp).Enqueued)

	code, resp = call(t, h, http.MethodPost, "/todos/cleanup", "")
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, 30, decodeData[todo.CleanupResponse](t, resp).DaysOld)
}

func TestHTTP_CleanupRateLimited(t *testing.T) {
	t.Parallel()

	limits := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	t.Cleanup(limits.Close)
	bucket, err := ratelimiter.NewBucket(limits, ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Hour})
	require.NoError(t, err)

	limited := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = handler.JSONError(handler.ErrTooManyRequests).Render(w, r)
	})
	storage := queue.NewMemoryStorage()
	t.Cleanup(func() { _ = storage.Close() })
	enq, err := queue.NewEnqueuer(storage, queue.WithEnqueuerLogger(discardLogger))
	require.NoError(t, err)

	svc, err := todo.NewService(todo.NewMemoryStore(), enq,
		todo.WithServiceLogger(discardLogger),
		todo.WithCleanupMiddleware(ratelimiter.Middleware(bucket, ratelimiter.Static("cleanup"), ratelimiter.WithLimitedHandler(limited))),
	)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Mount("/todos", svc.Handle())

	code, resp := call(t, r, http.MethodPost, "/todos/cleanup", "")
	require.Equal(t, http.StatusAccepted, code, resp.Error)

	code, resp = call(t, r, http.MethodPost, "/todos/cleanup", "")
	require.Equal(t, http.StatusTooManyRequests, code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "too_many_requests", resp.Error.Code)

	code, _ = call(t, r, http.MethodGet, "/todos", "")
	assert.Equal(t, http.StatusOK, code, "only cleanup is limited")
}
