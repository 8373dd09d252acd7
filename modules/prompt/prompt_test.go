package prompt_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/todokit/modules/prompt"
	"github.com/dmitrymomot/todokit/pkg/queue"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, model, text string) (string, error) {
	args := m.Called(ctx, model, text)
	return args.String(0), args.Error(1)
}

func TestService_Perform(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := prompt.NewMemoryStore(nil)
	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, "model-a", "Hello world!").Return("Hi!", nil).Once()
	gen.On("Generate", mock.Anything, "model-b", "Hello world!").Return("Hello!", nil).Once()

	svc, err := prompt.NewService(store, gen, nil, prompt.WithServiceLogger(discardLogger))
	require.NoError(t, err)

	p, err := store.Create(ctx, prompt.RandomPrompt)
	require.NoError(t, err)
	assert.Zero(t, p.Version)
	assert.Nil(t, p.Response)

	p, err = svc.Perform(ctx, p.ID, "model-a")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Version)
	require.NotNil(t, p.Response)
	assert.Equal(t, "Hi!", *p.Response)
	assert.Equal(t, "model-a", *p.Model)

	p, err = svc.Perform(ctx, p.ID, "model-b")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Version)
	assert.Equal(t, "Hello!", *p.Response)

	gen.AssertExpectations(t)
}

func TestService_PerformErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := prompt.NewMemoryStore(nil)
	gen := new(mockGenerator)
	failure := errors.Join(prompt.ErrGeneration, errors.New("quota exceeded"))
	gen.On("Generate", mock.Anything, prompt.DefaultModel, "Hello world!").Return("", failure)

	svc, err := prompt.NewService(store, gen, nil, prompt.WithServiceLogger(discardLogger))
	require.NoError(t, err)

	_, err = svc.Perform(ctx, 42, "")
	assert.ErrorIs(t, err, prompt.ErrNotFound)

	p, err := store.Create(ctx, prompt.RandomPrompt)
	require.NoError(t, err)
	_, err = svc.Perform(ctx, p.ID, "")
	assert.ErrorIs(t, err, prompt.ErrGeneration)

	unchanged, err := store.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, unchanged.Version)
}

func TestNewService_RequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := prompt.NewService(nil, new(mockGenerator), nil)
	assert.ErrorIs(t, err, prompt.ErrStoreNil)
	_, err = prompt.NewService(prompt.NewMemoryStore(nil), nil, nil)
	assert.ErrorIs(t, err, prompt.ErrGeneratorNil)
}

func TestService_RequestRandomThroughQueue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := prompt.NewMemoryStore(nil)
	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, "gemini-test", prompt.RandomPrompt).Return("Hi there", nil)

	storage := queue.NewMemoryStorage()
	t.Cleanup(func() { _ = storage.Close() })
	enq, err := queue.NewEnqueuer(storage, queue.WithEnqueuerLogger(discardLogger))
	require.NoError(t, err)

	svc, err := prompt.NewService(store, gen, enq,
		prompt.WithModel("gemini-test"),
		prompt.WithServiceLogger(discardLogger))
	require.NoError(t, err)

	worker, err := queue.NewWorker(storage,
		queue.WithPullInterval(5*time.Millisecond),
		queue.WithWorkerLogger(discardLogger))
	require.NoError(t, err)
	require.NoError(t, worker.RegisterHandler(svc.PerformHandler()))
	require.NoError(t, worker.Start(ctx))
	t.Cleanup(func() { _ = worker.Stop() })

	router := svc.Handle()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/random_llm_request", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data prompt.RandomResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Data.Success)
	assert.Equal(t, prompt.RandomPrompt, body.Data.Pair.Prompt)
	assert.Zero(t, body.Data.Pair.Version)

	require.Eventually(t, func() bool {
		p, err := store.Get(ctx, body.Data.Pair.ID)
		return err == nil && p.Version == 1
	}, 2*time.Second, 5*time.Millisecond)

	tasks, err := storage.ListTasks(ctx, prompt.PerformTaskName)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.JSONEq(t, `{"pair_id":1,"model":"gemini-test"}`, string(tasks[0].Payload))
}

func TestService_RequestRandomInline(t *testing.T) {
	t.Parallel()

	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, prompt.DefaultModel, prompt.RandomPrompt).Return("Hi", nil)
	svc, err := prompt.NewService(prompt.NewMemoryStore(nil), gen, nil, prompt.WithServiceLogger(discardLogger))
	require.NoError(t, err)

	p, err := svc.RequestRandom(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, p.Version)
}

func TestNewGeminiGenerator_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	cfg := prompt.Config{Model: prompt.DefaultModel}
	assert.False(t, cfg.Enabled())

	_, err := prompt.NewGeminiGenerator(context.Background(), cfg)
	assert.ErrorIs(t, err, prompt.ErrInvalidConfig)
}
