package todo

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/todokit/pkg/logger"
	"github.com/dmitrymomot/todokit/pkg/queue"
)

// User-facing notices.
const (
	NoticeCreated = "Todo created successfully!"
	NoticeUpdated = "Todo updated successfully!"
	NoticeDeleted = "Todo deleted successfully!"
)

// ClearedNotice reports how many completed items a bulk clear removed.
func ClearedNotice(n int64) string {
	suffix := "s"
	if n == 1 {
		suffix = ""
	}
	return fmt.Sprintf("Cleared %d completed todo%s!", n, suffix)
}

// Service implements the todo use cases on top of a Store.
type Service struct {
	store    Store
	enqueuer queue.TaskEnqueuer
	log      *slog.Logger
	appMeta  map[string]any

	cleanupMiddlewares []func(http.Handler) http.Handler
}

type ServiceOption func(*Service)

func WithServiceLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithAppMeta adds static metadata (application name, version) to every
// HTTP response meta.
func WithAppMeta(meta map[string]any) ServiceOption {
	return func(s *Service) {
		s.appMeta = meta
	}
}

// WithCleanupMiddleware guards POST /cleanup, e.g. with a rate limiter.
func WithCleanupMiddleware(mws ...func(http.Handler) http.Handler) ServiceOption {
	return func(s *Service) {
		s.cleanupMiddlewares = append(s.cleanupMiddlewares, mws...)
	}
}

// NewService creates a Service. enqueuer may be nil when background cleanup
// is not available; EnqueueCleanup then returns ErrEnqueuerNil.
func NewService(store Store, enqueuer queue.TaskEnqueuer, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, ErrStoreNil
	}

	s := &Service{
		store:    store,
		enqueuer: enqueuer,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("todo"))
	return s, nil
}

// List returns every item ordered by position.
func (s *Service) List(ctx context.Context) ([]Item, error) {
	return s.store.List(ctx, Filter{})
}

func (s *Service) Create(ctx context.Context, params CreateParams) (Item, string, error) {
	it, err := s.store.Insert(ctx, params)
	if err != nil {
		return Item{}, "", err
	}
	s.log.DebugContext(ctx, "todo created", logger.TodoID(it.ID), slog.Int("position", it.Position))
	return it, NoticeCreated, nil
}

func (s *Service) Update(ctx context.Context, id int64, patch Patch) (Item, string, error) {
	it, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return Item{}, "", err
	}
	return it, NoticeUpdated, nil
}

func (s *Service) Delete(ctx context.Context, id int64) (string, error) {
	if err := s.store.Delete(ctx, id); err != nil {
		return "", err
	}
	return NoticeDeleted, nil
}

// Toggle flips the completed flag. It carries no notice.
func (s *Service) Toggle(ctx context.Context, id int64) (Item, error) {
	return s.store.Toggle(ctx, id)
}

// ClearCompleted deletes every completed item.
func (s *Service) ClearCompleted(ctx context.Context) (int64, string, error) {
	n, err := s.store.DeleteWhere(ctx, CompletedFilter())
	if err != nil {
		return 0, "", err
	}
	s.log.InfoContext(ctx, "completed todos cleared", logger.Count(n))
	return n, ClearedNotice(n), nil
}

// EnqueueCleanup schedules a retention sweep. A nil task with a nil error
// means an identical sweep is already queued or running.
func (s *Service) EnqueueCleanup(ctx context.Context, daysOld int) (*queue.Task, error) {
	if s.enqueuer == nil {
		return nil, ErrEnqueuerNil
	}
	return s.enqueuer.Enqueue(ctx, CleanupPayload{DaysOld: normalizeDaysOld(daysOld)},
		queue.WithTaskName(CleanupTaskName),
		queue.WithQueue(CleanupQueue),
		queue.WithUniqueness(queue.UniqueUntilExecuted),
	)
}
