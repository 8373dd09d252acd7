package todo

import (
	"errors"
	"maps"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/todokit/binder"
	"github.com/dmitrymomot/todokit/handler"
	"github.com/dmitrymomot/todokit/pkg/logger"
	"github.com/dmitrymomot/todokit/pkg/validator"
)

type (
	createRequest struct {
		Title    string `json:"title"`
		Position *int   `json:"position"`
	}

	idRequest struct {
		ID int64 `path:"id" json:"-"`
	}

	updateRequest struct {
		ID        int64   `path:"id" json:"-"`
		Title     *string `json:"title"`
		Completed *bool   `json:"completed"`
		Position  *int    `json:"position"`
	}

	cleanupRequest struct {
		DaysOld int `json:"days_old" query:"days_old"`
	}

	// ListResponse is the body of GET / and GET /todos.
	ListResponse struct {
		Todos          []Item `json:"todos"`
		CompletedCount int    `json:"completed_count"`
	}

	// ClearResponse is the body of DELETE /todos/clear_completed.
	ClearResponse struct {
		Deleted int64 `json:"deleted"`
	}

	// CleanupResponse reports whether the cleanup task was queued or an
	// identical one was already pending.
	CleanupResponse struct {
		Enqueued bool   `json:"enqueued"`
		TaskID   string `json:"task_id,omitempty"`
		DaysOld  int    `json:"days_old"`
	}
)

// Handle returns the router mounted under /todos.
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()
	pathID := handler.WithBinders(binder.Path(chi.URLParam))

	r.Get("/", s.Index())
	r.Post("/", handler.Wrap(s.create, handler.WithBinders(binder.JSON())))
	r.Delete("/clear_completed", handler.Wrap(s.clearCompleted))
	r.With(s.cleanupMiddlewares...).Post("/cleanup", handler.Wrap(s.cleanup, handler.WithBinders(binder.Query(), binder.JSON())))
	r.Patch("/{id}", handler.Wrap(s.update, handler.WithBinders(binder.Path(chi.URLParam), binder.JSON())))
	r.Delete("/{id}", handler.Wrap(s.delete, pathID))
	r.Patch("/{id}/toggle", handler.Wrap(s.toggle, pathID))

	return r
}

// Index lists todos together with the application metadata passed to
// WithAppMeta. It also serves the site root.
func (s *Service) Index() http.HandlerFunc {
	return handler.Wrap(s.list)
}

func (s *Service) list(ctx handler.Context, _ struct{}) handler.Response {
	items, err := s.List(ctx)
	if err != nil {
		return s.errorResponse(ctx, err)
	}

	completed := 0
	for _, it := range items {
		if it.Completed {
			completed++
		}
	}
	return handler.JSON(ListResponse{Todos: items, CompletedCount: completed}, handler.WithJSONMeta(s.meta(nil)))
}

func (s *Service) create(ctx handler.Context, req createRequest) handler.Response {
	it, notice, err := s.Create(ctx, CreateParams{Title: req.Title, Position: req.Position})
	if err != nil {
		return s.errorResponse(ctx, err)
	}
	return handler.JSON(it,
		handler.WithJSONStatus(http.StatusCreated),
		handler.WithJSONMeta(s.meta(map[string]any{"notice": notice})),
	)
}

func (s *Service) update(ctx handler.Context, req updateRequest) handler.Response {
	it, notice, err := s.Update(ctx, req.ID, Patch{Title: req.Title, Completed: req.Completed, Position: req.Position})
	if err != nil {
		return s.errorResponse(ctx, err)
	}
	return handler.JSON(it, handler.WithJSONMeta(s.meta(map[string]any{"notice": notice})))
}

func (s *Service) delete(ctx handler.Context, req idRequest) handler.Response {
	notice, err := s.Delete(ctx, req.ID)
	if err != nil {
		return s.errorResponse(ctx, err)
	}
	return handler.JSON(nil, handler.WithJSONMeta(s.meta(map[string]any{"notice": notice})))
}

func (s *Service) toggle(ctx handler.Context, req idRequest) handler.Response {
	it, err := s.Toggle(ctx, req.ID)
	if err != nil {
		return s.errorResponse(ctx, err)
	}
	return handler.JSON(it)
}

func (s *Service) clearCompleted(ctx handler.Context, _ struct{}) handler.Response {
	n, notice, err := s.ClearCompleted(ctx)
	if err != nil {
		return s.errorResponse(ctx, err)
	}
	return handler.JSON(ClearResponse{Deleted: n}, handler.WithJSONMeta(s.meta(map[string]any{"notice": notice})))
}

func (s *Service) cleanup(ctx handler.Context, req cleanupRequest) handler.Response {
	daysOld := normalizeDaysOld(req.DaysOld)
	task, err := s.EnqueueCleanup(ctx, daysOld)
	if err != nil {
		return s.errorResponse(ctx, err)
	}

	resp := CleanupResponse{DaysOld: daysOld}
	if task != nil {
		resp.Enqueued = true
		resp.TaskID = task.ID.String()
	}
	return handler.JSON(resp, handler.WithJSONStatus(http.StatusAccepted))
}

func (s *Service) errorResponse(ctx handler.Context, err error) handler.Response {
	switch {
	case validator.IsValidationError(err):
		return handler.JSONError(err)
	case errors.Is(err, ErrNotFound):
		return handler.JSONError(errors.Join(handler.ErrNotFound, ErrNotFound))
	case errors.Is(err, ErrConstraint):
		return handler.JSONError(errors.Join(handler.ErrBadRequest, ErrConstraint))
	case errors.Is(err, ErrStorage):
		s.log.ErrorContext(ctx, "todo storage unavailable", logger.Error(err))
		return handler.JSONError(handler.ErrServiceUnavailable)
	default:
		s.log.ErrorContext(ctx, "todo request failed", logger.Error(err))
		return handler.JSONError(err)
	}
}

func (s *Service) meta(extra map[string]any) map[string]any {
	if len(s.appMeta) == 0 && len(extra) == 0 {
		return nil
	}
	m := make(map[string]any, len(s.appMeta)+len(extra))
	maps.Copy(m, s.appMeta)
	maps.Copy(m, extra)
	return m
}
