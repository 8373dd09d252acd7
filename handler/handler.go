package handler

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/todokit/binder"
)

// HandlerFunc provides type-safe HTTP request handling. R is the request type
// filled by the configured binders.
//
//	h := handler.HandlerFunc[CreateTodoRequest](
//		func(ctx handler.Context, req CreateTodoRequest) handler.Response {
//			item, err := svc.Create(ctx, req.Title)
//			if err != nil {
//				return handler.JSONError(err)
//			}
//			return handler.JSON(item, handler.WithJSONStatus(http.StatusCreated))
//		},
//	)
type HandlerFunc[R any] func(ctx Context, req R) Response

// Response renders itself to an http.ResponseWriter.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// Bind parses HTTP requests into typed values.
type Bind func(r *http.Request, v any) error

// ErrorHandler handles errors from binding or rendering.
type ErrorHandler func(ctx Context, err error)

// WrapOption configures Wrap.
type WrapOption func(*wrapConfig)

type wrapConfig struct {
	binders      []Bind
	errorHandler ErrorHandler
}

// WithBinders sets request binders applied in order. Binders returning
// binder.ErrBinderNotApplicable are skipped.
//
//	r.Patch("/todos/{id}", handler.Wrap(h,
//		handler.WithBinders(binder.Path(chi.URLParam), binder.JSON()),
//	))
func WithBinders(binders ...Bind) WrapOption {
	return func(c *wrapConfig) {
		for _, b := range binders {
			if b != nil {
				c.binders = append(c.binders, b)
			}
		}
	}
}

// WithErrorHandler replaces the default JSON error handler.
func WithErrorHandler(h ErrorHandler) WrapOption {
	return func(c *wrapConfig) {
		if h != nil {
			c.errorHandler = h
		}
	}
}

func defaultErrorHandler(ctx Context, err error) {
	_ = JSONError(err).Render(ctx.ResponseWriter(), ctx.Request())
}

// Wrap converts a typed HandlerFunc to http.HandlerFunc.
func Wrap[R any](h HandlerFunc[R], opts ...WrapOption) http.HandlerFunc {
	cfg := &wrapConfig{errorHandler: defaultErrorHandler}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := NewContext(w, r)

		var req R
		for _, bind := range cfg.binders {
			if err := bind(r, &req); err != nil {
				if errors.Is(err, binder.ErrBinderNotApplicable) {
					continue
				}
				cfg.errorHandler(ctx, errors.Join(ErrBadRequest, err))
				return
			}
		}

		response := h(ctx, req)
		if response == nil {
			cfg.errorHandler(ctx, ErrNilResponse)
			return
		}
		if err := response.Render(w, r); err != nil {
			cfg.errorHandler(ctx, err)
		}
	}
}
