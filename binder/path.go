package binder

import (
	"fmt"
	"net/http"
)

// Path binds `path:"name"` fields using extractor, typically chi.URLParam.
//
//	type TodoRequest struct {
//		ID int64 `path:"id"`
//	}
//
//	r.Delete("/todos/{id}", handler.Wrap(h,
//		handler.WithBinders(binder.Path(chi.URLParam)),
//	))
func Path(extractor func(r *http.Request, name string) string) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		if extractor == nil {
			return fmt.Errorf("%w: extractor function is nil", ErrInvalidPath)
		}
		return bindFields(v, "path", func(name string) []string {
			if value := extractor(r, name); value != "" {
				return []string{value}
			}
			return nil
		}, ErrInvalidPath)
	}
}

// Query binds `query:"name"` fields from the URL query string.
func Query() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		values := r.URL.Query()
		return bindFields(v, "query", func(name string) []string {
			return values[name]
		}, ErrInvalidQuery)
	}
}
