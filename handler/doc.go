// Package handler adapts typed request handlers to net/http.
//
// Wrap binds the request into R with the configured binders, calls the
// HandlerFunc and renders the returned Response. Binding failures become
// 400 responses; a handler may return JSONError(err) to let the error pick its
// status:
//
//   - validator.ValidationErrors: 422 with per-field details
//   - HTTPError (possibly joined with a cause): its Code and Key
//   - anything else: 500 without leaking the message
//
//	r.Post("/todos", handler.Wrap(createTodo,
//		handler.WithBinders(binder.JSON()),
//	))
package handler
