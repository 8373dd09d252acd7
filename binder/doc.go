// Package binder fills request structs from JSON bodies, path parameters and
// query strings. Each binder returns a func(*http.Request, any) error suitable
// for handler.WithBinders.
package binder
