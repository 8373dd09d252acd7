package todo

import "errors"

var (
	ErrNotFound = errors.New("todo not found")
	// ErrStorage wraps driver failures; interactive callers surface it as-is
	// and background jobs let the queue retry.
	ErrStorage = errors.New("todo storage failure")

	// ErrConstraint is returned when the database rejects a row that passed
	// validation, e.g. a CHECK on title or position.
	ErrConstraint  = errors.New("todo violates a storage constraint")
	ErrStoreNil    = errors.New("todo store is nil")
	ErrEnqueuerNil = errors.New("todo cleanup enqueuer is not configured")
)
