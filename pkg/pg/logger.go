package pg

import "context"

// logger is the part of *slog.Logger used to report migration progress.
type logger interface {
	InfoContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}
