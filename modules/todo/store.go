package todo

import "context"

// Store persists items. Implementations validate input, assign positions
// inside a single serialization point and list by position then id.
type Store interface {
	PositionReader

	Insert(ctx context.Context, params CreateParams) (Item, error)
	Get(ctx context.Context, id int64) (Item, error)
	Update(ctx context.Context, id int64, patch Patch) (Item, error)
	Delete(ctx context.Context, id int64) error
	// Toggle flips Completed; ErrNotFound for unknown ids.
	Toggle(ctx context.Context, id int64) (Item, error)
	// DeleteWhere removes every matching item in one atomic step and returns
	// how many were removed.
	DeleteWhere(ctx context.Context, f Filter) (int64, error)
	List(ctx context.Context, f Filter) ([]Item, error)
	Count(ctx context.Context, f Filter) (int64, error)
}
