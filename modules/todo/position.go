package todo

import "context"

// PositionReader exposes the highest stored position; ok is false for an
// empty store.
type PositionReader interface {
	MaxPosition(ctx context.Context) (max int, ok bool, err error)
}

// NextPosition appends after max, starting at 1.
func NextPosition(max int, ok bool) int {
	if !ok {
		return 1
	}
	return max + 1
}

// AssignPosition reads the current maximum and returns the next position.
// It is a read-then-write: callers must hold the store's serialization point
// (mutex or transaction lock) until the new item is written.
func AssignPosition(ctx context.Context, r PositionReader) (int, error) {
	max, ok, err := r.MaxPosition(ctx)
	if err != nil {
		return 0, err
	}
	return NextPosition(max, ok), nil
}
