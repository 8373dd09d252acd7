package prompt

import "context"

// Store persists prompt pairs.
type Store interface {
	Create(ctx context.Context, prompt string) (Pair, error)
	Get(ctx context.Context, id int64) (Pair, error)
	// RecordResponse stores response and model and increments Version in
	// one step.
	RecordResponse(ctx context.Context, id int64, response, model string) (Pair, error)
}
