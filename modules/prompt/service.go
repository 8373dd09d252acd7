package prompt

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/todokit/pkg/logger"
	"github.com/dmitrymomot/todokit/pkg/queue"
)

const (
	PerformTaskName = "prompt.perform"
	// RandomPrompt is the fixed prompt used by the random request endpoint.
	RandomPrompt = "Hello world!"
)

// PerformPayload is the argument set of the perform task.
type PerformPayload struct {
	PairID int64  `json:"pair_id"`
	Model  string `json:"model"`
}

type Service struct {
	store     Store
	generator Generator
	enqueuer  queue.TaskEnqueuer
	model     string
	log       *slog.Logger
}

type ServiceOption func(*Service)

func WithServiceLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithModel sets the model used when a request does not name one.
func WithModel(model string) ServiceOption {
	return func(s *Service) {
		if model != "" {
			s.model = model
		}
	}
}

func NewService(store Store, generator Generator, enqueuer queue.TaskEnqueuer, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if generator == nil {
		return nil, ErrGeneratorNil
	}

	s := &Service{
		store:     store,
		generator: generator,
		enqueuer:  enqueuer,
		model:     DefaultModel,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("prompt"))
	return s, nil
}

// Perform asks the generator for a response to the pair's prompt and records
// it, bumping the pair's version.
func (s *Service) Perform(ctx context.Context, id int64, model string) (Pair, error) {
	if model == "" {
		model = s.model
	}

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return Pair{}, err
	}

	response, err := s.generator.Generate(ctx, model, p.Prompt)
	if err != nil {
		return Pair{}, err
	}

	p, err = s.store.RecordResponse(ctx, id, response, model)
	if err != nil {
		return Pair{}, err
	}
	s.log.InfoContext(ctx, "prompt performed",
		slog.Int64("pair_id", p.ID),
		slog.String("model", model),
		slog.Int("version", p.Version))
	return p, nil
}

// RequestRandom stores a pair with RandomPrompt and queues its generation.
// Without an enqueuer the response is generated inline.
func (s *Service) RequestRandom(ctx context.Context) (Pair, error) {
	p, err := s.store.Create(ctx, RandomPrompt)
	if err != nil {
		return Pair{}, err
	}

	if s.enqueuer == nil {
		return s.Perform(ctx, p.ID, s.model)
	}

	if _, err := s.enqueuer.Enqueue(ctx, PerformPayload{PairID: p.ID, Model: s.model},
		queue.WithTaskName(PerformTaskName),
	); err != nil {
		return Pair{}, err
	}
	return p, nil
}

// PerformHandler is the queue handler for PerformTaskName.
func (s *Service) PerformHandler() queue.Handler {
	return queue.NewNamedTaskHandler(PerformTaskName, func(ctx context.Context, p PerformPayload) error {
		_, err := s.Perform(ctx, p.PairID, p.Model)
		return err
	})
}
