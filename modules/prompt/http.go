package prompt

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/todokit/handler"
	"github.com/dmitrymomot/todokit/pkg/logger"
)

// RandomResponse is the body of GET /ai/random_llm_request.
type RandomResponse struct {
	Success bool `json:"success"`
	Pair    Pair `json:"pair"`
}

// Handle returns the router mounted under /ai.
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()
	r.Get("/random_llm_request", handler.Wrap(s.randomRequest))
	return r
}

func (s *Service) randomRequest(ctx handler.Context, _ struct{}) handler.Response {
	p, err := s.RequestRandom(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "random llm request failed", logger.Error(err))
		if errors.Is(err, ErrStorage) || errors.Is(err, ErrGeneration) {
			return handler.JSONError(handler.ErrServiceUnavailable)
		}
		return handler.JSONError(err)
	}
	return handler.JSON(RandomResponse{Success: true, Pair: p})
}
