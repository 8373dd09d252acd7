package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

type (
	Handler interface {
		Name() string
		Handle(ctx context.Context, payload json.RawMessage) error
	}

	TaskHandlerFunc[T any]  func(ctx context.Context, payload T) error
	PeriodicTaskHandlerFunc func(ctx context.Context) error
)

// NewTaskHandler registers a handler under the qualified name of T.
func NewTaskHandler[T any](handler TaskHandlerFunc[T]) Handler {
	var payload T
	return NewNamedTaskHandler(qualifiedStructName(payload), handler)
}

// NewNamedTaskHandler registers a typed handler under an explicit name,
// which is what schedule files and WithTaskName refer to.
func NewNamedTaskHandler[T any](name string, handler TaskHandlerFunc[T]) Handler {
	return &oneTimeTaskHandler[T]{
		name:    name,
		handler: handler,
	}
}

func NewPeriodicTaskHandler(name string, handler PeriodicTaskHandlerFunc) Handler {
	return &periodicTaskHandler{
		name:    name,
		handler: handler,
	}
}

type oneTimeTaskHandler[T any] struct {
	name    string
	handler TaskHandlerFunc[T]
}

func (h *oneTimeTaskHandler[T]) Name() string {
	return h.name
}

func (h *oneTimeTaskHandler[T]) Handle(ctx context.Context, payload json.RawMessage) error {
	var t T
	if len(payload) > 0 && string(payload) != "null" {
		if err := json.Unmarshal(payload, &t); err != nil {
			return fmt.Errorf("failed to decode payload for %q: %w", h.name, err)
		}
	}
	return h.handler(ctx, t)
}

type periodicTaskHandler struct {
	name    string
	handler PeriodicTaskHandlerFunc
}

func (h *periodicTaskHandler) Name() string {
	return h.name
}

func (h *periodicTaskHandler) Handle(ctx context.Context, _ json.RawMessage) error {
	return h.handler(ctx)
}
