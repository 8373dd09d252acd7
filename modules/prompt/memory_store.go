package prompt

import (
	"context"
	"sync"
	"time"
)

type MemoryStore struct {
	mu     sync.Mutex
	pairs  map[int64]Pair
	nextID int64
	now    func() time.Time
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{pairs: make(map[int64]Pair), nextID: 1, now: now}
}

func (s *MemoryStore) Create(ctx context.Context, prompt string) (Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	p := Pair{ID: s.nextID, Prompt: prompt, CreatedAt: now, UpdatedAt: now}
	s.pairs[p.ID] = p
	s.nextID++
	return p, nil
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pairs[id]
	if !ok {
		return Pair{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) RecordResponse(ctx context.Context, id int64, response, model string) (Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pairs[id]
	if !ok {
		return Pair{}, ErrNotFound
	}
	p.Response = &response
	p.Model = &model
	p.Version++
	p.UpdatedAt = s.now()
	s.pairs[id] = p
	return p, nil
}
