package todo

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps items in a map guarded by a single mutex, which also
// serializes position assignment.
type MemoryStore struct {
	mu     sync.Mutex
	items  map[int64]Item
	nextID int64
	now    func() time.Time
}

type MemoryStoreOption func(*MemoryStore)

// WithMemoryStoreClock overrides the timestamp source.
func WithMemoryStoreClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		items:  make(map[int64]Item),
		nextID: 1,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Insert(ctx context.Context, params CreateParams) (Item, error) {
	if err := params.Validate(); err != nil {
		return Item{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	position := NextPosition(s.maxPosition())
	if params.Position != nil {
		position = *params.Position
	}

	now := s.now()
	it := Item{
		ID:        s.nextID,
		Title:     params.Title,
		Position:  position,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.items[it.ID] = it
	s.nextID++
	return it, nil
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return it, nil
}

func (s *MemoryStore) Update(ctx context.Context, id int64, patch Patch) (Item, error) {
	if err := patch.Validate(); err != nil {
		return Item{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	patch.apply(&it)
	it.UpdatedAt = s.now()
	s.items[id] = it
	return it, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) Toggle(ctx context.Context, id int64) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	it.Completed = !it.Completed
	it.UpdatedAt = s.now()
	s.items[id] = it
	return it, nil
}

func (s *MemoryStore) DeleteWhere(ctx context.Context, f Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, it := range s.items {
		if f.Match(it) {
			delete(s.items, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) List(ctx context.Context, f Filter) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]Item, 0, len(s.items))
	for _, it := range s.items {
		if f.Match(it) {
			items = append(items, it)
		}
	}
	slices.SortFunc(items, compareItems)
	return items, nil
}

func (s *MemoryStore) Count(ctx context.Context, f Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, it := range s.items {
		if f.Match(it) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) MaxPosition(ctx context.Context) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	max, ok := s.maxPosition()
	return max, ok, nil
}

// maxPosition requires s.mu.
func (s *MemoryStore) maxPosition() (int, bool) {
	max, ok := 0, false
	for _, it := range s.items {
		if !ok || it.Position > max {
			max, ok = it.Position, true
		}
	}
	return max, ok
}

// compareItems orders by position, breaking ties by id (creation order).
func compareItems(a, b Item) int {
	return cmp.Or(cmp.Compare(a.Position, b.Position), cmp.Compare(a.ID, b.ID))
}
