package patient

import (
	"context"
	"strings"
	"sync"
)

// Service runs each operation as one load, in-memory change, save cycle.
// Writers hold an exclusive lock across the whole cycle so concurrent
// requests in this process never lose updates; readers share a lock so they
// never observe a half-written file. Separate processes sharing one store
// are not coordinated.
type Service struct {
	store Store
	mu    sync.RWMutex
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Search returns the records matching p. A multi-record match is not an
// error here.
func (s *Service) Search(ctx context.Context, p Predicates) (MatchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.store.Load(ctx)
	if err != nil {
		return MatchResult{}, err
	}
	m := Match(p, c)
	if m.NotFound() {
		return m, ErrNotFound
	}
	return m, nil
}

// Get looks a record up by its primaryKey given as text.
func (s *Service) Get(ctx context.Context, id string) (MatchResult, error) {
	return s.Search(ctx, Predicates{primaryKeyField: id})
}

// Create appends a record built from patch under a freshly allocated key.
// Any primaryKey in patch is ignored.
func (s *Service) Create(ctx context.Context, patch Patch) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.store.Load(ctx)
	if err != nil {
		return Record{}, err
	}
	rec, err := Merge(patch, NextKey(c), Record{})
	if err != nil {
		return Record{}, err
	}
	c = append(c, rec)
	if err := s.store.Save(ctx, c); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Update overlays patch onto the record named by patch's primaryKey and
// writes it back in place.
func (s *Service) Update(ctx context.Context, patch Patch) (Record, error) {
	key, err := requireKey(patch[primaryKeyField])
	if err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.store.Load(ctx)
	if err != nil {
		return Record{}, err
	}
	found, idx, err := single(Match(Predicates{primaryKeyField: key}, c))
	if err != nil {
		return Record{}, err
	}
	updated, err := Merge(patch, found.PrimaryKey, found)
	if err != nil {
		return Record{}, err
	}
	c[idx] = updated
	if err := s.store.Save(ctx, c); err != nil {
		return Record{}, err
	}
	return updated, nil
}

// Delete removes the record with the given primaryKey and returns it.
func (s *Service) Delete(ctx context.Context, primaryKey string) (Record, error) {
	key, err := requireKey(primaryKey)
	if err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.store.Load(ctx)
	if err != nil {
		return Record{}, err
	}
	found, idx, err := single(Match(Predicates{primaryKeyField: key}, c))
	if err != nil {
		return Record{}, err
	}
	c = append(c[:idx], c[idx+1:]...)
	if err := s.store.Save(ctx, c); err != nil {
		return Record{}, err
	}
	return found, nil
}

// Count loads the collection and reports its size.
func (s *Service) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.store.Load(ctx)
	if err != nil {
		return 0, err
	}
	return len(c), nil
}

// Snapshot returns the full collection as currently stored.
func (s *Service) Snapshot(ctx context.Context) (Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = Collection{}
	}
	return c, nil
}

func requireKey(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", &ValidationError{Field: primaryKeyField, Message: "Primary Key Required."}
	}
	return v, nil
}

func single(m MatchResult) (Record, int, error) {
	if m.NotFound() {
		return Record{}, -1, ErrNotFound
	}
	if m.Ambiguous() {
		return Record{}, -1, ErrAmbiguous
	}
	rec, idx, _ := m.First()
	return rec, idx, nil
}
