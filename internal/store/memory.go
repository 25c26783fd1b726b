package store

import (
	"context"
	"sort"
	"sync"

	"github.com/sells-group/taskrouter/internal/model"
)

// MemoryStore is an in-process BenchmarkStore, the default driver and the
// fallback when a persistent store is unavailable.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*model.BenchmarkEntry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*model.BenchmarkEntry)}
}

func (s *MemoryStore) Get(_ context.Context, backendID string) (*model.BenchmarkEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[backendID]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (s *MemoryStore) Record(_ context.Context, outcome model.OutcomeRecord) (*model.BenchmarkEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[outcome.SelectedBackend]
	if !ok {
		e = &model.BenchmarkEntry{BackendID: outcome.SelectedBackend}
		s.entries[outcome.SelectedBackend] = e
	}
	applyOutcome(e, outcome)
	cp := *e
	return &cp, nil
}

func (s *MemoryStore) List(_ context.Context) ([]model.BenchmarkEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.BenchmarkEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BackendID < out[j].BackendID })
	return out, nil
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
