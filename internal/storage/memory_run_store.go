package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/correlator-io/trackcheck/internal/validation"
)

var _ validation.Store = (*MemoryRunStore)(nil)

type digestKey struct {
	content, schema string
}

// MemoryRunStore is a validation.Store kept in process memory. It backs the
// service when no database is configured and is used in tests.
type MemoryRunStore struct {
	mu       sync.RWMutex
	runs     map[uuid.UUID]*validation.Run
	byDigest map[digestKey]uuid.UUID
}

// NewMemoryRunStore returns an empty MemoryRunStore.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{
		runs:     make(map[uuid.UUID]*validation.Run),
		byDigest: make(map[digestKey]uuid.UUID),
	}
}

// SaveRun implements validation.Store.
func (s *MemoryRunStore) SaveRun(_ context.Context, run *validation.Run) (bool, bool, error) {
	if run == nil || run.Result == nil {
		return false, false, ErrNilRun
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := digestKey{run.ContentDigest, run.SchemaDigest}
	if id, ok := s.byDigest[key]; ok {
		existing := s.runs[id]
		run.ID = existing.ID
		run.CreatedAt = existing.CreatedAt

		return false, true, nil
	}

	stored := *run
	s.runs[run.ID] = &stored
	s.byDigest[key] = run.ID

	return true, false, nil
}

// GetRun implements validation.Store.
func (s *MemoryRunStore) GetRun(_ context.Context, id uuid.UUID) (*validation.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", validation.ErrRunNotFound, id)
	}

	found := *run

	return &found, nil
}

// ListRuns implements validation.Store.
func (s *MemoryRunStore) ListRuns(_ context.Context, fileName string, limit int) ([]*validation.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*validation.Run, 0, len(s.runs))

	for _, run := range s.runs {
		if fileName != "" && run.FileName != fileName {
			continue
		}

		found := *run
		runs = append(runs, &found)
	}

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}

		return runs[i].ID.String() < runs[j].ID.String()
	})

	if limit >= 0 && len(runs) > limit {
		runs = runs[:limit]
	}

	return runs, nil
}

// HealthCheck implements validation.Store. The memory store is always healthy.
func (s *MemoryRunStore) HealthCheck(context.Context) error {
	return nil
}
