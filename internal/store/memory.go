package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
)

// MemoryStore is an in-memory Store for tests and ephemeral deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]Report
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{reports: make(map[string]Report)}
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }

func (s *MemoryStore) SaveReport(_ context.Context, r *Report) error {
	if r.ID == "" {
		return eris.New("memory: report missing ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.ID] = *r
	return nil
}

func (s *MemoryStore) GetReport(_ context.Context, id string) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "%s", id)
	}
	return &r, nil
}

func (s *MemoryStore) ListReports(_ context.Context, filter ReportFilter) ([]Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports := make([]Report, 0, len(s.reports))
	for _, r := range s.reports {
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].GeneratedAt.After(reports[j].GeneratedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := max(filter.Offset, 0)
	if offset >= len(reports) {
		return nil, nil
	}
	reports = reports[offset:]
	if len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

func (s *MemoryStore) Close() error { return nil }
