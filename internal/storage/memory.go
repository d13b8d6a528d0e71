package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"esnkit/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	clusters    map[string][]model.ClusterSummary
	errSeries   map[string][]float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.clusters = make(map[string][]model.ClusterSummary)
	s.errSeries = make(map[string][]float64)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	return cloneRun(run), true, nil
}

// ListRuns returns runs newest first.
func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, cloneRun(run))
	}
	sortRuns(out)
	return out, nil
}

func (s *MemoryStore) SaveClusterSummaries(_ context.Context, runID string, clusters []model.ClusterSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	copied := make([]model.ClusterSummary, len(clusters))
	copy(copied, clusters)
	s.clusters[runID] = copied
	return nil
}

func (s *MemoryStore) GetClusterSummaries(_ context.Context, runID string) ([]model.ClusterSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clusters, ok := s.clusters[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.ClusterSummary, len(clusters))
	copy(copied, clusters)
	return copied, true, nil
}

func (s *MemoryStore) SaveErrorSeries(_ context.Context, runID string, series []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	s.errSeries[runID] = append([]float64(nil), series...)
	return nil
}

func (s *MemoryStore) GetErrorSeries(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series, ok := s.errSeries[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]float64(nil), series...), true, nil
}

func cloneRun(run model.RunRecord) model.RunRecord {
	run.Reservoirs = append([]model.ReservoirSummary(nil), run.Reservoirs...)
	return run
}

func sortRuns(runs []model.RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
}
