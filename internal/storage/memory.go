package storage

import (
	"context"
	"sort"
	"sync"
)

// InMemoryStorage keeps jobs for the process lifetime.
type InMemoryStorage struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewInMemoryStorage builds an empty store.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{jobs: make(map[string]*Job)}
}

func (s *InMemoryStorage) SaveJob(_ context.Context, job *Job) error {
	s.mu.Lock()
	s.jobs[job.ID] = clone(job)
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStorage) GetJob(_ context.Context, jobID string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return clone(job), nil
}

func (s *InMemoryStorage) UpdateJob(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return ErrJobNotFound
	}
	s.jobs[job.ID] = clone(job)
	return nil
}

func (s *InMemoryStorage) ListJobs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids, nil
}

func (s *InMemoryStorage) GetJobsByStatus(ctx context.Context, status JobStatus) ([]*Job, error) {
	ids, _ := s.ListJobs(ctx)
	var out []*Job
	for _, id := range ids {
		job, err := s.GetJob(ctx, id)
		if err != nil {
			continue
		}
		if job.Status == status {
			out = append(out, job)
		}
	}
	return out, nil
}

func (s *InMemoryStorage) DeleteJob(_ context.Context, jobID string) error {
	s.mu.Lock()
	delete(s.jobs, jobID)
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStorage) Close() error { return nil }
