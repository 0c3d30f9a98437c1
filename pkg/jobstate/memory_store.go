package jobstate

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const DefaultJobTTL = 24 * time.Hour

// MemoryStore keeps jobs in process. Each entry expires ttl after it was last
// put.
type MemoryStore struct {
	cache *expirable.LRU[string, *Job]
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}

	return &MemoryStore{cache: expirable.NewLRU[string, *Job](0, nil, ttl)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	job, ok := s.cache.Get(id)
	if !ok {
		return nil, ErrJobNotFound
	}

	return job.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, job *Job) error {
	s.cache.Add(job.ID, job.Clone())
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, id string) error {
	s.cache.Remove(id)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Job, error) {
	var jobs []*Job
	for _, job := range s.cache.Values() {
		jobs = append(jobs, job.Clone())
	}

	return jobs, nil
}
