package repository

import (
	"context"
	"fmt"
	"sync"

	"weathergen/internal/common"
	"weathergen/internal/domain/model"
)

// memoryJobRepository keeps records in a mutex-guarded map. It backs tests
// and single-node development runs; the version check mirrors the durable
// implementations exactly so CAS behavior can be exercised without Redis.
type memoryJobRepository struct {
	mu   sync.Mutex
	jobs map[string]*model.JobRecord
}

func NewMemoryJobRepository() JobRepository {
	return &memoryJobRepository{jobs: make(map[string]*model.JobRecord)}
}

func (r *memoryJobRepository) Create(_ context.Context, job *model.JobRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return fmt.Errorf("job %s: %w", job.ID, common.ErrAlreadyExists)
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *memoryJobRepository) Get(_ context.Context, id string) (*model.JobRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return job.Clone(), nil
}

func (r *memoryJobRepository) Update(_ context.Context, job *model.JobRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.jobs[job.ID]
	if !ok {
		return common.ErrNotFound
	}
	if stored.Version != job.Version {
		return fmt.Errorf("job %s: %w", job.ID, common.ErrVersionConflict)
	}
	next := job.Clone()
	next.Version = job.Version + 1
	r.jobs[job.ID] = next
	job.Version = next.Version
	return nil
}
