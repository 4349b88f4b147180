package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"weathergen/internal/common"
	"weathergen/internal/domain/model"
	"weathergen/internal/domain/repository"
)

// RetryPolicy bounds the conflict-retry loop of the record service.
type RetryPolicy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	JitterFraction float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    20,
		BaseDelay:      100 * time.Millisecond,
		MaxDelay:       2 * time.Second,
		JitterFraction: 0.3,
	}
}

// RecordService is the only mutation path for job records. ApplyUpdate runs a
// read-mutate-conditional-write loop against the versioned store, so any
// number of workers can update the same record concurrently and every
// committed write strictly supersedes the previous one.
type RecordService struct {
	repo   repository.JobRepository
	policy RetryPolicy
}

func NewRecordService(repo repository.JobRepository, policy RetryPolicy) *RecordService {
	return &RecordService{repo: repo, policy: policy}
}

// ApplyUpdate re-reads the record before every attempt, so mutate must be a
// pure function of the record it is handed; it may be invoked several times.
// A mutation returning model.ErrNoChange commits nothing and succeeds.
func (s *RecordService) ApplyUpdate(ctx context.Context, jobID string, mutate func(*model.JobRecord) error) (*model.JobRecord, error) {
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		job, err := s.repo.Get(ctx, jobID)
		if err != nil {
			return nil, err
		}

		if err := mutate(job); err != nil {
			if errors.Is(err, model.ErrNoChange) {
				return job, nil
			}
			return nil, err
		}

		err = s.repo.Update(ctx, job)
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, common.ErrVersionConflict) {
			return nil, err
		}
		if attempt == s.policy.MaxAttempts {
			break
		}
		if err := s.backoff(ctx, attempt); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("job %s: %w", jobID, common.ErrConcurrencyExhausted)
}

// backoff sleeps min(base*2^(attempt-1), max) plus jitter, honoring ctx.
func (s *RecordService) backoff(ctx context.Context, attempt int) error {
	delay := s.policy.BaseDelay << (attempt - 1)
	if delay > s.policy.MaxDelay || delay <= 0 {
		delay = s.policy.MaxDelay
	}
	if s.policy.JitterFraction > 0 {
		delay += time.Duration(rand.Int63n(int64(float64(delay)*s.policy.JitterFraction) + 1))
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
