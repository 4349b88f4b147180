package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"weathergen/internal/common"
	"weathergen/internal/domain/model"
	"weathergen/internal/domain/repository"
	"weathergen/internal/platform/queue"
)

// JobService creates jobs and serves status snapshots. Creation writes the
// record first and only then emits the dispatch signal; a job that cannot be
// durably recorded must never reach the queue.
type JobService struct {
	repo             repository.JobRepository
	records          *RecordService
	publisher        queue.Publisher
	provisionalUnits int
}

func NewJobService(repo repository.JobRepository, records *RecordService, publisher queue.Publisher, provisionalUnits int) *JobService {
	return &JobService{
		repo:             repo,
		records:          records,
		publisher:        publisher,
		provisionalUnits: provisionalUnits,
	}
}

func (s *JobService) CreateJob(ctx context.Context) (*model.JobRecord, error) {
	job := model.NewJobRecord(uuid.NewString(), s.provisionalUnits)

	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("%w: creating job record: %v", common.ErrStoreUnavailable, err)
	}

	if err := s.publisher.PublishDispatch(ctx, queue.DispatchMessage{JobID: job.ID}); err != nil {
		// The record exists but will never be dispatched; fail it so it does
		// not sit in queued forever.
		if _, ferr := s.records.ApplyUpdate(ctx, job.ID, func(j *model.JobRecord) error {
			return j.MarkFailed("dispatch signal could not be published: "+err.Error(), time.Now())
		}); ferr != nil {
			log.Printf("ERROR: Failed to mark undispatchable job %s as failed: %v", job.ID, ferr)
		}
		return nil, fmt.Errorf("publishing dispatch signal for job %s: %w", job.ID, err)
	}

	log.Printf("INFO: Job %s created and dispatch signal enqueued.", job.ID)
	return job, nil
}

// GetJob returns the last committed snapshot of the record; reads are
// unsynchronized and side-effect free.
func (s *JobService) GetJob(ctx context.Context, jobID string) (*model.JobRecord, error) {
	return s.repo.Get(ctx, jobID)
}
