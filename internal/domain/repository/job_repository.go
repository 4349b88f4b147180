package repository

import (
	"context"

	"weathergen/internal/domain/model"
)

// JobRepository is the versioned record store behind all job state. Update is
// a conditional write: it commits only when the record's Version still matches
// the stored one and returns common.ErrVersionConflict otherwise, which is
// what lets many workers mutate one record without an in-process lock.
type JobRepository interface {
	Create(ctx context.Context, job *model.JobRecord) error
	Get(ctx context.Context, id string) (*model.JobRecord, error)
	// Update persists the record with Version+1 iff the stored version equals
	// job.Version. On success job.Version is advanced to the committed value.
	Update(ctx context.Context, job *model.JobRecord) error
}
