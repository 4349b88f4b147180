package model

import (
	"errors"
	"time"
)

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

var (
	// ErrTerminalState is returned by mutations on a completed or failed record.
	ErrTerminalState = errors.New("job record is in a terminal state")
	// ErrNoChange signals an idempotent no-op mutation; callers skip the write.
	ErrNoChange = errors.New("mutation produced no change")
)

// JobRecord is the single shared entity tracking one image-generation job.
// It is only ever mutated through conditional writes keyed on Version, so
// concurrent station workers cannot lose updates.
type JobRecord struct {
	ID             string          `json:"id"`
	Status         JobStatus       `json:"status"`
	TotalUnits     int             `json:"total_units"`
	ProcessedUnits int             `json:"processed_units"`
	FailedUnits    int             `json:"failed_units"`
	CreatedAt      time.Time       `json:"created_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	ArtifactRefs   []string        `json:"artifact_refs"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	SettledUnits   map[string]bool `json:"settled_units,omitempty"`
	Version        int64           `json:"version"`
}

func NewJobRecord(id string, totalUnits int) *JobRecord {
	return &JobRecord{
		ID:           id,
		Status:       JobStatusQueued,
		TotalUnits:   totalUnits,
		CreatedAt:    time.Now().UTC(),
		ArtifactRefs: []string{},
		Version:      1,
	}
}

func (r *JobRecord) Terminal() bool {
	return r.Status == JobStatusCompleted || r.Status == JobStatusFailed
}

// BeginDispatch moves the record from queued to processing and fixes
// TotalUnits to the count actually fetched from the station feed; the
// creation-time figure is only a provisional estimate. A fetch of zero
// stations completes the job on the spot, since no unit will ever report in.
func (r *JobRecord) BeginDispatch(fetchedTotal int, now time.Time) error {
	if r.Terminal() {
		return ErrTerminalState
	}
	if r.Status == JobStatusProcessing {
		// Redelivered dispatch signal; fan-out is repeated but harmless
		// because settled units are tracked per ID.
		return ErrNoChange
	}
	r.TotalUnits = fetchedTotal
	r.Status = JobStatusProcessing
	if fetchedTotal == 0 {
		r.complete(now)
	}
	return nil
}

// ApplyUnitSuccess records one finished station: the artifact reference is
// appended in completion order and ProcessedUnits is incremented, in the same
// mutation as the terminal check so exactly one writer observes completion.
// A unit that already settled (redelivery) is a no-op.
func (r *JobRecord) ApplyUnitSuccess(unitID, artifactRef string, now time.Time) error {
	if r.settled(unitID) {
		return ErrNoChange
	}
	if r.Terminal() {
		return ErrTerminalState
	}
	r.markSettled(unitID)
	r.ArtifactRefs = append(r.ArtifactRefs, artifactRef)
	r.ProcessedUnits++
	if r.allSettled() {
		r.complete(now)
	}
	return nil
}

// ApplyUnitFailure counts a dropped station against the completion condition
// instead of swallowing it, so a job whose units all settle terminates even
// when some of them failed.
func (r *JobRecord) ApplyUnitFailure(unitID string, now time.Time) error {
	if r.settled(unitID) {
		return ErrNoChange
	}
	if r.Terminal() {
		return ErrTerminalState
	}
	r.markSettled(unitID)
	r.FailedUnits++
	if r.allSettled() {
		r.complete(now)
	}
	return nil
}

func (r *JobRecord) MarkFailed(message string, now time.Time) error {
	if r.Terminal() {
		return ErrTerminalState
	}
	r.Status = JobStatusFailed
	r.ErrorMessage = message
	t := now.UTC()
	r.CompletedAt = &t
	return nil
}

// ProgressPercentage derives progress for status responses; zero-unit jobs
// report 0 by convention.
func (r *JobRecord) ProgressPercentage() int {
	if r.TotalUnits <= 0 {
		return 0
	}
	return r.ProcessedUnits * 100 / r.TotalUnits
}

// Clone returns a deep copy safe to mutate without aliasing stored state.
func (r *JobRecord) Clone() *JobRecord {
	c := *r
	c.ArtifactRefs = append([]string(nil), r.ArtifactRefs...)
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	if r.SettledUnits != nil {
		c.SettledUnits = make(map[string]bool, len(r.SettledUnits))
		for k, v := range r.SettledUnits {
			c.SettledUnits[k] = v
		}
	}
	return &c
}

func (r *JobRecord) settled(unitID string) bool {
	return r.SettledUnits[unitID]
}

func (r *JobRecord) markSettled(unitID string) {
	if r.SettledUnits == nil {
		r.SettledUnits = make(map[string]bool)
	}
	r.SettledUnits[unitID] = true
}

func (r *JobRecord) allSettled() bool {
	return r.TotalUnits > 0 && r.ProcessedUnits+r.FailedUnits >= r.TotalUnits
}

func (r *JobRecord) complete(now time.Time) {
	r.Status = JobStatusCompleted
	t := now.UTC()
	r.CompletedAt = &t
}
