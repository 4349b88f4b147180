package service

import (
	"context"
	"errors"
	"testing"

	"weathergen/internal/common"
	"weathergen/internal/domain/model"
	"weathergen/internal/domain/repository"
	"weathergen/internal/platform/queue"
)

type stubPublisher struct {
	dispatches  []queue.DispatchMessage
	stations    []queue.StationMessage
	dispatchErr error
	attempted   []string
}

func (p *stubPublisher) PublishDispatch(_ context.Context, msg queue.DispatchMessage) error {
	p.attempted = append(p.attempted, msg.JobID)
	if p.dispatchErr != nil {
		return p.dispatchErr
	}
	p.dispatches = append(p.dispatches, msg)
	return nil
}

func (p *stubPublisher) PublishStation(_ context.Context, msg queue.StationMessage) error {
	p.stations = append(p.stations, msg)
	return nil
}

func TestCreateJob(t *testing.T) {
	repo := repository.NewMemoryJobRepository()
	pub := &stubPublisher{}
	svc := NewJobService(repo, NewRecordService(repo, testPolicy()), pub, 50)

	job, err := svc.CreateJob(context.Background())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.ID == "" {
		t.Fatal("job ID not assigned")
	}
	if job.Status != model.JobStatusQueued {
		t.Fatalf("status = %s, want queued", job.Status)
	}
	if job.TotalUnits != 50 || job.ProcessedUnits != 0 {
		t.Fatalf("unexpected counters: %+v", job)
	}
	if len(job.ArtifactRefs) != 0 {
		t.Fatalf("artifact refs should start empty: %#v", job.ArtifactRefs)
	}

	if len(pub.dispatches) != 1 || pub.dispatches[0].JobID != job.ID {
		t.Fatalf("expected one dispatch signal for %s, got %#v", job.ID, pub.dispatches)
	}

	stored, err := repo.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("record not durably written: %v", err)
	}
	if stored.Status != model.JobStatusQueued {
		t.Fatalf("stored status = %s", stored.Status)
	}
}

func TestCreateJobPublishFailure(t *testing.T) {
	repo := repository.NewMemoryJobRepository()
	pub := &stubPublisher{dispatchErr: errors.New("broker down")}
	svc := NewJobService(repo, NewRecordService(repo, testPolicy()), pub, 50)

	if _, err := svc.CreateJob(context.Background()); err == nil {
		t.Fatal("CreateJob succeeded despite publish failure")
	}
	if len(pub.attempted) != 1 {
		t.Fatalf("expected one publish attempt, got %d", len(pub.attempted))
	}

	// The record must not be left dangling in queued.
	stored, err := repo.Get(context.Background(), pub.attempted[0])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != model.JobStatusFailed {
		t.Fatalf("undispatchable job status = %s, want failed", stored.Status)
	}
	if stored.ErrorMessage == "" {
		t.Fatal("undispatchable job has no error message")
	}
}

func TestGetJobUnknown(t *testing.T) {
	repo := repository.NewMemoryJobRepository()
	svc := NewJobService(repo, NewRecordService(repo, testPolicy()), &stubPublisher{}, 50)

	if _, err := svc.GetJob(context.Background(), "unknown-id"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("GetJob(unknown) = %v, want ErrNotFound", err)
	}
}
