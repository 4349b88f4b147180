package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"weathergen/internal/app/service"
	"weathergen/internal/common"
	"weathergen/internal/domain/model"
	"weathergen/internal/domain/repository"
	"weathergen/internal/platform/queue"
)

type stubProvider struct {
	err error
}

func (p *stubProvider) FetchImage(context.Context) ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	return []byte("source-image"), nil
}

type stubComposer struct {
	err error
}

func (c *stubComposer) Compose(src []byte, station model.WeatherStation) ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	return append([]byte("composed:"), src...), nil
}

type stubStore struct {
	mu     sync.Mutex
	stored map[string][]byte
	err    error
}

func (s *stubStore) Store(_ context.Context, jobID string, station model.WeatherStation, data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stored == nil {
		s.stored = make(map[string][]byte)
	}
	ref := fmt.Sprintf("%s/%d.jpg", jobID, station.StationID)
	s.stored[ref] = data
	return ref, nil
}

func newStationFixture(t *testing.T, units int) (repository.JobRepository, *StationWorker, *stubStore) {
	t.Helper()
	repo := repository.NewMemoryJobRepository()
	records := service.NewRecordService(repo, testPolicy())
	store := &stubStore{}
	w := NewStationWorker(records, &stubProvider{}, &stubComposer{}, store)

	job := model.NewJobRecord("job-1", units)
	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	job.BeginDispatch(units, time.Now())
	if err := repo.Update(context.Background(), job); err != nil {
		t.Fatalf("Update: %v", err)
	}
	return repo, w, store
}

func stationMsg(id int) queue.StationMessage {
	return queue.StationMessage{
		JobID:   "job-1",
		Station: model.WeatherStation{StationID: id, StationName: fmt.Sprintf("Meetstation %d", id)},
	}
}

func TestStationWorkerSuccess(t *testing.T) {
	repo, w, store := newStationFixture(t, 3)

	if err := w.Handle(context.Background(), stationMsg(6260)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	job, _ := repo.Get(context.Background(), "job-1")
	if job.ProcessedUnits != 1 {
		t.Fatalf("ProcessedUnits = %d, want 1", job.ProcessedUnits)
	}
	if len(job.ArtifactRefs) != 1 || job.ArtifactRefs[0] != "job-1/6260.jpg" {
		t.Fatalf("unexpected artifact refs: %#v", job.ArtifactRefs)
	}
	if job.Status != model.JobStatusProcessing {
		t.Fatalf("status = %s, want processing with units outstanding", job.Status)
	}
	if len(store.stored) != 1 {
		t.Fatalf("stored %d artifacts, want 1", len(store.stored))
	}
}

func TestStationWorkersCompleteJobConcurrently(t *testing.T) {
	repo, w, _ := newStationFixture(t, 3)

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			errs <- w.Handle(context.Background(), stationMsg(6200+id))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent Handle: %v", err)
		}
	}

	job, _ := repo.Get(context.Background(), "job-1")
	if job.Status != model.JobStatusCompleted {
		t.Fatalf("status = %s, want completed", job.Status)
	}
	if job.ProcessedUnits != 3 {
		t.Fatalf("ProcessedUnits = %d, want 3", job.ProcessedUnits)
	}
	if job.CompletedAt == nil {
		t.Fatal("CompletedAt not set")
	}
	if len(job.ArtifactRefs) != 3 {
		t.Fatalf("len(ArtifactRefs) = %d, want 3", len(job.ArtifactRefs))
	}
}

func TestStationWorkerCollaboratorFailureSettlesUnit(t *testing.T) {
	repo := repository.NewMemoryJobRepository()
	records := service.NewRecordService(repo, testPolicy())
	w := NewStationWorker(records, &stubProvider{err: errors.New("image source down")}, &stubComposer{}, &stubStore{})

	job := model.NewJobRecord("job-1", 2)
	repo.Create(context.Background(), job)
	job.BeginDispatch(2, time.Now())
	repo.Update(context.Background(), job)

	if err := w.Handle(context.Background(), stationMsg(6260)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	got, _ := repo.Get(context.Background(), "job-1")
	if got.FailedUnits != 1 || got.ProcessedUnits != 0 {
		t.Fatalf("failed=%d processed=%d, want 1/0", got.FailedUnits, got.ProcessedUnits)
	}
	if len(got.ArtifactRefs) != 0 {
		t.Fatalf("failed unit appended an artifact: %#v", got.ArtifactRefs)
	}
	if got.Status != model.JobStatusProcessing {
		t.Fatalf("status = %s, want processing", got.Status)
	}
}

func TestStationWorkerRedeliveryIsIdempotent(t *testing.T) {
	repo, w, _ := newStationFixture(t, 3)
	msg := stationMsg(6260)

	if err := w.Handle(context.Background(), msg); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := w.Handle(context.Background(), msg); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	job, _ := repo.Get(context.Background(), "job-1")
	if job.ProcessedUnits != 1 {
		t.Fatalf("ProcessedUnits = %d after redelivery, want 1", job.ProcessedUnits)
	}
	if len(job.ArtifactRefs) != 1 {
		t.Fatalf("len(ArtifactRefs) = %d after redelivery, want 1", len(job.ArtifactRefs))
	}
}

func TestStationWorkerMixedOutcomesCompleteJob(t *testing.T) {
	repo := repository.NewMemoryJobRepository()
	records := service.NewRecordService(repo, testPolicy())
	okWorker := NewStationWorker(records, &stubProvider{}, &stubComposer{}, &stubStore{})
	badWorker := NewStationWorker(records, &stubProvider{err: errors.New("down")}, &stubComposer{}, &stubStore{})

	job := model.NewJobRecord("job-1", 3)
	repo.Create(context.Background(), job)
	job.BeginDispatch(3, time.Now())
	repo.Update(context.Background(), job)

	if err := okWorker.Handle(context.Background(), stationMsg(1)); err != nil {
		t.Fatalf("ok 1: %v", err)
	}
	if err := badWorker.Handle(context.Background(), stationMsg(2)); err != nil {
		t.Fatalf("bad 2: %v", err)
	}
	if err := okWorker.Handle(context.Background(), stationMsg(3)); err != nil {
		t.Fatalf("ok 3: %v", err)
	}

	got, _ := repo.Get(context.Background(), "job-1")
	if got.Status != model.JobStatusCompleted {
		t.Fatalf("status = %s, want completed when all units settled", got.Status)
	}
	if got.ProcessedUnits != 2 || got.FailedUnits != 1 {
		t.Fatalf("processed=%d failed=%d, want 2/1", got.ProcessedUnits, got.FailedUnits)
	}
}

// alwaysConflictRepo forces every conditional write to conflict.
type alwaysConflictRepo struct {
	repository.JobRepository
}

func (r *alwaysConflictRepo) Update(context.Context, *model.JobRecord) error {
	return common.ErrVersionConflict
}

func TestStationWorkerSurfacesExhaustionForRedelivery(t *testing.T) {
	base := repository.NewMemoryJobRepository()
	job := model.NewJobRecord("job-1", 1)
	base.Create(context.Background(), job)
	job.BeginDispatch(1, time.Now())
	base.Update(context.Background(), job)

	records := service.NewRecordService(&alwaysConflictRepo{JobRepository: base}, testPolicy())
	w := NewStationWorker(records, &stubProvider{}, &stubComposer{}, &stubStore{})

	err := w.Handle(context.Background(), stationMsg(6260))
	if !errors.Is(err, common.ErrConcurrencyExhausted) {
		t.Fatalf("Handle = %v, want ErrConcurrencyExhausted surfaced for redelivery", err)
	}
}

func TestStationWorkerDropsStaleSignal(t *testing.T) {
	repo := repository.NewMemoryJobRepository()
	records := service.NewRecordService(repo, testPolicy())
	w := NewStationWorker(records, &stubProvider{}, &stubComposer{}, &stubStore{})

	job := model.NewJobRecord("job-1", 1)
	repo.Create(context.Background(), job)
	job.BeginDispatch(1, time.Now())
	repo.Update(context.Background(), job)
	job.MarkFailed("fan-out interrupted", time.Now())
	repo.Update(context.Background(), job)

	if err := w.Handle(context.Background(), stationMsg(6260)); err != nil {
		t.Fatalf("Handle on terminal job = %v, want nil (drained)", err)
	}

	got, _ := repo.Get(context.Background(), "job-1")
	if got.ProcessedUnits != 0 {
		t.Fatalf("terminal job mutated: %+v", got)
	}
}
