package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"weathergen/internal/app/service"
	"weathergen/internal/common"
	"weathergen/internal/domain/model"
	"weathergen/internal/platform/queue"
)

// ImageProvider fetches a source image for one unit of work.
type ImageProvider interface {
	FetchImage(ctx context.Context) ([]byte, error)
}

// ImageComposer overlays station data onto a source image.
type ImageComposer interface {
	Compose(src []byte, station model.WeatherStation) ([]byte, error)
}

// ArtifactStore persists a composed image and returns its reference.
type ArtifactStore interface {
	Store(ctx context.Context, jobID string, station model.WeatherStation, data []byte) (string, error)
}

// StationWorker consumes per-station signals. Success and failure both settle
// the unit through the record service in a single atomic mutation, so a
// redelivered signal can never double-count and the worker whose write brings
// the settled count to the total is the one that completes the job.
type StationWorker struct {
	records  *service.RecordService
	provider ImageProvider
	composer ImageComposer
	store    ArtifactStore
}

func NewStationWorker(records *service.RecordService, provider ImageProvider, composer ImageComposer, store ArtifactStore) *StationWorker {
	return &StationWorker{records: records, provider: provider, composer: composer, store: store}
}

func (w *StationWorker) Handle(ctx context.Context, msg queue.StationMessage) error {
	unitID := msg.Station.UnitID()

	ref, perr := w.process(ctx, msg)
	if perr != nil {
		log.Printf("ERROR: Job %s station %s: %v", msg.JobID, unitID, perr)
		return w.settle(ctx, msg.JobID, func(j *model.JobRecord) error {
			return j.ApplyUnitFailure(unitID, time.Now())
		})
	}

	log.Printf("INFO: Job %s station %s processed, artifact %s", msg.JobID, unitID, ref)
	return w.settle(ctx, msg.JobID, func(j *model.JobRecord) error {
		return j.ApplyUnitSuccess(unitID, ref, time.Now())
	})
}

func (w *StationWorker) process(ctx context.Context, msg queue.StationMessage) (string, error) {
	src, err := w.provider.FetchImage(ctx)
	if err != nil {
		return "", err
	}
	composed, err := w.composer.Compose(src, msg.Station)
	if err != nil {
		return "", err
	}
	return w.store.Store(ctx, msg.JobID, msg.Station, composed)
}

// settle commits the unit outcome. A record that is gone or already terminal
// means the signal is stale; it is drained, not retried. Exhausted CAS
// retries surface as an error so the transport redelivers the signal, which
// is safe because the settled-unit set makes the replay a no-op.
func (w *StationWorker) settle(ctx context.Context, jobID string, mutate func(*model.JobRecord) error) error {
	_, err := w.records.ApplyUpdate(ctx, jobID, mutate)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) || errors.Is(err, model.ErrTerminalState) {
			log.Printf("WARN: Dropping stale station signal for job %s: %v", jobID, err)
			return nil
		}
		return fmt.Errorf("job %s: settling unit: %w", jobID, err)
	}
	return nil
}
