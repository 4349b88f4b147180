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

// WorkItemSource supplies the units a job fans out into.
type WorkItemSource interface {
	ListStations(ctx context.Context) ([]model.WeatherStation, error)
}

// DispatchWorker consumes start-job signals: it fetches the station list,
// moves the job to processing and emits one station signal per unit. Either
// every intended signal is emitted or the job is marked failed; there is no
// silent partial fan-out.
type DispatchWorker struct {
	records   *service.RecordService
	source    WorkItemSource
	publisher queue.Publisher
}

func NewDispatchWorker(records *service.RecordService, source WorkItemSource, publisher queue.Publisher) *DispatchWorker {
	return &DispatchWorker{records: records, source: source, publisher: publisher}
}

func (w *DispatchWorker) Handle(ctx context.Context, msg queue.DispatchMessage) error {
	stations, err := w.source.ListStations(ctx)
	if err != nil {
		log.Printf("ERROR: Job %s: station fetch failed: %v", msg.JobID, err)
		return w.failJob(ctx, msg.JobID, fmt.Sprintf("fetching weather stations: %v", err))
	}

	job, err := w.records.ApplyUpdate(ctx, msg.JobID, func(j *model.JobRecord) error {
		return j.BeginDispatch(len(stations), time.Now())
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) || errors.Is(err, model.ErrTerminalState) {
			log.Printf("WARN: Dropping dispatch signal for job %s: %v", msg.JobID, err)
			return nil
		}
		return fmt.Errorf("job %s: transition to processing: %w", msg.JobID, err)
	}

	if job.Status == model.JobStatusCompleted {
		log.Printf("INFO: Job %s had no stations to process; completed immediately.", msg.JobID)
		return nil
	}

	for i, station := range stations {
		sm := queue.StationMessage{JobID: msg.JobID, Station: station}
		if err := w.publisher.PublishStation(ctx, sm); err != nil {
			log.Printf("ERROR: Job %s: fan-out interrupted after %d of %d signals: %v", msg.JobID, i, len(stations), err)
			return w.failJob(ctx, msg.JobID, fmt.Sprintf("fan-out interrupted after %d of %d unit signals: %v", i, len(stations), err))
		}
	}

	log.Printf("INFO: Job %s: queued %d station processing signals.", msg.JobID, len(stations))
	return nil
}

// failJob marks the record failed; the job is then terminal, so the dispatch
// signal itself is consumed rather than retried. The signal is redelivered
// only when even the failure mark cannot be committed.
func (w *DispatchWorker) failJob(ctx context.Context, jobID, message string) error {
	_, err := w.records.ApplyUpdate(ctx, jobID, func(j *model.JobRecord) error {
		return j.MarkFailed(message, time.Now())
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) || errors.Is(err, model.ErrTerminalState) {
			log.Printf("WARN: Could not fail job %s: %v", jobID, err)
			return nil
		}
		return fmt.Errorf("job %s: marking failed: %w", jobID, err)
	}
	return nil
}
