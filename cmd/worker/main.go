package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"weathergen/internal/app/service"
	"weathergen/internal/app/worker"
	"weathergen/internal/domain/repository"
	"weathergen/internal/platform/config"
	"weathergen/internal/platform/database"
	"weathergen/internal/platform/imaging"
	"weathergen/internal/platform/queue"
	"weathergen/internal/platform/storage"
	"weathergen/internal/platform/weather"
)

func main() {
	cfg := config.Load()
	log.Println("Configuration loaded.")

	ctx := context.Background()

	jobRepo, cleanup, err := newJobRepository(ctx, cfg)
	if err != nil {
		log.Fatalf("Could not initialize job store: %v", err)
	}
	defer cleanup()
	log.Printf("Job store ready (backend: %s).", cfg.StoreBackend)

	publisher := queue.NewPublisher(cfg)
	defer publisher.Close()

	artifactStore, err := storage.NewLocalStore(cfg)
	if err != nil {
		log.Fatalf("Could not initialize artifact store: %v", err)
	}

	recordService := service.NewRecordService(jobRepo, service.DefaultRetryPolicy())

	dispatchWorker := worker.NewDispatchWorker(recordService, weather.NewBuienradarClient(cfg), publisher)
	stationWorker := worker.NewStationWorker(recordService, imaging.NewPixabayClient(cfg), imaging.NewComposer(), artifactStore)

	srv := queue.NewServer(cfg)
	srv.HandleDispatch(dispatchWorker.Handle)
	srv.HandleStation(stationWorker.Handle)

	// Graceful shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Worker consuming queue (concurrency %d)...", cfg.QueueConcurrency)
		errCh <- srv.Run()
	}()

	select {
	case <-stop:
		log.Println("Shutdown signal received.")
		srv.Shutdown()
		<-errCh
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Worker stopped with error: %v", err)
		}
	}

	log.Println("Worker stopped gracefully.")
}

func newJobRepository(ctx context.Context, cfg *config.Config) (repository.JobRepository, func(), error) {
	switch cfg.StoreBackend {
	case "postgres":
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := database.EnsureJobSchema(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repository.NewPgJobRepository(db), func() { db.Close() }, nil
	default:
		rdb, err := queue.NewRedisClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewRedisJobRepository(rdb), func() { rdb.Close() }, nil
	}
}
