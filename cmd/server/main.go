package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"weathergen/internal/api"
	"weathergen/internal/app/service"
	"weathergen/internal/domain/repository"
	"weathergen/internal/platform/config"
	"weathergen/internal/platform/database"
	"weathergen/internal/platform/queue"
	"weathergen/internal/platform/storage"
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
	jobService := service.NewJobService(jobRepo, recordService, publisher, cfg.ProvisionalStationCount)

	router := api.NewRouter(jobService, artifactStore)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
		}
	}()

	<-stop // Wait for interrupt signal

	log.Println("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Println("Server stopped gracefully.")
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
