package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"weathergen/internal/domain/model"
	"weathergen/internal/platform/config"
)

// Task types on the asynq transport. Delivery is at-least-once: a handler
// error triggers redelivery, so every handler must tolerate replays.
const (
	TaskTypeDispatch = "job:dispatch"
	TaskTypeStation  = "job:station"

	queueName = "weathergen"
)

// DispatchMessage is the start-job signal emitted once per created job.
type DispatchMessage struct {
	JobID string `json:"job_id"`
}

// StationMessage is the per-unit signal emitted by the fan-out dispatcher.
type StationMessage struct {
	JobID   string               `json:"job_id"`
	Station model.WeatherStation `json:"station"`
}

// Publisher is the transport surface components emit signals through.
type Publisher interface {
	PublishDispatch(ctx context.Context, msg DispatchMessage) error
	PublishStation(ctx context.Context, msg StationMessage) error
}

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// AsynqPublisher emits signals through an asynq client.
type AsynqPublisher struct {
	client *asynq.Client
}

func NewPublisher(cfg *config.Config) *AsynqPublisher {
	return &AsynqPublisher{client: asynq.NewClient(redisOpt(cfg))}
}

func (p *AsynqPublisher) PublishDispatch(ctx context.Context, msg DispatchMessage) error {
	return p.enqueue(ctx, TaskTypeDispatch, msg)
}

func (p *AsynqPublisher) PublishStation(ctx context.Context, msg StationMessage) error {
	return p.enqueue(ctx, TaskTypeStation, msg)
}

func (p *AsynqPublisher) enqueue(ctx context.Context, taskType string, msg interface{}) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", taskType, err)
	}
	task := asynq.NewTask(taskType, payload, asynq.Queue(queueName))
	if _, err := p.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueueing %s: %w", taskType, err)
	}
	return nil
}

func (p *AsynqPublisher) Close() error {
	return p.client.Close()
}

// Server wraps the asynq consumer side and adapts raw tasks to typed handler
// functions. Malformed payloads are logged and dropped without retry, since
// nothing useful can correlate them to a job.
type Server struct {
	srv *asynq.Server
	mux *asynq.ServeMux
}

func NewServer(cfg *config.Config) *Server {
	srv := asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency: cfg.QueueConcurrency,
			Queues: map[string]int{
				queueName: 1,
			},
		},
	)
	return &Server{srv: srv, mux: asynq.NewServeMux()}
}

func (s *Server) HandleDispatch(fn func(ctx context.Context, msg DispatchMessage) error) {
	s.mux.HandleFunc(TaskTypeDispatch, func(ctx context.Context, task *asynq.Task) error {
		var msg DispatchMessage
		if err := json.Unmarshal(task.Payload(), &msg); err != nil || msg.JobID == "" {
			log.Printf("ERROR: Dropping malformed %s message: %v", TaskTypeDispatch, err)
			return fmt.Errorf("invalid dispatch payload: %w", asynq.SkipRetry)
		}
		return fn(ctx, msg)
	})
}

func (s *Server) HandleStation(fn func(ctx context.Context, msg StationMessage) error) {
	s.mux.HandleFunc(TaskTypeStation, func(ctx context.Context, task *asynq.Task) error {
		var msg StationMessage
		if err := json.Unmarshal(task.Payload(), &msg); err != nil || msg.JobID == "" {
			log.Printf("ERROR: Dropping malformed %s message: %v", TaskTypeStation, err)
			return fmt.Errorf("invalid station payload: %w", asynq.SkipRetry)
		}
		return fn(ctx, msg)
	})
}

// Run blocks until Shutdown is called.
func (s *Server) Run() error {
	if err := s.srv.Run(s.mux); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
		return fmt.Errorf("asynq server stopped: %w", err)
	}
	return nil
}

func (s *Server) Shutdown() {
	s.srv.Shutdown()
}
