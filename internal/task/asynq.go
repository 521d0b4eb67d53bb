package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// TypeExtract is the queue task type for document extraction jobs.
const TypeExtract = "task:extract"

// AsynqConfig configures the Redis-backed dispatch mode.
type AsynqConfig struct {
	// RedisAddr is the host:port of the Redis broker
	RedisAddr string

	// Queue is the asynq queue name jobs are published to and consumed from
	Queue string

	// Concurrency is the number of concurrent workers a queue server runs
	Concurrency int

	// JobTimeout bounds a single job execution on the worker, including the
	// extraction call. Should exceed the processor's extraction timeout.
	JobTimeout time.Duration

	// MaxRetry caps redeliveries of a job that failed with an
	// infrastructure error. Extraction failures are recorded on the task
	// and never retried.
	MaxRetry int
}

// AsynqDispatcher implements Dispatcher by publishing jobs to a Redis-backed
// asynq queue. Independent worker processes (cmd/worker) consume them, so
// workers scale horizontally without touching the API deployment.
type AsynqDispatcher struct {
	client *asynq.Client
	cfg    AsynqConfig
	logger *slog.Logger
}

var _ Dispatcher = (*AsynqDispatcher)(nil)

// NewAsynqDispatcher creates a dispatcher publishing to the given broker.
func NewAsynqDispatcher(cfg AsynqConfig, logger *slog.Logger) *AsynqDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Queue == "" {
		cfg.Queue = "doctext"
	}
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 5
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Minute
	}

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	return &AsynqDispatcher{client: client, cfg: cfg, logger: logger}
}

// Submit serializes the job and enqueues it. Returns once the broker has
// accepted the message.
func (d *AsynqDispatcher) Submit(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job payload: %w", err)
	}

	info, err := d.client.EnqueueContext(ctx, asynq.NewTask(TypeExtract, payload),
		asynq.Queue(d.cfg.Queue),
		asynq.MaxRetry(d.cfg.MaxRetry),
		asynq.Timeout(d.cfg.JobTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	d.logger.Debug("job enqueued",
		"task_id", job.TaskID,
		"queue", info.Queue,
		"message_id", info.ID)
	return nil
}

// Close releases the broker connection.
func (d *AsynqDispatcher) Close() error {
	return d.client.Close()
}

// NewQueueMux returns the handler mux a queue worker serves: extract jobs
// are decoded and handed to the shared Processor. A payload that cannot be
// decoded is dropped rather than retried, since redelivery cannot fix it.
func NewQueueMux(processor *Processor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeExtract, func(ctx context.Context, t *asynq.Task) error {
		var job Job
		if err := json.Unmarshal(t.Payload(), &job); err != nil {
			return fmt.Errorf("invalid job payload: %v: %w", err, asynq.SkipRetry)
		}
		return processor.Process(ctx, job)
	})
	return mux
}

// NewQueueServer creates the asynq server a worker process runs.
func NewQueueServer(cfg AsynqConfig, logger *slog.Logger) *asynq.Server {
	if cfg.Queue == "" {
		cfg.Queue = "doctext"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      map[string]int{cfg.Queue: 1},
			Logger:      &slogAsynqLogger{logger: logger},
		},
	)
}

// slogAsynqLogger adapts slog to asynq's Logger interface.
type slogAsynqLogger struct {
	logger *slog.Logger
}

func (l *slogAsynqLogger) Debug(args ...interface{}) { l.logger.Debug(fmt.Sprint(args...)) }
func (l *slogAsynqLogger) Info(args ...interface{})  { l.logger.Info(fmt.Sprint(args...)) }
func (l *slogAsynqLogger) Warn(args ...interface{})  { l.logger.Warn(fmt.Sprint(args...)) }
func (l *slogAsynqLogger) Error(args ...interface{}) { l.logger.Error(fmt.Sprint(args...)) }
func (l *slogAsynqLogger) Fatal(args ...interface{}) { l.logger.Error(fmt.Sprint(args...)) }
