package taskqueue

import (
	"context"
	"fmt"
	"time"

	"agromonitor/internal/logger"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Queue owns the asynq client and worker server
type Queue struct {
	client *asynq.Client
	srv    *asynq.Server
	mux    *asynq.ServeMux
	log    zerolog.Logger
}

// NewQueue creates a queue backed by the given Redis connection
func NewQueue(redisOpt asynq.RedisClientOpt, concurrency int) *Queue {
	if concurrency <= 0 {
		concurrency = 2
	}
	log := logger.WithComponent("taskqueue")
	return &Queue{
		client: asynq.NewClient(redisOpt),
		srv: asynq.NewServer(redisOpt, asynq.Config{
			Concurrency: concurrency,
			Logger:      asynqLogger{log: log},
		}),
		mux: asynq.NewServeMux(),
		log: log,
	}
}

// Handle registers h for a task type
func (q *Queue) Handle(taskType string, h asynq.Handler) {
	q.mux.Handle(taskType, h)
}

// EnqueueReport enqueues a report task
func (q *Queue) EnqueueReport(ctx context.Context, p ReportPayload) error {
	task, err := NewReportTask(p)
	if err != nil {
		return err
	}
	info, err := q.client.EnqueueContext(ctx, task, asynq.MaxRetry(3), asynq.Timeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeDailyReport, err)
	}
	q.log.Info().Str("task_id", info.ID).Str("device_id", p.DeviceID).Msg("report enqueued")
	return nil
}

// StartWorkers starts processing in the background
func (q *Queue) StartWorkers() error {
	if err := q.srv.Start(q.mux); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}
	q.log.Info().Msg("workers started")
	return nil
}

// StopWorkers waits for active tasks and closes the client
func (q *Queue) StopWorkers() {
	q.srv.Shutdown()
	if err := q.client.Close(); err != nil {
		q.log.Warn().Err(err).Msg("close client")
	}
	q.log.Info().Msg("workers stopped")
}

// asynqLogger adapts zerolog to asynq.Logger
type asynqLogger struct {
	log zerolog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Fatal().Msg(fmt.Sprint(args...)) }
