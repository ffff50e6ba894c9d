package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ehealth-tools/registry-sync/internal/sync/domain"
	"github.com/ehealth-tools/registry-sync/shared/rabbitmq"
	"github.com/google/uuid"
)

// Config holds worker configuration.
type Config struct {
	Logger        *slog.Logger
	RabbitClient  *rabbitmq.Client
	Executor      *Executor
	Concurrency   int
	PrefetchCount int
	JobTimeout    time.Duration
}

// syncMessage pairs a decoded envelope with its delivery tag for ack/nack.
type syncMessage struct {
	Envelope    *domain.Envelope
	DeliveryTag uint64
}

// Worker consumes the sync queue and executes jobs.
type Worker struct {
	logger        *slog.Logger
	rabbitClient  *rabbitmq.Client
	executor      *Executor
	concurrency   int
	prefetchCount int
	jobTimeout    time.Duration
	workerID      string
	wg            sync.WaitGroup
	stopChan      chan struct{}
	jobsChan      chan *syncMessage
}

// NewWorker creates a new worker instance.
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:        cfg.Logger,
		rabbitClient:  cfg.RabbitClient,
		executor:      cfg.Executor,
		concurrency:   cfg.Concurrency,
		prefetchCount: cfg.PrefetchCount,
		jobTimeout:    cfg.JobTimeout,
		workerID:      fmt.Sprintf("sync-worker-%s", uuid.New().String()[:8]),
		stopChan:      make(chan struct{}),
		jobsChan:      make(chan *syncMessage, cfg.Concurrency),
	}
}

// Start begins consuming and processing sync jobs. It blocks until the
// context is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting sync worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.logger.Info("Stopping sync worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Sync worker stopped")
}
