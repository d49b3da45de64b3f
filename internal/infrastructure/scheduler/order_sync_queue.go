package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	app "github.com/erp/stocksync/internal/application/integration"
	"github.com/erp/stocksync/internal/domain/integration"
)

// OrderSyncProcessor handles one queued order event
type OrderSyncProcessor interface {
	ProcessOrder(ctx context.Context, req app.OrderSyncRequest) error
}

// OrderSyncQueueConfig holds configuration for the order sync queue
type OrderSyncQueueConfig struct {
	// Workers is the number of concurrent order sync workers
	Workers int
	// QueueSize is the capacity of the job buffer
	QueueSize int
	// JobTimeout is the maximum time a single order may take
	JobTimeout time.Duration
	// MaxRetries is the number of re-queues for retryable failures
	MaxRetries int
	// RetryBaseDelay is the base delay between retries (with exponential backoff)
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	// EnqueueMaxWait bounds how long Enqueue backs off on a full buffer
	EnqueueMaxWait time.Duration
}

// DefaultOrderSyncQueueConfig returns default configuration
func DefaultOrderSyncQueueConfig() OrderSyncQueueConfig {
	return OrderSyncQueueConfig{
		Workers:        4,
		QueueSize:      256,
		JobTimeout:     2 * time.Minute,
		MaxRetries:     3,
		RetryBaseDelay: time.Second,
		RetryMaxDelay:  30 * time.Second,
		EnqueueMaxWait: 5 * time.Second,
	}
}

// Validate validates the configuration
func (c *OrderSyncQueueConfig) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue size must be positive", ErrInvalidConfig)
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("%w: job timeout must be positive", ErrInvalidConfig)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries cannot be negative", ErrInvalidConfig)
	}
	if c.RetryBaseDelay <= 0 || c.RetryMaxDelay < c.RetryBaseDelay {
		return fmt.Errorf("%w: retry delays", ErrInvalidConfig)
	}
	if c.EnqueueMaxWait < 0 {
		return fmt.Errorf("%w: enqueue max wait cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// QueueStats is a snapshot of the queue counters
type QueueStats struct {
	Enqueued  int64
	Processed int64
	Failed    int64
	Retried   int64
	Dropped   int64
	Depth     int
}

type orderSyncJob struct {
	req     app.OrderSyncRequest
	attempt int
}

// OrderSyncQueue runs order events through a fixed worker pool. Enqueue
// backs off while the buffer is full instead of failing immediately, and
// retryable failures are re-queued with exponential delay.
type OrderSyncQueue struct {
	config    OrderSyncQueueConfig
	processor OrderSyncProcessor
	logger    *zap.Logger

	jobs    chan *orderSyncJob
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool

	enqueued  atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
	dropped   atomic.Int64
}

var _ app.OrderEnqueuer = (*OrderSyncQueue)(nil)

// NewOrderSyncQueue creates a new order sync queue
func NewOrderSyncQueue(config OrderSyncQueueConfig, processor OrderSyncProcessor, logger *zap.Logger) (*OrderSyncQueue, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if processor == nil {
		return nil, fmt.Errorf("%w: processor is required", ErrInvalidConfig)
	}

	return &OrderSyncQueue{
		config:    config,
		processor: processor,
		logger:    logger,
		jobs:      make(chan *orderSyncJob, config.QueueSize),
	}, nil
}

// Start starts the worker pool
func (q *OrderSyncQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return nil
	}
	q.running = true

	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}

	q.logger.Info("Order sync queue started",
		zap.Int("workers", q.config.Workers),
		zap.Int("queue_size", q.config.QueueSize),
		zap.Duration("job_timeout", q.config.JobTimeout),
	)
	return nil
}

// Stop stops accepting jobs, cancels in-flight work and waits for the
// workers. Jobs still buffered are dropped; reconciliation re-derives them.
func (q *OrderSyncQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.mu.Unlock()

	if q.cancel != nil {
		q.cancel()
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		q.logger.Warn("Order sync queue stop timed out")
		return ctx.Err()
	}

	dropped := q.drain()
	q.logger.Info("Order sync queue stopped", zap.Int("dropped_jobs", dropped))
	return nil
}

// Enqueue hands an order event to the workers. While the buffer is full it
// retries with exponential backoff for at most EnqueueMaxWait, then returns
// ErrJobQueueFull.
func (q *OrderSyncQueue) Enqueue(ctx context.Context, req app.OrderSyncRequest) error {
	job := &orderSyncJob{req: req, attempt: 1}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = q.config.EnqueueMaxWait

	err := backoff.Retry(func() error {
		err := q.offer(job)
		if errors.Is(err, ErrQueueNotRunning) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx))
	if err != nil {
		q.logger.Warn("Failed to enqueue order sync job",
			zap.String("tenant_id", req.TenantID.String()),
			zap.String("order_id", req.Order.OrderID),
			zap.Error(err),
		)
		return err
	}

	q.enqueued.Add(1)
	q.logger.Debug("Order sync job enqueued",
		zap.String("tenant_id", req.TenantID.String()),
		zap.String("order_id", req.Order.OrderID),
		zap.String("kind", string(req.Kind)),
	)
	return nil
}

// Stats returns a snapshot of the queue counters
func (q *OrderSyncQueue) Stats() QueueStats {
	return QueueStats{
		Enqueued:  q.enqueued.Load(),
		Processed: q.processed.Load(),
		Failed:    q.failed.Load(),
		Retried:   q.retried.Load(),
		Dropped:   q.dropped.Load(),
		Depth:     len(q.jobs),
	}
}

// IsRunning reports whether the workers are running
func (q *OrderSyncQueue) IsRunning() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.running
}

func (q *OrderSyncQueue) offer(job *orderSyncJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.running {
		return ErrQueueNotRunning
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrJobQueueFull
	}
}

func (q *OrderSyncQueue) drain() int {
	n := 0
	for {
		select {
		case <-q.jobs:
			n++
		default:
			q.dropped.Add(int64(n))
			return n
		}
	}
}

func (q *OrderSyncQueue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			q.process(ctx, job, workerID)
		}
	}
}

func (q *OrderSyncQueue) process(ctx context.Context, job *orderSyncJob, workerID int) {
	fields := []zap.Field{
		zap.Int("worker_id", workerID),
		zap.String("tenant_id", job.req.TenantID.String()),
		zap.String("order_id", job.req.Order.OrderID),
		zap.String("kind", string(job.req.Kind)),
		zap.Int("attempt", job.attempt),
	}

	defer func() {
		if r := recover(); r != nil {
			q.failed.Add(1)
			q.logger.Error("Order sync job panicked", append(fields, zap.Any("panic", r))...)
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, q.config.JobTimeout)
	defer cancel()

	err := q.processor.ProcessOrder(jobCtx, job.req)
	if err == nil {
		q.processed.Add(1)
		q.logger.Debug("Order sync job completed", fields...)
		return
	}

	if integration.IsRetryable(err) && job.attempt <= q.config.MaxRetries && ctx.Err() == nil {
		delay := q.retryDelay(job.attempt)
		job.attempt++
		q.retried.Add(1)
		q.logger.Warn("Order sync job failed, scheduling retry",
			append(fields, zap.Duration("delay", delay), zap.Error(err))...)
		time.AfterFunc(delay, func() {
			if err := q.offer(job); err != nil {
				q.dropped.Add(1)
				q.logger.Warn("Failed to re-queue order sync job", append(fields, zap.Error(err))...)
			}
		})
		return
	}

	q.failed.Add(1)
	q.logger.Error("Order sync job failed", append(fields, zap.Error(err))...)
}

// retryDelay is RetryBaseDelay * 2^(attempt-1), capped at RetryMaxDelay
func (q *OrderSyncQueue) retryDelay(attempt int) time.Duration {
	delay := q.config.RetryBaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= q.config.RetryMaxDelay {
			return q.config.RetryMaxDelay
		}
	}
	if delay > q.config.RetryMaxDelay {
		return q.config.RetryMaxDelay
	}
	return delay
}
