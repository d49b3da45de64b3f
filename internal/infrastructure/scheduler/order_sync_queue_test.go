package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	app "github.com/erp/stocksync/internal/application/integration"
	"github.com/erp/stocksync/internal/domain/integration"
)

func newTestLogger() *zap.Logger {
	return zap.NewNop()
}

type processorFunc func(ctx context.Context, req app.OrderSyncRequest) error

func (f processorFunc) ProcessOrder(ctx context.Context, req app.OrderSyncRequest) error {
	return f(ctx, req)
}

func testQueueConfig() OrderSyncQueueConfig {
	return OrderSyncQueueConfig{
		Workers:        2,
		QueueSize:      8,
		JobTimeout:     time.Second,
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  5 * time.Millisecond,
		EnqueueMaxWait: 50 * time.Millisecond,
	}
}

func orderRequest(orderID string) app.OrderSyncRequest {
	return app.OrderSyncRequest{
		TenantID:   uuid.New(),
		Kind:       integration.OrderEventCreated,
		Order:      integration.OrderEvent{OrderID: orderID},
		ReceivedAt: time.Now(),
	}
}

func startQueue(t *testing.T, cfg OrderSyncQueueConfig, p OrderSyncProcessor) *OrderSyncQueue {
	t.Helper()
	q, err := NewOrderSyncQueue(cfg, p, newTestLogger())
	require.NoError(t, err)
	require.NoError(t, q.Start(context.Background()))
	t.Cleanup(func() { _ = q.Stop(context.Background()) })
	return q
}

func TestOrderSyncQueueConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*OrderSyncQueueConfig)
		valid  bool
	}{
		{"default", func(*OrderSyncQueueConfig) {}, true},
		{"no workers", func(c *OrderSyncQueueConfig) { c.Workers = 0 }, false},
		{"no buffer", func(c *OrderSyncQueueConfig) { c.QueueSize = 0 }, false},
		{"no job timeout", func(c *OrderSyncQueueConfig) { c.JobTimeout = 0 }, false},
		{"negative retries", func(c *OrderSyncQueueConfig) { c.MaxRetries = -1 }, false},
		{"max delay below base", func(c *OrderSyncQueueConfig) { c.RetryMaxDelay = c.RetryBaseDelay / 2 }, false},
		{"zero enqueue wait", func(c *OrderSyncQueueConfig) { c.EnqueueMaxWait = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultOrderSyncQueueConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestNewOrderSyncQueue_RequiresProcessor(t *testing.T) {
	_, err := NewOrderSyncQueue(DefaultOrderSyncQueueConfig(), nil, newTestLogger())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestOrderSyncQueue_EnqueueWhenStopped(t *testing.T) {
	q, err := NewOrderSyncQueue(testQueueConfig(), processorFunc(func(context.Context, app.OrderSyncRequest) error {
		return nil
	}), newTestLogger())
	require.NoError(t, err)

	start := time.Now()
	err = q.Enqueue(context.Background(), orderRequest("1"))
	assert.ErrorIs(t, err, ErrQueueNotRunning)
	assert.Less(t, time.Since(start), 40*time.Millisecond, "stopped queue must fail fast")
}

func TestOrderSyncQueue_ProcessesJobs(t *testing.T) {
	var calls atomic.Int32
	q := startQueue(t, testQueueConfig(), processorFunc(func(context.Context, app.OrderSyncRequest) error {
		calls.Add(1)
		return nil
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(context.Background(), orderRequest("o")))
	}

	assert.Eventually(t, func() bool { return q.Stats().Processed == 5 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(5), calls.Load())
	assert.Equal(t, int64(5), q.Stats().Enqueued)
}

func TestOrderSyncQueue_FullBuffer(t *testing.T) {
	cfg := testQueueConfig()
	cfg.Workers = 1
	cfg.QueueSize = 1

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	q := startQueue(t, cfg, processorFunc(func(ctx context.Context, _ app.OrderSyncRequest) error {
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}))

	require.NoError(t, q.Enqueue(context.Background(), orderRequest("1")))
	<-started
	require.NoError(t, q.Enqueue(context.Background(), orderRequest("2")))

	t.Run("gives up after the enqueue budget", func(t *testing.T) {
		start := time.Now()
		err := q.Enqueue(context.Background(), orderRequest("3"))
		assert.ErrorIs(t, err, ErrJobQueueFull)
		assert.GreaterOrEqual(t, time.Since(start), cfg.EnqueueMaxWait/4)
	})

	t.Run("succeeds once a worker frees a slot", func(t *testing.T) {
		go func() {
			time.Sleep(10 * time.Millisecond)
			close(release)
		}()
		q.config.EnqueueMaxWait = 2 * time.Second
		require.NoError(t, q.Enqueue(context.Background(), orderRequest("4")))
	})
}

func TestOrderSyncQueue_EnqueueHonoursContext(t *testing.T) {
	cfg := testQueueConfig()
	cfg.Workers = 1
	cfg.QueueSize = 1
	cfg.EnqueueMaxWait = 5 * time.Second

	block := make(chan struct{})
	defer close(block)
	q := startQueue(t, cfg, processorFunc(func(ctx context.Context, _ app.OrderSyncRequest) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}))

	require.NoError(t, q.Enqueue(context.Background(), orderRequest("1")))
	assert.Eventually(t, func() bool { return q.Stats().Depth == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), orderRequest("2")))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, orderRequest("3"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOrderSyncQueue_Retries(t *testing.T) {
	transient := integration.NewTransientStoreError("insert ledger", errors.New("connection reset"))

	t.Run("retryable failure succeeds on a later attempt", func(t *testing.T) {
		var calls atomic.Int32
		q := startQueue(t, testQueueConfig(), processorFunc(func(context.Context, app.OrderSyncRequest) error {
			if calls.Add(1) < 3 {
				return transient
			}
			return nil
		}))

		require.NoError(t, q.Enqueue(context.Background(), orderRequest("1")))
		assert.Eventually(t, func() bool { return q.Stats().Processed == 1 }, time.Second, time.Millisecond)
		assert.Equal(t, int64(2), q.Stats().Retried)
		assert.Equal(t, int64(0), q.Stats().Failed)
	})

	t.Run("retries are bounded", func(t *testing.T) {
		var calls atomic.Int32
		q := startQueue(t, testQueueConfig(), processorFunc(func(context.Context, app.OrderSyncRequest) error {
			calls.Add(1)
			return transient
		}))

		require.NoError(t, q.Enqueue(context.Background(), orderRequest("1")))
		assert.Eventually(t, func() bool { return q.Stats().Failed == 1 }, time.Second, time.Millisecond)
		assert.Equal(t, int32(3), calls.Load())
		assert.Equal(t, int64(2), q.Stats().Retried)
	})

	t.Run("configuration errors are not retried", func(t *testing.T) {
		var calls atomic.Int32
		q := startQueue(t, testQueueConfig(), processorFunc(func(_ context.Context, req app.OrderSyncRequest) error {
			calls.Add(1)
			return integration.NewConfigurationError(req.TenantID, integration.ErrTenantNotConfigured)
		}))

		require.NoError(t, q.Enqueue(context.Background(), orderRequest("1")))
		assert.Eventually(t, func() bool { return q.Stats().Failed == 1 }, time.Second, time.Millisecond)
		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, int64(0), q.Stats().Retried)
	})
}

func TestOrderSyncQueue_PanicIsContained(t *testing.T) {
	q := startQueue(t, testQueueConfig(), processorFunc(func(_ context.Context, req app.OrderSyncRequest) error {
		if req.Order.OrderID == "boom" {
			panic("nil map")
		}
		return nil
	}))

	require.NoError(t, q.Enqueue(context.Background(), orderRequest("boom")))
	require.NoError(t, q.Enqueue(context.Background(), orderRequest("ok")))

	assert.Eventually(t, func() bool {
		s := q.Stats()
		return s.Failed == 1 && s.Processed == 1
	}, time.Second, time.Millisecond)
}

func TestOrderSyncQueue_StopDropsBufferedJobs(t *testing.T) {
	cfg := testQueueConfig()
	cfg.Workers = 1
	started := make(chan struct{}, 1)

	q, err := NewOrderSyncQueue(cfg, processorFunc(func(ctx context.Context, _ app.OrderSyncRequest) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	}), newTestLogger())
	require.NoError(t, err)
	require.NoError(t, q.Start(context.Background()))

	require.NoError(t, q.Enqueue(context.Background(), orderRequest("1")))
	<-started
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(context.Background(), orderRequest("pending")))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))

	assert.False(t, q.IsRunning())
	s := q.Stats()
	assert.Equal(t, 0, s.Depth)
	assert.Equal(t, int64(3), s.Dropped)
	assert.ErrorIs(t, q.Enqueue(context.Background(), orderRequest("late")), ErrQueueNotRunning)
	require.NoError(t, q.Stop(ctx), "second stop is a no-op")
}

func TestOrderSyncQueue_RetryDelay(t *testing.T) {
	q := &OrderSyncQueue{config: OrderSyncQueueConfig{
		RetryBaseDelay: time.Second,
		RetryMaxDelay:  10 * time.Second,
	}}

	assert.Equal(t, time.Second, q.retryDelay(1))
	assert.Equal(t, 2*time.Second, q.retryDelay(2))
	assert.Equal(t, 4*time.Second, q.retryDelay(3))
	assert.Equal(t, 8*time.Second, q.retryDelay(4))
	assert.Equal(t, 10*time.Second, q.retryDelay(5))
	assert.Equal(t, 10*time.Second, q.retryDelay(64))
}
