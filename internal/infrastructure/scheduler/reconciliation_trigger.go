package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	app "github.com/erp/stocksync/internal/application/integration"
)

// Sweeper runs one reconciliation sweep across all tenants
type Sweeper interface {
	Sweep(ctx context.Context) (app.SweepReport, error)
}

// Lock is a held lock
type Lock interface {
	Release(ctx context.Context) error
}

// Locker obtains named locks with a TTL. Obtain returns ErrLockNotObtained
// when the lock is held elsewhere.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// RedisLocker shares the sweep lock between replicas through Redis
type RedisLocker struct {
	client *redislock.Client
}

// NewRedisLocker creates a RedisLocker
func NewRedisLocker(rdb redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb)}
}

// Obtain tries once to take the lock
func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, ErrLockNotObtained
		}
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return lock, nil
}

// LocalLocker is a process-local Locker for single-replica deployments
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

// NewLocalLocker creates a LocalLocker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time), clock: time.Now}
}

// Obtain takes the lock unless it is held and not yet expired
func (l *LocalLocker) Obtain(_ context.Context, key string, ttl time.Duration) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if expiresAt, ok := l.held[key]; ok && now.Before(expiresAt) {
		return nil, ErrLockNotObtained
	}
	expiresAt := now.Add(ttl)
	l.held[key] = expiresAt
	return &localLock{locker: l, key: key, expiresAt: expiresAt}, nil
}

type localLock struct {
	locker    *LocalLocker
	key       string
	expiresAt time.Time
}

func (l *localLock) Release(context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	// the lock may have expired and been taken again
	if l.locker.held[l.key].Equal(l.expiresAt) {
		delete(l.locker.held, l.key)
	}
	return nil
}

// ReconciliationTriggerConfig holds configuration for the reconciliation trigger
type ReconciliationTriggerConfig struct {
	// Interval is the period between sweeps
	Interval time.Duration
	LockKey  string
	// LockTTL must exceed the longest expected sweep
	LockTTL time.Duration
	// RunOnStart runs a sweep as soon as the trigger starts
	RunOnStart bool
}

// DefaultReconciliationTriggerConfig returns default configuration
func DefaultReconciliationTriggerConfig() ReconciliationTriggerConfig {
	return ReconciliationTriggerConfig{
		Interval:   time.Hour,
		LockKey:    "stocksync:lock:reconciliation",
		LockTTL:    50 * time.Minute,
		RunOnStart: true,
	}
}

// ReconciliationTrigger runs the reconciliation sweep periodically. A sweep
// only runs while holding the lock so replicas never sweep concurrently.
type ReconciliationTrigger struct {
	config  ReconciliationTriggerConfig
	sweeper Sweeper
	locker  Locker
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	inFlight  atomic.Bool

	lastReport *app.SweepReport
}

// NewReconciliationTrigger creates a new reconciliation trigger
func NewReconciliationTrigger(config ReconciliationTriggerConfig, sweeper Sweeper, locker Locker, logger *zap.Logger) (*ReconciliationTrigger, error) {
	defaults := DefaultReconciliationTriggerConfig()
	if config.LockKey == "" {
		config.LockKey = defaults.LockKey
	}
	if config.Interval <= 0 || config.LockTTL <= 0 {
		return nil, fmt.Errorf("%w: interval and lock ttl must be positive", ErrInvalidConfig)
	}
	if sweeper == nil {
		return nil, fmt.Errorf("%w: sweeper is required", ErrInvalidConfig)
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &ReconciliationTrigger{
		config:  config,
		sweeper: sweeper,
		locker:  locker,
		logger:  logger,
	}, nil
}

// Start starts the trigger loop
func (t *ReconciliationTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Reconciliation trigger started",
		zap.Duration("interval", t.config.Interval),
		zap.Bool("run_on_start", t.config.RunOnStart),
	)
	return nil
}

// Stop stops the trigger and waits for a running sweep to return
func (t *ReconciliationTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Reconciliation trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TriggerNow runs a sweep immediately
func (t *ReconciliationTrigger) TriggerNow(ctx context.Context) (app.SweepReport, error) {
	return t.runOnce(ctx)
}

// LastReport returns the report of the most recent completed sweep
func (t *ReconciliationTrigger) LastReport() (app.SweepReport, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastReport == nil {
		return app.SweepReport{}, false
	}
	return *t.lastReport, true
}

func (t *ReconciliationTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	if t.config.RunOnStart {
		t.tick(ctx)
	}

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *ReconciliationTrigger) tick(ctx context.Context) {
	_, err := t.runOnce(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrLockNotObtained), errors.Is(err, ErrSweepInProgress):
		t.logger.Info("Reconciliation sweep skipped", zap.Error(err))
	case errors.Is(err, context.Canceled):
	default:
		t.logger.Error("Reconciliation sweep failed", zap.Error(err))
	}
}

func (t *ReconciliationTrigger) runOnce(ctx context.Context) (app.SweepReport, error) {
	if !t.inFlight.CompareAndSwap(false, true) {
		return app.SweepReport{}, ErrSweepInProgress
	}
	defer t.inFlight.Store(false)

	lock, err := t.locker.Obtain(ctx, t.config.LockKey, t.config.LockTTL)
	if err != nil {
		return app.SweepReport{}, err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			t.logger.Warn("Failed to release reconciliation lock", zap.Error(err))
		}
	}()

	report, err := t.sweeper.Sweep(ctx)
	if err != nil {
		return report, err
	}

	t.mu.Lock()
	t.lastReport = &report
	t.mu.Unlock()
	return report, nil
}
