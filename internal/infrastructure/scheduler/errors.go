package scheduler

import "errors"

var (
	// ErrQueueNotRunning is returned when enqueueing to a stopped queue
	ErrQueueNotRunning = errors.New("order sync queue is not running")

	// ErrJobQueueFull is returned when the queue stays full for the whole enqueue budget
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrSweepInProgress is returned when a reconciliation sweep is already running
	ErrSweepInProgress = errors.New("reconciliation sweep already in progress")

	// ErrLockNotObtained is returned when another replica holds the sweep lock
	ErrLockNotObtained = errors.New("lock not obtained")
)
