package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/storefront-edge/pkg/logging"
	"github.com/rs/zerolog"
)

// RefresherConfig sizes the background refresh pool.
type RefresherConfig struct {
	// Workers is the number of goroutines running refreshes
	Workers int
	// QueueSize bounds pending refreshes; extra tasks are dropped
	QueueSize int
	// Timeout bounds each refresh
	Timeout time.Duration
}

// DefaultRefresherConfig returns the default pool sizing.
func DefaultRefresherConfig() RefresherConfig {
	return RefresherConfig{
		Workers:   4,
		QueueSize: 256,
		Timeout:   15 * time.Second,
	}
}

type refreshTask struct {
	key string
	run func(ctx context.Context) error
}

// Refresher runs stale-while-revalidate updates off the request path.
// Tasks are deduplicated by key while queued or running, run with their own
// timeout and never take the process down: errors and panics are logged and
// counted.
type Refresher struct {
	config RefresherConfig
	queue  chan refreshTask
	logger zerolog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]struct{}
	closed   bool
}

// NewRefresher starts a refresher's workers.
func NewRefresher(config RefresherConfig) *Refresher {
	defaults := DefaultRefresherConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Refresher{
		config:   config,
		queue:    make(chan refreshTask, config.QueueSize),
		logger:   logging.NewLogger(logging.ComponentRefresher),
		baseCtx:  ctx,
		cancel:   cancel,
		inflight: make(map[string]struct{}),
	}

	for i := 0; i < config.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	return r
}

// Enqueue schedules run under key. It reports false when the task was not
// scheduled: a task with the same key is pending, the queue is full or the
// refresher is closed.
func (r *Refresher) Enqueue(key string, run func(ctx context.Context) error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		refreshTotal.WithLabelValues("closed").Inc()
		return false
	}
	if _, ok := r.inflight[key]; ok {
		refreshTotal.WithLabelValues("deduplicated").Inc()
		return false
	}

	select {
	case r.queue <- refreshTask{key: key, run: run}:
		r.inflight[key] = struct{}{}
		refreshQueueDepth.Set(float64(len(r.inflight)))
		return true
	default:
		refreshTotal.WithLabelValues("dropped").Inc()
		r.logger.Debug().
			Str("key", key).
			Int("queue_size", r.config.QueueSize).
			Msg("Refresh queue full, dropping task")
		return false
	}
}

// Pending returns the number of queued or running tasks.
func (r *Refresher) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight)
}

// Close stops accepting tasks and waits for queued ones to finish. When ctx
// ends first, running tasks are cancelled and ctx.Err() is returned.
func (r *Refresher) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return fmt.Errorf("refresher close: %w", ctx.Err())
	}
}

func (r *Refresher) worker(workerID int) {
	defer r.wg.Done()
	for task := range r.queue {
		r.run(workerID, task)
	}
}

// run executes one task inside its error boundary.
func (r *Refresher) run(workerID int, task refreshTask) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(r.baseCtx, r.config.Timeout)

	defer func() {
		cancel()
		r.mu.Lock()
		delete(r.inflight, task.key)
		refreshQueueDepth.Set(float64(len(r.inflight)))
		r.mu.Unlock()

		if p := recover(); p != nil {
			refreshTotal.WithLabelValues("panic").Inc()
			r.logger.Error().
				Int("worker_id", workerID).
				Str("key", task.key).
				Interface("panic", p).
				Msg("Refresh task panicked")
		}
	}()

	if err := task.run(ctx); err != nil {
		refreshTotal.WithLabelValues("error").Inc()
		r.logger.Warn().
			Err(err).
			Int("worker_id", workerID).
			Str("key", task.key).
			Dur("duration", time.Since(start)).
			Msg("Background refresh failed")
		return
	}

	refreshTotal.WithLabelValues("ok").Inc()
	r.logger.Debug().
		Str("key", task.key).
		Dur("duration", time.Since(start)).
		Msg("Background refresh complete")
}
