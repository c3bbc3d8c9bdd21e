// Package precache fetches a list of URLs in parallel with a bounded worker
// pool. The router uses it to warm cache stores during install.
package precache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Sternrassler/storefront-edge/pkg/logging"
	"github.com/rs/zerolog"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel fetches
	MaxConcurrency int
	// Timeout per URL
	Timeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 6,
		Timeout:        30 * time.Second,
	}
}

// Fetcher fetches and stores a single URL.
type Fetcher interface {
	Precache(ctx context.Context, target string) error
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, target string) error

// Precache implements Fetcher.
func (f FetcherFunc) Precache(ctx context.Context, target string) error { return f(ctx, target) }

// Result reports the outcome of a batch.
type Result struct {
	Succeeded []string
	Failed    map[string]error
	Duration  time.Duration
}

// Err joins every failure in target order, or returns nil.
func (r Result) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	targets := make([]string, 0, len(r.Failed))
	for target := range r.Failed {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	errs := make([]error, 0, len(targets))
	for _, target := range targets {
		errs = append(errs, fmt.Errorf("%s: %w", target, r.Failed[target]))
	}
	return errors.Join(errs...)
}

type outcome struct {
	target string
	err    error
}

// BatchFetcher fetches URL lists in parallel.
type BatchFetcher struct {
	fetcher Fetcher
	config  Config
	logger  zerolog.Logger
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(fetcher Fetcher, config Config) *BatchFetcher {
	if fetcher == nil {
		panic("precache fetcher cannot be nil")
	}
	defaults := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger(logging.ComponentPrecache),
	}
}

// FetchAll fetches every distinct target. Individual failures are collected
// in the result; the returned error is non-nil only when ctx ends before
// every target was attempted.
func (bf *BatchFetcher) FetchAll(ctx context.Context, batch string, targets []string) (Result, error) {
	start := time.Now()
	targets = dedupe(targets)
	result := Result{Failed: make(map[string]error)}

	if len(targets) == 0 {
		return result, nil
	}

	bf.logger.Debug().
		Str("batch", batch).
		Int("targets", len(targets)).
		Msg("Starting precache batch")

	queue := make(chan string, len(targets))
	for _, target := range targets {
		queue <- target
	}
	close(queue)

	outcomes := make(chan outcome, len(targets))

	workers := min(bf.config.MaxConcurrency, len(targets))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go bf.worker(ctx, batch, queue, outcomes, &wg, i)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	attempted := 0
	for o := range outcomes {
		attempted++
		if o.err != nil {
			result.Failed[o.target] = o.err
			precacheFetchesTotal.WithLabelValues(batch, "error").Inc()
			continue
		}
		result.Succeeded = append(result.Succeeded, o.target)
		precacheFetchesTotal.WithLabelValues(batch, "ok").Inc()
	}
	sort.Strings(result.Succeeded)
	result.Duration = time.Since(start)

	if attempted < len(targets) {
		bf.logger.Warn().
			Str("batch", batch).
			Int("attempted", attempted).
			Int("total", len(targets)).
			Msg("Precache batch interrupted")
		return result, fmt.Errorf("precache %s interrupted after %d/%d targets: %w", batch, attempted, len(targets), ctx.Err())
	}

	bf.logger.Info().
		Str("batch", batch).
		Int("succeeded", len(result.Succeeded)).
		Int("failed", len(result.Failed)).
		Dur("duration", result.Duration).
		Msg("Precache batch complete")

	return result, nil
}

// worker processes targets from the queue
func (bf *BatchFetcher) worker(ctx context.Context, batch string, queue <-chan string, outcomes chan<- outcome, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for target := range queue {
		select {
		case <-ctx.Done():
			bf.logger.Debug().
				Int("worker_id", workerID).
				Int("processed", processed).
				Msg("Worker stopping (context cancelled)")
			return
		default:
		}

		fetchCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
		err := bf.fetcher.Precache(fetchCtx, target)
		cancel()

		if err != nil {
			bf.logger.Warn().
				Err(err).
				Str("batch", batch).
				Str("url", target).
				Msg("Precache fetch failed")
		}
		outcomes <- outcome{target: target, err: err}
		processed++
	}
}

func dedupe(targets []string) []string {
	seen := make(map[string]struct{}, len(targets))
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
