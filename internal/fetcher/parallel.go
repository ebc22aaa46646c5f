package fetcher

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Default settings for the parallel strategy.
const (
	// DefaultConcurrency bounds the number of simultaneous downloads.
	// The result page lists a few dozen providers.
	DefaultConcurrency = 10

	// DefaultDrainTimeout bounds the wait for each result while draining.
	DefaultDrainTimeout = 5 * time.Second
)

// Parallel fetches references concurrently on a bounded worker pool.
type Parallel struct {
	fetcher *Fetcher

	// limit is the maximum number of concurrent downloads.
	// Zero or negative means one goroutine per reference with no limit.
	limit int

	// drainTimeout bounds the wait for each result once the pool is done.
	drainTimeout time.Duration
}

// ParallelOption configures a Parallel source.
type ParallelOption func(*Parallel)

// WithConcurrency sets the worker limit. Zero or negative removes the limit.
func WithConcurrency(n int) ParallelOption {
	return func(p *Parallel) {
		p.limit = n
	}
}

// WithDrainTimeout sets the per-result drain timeout.
// Non-positive values keep the default.
func WithDrainTimeout(d time.Duration) ParallelOption {
	return func(p *Parallel) {
		if d > 0 {
			p.drainTimeout = d
		}
	}
}

// NewParallel creates a parallel source on top of f.
func NewParallel(f *Fetcher, opts ...ParallelOption) *Parallel {
	p := &Parallel{
		fetcher:      f,
		limit:        DefaultConcurrency,
		drainTimeout: DefaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Source.
func (p *Parallel) Name() string {
	return "parallel"
}

// Fetch downloads every reference concurrently.
//
// All downloads finish, successfully or not, before any result is read.
// Results are then drained from the shared channel in arrival order and
// keyed by reference. Cancelling ctx makes pending downloads fail at their
// next network operation; it does not skip the barrier.
func (p *Parallel) Fetch(ctx context.Context, refs []string) map[string]Outcome {
	unique := uniqueRefs(refs)
	results := make(chan Outcome, len(unique))

	var g errgroup.Group
	if p.limit > 0 {
		g.SetLimit(p.limit)
	}

	start := time.Now()
	for _, ref := range unique {
		g.Go(func() error {
			out := p.fetcher.FetchOne(ctx, ref)
			p.fetcher.report(out)
			results <- out
			// Failures stay local to this reference.
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // workers never return errors
	close(results)

	p.fetcher.logger.Info("status images downloaded",
		"count", len(unique),
		"concurrency", p.limit,
		"elapsed", time.Since(start),
	)

	return p.drain(results, len(unique))
}

// drain collects outcomes until the channel is closed or a single receive
// waits longer than the drain timeout. Buffered results are always taken
// before the timeout is considered.
func (p *Parallel) drain(results <-chan Outcome, expected int) map[string]Outcome {
	outcomes := make(map[string]Outcome, expected)
	timer := time.NewTimer(p.drainTimeout)
	defer timer.Stop()

	for {
		select {
		case out, ok := <-results:
			if !ok {
				return outcomes
			}
			outcomes[out.Reference] = out
			continue
		default:
		}

		timer.Reset(p.drainTimeout)
		select {
		case out, ok := <-results:
			if !ok {
				return outcomes
			}
			outcomes[out.Reference] = out
		case <-timer.C:
			p.fetcher.logger.Warn("timed out draining fetch results",
				slog.Int("received", len(outcomes)),
				slog.Int("expected", expected),
			)
			return outcomes
		}
	}
}
