// Package retry implements an exponential-backoff retry policy: a
// decorator around a callable that retries only on retriable error
// kinds, backs off exponentially up to max_wait, and re-raises the
// last error after max_attempts.
package retry

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	kberrors "github.com/PerformanceSuite/knowledgebeast/pkg/errors"
)

// Config configures a retry policy.
type Config struct {
	MaxAttempts    int
	InitialWait    time.Duration
	Multiplier     float64
	MaxWait        time.Duration
	// RetriableKind reports whether err should be retried. Defaults to
	// pkg/errors.IsRetriable(pkg/errors.KindOf(err)).
	RetriableKind func(err error) bool
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialWait <= 0 {
		c.InitialWait = 100 * time.Millisecond
	}
	if c.Multiplier <= 1.0 {
		c.Multiplier = 2.0
	}
	if c.MaxWait <= 0 {
		c.MaxWait = 10 * time.Second
	}
	if c.RetriableKind == nil {
		c.RetriableKind = func(err error) bool {
			return kberrors.IsRetriable(kberrors.KindOf(err))
		}
	}
	return c
}

// Counters accumulates global retry statistics: total attempts, total
// calls, successes, failures, and a by-kind breakdown.
// All fields are read/written under mu; a sync.Mutex is sufficient since
// retry calls are not so frequent that contention here would be the
// bottleneck compared to the wrapped call itself.
type Counters struct {
	mu            sync.Mutex
	totalAttempts int64
	totalCalls    int64
	totalSuccess  int64
	totalFailure  int64
	byKind        map[kberrors.Kind]int64
}

func newCounters() *Counters {
	return &Counters{byKind: make(map[kberrors.Kind]int64)}
}

// Snapshot is a point-in-time copy of Counters.
type Snapshot struct {
	TotalAttempts int64
	TotalCalls    int64
	TotalRetries  int64
	TotalSuccess  int64
	TotalFailure  int64
	ByKind        map[kberrors.Kind]int64
}

func (c *Counters) snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	byKind := make(map[kberrors.Kind]int64, len(c.byKind))
	for k, v := range c.byKind {
		byKind[k] = v
	}
	return Snapshot{
		TotalAttempts: c.totalAttempts,
		TotalCalls:    c.totalCalls,
		TotalRetries:  c.totalAttempts - c.totalCalls,
		TotalSuccess:  c.totalSuccess,
		TotalFailure:  c.totalFailure,
		ByKind:        byKind,
	}
}

// Policy retries a callable per Config, tracking Counters across every
// call made through it.
type Policy struct {
	config   Config
	counters *Counters
}

// New creates a retry Policy.
func New(config Config) *Policy {
	return &Policy{config: config.withDefaults(), counters: newCounters()}
}

// Snapshot returns the policy's accumulated counters.
func (p *Policy) Snapshot() Snapshot { return p.counters.snapshot() }

// Execute runs fn, retrying on retriable errors per Config. Non-retriable
// errors propagate immediately without delay (exactly one invocation).
// After MaxAttempts unsuccessful attempts the last error is returned.
func (p *Policy) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	p.counters.mu.Lock()
	p.counters.totalCalls++
	p.counters.mu.Unlock()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.config.InitialWait
	b.MaxInterval = p.config.MaxWait
	b.Multiplier = p.config.Multiplier
	b.RandomizationFactor = 0 // waits are exactly min(InitialWait*Multiplier^k, MaxWait)
	b.MaxElapsedTime = 0      // bounded by MaxAttempts, not wall-clock

	var withRetries backoff.BackOff = backoff.WithMaxRetries(b, uint64(p.config.MaxAttempts-1))
	withRetries = backoff.WithContext(withRetries, ctx)

	var lastErr error
	operation := func() error {
		p.counters.mu.Lock()
		p.counters.totalAttempts++
		p.counters.mu.Unlock()

		err := fn(ctx)
		if err == nil {
			p.counters.mu.Lock()
			p.counters.totalSuccess++
			p.counters.mu.Unlock()
			return nil
		}

		lastErr = err
		kind := kberrors.KindOf(err)
		p.counters.mu.Lock()
		p.counters.byKind[kind]++
		p.counters.mu.Unlock()

		if !p.config.RetriableKind(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(operation, withRetries)
	if err != nil {
		p.counters.mu.Lock()
		p.counters.totalFailure++
		p.counters.mu.Unlock()
		if lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}
