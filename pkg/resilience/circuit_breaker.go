// Package resilience implements a circuit breaker primitive: a
// three-state gate around a callable, tripped by a sliding window of
// failure timestamps and recovering through a half-open state that admits
// probe calls.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/PerformanceSuite/knowledgebeast/pkg/errors"
	"github.com/PerformanceSuite/knowledgebeast/pkg/observability"
)

// State is one of Closed, Open, or HalfOpen.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker configuration.
type Config struct {
	// FailureThreshold is the number of failures, within FailureWindow,
	// that trips the breaker from Closed to Open.
	FailureThreshold int
	// FailureWindow bounds how far back a failure still counts toward
	// FailureThreshold.
	FailureWindow time.Duration
	// RecoveryTimeout is how long the breaker stays Open before moving to
	// HalfOpen and admitting probe calls.
	RecoveryTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.FailureWindow <= 0 {
		c.FailureWindow = 60 * time.Second
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 30 * time.Second
	}
	return c
}

// CircuitBreaker wraps a callable and decides, per invocation, whether to
// run it, reject it, or admit it as a half-open probe. Safe for concurrent
// use; all state transitions happen under a single mutex, so more than one
// probe may run concurrently in HalfOpen as long as the state converges.
type CircuitBreaker struct {
	name   string
	config Config

	mu               sync.Mutex
	state            State
	failureTimestamps []time.Time
	lastStateChange  time.Time
	halfOpenInFlight bool

	stateChanges    int64
	rejectedTotal   int64

	logger  observability.Logger
	metrics observability.MetricsClient
}

// New creates a new CircuitBreaker.
func New(name string, config Config, logger observability.Logger, metrics observability.MetricsClient) *CircuitBreaker {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetrics()
	}
	return &CircuitBreaker{
		name:            name,
		config:          config.withDefaults(),
		state:           Closed,
		lastStateChange: time.Now(),
		logger:          logger,
		metrics:         metrics,
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute runs fn under circuit breaker protection. It returns a
// *errors.Error of kind CircuitOpen without invoking fn if the breaker is
// Open and recovery has not yet elapsed.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	allowed, isProbe := cb.beforeCall()
	if !allowed {
		cb.mu.Lock()
		cb.rejectedTotal++
		cb.mu.Unlock()
		cb.metrics.IncrementCounterWithLabels("circuit_breaker_rejected_total", 1, map[string]string{"name": cb.name})
		return nil, errors.New(errors.CircuitOpen, "circuit breaker "+cb.name+" is open")
	}

	result, err := fn(ctx)

	if err != nil {
		cb.recordFailure(isProbe)
		return nil, err
	}
	cb.recordSuccess(isProbe)
	return result, nil
}

// beforeCall decides whether a call may proceed, transitioning Open ->
// HalfOpen when recovery_timeout has elapsed. The returned isProbe flag
// tells recordSuccess/recordFailure whether this call is the half-open
// probe.
func (cb *CircuitBreaker) beforeCall() (allowed bool, isProbe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case Closed:
		return true, false

	case Open:
		if time.Since(cb.lastStateChange) >= cb.config.RecoveryTimeout {
			cb.transitionTo(HalfOpen)
			cb.halfOpenInFlight = true
			return true, true
		}
		return false, false

	case HalfOpen:
		// More than one probe may race here; we admit any call that
		// arrives while HalfOpen rather than queueing.
		return true, true

	default:
		return false, false
	}
}

func (cb *CircuitBreaker) recordSuccess(isProbe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == HalfOpen && isProbe {
		cb.transitionTo(Closed)
		cb.failureTimestamps = nil
		cb.halfOpenInFlight = false
	}
}

func (cb *CircuitBreaker) recordFailure(isProbe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()

	switch cb.state {
	case Closed:
		cb.failureTimestamps = append(cb.failureTimestamps, now)
		cb.pruneFailures(now)
		if len(cb.failureTimestamps) >= cb.config.FailureThreshold {
			cb.transitionTo(Open)
		}

	case HalfOpen:
		if isProbe {
			cb.transitionTo(Open)
			cb.halfOpenInFlight = false
		}
	}
}

// pruneFailures drops timestamps older than FailureWindow. Caller must
// hold cb.mu.
func (cb *CircuitBreaker) pruneFailures(now time.Time) {
	cutoff := now.Add(-cb.config.FailureWindow)
	kept := cb.failureTimestamps[:0]
	for _, ts := range cb.failureTimestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	cb.failureTimestamps = kept
}

// transitionTo moves the breaker to newState, logging and recording
// metrics exactly once per transition. Caller must hold cb.mu.
func (cb *CircuitBreaker) transitionTo(newState State) {
	if cb.state == newState {
		return
	}
	old := cb.state
	cb.state = newState
	cb.lastStateChange = time.Now()
	cb.stateChanges++

	cb.logger.Info("circuit breaker state change", map[string]interface{}{
		"name": cb.name, "from": old.String(), "to": newState.String(),
	})

	switch newState {
	case Open:
		cb.metrics.IncrementCounterWithLabels("circuit_opened_total", 1, map[string]string{"name": cb.name})
	case Closed:
		cb.metrics.IncrementCounterWithLabels("circuit_closed_total", 1, map[string]string{"name": cb.name})
	}
	cb.metrics.RecordGauge("circuit_breaker_current_state", float64(newState), map[string]string{"name": cb.name})
}

// Reset forces the breaker back to Closed and clears failure history.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.transitionTo(Closed)
	cb.failureTimestamps = nil
	cb.halfOpenInFlight = false
}

// Metrics is a point-in-time snapshot of breaker counters.
type Metrics struct {
	Name            string
	State           State
	FailureCount    int
	StateChanges    int64
	RejectedTotal   int64
	LastStateChange time.Time
}

// GetMetrics returns a snapshot of the breaker's current counters.
func (cb *CircuitBreaker) GetMetrics() Metrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Metrics{
		Name:            cb.name,
		State:           cb.state,
		FailureCount:    len(cb.failureTimestamps),
		StateChanges:    cb.stateChanges,
		RejectedTotal:   cb.rejectedTotal,
		LastStateChange: cb.lastStateChange,
	}
}

// Manager lazily constructs and shares named CircuitBreakers, mirroring
// the registry-behind-a-mutex shape used throughout this codebase's
// per-project component caches.
type Manager struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	config   Config
	logger   observability.Logger
	metrics  observability.MetricsClient
}

// NewManager creates a Manager that constructs new breakers with the given
// default config.
func NewManager(config Config, logger observability.Logger, metrics observability.MetricsClient) *Manager {
	return &Manager{
		breakers: make(map[string]*CircuitBreaker),
		config:   config,
		logger:   logger,
		metrics:  metrics,
	}
}

// Get returns the named breaker, creating it with the manager's default
// config on first access.
func (m *Manager) Get(name string) *CircuitBreaker {
	m.mu.RLock()
	cb, ok := m.breakers[name]
	m.mu.RUnlock()
	if ok {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cb, ok := m.breakers[name]; ok {
		return cb
	}
	cb = New(name, m.config, m.logger, m.metrics)
	m.breakers[name] = cb
	return cb
}

// ResetAll forces every managed breaker back to Closed.
func (m *Manager) ResetAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, cb := range m.breakers {
		cb.Reset()
	}
}
