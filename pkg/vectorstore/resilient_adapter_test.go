package vectorstore

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/PerformanceSuite/knowledgebeast/pkg/errors"
	"github.com/PerformanceSuite/knowledgebeast/pkg/resilience"
	"github.com/PerformanceSuite/knowledgebeast/pkg/retry"
)

type flakyBackend struct {
	*InMemoryBackend
	failuresRemaining int32
}

func (f *flakyBackend) QueryVector(ctx context.Context, embedding []float32, topK int) ([]Match, error) {
	if atomic.AddInt32(&f.failuresRemaining, -1) >= 0 {
		return nil, errors.New(errors.Connection, "transient")
	}
	return f.InMemoryBackend.QueryVector(ctx, embedding, topK)
}

func TestResilientAdapter_RetriesTransientFailures(t *testing.T) {
	backend := &flakyBackend{InMemoryBackend: NewInMemoryBackend("test"), failuresRemaining: 2}
	_ = backend.AddDocuments(context.Background(), []string{"a"}, [][]float32{{1, 0}}, []string{"x"}, nil)

	adapter := NewResilientAdapter("test", backend,
		retry.Config{MaxAttempts: 3, InitialWait: time.Millisecond, Multiplier: 1, MaxWait: 10 * time.Millisecond},
		resilience.Config{FailureThreshold: 10, FailureWindow: time.Minute, RecoveryTimeout: time.Second},
		nil, nil, nil)

	matches, err := adapter.QueryVector(context.Background(), []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestResilientAdapter_TripsBreakerAfterPersistentFailure(t *testing.T) {
	backend := &flakyBackend{InMemoryBackend: NewInMemoryBackend("test"), failuresRemaining: 1000}

	adapter := NewResilientAdapter("persistent", backend,
		retry.Config{MaxAttempts: 1, InitialWait: time.Millisecond, Multiplier: 1, MaxWait: time.Millisecond},
		resilience.Config{FailureThreshold: 2, FailureWindow: time.Minute, RecoveryTimeout: time.Hour},
		nil, nil, nil)

	for i := 0; i < 2; i++ {
		_, err := adapter.QueryVector(context.Background(), []float32{1, 0}, 1)
		require.Error(t, err)
	}

	_, err := adapter.QueryVector(context.Background(), []float32{1, 0}, 1)
	require.Error(t, err)
	require.Equal(t, errors.CircuitOpen, errors.KindOf(err))
}

func TestResilientAdapter_GetHealthReflectsBreakerState(t *testing.T) {
	backend := NewInMemoryBackend("test")
	adapter := NewResilientAdapter("healthy", backend,
		retry.Config{MaxAttempts: 1},
		resilience.Config{FailureThreshold: 5, FailureWindow: time.Minute, RecoveryTimeout: time.Second},
		nil, nil, nil)

	health, err := adapter.GetHealth(context.Background())
	require.NoError(t, err)
	require.Equal(t, HealthHealthy, health.Status)
	require.Equal(t, "closed", health.CircuitBreakerState)
}
