package vectorstore

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/PerformanceSuite/knowledgebeast/pkg/errors"
	"github.com/PerformanceSuite/knowledgebeast/pkg/observability"
	"github.com/PerformanceSuite/knowledgebeast/pkg/resilience"
	"github.com/PerformanceSuite/knowledgebeast/pkg/retry"
)

// ResilientAdapter wraps a Backend with the reliability envelope every
// outbound call gets: retry (on Connection/Timeout/Io) enclosed by a
// circuit breaker, so a persistent failure trips the breaker and
// subsequent calls fail immediately with CircuitOpen until recovery
// elapses.
//
// A second, coarser gobreaker-backed probe tracks overall backend
// reachability for GetHealth, independent of the per-call breaker: it
// resets on a fixed interval rather than a sliding window, which suits a
// periodic "is the backend up at all" signal better than the per-call
// breaker's failure-timestamp tracking.
type ResilientAdapter struct {
	backend Backend
	breaker *resilience.CircuitBreaker
	retry   *retry.Policy
	health  *gobreaker.CircuitBreaker
	logger  observability.Logger
	tracer  observability.Tracer
}

// NewResilientAdapter wraps backend with retry + circuit breaker
// protection. name identifies the breaker/metrics for this backend
// instance (useful when a project manager runs one adapter per project).
// tracer may be nil, in which case backend-call spans are discarded.
func NewResilientAdapter(name string, backend Backend, retryConfig retry.Config, breakerConfig resilience.Config, logger observability.Logger, metrics observability.MetricsClient, tracer observability.Tracer) *ResilientAdapter {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if tracer == nil {
		tracer = observability.NewNoopTracer()
	}
	health := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name + "_health",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return &ResilientAdapter{
		backend: backend,
		breaker: resilience.New(name, breakerConfig, logger, metrics),
		retry:   retry.New(retryConfig),
		health:  health,
		logger:  logger,
		tracer:  tracer,
	}
}

func (a *ResilientAdapter) call(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	return a.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		var result interface{}
		err := a.retry.Execute(ctx, func(ctx context.Context) error {
			r, err := fn(ctx)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
		return result, err
	})
}

// AddDocuments delegates through the reliability envelope.
func (a *ResilientAdapter) AddDocuments(ctx context.Context, ids []string, embeddings [][]float32, documents []string, metadatas []map[string]interface{}) error {
	_, err := a.call(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, a.backend.AddDocuments(ctx, ids, embeddings, documents, metadatas)
	})
	return err
}

// QueryVector delegates through the reliability envelope.
func (a *ResilientAdapter) QueryVector(ctx context.Context, embedding []float32, topK int) ([]Match, error) {
	ctx, span := a.tracer.Start(ctx, "backend")
	defer span.End()
	span.SetAttribute("operation", "query_vector")

	res, err := a.call(ctx, func(ctx context.Context) (interface{}, error) {
		return a.backend.QueryVector(ctx, embedding, topK)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return res.([]Match), nil
}

// QueryKeyword delegates through the reliability envelope.
func (a *ResilientAdapter) QueryKeyword(ctx context.Context, text string, topK int) ([]Match, error) {
	res, err := a.call(ctx, func(ctx context.Context) (interface{}, error) {
		return a.backend.QueryKeyword(ctx, text, topK)
	})
	if err != nil {
		return nil, err
	}
	return res.([]Match), nil
}

// QueryHybrid delegates through the reliability envelope.
func (a *ResilientAdapter) QueryHybrid(ctx context.Context, embedding []float32, text string, topK int, alpha float64) ([]Match, error) {
	res, err := a.call(ctx, func(ctx context.Context) (interface{}, error) {
		return a.backend.QueryHybrid(ctx, embedding, text, topK, alpha)
	})
	if err != nil {
		return nil, err
	}
	return res.([]Match), nil
}

// DeleteDocuments delegates through the reliability envelope.
func (a *ResilientAdapter) DeleteDocuments(ctx context.Context, ids []string) (int, error) {
	res, err := a.call(ctx, func(ctx context.Context) (interface{}, error) {
		return a.backend.DeleteDocuments(ctx, ids)
	})
	if err != nil {
		return 0, err
	}
	return res.(int), nil
}

// GetStatistics delegates through the reliability envelope.
func (a *ResilientAdapter) GetStatistics(ctx context.Context) (Statistics, error) {
	res, err := a.call(ctx, func(ctx context.Context) (interface{}, error) {
		return a.backend.GetStatistics(ctx)
	})
	if err != nil {
		return Statistics{}, err
	}
	return res.(Statistics), nil
}

// GetHealth probes backend reachability through the coarser gobreaker
// health circuit, independent of the per-call breaker state, and reports
// both.
func (a *ResilientAdapter) GetHealth(ctx context.Context) (Health, error) {
	result, probeErr := a.health.Execute(func() (interface{}, error) {
		return a.backend.GetHealth(ctx)
	})

	state := a.breaker.State().String()
	if probeErr != nil {
		status := HealthUnhealthy
		if a.breaker.State() != resilience.Open {
			status = HealthDegraded
		}
		return Health{
			Status:              status,
			BackendAvailable:    false,
			CircuitBreakerState: state,
			Detail:              probeErr.Error(),
		}, errors.Wrap(errors.Connection, probeErr, "vector backend health probe failed")
	}

	health := result.(Health)
	health.CircuitBreakerState = state
	return health, nil
}
