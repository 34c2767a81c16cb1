// Package vectorstore defines the Backend contract the core consumes
// from an external vector database, plus a ResilientAdapter that wraps
// any Backend with the retry-inside-circuit-breaker reliability envelope
// every outbound call gets.
package vectorstore

import (
	"context"
)

// Match is a single scored hit returned by a query.
type Match struct {
	DocID    string
	Score    float64
	Metadata map[string]interface{}
}

// Statistics summarizes a backend's current holdings.
type Statistics struct {
	Backend        string
	Collection     string
	TotalDocuments int
	Extra          map[string]interface{}
}

// HealthStatus is a coarse backend health classification.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// Health describes the current reachability of a backend.
type Health struct {
	Status              HealthStatus
	BackendAvailable    bool
	CircuitBreakerState string
	Detail              string
}

// Backend is the contract the core consumes from an external vector
// store. Implementations may leave QueryKeyword/QueryHybrid unimplemented
// (return a Validation-kind "not supported" error) if the underlying
// store has no native support — the hybrid query engine never calls them;
// it always composes QueryVector with the repository's own keyword phase.
type Backend interface {
	AddDocuments(ctx context.Context, ids []string, embeddings [][]float32, documents []string, metadatas []map[string]interface{}) error
	QueryVector(ctx context.Context, embedding []float32, topK int) ([]Match, error)
	QueryKeyword(ctx context.Context, text string, topK int) ([]Match, error)
	QueryHybrid(ctx context.Context, embedding []float32, text string, topK int, alpha float64) ([]Match, error)
	DeleteDocuments(ctx context.Context, ids []string) (int, error)
	GetStatistics(ctx context.Context) (Statistics, error)
	GetHealth(ctx context.Context) (Health, error)
}
