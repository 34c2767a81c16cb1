// Package observability provides the logging, metrics, and tracing facade
// the rest of the knowledge-base core depends on. Every component takes a
// Logger and a MetricsClient at construction; nothing reaches for a global
// logger or a package-level metrics registry.
package observability

import "context"

// LogLevel defines log message severity.
type LogLevel string

// Log levels.
const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
	LogLevelFatal LogLevel = "FATAL"
)

// Logger is the logging interface every component depends on.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Fatal(msg string, fields map[string]interface{})

	// WithPrefix returns a child logger tagging every line with prefix.
	WithPrefix(prefix string) Logger
	// With returns a child logger that merges fields into every call.
	With(fields map[string]interface{}) Logger
}

// MetricsClient is the metrics interface every component depends on. Names
// include queries_total, cache_hits_total, circuit_opened_total,
// retry_attempts_total, query_duration_seconds, collection_size, etc.
type MetricsClient interface {
	IncrementCounter(name string, value float64)
	IncrementCounterWithLabels(name string, value float64, labels map[string]string)
	RecordGauge(name string, value float64, labels map[string]string)
	RecordHistogram(name string, value float64, labels map[string]string)
	// StartTimer returns a func that records the elapsed duration as a
	// histogram observation when called.
	StartTimer(name string, labels map[string]string) func()
	Close() error
}

// Span is a single unit of a trace.
type Span interface {
	End()
	SetAttribute(key string, value interface{})
	RecordError(err error)
}

// Tracer starts spans. Components take a Tracer at construction so a
// composition root can swap in a no-op tracer for tests.
type Tracer interface {
	Start(ctx context.Context, name string) (context.Context, Span)
}
