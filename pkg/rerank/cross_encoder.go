// Package rerank implements a post-hoc cross-encoder re-scorer for a
// small candidate set, plus a stand-alone MMR/diversity re-ranker
// usable without a cross-encoder model.
package rerank

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/PerformanceSuite/knowledgebeast/pkg/observability"
)

// Candidate is a single item eligible for re-ranking.
type Candidate struct {
	DocID    string
	Content  string
	Score    float64 // input (pre-rerank) score
	Metadata map[string]interface{}
}

// Reranked is a Candidate annotated with the cross-encoder's output.
type Reranked struct {
	Candidate
	Rank        int
	RerankScore float64
	FinalScore  float64
	Fallback    bool
}

// CrossEncoderFunc scores a (query, documents) batch, returning one
// score per document in the same order. Supplied by the caller; the
// reranker never assumes anything about the model behind it beyond
// "returns one real-valued score per input document".
type CrossEncoderFunc func(ctx context.Context, query string, documents []string) ([]float64, error)

// Config configures a CrossEncoderReranker.
type Config struct {
	BatchSize       int
	MaxConcurrency  int
	TimeoutPerBatch time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 16
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 3
	}
	if c.TimeoutPerBatch <= 0 {
		c.TimeoutPerBatch = 5 * time.Second
	}
	return c
}

// CrossEncoderReranker re-scores candidates in batches, bounding
// concurrency with a semaphore and falling back to the input ordering if
// a batch times out or otherwise errors.
type CrossEncoderReranker struct {
	score     CrossEncoderFunc
	config    Config
	semaphore *semaphore.Weighted
	logger    observability.Logger
	metrics   observability.MetricsClient
}

// New creates a CrossEncoderReranker backed by score.
func New(score CrossEncoderFunc, config Config, logger observability.Logger, metrics observability.MetricsClient) *CrossEncoderReranker {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetrics()
	}
	config = config.withDefaults()
	return &CrossEncoderReranker{
		score:     score,
		config:    config,
		semaphore: semaphore.NewWeighted(int64(config.MaxConcurrency)),
		logger:    logger,
		metrics:   metrics,
	}
}

// Rerank scores candidates against query in batches and returns the top
// topK, ranked descending by final score. A candidate set smaller than
// batchSize runs as a single batch. On any batch failure (timeout or
// model error), that batch falls back to its input order with its input
// score carried through as final_score, and Fallback is set so callers
// can log and keep serving results.
func (r *CrossEncoderReranker) Rerank(ctx context.Context, query string, candidates []Candidate, topK int) ([]Reranked, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	batches := r.createBatches(candidates)
	allReranked := make([]Reranked, 0, len(candidates))

	for batchIdx, batch := range batches {
		if err := r.semaphore.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("rerank: failed to acquire concurrency slot: %w", err)
		}

		reranked := r.processBatch(ctx, query, batch, batchIdx)
		r.semaphore.Release(1)

		allReranked = append(allReranked, reranked...)
	}

	sort.Slice(allReranked, func(i, j int) bool { return allReranked[i].FinalScore > allReranked[j].FinalScore })

	if topK > 0 && topK < len(allReranked) {
		allReranked = allReranked[:topK]
	}
	for i := range allReranked {
		allReranked[i].Rank = i + 1
	}
	return allReranked, nil
}

func (r *CrossEncoderReranker) processBatch(ctx context.Context, query string, batch []Candidate, batchIdx int) []Reranked {
	batchCtx, cancel := context.WithTimeout(ctx, r.config.TimeoutPerBatch)
	defer cancel()

	documents := make([]string, len(batch))
	for i, c := range batch {
		documents[i] = c.Content
	}

	scores, err := r.score(batchCtx, query, documents)
	if err != nil || len(scores) != len(batch) {
		r.logger.Warn("rerank: batch failed, falling back to input order", map[string]interface{}{
			"batch": batchIdx,
			"error": fmt.Sprint(err),
		})
		r.metrics.IncrementCounter("rerank_batch_failure_total", 1.0)
		return fallbackBatch(batch)
	}

	normalized := normalizeScores(scores)
	out := make([]Reranked, len(batch))
	for i, c := range batch {
		out[i] = Reranked{Candidate: c, RerankScore: normalized[i], FinalScore: normalized[i]}
	}
	return out
}

func fallbackBatch(batch []Candidate) []Reranked {
	out := make([]Reranked, len(batch))
	for i, c := range batch {
		out[i] = Reranked{Candidate: c, RerankScore: c.Score, FinalScore: c.Score, Fallback: true}
	}
	return out
}

// normalizeScores maps raw cross-encoder scores to [0,1] via min-max
// scaling. A batch of identical scores maps every entry to 1.0 rather
// than dividing by zero.
func normalizeScores(scores []float64) []float64 {
	if len(scores) == 0 {
		return scores
	}
	min, max := scores[0], scores[0]
	for _, s := range scores {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	out := make([]float64, len(scores))
	if max == min {
		for i := range out {
			out[i] = 1.0
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - min) / (max - min)
	}
	return out
}

func (r *CrossEncoderReranker) createBatches(candidates []Candidate) [][]Candidate {
	var batches [][]Candidate
	for i := 0; i < len(candidates); i += r.config.BatchSize {
		end := i + r.config.BatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batches = append(batches, candidates[i:end])
	}
	return batches
}
