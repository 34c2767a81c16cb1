// Package retrieval implements the hybrid query engine: keyword and
// vector retrieval, linear-fusion combination, MMR re-ranking, diversity
// sampling, and graceful degradation to keyword-only search when the
// vector backend is unavailable.
package retrieval

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/PerformanceSuite/knowledgebeast/pkg/document"
	"github.com/PerformanceSuite/knowledgebeast/pkg/embedcache"
	"github.com/PerformanceSuite/knowledgebeast/pkg/errors"
	"github.com/PerformanceSuite/knowledgebeast/pkg/observability"
	"github.com/PerformanceSuite/knowledgebeast/pkg/rerank"
	"github.com/PerformanceSuite/knowledgebeast/pkg/vectorstore"
)

// Mode selects which phase(s) feed a re-ranking pass.
type Mode string

const (
	ModeVector  Mode = "vector"
	ModeKeyword Mode = "keyword"
	ModeHybrid  Mode = "hybrid"
)

// Result is a single scored, retrievable document.
type Result struct {
	Document document.Document
	Score    float64
}

// EmbedFunc embeds query text into the project's vector space.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// Config configures an Engine.
type Config struct {
	Alpha float64 // default weight of vector vs keyword in fusion
}

func (c Config) withDefaults() Config {
	if c.Alpha <= 0 {
		c.Alpha = 0.7
	}
	return c
}

// Backend is the minimal vector-query surface the engine's vector phase
// needs, satisfied by vectorstore.Backend and vectorstore.ResilientAdapter.
type Backend interface {
	QueryVector(ctx context.Context, embedding []float32, topK int) ([]vectorstore.Match, error)
}

// Engine composes the repository, embedding cache, and vector backend
// into the hybrid query surface: keyword search, vector search, linear
// fusion of the two, and MMR/diversity re-ranking over either.
type Engine struct {
	repo    *document.Repository
	embeds  *embedcache.Cache
	backend Backend
	embed   EmbedFunc
	config  Config
	logger  observability.Logger
	metrics observability.MetricsClient
	tracer  observability.Tracer

	degraded bool
}

// New creates an Engine. tracer may be nil, in which case spans are
// discarded; a composition root that wants hierarchical query traces
// passes an observability.OtelTracer instead.
func New(repo *document.Repository, embeds *embedcache.Cache, backend Backend, embed EmbedFunc, config Config, logger observability.Logger, metrics observability.MetricsClient, tracer observability.Tracer) *Engine {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetrics()
	}
	if tracer == nil {
		tracer = observability.NewNoopTracer()
	}
	return &Engine{
		repo:    repo,
		embeds:  embeds,
		backend: backend,
		embed:   embed,
		config:  config.withDefaults(),
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
	}
}

func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

func uniqueStrings(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// SearchKeyword scores documents by term-overlap with query against the
// repository's inverted index, normalized to [0,1]. Parses the query by
// lowercasing and whitespace-splitting, snapshots the index for exactly
// those terms, and ranks by match count descending, ties broken by
// repository insertion order.
func (e *Engine) SearchKeyword(query string) []Result {
	terms := uniqueStrings(tokenizeQuery(query))
	if len(terms) == 0 {
		return nil
	}

	snapshot := e.repo.GetIndexSnapshot(terms)

	matches := make(map[string]int)
	for _, ids := range snapshot {
		for _, id := range ids {
			matches[id]++
		}
	}

	type scored struct {
		id    string
		count int
	}
	docs := make([]scored, 0, len(matches))
	for id, count := range matches {
		docs = append(docs, scored{id: id, count: count})
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].count != docs[j].count {
			return docs[i].count > docs[j].count
		}
		return e.repo.InsertionOrder(docs[i].id) < e.repo.InsertionOrder(docs[j].id)
	})

	denom := float64(len(terms))
	if denom < 1 {
		denom = 1
	}

	results := make([]Result, 0, len(docs))
	for _, d := range docs {
		doc, err := e.repo.GetDocument(d.id)
		if err != nil {
			continue
		}
		results = append(results, Result{Document: doc, Score: float64(d.count) / denom})
	}
	return results
}

// SearchVector embeds query, asks the vector backend for its topK
// nearest matches, and resolves them to repository documents in the
// backend's order, keeping the backend's score; matches whose id is not
// in the repository are dropped. The embedding cache is not consulted
// and no document embeddings are computed here. degraded is true when fallbackOnError is set and the vector phase
// failed; in that case results is nil and the caller should fall back to
// SearchKeyword.
func (e *Engine) SearchVector(ctx context.Context, query string, topK int, fallbackOnError bool) (results []Result, degraded bool, err error) {
	ctx, span := e.tracer.Start(ctx, "vector_phase")
	defer span.End()
	stopTimer := e.metrics.StartTimer("vector_search_duration_seconds", map[string]string{"search_type": "vector"})
	defer stopTimer()

	embedding, embedErr := e.embed(ctx, query)
	if embedErr != nil {
		if fallbackOnError {
			e.setDegraded(true)
			return nil, true, nil
		}
		span.RecordError(embedErr)
		return nil, false, errors.Wrap(errors.Internal, embedErr, "failed to embed query")
	}

	matches, queryErr := e.backend.QueryVector(ctx, embedding, topK)
	if queryErr != nil {
		if fallbackOnError {
			e.setDegraded(true)
			return nil, true, nil
		}
		span.RecordError(queryErr)
		return nil, false, queryErr
	}

	e.setDegraded(false)
	docs := e.repo.GetDocumentsByIDs(matchIDs(matches))
	byID := make(map[string]document.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	out := make([]Result, 0, len(matches))
	for _, m := range matches {
		doc, ok := byID[m.DocID]
		if !ok {
			continue
		}
		out = append(out, Result{Document: doc, Score: m.Score})
	}
	return out, false, nil
}

func matchIDs(matches []vectorstore.Match) []string {
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.DocID
	}
	return ids
}

func (e *Engine) setDegraded(v bool) {
	e.degraded = v
	if v {
		e.metrics.IncrementCounter("hybrid_search_degraded_total", 1.0)
	}
}

// SearchHybrid fuses keyword and vector scores: combined = alpha*vector
// + (1-alpha)*keyword, over the union of doc_ids seen by either phase.
// If alpha is nil the engine's configured default is used. When the
// vector phase fails, fallbackOnError determines what happens next: if
// true, falls back to keyword-only results with degraded=true; if
// false, returns an empty list with degraded=true regardless of what
// the keyword phase found. If the keyword phase has no matches and the
// fallback applies, also returns an empty list with degraded=true.
func (e *Engine) SearchHybrid(ctx context.Context, query string, alpha *float64, topK int, fallbackOnError bool) (results []Result, degraded bool, err error) {
	if strings.TrimSpace(query) == "" {
		return nil, false, nil
	}

	ctx, span := e.tracer.Start(ctx, "query")
	span.SetAttribute("mode", "hybrid")
	span.SetAttribute("top_k", topK)
	defer span.End()

	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		e.metrics.RecordHistogram("query_duration_seconds", time.Since(start).Seconds(), map[string]string{"operation": "hybrid", "status": status})
	}()

	a := e.config.Alpha
	if alpha != nil {
		a = *alpha
	}

	_, keywordSpan := e.tracer.Start(ctx, "keyword_phase")
	keywordResults := e.SearchKeyword(query)
	keywordSpan.End()

	vectorResults, vecDegraded, vecErr := e.SearchVector(ctx, query, topK*3, true)
	if vecErr != nil {
		span.RecordError(vecErr)
		return nil, false, vecErr
	}

	if vecDegraded {
		if !fallbackOnError {
			return nil, true, nil
		}
		if keywordResults == nil {
			return nil, true, nil
		}
		if topK > 0 && topK < len(keywordResults) {
			keywordResults = keywordResults[:topK]
		}
		return keywordResults, true, nil
	}

	_, fusionSpan := e.tracer.Start(ctx, "fusion")
	defer fusionSpan.End()

	keywordByID := make(map[string]float64, len(keywordResults))
	docByID := make(map[string]document.Document, len(keywordResults)+len(vectorResults))
	for _, r := range keywordResults {
		keywordByID[r.Document.ID] = r.Score
		docByID[r.Document.ID] = r.Document
	}
	vectorByID := make(map[string]float64, len(vectorResults))
	for _, r := range vectorResults {
		vectorByID[r.Document.ID] = r.Score
		docByID[r.Document.ID] = r.Document
	}

	ids := make([]string, 0, len(docByID))
	for id := range docByID {
		ids = append(ids, id)
	}

	combined := make([]Result, 0, len(ids))
	for _, id := range ids {
		score := a*vectorByID[id] + (1-a)*keywordByID[id]
		combined = append(combined, Result{Document: docByID[id], Score: score})
	}
	sort.Slice(combined, func(i, j int) bool { return combined[i].Score > combined[j].Score })

	if topK > 0 && topK < len(combined) {
		combined = combined[:topK]
	}
	return combined, false, nil
}

// SearchWithMMR retrieves 3*topK candidates in the selected mode and
// re-ranks them with MMR, parameterized by lambda (1.0 = pure relevance,
// 0.0 = pure diversity).
func (e *Engine) SearchWithMMR(ctx context.Context, query string, lambda float64, topK int, mode Mode) ([]Result, error) {
	ctx, span := e.tracer.Start(ctx, "query")
	span.SetAttribute("mode", string(mode))
	span.SetAttribute("rerank", "mmr")
	defer span.End()

	candidates, err := e.candidatesForMode(ctx, query, mode, topK*3)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	scored := make([]rerank.ScoredEmbedding, 0, len(candidates))
	for _, c := range candidates {
		emb, ok := e.embeds.Get(c.Document.ID)
		if !ok {
			continue
		}
		scored = append(scored, rerank.ScoredEmbedding{
			Candidate: rerank.Candidate{DocID: c.Document.ID, Content: c.Document.Content, Score: c.Score},
			Embedding: emb,
		})
	}

	_, rerankSpan := e.tracer.Start(ctx, "rerank")
	selected := rerank.MMR(scored, lambda, topK)
	rerankSpan.End()
	return e.candidatesToResults(selected, candidates), nil
}

// SearchWithDiversity retrieves 3*topK candidates in the selected mode
// and includes a candidate only if its cosine similarity to every
// already-selected candidate is strictly below threshold.
func (e *Engine) SearchWithDiversity(ctx context.Context, query string, threshold float64, topK int, mode Mode) ([]Result, error) {
	ctx, span := e.tracer.Start(ctx, "query")
	span.SetAttribute("mode", string(mode))
	span.SetAttribute("rerank", "diversity")
	defer span.End()

	candidates, err := e.candidatesForMode(ctx, query, mode, topK*3)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	scored := make([]rerank.ScoredEmbedding, 0, len(candidates))
	for _, c := range candidates {
		emb, ok := e.embeds.Get(c.Document.ID)
		if !ok {
			continue
		}
		scored = append(scored, rerank.ScoredEmbedding{
			Candidate: rerank.Candidate{DocID: c.Document.ID, Content: c.Document.Content, Score: c.Score},
			Embedding: emb,
		})
	}

	_, rerankSpan := e.tracer.Start(ctx, "rerank")
	selected := rerank.Diversity(scored, threshold, topK)
	rerankSpan.End()
	return e.candidatesToResults(selected, candidates), nil
}

func (e *Engine) candidatesForMode(ctx context.Context, query string, mode Mode, n int) ([]Result, error) {
	switch mode {
	case ModeKeyword:
		_, span := e.tracer.Start(ctx, "keyword_phase")
		defer span.End()
		results := e.SearchKeyword(query)
		if n > 0 && n < len(results) {
			results = results[:n]
		}
		return results, nil
	case ModeHybrid:
		results, _, err := e.SearchHybrid(ctx, query, nil, n, true)
		return results, err
	default:
		results, _, err := e.SearchVector(ctx, query, n, false)
		return results, err
	}
}

func (e *Engine) candidatesToResults(selected []rerank.Candidate, candidates []Result) []Result {
	byID := make(map[string]Result, len(candidates))
	for _, c := range candidates {
		byID[c.Document.ID] = c
	}
	out := make([]Result, 0, len(selected))
	for _, s := range selected {
		if r, ok := byID[s.DocID]; ok {
			out = append(out, r)
		}
	}
	return out
}
