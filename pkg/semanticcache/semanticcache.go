// Package semanticcache implements an approximate (query_text,
// query_embedding) -> results cache: a probe that is merely similar
// enough to a cached query, not identical to it, counts as a hit.
package semanticcache

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PerformanceSuite/knowledgebeast/pkg/observability"
	"github.com/PerformanceSuite/knowledgebeast/pkg/vecmath"
)

// Config controls matching and retention behavior.
type Config struct {
	SimilarityThreshold float64
	TTL                 time.Duration
	MaxEntries          int
}

func (c Config) withDefaults() Config {
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = 0.95
	}
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = 1000
	}
	return c
}

// Entry is a single cached query and its result set.
type Entry struct {
	ID        string
	Query     string
	Embedding []float32
	Results   interface{}
	Timestamp time.Time
	TTL       time.Duration
	HitCount  int64
}

func (e *Entry) expired(now time.Time) bool {
	return now.Sub(e.Timestamp) >= e.TTL
}

// Match describes a semantic-cache hit.
type Match struct {
	Results      interface{}
	Similarity   float64
	MatchedQuery string
}

// Cache is a bounded, TTL-aware store of query results keyed
// approximately by embedding similarity rather than exact text match.
type Cache struct {
	mu      sync.Mutex
	config  Config
	entries map[string]*Entry // id -> entry
	order   []string          // least-recently-used first; a hit moves an entry to the back
	logger  observability.Logger

	hits      int64
	misses    int64
	evictions int64
}

// New creates a Cache with the given configuration.
func New(config Config, logger observability.Logger) *Cache {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Cache{
		config:  config.withDefaults(),
		entries: make(map[string]*Entry),
		logger:  logger,
	}
}

// Put inserts a new cache entry, evicting the least-recently-used entry
// (the one least recently inserted or hit) if the cache is at capacity.
func (c *Cache) Put(query string, embedding []float32, results interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.config.MaxEntries {
		c.evictOldestLocked()
	}

	id := uuid.NewString()
	c.entries[id] = &Entry{
		ID:        id,
		Query:     query,
		Embedding: embedding,
		Results:   results,
		Timestamp: time.Now(),
		TTL:       c.config.TTL,
	}
	c.order = append(c.order, id)
}

func (c *Cache) evictOldestLocked() {
	for len(c.order) > 0 {
		id := c.order[0]
		c.order = c.order[1:]
		if _, ok := c.entries[id]; ok {
			delete(c.entries, id)
			c.evictions++
			return
		}
	}
}

// Get scans non-expired entries for the highest-similarity match to
// embedding at or above the configured threshold. Expired entries
// encountered during the scan are removed opportunistically and never
// considered a candidate, even if they'd otherwise score highest.
func (c *Cache) Get(embedding []float32) (Match, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var best *Entry
	var bestSim float64

	for id, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, id)
			continue
		}
		sim := float64(vecmath.Cosine(embedding, e.Embedding))
		if sim >= c.config.SimilarityThreshold && (best == nil || sim > bestSim) {
			best = e
			bestSim = sim
		}
	}

	if best == nil {
		c.misses++
		return Match{}, false
	}

	best.HitCount++
	c.hits++
	for i, id := range c.order {
		if id == best.ID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, best.ID)
	return Match{Results: best.Results, Similarity: bestSim, MatchedQuery: best.Query}, true
}

// QueryFunc executes a query against the underlying engine and returns
// its results, for use by Warm.
type QueryFunc func(query string) (interface{}, error)

// EmbedFunc embeds query text, for use by Warm.
type EmbedFunc func(query string) ([]float32, error)

// Warm populates the cache by running each query through embedFn and
// queryFn and inserting the result. A failure on one query is skipped,
// not fatal to the warm pass.
func (c *Cache) Warm(queries []string, embedFn EmbedFunc, queryFn QueryFunc) {
	for _, q := range queries {
		embedding, err := embedFn(q)
		if err != nil {
			c.logger.Warn("semanticcache: warm embed failed, skipping query", map[string]interface{}{"query": q, "error": err.Error()})
			continue
		}
		results, err := queryFn(q)
		if err != nil {
			c.logger.Warn("semanticcache: warm query failed, skipping query", map[string]interface{}{"query": q, "error": err.Error()})
			continue
		}
		c.Put(q, embedding, results)
	}
}

// CleanupExpired removes every expired entry and returns the count
// removed.
func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// QueryHitCount pairs a query with its accumulated hit count, for
// GetTopQueries.
type QueryHitCount struct {
	Query    string
	HitCount int64
}

// GetTopQueries returns the k entries with the highest hit_count,
// descending.
func (c *Cache) GetTopQueries(k int) []QueryHitCount {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]QueryHitCount, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, QueryHitCount{Query: e.Query, HitCount: e.HitCount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HitCount > out[j].HitCount })
	if k < len(out) {
		out = out[:k]
	}
	return out
}

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Size      int
	Hits      int64
	Misses    int64
	Evictions int64
}

// Stats returns the cache's current size and hit/miss/eviction counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Size: len(c.entries), Hits: c.hits, Misses: c.misses, Evictions: c.evictions}
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
	c.order = nil
}
