// Package embedcache is an LRU of precomputed document embeddings, keyed
// by doc_id. It sits in front of the embedding model so the vector phase
// of a query almost never pays embedding latency for documents already
// seen.
package embedcache

import (
	"context"

	"github.com/PerformanceSuite/knowledgebeast/pkg/document"
	"github.com/PerformanceSuite/knowledgebeast/pkg/lru"
	"github.com/PerformanceSuite/knowledgebeast/pkg/observability"
)

// EmbedFunc produces an embedding vector for text. Supplied by the
// caller; the cache never assumes anything about the model behind it
// beyond a fixed dimension for the lifetime of a project.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// Cache is an LRU of doc_id -> embedding, populated at startup and
// on-demand on cache miss.
type Cache struct {
	lru    *lru.Cache[string, []float32]
	logger observability.Logger
}

// New creates an embedding cache with the given capacity.
func New(capacity int, logger observability.Logger) *Cache {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Cache{lru: lru.New[string, []float32](capacity), logger: logger}
}

// Get returns the cached embedding for docID, if present.
func (c *Cache) Get(docID string) ([]float32, bool) {
	return c.lru.Get(docID)
}

// Put inserts or overwrites the embedding for docID.
func (c *Cache) Put(docID string, embedding []float32) {
	c.lru.Put(docID, embedding)
}

// GetOrCompute returns the cached embedding for docID, computing and
// inserting it via embed on a miss.
func (c *Cache) GetOrCompute(ctx context.Context, docID, content string, embed EmbedFunc) ([]float32, error) {
	if v, ok := c.lru.Get(docID); ok {
		return v, nil
	}
	v, err := embed(ctx, content)
	if err != nil {
		return nil, err
	}
	c.lru.Put(docID, v)
	return v, nil
}

// Stats returns the underlying cache's occupancy.
func (c *Cache) Stats() lru.Stats {
	return c.lru.Stats()
}

// Result summarizes a precompute/refresh pass.
type Result struct {
	Scanned  int
	Inserted int
}

// Precompute iterates every document in repo and ensures its embedding is
// cached, skipping ids already present. Failure embedding one document is
// logged and does not abort the scan.
func (c *Cache) Precompute(ctx context.Context, repo *document.Repository, embed EmbedFunc) Result {
	return c.scanAndFill(ctx, repo, embed)
}

// Refresh re-scans the repository and inserts embeddings for any ids
// missing from the cache. Semantically identical to Precompute; kept as
// a distinct name because callers invoke it for a different reason (a
// document was added or the repository was rebuilt after the initial
// warm-up).
func (c *Cache) Refresh(ctx context.Context, repo *document.Repository, embed EmbedFunc) Result {
	return c.scanAndFill(ctx, repo, embed)
}

func (c *Cache) scanAndFill(ctx context.Context, repo *document.Repository, embed EmbedFunc) Result {
	var result Result
	for _, id := range repo.AllDocumentIDs() {
		result.Scanned++
		if c.lru.Contains(id) {
			continue
		}
		doc, err := repo.GetDocument(id)
		if err != nil {
			c.logger.Warn("embedcache: document vanished during scan", map[string]interface{}{"doc_id": id, "error": err.Error()})
			continue
		}
		vec, err := embed(ctx, doc.Content)
		if err != nil {
			c.logger.Warn("embedcache: failed to embed document, skipping", map[string]interface{}{"doc_id": id, "error": err.Error()})
			continue
		}
		c.lru.Put(id, vec)
		result.Inserted++
	}
	return result
}
