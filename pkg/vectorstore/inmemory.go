package vectorstore

import (
	"context"
	"sort"
	"sync"

	"github.com/PerformanceSuite/knowledgebeast/pkg/errors"
	"github.com/PerformanceSuite/knowledgebeast/pkg/vecmath"
)

type inMemoryRecord struct {
	embedding []float32
	document  string
	metadata  map[string]interface{}
}

// InMemoryBackend is a Backend implementation with no external
// dependency, used by tests and by the project manager when no real
// vector database is configured. It supports vector and hybrid queries
// natively; keyword queries delegate to a naive substring match since it
// has no term index of its own.
type InMemoryBackend struct {
	name       string
	collection string

	mu      sync.RWMutex
	records map[string]inMemoryRecord
}

// NewInMemoryBackend creates an empty backend for the given collection.
func NewInMemoryBackend(collection string) *InMemoryBackend {
	return &InMemoryBackend{name: "inmemory", collection: collection, records: make(map[string]inMemoryRecord)}
}

// AddDocuments stores the given ids/embeddings/documents/metadatas.
func (b *InMemoryBackend) AddDocuments(_ context.Context, ids []string, embeddings [][]float32, documents []string, metadatas []map[string]interface{}) error {
	if len(ids) != len(embeddings) || len(ids) != len(documents) {
		return errors.New(errors.Validation, "ids, embeddings, and documents must have equal length")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, id := range ids {
		var md map[string]interface{}
		if i < len(metadatas) {
			md = metadatas[i]
		}
		b.records[id] = inMemoryRecord{embedding: embeddings[i], document: documents[i], metadata: md}
	}
	return nil
}

// QueryVector returns the topK nearest records by cosine similarity.
func (b *InMemoryBackend) QueryVector(_ context.Context, embedding []float32, topK int) ([]Match, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	matches := make([]Match, 0, len(b.records))
	for id, rec := range b.records {
		matches = append(matches, Match{DocID: id, Score: float64(vecmath.Cosine(embedding, rec.embedding)), Metadata: rec.metadata})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

// QueryKeyword is a naive case-insensitive substring match over stored
// document text. Every matching record scores 1.0, and matches are
// ordered by doc id.
func (b *InMemoryBackend) QueryKeyword(_ context.Context, text string, topK int) ([]Match, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	matches := make([]Match, 0)
	for id, rec := range b.records {
		if rec.document == "" {
			continue
		}
		if containsFold(rec.document, text) {
			matches = append(matches, Match{DocID: id, Score: 1.0, Metadata: rec.metadata})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].DocID < matches[j].DocID })
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	hl, nl := []rune(haystack), []rune(needle)
	for i := 0; i+len(nl) <= len(hl); i++ {
		match := true
		for j := range nl {
			hc, nc := hl[i+j], nl[j]
			if hc >= 'A' && hc <= 'Z' {
				hc += 'a' - 'A'
			}
			if nc >= 'A' && nc <= 'Z' {
				nc += 'a' - 'A'
			}
			if hc != nc {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// QueryHybrid fuses vector and keyword scores with the given alpha.
func (b *InMemoryBackend) QueryHybrid(ctx context.Context, embedding []float32, text string, topK int, alpha float64) ([]Match, error) {
	vecMatches, err := b.QueryVector(ctx, embedding, topK*3)
	if err != nil {
		return nil, err
	}
	kwMatches, err := b.QueryKeyword(ctx, text, topK*3)
	if err != nil {
		return nil, err
	}

	vecScores := make(map[string]float64, len(vecMatches))
	for _, m := range vecMatches {
		vecScores[m.DocID] = m.Score
	}
	kwScores := make(map[string]float64, len(kwMatches))
	for _, m := range kwMatches {
		kwScores[m.DocID] = m.Score
	}

	seen := make(map[string]struct{}, len(vecScores)+len(kwScores))
	for id := range vecScores {
		seen[id] = struct{}{}
	}
	for id := range kwScores {
		seen[id] = struct{}{}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	combined := make([]Match, 0, len(seen))
	for id := range seen {
		score := alpha*vecScores[id] + (1-alpha)*kwScores[id]
		combined = append(combined, Match{DocID: id, Score: score, Metadata: b.records[id].metadata})
	}
	sort.Slice(combined, func(i, j int) bool { return combined[i].Score > combined[j].Score })
	if topK < len(combined) {
		combined = combined[:topK]
	}
	return combined, nil
}

// DeleteDocuments removes the given ids and returns the count removed.
func (b *InMemoryBackend) DeleteDocuments(_ context.Context, ids []string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := 0
	for _, id := range ids {
		if _, ok := b.records[id]; ok {
			delete(b.records, id)
			count++
		}
	}
	return count, nil
}

// GetStatistics returns the backend's current holdings.
func (b *InMemoryBackend) GetStatistics(_ context.Context) (Statistics, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Statistics{Backend: b.name, Collection: b.collection, TotalDocuments: len(b.records)}, nil
}

// GetHealth always reports healthy: an in-process map can't go down on
// its own.
func (b *InMemoryBackend) GetHealth(_ context.Context) (Health, error) {
	return Health{Status: HealthHealthy, BackendAvailable: true}, nil
}
