package document

import (
	"strings"
	"sync"

	"github.com/PerformanceSuite/knowledgebeast/pkg/errors"
)

// Stats is a point-in-time count of the repository's contents.
type Stats struct {
	Documents int
	Terms     int
}

// Repository owns documents and the inverted term index derived from
// them, plus the reader-writer lock that makes the snapshot pattern
// possible. The term index is purely derived: it may be rebuilt from
// scratch and must always equal the set of (term, doc_id) pairs implied
// by documents.
type Repository struct {
	mu sync.RWMutex

	documents map[string]Document
	index     map[string]map[string]struct{} // term -> set of doc_id

	// insertionOrder and order record the order documents were added, so
	// keyword-search ties can be broken deterministically.
	insertionOrder []string
	order          map[string]int
}

// NewRepository creates an empty Repository.
func NewRepository() *Repository {
	return &Repository{
		documents: make(map[string]Document),
		index:     make(map[string]map[string]struct{}),
		order:     make(map[string]int),
	}
}

// tokenize lowercases and whitespace-splits content into index terms.
func tokenize(content string) []string {
	return strings.Fields(strings.ToLower(content))
}

// AddDocument inserts or replaces doc under id, and indexes every term in
// its content. The triple (documents, index, insertion order) becomes
// visible atomically: a concurrent snapshot either sees the whole write
// or none of it, never a term pointing at a missing id.
func (r *Repository) AddDocument(id string, doc Document) {
	doc.ID = id

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.documents[id]; !exists {
		r.order[id] = len(r.insertionOrder)
		r.insertionOrder = append(r.insertionOrder, id)
	} else {
		r.removeFromIndexLocked(id)
	}

	r.documents[id] = doc.Clone()
	for _, term := range tokenize(doc.Content) {
		r.indexTermLocked(term, id)
	}
}

// removeFromIndexLocked drops every index entry referencing id. Caller
// must hold r.mu for writing.
func (r *Repository) removeFromIndexLocked(id string) {
	for term, ids := range r.index {
		if _, ok := ids[id]; ok {
			delete(ids, id)
			if len(ids) == 0 {
				delete(r.index, term)
			}
		}
	}
}

// indexTermLocked records that term appears in doc_id. Caller must hold
// r.mu for writing.
func (r *Repository) indexTermLocked(term, docID string) {
	ids, ok := r.index[term]
	if !ok {
		ids = make(map[string]struct{})
		r.index[term] = ids
	}
	ids[docID] = struct{}{}
}

// IndexTerm records an additional (term, doc_id) association directly,
// for callers doing incremental index maintenance outside AddDocument's
// automatic tokenization.
func (r *Repository) IndexTerm(term, docID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexTermLocked(term, docID)
}

// RemoveDocument deletes doc_id and every index entry referencing it.
// Removal is always wholesale, never a partial field update.
func (r *Repository) RemoveDocument(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.documents[id]; !ok {
		return
	}
	delete(r.documents, id)
	r.removeFromIndexLocked(id)
}

// GetDocument returns the document for id, or a NotFound error.
func (r *Repository) GetDocument(id string) (Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.documents[id]
	if !ok {
		return Document{}, errors.New(errors.NotFound, "document not found: "+id)
	}
	return doc.Clone(), nil
}

// GetDocumentsByIDs returns the documents for the given ids, in the order
// requested, silently skipping ids that don't resolve. This is never an
// error.
func (r *Repository) GetDocumentsByIDs(ids []string) []Document {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := r.documents[id]; ok {
			out = append(out, doc.Clone())
		}
	}
	return out
}

// AllDocumentIDs returns every known doc_id, in insertion order. Used by
// scans that need to walk the whole repository (embedding precompute,
// index rebuild callers outside the package).
func (r *Repository) AllDocumentIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.insertionOrder))
	for _, id := range r.insertionOrder {
		if _, ok := r.documents[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// GetStats returns the repository's current size.
func (r *Repository) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{Documents: len(r.documents), Terms: len(r.index)}
}

// InsertionOrder returns the position id was added at, or -1 if unknown.
// Used by the keyword search phase to break score ties deterministically.
func (r *Repository) InsertionOrder(id string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if pos, ok := r.order[id]; ok {
		return pos
	}
	return -1
}

// GetIndexSnapshot is the central concurrency primitive of the package:
// under a single short critical section, copy out only the index entries
// whose term appears in terms, into a map the caller owns outright.
// Scoring against the returned map then proceeds without holding r.mu,
// so writers contend only with the copy itself, never with scoring work.
//
// The snapshot is a point-in-time copy: no write that completes after
// GetIndexSnapshot returns can affect it.
func (r *Repository) GetIndexSnapshot(terms []string) map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[string][]string, len(terms))
	for _, term := range terms {
		ids, ok := r.index[term]
		if !ok {
			continue
		}
		copied := make([]string, 0, len(ids))
		for id := range ids {
			copied = append(copied, id)
		}
		snapshot[term] = copied
	}
	return snapshot
}

// RebuildIndex recomputes the term index from scratch by re-tokenizing
// every document's content. Useful after bulk mutation or to repair the
// invariant that the index must equal the set of (term, doc_id) pairs
// implied by documents.
func (r *Repository) RebuildIndex() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.index = make(map[string]map[string]struct{})
	for id, doc := range r.documents {
		for _, term := range tokenize(doc.Content) {
			r.indexTermLocked(term, id)
		}
	}
}
