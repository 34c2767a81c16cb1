// Package expansion implements query expansion: acronym substitution and
// synonym lookup applied to a raw query string before it reaches the
// retrieval engine.
package expansion

import (
	"strings"
	"sync"
)

// defaultAcronyms seeds the acronym table with common abbreviations;
// callers can add, override, or remove entries at runtime.
var defaultAcronyms = map[string]string{
	"ML":  "machine learning",
	"AI":  "artificial intelligence",
	"NLP": "natural language processing",
	"API": "application programming interface",
	"DB":  "database",
}

// SynonymLookup resolves synonyms for a single lowercased token. An
// implementation backed by an external lexicon (WordNet, a thesaurus
// service, a static file) that is unavailable should return
// (nil, false) rather than an error — per Expander, synonym expansion is
// best-effort and must never fail the whole expansion.
type SynonymLookup interface {
	Synonyms(token string) ([]string, bool)
}

// NoopSynonymLookup never finds a synonym. Used when no lexicon is
// configured.
type NoopSynonymLookup struct{}

// Synonyms always returns (nil, false).
func (NoopSynonymLookup) Synonyms(string) ([]string, bool) { return nil, false }

// Config controls expansion behavior.
type Config struct {
	Enabled       bool
	MaxExpansions int // per-token cap on synonym expansions
	SynonymLookup SynonymLookup
}

func (c Config) withDefaults() Config {
	if c.MaxExpansions <= 0 {
		c.MaxExpansions = 3
	}
	if c.SynonymLookup == nil {
		c.SynonymLookup = NoopSynonymLookup{}
	}
	return c
}

// Result is the output of expanding a single query.
type Result struct {
	Original          string
	Expanded          string
	ExpansionTerms    []string
	SynonymExpansions map[string][]string
	AcronymExpansions map[string]string
	TotalExpansions   int
}

// Expander holds a runtime-mutable acronym table and applies both
// acronym and synonym expansion to incoming queries.
type Expander struct {
	config Config

	mu       sync.RWMutex
	acronyms map[string]string
}

// New creates an Expander seeded with defaultAcronyms merged with
// overrides (overrides win on key collision).
func New(config Config, overrides map[string]string) *Expander {
	acronyms := make(map[string]string, len(defaultAcronyms)+len(overrides))
	for k, v := range defaultAcronyms {
		acronyms[k] = v
	}
	for k, v := range overrides {
		acronyms[strings.ToUpper(k)] = v
	}
	return &Expander{config: config.withDefaults(), acronyms: acronyms}
}

// AddAcronym inserts or overwrites an acronym entry at runtime.
func (e *Expander) AddAcronym(token, expansion string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.acronyms[strings.ToUpper(token)] = expansion
}

// RemoveAcronym deletes an acronym entry at runtime, if present.
func (e *Expander) RemoveAcronym(token string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.acronyms, strings.ToUpper(token))
}

// Expand applies acronym and synonym expansion to query, returning the
// original text unchanged alongside the expansion metadata. When
// config.Enabled is false, Expanded == Original and no metadata is
// populated.
func (e *Expander) Expand(query string) Result {
	result := Result{
		Original:          query,
		Expanded:          query,
		SynonymExpansions: make(map[string][]string),
		AcronymExpansions: make(map[string]string),
	}
	if !e.config.Enabled {
		return result
	}

	tokens := strings.Fields(query)
	var extra []string

	e.mu.RLock()
	acronyms := make(map[string]string, len(e.acronyms))
	for k, v := range e.acronyms {
		acronyms[k] = v
	}
	e.mu.RUnlock()

	for _, tok := range tokens {
		upper := strings.ToUpper(tok)
		if expansion, ok := acronyms[upper]; ok {
			result.AcronymExpansions[upper] = expansion
			extra = append(extra, expansion)
			continue
		}

		lower := strings.ToLower(tok)
		syns, ok := e.config.SynonymLookup.Synonyms(lower)
		if !ok || len(syns) == 0 {
			continue
		}
		if len(syns) > e.config.MaxExpansions {
			syns = syns[:e.config.MaxExpansions]
		}
		result.SynonymExpansions[lower] = syns
		extra = append(extra, syns...)
	}

	if len(extra) > 0 {
		result.ExpansionTerms = extra
		result.Expanded = query + " " + strings.Join(extra, " ")
	}
	result.TotalExpansions = len(extra)
	return result
}
