// Package project implements the project manager: a registry of
// isolated knowledge bases, each owning its own document repository,
// embedding cache, semantic cache, and vector backend, constructed
// lazily and cached for reuse across calls.
package project

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PerformanceSuite/knowledgebeast/pkg/document"
	"github.com/PerformanceSuite/knowledgebeast/pkg/embedcache"
	"github.com/PerformanceSuite/knowledgebeast/pkg/errors"
	"github.com/PerformanceSuite/knowledgebeast/pkg/observability"
	"github.com/PerformanceSuite/knowledgebeast/pkg/retrieval"
	"github.com/PerformanceSuite/knowledgebeast/pkg/semanticcache"
	"github.com/PerformanceSuite/knowledgebeast/pkg/vectorstore"
)

// Project is the persisted metadata record for one isolated knowledge
// base. EmbeddingModel is immutable once set.
type Project struct {
	ID             string
	Name           string
	Description    string
	EmbeddingModel string
	Metadata       map[string]string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Stats aggregates a project's document count alongside cache-hit-rate
// and backend-health signals so an operator can see degradation at a
// glance, not just raw counts.
type Stats struct {
	Documents             int
	Terms                 int
	EmbedCacheSize        int
	EmbedCacheCapacity    int
	SemanticCacheHits     int64
	SemanticCacheMisses   int64
	SemanticCacheHitRate  float64
	SemanticCacheSize     int
	BackendCircuitBreaker string
	BackendHealthy        bool
}

// BackendFactory constructs the vector backend for a newly created
// project, e.g. allocating a collection named after the project ID.
type BackendFactory func(p Project) (vectorstore.Backend, error)

// EmbedFuncFactory constructs the embedding function for a project,
// typically closing over p.EmbeddingModel.
type EmbedFuncFactory func(p Project) retrieval.EmbedFunc

// components bundles the lazily-constructed, per-project runtime
// pieces the manager caches after first use.
type components struct {
	repo     *document.Repository
	embeds   *embedcache.Cache
	semantic *semanticcache.Cache
	backend  vectorstore.Backend
	engine   *retrieval.Engine
}

// Config tunes the per-project component sizes the manager builds.
type Config struct {
	EmbedCacheCapacity int
	Semantic           semanticcache.Config
	Retrieval          retrieval.Config
}

func (c Config) withDefaults() Config {
	if c.EmbedCacheCapacity <= 0 {
		c.EmbedCacheCapacity = 10000
	}
	return c
}

// Manager owns the project registry and the lazily-built components
// behind each project.
type Manager struct {
	mu             sync.RWMutex
	projects       map[string]*Project
	comps          map[string]*components
	backendFactory BackendFactory
	embedFactory   EmbedFuncFactory
	config         Config
	logger         observability.Logger
	metrics        observability.MetricsClient
	tracer         observability.Tracer
}

// New creates a Manager. backendFactory and embedFactory are called
// exactly once per project, at creation time. tracer may be nil, in
// which case every project's engine discards spans.
func New(backendFactory BackendFactory, embedFactory EmbedFuncFactory, config Config, logger observability.Logger, metrics observability.MetricsClient, tracer observability.Tracer) *Manager {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetrics()
	}
	if tracer == nil {
		tracer = observability.NewNoopTracer()
	}
	return &Manager{
		projects:       make(map[string]*Project),
		comps:          make(map[string]*components),
		backendFactory: backendFactory,
		embedFactory:   embedFactory,
		config:         config.withDefaults(),
		logger:         logger,
		metrics:        metrics,
		tracer:         tracer,
	}
}

// CreateProject registers a new project, generating id if empty, and
// eagerly builds its repository, embedding cache, and vector-store
// collection.
func (m *Manager) CreateProject(id, name, description, embeddingModel string, metadata map[string]string) (*Project, error) {
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	if _, exists := m.projects[id]; exists {
		m.mu.Unlock()
		return nil, errors.New(errors.Validation, "project already exists: "+id)
	}

	now := time.Now()
	p := &Project{
		ID:             id,
		Name:           name,
		Description:    description,
		EmbeddingModel: embeddingModel,
		Metadata:       metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.projects[id] = p
	m.mu.Unlock()

	if _, err := m.ensureComponents(*p); err != nil {
		m.mu.Lock()
		delete(m.projects, id)
		m.mu.Unlock()
		return nil, err
	}

	m.logger.Info("project created", map[string]interface{}{"project_id": id, "name": name})
	return p, nil
}

// ListProjects returns every registered project.
func (m *Manager) ListProjects() []Project {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, *p)
	}
	return out
}

// GetProject looks up a project by id.
func (m *Manager) GetProject(id string) (Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.projects[id]
	if !ok {
		return Project{}, errors.New(errors.NotFound, "project not found: "+id)
	}
	return *p, nil
}

// UpdateProject applies a partial update to name/description/metadata.
// EmbeddingModel is immutable; a nil field is left unchanged.
func (m *Manager) UpdateProject(id string, name, description *string, metadata map[string]string) (Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.projects[id]
	if !ok {
		return Project{}, errors.New(errors.NotFound, "project not found: "+id)
	}
	if name != nil {
		p.Name = *name
	}
	if description != nil {
		p.Description = *description
	}
	if metadata != nil {
		p.Metadata = metadata
	}
	p.UpdatedAt = time.Now()
	return *p, nil
}

// DeleteProject tears down a project's collection and drops all
// in-memory state for it.
func (m *Manager) DeleteProject(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.projects[id]; !ok {
		return errors.New(errors.NotFound, "project not found: "+id)
	}
	delete(m.projects, id)
	delete(m.comps, id)
	return nil
}

// CleanupAll tears down every project. Intended for orderly shutdown
// and test cleanup.
func (m *Manager) CleanupAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.projects = make(map[string]*Project)
	m.comps = make(map[string]*components)
}

// ensureComponents returns the cached components for p, building them
// on first access.
func (m *Manager) ensureComponents(p Project) (*components, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.comps[p.ID]; ok {
		return c, nil
	}

	backend, err := m.backendFactory(p)
	if err != nil {
		return nil, errors.Wrap(errors.Backend, err, "failed to construct vector backend for project "+p.ID)
	}

	repo := document.NewRepository()
	embeds := embedcache.New(m.config.EmbedCacheCapacity, m.logger)
	semantic := semanticcache.New(m.config.Semantic, m.logger)
	embed := m.embedFactory(p)
	engine := retrieval.New(repo, embeds, backend, embed, m.config.Retrieval, m.logger, m.metrics, m.tracer)

	c := &components{repo: repo, embeds: embeds, semantic: semantic, backend: backend, engine: engine}
	m.comps[p.ID] = c
	return c, nil
}

func (m *Manager) componentsFor(projectID string) (*components, error) {
	m.mu.RLock()
	c, ok := m.comps[projectID]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.NotFound, "project not found: "+projectID)
	}
	return c, nil
}

// IngestDocument tokenizes and indexes content under project_id,
// generating a document id if the caller doesn't supply one via
// metadata["doc_id"].
func (m *Manager) IngestDocument(projectID, content string, metadata map[string]string) (string, error) {
	c, err := m.componentsFor(projectID)
	if err != nil {
		return "", err
	}

	docID := metadata["doc_id"]
	if docID == "" {
		docID = uuid.NewString()
	}
	c.repo.AddDocument(docID, document.Document{ID: docID, Content: content, Metadata: metadata})
	return docID, nil
}

// QueryProject runs a query against project_id's engine in the given
// mode, returning at most top_k results. alpha is only meaningful for
// retrieval.ModeHybrid; pass nil to use the engine's configured default.
// fallbackOnError is only meaningful for retrieval.ModeHybrid: when
// false, a failed vector phase yields an empty result set with
// degraded=true instead of falling back to keyword-only results.
func (m *Manager) QueryProject(ctx context.Context, projectID, query string, mode retrieval.Mode, topK int, alpha *float64, fallbackOnError bool) ([]retrieval.Result, bool, error) {
	c, err := m.componentsFor(projectID)
	if err != nil {
		return nil, false, err
	}

	switch mode {
	case retrieval.ModeKeyword:
		results := c.engine.SearchKeyword(query)
		if topK > 0 && topK < len(results) {
			results = results[:topK]
		}
		return results, false, nil
	case retrieval.ModeHybrid:
		return c.engine.SearchHybrid(ctx, query, alpha, topK, fallbackOnError)
	default:
		results, degraded, err := c.engine.SearchVector(ctx, query, topK, true)
		return results, degraded, err
	}
}

// GetProjectStats aggregates document counts with cache-hit-rate and
// backend-health signals for project_id.
func (m *Manager) GetProjectStats(ctx context.Context, projectID string) (Stats, error) {
	c, err := m.componentsFor(projectID)
	if err != nil {
		return Stats{}, err
	}

	docStats := c.repo.GetStats()
	embedStats := c.embeds.Stats()
	semanticStats := c.semantic.Stats()

	hitRate := 0.0
	if total := semanticStats.Hits + semanticStats.Misses; total > 0 {
		hitRate = float64(semanticStats.Hits) / float64(total)
	}

	health, healthErr := c.backend.GetHealth(ctx)
	breakerState := "unknown"
	healthy := healthErr == nil
	if healthErr == nil {
		breakerState = health.CircuitBreakerState
		healthy = health.Status == vectorstore.HealthHealthy
	}

	return Stats{
		Documents:             docStats.Documents,
		Terms:                 docStats.Terms,
		EmbedCacheSize:        embedStats.Size,
		EmbedCacheCapacity:    embedStats.Capacity,
		SemanticCacheHits:     semanticStats.Hits,
		SemanticCacheMisses:   semanticStats.Misses,
		SemanticCacheHitRate:  hitRate,
		SemanticCacheSize:     semanticStats.Size,
		BackendCircuitBreaker: breakerState,
		BackendHealthy:        healthy,
	}, nil
}

// StartCleanupSweep runs cleanup_expired on every project's semantic
// cache every interval, until ctx is cancelled. Run this in a
// background goroutine from the composition root.
func (m *Manager) StartCleanupSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepExpired()
		}
	}
}

func (m *Manager) sweepExpired() {
	m.mu.RLock()
	snapshot := make([]*components, 0, len(m.comps))
	for _, c := range m.comps {
		snapshot = append(snapshot, c)
	}
	m.mu.RUnlock()

	for _, c := range snapshot {
		removed := c.semantic.CleanupExpired()
		if removed > 0 {
			m.logger.Debug("swept expired semantic cache entries", map[string]interface{}{"removed": removed})
		}
	}
}
