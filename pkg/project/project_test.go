package project

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PerformanceSuite/knowledgebeast/pkg/retrieval"
	"github.com/PerformanceSuite/knowledgebeast/pkg/vectorstore"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	backendFactory := func(p Project) (vectorstore.Backend, error) {
		return vectorstore.NewInMemoryBackend(p.ID), nil
	}
	embedFactory := func(p Project) retrieval.EmbedFunc {
		return func(_ context.Context, text string) ([]float32, error) {
			return []float32{float32(len(text)), 1}, nil
		}
	}
	return New(backendFactory, embedFactory, Config{}, nil, nil, nil)
}

func TestCreateProject_GeneratesIDAndBuildsComponents(t *testing.T) {
	m := testManager(t)
	p, err := m.CreateProject("", "demo", "desc", "model-a", nil)
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)

	got, err := m.GetProject(p.ID)
	require.NoError(t, err)
	require.Equal(t, "demo", got.Name)
}

func TestCreateProject_DuplicateIDFails(t *testing.T) {
	m := testManager(t)
	_, err := m.CreateProject("p1", "demo", "", "model-a", nil)
	require.NoError(t, err)

	_, err = m.CreateProject("p1", "other", "", "model-a", nil)
	require.Error(t, err)
}

func TestUpdateProject_LeavesEmbeddingModelUnchanged(t *testing.T) {
	m := testManager(t)
	p, err := m.CreateProject("p1", "demo", "", "model-a", nil)
	require.NoError(t, err)

	newName := "renamed"
	updated, err := m.UpdateProject(p.ID, &newName, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "renamed", updated.Name)
	require.Equal(t, "model-a", updated.EmbeddingModel)
}

func TestDeleteProject_RemovesFromRegistry(t *testing.T) {
	m := testManager(t)
	p, err := m.CreateProject("p1", "demo", "", "model-a", nil)
	require.NoError(t, err)

	require.NoError(t, m.DeleteProject(p.ID))
	_, err = m.GetProject(p.ID)
	require.Error(t, err)
}

func TestIngestAndQueryProject_KeywordMode(t *testing.T) {
	m := testManager(t)
	p, err := m.CreateProject("p1", "demo", "", "model-a", nil)
	require.NoError(t, err)

	_, err = m.IngestDocument(p.ID, "audio video data", nil)
	require.NoError(t, err)
	_, err = m.IngestDocument(p.ID, "completely unrelated text", nil)
	require.NoError(t, err)

	results, degraded, err := m.QueryProject(context.Background(), p.ID, "audio", retrieval.ModeKeyword, 5, nil, true)
	require.NoError(t, err)
	require.False(t, degraded)
	require.NotEmpty(t, results)
}

func TestQueryProject_UnknownProjectReturnsNotFound(t *testing.T) {
	m := testManager(t)
	_, _, err := m.QueryProject(context.Background(), "nope", "q", retrieval.ModeKeyword, 5, nil, true)
	require.Error(t, err)
}

func TestGetProjectStats_ReportsDocumentsAndBackendHealth(t *testing.T) {
	m := testManager(t)
	p, err := m.CreateProject("p1", "demo", "", "model-a", nil)
	require.NoError(t, err)

	_, err = m.IngestDocument(p.ID, "hello world", nil)
	require.NoError(t, err)

	stats, err := m.GetProjectStats(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Documents)
	require.True(t, stats.BackendHealthy)
}

func TestCleanupAll_ClearsEveryProject(t *testing.T) {
	m := testManager(t)
	_, err := m.CreateProject("p1", "demo", "", "model-a", nil)
	require.NoError(t, err)
	_, err = m.CreateProject("p2", "demo2", "", "model-a", nil)
	require.NoError(t, err)

	m.CleanupAll()
	require.Empty(t, m.ListProjects())
}

func TestIngestDocument_RespectsExplicitDocID(t *testing.T) {
	m := testManager(t)
	p, err := m.CreateProject("p1", "demo", "", "model-a", nil)
	require.NoError(t, err)

	id, err := m.IngestDocument(p.ID, "hello", map[string]string{"doc_id": "fixed-id"})
	require.NoError(t, err)
	require.Equal(t, "fixed-id", id)
}
