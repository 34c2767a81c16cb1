package document

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	kberrors "github.com/PerformanceSuite/knowledgebeast/pkg/errors"
)

func TestRepository_AddAndGetDocument(t *testing.T) {
	r := NewRepository()
	r.AddDocument("doc1", Document{Content: "audio video data", Name: "doc1.txt"})

	doc, err := r.GetDocument("doc1")
	require.NoError(t, err)
	require.Equal(t, "audio video data", doc.Content)
	require.Equal(t, "doc1", doc.ID)

	_, err = r.GetDocument("missing")
	require.Error(t, err)
	require.Equal(t, kberrors.NotFound, kberrors.KindOf(err))
}

func TestRepository_GetDocumentsByIDsSkipsMissing(t *testing.T) {
	r := NewRepository()
	r.AddDocument("a", Document{Content: "one"})
	r.AddDocument("b", Document{Content: "two"})

	docs := r.GetDocumentsByIDs([]string{"a", "missing", "b"})
	require.Len(t, docs, 2)
	require.Equal(t, "a", docs[0].ID)
	require.Equal(t, "b", docs[1].ID)
}

func TestRepository_IndexConsistencyWithDocuments(t *testing.T) {
	r := NewRepository()
	r.AddDocument("d1", Document{Content: "audio video data"})
	r.AddDocument("d2", Document{Content: "audio stream"})

	snap := r.GetIndexSnapshot([]string{"audio", "video", "stream", "nonexistent"})
	require.ElementsMatch(t, []string{"d1", "d2"}, snap["audio"])
	require.ElementsMatch(t, []string{"d1"}, snap["video"])
	require.ElementsMatch(t, []string{"d2"}, snap["stream"])
	_, ok := snap["nonexistent"]
	require.False(t, ok)

	stats := r.GetStats()
	require.Equal(t, 2, stats.Documents)
	require.Equal(t, 4, stats.Terms) // audio, video, data, stream
}

func TestRepository_ReplacingDocumentUpdatesIndex(t *testing.T) {
	r := NewRepository()
	r.AddDocument("d1", Document{Content: "audio video"})
	r.AddDocument("d1", Document{Content: "text only"})

	snap := r.GetIndexSnapshot([]string{"audio", "video", "text", "only"})
	require.Empty(t, snap["audio"])
	require.Empty(t, snap["video"])
	require.ElementsMatch(t, []string{"d1"}, snap["text"])
	require.ElementsMatch(t, []string{"d1"}, snap["only"])
}

func TestRepository_RemoveDocumentClearsIndex(t *testing.T) {
	r := NewRepository()
	r.AddDocument("d1", Document{Content: "audio video"})
	r.AddDocument("d2", Document{Content: "audio only"})

	r.RemoveDocument("d1")

	_, err := r.GetDocument("d1")
	require.Error(t, err)

	snap := r.GetIndexSnapshot([]string{"audio", "video"})
	require.ElementsMatch(t, []string{"d2"}, snap["audio"])
	require.Empty(t, snap["video"])
}

func TestRepository_InsertionOrderBreaksTies(t *testing.T) {
	r := NewRepository()
	r.AddDocument("first", Document{Content: "x"})
	r.AddDocument("second", Document{Content: "x"})
	r.AddDocument("third", Document{Content: "x"})

	require.Equal(t, 0, r.InsertionOrder("first"))
	require.Equal(t, 1, r.InsertionOrder("second"))
	require.Equal(t, 2, r.InsertionOrder("third"))
	require.Equal(t, -1, r.InsertionOrder("nope"))
}

// TestRepository_SnapshotIsolation reproduces the snapshot-isolation
// scenario: 10 pre-existing documents all contain "audio video data".
// One goroutine takes snapshots for ["audio"] while another
// concurrently adds a new document whose content also contains "audio".
// Each snapshot may or may not include the concurrent write, depending on
// when it was taken, but it must only ever name valid doc_ids; a fresh
// snapshot taken after the writer completes must observe it.
func TestRepository_SnapshotIsolation(t *testing.T) {
	r := NewRepository()
	valid := map[string]bool{"doc_new": true}
	for i := 0; i < 10; i++ {
		r.AddDocument(fmt.Sprintf("doc%d", i), Document{Content: "audio video data"})
		valid[fmt.Sprintf("doc%d", i)] = true
	}

	var wg sync.WaitGroup
	snapshots := make([]map[string][]string, 200)

	wg.Add(1)
	go func() {
		defer wg.Done()
		r.AddDocument("doc_new", Document{Content: "audio"})
	}()

	for i := range snapshots {
		snapshots[i] = r.GetIndexSnapshot([]string{"audio"})
	}
	wg.Wait()

	for _, snap := range snapshots {
		for _, id := range snap["audio"] {
			// Every entry observed must have been a valid doc_id at the
			// instant of the snapshot: either one of the original 10, or
			// doc_new if the write had already landed. What must never
			// happen is a snapshot containing a stale or partial entry.
			require.True(t, valid[id], "unexpected doc_id %q in snapshot", id)
		}
	}

	// After the writer finishes, a fresh snapshot must see doc_new.
	final := r.GetIndexSnapshot([]string{"audio"})
	require.Contains(t, final["audio"], "doc_new")
	require.Len(t, final["audio"], 11)
}

func TestRepository_ConcurrentReadsAndWritesStayConsistent(t *testing.T) {
	r := NewRepository()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r.AddDocument(fmt.Sprintf("doc%d", n), Document{Content: fmt.Sprintf("term%d shared", n)})
		}(i)
	}

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap := r.GetIndexSnapshot([]string{"shared"})
			for _, id := range snap["shared"] {
				_, err := r.GetDocument(id)
				require.NoError(t, err)
			}
		}()
	}

	wg.Wait()

	stats := r.GetStats()
	require.Equal(t, 100, stats.Documents)

	final := r.GetIndexSnapshot([]string{"shared"})
	require.Len(t, final["shared"], 100)
}

func TestRepository_RebuildIndex(t *testing.T) {
	r := NewRepository()
	r.AddDocument("d1", Document{Content: "audio video"})
	r.IndexTerm("bogus", "d1")

	r.RebuildIndex()

	snap := r.GetIndexSnapshot([]string{"audio", "video", "bogus"})
	require.ElementsMatch(t, []string{"d1"}, snap["audio"])
	require.ElementsMatch(t, []string{"d1"}, snap["video"])
	_, ok := snap["bogus"]
	require.False(t, ok)
}
