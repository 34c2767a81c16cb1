package rerank

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMMR_PureRelevanceKeepsInputOrder(t *testing.T) {
	candidates := []ScoredEmbedding{
		{Candidate: Candidate{DocID: "a", Score: 0.9}, Embedding: []float32{1, 0}},
		{Candidate: Candidate{DocID: "b", Score: 0.8}, Embedding: []float32{1, 0}},
		{Candidate: Candidate{DocID: "c", Score: 0.7}, Embedding: []float32{0, 1}},
	}

	out := MMR(candidates, 1.0, 3)
	require.Equal(t, []string{"a", "b", "c"}, ids(out))
}

func TestMMR_PureDiversityPrefersDissimilarCandidates(t *testing.T) {
	candidates := []ScoredEmbedding{
		{Candidate: Candidate{DocID: "a", Score: 0.9}, Embedding: []float32{1, 0}},
		{Candidate: Candidate{DocID: "b", Score: 0.85}, Embedding: []float32{1, 0}}, // near-duplicate of a
		{Candidate: Candidate{DocID: "c", Score: 0.5}, Embedding: []float32{0, 1}},  // orthogonal
	}

	out := MMR(candidates, 0.0, 2)
	require.Equal(t, "a", out[0].DocID)
	require.Equal(t, "c", out[1].DocID, "diversity should prefer the dissimilar candidate over the near-duplicate")
}

func TestMMR_StopsAtTopK(t *testing.T) {
	candidates := make([]ScoredEmbedding, 10)
	for i := range candidates {
		candidates[i] = ScoredEmbedding{Candidate: Candidate{DocID: string(rune('a' + i)), Score: float64(10 - i)}, Embedding: []float32{float32(i), 1}}
	}
	out := MMR(candidates, 0.5, 3)
	require.Len(t, out, 3)
}

func TestDiversity_ExcludesSimilarCandidates(t *testing.T) {
	candidates := []ScoredEmbedding{
		{Candidate: Candidate{DocID: "a"}, Embedding: []float32{1, 0}},
		{Candidate: Candidate{DocID: "b"}, Embedding: []float32{0.99, 0.01}}, // very similar to a
		{Candidate: Candidate{DocID: "c"}, Embedding: []float32{0, 1}},
	}

	out := Diversity(candidates, 0.9, 3)
	require.Equal(t, []string{"a", "c"}, ids(out))
}

func TestDiversity_StopsAtTopK(t *testing.T) {
	candidates := []ScoredEmbedding{
		{Candidate: Candidate{DocID: "a"}, Embedding: []float32{1, 0}},
		{Candidate: Candidate{DocID: "b"}, Embedding: []float32{0, 1}},
		{Candidate: Candidate{DocID: "c"}, Embedding: []float32{-1, 0}},
	}
	out := Diversity(candidates, 0.5, 1)
	require.Len(t, out, 1)
}

func ids(candidates []Candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.DocID
	}
	return out
}
