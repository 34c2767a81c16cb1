package rerank

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func lengthScorer(_ context.Context, _ string, documents []string) ([]float64, error) {
	scores := make([]float64, len(documents))
	for i, d := range documents {
		scores[i] = float64(len(d))
	}
	return scores, nil
}

func TestRerank_EmptyInputReturnsNil(t *testing.T) {
	r := New(lengthScorer, Config{}, nil, nil)
	out, err := r.Rerank(context.Background(), "q", nil, 5)
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestRerank_RanksDescendingByScore(t *testing.T) {
	r := New(lengthScorer, Config{BatchSize: 10}, nil, nil)
	candidates := []Candidate{
		{DocID: "short", Content: "hi"},
		{DocID: "long", Content: "a much longer document body"},
		{DocID: "mid", Content: "medium length text"},
	}

	out, err := r.Rerank(context.Background(), "q", candidates, 3)
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Equal(t, "long", out[0].DocID)
	require.Equal(t, 1, out[0].Rank)
	require.False(t, out[0].Fallback)
}

func TestRerank_RespectsTopK(t *testing.T) {
	r := New(lengthScorer, Config{BatchSize: 10}, nil, nil)
	candidates := []Candidate{
		{DocID: "a", Content: "a"}, {DocID: "bb", Content: "bb"}, {DocID: "ccc", Content: "ccc"},
	}
	out, err := r.Rerank(context.Background(), "q", candidates, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestRerank_BatchesAtConfiguredSize(t *testing.T) {
	var maxBatch int
	counting := func(_ context.Context, _ string, documents []string) ([]float64, error) {
		if len(documents) > maxBatch {
			maxBatch = len(documents)
		}
		scores := make([]float64, len(documents))
		for i := range documents {
			scores[i] = float64(i)
		}
		return scores, nil
	}

	r := New(counting, Config{BatchSize: 2}, nil, nil)
	candidates := make([]Candidate, 5)
	for i := range candidates {
		candidates[i] = Candidate{DocID: string(rune('a' + i)), Content: "x"}
	}

	_, err := r.Rerank(context.Background(), "q", candidates, 5)
	require.NoError(t, err)
	require.LessOrEqual(t, maxBatch, 2)
}

func TestRerank_FallsBackToInputOrderOnTimeout(t *testing.T) {
	slow := func(ctx context.Context, _ string, documents []string) ([]float64, error) {
		select {
		case <-time.After(50 * time.Millisecond):
			return make([]float64, len(documents)), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r := New(slow, Config{BatchSize: 10, TimeoutPerBatch: 5 * time.Millisecond}, nil, nil)
	candidates := []Candidate{
		{DocID: "a", Content: "x", Score: 0.9},
		{DocID: "b", Content: "y", Score: 0.5},
	}

	out, err := r.Rerank(context.Background(), "q", candidates, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.True(t, out[0].Fallback)
	require.Equal(t, "a", out[0].DocID) // input score order preserved
}

func TestNormalizeScores_IdenticalScoresMapToOne(t *testing.T) {
	out := normalizeScores([]float64{3, 3, 3})
	for _, v := range out {
		require.Equal(t, 1.0, v)
	}
}

func TestNormalizeScores_MinMaxScalesToUnitInterval(t *testing.T) {
	out := normalizeScores([]float64{0, 5, 10})
	require.Equal(t, []float64{0, 0.5, 1}, out)
}
