package rerank

import (
	"github.com/PerformanceSuite/knowledgebeast/pkg/vecmath"
)

// ScoredEmbedding pairs a candidate with the embedding vector needed to
// compute pairwise similarity during MMR/diversity selection.
type ScoredEmbedding struct {
	Candidate
	Embedding []float32
}

// MMR re-ranks candidates (already sorted by relevance, most relevant
// first) using Maximal Marginal Relevance: starting from the most
// relevant candidate, iteratively selects the remaining candidate
// maximizing
//
//	diversity*relevance - (1-diversity)*max_similarity_to_already_selected
//
// diversity ∈ [0,1]; 1.0 is pure relevance, 0.0 is pure diversity.
// Stops once topK candidates are selected or the input is exhausted.
func MMR(candidates []ScoredEmbedding, diversity float64, topK int) []Candidate {
	if len(candidates) == 0 || topK <= 0 {
		return nil
	}

	selected := make([]ScoredEmbedding, 0, topK)
	remaining := append([]ScoredEmbedding(nil), candidates...)

	// The first pick is always the most relevant candidate.
	selected = append(selected, remaining[0])
	remaining = remaining[1:]

	for len(selected) < topK && len(remaining) > 0 {
		bestIdx := -1
		bestScore := -1.0

		for i, cand := range remaining {
			maxSim := 0.0
			for _, sel := range selected {
				sim := float64(vecmath.Cosine(cand.Embedding, sel.Embedding))
				if sim > maxSim {
					maxSim = sim
				}
			}
			score := diversity*cand.Score - (1-diversity)*maxSim
			if bestIdx == -1 || score > bestScore {
				bestIdx = i
				bestScore = score
			}
		}

		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	out := make([]Candidate, len(selected))
	for i, s := range selected {
		out[i] = s.Candidate
	}
	return out
}

// Diversity filters candidates (already sorted by relevance) to those
// whose pairwise cosine similarity to every already-selected candidate
// is strictly below threshold. Iterates in rank order and stops once
// topK candidates are selected.
func Diversity(candidates []ScoredEmbedding, threshold float64, topK int) []Candidate {
	if len(candidates) == 0 || topK <= 0 {
		return nil
	}

	selected := make([]ScoredEmbedding, 0, topK)
	for _, cand := range candidates {
		if len(selected) >= topK {
			break
		}
		tooSimilar := false
		for _, sel := range selected {
			if float64(vecmath.Cosine(cand.Embedding, sel.Embedding)) >= threshold {
				tooSimilar = true
				break
			}
		}
		if !tooSimilar {
			selected = append(selected, cand)
		}
	}

	out := make([]Candidate, len(selected))
	for i, s := range selected {
		out[i] = s.Candidate
	}
	return out
}
