package search

import (
	"context"
	"sort"

	"github.com/jalfaro/engramd/internal/ai"
)

// heuristicRerank is the always-available scorer (spec §4.6): a weighted
// blend of the fused RRF score and importance, used when no Reranker is
// configured or the LLM-backed one fails.
func heuristicRerank(results []Result) []Result {
	sort.SliceStable(results, func(i, j int) bool {
		si := results[i].Score + float64(results[i].Observation.Importance)*0.05
		sj := results[j].Score + float64(results[j].Observation.Importance)*0.05
		return si > sj
	})
	return results
}

// llmRerank delegates final ordering to an ai.Reranker, falling back to the
// heuristic order on any error (spec §7: reranker failures degrade, never
// fail the search).
func llmRerank(ctx context.Context, reranker ai.Reranker, query string, results []Result, limit int) []Result {
	if reranker == nil || len(results) <= 1 {
		return heuristicRerank(results)
	}

	candidates := make([]ai.RerankCandidate, len(results))
	for i, r := range results {
		candidates[i] = ai.RerankCandidate{
			ID:        r.Observation.ID,
			Title:     r.Observation.Title,
			Narrative: r.Observation.Narrative,
			CreatedAt: r.Observation.CreatedAt,
			Importance: r.Observation.Importance,
		}
	}

	order, err := reranker.Rerank(ctx, query, candidates, limit)
	if err != nil || len(order) == 0 {
		return heuristicRerank(results)
	}

	used := make(map[int]bool, len(results))
	out := make([]Result, 0, len(results))
	for _, idx := range order {
		if idx >= 0 && idx < len(results) && !used[idx] {
			used[idx] = true
			out = append(out, results[idx])
		}
	}
	for i, r := range results {
		if !used[i] {
			out = append(out, r)
		}
	}
	return out
}
