package search

import (
	"context"
	"errors"
	"testing"

	"github.com/jalfaro/engramd/internal/ai"
	"github.com/jalfaro/engramd/internal/store"
)

type failingReranker struct{}

func (failingReranker) Rerank(ctx context.Context, query string, candidates []ai.RerankCandidate, limit int) ([]int, error) {
	return nil, errors.New("boom")
}

// TestLLMRerankFallsBackOnError covers spec §7: "Reranker failure ->
// return pre-rerank order."
func TestLLMRerankFallsBackOnError(t *testing.T) {
	results := []Result{
		{Observation: store.ObservationIndexEntry{ID: 1, Importance: 1}, Score: 0.1},
		{Observation: store.ObservationIndexEntry{ID: 2, Importance: 5}, Score: 0.1},
	}

	out := llmRerank(context.Background(), failingReranker{}, "q", results, 10)
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	// Heuristic fallback should rank the higher-importance doc first given
	// equal base scores.
	if out[0].Observation.ID != 2 {
		t.Fatalf("expected id 2 first after heuristic fallback, got %d", out[0].Observation.ID)
	}
}

// TestLLMRerankSingleResultSkipsRerank covers the boundary case: a single
// candidate has nothing to reorder against.
func TestLLMRerankSingleResultSkipsRerank(t *testing.T) {
	results := []Result{{Observation: store.ObservationIndexEntry{ID: 1}}}
	out := llmRerank(context.Background(), nil, "q", results, 10)
	if len(out) != 1 || out[0].Observation.ID != 1 {
		t.Fatalf("expected the single result unchanged, got %+v", out)
	}
}
