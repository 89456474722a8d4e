package search

import (
	"testing"

	"github.com/jalfaro/engramd/internal/store"
)

func TestCosineRankDropsBelowFloor(t *testing.T) {
	query := []float32{1, 0}
	candidates := []store.Observation{
		{ID: 1, Embedding: []float32{1, 0}},   // similarity 1.0
		{ID: 2, Embedding: []float32{0, 1}},   // similarity 0.0, below floor
		{ID: 3, Embedding: []float32{0.9, 0.1}}, // similarity high, kept
	}

	ranked := cosineRank(query, candidates, 10)
	if len(ranked) != 2 {
		t.Fatalf("expected 2 results above the similarity floor, got %d", len(ranked))
	}
	if ranked[0].ID != 1 {
		t.Fatalf("expected id 1 ranked first, got %d", ranked[0].ID)
	}
}

func TestCosineRankEmptyCandidates(t *testing.T) {
	ranked := cosineRank([]float32{1, 0}, nil, 10)
	if len(ranked) != 0 {
		t.Fatalf("expected no results for empty candidate set, got %d", len(ranked))
	}
}

// TestCosineSimilarityDimensionMismatch covers the boundary case of a
// stored embedding whose dimension no longer matches the query vector
// (e.g. after an embedding-model change) — it must be skipped, not panic.
func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	if got := cosineSimilarity([]float32{1, 0, 0}, []float32{1, 0}); got != 0 {
		t.Fatalf("expected 0 for mismatched dimensions, got %v", got)
	}
}
