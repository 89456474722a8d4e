package search

import (
	"context"
	"fmt"
	"math"

	"github.com/jalfaro/engramd/internal/store"
)

// minCosineSimilarity is the floor below which a candidate is dropped from
// the in-process vector fallback entirely (spec §4.6: "drops below 0.3
// similarity").
const minCosineSimilarity = 0.3

// vectorIndex is C6's dual-dispatch seam for the vector search source
// (spec §4.2/§4.6 "vector search paths"): one implementation drives a
// native KNN query pre-filtered to the FTS candidate set when the ambient
// database has a vector extension loaded; the other computes cosine
// similarity in process against every candidate with a stored embedding.
// Both return the same `{observation, rank}` shape so the orchestrator's
// fusion step never needs to know which path ran.
type vectorIndex interface {
	search(ctx context.Context, project string, queryVec []float32, ftsCandidateIDs []int64, limit int) ([]store.ObservationIndexEntry, error)
}

// nativeVectorStore is the store capability a loaded vector extension
// would provide. No Store shipped in this tree implements it — the
// modernc.org/sqlite driver the store package uses has no sqlite-vec or
// sqlite-vss loadable extension — so newVectorIndex never selects
// nativeVectorIndex against the real store regardless of config.
type nativeVectorStore interface {
	VectorKNN(project string, queryVec []float32, candidateIDs []int64, limit int) ([]store.ObservationIndexEntry, error)
}

// newVectorIndex picks the dispatch target per §4.2: native KNN when the
// config says an extension is available AND the store actually exposes
// VectorKNN, the in-process cosine fallback otherwise. The capability
// check is an ordinary optional-interface assertion, not a build tag —
// VectorExtensionAvailable can be set true ahead of a store that supports
// it without a code change here.
func newVectorIndex(st storeAPI, vectorExtensionAvailable bool) vectorIndex {
	if vectorExtensionAvailable {
		if nv, ok := st.(nativeVectorStore); ok {
			return &nativeVectorIndex{store: nv}
		}
	}
	return &cosineVectorIndex{store: st}
}

// cosineVectorIndex is the fallback path: load up to 10x the requested
// limit candidates with stored embeddings, score them against the query
// vector, and return the top 3x the limit for fusion (spec §4.6).
type cosineVectorIndex struct {
	store storeAPI
}

func (c *cosineVectorIndex) search(ctx context.Context, project string, queryVec []float32, _ []int64, limit int) ([]store.ObservationIndexEntry, error) {
	candidates, err := c.store.ObservationsWithEmbeddings(project, limit*10)
	if err != nil {
		return nil, fmt.Errorf("vector: embeddings: %w", err)
	}
	return cosineRank(queryVec, candidates, limit*3), nil
}

// nativeVectorIndex constrains the KNN query to the FTS candidate ids and
// bounds it at 3x the requested limit (spec §4.6 "pre-filter"). Unreachable
// in this build: see nativeVectorStore.
type nativeVectorIndex struct {
	store nativeVectorStore
}

func (n *nativeVectorIndex) search(ctx context.Context, project string, queryVec []float32, ftsCandidateIDs []int64, limit int) ([]store.ObservationIndexEntry, error) {
	entries, err := n.store.VectorKNN(project, queryVec, ftsCandidateIDs, limit*3)
	if err != nil {
		return nil, fmt.Errorf("vector: native knn: %w", err)
	}
	return entries, nil
}

// cosineRank scores every candidate against the query embedding and
// returns them ranked best-first, dropping anything below the similarity
// floor.
func cosineRank(query []float32, candidates []store.Observation, limit int) []store.ObservationIndexEntry {
	type scored struct {
		entry store.ObservationIndexEntry
		score float64
	}
	var scoredList []scored
	for _, c := range candidates {
		if len(c.Embedding) == 0 {
			continue
		}
		sim := cosineSimilarity(query, c.Embedding)
		if sim < minCosineSimilarity {
			continue
		}
		scoredList = append(scoredList, scored{entry: toIndexEntry(c), score: sim})
	}
	for i := 1; i < len(scoredList); i++ {
		j := i
		for j > 0 && scoredList[j-1].score < scoredList[j].score {
			scoredList[j-1], scoredList[j] = scoredList[j], scoredList[j-1]
			j--
		}
	}
	if limit > 0 && len(scoredList) > limit {
		scoredList = scoredList[:limit]
	}
	out := make([]store.ObservationIndexEntry, len(scoredList))
	for i, s := range scoredList {
		out[i] = s.entry
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

func toIndexEntry(o store.Observation) store.ObservationIndexEntry {
	return store.ObservationIndexEntry{
		ID:            o.ID,
		SessionID:     o.SessionID,
		Type:          o.Type,
		Title:         o.Title,
		Subtitle:      o.Subtitle,
		Narrative:     o.Narrative,
		Concepts:      o.Concepts,
		FilesRead:     o.FilesRead,
		FilesModified: o.FilesModified,
		CreatedAt:     o.CreatedAt,
		TokenCount:    o.TokenCount,
		Importance:    o.Importance,
	}
}
