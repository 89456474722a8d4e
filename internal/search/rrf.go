package search

import "github.com/jalfaro/engramd/internal/store"

// rrfK is the reciprocal-rank-fusion smoothing constant (spec §4.6: "RRF,
// k=60") — standard value, keeps a single lead-ranked source from
// completely dominating a merge against sources that barely found the hit.
const rrfK = 60.0

// fuse merges several ranked candidate lists (one per retrieval source)
// into a single score per observation id, using reciprocal rank fusion:
// score(doc) = sum over lists containing doc of 1/(k + rank).
func fuse(lists map[string][]store.ObservationIndexEntry) map[int64]float64 {
	scores := make(map[int64]float64)
	for _, list := range lists {
		for rank, entry := range list {
			scores[entry.ID] += 1.0 / (rrfK + float64(rank+1))
		}
	}
	return scores
}
