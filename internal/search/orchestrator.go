package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jalfaro/engramd/internal/ai"
	"github.com/jalfaro/engramd/internal/store"
)

// storeAPI is the slice of *store.Store the orchestrator depends on,
// narrowed for testability.
type storeAPI interface {
	SearchFTS(query, project string, limit int) ([]store.FTSHit, error)
	GetIndex(project string, limit int, includeSuperseded bool) ([]store.ObservationIndexEntry, error)
	ObservationsWithEmbeddings(project string, limit int) ([]store.Observation, error)
	SearchEntitiesFTS(term string, limit int) ([]store.Entity, error)
	ObservationsLinkedToEntities(entityIDs []string) ([]store.ObservationIndexEntry, error)
	RelationsTouching(entityID string) ([]store.EntityRelation, error)
}

// Orchestrator is C6: it assembles candidates from one or more sources,
// fuses them, filters, optionally augments with the entity graph, and
// reranks (spec §4.6).
type Orchestrator struct {
	store    storeAPI
	embedder ai.Embedder
	reranker ai.Reranker
	vector   vectorIndex
	log      *zap.Logger
}

// New builds an Orchestrator. vectorExtensionAvailable selects the vector
// search dispatch target (spec §4.2/§4.6): native KNN when true and the
// store supports it, the in-process cosine fallback otherwise.
func New(st storeAPI, embedder ai.Embedder, reranker ai.Reranker, vectorExtensionAvailable bool, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		store:    st,
		embedder: embedder,
		reranker: reranker,
		vector:   newVectorIndex(st, vectorExtensionAvailable),
		log:      log,
	}
}

// Search runs the full spec §4.6 pipeline for one query.
func (o *Orchestrator) Search(ctx context.Context, q Query) ([]Result, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.GraphDepth <= 0 {
		q.GraphDepth = 2
	}
	if q.Strategy == "" {
		q.Strategy = StrategyHybrid
	}

	lists := map[string][]store.ObservationIndexEntry{}

	if q.Strategy == StrategyFilterOnly || q.Strategy == StrategyHybrid {
		if q.Text != "" {
			hits, err := o.store.SearchFTS(q.Text, q.Project, q.Limit*3)
			if err != nil {
				return nil, fmt.Errorf("search: fts: %w", err)
			}
			entries := make([]store.ObservationIndexEntry, len(hits))
			for i, h := range hits {
				entries[i] = h.Observation
			}
			lists["fts"] = entries
		} else {
			entries, err := o.store.GetIndex(q.Project, q.Limit*3, q.IncludeSuperseded)
			if err != nil {
				return nil, fmt.Errorf("search: index: %w", err)
			}
			lists["recency"] = entries
		}
	}

	if q.Strategy == StrategySemantic || q.Strategy == StrategyHybrid {
		if q.Text != "" && o.embedder != nil && o.embedder.Dimensions() > 0 {
			queryVec, err := o.embedder.Embed(ctx, q.Text)
			if err != nil {
				o.log.Info("search: query embedding failed, continuing without semantic source", zap.Error(err))
			} else if queryVec != nil {
				entries, err := o.vector.search(ctx, q.Project, queryVec, ftsCandidateIDs(lists["fts"]), q.Limit)
				if err != nil {
					return nil, fmt.Errorf("search: vector: %w", err)
				}
				lists["vector"] = entries
			}
		}
	}

	if q.UseEntityGraph && q.Text != "" {
		entries, err := entityGraphCandidates(o.store, o.store, q.Text, q.GraphDepth)
		if err != nil {
			o.log.Info("search: entity graph augmentation failed, continuing", zap.Error(err))
		} else if len(entries) > 0 {
			lists["project"] = entries
		}
	}

	fused := fuse(lists)

	byID := map[int64]store.ObservationIndexEntry{}
	for _, list := range lists {
		for _, entry := range list {
			byID[entry.ID] = entry
		}
	}

	sourceOf := map[int64]string{}
	for name, list := range lists {
		for _, entry := range list {
			if _, already := sourceOf[entry.ID]; !already {
				sourceOf[entry.ID] = name
			}
		}
	}

	merged := make([]store.ObservationIndexEntry, 0, len(byID))
	for id := range byID {
		merged = append(merged, byID[id])
	}
	filtered := applyFilters(q, merged)

	results := make([]Result, 0, len(filtered))
	for _, entry := range filtered {
		results = append(results, Result{
			Observation: entry,
			Score:       fused[entry.ID],
			Source:      sourceOf[entry.ID],
		})
	}

	results = llmRerank(ctx, o.reranker, q.Text, results, q.Limit)
	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

// ftsCandidateIDs extracts the ids a native KNN query would pre-filter to
// (spec §4.6); unused by the cosine fallback.
func ftsCandidateIDs(entries []store.ObservationIndexEntry) []int64 {
	if len(entries) == 0 {
		return nil
	}
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}
