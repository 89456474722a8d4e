package search

import (
	"regexp"
	"strings"

	"github.com/jalfaro/engramd/internal/graph"
	"github.com/jalfaro/engramd/internal/store"
)

var wordRe = regexp.MustCompile(`[A-Za-z0-9_./-]+`)

// queryTokens tokenizes a query into individual words plus adjacent-word
// bigrams, per spec §4.6's entity-graph augmentation step: entity names are
// often multi-word ("go modules"), so single-word matching alone misses them.
func queryTokens(text string) []string {
	words := wordRe.FindAllString(strings.ToLower(text), -1)
	tokens := append([]string{}, words...)
	for i := 0; i+1 < len(words); i++ {
		tokens = append(tokens, words[i]+" "+words[i+1])
	}
	return tokens
}

type entityLookup interface {
	SearchEntitiesFTS(term string, limit int) ([]store.Entity, error)
	ObservationsLinkedToEntities(entityIDs []string) ([]store.ObservationIndexEntry, error)
}

type relationLookup interface {
	RelationsTouching(entityID string) ([]store.EntityRelation, error)
}

// entityGraphCandidates resolves a query's tokens to matching entities,
// expands each via a bounded graph traversal, and returns the observations
// linked to the resulting entity set. The orchestrator fuses them as an
// additional retrieval source labeled "project" (spec §4.6).
func entityGraphCandidates(st entityLookup, rel relationLookup, query string, depth int) ([]store.ObservationIndexEntry, error) {
	entityIDs := map[string]bool{}
	for _, tok := range queryTokens(query) {
		matches, err := st.SearchEntitiesFTS(tok, 5)
		if err != nil {
			return nil, err
		}
		for _, e := range matches {
			entityIDs[e.ID] = true
		}
	}
	if len(entityIDs) == 0 {
		return nil, nil
	}

	seeds := make([]string, 0, len(entityIDs))
	for id := range entityIDs {
		seeds = append(seeds, id)
	}
	for _, seed := range seeds {
		nodes, err := graph.Traverse(rel, seed, depth)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			entityIDs[n.EntityID] = true
		}
	}

	ids := make([]string, 0, len(entityIDs))
	for id := range entityIDs {
		ids = append(ids, id)
	}
	return st.ObservationsLinkedToEntities(ids)
}
