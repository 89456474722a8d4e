// Package graph implements entity-relationship traversal (spec C9): a
// depth-bounded, cycle-safe breadth-first walk over the entity_relations
// edges recorded by the store.
package graph

import "github.com/jalfaro/engramd/internal/store"

// MaxDepth is the hard cap on traversal depth (spec §4.9): deeper
// relationships are never surfaced, regardless of caller-requested depth.
const MaxDepth = 2

// relationFetcher is the slice of *store.Store this package needs —
// narrowed to keep traversal logic testable without a live database.
type relationFetcher interface {
	RelationsTouching(entityID string) ([]store.EntityRelation, error)
}

// Node is one entity reached during a traversal, annotated with how far it
// sits from the seed and the edge that reached it.
type Node struct {
	EntityID     string
	Depth        int
	ViaRelation  string
	ViaEntityID  string
}

// Traverse performs a bidirectional BFS from seed out to depth hops
// (clamped to MaxDepth), visiting each entity at most once — cycles in the
// relation graph never cause repeated work or infinite loops (spec §4.9,
// §8 invariant: "graph traversal terminates").
func Traverse(f relationFetcher, seed string, depth int) ([]Node, error) {
	if depth > MaxDepth {
		depth = MaxDepth
	}
	if depth < 0 {
		depth = 0
	}

	visited := map[string]bool{seed: true}
	frontier := []Node{{EntityID: seed, Depth: 0}}
	var out []Node

	for d := 0; d < depth; d++ {
		var next []Node
		for _, n := range frontier {
			relations, err := f.RelationsTouching(n.EntityID)
			if err != nil {
				return nil, err
			}
			for _, r := range relations {
				other := r.TargetID
				if other == n.EntityID {
					other = r.SourceID
				}
				if visited[other] {
					continue
				}
				visited[other] = true
				node := Node{EntityID: other, Depth: d + 1, ViaRelation: r.Relationship, ViaEntityID: n.EntityID}
				next = append(next, node)
				out = append(out, node)
			}
		}
		if len(next) == 0 {
			break
		}
		frontier = next
	}
	return out, nil
}
