package search

import (
	"reflect"
	"testing"

	"github.com/jalfaro/engramd/internal/store"
)

func TestQueryTokensIncludesWordsAndBigrams(t *testing.T) {
	got := queryTokens("Go Modules")
	want := []string{"go", "modules", "go modules"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("queryTokens = %v, want %v", got, want)
	}
}

func TestQueryTokensSingleWordHasNoBigram(t *testing.T) {
	got := queryTokens("widget")
	want := []string{"widget"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("queryTokens = %v, want %v", got, want)
	}
}

type fakeEntityLookup struct {
	matches map[string][]store.Entity
	linked  []store.ObservationIndexEntry
}

func (f *fakeEntityLookup) SearchEntitiesFTS(term string, limit int) ([]store.Entity, error) {
	return f.matches[term], nil
}

func (f *fakeEntityLookup) ObservationsLinkedToEntities(entityIDs []string) ([]store.ObservationIndexEntry, error) {
	return f.linked, nil
}

type fakeRelationLookup struct {
	relations map[string][]store.EntityRelation
}

func (f *fakeRelationLookup) RelationsTouching(entityID string) ([]store.EntityRelation, error) {
	return f.relations[entityID], nil
}

func TestEntityGraphCandidatesExpandsViaRelations(t *testing.T) {
	el := &fakeEntityLookup{
		matches: map[string][]store.Entity{"widget": {{ID: "e1", Name: "widget"}}},
		linked:  []store.ObservationIndexEntry{{ID: 42, Title: "linked"}},
	}
	rl := &fakeRelationLookup{relations: map[string][]store.EntityRelation{
		"e1": {{ID: "r1", SourceID: "e1", TargetID: "e2", Relationship: "uses"}},
	}}

	got, err := entityGraphCandidates(el, rl, "widget", 2)
	if err != nil {
		t.Fatalf("entityGraphCandidates: %v", err)
	}
	if len(got) != 1 || got[0].ID != 42 {
		t.Fatalf("expected the one linked observation, got %+v", got)
	}
}

func TestEntityGraphCandidatesNoMatchesReturnsNil(t *testing.T) {
	el := &fakeEntityLookup{matches: map[string][]store.Entity{}}
	rl := &fakeRelationLookup{}

	got, err := entityGraphCandidates(el, rl, "nothing matches this", 2)
	if err != nil {
		t.Fatalf("entityGraphCandidates: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil candidates when no entity matches, got %+v", got)
	}
}
