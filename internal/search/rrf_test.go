package search

import (
	"testing"

	"github.com/jalfaro/engramd/internal/store"
)

// TestRRFFairness covers invariant 8 (spec §8): a document in exactly one
// list scores 1/(60+rank); in both lists, its score is the sum.
func TestRRFFairness(t *testing.T) {
	onlyInA := store.ObservationIndexEntry{ID: 1}
	inBoth := store.ObservationIndexEntry{ID: 2}

	lists := map[string][]store.ObservationIndexEntry{
		"a": {onlyInA, inBoth},
		"b": {inBoth},
	}

	scores := fuse(lists)

	wantOnlyInA := 1.0 / (rrfK + 1)
	if got := scores[1]; got != wantOnlyInA {
		t.Fatalf("doc only in list a: got %v, want %v", got, wantOnlyInA)
	}

	wantInBoth := 1.0/(rrfK+2) + 1.0/(rrfK+1)
	if got := scores[2]; got != wantInBoth {
		t.Fatalf("doc in both lists: got %v, want %v", got, wantInBoth)
	}
}
