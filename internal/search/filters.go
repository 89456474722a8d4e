package search

import (
	"strings"

	"github.com/jalfaro/engramd/internal/store"
)

// applyFilters implements the spec §4.6 post-filter set: type membership,
// importance bounds, date bounds, and concepts/files matching — OR within
// a field, AND across fields. Supersession exclusion happens earlier, at
// the store query layer, since superseded rows never leave the database
// read unless explicitly requested.
func applyFilters(q Query, candidates []store.ObservationIndexEntry) []store.ObservationIndexEntry {
	out := candidates[:0:0]
	for _, c := range candidates {
		if !matchesTypes(q.Types, c.Type) {
			continue
		}
		if q.MinImportance > 0 && c.Importance < q.MinImportance {
			continue
		}
		if q.MaxImportance > 0 && c.Importance > q.MaxImportance {
			continue
		}
		if q.After != "" && c.CreatedAt < q.After {
			continue
		}
		if q.Before != "" && c.CreatedAt > q.Before {
			continue
		}
		if len(q.Concepts) > 0 && !matchesAny(q.Concepts, c.Concepts) {
			continue
		}
		if len(q.Files) > 0 && !matchesAnySubstring(q.Files, c.FilesRead) && !matchesAnySubstring(q.Files, c.FilesModified) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func matchesTypes(want []string, got string) bool {
	if len(want) == 0 {
		return true
	}
	for _, t := range want {
		if t == got {
			return true
		}
	}
	return false
}

func matchesAny(want, got []string) bool {
	for _, w := range want {
		for _, g := range got {
			if strings.EqualFold(w, g) {
				return true
			}
		}
	}
	return false
}

func matchesAnySubstring(want, got []string) bool {
	for _, w := range want {
		for _, g := range got {
			if strings.Contains(strings.ToLower(g), strings.ToLower(w)) {
				return true
			}
		}
	}
	return false
}
