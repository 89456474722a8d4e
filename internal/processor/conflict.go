package processor

import (
	"strings"

	"go.uber.org/zap"
)

// detectConflict compares the newly-persisted observation against the other
// recent, non-superseded observations in the same session and either
// supersedes the closest match (high band) or logs the near-match for
// visibility only (low band) — spec §9 open question, resolved in
// SPEC_FULL.md §9: Jaccard similarity over {narrative word-shingles,
// concepts, files-modified}, scoped to the producing session so unrelated
// sessions never auto-supersede each other's history.
func (p *Processor) detectConflict(sessionID string, newObsID int64) error {
	newObs, err := p.store.GetObservation(newObsID)
	if err != nil {
		return err
	}

	index, err := p.store.ObservationsInSession(sessionID, 50)
	if err != nil {
		return err
	}

	newShingles := shingleSet(newObs.Narrative, newObs.Concepts, newObs.FilesModified)

	var bestID int64
	var bestScore float64
	for _, candidate := range index {
		if candidate.ID == newObsID || candidate.SessionID != sessionID {
			continue
		}
		candidateShingles := shingleSet(candidate.Narrative, candidate.Concepts, candidate.FilesModified)
		score := jaccard(newShingles, candidateShingles)
		if score > bestScore {
			bestScore, bestID = score, candidate.ID
		}
	}

	switch {
	case bestScore >= p.highBand:
		return p.store.Supersede(bestID, newObsID)
	case bestScore >= p.lowBand:
		p.log.Info("processor: possible conflict detected",
			zap.Int64("oldObservationId", bestID),
			zap.Int64("newObservationId", newObsID),
			zap.Float64("score", bestScore),
		)
	}
	return nil
}

// shingleSet builds a bag of word bigrams from narrative text plus the raw
// concept and file-path tokens, lowercased — the unit Jaccard similarity is
// computed over.
func shingleSet(narrative string, concepts, files []string) map[string]struct{} {
	set := make(map[string]struct{})
	words := strings.Fields(strings.ToLower(narrative))
	for i := 0; i+1 < len(words); i++ {
		set[words[i]+" "+words[i+1]] = struct{}{}
	}
	for _, c := range concepts {
		set["concept:"+strings.ToLower(c)] = struct{}{}
	}
	for _, f := range files {
		set["file:"+strings.ToLower(f)] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
