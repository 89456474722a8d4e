// Package progressive implements the progressive context builder (spec
// C7): it assembles observations and summaries into a token-budgeted
// payload, prioritized by a weighted relevance score.
package progressive

import (
	"sort"
	"strings"
	"time"

	"github.com/jalfaro/engramd/internal/store"
)

// Weights are the spec §4.7 relevance-score blend: 0.4 recency + 0.3 type
// importance + 0.2 session affinity + 0.1 token efficiency.
const (
	weightRecency         = 0.4
	weightTypeImportance  = 0.3
	weightSessionAffinity = 0.2
	weightTokenEfficiency = 0.1
)

// typeWeight assigns each closed observation type its importance bucket
// (spec §4.7, exact table); an unrecognized type falls back to 0.3.
var typeWeight = map[string]float64{
	store.ObsDecision: 1.0,
	store.ObsBugfix:   0.9,
	store.ObsFeature:  0.8,
	store.ObsRefactor: 0.6,
	store.ObsDiscover: 0.5,
	store.ObsChange:   0.4,
}

const unknownTypeWeight = 0.3

func typeImportance(t string) float64 {
	if w, ok := typeWeight[t]; ok {
		return w
	}
	return unknownTypeWeight
}

// recencyBuckets are the exact spec §4.7 thresholds: age -> score. The
// first bucket whose upper bound still contains the observation's age
// applies; anything older falls to the final 0.2 bucket.
var recencyBuckets = []struct {
	maxAge time.Duration
	score  float64
}{
	{24 * time.Hour, 1.0},
	{48 * time.Hour, 0.8},
	{168 * time.Hour, 0.5},
}

func recencyScore(createdAt string, now time.Time) float64 {
	t, err := time.Parse("2006-01-02T15:04:05Z", createdAt)
	if err != nil {
		return 0.2
	}
	age := now.Sub(t)
	for _, b := range recencyBuckets {
		if age < b.maxAge {
			return b.score
		}
	}
	return 0.2
}

// tokenEfficiency is 1.0 at <=10 tokens, falling linearly to 0.2 at >=200
// tokens (spec §4.7, exact formula).
func tokenEfficiency(o store.ObservationIndexEntry) float64 {
	switch {
	case o.TokenCount <= 10:
		return 1.0
	case o.TokenCount >= 200:
		return 0.2
	default:
		frac := float64(o.TokenCount-10) / float64(200-10)
		return 1.0 - frac*(1.0-0.2)
	}
}

// sessionAffinity is 1.0 when the entry's session matches the current
// session, 0.3 when it's known to differ, 0.5 when no current session is
// known (spec §4.7, exact values).
func sessionAffinity(o store.ObservationIndexEntry, currentSessionID string) float64 {
	if currentSessionID == "" {
		return 0.5
	}
	if o.SessionID == currentSessionID {
		return 1.0
	}
	return 0.3
}

// score computes the spec §4.7 weighted relevance score for one candidate.
func score(o store.ObservationIndexEntry, currentSessionID string, now time.Time) float64 {
	return weightRecency*recencyScore(o.CreatedAt, now) +
		weightTypeImportance*typeImportance(o.Type) +
		weightSessionAffinity*sessionAffinity(o, currentSessionID) +
		weightTokenEfficiency*tokenEfficiency(o)
}

// Payload is the assembled progressive-context result: what fit inside
// the token budget, what order it was prioritized in, and what was left
// out.
type Payload struct {
	Summaries        []store.SessionSummary         `json:"summaries"`
	Observations     []store.ObservationIndexEntry  `json:"observations"`
	TokensUsed        int                            `json:"tokensUsed"`
	TokenBudget       int                            `json:"tokenBudget"`
	ObservationsOmitted int                          `json:"observationsOmitted"`
}

// Build assembles a token-budgeted context payload (spec §4.7): session
// summaries first (they're the cheapest, highest-value signal), then
// observations ranked by weighted relevance until the budget is spent.
// Ties break by most-recent-first.
func Build(summaries []store.SessionSummary, observations []store.ObservationIndexEntry, currentSessionID string, tokenBudget int, now time.Time) Payload {
	budget := tokenBudget
	payload := Payload{TokenBudget: tokenBudget}

	for _, s := range summaries {
		if s.TokenCount > budget {
			continue
		}
		payload.Summaries = append(payload.Summaries, s)
		payload.TokensUsed += s.TokenCount
		budget -= s.TokenCount
	}

	ranked := make([]store.ObservationIndexEntry, len(observations))
	copy(ranked, observations)
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := score(ranked[i], currentSessionID, now), score(ranked[j], currentSessionID, now)
		if si != sj {
			return si > sj
		}
		return ranked[i].CreatedAt > ranked[j].CreatedAt
	})

	for _, o := range ranked {
		cost := o.TokenCount
		if cost <= 0 {
			cost = estimateTokens(o.Narrative)
		}
		if cost > budget {
			payload.ObservationsOmitted++
			continue
		}
		payload.Observations = append(payload.Observations, o)
		payload.TokensUsed += cost
		budget -= cost
	}

	return payload
}

// estimateTokens is a crude fallback for observations persisted before a
// token count was recorded — roughly 4 characters per token, with a floor
// of 1.
func estimateTokens(text string) int {
	n := len(strings.TrimSpace(text)) / 4
	if n < 1 {
		n = 1
	}
	return n
}
