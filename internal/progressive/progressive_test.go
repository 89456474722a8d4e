package progressive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jalfaro/engramd/internal/store"
)

var refNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func TestRecencyScoreBuckets(t *testing.T) {
	cases := []struct {
		age  time.Duration
		want float64
	}{
		{1 * time.Hour, 1.0},
		{30 * time.Hour, 0.8},
		{100 * time.Hour, 0.5},
		{200 * time.Hour, 0.2},
	}
	for _, c := range cases {
		createdAt := refNow.Add(-c.age).Format("2006-01-02T15:04:05Z")
		require.Equal(t, c.want, recencyScore(createdAt, refNow), "age=%v", c.age)
	}
}

func TestRecencyScoreMalformedTimestamp(t *testing.T) {
	require.Equal(t, 0.2, recencyScore("not-a-timestamp", refNow))
}

func TestTypeImportanceTable(t *testing.T) {
	cases := map[string]float64{
		store.ObsDecision: 1.0,
		store.ObsBugfix:   0.9,
		store.ObsFeature:  0.8,
		store.ObsRefactor: 0.6,
		store.ObsDiscover: 0.5,
		store.ObsChange:   0.4,
		"unrecognized":    0.3,
	}
	for typ, want := range cases {
		require.Equal(t, want, typeImportance(typ), "type=%q", typ)
	}
}

func TestTokenEfficiencyBoundariesAndMidpoint(t *testing.T) {
	require.Equal(t, 1.0, tokenEfficiency(store.ObservationIndexEntry{TokenCount: 10}))
	require.Equal(t, 0.2, tokenEfficiency(store.ObservationIndexEntry{TokenCount: 200}))
	require.Equal(t, 0.2, tokenEfficiency(store.ObservationIndexEntry{TokenCount: 1000}))

	mid := tokenEfficiency(store.ObservationIndexEntry{TokenCount: 105})
	require.Greater(t, mid, 0.2)
	require.Less(t, mid, 1.0)
}

func TestSessionAffinity(t *testing.T) {
	o := store.ObservationIndexEntry{SessionID: "S1"}
	require.Equal(t, 1.0, sessionAffinity(o, "S1"))
	require.Equal(t, 0.3, sessionAffinity(o, "S2"))
	require.Equal(t, 0.5, sessionAffinity(o, ""))
}

// TestBuildRespectsTokenBudget covers spec §4.7: summaries load first, then
// observations in relevance order, stopping once the budget is spent and
// counting what got omitted.
func TestBuildRespectsTokenBudget(t *testing.T) {
	summaries := []store.SessionSummary{{ID: 1, TokenCount: 50}}
	observations := []store.ObservationIndexEntry{
		{ID: 1, Type: store.ObsDecision, SessionID: "S1", CreatedAt: refNow.Format("2006-01-02T15:04:05Z"), TokenCount: 30},
		{ID: 2, Type: store.ObsChange, SessionID: "S2", CreatedAt: refNow.Add(-200 * time.Hour).Format("2006-01-02T15:04:05Z"), TokenCount: 30},
	}

	payload := Build(summaries, observations, "S1", 100, refNow)

	require.Len(t, payload.Summaries, 1)
	require.Len(t, payload.Observations, 1)
	require.Equal(t, int64(1), payload.Observations[0].ID, "expected the higher-relevance observation to win the remaining budget")
	require.Equal(t, 1, payload.ObservationsOmitted)
	require.Equal(t, 80, payload.TokensUsed)
}

func TestBuildSkipsOversizedSummary(t *testing.T) {
	summaries := []store.SessionSummary{{ID: 1, TokenCount: 500}}
	payload := Build(summaries, nil, "", 100, refNow)
	require.Empty(t, payload.Summaries)
	require.Zero(t, payload.TokensUsed)
}

func TestBuildEstimatesTokensWhenMissing(t *testing.T) {
	observations := []store.ObservationIndexEntry{
		{ID: 1, Type: store.ObsDecision, CreatedAt: refNow.Format("2006-01-02T15:04:05Z"), Narrative: "a narrative long enough to estimate a token count from"},
	}
	payload := Build(nil, observations, "", 1000, refNow)
	require.Len(t, payload.Observations, 1)
	require.Positive(t, payload.TokensUsed)
}
