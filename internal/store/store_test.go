package store

import (
	"testing"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()

	s, err := New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustCreateSession(t *testing.T, s *Store, id, project string) {
	t.Helper()
	if err := s.CreateSession(id, project); err != nil {
		t.Fatalf("create session %s: %v", id, err)
	}
}

// TestMigrationIdempotence covers invariant 1 (spec §8): applying the
// migration ledger twice yields the same schema and ledger row count as
// applying it once.
func TestMigrationIdempotence(t *testing.T) {
	s := newTestStore(t)

	var before int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM _migrations`).Scan(&before); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if before != len(migrations) {
		t.Fatalf("expected %d applied migrations, got %d", len(migrations), before)
	}

	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate call: %v", err)
	}

	var after int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM _migrations`).Scan(&after); err != nil {
		t.Fatalf("count migrations after second run: %v", err)
	}
	if after != before {
		t.Fatalf("migration ledger grew on reapply: %d -> %d", before, after)
	}
}

// TestAddObservationRoundTrip covers invariant 2: arrays round-trip in
// order.
func TestAddObservationRoundTrip(t *testing.T) {
	s := newTestStore(t)
	mustCreateSession(t, s, "sess-1", "/p")

	id, err := s.AddObservation(AddObservationParams{
		SessionID: "sess-1",
		Type:      ObsFeature,
		Title:     "Added pagination",
		Narrative: "Implemented cursor pagination for the list endpoint.",
		Facts:     []string{"fact-a", "fact-b", "fact-c"},
		Concepts:  []string{"pagination", "cursor"},
		FilesRead: []string{"a.go"},
		FilesModified: []string{"b.go", "c.go"},
	})
	if err != nil {
		t.Fatalf("add observation: %v", err)
	}

	obs, err := s.GetObservation(id)
	if err != nil {
		t.Fatalf("get observation: %v", err)
	}

	wantFacts := []string{"fact-a", "fact-b", "fact-c"}
	for i, f := range wantFacts {
		if obs.Facts[i] != f {
			t.Fatalf("facts[%d] = %q, want %q", i, obs.Facts[i], f)
		}
	}
	wantFilesModified := []string{"b.go", "c.go"}
	for i, f := range wantFilesModified {
		if obs.FilesModified[i] != f {
			t.Fatalf("filesModified[%d] = %q, want %q", i, obs.FilesModified[i], f)
		}
	}
}

// TestSupersessionVisibility covers invariant 3.
func TestSupersessionVisibility(t *testing.T) {
	s := newTestStore(t)
	mustCreateSession(t, s, "sess-1", "/p")

	oldID, err := s.AddObservation(AddObservationParams{
		SessionID: "sess-1", Type: ObsDecision, Title: "old", Narrative: "the old decision",
	})
	if err != nil {
		t.Fatalf("add old: %v", err)
	}
	newID, err := s.AddObservation(AddObservationParams{
		SessionID: "sess-1", Type: ObsDecision, Title: "new", Narrative: "the new decision",
	})
	if err != nil {
		t.Fatalf("add new: %v", err)
	}

	if err := s.Supersede(oldID, newID); err != nil {
		t.Fatalf("supersede: %v", err)
	}

	index, err := s.GetIndex("/p", 10, false)
	if err != nil {
		t.Fatalf("get index: %v", err)
	}
	for _, e := range index {
		if e.ID == oldID {
			t.Fatalf("superseded observation %d still visible in default index", oldID)
		}
	}

	withSuperseded, err := s.GetIndex("/p", 10, true)
	if err != nil {
		t.Fatalf("get index with superseded: %v", err)
	}
	found := false
	for _, e := range withSuperseded {
		if e.ID == oldID {
			found = true
		}
	}
	if !found {
		t.Fatalf("superseded observation %d not returned when includeSuperseded=true", oldID)
	}
}

// TestRetentionSafety covers invariant 4: retention never deletes
// observations belonging to a non-completed session.
func TestRetentionSafety(t *testing.T) {
	s := newTestStore(t)
	mustCreateSession(t, s, "active-sess", "/p")

	id, err := s.AddObservation(AddObservationParams{
		SessionID: "active-sess", Type: ObsChange, Title: "x", Narrative: "y",
	})
	if err != nil {
		t.Fatalf("add observation: %v", err)
	}

	n, err := s.DeleteObservationsOlderThan(0)
	if err != nil {
		t.Fatalf("delete observations older than: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 deletions for active session, got %d", n)
	}

	if _, err := s.GetObservation(id); err != nil {
		t.Fatalf("observation unexpectedly removed: %v", err)
	}
}

// TestQueueMonotonicity covers invariant 5: pending message status only
// advances pending -> processing -> {completed, failed}, with the
// documented processing -> pending stale-reset exception.
func TestQueueMonotonicity(t *testing.T) {
	s := newTestStore(t)
	mustCreateSession(t, s, "sess-1", "/p")

	id, err := s.Enqueue("sess-1", "Read", "output", "call-1")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := s.MarkProcessing(id); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if err := s.MarkCompleted(id); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	pending, err := s.GetPending(10)
	if err != nil {
		t.Fatalf("get pending: %v", err)
	}
	for _, p := range pending {
		if p.ID == id {
			t.Fatalf("completed message still reported pending")
		}
	}
}

// TestFTSConsistency covers invariant 6: insert makes a unique token
// searchable, delete removes it, update swaps it.
func TestFTSConsistency(t *testing.T) {
	s := newTestStore(t)
	mustCreateSession(t, s, "sess-1", "/p")

	id, err := s.AddObservation(AddObservationParams{
		SessionID: "sess-1", Type: ObsFeature, Title: "zorblaxxterm feature", Narrative: "narrative text",
	})
	if err != nil {
		t.Fatalf("add observation: %v", err)
	}

	hits, err := s.SearchFTS("zorblaxxterm", "/p", 10)
	if err != nil {
		t.Fatalf("search fts: %v", err)
	}
	if len(hits) != 1 || hits[0].Observation.ID != id {
		t.Fatalf("expected 1 hit for zorblaxxterm, got %d", len(hits))
	}

	newTitle := "quuxifybang feature"
	if _, err := s.UpdateObservation(id, UpdateObservationParams{Title: &newTitle}); err != nil {
		t.Fatalf("update observation: %v", err)
	}

	oldHits, err := s.SearchFTS("zorblaxxterm", "/p", 10)
	if err != nil {
		t.Fatalf("search fts after update: %v", err)
	}
	if len(oldHits) != 0 {
		t.Fatalf("old token still searchable after update")
	}
	newHits, err := s.SearchFTS("quuxifybang", "/p", 10)
	if err != nil {
		t.Fatalf("search fts for new token: %v", err)
	}
	if len(newHits) != 1 {
		t.Fatalf("new token not searchable after update")
	}

	if err := s.DeleteObservation(id); err != nil {
		t.Fatalf("delete observation: %v", err)
	}
	afterDelete, err := s.SearchFTS("quuxifybang", "/p", 10)
	if err != nil {
		t.Fatalf("search fts after delete: %v", err)
	}
	if len(afterDelete) != 0 {
		t.Fatalf("deleted observation's token still searchable")
	}
}

// TestEntityUpsertAndRelation exercises the entity graph store layer (spec
// §4.9): idempotent upsert, idempotent relation creation.
func TestEntityUpsertAndRelation(t *testing.T) {
	s := newTestStore(t)

	e1, err := s.UpsertEntity("Go", EntityTechnology)
	if err != nil {
		t.Fatalf("upsert entity: %v", err)
	}
	if e1.MentionCount != 1 {
		t.Fatalf("expected mention count 1, got %d", e1.MentionCount)
	}

	e1Again, err := s.UpsertEntity("Go", EntityTechnology)
	if err != nil {
		t.Fatalf("upsert entity again: %v", err)
	}
	if e1Again.ID != e1.ID {
		t.Fatalf("upsert created a new entity instead of reusing %s", e1.ID)
	}
	if e1Again.MentionCount != 2 {
		t.Fatalf("expected mention count 2, got %d", e1Again.MentionCount)
	}

	e2, err := s.UpsertEntity("SQLite", EntityTechnology)
	if err != nil {
		t.Fatalf("upsert second entity: %v", err)
	}

	mustCreateSession(t, s, "sess-1", "/p")
	obsID, err := s.AddObservation(AddObservationParams{SessionID: "sess-1", Type: ObsDecision, Title: "x", Narrative: "y"})
	if err != nil {
		t.Fatalf("add observation: %v", err)
	}

	rel1, err := s.CreateRelation(e1.ID, e2.ID, RelUses, obsID)
	if err != nil {
		t.Fatalf("create relation: %v", err)
	}
	rel2, err := s.CreateRelation(e1.ID, e2.ID, RelUses, obsID)
	if err != nil {
		t.Fatalf("create relation again: %v", err)
	}
	if rel1.ID != rel2.ID {
		t.Fatalf("relation creation not idempotent: %s != %s", rel1.ID, rel2.ID)
	}
}

// TestExportImportRoundTrip exercises the export/import document shape and
// duplicate-id skipping (spec §6).
func TestExportImportRoundTrip(t *testing.T) {
	s := newTestStore(t)
	mustCreateSession(t, s, "sess-1", "/p")

	if _, err := s.AddObservation(AddObservationParams{
		SessionID: "sess-1", Type: ObsBugfix, Title: "fixed it", Narrative: "narrative", RawOutput: "raw",
	}); err != nil {
		t.Fatalf("add observation: %v", err)
	}

	data, err := s.Export("/p")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if data.Version != ExportVersion {
		t.Fatalf("export version = %d, want %d", data.Version, ExportVersion)
	}
	if len(data.Observations) != 1 {
		t.Fatalf("expected 1 exported observation, got %d", len(data.Observations))
	}
	if data.Observations[0].RawOutput != "" {
		t.Fatalf("exported observation must omit raw output")
	}

	result, err := s.Import(data)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.ObservationsSkipped != 1 || result.ObservationsImported != 0 {
		t.Fatalf("expected re-import to skip the existing observation, got %+v", result)
	}
}
