package store

import (
	"database/sql"
	"fmt"
)

// AddObservationParams is the persisted shape of one compressed
// observation, produced by the queue processor's compressor (or by a
// direct save/import path) — spec §3 "Observation" attributes.
type AddObservationParams struct {
	SessionID       string
	Type            string
	Title           string
	Subtitle        string
	Facts           []string
	Narrative       string
	Concepts        []string
	FilesRead       []string
	FilesModified   []string
	RawOutput       string
	ToolName        string
	Importance      int
	TokenCount      int
	DiscoveryTokens int
	Embedding       []float32
}

// AddObservation inserts a new observation and increments its session's
// observation-count in the same transaction, keeping the spec §3 invariant
// intact even under concurrent writers serialized by SQLite's own lock.
func (s *Store) AddObservation(p AddObservationParams) (int64, error) {
	if !IsValidObservationType(p.Type) {
		return 0, fmt.Errorf("store: invalid observation type %q", p.Type)
	}
	if p.Importance == 0 {
		p.Importance = 3
	}
	title := stripPrivateTags(p.Title)
	narrative := stripPrivateTags(p.Narrative)
	if len(narrative) > s.cfg.MaxObservationLength {
		narrative = truncate(narrative, s.cfg.MaxObservationLength)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO observations
		 (session_id, type, title, subtitle, facts, narrative, concepts, files_read, files_modified,
		  raw_output, tool_name, token_count, discovery_tokens, importance, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.SessionID, p.Type, title, nullableString(p.Subtitle),
		encodeJSONArray(p.Facts), narrative, encodeJSONArray(p.Concepts),
		encodeJSONArray(p.FilesRead), encodeJSONArray(p.FilesModified),
		nullableString(p.RawOutput), nullableString(p.ToolName),
		p.TokenCount, p.DiscoveryTokens, p.Importance, encodeEmbedding(p.Embedding), Now(),
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if err := s.incrementObservationCount(tx, p.SessionID, 1); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

const observationColumns = `id, session_id, type, title, subtitle, facts, narrative, concepts,
	files_read, files_modified, raw_output, tool_name, created_at, token_count,
	discovery_tokens, importance, embedding, superseded_by, superseded_at`

func (s *Store) scanObservation(row interface{ Scan(...any) error }) (*Observation, error) {
	var (
		o                                    Observation
		subtitle, rawOutput, toolName        sql.NullString
		facts, concepts, filesRead, filesMod string
		embedding                            sql.NullString
		supersededBy                         sql.NullInt64
		supersededAt                         sql.NullString
	)
	if err := row.Scan(
		&o.ID, &o.SessionID, &o.Type, &o.Title, &subtitle, &facts, &o.Narrative, &concepts,
		&filesRead, &filesMod, &rawOutput, &toolName, &o.CreatedAt, &o.TokenCount,
		&o.DiscoveryTokens, &o.Importance, &embedding, &supersededBy, &supersededAt,
	); err != nil {
		return nil, err
	}
	o.Subtitle = subtitle.String
	o.RawOutput = rawOutput.String
	o.ToolName = toolName.String
	o.Facts = decodeJSONArray(facts, s.log)
	o.Concepts = decodeJSONArray(concepts, s.log)
	o.FilesRead = decodeJSONArray(filesRead, s.log)
	o.FilesModified = decodeJSONArray(filesMod, s.log)
	if embedding.Valid {
		o.Embedding = decodeEmbedding(&embedding.String, s.log)
	}
	if supersededBy.Valid {
		v := supersededBy.Int64
		o.SupersededBy = &v
	}
	if supersededAt.Valid {
		v := supersededAt.String
		o.SupersededAt = &v
	}
	return &o, nil
}

// GetObservation reads one observation by id, including superseded ones —
// callers that must exclude superseded rows (default read paths, spec
// §4.1 "Supersession") do so at the query layer, not here.
func (s *Store) GetObservation(id int64) (*Observation, error) {
	row := s.db.QueryRow(`SELECT `+observationColumns+` FROM observations WHERE id = ?`, id)
	return s.scanObservation(row)
}

// UpdateObservationParams carries only the fields callers may mutate via
// mem-update; nil means "leave unchanged."
type UpdateObservationParams struct {
	Title     *string
	Subtitle  *string
	Narrative *string
	Concepts  []string
	Importance *int
}

func (s *Store) UpdateObservation(id int64, p UpdateObservationParams) (*Observation, error) {
	obs, err := s.GetObservation(id)
	if err != nil {
		return nil, err
	}

	title := obs.Title
	subtitle := obs.Subtitle
	narrative := obs.Narrative
	concepts := obs.Concepts
	importance := obs.Importance

	if p.Title != nil {
		title = stripPrivateTags(*p.Title)
	}
	if p.Subtitle != nil {
		subtitle = *p.Subtitle
	}
	if p.Narrative != nil {
		narrative = stripPrivateTags(*p.Narrative)
		if len(narrative) > s.cfg.MaxObservationLength {
			narrative = truncate(narrative, s.cfg.MaxObservationLength)
		}
	}
	if p.Concepts != nil {
		concepts = p.Concepts
	}
	if p.Importance != nil {
		importance = *p.Importance
	}

	if _, err := s.db.Exec(
		`UPDATE observations SET title = ?, subtitle = ?, narrative = ?, concepts = ?, importance = ?
		 WHERE id = ?`,
		title, nullableString(subtitle), narrative, encodeJSONArray(concepts), importance, id,
	); err != nil {
		return nil, err
	}
	return s.GetObservation(id)
}

// DeleteObservation hard-deletes an observation; the explicit deletion path
// named in spec §3's Observation lifecycle ("deleted explicitly or by
// retention"), distinct from Supersede's soft-delete-with-provenance.
func (s *Store) DeleteObservation(id int64) error {
	obs, err := s.GetObservation(id)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM entity_relations WHERE observation_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM entity_observations WHERE observation_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM observations WHERE id = ?`, id); err != nil {
		return err
	}
	if obs.SupersededBy == nil {
		if err := s.incrementObservationCount(tx, obs.SessionID, -1); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Supersede marks old as replaced by new, atomically, implementing
// soft-delete-with-provenance (spec §4.1). Default read paths then exclude
// old unless includeSuperseded is passed.
func (s *Store) Supersede(oldID, newID int64) error {
	newObs, err := s.GetObservation(newID)
	if err != nil {
		return fmt.Errorf("store: supersede target #%d: %w", newID, err)
	}
	if newObs.SupersededBy != nil {
		return fmt.Errorf("store: supersede target #%d is itself superseded", newID)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE observations SET superseded_by = ?, superseded_at = ?
		 WHERE id = ? AND superseded_by IS NULL`,
		newID, Now(), oldID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: observation #%d not found or already superseded", oldID)
	}

	old, err := s.GetObservation(oldID)
	if err != nil {
		return err
	}
	if err := s.incrementObservationCount(tx, old.SessionID, -1); err != nil {
		return err
	}
	return tx.Commit()
}

// GetIndex returns the lightweight projection used by the progressive
// context builder and as the base result shape for search — superseded
// rows are excluded unless includeSuperseded is true.
func (s *Store) GetIndex(project string, limit int, includeSuperseded bool) ([]ObservationIndexEntry, error) {
	if limit <= 0 {
		limit = s.cfg.MaxContextResults
	}
	query := `
		SELECT o.id, o.session_id, o.type, o.title, o.subtitle, o.narrative, o.concepts,
		       o.files_read, o.files_modified, o.created_at, o.token_count, o.importance
		FROM observations o
		JOIN sessions sess ON sess.id = o.session_id
		WHERE 1=1`
	args := []any{}
	if !includeSuperseded {
		query += " AND o.superseded_by IS NULL"
	}
	if project != "" {
		query += " AND sess.project = ?"
		args = append(args, project)
	}
	query += " ORDER BY o.created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("get index: %w", err)
	}
	defer rows.Close()

	var out []ObservationIndexEntry
	for rows.Next() {
		var (
			e                             ObservationIndexEntry
			subtitle                      sql.NullString
			concepts, filesRead, filesMod string
		)
		if err := rows.Scan(
			&e.ID, &e.SessionID, &e.Type, &e.Title, &subtitle, &e.Narrative, &concepts,
			&filesRead, &filesMod, &e.CreatedAt, &e.TokenCount, &e.Importance,
		); err != nil {
			return nil, err
		}
		e.Subtitle = subtitle.String
		e.Concepts = decodeJSONArray(concepts, s.log)
		e.FilesRead = decodeJSONArray(filesRead, s.log)
		e.FilesModified = decodeJSONArray(filesMod, s.log)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ObservationsInSession returns the lightweight projection for every
// non-superseded observation in one session, most recent first — the
// candidate pool the queue processor scans for conflict detection (spec §9
// open question, resolved in SPEC_FULL.md §9).
func (s *Store) ObservationsInSession(sessionID string, limit int) ([]ObservationIndexEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, session_id, type, title, subtitle, narrative, concepts,
		       files_modified, created_at, token_count, importance
		FROM observations
		WHERE session_id = ? AND superseded_by IS NULL
		ORDER BY created_at DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("observations in session: %w", err)
	}
	defer rows.Close()

	var out []ObservationIndexEntry
	for rows.Next() {
		var (
			e                  ObservationIndexEntry
			subtitle           sql.NullString
			concepts, filesMod string
		)
		if err := rows.Scan(
			&e.ID, &e.SessionID, &e.Type, &e.Title, &subtitle, &e.Narrative, &concepts,
			&filesMod, &e.CreatedAt, &e.TokenCount, &e.Importance,
		); err != nil {
			return nil, err
		}
		e.Subtitle = subtitle.String
		e.Concepts = decodeJSONArray(concepts, s.log)
		e.FilesModified = decodeJSONArray(filesMod, s.log)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Timeline returns chronological context around a focus observation —
// progressive disclosure after a search hit (spec §4.1 family of reads).
func (s *Store) Timeline(observationID int64, before, after int) (*TimelineResult, error) {
	if before <= 0 {
		before = 5
	}
	if after <= 0 {
		after = 5
	}

	focus, err := s.GetObservation(observationID)
	if err != nil {
		return nil, fmt.Errorf("timeline: observation #%d not found: %w", observationID, err)
	}

	session, err := s.GetSession(focus.SessionID)
	if err != nil {
		session = nil
	}

	beforeEntries, err := s.queryObservations(`
		SELECT `+observationColumns+` FROM observations
		WHERE session_id = ? AND id < ? AND superseded_by IS NULL
		ORDER BY id DESC LIMIT ?`, focus.SessionID, observationID, before)
	if err != nil {
		return nil, fmt.Errorf("timeline: before query: %w", err)
	}
	for i, j := 0, len(beforeEntries)-1; i < j; i, j = i+1, j-1 {
		beforeEntries[i], beforeEntries[j] = beforeEntries[j], beforeEntries[i]
	}

	afterEntries, err := s.queryObservations(`
		SELECT `+observationColumns+` FROM observations
		WHERE session_id = ? AND id > ? AND superseded_by IS NULL
		ORDER BY id ASC LIMIT ?`, focus.SessionID, observationID, after)
	if err != nil {
		return nil, fmt.Errorf("timeline: after query: %w", err)
	}

	var totalInRange int
	_ = s.db.QueryRow(
		`SELECT COUNT(*) FROM observations WHERE session_id = ? AND superseded_by IS NULL`,
		focus.SessionID,
	).Scan(&totalInRange)

	return &TimelineResult{
		Focus:        *focus,
		Before:       beforeEntries,
		After:        afterEntries,
		SessionInfo:  session,
		TotalInRange: totalInRange,
	}, nil
}

func (s *Store) queryObservations(query string, args ...any) ([]Observation, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		o, err := s.scanObservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// ObservationsWithEmbeddings loads candidates carrying a stored embedding,
// for the in-process cosine-similarity fallback search path (spec §4.6).
func (s *Store) ObservationsWithEmbeddings(project string, limit int) ([]Observation, error) {
	query := `
		SELECT ` + observationColumns + ` FROM observations o
		JOIN sessions sess ON sess.id = o.session_id
		WHERE o.embedding IS NOT NULL AND o.superseded_by IS NULL`
	args := []any{}
	if project != "" {
		query += " AND sess.project = ?"
		args = append(args, project)
	}
	query += " ORDER BY o.created_at DESC LIMIT ?"
	args = append(args, limit)
	return s.queryObservations(query, args...)
}

// SetEmbedding stores (or clears, with nil) an observation's embedding in
// the TEXT column used by the cosine fallback. The schema has no native
// vector table, so this column is the only stored form.
func (s *Store) SetEmbedding(id int64, v []float32) error {
	_, err := s.db.Exec(`UPDATE observations SET embedding = ? WHERE id = ?`, encodeEmbedding(v), id)
	return err
}

// DeleteObservationsOlderThan implements retention (spec §4.1): only
// observations belonging to completed sessions, older than the cutoff, are
// removed. Active/idle sessions are never touched.
func (s *Store) DeleteObservationsOlderThan(days int) (int, error) {
	res, err := s.db.Exec(`
		DELETE FROM observations
		WHERE id IN (
			SELECT o.id FROM observations o
			JOIN sessions sess ON sess.id = o.session_id
			WHERE sess.status = ?
			  AND datetime(o.created_at) < datetime('now', ?)
		)`,
		SessionCompleted, fmt.Sprintf("-%d days", days),
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
