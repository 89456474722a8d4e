package store

import (
	"database/sql"
	"fmt"
)

// FTSHit is one full-text match, carrying SQLite's bm25-derived rank
// (lower is better, as FTS5 returns it) for the orchestrator's RRF merge.
type FTSHit struct {
	Observation ObservationIndexEntry
	Rank        float64
}

// SearchFTS runs the full-text query against observations_fts and returns
// hits ordered by relevance, excluding superseded rows (spec §4.2/§4.6).
// An empty query still executes — sanitizeFTS turns it into a query that
// matches nothing, which is the documented boundary behavior for an
// empty/whitespace-only query.
func (s *Store) SearchFTS(query, project string, limit int) ([]FTSHit, error) {
	if limit <= 0 {
		limit = s.cfg.MaxSearchResults
	}
	ftsQuery := sanitizeFTS(query)

	sqlQuery := `
		SELECT o.id, o.session_id, o.type, o.title, o.subtitle, o.narrative, o.concepts,
		       o.files_read, o.files_modified, o.created_at, o.token_count, o.importance, fts.rank
		FROM observations_fts fts
		JOIN observations o ON o.id = fts.rowid
		JOIN sessions sess ON sess.id = o.session_id
		WHERE observations_fts MATCH ? AND o.superseded_by IS NULL`
	args := []any{ftsQuery}
	if project != "" {
		sqlQuery += " AND sess.project = ?"
		args = append(args, project)
	}
	sqlQuery += " ORDER BY fts.rank LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("search fts: %w", err)
	}
	defer rows.Close()

	var out []FTSHit
	for rows.Next() {
		var (
			e                             ObservationIndexEntry
			subtitle                      sql.NullString
			concepts, filesRead, filesMod string
			rank                          float64
		)
		if err := rows.Scan(
			&e.ID, &e.SessionID, &e.Type, &e.Title, &subtitle, &e.Narrative, &concepts,
			&filesRead, &filesMod, &e.CreatedAt, &e.TokenCount, &e.Importance, &rank,
		); err != nil {
			return nil, err
		}
		e.Subtitle = subtitle.String
		e.Concepts = decodeJSONArray(concepts, s.log)
		e.FilesRead = decodeJSONArray(filesRead, s.log)
		e.FilesModified = decodeJSONArray(filesMod, s.log)
		out = append(out, FTSHit{Observation: e, Rank: rank})
	}
	return out, rows.Err()
}

// SearchEntitiesFTS matches entity names/types for the entity-graph
// augmentation path (spec §4.6: "look up entities by FTS name match").
func (s *Store) SearchEntitiesFTS(term string, limit int) ([]Entity, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
		SELECT e.id, e.name, e.type, e.first_seen_at, e.last_seen_at, e.mention_count
		FROM entities_fts fts
		JOIN entities e ON e.rowid = fts.rowid
		WHERE entities_fts MATCH ?
		ORDER BY fts.rank LIMIT ?`, sanitizeFTS(term), limit)
	if err != nil {
		return nil, fmt.Errorf("search entities fts: %w", err)
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.ID, &e.Name, &e.Type, &e.FirstSeenAt, &e.LastSeenAt, &e.MentionCount); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
