package store

import (
	"database/sql"
	"fmt"

	"github.com/jalfaro/engramd/internal/ids"
)

// UpsertEntity implements spec §4.9: if (name, type) exists, increment
// mention-count and refresh last-seen-at; else insert with mention-count=1.
func (s *Store) UpsertEntity(name, typ string) (*Entity, error) {
	var existing Entity
	err := s.db.QueryRow(
		`SELECT id, name, type, first_seen_at, last_seen_at, mention_count
		 FROM entities WHERE name = ? AND type = ?`, name, typ,
	).Scan(&existing.ID, &existing.Name, &existing.Type, &existing.FirstSeenAt, &existing.LastSeenAt, &existing.MentionCount)

	switch err {
	case nil:
		now := Now()
		if _, err := s.db.Exec(
			`UPDATE entities SET mention_count = mention_count + 1, last_seen_at = ? WHERE id = ?`,
			now, existing.ID,
		); err != nil {
			return nil, err
		}
		existing.MentionCount++
		existing.LastSeenAt = now
		return &existing, nil
	case sql.ErrNoRows:
		now := Now()
		id := ids.New()
		if _, err := s.db.Exec(
			`INSERT INTO entities (id, name, type, first_seen_at, last_seen_at, mention_count) VALUES (?, ?, ?, ?, ?, 1)`,
			id, name, typ, now, now,
		); err != nil {
			return nil, err
		}
		return &Entity{ID: id, Name: name, Type: typ, FirstSeenAt: now, LastSeenAt: now, MentionCount: 1}, nil
	default:
		return nil, err
	}
}

func (s *Store) GetEntity(id string) (*Entity, error) {
	var e Entity
	err := s.db.QueryRow(
		`SELECT id, name, type, first_seen_at, last_seen_at, mention_count FROM entities WHERE id = ?`, id,
	).Scan(&e.ID, &e.Name, &e.Type, &e.FirstSeenAt, &e.LastSeenAt, &e.MentionCount)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateRelation is idempotent on the (source, target, relationship) key
// (spec §4.9).
func (s *Store) CreateRelation(sourceID, targetID, relationship string, observationID int64) (*EntityRelation, error) {
	var existingID string
	err := s.db.QueryRow(
		`SELECT id FROM entity_relations WHERE source_id = ? AND target_id = ? AND relationship = ?`,
		sourceID, targetID, relationship,
	).Scan(&existingID)
	if err == nil {
		return s.getRelation(existingID)
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	id := ids.New()
	now := Now()
	if _, err := s.db.Exec(
		`INSERT INTO entity_relations (id, source_id, target_id, relationship, observation_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, sourceID, targetID, relationship, observationID, now,
	); err != nil {
		return nil, err
	}
	return &EntityRelation{
		ID: id, SourceID: sourceID, TargetID: targetID,
		Relationship: relationship, ObservationID: observationID, CreatedAt: now,
	}, nil
}

func (s *Store) getRelation(id string) (*EntityRelation, error) {
	var r EntityRelation
	err := s.db.QueryRow(
		`SELECT id, source_id, target_id, relationship, observation_id, created_at FROM entity_relations WHERE id = ?`, id,
	).Scan(&r.ID, &r.SourceID, &r.TargetID, &r.Relationship, &r.ObservationID, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// LinkObservation is idempotent on the (entity, observation) key (spec §4.9).
func (s *Store) LinkObservation(entityID string, observationID int64) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO entity_observations (entity_id, observation_id) VALUES (?, ?)`,
		entityID, observationID,
	)
	return err
}

// RelationsTouching returns every relation where entityID is either source
// or target — traverse_relations follows edges in both directions (spec §4.9).
func (s *Store) RelationsTouching(entityID string) ([]EntityRelation, error) {
	rows, err := s.db.Query(
		`SELECT id, source_id, target_id, relationship, observation_id, created_at
		 FROM entity_relations WHERE source_id = ? OR target_id = ?`, entityID, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("relations touching %s: %w", entityID, err)
	}
	defer rows.Close()

	var out []EntityRelation
	for rows.Next() {
		var r EntityRelation
		if err := rows.Scan(&r.ID, &r.SourceID, &r.TargetID, &r.Relationship, &r.ObservationID, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ObservationsLinkedToEntities fetches observation ids linked to any of the
// given entities, excluding superseded observations (spec §4.6 entity-graph
// augmentation step).
func (s *Store) ObservationsLinkedToEntities(entityIDs []string) ([]ObservationIndexEntry, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]byte, 0, len(entityIDs)*2)
	args := make([]any, 0, len(entityIDs))
	for i, id := range entityIDs {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT o.id, o.session_id, o.type, o.title, o.subtitle, o.narrative, o.concepts,
		       o.files_modified, o.created_at, o.token_count, o.importance
		FROM entity_observations eo
		JOIN observations o ON o.id = eo.observation_id
		WHERE eo.entity_id IN (%s) AND o.superseded_by IS NULL
		ORDER BY o.created_at DESC`, string(placeholders))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("observations linked to entities: %w", err)
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
