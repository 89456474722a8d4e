package store

import (
	"database/sql"
	"fmt"
)

// CreateSession starts a new session scoped to project, idempotently: an
// existing row with the same id is left untouched (spec §3: "created on
// first event or explicit creation").
func (s *Store) CreateSession(id, project string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO sessions (id, project, status) VALUES (?, ?, ?)`,
		id, project, SessionActive,
	)
	return err
}

func (s *Store) GetSession(id string) (*Session, error) {
	row := s.db.QueryRow(
		`SELECT id, project, started_at, ended_at, status, observation_count, summary_id
		 FROM sessions WHERE id = ?`, id,
	)
	var sess Session
	if err := row.Scan(
		&sess.ID, &sess.Project, &sess.StartedAt, &sess.EndedAt,
		&sess.Status, &sess.ObservationCount, &sess.SummaryID,
	); err != nil {
		return nil, err
	}
	return &sess, nil
}

// SetSessionStatus transitions a session between active, idle, and
// completed (spec §3 lifecycle: active -> idle -> completed).
func (s *Store) SetSessionStatus(id, status string) error {
	_, err := s.db.Exec(`UPDATE sessions SET status = ? WHERE id = ?`, status, id)
	return err
}

// EndSession marks a session completed and stamps ended_at.
func (s *Store) EndSession(id string) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET status = ?, ended_at = ? WHERE id = ?`,
		SessionCompleted, Now(), id,
	)
	return err
}

// incrementObservationCount keeps Session.ObservationCount equal to the
// number of non-superseded observations referencing the session (spec §3
// invariant). Called from AddObservation/supersede/DeleteObservation.
func (s *Store) incrementObservationCount(tx *sql.Tx, sessionID string, delta int) error {
	_, err := tx.Exec(
		`UPDATE sessions SET observation_count = observation_count + ? WHERE id = ?`,
		delta, sessionID,
	)
	return err
}

// RecentSessions returns the most recently started sessions for a project,
// newest first.
func (s *Store) RecentSessions(project string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, project, started_at, ended_at, status, observation_count, summary_id FROM sessions`
	args := []any{}
	if project != "" {
		query += " WHERE project = ?"
		args = append(args, project)
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("recent sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(
			&sess.ID, &sess.Project, &sess.StartedAt, &sess.EndedAt,
			&sess.Status, &sess.ObservationCount, &sess.SummaryID,
		); err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}
