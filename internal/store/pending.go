package store

import "fmt"

// Enqueue inserts one pending row and returns its id (spec §4.3). Callers
// that run in enqueue-only mode fire their on-enqueue callback themselves
// after this returns — the store has no notion of processing modes.
func (s *Store) Enqueue(sessionID, toolName, output, callID string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO pending_messages (session_id, tool_name, tool_output, call_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, toolName, output, nullableString(callID), PendingStatusPending, Now(), Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) scanPending(row interface{ Scan(...any) error }) (*PendingMessage, error) {
	var (
		m                   PendingMessage
		callID, lastErr     *string
	)
	if err := row.Scan(
		&m.ID, &m.SessionID, &m.ToolName, &m.ToolOutput, &callID,
		&m.Status, &m.RetryCount, &lastErr, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	m.CallID = derefString(callID)
	m.LastError = lastErr
	return &m, nil
}

const pendingColumns = `id, session_id, tool_name, tool_output, call_id, status, retry_count, last_error, created_at, updated_at`

// GetPending returns up to limit oldest-first pending rows (spec §4.3:
// "oldest-first pending rows"), preserving FIFO enqueue order.
func (s *Store) GetPending(limit int) ([]PendingMessage, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(
		`SELECT `+pendingColumns+` FROM pending_messages WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT ?`,
		PendingStatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get pending: %w", err)
	}
	defer rows.Close()

	var out []PendingMessage
	for rows.Next() {
		m, err := s.scanPending(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *Store) MarkProcessing(id int64) error {
	_, err := s.db.Exec(
		`UPDATE pending_messages SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		PendingStatusProcessing, Now(), id, PendingStatusPending,
	)
	return err
}

func (s *Store) MarkCompleted(id int64) error {
	_, err := s.db.Exec(
		`UPDATE pending_messages SET status = ?, updated_at = ? WHERE id = ?`,
		PendingStatusCompleted, Now(), id,
	)
	return err
}

// MarkFailed transitions to failed, incrementing retry-count and recording
// the error (spec §4.3).
func (s *Store) MarkFailed(id int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := s.db.Exec(
		`UPDATE pending_messages SET status = ?, retry_count = retry_count + 1, last_error = ?, updated_at = ?
		 WHERE id = ?`,
		PendingStatusFailed, msg, Now(), id,
	)
	return err
}

// ResetStale atomically moves every processing row older than the cutoff
// back to pending and returns the count — the sole allowed
// processing->pending edge in the otherwise monotone lattice (spec §4.3,
// §8 invariant 5).
func (s *Store) ResetStale(olderThanMinutes int) (int, error) {
	res, err := s.db.Exec(
		`UPDATE pending_messages SET status = ?, updated_at = ?
		 WHERE status = ? AND datetime(updated_at) < datetime('now', ?)`,
		PendingStatusPending, Now(), PendingStatusProcessing, fmt.Sprintf("-%d minutes", olderThanMinutes),
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// DeleteCompletedMessagesOlderThan implements the pending-queue half of
// retention (spec §4.1).
func (s *Store) DeleteCompletedMessagesOlderThan(days int) (int, error) {
	res, err := s.db.Exec(
		`DELETE FROM pending_messages WHERE status = ? AND datetime(created_at) < datetime('now', ?)`,
		PendingStatusCompleted, fmt.Sprintf("-%d days", days),
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
