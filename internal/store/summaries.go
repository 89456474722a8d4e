package store

import (
	"fmt"

	"go.uber.org/zap"
)

// UpsertSessionSummaryParams mirrors ai.SessionSummaryDraft; kept as a
// separate store-level type so this package has no dependency on
// internal/ai (spec §3: "Session Summary", unique by session id).
type UpsertSessionSummaryParams struct {
	SessionID     string
	Request       string
	Investigated  string
	Learned       string
	Completed     string
	NextSteps     string
	Summary       string
	KeyDecisions  []string
	FilesModified []string
	Concepts      []string
	TokenCount    int
}

func (s *Store) UpsertSessionSummary(p UpsertSessionSummaryParams) error {
	_, err := s.db.Exec(`
		INSERT INTO session_summaries
			(session_id, request, investigated, learned, completed, next_steps, summary,
			 key_decisions, files_modified, concepts, token_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			request = excluded.request,
			investigated = excluded.investigated,
			learned = excluded.learned,
			completed = excluded.completed,
			next_steps = excluded.next_steps,
			summary = excluded.summary,
			key_decisions = excluded.key_decisions,
			files_modified = excluded.files_modified,
			concepts = excluded.concepts,
			token_count = excluded.token_count`,
		p.SessionID, p.Request, p.Investigated, p.Learned, p.Completed, p.NextSteps, p.Summary,
		encodeJSONArray(p.KeyDecisions), encodeJSONArray(p.FilesModified), encodeJSONArray(p.Concepts),
		p.TokenCount, Now(),
	)
	return err
}

func (s *Store) GetSessionSummary(sessionID string) (*SessionSummary, error) {
	row := s.db.QueryRow(`
		SELECT id, session_id, request, investigated, learned, completed, next_steps, summary,
		       key_decisions, files_modified, concepts, token_count, created_at
		FROM session_summaries WHERE session_id = ?`, sessionID)
	return scanSessionSummary(row, s.log)
}

// RecentSummaries returns the most recent session summaries for a project,
// the first priority tier of the progressive context payload (spec §4.7).
func (s *Store) RecentSummaries(project string, limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT ss.id, ss.session_id, ss.request, ss.investigated, ss.learned, ss.completed,
		       ss.next_steps, ss.summary, ss.key_decisions, ss.files_modified, ss.concepts,
		       ss.token_count, ss.created_at
		FROM session_summaries ss
		JOIN sessions sess ON sess.id = ss.session_id`
	args := []any{}
	if project != "" {
		query += " WHERE sess.project = ?"
		args = append(args, project)
	}
	query += " ORDER BY ss.created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("recent summaries: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		summary, err := scanSessionSummary(rows, s.log)
		if err != nil {
			return nil, err
		}
		out = append(out, *summary)
	}
	return out, rows.Err()
}

func scanSessionSummary(row interface{ Scan(...any) error }, log *zap.Logger) (*SessionSummary, error) {
	var (
		sum                                  SessionSummary
		keyDecisions, filesModified, concepts string
	)
	if err := row.Scan(
		&sum.ID, &sum.SessionID, &sum.Request, &sum.Investigated, &sum.Learned, &sum.Completed,
		&sum.NextSteps, &sum.Summary, &keyDecisions, &filesModified, &concepts,
		&sum.TokenCount, &sum.CreatedAt,
	); err != nil {
		return nil, err
	}
	sum.KeyDecisions = decodeJSONArray(keyDecisions, log)
	sum.FilesModified = decodeJSONArray(filesModified, log)
	sum.Concepts = decodeJSONArray(concepts, log)
	return &sum, nil
}
