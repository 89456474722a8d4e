package store

import "fmt"

// Export produces the spec §6 export document. Observations in the export
// omit raw tool output.
func (s *Store) Export(project string) (*ExportData, error) {
	observations, err := s.queryObservations(`
		SELECT `+observationColumns+` FROM observations o
		JOIN sessions sess ON sess.id = o.session_id
		WHERE sess.project = ? AND o.superseded_by IS NULL
		ORDER BY o.id ASC`, project)
	if err != nil {
		return nil, fmt.Errorf("export observations: %w", err)
	}
	for i := range observations {
		observations[i].RawOutput = ""
	}

	summaries, err := s.RecentSummaries(project, 1<<30)
	if err != nil {
		return nil, fmt.Errorf("export summaries: %w", err)
	}

	return &ExportData{
		Version:      ExportVersion,
		ExportedAt:   Now(),
		Project:      project,
		Observations: observations,
		Summaries:    summaries,
	}, nil
}

// Import validates the top-level shape, rejects unsupported versions, and
// skips entries whose id already exists (spec §6 duplicate detection).
func (s *Store) Import(data *ExportData) (*ImportResult, error) {
	if data == nil {
		return nil, fmt.Errorf("store: import: nil document")
	}
	if data.Version != ExportVersion {
		return nil, fmt.Errorf("store: import: unsupported version %d", data.Version)
	}

	result := &ImportResult{}
	for _, o := range data.Observations {
		exists, err := s.observationExists(o.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			result.ObservationsSkipped++
			continue
		}
		if err := s.CreateSession(o.SessionID, data.Project); err != nil {
			return nil, err
		}
		if _, err := s.AddObservation(AddObservationParams{
			SessionID:       o.SessionID,
			Type:            o.Type,
			Title:           o.Title,
			Subtitle:        o.Subtitle,
			Facts:           o.Facts,
			Narrative:       o.Narrative,
			Concepts:        o.Concepts,
			FilesRead:       o.FilesRead,
			FilesModified:   o.FilesModified,
			ToolName:        o.ToolName,
			Importance:      o.Importance,
			TokenCount:      o.TokenCount,
			DiscoveryTokens: o.DiscoveryTokens,
			Embedding:       o.Embedding,
		}); err != nil {
			return nil, err
		}
		result.ObservationsImported++
	}

	for _, sum := range data.Summaries {
		existing, _ := s.GetSessionSummary(sum.SessionID)
		if existing != nil {
			result.SummariesSkipped++
			continue
		}
		if err := s.CreateSession(sum.SessionID, data.Project); err != nil {
			return nil, err
		}
		if err := s.UpsertSessionSummary(UpsertSessionSummaryParams{
			SessionID:     sum.SessionID,
			Request:       sum.Request,
			Investigated:  sum.Investigated,
			Learned:       sum.Learned,
			Completed:     sum.Completed,
			NextSteps:     sum.NextSteps,
			Summary:       sum.Summary,
			KeyDecisions:  sum.KeyDecisions,
			FilesModified: sum.FilesModified,
			Concepts:      sum.Concepts,
			TokenCount:    sum.TokenCount,
		}); err != nil {
			return nil, err
		}
		result.SummariesImported++
	}

	return result, nil
}

func (s *Store) observationExists(id int64) (bool, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM observations WHERE id = ?`, id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Stats reports system-wide counters, for mem-stats-style diagnostics.
func (s *Store) Stats() (*Stats, error) {
	var stats Stats
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&stats.TotalSessions); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM observations WHERE superseded_by IS NULL`).Scan(&stats.TotalObservations); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM entities`).Scan(&stats.TotalEntities); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM pending_messages WHERE status = ?`, PendingStatusPending).Scan(&stats.PendingCount); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT DISTINCT project FROM sessions ORDER BY project`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		stats.Projects = append(stats.Projects, p)
	}
	return &stats, rows.Err()
}

// ProjectForObservation resolves the project path that owns an observation
// via its session, for the mem-update/mem-delete project-isolation check
// (spec §4.8, §8 invariant 10).
func (s *Store) ProjectForObservation(id int64) (string, error) {
	var project string
	err := s.db.QueryRow(`
		SELECT sess.project FROM observations o
		JOIN sessions sess ON sess.id = o.session_id
		WHERE o.id = ?`, id).Scan(&project)
	return project, err
}
