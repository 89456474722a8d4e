package store

import (
	"database/sql"
	"fmt"
	"sort"
)

// Migration is one forward-only schema step: {version, name, up}. The
// engine tracks applied versions in `_migrations` and only ever moves
// forward — there is no down path (spec §4.1).
type Migration struct {
	Version int
	Name    string
	Up      string
}

// migrations is the ordered, append-only list of schema steps. Running the
// full list twice is a no-op: migrate() filters out already-applied
// versions before executing anything.
var migrations = []Migration{
	{1, "initial schema", schemaV1},
	{2, "fts triggers", triggersV1},
}

const schemaV1 = `
CREATE TABLE IF NOT EXISTS sessions (
	id                TEXT PRIMARY KEY,
	project           TEXT NOT NULL,
	started_at        TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
	ended_at          TEXT,
	status            TEXT NOT NULL DEFAULT 'active',
	observation_count INTEGER NOT NULL DEFAULT 0,
	summary_id        INTEGER
);
CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project);
CREATE INDEX IF NOT EXISTS idx_sessions_status  ON sessions(status);

CREATE TABLE IF NOT EXISTS observations (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id       TEXT NOT NULL REFERENCES sessions(id),
	type             TEXT NOT NULL,
	title            TEXT NOT NULL,
	subtitle         TEXT,
	facts            TEXT NOT NULL DEFAULT '[]',
	narrative        TEXT NOT NULL DEFAULT '',
	concepts         TEXT NOT NULL DEFAULT '[]',
	files_read       TEXT NOT NULL DEFAULT '[]',
	files_modified   TEXT NOT NULL DEFAULT '[]',
	raw_output       TEXT,
	tool_name        TEXT,
	created_at       TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
	token_count      INTEGER NOT NULL DEFAULT 0,
	discovery_tokens INTEGER NOT NULL DEFAULT 0,
	importance       INTEGER NOT NULL DEFAULT 3,
	embedding        TEXT,
	superseded_by    INTEGER,
	superseded_at    TEXT
);
CREATE INDEX IF NOT EXISTS idx_obs_session    ON observations(session_id);
CREATE INDEX IF NOT EXISTS idx_obs_type       ON observations(type);
CREATE INDEX IF NOT EXISTS idx_obs_created    ON observations(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_obs_superseded ON observations(superseded_by);

CREATE VIRTUAL TABLE IF NOT EXISTS observations_fts USING fts5(
	title, subtitle, narrative, facts, concepts, files_read, files_modified,
	content='observations',
	content_rowid='id',
	tokenize='porter unicode61'
);

CREATE TABLE IF NOT EXISTS session_summaries (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id     TEXT NOT NULL UNIQUE REFERENCES sessions(id),
	request        TEXT NOT NULL DEFAULT '',
	investigated   TEXT NOT NULL DEFAULT '',
	learned        TEXT NOT NULL DEFAULT '',
	completed      TEXT NOT NULL DEFAULT '',
	next_steps     TEXT NOT NULL DEFAULT '',
	summary        TEXT NOT NULL DEFAULT '',
	key_decisions  TEXT NOT NULL DEFAULT '[]',
	files_modified TEXT NOT NULL DEFAULT '[]',
	concepts       TEXT NOT NULL DEFAULT '[]',
	token_count    INTEGER NOT NULL DEFAULT 0,
	created_at     TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
);

CREATE VIRTUAL TABLE IF NOT EXISTS summaries_fts USING fts5(
	summary, key_decisions, concepts,
	content='session_summaries',
	content_rowid='id',
	tokenize='porter unicode61'
);

CREATE TABLE IF NOT EXISTS pending_messages (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL REFERENCES sessions(id),
	tool_name   TEXT NOT NULL,
	tool_output TEXT NOT NULL,
	call_id     TEXT,
	status      TEXT NOT NULL DEFAULT 'pending',
	retry_count INTEGER NOT NULL DEFAULT 0,
	last_error  TEXT,
	created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
	updated_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_pending_status  ON pending_messages(status, created_at);
CREATE INDEX IF NOT EXISTS idx_pending_session ON pending_messages(session_id);

CREATE TABLE IF NOT EXISTS entities (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	type          TEXT NOT NULL,
	first_seen_at TEXT NOT NULL,
	last_seen_at  TEXT NOT NULL,
	mention_count INTEGER NOT NULL DEFAULT 1,
	UNIQUE(name, type)
);

CREATE VIRTUAL TABLE IF NOT EXISTS entities_fts USING fts5(
	name, type,
	content='entities',
	content_rowid='rowid',
	tokenize='porter unicode61'
);

CREATE TABLE IF NOT EXISTS entity_relations (
	id             TEXT PRIMARY KEY,
	source_id      TEXT NOT NULL REFERENCES entities(id),
	target_id      TEXT NOT NULL REFERENCES entities(id),
	relationship   TEXT NOT NULL,
	observation_id INTEGER NOT NULL REFERENCES observations(id) ON DELETE CASCADE,
	created_at     TEXT NOT NULL,
	UNIQUE(source_id, target_id, relationship)
);
CREATE INDEX IF NOT EXISTS idx_relations_source ON entity_relations(source_id);
CREATE INDEX IF NOT EXISTS idx_relations_target ON entity_relations(target_id);
CREATE INDEX IF NOT EXISTS idx_relations_obs     ON entity_relations(observation_id);

CREATE TABLE IF NOT EXISTS entity_observations (
	entity_id      TEXT NOT NULL REFERENCES entities(id),
	observation_id INTEGER NOT NULL REFERENCES observations(id),
	PRIMARY KEY (entity_id, observation_id)
);
CREATE INDEX IF NOT EXISTS idx_entity_obs_obs ON entity_observations(observation_id);
`

const triggersV1 = `
CREATE TRIGGER obs_fts_insert AFTER INSERT ON observations BEGIN
	INSERT INTO observations_fts(rowid, title, subtitle, narrative, facts, concepts, files_read, files_modified)
	VALUES (new.id, new.title, new.subtitle, new.narrative, new.facts, new.concepts, new.files_read, new.files_modified);
END;
CREATE TRIGGER obs_fts_delete AFTER DELETE ON observations BEGIN
	INSERT INTO observations_fts(observations_fts, rowid, title, subtitle, narrative, facts, concepts, files_read, files_modified)
	VALUES ('delete', old.id, old.title, old.subtitle, old.narrative, old.facts, old.concepts, old.files_read, old.files_modified);
END;
CREATE TRIGGER obs_fts_update AFTER UPDATE ON observations BEGIN
	INSERT INTO observations_fts(observations_fts, rowid, title, subtitle, narrative, facts, concepts, files_read, files_modified)
	VALUES ('delete', old.id, old.title, old.subtitle, old.narrative, old.facts, old.concepts, old.files_read, old.files_modified);
	INSERT INTO observations_fts(rowid, title, subtitle, narrative, facts, concepts, files_read, files_modified)
	VALUES (new.id, new.title, new.subtitle, new.narrative, new.facts, new.concepts, new.files_read, new.files_modified);
END;

CREATE TRIGGER summary_fts_insert AFTER INSERT ON session_summaries BEGIN
	INSERT INTO summaries_fts(rowid, summary, key_decisions, concepts)
	VALUES (new.id, new.summary, new.key_decisions, new.concepts);
END;
CREATE TRIGGER summary_fts_delete AFTER DELETE ON session_summaries BEGIN
	INSERT INTO summaries_fts(summaries_fts, rowid, summary, key_decisions, concepts)
	VALUES ('delete', old.id, old.summary, old.key_decisions, old.concepts);
END;
CREATE TRIGGER summary_fts_update AFTER UPDATE ON session_summaries BEGIN
	INSERT INTO summaries_fts(summaries_fts, rowid, summary, key_decisions, concepts)
	VALUES ('delete', old.id, old.summary, old.key_decisions, old.concepts);
	INSERT INTO summaries_fts(rowid, summary, key_decisions, concepts)
	VALUES (new.id, new.summary, new.key_decisions, new.concepts);
END;

CREATE TRIGGER entity_fts_insert AFTER INSERT ON entities BEGIN
	INSERT INTO entities_fts(rowid, name, type) VALUES (new.rowid, new.name, new.type);
END;
CREATE TRIGGER entity_fts_delete AFTER DELETE ON entities BEGIN
	INSERT INTO entities_fts(entities_fts, rowid, name, type) VALUES ('delete', old.rowid, old.name, old.type);
END;
CREATE TRIGGER entity_fts_update AFTER UPDATE ON entities BEGIN
	INSERT INTO entities_fts(entities_fts, rowid, name, type) VALUES ('delete', old.rowid, old.name, old.type);
	INSERT INTO entities_fts(rowid, name, type) VALUES (new.rowid, new.name, new.type);
END;
`

// migrate maintains the `_migrations` ledger: select applied versions,
// filter the ordered list down to unapplied ones, sort ascending, and apply
// each in its own transaction (statement then ledger insert) — spec §4.1.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS _migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create ledger: %w", err)
	}

	applied := map[int]bool{}
	rows, err := s.db.Query(`SELECT version FROM _migrations`)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	pending := make([]Migration, 0, len(migrations))
	for _, m := range migrations {
		if !applied[m.Version] {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })

	for _, m := range pending {
		if err := s.applyMigration(m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

func (s *Store) applyMigration(m Migration) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.Up); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT INTO _migrations (version, name, applied_at) VALUES (?, ?, ?)`,
		m.Version, m.Name, Now(),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// addColumnIfNotExists emulates `ALTER TABLE ... ADD COLUMN IF NOT EXISTS`,
// which SQLite lacks, for future migrations that extend an existing table
// rather than creating a new one.
func (s *Store) addColumnIfNotExists(table, column, definition string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notnull    int
			dfltValue  sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
	return err
}
