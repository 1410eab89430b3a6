package store

import (
	"database/sql"
	"fmt"
)

// schemaVersion is bumped whenever the DDL below changes shape.
const schemaVersion = 1

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS schema_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS files (
		project TEXT NOT NULL,
		file_path TEXT NOT NULL,
		mtime_ms REAL NOT NULL,
		size INTEGER NOT NULL,
		content_hash TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		line_count INTEGER,
		PRIMARY KEY (project, file_path)
	)`,
	`CREATE TABLE IF NOT EXISTS symbols (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project TEXT NOT NULL,
		file_path TEXT NOT NULL,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		start_line INTEGER NOT NULL,
		start_column INTEGER NOT NULL,
		end_line INTEGER NOT NULL,
		end_column INTEGER NOT NULL,
		is_exported INTEGER NOT NULL DEFAULT 0,
		signature TEXT,
		fingerprint TEXT,
		detail_json TEXT,
		content_hash TEXT NOT NULL,
		indexed_at TEXT NOT NULL,
		resolved_type TEXT,
		FOREIGN KEY (project, file_path) REFERENCES files(project, file_path) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_symbols_project_file ON symbols(project, file_path)`,
	`CREATE INDEX IF NOT EXISTS idx_symbols_project_kind ON symbols(project, kind)`,
	`CREATE INDEX IF NOT EXISTS idx_symbols_project_name ON symbols(project, name)`,
	`CREATE INDEX IF NOT EXISTS idx_symbols_project_fingerprint ON symbols(project, fingerprint)`,
	`CREATE TABLE IF NOT EXISTS relations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project TEXT NOT NULL,
		type TEXT NOT NULL,
		src_file_path TEXT NOT NULL,
		src_symbol_name TEXT,
		dst_project TEXT NOT NULL,
		dst_file_path TEXT NOT NULL,
		dst_symbol_name TEXT,
		meta_json TEXT,
		FOREIGN KEY (project, src_file_path) REFERENCES files(project, file_path) ON DELETE CASCADE,
		FOREIGN KEY (dst_project, dst_file_path) REFERENCES files(project, file_path) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_relations_src ON relations(project, src_file_path)`,
	`CREATE INDEX IF NOT EXISTS idx_relations_dst ON relations(dst_project, dst_file_path)`,
	`CREATE INDEX IF NOT EXISTS idx_relations_type ON relations(project, type)`,
	`CREATE TABLE IF NOT EXISTS watcher_owner (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		pid INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		heartbeat_at TEXT NOT NULL
	)`,
}

// ftsStatements mirrors the teacher's createFTSTriggers: a virtual FTS5
// table over symbols plus the three sync triggers, all created only if
// absent so repeated opens are idempotent.
var ftsStatements = []string{
	`CREATE VIRTUAL TABLE IF NOT EXISTS symbols_fts USING fts5(
		name, file_path UNINDEXED, kind UNINDEXED,
		content='symbols', content_rowid='id'
	)`,
	`CREATE TRIGGER IF NOT EXISTS symbols_fts_insert AFTER INSERT ON symbols BEGIN
		INSERT INTO symbols_fts(rowid, name, file_path, kind) VALUES (new.id, new.name, new.file_path, new.kind);
	END`,
	`CREATE TRIGGER IF NOT EXISTS symbols_fts_delete AFTER DELETE ON symbols BEGIN
		INSERT INTO symbols_fts(symbols_fts, rowid, name, file_path, kind) VALUES ('delete', old.id, old.name, old.file_path, old.kind);
	END`,
	`CREATE TRIGGER IF NOT EXISTS symbols_fts_update AFTER UPDATE ON symbols BEGIN
		INSERT INTO symbols_fts(symbols_fts, rowid, name, file_path, kind) VALUES ('delete', old.id, old.name, old.file_path, old.kind);
		INSERT INTO symbols_fts(rowid, name, file_path, kind) VALUES (new.id, new.name, new.file_path, new.kind);
	END`,
}

// createSchema runs migrations: the base DDL, then the FTS setup script,
// gated on the stored schema_meta version the way the teacher gates
// CreateSchema on cache_metadata's version column.
func createSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer tx.Rollback()

	version, err := getSchemaVersion(tx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version < schemaVersion {
		for _, stmt := range schemaStatements {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("apply schema statement: %w", err)
			}
		}
		for _, stmt := range ftsStatements {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("apply fts statement: %w", err)
			}
		}
		if err := setSchemaVersion(tx, schemaVersion); err != nil {
			return fmt.Errorf("write schema version: %w", err)
		}
	}

	return tx.Commit()
}

func getSchemaVersion(tx *sql.Tx) (int, error) {
	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return 0, err
	}
	var value string
	err := tx.QueryRow(`SELECT value FROM schema_meta WHERE key = 'version'`).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var version int
	if _, err := fmt.Sscanf(value, "%d", &version); err != nil {
		return 0, err
	}
	return version, nil
}

func setSchemaVersion(tx *sql.Tx, version int) error {
	_, err := tx.Exec(`INSERT INTO schema_meta(key, value) VALUES ('version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, fmt.Sprintf("%d", version))
	return err
}
