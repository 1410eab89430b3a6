package store

import (
	"regexp"

	sq "github.com/Masterminds/squirrel"
)

// SymbolRepo is the C2 symbol repository.
type SymbolRepo struct {
	db *DB
}

// NewSymbolRepo builds a SymbolRepo over db.
func NewSymbolRepo(db *DB) *SymbolRepo { return &SymbolRepo{db: db} }

// ReplaceFileSymbols is the atomic per-file replace of spec.md §4.2: delete
// all symbol rows for (project, filePath), then insert syms, all within one
// transaction. Passing an empty syms clears the file.
func (r *SymbolRepo) ReplaceFileSymbols(e Execer, project, filePath, contentHash string, syms []SymbolRecord) error {
	if _, err := e.Exec(`DELETE FROM symbols WHERE project = ? AND file_path = ?`, project, filePath); err != nil {
		return err
	}
	for _, s := range syms {
		q := psql.Insert("symbols").
			Columns("project", "file_path", "kind", "name", "start_line", "start_column",
				"end_line", "end_column", "is_exported", "signature", "fingerprint",
				"detail_json", "content_hash", "indexed_at", "resolved_type").
			Values(project, filePath, string(s.Kind), s.Name, s.StartLine, s.StartColumn,
				s.EndLine, s.EndColumn, boolToInt(s.IsExported), s.Signature, s.Fingerprint,
				s.DetailJSON, contentHash, s.IndexedAt, s.ResolvedType)
		sqlStr, args, err := q.ToSql()
		if err != nil {
			return err
		}
		if _, err := e.Exec(sqlStr, args...); err != nil {
			return err
		}
	}
	return nil
}

// DeleteFileSymbols removes every symbol row for (project, filePath).
func (r *SymbolRepo) DeleteFileSymbols(e Execer, project, filePath string) error {
	_, err := e.Exec(`DELETE FROM symbols WHERE project = ? AND file_path = ?`, project, filePath)
	return err
}

// GetFileSymbols returns every symbol row for (project, filePath).
func (r *SymbolRepo) GetFileSymbols(project, filePath string) ([]SymbolRecord, error) {
	return r.SearchByQuery(SymbolQuery{Project: &project, FilePath: &filePath, Limit: 100000})
}

// GetByFingerprint returns symbols sharing a fingerprint within a project.
func (r *SymbolRepo) GetByFingerprint(project, fingerprint string) ([]SymbolRecord, error) {
	rows, err := r.db.Conn().Query(
		`SELECT id, project, file_path, kind, name, start_line, start_column, end_line, end_column,
			is_exported, signature, fingerprint, detail_json, content_hash, indexed_at, resolved_type
		 FROM symbols WHERE project = ? AND fingerprint = ? ORDER BY name`, project, fingerprint)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSymbolRows(rows)
}

// GetStats returns symbol and file counts for project.
func (r *SymbolRepo) GetStats(project string) (Stats, error) {
	var stats Stats
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM symbols WHERE project = ?`, project).Scan(&stats.SymbolCount); err != nil {
		return stats, err
	}
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM files WHERE project = ?`, project).Scan(&stats.FileCount); err != nil {
		return stats, err
	}
	return stats, nil
}

// SymbolQuery is the closed set of filters composed with AND by
// SearchByQuery, matching the filter table in spec.md §4.2.
type SymbolQuery struct {
	FTSQuery     *string
	ExactName    *string
	Project      *string
	Kind         *SymbolKind
	FilePath     *string
	IsExported   *bool
	Decorator    *string
	ResolvedType *string
	Regex        *string
	Limit        int
}

// SearchByQuery is the flexible search entry point of spec.md §4.2.
// Conditions are ANDed; any omitted filter imposes no constraint. The
// regex filter has no SQL condition — it is always applied in-process
// after an over-fetch (see below), whether or not the regex callable is
// registered.
func (r *SymbolRepo) SearchByQuery(q SymbolQuery) ([]SymbolRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	builder := psql.Select("id", "project", "file_path", "kind", "name", "start_line", "start_column",
		"end_line", "end_column", "is_exported", "signature", "fingerprint", "detail_json",
		"content_hash", "indexed_at", "resolved_type").
		From("symbols")

	if q.FTSQuery != nil {
		builder = builder.Where(`id IN (SELECT rowid FROM symbols_fts WHERE symbols_fts MATCH ?)`, *q.FTSQuery)
	}
	if q.ExactName != nil {
		builder = builder.Where(sq.Eq{"name": *q.ExactName})
	}
	if q.Project != nil {
		builder = builder.Where(sq.Eq{"project": *q.Project})
	}
	if q.Kind != nil {
		builder = builder.Where(sq.Eq{"kind": string(*q.Kind)})
	}
	if q.FilePath != nil {
		builder = builder.Where(sq.Eq{"file_path": *q.FilePath})
	}
	if q.IsExported != nil {
		builder = builder.Where(sq.Eq{"is_exported": boolToInt(*q.IsExported)})
	}
	if q.Decorator != nil {
		builder = builder.Where(
			`id IN (SELECT s.id FROM symbols s, json_each(s.detail_json, '$.decorators') je WHERE json_extract(je.value, '$.name') = ?)`,
			*q.Decorator)
	}
	if q.ResolvedType != nil {
		builder = builder.Where(sq.Eq{"resolved_type": *q.ResolvedType})
	}

	effectiveLimit := limit
	if q.Regex != nil {
		effectiveLimit = maxInt(limit*50, 5000)
	}
	builder = builder.OrderBy("name").Limit(uint64(effectiveLimit))

	sqlStr, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Conn().Query(sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results, err := scanSymbolRows(rows)
	if err != nil {
		return nil, err
	}

	if q.Regex == nil {
		return results, nil
	}

	re, err := regexp.Compile(*q.Regex)
	if err != nil {
		// An invalid regex yields an empty result, never an error.
		return nil, nil
	}
	var filtered []SymbolRecord
	for _, s := range results {
		if re.MatchString(s.Name) {
			filtered = append(filtered, s)
			if len(filtered) >= limit {
				break
			}
		}
	}
	return filtered, nil
}

func scanSymbolRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]SymbolRecord, error) {
	var out []SymbolRecord
	for rows.Next() {
		var s SymbolRecord
		var isExported int
		if err := rows.Scan(&s.ID, &s.Project, &s.FilePath, &s.Kind, &s.Name, &s.StartLine, &s.StartColumn,
			&s.EndLine, &s.EndColumn, &isExported, &s.Signature, &s.Fingerprint, &s.DetailJSON,
			&s.ContentHash, &s.IndexedAt, &s.ResolvedType); err != nil {
			return nil, err
		}
		s.IsExported = isExported != 0
		out = append(out, s)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
