package store

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// FileRepo is the C2 file repository.
type FileRepo struct {
	db *DB
}

// NewFileRepo builds a FileRepo over db.
func NewFileRepo(db *DB) *FileRepo { return &FileRepo{db: db} }

// UpsertFile inserts or replaces a file row by (project, filePath), the
// teacher's "OR REPLACE" idiom from internal/storage/file_writer.go.
func (r *FileRepo) UpsertFile(e Execer, rec FileRecord) error {
	q := psql.Insert("files").
		Options("OR REPLACE").
		Columns("project", "file_path", "mtime_ms", "size", "content_hash", "updated_at", "line_count").
		Values(rec.Project, rec.FilePath, rec.MtimeMs, rec.Size, rec.ContentHash, rec.UpdatedAt, rec.LineCount)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return err
	}
	_, err = e.Exec(sqlStr, args...)
	return err
}

// GetFile fetches a single file row, or nil if absent.
func (r *FileRepo) GetFile(project, filePath string) (*FileRecord, error) {
	row := r.db.Conn().QueryRow(
		`SELECT project, file_path, mtime_ms, size, content_hash, updated_at, line_count FROM files WHERE project = ? AND file_path = ?`,
		project, filePath)
	return scanFileRow(row)
}

// GetAllFiles returns every file row for a project.
func (r *FileRepo) GetAllFiles(project string) ([]FileRecord, error) {
	rows, err := r.db.Conn().Query(
		`SELECT project, file_path, mtime_ms, size, content_hash, updated_at, line_count FROM files WHERE project = ?`,
		project)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FileRecord
	for rows.Next() {
		var rec FileRecord
		if err := rows.Scan(&rec.Project, &rec.FilePath, &rec.MtimeMs, &rec.Size, &rec.ContentHash, &rec.UpdatedAt, &rec.LineCount); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetFilesMap returns the stored set S keyed by relative file path, used by
// C4's fingerprint diff (spec.md §4.4 step 2).
func (r *FileRepo) GetFilesMap(project string) (map[string]FileRecord, error) {
	files, err := r.GetAllFiles(project)
	if err != nil {
		return nil, err
	}
	out := make(map[string]FileRecord, len(files))
	for _, f := range files {
		out[f.FilePath] = f
	}
	return out, nil
}

// DeleteFile removes a file row; cascading FKs remove its symbols and
// relations (spec.md invariant 2).
func (r *FileRepo) DeleteFile(e Execer, project, filePath string) error {
	_, err := e.Exec(`DELETE FROM files WHERE project = ? AND file_path = ?`, project, filePath)
	return err
}

func scanFileRow(row *sql.Row) (*FileRecord, error) {
	var rec FileRecord
	if err := row.Scan(&rec.Project, &rec.FilePath, &rec.MtimeMs, &rec.Size, &rec.ContentHash, &rec.UpdatedAt, &rec.LineCount); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}
