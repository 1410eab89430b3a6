package store

import (
	sq "github.com/Masterminds/squirrel"
)

// RelationRepo is the C2 relation repository.
type RelationRepo struct {
	db *DB
}

// NewRelationRepo builds a RelationRepo over db.
func NewRelationRepo(db *DB) *RelationRepo { return &RelationRepo{db: db} }

// ReplaceFileRelations is the transactional delete-by-srcFilePath + insert
// loop of spec.md §4.2; an empty rels just clears.
func (r *RelationRepo) ReplaceFileRelations(e Execer, project, srcFilePath string, rels []RelationRecord) error {
	if _, err := e.Exec(`DELETE FROM relations WHERE project = ? AND src_file_path = ?`, project, srcFilePath); err != nil {
		return err
	}
	for _, rel := range rels {
		q := psql.Insert("relations").
			Columns("project", "type", "src_file_path", "src_symbol_name", "dst_project",
				"dst_file_path", "dst_symbol_name", "meta_json").
			Values(project, string(rel.Type), srcFilePath, rel.SrcSymbolName, rel.DstProject,
				rel.DstFilePath, rel.DstSymbolName, rel.MetaJSON)
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

// DeleteFileRelations removes every relation row whose src_file_path is
// filePath.
func (r *RelationRepo) DeleteFileRelations(e Execer, project, filePath string) error {
	_, err := e.Exec(`DELETE FROM relations WHERE project = ? AND src_file_path = ?`, project, filePath)
	return err
}

// GetOutgoing returns relations from (project, srcFilePath). When
// srcSymbolName is non-nil, rows whose src_symbol_name equals it or IS NULL
// (module-level relations apply to any symbol in the file) are returned.
func (r *RelationRepo) GetOutgoing(project, srcFilePath string, srcSymbolName *string) ([]RelationRecord, error) {
	builder := psql.Select("id", "project", "type", "src_file_path", "src_symbol_name",
		"dst_project", "dst_file_path", "dst_symbol_name", "meta_json").
		From("relations").
		Where(sq.Eq{"project": project, "src_file_path": srcFilePath})
	if srcSymbolName != nil {
		builder = builder.Where("(src_symbol_name = ? OR src_symbol_name IS NULL)", *srcSymbolName)
	}
	return r.query(builder)
}

// GetIncoming returns relations targeting (dstProject, dstFilePath).
func (r *RelationRepo) GetIncoming(dstProject, dstFilePath string) ([]RelationRecord, error) {
	builder := psql.Select("id", "project", "type", "src_file_path", "src_symbol_name",
		"dst_project", "dst_file_path", "dst_symbol_name", "meta_json").
		From("relations").
		Where(sq.Eq{"dst_project": dstProject, "dst_file_path": dstFilePath})
	return r.query(builder)
}

// GetByType returns every relation of type in project.
func (r *RelationRepo) GetByType(project string, relType RelationType) ([]RelationRecord, error) {
	builder := psql.Select("id", "project", "type", "src_file_path", "src_symbol_name",
		"dst_project", "dst_file_path", "dst_symbol_name", "meta_json").
		From("relations").
		Where(sq.Eq{"project": project, "type": string(relType)})
	return r.query(builder)
}

// RelationQuery is the closed filter set for SearchRelations.
type RelationQuery struct {
	Project     *string
	Type        *RelationType
	SrcFilePath *string
	SrcSymbol   *string
	DstFilePath *string
	DstSymbol   *string
	Limit       int
}

// SearchRelations composes AND filters over src/dst file & symbol, type and
// project, matching spec.md §4.2.
func (r *RelationRepo) SearchRelations(q RelationQuery) ([]RelationRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	builder := psql.Select("id", "project", "type", "src_file_path", "src_symbol_name",
		"dst_project", "dst_file_path", "dst_symbol_name", "meta_json").
		From("relations")

	if q.Project != nil {
		builder = builder.Where(sq.Eq{"project": *q.Project})
	}
	if q.Type != nil {
		builder = builder.Where(sq.Eq{"type": string(*q.Type)})
	}
	if q.SrcFilePath != nil {
		builder = builder.Where(sq.Eq{"src_file_path": *q.SrcFilePath})
	}
	if q.SrcSymbol != nil {
		builder = builder.Where(sq.Eq{"src_symbol_name": *q.SrcSymbol})
	}
	if q.DstFilePath != nil {
		builder = builder.Where(sq.Eq{"dst_file_path": *q.DstFilePath})
	}
	if q.DstSymbol != nil {
		builder = builder.Where(sq.Eq{"dst_symbol_name": *q.DstSymbol})
	}
	builder = builder.Limit(uint64(limit))
	return r.query(builder)
}

// RetargetOpts parameterizes RetargetRelations.
type RetargetOpts struct {
	DstProject string
	OldFile    string
	OldSymbol  *string
	NewFile    string
	NewSymbol  *string
}

// RetargetRelations updates dst fields; when OldSymbol is nil the WHERE
// uses IS NULL, otherwise equality, matching spec.md §4.2.
func (r *RelationRepo) RetargetRelations(e Execer, opts RetargetOpts) error {
	if opts.OldSymbol == nil {
		_, err := e.Exec(
			`UPDATE relations SET dst_file_path = ?, dst_symbol_name = ?
			 WHERE dst_project = ? AND dst_file_path = ? AND dst_symbol_name IS NULL`,
			opts.NewFile, opts.NewSymbol, opts.DstProject, opts.OldFile)
		return err
	}
	_, err := e.Exec(
		`UPDATE relations SET dst_file_path = ?, dst_symbol_name = ?
		 WHERE dst_project = ? AND dst_file_path = ? AND dst_symbol_name = ?`,
		opts.NewFile, opts.NewSymbol, opts.DstProject, opts.OldFile, *opts.OldSymbol)
	return err
}

func (r *RelationRepo) query(builder sq.SelectBuilder) ([]RelationRecord, error) {
	sqlStr, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Conn().Query(sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RelationRecord
	for rows.Next() {
		var rel RelationRecord
		if err := rows.Scan(&rel.ID, &rel.Project, &rel.Type, &rel.SrcFilePath, &rel.SrcSymbolName,
			&rel.DstProject, &rel.DstFilePath, &rel.DstSymbolName, &rel.MetaJSON); err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}
