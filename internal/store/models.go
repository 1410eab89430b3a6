// Package store is the storage engine (C1) and repository layer (C2): an
// embedded SQLite database with WAL, FTS5 shadow indexing, migrations and
// typed CRUD over files, symbols, relations and the owner row.
package store

// FileRecord is a row of the files table.
type FileRecord struct {
	Project     string
	FilePath    string
	MtimeMs     float64
	Size        int64
	ContentHash string
	UpdatedAt   string
	LineCount   *int
}

// SymbolKind enumerates the symbols.kind column's legal values.
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindClass     SymbolKind = "class"
	KindInterface SymbolKind = "interface"
	KindVariable  SymbolKind = "variable"
	KindConst     SymbolKind = "const"
	KindType      SymbolKind = "type"
	KindEnum      SymbolKind = "enum"
	KindMethod    SymbolKind = "method"
	KindProperty  SymbolKind = "property"
	KindOther     SymbolKind = "other"
)

// SymbolRecord is a row of the symbols table.
type SymbolRecord struct {
	ID           int64
	Project      string
	FilePath     string
	Kind         SymbolKind
	Name         string
	StartLine    int
	StartColumn  int
	EndLine      int
	EndColumn    int
	IsExported   bool
	Signature    *string
	Fingerprint  *string
	DetailJSON   *string
	ContentHash  string
	IndexedAt    string
	ResolvedType *string
}

// RelationType enumerates the relations.type column's legal values.
type RelationType string

const (
	RelationImports    RelationType = "imports"
	RelationCalls      RelationType = "calls"
	RelationExtends    RelationType = "extends"
	RelationImplements RelationType = "implements"
	RelationReferences RelationType = "references"
	RelationOther      RelationType = "other"
)

// RelationRecord is a row of the relations table.
type RelationRecord struct {
	ID            int64
	Project       string
	Type          RelationType
	SrcFilePath   string
	SrcSymbolName *string
	DstProject    string
	DstFilePath   string
	DstSymbolName *string
	MetaJSON      *string
}

// OwnerRecord is the singleton watcher_owner row.
type OwnerRecord struct {
	PID         int
	StartedAt   string
	HeartbeatAt string
}

// Stats summarizes row counts for a project.
type Stats struct {
	SymbolCount int
	FileCount   int
}
