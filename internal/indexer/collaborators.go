package indexer

import (
	"context"

	"github.com/zipbul/gildash/internal/store"
)

// ParsedAST is the opaque parsed syntax-tree bundle produced by the Parser
// collaborator; the core never inspects its contents directly, only passes
// it on to SymbolExtractor/RelationExtractor.
type ParsedAST struct {
	Root     any
	Errors   []error
	Comments []string
	Source   string
}

// Parser is the external collaborator responsible for turning source text
// into a ParsedAST; parsing itself is out of scope for the core
// (spec.md §1 Non-goals).
type Parser interface {
	Parse(ctx context.Context, filePath, sourceText string) (ParsedAST, error)
}

// SymbolExtractor turns a ParsedAST into symbol records; extraction is an
// external collaborator (spec.md §1 Non-goals).
type SymbolExtractor interface {
	ExtractSymbols(parsed ParsedAST) ([]store.SymbolRecord, error)
}

// RelationExtractor turns a ParsedAST into relation records, resolving
// import targets through pathMappings (tsconfig path aliases).
type RelationExtractor interface {
	ExtractRelations(parsed ParsedAST, pathMappings map[string]string) ([]store.RelationRecord, error)
}

// SemanticCollaborator is notified (best-effort) of file changes/deletes so
// a semantic layer can stay in sync; its own initialization/query failures
// surface as the "semantic" error type at the façade boundary.
type SemanticCollaborator interface {
	OnFileChanged(ctx context.Context, filePath string) error
	OnFileDeleted(ctx context.Context, filePath string) error
}

// FileIO is the narrow read/stat collaborator boundary, injectable for
// tests.
type FileIO interface {
	ReadFile(path string) ([]byte, error)
	Stat(path string) (mtimeMs float64, size int64, err error)
}
