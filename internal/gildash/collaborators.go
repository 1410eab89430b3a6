package gildash

import "context"

// TsconfigLoader resolves configured path aliases for projectRoot; the
// default returns no mappings. Re-run at open and whenever the host signals
// a tsconfig change (spec.md §4.4's "Tsconfig path mappings").
type TsconfigLoader func(projectRoot string) (map[string]string, error)

func defaultTsconfigLoader(string) (map[string]string, error) { return nil, nil }

// SemanticFactory builds the optional semantic collaborator; nil disables
// it. Construction failures are fail-fast at open (spec.md §4.8 step 6).
type SemanticFactory func(ctx context.Context) (SemanticCollaborator, error)

// SemanticCollaborator mirrors indexer.SemanticCollaborator at the Context
// boundary so gildash doesn't need to import indexer's collaborator types
// directly into host-facing config.
type SemanticCollaborator interface {
	OnFileChanged(ctx context.Context, filePath string) error
	OnFileDeleted(ctx context.Context, filePath string) error
	Close() error
}

// PatternMatch is one hit from a PatternSearcher.
type PatternMatch struct {
	FilePath string
	Line     int
	Snippet  string
}

// PatternSearcher is the external collaborator behind findPattern
// (spec.md §1 places pattern search over source out of scope for the
// core itself; the façade only forwards to an injected implementation).
type PatternSearcher interface {
	FindPattern(ctx context.Context, pattern, filePathGlob string) ([]PatternMatch, error)
}
