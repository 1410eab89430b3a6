package gildash

import (
	"context"
	"sort"

	"github.com/zipbul/gildash/internal/depgraph"
	"github.com/zipbul/gildash/internal/gildasherr"
	"github.com/zipbul/gildash/internal/indexer"
	"github.com/zipbul/gildash/internal/parsecache"
	"github.com/zipbul/gildash/internal/store"
)

// SymbolSearchQuery is the host-facing filter set for searchSymbols, mapped
// onto store.SymbolQuery after project defaulting.
type SymbolSearchQuery struct {
	Text         *string
	ExactName    *string
	Project      *string
	Kind         *store.SymbolKind
	FilePath     *string
	IsExported   *bool
	Decorator    *string
	ResolvedType *string
	Regex        *string
	Limit        int
}

func (gc *Context) toStoreSymbolQuery(q SymbolSearchQuery, project string) store.SymbolQuery {
	return store.SymbolQuery{
		FTSQuery:     q.Text,
		ExactName:    q.ExactName,
		Project:      &project,
		Kind:         q.Kind,
		FilePath:     q.FilePath,
		IsExported:   q.IsExported,
		Decorator:    q.Decorator,
		ResolvedType: q.ResolvedType,
		Regex:        q.Regex,
		Limit:        q.Limit,
	}
}

// ParseSource implements parseSource: parse then cache the bundle under
// filePath's absolute path within ProjectRoot.
func (gc *Context) ParseSource(ctx context.Context, filePath, sourceText string) gildasherr.Result[indexer.ParsedAST] {
	if gc.isClosed() {
		return gildasherr.Fail[indexer.ParsedAST](gildasherr.Closed, "context is closed", nil)
	}
	if gc.cfg.Parser == nil {
		return gildasherr.Fail[indexer.ParsedAST](gildasherr.Parse, "no parser collaborator configured", nil)
	}
	parsed, err := gc.cfg.Parser.Parse(ctx, filePath, sourceText)
	if err != nil {
		return gildasherr.Fail[indexer.ParsedAST](gildasherr.Parse, err.Error(), err)
	}
	gc.cache.Set(gc.absPath(filePath), toBundle(parsed))
	return gildasherr.Ok(parsed)
}

// BatchParse implements batchParse: per-file failures are silently excluded
// from the result map rather than failing the whole call (spec.md §7).
func (gc *Context) BatchParse(ctx context.Context, paths map[string]string) gildasherr.Result[map[string]indexer.ParsedAST] {
	if gc.isClosed() {
		return gildasherr.Fail[map[string]indexer.ParsedAST](gildasherr.Closed, "context is closed", nil)
	}
	if gc.cfg.Parser == nil {
		return gildasherr.Fail[map[string]indexer.ParsedAST](gildasherr.Parse, "no parser collaborator configured", nil)
	}
	out := make(map[string]indexer.ParsedAST, len(paths))
	for filePath, source := range paths {
		parsed, err := gc.cfg.Parser.Parse(ctx, filePath, source)
		if err != nil {
			continue
		}
		gc.cache.Set(gc.absPath(filePath), toBundle(parsed))
		out[filePath] = parsed
	}
	return gildasherr.Ok(out)
}

// GetParsedAst implements getParsedAst: a cache-only lookup, never parses.
func (gc *Context) GetParsedAst(filePath string) gildasherr.Result[*indexer.ParsedAST] {
	if gc.isClosed() {
		return gildasherr.Fail[*indexer.ParsedAST](gildasherr.Closed, "context is closed", nil)
	}
	bundle, ok := gc.cache.Get(gc.absPath(filePath))
	if !ok {
		return gildasherr.Ok[*indexer.ParsedAST](nil)
	}
	parsed := indexer.ParsedAST{Root: bundle.AST, Errors: bundle.Errors, Comments: bundle.Comments, Source: bundle.Source}
	return gildasherr.Ok(&parsed)
}

// ExtractSymbols implements extractSymbols, delegating to the injected
// collaborator.
func (gc *Context) ExtractSymbols(parsed indexer.ParsedAST) gildasherr.Result[[]store.SymbolRecord] {
	if gc.isClosed() {
		return gildasherr.Fail[[]store.SymbolRecord](gildasherr.Closed, "context is closed", nil)
	}
	if gc.cfg.SymbolExtractor == nil {
		return gildasherr.Fail[[]store.SymbolRecord](gildasherr.Parse, "no symbol extractor configured", nil)
	}
	syms, err := gc.cfg.SymbolExtractor.ExtractSymbols(parsed)
	return gildasherr.Wrap(gildasherr.Parse, syms, err)
}

// ExtractRelations implements extractRelations, threading the current
// tsconfig path mappings.
func (gc *Context) ExtractRelations(parsed indexer.ParsedAST) gildasherr.Result[[]store.RelationRecord] {
	if gc.isClosed() {
		return gildasherr.Fail[[]store.RelationRecord](gildasherr.Closed, "context is closed", nil)
	}
	if gc.cfg.RelationExtractor == nil {
		return gildasherr.Fail[[]store.RelationRecord](gildasherr.Parse, "no relation extractor configured", nil)
	}
	rels, err := gc.cfg.RelationExtractor.ExtractRelations(parsed, gc.pathMappings)
	return gildasherr.Wrap(gildasherr.Parse, rels, err)
}

// SearchSymbols implements searchSymbols with the project-defaulting rule:
// query.Project ?? defaultProject. A nil Project falls back; an explicit
// pointer to "" is preserved as a distinct project name.
func (gc *Context) SearchSymbols(q SymbolSearchQuery) gildasherr.Result[[]store.SymbolRecord] {
	if gc.isClosed() {
		return gildasherr.Fail[[]store.SymbolRecord](gildasherr.Closed, "context is closed", nil)
	}
	project := gc.effectiveProject(q.Project)
	syms, err := gc.symbols.SearchByQuery(gc.toStoreSymbolQuery(q, project))
	return gildasherr.Wrap(gildasherr.Search, syms, err)
}

// SearchAllSymbols implements searchAllSymbols: project filter is
// unconditionally nil (undefined), searching across every project.
func (gc *Context) SearchAllSymbols(q SymbolSearchQuery) gildasherr.Result[[]store.SymbolRecord] {
	if gc.isClosed() {
		return gildasherr.Fail[[]store.SymbolRecord](gildasherr.Closed, "context is closed", nil)
	}
	sq := store.SymbolQuery{
		FTSQuery: q.Text, ExactName: q.ExactName, Kind: q.Kind, FilePath: q.FilePath,
		IsExported: q.IsExported, Decorator: q.Decorator, ResolvedType: q.ResolvedType,
		Regex: q.Regex, Limit: q.Limit,
	}
	syms, err := gc.symbols.SearchByQuery(sq)
	return gildasherr.Wrap(gildasherr.Search, syms, err)
}

// SearchRelations implements searchRelations with the same project-defaulting
// rule as SearchSymbols.
func (gc *Context) SearchRelations(q store.RelationQuery) gildasherr.Result[[]store.RelationRecord] {
	if gc.isClosed() {
		return gildasherr.Fail[[]store.RelationRecord](gildasherr.Closed, "context is closed", nil)
	}
	project := gc.effectiveProject(q.Project)
	q.Project = &project
	rels, err := gc.relations.SearchRelations(q)
	return gildasherr.Wrap(gildasherr.Search, rels, err)
}

// SearchAllRelations implements searchAllRelations: project filter left nil.
func (gc *Context) SearchAllRelations(q store.RelationQuery) gildasherr.Result[[]store.RelationRecord] {
	if gc.isClosed() {
		return gildasherr.Fail[[]store.RelationRecord](gildasherr.Closed, "context is closed", nil)
	}
	q.Project = nil
	rels, err := gc.relations.SearchRelations(q)
	return gildasherr.Wrap(gildasherr.Search, rels, err)
}

// GetSymbolsByFile implements getSymbolsByFile(filePath): delegates to
// searchSymbols({filePath, limit:10000}) with project explicitly undefined.
func (gc *Context) GetSymbolsByFile(filePath string) gildasherr.Result[[]store.SymbolRecord] {
	if gc.isClosed() {
		return gildasherr.Fail[[]store.SymbolRecord](gildasherr.Closed, "context is closed", nil)
	}
	syms, err := gc.symbols.SearchByQuery(store.SymbolQuery{FilePath: &filePath, Limit: 10000})
	return gildasherr.Wrap(gildasherr.Search, syms, err)
}

// GetInternalRelations implements getInternalRelations(filePath): both src
// and dst fixed to filePath.
func (gc *Context) GetInternalRelations(filePath string) gildasherr.Result[[]store.RelationRecord] {
	if gc.isClosed() {
		return gildasherr.Fail[[]store.RelationRecord](gildasherr.Closed, "context is closed", nil)
	}
	rels, err := gc.relations.SearchRelations(store.RelationQuery{SrcFilePath: &filePath, DstFilePath: &filePath})
	return gildasherr.Wrap(gildasherr.Search, rels, err)
}

// GetFileInfo implements getFileInfo.
func (gc *Context) GetFileInfo(filePath string) gildasherr.Result[*store.FileRecord] {
	if gc.isClosed() {
		return gildasherr.Fail[*store.FileRecord](gildasherr.Closed, "context is closed", nil)
	}
	rec, err := gc.files.GetFile(gc.defaultProject, filePath)
	return gildasherr.Wrap(gildasherr.Store, rec, err)
}

// FileStats summarizes a single indexed file for getFileStats.
type FileStats struct {
	FilePath    string
	SymbolCount int
	LineCount   *int
}

// GetFileStats implements getFileStats.
func (gc *Context) GetFileStats(filePath string) gildasherr.Result[FileStats] {
	if gc.isClosed() {
		return gildasherr.Fail[FileStats](gildasherr.Closed, "context is closed", nil)
	}
	rec, err := gc.files.GetFile(gc.defaultProject, filePath)
	if err != nil {
		return gildasherr.Fail[FileStats](gildasherr.Store, err.Error(), err)
	}
	if rec == nil {
		return gildasherr.Fail[FileStats](gildasherr.Validation, "file not indexed", nil)
	}
	syms, err := gc.symbols.GetFileSymbols(gc.defaultProject, filePath)
	if err != nil {
		return gildasherr.Fail[FileStats](gildasherr.Store, err.Error(), err)
	}
	return gildasherr.Ok(FileStats{FilePath: filePath, SymbolCount: len(syms), LineCount: rec.LineCount})
}

// ListIndexedFiles implements listIndexedFiles.
func (gc *Context) ListIndexedFiles() gildasherr.Result[[]store.FileRecord] {
	if gc.isClosed() {
		return gildasherr.Fail[[]store.FileRecord](gildasherr.Closed, "context is closed", nil)
	}
	files, err := gc.files.GetAllFiles(gc.defaultProject)
	return gildasherr.Wrap(gildasherr.Store, files, err)
}

// GetStats implements getStats.
func (gc *Context) GetStats() gildasherr.Result[store.Stats] {
	if gc.isClosed() {
		return gildasherr.Fail[store.Stats](gildasherr.Closed, "context is closed", nil)
	}
	stats, err := gc.symbols.GetStats(gc.defaultProject)
	return gildasherr.Wrap(gildasherr.Store, stats, err)
}

// GetModuleInterface implements getModuleInterface: the exported symbols of
// one file, the module's public surface.
func (gc *Context) GetModuleInterface(filePath string) gildasherr.Result[[]store.SymbolRecord] {
	if gc.isClosed() {
		return gildasherr.Fail[[]store.SymbolRecord](gildasherr.Closed, "context is closed", nil)
	}
	exported := true
	syms, err := gc.symbols.SearchByQuery(store.SymbolQuery{
		Project: &gc.defaultProject, FilePath: &filePath, IsExported: &exported, Limit: 10000,
	})
	return gildasherr.Wrap(gildasherr.Search, syms, err)
}

// GetDependencies implements getDependencies.
func (gc *Context) GetDependencies(filePath string) gildasherr.Result[[]string] {
	return withGraph(gc, func(g *depgraph.Graph) ([]string, error) {
		return g.GetDependencies(filePath), nil
	})
}

// GetDependents implements getDependents.
func (gc *Context) GetDependents(filePath string) gildasherr.Result[[]string] {
	return withGraph(gc, func(g *depgraph.Graph) ([]string, error) {
		return g.GetDependents(filePath), nil
	})
}

// GetAffected implements getAffected: the union of transitive dependents of
// every input file.
func (gc *Context) GetAffected(filePaths []string) gildasherr.Result[[]string] {
	return withGraph(gc, func(g *depgraph.Graph) ([]string, error) {
		return g.GetAffectedByChange(filePaths), nil
	})
}

// HasCycle implements hasCycle.
func (gc *Context) HasCycle() gildasherr.Result[bool] {
	return withGraph(gc, func(g *depgraph.Graph) (bool, error) {
		return g.HasCycle(), nil
	})
}

// ImportGraphEdge is one edge of getImportGraph's result.
type ImportGraphEdge struct {
	SrcFilePath string
	DstFilePath string
}

// GetImportGraph implements getImportGraph: the full edge list of the
// project's "imports" relations, as consulted by the graph cache.
func (gc *Context) GetImportGraph() gildasherr.Result[[]ImportGraphEdge] {
	if gc.isClosed() {
		return gildasherr.Fail[[]ImportGraphEdge](gildasherr.Closed, "context is closed", nil)
	}
	rels, err := gc.relations.GetByType(gc.defaultProject, store.RelationImports)
	if err != nil {
		return gildasherr.Fail[[]ImportGraphEdge](gildasherr.Search, err.Error(), err)
	}
	edges := make([]ImportGraphEdge, 0, len(rels))
	for _, r := range rels {
		edges = append(edges, ImportGraphEdge{SrcFilePath: r.SrcFilePath, DstFilePath: r.DstFilePath})
	}
	return gildasherr.Ok(edges)
}

// GetTransitiveDependencies implements getTransitiveDependencies: BFS over
// forward adjacency (the dependency direction), excluding filePath itself.
func (gc *Context) GetTransitiveDependencies(filePath string) gildasherr.Result[[]string] {
	return withGraph(gc, func(g *depgraph.Graph) ([]string, error) {
		visited := map[string]struct{}{filePath: {}}
		queue := []string{filePath}
		var out []string
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, dep := range g.GetDependencies(cur) {
				if _, seen := visited[dep]; seen {
					continue
				}
				visited[dep] = struct{}{}
				out = append(out, dep)
				queue = append(queue, dep)
			}
		}
		sort.Strings(out)
		return out, nil
	})
}

// GetCyclePaths implements getCyclePaths.
func (gc *Context) GetCyclePaths(maxCycles int) gildasherr.Result[[][]string] {
	return withGraph(gc, func(g *depgraph.Graph) ([][]string, error) {
		return g.GetCyclePaths(maxCycles), nil
	})
}

// GetFanMetrics implements getFanMetrics.
func (gc *Context) GetFanMetrics(filePath string) gildasherr.Result[depgraph.FanMetrics] {
	return withGraph(gc, func(g *depgraph.Graph) (depgraph.FanMetrics, error) {
		return g.GetFanMetrics(filePath), nil
	})
}

// withGraph is the shared closed-guard plus lazy-graph-build wrapper the
// graph-surfaced façade methods share. A free function, not a method: Go
// methods cannot introduce their own type parameters.
func withGraph[T any](gc *Context, fn func(*depgraph.Graph) (T, error)) gildasherr.Result[T] {
	if gc.isClosed() {
		return gildasherr.Fail[T](gildasherr.Closed, "context is closed", nil)
	}
	g, err := gc.graphFor(gc.defaultProject)
	if err != nil {
		return gildasherr.Fail[T](gildasherr.Search, err.Error(), err)
	}
	v, err := fn(g)
	if err != nil {
		return gildasherr.Fail[T](gildasherr.Search, err.Error(), err)
	}
	return gildasherr.Ok(v)
}

// GetFullSymbol implements getFullSymbol: the full record sharing a
// fingerprint, used to recover every occurrence of an otherwise-duplicated
// declaration.
func (gc *Context) GetFullSymbol(fingerprint string) gildasherr.Result[[]store.SymbolRecord] {
	if gc.isClosed() {
		return gildasherr.Fail[[]store.SymbolRecord](gildasherr.Closed, "context is closed", nil)
	}
	syms, err := gc.symbols.GetByFingerprint(gc.defaultProject, fingerprint)
	return gildasherr.Wrap(gildasherr.Search, syms, err)
}

// ResolveSymbol implements resolveSymbol: follows a single-hop re-export
// chain from (filePath, symbolName), detecting cycles and erroring on one.
func (gc *Context) ResolveSymbol(filePath, symbolName string) gildasherr.Result[store.RelationRecord] {
	if gc.isClosed() {
		return gildasherr.Fail[store.RelationRecord](gildasherr.Closed, "context is closed", nil)
	}
	rels, err := gc.relations.GetOutgoing(gc.defaultProject, filePath, &symbolName)
	if err != nil {
		return gildasherr.Fail[store.RelationRecord](gildasherr.Search, err.Error(), err)
	}
	var next *store.RelationRecord
	for i := range rels {
		if rels[i].Type == store.RelationOther {
			next = &rels[i]
			break
		}
	}
	if next == nil {
		return gildasherr.Fail[store.RelationRecord](gildasherr.Validation, "symbol is not a re-export", nil)
	}

	dstSym := symbolName
	if next.DstSymbolName != nil {
		dstSym = *next.DstSymbolName
	}
	if next.DstFilePath == filePath && dstSym == symbolName {
		return gildasherr.Fail[store.RelationRecord](gildasherr.Validation, "re-export cycle detected", nil)
	}
	return gildasherr.Ok(*next)
}

// HeritageLink is one hop of getHeritageChain's walk.
type HeritageLink struct {
	FilePath   string
	SymbolName string
}

// GetHeritageChain implements getHeritageChain: walks extends/implements
// relations from (filePath, symbolName), cutting cycles with a visited set
// rather than erroring.
func (gc *Context) GetHeritageChain(filePath, symbolName string) gildasherr.Result[[]HeritageLink] {
	if gc.isClosed() {
		return gildasherr.Fail[[]HeritageLink](gildasherr.Closed, "context is closed", nil)
	}
	visited := map[string]struct{}{filePath + "#" + symbolName: {}}
	var chain []HeritageLink
	curFile, curSym := filePath, symbolName

	for {
		rels, err := gc.relations.GetOutgoing(gc.defaultProject, curFile, &curSym)
		if err != nil {
			return gildasherr.Fail[[]HeritageLink](gildasherr.Search, err.Error(), err)
		}
		var next *store.RelationRecord
		for i := range rels {
			if rels[i].Type == store.RelationExtends || rels[i].Type == store.RelationImplements {
				next = &rels[i]
				break
			}
		}
		if next == nil {
			return gildasherr.Ok(chain)
		}
		nextSym := ""
		if next.DstSymbolName != nil {
			nextSym = *next.DstSymbolName
		}
		key := next.DstFilePath + "#" + nextSym
		if _, seen := visited[key]; seen {
			return gildasherr.Ok(chain)
		}
		visited[key] = struct{}{}
		chain = append(chain, HeritageLink{FilePath: next.DstFilePath, SymbolName: nextSym})
		curFile, curSym = next.DstFilePath, nextSym
	}
}

// SymbolDiff is one row of diffSymbols' result.
type SymbolDiff struct {
	Name     string
	FilePath string
	Status   string // "added", "removed", "modified"
	Before   *store.SymbolRecord
	After    *store.SymbolRecord
}

func symbolDiffKey(name, filePath string) string { return filePath + "#" + name }

// DiffSymbols implements diffSymbols per spec.md §4.9/P8: compares by
// (name, filePath); fingerprint equality (including both nil) is unchanged.
func (gc *Context) DiffSymbols(before, after []store.SymbolRecord) []SymbolDiff {
	beforeByKey := make(map[string]store.SymbolRecord, len(before))
	for _, s := range before {
		beforeByKey[symbolDiffKey(s.Name, s.FilePath)] = s
	}
	afterByKey := make(map[string]store.SymbolRecord, len(after))
	for _, s := range after {
		afterByKey[symbolDiffKey(s.Name, s.FilePath)] = s
	}

	var diffs []SymbolDiff
	for key, a := range afterByKey {
		b, existed := beforeByKey[key]
		if !existed {
			acopy := a
			diffs = append(diffs, SymbolDiff{Name: a.Name, FilePath: a.FilePath, Status: "added", After: &acopy})
			continue
		}
		if !fingerprintEqual(b.Fingerprint, a.Fingerprint) {
			bcopy, acopy := b, a
			diffs = append(diffs, SymbolDiff{Name: a.Name, FilePath: a.FilePath, Status: "modified", Before: &bcopy, After: &acopy})
		}
	}
	for key, b := range beforeByKey {
		if _, stillPresent := afterByKey[key]; stillPresent {
			continue
		}
		bcopy := b
		diffs = append(diffs, SymbolDiff{Name: b.Name, FilePath: b.FilePath, Status: "removed", Before: &bcopy})
	}
	return diffs
}

func fingerprintEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// FindPattern implements findPattern, a pure forward to the injected
// PatternSearcher (spec.md §1 places pattern search over raw source out of
// the core's scope).
func (gc *Context) FindPattern(ctx context.Context, pattern, filePathGlob string) gildasherr.Result[[]PatternMatch] {
	if gc.isClosed() {
		return gildasherr.Fail[[]PatternMatch](gildasherr.Closed, "context is closed", nil)
	}
	if gc.cfg.PatternSearcher == nil {
		return gildasherr.Fail[[]PatternMatch](gildasherr.Validation, "no pattern searcher configured", nil)
	}
	matches, err := gc.cfg.PatternSearcher.FindPattern(ctx, pattern, filePathGlob)
	return gildasherr.Wrap(gildasherr.Search, matches, err)
}

func (gc *Context) absPath(relPath string) string {
	return gc.cfg.ProjectRoot + "/" + relPath
}

func toBundle(parsed indexer.ParsedAST) parsecache.Bundle {
	return parsecache.Bundle{AST: parsed.Root, Errors: parsed.Errors, Comments: parsed.Comments, Source: parsed.Source}
}
