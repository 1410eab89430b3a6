// Package indexer is the incremental indexer (C4): full-tree walk,
// fingerprint diff, per-file re-indexing, tombstoning and the
// debounced single-file event pipeline fed by the watcher (C7).
package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zipbul/gildash/internal/gildashlog"
	"github.com/zipbul/gildash/internal/parsecache"
	"github.com/zipbul/gildash/internal/store"
)

// DefaultDebounce matches spec.md §4.4's stated ~100ms default (see
// DESIGN.md's Open Question decision).
const DefaultDebounce = 100 * time.Millisecond

// WatcherEventType enumerates the event kinds C7 forwards.
type WatcherEventType string

const (
	EventCreate WatcherEventType = "create"
	EventUpdate WatcherEventType = "update"
	EventDelete WatcherEventType = "delete"
)

// WatcherEvent is a single filesystem change forwarded by C7.
type WatcherEvent struct {
	FilePath  string
	EventType WatcherEventType
}

// IndexResult is the aggregate summary emitted to onIndexed listeners after
// every indexing batch (spec.md §4.4/glossary).
type IndexResult struct {
	IndexedFiles   int
	RemovedFiles   int
	TotalSymbols   int
	TotalRelations int
	DurationMs     int64
	ChangedFiles   []string
	DeletedFiles   []string
}

// Config configures an Indexer.
type Config struct {
	Root             string
	Project          string
	Extensions       []string
	IgnorePatterns   []string
	DebounceInterval time.Duration
}

// Indexer is the C4 component.
type Indexer struct {
	cfg    Config
	fileIO FileIO
	logger gildashlog.Logger

	db        *store.DB
	files     *store.FileRepo
	symbols   *store.SymbolRepo
	relations *store.RelationRepo
	cache     *parsecache.Cache

	parser            Parser
	symbolExtractor   SymbolExtractor
	relationExtractor RelationExtractor
	semantic          SemanticCollaborator

	mu           sync.Mutex
	pathMappings map[string]string
	listeners    map[int]func(IndexResult)
	nextID       int

	debounceMu sync.Mutex
	pending    map[string]WatcherEventType
	timer      *time.Timer
}

// New builds an Indexer. parser/symbolExtractor/relationExtractor are the
// external collaborators spec.md §1 places out of scope.
func New(cfg Config, db *store.DB, cache *parsecache.Cache, parser Parser, symbolExtractor SymbolExtractor, relationExtractor RelationExtractor, logger gildashlog.Logger) *Indexer {
	if cfg.DebounceInterval <= 0 {
		cfg.DebounceInterval = DefaultDebounce
	}
	if logger == nil {
		logger = gildashlog.Nop()
	}
	return &Indexer{
		cfg:               cfg,
		fileIO:            osFileIO{},
		logger:            logger,
		db:                db,
		files:             store.NewFileRepo(db),
		symbols:           store.NewSymbolRepo(db),
		relations:         store.NewRelationRepo(db),
		cache:             cache,
		parser:            parser,
		symbolExtractor:   symbolExtractor,
		relationExtractor: relationExtractor,
		listeners:         make(map[int]func(IndexResult)),
		pending:           make(map[string]WatcherEventType),
	}
}

// SetSemanticCollaborator attaches an optional semantic layer notified
// best-effort of file changes/deletes.
func (ix *Indexer) SetSemanticCollaborator(s SemanticCollaborator) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.semantic = s
}

// SetPathMappings updates the tsconfig alias table consulted by the
// relation extractor (spec.md §4.4).
func (ix *Indexer) SetPathMappings(m map[string]string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.pathMappings = m
}

// OnIndexed registers a listener for every future IndexResult and returns
// an unsubscribe closure.
func (ix *Indexer) OnIndexed(cb func(IndexResult)) func() {
	ix.mu.Lock()
	id := ix.nextID
	ix.nextID++
	ix.listeners[id] = cb
	ix.mu.Unlock()

	return func() {
		ix.mu.Lock()
		delete(ix.listeners, id)
		ix.mu.Unlock()
	}
}

func (ix *Indexer) emit(result IndexResult) {
	ix.mu.Lock()
	cbs := make([]func(IndexResult), 0, len(ix.listeners))
	for _, cb := range ix.listeners {
		cbs = append(cbs, cb)
	}
	ix.mu.Unlock()
	for _, cb := range cbs {
		cb(result)
	}
}

// FullIndex implements spec.md §4.4's full-index algorithm.
func (ix *Indexer) FullIndex(ctx context.Context) (IndexResult, error) {
	start := time.Now()

	disk, err := discoverFiles(ix.cfg.Root, ix.cfg.Extensions, ix.cfg.IgnorePatterns)
	if err != nil {
		return IndexResult{}, fmt.Errorf("discover files: %w", err)
	}
	diskSet := make(map[string]struct{}, len(disk))
	for _, p := range disk {
		diskSet[p] = struct{}{}
	}

	stored, err := ix.files.GetFilesMap(ix.cfg.Project)
	if err != nil {
		return IndexResult{}, fmt.Errorf("load stored files: %w", err)
	}

	var changed, deleted []string
	var totalSymbols, totalRelations int

	for _, p := range disk {
		prior, existed := stored[p]
		mtimeMs, size, err := ix.fileIO.Stat(joinRoot(ix.cfg.Root, p))
		if err != nil {
			ix.logger.Warnf("stat %s: %v", p, err)
			continue
		}
		if existed && prior.MtimeMs == mtimeMs && prior.Size == size {
			continue
		}

		data, err := ix.fileIO.ReadFile(joinRoot(ix.cfg.Root, p))
		if err != nil {
			ix.logger.Warnf("read %s: %v", p, err)
			continue
		}
		hash := contentHash(data)

		if existed && prior.ContentHash == hash {
			if err := ix.touchFile(p, mtimeMs, size, hash); err != nil {
				ix.logger.Warnf("touch %s: %v", p, err)
			}
			continue
		}

		syms, relCount, err := ix.reindexFile(ctx, p, string(data), hash, mtimeMs, size)
		if err != nil {
			ix.logger.Warnf("reindex %s: %v", p, err)
			continue
		}
		changed = append(changed, p)
		totalSymbols += syms
		totalRelations += relCount
	}

	for p := range stored {
		if _, onDisk := diskSet[p]; onDisk {
			continue
		}
		if err := ix.removeFile(p); err != nil {
			ix.logger.Warnf("delete %s: %v", p, err)
			continue
		}
		deleted = append(deleted, p)
		ix.cache.Invalidate(joinRoot(ix.cfg.Root, p))
	}

	result := IndexResult{
		IndexedFiles:   len(changed),
		RemovedFiles:   len(deleted),
		TotalSymbols:   totalSymbols,
		TotalRelations: totalRelations,
		DurationMs:     time.Since(start).Milliseconds(),
		ChangedFiles:   changed,
		DeletedFiles:   deleted,
	}
	ix.emit(result)
	return result, nil
}

// touchFile implements spec.md §4.4 step 3's "mtime/size changed but content
// hash unchanged" branch: update the file row's mtime/size without
// re-parsing or touching symbols/relations.
func (ix *Indexer) touchFile(relPath string, mtimeMs float64, size int64, hash string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	return ix.db.Transaction(context.Background(), func(tx store.Execer) error {
		// A plain UPDATE, not UpsertFile: INSERT OR REPLACE deletes the row
		// first, and the cascading FKs would drop its symbols and relations.
		_, err := tx.Exec(`UPDATE files SET mtime_ms = ?, size = ?, content_hash = ?, updated_at = ? WHERE project = ? AND file_path = ?`,
			mtimeMs, size, hash, now, ix.cfg.Project, relPath)
		return err
	})
}

func (ix *Indexer) reindexFile(ctx context.Context, relPath, source, hash string, mtimeMs float64, size int64) (symCount, relCount int, err error) {
	parsed, err := ix.parser.Parse(ctx, relPath, source)
	if err != nil {
		return 0, 0, fmt.Errorf("parse: %w", err)
	}
	syms, err := ix.symbolExtractor.ExtractSymbols(parsed)
	if err != nil {
		return 0, 0, fmt.Errorf("extract symbols: %w", err)
	}
	ix.mu.Lock()
	mappings := ix.pathMappings
	ix.mu.Unlock()
	rels, err := ix.relationExtractor.ExtractRelations(parsed, mappings)
	if err != nil {
		return 0, 0, fmt.Errorf("extract relations: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	txErr := ix.db.Transaction(ctx, func(tx store.Execer) error {
		if err := ix.files.UpsertFile(tx, store.FileRecord{
			Project: ix.cfg.Project, FilePath: relPath, MtimeMs: mtimeMs, Size: size,
			ContentHash: hash, UpdatedAt: now,
		}); err != nil {
			return err
		}
		if err := ix.symbols.ReplaceFileSymbols(tx, ix.cfg.Project, relPath, hash, syms); err != nil {
			return err
		}
		return ix.relations.ReplaceFileRelations(tx, ix.cfg.Project, relPath, rels)
	})
	if txErr != nil {
		return 0, 0, txErr
	}

	ix.cache.Set(joinRoot(ix.cfg.Root, relPath), parsecache.Bundle{
		AST: parsed.Root, Errors: parsed.Errors, Comments: parsed.Comments, Source: parsed.Source,
	})

	ix.mu.Lock()
	semantic := ix.semantic
	ix.mu.Unlock()
	if semantic != nil {
		_ = semantic.OnFileChanged(ctx, relPath)
	}

	return len(syms), len(rels), nil
}

func (ix *Indexer) removeFile(relPath string) error {
	return ix.db.Transaction(context.Background(), func(tx store.Execer) error {
		return ix.files.DeleteFile(tx, ix.cfg.Project, relPath)
	})
}

// Stop cancels any pending debounced flush without running it; used during
// Context close so a trailing watcher event doesn't race the DB close.
func (ix *Indexer) Stop() {
	ix.debounceMu.Lock()
	defer ix.debounceMu.Unlock()
	if ix.timer != nil {
		ix.timer.Stop()
		ix.timer = nil
	}
}

// HandleWatcherEvent is C7's entry point into C4: it coalesces repeated
// events for the same path within DebounceInterval (spec.md §4.4's
// event-driven path) before triggering a single-file reindex.
func (ix *Indexer) HandleWatcherEvent(evt WatcherEvent) {
	ix.debounceMu.Lock()
	defer ix.debounceMu.Unlock()

	ix.pending[evt.FilePath] = evt.EventType
	if ix.timer != nil {
		ix.timer.Stop()
	}
	ix.timer = time.AfterFunc(ix.cfg.DebounceInterval, ix.flushPending)
}

// flushPending drains the coalesced event set and reindexes/removes each
// path, emitting one aggregate IndexResult for the whole batch.
func (ix *Indexer) flushPending() {
	ix.debounceMu.Lock()
	batch := ix.pending
	ix.pending = make(map[string]WatcherEventType)
	ix.timer = nil
	ix.debounceMu.Unlock()

	if len(batch) == 0 {
		return
	}

	ctx := context.Background()
	start := time.Now()
	var changed, deleted []string
	var totalSymbols, totalRelations int

	for relPath, evtType := range batch {
		if evtType == EventDelete {
			if err := ix.removeFile(relPath); err != nil {
				ix.logger.Warnf("delete %s: %v", relPath, err)
				continue
			}
			ix.cache.Invalidate(joinRoot(ix.cfg.Root, relPath))
			deleted = append(deleted, relPath)
			continue
		}

		data, err := ix.fileIO.ReadFile(joinRoot(ix.cfg.Root, relPath))
		if err != nil {
			ix.logger.Warnf("read %s: %v", relPath, err)
			continue
		}
		mtimeMs, size, err := ix.fileIO.Stat(joinRoot(ix.cfg.Root, relPath))
		if err != nil {
			ix.logger.Warnf("stat %s: %v", relPath, err)
			continue
		}
		hash := contentHash(data)

		syms, relCount, err := ix.reindexFile(ctx, relPath, string(data), hash, mtimeMs, size)
		if err != nil {
			ix.logger.Warnf("reindex %s: %v", relPath, err)
			continue
		}
		changed = append(changed, relPath)
		totalSymbols += syms
		totalRelations += relCount
	}

	result := IndexResult{
		IndexedFiles:   len(changed),
		RemovedFiles:   len(deleted),
		TotalSymbols:   totalSymbols,
		TotalRelations: totalRelations,
		DurationMs:     time.Since(start).Milliseconds(),
		ChangedFiles:   changed,
		DeletedFiles:   deleted,
	}
	ix.emit(result)
}

func joinRoot(root, rel string) string {
	if root == "" {
		return rel
	}
	return root + string('/') + rel
}
