// Package gildash is the Context & lifecycle component (C8) and the query
// façade (C9): it opens the storage engine, elects a single-writer role,
// wires the incremental indexer, dependency graph cache and watcher
// together, and exposes a synchronous, tagged-result query surface.
//
// Grounded on the teacher's internal/mcp/server.go NewMCPServer/Serve/Close
// shape (fail-fast unwind on partial construction, SIGINT/SIGTERM handling,
// ordered Close) and internal/cli/root.go's signal registration.
package gildash

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/zipbul/gildash/internal/depgraph"
	"github.com/zipbul/gildash/internal/gildasherr"
	"github.com/zipbul/gildash/internal/gildashlog"
	"github.com/zipbul/gildash/internal/indexer"
	"github.com/zipbul/gildash/internal/ownership"
	"github.com/zipbul/gildash/internal/parsecache"
	"github.com/zipbul/gildash/internal/store"
	"github.com/zipbul/gildash/internal/watch"
)

// Config configures a Context at Open, matching spec.md §6's "Configuration
// (at open)" table plus its named collaborator injection points.
type Config struct {
	ProjectRoot        string
	DataDir            string
	DBFile             string
	Extensions         []string
	IgnorePatterns     []string
	ParseCacheCapacity int
	WatchMode          bool
	Semantic           bool
	Logger             gildashlog.Logger

	Parser            indexer.Parser
	SymbolExtractor   indexer.SymbolExtractor
	RelationExtractor indexer.RelationExtractor
	SemanticFactory   SemanticFactory
	PatternSearcher   PatternSearcher
	TsconfigLoader    TsconfigLoader
	DiscoverBoundary  BoundaryDiscoverer

	PID int
}

func (c Config) withDefaults() Config {
	if c.DataDir == "" {
		c.DataDir = ".gildash"
	}
	if c.DBFile == "" {
		c.DBFile = "gildash.db"
	}
	if len(c.Extensions) == 0 {
		c.Extensions = []string{".ts", ".mts", ".cts"}
	}
	if len(c.IgnorePatterns) == 0 {
		c.IgnorePatterns = []string{"**/node_modules/**"}
	}
	if c.ParseCacheCapacity <= 0 {
		c.ParseCacheCapacity = parsecache.DefaultCapacity
	}
	if c.Logger == nil {
		c.Logger = gildashlog.Nop()
	}
	if c.TsconfigLoader == nil {
		c.TsconfigLoader = defaultTsconfigLoader
	}
	if c.DiscoverBoundary == nil {
		c.DiscoverBoundary = defaultDiscoverBoundaries
	}
	if c.PID == 0 {
		c.PID = os.Getpid()
	}
	return c
}

// Context is the open engine instance: the single owner of the DB
// connection, parse cache, timers and graph cache (spec.md §3's "Ownership
// semantics" paragraph).
type Context struct {
	cfg Config

	db        *store.DB
	files     *store.FileRepo
	symbols   *store.SymbolRepo
	relations *store.RelationRepo
	cache     *parsecache.Cache

	boundaries     []ProjectBoundary
	defaultProject string
	pathMappings   map[string]string

	semantic SemanticCollaborator

	mu           sync.Mutex
	closed       bool
	role         ownership.Role
	coordinator  *ownership.Coordinator
	ix           *indexer.Indexer
	watcher      *watch.Watcher
	graph        map[string]*depgraph.Graph
	indexedSubs  map[int]func(indexer.IndexResult)
	nextSubID    int
	sigCh        chan os.Signal
	sigStopOnce  sync.Once
}

// Open implements the nine-step open sequence of spec.md §4.8.
func Open(ctx context.Context, cfg Config) (*Context, error) {
	cfg = cfg.withDefaults()

	// Step 1: validate projectRoot.
	if !filepath.IsAbs(cfg.ProjectRoot) {
		return nil, &gildasherr.Error{Type: gildasherr.Validation, Message: "projectRoot must be absolute"}
	}
	info, err := os.Stat(cfg.ProjectRoot)
	if err != nil || !info.IsDir() {
		return nil, &gildasherr.Error{Type: gildasherr.Validation, Message: "projectRoot does not exist"}
	}

	// Step 2: open DB.
	db, err := store.Open(cfg.ProjectRoot, cfg.DataDir, cfg.DBFile)
	if err != nil {
		return nil, &gildasherr.Error{Type: gildasherr.Store, Message: err.Error(), Cause: err}
	}

	gc := &Context{
		cfg:         cfg,
		db:          db,
		files:       store.NewFileRepo(db),
		symbols:     store.NewSymbolRepo(db),
		relations:   store.NewRelationRepo(db),
		graph:       make(map[string]*depgraph.Graph),
		indexedSubs: make(map[int]func(indexer.IndexResult)),
	}

	// Step 3: discover project boundaries.
	boundaries, err := cfg.DiscoverBoundary(cfg.ProjectRoot)
	if err != nil || len(boundaries) == 0 {
		db.Close()
		msg := "no project boundaries discovered"
		if err != nil {
			msg = err.Error()
		}
		return nil, &gildasherr.Error{Type: gildasherr.Validation, Message: msg, Cause: err}
	}
	gc.boundaries = boundaries
	gc.defaultProject = boundaries[0].Project
	if gc.defaultProject == "" {
		gc.defaultProject = filepath.Base(cfg.ProjectRoot)
	}

	// Step 4: repositories + parse cache.
	cache, err := parsecache.New(cfg.ParseCacheCapacity)
	if err != nil {
		db.Close()
		return nil, &gildasherr.Error{Type: gildasherr.Store, Message: err.Error(), Cause: err}
	}
	gc.cache = cache

	// Step 5: tsconfig path mappings (cache already empty on a fresh open).
	mappings, err := cfg.TsconfigLoader(cfg.ProjectRoot)
	if err != nil {
		cfg.Logger.Warnf("tsconfig load failed, continuing without path mappings: %v", err)
	}
	gc.pathMappings = mappings

	// Step 6: optional semantic collaborator, fail-fast.
	if cfg.Semantic && cfg.SemanticFactory != nil {
		sem, err := cfg.SemanticFactory(ctx)
		if err != nil {
			db.Close()
			return nil, &gildasherr.Error{Type: gildasherr.Semantic, Message: err.Error(), Cause: err}
		}
		gc.semantic = sem
	}

	// Step 7/8: decide role and set up owner or reader infrastructure.
	var role ownership.Role
	aerr := db.ImmediateTransaction(ctx, func(tx store.Execer) error {
		r, err := ownership.AcquireWatcherRole(tx, cfg.PID, ownership.Options{})
		role = r
		return err
	})
	if aerr != nil {
		gc.closeSemanticBestEffort()
		db.Close()
		return nil, &gildasherr.Error{Type: gildasherr.Store, Message: aerr.Error(), Cause: aerr}
	}
	gc.role = role
	gc.coordinator = ownership.New(db, cfg.PID, role, cfg.Logger)

	if role == ownership.RoleOwner {
		if err := gc.setupOwnerInfrastructure(ctx, cfg.WatchMode); err != nil {
			gc.closeSemanticBestEffort()
			db.Close()
			return nil, err
		}
	} else {
		gc.coordinator.OnPromoted = func() error { return gc.setupOwnerInfrastructure(context.Background(), cfg.WatchMode) }
		gc.coordinator.OnSelfClose = func() {
			cfg.Logger.Errorf("too many failed role acquisitions, self-closing")
			_ = gc.Close()
		}
		gc.coordinator.StartHealthCheck()
	}

	// Step 9: signal handlers in watch mode.
	if cfg.WatchMode {
		gc.sigCh = make(chan os.Signal, 1)
		signal.Notify(gc.sigCh, syscall.SIGTERM, syscall.SIGINT)
		go func() {
			if _, ok := <-gc.sigCh; ok {
				if err := gc.Close(); err != nil {
					cfg.Logger.Errorf("close on signal failed: %v", err)
				}
			}
		}()
	}

	return gc, nil
}

// setupOwnerInfrastructure implements spec.md §4.8 step 7's sub-bullets:
// construct the indexer, register the graph-invalidating onIndexed
// listener, optionally start the watcher and heartbeat, then run a full
// index.
func (gc *Context) setupOwnerInfrastructure(ctx context.Context, watchMode bool) error {
	ix := indexer.New(indexer.Config{
		Root:           gc.cfg.ProjectRoot,
		Project:        gc.defaultProject,
		Extensions:     gc.cfg.Extensions,
		IgnorePatterns: gc.cfg.IgnorePatterns,
	}, gc.db, gc.cache, gc.cfg.Parser, gc.cfg.SymbolExtractor, gc.cfg.RelationExtractor, gc.cfg.Logger)
	if gc.semantic != nil {
		ix.SetSemanticCollaborator(gc.semantic)
	}
	ix.SetPathMappings(gc.pathMappings)

	ix.OnIndexed(func(r indexer.IndexResult) {
		gc.mu.Lock()
		delete(gc.graph, gc.defaultProject)
		subs := make([]func(indexer.IndexResult), 0, len(gc.indexedSubs))
		for _, cb := range gc.indexedSubs {
			subs = append(subs, cb)
		}
		gc.mu.Unlock()
		for _, cb := range subs {
			cb(r)
		}
	})

	var w *watch.Watcher
	if watchMode {
		var err error
		w, err = watch.New(gc.cfg.ProjectRoot, gc.cfg.Extensions, gc.cfg.Logger)
		if err != nil {
			return &gildasherr.Error{Type: gildasherr.Index, Message: err.Error(), Cause: err}
		}
		if gc.semantic != nil {
			w.SetSemanticNotifier(gc.semantic)
		}
		if err := w.Start(ctx, ix.HandleWatcherEvent); err != nil {
			return &gildasherr.Error{Type: gildasherr.Index, Message: err.Error(), Cause: err}
		}
	}

	if _, err := ix.FullIndex(ctx); err != nil {
		if w != nil {
			_ = w.Stop()
		}
		return &gildasherr.Error{Type: gildasherr.Index, Message: err.Error(), Cause: err}
	}

	gc.mu.Lock()
	gc.ix = ix
	gc.watcher = w
	gc.role = ownership.RoleOwner
	gc.mu.Unlock()

	if watchMode {
		gc.coordinator.StartHeartbeat()
	}
	return nil
}

func (gc *Context) closeSemanticBestEffort() {
	if gc.semantic != nil {
		_ = gc.semantic.Close()
	}
}

// Role reports the current role ("owner" or "reader").
func (gc *Context) Role() string {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return string(gc.role)
}

// Projects returns a defensive copy of the discovered project boundaries.
func (gc *Context) Projects() []ProjectBoundary {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	out := make([]ProjectBoundary, len(gc.boundaries))
	copy(out, gc.boundaries)
	return out
}

// isClosed is the closed-state guard every façade entry point begins with.
func (gc *Context) isClosed() bool {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.closed
}

// Close implements the ten-step, idempotent close sequence of spec.md §4.8.
// Close order is contractual: coordinator shutdown -> watcher close ->
// release owner -> db close.
func (gc *Context) Close() error {
	gc.mu.Lock()
	if gc.closed {
		gc.mu.Unlock()
		return nil
	}
	gc.closed = true
	sigCh := gc.sigCh
	ix := gc.ix
	w := gc.watcher
	coord := gc.coordinator
	sem := gc.semantic
	gc.mu.Unlock()

	var errs []error

	// Step 2: unregister signal handlers.
	if sigCh != nil {
		gc.sigStopOnce.Do(func() {
			signal.Stop(sigCh)
			close(sigCh)
		})
	}

	// Step 3: dispose semantic layer.
	if sem != nil {
		if err := sem.Close(); err != nil {
			errs = append(errs, fmt.Errorf("semantic close: %w", err))
		}
	}

	// Step 4: coordinator shutdown — stop heartbeat/health-check timers and
	// any pending debounced flush before the watcher that feeds it closes.
	if coord != nil {
		coord.Stop()
	}
	if ix != nil {
		ix.Stop()
	}

	// Step 5: close watcher. Must come after coordinator shutdown (spec
	// scenario S5's [shutdown, watcher.close, releaseRole, db.close]).
	if w != nil {
		if err := w.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("watcher close: %w", err))
		}
	}

	// Step 7: release ownership.
	if err := gc.db.Transaction(context.Background(), func(tx store.Execer) error {
		return ownership.ReleaseWatcherRole(tx, gc.cfg.PID)
	}); err != nil {
		errs = append(errs, fmt.Errorf("release owner: %w", err))
	}

	// Step 8: close DB.
	if err := gc.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("db close: %w", err))
	}

	// Step 9: Close never deletes the database file or its -wal/-shm
	// companions; Config has no cleanup option and the files stay on disk.

	if len(errs) > 0 {
		return &gildasherr.Error{Type: gildasherr.Close, Message: "one or more errors during close", Cause: errs}
	}
	return nil
}

// OnIndexed registers a listener invoked after every indexing batch
// (owner role only fires; readers never index). Returns an unsubscribe
// closure.
func (gc *Context) OnIndexed(cb func(indexer.IndexResult)) func() {
	gc.mu.Lock()
	id := gc.nextIndexedSubID()
	gc.indexedSubs[id] = cb
	gc.mu.Unlock()
	return func() {
		gc.mu.Lock()
		delete(gc.indexedSubs, id)
		gc.mu.Unlock()
	}
}

func (gc *Context) nextIndexedSubID() int {
	id := gc.nextSubID
	gc.nextSubID++
	return id
}

// Reindex implements the `reindex` façade entry: rejects with `index` when
// role != owner, otherwise runs a full index.
func (gc *Context) Reindex(ctx context.Context) gildasherr.Result[indexer.IndexResult] {
	if gc.isClosed() {
		return gildasherr.Fail[indexer.IndexResult](gildasherr.Closed, "context is closed", nil)
	}
	gc.mu.Lock()
	ix := gc.ix
	role := gc.role
	gc.mu.Unlock()
	if role != ownership.RoleOwner || ix == nil {
		return gildasherr.Fail[indexer.IndexResult](gildasherr.Index, "reindex is owner-only", nil)
	}
	result, err := ix.FullIndex(ctx)
	return gildasherr.Wrap(gildasherr.Index, result, err)
}

// graphFor lazily builds (and caches) the dependency graph for project,
// invalidated on every onIndexed batch (spec.md §4.5).
func (gc *Context) graphFor(project string) (*depgraph.Graph, error) {
	gc.mu.Lock()
	if g, ok := gc.graph[project]; ok {
		gc.mu.Unlock()
		return g, nil
	}
	gc.mu.Unlock()

	rels, err := gc.relations.GetByType(project, store.RelationImports)
	if err != nil {
		return nil, err
	}
	edges := make([]depgraph.Edge, 0, len(rels))
	for _, r := range rels {
		edges = append(edges, depgraph.Edge{SrcFilePath: r.SrcFilePath, DstFilePath: r.DstFilePath})
	}
	g := depgraph.Build(edges)

	gc.mu.Lock()
	gc.graph[project] = g
	gc.mu.Unlock()
	return g, nil
}

// effectiveProject implements spec.md §4.9's nullish-coalescing project
// defaulting rule: an explicit empty string is preserved as a distinct
// project name, only a nil pointer falls back to defaultProject.
func (gc *Context) effectiveProject(project *string) string {
	if project != nil {
		return *project
	}
	return gc.defaultProject
}
