package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zipbul/gildash/internal/parsecache"
	"github.com/zipbul/gildash/internal/store"
)

type countingParser struct {
	mu    sync.Mutex
	calls int
}

func (p *countingParser) Parse(ctx context.Context, filePath, sourceText string) (ParsedAST, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return ParsedAST{Source: sourceText}, nil
}

func (p *countingParser) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeSymbolExtractor struct{}

func (fakeSymbolExtractor) ExtractSymbols(parsed ParsedAST) ([]store.SymbolRecord, error) {
	return []store.SymbolRecord{
		{Kind: store.KindFunction, Name: "fn", IndexedAt: "t"},
	}, nil
}

type fakeRelationExtractor struct{}

func (fakeRelationExtractor) ExtractRelations(parsed ParsedAST, pathMappings map[string]string) ([]store.RelationRecord, error) {
	return nil, nil
}

func newTestIndexer(t *testing.T, root string, parser *countingParser) (*Indexer, *store.DB) {
	t.Helper()
	db, err := store.OpenTestDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cache, err := parsecache.New(0)
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	return New(Config{
		Root:             root,
		Project:          "p",
		Extensions:       []string{".ts"},
		DebounceInterval: 20 * time.Millisecond,
	}, db, cache, parser, fakeSymbolExtractor{}, fakeRelationExtractor{}, nil), db
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, rel), []byte(content), 0o644))
}

func TestFullIndexIndexesNewFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.ts", "alpha")
	writeFile(t, root, "b.ts", "beta")
	parser := &countingParser{}
	ix, db := newTestIndexer(t, root, parser)

	result, err := ix.FullIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.IndexedFiles)
	assert.Equal(t, 2, result.TotalSymbols)
	assert.Equal(t, 2, parser.count())

	files, err := store.NewFileRepo(db).GetAllFiles("p")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestFullIndexSkipsUnchangedByMtime(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.ts", "alpha")
	parser := &countingParser{}
	ix, _ := newTestIndexer(t, root, parser)

	_, err := ix.FullIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, parser.count())

	result, err := ix.FullIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.IndexedFiles)
	assert.Equal(t, 1, parser.count())
}

func TestFullIndexTouchesOnHashMatchDespiteMtimeChange(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.ts", "alpha")
	parser := &countingParser{}
	ix, db := newTestIndexer(t, root, parser)

	_, err := ix.FullIndex(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, parser.count())

	newMtime := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "a.ts"), newMtime, newMtime))

	result, err := ix.FullIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.IndexedFiles)
	assert.Equal(t, 1, parser.count(), "content-hash match must not re-parse")

	rec, err := store.NewFileRepo(db).GetFile("p", "a.ts")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, float64(newMtime.UnixMilli()), rec.MtimeMs)
}

func TestFullIndexTombstonesDeletedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.ts", "alpha")
	writeFile(t, root, "b.ts", "beta")
	parser := &countingParser{}
	ix, db := newTestIndexer(t, root, parser)

	_, err := ix.FullIndex(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "b.ts")))

	result, err := ix.FullIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.RemovedFiles)
	assert.Equal(t, []string{"b.ts"}, result.DeletedFiles)

	rec, err := store.NewFileRepo(db).GetFile("p", "b.ts")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestHandleWatcherEventDebouncesRepeatedEvents(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.ts", "v1")
	parser := &countingParser{}
	ix, _ := newTestIndexer(t, root, parser)

	results := make(chan IndexResult, 4)
	ix.OnIndexed(func(r IndexResult) { results <- r })

	ix.HandleWatcherEvent(WatcherEvent{FilePath: "a.ts", EventType: EventCreate})
	ix.HandleWatcherEvent(WatcherEvent{FilePath: "a.ts", EventType: EventUpdate})
	ix.HandleWatcherEvent(WatcherEvent{FilePath: "a.ts", EventType: EventUpdate})

	select {
	case r := <-results:
		assert.Equal(t, 1, r.IndexedFiles)
		assert.Equal(t, []string{"a.ts"}, r.ChangedFiles)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for debounced index result")
	}
	assert.Equal(t, 1, parser.count(), "three coalesced events must produce one parse")
}

func TestHandleWatcherEventDelete(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.ts", "v1")
	parser := &countingParser{}
	ix, db := newTestIndexer(t, root, parser)

	_, err := ix.FullIndex(context.Background())
	require.NoError(t, err)

	results := make(chan IndexResult, 1)
	ix.OnIndexed(func(r IndexResult) { results <- r })
	ix.HandleWatcherEvent(WatcherEvent{FilePath: "a.ts", EventType: EventDelete})

	select {
	case r := <-results:
		assert.Equal(t, 1, r.RemovedFiles)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delete result")
	}

	rec, err := store.NewFileRepo(db).GetFile("p", "a.ts")
	require.NoError(t, err)
	assert.Nil(t, rec)
}
