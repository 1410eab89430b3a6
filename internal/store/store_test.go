package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenTestDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestFileRepoUpsertAndGet(t *testing.T) {
	db := newTestDB(t)
	files := NewFileRepo(db)

	rec := FileRecord{Project: "p", FilePath: "a.ts", MtimeMs: 1, Size: 10, ContentHash: "h1", UpdatedAt: "t1"}
	require.NoError(t, files.UpsertFile(db.Conn(), rec))

	got, err := files.GetFile("p", "a.ts")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "h1", got.ContentHash)

	rec.ContentHash = "h2"
	require.NoError(t, files.UpsertFile(db.Conn(), rec))
	got, err = files.GetFile("p", "a.ts")
	require.NoError(t, err)
	assert.Equal(t, "h2", got.ContentHash)
}

func TestSymbolReplaceIsAtomicPerFile(t *testing.T) {
	db := newTestDB(t)
	files := NewFileRepo(db)
	symbols := NewSymbolRepo(db)

	require.NoError(t, files.UpsertFile(db.Conn(), FileRecord{Project: "p", FilePath: "a.ts", ContentHash: "h1", UpdatedAt: "t"}))
	require.NoError(t, symbols.ReplaceFileSymbols(db.Conn(), "p", "a.ts", "h1", []SymbolRecord{
		{Kind: KindFunction, Name: "helper", IndexedAt: "t"},
	}))

	got, err := symbols.GetFileSymbols("p", "a.ts")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "helper", got[0].Name)

	// Replacing with an empty slice clears the file's symbols.
	require.NoError(t, symbols.ReplaceFileSymbols(db.Conn(), "p", "a.ts", "h2", nil))
	got, err = symbols.GetFileSymbols("p", "a.ts")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeleteFileCascades(t *testing.T) {
	db := newTestDB(t)
	files := NewFileRepo(db)
	symbols := NewSymbolRepo(db)
	relations := NewRelationRepo(db)

	require.NoError(t, files.UpsertFile(db.Conn(), FileRecord{Project: "p", FilePath: "a.ts", ContentHash: "h1", UpdatedAt: "t"}))
	require.NoError(t, files.UpsertFile(db.Conn(), FileRecord{Project: "p", FilePath: "b.ts", ContentHash: "h1", UpdatedAt: "t"}))
	require.NoError(t, symbols.ReplaceFileSymbols(db.Conn(), "p", "a.ts", "h1", []SymbolRecord{
		{Kind: KindFunction, Name: "helper", IndexedAt: "t"},
	}))
	require.NoError(t, relations.ReplaceFileRelations(db.Conn(), "p", "a.ts", []RelationRecord{
		{Type: RelationImports, DstProject: "p", DstFilePath: "b.ts"},
	}))

	require.NoError(t, files.DeleteFile(db.Conn(), "p", "a.ts"))

	syms, err := symbols.GetFileSymbols("p", "a.ts")
	require.NoError(t, err)
	assert.Empty(t, syms)

	rels, err := relations.GetOutgoing("p", "a.ts", nil)
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestFTSSearchFindsSymbolByPrefix(t *testing.T) {
	db := newTestDB(t)
	files := NewFileRepo(db)
	symbols := NewSymbolRepo(db)

	require.NoError(t, files.UpsertFile(db.Conn(), FileRecord{Project: "p", FilePath: "a.ts", ContentHash: "h1", UpdatedAt: "t"}))
	require.NoError(t, symbols.ReplaceFileSymbols(db.Conn(), "p", "a.ts", "h1", []SymbolRecord{
		{Kind: KindFunction, Name: "helper", IsExported: true, IndexedAt: "t"},
	}))

	fts := "help*"
	results, err := symbols.SearchByQuery(SymbolQuery{FTSQuery: &fts, Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "helper", results[0].Name)
	assert.True(t, results[0].IsExported)
}

func TestSearchByQueryInvalidRegexReturnsEmpty(t *testing.T) {
	db := newTestDB(t)
	symbols := NewSymbolRepo(db)

	bad := "("
	results, err := symbols.SearchByQuery(SymbolQuery{Regex: &bad, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestOwnerPrimitives(t *testing.T) {
	db := newTestDB(t)

	owner, err := SelectOwner(db.Conn())
	require.NoError(t, err)
	assert.Nil(t, owner)

	require.NoError(t, InsertOwner(db.Conn(), 100, "t0"))
	owner, err = SelectOwner(db.Conn())
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, 100, owner.PID)

	require.NoError(t, TouchOwner(db.Conn(), 100, "t1"))
	owner, err = SelectOwner(db.Conn())
	require.NoError(t, err)
	assert.Equal(t, "t1", owner.HeartbeatAt)

	assert.Error(t, TouchOwner(db.Conn(), 999, "t2"))

	require.NoError(t, ReplaceOwner(db.Conn(), 200, "t3"))
	owner, err = SelectOwner(db.Conn())
	require.NoError(t, err)
	assert.Equal(t, 200, owner.PID)

	require.NoError(t, DeleteOwner(db.Conn(), 200))
	owner, err = SelectOwner(db.Conn())
	require.NoError(t, err)
	assert.Nil(t, owner)
}

func TestNestedTransactionUsesSavepoint(t *testing.T) {
	db := newTestDB(t)
	files := NewFileRepo(db)
	ctx := context.Background()

	err := db.Transaction(ctx, func(tx Execer) error {
		require.NoError(t, files.UpsertFile(tx, FileRecord{Project: "p", FilePath: "a.ts", ContentHash: "h1", UpdatedAt: "t"}))
		return db.Transaction(ctx, func(inner Execer) error {
			return files.UpsertFile(inner, FileRecord{Project: "p", FilePath: "b.ts", ContentHash: "h1", UpdatedAt: "t"})
		})
	})
	require.NoError(t, err)

	all, err := files.GetAllFiles("p")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	files := NewFileRepo(db)
	ctx := context.Background()

	sentinel := assert.AnError
	err := db.Transaction(ctx, func(tx Execer) error {
		require.NoError(t, files.UpsertFile(tx, FileRecord{Project: "p", FilePath: "a.ts", ContentHash: "h1", UpdatedAt: "t"}))
		return sentinel
	})
	assert.Equal(t, sentinel, err)

	all, err := files.GetAllFiles("p")
	require.NoError(t, err)
	assert.Empty(t, all)
}
