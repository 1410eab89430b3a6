package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/mattn/go-sqlite3"
)

// driverName is a dedicated registered driver (rather than the bare
// "sqlite3" string) so the regex callable in §4.1 step 5 can be attached
// via a ConnectHook, following the corpus's convention of registering
// capabilities against a named driver instead of monkey-patching the
// default one.
const driverName = "gildash-sqlite3"

var (
	regexAvailable int32
	registerOnce   sync.Once
)

func registerDriver() {
	registerOnce.Do(func() {
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				err := conn.RegisterFunc("gildash_regexp", func(pattern, value string) (bool, error) {
					re, err := regexp.Compile(pattern)
					if err != nil {
						return false, nil
					}
					return re.MatchString(value), nil
				}, true)
				if err == nil {
					atomic.StoreInt32(&regexAvailable, 1)
				}
				return err
			},
		})
	})
}

// corruptionPattern matches the SQLite error vocabulary spec.md §4.1 names
// for triggering a delete-and-retry-once recovery.
var corruptionPattern = regexp.MustCompile(`(?i)malformed|corrupt|not a database|disk i/o error|sqlite_corrupt`)

// DB wraps the underlying *sql.DB with the transaction-mode contract of
// spec.md §4.1 and the owner-row primitives.
type DB struct {
	conn *sql.DB
	path string

	mu         sync.Mutex
	depth      int       // nesting depth for transaction()/immediateTransaction()
	activeConn *sql.Conn // the *sql.Conn held by the in-flight top-level transaction
}

// Open implements the C1 open sequence: ensure directory, open connection,
// apply per-connection settings, run migrations, set up FTS, register the
// regex callable if available, and retry once on a corruption signature.
func Open(projectRoot, dataDir, dbFile string) (*DB, error) {
	registerDriver()

	dir := filepath.Join(projectRoot, dataDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	path := filepath.Join(dir, dbFile)

	db, err := openOnce(path)
	if err != nil {
		if corruptionPattern.MatchString(err.Error()) {
			if _, statErr := os.Stat(path); statErr == nil {
				removeDBFiles(path)
				db, err = openOnce(path)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
	}

	return &DB{conn: db, path: path}, nil
}

func removeDBFiles(path string) {
	_ = os.Remove(path)
	_ = os.Remove(path + "-wal")
	_ = os.Remove(path + "-shm")
}

func openOnce(path string) (*sql.DB, error) {
	dsn := path + "?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL"
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// RegexAvailable reports whether the regex callable has registered
// successfully on any connection opened through the driver. SymbolRepo's
// regex filter does not consult it: that filter always runs in-process.
func (d *DB) RegexAvailable() bool {
	return atomic.LoadInt32(&regexAvailable) == 1
}

// Path returns the on-disk database file path.
func (d *DB) Path() string { return d.path }

// Conn exposes the raw *sql.DB for repositories to build squirrel queries
// against.
func (d *DB) Conn() *sql.DB { return d.conn }

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// CleanupFiles deletes the db file and its WAL companions. Neither Close
// nor gildash.Context.Close calls it.
func (d *DB) CleanupFiles() {
	removeDBFiles(d.path)
}

// Execer is satisfied by both *sql.DB and *sql.Tx.
type Execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Transaction runs fn inside a transaction. At depth 0 this is a native
// BEGIN/COMMIT; at depth >= 1 it is a SAVEPOINT, matching spec.md §4.1's
// nesting contract for transaction().
func (d *DB) Transaction(ctx context.Context, fn func(tx Execer) error) error {
	return d.runNested(ctx, fn, false)
}

// ImmediateTransaction always acquires the write lock eagerly via BEGIN
// IMMEDIATE at the outermost depth; nested calls behave as a savepoint,
// matching spec.md §4.1's immediateTransaction() contract.
func (d *DB) ImmediateTransaction(ctx context.Context, fn func(tx Execer) error) error {
	return d.runNested(ctx, fn, true)
}

func (d *DB) runNested(ctx context.Context, fn func(tx Execer) error, immediate bool) error {
	d.mu.Lock()
	depth := d.depth
	d.depth++
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.depth--
		d.mu.Unlock()
	}()

	if depth == 0 {
		return d.runTopLevel(ctx, fn, immediate)
	}
	return d.runSavepoint(ctx, fmt.Sprintf("sp_%d", depth), fn)
}

func (d *DB) runTopLevel(ctx context.Context, fn func(tx Execer) error, immediate bool) error {
	conn, err := d.conn.Conn(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.activeConn = conn
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.activeConn = nil
		d.mu.Unlock()
		conn.Close()
	}()

	beginStmt := "BEGIN"
	if immediate {
		beginStmt = "BEGIN IMMEDIATE"
	}
	if _, err := conn.ExecContext(ctx, beginStmt); err != nil {
		return err
	}

	tx := &connTx{conn: conn, ctx: ctx}
	if err := fn(tx); err != nil {
		_, _ = conn.ExecContext(ctx, "ROLLBACK")
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return err
	}
	return nil
}

// runSavepoint runs fn as a SAVEPOINT against the *sql.Conn held by the
// enclosing runTopLevel call, so it sees the same BEGIN/BEGIN IMMEDIATE and
// the same SQLite write lock rather than risking a distinct pooled
// connection from d.conn.
func (d *DB) runSavepoint(ctx context.Context, name string, fn func(tx Execer) error) error {
	d.mu.Lock()
	conn := d.activeConn
	d.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("runSavepoint: no active top-level transaction connection")
	}
	tx := &connTx{conn: conn, ctx: ctx}

	if _, err := tx.Exec("SAVEPOINT " + name); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_, _ = tx.Exec("ROLLBACK TO " + name)
		_, _ = tx.Exec("RELEASE " + name)
		return err
	}
	if _, err := tx.Exec("RELEASE " + name); err != nil {
		return err
	}
	return nil
}

// connTx adapts a *sql.Conn (held for the duration of a top-level
// transaction) to the Execer interface used by repositories.
type connTx struct {
	conn *sql.Conn
	ctx  context.Context
}

func (c *connTx) Exec(query string, args ...any) (sql.Result, error) {
	return c.conn.ExecContext(c.ctx, query, args...)
}

func (c *connTx) Query(query string, args ...any) (*sql.Rows, error) {
	return c.conn.QueryContext(c.ctx, query, args...)
}

func (c *connTx) QueryRow(query string, args ...any) *sql.Row {
	return c.conn.QueryRowContext(c.ctx, query, args...)
}
