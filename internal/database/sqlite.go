package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/DoctaneDMS/dms-service-sql/internal/database/migrations"
	"github.com/DoctaneDMS/dms-service-sql/internal/database/statement"
	"github.com/DoctaneDMS/dms-service-sql/internal/dms"
	"github.com/DoctaneDMS/dms-service-sql/internal/metrics"
	"github.com/DoctaneDMS/dms-service-sql/internal/repopath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements dms.Database using SQLite.
type SQLiteDatabase struct {
	db      *sql.DB
	path    string
	logger  dms.Logger
	clock   dms.Clock
	ids     dms.IDGenerator
	metrics *metrics.Metrics
}

// Option configures a SQLiteDatabase.
type Option func(*SQLiteDatabase)

func WithLogger(l dms.Logger) Option         { return func(s *SQLiteDatabase) { s.logger = l } }
func WithClock(c dms.Clock) Option           { return func(s *SQLiteDatabase) { s.clock = c } }
func WithIDGenerator(g dms.IDGenerator) Option { return func(s *SQLiteDatabase) { s.ids = g } }
func WithMetrics(m *metrics.Metrics) Option  { return func(s *SQLiteDatabase) { s.metrics = m } }

// NewSQLiteDatabase opens a SQLite database.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDatabase(path string, opts ...Option) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	s := NewSQLiteDatabaseFromDB(db, opts...)
	s.path = path
	return s, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB, opts ...Option) *SQLiteDatabase {
	s := &SQLiteDatabase{
		db:     db,
		logger: dms.NewNopLogger(),
		clock:  dms.RealClock{},
		ids:    dms.RandomIDs{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenConnection opens and configures a SQLite connection pool. Connection
// settings go in the DSN so that every pooled connection gets them.
// path can be a file path or ":memory:" for an in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	memory := path == ":memory:"
	params := []string{"_foreign_keys=on", "_busy_timeout=5000", "_txlock=immediate"}
	if !memory {
		params = append(params, "_journal_mode=WAL", "_synchronous=NORMAL")
	}
	db, err := sql.Open("sqlite3", path+"?"+strings.Join(params, "&"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if memory {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Migrate applies pending schema migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.Up(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.Check(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Begin starts a transaction.
func (s *SQLiteDatabase) Begin(ctx context.Context) (dms.Tx, error) {
	return s.begin(ctx)
}

func (s *SQLiteDatabase) begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return &Tx{tx: tx, s: s}, nil
}

// Links streams the links matching path on a pooled connection.
func (s *SQLiteDatabase) Links(ctx context.Context, path repopath.Path, opts dms.SearchOptions) iter.Seq2[*dms.DocumentLink, error] {
	return search(ctx, s, ProjectLink, path, opts, mapLink)
}

// Folders streams the workspaces matching path on a pooled connection.
func (s *SQLiteDatabase) Folders(ctx context.Context, path repopath.Path, opts dms.SearchOptions) iter.Seq2[*dms.Folder, error] {
	return search(ctx, s, ProjectFolder, path, opts, mapFolder)
}

// Documents streams stored documents on a pooled connection.
func (s *SQLiteDatabase) Documents(ctx context.Context, history bool) iter.Seq2[*dms.Document, error] {
	return func(yield func(*dms.Document, error) bool) {
		stmt, err := documentSearch(history)
		if err != nil {
			yield(nil, err)
			return
		}
		streamPool(ctx, s, stmt, mapDocument, yield)
	}
}

// search resolves the base path of a search, then streams its rows. The
// pooled connection is taken when iteration starts and released when it
// ends.
func search[T any](ctx context.Context, s *SQLiteDatabase, p Projection, path repopath.Path, opts dms.SearchOptions, m statement.RowMapper[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		tmpl, err := searchTemplate(p, path, opts)
		if err != nil {
			yield(zero, err)
			return
		}
		base, ok, err := s.basePath(ctx, s.db, path)
		if err != nil {
			yield(zero, err)
			return
		}
		if !ok {
			return
		}
		stmt := statement.Of(tmpl)
		if p.needsPath() {
			stmt = stmt.BindString("basePath", base.String())
		}
		streamPool(ctx, s, stmt, m, yield)
	}
}

func streamPool[T any](ctx context.Context, s *SQLiteDatabase, stmt statement.Statement, m statement.RowMapper[T], yield func(T, error) bool) {
	rows, err := statement.QueryPool(ctx, stmt, s.db, m, s.logger)
	s.metrics.ObserveStatement("query", err)
	if err != nil {
		var zero T
		yield(zero, err)
		return
	}
	for v, err := range rows.All() {
		if !yield(v, err) {
			return
		}
	}
}

// basePath returns the materialized path of the anchor of path, or the root
// path when it has none. ok is false when the anchor does not exist.
func (s *SQLiteDatabase) basePath(ctx context.Context, q statement.Queryer, path repopath.Path) (repopath.Path, bool, error) {
	anchor, ok := path.RootID()
	if !ok {
		return repopath.Root, true, nil
	}
	return s.pathTo(ctx, q, anchor)
}

// Tx is a unit of work on one connection.
type Tx struct {
	tx *sql.Tx
	s  *SQLiteDatabase
}

func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back a finished transaction is a
// no-op, so it can always be deferred.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rolling back transaction: %w", err)
	}
	return nil
}

func (t *Tx) exec(ctx context.Context, stmt statement.Statement) (int64, error) {
	n, err := stmt.Exec(ctx, t.tx)
	t.s.metrics.ObserveStatement("exec", err)
	return n, err
}

// queryAll runs a query in t and collects every row.
func queryAll[T any](ctx context.Context, t *Tx, stmt statement.Statement, m statement.RowMapper[T]) ([]T, error) {
	rows, err := statement.Query(ctx, stmt, t.tx, m)
	t.s.metrics.ObserveStatement("query", err)
	if err != nil {
		return nil, err
	}
	return rows.Collect()
}

// queryFirst runs a query in t and returns its first row.
func queryFirst[T any](ctx context.Context, t *Tx, stmt statement.Statement, m statement.RowMapper[T]) (T, bool, error) {
	rows, err := statement.Query(ctx, stmt, t.tx, m)
	t.s.metrics.ObserveStatement("query", err)
	if err != nil {
		var zero T
		return zero, false, err
	}
	return rows.First()
}

// Compile-time checks that SQLiteDatabase and Tx implement the dms interfaces
var (
	_ dms.Database = (*SQLiteDatabase)(nil)
	_ dms.Tx       = (*Tx)(nil)
)
