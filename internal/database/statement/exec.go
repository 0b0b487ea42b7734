package statement

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
)

// Execer runs statements; *sql.DB, *sql.Tx and *sql.Conn satisfy it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Queryer runs queries; *sql.DB, *sql.Tx and *sql.Conn satisfy it.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Scanner is the row interface handed to mappers.
type Scanner interface {
	Scan(dest ...any) error
}

// RowMapper converts the current row to a value.
type RowMapper[T any] func(Scanner) (T, error)

// Logger receives cleanup failures that must not mask the primary error.
type Logger interface {
	Warn(msg string, args ...any)
}

var openConnections atomic.Int64

// OpenConnections reports how many managed connections are currently held
// by unclosed result streams.
func OpenConnections() int64 { return openConnections.Load() }

// Exec runs s and returns the number of rows affected.
func (s Statement) Exec(ctx context.Context, db Execer) (int64, error) {
	args, err := s.Args()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, s.tmpl.Text, args...)
	if err != nil {
		return 0, fmt.Errorf("executing statement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return n, nil
}

// Query runs s on a caller-owned connection or transaction. The caller must
// Close the returned rows.
func Query[T any](ctx context.Context, s Statement, q Queryer, m RowMapper[T]) (*Rows[T], error) {
	args, err := s.Args()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, s.tmpl.Text, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return &Rows[T]{rows: rows, mapper: m}, nil
}

// QueryPool runs s on a connection taken from db. The connection stays
// checked out until the returned rows are closed, and is released exactly
// once whether the rows were drained, abandoned or failed.
func QueryPool[T any](ctx context.Context, s Statement, db *sql.DB, m RowMapper[T], log Logger) (*Rows[T], error) {
	args, err := s.Args()
	if err != nil {
		return nil, err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	openConnections.Add(1)
	release := func() error {
		openConnections.Add(-1)
		return conn.Close()
	}

	rows, err := conn.QueryContext(ctx, s.tmpl.Text, args...)
	if err != nil {
		if cerr := release(); cerr != nil && log != nil {
			log.Warn("releasing connection", "error", cerr)
		}
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return &Rows[T]{rows: rows, mapper: m, release: release, log: log}, nil
}

// Rows is a lazily mapped result stream.
type Rows[T any] struct {
	rows    *sql.Rows
	mapper  RowMapper[T]
	release func() error
	log     Logger

	cur  T
	err  error
	once sync.Once
	cerr error
}

// Next advances to the next row. It closes the stream when the rows are
// exhausted or a row fails to map.
func (r *Rows[T]) Next() bool {
	if r.err != nil {
		return false
	}
	if !r.rows.Next() {
		r.err = r.rows.Err()
		r.Close()
		return false
	}
	v, err := r.mapper(r.rows)
	if err != nil {
		r.err = fmt.Errorf("mapping row: %w", err)
		r.Close()
		return false
	}
	r.cur = v
	return true
}

// Value returns the row read by the last successful Next.
func (r *Rows[T]) Value() T { return r.cur }

// Err returns the first error met while iterating.
func (r *Rows[T]) Err() error { return r.err }

// Close releases the cursor and, for managed rows, the connection. Only the
// first call has any effect.
func (r *Rows[T]) Close() error {
	r.once.Do(func() {
		r.cerr = r.rows.Close()
		if r.release != nil {
			if err := r.release(); err != nil {
				if r.log != nil {
					r.log.Warn("releasing connection", "error", err)
				}
				if r.cerr == nil {
					r.cerr = err
				}
			}
		}
	})
	return r.cerr
}

// All iterates the stream, yielding a final error if iteration failed. The
// stream is closed when the loop ends, including on break.
func (r *Rows[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer r.Close()
		for r.Next() {
			if !yield(r.cur, nil) {
				return
			}
		}
		if r.err != nil {
			var zero T
			yield(zero, r.err)
		}
	}
}

// Collect drains the stream into a slice.
func (r *Rows[T]) Collect() ([]T, error) {
	defer r.Close()
	var out []T
	for r.Next() {
		out = append(out, r.cur)
	}
	return out, r.err
}

// First returns the first row, if any, and closes the stream.
func (r *Rows[T]) First() (T, bool, error) {
	defer r.Close()
	if r.Next() {
		return r.cur, true, nil
	}
	var zero T
	return zero, false, r.err
}
