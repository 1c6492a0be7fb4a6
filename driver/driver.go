// Package driver defines the thin collaborator the core uses to reach a
// relational database: connect, prepare named-parameter statements,
// fetch rows, quote identifiers, and report the last generated id. It
// never logs by itself — callers attach a logger.Logger if they want SQL
// events — and it never interprets SQL; it only moves it and binds
// values to it.
package driver

import "context"

// Config is the connection configuration a caller builds and hands to a
// concrete driver constructor. Loading it from a file or environment is
// outside this module's scope.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	FilePath string // SQLite
	DSN      string // overrides the fields above when non-empty
}

// Row is one fetched result row, keyed by the aliased column name the
// planner produced (see the metadata package's aliasing contract).
type Row map[string]any

// Statement is a parameterised statement bound by name, not position.
type Statement interface {
	// Bind attaches a value to a named placeholder (":name" in the SQL
	// the statement was prepared from). Binding an unknown name is not
	// an error; it is simply never used.
	Bind(name string, value any) Statement

	Execute(ctx context.Context) error

	// Fetch returns the next row, or ok=false once exhausted.
	Fetch(ctx context.Context) (row Row, ok bool, err error)

	FetchAll(ctx context.Context) ([]Row, error)

	Close() error
}

// Driver is the mapper core's sole point of contact with a real
// database. One Driver owns one session, used for at most one in-flight
// statement at a time.
type Driver interface {
	Connect(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error

	// Prepare parses sql for ":name" placeholders and readies a
	// Statement; the same sql prepared twice yields independently
	// bindable statements.
	Prepare(ctx context.Context, sql string) (Statement, error)

	// LastInsertID returns the identifier the database assigned to the
	// most recently executed INSERT on this session.
	LastInsertID() (any, error)

	// QuoteIdentifier quotes a single identifier, a dotted qualified
	// name ("t.c"), or passes through "*" and function calls
	// unmodified. Idempotent: quoting an already-quoted identifier is a
	// no-op.
	QuoteIdentifier(name string) string
}

// ReturningInserter is implemented by drivers whose dialect cannot
// report a generated primary key through LastInsertID's default
// sql.Result path (lib/pq has no LastInsertId support at all) and must
// instead have the INSERT rendered with a RETURNING clause, read back
// as an ordinary result row. The orm package's executor type-asserts
// for this before deciding how to recover a generated key.
type ReturningInserter interface {
	// ReturningInsert reports whether this driver needs its INSERTs
	// rendered with a RETURNING clause instead of relying on
	// LastInsertID.
	ReturningInsert() bool
}
