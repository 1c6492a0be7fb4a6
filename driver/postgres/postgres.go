// Package postgres is the PostgreSQL concrete driver.Driver, backed by
// lib/pq. Identifiers are double-quoted and placeholders are positional
// "$1", "$2", ... matching the dialect's own conventions. Postgres has
// no driver-level last-insert-id (lib/pq does not implement
// sql.Result.LastInsertId); ReturningInsert tells the orm package's
// executor to render INSERTs with a RETURNING clause and read the
// generated key back as an ordinary result row instead.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/goentity/entitymap/driver"
	"github.com/goentity/entitymap/logger"
)

// Driver is the PostgreSQL implementation of driver.Driver.
type Driver struct {
	cfg driver.Config
	db  *sql.DB
	log logger.Logger
}

func New(cfg driver.Config) *Driver {
	return &Driver{cfg: cfg, log: logger.NewNullLogger()}
}

func (d *Driver) SetLogger(l logger.Logger) {
	if l == nil {
		l = logger.NewNullLogger()
	}
	d.log = l
}

func (d *Driver) dsn() string {
	if d.cfg.DSN != "" {
		return d.cfg.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		d.cfg.Host, d.cfg.Port, d.cfg.User, d.cfg.Password, d.cfg.Database)
}

func (d *Driver) Connect(ctx context.Context) error {
	db, err := sql.Open("postgres", d.dsn())
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return err
	}
	d.db = db
	return nil
}

func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *Driver) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *Driver) nextPlaceholder(index int) string { return fmt.Sprintf("$%d", index+1) }

func (d *Driver) Prepare(ctx context.Context, sqlText string) (driver.Statement, error) {
	rewritten, order := driver.RewriteNamedParams(sqlText, d.nextPlaceholder)
	stmt, err := d.db.PrepareContext(ctx, rewritten)
	if err != nil {
		return nil, err
	}
	return driver.NewStdStatement(stmt, rewritten, order, d.log, nil), nil
}

// LastInsertID is never consulted for this driver: ReturningInsert
// reports true, so the executor recovers a generated primary key from
// the INSERT's own RETURNING row instead.
func (d *Driver) LastInsertID() (any, error) {
	return nil, fmt.Errorf("postgres: LastInsertID unsupported, use RETURNING via ReturningInsert")
}

// ReturningInsert implements driver.ReturningInserter: lib/pq has no
// LastInsertId support, so every generated primary key is recovered via
// an INSERT ... RETURNING clause instead.
func (d *Driver) ReturningInsert() bool { return true }

func (d *Driver) QuoteIdentifier(name string) string {
	return driver.QuoteIdentifierWith(name, `"`, `"`)
}
