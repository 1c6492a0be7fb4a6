// Package mysql is the MySQL concrete driver.Driver, backed by
// go-sql-driver/mysql. Identifiers are backtick-quoted and placeholders
// are positional "?", matching the dialect's own conventions.
package mysql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/goentity/entitymap/driver"
	"github.com/goentity/entitymap/logger"
)

// Driver is the MySQL implementation of driver.Driver.
type Driver struct {
	cfg    driver.Config
	db     *sql.DB
	log    logger.Logger
	lastID int64
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
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", d.cfg.User, d.cfg.Password, d.cfg.Host, d.cfg.Port, d.cfg.Database)
}

func (d *Driver) Connect(ctx context.Context) error {
	db, err := sql.Open("mysql", d.dsn())
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

func (d *Driver) nextPlaceholder(int) string { return "?" }

func (d *Driver) Prepare(ctx context.Context, sqlText string) (driver.Statement, error) {
	rewritten, order := driver.RewriteNamedParams(sqlText, d.nextPlaceholder)
	stmt, err := d.db.PrepareContext(ctx, rewritten)
	if err != nil {
		return nil, err
	}
	return driver.NewStdStatement(stmt, rewritten, order, d.log, func(result sql.Result) {
		if id, err := result.LastInsertId(); err == nil {
			d.lastID = id
		}
	}), nil
}

func (d *Driver) LastInsertID() (any, error) {
	return d.lastID, nil
}

func (d *Driver) QuoteIdentifier(name string) string {
	return driver.QuoteIdentifierWith(name, "`", "`")
}
