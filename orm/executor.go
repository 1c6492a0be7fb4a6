// Package orm wires the metadata, query, hydrate, identitycache and
// uow packages into the two things application code actually drives:
// the Executors that turn one record into SQL against a driver.Driver,
// and the EntityManager façade that exposes find/persist/update/
// delete/flush.
package orm

import (
	"context"
	"errors"
	"time"

	"github.com/goentity/entitymap/driver"
	"github.com/goentity/entitymap/identitycache"
	"github.com/goentity/entitymap/logger"
	"github.com/goentity/entitymap/metadata"
	"github.com/goentity/entitymap/ormerr"
	"github.com/goentity/entitymap/query"
	"github.com/goentity/entitymap/recordstate"
)

// runPlan renders plan against drv, prepares and binds a Statement, and
// returns it ready for the caller to drive. A SELECT, or an INSERT
// rendered with a RETURNING clause (query.QueryPlan.ReturningColumn),
// reports its own rows back through Fetch/FetchAll — calling Execute on
// those first would just run the statement a second time for nothing,
// so runPlan leaves them unexecuted. Every other action (INSERT without
// RETURNING, UPDATE, DELETE) is executed here and logged.
func runPlan(ctx context.Context, drv driver.Driver, log logger.Logger, plan *query.QueryPlan) (driver.Statement, error) {
	sql, params, err := query.Render(plan, drv.QuoteIdentifier)
	if err != nil {
		return nil, err
	}

	stmt, err := drv.Prepare(ctx, sql)
	if err != nil {
		return nil, &ormerr.PrepareError{SQL: sql, Err: err}
	}
	for name, value := range params {
		stmt.Bind(name, value)
	}

	if plan.Action == query.Select || plan.ReturningColumn != "" {
		return stmt, nil
	}

	start := time.Now()
	if err := stmt.Execute(ctx); err != nil {
		stmt.Close()
		return nil, &ormerr.ExecuteError{SQL: sql, Err: err}
	}
	log.LogSQL(sql, params, float64(time.Since(start).Microseconds())/1000)
	return stmt, nil
}

// executor implements uow.Executor and the write-side operations
// EntityManager.Flush needs, bound to one Driver/identity-cache pair.
type executor struct {
	ctx   context.Context
	drv   driver.Driver
	cache *identitycache.Cache
	state *recordstate.Tracker
	log   logger.Logger
}

func (x *executor) Insert(d *metadata.Descriptor, record any) error {
	plan := query.InsertBuilder(d, record)
	returning := false
	if d.PrimaryKey.Generated {
		if ri, ok := x.drv.(driver.ReturningInserter); ok && ri.ReturningInsert() {
			plan.ReturningColumn = d.PrimaryKey.Column
			returning = true
		}
	}

	stmt, err := runPlan(x.ctx, x.drv, x.log, plan)
	if err != nil {
		return err
	}
	defer stmt.Close()

	switch {
	case returning:
		row, ok, err := stmt.Fetch(x.ctx)
		if err != nil {
			return &ormerr.ExecuteError{SQL: plan.Table, Err: err}
		}
		if !ok {
			return &ormerr.DbError{Statement: "insert_returning", Err: errors.New("no row returned")}
		}
		if err := metadata.SetPrimaryKeyValue(d, record, row[plan.ReturningColumn]); err != nil {
			return err
		}
	case d.PrimaryKey.Generated:
		id, err := x.drv.LastInsertID()
		if err != nil {
			return &ormerr.DbError{Statement: "last_insert_id", Err: err}
		}
		if err := metadata.SetPrimaryKeyValue(d, record, id); err != nil {
			return err
		}
	}

	pk := metadata.PrimaryKeyValue(d, record)
	x.cache.Set(d.TypeID, pk, record)
	x.state.MarkPersisted(record, metadata.Extract(d, record, false))
	return nil
}

func (x *executor) Update(d *metadata.Descriptor, record any) error {
	pk := metadata.PrimaryKeyValue(d, record)
	if pk == nil {
		return &ormerr.MissingIdentifier{TypeID: d.TypeID}
	}
	plan := query.UpdateBuilder(d, record)
	stmt, err := runPlan(x.ctx, x.drv, x.log, plan)
	if err != nil {
		return err
	}
	if err := stmt.Close(); err != nil {
		return err
	}
	x.cache.Set(d.TypeID, pk, record)
	x.state.MarkPersisted(record, metadata.Extract(d, record, false))
	return nil
}

func (x *executor) Delete(d *metadata.Descriptor, record any) error {
	pk := metadata.PrimaryKeyValue(d, record)
	if pk == nil {
		return &ormerr.MissingIdentifier{TypeID: d.TypeID}
	}
	plan := query.DeleteBuilder(d, record)
	stmt, err := runPlan(x.ctx, x.drv, x.log, plan)
	if err != nil {
		return err
	}
	if err := stmt.Close(); err != nil {
		return err
	}
	x.cache.Clear(d.TypeID, pk)
	x.state.ClearPersisted(record)
	return nil
}

func (x *executor) InsertJoinRow(jt *metadata.JoinTable, ownerID, targetID any) error {
	plan := query.InsertJoinRowBuilder(jt, ownerID, targetID)
	stmt, err := runPlan(x.ctx, x.drv, x.log, plan)
	if err != nil {
		return err
	}
	return stmt.Close()
}

func (x *executor) DeleteJoinRow(jt *metadata.JoinTable, ownerID, targetID any) error {
	plan := query.DeleteJoinRowBuilder(jt, ownerID, targetID)
	stmt, err := runPlan(x.ctx, x.drv, x.log, plan)
	if err != nil {
		return err
	}
	return stmt.Close()
}
