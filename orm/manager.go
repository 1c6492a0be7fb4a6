package orm

import (
	"context"
	"fmt"
	"strconv"

	"github.com/goentity/entitymap/driver"
	"github.com/goentity/entitymap/hydrate"
	"github.com/goentity/entitymap/identitycache"
	"github.com/goentity/entitymap/logger"
	"github.com/goentity/entitymap/metadata"
	"github.com/goentity/entitymap/query"
	"github.com/goentity/entitymap/recordstate"
	"github.com/goentity/entitymap/relation"
	"github.com/goentity/entitymap/uow"
)

// EntityManager is the façade application code drives: finds, a
// schedule of pending writes, and a flush that commits them through a
// UnitOfWork. One EntityManager owns one identity cache and one
// UnitOfWork — create a fresh one per logical session (e.g. per
// request) and never share it across goroutines.
type EntityManager struct {
	drv      driver.Driver
	registry *metadata.Registry
	cache    *identitycache.Cache
	state    *recordstate.Tracker
	hydrator *hydrate.Hydrator
	work     *uow.UnitOfWork
	log      logger.Logger
}

// New builds an EntityManager over drv, resolving entity types through
// registry. log may be nil, in which case SQL events are discarded.
func New(drv driver.Driver, registry *metadata.Registry, log logger.Logger) *EntityManager {
	if log == nil {
		log = logger.NewNullLogger()
	}
	em := &EntityManager{drv: drv, registry: registry, cache: identitycache.New(), state: recordstate.New(), log: log}
	em.hydrator = hydrate.New(registry, em.cache, em, em.state)
	em.work = uow.New(registry, em.state)
	return em
}

// FindBy returns the first record of typeID matching criteria, or nil
// if none matched. A plain primary-key lookup (no eager joins
// requested) is served straight from the identity cache when the
// record is already known, skipping the SELECT entirely.
func (em *EntityManager) FindBy(ctx context.Context, typeID string, criteria query.Criteria, opts query.Options) (any, error) {
	if pk, ok := criteria.PrimaryKeyScalar(); ok && len(opts.Joins) == 0 {
		d, err := em.registry.Parse(typeID)
		if err != nil {
			return nil, err
		}
		if record, ok := em.cache.Get(d.TypeID, pk); ok {
			return record, nil
		}
	}

	records, err := em.FindAll(ctx, typeID, criteria, opts)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// FindAll returns every record of typeID matching criteria, hydrated
// (and, for eager relations spanning several physical rows, merged)
// through the session's identity cache.
func (em *EntityManager) FindAll(ctx context.Context, typeID string, criteria query.Criteria, opts query.Options) ([]any, error) {
	d, err := em.registry.Parse(typeID)
	if err != nil {
		return nil, err
	}
	plan, err := query.SelectBuilder(em.registry, d, criteria, opts)
	if err != nil {
		return nil, err
	}
	stmt, err := runPlan(ctx, em.drv, em.log, plan)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	rows, err := stmt.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	return em.hydrateRows(d, rows)
}

// StreamBy fetches rows one at a time and invokes fn with each newly
// seen record, without materialising the whole result set. A to-many
// eager relation that fans a root out across several rows may still be
// incomplete at the moment fn first sees that root — prefer FindAll
// when a relation declared Eager must be fully populated.
func (em *EntityManager) StreamBy(ctx context.Context, typeID string, criteria query.Criteria, opts query.Options, fn func(any) error) error {
	d, err := em.registry.Parse(typeID)
	if err != nil {
		return err
	}
	plan, err := query.SelectBuilder(em.registry, d, criteria, opts)
	if err != nil {
		return err
	}
	stmt, err := runPlan(ctx, em.drv, em.log, plan)
	if err != nil {
		return err
	}
	defer stmt.Close()

	seen := map[any]bool{}
	for {
		row, ok, err := stmt.Fetch(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		rec, err := em.hydrator.Hydrate(d, row)
		if err != nil {
			return err
		}
		if rec == nil || seen[rec] {
			continue
		}
		seen[rec] = true
		if err := fn(rec); err != nil {
			return err
		}
	}
}

// StreamAll streams every record of typeID.
func (em *EntityManager) StreamAll(ctx context.Context, typeID string, opts query.Options, fn func(any) error) error {
	return em.StreamBy(ctx, typeID, query.None(), opts, fn)
}

// CountBy returns the number of rows of typeID matching criteria.
func (em *EntityManager) CountBy(ctx context.Context, typeID string, criteria query.Criteria, opts query.Options) (int64, error) {
	d, err := em.registry.Parse(typeID)
	if err != nil {
		return 0, err
	}
	plan, err := query.CountBuilder(em.registry, d, criteria, opts)
	if err != nil {
		return 0, err
	}
	stmt, err := runPlan(ctx, em.drv, em.log, plan)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	row, ok, err := stmt.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return asInt64(row["count"])
}

// Persist schedules record for insertion on the next Flush, cascading
// to any loaded relation declared cascade=persist.
func (em *EntityManager) Persist(record any) error { return em.work.ScheduleInsert(record) }

// Update schedules record for an UPDATE on the next Flush.
func (em *EntityManager) Update(record any) error { return em.work.ScheduleUpdate(record) }

// Delete schedules record for removal on the next Flush, cascading to
// any loaded relation declared cascade=remove.
func (em *EntityManager) Delete(record any) error { return em.work.ScheduleDelete(record) }

// AttachManyToMany schedules a join-table link row to be inserted on
// the next Flush — call this after appending a related record to a
// ManyToMany collection.
func (em *EntityManager) AttachManyToMany(jt *metadata.JoinTable, ownerID, targetID any) {
	em.work.ScheduleJoinInsert(jt, ownerID, targetID)
}

// Flush commits every scheduled change in a single UnitOfWork pass.
func (em *EntityManager) Flush(ctx context.Context) error {
	return em.work.Commit(&executor{ctx: ctx, drv: em.drv, cache: em.cache, state: em.state, log: em.log})
}

func (em *EntityManager) hydrateRows(d *metadata.Descriptor, rows []driver.Row) ([]any, error) {
	var out []any
	seen := map[any]bool{}
	for _, row := range rows {
		rec, err := em.hydrator.Hydrate(d, row)
		if err != nil {
			return nil, err
		}
		if rec == nil || seen[rec] {
			continue
		}
		seen[rec] = true
		out = append(out, rec)
	}
	return out, nil
}

// ForRelation implements hydrate.LazyLoaders: it returns the thunk a
// Lazy relation's Box runs on first Get(), resolving it against the
// Driver the rest of this EntityManager uses.
func (em *EntityManager) ForRelation(root any, d *metadata.Descriptor, rel metadata.RelationDescriptor) relation.Loader {
	return func() (any, error) {
		// Lazy loads are triggered by application code dereferencing a
		// Box well after the originating find returned; there is no
		// request-scoped context left to thread through at that point.
		return em.loadLazy(context.Background(), root, d, rel)
	}
}

func (em *EntityManager) loadLazy(ctx context.Context, root any, d *metadata.Descriptor, rel metadata.RelationDescriptor) (any, error) {
	target, err := em.registry.Parse(rel.TargetTypeID)
	if err != nil {
		return nil, err
	}

	switch rel.Kind {
	case metadata.OneToOne, metadata.ManyToOne:
		if rel.JoinColumn != nil {
			col, ok := d.ColumnByName(rel.JoinColumn.Name)
			if !ok {
				return nil, fmt.Errorf("orm: %s.%s: join column %s not found", d.TypeID, rel.FieldName, rel.JoinColumn.Name)
			}
			fk := metadata.GetColumn(d, root, col.FieldName)
			if fk == nil {
				return nil, nil
			}
			return em.findOneBy(ctx, target, query.ByPrimaryKey(fk))
		}
		return em.findInverseOne(ctx, root, d, target, rel)

	case metadata.OneToMany:
		return em.findInverseMany(ctx, root, d, target, rel)

	case metadata.ManyToMany:
		return em.loadManyToMany(ctx, root, d, target, rel)

	default:
		return nil, fmt.Errorf("orm: unsupported relation kind for %s.%s", d.TypeID, rel.FieldName)
	}
}

func (em *EntityManager) findOneBy(ctx context.Context, d *metadata.Descriptor, criteria query.Criteria) (any, error) {
	plan, err := query.SelectBuilder(em.registry, d, criteria, query.Options{})
	if err != nil {
		return nil, err
	}
	stmt, err := runPlan(ctx, em.drv, em.log, plan)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	row, ok, err := stmt.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return em.hydrator.Hydrate(d, row)
}

func (em *EntityManager) findInverseOne(ctx context.Context, root any, d, target *metadata.Descriptor, rel metadata.RelationDescriptor) (any, error) {
	fkFieldName, err := inverseFKFieldName(target, rel.MappedBy)
	if err != nil {
		return nil, err
	}
	pk := metadata.PrimaryKeyValue(d, root)
	if pk == nil {
		return nil, nil
	}
	return em.findOneBy(ctx, target, query.ByEquals(map[string]any{fkFieldName: pk}))
}

func (em *EntityManager) findInverseMany(ctx context.Context, root any, d, target *metadata.Descriptor, rel metadata.RelationDescriptor) (any, error) {
	fkFieldName, err := inverseFKFieldName(target, rel.MappedBy)
	if err != nil {
		return nil, err
	}
	pk := metadata.PrimaryKeyValue(d, root)
	if pk == nil {
		return []any{}, nil
	}
	plan, err := query.SelectBuilder(em.registry, target, query.ByEquals(map[string]any{fkFieldName: pk}), query.Options{})
	if err != nil {
		return nil, err
	}
	stmt, err := runPlan(ctx, em.drv, em.log, plan)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	rows, err := stmt.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	return em.hydrateRows(target, rows)
}

func (em *EntityManager) loadManyToMany(ctx context.Context, root any, d, target *metadata.Descriptor, rel metadata.RelationDescriptor) (any, error) {
	if rel.JoinTable == nil {
		return nil, fmt.Errorf("orm: %s.%s: many-to-many relation has no join_table", d.TypeID, rel.FieldName)
	}
	pk := metadata.PrimaryKeyValue(d, root)
	if pk == nil {
		return []any{}, nil
	}
	plan := query.ManyToManyBuilder(target, rel.JoinTable, pk)
	stmt, err := runPlan(ctx, em.drv, em.log, plan)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	rows, err := stmt.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	return em.hydrateRows(target, rows)
}

func inverseFKFieldName(target *metadata.Descriptor, mappedBy string) (string, error) {
	owningRel, ok := target.Relation(mappedBy)
	if !ok || owningRel.JoinColumn == nil {
		return "", fmt.Errorf("orm: mapped_by target field %s.%s has no owning join_column", target.TypeID, mappedBy)
	}
	col, ok := target.ColumnByName(owningRel.JoinColumn.Name)
	if !ok {
		return "", fmt.Errorf("orm: %s: join column %s not found", target.TypeID, owningRel.JoinColumn.Name)
	}
	return col.FieldName, nil
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("orm: unexpected count value type %T", v)
	}
}
