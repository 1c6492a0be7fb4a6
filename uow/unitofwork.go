// Package uow implements the Unit of Work: schedules of records
// pending insert, update, or delete, cascade propagation along
// declared relations, and a commit that orders statements so foreign
// keys are always satisfied.
package uow

import (
	"github.com/goentity/entitymap/metadata"
	"github.com/goentity/entitymap/recordstate"
)

// Resolver looks up a previously-registered Descriptor, either by
// type_id or by reflecting a record's concrete Go type.
type Resolver interface {
	Parse(typeID string) (*metadata.Descriptor, error)
	Describe(record any) (*metadata.Descriptor, error)
}

// Executor runs one statement against the database. Primary-key
// write-back and identity-cache bookkeeping after a successful
// Insert/Delete are the implementation's responsibility, not the
// UnitOfWork's — see the orm package's Executors.
type Executor interface {
	Insert(d *metadata.Descriptor, record any) error
	Update(d *metadata.Descriptor, record any) error
	Delete(d *metadata.Descriptor, record any) error
	InsertJoinRow(jt *metadata.JoinTable, ownerID, targetID any) error
	DeleteJoinRow(jt *metadata.JoinTable, ownerID, targetID any) error
}

type entry struct {
	d      *metadata.Descriptor
	record any
}

type joinLink struct {
	jt                 *metadata.JoinTable
	ownerID, targetID any
}

// UnitOfWork tracks pending changes for one EntityManager session and
// commits them as a batch. It is not safe for concurrent use.
type UnitOfWork struct {
	resolver Resolver
	state    *recordstate.Tracker

	inserts []entry
	updates []entry
	deletes []entry

	joinInserts []joinLink
	joinDeletes []joinLink

	scheduledForInsert map[any]bool
	scheduledForDelete map[any]bool
}

// New creates an empty UnitOfWork bound to resolver, tracking
// persisted/dirty state for every record it schedules through state.
func New(resolver Resolver, state *recordstate.Tracker) *UnitOfWork {
	return &UnitOfWork{
		resolver:           resolver,
		state:              state,
		scheduledForInsert: map[any]bool{},
		scheduledForDelete: map[any]bool{},
	}
}

// ScheduleInsert queues record for insertion and walks every loaded
// relation declared with cascade=persist, scheduling related records
// too. A no-op if record is already scheduled or already persisted.
// Columns still at their Go zero value are set to their declared
// default first.
func (u *UnitOfWork) ScheduleInsert(record any) error {
	if u.scheduledForInsert[record] || u.state.IsPersisted(record) {
		return nil
	}
	d, err := u.resolver.Describe(record)
	if err != nil {
		return err
	}
	if err := metadata.ApplyDefaults(d, record); err != nil {
		return err
	}
	u.scheduledForInsert[record] = true
	u.inserts = append(u.inserts, entry{d, record})
	return u.cascade(d, record, metadata.CascadePersist, u.ScheduleInsert)
}

// ScheduleUpdate queues record for an UPDATE. A no-op unless record is
// already persisted and its current column values differ from its
// last-committed snapshot. Updates never cascade — only persist and
// remove propagate along declared relations.
func (u *UnitOfWork) ScheduleUpdate(record any) error {
	if !u.state.IsPersisted(record) {
		return nil
	}
	d, err := u.resolver.Describe(record)
	if err != nil {
		return err
	}
	if !u.state.IsDirty(record, metadata.Extract(d, record, false)) {
		return nil
	}
	u.updates = append(u.updates, entry{d, record})
	return nil
}

// ScheduleDelete queues record for deletion, walks every loaded
// relation declared with cascade=remove scheduling related records'
// deletion too, and schedules removal of any ManyToMany link rows this
// record owns. A no-op if record is not persisted or is already
// scheduled for deletion.
func (u *UnitOfWork) ScheduleDelete(record any) error {
	if u.scheduledForDelete[record] || !u.state.IsPersisted(record) {
		return nil
	}
	d, err := u.resolver.Describe(record)
	if err != nil {
		return err
	}
	u.scheduledForDelete[record] = true
	u.deletes = append(u.deletes, entry{d, record})

	for _, fieldName := range d.RelationOrder {
		rel := d.Relations[fieldName]
		if rel.Kind == metadata.ManyToMany && rel.JoinTable != nil {
			u.scheduleJoinRemovalsFor(d, record, rel)
		}
	}

	return u.cascade(d, record, metadata.CascadeRemove, u.ScheduleDelete)
}

func (u *UnitOfWork) scheduleJoinRemovalsFor(d *metadata.Descriptor, record any, rel metadata.RelationDescriptor) {
	box := metadata.GetRelationBox(record, rel.FieldName)
	if !box.IsLoaded() {
		return
	}
	ownerID := metadata.PrimaryKeyValue(d, record)
	if ownerID == nil {
		return
	}
	v, _ := box.Get()
	for _, target := range asSlice(v) {
		td, err := u.resolver.Describe(target)
		if err != nil {
			continue
		}
		targetID := metadata.PrimaryKeyValue(td, target)
		if targetID == nil {
			continue
		}
		u.joinDeletes = append(u.joinDeletes, joinLink{rel.JoinTable, ownerID, targetID})
	}
}

// ScheduleJoinInsert records a ManyToMany link row to insert at commit,
// e.g. after attaching a new related record to a to-many collection.
func (u *UnitOfWork) ScheduleJoinInsert(jt *metadata.JoinTable, ownerID, targetID any) {
	u.joinInserts = append(u.joinInserts, joinLink{jt, ownerID, targetID})
}

func (u *UnitOfWork) cascade(d *metadata.Descriptor, record any, cascade metadata.Cascade, schedule func(any) error) error {
	for _, fieldName := range d.RelationOrder {
		rel := d.Relations[fieldName]
		if !rel.Cascade.Has(cascade) {
			continue
		}
		box := metadata.GetRelationBox(record, fieldName)
		if !box.IsLoaded() {
			continue // never touched, nothing to cascade
		}
		v, _ := box.Get()
		for _, related := range asSlice(v) {
			if err := schedule(related); err != nil {
				return err
			}
		}
	}
	return nil
}

func asSlice(v any) []any {
	if v == nil {
		return nil
	}
	if s, ok := v.([]any); ok {
		return s
	}
	return []any{v}
}

// Commit executes every scheduled change through exec in three passes:
// inserts in topological order (a referenced record before the one
// that holds its foreign key), updates in any order, then deletes in
// the reverse of that same topological order (a record holding a
// foreign key before the record it references) — finally join-table
// removals before join-table insertions.
func (u *UnitOfWork) Commit(exec Executor) error {
	insertOrder, err := topoOrder(u.inserts)
	if err != nil {
		return err
	}
	for _, e := range insertOrder {
		if err := u.syncOwningForeignKeys(e); err != nil {
			return err
		}
		if err := exec.Insert(e.d, e.record); err != nil {
			return err
		}
	}

	for _, e := range u.updates {
		if err := exec.Update(e.d, e.record); err != nil {
			return err
		}
	}

	deleteOrder, err := topoOrder(u.deletes)
	if err != nil {
		return err
	}
	for i := len(deleteOrder) - 1; i >= 0; i-- {
		e := deleteOrder[i]
		if err := exec.Delete(e.d, e.record); err != nil {
			return err
		}
	}

	for _, l := range u.joinDeletes {
		if err := exec.DeleteJoinRow(l.jt, l.ownerID, l.targetID); err != nil {
			return err
		}
	}
	for _, l := range u.joinInserts {
		if err := exec.InsertJoinRow(l.jt, l.ownerID, l.targetID); err != nil {
			return err
		}
	}

	u.reset()
	return nil
}

// syncOwningForeignKeys writes each loaded owning relation's related
// primary key into e.record's foreign-key field, now that topological
// ordering guarantees the related record was inserted first. A related
// record with no primary key yet (not itself scheduled) leaves the
// foreign key untouched.
func (u *UnitOfWork) syncOwningForeignKeys(e entry) error {
	for _, fieldName := range e.d.RelationOrder {
		rel := e.d.Relations[fieldName]
		if rel.JoinColumn == nil {
			continue
		}
		box := metadata.GetRelationBox(e.record, fieldName)
		if !box.IsLoaded() {
			continue
		}
		v, _ := box.Get()
		related := firstOf(v)
		if related == nil {
			continue
		}
		rd, err := u.resolver.Describe(related)
		if err != nil {
			return err
		}
		relatedPK := metadata.PrimaryKeyValue(rd, related)
		if relatedPK == nil {
			continue
		}
		col, ok := e.d.ColumnByName(rel.JoinColumn.Name)
		if !ok {
			continue
		}
		if err := metadata.SetColumn(e.d, e.record, col.FieldName, relatedPK); err != nil {
			return err
		}
	}
	return nil
}

func firstOf(v any) any {
	if v == nil {
		return nil
	}
	if s, ok := v.([]any); ok {
		if len(s) == 0 {
			return nil
		}
		return s[0]
	}
	return v
}

func (u *UnitOfWork) reset() {
	u.inserts = nil
	u.updates = nil
	u.deletes = nil
	u.joinInserts = nil
	u.joinDeletes = nil
	u.scheduledForInsert = map[any]bool{}
	u.scheduledForDelete = map[any]bool{}
}
