// Package recordstate tracks the persisted/snapshot state spec §3
// assigns to every record: whether it has been inserted or hydrated,
// and the last-committed column extract used for dirty checking.
// Entity structs carry no such fields themselves — this Tracker is the
// side table a wrapper/base class would otherwise hold, keyed by
// record pointer identity. Not safe to share across EntityManagers.
package recordstate

import "reflect"

type entry struct {
	persisted bool
	snapshot  map[string]any // nil until first MarkPersisted
}

// Tracker is a record -> (persisted, snapshot) map. The zero value is
// not usable; construct with New.
type Tracker struct {
	entries map[any]*entry
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{entries: map[any]*entry{}}
}

func (t *Tracker) entryFor(record any) *entry {
	e, ok := t.entries[record]
	if !ok {
		e = &entry{}
		t.entries[record] = e
	}
	return e
}

// IsPersisted reports whether record has ever been inserted or
// hydrated.
func (t *Tracker) IsPersisted(record any) bool {
	e, ok := t.entries[record]
	return ok && e.persisted
}

// MarkPersisted flags record persisted and stores extract as its new
// committed snapshot — called after a successful INSERT/UPDATE and
// after hydrating a row into a fresh record.
func (t *Tracker) MarkPersisted(record any, extract map[string]any) {
	e := t.entryFor(record)
	e.persisted = true
	e.snapshot = extract
}

// ClearPersisted flags record as no longer persisted and drops its
// snapshot — called after a successful DELETE.
func (t *Tracker) ClearPersisted(record any) {
	e := t.entryFor(record)
	e.persisted = false
	e.snapshot = nil
}

// IsDirty reports whether extract differs from record's last-known
// snapshot. A record with no snapshot yet is considered dirty — the
// caller (UnitOfWork.ScheduleUpdate) only consults IsDirty once
// IsPersisted has already confirmed a snapshot exists.
func (t *Tracker) IsDirty(record any, extract map[string]any) bool {
	e, ok := t.entries[record]
	if !ok || e.snapshot == nil {
		return true
	}
	if len(e.snapshot) != len(extract) {
		return true
	}
	for col, v := range e.snapshot {
		if nv, ok := extract[col]; !ok || !reflect.DeepEqual(v, nv) {
			return true
		}
	}
	return false
}

// Forget drops record's tracked state entirely, e.g. when a record
// leaves the session without having been deleted.
func (t *Tracker) Forget(record any) {
	delete(t.entries, record)
}
