// Package hydrate turns driver rows into record graphs: column
// coercion via metadata.SetColumn, identity-cache lookups so repeat
// reads of the same row return the same pointer, and relation
// population — eager relations read straight out of the joined row
// (accumulating into a slice across rows for to-many relations), lazy
// relations get a memoising loader thunk supplied by the caller.
package hydrate

import (
	"fmt"

	"github.com/goentity/entitymap/driver"
	"github.com/goentity/entitymap/identitycache"
	"github.com/goentity/entitymap/metadata"
	"github.com/goentity/entitymap/recordstate"
	"github.com/goentity/entitymap/relation"
)

// Resolver looks up a previously-registered Descriptor by type_id; a
// *metadata.Registry satisfies it.
type Resolver interface {
	Parse(typeID string) (*metadata.Descriptor, error)
}

// LazyLoaders supplies the loader thunk a Lazy relation's Box runs on
// first Get(). It is the one seam back out to a query/driver layer —
// the Hydrator itself never issues SQL.
type LazyLoaders interface {
	ForRelation(root any, d *metadata.Descriptor, rel metadata.RelationDescriptor) relation.Loader
}

// Hydrator materialises rows into records for one EntityManager
// session. Its Cache must not be shared with another EntityManager.
type Hydrator struct {
	Resolver Resolver
	Cache    *identitycache.Cache
	Loaders  LazyLoaders
	State    *recordstate.Tracker
}

// New builds a Hydrator. loaders may be nil if the caller never
// installs lazy relations (e.g. a read-only reporting query); lazy
// relation fields are then left Null.
func New(resolver Resolver, cache *identitycache.Cache, loaders LazyLoaders, state *recordstate.Tracker) *Hydrator {
	return &Hydrator{Resolver: resolver, Cache: cache, Loaders: loaders, State: state}
}

// Hydrate materialises one row into a record of d's type, applying the
// identity cache and installing every declared relation.
func (h *Hydrator) Hydrate(d *metadata.Descriptor, row driver.Row) (any, error) {
	return h.hydratePrefixed(d, row, d.Alias)
}

func rowKey(alias, column string) string {
	return fmt.Sprintf("%s_%s", alias, column)
}

func (h *Hydrator) hydratePrefixed(d *metadata.Descriptor, row driver.Row, alias string) (any, error) {
	pkCol := d.Columns[d.PrimaryKey.FieldName]
	rawPK, present := row[rowKey(alias, pkCol.Name)]
	if !present || rawPK == nil {
		return nil, nil
	}

	if cached, ok := h.Cache.Get(d.TypeID, rawPK); ok {
		if err := h.installRelations(cached, d, row, alias); err != nil {
			return nil, err
		}
		return cached, nil
	}

	record := metadata.New(d)
	for _, fieldName := range d.ColumnOrder {
		col := d.Columns[fieldName]
		raw, ok := row[rowKey(alias, col.Name)]
		if !ok {
			continue
		}
		if err := metadata.SetColumn(d, record, fieldName, raw); err != nil {
			return nil, err
		}
	}

	pk := metadata.PrimaryKeyValue(d, record)
	h.Cache.Set(d.TypeID, pk, record)
	h.State.MarkPersisted(record, metadata.Extract(d, record, false))

	if err := h.installRelations(record, d, row, alias); err != nil {
		return nil, err
	}
	return record, nil
}

// installRelations populates every relation declared on d: eager
// relations are read out of row under the
// "{alias}__{relation_field}_{column}" prefix (accumulating into a
// slice for to-many kinds across repeated calls with the same root
// record), lazy relations get a memoising loader thunk.
func (h *Hydrator) installRelations(record any, d *metadata.Descriptor, row driver.Row, alias string) error {
	for _, fieldName := range d.RelationOrder {
		rel := d.Relations[fieldName]
		if rel.Fetch == metadata.Lazy {
			h.installLazy(record, d, rel)
			continue
		}
		if err := h.installEager(record, d, rel, row, alias); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hydrator) installLazy(record any, d *metadata.Descriptor, rel metadata.RelationDescriptor) {
	box := metadata.GetRelationBox(record, rel.FieldName)
	if box.State() != relation.Unloaded {
		return // already installed by an earlier row
	}
	if h.Loaders == nil {
		metadata.SetRelationBox(record, rel.FieldName, relation.NewNull())
		return
	}
	loader := h.Loaders.ForRelation(record, d, rel)
	metadata.SetRelationBox(record, rel.FieldName, relation.NewUnloaded(loader))
}

func (h *Hydrator) installEager(record any, d *metadata.Descriptor, rel metadata.RelationDescriptor, row driver.Row, alias string) error {
	target, err := h.Resolver.Parse(rel.TargetTypeID)
	if err != nil {
		return err
	}
	relAlias := alias + "__" + rel.FieldName

	related, err := h.hydratePrefixed(target, row, relAlias)
	if err != nil {
		return err
	}

	switch rel.Kind {
	case metadata.OneToMany, metadata.ManyToMany:
		h.accumulate(record, rel.FieldName, related)
	default:
		box := metadata.GetRelationBox(record, rel.FieldName)
		if box.State() == relation.Loaded {
			return nil // singular relation already set from an earlier row
		}
		if related == nil {
			metadata.SetRelationBox(record, rel.FieldName, relation.NewNull())
			return nil
		}
		metadata.SetRelationBox(record, rel.FieldName, relation.NewLoaded(related))
	}
	return nil
}

// accumulate appends related to the slice held by record's to-many
// relation box, deduplicating by pointer identity — safe because the
// identity cache guarantees one Go pointer per (type_id, pk).
func (h *Hydrator) accumulate(record any, fieldName string, related any) {
	box := metadata.GetRelationBox(record, fieldName)

	var items []any
	if box.State() == relation.Loaded {
		v, _ := box.Get()
		if existing, ok := v.([]any); ok {
			items = existing
		}
	}

	if related == nil {
		if box.State() != relation.Loaded {
			metadata.SetRelationBox(record, fieldName, relation.NewLoaded(items))
		}
		return
	}

	for _, item := range items {
		if item == related {
			metadata.SetRelationBox(record, fieldName, relation.NewLoaded(items))
			return
		}
	}
	items = append(items, related)
	metadata.SetRelationBox(record, fieldName, relation.NewLoaded(items))
}
