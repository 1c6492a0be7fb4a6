package metadata

import (
	"reflect"
	"sync"

	"github.com/goentity/entitymap/ormerr"
)

// ExternalCache is the pluggable collaborator a Registry may delegate
// to before re-parsing. A cache miss (Get returning ok=false) always
// falls back to parsing; the registry never trusts cached data without
// an opaque round trip through it, per §6's "always revalidates by
// re-parsing on cache miss" — this core ships only the in-memory
// default below, but callers may supply their own.
type ExternalCache interface {
	Get(key string) (*Descriptor, bool)
	Set(key string, d *Descriptor)
	Clear(key string)
}

// Registry parses and memoises one Descriptor per registered Go type,
// and resolves target= / mapped_by references between them by type_id.
type Registry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
	cache map[string]*Descriptor

	external ExternalCache
}

// NewRegistry creates an empty registry with no external cache.
func NewRegistry() *Registry {
	return &Registry{
		types: map[string]reflect.Type{},
		cache: map[string]*Descriptor{},
	}
}

// SetExternalCache installs a pluggable cache the registry consults
// before parsing. Pass nil to remove it.
func (r *Registry) SetExternalCache(c ExternalCache) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.external = c
}

// typeID is the canonical identifier for a Go entity type: its bare
// struct name. A single module's entity types are assumed unique by
// name; see DESIGN.md for why a bare name is used instead of a fully
// qualified path.
func typeID(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Register associates a Go struct type with its type_id so that other
// descriptors' target= tags can resolve it, and returns the type_id.
// Call once per entity type before parsing anything that references it.
func (r *Registry) Register(goType reflect.Type) string {
	id := typeID(goType)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[id] = derefStruct(goType)
	return id
}

func derefStruct(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// Parse returns the memoised Descriptor for typeID, parsing (and
// validating) it on first use or on external-cache miss.
func (r *Registry) Parse(id string) (*Descriptor, error) {
	r.mu.RLock()
	if d, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return d, nil
	}
	ext := r.external
	r.mu.RUnlock()

	if ext != nil {
		if d, ok := ext.Get(id); ok {
			r.mu.Lock()
			r.cache[id] = d
			r.mu.Unlock()
			return d, nil
		}
	}

	r.mu.RLock()
	goType, known := r.types[id]
	r.mu.RUnlock()
	if !known {
		return nil, &ormerr.InvalidEntity{TypeID: id, Reason: "type not registered"}
	}

	d, err := parseDescriptor(id, goType)
	if err != nil {
		return nil, err
	}
	if err := r.validateMappedBy(d); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[id] = d
	r.mu.Unlock()
	if ext != nil {
		ext.Set(id, d)
	}
	return d, nil
}

// ParseType registers goType (if not already) and parses it.
func (r *Registry) ParseType(goType reflect.Type) (*Descriptor, error) {
	id := r.Register(goType)
	return r.Parse(id)
}

// Describe returns the Descriptor for record's concrete Go type,
// deriving its type_id the same way Register does. record must already
// be registered.
func (r *Registry) Describe(record any) (*Descriptor, error) {
	return r.Parse(typeID(reflect.TypeOf(record)))
}

// validateMappedBy checks that every mapped_by inverse-side relation
// names a field that actually exists, and is itself a relation, on the
// target type — without fully parsing the target (which may cycle back
// to d), by reflecting its tags directly.
func (r *Registry) validateMappedBy(d *Descriptor) error {
	for _, fieldName := range d.RelationOrder {
		rel := d.Relations[fieldName]
		if rel.MappedBy == "" {
			continue
		}
		r.mu.RLock()
		targetType, known := r.types[rel.TargetTypeID]
		r.mu.RUnlock()
		if !known {
			return &ormerr.InvalidEntity{TypeID: d.TypeID, Reason: fieldName + ": mapped_by target type " + rel.TargetTypeID + " is not registered"}
		}
		if !hasRelationField(targetType, rel.MappedBy) {
			return &ormerr.InvalidEntity{TypeID: d.TypeID, Reason: fieldName + ": mapped_by references unknown field " + rel.MappedBy + " on " + rel.TargetTypeID}
		}
	}
	return nil
}

func hasRelationField(t reflect.Type, fieldName string) bool {
	f, ok := t.FieldByName(fieldName)
	if !ok {
		return false
	}
	_, tagged := f.Tag.Lookup(TagKey)
	return tagged && f.Type == boxType
}

// Clear evicts typeID from both the in-memory cache and the external
// cache, if one is installed.
func (r *Registry) Clear(id string) {
	r.mu.Lock()
	delete(r.cache, id)
	ext := r.external
	r.mu.Unlock()
	if ext != nil {
		ext.Clear(id)
	}
}
