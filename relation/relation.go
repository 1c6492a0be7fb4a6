// Package relation implements the tagged-union representation of a
// relation field: unloaded (a memoising loader thunk), loaded (a
// materialised value), or null. A Box is the runtime shape every
// relation-typed struct field holds; hydrate installs one of the three
// states per row, and EntityManager dereferences the loader on first
// access.
//
// The loaded/target value is carried as any rather than as a type
// parameter: the metadata and hydrate packages build and install boxes
// purely through reflection, driven by a per-type Descriptor discovered
// at runtime, so there is no compile-time type to parameterise Box
// with. Callers on the application side type-assert Get's result to the
// concrete target type (or slice of it, for to-many relations).
package relation

// State is which of the three tagged-union variants a Box currently
// holds.
type State int

const (
	Unloaded State = iota
	Loaded
	Null
)

// Loader re-issues the query that materialises a relation on first
// access. A Box calls it on each Get until one call succeeds; that
// result is memoised and the loader is not called again.
type Loader func() (any, error)

// Box is the field value installed by the hydrator for every relation.
type Box struct {
	state  State
	value  any
	loader Loader
}

// NewNull returns a Box in the Null state — the relation's foreign key
// was absent, or the row carried no related data.
func NewNull() Box { return Box{state: Null} }

// NewLoaded returns a Box already holding value, as produced by an
// eager join.
func NewLoaded(value any) Box { return Box{state: Loaded, value: value} }

// NewUnloaded returns a Box that calls loader on first Get and
// memoises the result.
func NewUnloaded(loader Loader) Box { return Box{state: Unloaded, loader: loader} }

// Get returns the relation's value, invoking and memoising the loader
// on first call if the Box was Unloaded. The zero Box has no loader:
// Get returns nil and the Box stays Unloaded.
func (b *Box) Get() (any, error) {
	switch b.state {
	case Loaded, Null:
		return b.value, nil
	default:
		if b.loader == nil {
			return nil, nil
		}
		v, err := b.loader()
		if err != nil {
			return nil, err
		}
		b.state = Loaded
		b.value = v
		b.loader = nil
		return v, nil
	}
}

// State reports which variant the Box currently holds, without forcing
// an Unloaded box to load.
func (b Box) State() State { return b.state }

func (b Box) IsNull() bool   { return b.state == Null }
func (b Box) IsLoaded() bool { return b.state == Loaded }
