// Package metadata parses a Go struct type's declarative field tags
// into an immutable Descriptor — table, alias, primary key, columns and
// relations — the single source of truth QueryPlanBuilders, the
// Hydrator and the UnitOfWork all read from. Parsing is reflection
// driven and happens once per type; Registry memoises the result.
package metadata

import "reflect"

// FetchMode controls whether a relation is populated by a join in the
// same SELECT (Eager) or by a memoising loader thunk (Lazy).
type FetchMode int

const (
	Lazy FetchMode = iota
	Eager
)

// Cascade is a propagation rule attached to a relation: scheduling the
// owner for Persist or Remove walks to the related record(s) too.
type Cascade string

const (
	CascadePersist Cascade = "persist"
	CascadeRemove  Cascade = "remove"
)

// CascadeSet is the set of cascades declared on one relation.
type CascadeSet map[Cascade]bool

func (c CascadeSet) Has(cs Cascade) bool { return c != nil && c[cs] }

// RelationKind is which of the four relation shapes a RelationDescriptor
// describes.
type RelationKind int

const (
	OneToOne RelationKind = iota
	ManyToOne
	OneToMany
	ManyToMany
)

func (k RelationKind) String() string {
	switch k {
	case OneToOne:
		return "one_to_one"
	case ManyToOne:
		return "many_to_one"
	case OneToMany:
		return "one_to_many"
	case ManyToMany:
		return "many_to_many"
	default:
		return "unknown"
	}
}

// ColumnDescriptor is one declared scalar column.
type ColumnDescriptor struct {
	FieldName string // Go struct field name
	Name      string // physical column name
	SQLType   string // "int", "float", "bool", "string", "datetime", "json"
	Length    int
	Nullable  bool
	Default   any

	// JoinColumnOf, when non-empty, names the relation field this
	// column is the foreign key for. Such columns are ordinary columns
	// for extract/hydrate purposes; the relation descriptor that owns
	// them reads the same Name.
	JoinColumnOf string
}

// JoinColumn is the owning side of a OneToOne/ManyToOne relation: the
// local foreign-key column pointing at the target's primary key.
type JoinColumn struct {
	Name             string
	ReferencedColumn string
	Nullable         bool
}

// JoinTable is the link table backing a ManyToMany relation.
type JoinTable struct {
	Name      string
	OwnerFK   string
	InverseFK string
}

// RelationDescriptor is one declared association to another entity
// type.
type RelationDescriptor struct {
	FieldName    string
	Kind         RelationKind
	TargetTypeID string
	Fetch        FetchMode
	Cascade      CascadeSet

	MappedBy   string // inverse-side field name on the target type
	JoinColumn *JoinColumn
	JoinTable  *JoinTable
}

// PrimaryKeyDescriptor names the one column acting as identifier.
type PrimaryKeyDescriptor struct {
	FieldName string
	Column    string
	Generated bool
}

// Descriptor is the parsed, immutable view of one record type.
type Descriptor struct {
	TypeID string
	Table  string
	Alias  string

	PrimaryKey PrimaryKeyDescriptor

	ColumnOrder []string // field names, declaration order
	Columns     map[string]ColumnDescriptor

	RelationOrder []string
	Relations     map[string]RelationDescriptor

	GoType reflect.Type // the struct type this descriptor was parsed from (not a pointer)
}

// Column looks up a column descriptor by its logical field name.
func (d *Descriptor) Column(fieldName string) (ColumnDescriptor, bool) {
	c, ok := d.Columns[fieldName]
	return c, ok
}

// ColumnByName looks up a column descriptor by its physical column
// name.
func (d *Descriptor) ColumnByName(column string) (ColumnDescriptor, bool) {
	for _, fn := range d.ColumnOrder {
		c := d.Columns[fn]
		if c.Name == column {
			return c, true
		}
	}
	return ColumnDescriptor{}, false
}

// Relation looks up a relation descriptor by its logical field name.
func (d *Descriptor) Relation(fieldName string) (RelationDescriptor, bool) {
	r, ok := d.Relations[fieldName]
	return r, ok
}
