// Package query holds the structured, SQL-text-free description of one
// statement (QueryPlan), the per-action Renderers that turn a plan into
// SQL, and the Builders that populate a plan from a metadata.Descriptor
// plus criteria and options.
package query

import "github.com/goentity/entitymap/expr"

// Action is which SQL statement shape a QueryPlan renders to.
type Action int

const (
	Select Action = iota
	Insert
	Update
	Delete
)

// ColumnRef is one SELECT projection: expr is the qualified source
// ("alias.column"), alias is the result-row key the Hydrator reads it
// back under.
type ColumnRef struct {
	Expr  string
	Alias string
}

// JoinKind is the SQL join type a Join renders with.
type JoinKind string

const (
	LeftJoin  JoinKind = "LEFT JOIN"
	InnerJoin JoinKind = "INNER JOIN"
)

// Join is one joined table, already carrying its fully-resolved ON
// clause (identifier quoting is applied by the Renderer, not baked in
// here).
type Join struct {
	Kind  JoinKind
	Table string
	Alias string
	OnSQL string
}

// ColumnValue is one column/value pair for an INSERT's VALUES or an
// UPDATE's SET list.
type ColumnValue struct {
	Column string
	Value  any
}

// OrderTerm is one ORDER BY column/direction pair.
type OrderTerm struct {
	Column string
	Desc   bool
}

// QueryPlan is the structured container every Builder populates and
// every Renderer consumes; it never holds rendered SQL text itself.
type QueryPlan struct {
	Action Action
	Table  string
	Alias  string

	Columns []ColumnRef
	Joins   []Join

	Where *expr.Expression

	GroupBy []string
	OrderBy []OrderTerm
	Limit   *int
	Offset  *int

	Distinct bool

	// Values holds the ordered column/value pairs for INSERT/UPDATE, in
	// descriptor declaration order so rendered SQL is deterministic.
	// Renderers turn each column into a ":column" placeholder.
	Values []ColumnValue

	// ReturningColumn, when non-empty, is a column an INSERT should
	// report back via a dialect's RETURNING clause instead of through
	// the driver's LastInsertID. Only renderInsert consults it, and
	// only for drivers that ask for it (driver.ReturningInserter).
	ReturningColumn string

	// Parameters holds every bound value across Where and Values once
	// Render has run; Render sets it and never reads it.
	Parameters map[string]any
}

// New creates an empty plan for action against table/alias.
func New(action Action, table, alias string) *QueryPlan {
	return &QueryPlan{
		Action:     action,
		Table:      table,
		Alias:      alias,
		Parameters: map[string]any{},
	}
}
