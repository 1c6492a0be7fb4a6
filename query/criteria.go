package query

import (
	"sort"

	"github.com/goentity/entitymap/expr"
	"github.com/goentity/entitymap/metadata"
)

// Criteria is EntityManager's uniform find/count input, normalised to
// an *expr.Expression (or nil for "no WHERE") before it reaches a
// Builder:
//   - a scalar value means "primary key equals this"
//   - a map[string]any means "AND of equalities"
//   - an *expr.Expression passes through untouched
//   - nil means no WHERE at all
type Criteria struct {
	scalar   any
	scalarOK bool
	equals   map[string]any
	expr     *expr.Expression
}

// ByPrimaryKey builds a scalar primary-key lookup.
func ByPrimaryKey(value any) Criteria { return Criteria{scalar: value, scalarOK: true} }

// PrimaryKeyScalar reports the value of a ByPrimaryKey criteria, letting
// a caller (EntityManager.FindBy) short-circuit to the identity cache
// before issuing a SELECT at all.
func (c Criteria) PrimaryKeyScalar() (any, bool) { return c.scalar, c.scalarOK }

// ByEquals builds an AND-of-equalities criteria from a field->value map.
func ByEquals(equals map[string]any) Criteria { return Criteria{equals: equals} }

// ByExpression passes an already-built Expression through untouched.
func ByExpression(e *expr.Expression) Criteria { return Criteria{expr: e} }

// None is the zero-value Criteria: no WHERE clause.
func None() Criteria { return Criteria{} }

// Normalize turns c into a compiled WHERE expression against d, or nil
// if c carries no criteria at all.
func Normalize(d *metadata.Descriptor, c Criteria) *expr.Expression {
	switch {
	case c.expr != nil:
		return c.expr
	case c.scalarOK:
		return expr.NewAnd().AndEq(qualify(d.Alias, d.PrimaryKey.Column), c.scalar)
	case len(c.equals) > 0:
		fieldNames := make([]string, 0, len(c.equals))
		for fieldName := range c.equals {
			fieldNames = append(fieldNames, fieldName)
		}
		sort.Strings(fieldNames)

		e := expr.NewAnd()
		for _, fieldName := range fieldNames {
			col, ok := d.Column(fieldName)
			name := fieldName
			if ok {
				name = col.Name
			}
			e.AndEq(qualify(d.Alias, name), c.equals[fieldName])
		}
		return e
	default:
		return nil
	}
}

func qualify(alias, column string) string {
	return alias + "." + column
}
