package query

import (
	"fmt"

	"github.com/goentity/entitymap/expr"
	"github.com/goentity/entitymap/metadata"
)

// ManyToManyBuilder assembles a SELECT of target's own columns, joined
// through jt, filtered to the rows linked to one owner — the plan a
// lazy ManyToMany relation's loader runs on first access.
func ManyToManyBuilder(target *metadata.Descriptor, jt *metadata.JoinTable, ownerID any) *QueryPlan {
	jtAlias := target.Alias + "__jt"
	plan := New(Select, target.Table, target.Alias)
	addColumns(plan, target, target.Alias)
	plan.Joins = append(plan.Joins, Join{
		Kind:  LeftJoin,
		Table: jt.Name,
		Alias: jtAlias,
		OnSQL: fmt.Sprintf("%s = %s", qualify(target.Alias, target.PrimaryKey.Column), qualify(jtAlias, jt.InverseFK)),
	})
	plan.Where = expr.NewAnd().AndEq(qualify(jtAlias, jt.OwnerFK), ownerID)
	return plan
}
