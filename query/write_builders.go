package query

import (
	"fmt"

	"github.com/goentity/entitymap/expr"
	"github.com/goentity/entitymap/metadata"
)

// InsertBuilder assembles an INSERT plan from record's extracted
// columns, omitting the primary key when it is database-generated.
func InsertBuilder(d *metadata.Descriptor, record any) *QueryPlan {
	plan := New(Insert, d.Table, d.Alias)
	extracted := metadata.Extract(d, record, d.PrimaryKey.Generated)
	for _, fieldName := range d.ColumnOrder {
		col := d.Columns[fieldName]
		if d.PrimaryKey.Generated && fieldName == d.PrimaryKey.FieldName {
			continue
		}
		plan.Values = append(plan.Values, ColumnValue{Column: col.Name, Value: extracted[col.Name]})
	}
	return plan
}

// UpdateBuilder assembles an UPDATE plan from record's extracted
// columns (excluding the primary key), with WHERE pk = :pk.
func UpdateBuilder(d *metadata.Descriptor, record any) *QueryPlan {
	plan := New(Update, d.Table, "")
	extracted := metadata.Extract(d, record, true)
	for _, fieldName := range d.ColumnOrder {
		if fieldName == d.PrimaryKey.FieldName {
			continue
		}
		col := d.Columns[fieldName]
		plan.Values = append(plan.Values, ColumnValue{Column: col.Name, Value: extracted[col.Name]})
	}
	pk := metadata.PrimaryKeyValue(d, record)
	plan.Where = whereByColumn(d.PrimaryKey.Column, pk)
	return plan
}

// DeleteBuilder assembles a DELETE plan matching record's primary key.
// DeleteWhereBuilder below takes an explicit WHERE instead, for
// join-table maintenance by owner/target FK pairs.
func DeleteBuilder(d *metadata.Descriptor, record any) *QueryPlan {
	plan := New(Delete, d.Table, "")
	pk := metadata.PrimaryKeyValue(d, record)
	plan.Where = whereByColumn(d.PrimaryKey.Column, pk)
	return plan
}

// DeleteWhereBuilder assembles a DELETE plan with a caller-supplied
// WHERE, e.g. to remove join-table rows by owner_fk/inverse_fk.
func DeleteWhereBuilder(table string, where *expr.Expression) *QueryPlan {
	plan := New(Delete, table, "")
	plan.Where = where
	return plan
}

// InsertJoinRowBuilder assembles an INSERT into a ManyToMany join
// table for one (owner, target) link.
func InsertJoinRowBuilder(jt *metadata.JoinTable, ownerID, targetID any) *QueryPlan {
	plan := New(Insert, jt.Name, "")
	plan.Values = []ColumnValue{
		{Column: jt.OwnerFK, Value: ownerID},
		{Column: jt.InverseFK, Value: targetID},
	}
	return plan
}

// DeleteJoinRowBuilder assembles a DELETE for one ManyToMany join-table
// link row, matched by both foreign keys.
func DeleteJoinRowBuilder(jt *metadata.JoinTable, ownerID, targetID any) *QueryPlan {
	where := expr.NewAnd().AndEq(jt.OwnerFK, ownerID).AndEq(jt.InverseFK, targetID)
	return DeleteWhereBuilder(jt.Name, where)
}

// CountBuilder assembles a `SELECT COUNT(* or DISTINCT pk) AS count`
// plan honoring criteria and, when requested, eager join conditions
// (the join's rows are not projected, only used to filter).
func CountBuilder(resolver Resolver, d *metadata.Descriptor, criteria Criteria, opts Options) (*QueryPlan, error) {
	plan := New(Select, d.Table, d.Alias)
	countExpr := "*"
	if opts.Distinct {
		countExpr = fmt.Sprintf("DISTINCT %s", qualify(d.Alias, d.PrimaryKey.Column))
	}
	plan.Columns = []ColumnRef{{Expr: fmt.Sprintf("COUNT(%s)", countExpr), Alias: "count"}}

	for _, field := range opts.Joins {
		rel, ok := d.Relation(field)
		if !ok || rel.Fetch != metadata.Eager {
			continue
		}
		if err := addEagerJoin(resolver, plan, d, rel); err != nil {
			return nil, err
		}
		// CountBuilder never projects join columns, only uses the join
		// to filter; strip whatever addEagerJoin appended beyond the
		// COUNT(...) column.
		plan.Columns = plan.Columns[:1]
	}

	plan.Where = Normalize(d, criteria)
	return plan, nil
}

func whereByColumn(column string, value any) *expr.Expression {
	return expr.NewAnd().AndEq(column, value)
}
