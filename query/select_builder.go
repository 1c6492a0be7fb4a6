package query

import (
	"fmt"

	"github.com/goentity/entitymap/metadata"
)

// Resolver looks up a previously-parsed Descriptor by type_id; a
// *metadata.Registry satisfies it.
type Resolver interface {
	Parse(typeID string) (*metadata.Descriptor, error)
}

func relationAlias(rootAlias, field string) string {
	return rootAlias + "__" + field
}

func addColumns(plan *QueryPlan, d *metadata.Descriptor, alias string) {
	for _, fieldName := range d.ColumnOrder {
		col := d.Columns[fieldName]
		plan.Columns = append(plan.Columns, ColumnRef{
			Expr:  qualify(alias, col.Name),
			Alias: fmt.Sprintf("%s_%s", alias, col.Name),
		})
	}
}

// SelectBuilder assembles a SELECT QueryPlan for d: one column per
// declared column, an eager join (with its target's columns) for every
// Joins entry whose relation is declared Eager, and criteria/options
// applied verbatim.
func SelectBuilder(resolver Resolver, d *metadata.Descriptor, criteria Criteria, opts Options) (*QueryPlan, error) {
	plan := New(Select, d.Table, d.Alias)
	addColumns(plan, d, d.Alias)

	for _, field := range opts.Joins {
		rel, ok := d.Relation(field)
		if !ok || rel.Fetch != metadata.Eager {
			continue
		}
		if err := addEagerJoin(resolver, plan, d, rel); err != nil {
			return nil, err
		}
	}

	plan.Where = Normalize(d, criteria)
	plan.OrderBy = opts.OrderBy
	plan.GroupBy = opts.GroupBy
	plan.Limit = opts.Limit
	plan.Offset = opts.Offset
	plan.Distinct = opts.Distinct
	return plan, nil
}

func addEagerJoin(resolver Resolver, plan *QueryPlan, d *metadata.Descriptor, rel metadata.RelationDescriptor) error {
	target, err := resolver.Parse(rel.TargetTypeID)
	if err != nil {
		return err
	}
	relAlias := relationAlias(d.Alias, rel.FieldName)

	switch rel.Kind {
	case metadata.OneToOne, metadata.ManyToOne:
		if rel.JoinColumn != nil {
			plan.Joins = append(plan.Joins, Join{
				Kind:  LeftJoin,
				Table: target.Table,
				Alias: relAlias,
				OnSQL: fmt.Sprintf("%s = %s", qualify(d.Alias, rel.JoinColumn.Name), qualify(relAlias, rel.JoinColumn.ReferencedColumn)),
			})
		} else {
			inverseJoinCol, err := inverseOwningColumn(target, rel.MappedBy)
			if err != nil {
				return err
			}
			plan.Joins = append(plan.Joins, Join{
				Kind:  LeftJoin,
				Table: target.Table,
				Alias: relAlias,
				OnSQL: fmt.Sprintf("%s = %s", qualify(relAlias, inverseJoinCol), qualify(d.Alias, d.PrimaryKey.Column)),
			})
		}
		addColumnsAliased(plan, target, relAlias, d.Alias, rel.FieldName)

	case metadata.OneToMany:
		inverseJoinCol, err := inverseOwningColumn(target, rel.MappedBy)
		if err != nil {
			return err
		}
		plan.Joins = append(plan.Joins, Join{
			Kind:  LeftJoin,
			Table: target.Table,
			Alias: relAlias,
			OnSQL: fmt.Sprintf("%s = %s", qualify(relAlias, inverseJoinCol), qualify(d.Alias, d.PrimaryKey.Column)),
		})
		addColumnsAliased(plan, target, relAlias, d.Alias, rel.FieldName)

	case metadata.ManyToMany:
		if rel.JoinTable == nil {
			return fmt.Errorf("query: %s.%s: many-to-many relation has no join_table", d.TypeID, rel.FieldName)
		}
		jtAlias := relAlias + "__jt"
		plan.Joins = append(plan.Joins, Join{
			Kind:  LeftJoin,
			Table: rel.JoinTable.Name,
			Alias: jtAlias,
			OnSQL: fmt.Sprintf("%s = %s", qualify(d.Alias, d.PrimaryKey.Column), qualify(jtAlias, rel.JoinTable.OwnerFK)),
		})
		plan.Joins = append(plan.Joins, Join{
			Kind:  LeftJoin,
			Table: target.Table,
			Alias: relAlias,
			OnSQL: fmt.Sprintf("%s = %s", qualify(jtAlias, rel.JoinTable.InverseFK), qualify(relAlias, target.PrimaryKey.Column)),
		})
		addColumnsAliased(plan, target, relAlias, d.Alias, rel.FieldName)
	}
	return nil
}

// addColumnsAliased adds target's columns using the
// "{root_alias}__{relation_field}_{column}" row-key contract.
func addColumnsAliased(plan *QueryPlan, target *metadata.Descriptor, relAlias, rootAlias, field string) {
	for _, fieldName := range target.ColumnOrder {
		col := target.Columns[fieldName]
		plan.Columns = append(plan.Columns, ColumnRef{
			Expr:  qualify(relAlias, col.Name),
			Alias: fmt.Sprintf("%s__%s_%s", rootAlias, field, col.Name),
		})
	}
}

func inverseOwningColumn(target *metadata.Descriptor, mappedBy string) (string, error) {
	owningRel, ok := target.Relation(mappedBy)
	if !ok || owningRel.JoinColumn == nil {
		return "", fmt.Errorf("query: mapped_by target field %s.%s has no owning join_column", target.TypeID, mappedBy)
	}
	return owningRel.JoinColumn.Name, nil
}
