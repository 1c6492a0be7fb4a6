package metadata

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/goentity/entitymap/ormerr"
	"github.com/goentity/entitymap/relation"
)

var boxType = reflect.TypeOf(relation.Box{})
var metaType = reflect.TypeOf(Meta{})

// parseDescriptor builds a Descriptor from goType's field tags. typeID
// is the stable identifier this descriptor will be registered under.
func parseDescriptor(typeID string, goType reflect.Type) (*Descriptor, error) {
	for goType.Kind() == reflect.Ptr {
		goType = goType.Elem()
	}
	if goType.Kind() != reflect.Struct {
		return nil, &ormerr.InvalidEntity{TypeID: typeID, Reason: "not a struct type"}
	}

	d := &Descriptor{
		TypeID:    typeID,
		Columns:   map[string]ColumnDescriptor{},
		Relations: map[string]RelationDescriptor{},
		GoType:    goType,
	}

	haveMarker := false
	var pkFields []string

	for i := 0; i < goType.NumField(); i++ {
		f := goType.Field(i)

		if f.Anonymous && f.Type == metaType {
			tag, ok := f.Tag.Lookup(TagKey)
			if !ok {
				continue
			}
			dir := parseTag(tag)
			table, ok := dir.get("table")
			if !ok {
				return nil, &ormerr.InvalidEntity{TypeID: typeID, Reason: "Meta marker missing table="}
			}
			d.Table = table
			d.Alias = dir.getOr("alias", strings.ToLower(goType.Name()))
			haveMarker = true
			continue
		}

		if !f.IsExported() {
			continue
		}
		tag, ok := f.Tag.Lookup(TagKey)
		if !ok || tag == "-" {
			continue
		}
		dir := parseTag(tag)

		if f.Type == boxType {
			rel, err := parseRelation(typeID, f, dir)
			if err != nil {
				return nil, err
			}
			d.RelationOrder = append(d.RelationOrder, f.Name)
			d.Relations[f.Name] = rel
			continue
		}

		col := ColumnDescriptor{
			FieldName: f.Name,
			Name:      dir.getOr("column", strings.ToLower(f.Name)),
			SQLType:   dir.getOr("sqltype", inferSQLType(f.Type)),
			Nullable:  f.Type.Kind() == reflect.Ptr,
		}
		if l, ok := dir.get("length"); ok {
			if n, err := strconv.Atoi(l); err == nil {
				col.Length = n
			}
		}
		if def, ok := dir.get("default"); ok {
			col.Default = def
		}
		d.ColumnOrder = append(d.ColumnOrder, f.Name)
		d.Columns[f.Name] = col

		if dir.has("pk") {
			pkFields = append(pkFields, f.Name)
			d.PrimaryKey = PrimaryKeyDescriptor{
				FieldName: f.Name,
				Column:    col.Name,
				Generated: dir.has("generated"),
			}
		}
	}

	if !haveMarker {
		return nil, &ormerr.InvalidEntity{TypeID: typeID, Reason: "missing metadata.Meta table/alias marker"}
	}
	if len(pkFields) == 0 {
		return nil, &ormerr.InvalidEntity{TypeID: typeID, Reason: "no primary key column declared"}
	}
	if len(pkFields) > 1 {
		return nil, &ormerr.InvalidEntity{TypeID: typeID, Reason: "duplicate primary key declaration: " + strings.Join(pkFields, ", ")}
	}

	// Associate owning-side join columns with their backing column, if
	// the struct declares one explicitly (join_column names a physical
	// column, not a field; resolve by name).
	for fieldName, rel := range d.Relations {
		if rel.JoinColumn == nil {
			continue
		}
		if col, ok := d.ColumnByName(rel.JoinColumn.Name); ok {
			col.JoinColumnOf = fieldName
			d.Columns[col.FieldName] = col
		}
	}

	return d, nil
}

func parseRelation(typeID string, f reflect.StructField, dir tagDirectives) (RelationDescriptor, error) {
	kindStr, ok := dir.get("relation")
	if !ok {
		return RelationDescriptor{}, &ormerr.InvalidEntity{TypeID: typeID, Reason: "relation field " + f.Name + " missing relation= kind"}
	}
	target, ok := dir.get("target")
	if !ok {
		return RelationDescriptor{}, &ormerr.InvalidEntity{TypeID: typeID, Reason: "relation field " + f.Name + " missing target="}
	}

	var kind RelationKind
	switch kindStr {
	case "one_to_one":
		kind = OneToOne
	case "many_to_one":
		kind = ManyToOne
	case "one_to_many":
		kind = OneToMany
	case "many_to_many":
		kind = ManyToMany
	default:
		return RelationDescriptor{}, &ormerr.InvalidEntity{TypeID: typeID, Reason: "relation field " + f.Name + " has unknown kind " + kindStr}
	}

	fetch := Lazy
	if dir.getOr("fetch", "lazy") == "eager" {
		fetch = Eager
	}

	cascade := CascadeSet{}
	if c, ok := dir.get("cascade"); ok {
		for _, part := range strings.Split(c, "|") {
			switch strings.TrimSpace(part) {
			case "persist":
				cascade[CascadePersist] = true
			case "remove":
				cascade[CascadeRemove] = true
			}
		}
	}

	rel := RelationDescriptor{
		FieldName:    f.Name,
		Kind:         kind,
		TargetTypeID: target,
		Fetch:        fetch,
		Cascade:      cascade,
		MappedBy:     dir.getOr("mapped_by", ""),
	}

	if col, ok := dir.get("join_column"); ok {
		rel.JoinColumn = &JoinColumn{
			Name:             col,
			ReferencedColumn: dir.getOr("join_ref", "id"),
			Nullable:         dir.has("join_nullable"),
		}
	}
	if table, ok := dir.get("join_table"); ok {
		rel.JoinTable = &JoinTable{
			Name:      table,
			OwnerFK:   dir.getOr("join_table_owner_fk", ""),
			InverseFK: dir.getOr("join_table_inverse_fk", ""),
		}
	}

	switch kind {
	case OneToOne, ManyToOne:
		if rel.JoinColumn == nil && rel.MappedBy == "" {
			return RelationDescriptor{}, &ormerr.InvalidEntity{TypeID: typeID, Reason: f.Name + ": owning OneToOne/ManyToOne needs join_column, inverse needs mapped_by"}
		}
	case OneToMany:
		if rel.MappedBy == "" {
			return RelationDescriptor{}, &ormerr.InvalidEntity{TypeID: typeID, Reason: f.Name + ": OneToMany requires mapped_by"}
		}
	case ManyToMany:
		if rel.JoinTable == nil {
			return RelationDescriptor{}, &ormerr.InvalidEntity{TypeID: typeID, Reason: f.Name + ": ManyToMany requires join_table"}
		}
	}

	return rel, nil
}

var timeType = reflect.TypeOf(time.Time{})

func inferSQLType(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == timeType {
		return "datetime"
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "int"
	case reflect.Float32, reflect.Float64:
		return "float"
	case reflect.Bool:
		return "bool"
	case reflect.Slice, reflect.Map, reflect.Struct:
		return "json"
	default:
		return "string"
	}
}
