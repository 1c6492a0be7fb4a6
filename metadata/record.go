package metadata

import (
	"reflect"

	"github.com/goentity/entitymap/ormerr"
	"github.com/goentity/entitymap/relation"
)

// New allocates a zero-valued record of d's Go type and returns a
// pointer to it, without calling any constructor.
func New(d *Descriptor) any {
	return reflect.New(d.GoType).Interface()
}

func structValue(record any) reflect.Value {
	v := reflect.ValueOf(record)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	return v
}

// Extract reads every declared column from record into a map keyed by
// physical column name. When excludePrimaryKey is true, the primary key
// column is omitted — the shape InsertBuilder needs when the key is
// database-generated.
func Extract(d *Descriptor, record any, excludePrimaryKey bool) map[string]any {
	v := structValue(record)
	out := make(map[string]any, len(d.ColumnOrder))
	for _, fieldName := range d.ColumnOrder {
		col := d.Columns[fieldName]
		if excludePrimaryKey && fieldName == d.PrimaryKey.FieldName {
			continue
		}
		fv := v.FieldByName(fieldName)
		if fv.Kind() == reflect.Ptr && fv.IsNil() {
			out[col.Name] = nil
			continue
		}
		out[col.Name] = reflect.Indirect(fv).Interface()
	}
	return out
}

// GetColumn reads one column's current Go-side value by field name.
func GetColumn(d *Descriptor, record any, fieldName string) any {
	v := structValue(record)
	fv := v.FieldByName(fieldName)
	if fv.Kind() == reflect.Ptr && fv.IsNil() {
		return nil
	}
	return reflect.Indirect(fv).Interface()
}

// SetColumn coerces raw (as read from a driver.Row) per the column's
// sql_type and writes it into record's field.
func SetColumn(d *Descriptor, record any, fieldName string, raw any) error {
	col, ok := d.Columns[fieldName]
	if !ok {
		return &ormerr.HydrationError{TypeID: d.TypeID, Column: fieldName, Reason: "no such column"}
	}
	value, err := coerce(d, col, raw)
	if err != nil {
		return err
	}
	v := structValue(record)
	fv := v.FieldByName(fieldName)
	if !fv.CanSet() {
		return &ormerr.HydrationError{TypeID: d.TypeID, Column: col.Name, Reason: "field not settable"}
	}
	if value == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}
	if fv.Kind() == reflect.Ptr {
		elem := reflect.New(fv.Type().Elem())
		if err := assign(elem.Elem(), value, d, col); err != nil {
			return err
		}
		fv.Set(elem)
		return nil
	}
	return assign(fv, value, d, col)
}

func assign(dst reflect.Value, value any, d *Descriptor, col ColumnDescriptor) error {
	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(dst.Type()) {
		dst.Set(rv)
		return nil
	}
	if rv.Type().ConvertibleTo(dst.Type()) {
		dst.Set(rv.Convert(dst.Type()))
		return nil
	}
	return &ormerr.HydrationError{TypeID: d.TypeID, Column: col.Name, Reason: "value not assignable to field type"}
}

// PrimaryKeyValue reads record's current primary key value, or nil if
// it is the zero value of its type (not yet assigned).
func PrimaryKeyValue(d *Descriptor, record any) any {
	v := GetColumn(d, record, d.PrimaryKey.FieldName)
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.IsZero() {
		return nil
	}
	return v
}

// SetPrimaryKeyValue writes a freshly generated id into record's
// primary key field, e.g. after an INSERT.
func SetPrimaryKeyValue(d *Descriptor, record any, id any) error {
	return SetColumn(d, record, d.PrimaryKey.FieldName, id)
}

// ApplyDefaults writes each declared column's default value into
// record wherever the field is still its Go zero value — the
// UnitOfWork runs this once per record on ScheduleInsert, before
// extracting values for the INSERT plan.
func ApplyDefaults(d *Descriptor, record any) error {
	v := structValue(record)
	for _, fieldName := range d.ColumnOrder {
		col := d.Columns[fieldName]
		if col.Default == nil {
			continue
		}
		fv := v.FieldByName(fieldName)
		if !fv.IsZero() {
			continue
		}
		if err := SetColumn(d, record, fieldName, col.Default); err != nil {
			return err
		}
	}
	return nil
}

// GetRelationBox returns the relation.Box currently installed in
// record's relation field.
func GetRelationBox(record any, fieldName string) relation.Box {
	v := structValue(record)
	fv := v.FieldByName(fieldName)
	return fv.Interface().(relation.Box)
}

// SetRelationBox installs box into record's relation field.
func SetRelationBox(record any, fieldName string, box relation.Box) {
	v := structValue(record)
	fv := v.FieldByName(fieldName)
	fv.Set(reflect.ValueOf(box))
}
