package metadata

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/goentity/entitymap/ormerr"
)

// coerce converts a raw driver value (as returned by driver.Row) into
// the Go value a column's sql_type expects, adapted from the generic
// database-value normalisation every SQL driver needs (different
// drivers return ints as int64, uint64 or even string/[]byte
// depending on column type).
func coerce(d *Descriptor, col ColumnDescriptor, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch col.SQLType {
	case "int":
		return toInt64(v), nil
	case "float":
		return toFloat64(v), nil
	case "bool":
		return toBool(v), nil
	case "datetime":
		t, err := toTime(v)
		if err != nil {
			return nil, &ormerr.HydrationError{TypeID: d.TypeID, Column: col.Name, Reason: err.Error()}
		}
		return t, nil
	case "json":
		parsed, err := toJSON(v)
		if err != nil {
			return nil, &ormerr.HydrationError{TypeID: d.TypeID, Column: col.Name, Reason: err.Error()}
		}
		return parsed, nil
	default:
		return toInterface(v), nil
	}
}

func toBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case int64:
		return val != 0
	case float64:
		return val != 0
	case string:
		switch val {
		case "true", "TRUE", "1", "yes":
			return true
		default:
			if n, err := strconv.ParseFloat(val, 64); err == nil {
				return n != 0
			}
			return false
		}
	case []byte:
		return toBool(string(val))
	default:
		return false
	}
}

func toInt64(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case uint64:
		return int64(val)
	case float64:
		return int64(val)
	case bool:
		if val {
			return 1
		}
		return 0
	case string:
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return int64(f)
		}
		return 0
	case []byte:
		return toInt64(string(val))
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int64:
		return float64(val)
	case int:
		return float64(val)
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
		return 0
	case []byte:
		return toFloat64(string(val))
	default:
		return 0
	}
}

func toTime(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val.UTC(), nil
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, val); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse %q as datetime", val)
	case []byte:
		return toTime(string(val))
	case int64:
		return time.Unix(val, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("cannot coerce %T to datetime", v)
	}
}

func toJSON(v any) (any, error) {
	var raw []byte
	switch val := v.(type) {
	case []byte:
		raw = val
	case string:
		raw = []byte(val)
	default:
		return v, nil
	}
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("cannot parse json: %w", err)
	}
	return parsed, nil
}

func toInterface(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
