// Package rowmap materializes driver rows into model structs, following a
// per-logical-type conversion table (§4.7): both the single-row mode
// Repository uses for getById/list/page, and the eager-load mode that
// reassembles parent + included child rows from one flattened result set.
package rowmap

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	relata "github.com/relata-go/relata"
)

var (
	timeType = reflect.TypeOf(time.Time{})
	uuidType = reflect.TypeOf(uuid.UUID{})
)

// convert coerces a raw driver value (whatever the database/sql scanner
// produced — typically int64, float64, bool, []byte, string, or time.Time)
// into fieldType, the Go type a struct field declares. raw is never nil
// here; callers skip DBNull columns before calling convert, leaving the
// field at its zero value (§4.7: "for each present column ... that is not
// DBNull").
func convert(column string, fieldType reflect.Type, raw any) (reflect.Value, error) {
	if fieldType.Kind() == reflect.Ptr {
		elem, err := convert(column, fieldType.Elem(), raw)
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(fieldType.Elem())
		ptr.Elem().Set(elem)
		return ptr, nil
	}

	switch fieldType {
	case timeType:
		return convertTime(column, raw)
	case uuidType:
		return convertUUID(column, raw)
	}

	switch fieldType.Kind() {
	case reflect.String:
		return reflect.ValueOf(toString(raw)).Convert(fieldType), nil
	case reflect.Bool:
		return reflect.ValueOf(toBool(raw)).Convert(fieldType), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt64(raw)
		if err != nil {
			return reflect.Value{}, relata.NewMappingError(column, fieldType.String(), err)
		}
		return reflect.ValueOf(n).Convert(fieldType), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toInt64(raw)
		if err != nil {
			return reflect.Value{}, relata.NewMappingError(column, fieldType.String(), err)
		}
		return reflect.ValueOf(uint64(n)).Convert(fieldType), nil
	case reflect.Float32, reflect.Float64:
		f, err := toFloat64(raw)
		if err != nil {
			return reflect.Value{}, relata.NewMappingError(column, fieldType.String(), err)
		}
		return reflect.ValueOf(f).Convert(fieldType), nil
	case reflect.Slice:
		if fieldType.Elem().Kind() == reflect.Uint8 {
			return reflect.ValueOf(toBytes(raw)).Convert(fieldType), nil
		}
	}

	// Anything left (struct, map, slice-of-non-byte) is assumed JSON.
	target := reflect.New(fieldType)
	if err := json.Unmarshal(toBytes(raw), target.Interface()); err != nil {
		return reflect.Value{}, relata.NewMappingError(column, fieldType.String(), err)
	}
	return target.Elem(), nil
}

func toString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func toBytes(raw any) []byte {
	switch v := raw.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return []byte(fmt.Sprint(v))
	}
}

func toBool(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case []byte:
		return len(v) > 0 && (v[0] == '1' || v[0] == 't' || v[0] == 'T')
	case string:
		return v == "1" || v == "true" || v == "t"
	default:
		return false
	}
}

func toInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case []byte:
		var n int64
		_, err := fmt.Sscanf(string(v), "%d", &n)
		return n, err
	case string:
		var n int64
		_, err := fmt.Sscanf(v, "%d", &n)
		return n, err
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("rowmap: cannot convert %T to int64", raw)
	}
}

func toFloat64(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case []byte:
		var f float64
		_, err := fmt.Sscanf(string(v), "%g", &f)
		return f, err
	case string:
		var f float64
		_, err := fmt.Sscanf(v, "%g", &f)
		return f, err
	default:
		return 0, fmt.Errorf("rowmap: cannot convert %T to float64", raw)
	}
}

// timeLayouts covers the datetime text shapes MySQL and SQLite drivers
// hand back when the column isn't parsed driver-side into time.Time.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	time.RFC3339,
	"2006-01-02",
}

func convertTime(column string, raw any) (reflect.Value, error) {
	switch v := raw.(type) {
	case time.Time:
		return reflect.ValueOf(v), nil
	case []byte:
		return parseTime(column, string(v))
	case string:
		return parseTime(column, v)
	default:
		return reflect.Value{}, relata.NewMappingError(column, "time.Time", fmt.Errorf("unsupported driver value %T", raw))
	}
}

func parseTime(column, s string) (reflect.Value, error) {
	var lastErr error
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return reflect.ValueOf(t), nil
		} else {
			lastErr = err
		}
	}
	return reflect.Value{}, relata.NewMappingError(column, "time.Time", lastErr)
}

func convertUUID(column string, raw any) (reflect.Value, error) {
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return reflect.Value{}, relata.NewMappingError(column, "uuid.UUID", fmt.Errorf("unsupported driver value %T", raw))
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return reflect.Value{}, relata.NewMappingError(column, "uuid.UUID", err)
	}
	return reflect.ValueOf(id), nil
}
