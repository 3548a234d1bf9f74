package rowmap

import (
	"fmt"
	"reflect"

	relata "github.com/relata-go/relata"
	dsql "github.com/relata-go/relata/dialect/sql"
	"github.com/relata-go/relata/dialect/sql/schema"
)

// ScanRow reads the current row (the caller has already advanced scanner
// with Next) into dest, a pointer to a struct whose fields are named by
// table's ColumnSpec.ModelAttributeName. Unknown result columns are
// ignored; declared columns absent from the result set are left at their
// zero value (§4.7 single-row mode).
func ScanRow(scanner dsql.ColumnScanner, table *schema.TableSpec, dest any) error {
	cols, err := scanner.Columns()
	if err != nil {
		return err
	}
	raws, ptrs := newScanBuffer(len(cols))
	if err := scanner.Scan(ptrs...); err != nil {
		return err
	}

	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("rowmap: dest must be a pointer to struct, got %T", dest)
	}
	return fillStruct(rv.Elem(), table, "", indexOf(cols), raws)
}

// ScanAll iterates every remaining row, materializing one dest via newDest
// per row (single-row mode applied row by row — Repository.list/page/find
// build on this rather than the eager-load path).
func ScanAll(scanner dsql.ColumnScanner, table *schema.TableSpec, newDest func() any) ([]any, error) {
	var out []any
	for scanner.Next() {
		dest := newDest()
		if err := ScanRow(scanner, table, dest); err != nil {
			return nil, err
		}
		out = append(out, dest)
	}
	return out, scanner.Err()
}

// FromRecord fills dest's fields from record, a plain column-name-keyed map,
// using the same ColumnSpec.ModelAttributeName lookup and value conversion
// as ScanRow. Unlike ScanRow it needs no live *sql.Rows, so callers building
// a struct from a decoded fixture file, a message-queue payload, or any
// other already-materialized record can reuse the same conversion rules a
// live query result goes through. Keys absent from table's columns, or with
// a nil value, leave the corresponding field at dest's existing value.
func FromRecord[T any](record map[string]any, table *schema.TableSpec, dest T) (T, error) {
	rv := reflect.ValueOf(&dest).Elem()
	if rv.Kind() != reflect.Struct {
		return dest, fmt.Errorf("rowmap: dest must be a struct, got %T", dest)
	}
	if err := fillStructFromRecord(rv, table, record); err != nil {
		return dest, err
	}
	return dest, nil
}

func fillStructFromRecord(structVal reflect.Value, table *schema.TableSpec, record map[string]any) error {
	for _, col := range table.Columns {
		raw, ok := record[col.Name]
		if !ok || raw == nil {
			continue
		}

		field := structVal.FieldByName(col.ModelAttributeName)
		if !field.IsValid() || !field.CanSet() {
			continue
		}

		v, err := convert(col.Name, field.Type(), raw)
		if err != nil {
			return err
		}
		field.Set(v)
	}
	return nil
}

// EagerChild describes one included navigation's materialization target:
// Table is the child's TableSpec, New returns a pointer to a fresh zero
// child struct, and Field names the slice field on the base struct that
// accumulates matched children.
type EagerChild struct {
	Table *schema.TableSpec
	New   func() any
	Field string
}

// ScanEagerLoad consumes a result set produced from a SELECT with
// `<table>.<col> AS <table>_<col>` aliasing (QueryPlanner's eager-load
// SELECT list) and reassembles base entities with their included children
// attached, preserving row order within each base's child collection
// (§4.7 eager-load mode).
func ScanEagerLoad(scanner dsql.ColumnScanner, base *schema.TableSpec, newBase func() any, children []EagerChild) ([]any, error) {
	if len(base.PrimaryKey) == 0 {
		return nil, relata.NewMappingError(base.TableName, "eager-load", fmt.Errorf("table has no primary key"))
	}
	basePK := base.PrimaryKey[0]

	cols, err := scanner.Columns()
	if err != nil {
		return nil, err
	}
	colIdx := indexOf(cols)

	var (
		order    []any
		byKey    = map[string]reflect.Value{} // base PK -> base struct value (Elem)
		childSet = map[string]map[string]bool{} // baseKey -> childTable -> seen child PK
	)

	for scanner.Next() {
		raws, ptrs := newScanBuffer(len(cols))
		if err := scanner.Scan(ptrs...); err != nil {
			return nil, err
		}

		basePrefix := base.TableName + "_"
		baseKeyIdx, ok := colIdx[basePrefix+basePK]
		if !ok {
			return nil, relata.NewMappingError(basePrefix+basePK, "eager-load", fmt.Errorf("base primary key column missing from result set"))
		}
		if raws[baseKeyIdx] == nil {
			continue
		}
		baseKey := fmt.Sprint(raws[baseKeyIdx])

		baseElem, seen := byKey[baseKey]
		if !seen {
			instance := newBase()
			baseElem = reflect.ValueOf(instance).Elem()
			if err := fillStruct(baseElem, base, basePrefix, colIdx, raws); err != nil {
				return nil, err
			}
			byKey[baseKey] = baseElem
			childSet[baseKey] = map[string]bool{}
			order = append(order, instance)
		}

		for _, child := range children {
			if err := attachChild(baseElem, child, baseKey, colIdx, raws, childSet[baseKey]); err != nil {
				return nil, err
			}
		}
	}

	return order, scanner.Err()
}

func attachChild(baseElem reflect.Value, child EagerChild, baseKey string, colIdx map[string]int, raws []any, seen map[string]bool) error {
	if len(child.Table.PrimaryKey) == 0 {
		return relata.NewMappingError(child.Table.TableName, "eager-load", fmt.Errorf("child table has no primary key"))
	}
	childPK := child.Table.PrimaryKey[0]
	childPrefix := child.Table.TableName + "_"

	idx, ok := colIdx[childPrefix+childPK]
	if !ok || raws[idx] == nil {
		return nil // no matching child row for this base row (LEFT JOIN outer side)
	}
	childKey := fmt.Sprint(raws[idx])
	setKey := child.Table.TableName + ":" + childKey
	if seen[setKey] {
		return nil
	}
	seen[setKey] = true

	instance := child.New()
	childElem := reflect.ValueOf(instance).Elem()
	if err := fillStruct(childElem, child.Table, childPrefix, colIdx, raws); err != nil {
		return err
	}

	field := baseElem.FieldByName(child.Field)
	if !field.IsValid() {
		return fmt.Errorf("rowmap: base struct has no field %q for navigation %q", child.Field, child.Table.TableName)
	}
	field.Set(reflect.Append(field, reflect.ValueOf(instance)))
	return nil
}

func fillStruct(structVal reflect.Value, table *schema.TableSpec, prefix string, colIdx map[string]int, raws []any) error {
	for _, col := range table.Columns {
		idx, ok := colIdx[prefix+col.Name]
		if !ok {
			continue
		}
		raw := raws[idx]
		if raw == nil {
			continue
		}

		field := structVal.FieldByName(col.ModelAttributeName)
		if !field.IsValid() || !field.CanSet() {
			continue
		}

		v, err := convert(col.Name, field.Type(), raw)
		if err != nil {
			return err
		}
		field.Set(v)
	}
	return nil
}

func newScanBuffer(n int) ([]any, []any) {
	raws := make([]any, n)
	ptrs := make([]any, n)
	for i := range raws {
		ptrs[i] = &raws[i]
	}
	return raws, ptrs
}

func indexOf(cols []string) map[string]int {
	m := make(map[string]int, len(cols))
	for i, c := range cols {
		m[c] = i
	}
	return m
}
