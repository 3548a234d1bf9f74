package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/relata-go/relata"
	dsql "github.com/relata-go/relata/dialect/sql"
)

// ValidateTableSpec checks one TableSpec's internal consistency against
// the data model's structural invariants, ahead of ever touching a live
// connection: column names are unique (I1), every index and foreign-key
// column resolves to a declared column (I2, the local half of I3), the
// primary key names resolve too (I4), and AutoIncrement only appears on
// a NOT NULL integer column (I5). Synchronizer.SyncTable runs this before
// comparing the spec against the live schema, so a malformed TableSpec
// fails fast with a SchemaError instead of surfacing as a confusing
// driver-level error partway through a diff.
func ValidateTableSpec(t *TableSpec) error {
	var violations []string

	columns := make(map[string]ColumnSpec, len(t.Columns))
	for _, c := range t.Columns {
		if _, dup := columns[c.Name]; dup {
			violations = append(violations, fmt.Sprintf("duplicate column name %q", c.Name))
			continue
		}
		columns[c.Name] = c
	}

	for name, c := range columns {
		if !c.AutoIncrement {
			continue
		}
		if !c.NotNull {
			violations = append(violations, fmt.Sprintf("column %q is AutoIncrement but not NOT NULL", name))
		}
		if !isIntegerLogical(c.Logical) {
			violations = append(violations, fmt.Sprintf("column %q is AutoIncrement but logical type %s is not an integer type", name, c.Logical))
		}
	}

	for _, pk := range t.PrimaryKey {
		if _, ok := columns[pk]; !ok {
			violations = append(violations, fmt.Sprintf("primary key names undeclared column %q", pk))
		}
	}

	seenIndex := make(map[string]bool, len(t.Indexes))
	for _, idx := range t.Indexes {
		if seenIndex[idx.Name] {
			violations = append(violations, fmt.Sprintf("duplicate index name %q", idx.Name))
		}
		seenIndex[idx.Name] = true
		for _, col := range idx.Columns {
			if _, ok := columns[col]; !ok {
				violations = append(violations, fmt.Sprintf("index %q references undeclared column %q", idx.Name, col))
			}
		}
	}

	seenFK := make(map[string]bool, len(t.ForeignKeys))
	for _, fk := range t.ForeignKeys {
		if fk.ConstraintName != "" {
			if seenFK[fk.ConstraintName] {
				violations = append(violations, fmt.Sprintf("duplicate foreign key constraint name %q", fk.ConstraintName))
			}
			seenFK[fk.ConstraintName] = true
		}
		if _, ok := columns[fk.LocalColumn]; !ok {
			violations = append(violations, fmt.Sprintf("foreign key %q references undeclared local column %q", fk.ConstraintName, fk.LocalColumn))
		}
	}

	if len(violations) == 0 {
		return nil
	}
	return relata.NewSchemaError(t.TableName, "validate", errors.New(strings.Join(violations, "; ")))
}

// ValidateForeignKeyTargets checks the referenced half of every foreign
// key across a set of TableSpecs: a fk.ReferencedTable that is part of
// the same set must declare fk.ReferencedColumn. A ReferencedTable
// outside the set is assumed to already exist in the live schema and is
// left to the synchronizer's own FK-add step to reject at the backend.
// ModelCatalog.SyncNamespace runs this once over every registered model
// before syncing any of them, so a typo'd association fails before any
// DDL runs rather than mid-batch.
func ValidateForeignKeyTargets(tables []*TableSpec) error {
	byName := make(map[string]*TableSpec, len(tables))
	for _, t := range tables {
		byName[t.TableName] = t
	}

	var violations []string
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			ref, ok := byName[fk.ReferencedTable]
			if !ok {
				continue
			}
			if _, ok := ref.Column(fk.ReferencedColumn); !ok {
				violations = append(violations, fmt.Sprintf("%s.%s -> %s.%s: referenced column does not exist",
					t.TableName, fk.LocalColumn, fk.ReferencedTable, fk.ReferencedColumn))
			}
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return relata.NewSchemaError("", "validate-namespace", errors.New(strings.Join(violations, "; ")))
}

func isIntegerLogical(lt dsql.LogicalType) bool {
	switch lt {
	case dsql.TypeTinyInt, dsql.TypeSmallInt, dsql.TypeInt, dsql.TypeBigInt:
		return true
	default:
		return false
	}
}
