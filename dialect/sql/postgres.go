package sql

import (
	"fmt"
	"strconv"
	"strings"

	// Registers the PostgreSQL database/sql driver under the "postgres" name.
	_ "github.com/lib/pq"
)

// postgresDialect implements Dialect for PostgreSQL, grounded in
// zakandrewking-lockplane/database/postgres/introspector.go for the
// information_schema/pg_catalog query shapes.
type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d postgresDialect) QualifyTable(schemaName, table string) string {
	if schemaName == "" {
		schemaName = "public"
	}
	return d.QuoteIdent(schemaName) + "." + d.QuoteIdent(table)
}

func (postgresDialect) Placeholder(i int) string { return "$" + strconv.Itoa(i+1) }

func (postgresDialect) ColumnType(spec ColumnTypeSpec) string {
	switch spec.Logical {
	case TypeTinyInt, TypeSmallInt:
		return "SMALLINT"
	case TypeInt:
		return "INTEGER"
	case TypeBigInt:
		return "BIGINT"
	case TypeDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", spec.Precision, spec.Scale)
	case TypeFloat:
		return "REAL"
	case TypeDouble:
		return "DOUBLE PRECISION"
	case TypeVarChar:
		size := spec.Size
		if size <= 0 {
			size = 255
		}
		return "VARCHAR(" + strconv.FormatInt(size, 10) + ")"
	case TypeChar:
		return "CHAR(" + strconv.FormatInt(spec.Size, 10) + ")"
	case TypeText:
		return "TEXT"
	case TypeDateTime:
		return "TIMESTAMP"
	case TypeTimestamp:
		return "TIMESTAMP"
	case TypeTimestampTz:
		return "TIMESTAMP WITH TIME ZONE"
	case TypeDate:
		return "DATE"
	case TypeJSON:
		return "JSON"
	case TypeJSONB:
		return "JSONB"
	case TypeUUID:
		return "UUID"
	case TypeBool:
		return "BOOLEAN"
	case TypeBlob:
		return "BYTEA"
	case TypeIntArray:
		return "INTEGER[]"
	default:
		return "TEXT"
	}
}

// AutoIncrementClause is empty: PostgreSQL auto-increment is expressed as
// an IDENTITY column, which the schema synchronizer's column renderer
// appends itself ("GENERATED BY DEFAULT AS IDENTITY") rather than taking a
// modifier from here.
func (postgresDialect) AutoIncrementClause() string { return "" }

// OnUpdateTimestampClause is empty: PostgreSQL has no column-level
// "update on every write" modifier; it requires a BEFORE UPDATE trigger,
// out of scope per the ambient-stack Non-goals.
func (postgresDialect) OnUpdateTimestampClause() string { return "" }

func (postgresDialect) DefaultClause(expr string) string {
	if strings.EqualFold(expr, "CURRENT_TIMESTAMP") {
		return "DEFAULT CURRENT_TIMESTAMP"
	}
	return "DEFAULT " + expr
}

func (postgresDialect) LastInsertIDStrategy() string { return "returning" }

func (postgresDialect) TableExistsQuery(schemaName, table string) (string, []any) {
	if schemaName == "" {
		schemaName = "public"
	}
	return `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2`,
		[]any{schemaName, table}
}

func (postgresDialect) ColumnsQuery(schemaName, table string) (string, []any) {
	if schemaName == "" {
		schemaName = "public"
	}
	return `
		SELECT
			c.column_name,
			CASE
				WHEN c.data_type = 'ARRAY' THEN replace(c.udt_name, '_', '') || '[]'
				ELSE c.data_type
			END AS rendered_type,
			c.is_nullable,
			c.column_default,
			CASE WHEN pk.column_name IS NOT NULL THEN 'PRI' ELSE '' END AS column_key,
			'' AS extra,
			c.character_set_name,
			COALESCE(pgd.description, '') AS column_comment
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT kcu.column_name
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
			  ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
			WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = $1 AND tc.table_name = $2
		) pk ON pk.column_name = c.column_name
		LEFT JOIN pg_catalog.pg_statio_all_tables st ON st.schemaname = c.table_schema AND st.relname = c.table_name
		LEFT JOIN pg_catalog.pg_description pgd ON pgd.objoid = st.relid AND pgd.objsubid = c.ordinal_position
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`, []any{schemaName, table}
}

func (postgresDialect) IndexesQuery(schemaName, table string) (string, []any) {
	if schemaName == "" {
		schemaName = "public"
	}
	return `
		SELECT
			ix.relname AS index_name,
			indisunique AS is_unique,
			array_to_string(array_agg(a.attname ORDER BY k.ord), ',') AS columns
		FROM pg_index i
		JOIN pg_class t ON t.oid = i.indrelid
		JOIN pg_class ix ON ix.oid = i.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN unnest(i.indkey) WITH ORDINALITY AS k(attnum, ord) ON true
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		WHERE n.nspname = $1 AND t.relname = $2 AND NOT i.indisprimary
		GROUP BY ix.relname, indisunique`, []any{schemaName, table}
}

func (postgresDialect) ForeignKeysQuery(schemaName, table string) (string, []any) {
	if schemaName == "" {
		schemaName = "public"
	}
	return `
		SELECT
			tc.constraint_name, tc.table_name, kcu.column_name, ccu.table_name AS referenced_table,
			ccu.column_name AS referenced_column, rc.update_rule, rc.delete_rule
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
		JOIN information_schema.referential_constraints rc
		  ON rc.constraint_name = tc.constraint_name AND rc.constraint_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1
		  AND (tc.table_name = $2 OR ccu.table_name = $2)`, []any{schemaName, table}
}

func (d postgresDialect) ShowCreateTable(schemaName, table string) (string, []any) {
	if schemaName == "" {
		schemaName = "public"
	}
	// PostgreSQL has no SHOW CREATE TABLE; the schema-backup collaborator
	// reconstructs DDL from the same introspection queries above, so this
	// only returns the qualified "schema.table" name as text.
	return `SELECT $1 || '.' || $2`, []any{schemaName, table}
}

// EngineQuery returns an empty query: PostgreSQL has no per-table storage
// engine concept, so there is no engine dimension to diff.
func (postgresDialect) EngineQuery(_, _ string) (string, []any) { return "", nil }

func (postgresDialect) SupportsDestructiveFKCheck() bool { return true }

func (postgresDialect) IsForeignKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "23503") || strings.Contains(strings.ToLower(msg), "violates foreign key constraint")
}

var _ Dialect = postgresDialect{}
