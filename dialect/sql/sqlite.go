package sql

import (
	"strings"

	// Registers the pure-Go SQLite database/sql driver under "sqlite".
	_ "modernc.org/sqlite"
)

// sqliteDialect implements Dialect for SQLite, grounded in
// Pieczasz-smf/internal/core/schema.go's type-affinity handling and the
// PRAGMA-based introspection shown throughout that repo.
type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d sqliteDialect) QualifyTable(_, table string) string {
	return d.QuoteIdent(table)
}

func (sqliteDialect) Placeholder(_ int) string { return "?" }

func (sqliteDialect) ColumnType(spec ColumnTypeSpec) string {
	switch spec.Logical {
	case TypeTinyInt, TypeSmallInt, TypeInt, TypeBigInt, TypeBool:
		return "INTEGER"
	case TypeDecimal:
		return "NUMERIC"
	case TypeFloat, TypeDouble:
		return "REAL"
	case TypeVarChar, TypeChar, TypeText, TypeUUID:
		return "TEXT"
	case TypeDateTime, TypeTimestamp, TypeTimestampTz, TypeDate:
		return "TEXT"
	case TypeJSON, TypeJSONB:
		return "TEXT"
	case TypeBlob:
		return "BLOB"
	case TypeIntArray:
		return "TEXT" // rendered as JSON text; SQLite has no array type.
	default:
		return "TEXT"
	}
}

func (sqliteDialect) AutoIncrementClause() string { return "AUTOINCREMENT" }

// OnUpdateTimestampClause is empty: SQLite needs an AFTER UPDATE trigger
// for this, out of scope per the ambient-stack Non-goals.
func (sqliteDialect) OnUpdateTimestampClause() string { return "" }

func (sqliteDialect) DefaultClause(expr string) string {
	if strings.EqualFold(expr, "CURRENT_TIMESTAMP") {
		return "DEFAULT CURRENT_TIMESTAMP"
	}
	return "DEFAULT " + expr
}

func (sqliteDialect) LastInsertIDStrategy() string { return "last_insert_rowid" }

func (sqliteDialect) TableExistsQuery(_, table string) (string, []any) {
	return `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, []any{table}
}

// ColumnsQuery wraps the pragma_table_info table-valued function (SQLite
// >= 3.16) in a SELECT so its (cid, name, type, notnull, dflt_value, pk)
// shape can be reprojected into the (name, type, nullable, default, key,
// extra, charset, comment) shape every other analyzer query produces.
// SQLite PRAGMAs don't bind parameters, so the table name is inlined as a
// quoted string literal argument to the table-valued function.
func (sqliteDialect) ColumnsQuery(_, table string) (string, []any) {
	arg := quoteSQLitePragmaArg(table)
	return `
		SELECT
			name,
			type,
			CASE WHEN "notnull" = 0 THEN 'YES' ELSE 'NO' END,
			dflt_value,
			CASE WHEN pk > 0 THEN 'PRI' ELSE '' END,
			'',
			'',
			''
		FROM pragma_table_info(` + arg + `)
		ORDER BY cid`, nil
}

// IndexesQuery reprojects pragma_index_list into (name, unique, columns),
// resolving each index's ordered column list via a correlated
// pragma_index_info lookup and excluding the implicit primary-key index.
func (sqliteDialect) IndexesQuery(_, table string) (string, []any) {
	arg := quoteSQLitePragmaArg(table)
	return `
		SELECT
			il.name,
			il."unique",
			(SELECT group_concat(name, ',') FROM (
				SELECT name FROM pragma_index_info(il.name) ORDER BY seqno
			))
		FROM pragma_index_list(` + arg + `) il
		WHERE il.origin != 'pk'`, nil
}

// ForeignKeysQuery reprojects pragma_foreign_key_list into (constraint,
// owning table, local column, referenced table, referenced column,
// on_update, on_delete). SQLite has no named constraints, so one is
// synthesized from the table and the pragma's per-FK id; only outgoing
// foreign keys are visible this way, matching what a model typically
// declares about itself.
func (sqliteDialect) ForeignKeysQuery(_, table string) (string, []any) {
	arg := quoteSQLitePragmaArg(table)
	return `
		SELECT
			'fk_' || ` + quoteSQLitePragmaArg(table) + ` || '_' || id,
			` + quoteSQLitePragmaArg(table) + `,
			"from",
			"table",
			"to",
			on_update,
			on_delete
		FROM pragma_foreign_key_list(` + arg + `)`, nil
}

func (sqliteDialect) ShowCreateTable(_, table string) (string, []any) {
	return `SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, []any{table}
}

// EngineQuery returns an empty query: SQLite has no per-table storage
// engine concept, so there is no engine dimension to diff.
func (sqliteDialect) EngineQuery(_, _ string) (string, []any) { return "", nil }

// SupportsDestructiveFKCheck is false: SQLite cannot ALTER a table with
// foreign keys referencing it without a full rebuild-and-copy, and the
// schema synchronizer has no table-rebuild path for it.
func (sqliteDialect) SupportsDestructiveFKCheck() bool { return false }

func (sqliteDialect) IsForeignKeyError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}

var _ Dialect = sqliteDialect{}

// quoteSQLitePragmaArg quotes a table name as a PRAGMA string argument,
// which SQLite accepts in place of the bareword form and which supports
// embedded quote escaping, since PRAGMA statements don't bind parameters.
func quoteSQLitePragmaArg(table string) string {
	return "'" + strings.ReplaceAll(table, "'", "''") + "'"
}
