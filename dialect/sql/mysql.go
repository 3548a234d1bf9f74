package sql

import (
	"fmt"
	"strconv"
	"strings"

	// Registers the MySQL database/sql driver under the "mysql" name.
	_ "github.com/go-sql-driver/mysql"
)

// mysqlDialect implements Dialect for MySQL/MariaDB, grounded in
// Pieczasz-smf/internal/introspect/mysql/{columns,tables,indexes}.go for
// the information_schema query shapes.
type mysqlDialect struct{}

func (mysqlDialect) Name() string { return "mysql" }

func (mysqlDialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d mysqlDialect) QualifyTable(_, table string) string {
	return d.QuoteIdent(table)
}

func (mysqlDialect) Placeholder(_ int) string { return "?" }

func (mysqlDialect) ColumnType(spec ColumnTypeSpec) string {
	unsigned := ""
	if spec.Unsigned {
		unsigned = " UNSIGNED"
	}
	switch spec.Logical {
	case TypeTinyInt:
		return "TINYINT" + unsigned
	case TypeSmallInt:
		return "SMALLINT" + unsigned
	case TypeInt:
		return "INT" + unsigned
	case TypeBigInt:
		return "BIGINT" + unsigned
	case TypeDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)%s", spec.Precision, spec.Scale, unsigned)
	case TypeFloat:
		return "FLOAT" + unsigned
	case TypeDouble:
		return "DOUBLE" + unsigned
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
	case TypeDateTime, TypeTimestampTz:
		return "DATETIME"
	case TypeTimestamp:
		return "TIMESTAMP"
	case TypeDate:
		return "DATE"
	case TypeJSON, TypeJSONB:
		return "JSON"
	case TypeUUID:
		return "CHAR(36)"
	case TypeBool:
		return "TINYINT(1)"
	case TypeBlob:
		return "BLOB"
	case TypeIntArray:
		return "JSON" // MySQL has no native array type; store as JSON.
	default:
		return "TEXT"
	}
}

func (mysqlDialect) AutoIncrementClause() string { return "AUTO_INCREMENT" }

func (mysqlDialect) OnUpdateTimestampClause() string { return "ON UPDATE CURRENT_TIMESTAMP" }

func (mysqlDialect) DefaultClause(expr string) string {
	if strings.EqualFold(expr, "CURRENT_TIMESTAMP") {
		return "DEFAULT CURRENT_TIMESTAMP"
	}
	return "DEFAULT " + expr
}

func (mysqlDialect) LastInsertIDStrategy() string { return "last_insert_id" }

func (d mysqlDialect) TableExistsQuery(_, table string) (string, []any) {
	return `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?`, []any{table}
}

func (d mysqlDialect) ColumnsQuery(_, table string) (string, []any) {
	return `
		SELECT
			COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT,
			COLUMN_KEY, EXTRA, CHARACTER_SET_NAME, COLUMN_COMMENT
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ORDINAL_POSITION`, []any{table}
}

func (d mysqlDialect) IndexesQuery(_, table string) (string, []any) {
	return `
		SELECT INDEX_NAME, NOT NON_UNIQUE, GROUP_CONCAT(COLUMN_NAME ORDER BY SEQ_IN_INDEX)
		FROM information_schema.statistics
		WHERE table_schema = DATABASE() AND table_name = ? AND INDEX_NAME <> 'PRIMARY'
		GROUP BY INDEX_NAME, NON_UNIQUE`, []any{table}
}

func (d mysqlDialect) ForeignKeysQuery(_, table string) (string, []any) {
	return `
		SELECT
			rc.CONSTRAINT_NAME, kcu.TABLE_NAME, kcu.COLUMN_NAME, kcu.REFERENCED_TABLE_NAME,
			kcu.REFERENCED_COLUMN_NAME, rc.UPDATE_RULE, rc.DELETE_RULE
		FROM information_schema.referential_constraints rc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.CONSTRAINT_NAME = rc.CONSTRAINT_NAME AND kcu.CONSTRAINT_SCHEMA = rc.CONSTRAINT_SCHEMA
		WHERE rc.CONSTRAINT_SCHEMA = DATABASE() AND (kcu.TABLE_NAME = ? OR kcu.REFERENCED_TABLE_NAME = ?)`,
		[]any{table, table}
}

func (d mysqlDialect) ShowCreateTable(_, table string) (string, []any) {
	return "SHOW CREATE TABLE " + d.QuoteIdent(table), nil
}

func (mysqlDialect) EngineQuery(_, table string) (string, []any) {
	return `SELECT ENGINE FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?`, []any{table}
}

func (mysqlDialect) SupportsDestructiveFKCheck() bool { return true }

// mysqlFKErrorNumbers are the server error codes treated as foreign-key
// failures: 1822 (failed to add the foreign key constraint), 1217 (cannot
// delete or update a parent row), 1451 (cannot delete or update a parent
// row: a foreign key constraint fails), and 3780 (referencing and
// referenced columns of a foreign key are incompatible).
var mysqlFKErrorNumbers = []string{"1822", "1217", "1451", "3780"}

func (mysqlDialect) IsForeignKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, code := range mysqlFKErrorNumbers {
		if strings.Contains(msg, "Error "+code+":") || strings.Contains(msg, "("+code+")") {
			return true
		}
	}
	return strings.Contains(strings.ToLower(msg), "foreign key constraint")
}

var _ Dialect = mysqlDialect{}
