package sql

import "fmt"

// IntrospectedColumn is the normalized row shape Dialect introspection
// queries produce (§6): "(name, rendered type, nullable, default, key
// marker, extra, charset, comment)".
type IntrospectedColumn struct {
	Name     string
	Type     string // rendered native type, e.g. "varchar(255)"
	Nullable bool
	Default  *string
	Key      string // "PRI", "UNI", "MUL", or ""
	Extra    string // e.g. "auto_increment", "on update CURRENT_TIMESTAMP"
	Charset  string
	Comment  string
}

// IntrospectedIndex is the normalized row shape for index introspection:
// "(indexName, unique, columnList)".
type IntrospectedIndex struct {
	Name    string
	Unique  bool
	Columns []string
}

// IntrospectedForeignKey mirrors the declared ForeignKeySpec shape so the
// analyzer can diff live vs. declared without a second conversion step.
// OwningTable is always populated, even for rows returned because the
// queried table is the referenced side rather than the owner.
type IntrospectedForeignKey struct {
	ConstraintName   string
	OwningTable      string
	LocalColumn      string
	ReferencedTable  string
	ReferencedColumn string
	OnUpdate         CascadeAction
	OnDelete         CascadeAction
}

// Dialect encapsulates every backend-specific string so the rest of the
// core stays textually portable (§4.1). Implementations: mysqlDialect,
// postgresDialect, sqliteDialect.
type Dialect interface {
	// Name returns one of dialect.MySQL/Postgres/SQLite.
	Name() string

	// QuoteIdent quotes a single identifier (table, column, index name).
	QuoteIdent(name string) string

	// QualifyTable renders a possibly schema-qualified, quoted table
	// reference. schema is ignored where the backend has no concept of it
	// (MySQL, SQLite).
	QualifyTable(schemaName, table string) string

	// Placeholder renders the positional bind-parameter syntax for the
	// i'th (0-based) parameter of a statement.
	Placeholder(i int) string

	// ColumnType renders a ColumnTypeSpec into the backend's native DDL
	// type text, per the §6 logical-type table.
	ColumnType(spec ColumnTypeSpec) string

	// AutoIncrementClause renders the auto-increment column modifier.
	AutoIncrementClause() string

	// OnUpdateTimestampClause renders the "update on every write" column
	// modifier (MySQL: "ON UPDATE CURRENT_TIMESTAMP"; empty elsewhere —
	// Postgres/SQLite need a trigger, out of scope per §1).
	OnUpdateTimestampClause() string

	// DefaultClause renders a DEFAULT clause for a literal or symbolic
	// (e.g. CURRENT_TIMESTAMP) default expression.
	DefaultClause(expr string) string

	// LastInsertIDStrategy names how to retrieve an auto-increment value
	// after INSERT: "last_insert_id" (MySQL, via the driver Result),
	// "returning" (PostgreSQL, INSERT...RETURNING), or "last_insert_rowid"
	// (SQLite, a follow-up SELECT).
	LastInsertIDStrategy() string

	// TableExistsQuery returns SQL + args that yield one row if the table
	// exists.
	TableExistsQuery(schemaName, table string) (string, []any)

	// EngineQuery returns SQL + args that yield the table's storage
	// engine (MySQL only); other backends return an empty query, which
	// the analyzer interprets as "no engine dimension to diff".
	EngineQuery(schemaName, table string) (string, []any)

	// ColumnsQuery returns SQL + args for introspecting a table's columns.
	ColumnsQuery(schemaName, table string) (string, []any)

	// IndexesQuery returns SQL + args for introspecting a table's indexes.
	IndexesQuery(schemaName, table string) (string, []any)

	// ForeignKeysQuery returns SQL + args for introspecting a table's
	// foreign keys, both owning and referenced side.
	ForeignKeysQuery(schemaName, table string) (string, []any)

	// ShowCreateTable returns SQL + args that dump a full table definition,
	// fed to the schema-backup external collaborator before a destructive
	// step (§6).
	ShowCreateTable(schemaName, table string) (string, []any)

	// SupportsDestructiveFKCheck reports whether ALTER failures on this
	// backend can be attributed to a specific FK-related error, enabling
	// the FK reconstruction dance (§4.9). MySQL and PostgreSQL do; SQLite
	// does not.
	SupportsDestructiveFKCheck() bool

	// IsForeignKeyError reports whether err (as returned by the driver)
	// indicates the statement failed because of an existing foreign key
	// constraint (MySQL 1822/1217/1451/3780, Postgres SQLSTATE 23503 or
	// "violates foreign key constraint" text, SQLite "FOREIGN KEY
	// constraint failed").
	IsForeignKeyError(err error) bool
}

// ByName returns the Dialect for a dialect.MySQL/Postgres/SQLite name.
func ByName(name string) (Dialect, error) {
	switch name {
	case "mysql":
		return mysqlDialect{}, nil
	case "postgres", "postgresql":
		return postgresDialect{}, nil
	case "sqlite", "sqlite3":
		return sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("dialect/sql: unsupported dialect %q", name)
	}
}
