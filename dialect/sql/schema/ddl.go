package schema

import (
	"fmt"
	"strings"

	dsql "github.com/relata-go/relata/dialect/sql"
)

// renderCreateTable renders a full CREATE TABLE statement from a
// TableSpec: column definitions, primary key, and dialect-scoped table
// options (engine/charset/comment for MySQL).
func (s *Synchronizer) renderCreateTable(spec *TableSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", s.Dialect.QualifyTable(spec.SchemaName, spec.TableName))

	defs := make([]string, 0, len(spec.Columns)+1)
	for _, col := range spec.Columns {
		defs = append(defs, "  "+s.renderColumnDef(col))
	}
	if len(spec.PrimaryKey) > 0 {
		quoted := make([]string, len(spec.PrimaryKey))
		for i, c := range spec.PrimaryKey {
			quoted[i] = s.Dialect.QuoteIdent(c)
		}
		defs = append(defs, "  PRIMARY KEY ("+strings.Join(quoted, ", ")+")")
	}
	b.WriteString(strings.Join(defs, ",\n"))
	b.WriteString("\n)")

	if spec.Engine != "" {
		fmt.Fprintf(&b, " ENGINE = %s", spec.Engine)
	}
	if spec.Charset != "" {
		fmt.Fprintf(&b, " DEFAULT CHARSET = %s", spec.Charset)
	}
	if spec.Collation != "" {
		fmt.Fprintf(&b, " COLLATE = %s", spec.Collation)
	}
	if spec.Comment != "" {
		fmt.Fprintf(&b, " COMMENT = '%s'", strings.ReplaceAll(spec.Comment, "'", "''"))
	}
	return b.String()
}

// renderColumnDef renders one column's full definition, as used both in
// CREATE TABLE and in ADD COLUMN.
func (s *Synchronizer) renderColumnDef(col ColumnSpec) string {
	var b strings.Builder
	b.WriteString(s.Dialect.QuoteIdent(col.Name))
	b.WriteByte(' ')
	b.WriteString(s.Dialect.ColumnType(col.typeSpec()))
	if col.NotNull {
		b.WriteString(" NOT NULL")
	}
	if col.AutoIncrement {
		if clause := s.Dialect.AutoIncrementClause(); clause != "" {
			b.WriteByte(' ')
			b.WriteString(clause)
		} else if s.Dialect.Name() == "postgres" {
			b.WriteString(" GENERATED BY DEFAULT AS IDENTITY")
		}
	}
	if col.DefaultExpr != "" {
		b.WriteByte(' ')
		b.WriteString(s.Dialect.DefaultClause(col.DefaultExpr))
	}
	if col.OnUpdateCurrentTime {
		if clause := s.Dialect.OnUpdateTimestampClause(); clause != "" {
			b.WriteByte(' ')
			b.WriteString(clause)
		}
	}
	if col.Unique {
		b.WriteString(" UNIQUE")
	}
	if col.Comment != "" {
		fmt.Fprintf(&b, " COMMENT '%s'", strings.ReplaceAll(col.Comment, "'", "''"))
	}
	return b.String()
}

func (s *Synchronizer) renderAddColumn(table string, col ColumnSpec) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", s.Dialect.QuoteIdent(table), s.renderColumnDef(col))
}

func (s *Synchronizer) renderModifyColumn(table string, col ColumnSpec) string {
	switch s.Dialect.Name() {
	case "mysql":
		return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", s.Dialect.QuoteIdent(table), s.renderColumnDef(col))
	default:
		// PostgreSQL/SQLite require one ALTER clause per property; the
		// common case this synchronizer drives is a type/nullability/
		// default change, rendered as the three clauses a diff can
		// trigger independently.
		qt := s.Dialect.QuoteIdent(table)
		qc := s.Dialect.QuoteIdent(col.Name)
		stmts := []string{
			fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s", qt, qc, s.Dialect.ColumnType(col.typeSpec())),
		}
		if col.NotNull {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", qt, qc))
		} else {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL", qt, qc))
		}
		if col.DefaultExpr != "" {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET %s", qt, qc, s.Dialect.DefaultClause(col.DefaultExpr)))
		}
		return strings.Join(stmts, "; ")
	}
}

func (s *Synchronizer) renderAddIndex(table string, idx IndexSpec) string {
	kind := "INDEX"
	if idx.Unique {
		kind = "UNIQUE INDEX"
	}
	quoted := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		quoted[i] = s.Dialect.QuoteIdent(c)
	}
	return fmt.Sprintf("CREATE %s %s ON %s (%s)", kind, s.Dialect.QuoteIdent(idx.Name), s.Dialect.QuoteIdent(table), strings.Join(quoted, ", "))
}

func (s *Synchronizer) renderDropIndex(schemaName, table, name string) string {
	if s.Dialect.Name() == "mysql" {
		return fmt.Sprintf("DROP INDEX %s ON %s", s.Dialect.QuoteIdent(name), s.Dialect.QuoteIdent(table))
	}
	return fmt.Sprintf("DROP INDEX %s", s.Dialect.QuoteIdent(name))
}

func (s *Synchronizer) renderAddForeignKey(table string, fk ForeignKeySpec) string {
	onUpdate := cascadeClause("ON UPDATE", fk.OnUpdate)
	onDelete := cascadeClause("ON DELETE", fk.OnDelete)
	return fmt.Sprintf(
		"ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)%s%s",
		s.Dialect.QuoteIdent(table), s.Dialect.QuoteIdent(fk.ConstraintName),
		s.Dialect.QuoteIdent(fk.LocalColumn), s.Dialect.QuoteIdent(fk.ReferencedTable), s.Dialect.QuoteIdent(fk.ReferencedColumn),
		onUpdate, onDelete,
	)
}

func (s *Synchronizer) renderDropForeignKey(schemaName, table, name string) string {
	if s.Dialect.Name() == "mysql" {
		return fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s", s.Dialect.QuoteIdent(table), s.Dialect.QuoteIdent(name))
	}
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", s.Dialect.QuoteIdent(table), s.Dialect.QuoteIdent(name))
}

func cascadeClause(verb string, action dsql.CascadeAction) string {
	if action == "" || action == dsql.NoAction {
		return ""
	}
	return " " + verb + " " + string(action)
}
