// Package schema introspects live tables, diffs them against declared
// TableSpecs, and applies the resulting AlterationPlan, including the
// foreign-key reconstruction dance required by backends that refuse to
// ALTER a column referenced by (or referencing) an existing constraint.
package schema

import (
	"strings"

	dsql "github.com/relata-go/relata/dialect/sql"
)

// TableSpec is the canonical description of one model, built by
// package catalog from a Go struct's field tags.
type TableSpec struct {
	TableName   string
	SchemaName  string // PostgreSQL only; "public" when unset.
	Columns     []ColumnSpec
	PrimaryKey  []string
	Indexes     []IndexSpec
	ForeignKeys []ForeignKeySpec
	Engine      string // MySQL only, e.g. "InnoDB".
	Charset     string
	Collation   string
	Comment     string
}

// Column looks up a column by name.
func (t *TableSpec) Column(name string) (ColumnSpec, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// ColumnSpec describes one declared column.
type ColumnSpec struct {
	Name                string
	ModelAttributeName  string
	Logical             dsql.LogicalType
	Size                int64
	Precision           int
	Scale               int
	NotNull             bool
	Unique              bool
	Indexed             bool
	Primary             bool
	AutoIncrement       bool
	Unsigned            bool // MySQL only.
	OnUpdateCurrentTime bool // MySQL only.
	DefaultExpr         string
	Charset             string
	Comment             string
	ForeignKey          *ForeignKeySpec // optional inline FK declaration.
}

// typeSpec projects a ColumnSpec down to the primitive fields a Dialect
// needs to render its native type text.
func (c ColumnSpec) typeSpec() dsql.ColumnTypeSpec {
	return dsql.ColumnTypeSpec{
		Logical:   c.Logical,
		Size:      c.Size,
		Precision: c.Precision,
		Scale:     c.Scale,
		Unsigned:  c.Unsigned,
	}
}

// IndexSpec describes one declared index. Name is synthesized by the
// catalog when not explicitly annotated: idx_<table>_<col> or
// uq_<table>_<col> for single-column indexes.
type IndexSpec struct {
	Name    string
	Unique  bool
	Columns []string
}

// ForeignKeySpec describes one declared foreign key. ConstraintName
// defaults to fk_<table>_<column> when not explicitly annotated.
type ForeignKeySpec struct {
	ConstraintName   string
	LocalColumn      string
	ReferencedTable  string
	ReferencedColumn string
	OnUpdate         dsql.CascadeAction
	OnDelete         dsql.CascadeAction
}

// AlterationStepKind names one DDL operation kind in an AlterationPlan.
type AlterationStepKind string

const (
	StepCreateTable       AlterationStepKind = "CreateTable"
	StepDropColumn        AlterationStepKind = "DropColumn"
	StepAddColumn         AlterationStepKind = "AddColumn"
	StepModifyColumn      AlterationStepKind = "ModifyColumn"
	StepEnsurePrimaryKey  AlterationStepKind = "EnsurePrimaryKey"
	StepChangeTableEngine AlterationStepKind = "ChangeTableEngine"
	StepDropIndex         AlterationStepKind = "DropIndex"
	StepAddIndex          AlterationStepKind = "AddIndex"
	StepDropForeignKey    AlterationStepKind = "DropForeignKey"
	StepAddForeignKey     AlterationStepKind = "AddForeignKey"
)

// AlterationStep is one entry in an AlterationPlan. Only the fields
// relevant to Kind are populated.
type AlterationStep struct {
	Kind       AlterationStepKind
	Table      string
	Column     ColumnSpec
	ColumnName string // DropColumn
	Index      IndexSpec
	IndexName  string // DropIndex
	ForeignKey ForeignKeySpec
	FKName     string // DropForeignKey
	Engine     string // ChangeTableEngine
	Reason     string // human-readable diff explanation, used by plan.go
}

// AlterationPlan is the ordered sequence of DDL steps computed by
// diffing a TableSpec against a live schema (or nil, for a fresh table).
type AlterationPlan struct {
	Table string
	Steps []AlterationStep
}

// IsEmpty reports whether the plan has no steps, the re-run-is-a-no-op
// case the idempotence property relies on.
func (p *AlterationPlan) IsEmpty() bool { return p == nil || len(p.Steps) == 0 }

// normalizeDefault applies the comparison rule diffing uses for default
// expressions: uppercase, trim whitespace and a trailing "()" call form,
// then collapse CURRENT_TIMESTAMP-family spellings to one token.
func normalizeDefault(expr string) string {
	s := strings.ToUpper(strings.TrimSpace(expr))
	s = strings.TrimSuffix(s, "()")
	switch s {
	case "CURRENT_TIMESTAMP", "NOW", "LOCALTIMESTAMP", "GETDATE":
		return "CURRENT_TIMESTAMP"
	default:
		return s
	}
}
