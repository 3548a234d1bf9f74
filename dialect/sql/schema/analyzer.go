package schema

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/relata-go/relata/dialect"
	dsql "github.com/relata-go/relata/dialect/sql"
)

// Analyzer introspects live tables through a Dialect and diffs the
// result against a declared TableSpec, producing an AlterationPlan.
// Grounded in zakandrewking-lockplane's Introspector/diff.go split and
// Pieczasz-smf's diff package's map-keyed comparison shape, generalized
// from dump-vs-dump comparison to declared-vs-live comparison.
type Analyzer struct {
	Dialect dsql.Dialect
	Conn    dialect.ExecQuerier
}

// NewAnalyzer builds an Analyzer bound to one dialect and connection.
func NewAnalyzer(d dsql.Dialect, conn dialect.ExecQuerier) *Analyzer {
	return &Analyzer{Dialect: d, Conn: conn}
}

// TableExists reports whether the table exists in the live schema.
func (a *Analyzer) TableExists(ctx context.Context, schemaName, table string) (bool, error) {
	q, args := a.Dialect.TableExistsQuery(schemaName, table)
	var rows dsql.Rows
	if err := a.Conn.Query(ctx, q, args, &rows); err != nil {
		return false, fmt.Errorf("dialect/sql/schema: table exists: %w", err)
	}
	defer rows.Close()
	var count int
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return false, err
		}
	}
	return count > 0, nil
}

// ReadColumns returns the live, normalized columns of table.
func (a *Analyzer) ReadColumns(ctx context.Context, schemaName, table string) ([]dsql.IntrospectedColumn, error) {
	q, args := a.Dialect.ColumnsQuery(schemaName, table)
	var rows dsql.Rows
	if err := a.Conn.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("dialect/sql/schema: read columns: %w", err)
	}
	defer rows.Close()
	var out []dsql.IntrospectedColumn
	for rows.Next() {
		var (
			c        dsql.IntrospectedColumn
			nullable string
			def      dsql.NullString
			charset  dsql.NullString
		)
		if err := rows.Scan(&c.Name, &c.Type, &nullable, &def, &c.Key, &c.Extra, &charset, &c.Comment); err != nil {
			return nil, fmt.Errorf("dialect/sql/schema: scan column: %w", err)
		}
		c.Nullable = strings.EqualFold(nullable, "YES") || nullable == "1" || nullable == "true"
		if def.Valid {
			v := def.String
			c.Default = &v
		}
		if charset.Valid {
			c.Charset = charset.String
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ReadIndexes returns the live, non-primary-key indexes of table.
func (a *Analyzer) ReadIndexes(ctx context.Context, schemaName, table string) ([]dsql.IntrospectedIndex, error) {
	q, args := a.Dialect.IndexesQuery(schemaName, table)
	var rows dsql.Rows
	if err := a.Conn.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("dialect/sql/schema: read indexes: %w", err)
	}
	defer rows.Close()
	var out []dsql.IntrospectedIndex
	for rows.Next() {
		var (
			idx     dsql.IntrospectedIndex
			unique  bool
			columns string
		)
		if err := rows.Scan(&idx.Name, &unique, &columns); err != nil {
			return nil, fmt.Errorf("dialect/sql/schema: scan index: %w", err)
		}
		idx.Unique = unique
		idx.Columns = strings.Split(columns, ",")
		out = append(out, idx)
	}
	return out, rows.Err()
}

// ReadForeignKeys returns the live foreign keys where table is either
// the owning or the referenced side.
func (a *Analyzer) ReadForeignKeys(ctx context.Context, schemaName, table string) ([]dsql.IntrospectedForeignKey, error) {
	q, args := a.Dialect.ForeignKeysQuery(schemaName, table)
	var rows dsql.Rows
	if err := a.Conn.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("dialect/sql/schema: read foreign keys: %w", err)
	}
	defer rows.Close()
	var out []dsql.IntrospectedForeignKey
	for rows.Next() {
		var (
			fk              dsql.IntrospectedForeignKey
			onUpdate, onDel string
		)
		if err := rows.Scan(&fk.ConstraintName, &fk.OwningTable, &fk.LocalColumn, &fk.ReferencedTable, &fk.ReferencedColumn, &onUpdate, &onDel); err != nil {
			return nil, fmt.Errorf("dialect/sql/schema: scan foreign key: %w", err)
		}
		fk.OnUpdate = normalizeCascade(onUpdate)
		fk.OnDelete = normalizeCascade(onDel)
		out = append(out, fk)
	}
	return out, rows.Err()
}

func normalizeCascade(raw string) dsql.CascadeAction {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "CASCADE":
		return dsql.Cascade
	case "SET NULL":
		return dsql.SetNull
	case "SET DEFAULT":
		return dsql.SetDefault
	case "RESTRICT":
		return dsql.Restrict
	default:
		return dsql.NoAction
	}
}

// ReadEngine returns the table's live storage engine, or "" on backends
// with no such concept.
func (a *Analyzer) ReadEngine(ctx context.Context, schemaName, table string) (string, error) {
	q, args := a.Dialect.EngineQuery(schemaName, table)
	if q == "" {
		return "", nil
	}
	var rows dsql.Rows
	if err := a.Conn.Query(ctx, q, args, &rows); err != nil {
		return "", fmt.Errorf("dialect/sql/schema: read engine: %w", err)
	}
	defer rows.Close()
	var engine string
	if rows.Next() {
		if err := rows.Scan(&engine); err != nil {
			return "", err
		}
	}
	return engine, rows.Err()
}

// DiffOptions controls whether destructive steps (DropColumn) are
// emitted, per the synchronizer's safety rule.
type DiffOptions struct {
	AllowDestructive bool
}

// Diff compares a declared TableSpec against the live introspection
// results and returns the AlterationPlan to reconcile them. A nil live*
// set of arguments (columns == nil and exists == false) means the table
// does not exist yet, producing a single CreateTable step.
func (a *Analyzer) Diff(
	spec *TableSpec,
	exists bool,
	liveColumns []dsql.IntrospectedColumn,
	liveIndexes []dsql.IntrospectedIndex,
	liveForeignKeys []dsql.IntrospectedForeignKey,
	liveEngine string,
	opts DiffOptions,
) *AlterationPlan {
	plan := &AlterationPlan{Table: spec.TableName}

	if !exists {
		plan.Steps = append(plan.Steps, AlterationStep{
			Kind:   StepCreateTable,
			Table:  spec.TableName,
			Reason: "table does not exist",
		})
		for _, idx := range spec.Indexes {
			plan.Steps = append(plan.Steps, AlterationStep{Kind: StepAddIndex, Table: spec.TableName, Index: idx})
		}
		for _, fk := range spec.ForeignKeys {
			plan.Steps = append(plan.Steps, AlterationStep{Kind: StepAddForeignKey, Table: spec.TableName, ForeignKey: fk})
		}
		return plan
	}

	diffColumns(spec, liveColumns, opts, plan)
	diffIndexes(spec, liveIndexes, plan)
	diffPrimaryKey(spec, liveColumns, plan)
	if spec.Engine != "" && !strings.EqualFold(spec.Engine, liveEngine) {
		plan.Steps = append(plan.Steps, AlterationStep{
			Kind: StepChangeTableEngine, Table: spec.TableName, Engine: spec.Engine,
			Reason: fmt.Sprintf("engine %q != declared %q", liveEngine, spec.Engine),
		})
	}
	diffForeignKeys(spec, ownedForeignKeys(spec.TableName, liveForeignKeys), plan)

	return plan
}

// ownedForeignKeys filters liveForeignKeys down to the ones table itself
// declares, discarding ones where table is only the referenced side.
// ReadForeignKeys returns both directions (needed by the reconstruction
// dance), but a diff must not propose dropping a constraint that belongs
// to some other table.
func ownedForeignKeys(table string, fks []dsql.IntrospectedForeignKey) []dsql.IntrospectedForeignKey {
	owned := make([]dsql.IntrospectedForeignKey, 0, len(fks))
	for _, fk := range fks {
		if fk.OwningTable == table {
			owned = append(owned, fk)
		}
	}
	return owned
}

func diffColumns(spec *TableSpec, live []dsql.IntrospectedColumn, opts DiffOptions, plan *AlterationPlan) {
	liveByName := make(map[string]dsql.IntrospectedColumn, len(live))
	for _, c := range live {
		liveByName[c.Name] = c
	}
	declByName := make(map[string]ColumnSpec, len(spec.Columns))
	for _, c := range spec.Columns {
		declByName[c.Name] = c
	}

	for _, col := range spec.Columns {
		lc, ok := liveByName[col.Name]
		if !ok {
			plan.Steps = append(plan.Steps, AlterationStep{
				Kind: StepAddColumn, Table: spec.TableName, Column: col,
				Reason: "column missing on live table",
			})
			continue
		}
		if reason, changed := columnMismatch(col, lc); changed {
			plan.Steps = append(plan.Steps, AlterationStep{
				Kind: StepModifyColumn, Table: spec.TableName, Column: col,
				Reason: reason,
			})
		}
	}

	// Live-only columns: DropColumn, gated by destructive-sync permission.
	names := make([]string, 0, len(live))
	for _, c := range live {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := declByName[name]; ok {
			continue
		}
		if !opts.AllowDestructive {
			continue // recorded as a warning by the synchronizer, not emitted here.
		}
		plan.Steps = append(plan.Steps, AlterationStep{
			Kind: StepDropColumn, Table: spec.TableName, ColumnName: name,
			Reason: "column not declared in model",
		})
	}
}

// columnMismatch implements the seven-point per-column comparison.
func columnMismatch(decl ColumnSpec, live dsql.IntrospectedColumn) (string, bool) {
	var reasons []string

	declType := strings.ToUpper(renderedTypeOf(decl))
	liveType := strings.ToUpper(strings.TrimSpace(live.Type))
	if !strings.EqualFold(declType, liveType) {
		reasons = append(reasons, fmt.Sprintf("type %s != %s", liveType, declType))
	}
	if decl.NotNull == live.Nullable {
		reasons = append(reasons, "nullability differs")
	}
	declAuto := decl.AutoIncrement
	liveAuto := strings.Contains(strings.ToLower(live.Extra), "auto_increment") || strings.Contains(strings.ToLower(live.Extra), "identity")
	if declAuto != liveAuto {
		reasons = append(reasons, "auto_increment differs")
	}
	var liveDefault string
	if live.Default != nil {
		liveDefault = *live.Default
	}
	if normalizeDefault(decl.DefaultExpr) != normalizeDefault(liveDefault) {
		reasons = append(reasons, "default differs")
	}
	declOnUpdate := decl.OnUpdateCurrentTime
	liveOnUpdate := strings.Contains(strings.ToLower(live.Extra), "on update current_timestamp")
	if declOnUpdate != liveOnUpdate {
		reasons = append(reasons, "on-update-timestamp differs")
	}
	if decl.Charset != "" && !strings.EqualFold(decl.Charset, live.Charset) {
		reasons = append(reasons, "charset differs")
	}
	if decl.Comment != live.Comment {
		reasons = append(reasons, "comment differs")
	}

	if len(reasons) == 0 {
		return "", false
	}
	return strings.Join(reasons, "; "), true
}

// renderedTypeOf is a dialect-agnostic approximation used only for the
// textual comparison step; the synchronizer re-renders the authoritative
// type text through the bound Dialect when emitting DDL.
func renderedTypeOf(c ColumnSpec) string {
	switch c.Logical {
	case dsql.TypeVarChar, dsql.TypeChar:
		return c.Logical.String() + "(" + strconv.FormatInt(c.Size, 10) + ")"
	case dsql.TypeDecimal:
		return fmt.Sprintf("%s(%d,%d)", c.Logical.String(), c.Precision, c.Scale)
	default:
		return c.Logical.String()
	}
}

func diffIndexes(spec *TableSpec, live []dsql.IntrospectedIndex, plan *AlterationPlan) {
	liveByName := make(map[string]dsql.IntrospectedIndex, len(live))
	for _, idx := range live {
		liveByName[idx.Name] = idx
	}
	declByName := make(map[string]IndexSpec, len(spec.Indexes))
	for _, idx := range spec.Indexes {
		declByName[idx.Name] = idx
	}

	for _, idx := range spec.Indexes {
		lidx, ok := liveByName[idx.Name]
		if !ok {
			plan.Steps = append(plan.Steps, AlterationStep{Kind: StepAddIndex, Table: spec.TableName, Index: idx, Reason: "index missing"})
			continue
		}
		if lidx.Unique != idx.Unique || !columnsEqual(lidx.Columns, idx.Columns) {
			plan.Steps = append(plan.Steps, AlterationStep{Kind: StepDropIndex, Table: spec.TableName, IndexName: idx.Name, Reason: "index definition changed"})
			plan.Steps = append(plan.Steps, AlterationStep{Kind: StepAddIndex, Table: spec.TableName, Index: idx, Reason: "index definition changed"})
		}
	}
	names := make([]string, 0, len(live))
	for name := range liveByName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := declByName[name]; !ok {
			plan.Steps = append(plan.Steps, AlterationStep{Kind: StepDropIndex, Table: spec.TableName, IndexName: name, Reason: "index not declared in model"})
		}
	}
}

func columnsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

func diffPrimaryKey(spec *TableSpec, live []dsql.IntrospectedColumn, plan *AlterationPlan) {
	var livePK []string
	for _, c := range live {
		if c.Key == "PRI" {
			livePK = append(livePK, c.Name)
		}
	}
	sort.Strings(livePK)
	declPK := append([]string(nil), spec.PrimaryKey...)
	sort.Strings(declPK)

	if len(livePK) == 0 && len(declPK) > 0 {
		plan.Steps = append(plan.Steps, AlterationStep{Kind: StepEnsurePrimaryKey, Table: spec.TableName, Reason: "primary key missing"})
		return
	}
	if !columnsEqual(livePK, declPK) {
		plan.Steps = append(plan.Steps, AlterationStep{Kind: StepEnsurePrimaryKey, Table: spec.TableName, Reason: "primary key differs"})
	}
}

func diffForeignKeys(spec *TableSpec, live []dsql.IntrospectedForeignKey, plan *AlterationPlan) {
	liveByName := make(map[string]dsql.IntrospectedForeignKey, len(live))
	for _, fk := range live {
		liveByName[fk.ConstraintName] = fk
	}
	declByName := make(map[string]ForeignKeySpec, len(spec.ForeignKeys))
	for _, fk := range spec.ForeignKeys {
		declByName[fk.ConstraintName] = fk
	}

	for _, fk := range spec.ForeignKeys {
		lfk, ok := liveByName[fk.ConstraintName]
		if !ok {
			plan.Steps = append(plan.Steps, AlterationStep{Kind: StepAddForeignKey, Table: spec.TableName, ForeignKey: fk, Reason: "foreign key missing"})
			continue
		}
		if fkMismatch(fk, lfk) {
			plan.Steps = append(plan.Steps, AlterationStep{Kind: StepDropForeignKey, Table: spec.TableName, FKName: fk.ConstraintName, Reason: "foreign key definition changed"})
			plan.Steps = append(plan.Steps, AlterationStep{Kind: StepAddForeignKey, Table: spec.TableName, ForeignKey: fk, Reason: "foreign key definition changed"})
		}
	}
	names := make([]string, 0, len(live))
	for name := range liveByName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := declByName[name]; !ok {
			plan.Steps = append(plan.Steps, AlterationStep{Kind: StepDropForeignKey, Table: spec.TableName, FKName: name, Reason: "foreign key not declared in model"})
		}
	}
}

func fkMismatch(decl ForeignKeySpec, live dsql.IntrospectedForeignKey) bool {
	return !strings.EqualFold(decl.LocalColumn, live.LocalColumn) ||
		!strings.EqualFold(decl.ReferencedTable, live.ReferencedTable) ||
		!strings.EqualFold(decl.ReferencedColumn, live.ReferencedColumn) ||
		decl.OnUpdate != live.OnUpdate ||
		decl.OnDelete != live.OnDelete
}
