package query

import (
	"fmt"
	"reflect"
	"strings"

	relata "github.com/relata-go/relata"
	dsql "github.com/relata-go/relata/dialect/sql"
	"github.com/relata-go/relata/dialect/sql/schema"
	"github.com/relata-go/relata/predicate"
)

// Planner renders a QuerySpec (or a raw set/where pair, for UPDATE) against
// one TableSpec into a Statement, following the SELECT/COUNT/DELETE/UPDATE/
// INSERT algorithms in §4.6. It holds no state of its own; one Planner is
// reused across every statement a Dialect renders.
type Planner struct {
	Dialect  dsql.Dialect
	Resolver TableResolver // optional; only required when QuerySpec.Includes is non-empty
}

func NewPlanner(dialect dsql.Dialect, resolver TableResolver) *Planner {
	return &Planner{Dialect: dialect, Resolver: resolver}
}

func (p *Planner) newParamBuilder() *paramBuilder {
	return &paramBuilder{placeholder: p.Dialect.Placeholder}
}

type resolvedJoin struct {
	joins []JoinClause
	child *schema.TableSpec
}

// resolveInclude turns one Include navigation into one or more JOINs
// against base, per §4.6 step 3: a one-to-many (the included table owns an
// FK pointing at base's primary key), a many-to-one (base owns an FK
// pointing at the included table), or a many-to-many via a conventionally
// named junction table "<base>_<included>" when neither direct FK exists.
func (p *Planner) resolveInclude(base *schema.TableSpec, inc Include) (resolvedJoin, error) {
	nav := inc.Navigation

	// many-to-one: base owns the FK.
	for _, fk := range base.ForeignKeys {
		if fk.ReferencedTable == nav {
			child, ok := p.lookup(nav)
			if !ok {
				return resolvedJoin{}, relata.NewCompileError("include", "unresolved navigation table "+nav)
			}
			cond := fmt.Sprintf("%s.%s = %s.%s",
				base.TableName, fk.LocalColumn, nav, fk.ReferencedColumn)
			return resolvedJoin{joins: []JoinClause{{Kind: LeftJoin, Table: nav, Condition: cond}}, child: child}, nil
		}
	}

	if p.Resolver != nil {
		// one-to-many: the included table owns the FK pointing back at base.
		if child, ok := p.Resolver.TableSpecByName(nav); ok {
			for _, fk := range child.ForeignKeys {
				if fk.ReferencedTable == base.TableName {
					cond := fmt.Sprintf("%s.%s = %s.%s",
						nav, fk.LocalColumn, base.TableName, fk.ReferencedColumn)
					return resolvedJoin{joins: []JoinClause{{Kind: LeftJoin, Table: nav, Condition: cond}}, child: child}, nil
				}
			}
		}

		// many-to-many: a junction table "<base>_<nav>" (or "<nav>_<base>")
		// owning FKs to both sides. Both the junction and the target table
		// are joined in.
		for _, junctionName := range []string{base.TableName + "_" + nav, nav + "_" + base.TableName} {
			junction, ok := p.Resolver.TableSpecByName(junctionName)
			if !ok {
				continue
			}
			var toBase, toNav *schema.ForeignKeySpec
			for i := range junction.ForeignKeys {
				fk := &junction.ForeignKeys[i]
				switch fk.ReferencedTable {
				case base.TableName:
					toBase = fk
				case nav:
					toNav = fk
				}
			}
			if toBase == nil || toNav == nil {
				continue
			}
			child, ok := p.Resolver.TableSpecByName(nav)
			if !ok {
				return resolvedJoin{}, relata.NewCompileError("include", "unresolved navigation table "+nav)
			}
			junctionJoin := JoinClause{
				Kind: LeftJoin, Table: junctionName,
				Condition: fmt.Sprintf("%s.%s = %s.%s",
					junctionName, toBase.LocalColumn, base.TableName, toBase.ReferencedColumn),
			}
			navJoin := JoinClause{
				Kind: LeftJoin, Table: nav,
				Condition: fmt.Sprintf("%s.%s = %s.%s", nav, toNav.ReferencedColumn, junctionName, toNav.LocalColumn),
			}
			return resolvedJoin{joins: []JoinClause{junctionJoin, navJoin}, child: child}, nil
		}
	}

	return resolvedJoin{}, relata.NewCompileError("include", "cannot resolve navigation "+nav+" for table "+base.TableName)
}

func (p *Planner) lookup(table string) (*schema.TableSpec, bool) {
	if p.Resolver == nil {
		return nil, false
	}
	return p.Resolver.TableSpecByName(table)
}

// PlanSelect renders SELECT for spec against table.
func (p *Planner) PlanSelect(table *schema.TableSpec, spec *QuerySpec) (*Statement, error) {
	pb := p.newParamBuilder()
	var sb strings.Builder

	sb.WriteString("SELECT ")
	sb.WriteString(p.selectList(table, spec))
	sb.WriteString(" FROM ")
	sb.WriteString(p.Dialect.QualifyTable(table.SchemaName, table.TableName))

	for _, j := range spec.Joins {
		fmt.Fprintf(&sb, " %s %s ON %s", j.Kind, p.Dialect.QuoteIdent(j.Table), j.Condition)
	}
	for _, inc := range spec.Includes {
		rj, err := p.resolveInclude(table, inc)
		if err != nil {
			return nil, err
		}
		for _, j := range rj.joins {
			fmt.Fprintf(&sb, " %s %s ON %s", j.Kind, p.Dialect.QuoteIdent(j.Table), j.Condition)
		}
	}

	if spec.Where != nil {
		whereSQL, err := p.renderNode(spec.Where, pb)
		if err != nil {
			return nil, err
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(whereSQL)
	}

	if len(spec.GroupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(p.quotedList(spec.GroupBy))
	}

	if len(spec.OrderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, o := range spec.OrderBy {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.Dialect.QuoteIdent(o.Column))
			if o.Desc {
				sb.WriteString(" DESC")
			} else {
				sb.WriteString(" ASC")
			}
		}
	}

	if spec.Limit != nil {
		fmt.Fprintf(&sb, " LIMIT %d", *spec.Limit)
	}
	if spec.Offset != nil {
		fmt.Fprintf(&sb, " OFFSET %d", *spec.Offset)
	}

	return &Statement{SQL: sb.String(), Args: pb.args}, nil
}

func (p *Planner) selectList(table *schema.TableSpec, spec *QuerySpec) string {
	if len(spec.Aggregates) > 0 {
		parts := make([]string, 0, len(spec.Aggregates)+len(spec.GroupBy))
		for _, g := range spec.GroupBy {
			parts = append(parts, p.Dialect.QuoteIdent(g))
		}
		for _, a := range spec.Aggregates {
			col := "*"
			if a.Column != "" {
				col = p.Dialect.QuoteIdent(a.Column)
			}
			parts = append(parts, fmt.Sprintf("%s(%s) AS %s", a.Kind, col, p.Dialect.QuoteIdent(a.Alias)))
		}
		return strings.Join(parts, ", ")
	}

	if spec.HasEagerLoad() {
		var cols []string
		for _, c := range table.Columns {
			cols = append(cols, p.aliasedColumn(table.TableName, c.Name))
		}
		for _, inc := range spec.Includes {
			child, ok := p.lookup(inc.Navigation)
			if !ok {
				continue
			}
			for _, c := range child.Columns {
				cols = append(cols, p.aliasedColumn(child.TableName, c.Name))
			}
		}
		return strings.Join(cols, ", ")
	}

	if len(spec.SelectedColumns) == 0 {
		return "*"
	}
	return p.quotedList(spec.SelectedColumns)
}

// aliasedColumn renders "<table>.<col> AS <table>_<col>" (§4.6 step 1).
func (p *Planner) aliasedColumn(table, column string) string {
	return fmt.Sprintf("%s.%s AS %s", p.Dialect.QuoteIdent(table), p.Dialect.QuoteIdent(column),
		p.Dialect.QuoteIdent(table+"_"+column))
}

func (p *Planner) quotedList(columns []string) string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = p.Dialect.QuoteIdent(c)
	}
	return strings.Join(out, ", ")
}

// PlanCount renders "SELECT COUNT(*) FROM ..." with the same JOINs and
// WHERE a matching PlanSelect would emit.
func (p *Planner) PlanCount(table *schema.TableSpec, spec *QuerySpec) (*Statement, error) {
	pb := p.newParamBuilder()
	var sb strings.Builder

	sb.WriteString("SELECT COUNT(*) FROM ")
	sb.WriteString(p.Dialect.QualifyTable(table.SchemaName, table.TableName))

	for _, j := range spec.Joins {
		fmt.Fprintf(&sb, " %s %s ON %s", j.Kind, p.Dialect.QuoteIdent(j.Table), j.Condition)
	}
	for _, inc := range spec.Includes {
		rj, err := p.resolveInclude(table, inc)
		if err != nil {
			return nil, err
		}
		for _, j := range rj.joins {
			fmt.Fprintf(&sb, " %s %s ON %s", j.Kind, p.Dialect.QuoteIdent(j.Table), j.Condition)
		}
	}

	if spec.Where != nil {
		whereSQL, err := p.renderNode(spec.Where, pb)
		if err != nil {
			return nil, err
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(whereSQL)
	}

	return &Statement{SQL: sb.String(), Args: pb.args}, nil
}

// PlanDelete renders DELETE FROM <table> WHERE .... allowNoWhere must be
// set explicitly by the caller to emit an unconditional DELETE; otherwise
// a nil/empty where is rejected (§4.6).
func (p *Planner) PlanDelete(table *schema.TableSpec, where predicate.Node, allowNoWhere bool) (*Statement, error) {
	if where == nil && !allowNoWhere {
		return nil, relata.NewCompileError("delete", "DELETE without WHERE requires an explicit opt-in")
	}

	pb := p.newParamBuilder()
	var sb strings.Builder
	fmt.Fprintf(&sb, "DELETE FROM %s", p.Dialect.QualifyTable(table.SchemaName, table.TableName))

	if where != nil {
		whereSQL, err := p.renderNode(where, pb)
		if err != nil {
			return nil, err
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(whereSQL)
	}

	return &Statement{SQL: sb.String(), Args: pb.args}, nil
}

// PlanUpdate builds a SET list from set (column -> new value) and renders
// UPDATE <table> SET ... WHERE .... WHERE is mandatory (§4.6).
func (p *Planner) PlanUpdate(table *schema.TableSpec, set map[string]any, where predicate.Node) (*Statement, error) {
	if len(set) == 0 {
		return nil, relata.NewCompileError("update", "SET list is empty")
	}
	if where == nil {
		return nil, relata.NewCompileError("update", "UPDATE without WHERE is rejected")
	}

	pb := p.newParamBuilder()
	var sb strings.Builder
	fmt.Fprintf(&sb, "UPDATE %s SET ", p.Dialect.QualifyTable(table.SchemaName, table.TableName))

	columns := sortedKeys(set)
	for i, col := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		ph := pb.bind("@set_"+col, set[col])
		fmt.Fprintf(&sb, "%s = %s", p.Dialect.QuoteIdent(col), ph)
	}

	whereSQL, err := p.renderNode(where, pb)
	if err != nil {
		return nil, err
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(whereSQL)

	return &Statement{SQL: sb.String(), Args: pb.args}, nil
}

// PlanInsert builds a single batch INSERT across rows (each a column-name
// -> value mapping). Per row, a column is included only when it is not
// auto-increment and, if it carries a declared default, its value isn't
// the type's zero equivalent (the "skip unset defaults" rule, §4.6).
// All rows must resolve to the same column set; at most one statement is
// issued.
func (p *Planner) PlanInsert(table *schema.TableSpec, rows []map[string]any) (*Statement, error) {
	if len(rows) == 0 {
		return nil, relata.NewCompileError("insert", "no rows to insert")
	}

	columns := p.insertColumns(table, rows[0])
	if len(columns) == 0 {
		return nil, relata.NewCompileError("insert", "no insertable columns for table "+table.TableName)
	}

	pb := p.newParamBuilder()
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ",
		p.Dialect.QualifyTable(table.SchemaName, table.TableName), p.quotedList(columns))

	for rowIdx, row := range rows {
		if rowIdx > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for colIdx, col := range columns {
			if colIdx > 0 {
				sb.WriteString(", ")
			}
			name := fmt.Sprintf("@p%d_%s", rowIdx, col)
			sb.WriteString(pb.bind(name, row[col]))
		}
		sb.WriteString(")")
	}

	return &Statement{SQL: sb.String(), Args: pb.args}, nil
}

// PlanInsertReturning is PlanInsert for a single row, with a trailing
// "RETURNING <pk>" clause appended so the caller can scan the
// database-assigned primary key back without a second round trip. Used on
// backends whose Dialect.LastInsertIDStrategy() is "returning" (PostgreSQL);
// MySQL and SQLite populate the auto-increment PK from the driver's
// LastInsertId() result instead (§4.6, §6).
func (p *Planner) PlanInsertReturning(table *schema.TableSpec, row map[string]any, pkColumn string) (*Statement, error) {
	stmt, err := p.PlanInsert(table, []map[string]any{row})
	if err != nil {
		return nil, err
	}
	stmt.SQL += " RETURNING " + p.Dialect.QuoteIdent(pkColumn)
	return stmt, nil
}

func (p *Planner) insertColumns(table *schema.TableSpec, sample map[string]any) []string {
	var columns []string
	for _, c := range table.Columns {
		if c.AutoIncrement {
			continue
		}
		v, present := sample[c.Name]
		if !present {
			continue
		}
		if c.DefaultExpr != "" && isZeroValue(v) {
			continue
		}
		columns = append(columns, c.Name)
	}
	return columns
}

func isZeroValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.IsZero()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// renderNode renders one WhereTree node (leaf or group) into SQL text,
// binding every literal through pb and expanding IN/BETWEEN per element
// (§4.6 step 4, §3 invariants).
func (p *Planner) renderNode(n predicate.Node, pb *paramBuilder) (string, error) {
	switch v := n.(type) {
	case predicate.Condition:
		return p.renderCondition(v.WhereCondition, pb)
	case predicate.Group:
		return p.renderGroup(v, pb)
	default:
		return "", relata.NewCompileError("where", fmt.Sprintf("unrecognized WhereTree node %T", n))
	}
}

func (p *Planner) renderGroup(g predicate.Group, pb *paramBuilder) (string, error) {
	parts := make([]string, 0, len(g.Children))
	for _, child := range g.Children {
		rendered, err := p.renderNode(child, pb)
		if err != nil {
			return "", err
		}
		parts = append(parts, rendered)
	}

	connector := " " + string(g.Connector) + " "
	joined := strings.Join(parts, connector)
	if len(parts) > 1 {
		joined = "(" + joined + ")"
	}
	if g.Negate {
		joined = "NOT (" + joined + ")"
	}
	return joined, nil
}

func (p *Planner) renderCondition(c predicate.WhereCondition, pb *paramBuilder) (string, error) {
	col := p.Dialect.QuoteIdent(c.Column)
	paramIdx := len(pb.args)

	switch c.Operator {
	case predicate.IsNull, predicate.NotNull:
		return fmt.Sprintf("%s %s", col, c.Operator), nil

	case predicate.In, predicate.NotIn:
		values, ok := c.Value.([]any)
		if !ok {
			return "", relata.NewCompileError("where", "IN/NOT IN value must be a slice")
		}
		if len(values) == 0 {
			return "", relata.NewCompileError("where", "IN/NOT IN requires at least one value")
		}
		placeholders := make([]string, len(values))
		for j, v := range values {
			placeholders[j] = pb.bind(fmt.Sprintf("@p%d_%d", paramIdx, j), v)
		}
		return fmt.Sprintf("%s %s (%s)", col, c.Operator, strings.Join(placeholders, ", ")), nil

	case predicate.Between:
		bv, ok := c.Value.(predicate.BetweenValue)
		if !ok {
			return "", relata.NewCompileError("where", "BETWEEN value must be a BetweenValue")
		}
		lo := pb.bind(fmt.Sprintf("@p%d_0", paramIdx), bv.Low)
		hi := pb.bind(fmt.Sprintf("@p%d_1", paramIdx), bv.High)
		return fmt.Sprintf("%s BETWEEN %s AND %s", col, lo, hi), nil

	default:
		ph := pb.bind(fmt.Sprintf("@p%d", paramIdx), c.Value)
		return fmt.Sprintf("%s %s %s", col, c.Operator, ph), nil
	}
}
