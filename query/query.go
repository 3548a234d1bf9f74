// Package query accumulates builder state into a QuerySpec and plans it
// into SQL text + parameter bindings against a schema.TableSpec and a
// dsql.Dialect (§4.6), the rendering step QueryBuilder[T] and Repository[T]
// both sit on top of.
package query

import (
	"github.com/relata-go/relata/predicate"
)

// JoinKind names one of the explicit join forms a caller can request
// alongside the implicit LEFT JOINs eager-load includes emit.
type JoinKind string

const (
	InnerJoin JoinKind = "INNER JOIN"
	LeftJoin  JoinKind = "LEFT JOIN"
	RightJoin JoinKind = "RIGHT JOIN"
	CrossJoin JoinKind = "CROSS JOIN"
)

// JoinClause is one explicit join a caller added directly, as opposed to
// one synthesized from an Include navigation.
type JoinClause struct {
	Kind      JoinKind
	Table     string
	Condition string // raw ON condition text, e.g. "orders.user_id = users.id"
}

// AggregateKind names one SQL aggregate function.
type AggregateKind string

const (
	AggSum   AggregateKind = "SUM"
	AggAvg   AggregateKind = "AVG"
	AggMin   AggregateKind = "MIN"
	AggMax   AggregateKind = "MAX"
	AggCount AggregateKind = "COUNT"
)

// AggregateClause projects one aggregate function over a column, aliased
// for the result set.
type AggregateClause struct {
	Kind   AggregateKind
	Column string
	Alias  string
}

// Include names one eager-load navigation path, resolved against the base
// TableSpec's foreign keys by Planner.PlanSelect.
type Include struct {
	Navigation string
}

// QuerySpec is the accumulated state of a query builder: everything
// QueryBuilder[T]'s fluent methods and Repository[T]'s ad-hoc find()
// calls populate before handing off to Planner (§3). It is built,
// planned, and discarded — not reusable across two executions.
type QuerySpec struct {
	SelectedColumns []string // empty = all declared columns
	Where           predicate.Node
	OrderBy         []predicate.OrderByClause
	GroupBy         []string
	Joins           []JoinClause
	Aggregates      []AggregateClause
	Includes        []Include
	Limit           *int
	Offset          *int
}

// New returns an empty QuerySpec.
func New() *QuerySpec { return &QuerySpec{} }

func (q *QuerySpec) Select(columns ...string) *QuerySpec {
	q.SelectedColumns = columns
	return q
}

// WhereNode sets (or AND-combines with) the filter tree. Successive calls
// AND together, mirroring QueryBuilder[T].where being callable more than
// once in the same chain.
func (q *QuerySpec) WhereNode(n predicate.Node) *QuerySpec {
	if n == nil {
		return q
	}
	if q.Where == nil {
		q.Where = n
		return q
	}
	q.Where = predicate.Group{Connector: predicate.ConnAnd, Children: []predicate.Node{q.Where, n}}
	return q
}

func (q *QuerySpec) OrderByClause(c predicate.OrderByClause) *QuerySpec {
	q.OrderBy = append(q.OrderBy, c)
	return q
}

func (q *QuerySpec) GroupByColumns(columns ...string) *QuerySpec {
	q.GroupBy = append(q.GroupBy, columns...)
	return q
}

func (q *QuerySpec) Join(kind JoinKind, table, condition string) *QuerySpec {
	q.Joins = append(q.Joins, JoinClause{Kind: kind, Table: table, Condition: condition})
	return q
}

func (q *QuerySpec) Aggregate(kind AggregateKind, column, alias string) *QuerySpec {
	q.Aggregates = append(q.Aggregates, AggregateClause{Kind: kind, Column: column, Alias: alias})
	return q
}

func (q *QuerySpec) Include(navigation string) *QuerySpec {
	q.Includes = append(q.Includes, Include{Navigation: navigation})
	return q
}

func (q *QuerySpec) SetLimit(n int) *QuerySpec {
	q.Limit = &n
	return q
}

func (q *QuerySpec) SetOffset(n int) *QuerySpec {
	q.Offset = &n
	return q
}

// HasEagerLoad reports whether the SELECT list must use the qualified
// aliased-column form so RowMapper can disambiguate base vs. child rows.
func (q *QuerySpec) HasEagerLoad() bool { return len(q.Includes) > 0 }
