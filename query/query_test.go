package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relata-go/relata/predicate"
	"github.com/relata-go/relata/query"
)

func TestQuerySpec_FluentBuilder(t *testing.T) {
	age := predicate.Int[any]("age")

	spec := query.New().
		Select("id", "email").
		WhereNode(age.GT(18).Node()).
		GroupByColumns("age").
		Aggregate(query.AggCount, "", "total").
		OrderByClause(predicate.Asc(predicate.String[any]("email"))).
		SetLimit(20).
		SetOffset(40)

	assert.Equal(t, []string{"id", "email"}, spec.SelectedColumns)
	assert.Equal(t, []string{"age"}, spec.GroupBy)
	assert.Equal(t, 20, *spec.Limit)
	assert.Equal(t, 40, *spec.Offset)
	assert.False(t, spec.HasEagerLoad())
	assert.Len(t, spec.Aggregates, 1)
	assert.Equal(t, query.AggCount, spec.Aggregates[0].Kind)
}

func TestQuerySpec_WhereNodeCombinesWithAnd(t *testing.T) {
	email := predicate.String[any]("email")
	age := predicate.Int[any]("age")

	spec := query.New().
		WhereNode(email.EQ("a@example.com").Node()).
		WhereNode(age.GT(18).Node())

	group, ok := spec.Where.(predicate.Group)
	assert.True(t, ok)
	assert.Equal(t, predicate.ConnAnd, group.Connector)
	assert.Len(t, group.Children, 2)
}

func TestQuerySpec_Include(t *testing.T) {
	spec := query.New().Include("orders")
	assert.True(t, spec.HasEagerLoad())
	assert.Equal(t, "orders", spec.Includes[0].Navigation)
}
