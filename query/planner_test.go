package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relata-go/relata"
	dsql "github.com/relata-go/relata/dialect/sql"
	"github.com/relata-go/relata/dialect/sql/schema"
	"github.com/relata-go/relata/predicate"
	"github.com/relata-go/relata/query"
)

func usersTable() *schema.TableSpec {
	return &schema.TableSpec{
		TableName:  "users",
		PrimaryKey: []string{"id"},
		Columns: []schema.ColumnSpec{
			{Name: "id", Primary: true, AutoIncrement: true, Logical: dsql.TypeBigInt},
			{Name: "email", Logical: dsql.TypeVarChar, NotNull: true},
			{Name: "age", Logical: dsql.TypeInt},
			{Name: "created_at", Logical: dsql.TypeDateTime, DefaultExpr: "CURRENT_TIMESTAMP"},
		},
	}
}

func ordersTable() *schema.TableSpec {
	return &schema.TableSpec{
		TableName:  "orders",
		PrimaryKey: []string{"id"},
		Columns: []schema.ColumnSpec{
			{Name: "id", Primary: true, AutoIncrement: true, Logical: dsql.TypeBigInt},
			{Name: "user_id", Logical: dsql.TypeBigInt, NotNull: true},
			{Name: "total", Logical: dsql.TypeDecimal},
		},
		ForeignKeys: []schema.ForeignKeySpec{
			{ConstraintName: "fk_orders_user_id", LocalColumn: "user_id", ReferencedTable: "users", ReferencedColumn: "id"},
		},
	}
}

func mysqlPlanner(resolver query.TableResolver) *query.Planner {
	d, err := dsql.ByName("mysql")
	if err != nil {
		panic(err)
	}
	return query.NewPlanner(d, resolver)
}

func postgresPlanner(resolver query.TableResolver) *query.Planner {
	d, err := dsql.ByName("postgres")
	if err != nil {
		panic(err)
	}
	return query.NewPlanner(d, resolver)
}

func TestPlanSelect_Basic(t *testing.T) {
	p := mysqlPlanner(nil)
	spec := query.New().
		WhereNode(predicate.String[any]("email").EQ("a@example.com").Node()).
		OrderByClause(predicate.Desc(predicate.Time[any, any]("created_at"))).
		SetLimit(10)

	stmt, err := p.PlanSelect(usersTable(), spec)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE `email` = ? ORDER BY `created_at` DESC LIMIT 10", stmt.SQL)
	assert.Equal(t, []any{"a@example.com"}, stmt.Args)
}

func TestPlanSelect_AndOrGrouping(t *testing.T) {
	p := mysqlPlanner(nil)
	email := predicate.String[any]("email")
	age := predicate.Int[any]("age")

	where := predicate.And(
		email.EqualFold("a@example.com"),
		predicate.Or(age.LT(18), age.GT(65)),
	)
	spec := query.New().WhereNode(where.Node())

	stmt, err := p.PlanSelect(usersTable(), spec)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE (`email` = ? AND (`age` < ? OR `age` > ?))", stmt.SQL)
	assert.Equal(t, []any{"a@example.com", 18, 65}, stmt.Args)
}

func TestPlanSelect_InAndBetween(t *testing.T) {
	p := mysqlPlanner(nil)
	age := predicate.Int[any]("age")

	spec := query.New().WhereNode(age.Between(18, 30).Node())
	stmt, err := p.PlanSelect(usersTable(), spec)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE `age` BETWEEN ? AND ?", stmt.SQL)
	assert.Equal(t, []any{18, 30}, stmt.Args)

	email := predicate.String[any]("email")
	spec2 := query.New().WhereNode(email.In("a@example.com", "b@example.com").Node())
	stmt2, err := p.PlanSelect(usersTable(), spec2)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE `email` IN (?, ?)", stmt2.SQL)
	assert.Equal(t, []any{"a@example.com", "b@example.com"}, stmt2.Args)
}

func TestPlanSelect_Not(t *testing.T) {
	p := mysqlPlanner(nil)
	active := predicate.Bool[any]("is_active")

	spec := query.New().WhereNode(predicate.Not(active.EQ(true)).Node())
	stmt, err := p.PlanSelect(usersTable(), spec)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE NOT (`is_active` = ?)", stmt.SQL)
	assert.Equal(t, []any{true}, stmt.Args)
}

func TestPlanSelect_EmptyInRefusesToCompile(t *testing.T) {
	p := mysqlPlanner(nil)
	email := predicate.String[any]("email")

	spec := query.New().WhereNode(email.In().Node())
	_, err := p.PlanSelect(usersTable(), spec)

	require.Error(t, err)
	assert.True(t, relata.IsCompileError(err))
}

func TestPlanSelect_EagerLoad(t *testing.T) {
	resolver := query.MapResolver{"orders": ordersTable()}
	p := mysqlPlanner(resolver)

	spec := query.New().Include("orders")
	stmt, err := p.PlanSelect(usersTable(), spec)
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, "`users`.`id` AS `users_id`")
	assert.Contains(t, stmt.SQL, "`orders`.`id` AS `orders_id`")
	assert.Contains(t, stmt.SQL, "LEFT JOIN `orders` ON orders.user_id = users.id")
}

func TestPlanCount(t *testing.T) {
	p := mysqlPlanner(nil)
	age := predicate.Int[any]("age")
	spec := query.New().WhereNode(age.GT(18).Node())

	stmt, err := p.PlanCount(usersTable(), spec)
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM `users` WHERE `age` > ?", stmt.SQL)
	assert.Equal(t, []any{18}, stmt.Args)
}

func TestPlanDelete_RequiresWhere(t *testing.T) {
	p := mysqlPlanner(nil)
	_, err := p.PlanDelete(usersTable(), nil, false)
	assert.Error(t, err)

	stmt, err := p.PlanDelete(usersTable(), nil, true)
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM `users`", stmt.SQL)
}

func TestPlanDelete_WithWhere(t *testing.T) {
	p := mysqlPlanner(nil)
	email := predicate.String[any]("email")
	stmt, err := p.PlanDelete(usersTable(), email.EQ("a@example.com").Node(), false)
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM `users` WHERE `email` = ?", stmt.SQL)
	assert.Equal(t, []any{"a@example.com"}, stmt.Args)
}

func TestPlanUpdate_RequiresWhere(t *testing.T) {
	p := mysqlPlanner(nil)
	_, err := p.PlanUpdate(usersTable(), map[string]any{"email": "b@example.com"}, nil)
	assert.Error(t, err)
}

func TestPlanUpdate(t *testing.T) {
	p := mysqlPlanner(nil)
	email := predicate.String[any]("email")
	where := email.EQ("a@example.com")

	stmt, err := p.PlanUpdate(usersTable(), map[string]any{"age": 31, "email": "b@example.com"}, where.Node())
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `users` SET `age` = ?, `email` = ? WHERE `email` = ?", stmt.SQL)
	assert.Equal(t, []any{31, "b@example.com", "a@example.com"}, stmt.Args)
}

func TestPlanInsert_SkipsUnsetDefaults(t *testing.T) {
	p := mysqlPlanner(nil)
	rows := []map[string]any{
		{"email": "a@example.com", "age": 20, "created_at": ""},
	}

	stmt, err := p.PlanInsert(usersTable(), rows)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `users` (`email`, `age`) VALUES (?, ?)", stmt.SQL)
	assert.Equal(t, []any{"a@example.com", 20}, stmt.Args)
}

func TestPlanInsert_Batch(t *testing.T) {
	p := mysqlPlanner(nil)
	rows := []map[string]any{
		{"email": "a@example.com", "age": 20},
		{"email": "b@example.com", "age": 25},
	}

	stmt, err := p.PlanInsert(usersTable(), rows)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `users` (`email`, `age`) VALUES (?, ?), (?, ?)", stmt.SQL)
	assert.Equal(t, []any{"a@example.com", 20, "b@example.com", 25}, stmt.Args)
}

func TestPlanInsertReturning_AppendsReturningClause(t *testing.T) {
	p := postgresPlanner(nil)
	row := map[string]any{"email": "a@example.com", "age": 20}

	stmt, err := p.PlanInsertReturning(usersTable(), row, "id")
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "public"."users" ("email", "age") VALUES ($1, $2) RETURNING "id"`, stmt.SQL)
	assert.Equal(t, []any{"a@example.com", 20}, stmt.Args)
}
