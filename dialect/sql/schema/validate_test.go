package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relata-go/relata"
	dsql "github.com/relata-go/relata/dialect/sql"
	"github.com/relata-go/relata/dialect/sql/schema"
)

func TestValidateTableSpec_AcceptsWellFormedSpec(t *testing.T) {
	assert.NoError(t, schema.ValidateTableSpec(userSpec()))
}

func TestValidateTableSpec_RejectsDuplicateColumnName(t *testing.T) {
	spec := &schema.TableSpec{
		TableName: "users",
		Columns: []schema.ColumnSpec{
			{Name: "id", Logical: dsql.TypeBigInt},
			{Name: "id", Logical: dsql.TypeVarChar},
		},
	}

	err := schema.ValidateTableSpec(spec)

	require.Error(t, err)
	assert.True(t, relata.IsSchemaError(err))
	assert.Contains(t, err.Error(), "duplicate column name")
}

func TestValidateTableSpec_RejectsIndexOnUndeclaredColumn(t *testing.T) {
	spec := &schema.TableSpec{
		TableName: "users",
		Columns:   []schema.ColumnSpec{{Name: "id", Logical: dsql.TypeBigInt}},
		Indexes:   []schema.IndexSpec{{Name: "idx_users_email", Columns: []string{"email"}}},
	}

	err := schema.ValidateTableSpec(spec)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `index "idx_users_email" references undeclared column "email"`)
}

func TestValidateTableSpec_RejectsForeignKeyOnUndeclaredLocalColumn(t *testing.T) {
	spec := &schema.TableSpec{
		TableName: "orders",
		Columns:   []schema.ColumnSpec{{Name: "id", Logical: dsql.TypeBigInt}},
		ForeignKeys: []schema.ForeignKeySpec{
			{ConstraintName: "fk_orders_user_id", LocalColumn: "user_id", ReferencedTable: "users", ReferencedColumn: "id"},
		},
	}

	err := schema.ValidateTableSpec(spec)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `foreign key "fk_orders_user_id" references undeclared local column "user_id"`)
}

func TestValidateTableSpec_RejectsPrimaryKeyOnUndeclaredColumn(t *testing.T) {
	spec := &schema.TableSpec{
		TableName:  "users",
		PrimaryKey: []string{"uuid"},
		Columns:    []schema.ColumnSpec{{Name: "id", Logical: dsql.TypeBigInt}},
	}

	err := schema.ValidateTableSpec(spec)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `primary key names undeclared column "uuid"`)
}

func TestValidateTableSpec_RejectsAutoIncrementOnNullableColumn(t *testing.T) {
	spec := &schema.TableSpec{
		TableName: "users",
		Columns:   []schema.ColumnSpec{{Name: "id", Logical: dsql.TypeBigInt, AutoIncrement: true}},
	}

	err := schema.ValidateTableSpec(spec)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "id" is AutoIncrement but not NOT NULL`)
}

func TestValidateTableSpec_RejectsAutoIncrementOnNonIntegerColumn(t *testing.T) {
	spec := &schema.TableSpec{
		TableName: "users",
		Columns:   []schema.ColumnSpec{{Name: "id", Logical: dsql.TypeVarChar, Size: 36, AutoIncrement: true, NotNull: true}},
	}

	err := schema.ValidateTableSpec(spec)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "is AutoIncrement but logical type")
}

func TestValidateForeignKeyTargets_AcceptsResolvedReference(t *testing.T) {
	users := userSpec()
	orders := &schema.TableSpec{
		TableName: "orders",
		Columns:   []schema.ColumnSpec{{Name: "id", Logical: dsql.TypeBigInt}, {Name: "user_id", Logical: dsql.TypeBigInt}},
		ForeignKeys: []schema.ForeignKeySpec{
			{ConstraintName: "fk_orders_user_id", LocalColumn: "user_id", ReferencedTable: "users", ReferencedColumn: "id"},
		},
	}

	assert.NoError(t, schema.ValidateForeignKeyTargets([]*schema.TableSpec{users, orders}))
}

func TestValidateForeignKeyTargets_RejectsUnresolvedReferencedColumn(t *testing.T) {
	users := userSpec()
	orders := &schema.TableSpec{
		TableName: "orders",
		Columns:   []schema.ColumnSpec{{Name: "id", Logical: dsql.TypeBigInt}, {Name: "user_id", Logical: dsql.TypeBigInt}},
		ForeignKeys: []schema.ForeignKeySpec{
			{ConstraintName: "fk_orders_user_id", LocalColumn: "user_id", ReferencedTable: "users", ReferencedColumn: "uuid"},
		},
	}

	err := schema.ValidateForeignKeyTargets([]*schema.TableSpec{users, orders})

	require.Error(t, err)
	assert.True(t, relata.IsSchemaError(err))
	assert.Contains(t, err.Error(), "orders.user_id -> users.uuid")
}

func TestValidateForeignKeyTargets_IgnoresReferenceOutsideTheSet(t *testing.T) {
	orders := &schema.TableSpec{
		TableName: "orders",
		Columns:   []schema.ColumnSpec{{Name: "id", Logical: dsql.TypeBigInt}, {Name: "user_id", Logical: dsql.TypeBigInt}},
		ForeignKeys: []schema.ForeignKeySpec{
			{ConstraintName: "fk_orders_user_id", LocalColumn: "user_id", ReferencedTable: "users", ReferencedColumn: "id"},
		},
	}

	assert.NoError(t, schema.ValidateForeignKeyTargets([]*schema.TableSpec{orders}))
}
