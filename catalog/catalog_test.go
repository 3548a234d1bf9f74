package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relata-go/relata/catalog"
	"github.com/relata-go/relata/contrib/mixin"
	"github.com/relata-go/relata/dialect"
	dsql "github.com/relata-go/relata/dialect/sql"
	"github.com/relata-go/relata/dialect/sql/schema"
)

type user struct {
	_         struct{}  `relata:"table=users;engine=InnoDB;charset=utf8mb4;uniqueindex=uq_email_tenant:email,tenant_id"`
	ID        int64     `relata:"pk;autoincrement"`
	Email     string    `relata:"unique;notnull;size=255"`
	TenantID  int64     `relata:"notnull;index"`
	IsActive  bool      `relata:"default=false"`
	CreatedAt time.Time `relata:"default=CURRENT_TIMESTAMP"`
	Profile   []byte    `relata:"type=blob"`
	ExternID  uuid.UUID
	Posts     []string `relata:"rel=one2many;fk=author_id"`
}

type order struct {
	ID         int64 `relata:"pk;autoincrement"`
	CustomerID int64 `relata:"notnull;fk=users.id;ondelete=cascade"`
}

type implicitID struct {
	ID   string
	Name string
}

func TestTableSpec_ColumnsAndOptions(t *testing.T) {
	c := catalog.New()
	spec, err := c.TableSpec(user{})
	require.NoError(t, err)

	assert.Equal(t, "users", spec.TableName)
	assert.Equal(t, "InnoDB", spec.Engine)
	assert.Equal(t, "utf8mb4", spec.Charset)
	assert.Equal(t, []string{"id"}, spec.PrimaryKey)

	email, ok := spec.Column("email")
	require.True(t, ok)
	assert.True(t, email.Unique)
	assert.True(t, email.NotNull)
	assert.Equal(t, int64(255), email.Size)
	assert.Equal(t, dsql.TypeVarChar, email.Logical)

	createdAt, ok := spec.Column("created_at")
	require.True(t, ok)
	assert.Equal(t, dsql.TypeDateTime, createdAt.Logical)
	assert.Equal(t, "CURRENT_TIMESTAMP", createdAt.DefaultExpr)

	profile, ok := spec.Column("profile")
	require.True(t, ok)
	assert.Equal(t, dsql.TypeBlob, profile.Logical)

	externID, ok := spec.Column("extern_id")
	require.True(t, ok)
	assert.Equal(t, dsql.TypeUUID, externID.Logical)

	_, hasRelationColumn := spec.Column("posts")
	assert.False(t, hasRelationColumn, "relation-only field must not produce a column")

	var hasCompositeIndex bool
	for _, idx := range spec.Indexes {
		if idx.Name == "uq_email_tenant" {
			hasCompositeIndex = true
			assert.True(t, idx.Unique)
			assert.Equal(t, []string{"email", "tenant_id"}, idx.Columns)
		}
	}
	assert.True(t, hasCompositeIndex)
}

func TestTableSpec_ForeignKey(t *testing.T) {
	c := catalog.New()
	spec, err := c.TableSpec(&order{})
	require.NoError(t, err)

	require.Len(t, spec.ForeignKeys, 1)
	fk := spec.ForeignKeys[0]
	assert.Equal(t, "customer_id", fk.LocalColumn)
	assert.Equal(t, "users", fk.ReferencedTable)
	assert.Equal(t, "id", fk.ReferencedColumn)
	assert.Equal(t, dsql.Cascade, fk.OnDelete)
}

func TestTableSpec_ImplicitPrimaryKey(t *testing.T) {
	c := catalog.New()
	spec, err := c.TableSpec(implicitID{})
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, spec.PrimaryKey)
}

func TestTableSpec_MemoizesByType(t *testing.T) {
	c := catalog.New()
	first, err := c.TableSpec(user{})
	require.NoError(t, err)
	second, err := c.TableSpec(&user{})
	require.NoError(t, err)
	assert.Same(t, first, second)
}

type timestamped struct {
	ID   int64 `relata:"pk;autoincrement"`
	Name string
	mixin.Timestamps
	mixin.SoftDelete
}

func TestTableSpec_PromotesAnonymousMixinFields(t *testing.T) {
	c := catalog.New()
	spec, err := c.TableSpec(timestamped{})
	require.NoError(t, err)

	createdAt, ok := spec.Column("created_at")
	require.True(t, ok, "embedded mixin.Timestamps field must be promoted into the table")
	assert.Equal(t, "CreatedAt", createdAt.ModelAttributeName)

	updatedAt, ok := spec.Column("updated_at")
	require.True(t, ok)
	assert.True(t, updatedAt.OnUpdateCurrentTime)

	deletedAt, ok := spec.Column("deleted_at")
	require.True(t, ok, "embedded mixin.SoftDelete field must be promoted into the table")
	assert.False(t, deletedAt.NotNull)
}

func TestTableSpec_RejectsNonStruct(t *testing.T) {
	c := catalog.New()
	_, err := c.TableSpec(42)
	assert.Error(t, err)
}

func TestAll_ReturnsEveryResolvedModel(t *testing.T) {
	c := catalog.New()
	_, err := c.TableSpec(user{})
	require.NoError(t, err)
	_, err = c.TableSpec(&order{})
	require.NoError(t, err)

	var names []string
	for _, spec := range c.All() {
		names = append(names, spec.TableName)
	}
	assert.ElementsMatch(t, []string{"users", "orders"}, names)
}

func TestAll_OmitsModelsNeverResolved(t *testing.T) {
	c := catalog.New()
	_, err := c.TableSpec(user{})
	require.NoError(t, err)
	assert.Len(t, c.All(), 1)
}

// unreachableConn is a dialect.ExecQuerier standing in for a database the
// synchronizer can't reach, used to verify SyncNamespace drives every
// registered model through the Synchronizer rather than just the first.
type unreachableConn struct{ queries int }

func (u *unreachableConn) Exec(ctx context.Context, query string, args, v any) error {
	return errors.New("unreachableConn: exec refused")
}

func (u *unreachableConn) Query(ctx context.Context, query string, args, v any) error {
	u.queries++
	return errors.New("unreachableConn: query refused")
}

var _ dialect.ExecQuerier = (*unreachableConn)(nil)

func TestSyncNamespace_DrivesEveryRegisteredTable(t *testing.T) {
	c := catalog.New()
	_, err := c.TableSpec(user{})
	require.NoError(t, err)
	_, err = c.TableSpec(&order{})
	require.NoError(t, err)

	mysql, err := dsql.ByName(dialect.MySQL)
	require.NoError(t, err)
	conn := &unreachableConn{}
	sync := schema.NewSynchronizer(mysql, conn)

	plans, err := c.SyncNamespace(context.Background(), sync, false)

	assert.Error(t, err, "every table fails against an unreachable connection")
	assert.Len(t, plans, 2, "SyncNamespace must attempt every table All() reports, not stop at the first failure")
	assert.Equal(t, 2, conn.queries, "one TableExists probe per registered table")
}
