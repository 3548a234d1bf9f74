package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relata-go/relata/dialect"
	dsql "github.com/relata-go/relata/dialect/sql"
	"github.com/relata-go/relata/dialect/sql/schema"
	"github.com/relata-go/relata/query"
	"github.com/relata-go/relata/relpool"
	"github.com/relata-go/relata/repository"
)

type widget struct {
	ID       int64
	Name     string
	Quantity int64
}

func widgetTable() *schema.TableSpec {
	return &schema.TableSpec{
		TableName:  "widgets",
		PrimaryKey: []string{"id"},
		Columns: []schema.ColumnSpec{
			{Name: "id", ModelAttributeName: "ID", Primary: true, AutoIncrement: true},
			{Name: "name", ModelAttributeName: "Name"},
			{Name: "quantity", ModelAttributeName: "Quantity"},
		},
	}
}

// memCache is a trivial in-memory relata.Cache test double; the contract
// is exercised through it rather than the reference contrib/cache
// implementation so these tests stay independent of its sweep timing.
type memCache struct {
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) { return c.data[key], nil }
func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.data[key] = value
	return nil
}
func (c *memCache) Delete(ctx context.Context, key string) error { delete(c.data, key); return nil }
func (c *memCache) DeletePrefix(ctx context.Context, prefix string) error {
	for k := range c.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.data, k)
		}
	}
	return nil
}
func (c *memCache) Clear(ctx context.Context) error { c.data = map[string][]byte{}; return nil }

func newTestRepo(t *testing.T) (*repository.Repository[widget], sqlmock.Sqlmock, *memCache) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	driver := dsql.OpenDB(dialect.Postgres, db)
	pool := relpool.New(driver, relpool.Config{MaxPoolSize: 5, ConnStringTTL: time.Minute})
	t.Cleanup(func() { _ = pool.Close() })

	d, err := dsql.ByName(dialect.Postgres)
	require.NoError(t, err)
	planner := query.NewPlanner(d, nil)
	cache := newMemCache()

	repo, err := repository.New[widget](pool, planner, widgetTable(), cache)
	require.NoError(t, err)
	return repo, mock, cache
}

func TestRepository_Insert(t *testing.T) {
	// On PostgreSQL, Dialect.LastInsertIDStrategy() is "returning", so
	// Insert appends RETURNING "id" and scans the PK back from the
	// result set rather than from Result.LastInsertId().
	repo, mock, _ := newTestRepo(t)
	mock.ExpectQuery("INSERT INTO \"public\"\\.\"widgets\".*RETURNING \"id\"").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	result := repo.Insert(context.Background(), widget{Name: "bolt", Quantity: 10})
	require.True(t, result.Success)
	assert.Equal(t, int64(7), result.Data.ID)
	assert.Equal(t, int64(1), result.RowsAffected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByID_Found(t *testing.T) {
	repo, mock, _ := newTestRepo(t)
	mock.ExpectQuery("SELECT \\* FROM \"public\"\\.\"widgets\" WHERE \"id\" = \\$1").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "quantity"}).AddRow(7, "bolt", 10))

	result := repo.GetByID(context.Background(), int64(7), 0)
	require.True(t, result.Success)
	assert.Equal(t, "bolt", result.Data.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByID_NotFound(t *testing.T) {
	repo, mock, _ := newTestRepo(t)
	mock.ExpectQuery("SELECT \\* FROM \"public\"\\.\"widgets\" WHERE \"id\" = \\$1").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "quantity"}))

	result := repo.GetByID(context.Background(), int64(99), 0)
	assert.False(t, result.Success)
	assert.Error(t, result.CauseException)
}

func TestRepository_GetByID_CachesWhenTTLSet(t *testing.T) {
	repo, mock, cache := newTestRepo(t)
	mock.ExpectQuery("SELECT \\* FROM \"public\"\\.\"widgets\" WHERE \"id\" = \\$1").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "quantity"}).AddRow(7, "bolt", 10))

	first := repo.GetByID(context.Background(), int64(7), time.Minute)
	require.True(t, first.Success)

	second := repo.GetByID(context.Background(), int64(7), time.Minute)
	require.True(t, second.Success)
	assert.Equal(t, "bolt", second.Data.Name)
	assert.NoError(t, mock.ExpectationsWereMet()) // only one query hit the driver
	assert.NotEmpty(t, cache.data)
}

func TestRepository_Update(t *testing.T) {
	repo, mock, _ := newTestRepo(t)
	mock.ExpectExec("UPDATE \"public\"\\.\"widgets\" SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	result := repo.Update(context.Background(), widget{ID: 7, Name: "bolt", Quantity: 12})
	require.True(t, result.Success)
	assert.Equal(t, int64(1), result.RowsAffected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Delete(t *testing.T) {
	repo, mock, _ := newTestRepo(t)
	mock.ExpectExec("DELETE FROM \"public\"\\.\"widgets\" WHERE \"id\" = \\$1").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result := repo.Delete(context.Background(), int64(7))
	require.True(t, result.Success)
	assert.Equal(t, int64(1), result.RowsAffected)
}

func TestRepository_Increment(t *testing.T) {
	repo, mock, _ := newTestRepo(t)
	mock.ExpectExec("UPDATE \"public\"\\.\"widgets\" SET \"quantity\" = \"quantity\" \\+ \\$1 WHERE \"id\" = \\$2").
		WithArgs(5.0, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result := repo.Increment(context.Background(), int64(7), "quantity", 5)
	require.True(t, result.Success)
}

func TestRepository_Decrement_PreventNegativeUsesGreatest(t *testing.T) {
	repo, mock, _ := newTestRepo(t)
	mock.ExpectExec("UPDATE \"public\"\\.\"widgets\" SET \"quantity\" = GREATEST\\(\"quantity\" \\+ \\$1, \\$2\\) WHERE \"id\" = \\$3").
		WithArgs(-5.0, 0, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result := repo.Decrement(context.Background(), int64(7), "quantity", 5, true)
	require.True(t, result.Success)
}

func TestRepository_Count(t *testing.T) {
	repo, mock, _ := newTestRepo(t)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM \"public\"\\.\"widgets\"").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	result := repo.Count(context.Background())
	require.True(t, result.Success)
	assert.Equal(t, int64(3), result.Data)
}

func TestRepository_Page(t *testing.T) {
	repo, mock, _ := newTestRepo(t)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM \"public\"\\.\"widgets\"").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT \\* FROM \"public\"\\.\"widgets\" LIMIT 1 OFFSET 0").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "quantity"}).AddRow(1, "bolt", 10))

	result := repo.Page(context.Background(), 1, 1, 0)
	require.True(t, result.Success)
	assert.Equal(t, int64(2), result.Data.TotalItems)
	assert.Equal(t, 2, result.Data.TotalPages())
	assert.False(t, result.Data.HasPrev())
	assert.True(t, result.Data.HasNext())
	assert.Len(t, result.Data.Items, 1)
}

func TestRepository_Page_RejectsZeroPageSize(t *testing.T) {
	repo, _, _ := newTestRepo(t)
	result := repo.Page(context.Background(), 1, 0, 0)
	assert.False(t, result.Success)
}

func TestRepository_New_RejectsTableWithoutPrimaryKey(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	driver := dsql.OpenDB(dialect.Postgres, db)
	pool := relpool.New(driver, relpool.Config{MaxPoolSize: 1})
	defer pool.Close()

	d, err := dsql.ByName(dialect.Postgres)
	require.NoError(t, err)
	planner := query.NewPlanner(d, nil)

	_, err = repository.New[widget](pool, planner, &schema.TableSpec{TableName: "widgets"}, nil)
	assert.Error(t, err)
}
