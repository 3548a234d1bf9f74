package relpool_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relata-go/relata/dialect"
	dsql "github.com/relata-go/relata/dialect/sql"
	"github.com/relata-go/relata/relpool"
)

func newTestPool(t *testing.T) (*relpool.Pool, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	driver := dsql.OpenDB(dialect.Postgres, db)
	cfg := relpool.DefaultConfig()
	cfg.ReapInterval = 0 // don't race background logging against the test
	pool := relpool.New(driver, cfg)
	t.Cleanup(func() { _ = pool.Close() })
	return pool, mock
}

func TestPool_With(t *testing.T) {
	pool, mock := newTestPool(t)
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	err := pool.With(context.Background(), func(c *relpool.Conn) error {
		rows := &dsql.Rows{}
		return c.Query(context.Background(), "SELECT 1", []any{}, rows)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_WithTransaction_Commit(t *testing.T) {
	pool, mock := newTestPool(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := pool.WithTransaction(context.Background(), func(scope *relpool.TransactionScope) error {
		return scope.Driver().Exec(context.Background(), "INSERT INTO users", []any{}, nil)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_WithTransaction_RollsBackOnError(t *testing.T) {
	pool, mock := newTestPool(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := assert.AnError
	err := pool.WithTransaction(context.Background(), func(scope *relpool.TransactionScope) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_Acquire_BoundsConcurrency(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	driver := dsql.OpenDB(dialect.Postgres, db)
	cfg := relpool.Config{MaxPoolSize: 1, ReapInterval: 0}
	pool := relpool.New(driver, cfg)
	t.Cleanup(func() { _ = pool.Close() })

	conn, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx)
	assert.Error(t, err, "second acquire should block until the first slot is released")

	pool.Release(conn)
	conn2, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	pool.Release(conn2)
}

func TestPool_TestConnection(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	driver := dsql.OpenDB(dialect.Postgres, db)
	cfg := relpool.DefaultConfig()
	cfg.ReapInterval = 0
	pool := relpool.New(driver, cfg)
	t.Cleanup(func() { _ = pool.Close() })

	mock.ExpectPing()
	assert.True(t, pool.TestConnection(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_ConnectionString_CachesWithinTTL(t *testing.T) {
	pool, _ := newTestPool(t)
	calls := 0
	build := func() string {
		calls++
		return "dsn"
	}
	first := pool.ConnectionString("primary", build)
	second := pool.ConnectionString("primary", build)
	assert.Equal(t, "dsn", first)
	assert.Equal(t, "dsn", second)
	assert.Equal(t, 1, calls, "second call within TTL should hit the cache")
}
