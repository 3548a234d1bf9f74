package schema_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	relata "github.com/relata-go/relata"
	"github.com/relata-go/relata/dialect"
	dsql "github.com/relata-go/relata/dialect/sql"
	"github.com/relata-go/relata/dialect/sql/schema"
)

// fakeRows is a minimal dsql.ColumnScanner over an in-memory row set, used
// to stand in for the *sql.Rows the real driver hands the Analyzer.
type fakeRows struct {
	rows [][]any
	pos  int
}

func (f *fakeRows) Close() error                            { return nil }
func (f *fakeRows) ColumnTypes() ([]*sql.ColumnType, error) { return nil, nil }
func (f *fakeRows) Columns() ([]string, error)              { return nil, nil }
func (f *fakeRows) Err() error                              { return nil }
func (f *fakeRows) NextResultSet() bool                     { return false }
func (f *fakeRows) Next() bool {
	if f.pos >= len(f.rows) {
		return false
	}
	f.pos++
	return true
}
func (f *fakeRows) Scan(dest ...any) error {
	src := f.rows[f.pos-1]
	if len(src) != len(dest) {
		return fmt.Errorf("fakeRows: column count mismatch: %d src, %d dest", len(src), len(dest))
	}
	for i, d := range dest {
		if err := scanInto(d, src[i]); err != nil {
			return err
		}
	}
	return nil
}

func scanInto(dest, src any) error {
	switch d := dest.(type) {
	case *string:
		*d, _ = src.(string)
	case *int:
		*d, _ = src.(int)
	case *dsql.NullString:
		if src == nil {
			*d = dsql.NullString{}
		} else {
			*d = dsql.NullString{String: src.(string), Valid: true}
		}
	default:
		return fmt.Errorf("scanInto: unsupported dest type %T", dest)
	}
	return nil
}

// fakeConn is a hand-rolled dialect.ExecQuerier that routes Query calls to
// canned row sets keyed by a substring of the rendered SQL, and records
// every Exec call so tests can assert on statement order. execErrs lets a
// test script a failure on the n'th Exec matching a substring, used to
// drive the foreign-key reconstruction dance.
type fakeConn struct {
	t        *testing.T
	queryFor map[string][][]any
	// querySeq overrides queryFor for a substring with a queue of distinct
	// responses, one per call; the last entry repeats once exhausted. Used
	// where the same introspection query runs more than once in a sync
	// with a different live answer expected each time (the FK
	// reconstruction dance re-reads foreign keys after the initial diff).
	querySeq map[string][][][]any
	queryPos map[string]int
	execErrs map[string]error
	execLog  []string
}

func newFakeConn(t *testing.T) *fakeConn {
	return &fakeConn{
		t: t,
		queryFor: map[string][][]any{},
		querySeq: map[string][][][]any{},
		queryPos: map[string]int{},
		execErrs: map[string]error{},
	}
}

func (f *fakeConn) Query(ctx context.Context, query string, args, v any) error {
	vr, ok := v.(*dsql.Rows)
	require.True(f.t, ok, "Query called with non-*dsql.Rows destination")
	for substr, seq := range f.querySeq {
		if strings.Contains(query, substr) {
			i := f.queryPos[substr]
			if i >= len(seq) {
				i = len(seq) - 1
			}
			f.queryPos[substr] = i + 1
			*vr = dsql.Rows{ColumnScanner: &fakeRows{rows: seq[i]}}
			return nil
		}
	}
	for substr, rows := range f.queryFor {
		if strings.Contains(query, substr) {
			*vr = dsql.Rows{ColumnScanner: &fakeRows{rows: rows}}
			return nil
		}
	}
	*vr = dsql.Rows{ColumnScanner: &fakeRows{}}
	return nil
}

func (f *fakeConn) Exec(ctx context.Context, query string, args, v any) error {
	f.execLog = append(f.execLog, query)
	for substr, err := range f.execErrs {
		if strings.Contains(query, substr) {
			delete(f.execErrs, substr) // fires once, so a retry after the dance succeeds
			return err
		}
	}
	return nil
}

var _ dialect.ExecQuerier = (*fakeConn)(nil)

func userTableSpec() *schema.TableSpec {
	return &schema.TableSpec{
		TableName:  "users",
		PrimaryKey: []string{"id"},
		Columns: []schema.ColumnSpec{
			{Name: "id", ModelAttributeName: "ID", Logical: dsql.TypeBigInt, Primary: true, AutoIncrement: true, NotNull: true},
			{Name: "email", ModelAttributeName: "Email", Logical: dsql.TypeVarChar, Size: 320, NotNull: true},
		},
	}
}

func mustMySQL(t *testing.T) dsql.Dialect {
	t.Helper()
	d, err := dsql.ByName(dialect.MySQL)
	require.NoError(t, err)
	return d
}

func TestSynchronizer_SyncTable_CreatesMissingTable(t *testing.T) {
	conn := newFakeConn(t)
	conn.queryFor["information_schema.tables"] = [][]any{{0}} // TableExists -> count 0

	s := schema.NewSynchronizer(mustMySQL(t), conn)
	plan, err := s.SyncTable(context.Background(), userTableSpec(), false)

	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, schema.StepCreateTable, plan.Steps[0].Kind)

	var createStmt string
	for _, q := range conn.execLog {
		if strings.HasPrefix(q, "CREATE TABLE") {
			createStmt = q
		}
	}
	assert.Contains(t, createStmt, "CREATE TABLE `users`")
	assert.Contains(t, createStmt, "PRIMARY KEY (`id`)")
}

func TestSynchronizer_SyncTable_ConvergedSchema_NoOp(t *testing.T) {
	conn := newFakeConn(t)
	conn.queryFor["information_schema.tables"] = [][]any{{1}}
	conn.queryFor["information_schema.columns"] = [][]any{
		{"id", "BIGINT", "NO", nil, "PRI", "auto_increment", nil, nil},
		{"email", "VARCHAR(320)", "NO", nil, "", "", nil, nil},
	}

	s := schema.NewSynchronizer(mustMySQL(t), conn)
	plan, err := s.SyncTable(context.Background(), userTableSpec(), false)

	require.NoError(t, err)
	assert.Empty(t, plan.Steps, "P3: a converged live table must not be altered")
	assert.Empty(t, conn.execLog, "a no-op sync must not issue any DDL")
}

func TestSynchronizer_SyncTable_AppliesAddColumn(t *testing.T) {
	conn := newFakeConn(t)
	conn.queryFor["information_schema.tables"] = [][]any{{1}}
	conn.queryFor["information_schema.columns"] = [][]any{
		{"id", "BIGINT", "NO", nil, "PRI", "auto_increment", nil, nil},
	}

	s := schema.NewSynchronizer(mustMySQL(t), conn)
	plan, err := s.SyncTable(context.Background(), userTableSpec(), false)

	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, schema.StepAddColumn, plan.Steps[0].Kind)
	require.Len(t, conn.execLog, 1)
	assert.Contains(t, conn.execLog[0], "ALTER TABLE `users` ADD COLUMN `email`")
}

func TestSynchronizer_SyncTable_TracksMigrationRecords(t *testing.T) {
	conn := newFakeConn(t)
	conn.queryFor["information_schema.tables"] = [][]any{{0}}
	tracker := &recordingTracker{}

	s := schema.NewSynchronizer(mustMySQL(t), conn)
	s.Tracker = tracker
	_, err := s.SyncTable(context.Background(), userTableSpec(), false)

	require.NoError(t, err)
	require.Len(t, tracker.records, 1)
	assert.Equal(t, "CREATE", tracker.records[0].MigrationType)
	assert.True(t, tracker.records[0].Success)
}

type recordingTracker struct {
	records []schema.MigrationRecord
}

func (r *recordingTracker) Record(ctx context.Context, rec schema.MigrationRecord) error {
	r.records = append(r.records, rec)
	return nil
}

func TestSynchronizer_SyncTable_SnapshotsBeforeDestructiveAlter(t *testing.T) {
	conn := newFakeConn(t)
	conn.queryFor["information_schema.tables"] = [][]any{{1}}
	conn.queryFor["information_schema.columns"] = [][]any{
		{"id", "BIGINT", "NO", nil, "PRI", "auto_increment", nil, nil},
	}
	backup := &recordingBackup{}

	s := schema.NewSynchronizer(mustMySQL(t), conn)
	s.Backup = backup
	_, err := s.SyncTable(context.Background(), userTableSpec(), true)

	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, backup.tables)
}

type recordingBackup struct {
	tables []string
}

func (r *recordingBackup) Snapshot(ctx context.Context, schemaName, table string) error {
	r.tables = append(r.tables, table)
	return nil
}

func TestSynchronizer_SyncTables_ContinuesPastNonConfigFailures(t *testing.T) {
	conn := newFakeConn(t)
	conn.queryFor["information_schema.tables"] = [][]any{{0}}
	conn.execErrs["CREATE TABLE `orders`"] = errors.New("connection reset")

	s := schema.NewSynchronizer(mustMySQL(t), conn)
	specs := []*schema.TableSpec{
		{TableName: "orders", PrimaryKey: []string{"id"}, Columns: []schema.ColumnSpec{
			{Name: "id", ModelAttributeName: "ID", Logical: dsql.TypeBigInt, Primary: true, NotNull: true},
		}},
		userTableSpec(),
	}

	plans, err := s.SyncTables(context.Background(), specs, false)

	require.Error(t, err)
	require.Len(t, plans, 2, "a failure on one table must not stop the rest of the batch")
	assert.NotNil(t, plans[1])
}

func TestSynchronizer_SyncTables_AbortsOnConfigError(t *testing.T) {
	conn := newFakeConn(t)
	conn.queryFor["information_schema.tables"] = [][]any{{0}}
	conn.execErrs["CREATE TABLE `orders`"] = relata.NewConfigError("dialect", "no connection configured")

	s := schema.NewSynchronizer(mustMySQL(t), conn)
	specs := []*schema.TableSpec{
		{TableName: "orders", PrimaryKey: []string{"id"}, Columns: []schema.ColumnSpec{
			{Name: "id", ModelAttributeName: "ID", Logical: dsql.TypeBigInt, Primary: true, NotNull: true},
		}},
		userTableSpec(),
	}

	plans, err := s.SyncTables(context.Background(), specs, false)

	require.Error(t, err)
	assert.True(t, relata.IsConfigError(err))
	assert.Len(t, plans, 1, "a ConfigError must abort the batch before the next table runs")
}

func TestSynchronizer_Apply_ReconstructionDanceOnForeignKeyError(t *testing.T) {
	conn := newFakeConn(t)
	conn.queryFor["information_schema.tables"] = [][]any{{1}}
	conn.queryFor["information_schema.columns"] = [][]any{
		{"id", "BIGINT", "NO", nil, "PRI", "auto_increment", nil, nil},
		{"email", "VARCHAR(255)", "YES", nil, "", "", nil, nil},
	}
	conn.querySeq["information_schema.referential_constraints"] = [][][]any{
		nil, // the initial diff fetch sees no FKs touching "users"
		{{"fk_orders_user", "orders", "user_id", "users", "id", "CASCADE", "CASCADE"}},
	}
	conn.execErrs["ALTER TABLE `users` MODIFY COLUMN"] = errors.New("Error 1451: Cannot delete or update a parent row: a foreign key constraint fails")

	s := schema.NewSynchronizer(mustMySQL(t), conn)
	plan, err := s.SyncTable(context.Background(), userTableSpec(), false)

	require.NoError(t, err, "P5: the dance must make the caller-visible sync succeed despite the mid-apply FK error")
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, schema.StepModifyColumn, plan.Steps[0].Kind)

	var droppedFK, modified, recreatedFK bool
	var modifyIdx, dropIdx, recreateIdx int
	for i, q := range conn.execLog {
		switch {
		case strings.Contains(q, "DROP FOREIGN KEY `fk_orders_user`"):
			droppedFK = true
			dropIdx = i
		case strings.HasPrefix(q, "ALTER TABLE `users` MODIFY COLUMN"):
			modified = true
			modifyIdx = i
		case strings.Contains(q, "ADD CONSTRAINT `fk_orders_user`"):
			recreatedFK = true
			recreateIdx = i
		}
	}
	assert.True(t, droppedFK, "related FK must be dropped before retrying")
	assert.True(t, modified, "the original ALTER must be retried after dropping related FKs")
	assert.True(t, recreatedFK, "the dropped FK must be recreated with its original cascade actions")
	assert.True(t, dropIdx < modifyIdx, "drop must precede retry")
	assert.True(t, modifyIdx < recreateIdx, "retry must precede FK recreation")
}
