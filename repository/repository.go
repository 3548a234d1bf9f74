// Package repository implements the full CRUD + caching contract (§4.8)
// over one model type T: insert, insertMany, getById, getByColumn, list,
// page, count, update, delete, increment, decrement, and find, each
// returning an OperationResult[T] envelope rather than a bare error.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	relata "github.com/relata-go/relata"
	"github.com/relata-go/relata/dialect"
	dsql "github.com/relata-go/relata/dialect/sql"
	"github.com/relata-go/relata/dialect/sql/schema"
	"github.com/relata-go/relata/query"
	"github.com/relata-go/relata/relpool"
)

// OperationResult is the envelope every Repository method returns (§6):
// {success, data, rowsAffected, errorMessage, causeException}.
type OperationResult[T any] struct {
	Success        bool
	Data           T
	RowsAffected   int64
	ErrorMessage   string
	CauseException error
}

func ok[T any](data T, rowsAffected int64) OperationResult[T] {
	return OperationResult[T]{Success: true, Data: data, RowsAffected: rowsAffected}
}

func fail[T any](err error) OperationResult[T] {
	return OperationResult[T]{ErrorMessage: err.Error(), CauseException: err}
}

// Page is the result of page/find: items plus the paging window, with the
// derived counts §4.8 specifies.
type Page[T any] struct {
	Items      []T
	PageNumber int
	PageSize   int
	TotalItems int64
}

func (p Page[T]) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	pages := int(p.TotalItems) / p.PageSize
	if int(p.TotalItems)%p.PageSize != 0 {
		pages++
	}
	return pages
}

func (p Page[T]) HasPrev() bool { return p.PageNumber > 1 }
func (p Page[T]) HasNext() bool { return p.PageNumber < p.TotalPages() }

// Repository is the generic CRUD surface for model T, bound to one
// TableSpec and rendering statements through one Planner. The zero value
// is not usable; build one with New.
type Repository[T any] struct {
	pool    *relpool.Pool
	planner *query.Planner
	table   *schema.TableSpec
	cache   relata.Cache

	// exec overrides the pool for every statement when set, letting a
	// Repository be bound to one TransactionScope via WithExecutor.
	exec dialect.ExecQuerier
}

// New builds a Repository for model T, reading and writing through pool
// by default. table is normally obtained via a ModelCatalog, and planner
// from query.NewPlanner bound to the same dialect and resolver (typically
// the catalog itself) — so the Repository, the PredicateCompiler, and the
// QueryPlanner all agree on one TableSpec for T.
func New[T any](pool *relpool.Pool, planner *query.Planner, table *schema.TableSpec, cache relata.Cache) (*Repository[T], error) {
	if len(table.PrimaryKey) == 0 {
		return nil, relata.NewStateError("repository.New", "model "+table.TableName+" has no primary key")
	}
	return &Repository[T]{pool: pool, planner: planner, table: table, cache: cache}, nil
}

// WithExecutor returns a shallow copy of r bound to exec instead of the
// pool — the mechanism callers use to run Repository operations inside a
// relpool.TransactionScope (via scope.Driver()).
func (r *Repository[T]) WithExecutor(exec dialect.ExecQuerier) *Repository[T] {
	clone := *r
	clone.exec = exec
	return &clone
}

// withExec runs fn against r.exec when bound to a transaction, or acquires
// one connection from the pool for the duration of fn otherwise.
func (r *Repository[T]) withExec(ctx context.Context, fn func(dialect.ExecQuerier) error) error {
	if r.exec != nil {
		return fn(r.exec)
	}
	return r.pool.With(ctx, func(c *relpool.Conn) error { return fn(c) })
}

func entityToColumns(table *schema.TableSpec, entity any) map[string]any {
	rv := reflect.ValueOf(entity)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	row := make(map[string]any, len(table.Columns))
	for _, c := range table.Columns {
		f := rv.FieldByName(c.ModelAttributeName)
		if !f.IsValid() {
			continue
		}
		row[c.Name] = f.Interface()
	}
	return row
}

func primaryKeyValue(table *schema.TableSpec, entity any) (string, any) {
	pkCol := table.PrimaryKey[0]
	col, _ := table.Column(pkCol)
	rv := reflect.ValueOf(entity)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	f := rv.FieldByName(col.ModelAttributeName)
	return pkCol, f.Interface()
}

func setPrimaryKey(table *schema.TableSpec, entityPtr any, id int64) {
	pkCol := table.PrimaryKey[0]
	col, ok := table.Column(pkCol)
	if !ok {
		return
	}
	rv := reflect.ValueOf(entityPtr).Elem()
	f := rv.FieldByName(col.ModelAttributeName)
	if !f.CanSet() {
		return
	}
	switch f.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f.SetInt(id)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f.SetUint(uint64(id))
	}
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}

func (r *Repository[T]) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.cache.Get(ctx, key)
	if err != nil || data == nil {
		return nil, false
	}
	return data, true
}

func (r *Repository[T]) cacheSet(ctx context.Context, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = r.cache.Set(ctx, key, data, ttl)
}

func (r *Repository[T]) invalidateCache(ctx context.Context) {
	if r.cache == nil {
		return
	}
	_ = r.cache.DeletePrefix(ctx, relata.TablePrefix(r.table.TableName))
}

// execAffecting runs a rendered Statement that returns no rows (UPDATE,
// DELETE) and reports rows affected — the shared tail of Builder.Delete
// and Builder.Update, mirroring Repository.Delete/Update's own
// withExec+RowsAffected sequence in crud.go.
func (r *Repository[T]) execAffecting(ctx context.Context, stmt *query.Statement) (int64, error) {
	var res dsql.Result
	if err := r.withExec(ctx, func(ex dialect.ExecQuerier) error {
		return ex.Exec(ctx, stmt.SQL, stmt.Args, &res)
	}); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// greatestFn renders the backend-appropriate "greatest of two values"
// expression: GREATEST(a, b) on MySQL/PostgreSQL, MAX(a, b) (the scalar
// two-argument form) on SQLite (§4.8 decrement/preventNegative).
func greatestFn(dialectName, a, b string) string {
	if dialectName == dialect.SQLite {
		return fmt.Sprintf("MAX(%s, %s)", a, b)
	}
	return fmt.Sprintf("GREATEST(%s, %s)", a, b)
}
