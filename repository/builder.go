package repository

import (
	"context"

	relata "github.com/relata-go/relata"
	"github.com/relata-go/relata/dialect"
	"github.com/relata-go/relata/predicate"
	"github.com/relata-go/relata/query"
)

// Builder is the fluent QueryBuilder[T] surface (§6): where/orderBy/
// groupBy/select/include/joins/aggregates/limit-offset accumulate into a
// query.QuerySpec, and a terminal call (Execute, ExecuteSingle, Count,
// Delete, Update, ToSQL) hands that QuerySpec to the bound Repository's
// Planner. A Builder is built, executed, and discarded, exactly like the
// QuerySpec it wraps (§3 Lifecycles) — it is not safe to reuse across two
// terminal calls whose plans differ (e.g. Execute then Delete), since
// Limit/Offset set by one paging call would leak into the other.
type Builder[T any] struct {
	repo *Repository[T]
	spec *query.QuerySpec
	exec dialect.ExecQuerier
}

// Query returns a new Builder over r's table, with an empty QuerySpec.
func (r *Repository[T]) Query() *Builder[T] {
	return &Builder[T]{repo: r, spec: query.New()}
}

// Where AND-combines pred into the builder's filter tree. Calling Where
// more than once ANDs successive calls together, mirroring QuerySpec's own
// WhereNode accumulation.
func (b *Builder[T]) Where(pred predicate.Predicate[T]) *Builder[T] {
	b.spec.WhereNode(pred.Node())
	return b
}

// OrderBy appends an ascending ORDER BY entry.
func (b *Builder[T]) OrderBy(field predicate.Namer) *Builder[T] {
	b.spec.OrderByClause(predicate.Asc(field))
	return b
}

// OrderByDescending appends a descending ORDER BY entry.
func (b *Builder[T]) OrderByDescending(field predicate.Namer) *Builder[T] {
	b.spec.OrderByClause(predicate.Desc(field))
	return b
}

// ThenBy appends another ascending ORDER BY entry after any already
// accumulated — a plain alias for OrderBy, since QuerySpec.OrderBy is
// already an ordered, append-only sequence (§4.5's ThenBy/ThenByDescending
// shape needs no separate "secondary key" concept in this rendering).
func (b *Builder[T]) ThenBy(field predicate.Namer) *Builder[T] { return b.OrderBy(field) }

// ThenByDescending appends another descending ORDER BY entry.
func (b *Builder[T]) ThenByDescending(field predicate.Namer) *Builder[T] {
	return b.OrderByDescending(field)
}

// GroupBy sets the GROUP BY column list.
func (b *Builder[T]) GroupBy(columns ...string) *Builder[T] {
	b.spec.GroupByColumns(columns...)
	return b
}

// Select restricts the SELECT list to columns (empty = every declared
// column).
func (b *Builder[T]) Select(columns ...string) *Builder[T] {
	b.spec.Select(columns...)
	return b
}

// Include requests an eager-loaded navigation, joined in by the Planner
// per §4.6 step 3.
func (b *Builder[T]) Include(navigation string) *Builder[T] {
	b.spec.Include(navigation)
	return b
}

// InnerJoin adds an explicit INNER JOIN against table ON condition.
func (b *Builder[T]) InnerJoin(table, condition string) *Builder[T] {
	b.spec.Join(query.InnerJoin, table, condition)
	return b
}

// LeftJoin adds an explicit LEFT JOIN against table ON condition.
func (b *Builder[T]) LeftJoin(table, condition string) *Builder[T] {
	b.spec.Join(query.LeftJoin, table, condition)
	return b
}

// RightJoin adds an explicit RIGHT JOIN against table ON condition.
func (b *Builder[T]) RightJoin(table, condition string) *Builder[T] {
	b.spec.Join(query.RightJoin, table, condition)
	return b
}

// CrossJoin adds an explicit CROSS JOIN against table.
func (b *Builder[T]) CrossJoin(table, condition string) *Builder[T] {
	b.spec.Join(query.CrossJoin, table, condition)
	return b
}

// Sum projects SUM(column) AS alias into the SELECT list.
func (b *Builder[T]) Sum(column, alias string) *Builder[T] { return b.aggregate(query.AggSum, column, alias) }

// Avg projects AVG(column) AS alias into the SELECT list.
func (b *Builder[T]) Avg(column, alias string) *Builder[T] { return b.aggregate(query.AggAvg, column, alias) }

// Min projects MIN(column) AS alias into the SELECT list.
func (b *Builder[T]) Min(column, alias string) *Builder[T] { return b.aggregate(query.AggMin, column, alias) }

// Max projects MAX(column) AS alias into the SELECT list.
func (b *Builder[T]) Max(column, alias string) *Builder[T] { return b.aggregate(query.AggMax, column, alias) }

func (b *Builder[T]) aggregate(kind query.AggregateKind, column, alias string) *Builder[T] {
	b.spec.Aggregate(kind, column, alias)
	return b
}

// Limit caps the number of rows returned.
func (b *Builder[T]) Limit(n int) *Builder[T] {
	b.spec.SetLimit(n)
	return b
}

// Offset skips the first n rows.
func (b *Builder[T]) Offset(n int) *Builder[T] {
	b.spec.SetOffset(n)
	return b
}

// Take is an alias for Limit.
func (b *Builder[T]) Take(n int) *Builder[T] { return b.Limit(n) }

// Skip is an alias for Offset.
func (b *Builder[T]) Skip(n int) *Builder[T] { return b.Offset(n) }

// UseConnection routes every statement this Builder executes through exec
// (typically a relpool.TransactionScope's Driver()) instead of the bound
// Repository's pool — this rewrite binds one Repository/Builder to one
// pool rather than to a registry of named connection strings, so a scoped
// executor stands in for the source's connection-id parameter (§6).
func (b *Builder[T]) UseConnection(exec dialect.ExecQuerier) *Builder[T] {
	b.exec = exec
	return b
}

func (b *Builder[T]) boundRepo() *Repository[T] {
	if b.exec == nil {
		return b.repo
	}
	return b.repo.WithExecutor(b.exec)
}

// ToSQL renders the builder's accumulated state into SQL text and
// parameter bindings without executing it.
func (b *Builder[T]) ToSQL() (string, []any, error) {
	stmt, err := b.repo.planner.PlanSelect(b.repo.table, b.spec)
	if err != nil {
		return "", nil, err
	}
	return stmt.SQL, stmt.Args, nil
}

// Execute runs the accumulated SELECT and returns every matching row.
func (b *Builder[T]) Execute(ctx context.Context) OperationResult[[]T] {
	items, err := b.boundRepo().selectAll(ctx, b.spec)
	if err != nil {
		return fail[[]T](err)
	}
	return ok(items, int64(len(items)))
}

// ExecuteSingle runs the accumulated SELECT capped to one row and returns
// it, or NotFound if no row matched.
func (b *Builder[T]) ExecuteSingle(ctx context.Context) OperationResult[T] {
	b.spec.SetLimit(1)
	items, err := b.boundRepo().selectAll(ctx, b.spec)
	if err != nil {
		return fail[T](err)
	}
	if len(items) == 0 {
		return fail[T](relata.NewNotFoundError(b.repo.table.TableName))
	}
	return ok(items[0], 1)
}

// FirstOrDefault is an alias for ExecuteSingle, returning the zero value
// of T (rather than surfacing NotFound) when no row matched.
func (b *Builder[T]) FirstOrDefault(ctx context.Context) OperationResult[T] {
	res := b.ExecuteSingle(ctx)
	if !res.Success && relata.IsNotFound(res.CauseException) {
		var zero T
		return ok(zero, 0)
	}
	return res
}

// ExecutePaged runs the accumulated query with pagination applied on top
// of any filtering/join state already set, deriving the exact total count
// from the same WHERE/JOIN clauses.
func (b *Builder[T]) ExecutePaged(ctx context.Context, page, pageSize int) OperationResult[Page[T]] {
	if pageSize <= 0 {
		return fail[Page[T]](relata.NewCompileError("page", "pageSize must be > 0"))
	}
	result, err := b.boundRepo().page(ctx, b.spec, page, pageSize)
	if err != nil {
		return fail[Page[T]](err)
	}
	return ok(result, int64(len(result.Items)))
}

// Count runs the accumulated WHERE/JOIN state as SELECT COUNT(*).
func (b *Builder[T]) Count(ctx context.Context) OperationResult[int64] {
	n, err := b.boundRepo().count(ctx, b.spec)
	if err != nil {
		return fail[int64](err)
	}
	return ok(n, n)
}

// Delete runs DELETE FROM <table> with the accumulated WHERE. A Builder
// with no Where(...) call rejects the delete (§4.6, §8 boundary: a
// WHERE-less DELETE returns Fail before any SQL is sent).
func (b *Builder[T]) Delete(ctx context.Context) OperationResult[int64] {
	repo := b.boundRepo()
	stmt, err := repo.planner.PlanDelete(repo.table, b.spec.Where, false)
	if err != nil {
		return fail[int64](err)
	}
	rowsAffected, err := repo.execAffecting(ctx, stmt)
	if err != nil {
		return fail[int64](err)
	}
	repo.invalidateCache(ctx)
	return ok(rowsAffected, rowsAffected)
}

// Update runs UPDATE <table> SET ... with the accumulated WHERE, treating
// setValues as a column-name -> new-value mapping. A Builder with no
// Where(...) call rejects the update (§4.6, §8 boundary).
func (b *Builder[T]) Update(ctx context.Context, setValues map[string]any) OperationResult[int64] {
	repo := b.boundRepo()
	stmt, err := repo.planner.PlanUpdate(repo.table, setValues, b.spec.Where)
	if err != nil {
		return fail[int64](err)
	}
	rowsAffected, err := repo.execAffecting(ctx, stmt)
	if err != nil {
		return fail[int64](err)
	}
	repo.invalidateCache(ctx)
	return ok(rowsAffected, rowsAffected)
}
