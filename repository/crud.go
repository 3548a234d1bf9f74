package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	relata "github.com/relata-go/relata"
	"github.com/relata-go/relata/dialect"
	dsql "github.com/relata-go/relata/dialect/sql"
	"github.com/relata-go/relata/predicate"
	"github.com/relata-go/relata/query"
	"github.com/relata-go/relata/rowmap"
)

// Insert renders and executes an INSERT for entity, populating its
// auto-increment primary key either from the driver's LastInsertId()
// (MySQL, SQLite) or from a RETURNING clause (PostgreSQL), per
// Dialect.LastInsertIDStrategy().
func (r *Repository[T]) Insert(ctx context.Context, entity T) OperationResult[T] {
	row := entityToColumns(r.table, entity)

	if r.planner.Dialect.LastInsertIDStrategy() == "returning" && len(r.table.PrimaryKey) > 0 {
		return r.insertReturning(ctx, entity, row)
	}

	stmt, err := r.planner.PlanInsert(r.table, []map[string]any{row})
	if err != nil {
		return fail[T](err)
	}

	var res dsql.Result
	if err := r.withExec(ctx, func(ex dialect.ExecQuerier) error {
		return ex.Exec(ctx, stmt.SQL, stmt.Args, &res)
	}); err != nil {
		return fail[T](err)
	}

	switch r.planner.Dialect.LastInsertIDStrategy() {
	case "last_insert_id", "last_insert_rowid":
		if id, err := res.LastInsertId(); err == nil && id != 0 {
			setPrimaryKey(r.table, &entity, id)
		}
	}

	rowsAffected, _ := res.RowsAffected()
	r.invalidateCache(ctx)
	return ok(entity, rowsAffected)
}

// insertReturning handles PostgreSQL's INSERT...RETURNING strategy: the
// auto-increment PK never comes back through LastInsertId(), so the
// statement asks the driver to hand it back as the sole returned column.
func (r *Repository[T]) insertReturning(ctx context.Context, entity T, row map[string]any) OperationResult[T] {
	pkCol := r.table.PrimaryKey[0]
	stmt, err := r.planner.PlanInsertReturning(r.table, row, pkCol)
	if err != nil {
		return fail[T](err)
	}

	var rowsAffected int64
	err = r.withExec(ctx, func(ex dialect.ExecQuerier) error {
		rows := &dsql.Rows{}
		if err := ex.Query(ctx, stmt.SQL, stmt.Args, rows); err != nil {
			return err
		}
		defer rows.Close()
		if rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			setPrimaryKey(r.table, &entity, id)
			rowsAffected = 1
		}
		return rows.Err()
	})
	if err != nil {
		return fail[T](err)
	}

	r.invalidateCache(ctx)
	return ok(entity, rowsAffected)
}

// InsertMany renders one batch INSERT across entities.
func (r *Repository[T]) InsertMany(ctx context.Context, entities []T) OperationResult[[]T] {
	if len(entities) == 0 {
		return ok[[]T](nil, 0)
	}

	rows := make([]map[string]any, len(entities))
	for i, e := range entities {
		rows[i] = entityToColumns(r.table, e)
	}
	stmt, err := r.planner.PlanInsert(r.table, rows)
	if err != nil {
		return fail[[]T](err)
	}

	var res dsql.Result
	if err := r.withExec(ctx, func(ex dialect.ExecQuerier) error {
		return ex.Exec(ctx, stmt.SQL, stmt.Args, &res)
	}); err != nil {
		return fail[[]T](err)
	}

	rowsAffected, _ := res.RowsAffected()
	r.invalidateCache(ctx)
	return ok(entities, rowsAffected)
}

// GetByID fetches the entity whose primary key equals id, consulting the
// cache first when cacheTTL>0.
func (r *Repository[T]) GetByID(ctx context.Context, id any, cacheTTL time.Duration) OperationResult[T] {
	return r.getOne(ctx, r.table.PrimaryKey[0], id, cacheTTL)
}

// GetByColumn fetches the first entity whose column equals value.
func (r *Repository[T]) GetByColumn(ctx context.Context, column string, value any, cacheTTL time.Duration) OperationResult[T] {
	return r.getOne(ctx, column, value, cacheTTL)
}

func (r *Repository[T]) getOne(ctx context.Context, column string, value any, cacheTTL time.Duration) OperationResult[T] {
	key := relata.CacheKey{Table: r.table.TableName, Column: column, Value: fmt.Sprint(value)}.String()
	if r.cache != nil && cacheTTL > 0 {
		if data, found := r.cacheGet(ctx, key); found {
			var entity T
			if json.Unmarshal(data, &entity) == nil {
				return ok(entity, 1)
			}
		}
	}

	where := predicate.Condition{WhereCondition: predicate.WhereCondition{Column: column, Operator: predicate.EQ, Value: value}}
	spec := query.New().WhereNode(where).SetLimit(1)
	stmt, err := r.planner.PlanSelect(r.table, spec)
	if err != nil {
		return fail[T](err)
	}

	var entity T
	found := false
	err = r.withExec(ctx, func(ex dialect.ExecQuerier) error {
		rows := &dsql.Rows{}
		if err := ex.Query(ctx, stmt.SQL, stmt.Args, rows); err != nil {
			return err
		}
		defer rows.Close()
		if !rows.Next() {
			return nil
		}
		found = true
		return rowmap.ScanRow(rows, r.table, &entity)
	})
	if err != nil {
		return fail[T](err)
	}
	if !found {
		return fail[T](relata.NewNotFoundErrorWithID(r.table.TableName, value))
	}

	if r.cache != nil && cacheTTL > 0 {
		r.cacheSet(ctx, key, entity, cacheTTL)
	}
	return ok(entity, 1)
}

// List fetches every entity in the table.
func (r *Repository[T]) List(ctx context.Context, cacheTTL time.Duration) OperationResult[[]T] {
	key := relata.CacheKey{Table: r.table.TableName, Variant: "all"}.String()
	if r.cache != nil && cacheTTL > 0 {
		if data, found := r.cacheGet(ctx, key); found {
			var items []T
			if json.Unmarshal(data, &items) == nil {
				return ok(items, int64(len(items)))
			}
		}
	}

	items, err := r.selectAll(ctx, query.New())
	if err != nil {
		return fail[[]T](err)
	}

	if r.cache != nil && cacheTTL > 0 {
		r.cacheSet(ctx, key, items, cacheTTL)
	}
	return ok(items, int64(len(items)))
}

// Page fetches one page of entities plus the table's exact total count.
func (r *Repository[T]) Page(ctx context.Context, page, pageSize int, cacheTTL time.Duration) OperationResult[Page[T]] {
	key := relata.CacheKey{Table: r.table.TableName, Variant: "paged", Page: page, Size: pageSize}.String()
	if r.cache != nil && cacheTTL > 0 {
		if data, found := r.cacheGet(ctx, key); found {
			var p Page[T]
			if json.Unmarshal(data, &p) == nil {
				return ok(p, int64(len(p.Items)))
			}
		}
	}

	result, err := r.page(ctx, query.New(), page, pageSize)
	if err != nil {
		return fail[Page[T]](err)
	}

	if r.cache != nil && cacheTTL > 0 {
		r.cacheSet(ctx, key, result, cacheTTL)
	}
	return ok(result, int64(len(result.Items)))
}

// Count returns the exact row count for the table.
func (r *Repository[T]) Count(ctx context.Context) OperationResult[int64] {
	n, err := r.count(ctx, query.New())
	if err != nil {
		return fail[int64](err)
	}
	return ok(n, n)
}

// Update applies entity's non-PK, non-auto-increment, non-null (or
// on-update-timestamp) columns to the row matching its primary key.
func (r *Repository[T]) Update(ctx context.Context, entity T) OperationResult[T] {
	pkCol, pkVal := primaryKeyValue(r.table, entity)
	row := entityToColumns(r.table, entity)

	set := make(map[string]any)
	for _, c := range r.table.Columns {
		if c.Primary || c.AutoIncrement {
			continue
		}
		v := row[c.Name]
		if isNilValue(v) && !c.OnUpdateCurrentTime {
			continue
		}
		set[c.Name] = v
	}
	if len(set) == 0 {
		return ok(entity, 0)
	}

	where := predicate.Condition{WhereCondition: predicate.WhereCondition{Column: pkCol, Operator: predicate.EQ, Value: pkVal}}
	stmt, err := r.planner.PlanUpdate(r.table, set, where)
	if err != nil {
		return fail[T](err)
	}

	var res dsql.Result
	if err := r.withExec(ctx, func(ex dialect.ExecQuerier) error {
		return ex.Exec(ctx, stmt.SQL, stmt.Args, &res)
	}); err != nil {
		return fail[T](err)
	}

	rowsAffected, _ := res.RowsAffected()
	r.invalidateCache(ctx)
	return ok(entity, rowsAffected)
}

// Delete removes the row whose primary key equals id.
func (r *Repository[T]) Delete(ctx context.Context, id any) OperationResult[T] {
	pkCol := r.table.PrimaryKey[0]
	where := predicate.Condition{WhereCondition: predicate.WhereCondition{Column: pkCol, Operator: predicate.EQ, Value: id}}
	stmt, err := r.planner.PlanDelete(r.table, where, false)
	if err != nil {
		return fail[T](err)
	}

	var res dsql.Result
	if err := r.withExec(ctx, func(ex dialect.ExecQuerier) error {
		return ex.Exec(ctx, stmt.SQL, stmt.Args, &res)
	}); err != nil {
		return fail[T](err)
	}

	rowsAffected, _ := res.RowsAffected()
	r.invalidateCache(ctx)
	var zero T
	return ok(zero, rowsAffected)
}

// Increment adds amount to column on the row whose primary key equals id.
func (r *Repository[T]) Increment(ctx context.Context, id any, column string, amount float64) OperationResult[T] {
	return r.adjustColumn(ctx, id, column, amount, false)
}

// Decrement subtracts amount from column on the row whose primary key
// equals id. When preventNegative is true the new value is floored at
// zero via GREATEST/MAX (§4.8).
func (r *Repository[T]) Decrement(ctx context.Context, id any, column string, amount float64, preventNegative bool) OperationResult[T] {
	return r.adjustColumn(ctx, id, column, -amount, preventNegative)
}

func (r *Repository[T]) adjustColumn(ctx context.Context, id any, column string, delta float64, preventNegative bool) OperationResult[T] {
	d := r.planner.Dialect
	qCol := d.QuoteIdent(column)
	qTable := d.QualifyTable(r.table.SchemaName, r.table.TableName)
	qPK := d.QuoteIdent(r.table.PrimaryKey[0])

	args := []any{delta}
	expr := fmt.Sprintf("%s + %s", qCol, d.Placeholder(0))
	if preventNegative && delta < 0 {
		expr = greatestFn(d.Name(), expr, d.Placeholder(1))
		args = append(args, 0)
	}
	args = append(args, id)

	sqlText := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s",
		qTable, qCol, expr, qPK, d.Placeholder(len(args)-1))

	var res dsql.Result
	if err := r.withExec(ctx, func(ex dialect.ExecQuerier) error {
		return ex.Exec(ctx, sqlText, args, &res)
	}); err != nil {
		return fail[T](err)
	}

	rowsAffected, _ := res.RowsAffected()
	r.invalidateCache(ctx)
	var zero T
	return ok(zero, rowsAffected)
}

// Find fetches one page of rows matching an ad-hoc AND-joined sequence of
// WhereConditions.
func (r *Repository[T]) Find(ctx context.Context, conditions []predicate.WhereCondition, page, pageSize int) OperationResult[Page[T]] {
	spec := query.New()
	if len(conditions) > 0 {
		children := make([]predicate.Node, len(conditions))
		for i, c := range conditions {
			children[i] = predicate.Condition{WhereCondition: c}
		}
		spec.WhereNode(predicate.Group{Connector: predicate.ConnAnd, Children: children})
	}

	result, err := r.page(ctx, spec, page, pageSize)
	if err != nil {
		return fail[Page[T]](err)
	}
	return ok(result, int64(len(result.Items)))
}

func (r *Repository[T]) count(ctx context.Context, spec *query.QuerySpec) (int64, error) {
	stmt, err := r.planner.PlanCount(r.table, spec)
	if err != nil {
		return 0, err
	}
	var n int64
	err = r.withExec(ctx, func(ex dialect.ExecQuerier) error {
		rows := &dsql.Rows{}
		if err := ex.Query(ctx, stmt.SQL, stmt.Args, rows); err != nil {
			return err
		}
		defer rows.Close()
		if !rows.Next() {
			return nil
		}
		return rows.Scan(&n)
	})
	return n, err
}

func (r *Repository[T]) selectAll(ctx context.Context, spec *query.QuerySpec) ([]T, error) {
	stmt, err := r.planner.PlanSelect(r.table, spec)
	if err != nil {
		return nil, err
	}

	var items []T
	err = r.withExec(ctx, func(ex dialect.ExecQuerier) error {
		rows := &dsql.Rows{}
		if err := ex.Query(ctx, stmt.SQL, stmt.Args, rows); err != nil {
			return err
		}
		defer rows.Close()
		out, err := rowmap.ScanAll(rows, r.table, func() any { return new(T) })
		if err != nil {
			return err
		}
		items = make([]T, len(out))
		for i, o := range out {
			items[i] = *(o.(*T))
		}
		return nil
	})
	return items, err
}

func (r *Repository[T]) page(ctx context.Context, spec *query.QuerySpec, page, pageSize int) (Page[T], error) {
	if pageSize <= 0 {
		return Page[T]{}, relata.NewCompileError("page", "pageSize must be > 0")
	}

	total, err := r.count(ctx, spec)
	if err != nil {
		return Page[T]{}, err
	}

	offset := (page - 1) * pageSize
	spec.SetLimit(pageSize).SetOffset(offset)
	items, err := r.selectAll(ctx, spec)
	if err != nil {
		return Page[T]{}, err
	}

	return Page[T]{Items: items, PageNumber: page, PageSize: pageSize, TotalItems: total}, nil
}
