// Package sql implements dialect.Driver over database/sql, plus the
// per-backend Dialect adapters (mysql.go, postgres.go, sqlite.go) that
// encapsulate every backend-specific string so the rest of the core stays
// textually portable (§4.1).
package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/relata-go/relata"
	"github.com/relata-go/relata/dialect"
)

// Driver is a dialect.Driver implementation backed by database/sql.
type Driver struct {
	Conn
	dialect string
}

// NewDriver builds a Driver around an already-wrapped Conn.
func NewDriver(name string, c Conn) *Driver {
	return &Driver{dialect: name, Conn: c}
}

// Open dials a new *sql.DB via database/sql.Open and wraps it.
func Open(name, source string) (*Driver, error) {
	db, err := sql.Open(name, source)
	if err != nil {
		return nil, relata.NewOpenFailure(source, err)
	}
	return NewDriver(name, Conn{db, name}), nil
}

// OpenDB wraps an already-open *sql.DB with a Driver.
func OpenDB(name string, db *sql.DB) *Driver {
	return NewDriver(name, Conn{db, name})
}

// DB returns the underlying *sql.DB instance.
func (d Driver) DB() *sql.DB { return d.ExecQuerier.(*sql.DB) }

// Dialect implements dialect.Driver. Some backend driver names carry a
// version or telemetry suffix (e.g. a wrapping OTel driver registers as
// "mysql-instrumented"); matching by prefix against the three names we
// support keeps Dialect() stable regardless of how the *sql.DB was opened.
func (d Driver) Dialect() string {
	for _, name := range []string{dialect.MySQL, dialect.Postgres, dialect.SQLite} {
		if strings.HasPrefix(d.dialect, name) {
			return name
		}
	}
	return d.dialect
}

// Tx implements dialect.Driver.Tx.
func (d *Driver) Tx(ctx context.Context) (dialect.Tx, error) {
	return d.BeginTx(ctx, nil)
}

// BeginTx starts a transaction with options.
func (d *Driver) BeginTx(ctx context.Context, opts *TxOptions) (*Tx, error) {
	tx, err := d.DB().BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{Conn: Conn{tx, d.dialect}, tx: tx}, nil
}

// Close closes the underlying connection.
func (d *Driver) Close() error { return d.DB().Close() }

var _ dialect.Driver = (*Driver)(nil)

// Tx implements dialect.Tx over a single *sql.Tx.
type Tx struct {
	Conn
	tx *sql.Tx
}

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

var _ dialect.Tx = (*Tx)(nil)

// sessionVarsKey scopes a context.Value lookup to the session-variable
// stack attached by WithVar/WithIntVar.
type sessionVarsKey struct{}

// sessionVar is one pending "SET name = value" a borrowed connection must
// apply before running a statement, and must undo before the connection
// goes back to the pool.
type sessionVar struct {
	name  string
	value string
}

// sessionVarStack is the ordered, possibly-repeated list of session
// variables a context carries. The FK reconstruction dance (§4.9) stacks
// these to scope e.g. FOREIGN_KEY_CHECKS=0 (MySQL) or
// session_replication_role=replica (Postgres) to one ALTER sequence
// without leaking the setting to the next borrower of a pooled connection.
type sessionVarStack struct {
	entries []sessionVar
}

func sessionVarsOf(ctx context.Context) sessionVarStack {
	stack, _ := ctx.Value(sessionVarsKey{}).(sessionVarStack)
	return stack
}

// WithVar returns a context carrying an additional session variable to
// apply before every statement run against it. Setting the same name
// twice on the same context chain re-applies both SETs in order but only
// queues one reset, issued by the last borrower to release the
// connection.
func WithVar(ctx context.Context, name, value string) context.Context {
	stack := sessionVarsOf(ctx)
	stack.entries = append(stack.entries, sessionVar{name: name, value: value})
	return context.WithValue(ctx, sessionVarsKey{}, stack)
}

// WithIntVar is WithVar for an integer-valued session variable.
func WithIntVar(ctx context.Context, name string, value int) context.Context {
	return WithVar(ctx, name, strconv.Itoa(value))
}

// VarFromContext reports the most recently set value for name, if any
// session variable by that name was attached via WithVar.
func VarFromContext(ctx context.Context, name string) (string, bool) {
	stack := sessionVarsOf(ctx)
	for i := len(stack.entries) - 1; i >= 0; i-- {
		if stack.entries[i].name == name {
			return stack.entries[i].value, true
		}
	}
	return "", false
}

// ExecQuerier is the subset of database/sql's *sql.DB/*sql.Tx/*sql.Conn
// methods a Conn needs to run a statement.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn adapts an ExecQuerier to dialect.ExecQuerier, additionally applying
// and then reverting any session variables a caller attached to the
// statement's context.
type Conn struct {
	ExecQuerier
	dialect string
}

// Exec implements dialect.ExecQuerier.Exec.
func (c Conn) Exec(ctx context.Context, query string, args, v any) (rerr error) {
	argv, ok := args.([]any)
	if !ok {
		return fmt.Errorf("dialect/sql: exec: args must be []any, got %T", args)
	}
	ex, release, err := c.borrowWithVars(ctx)
	if err != nil {
		return fmt.Errorf("dialect/sql: exec: %w", err)
	}
	if release != nil {
		defer func() { rerr = errors.Join(rerr, release()) }()
	}
	switch dest := v.(type) {
	case nil:
		if _, err := ex.ExecContext(ctx, query, argv...); err != nil {
			return relata.NewExecutionError(query, argv, err)
		}
	case *sql.Result:
		res, err := ex.ExecContext(ctx, query, argv...)
		if err != nil {
			return relata.NewExecutionError(query, argv, err)
		}
		*dest = res
	default:
		return fmt.Errorf("dialect/sql: exec: result destination must be *sql.Result, got %T", v)
	}
	return nil
}

// Query implements dialect.ExecQuerier.Query.
func (c Conn) Query(ctx context.Context, query string, args, v any) error {
	dest, ok := v.(*Rows)
	if !ok {
		return fmt.Errorf("dialect/sql: query: result destination must be *Rows, got %T", v)
	}
	argv, ok := args.([]any)
	if !ok {
		return fmt.Errorf("dialect/sql: query: args must be []any, got %T", args)
	}
	ex, release, err := c.borrowWithVars(ctx)
	if err != nil {
		return fmt.Errorf("dialect/sql: query: %w", err)
	}
	rows, err := ex.QueryContext(ctx, query, argv...)
	if err != nil {
		if release != nil {
			if releaseErr := release(); releaseErr != nil {
				slog.Default().Warn("dialect/sql: releasing borrowed connection after failed query", "error", releaseErr)
			}
		}
		return relata.NewExecutionError(query, argv, err)
	}
	*dest = Rows{rows}
	if release != nil {
		dest.ColumnScanner = rowsWithRelease{rows, release}
	}
	return nil
}

// borrowWithVars resolves the ExecQuerier a statement should run against,
// applying any session variables attached to ctx first. When that means
// pinning a *sql.Conn out of the pool (because the underlying connection
// is a *sql.DB rather than an already-dedicated *sql.Tx), the returned
// release func restores the variables to their prior value and returns
// the connection. Callers with no session variables on ctx get back c
// itself and a nil release.
func (c Conn) borrowWithVars(ctx context.Context) (ExecQuerier, func() error, error) {
	stack := sessionVarsOf(ctx)
	if len(stack.entries) == 0 {
		return c, nil, nil
	}

	ex, release, err := c.pinConnection(ctx)
	if err != nil {
		return nil, nil, err
	}

	resetByName := map[string]struct{}{}
	var resets []string
	for _, v := range stack.entries {
		if !isValidSessionVarName(v.name) {
			if release != nil {
				_ = release()
			}
			return nil, nil, relata.NewConfigError("sessionVar", fmt.Sprintf("invalid session variable name %q", v.name))
		}
		if _, ok := resetByName[v.name]; !ok {
			resetByName[v.name] = struct{}{}
			resets = append(resets, c.resetStatementFor(v.name))
		}
		stmt := fmt.Sprintf("SET %s = '%s'", v.name, quoteSessionVarLiteral(v.value))
		if _, err := ex.ExecContext(ctx, stmt); err != nil {
			if release != nil {
				err = errors.Join(err, release())
			}
			return nil, nil, err
		}
	}

	if release != nil && len(resets) > 0 {
		release = withSessionVarCleanup(ex, resets, release)
	}
	return ex, release, nil
}

// pinConnection returns an ExecQuerier dedicated to one logical session.
// A *sql.Tx already is one. A *sql.DB is not, so one of its pooled
// *sql.Conn is checked out; the returned release func must be called to
// hand it back.
func (c Conn) pinConnection(ctx context.Context) (ExecQuerier, func() error, error) {
	switch e := c.ExecQuerier.(type) {
	case *sql.Tx:
		return e, nil, nil
	case *sql.DB:
		conn, err := e.Conn(ctx)
		if err != nil {
			return nil, nil, err
		}
		return conn, conn.Close, nil
	default:
		return nil, nil, fmt.Errorf("dialect/sql: unsupported ExecQuerier type %T", c.ExecQuerier)
	}
}

// resetStatementFor renders the per-dialect statement that restores name
// to its session default: Postgres uses RESET, MySQL has no RESET
// statement so it reassigns NULL.
func (c Conn) resetStatementFor(name string) string {
	switch c.dialect {
	case dialect.Postgres:
		return "RESET " + name
	case dialect.MySQL:
		return "SET " + name + " = NULL"
	default:
		return ""
	}
}

// withSessionVarCleanup wraps release so the session variables are reset
// before the underlying connection goes back to the pool. Cleanup runs
// against a fresh background context with its own timeout so it still
// completes if the caller's own context was already cancelled.
func withSessionVarCleanup(ex ExecQuerier, resets []string, release func() error) func() error {
	return func() error {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var errs []error
		for _, stmt := range resets {
			if stmt == "" {
				continue
			}
			if _, err := ex.ExecContext(cleanupCtx, stmt); err != nil {
				errs = append(errs, err)
			}
		}
		errs = append(errs, release())
		return errors.Join(errs...)
	}
}

// isValidSessionVarName reports whether s is safe to interpolate as a SET
// statement's variable name: it must start with a letter or underscore
// and contain only letters, digits, underscores, or dots (for
// schema-qualified names), and stay short enough to rule out anything
// that isn't actually an identifier.
func isValidSessionVarName(s string) bool {
	if s == "" || len(s) > 128 {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9', r == '.':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// quoteSessionVarLiteral escapes s for safe interpolation inside a single
// quoted SQL string literal: backslashes are escaped first so a trailing
// backslash can't swallow the closing quote, then quotes are doubled.
func quoteSessionVarLiteral(s string) string {
	if !strings.ContainsAny(s, `'\`) {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", "''")
}

type (
	// Rows wraps sql.Rows behind ColumnScanner to avoid copying its lock.
	Rows struct{ ColumnScanner }
	// Result is an alias for sql.Result.
	Result = sql.Result
	// NullString is an alias for sql.NullString.
	NullString = sql.NullString
	// NullInt64 is an alias for sql.NullInt64.
	NullInt64 = sql.NullInt64
	// NullFloat64 is an alias for sql.NullFloat64.
	NullFloat64 = sql.NullFloat64
	// NullBool is an alias for sql.NullBool.
	NullBool = sql.NullBool
	// NullTime is an alias for sql.NullTime.
	NullTime = sql.NullTime
	// TxOptions is an alias for sql.TxOptions.
	TxOptions = sql.TxOptions
)

// ColumnScanner is the subset of *sql.Rows used by rowmap to scan a
// result set.
type ColumnScanner interface {
	Close() error
	ColumnTypes() ([]*sql.ColumnType, error)
	Columns() ([]string, error)
	Err() error
	Next() bool
	NextResultSet() bool
	Scan(dest ...any) error
}

// rowsWithRelease wraps a ColumnScanner so closing the result set also
// runs the session-variable cleanup and returns the borrowed *sql.Conn.
type rowsWithRelease struct {
	ColumnScanner
	release func() error
}

func (r rowsWithRelease) Close() error {
	return errors.Join(r.ColumnScanner.Close(), r.release())
}

// ensure driver.Valuer-compatible types stay importable from this package
// for callers building []any args by hand.
var _ driver.Valuer = (*sql.NullString)(nil)
