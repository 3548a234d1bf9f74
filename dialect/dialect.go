// Package dialect declares the backend-agnostic contracts implemented by
// package dialect/sql, following syssam-velox/dialect's naming exactly
// (MySQL/Postgres/SQLite constants, Driver/Tx/ExecQuerier interfaces) so
// the rest of the core stays textually portable across backends (§4.1).
package dialect

import "context"

// Backend name constants, used both as the database/sql driver name and as
// the dispatch key for dialect.Dialect implementations.
const (
	MySQL    = "mysql"
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// ExecQuerier wraps the two database/sql operations every statement needs.
type ExecQuerier interface {
	Exec(ctx context.Context, query string, args, v any) error
	Query(ctx context.Context, query string, args, v any) error
}

// Tx wraps a started transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

// Driver is the contract a connection pool acquires and a repository
// executes statements against. dialect/sql.Driver implements it over
// database/sql.
type Driver interface {
	ExecQuerier
	Tx(ctx context.Context) (Tx, error)
	Close() error
	Dialect() string
}
