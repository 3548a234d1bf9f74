// Package relata is the root of a multi-backend relational data-access
// library. It defines the error taxonomy, the Cache contract, and the
// Logger contract shared by the subpackages; the working
// subsystems live under dialect, catalog, predicate, query, rowmap,
// relpool, and repository.
package relata

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("relata: entity not found")

	// ErrTxStarted describes an attempt to begin a transaction inside one
	// that is already open. relpool does not detect nesting, so no function
	// in this module returns it.
	ErrTxStarted = errors.New("relata: cannot start a transaction within a transaction")

	// ErrCancelled is returned when the caller's context was cancelled
	// before or during an operation.
	ErrCancelled = errors.New("relata: operation cancelled")
)

// NotFoundError represents a get-by-id/column miss (§7 NotFound).
type NotFoundError struct {
	label string
	id    any
}

func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("relata: %s not found (id=%v)", e.label, e.id)
	}
	return fmt.Sprintf("relata: %s not found", e.label)
}

// Is allows errors.Is(err, ErrNotFound) to succeed.
func (e *NotFoundError) Is(err error) bool { return err == ErrNotFound }

func (e *NotFoundError) Label() string { return e.label }
func (e *NotFoundError) ID() any       { return e.id }

func NewNotFoundError(label string) *NotFoundError { return &NotFoundError{label: label} }

func NewNotFoundErrorWithID(label string, id any) *NotFoundError {
	return &NotFoundError{label: label, id: id}
}

func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// ConfigError represents an invalid pool/connection configuration: unknown
// connection id, min>max pool sizes, or a missing required field (§7).
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("relata: config: %s: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("relata: config: %s", e.Msg)
}

func NewConfigError(field, msg string) *ConfigError { return &ConfigError{Field: field, Msg: msg} }

func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigError
	return errors.As(err, &e)
}

// OpenFailure represents a failure to open or validate a driver connection (§7).
type OpenFailure struct {
	DSN string
	Err error
}

func (e *OpenFailure) Error() string { return fmt.Sprintf("relata: open connection: %v", e.Err) }
func (e *OpenFailure) Unwrap() error { return e.Err }

func NewOpenFailure(dsn string, err error) *OpenFailure { return &OpenFailure{DSN: dsn, Err: err} }

func IsOpenFailure(err error) bool {
	if err == nil {
		return false
	}
	var e *OpenFailure
	return errors.As(err, &e)
}

// StateError represents an operation invoked in an illegal lifecycle state:
// commit/rollback on a terminal TransactionScope, use-after-dispose, or a
// Repository built on a model with no primary key (§7).
type StateError struct {
	Op    string
	State string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("relata: illegal state for %s: %s", e.Op, e.State)
}

func NewStateError(op, state string) *StateError { return &StateError{Op: op, State: state} }

func IsStateError(err error) bool {
	if err == nil {
		return false
	}
	var e *StateError
	return errors.As(err, &e)
}

// CompileError represents an unsupported predicate/projection shape
// encountered by the PredicateCompiler (§4.5, §7).
type CompileError struct {
	Shape string
	Msg   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("relata: compile: %s: %s", e.Shape, e.Msg)
}

func NewCompileError(shape, msg string) *CompileError { return &CompileError{Shape: shape, Msg: msg} }

func IsCompileError(err error) bool {
	if err == nil {
		return false
	}
	var e *CompileError
	return errors.As(err, &e)
}

// ExecutionError wraps a driver-reported SQL error together with the
// statement and arguments that produced it (§7).
type ExecutionError struct {
	SQL  string
	Args []any
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("relata: exec failed: %v (sql=%q)", e.Err, e.SQL)
}
func (e *ExecutionError) Unwrap() error { return e.Err }

func NewExecutionError(sql string, args []any, err error) *ExecutionError {
	return &ExecutionError{SQL: sql, Args: args, Err: err}
}

func IsExecutionError(err error) bool {
	if err == nil {
		return false
	}
	var e *ExecutionError
	return errors.As(err, &e)
}

// SchemaError represents a SchemaAnalyzer normalization failure or a
// SchemaSynchronizer abort mid-plan (§7).
type SchemaError struct {
	Table string
	Step  string
	Err   error
}

func (e *SchemaError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("relata: schema %s: %s: %v", e.Table, e.Step, e.Err)
	}
	return fmt.Sprintf("relata: schema %s: %v", e.Table, e.Err)
}
func (e *SchemaError) Unwrap() error { return e.Err }

func NewSchemaError(table, step string, err error) *SchemaError {
	return &SchemaError{Table: table, Step: step, Err: err}
}

func IsSchemaError(err error) bool {
	if err == nil {
		return false
	}
	var e *SchemaError
	return errors.As(err, &e)
}

// MappingError represents a RowMapper conversion failure: a driver value
// could not be converted into the target property type (§7).
type MappingError struct {
	Column string
	Type   string
	Err    error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("relata: map column %q to %s: %v", e.Column, e.Type, e.Err)
}
func (e *MappingError) Unwrap() error { return e.Err }

func NewMappingError(column, typ string, err error) *MappingError {
	return &MappingError{Column: column, Type: typ, Err: err}
}

func IsMappingError(err error) bool {
	if err == nil {
		return false
	}
	var e *MappingError
	return errors.As(err, &e)
}

// CancelledError wraps the caller's cancellation cause (§7, §5).
type CancelledError struct {
	Op  string
	Err error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("relata: %s cancelled: %v", e.Op, e.Err)
}
func (e *CancelledError) Unwrap() error { return errors.Join(ErrCancelled, e.Err) }
func (e *CancelledError) Is(err error) bool {
	return err == ErrCancelled
}

func NewCancelledError(op string, err error) *CancelledError {
	return &CancelledError{Op: op, Err: err}
}

func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	var e *CancelledError
	return errors.As(err, &e) || errors.Is(err, ErrCancelled)
}

// AggregateError collects multiple independent failures into one error.
// SchemaSynchronizer.SyncTables does not use it: it combines its per-table
// failures with errors.Join.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "relata: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("relata: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// NewAggregateError returns an *AggregateError for the non-nil errs, nil if
// there are none, or the single error unwrapped if there is exactly one.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	switch len(filtered) {
	case 0:
		return nil
	case 1:
		return filtered[0]
	default:
		return &AggregateError{Errors: filtered}
	}
}
