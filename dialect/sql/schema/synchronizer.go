package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"

	relata "github.com/relata-go/relata"
	"github.com/relata-go/relata/dialect"
	dsql "github.com/relata-go/relata/dialect/sql"
)

// MigrationRecord is the shape handed to the migration-history
// collaborator after every CreateTable/apply attempt (§6).
type MigrationRecord struct {
	TableName     string
	MigrationType string // "CREATE", "ALTER", "DROP", "SYNC"
	AppliedAt     string // caller-supplied UTC timestamp, RFC3339.
	Description   string
	Success       bool
	ErrorMessage  string
}

// MigrationTracker persists MigrationRecords; the synchronizer does not
// prescribe a storage format.
type MigrationTracker interface {
	Record(ctx context.Context, rec MigrationRecord) error
}

// SchemaBackup snapshots a table's live DDL before a destructive step.
// ariga.io/atlas-backed implementations live in snapshot.go.
type SchemaBackup interface {
	Snapshot(ctx context.Context, schemaName, table string) error
}

// Synchronizer executes an AlterationPlan against a live database,
// including the foreign-key reconstruction dance (§4.9 scenario 6).
// Grounded in Pieczasz-smf/internal/apply/apply.go's transactional
// statement-execution loop, generalized from a flat SQL-statement list
// to a typed AlterationPlan rendered per-dialect.
type Synchronizer struct {
	Dialect          dsql.Dialect
	Conn             dialect.ExecQuerier
	Analyzer         *Analyzer
	Tracker          MigrationTracker
	Backup           SchemaBackup
	AllowDestructive bool
}

// NewSynchronizer builds a Synchronizer bound to one dialect/connection.
func NewSynchronizer(d dsql.Dialect, conn dialect.ExecQuerier) *Synchronizer {
	return &Synchronizer{
		Dialect:  d,
		Conn:     conn,
		Analyzer: NewAnalyzer(d, conn),
	}
}

// SyncTable reconciles one declared TableSpec against the live schema,
// optionally snapshotting the live table before any destructive step.
func (s *Synchronizer) SyncTable(ctx context.Context, spec *TableSpec, createBackup bool) (*AlterationPlan, error) {
	if err := ValidateTableSpec(spec); err != nil {
		return nil, err
	}

	schemaName := spec.SchemaName
	exists, err := s.Analyzer.TableExists(ctx, schemaName, spec.TableName)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql/schema: sync %s: %w", spec.TableName, err)
	}

	var (
		cols   []dsql.IntrospectedColumn
		idxs   []dsql.IntrospectedIndex
		fks    []dsql.IntrospectedForeignKey
		engine string
	)
	if exists {
		if cols, err = s.Analyzer.ReadColumns(ctx, schemaName, spec.TableName); err != nil {
			return nil, err
		}
		if idxs, err = s.Analyzer.ReadIndexes(ctx, schemaName, spec.TableName); err != nil {
			return nil, err
		}
		if fks, err = s.Analyzer.ReadForeignKeys(ctx, schemaName, spec.TableName); err != nil {
			return nil, err
		}
		if engine, err = s.Analyzer.ReadEngine(ctx, schemaName, spec.TableName); err != nil {
			return nil, err
		}
	}

	plan := s.Analyzer.Diff(spec, exists, cols, idxs, fks, engine, DiffOptions{AllowDestructive: s.AllowDestructive})

	if plan.IsEmpty() {
		s.record(ctx, spec.TableName, "SYNC", "no-op: already converged", true, "")
		return plan, nil
	}

	if !exists {
		if err := s.createTable(ctx, spec); err != nil {
			s.record(ctx, spec.TableName, "CREATE", "create table failed", false, err.Error())
			return plan, fmt.Errorf("dialect/sql/schema: create %s: %w", spec.TableName, err)
		}
		s.record(ctx, spec.TableName, "CREATE", "table created", true, "")
		return plan, nil
	}

	if createBackup && s.Backup != nil {
		if err := s.Backup.Snapshot(ctx, schemaName, spec.TableName); err != nil {
			return plan, fmt.Errorf("dialect/sql/schema: snapshot %s: %w", spec.TableName, err)
		}
	}

	if err := s.apply(ctx, spec, plan); err != nil {
		s.record(ctx, spec.TableName, "ALTER", "alteration failed", false, err.Error())
		return plan, err
	}
	s.record(ctx, spec.TableName, "ALTER", "alteration applied", true, "")
	return plan, nil
}

// SyncTables runs SyncTable across every spec, continuing past per-table
// failures unless the failure is a configuration error (§7 propagation
// policy): a batch-level aggregate of non-nil errors is returned.
func (s *Synchronizer) SyncTables(ctx context.Context, specs []*TableSpec, createBackup bool) ([]*AlterationPlan, error) {
	plans := make([]*AlterationPlan, 0, len(specs))
	var failures []error
	for _, spec := range specs {
		plan, err := s.SyncTable(ctx, spec, createBackup)
		plans = append(plans, plan)
		if err != nil {
			if relata.IsConfigError(err) {
				return plans, err
			}
			failures = append(failures, err)
		}
	}
	if len(failures) == 0 {
		return plans, nil
	}
	return plans, errors.Join(failures...)
}

func (s *Synchronizer) record(ctx context.Context, table, kind, desc string, ok bool, errMsg string) {
	if s.Tracker == nil {
		return
	}
	_ = s.Tracker.Record(ctx, MigrationRecord{
		TableName: table, MigrationType: kind, Description: desc,
		Success: ok, ErrorMessage: errMsg,
	})
}

func (s *Synchronizer) createTable(ctx context.Context, spec *TableSpec) error {
	stmt := s.renderCreateTable(spec)
	if err := s.exec(ctx, stmt); err != nil {
		return err
	}
	for _, idx := range spec.Indexes {
		if err := s.exec(ctx, s.renderAddIndex(spec.TableName, idx)); err != nil {
			return err
		}
	}
	for _, fk := range spec.ForeignKeys {
		if err := s.exec(ctx, s.renderAddForeignKey(spec.TableName, fk)); err != nil {
			return err
		}
	}
	return nil
}

// apply executes the plan's steps in order. ModifyColumn steps that fail
// with a foreign-key error trigger the reconstruction dance.
func (s *Synchronizer) apply(ctx context.Context, spec *TableSpec, plan *AlterationPlan) error {
	for _, step := range plan.Steps {
		if err := s.applyStep(ctx, spec, step); err != nil {
			if step.Kind == StepModifyColumn && s.Dialect.IsForeignKeyError(err) {
				if danceErr := s.reconstructionDance(ctx, spec, step); danceErr != nil {
					return fmt.Errorf("dialect/sql/schema: fk reconstruction dance on %s.%s: %w", spec.TableName, step.Column.Name, danceErr)
				}
				continue
			}
			return fmt.Errorf("dialect/sql/schema: apply %s on %s: %w", step.Kind, spec.TableName, err)
		}
	}
	return nil
}

func (s *Synchronizer) applyStep(ctx context.Context, spec *TableSpec, step AlterationStep) error {
	switch step.Kind {
	case StepAddColumn:
		return s.exec(ctx, s.renderAddColumn(spec.TableName, step.Column))
	case StepModifyColumn:
		return s.exec(ctx, s.renderModifyColumn(spec.TableName, step.Column))
	case StepDropColumn:
		return s.exec(ctx, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
			s.Dialect.QualifyTable(spec.SchemaName, spec.TableName), s.Dialect.QuoteIdent(step.ColumnName)))
	case StepEnsurePrimaryKey:
		return s.ensurePrimaryKey(ctx, spec)
	case StepChangeTableEngine:
		return s.exec(ctx, fmt.Sprintf("ALTER TABLE %s ENGINE = %s",
			s.Dialect.QualifyTable(spec.SchemaName, spec.TableName), step.Engine))
	case StepAddIndex:
		return s.exec(ctx, s.renderAddIndex(spec.TableName, step.Index))
	case StepDropIndex:
		return s.exec(ctx, s.renderDropIndex(spec.SchemaName, spec.TableName, step.IndexName))
	case StepAddForeignKey:
		return s.exec(ctx, s.renderAddForeignKey(spec.TableName, step.ForeignKey))
	case StepDropForeignKey:
		return s.exec(ctx, s.renderDropForeignKey(spec.SchemaName, spec.TableName, step.FKName))
	default:
		return fmt.Errorf("dialect/sql/schema: unknown step kind %q", step.Kind)
	}
}

// reconstructionDance implements the FK reconstruction dance (§4.9
// scenario 6): read every FK referencing or owned by the table, drop
// them, retry the original ALTER, then recreate each dropped FK with its
// original cascade actions. Scoped with a session variable so only this
// sequence runs with FK checks relaxed.
func (s *Synchronizer) reconstructionDance(ctx context.Context, spec *TableSpec, failed AlterationStep) error {
	related, err := s.Analyzer.ReadForeignKeys(ctx, spec.SchemaName, spec.TableName)
	if err != nil {
		return fmt.Errorf("read related foreign keys: %w", err)
	}

	danceCtx := s.withFKChecksRelaxed(ctx)

	for _, fk := range related {
		if err := s.exec(danceCtx, s.renderDropForeignKey(spec.SchemaName, fk.OwningTable, fk.ConstraintName)); err != nil {
			return fmt.Errorf("drop %s before retry: %w", fk.ConstraintName, err)
		}
	}

	if err := s.applyStep(danceCtx, spec, failed); err != nil {
		return fmt.Errorf("retry %s after dropping related foreign keys: %w", failed.Kind, err)
	}

	for _, fk := range related {
		recreated := ForeignKeySpec{
			ConstraintName:   fk.ConstraintName,
			LocalColumn:      fk.LocalColumn,
			ReferencedTable:  fk.ReferencedTable,
			ReferencedColumn: fk.ReferencedColumn,
			OnUpdate:         fk.OnUpdate,
			OnDelete:         fk.OnDelete,
		}
		if err := s.exec(danceCtx, s.renderAddForeignKey(fk.OwningTable, recreated)); err != nil {
			return fmt.Errorf("recreate %s after retry: %w", fk.ConstraintName, err)
		}
	}
	return nil
}

func (s *Synchronizer) withFKChecksRelaxed(ctx context.Context) context.Context {
	switch s.Dialect.Name() {
	case dialect.MySQL:
		return dsql.WithIntVar(ctx, "FOREIGN_KEY_CHECKS", 0)
	case dialect.Postgres:
		return dsql.WithVar(ctx, "session_replication_role", "replica")
	default:
		return ctx
	}
}

func (s *Synchronizer) ensurePrimaryKey(ctx context.Context, spec *TableSpec) error {
	if len(spec.PrimaryKey) == 0 {
		return nil
	}
	quoted := make([]string, len(spec.PrimaryKey))
	for i, col := range spec.PrimaryKey {
		quoted[i] = s.Dialect.QuoteIdent(col)
	}
	table := s.Dialect.QualifyTable(spec.SchemaName, spec.TableName)
	drop := fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s_pkey", table, s.Dialect.QuoteIdent(spec.TableName))
	if s.Dialect.Name() == dialect.MySQL {
		drop = fmt.Sprintf("ALTER TABLE %s DROP PRIMARY KEY", table)
	}
	// Best-effort: absence of an existing PK is not an error worth failing on.
	_ = s.exec(ctx, drop)
	add := fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (%s)", table, strings.Join(quoted, ", "))
	return s.exec(ctx, add)
}

func (s *Synchronizer) exec(ctx context.Context, stmt string) error {
	return s.Conn.Exec(ctx, stmt, []any{}, nil)
}
