// Package catalog resolves a Go struct type into a schema.TableSpec by
// scanning its fields' `relata:"..."` struct tags, memoizing the result so
// the same model type is only reflected once.
package catalog

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/go-openapi/inflect"
	"github.com/google/uuid"

	dsql "github.com/relata-go/relata/dialect/sql"
	"github.com/relata-go/relata/dialect/sql/schema"
)

// TagKey is the struct tag key scanned for annotations (§3.3).
const TagKey = "relata"

// ModelCatalog resolves model types to TableSpecs, memoized in a sync.Map
// keyed by reflect.Type so a model's tags are only parsed once across the
// process's lifetime.
type ModelCatalog struct {
	cache   sync.Map // reflect.Type -> *schema.TableSpec
	byTable sync.Map // string (table name) -> *schema.TableSpec
}

// New builds an empty ModelCatalog.
func New() *ModelCatalog {
	return &ModelCatalog{}
}

// TableSpec resolves model (a struct value or pointer to one) to its
// TableSpec, building it on first use and reusing the cached result on
// every later call for the same type. Concurrent first-use callers for the
// same type may both build a TableSpec; LoadOrStore's compare-and-swap
// insertion guarantees they converge on the same returned pointer.
func (c *ModelCatalog) TableSpec(model any) (*schema.TableSpec, error) {
	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("catalog: %s is not a struct", t)
	}

	if cached, ok := c.cache.Load(t); ok {
		return cached.(*schema.TableSpec), nil
	}

	built, err := buildTableSpec(t)
	if err != nil {
		return nil, err
	}
	actual, _ := c.cache.LoadOrStore(t, built)
	spec := actual.(*schema.TableSpec)
	c.byTable.LoadOrStore(spec.TableName, spec)
	return spec, nil
}

// TableSpecByName looks up a previously resolved TableSpec by its table
// name, satisfying query.TableResolver so the QueryPlanner can resolve
// Include navigations without needing the Go model type at hand. Only
// models that have already gone through TableSpec at least once are
// found; callers that register every model up front (typical at process
// startup) see every table here.
func (c *ModelCatalog) TableSpecByName(table string) (*schema.TableSpec, bool) {
	v, ok := c.byTable.Load(table)
	if !ok {
		return nil, false
	}
	return v.(*schema.TableSpec), true
}

// MustTableSpec is TableSpec but panics on error, for package-level var
// initialization in caller code that already knows the model is valid.
func (c *ModelCatalog) MustTableSpec(model any) *schema.TableSpec {
	spec, err := c.TableSpec(model)
	if err != nil {
		panic(err)
	}
	return spec
}

// All returns every TableSpec resolved by this ModelCatalog so far, in no
// particular order. This is the module's namespace equivalent: rather
// than grouping models under a source-language namespace string, every
// model a caller has already run through TableSpec/MustTableSpec is a
// member, so registering a package's models up front (typically at
// process startup) makes All() that package's full table set.
func (c *ModelCatalog) All() []*schema.TableSpec {
	var specs []*schema.TableSpec
	c.byTable.Range(func(_, v any) bool {
		specs = append(specs, v.(*schema.TableSpec))
		return true
	})
	return specs
}

// SyncNamespace runs sync.SyncTables across every TableSpec this catalog
// has resolved, the rendering of §6's syncNamespace(namespaceName, ...):
// this module has no source-language namespace string to key sync by, so
// "the namespace" is simply "everything registered in this catalog".
func (c *ModelCatalog) SyncNamespace(ctx context.Context, sync *schema.Synchronizer, createBackup bool) ([]*schema.AlterationPlan, error) {
	tables := c.All()
	if err := schema.ValidateForeignKeyTargets(tables); err != nil {
		return nil, err
	}
	return sync.SyncTables(ctx, tables, createBackup)
}

func buildTableSpec(t reflect.Type) (*schema.TableSpec, error) {
	spec := &schema.TableSpec{
		TableName: inflect.Underscore(inflect.Pluralize(t.Name())),
	}

	compositeIdx, err := collectFields(t, spec)
	if err != nil {
		return nil, err
	}
	spec.Indexes = append(spec.Indexes, compositeIdx...)

	if len(spec.PrimaryKey) == 0 {
		if _, ok := spec.Column("id"); ok {
			spec.PrimaryKey = []string{"id"}
			for i := range spec.Columns {
				if spec.Columns[i].Name == "id" {
					spec.Columns[i].Primary = true
				}
			}
		}
	}

	return spec, nil
}

// collectFields walks t's fields into spec, recursing into anonymously
// embedded structs (e.g. a contrib/mixin type) so their tagged fields are
// promoted into the embedder's table exactly as Go promotes their struct
// fields — the reflection-based equivalent of the teacher's composable
// Mixin.Fields(). Table-level marker terms (`_ struct{}`) found on an
// embedded mixin apply to the owning table too.
func collectFields(t reflect.Type, spec *schema.TableSpec) ([]schema.IndexSpec, error) {
	var compositeIdx []schema.IndexSpec

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)

		// The zero-width marker field (`_ struct{}`) carries table-level
		// annotations instead of describing a column.
		if f.Name == "_" && f.Type.Kind() == reflect.Struct && f.Type.NumField() == 0 {
			terms, err := parseTerms(f.Tag.Get(TagKey))
			if err != nil {
				return nil, fmt.Errorf("catalog: %s: %w", t.Name(), err)
			}
			idxs, err := applyTableTerms(spec, terms)
			if err != nil {
				return nil, fmt.Errorf("catalog: %s: %w", t.Name(), err)
			}
			compositeIdx = append(compositeIdx, idxs...)
			continue
		}

		if !f.IsExported() {
			continue
		}

		if f.Anonymous && f.Type.Kind() == reflect.Struct &&
			f.Type != reflect.TypeOf(time.Time{}) && f.Type != reflect.TypeOf(uuid.UUID{}) {
			idxs, err := collectFields(f.Type, spec)
			if err != nil {
				return nil, fmt.Errorf("catalog: %s: embedded %s: %w", t.Name(), f.Type, err)
			}
			compositeIdx = append(compositeIdx, idxs...)
			continue
		}

		rawTag, hasTag := f.Tag.Lookup(TagKey)
		terms, err := parseTerms(rawTag)
		if err != nil {
			return nil, fmt.Errorf("catalog: %s.%s: %w", t.Name(), f.Name, err)
		}

		if terms.has("rel") {
			// Relation-only field (e.g. the "many" side of a one-to-many):
			// no physical column on this table. Eager-load resolution
			// walks the model's own field, not the TableSpec.
			continue
		}
		if !hasTag && (f.Type.Kind() == reflect.Slice || f.Type.Kind() == reflect.Struct && f.Type != reflect.TypeOf(time.Time{}) && f.Type != reflect.TypeOf(uuid.UUID{})) {
			// Untagged slice/struct fields are assumed to be relations
			// rather than columns, unless it's a recognized value type.
			continue
		}

		col, err := buildColumn(f, terms)
		if err != nil {
			return nil, fmt.Errorf("catalog: %s.%s: %w", t.Name(), f.Name, err)
		}
		spec.Columns = append(spec.Columns, col)

		if col.Primary {
			spec.PrimaryKey = append(spec.PrimaryKey, col.Name)
		}
		if col.Unique {
			spec.Indexes = append(spec.Indexes, schema.IndexSpec{
				Name: "uq_" + spec.TableName + "_" + col.Name, Unique: true, Columns: []string{col.Name},
			})
		} else if col.Indexed {
			spec.Indexes = append(spec.Indexes, schema.IndexSpec{
				Name: "idx_" + spec.TableName + "_" + col.Name, Columns: []string{col.Name},
			})
		}
		if col.ForeignKey != nil {
			fk := *col.ForeignKey
			fk.LocalColumn = col.Name
			if fk.ConstraintName == "" {
				fk.ConstraintName = "fk_" + spec.TableName + "_" + col.Name
			}
			spec.ForeignKeys = append(spec.ForeignKeys, fk)
		}
	}

	return compositeIdx, nil
}

func buildColumn(f reflect.StructField, terms tagTerms) (schema.ColumnSpec, error) {
	col := schema.ColumnSpec{
		Name:               columnName(f, terms),
		ModelAttributeName: f.Name,
	}

	ft := f.Type
	nullable := false
	if ft.Kind() == reflect.Ptr {
		nullable = true
		ft = ft.Elem()
	}

	logical, err := logicalTypeOf(ft, terms)
	if err != nil {
		return col, err
	}
	col.Logical = logical
	col.NotNull = !nullable

	if terms.has("pk") {
		col.Primary = true
		col.NotNull = true
	}
	if terms.has("autoincrement") {
		col.AutoIncrement = true
	}
	if terms.has("unique") {
		col.Unique = true
	}
	if terms.has("index") {
		col.Indexed = true
	}
	if terms.has("notnull") {
		col.NotNull = true
	}
	if terms.has("unsigned") {
		col.Unsigned = true
	}
	if terms.has("onupdatecurrenttime") {
		col.OnUpdateCurrentTime = true
	}
	if v, ok := terms.value("size"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return col, fmt.Errorf("invalid size %q: %w", v, err)
		}
		col.Size = n
	}
	if v, ok := terms.value("precision"); ok {
		n, _ := strconv.Atoi(v)
		col.Precision = n
	}
	if v, ok := terms.value("scale"); ok {
		n, _ := strconv.Atoi(v)
		col.Scale = n
	}
	if v, ok := terms.value("default"); ok {
		col.DefaultExpr = v
	}
	if v, ok := terms.value("charset"); ok {
		col.Charset = v
	}
	if v, ok := terms.value("comment"); ok {
		col.Comment = v
	}
	if v, ok := terms.value("column"); ok {
		col.Name = v
	}

	if v, ok := terms.value("fk"); ok {
		ref := strings.SplitN(v, ".", 2)
		if len(ref) != 2 {
			return col, fmt.Errorf("fk annotation %q must be table.column", v)
		}
		fk := &schema.ForeignKeySpec{ReferencedTable: ref[0], ReferencedColumn: ref[1]}
		if cn, ok := terms.value("constraint"); ok {
			fk.ConstraintName = cn
		}
		fk.OnUpdate = cascadeFromTag(terms, "onupdate")
		fk.OnDelete = cascadeFromTag(terms, "ondelete")
		col.ForeignKey = fk
	}

	return col, nil
}

func cascadeFromTag(terms tagTerms, key string) dsql.CascadeAction {
	v, ok := terms.value(key)
	if !ok {
		return dsql.NoAction
	}
	switch strings.ToLower(v) {
	case "cascade":
		return dsql.Cascade
	case "setnull":
		return dsql.SetNull
	case "restrict":
		return dsql.Restrict
	case "setdefault":
		return dsql.SetDefault
	default:
		return dsql.NoAction
	}
}

func columnName(f reflect.StructField, terms tagTerms) string {
	if v, ok := terms.value("column"); ok {
		return v
	}
	// snake_case that keeps an acronym together: CustomerID -> customer_id,
	// HTMLBody -> html_body.
	runes := []rune(f.Name)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]) ||
			(unicode.IsUpper(runes[i-1]) && i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

var (
	timeType = reflect.TypeOf(time.Time{})
	uuidType = reflect.TypeOf(uuid.UUID{})
	rawBytes = reflect.TypeOf([]byte(nil))
)

func logicalTypeOf(ft reflect.Type, terms tagTerms) (dsql.LogicalType, error) {
	if v, ok := terms.value("type"); ok {
		switch strings.ToLower(v) {
		case "text":
			return dsql.TypeText, nil
		case "json":
			return dsql.TypeJSON, nil
		case "jsonb":
			return dsql.TypeJSONB, nil
		case "blob":
			return dsql.TypeBlob, nil
		case "uuid":
			return dsql.TypeUUID, nil
		case "date":
			return dsql.TypeDate, nil
		case "datetime":
			return dsql.TypeDateTime, nil
		case "timestamp":
			return dsql.TypeTimestamp, nil
		case "timestamptz":
			return dsql.TypeTimestampTz, nil
		case "char":
			return dsql.TypeChar, nil
		case "varchar":
			return dsql.TypeVarChar, nil
		}
	}

	switch ft {
	case timeType:
		return dsql.TypeDateTime, nil
	case uuidType:
		return dsql.TypeUUID, nil
	case rawBytes:
		return dsql.TypeBlob, nil
	}

	switch ft.Kind() {
	case reflect.Int8, reflect.Uint8:
		return dsql.TypeTinyInt, nil
	case reflect.Int16, reflect.Uint16:
		return dsql.TypeSmallInt, nil
	case reflect.Int, reflect.Int32, reflect.Uint, reflect.Uint32:
		return dsql.TypeInt, nil
	case reflect.Int64, reflect.Uint64:
		return dsql.TypeBigInt, nil
	case reflect.Float32:
		return dsql.TypeFloat, nil
	case reflect.Float64:
		return dsql.TypeDouble, nil
	case reflect.Bool:
		return dsql.TypeBool, nil
	case reflect.String:
		return dsql.TypeVarChar, nil
	case reflect.Slice:
		switch ft.Elem().Kind() {
		case reflect.Int, reflect.Int32, reflect.Int64:
			return dsql.TypeIntArray, nil
		case reflect.Uint8:
			return dsql.TypeBlob, nil
		}
	case reflect.Map:
		return dsql.TypeJSON, nil
	}

	return dsql.TypeInvalid, fmt.Errorf("no logical type mapping for Go type %s", ft)
}
