package query

import "github.com/relata-go/relata/dialect/sql/schema"

// TableResolver looks up another model's TableSpec by its table name, the
// lookup Planner needs to resolve an Include navigation into a JOIN when
// the owning side of the relationship isn't the base table itself (the
// one-to-many and many-to-many cases in PlanSelect step 3). A ModelCatalog
// satisfies this once wrapped by catalog.ModelCatalog.TableSpecByName (see
// that package); tests can supply a small map-backed stub instead.
type TableResolver interface {
	TableSpecByName(table string) (*schema.TableSpec, bool)
}

// MapResolver is a TableResolver backed by a plain map, used by planner
// tests and by callers that already have every participating TableSpec in
// hand.
type MapResolver map[string]*schema.TableSpec

func (m MapResolver) TableSpecByName(table string) (*schema.TableSpec, bool) {
	spec, ok := m[table]
	return spec, ok
}
