package predicate

// Namer is implemented by every Field type in field.go, letting OrderBy
// helpers accept any of them without repeating the accessor set.
type Namer interface {
	Name() string
}

// OrderByClause is one ORDER BY entry: a column and its direction.
// QueryPlanner preserves the declared ordering insertion order (§4.6).
type OrderByClause struct {
	Column string
	Desc   bool
}

// Asc builds an ascending OrderByClause from any field accessor.
func Asc(field Namer) OrderByClause { return OrderByClause{Column: field.Name()} }

// Desc builds a descending OrderByClause from any field accessor.
func Desc(field Namer) OrderByClause { return OrderByClause{Column: field.Name(), Desc: true} }
