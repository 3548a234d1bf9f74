package query

// Statement is a fully rendered SQL text plus its ordered parameter
// bindings, ready to hand to a driver via dsql.ExecQuerier.
type Statement struct {
	SQL  string
	Args []any
}

// paramBuilder accumulates bound values in emission order and renders each
// one through the active Dialect's positional placeholder syntax. The
// @pN / @pN_j / @set_<col> / @p<row>_<col> naming discipline (§4.6) is
// bookkeeping only — every backend this module targets binds positionally,
// so the rendered text always carries the dialect's own placeholder token;
// names are recorded alongside the values but never appear in the SQL.
type paramBuilder struct {
	placeholder func(i int) string
	args        []any
	names       []string
}

// bind appends v under the given logical name and returns the dialect's
// rendered placeholder text for its position.
func (b *paramBuilder) bind(name string, v any) string {
	b.names = append(b.names, name)
	b.args = append(b.args, v)
	return b.placeholder(len(b.args) - 1)
}
