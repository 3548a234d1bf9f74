package predicate

import (
	"golang.org/x/text/cases"
)

var foldCaser = cases.Fold()

// foldEqual applies Unicode case folding to a bound literal (§4.5
// EqualFold/ContainsFold). Only the parameter is folded: the planner
// renders the comparison as a plain "=" or LIKE on the column, so whether
// the match ignores case depends on the column's collation.
func foldEqual(s string) string { return foldCaser.String(s) }

// StringField is a string-typed column accessor producing Predicate[T]
// values, mirroring syssam-velox/dialect/sql.StringField but bound to the
// entity type T directly instead of a generated predicate func type.
type StringField[T any] string

func String[T any](column string) StringField[T] { return StringField[T](column) }

func (f StringField[T]) Name() string { return string(f) }

func (f StringField[T]) EQ(v string) Predicate[T]  { return leaf[T](f.Name(), EQ, v) }
func (f StringField[T]) NEQ(v string) Predicate[T] { return leaf[T](f.Name(), NEQ, v) }
func (f StringField[T]) GT(v string) Predicate[T]  { return leaf[T](f.Name(), GT, v) }
func (f StringField[T]) GTE(v string) Predicate[T] { return leaf[T](f.Name(), GTE, v) }
func (f StringField[T]) LT(v string) Predicate[T]  { return leaf[T](f.Name(), LT, v) }
func (f StringField[T]) LTE(v string) Predicate[T] { return leaf[T](f.Name(), LTE, v) }

func (f StringField[T]) In(vs ...string) Predicate[T]    { return leaf[T](f.Name(), In, anySlice(vs)) }
func (f StringField[T]) NotIn(vs ...string) Predicate[T] { return leaf[T](f.Name(), NotIn, anySlice(vs)) }
func (f StringField[T]) Between(lo, hi string) Predicate[T] {
	return leaf[T](f.Name(), Between, BetweenValue{Low: lo, High: hi})
}

func (f StringField[T]) Contains(v string) Predicate[T] {
	return leaf[T](f.Name(), Like, "%"+v+"%")
}
func (f StringField[T]) HasPrefix(v string) Predicate[T] { return leaf[T](f.Name(), Like, v+"%") }
func (f StringField[T]) HasSuffix(v string) Predicate[T] { return leaf[T](f.Name(), Like, "%"+v) }

// ContainsFold is Contains with Unicode case folding applied to the bound
// literal (§4.5); the column side is not folded in the rendered SQL.
func (f StringField[T]) ContainsFold(v string) Predicate[T] {
	return leaf[T](f.Name(), Like, "%"+foldEqual(v)+"%")
}

// EqualFold is EQ with Unicode case folding applied to the bound literal.
func (f StringField[T]) EqualFold(v string) Predicate[T] {
	return leaf[T](f.Name(), EQ, foldEqual(v))
}

func (f StringField[T]) IsNull() Predicate[T]  { return leaf[T](f.Name(), IsNull, nil) }
func (f StringField[T]) NotNull() Predicate[T] { return leaf[T](f.Name(), NotNull, nil) }

// IntField is an int-typed column accessor.
type IntField[T any] string

func Int[T any](column string) IntField[T] { return IntField[T](column) }

func (f IntField[T]) Name() string { return string(f) }

func (f IntField[T]) EQ(v int) Predicate[T]  { return leaf[T](f.Name(), EQ, v) }
func (f IntField[T]) NEQ(v int) Predicate[T] { return leaf[T](f.Name(), NEQ, v) }
func (f IntField[T]) GT(v int) Predicate[T]  { return leaf[T](f.Name(), GT, v) }
func (f IntField[T]) GTE(v int) Predicate[T] { return leaf[T](f.Name(), GTE, v) }
func (f IntField[T]) LT(v int) Predicate[T]  { return leaf[T](f.Name(), LT, v) }
func (f IntField[T]) LTE(v int) Predicate[T] { return leaf[T](f.Name(), LTE, v) }

func (f IntField[T]) In(vs ...int) Predicate[T]    { return leaf[T](f.Name(), In, anySlice(vs)) }
func (f IntField[T]) NotIn(vs ...int) Predicate[T] { return leaf[T](f.Name(), NotIn, anySlice(vs)) }
func (f IntField[T]) Between(lo, hi int) Predicate[T] {
	return leaf[T](f.Name(), Between, BetweenValue{Low: lo, High: hi})
}

func (f IntField[T]) IsNull() Predicate[T]  { return leaf[T](f.Name(), IsNull, nil) }
func (f IntField[T]) NotNull() Predicate[T] { return leaf[T](f.Name(), NotNull, nil) }

// Int64Field is an int64-typed column accessor.
type Int64Field[T any] string

func Int64[T any](column string) Int64Field[T] { return Int64Field[T](column) }

func (f Int64Field[T]) Name() string { return string(f) }

func (f Int64Field[T]) EQ(v int64) Predicate[T]  { return leaf[T](f.Name(), EQ, v) }
func (f Int64Field[T]) NEQ(v int64) Predicate[T] { return leaf[T](f.Name(), NEQ, v) }
func (f Int64Field[T]) GT(v int64) Predicate[T]  { return leaf[T](f.Name(), GT, v) }
func (f Int64Field[T]) GTE(v int64) Predicate[T] { return leaf[T](f.Name(), GTE, v) }
func (f Int64Field[T]) LT(v int64) Predicate[T]  { return leaf[T](f.Name(), LT, v) }
func (f Int64Field[T]) LTE(v int64) Predicate[T] { return leaf[T](f.Name(), LTE, v) }

func (f Int64Field[T]) In(vs ...int64) Predicate[T] { return leaf[T](f.Name(), In, anySlice(vs)) }
func (f Int64Field[T]) NotIn(vs ...int64) Predicate[T] {
	return leaf[T](f.Name(), NotIn, anySlice(vs))
}
func (f Int64Field[T]) Between(lo, hi int64) Predicate[T] {
	return leaf[T](f.Name(), Between, BetweenValue{Low: lo, High: hi})
}

func (f Int64Field[T]) IsNull() Predicate[T]  { return leaf[T](f.Name(), IsNull, nil) }
func (f Int64Field[T]) NotNull() Predicate[T] { return leaf[T](f.Name(), NotNull, nil) }

// Float64Field is a float64-typed column accessor.
type Float64Field[T any] string

func Float64[T any](column string) Float64Field[T] { return Float64Field[T](column) }

func (f Float64Field[T]) Name() string { return string(f) }

func (f Float64Field[T]) EQ(v float64) Predicate[T]  { return leaf[T](f.Name(), EQ, v) }
func (f Float64Field[T]) NEQ(v float64) Predicate[T] { return leaf[T](f.Name(), NEQ, v) }
func (f Float64Field[T]) GT(v float64) Predicate[T]  { return leaf[T](f.Name(), GT, v) }
func (f Float64Field[T]) GTE(v float64) Predicate[T] { return leaf[T](f.Name(), GTE, v) }
func (f Float64Field[T]) LT(v float64) Predicate[T]  { return leaf[T](f.Name(), LT, v) }
func (f Float64Field[T]) LTE(v float64) Predicate[T] { return leaf[T](f.Name(), LTE, v) }

func (f Float64Field[T]) In(vs ...float64) Predicate[T] {
	return leaf[T](f.Name(), In, anySlice(vs))
}
func (f Float64Field[T]) NotIn(vs ...float64) Predicate[T] {
	return leaf[T](f.Name(), NotIn, anySlice(vs))
}
func (f Float64Field[T]) Between(lo, hi float64) Predicate[T] {
	return leaf[T](f.Name(), Between, BetweenValue{Low: lo, High: hi})
}

func (f Float64Field[T]) IsNull() Predicate[T]  { return leaf[T](f.Name(), IsNull, nil) }
func (f Float64Field[T]) NotNull() Predicate[T] { return leaf[T](f.Name(), NotNull, nil) }

// BoolField is a bool-typed column accessor. Unary NOT over a boolean
// model member (§4.5) is rendered by callers as Field.EQ(false).
type BoolField[T any] string

func Bool[T any](column string) BoolField[T] { return BoolField[T](column) }

func (f BoolField[T]) Name() string { return string(f) }

func (f BoolField[T]) EQ(v bool) Predicate[T]  { return leaf[T](f.Name(), EQ, v) }
func (f BoolField[T]) NEQ(v bool) Predicate[T] { return leaf[T](f.Name(), NEQ, v) }

func (f BoolField[T]) IsNull() Predicate[T]  { return leaf[T](f.Name(), IsNull, nil) }
func (f BoolField[T]) NotNull() Predicate[T] { return leaf[T](f.Name(), NotNull, nil) }

// TimeField is a time-typed column accessor; V is the concrete time
// value type (normally time.Time).
type TimeField[T any, V any] string

func Time[T any, V any](column string) TimeField[T, V] { return TimeField[T, V](column) }

func (f TimeField[T, V]) Name() string { return string(f) }

func (f TimeField[T, V]) EQ(v V) Predicate[T]  { return leaf[T](f.Name(), EQ, v) }
func (f TimeField[T, V]) NEQ(v V) Predicate[T] { return leaf[T](f.Name(), NEQ, v) }
func (f TimeField[T, V]) GT(v V) Predicate[T]  { return leaf[T](f.Name(), GT, v) }
func (f TimeField[T, V]) GTE(v V) Predicate[T] { return leaf[T](f.Name(), GTE, v) }
func (f TimeField[T, V]) LT(v V) Predicate[T]  { return leaf[T](f.Name(), LT, v) }
func (f TimeField[T, V]) LTE(v V) Predicate[T] { return leaf[T](f.Name(), LTE, v) }

func (f TimeField[T, V]) Between(lo, hi V) Predicate[T] {
	return leaf[T](f.Name(), Between, BetweenValue{Low: lo, High: hi})
}

func (f TimeField[T, V]) IsNull() Predicate[T]  { return leaf[T](f.Name(), IsNull, nil) }
func (f TimeField[T, V]) NotNull() Predicate[T] { return leaf[T](f.Name(), NotNull, nil) }

// EnumField is a column accessor for a Go ~string enum type V.
type EnumField[T any, V ~string] string

func Enum[T any, V ~string](column string) EnumField[T, V] { return EnumField[T, V](column) }

func (f EnumField[T, V]) Name() string { return string(f) }

func (f EnumField[T, V]) EQ(v V) Predicate[T]  { return leaf[T](f.Name(), EQ, string(v)) }
func (f EnumField[T, V]) NEQ(v V) Predicate[T] { return leaf[T](f.Name(), NEQ, string(v)) }

func (f EnumField[T, V]) In(vs ...V) Predicate[T] {
	return leaf[T](f.Name(), In, enumSlice(vs))
}
func (f EnumField[T, V]) NotIn(vs ...V) Predicate[T] {
	return leaf[T](f.Name(), NotIn, enumSlice(vs))
}

func (f EnumField[T, V]) IsNull() Predicate[T]  { return leaf[T](f.Name(), IsNull, nil) }
func (f EnumField[T, V]) NotNull() Predicate[T] { return leaf[T](f.Name(), NotNull, nil) }

// OtherField is a column accessor for any Go type without a dedicated
// Field type above (e.g. uuid.UUID, json-backed structs, []byte).
type OtherField[T any, V any] string

func Other[T any, V any](column string) OtherField[T, V] { return OtherField[T, V](column) }

func (f OtherField[T, V]) Name() string { return string(f) }

func (f OtherField[T, V]) EQ(v V) Predicate[T]  { return leaf[T](f.Name(), EQ, v) }
func (f OtherField[T, V]) NEQ(v V) Predicate[T] { return leaf[T](f.Name(), NEQ, v) }

func (f OtherField[T, V]) In(vs ...V) Predicate[T] {
	return leaf[T](f.Name(), In, anySlice(vs))
}
func (f OtherField[T, V]) NotIn(vs ...V) Predicate[T] {
	return leaf[T](f.Name(), NotIn, anySlice(vs))
}

func (f OtherField[T, V]) IsNull() Predicate[T]  { return leaf[T](f.Name(), IsNull, nil) }
func (f OtherField[T, V]) NotNull() Predicate[T] { return leaf[T](f.Name(), NotNull, nil) }

func anySlice[V any](vs []V) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

func enumSlice[V ~string](vs []V) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}
