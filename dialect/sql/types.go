package sql

// LogicalType is the backend-independent column type vocabulary a
// ColumnSpec declares (§3, §6). Dialect.ColumnType renders one of these,
// plus size/precision/scale/unsigned, into the backend's native type text.
type LogicalType uint8

const (
	TypeInvalid LogicalType = iota
	TypeTinyInt
	TypeSmallInt
	TypeInt
	TypeBigInt
	TypeDecimal // needs precision+scale
	TypeFloat
	TypeDouble
	TypeVarChar // needs size
	TypeChar    // needs size
	TypeText
	TypeDateTime
	TypeTimestamp
	TypeTimestampTz
	TypeDate
	TypeJSON
	TypeJSONB // PostgreSQL only; MySQL/SQLite fall back to JSON/TEXT
	TypeUUID
	TypeBool
	TypeBlob
	TypeIntArray // PostgreSQL only
)

// String names the logical type, used in diagnostics and in
// ModifyColumn diff messages.
func (t LogicalType) String() string {
	switch t {
	case TypeTinyInt:
		return "TinyInt"
	case TypeSmallInt:
		return "SmallInt"
	case TypeInt:
		return "Int"
	case TypeBigInt:
		return "BigInt"
	case TypeDecimal:
		return "Decimal"
	case TypeFloat:
		return "Float"
	case TypeDouble:
		return "Double"
	case TypeVarChar:
		return "VarChar"
	case TypeChar:
		return "Char"
	case TypeText:
		return "Text"
	case TypeDateTime:
		return "DateTime"
	case TypeTimestamp:
		return "Timestamp"
	case TypeTimestampTz:
		return "TimestampTz"
	case TypeDate:
		return "Date"
	case TypeJSON:
		return "Json"
	case TypeJSONB:
		return "Jsonb"
	case TypeUUID:
		return "Uuid"
	case TypeBool:
		return "Bool"
	case TypeBlob:
		return "Blob"
	case TypeIntArray:
		return "IntArray"
	default:
		return "Invalid"
	}
}

// ColumnTypeSpec carries exactly the fields a Dialect needs to render a
// column's native type, independent of package schema's richer ColumnSpec
// (kept separate to avoid an import cycle between dialect/sql and
// dialect/sql/schema).
type ColumnTypeSpec struct {
	Logical   LogicalType
	Size      int64 // VarChar/Char length; defaults to 255 when 0 and Logical==TypeVarChar
	Precision int
	Scale     int
	Unsigned  bool // MySQL only
}

// CascadeAction mirrors spec §3's ForeignKeySpec action enum.
type CascadeAction string

const (
	NoAction   CascadeAction = "NO ACTION"
	Restrict   CascadeAction = "RESTRICT"
	SetNull    CascadeAction = "SET NULL"
	SetDefault CascadeAction = "SET DEFAULT"
	Cascade    CascadeAction = "CASCADE"
)
