package engine

import (
	"strings"

	"github.com/queryscript/qs/internal/types"
)

// AtomicTypeForDriverType maps a driver-reported column type name (e.g.
// *sql.ColumnType.DatabaseTypeName(), or pgx's pgtype.Type.Name) to the
// closest QueryScript AtomicType, for populating a Relation's Schema()
// after a query has actually run (spec §4.I: "the result's type is
// checked against the expected type"). Unrecognized names fall back to
// AtomString rather than erroring — an engine adapter's job is to
// describe what the driver gave it, not to reject drivers this module
// wasn't grounded against.
func AtomicTypeForDriverType(name string) types.AtomicType {
	switch strings.ToUpper(name) {
	case "TINYINT", "INT1":
		return types.AtomInt8
	case "SMALLINT", "INT2", "SMALLSERIAL":
		return types.AtomInt16
	case "INT", "INTEGER", "INT4", "MEDIUMINT", "SERIAL":
		return types.AtomInt32
	case "BIGINT", "INT8", "BIGSERIAL":
		return types.AtomInt64
	case "FLOAT", "FLOAT4", "REAL":
		return types.AtomFloat32
	case "DOUBLE", "DOUBLE PRECISION", "FLOAT8":
		return types.AtomFloat64
	case "DECIMAL", "NUMERIC", "NUMERIC(", "MONEY":
		return types.AtomDecimal
	case "BOOL", "BOOLEAN":
		return types.AtomBool
	case "TIMESTAMP", "TIMESTAMPTZ", "DATETIME":
		return types.AtomTimestamp
	case "DATE":
		return types.AtomDate
	case "TIME", "TIMETZ":
		return types.AtomTime
	case "UUID":
		return types.AtomUUID
	case "JSON", "JSONB":
		return types.AtomJSON
	case "CHAR", "VARCHAR", "TEXT", "TINYTEXT", "MEDIUMTEXT", "LONGTEXT", "NVARCHAR", "CHARACTER VARYING", "NAME":
		return types.AtomString
	default:
		return types.AtomString
	}
}
