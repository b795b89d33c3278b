package engine

import (
	"github.com/shopspring/decimal"
)

// ConvertDecimalValue parses a database/sql driver's NUMERIC/DECIMAL scan
// result into an exact decimal.Decimal (spec §4.B's Decimal atom), rather
// than passing the driver's raw string/[]byte through unchanged the way
// convertDriverValue does for every other column type. A value
// decimal.Decimal can't parse falls back to the original value (as a
// string) rather than erroring, and NULL (nil) or any other Go type
// passes through unchanged.
func ConvertDecimalValue(v any) any {
	switch x := v.(type) {
	case []byte:
		d, err := decimal.NewFromString(string(x))
		if err != nil {
			return string(x)
		}

		return d
	case string:
		d, err := decimal.NewFromString(x)
		if err != nil {
			return x
		}

		return d
	case float64:
		return decimal.NewFromFloat(x)
	case float32:
		return decimal.NewFromFloat32(x)
	default:
		return v
	}
}
