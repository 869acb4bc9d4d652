package db

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// NumericToDecimal converts a scanned pgtype.Numeric into a decimal value.
// Invalid and NaN numerics collapse to zero.
func NumericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

// DecimalArg renders a decimal for use as a numeric query argument.
func DecimalArg(d decimal.Decimal) string {
	return d.String()
}
