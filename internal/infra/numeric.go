package infra

import (
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5/pgtype"
)

// Uint64ToNumeric converts a uint64 to pgtype.Numeric for writing to PostgreSQL numeric(20,0).
func Uint64ToNumeric(v uint64) pgtype.Numeric {
	return pgtype.Numeric{
		Int:              new(big.Int).SetUint64(v),
		Exp:              0,
		NaN:              false,
		InfinityModifier: pgtype.Finite,
		Valid:            true,
	}
}

// NumericToUint64 converts a pgtype.Numeric read from a numeric(20,0) column.
// Returns an error if the value is NULL, negative, or overflows uint64.
func NumericToUint64(n pgtype.Numeric) (uint64, error) {
	if !n.Valid {
		return 0, fmt.Errorf("numeric value is NULL")
	}

	// pgtype.Numeric stores value as Int * 10^Exp
	bi := new(big.Int).Set(n.Int)
	if n.Exp > 0 {
		multiplier := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n.Exp)), nil)
		bi.Mul(bi, multiplier)
	} else if n.Exp < 0 {
		divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-n.Exp)), nil)
		bi.Div(bi, divisor)
	}

	if !bi.IsUint64() {
		return 0, fmt.Errorf("numeric value %s overflows uint64", bi.String())
	}
	return bi.Uint64(), nil
}
