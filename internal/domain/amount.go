package domain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// UIAmount converts a raw token amount to its decimal display value.
func UIAmount(raw uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -int32(decimals))
}

// FormatUIAmount renders raw with exactly decimals fractional digits.
func FormatUIAmount(raw uint64, decimals uint8) string {
	return UIAmount(raw, decimals).StringFixed(int32(decimals))
}

// ErrAmountOutOfRange is returned when a display value has no u64 raw form.
var ErrAmountOutOfRange = errors.New("amount out of range")

// RawAmount converts a display value back to raw units, truncating extra precision.
// Negative values and values above math.MaxUint64 raw units are rejected.
func RawAmount(ui decimal.Decimal, decimals uint8) (uint64, error) {
	if ui.IsNegative() {
		return 0, fmt.Errorf("%w: %s is negative", ErrAmountOutOfRange, ui)
	}
	raw := ui.Shift(int32(decimals)).Truncate(0).BigInt()
	if !raw.IsUint64() {
		return 0, fmt.Errorf("%w: %s with %d decimals exceeds u64", ErrAmountOutOfRange, ui, decimals)
	}
	return raw.Uint64(), nil
}
