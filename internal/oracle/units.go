package oracle

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// NativeDecimals is the precision of the chain's native token.
const NativeDecimals = 18

// FormatUnits renders a base-unit integer as a decimal string with the given precision.
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -int32(decimals)).String()
}

// ParseUnits converts a decimal string such as "1.5" into base units.
func ParseUnits(input string, decimals uint8) (*big.Int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(input)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", input, err)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d decimals", input, decimals)
	}
	return scaled.BigInt(), nil
}

// ScalePrice converts a quote amount expressed with quoteDecimals into the oracle's
// precision. Equal precisions return the amount unchanged; a coarser oracle truncates.
func ScalePrice(amount *big.Int, quoteDecimals, oracleDecimals uint8) *big.Int {
	if amount == nil {
		return nil
	}
	out := new(big.Int).Set(amount)
	switch {
	case oracleDecimals > quoteDecimals:
		factor := pow10(oracleDecimals - quoteDecimals)
		return out.Mul(out, factor)
	case oracleDecimals < quoteDecimals:
		factor := pow10(quoteDecimals - oracleDecimals)
		return out.Quo(out, factor)
	default:
		return out
	}
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
