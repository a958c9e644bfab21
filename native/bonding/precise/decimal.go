package precise

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimal returns n as an arbitrary-precision decimal.
func (n Number) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(n.value.ToBig(), -Decimals)
}

// FromDecimal converts a non-negative decimal, rounding half up to 24 digits.
func FromDecimal(d decimal.Decimal) (Number, error) {
	if d.IsNegative() {
		return Number{}, fmt.Errorf("precise: negative value %s", d.String())
	}
	scaled := d.Shift(Decimals).Round(0)
	n, ok := FromBig(scaled.BigInt())
	if !ok {
		return Number{}, fmt.Errorf("precise: value %s out of range", d.String())
	}
	return n, nil
}

// Parse reads a non-negative decimal string such as "0.5" or "1.25e-3".
func Parse(value string) (Number, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return Number{}, fmt.Errorf("precise: parse %q: %w", value, err)
	}
	return FromDecimal(d)
}

// ParseSigned reads a decimal string that may carry a leading minus sign.
func ParseSigned(value string) (SignedNumber, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return SignedNumber{}, fmt.Errorf("precise: parse %q: %w", value, err)
	}
	n, err := FromDecimal(d.Abs())
	if err != nil {
		return SignedNumber{}, err
	}
	return normalize(SignedNumber{Value: n, Negative: d.IsNegative()}), nil
}

// MustParse is Parse for package-level constants.
func MustParse(value string) Number {
	n, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return n
}

func mustParseSigned(value string) SignedNumber {
	n, err := ParseSigned(value)
	if err != nil {
		panic(err)
	}
	return n
}

// FormatAmount renders a token amount in whole units of a mint with the given
// decimals, e.g. 1500000 with 6 decimals is "1.5".
func FormatAmount(amount uint64, decimals uint8) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals)).String()
}

// ParseAmount converts a whole-unit decimal string into the smallest unit of
// a mint, rejecting values with more precision than the mint carries.
func ParseAmount(value string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("precise: parse amount %q: %w", value, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("precise: negative amount %q", value)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("precise: amount %q exceeds %d decimals", value, decimals)
	}
	raw := scaled.BigInt()
	if !raw.IsUint64() {
		return 0, fmt.Errorf("precise: amount %q out of range", value)
	}
	return raw.Uint64(), nil
}
