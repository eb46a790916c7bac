// Package amount provides overflow-checked 256-bit quantities.
//
// Every token, capital and burn quantity in a campaign is an Amount in the
// asset's base unit. Arithmetic never wraps: each operation that can leave
// the [0, 2^256) range returns ErrOverflow or ErrUnderflow instead. Division
// always floors.
//
// Percentages are integers over Pct100, so 5% is 50_000.
package amount

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Percentage base units.
const (
	Pct100 = 1_000_000
	Pct10  = 100_000
)

var (
	ErrOverflow       = errors.New("amount overflow")
	ErrUnderflow      = errors.New("amount underflow")
	ErrDivisionByZero = errors.New("amount division by zero")
	ErrInvalid        = errors.New("invalid amount")
)

// Amount is a non-negative 256-bit integer. The zero value is 0.
//
// Amount has value semantics; methods never mutate the receiver.
type Amount struct {
	v uint256.Int
}

// Zero is the zero amount.
var Zero Amount

// New returns n as an Amount.
func New(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// FromUint256 copies x into an Amount.
func FromUint256(x *uint256.Int) Amount {
	var a Amount
	a.v.Set(x)
	return a
}

// FromBytes32 interprets b as a big-endian 256-bit integer.
func FromBytes32(b [32]byte) Amount {
	var a Amount
	a.v.SetBytes32(b[:])
	return a
}

// Unit returns 10^decimals, the base-unit size of one whole token.
func Unit(decimals uint8) Amount {
	var a Amount
	a.v.Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
	return a
}

// ParseBase parses a base-unit decimal integer string such as "1500000".
func ParseBase(s string) (Amount, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q: %v", ErrInvalid, s, err)
	}
	return FromUint256(v), nil
}

// MustParseBase is like ParseBase but panics on error.
// Use only in tests or for constants.
func MustParseBase(s string) Amount {
	a, err := ParseBase(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Parse parses a human-readable decimal such as "1.5" into base units of
// an asset with the given decimals. Fractions finer than the asset's
// precision are rejected rather than rounded.
func Parse(s string, decimals uint8) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q: %v", ErrInvalid, s, err)
	}
	if d.IsNegative() {
		return Zero, fmt.Errorf("%w: %q is negative", ErrInvalid, s)
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return Zero, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalid, s, decimals)
	}
	v, overflow := uint256.FromBig(shifted.BigInt())
	if overflow {
		return Zero, fmt.Errorf("%w: %q", ErrOverflow, s)
	}
	return FromUint256(v), nil
}

// MustParse is like Parse but panics on error.
// Use only in tests or for constants.
func MustParse(s string, decimals uint8) Amount {
	a, err := Parse(s, decimals)
	if err != nil {
		panic(err)
	}
	return a
}

// Format renders a in whole units of an asset with the given decimals,
// trimming trailing zeros ("1.9", "0.05", "1000").
func (a Amount) Format(decimals uint8) string {
	return decimal.NewFromBigInt(a.v.ToBig(), -int32(decimals)).String()
}

// String returns the base-unit decimal representation.
func (a Amount) String() string {
	return a.v.Dec()
}

// Big returns a as a new big.Int.
func (a Amount) Big() *big.Int {
	return a.v.ToBig()
}

// Uint64 returns a as a uint64 and whether it fit.
func (a Amount) Uint64() (uint64, bool) {
	return a.v.Uint64(), a.v.IsUint64()
}

// IsZero reports whether a == 0.
func (a Amount) IsZero() bool { return a.v.IsZero() }

// Cmp returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

// Lt reports a < b.
func (a Amount) Lt(b Amount) bool { return a.v.Lt(&b.v) }

// Gt reports a > b.
func (a Amount) Gt(b Amount) bool { return a.v.Gt(&b.v) }

// Eq reports a == b.
func (a Amount) Eq(b Amount) bool { return a.v.Eq(&b.v) }

// Add returns a + b.
func (a Amount) Add(b Amount) (Amount, error) {
	var z Amount
	if _, overflow := z.v.AddOverflow(&a.v, &b.v); overflow {
		return Zero, ErrOverflow
	}
	return z, nil
}

// Sub returns a - b, or ErrUnderflow when b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	var z Amount
	if _, underflow := z.v.SubOverflow(&a.v, &b.v); underflow {
		return Zero, ErrUnderflow
	}
	return z, nil
}

// SatSub returns a - b, or zero when b > a.
func (a Amount) SatSub(b Amount) Amount {
	if b.Gt(a) {
		return Zero
	}
	var z Amount
	z.v.Sub(&a.v, &b.v)
	return z
}

// Mul returns a * b.
func (a Amount) Mul(b Amount) (Amount, error) {
	var z Amount
	if _, overflow := z.v.MulOverflow(&a.v, &b.v); overflow {
		return Zero, ErrOverflow
	}
	return z, nil
}

// Div returns floor(a / b).
func (a Amount) Div(b Amount) (Amount, error) {
	if b.IsZero() {
		return Zero, ErrDivisionByZero
	}
	var z Amount
	z.v.Div(&a.v, &b.v)
	return z, nil
}

// Mod returns a mod b.
func (a Amount) Mod(b Amount) (Amount, error) {
	if b.IsZero() {
		return Zero, ErrDivisionByZero
	}
	var z Amount
	z.v.Mod(&a.v, &b.v)
	return z, nil
}

// Sqrt returns floor(sqrt(a)).
func (a Amount) Sqrt() Amount {
	var z Amount
	z.v.Sqrt(&a.v)
	return z
}

// MulDiv returns floor(x * y / d) using a 512-bit intermediate, so the
// product may exceed 256 bits as long as the quotient does not.
func MulDiv(x, y, d Amount) (Amount, error) {
	if d.IsZero() {
		return Zero, ErrDivisionByZero
	}
	var z Amount
	if _, overflow := z.v.MulDivOverflow(&x.v, &y.v, &d.v); overflow {
		return Zero, ErrOverflow
	}
	return z, nil
}

// Percent returns floor(a * pct / Pct100).
func (a Amount) Percent(pct uint64) (Amount, error) {
	return MulDiv(a, New(pct), New(Pct100))
}

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if b.Lt(a) {
		return b
	}
	return a
}

// Max returns the larger of a and b.
func Max(a, b Amount) Amount {
	if b.Gt(a) {
		return b
	}
	return a
}

// Sum adds all xs, failing on the first overflow.
func Sum(xs ...Amount) (Amount, error) {
	total := Zero
	for _, x := range xs {
		var err error
		if total, err = total.Add(x); err != nil {
			return Zero, err
		}
	}
	return total, nil
}

// MarshalText encodes a as a base-unit decimal string.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.v.Dec()), nil
}

// UnmarshalText decodes a base-unit decimal string.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseBase(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
