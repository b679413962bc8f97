// Package fixedpoint provides checked unsigned 128-bit arithmetic for
// integer money math. Every multiply of a 64-bit amount by a scale factor
// (basis points, 10^6 share decimals, NAV cents) is carried out in 128 bits
// and narrowed back to 64 bits only where the caller asks for it.
package fixedpoint

import (
	"math"
	"math/big"
	"math/bits"

	"github.com/shopspring/decimal"

	"navfund/pkg/errors"
)

// Uint128 is an unsigned 128-bit integer. The zero value is 0.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

// Max is 2^128 - 1.
var Max = Uint128{Hi: math.MaxUint64, Lo: math.MaxUint64}

// From64 widens v.
func From64(v uint64) Uint128 {
	return Uint128{Lo: v}
}

// Mul64 returns the full 128-bit product a*b. It cannot overflow.
func Mul64(a, b uint64) Uint128 {
	hi, lo := bits.Mul64(a, b)
	return Uint128{Hi: hi, Lo: lo}
}

// MulDiv64 returns floor(a*b/d) with a 128-bit intermediate.
func MulDiv64(a, b, d uint64) (Uint128, error) {
	return Mul64(a, b).Div64(d)
}

// IsZero reports whether x == 0.
func (x Uint128) IsZero() bool {
	return x.Hi == 0 && x.Lo == 0
}

// Cmp returns -1, 0 or +1.
func (x Uint128) Cmp(y Uint128) int {
	switch {
	case x.Hi < y.Hi:
		return -1
	case x.Hi > y.Hi:
		return 1
	case x.Lo < y.Lo:
		return -1
	case x.Lo > y.Lo:
		return 1
	}
	return 0
}

// Add returns x+y or ErrArithmeticOverflow.
func (x Uint128) Add(y Uint128) (Uint128, error) {
	lo, carry := bits.Add64(x.Lo, y.Lo, 0)
	hi, carry := bits.Add64(x.Hi, y.Hi, carry)
	if carry != 0 {
		return Uint128{}, errors.ErrArithmeticOverflow
	}
	return Uint128{Hi: hi, Lo: lo}, nil
}

// Mul64 returns x*m or ErrArithmeticOverflow when the product needs more than 128 bits.
func (x Uint128) Mul64(m uint64) (Uint128, error) {
	loHi, lo := bits.Mul64(x.Lo, m)
	hiHi, hiLo := bits.Mul64(x.Hi, m)
	if hiHi != 0 {
		return Uint128{}, errors.ErrArithmeticOverflow
	}
	hi, carry := bits.Add64(loHi, hiLo, 0)
	if carry != 0 {
		return Uint128{}, errors.ErrArithmeticOverflow
	}
	return Uint128{Hi: hi, Lo: lo}, nil
}

// Div64 returns floor(x/d). Division by zero is reported as ErrArithmeticOverflow,
// the same way checked integer division fails.
func (x Uint128) Div64(d uint64) (Uint128, error) {
	if d == 0 {
		return Uint128{}, errors.Wrap(errors.ErrArithmeticOverflow, "division by zero")
	}
	qHi := x.Hi / d
	r := x.Hi % d
	qLo, _ := bits.Div64(r, x.Lo, d)
	return Uint128{Hi: qHi, Lo: qLo}, nil
}

// Uint64 narrows x or returns ErrArithmeticOverflow when it does not fit.
func (x Uint128) Uint64() (uint64, error) {
	if x.Hi != 0 {
		return 0, errors.ErrArithmeticOverflow
	}
	return x.Lo, nil
}

// Big converts x to a big.Int.
func (x Uint128) Big() *big.Int {
	b := new(big.Int).SetUint64(x.Hi)
	b.Lsh(b, 64)
	return b.Or(b, new(big.Int).SetUint64(x.Lo))
}

// FromBig converts b or returns ErrArithmeticOverflow for negatives and values >= 2^128.
func FromBig(b *big.Int) (Uint128, error) {
	if b.Sign() < 0 || b.BitLen() > 128 {
		return Uint128{}, errors.ErrArithmeticOverflow
	}
	lo := new(big.Int).And(b, new(big.Int).SetUint64(math.MaxUint64))
	hi := new(big.Int).Rsh(b, 64)
	return Uint128{Hi: hi.Uint64(), Lo: lo.Uint64()}, nil
}

// Decimal converts x to an exact integer decimal.
func (x Uint128) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(x.Big(), 0)
}

// String returns the base-10 representation.
func (x Uint128) String() string {
	if x.Hi == 0 {
		return new(big.Int).SetUint64(x.Lo).String()
	}
	return x.Big().String()
}

// MarshalText encodes x as a base-10 string so JSON consumers never lose precision.
func (x Uint128) MarshalText() ([]byte, error) {
	return []byte(x.String()), nil
}

// UnmarshalText parses a base-10 string.
func (x *Uint128) UnmarshalText(text []byte) error {
	b, ok := new(big.Int).SetString(string(text), 10)
	if !ok {
		return errors.Wrapf(errors.ErrInvalidInput, "parse uint128 %q", string(text))
	}
	v, err := FromBig(b)
	if err != nil {
		return err
	}
	*x = v
	return nil
}

// DecimalFromUint64 converts v to an exact integer decimal for NUMERIC columns.
func DecimalFromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

// Uint64FromDecimal converts an integral, non-negative decimal that fits in 64 bits.
func Uint64FromDecimal(d decimal.Decimal) (uint64, error) {
	if d.IsNegative() || !d.Equal(d.Truncate(0)) {
		return 0, errors.Wrapf(errors.ErrInvalidInput, "not a non-negative integer: %s", d.String())
	}
	b := d.BigInt()
	if !b.IsUint64() {
		return 0, errors.ErrArithmeticOverflow
	}
	return b.Uint64(), nil
}
