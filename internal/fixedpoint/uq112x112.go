package fixedpoint

import (
	"github.com/holiman/uint256"
)

// ratioBits is the number of fractional bits in a UQ112x112 ratio.
const ratioBits = 112

// maxRatioNumeratorBits bounds the numerator so that num << 112 stays inside
// 256 bits.
const maxRatioNumeratorBits = 256 - ratioBits

// UQ112x112 is an unsigned fixed-point ratio with 112 fractional bits, the
// format used by the pool price accumulators.
type UQ112x112 struct {
	raw uint256.Int
}

// EncodeRatio returns num/den as a UQ112x112 ratio.
func EncodeRatio(num, den *uint256.Int) (UQ112x112, error) {
	if den.IsZero() {
		return UQ112x112{}, ErrDivisionByZero
	}
	if num.BitLen() > maxRatioNumeratorBits {
		return UQ112x112{}, ErrOverflow
	}
	var q UQ112x112
	q.raw.Lsh(num, ratioBits)
	q.raw.Div(&q.raw, den)
	return q, nil
}

// RatioFromRaw reconstructs a ratio from its raw accumulator representation,
// typically the difference of two cumulative readings divided by elapsed time.
func RatioFromRaw(raw *uint256.Int) UQ112x112 {
	var q UQ112x112
	q.raw.Set(raw)
	return q
}

// Raw returns a copy of the underlying 256-bit representation.
func (q UQ112x112) Raw() *uint256.Int {
	return new(uint256.Int).Set(&q.raw)
}

// IsZero reports whether the ratio is zero.
func (q UQ112x112) IsZero() bool {
	return q.raw.IsZero()
}

// MulElapsed returns ratio * elapsed with wrapping semantics. Cumulative
// price consumers difference two readings, so a wrap cancels out.
func (q UQ112x112) MulElapsed(elapsed uint64) *uint256.Int {
	return new(uint256.Int).Mul(&q.raw, uint256.NewInt(elapsed))
}

// MulAmount returns floor(amount * ratio), for quoting one asset in terms of
// the other at this ratio.
func (q UQ112x112) MulAmount(amount *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulDivOverflow(amount, &q.raw, new(uint256.Int).Lsh(uint256.NewInt(1), ratioBits))
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}
