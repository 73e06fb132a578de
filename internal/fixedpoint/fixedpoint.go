package fixedpoint

import (
	"errors"

	"github.com/holiman/uint256"
)

// BpsDenom is the denominator for basis-point fee math.
const BpsDenom = 10_000

var (
	// ErrOverflow is returned when a checked operation exceeds 256 bits.
	ErrOverflow = errors.New("fixedpoint: overflow")
	// ErrDivisionByZero is returned when a denominator is zero.
	ErrDivisionByZero = errors.New("fixedpoint: division by zero")
)

// CheckedAdd returns x + y or ErrOverflow.
func CheckedAdd(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// CheckedSub returns x - y or ErrOverflow if y > x.
func CheckedSub(x, y *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(x, y)
	if underflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// CheckedMul returns x * y or ErrOverflow.
func CheckedMul(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// MulDiv returns floor(x * y / denom), failing if the final result does not
// fit in 256 bits or denom is zero. The intermediate product is computed at
// full precision, so x * y may exceed 256 bits as long as the quotient fits.
func MulDiv(x, y, denom *uint256.Int) (*uint256.Int, error) {
	if denom.IsZero() {
		return nil, ErrDivisionByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, denom)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// Sqrt returns the integer square root of x, i.e. floor(sqrt(x)).
func Sqrt(x *uint256.Int) *uint256.Int {
	return new(uint256.Int).Sqrt(x)
}

// BpsMul returns floor(amount * bps / 10_000).
func BpsMul(amount *uint256.Int, bps uint64) (*uint256.Int, error) {
	return MulDiv(amount, uint256.NewInt(bps), uint256.NewInt(BpsDenom))
}

// Min returns the smaller of x and y.
func Min(x, y *uint256.Int) *uint256.Int {
	if x.Cmp(y) <= 0 {
		return x
	}
	return y
}
