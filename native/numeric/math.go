package numeric

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	// ErrOverflow is returned when a checked addition or multiplication
	// exceeds 256 bits.
	ErrOverflow = errors.New("numeric: overflow")
	// ErrUnderflow is returned when a checked subtraction would wrap below
	// zero. Balances never go negative; callers must abort on this error.
	ErrUnderflow = errors.New("numeric: underflow")
	// ErrDivideByZero is returned when a checked division has a zero divisor.
	ErrDivideByZero = errors.New("numeric: divide by zero")
)

// MustU256 parses a decimal constant, panicking on malformed input. Reserved
// for package-level constants.
func MustU256(dec string) *uint256.Int {
	v, err := uint256.FromDecimal(dec)
	if err != nil {
		panic("numeric: invalid constant " + dec)
	}
	return v
}

// U64 lifts a uint64 into a uint256.
func U64(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

// Clone returns a defensive copy, mapping nil to zero.
func Clone(v *uint256.Int) *uint256.Int {
	if v == nil {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(v)
}

// Add returns a+b or ErrOverflow.
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	sum, carry := new(uint256.Int).AddOverflow(a, b)
	if carry {
		return nil, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b or ErrUnderflow.
func Sub(a, b *uint256.Int) (*uint256.Int, error) {
	diff, borrow := new(uint256.Int).SubOverflow(a, b)
	if borrow {
		return nil, ErrUnderflow
	}
	return diff, nil
}

// Mul returns a*b or ErrOverflow.
func Mul(a, b *uint256.Int) (*uint256.Int, error) {
	prod, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return prod, nil
}

// Div returns a/b truncated toward zero, or ErrDivideByZero. Truncation is
// deliberate everywhere this package is used; see the allocation formula.
func Div(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, ErrDivideByZero
	}
	return new(uint256.Int).Div(a, b), nil
}

// MulDiv returns a*b/c with the intermediate product checked at 256 bits.
func MulDiv(a, b, c *uint256.Int) (*uint256.Int, error) {
	prod, err := Mul(a, b)
	if err != nil {
		return nil, err
	}
	return Div(prod, c)
}

// Sqrt returns the integer square root of v (floor).
func Sqrt(v *uint256.Int) *uint256.Int {
	return new(uint256.Int).Sqrt(v)
}
