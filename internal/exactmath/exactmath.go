// Package exactmath provides checked unsigned arithmetic over big integers.
//
// All values are treated as 256-bit unsigned words: results above 2^256-1
// overflow, results below zero underflow, and a zero divisor is rejected.
// Callers never receive partially computed values; every operation returns
// either a fresh result or an error.
package exactmath

import (
	"errors"
	"math/big"
)

var (
	ErrOverflow      = errors.New("arithmetic overflow")
	ErrUnderflow     = errors.New("arithmetic underflow")
	ErrDivideByZero  = errors.New("division by zero")
	ErrNegativeInput = errors.New("negative input")
)

// maxUint256 is 2^256 - 1, the largest representable word.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// unitFactor is 10^18, the fixed-point scale shared by token amounts.
var unitFactor = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func checkInputs(values ...*big.Int) error {
	for _, v := range values {
		if v == nil || v.Sign() < 0 {
			return ErrNegativeInput
		}
	}
	return nil
}

// Add returns a+b, failing with ErrOverflow past 2^256-1.
func Add(a, b *big.Int) (*big.Int, error) {
	if err := checkInputs(a, b); err != nil {
		return nil, err
	}
	sum := new(big.Int).Add(a, b)
	if sum.Cmp(maxUint256) > 0 {
		return nil, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b, failing with ErrUnderflow when b exceeds a.
func Sub(a, b *big.Int) (*big.Int, error) {
	if err := checkInputs(a, b); err != nil {
		return nil, err
	}
	if a.Cmp(b) < 0 {
		return nil, ErrUnderflow
	}
	return new(big.Int).Sub(a, b), nil
}

// Mul returns a*b, failing with ErrOverflow past 2^256-1.
func Mul(a, b *big.Int) (*big.Int, error) {
	if err := checkInputs(a, b); err != nil {
		return nil, err
	}
	prod := new(big.Int).Mul(a, b)
	if prod.Cmp(maxUint256) > 0 {
		return nil, ErrOverflow
	}
	return prod, nil
}

// Div returns a/b truncated toward zero, failing with ErrDivideByZero.
func Div(a, b *big.Int) (*big.Int, error) {
	if err := checkInputs(a, b); err != nil {
		return nil, err
	}
	if b.Sign() == 0 {
		return nil, ErrDivideByZero
	}
	return new(big.Int).Quo(a, b), nil
}

// Mod returns a mod b, failing with ErrDivideByZero.
func Mod(a, b *big.Int) (*big.Int, error) {
	if err := checkInputs(a, b); err != nil {
		return nil, err
	}
	if b.Sign() == 0 {
		return nil, ErrDivideByZero
	}
	return new(big.Int).Rem(a, b), nil
}

// Scale18 returns x*10^18, the whole-token to base-unit conversion.
func Scale18(x *big.Int) (*big.Int, error) {
	return Mul(x, unitFactor)
}

// Pow10 returns 10^n for small fixed-point exponents.
func Pow10(n uint) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
