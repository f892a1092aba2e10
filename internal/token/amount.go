package token

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Unlimited is the allowance sentinel that TransferFrom never decrements
var Unlimited = new(uint256.Int).SetAllOne()

// CheckedAdd returns a+b or an Overflow error
func CheckedAdd(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, newError(KindOverflow, "%s + %s", a.Dec(), b.Dec())
	}
	return z, nil
}

// CheckedSub returns a-b or an Overflow error on underflow
func CheckedSub(a, b *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, newError(KindOverflow, "%s - %s", a.Dec(), b.Dec())
	}
	return z, nil
}

// ParseAmount parses a base-10 amount
func ParseAmount(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "max") || strings.EqualFold(s, "unlimited") {
		return new(uint256.Int).Set(Unlimited), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

// MustAmount is ParseAmount for constants and tests
func MustAmount(s string) *uint256.Int {
	v, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return v
}

func zero() *uint256.Int {
	return new(uint256.Int)
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
