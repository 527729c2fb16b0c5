// Package fixedpoint implements exact integer math over 18-decimal
// fixed-point values, the "wei" convention used by the on-chain contracts.
//
// Every value is a *big.Int scaled by 10^18. Operations never mutate their
// arguments and always return a freshly allocated result. Division truncates
// toward zero, matching Solidity's unsigned integer division for the
// non-negative operands the contracts use.
package fixedpoint

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits carried by a fixed-point value.
const Decimals = 18

// BpsDenominator is the basis-point denominator (10000 = 100%).
const BpsDenominator = 10000

var (
	// Scale is 10^18, the fixed-point unit.
	Scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

	// ErrDivisionByZero is matched by every DivisionByZero ArithmeticError.
	ErrDivisionByZero = errors.New("fixedpoint: division by zero")

	// ErrOverflow is matched by every Overflow ArithmeticError.
	ErrOverflow = errors.New("fixedpoint: overflow")

	// ErrInvalidAmount is returned by Parse for malformed user input.
	ErrInvalidAmount = errors.New("fixedpoint: invalid amount")

	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// ErrorKind classifies an ArithmeticError.
type ErrorKind int

const (
	DivisionByZero ErrorKind = iota + 1
	Overflow
)

func (k ErrorKind) String() string {
	switch k {
	case DivisionByZero:
		return "DivisionByZero"
	case Overflow:
		return "Overflow"
	default:
		return "Unknown"
	}
}

// ArithmeticError is returned when a single computation cannot produce a
// value. Callers substitute a placeholder and keep rendering.
type ArithmeticError struct {
	Kind ErrorKind
	Op   string
}

func (e *ArithmeticError) Error() string {
	return fmt.Sprintf("fixedpoint: %s in %s", e.Kind, e.Op)
}

// Is lets errors.Is match the package sentinels by kind.
func (e *ArithmeticError) Is(target error) bool {
	switch target {
	case ErrDivisionByZero:
		return e.Kind == DivisionByZero
	case ErrOverflow:
		return e.Kind == Overflow
	}
	return false
}

func divByZero(op string) error {
	return &ArithmeticError{Kind: DivisionByZero, Op: op}
}

// orZero treats nil as zero so callers can pass unset struct fields.
func orZero(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x
}

// Zero returns a new zero value.
func Zero() *big.Int { return new(big.Int) }

// FromInt returns n as a raw (unscaled) integer.
func FromInt(n int64) *big.Int { return big.NewInt(n) }

// Ether returns n whole tokens, i.e. n * 10^18.
func Ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), Scale)
}

// Clone returns a copy of x, or zero for nil.
func Clone(x *big.Int) *big.Int {
	return new(big.Int).Set(orZero(x))
}

// Add returns a + b.
func Add(a, b *big.Int) *big.Int {
	return new(big.Int).Add(orZero(a), orZero(b))
}

// Sub returns a - b. The result may be negative.
func Sub(a, b *big.Int) *big.Int {
	return new(big.Int).Sub(orZero(a), orZero(b))
}

// Mul returns (a * b) / Scale.
func Mul(a, b *big.Int) *big.Int {
	p := new(big.Int).Mul(orZero(a), orZero(b))
	return p.Quo(p, Scale)
}

// Div returns (a * Scale) / b.
func Div(a, b *big.Int) (*big.Int, error) {
	b = orZero(b)
	if b.Sign() == 0 {
		return nil, divByZero("Div")
	}
	n := new(big.Int).Mul(orZero(a), Scale)
	return n.Quo(n, b), nil
}

// MulDiv returns (a * b) / c without intermediate rounding.
func MulDiv(a, b, c *big.Int) (*big.Int, error) {
	c = orZero(c)
	if c.Sign() == 0 {
		return nil, divByZero("MulDiv")
	}
	n := new(big.Int).Mul(orZero(a), orZero(b))
	return n.Quo(n, c), nil
}

// MulBps returns (x * bps) / 10000.
func MulBps(x *big.Int, bps int64) *big.Int {
	n := new(big.Int).Mul(orZero(x), big.NewInt(bps))
	return n.Quo(n, big.NewInt(BpsDenominator))
}

// CheckUint256 returns an Overflow error if x does not fit an on-chain
// uint256 (negative values included).
func CheckUint256(x *big.Int) error {
	x = orZero(x)
	if x.Sign() < 0 || x.Cmp(maxUint256) > 0 {
		return &ArithmeticError{Kind: Overflow, Op: "uint256"}
	}
	return nil
}

// MaxUint256 returns 2^256 - 1.
func MaxUint256() *big.Int { return new(big.Int).Set(maxUint256) }

// IsNegative reports whether x < 0.
func IsNegative(x *big.Int) bool { return orZero(x).Sign() < 0 }

// IsZero reports whether x is zero or nil.
func IsZero(x *big.Int) bool { return orZero(x).Sign() == 0 }

// Abs returns |x|.
func Abs(x *big.Int) *big.Int { return new(big.Int).Abs(orZero(x)) }

// Neg returns -x.
func Neg(x *big.Int) *big.Int { return new(big.Int).Neg(orZero(x)) }

// Min returns the smaller of a and b.
func Min(a, b *big.Int) *big.Int {
	if orZero(a).Cmp(orZero(b)) <= 0 {
		return Clone(a)
	}
	return Clone(b)
}

// Max returns the larger of a and b.
func Max(a, b *big.Int) *big.Int {
	if orZero(a).Cmp(orZero(b)) >= 0 {
		return Clone(a)
	}
	return Clone(b)
}

// Cmp compares a and b, treating nil as zero.
func Cmp(a, b *big.Int) int { return orZero(a).Cmp(orZero(b)) }

// Parse converts a human decimal string ("1.5") into a value with the given
// number of decimals. Fraction digits beyond decimals are truncated, the way
// the auction panel pads or slices user input. Negative input is rejected.
func Parse(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if len(frac) > decimals {
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", decimals-len(frac))

	v, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return v, nil
}

// ParseEther is Parse with 18 decimals.
func ParseEther(s string) (*big.Int, error) { return Parse(s, Decimals) }

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ToDecimal converts a fixed-point value with the given decimals into an
// exact decimal for the formatting boundary.
func ToDecimal(x *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(orZero(x), -decimals)
}

// EtherDecimal is ToDecimal with 18 decimals.
func EtherDecimal(x *big.Int) decimal.Decimal { return ToDecimal(x, Decimals) }

// ToFloat converts a wei value into whole tokens as float64. Only for the
// final display/USD step.
func ToFloat(x *big.Int) float64 {
	return EtherDecimal(x).InexactFloat64()
}
