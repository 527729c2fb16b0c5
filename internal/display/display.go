// Package display renders fixed-point amounts as the short strings shown in
// the terminal UI. Every function here is total: bad input renders as "0"
// (or Placeholder at the view layer), never an error.
package display

import (
	"math"
	"math/big"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/glazecorp/glaze-engine/internal/fixedpoint"
)

// Placeholder is shown in place of a value that could not be derived.
const Placeholder = "-"

// Profile selects precision by magnitude. Values below 0.0001 use two-digit
// exponential notation unless Dust is set.
type Profile struct {
	Name          string
	SubUnitDigits int32  // 0.0001 <= v < 1
	UnitDigits    int32  // 1 <= v < 1000
	Abbreviate    bool   // v >= 1000 as "1.23K"/"1.23M" instead of "1,234.5"
	Dust          string // rendering for v < 0.0001; empty means exponential
}

var (
	// Token is used for quoted token amounts.
	Token = Profile{Name: "token", SubUnitDigits: 6, UnitDigits: 4, Abbreviate: true}
	// Output is used for swap output fields.
	Output = Profile{Name: "output", SubUnitDigits: 6, UnitDigits: 4}
	// Balance is used for wallet balances.
	Balance = Profile{Name: "balance", SubUnitDigits: 4, UnitDigits: 2, Dust: "0.00"}
)

var (
	dustThreshold = decimal.New(1, -4)
	one           = decimal.NewFromInt(1)
	thousand      = decimal.NewFromInt(1_000)
	million       = decimal.NewFromInt(1_000_000)
)

// Format renders an 18-decimal amount.
func Format(v *big.Int, p Profile) string {
	return FormatUnits(v, fixedpoint.Decimals, p)
}

// FormatUnits renders an amount with the given number of token decimals.
func FormatUnits(v *big.Int, decimals int32, p Profile) string {
	if v == nil {
		return "0"
	}
	return FormatDecimal(fixedpoint.ToDecimal(v, decimals), p)
}

// FormatFloat renders a float amount. NaN and infinities render as "0".
func FormatFloat(f float64, p Profile) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0"
	}
	return FormatDecimal(decimal.NewFromFloat(f), p)
}

// FormatDecimal renders d according to p. Rounding is half away from zero
// on the exact decimal value.
func FormatDecimal(d decimal.Decimal, p Profile) string {
	if d.IsZero() {
		return "0"
	}
	if d.IsNegative() {
		return "-" + FormatDecimal(d.Neg(), p)
	}

	switch {
	case d.LessThan(dustThreshold):
		if p.Dust != "" {
			return p.Dust
		}
		return exponential(d, 2)
	case d.LessThan(one):
		return d.StringFixed(p.SubUnitDigits)
	case d.LessThan(thousand):
		return d.StringFixed(p.UnitDigits)
	case p.Abbreviate && d.LessThan(million):
		return d.Shift(-3).StringFixed(2) + "K"
	case p.Abbreviate:
		return d.Shift(-6).StringFixed(2) + "M"
	default:
		return grouped(d, 2)
	}
}

// exponential renders positive d as "5.00e-6".
func exponential(d decimal.Decimal, digits int32) string {
	exp := int32(d.NumDigits()) - 1 + d.Exponent()
	mantissa := d.Shift(-exp).Round(digits)
	if mantissa.GreaterThanOrEqual(decimal.NewFromInt(10)) {
		mantissa = mantissa.Shift(-1)
		exp++
	}
	sign := "+"
	if exp < 0 {
		sign = "-"
		exp = -exp
	}
	return mantissa.StringFixed(digits) + "e" + sign + decimal.NewFromInt32(exp).String()
}

// grouped renders positive d with comma thousands separators and at most
// maxFrac fraction digits, trailing zeros dropped.
func grouped(d decimal.Decimal, maxFrac int32) string {
	s := d.Round(maxFrac).String()
	intPart, frac, _ := strings.Cut(s, ".")
	n, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return s
	}
	out := humanize.BigComma(n)
	if frac != "" {
		out += "." + frac
	}
	return out
}

// Eth renders v with a fixed number of digits, "Ξ0.12345".
func Eth(v *big.Int, digits int32) string {
	return "Ξ" + fixedpoint.EtherDecimal(v).StringFixed(digits)
}

// SignedEth renders v with an explicit sign, "+Ξ0.12345" or "-Ξ0.12345".
// Zero is positive.
func SignedEth(v *big.Int, digits int32) string {
	if fixedpoint.IsNegative(v) {
		return "-" + Eth(fixedpoint.Abs(v), digits)
	}
	return "+" + Eth(v, digits)
}

// USD renders f as "$1.23".
func USD(f float64) string {
	return USDDigits(f, 2)
}

// USDDigits renders f as dollars with the given digits. Negative values
// render as "-$1.23".
func USDDigits(f float64, digits int32) string {
	d := usd(f, digits)
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(digits)
	}
	return "$" + d.StringFixed(digits)
}

// SignedUSD renders f as "+$1.23" or "-$1.23". Values that round to zero
// are positive.
func SignedUSD(f float64) string {
	if usd(f, 2).IsNegative() {
		return USD(f)
	}
	return "+" + USD(f)
}

func usd(f float64, digits int32) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f).Round(digits)
}

// Percent renders a percentage with two decimals, "1.28".
func Percent(d decimal.Decimal) string {
	return d.StringFixed(2)
}
