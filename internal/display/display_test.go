package display

import (
	"math"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/glazecorp/glaze-engine/internal/fixedpoint"
)

func wei(s string) *big.Int {
	v, err := fixedpoint.ParseEther(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		in   string
		p    Profile
		want string
	}{
		{"tiny exponential", "0.000005", Token, "5.00e-6"},
		{"tiny half away from zero", "0.00001235", Token, "1.24e-5"},
		{"tiny mantissa rollover", "0.000099999", Output, "1.00e-4"},
		{"sub unit token", "0.5", Token, "0.500000"},
		{"sub unit balance", "0.12345", Balance, "0.1235"},
		{"unit token", "12.34567", Token, "12.3457"},
		{"unit balance", "12.345", Balance, "12.35"},
		{"thousands abbreviated", "1234.5", Token, "1.23K"},
		{"millions abbreviated", "1234567", Token, "1.23M"},
		{"grouped", "1234567.891", Output, "1,234,567.89"},
		{"grouped trims zeros", "1234.5", Balance, "1,234.5"},
		{"grouped whole", "1000", Output, "1,000"},
		{"balance dust", "0.00005", Balance, "0.00"},
		{"one wei", "0.000000000000000001", Token, "1.00e-18"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(wei(tt.in), tt.p); got != tt.want {
				t.Errorf("Format(%s, %s) = %q, want %q", tt.in, tt.p.Name, got, tt.want)
			}
		})
	}
}

func TestFormat_Negative(t *testing.T) {
	if got := Format(fixedpoint.Neg(wei("1.5")), Token); got != "-1.5000" {
		t.Errorf("expected -1.5000, got %q", got)
	}
	if got := Format(fixedpoint.Neg(wei("0.000005")), Token); got != "-5.00e-6" {
		t.Errorf("expected -5.00e-6, got %q", got)
	}
}

func TestFormat_ZeroAndNil(t *testing.T) {
	for _, p := range []Profile{Token, Output, Balance} {
		if got := Format(nil, p); got != "0" {
			t.Errorf("%s: nil = %q, want \"0\"", p.Name, got)
		}
		if got := Format(big.NewInt(0), p); got != "0" {
			t.Errorf("%s: zero = %q, want \"0\"", p.Name, got)
		}
	}
}

func TestFormatUnits(t *testing.T) {
	// 1.5 USDC at 6 decimals
	if got := FormatUnits(big.NewInt(1_500_000), 6, Token); got != "1.5000" {
		t.Errorf("expected 1.5000, got %q", got)
	}
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0.000005, "5.00e-6"},
		{1234567, "1.23M"},
		{math.NaN(), "0"},
		{math.Inf(1), "0"},
		{math.Inf(-1), "0"},
	}
	for _, tt := range tests {
		if got := FormatFloat(tt.in, Token); got != tt.want {
			t.Errorf("FormatFloat(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEth(t *testing.T) {
	if got := Eth(wei("0.123456"), 5); got != "Ξ0.12346" {
		t.Errorf("expected Ξ0.12346, got %q", got)
	}
	if got := SignedEth(wei("0.12345"), 5); got != "+Ξ0.12345" {
		t.Errorf("expected +Ξ0.12345, got %q", got)
	}
	if got := SignedEth(fixedpoint.Neg(wei("2.2")), 5); got != "-Ξ2.20000" {
		t.Errorf("expected -Ξ2.20000, got %q", got)
	}
	if got := SignedEth(nil, 3); got != "+Ξ0.000" {
		t.Errorf("expected +Ξ0.000 for nil, got %q", got)
	}
}

func TestUSD(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{USD(1.234), "$1.23"},
		{USD(-1.235), "-$1.24"},
		{USD(math.NaN()), "$0.00"},
		{USDDigits(0.00123, 4), "$0.0012"},
		{SignedUSD(5), "+$5.00"},
		{SignedUSD(-0.5), "-$0.50"},
		{SignedUSD(-0.001), "+$0.00"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(decimal.RequireFromString("1.2841965602938701")); got != "1.28" {
		t.Errorf("expected 1.28, got %q", got)
	}
}
