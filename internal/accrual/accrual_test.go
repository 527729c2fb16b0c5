package accrual

import (
	"math"
	"math/big"
	"testing"

	"github.com/glazecorp/glaze-engine/internal/fixedpoint"
	"github.com/glazecorp/glaze-engine/internal/model"
)

func TestAccrued_Scenario(t *testing.T) {
	state := model.AccrualState{RatePerSecond: fixedpoint.Ether(5), StartTime: 1000}
	got := Accrued(state, 1010)
	if got.Cmp(fixedpoint.Ether(50)) != 0 {
		t.Errorf("expected 50e18, got %s", got)
	}
}

func TestAccrued_BeforeStartIsZero(t *testing.T) {
	state := model.AccrualState{RatePerSecond: fixedpoint.Ether(5), StartTime: 1000}
	if got := Accrued(state, 900); got.Sign() != 0 {
		t.Errorf("expected 0 before start, got %s", got)
	}
}

func TestAccrued_Monotonic(t *testing.T) {
	state := model.AccrualState{RatePerSecond: big.NewInt(123456789), StartTime: 50}
	prev := Accrued(state, 0)
	for now := int64(0); now < 10000; now += 13 {
		cur := Accrued(state, now)
		if cur.Cmp(prev) < 0 {
			t.Fatalf("accrual decreased at t=%d: %s < %s", now, cur, prev)
		}
		prev = cur
	}
}

func TestAccrued_NoDriftOverLongDurations(t *testing.T) {
	// 0.1 token/s for ten years is exact.
	rate := new(big.Int).Div(fixedpoint.Scale, big.NewInt(10))
	state := model.AccrualState{RatePerSecond: rate, StartTime: 0}
	tenYears := int64(10 * 365 * 24 * 3600)
	want := new(big.Int).Mul(rate, big.NewInt(tenYears))
	if got := Accrued(state, tenYears); got.Cmp(want) != 0 {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestAccrued_DoesNotMutate(t *testing.T) {
	rate := fixedpoint.Ether(2)
	state := model.AccrualState{RatePerSecond: rate, StartTime: 0}
	a := Accrued(state, 10)
	b := Accrued(state, 10)
	if a.Cmp(b) != 0 || rate.Cmp(fixedpoint.Ether(2)) != 0 {
		t.Errorf("expected pure result, got %s, %s (rate %s)", a, b, rate)
	}
}

func TestAccruedValue(t *testing.T) {
	// 50 DONUT at 0.002 ETH each = 0.1 ETH.
	price := new(big.Int).Div(fixedpoint.Scale, big.NewInt(500))
	got := AccruedValue(fixedpoint.Ether(50), price)
	want := new(big.Int).Div(fixedpoint.Scale, big.NewInt(10))
	if got.Cmp(want) != 0 {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestUSD(t *testing.T) {
	got := USD(fixedpoint.Ether(2), 3500)
	if math.Abs(got-7000) > 1e-9 {
		t.Errorf("expected 7000, got %f", got)
	}
}
