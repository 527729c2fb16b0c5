package bounds

import (
	"math/big"
	"testing"
	"time"

	"github.com/glazecorp/glaze-engine/internal/fixedpoint"
)

func TestMinOut(t *testing.T) {
	out, err := MinOut(big.NewInt(19743160687941225), DefaultSlippageBps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 19743160687941225 * 9900 / 10000, truncated
	if out.Cmp(big.NewInt(19545729081061812)) != 0 {
		t.Errorf("expected 19545729081061812, got %s", out)
	}
}

func TestMinOut_NeverExceedsOut(t *testing.T) {
	for _, bps := range []int64{0, 1, 50, 100, 9999, 10000} {
		for _, amt := range []int64{0, 1, 7, 10_001, 1 << 40} {
			out, err := MinOut(big.NewInt(amt), bps)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out.Cmp(big.NewInt(amt)) > 0 {
				t.Errorf("MinOut(%d, %d) = %s exceeds input", amt, bps, out)
			}
		}
	}
}

func TestMaxPrice_NeverBelowPrice(t *testing.T) {
	for _, bps := range []int64{0, 1, 500, 10000} {
		for _, p := range []int64{0, 1, 3, 999_999, 1 << 50} {
			got, err := MaxPrice(big.NewInt(p), bps)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Cmp(big.NewInt(p)) < 0 {
				t.Errorf("MaxPrice(%d, %d) = %s below price", p, bps, got)
			}
		}
	}
	got, _ := MaxPrice(fixedpoint.Ether(2), 500)
	want, _ := fixedpoint.ParseEther("2.1")
	if got.Cmp(want) != 0 {
		t.Errorf("expected 2.1e18, got %s", got)
	}
}

func TestInvalidSlippage(t *testing.T) {
	for _, bps := range []int64{-1, 10001} {
		if _, err := MinOut(big.NewInt(1), bps); err != ErrInvalidSlippage {
			t.Errorf("MinOut bps=%d: expected ErrInvalidSlippage, got %v", bps, err)
		}
		if _, err := MaxPrice(big.NewInt(1), bps); err != ErrInvalidSlippage {
			t.Errorf("MaxPrice bps=%d: expected ErrInvalidSlippage, got %v", bps, err)
		}
		if _, err := NewGuard(bps, 0); err != ErrInvalidSlippage {
			t.Errorf("NewGuard bps=%d: expected ErrInvalidSlippage, got %v", bps, err)
		}
	}
}

func TestApprovalAndBalance(t *testing.T) {
	if !NeedsApproval(big.NewInt(5), big.NewInt(6)) {
		t.Error("allowance 5 < 6 should need approval")
	}
	if NeedsApproval(big.NewInt(6), big.NewInt(6)) {
		t.Error("allowance equal to amount should not need approval")
	}
	if !NeedsApproval(nil, big.NewInt(1)) {
		t.Error("missing allowance should need approval")
	}
	if !HasSufficientBalance(big.NewInt(6), big.NewInt(6)) {
		t.Error("equal balance should be sufficient")
	}
	if HasSufficientBalance(big.NewInt(5), big.NewInt(6)) {
		t.Error("balance 5 < 6 should be insufficient")
	}
}

func TestDeadline(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	if got := Deadline(now, SwapDeadline).Int64(); got != 1_700_001_800 {
		t.Errorf("expected 1700001800, got %d", got)
	}
}

func TestGuard_CheckSpend(t *testing.T) {
	g, err := NewGuard(DefaultSlippageBps, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tests := []struct {
		name      string
		amount    int64
		balance   int64
		allowance *big.Int
		want      error
	}{
		{"native ok", 10, 10, nil, nil},
		{"native short", 10, 9, nil, ErrInsufficientBalance},
		{"token ok", 10, 20, big.NewInt(10), nil},
		{"token needs approval", 10, 20, big.NewInt(9), ErrApprovalRequired},
		{"balance checked first", 10, 9, big.NewInt(0), ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.CheckSpend(big.NewInt(tt.amount), big.NewInt(tt.balance), tt.allowance)
			if err != tt.want {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestGuard_Apply(t *testing.T) {
	g, _ := NewGuard(100, 500)
	if got := g.SwapMinOut(big.NewInt(10000)); got.Int64() != 9900 {
		t.Errorf("expected 9900, got %s", got)
	}
	if got := g.AuctionMaxPrice(big.NewInt(10000)); got.Int64() != 10500 {
		t.Errorf("expected 10500, got %s", got)
	}
}
