// Package bounds computes the protective limits attached to outgoing
// transactions: minimum swap output, maximum auction price, deadlines, and
// the balance/allowance checks done before asking the user to sign.
package bounds

import (
	"errors"
	"math/big"
	"time"

	"github.com/glazecorp/glaze-engine/internal/fixedpoint"
)

var (
	// ErrInvalidSlippage is returned for a slippage or buffer outside
	// [0, 10000] bps.
	ErrInvalidSlippage = errors.New("bounds: slippage must be in [0, 10000] bps")

	// ErrInsufficientBalance is returned when the spender cannot cover the
	// amount.
	ErrInsufficientBalance = errors.New("bounds: insufficient balance")

	// ErrApprovalRequired is returned when an ERC-20 allowance is below the
	// amount and an approve transaction must come first.
	ErrApprovalRequired = errors.New("bounds: token approval required")
)

const (
	// DefaultSlippageBps is the 1% swap tolerance.
	DefaultSlippageBps int64 = 100

	// SwapDeadline is how long a router swap stays valid.
	SwapDeadline = 30 * time.Minute

	// AuctionDeadline is how long an auction buy stays valid.
	AuctionDeadline = 15 * time.Minute
)

func checkBps(bps int64) error {
	if bps < 0 || bps > fixedpoint.BpsDenominator {
		return ErrInvalidSlippage
	}
	return nil
}

// MinOut returns amountOut * (10000 - slippageBps) / 10000. The result never
// exceeds amountOut.
func MinOut(amountOut *big.Int, slippageBps int64) (*big.Int, error) {
	if err := checkBps(slippageBps); err != nil {
		return nil, err
	}
	return fixedpoint.MulBps(amountOut, fixedpoint.BpsDenominator-slippageBps), nil
}

// MaxPrice returns price * (10000 + bufferBps) / 10000. The result is never
// below price.
func MaxPrice(price *big.Int, bufferBps int64) (*big.Int, error) {
	if err := checkBps(bufferBps); err != nil {
		return nil, err
	}
	return fixedpoint.MulBps(price, fixedpoint.BpsDenominator+bufferBps), nil
}

// NeedsApproval reports whether allowance is below amount.
func NeedsApproval(allowance, amount *big.Int) bool {
	return fixedpoint.Cmp(allowance, amount) < 0
}

// HasSufficientBalance reports whether balance covers amount.
func HasSufficientBalance(balance, amount *big.Int) bool {
	return fixedpoint.Cmp(balance, amount) >= 0
}

// Deadline returns now + ttl as a unix-seconds uint256 argument.
func Deadline(now time.Time, ttl time.Duration) *big.Int {
	return big.NewInt(now.Add(ttl).Unix())
}

// Guard bundles the limits applied to every transaction the terminal builds.
type Guard struct {
	SlippageBps    int64
	PriceBufferBps int64
	SwapTTL        time.Duration
	AuctionTTL     time.Duration
}

// NewGuard validates the limits and fills zero TTLs with the defaults.
func NewGuard(slippageBps, priceBufferBps int64) (*Guard, error) {
	if err := checkBps(slippageBps); err != nil {
		return nil, err
	}
	if err := checkBps(priceBufferBps); err != nil {
		return nil, err
	}
	return &Guard{
		SlippageBps:    slippageBps,
		PriceBufferBps: priceBufferBps,
		SwapTTL:        SwapDeadline,
		AuctionTTL:     AuctionDeadline,
	}, nil
}

// CheckSpend validates that amount can be spent. A nil allowance means a
// native ETH spend, which needs no approval. Balance is checked first.
func (g *Guard) CheckSpend(amount, balance, allowance *big.Int) error {
	if !HasSufficientBalance(balance, amount) {
		return ErrInsufficientBalance
	}
	if allowance != nil && NeedsApproval(allowance, amount) {
		return ErrApprovalRequired
	}
	return nil
}

// SwapMinOut applies the guard's slippage to a quoted output.
func (g *Guard) SwapMinOut(amountOut *big.Int) *big.Int {
	out, _ := MinOut(amountOut, g.SlippageBps)
	return out
}

// AuctionMaxPrice applies the guard's price buffer to a quoted price.
func (g *Guard) AuctionMaxPrice(price *big.Int) *big.Int {
	out, _ := MaxPrice(price, g.PriceBufferBps)
	return out
}
