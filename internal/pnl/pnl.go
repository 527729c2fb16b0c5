// Package pnl computes the profit or loss of the current miner holder.
//
// When a holder is displaced, the contract pays them a share of the new
// price. The holder's own entry cost counts only partially as sunk, since
// initPrice already carries the epoch multiplier. Both conventions come
// from the paired economic model and are configuration, not constants:
//
//	pnl = currentPrice * exitDiscountBps / 10000 - entryCost * num / den
package pnl

import (
	"errors"
	"math/big"

	"github.com/glazecorp/glaze-engine/internal/fixedpoint"
)

// ErrInvalidConfig is returned for a discount outside [0, 10000] or a
// non-positive entry-cost denominator.
var ErrInvalidConfig = errors.New("pnl: invalid configuration")

// Config holds the displacement economics.
type Config struct {
	ExitDiscountBps int64 // share of the new price paid to a displaced holder
	EntryCostNum    int64 // fraction of entry cost counted as sunk
	EntryCostDen    int64
}

// DefaultConfig is the miner's model: the displaced holder receives 80% of
// the new price, and half of initPrice counts as sunk.
func DefaultConfig() Config {
	return Config{ExitDiscountBps: 8000, EntryCostNum: 1, EntryCostDen: 2}
}

// Validate reports whether c is usable.
func (c Config) Validate() error {
	if c.ExitDiscountBps < 0 || c.ExitDiscountBps > fixedpoint.BpsDenominator {
		return ErrInvalidConfig
	}
	if c.EntryCostDen <= 0 || c.EntryCostNum < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Result is a signed PNL. Losses are not clamped.
type Result struct {
	Value     *big.Int // signed
	Magnitude *big.Int // |Value|
	IsGain    bool     // Value >= 0
}

// Calculator computes PNL under one Config.
type Calculator struct {
	cfg Config
}

// NewCalculator validates cfg and returns a Calculator.
func NewCalculator(cfg Config) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{cfg: cfg}, nil
}

// Config returns the calculator's configuration.
func (c *Calculator) Config() Config { return c.cfg }

// ExitValue returns what a displaced holder receives at currentPrice.
func (c *Calculator) ExitValue(currentPrice *big.Int) *big.Int {
	return fixedpoint.MulBps(currentPrice, c.cfg.ExitDiscountBps)
}

// SunkCost returns the share of entryCost counted against the holder.
// The denominator is validated positive, so MulDiv cannot fail.
func (c *Calculator) SunkCost(entryCost *big.Int) *big.Int {
	sunk, _ := fixedpoint.MulDiv(entryCost, big.NewInt(c.cfg.EntryCostNum), big.NewInt(c.cfg.EntryCostDen))
	return sunk
}

// Compute returns the PNL for a holder who entered at entryCost when the
// auction currently prices the miner at currentPrice.
func (c *Calculator) Compute(currentPrice, entryCost *big.Int) Result {
	v := fixedpoint.Sub(c.ExitValue(currentPrice), c.SunkCost(entryCost))
	return Result{
		Value:     v,
		Magnitude: fixedpoint.Abs(v),
		IsGain:    v.Sign() >= 0,
	}
}

// Total combines the accrued reward value and the PNL, both in USD.
func Total(accruedUSD, pnlUSD float64) (total float64, isGain bool) {
	total = accruedUSD + pnlUSD
	return total, total >= 0
}

// SignedUSD returns the dollar value of r, negative for losses.
func (r Result) SignedUSD(spot float64) float64 {
	usd := fixedpoint.ToFloat(r.Magnitude) * spot
	if !r.IsGain {
		return -usd
	}
	return usd
}
