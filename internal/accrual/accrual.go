// Package accrual computes continuously accruing reward balances (donuts per
// second times elapsed time) and their valuation.
package accrual

import (
	"math/big"

	"github.com/glazecorp/glaze-engine/internal/auction"
	"github.com/glazecorp/glaze-engine/internal/fixedpoint"
	"github.com/glazecorp/glaze-engine/internal/model"
)

// Accrued returns ratePerSecond * max(0, now - startTime). The rate is in
// wei per second, so the product is already in wei.
func Accrued(state model.AccrualState, now int64) *big.Int {
	rate := fixedpoint.Clone(state.RatePerSecond)
	if rate.Sign() <= 0 {
		return new(big.Int)
	}
	elapsed := auction.Elapsed(state.StartTime, now)
	return rate.Mul(rate, big.NewInt(elapsed))
}

// AccruedValue returns (accrued * unitPrice) / 1e18, the accrued balance
// denominated in the unit price's token.
func AccruedValue(accrued, unitPrice *big.Int) *big.Int {
	return fixedpoint.Mul(accrued, unitPrice)
}

// RateValue returns the per-second value of a stream at unitPrice.
func RateValue(ratePerSecond, unitPrice *big.Int) *big.Int {
	return fixedpoint.Mul(ratePerSecond, unitPrice)
}

// USD converts a wei-denominated value into dollars at the given spot price.
// This is the only place accrual math leaves integers.
func USD(valueWei *big.Int, spot float64) float64 {
	return fixedpoint.ToFloat(valueWei) * spot
}

// MinerHalvingPeriod is the Miner contract's HALVING_PERIOD. The contract
// reports the current and next dps itself, so only the boundary is needed.
const MinerHalvingPeriod int64 = 30 * 24 * 60 * 60
