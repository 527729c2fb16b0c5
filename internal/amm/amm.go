// Package amm quotes swaps against a constant-product (x·y = k) pool such as
// the DONUT/WETH Uniswap V2 pair.
//
// All math is truncating integer division on *big.Int, matching the pair
// contract. Quotes are point-in-time: reserves move, so callers re-quote
// right before building a transaction.
package amm

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/glazecorp/glaze-engine/internal/fixedpoint"
	"github.com/glazecorp/glaze-engine/internal/model"
)

var (
	// ErrInsufficientLiquidity is returned when the pool cannot satisfy a
	// quote: a reserve is empty, or the requested output meets or exceeds
	// the output reserve.
	ErrInsufficientLiquidity = errors.New("amm: insufficient liquidity")

	// ErrInvalidFee is returned for a fee outside [0, 10000) bps.
	ErrInvalidFee = errors.New("amm: fee must be in [0, 10000) bps")

	// ErrInvalidAmount is returned for negative swap amounts.
	ErrInvalidAmount = errors.New("amm: amount must not be negative")

	// ImpactScale is the number of decimal places kept in price impact.
	ImpactScale int32 = 18

	bps = big.NewInt(fixedpoint.BpsDenominator)
)

// UniswapV2FeeBps is the V2 pair's 0.3% swap fee.
const UniswapV2FeeBps int64 = 30

func validate(amount, reserveIn, reserveOut *big.Int, feeBps int64) error {
	if feeBps < 0 || feeBps >= fixedpoint.BpsDenominator {
		return ErrInvalidFee
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return ErrInsufficientLiquidity
	}
	return nil
}

// QuoteOut returns the output for swapping amountIn into the pool:
//
//	amountInAfterFee = amountIn * (10000 - feeBps) / 10000
//	amountOut        = amountInAfterFee * reserveOut / (reserveIn + amountInAfterFee)
//
// The fee factor is carried through the fraction and truncated once, as
// the pair contract does (amountIn*997*rOut / (rIn*1000 + amountIn*997)).
func QuoteOut(amountIn, reserveIn, reserveOut *big.Int, feeBps int64) (*big.Int, error) {
	if err := validate(amountIn, reserveIn, reserveOut, feeBps); err != nil {
		return nil, err
	}
	withFee := new(big.Int).Mul(amountIn, big.NewInt(fixedpoint.BpsDenominator-feeBps))
	num := new(big.Int).Mul(withFee, reserveOut)
	den := new(big.Int).Mul(reserveIn, bps)
	den.Add(den, withFee)
	return num.Quo(num, den), nil
}

// QuoteIn returns the input needed to receive amountOut:
//
//	amountIn = reserveIn * amountOut * 10000 / ((reserveOut - amountOut) * (10000 - feeBps)) + 1
//
// The +1 compensates for truncation so QuoteOut(QuoteIn(x)) >= x.
func QuoteIn(amountOut, reserveIn, reserveOut *big.Int, feeBps int64) (*big.Int, error) {
	if err := validate(amountOut, reserveIn, reserveOut, feeBps); err != nil {
		return nil, err
	}
	if amountOut.Cmp(reserveOut) >= 0 {
		return nil, ErrInsufficientLiquidity
	}
	num := new(big.Int).Mul(reserveIn, amountOut)
	num.Mul(num, bps)
	den := new(big.Int).Sub(reserveOut, amountOut)
	den.Mul(den, big.NewInt(fixedpoint.BpsDenominator-feeBps))
	num.Quo(num, den)
	return num.Add(num, big.NewInt(1)), nil
}

// PriceImpact compares the execution price (amountOut/amountIn) with the
// spot price (reserveOut/reserveIn) and returns the shortfall as a
// percentage:
//
//	impact = (1 - executionPrice / spotPrice) * 100, floored at 0
//
// A favorable execution reports zero impact, never negative. Zero amountIn
// or empty reserves report zero.
func PriceImpact(amountIn, amountOut, reserveIn, reserveOut *big.Int) decimal.Decimal {
	if amountIn == nil || amountOut == nil || reserveIn == nil || reserveOut == nil {
		return decimal.Zero
	}
	if amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return decimal.Zero
	}
	// execution / spot = (amountOut * reserveIn) / (amountIn * reserveOut)
	num := new(big.Int).Mul(amountOut, reserveIn)
	den := new(big.Int).Mul(amountIn, reserveOut)
	ratio := decimal.NewFromBigInt(num, 0).DivRound(decimal.NewFromBigInt(den, 0), ImpactScale)

	impact := decimal.NewFromInt(1).Sub(ratio).Mul(decimal.NewFromInt(100))
	if impact.IsNegative() {
		return decimal.Zero
	}
	return impact
}

// Quote is a priced swap against one reserve snapshot.
type Quote struct {
	AmountIn    *big.Int
	AmountOut   *big.Int
	PriceImpact decimal.Decimal
}

// QuoteExactIn prices swapping amountIn through pool.
func QuoteExactIn(pool model.PoolReserves, amountIn *big.Int) (Quote, error) {
	out, err := QuoteOut(amountIn, pool.ReserveIn, pool.ReserveOut, pool.FeeBps)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		AmountIn:    fixedpoint.Clone(amountIn),
		AmountOut:   out,
		PriceImpact: PriceImpact(amountIn, out, pool.ReserveIn, pool.ReserveOut),
	}, nil
}

// QuoteExactOut prices receiving amountOut from pool.
func QuoteExactOut(pool model.PoolReserves, amountOut *big.Int) (Quote, error) {
	in, err := QuoteIn(amountOut, pool.ReserveIn, pool.ReserveOut, pool.FeeBps)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		AmountIn:    in,
		AmountOut:   fixedpoint.Clone(amountOut),
		PriceImpact: PriceImpact(in, amountOut, pool.ReserveIn, pool.ReserveOut),
	}, nil
}

// SpotPrice returns reserveOut / reserveIn in 18-decimal fixed point.
func SpotPrice(pool model.PoolReserves) (*big.Int, error) {
	return fixedpoint.Div(pool.ReserveOut, pool.ReserveIn)
}

// Reverse returns the pool oriented for the opposite swap direction.
func Reverse(pool model.PoolReserves) model.PoolReserves {
	return model.PoolReserves{ReserveIn: pool.ReserveOut, ReserveOut: pool.ReserveIn, FeeBps: pool.FeeBps}
}
