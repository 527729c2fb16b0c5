// Package auction implements the Dutch-auction pricer used by the miner,
// franchise rigs, and strategy auctions.
//
// Each sale type pairs with an on-chain contract that defines its decay
// schedule. The schedule is supplied by the caller as DecayParams:
//   - DecayLinear: price falls linearly from initPrice to the floor over one
//     period, then stays at the floor (Miner and Rig contracts, floor 0).
//   - DecayHalving: price halves once per elapsed period, never below the
//     floor.
//
// The pricer is stateless: curves and parameters are passed as arguments.
package auction

import (
	"errors"
	"math/big"

	"github.com/glazecorp/glaze-engine/internal/fixedpoint"
	"github.com/glazecorp/glaze-engine/internal/model"
)

// DecayKind identifies a decay schedule variant.
type DecayKind int

const (
	DecayLinear DecayKind = iota
	DecayHalving
)

// ParseDecayKind accepts "linear" and "halving".
func ParseDecayKind(s string) (DecayKind, error) {
	switch s {
	case "linear":
		return DecayLinear, nil
	case "halving":
		return DecayHalving, nil
	}
	return 0, ErrInvalidDecay
}

func (k DecayKind) String() string {
	switch k {
	case DecayLinear:
		return "linear"
	case DecayHalving:
		return "halving"
	default:
		return "unknown"
	}
}

const (
	// MinerEpochPeriod is the Miner contract's EPOCH_PERIOD.
	MinerEpochPeriod int64 = 60 * 60

	// RigAuctionEpochPeriod is the launchpad's default auction epoch.
	RigAuctionEpochPeriod int64 = 24 * 60 * 60
)

var (
	// ErrInvalidDecay is returned when decay parameters cannot describe a
	// schedule (non-positive period, negative floor, unknown kind).
	ErrInvalidDecay = errors.New("auction: invalid decay parameters")

	// ErrInvalidMultiplier is returned when a next-epoch multiplier is not
	// positive or the min/max bounds are inverted.
	ErrInvalidMultiplier = errors.New("auction: invalid price multiplier bounds")
)

// DecayParams selects the decay schedule of a sale and its constants.
type DecayParams struct {
	Kind   DecayKind
	Period int64    // seconds
	Floor  *big.Int // lowest price the curve reaches; nil means 0
}

// MinerDecay is the Miner contract's schedule: linear to zero over an hour.
func MinerDecay() DecayParams {
	return DecayParams{Kind: DecayLinear, Period: MinerEpochPeriod}
}

// RigAuctionDecay is the launchpad default for rig LP auctions: linear to
// zero over a day.
func RigAuctionDecay() DecayParams {
	return DecayParams{Kind: DecayLinear, Period: RigAuctionEpochPeriod}
}

// MinerPriceMultiplier is the Miner contract's PRICE_MULTIPLIER (2x).
func MinerPriceMultiplier() *big.Int { return fixedpoint.Ether(2) }

// MinerMinInitPrice is the Miner contract's MIN_INIT_PRICE (0.0001 ETH).
func MinerMinInitPrice() *big.Int { return big.NewInt(1e14) }

// Validate reports whether p describes a usable schedule.
func (p DecayParams) Validate() error {
	if p.Period <= 0 {
		return ErrInvalidDecay
	}
	if p.Floor != nil && p.Floor.Sign() < 0 {
		return ErrInvalidDecay
	}
	if p.Kind != DecayLinear && p.Kind != DecayHalving {
		return ErrInvalidDecay
	}
	return nil
}

func (p DecayParams) floor() *big.Int {
	if p.Floor == nil {
		return new(big.Int)
	}
	return p.Floor
}

// Elapsed returns max(0, now - startTime).
func Elapsed(startTime, now int64) int64 {
	if now <= startTime {
		return 0
	}
	return now - startTime
}

// Price returns the effective price of curve at now.
//
// now before the curve's start is clamped to the start, so the result is
// initPrice. Invalid parameters leave the price undecayed rather than fail;
// call Validate when loading configuration.
func Price(curve model.PriceCurve, now int64, p DecayParams) *big.Int {
	init := fixedpoint.Clone(curve.InitPrice)
	if init.Sign() <= 0 {
		return new(big.Int)
	}
	if err := p.Validate(); err != nil {
		return init
	}

	floor := p.floor()
	if init.Cmp(floor) <= 0 {
		return init
	}

	elapsed := Elapsed(curve.StartTime, now)
	var price *big.Int
	switch p.Kind {
	case DecayHalving:
		halvings := elapsed / p.Period
		if halvings >= int64(init.BitLen()) {
			price = new(big.Int)
		} else {
			price = new(big.Int).Rsh(init, uint(halvings))
		}
	default:
		if elapsed >= p.Period {
			return fixedpoint.Clone(floor)
		}
		// initPrice - initPrice * elapsed / period
		drop := new(big.Int).Mul(init, big.NewInt(elapsed))
		drop.Quo(drop, big.NewInt(p.Period))
		price = drop.Sub(init, drop)
	}

	if price.Cmp(floor) < 0 {
		return fixedpoint.Clone(floor)
	}
	return price
}

// TimeToFloor returns the seconds left before curve reaches its floor, or 0
// once it has. Halving curves return the time to the next halving instead,
// since they approach the floor geometrically.
func TimeToFloor(curve model.PriceCurve, now int64, p DecayParams) int64 {
	if p.Validate() != nil {
		return 0
	}
	elapsed := Elapsed(curve.StartTime, now)
	switch p.Kind {
	case DecayHalving:
		if Price(curve, now, p).Cmp(p.floor()) <= 0 {
			return 0
		}
		return p.Period - elapsed%p.Period
	default:
		if elapsed >= p.Period {
			return 0
		}
		return p.Period - elapsed
	}
}

// NextInitPrice computes the starting price of the next epoch after a sale
// at paid:
//
//	next = paid * multiplier / 1e18, clamped to [minInit, maxInit]
//
// multiplier is 18-decimal fixed point (2e18 doubles the price). A nil
// maxInit means no ceiling.
func NextInitPrice(paid, multiplier, minInit, maxInit *big.Int) (*big.Int, error) {
	if multiplier == nil || multiplier.Sign() <= 0 {
		return nil, ErrInvalidMultiplier
	}
	if maxInit != nil && minInit != nil && minInit.Cmp(maxInit) > 0 {
		return nil, ErrInvalidMultiplier
	}

	next := fixedpoint.Mul(paid, multiplier)
	if minInit != nil && next.Cmp(minInit) < 0 {
		next = fixedpoint.Clone(minInit)
	}
	if maxInit != nil && next.Cmp(maxInit) > 0 {
		next = fixedpoint.Clone(maxInit)
	}
	return next, nil
}

// MaxInitPrice is the contracts' ABS_MAX_INIT_PRICE (type(uint192).max).
func MaxInitPrice() *big.Int {
	m := new(big.Int).Lsh(big.NewInt(1), 192)
	return m.Sub(m, big.NewInt(1))
}
