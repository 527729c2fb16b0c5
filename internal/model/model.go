// Package model defines the value types shared across the terminal engine.
// All token quantities are *big.Int fixed-point values scaled by 10^18,
// never float64 for money. Values are treated as immutable: derivation
// functions read them and return new values.
package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PriceCurve is one decaying-price sale instance. A new epoch produces a new
// PriceCurve; an existing one is never mutated.
type PriceCurve struct {
	InitPrice *big.Int `json:"init_price"`
	StartTime int64    `json:"start_time"` // unix seconds
	EpochID   uint64   `json:"epoch_id"`
}

// AccrualState is a linear reward stream. Replaced wholesale when the miner
// changes hands.
type AccrualState struct {
	RatePerSecond *big.Int `json:"rate_per_second"` // dps, wei per second
	StartTime     int64    `json:"start_time"`
}

// PositionCost is the cost basis of the current holder.
type PositionCost struct {
	EntryPrice *big.Int `json:"entry_price"`
}

// PoolReserves is a point-in-time read of a constant-product pool, oriented
// for a single swap direction.
type PoolReserves struct {
	ReserveIn  *big.Int `json:"reserve_in"`
	ReserveOut *big.Int `json:"reserve_out"`
	FeeBps     int64    `json:"fee_bps"` // 30 = 0.3%
}

// EpochSchedule defines fixed-length epoch (halving) boundaries.
type EpochSchedule struct {
	EpochDurationSeconds int64 `json:"epoch_duration_seconds"`
	GenesisTime          int64 `json:"genesis_time"`
}

// MinerState mirrors the multicall getMiner struct.
type MinerState struct {
	EpochID      uint64         `json:"epoch_id"`
	InitPrice    *big.Int       `json:"init_price"`
	StartTime    int64          `json:"start_time"`
	Glazed       *big.Int       `json:"glazed"`
	Price        *big.Int       `json:"price"`
	DPS          *big.Int       `json:"dps"`
	NextDPS      *big.Int       `json:"next_dps"`
	DonutPrice   *big.Int       `json:"donut_price"` // ETH per DONUT, wei
	Miner        common.Address `json:"miner"`
	URI          string         `json:"uri"`
	ETHBalance   *big.Int       `json:"eth_balance"`
	WETHBalance  *big.Int       `json:"weth_balance"`
	DonutBalance *big.Int       `json:"donut_balance"`
}

// Curve returns the price curve of the current epoch.
func (m MinerState) Curve() PriceCurve {
	return PriceCurve{InitPrice: m.InitPrice, StartTime: m.StartTime, EpochID: m.EpochID}
}

// Accrual returns the reward stream of the current holder.
func (m MinerState) Accrual() AccrualState {
	return AccrualState{RatePerSecond: m.DPS, StartTime: m.StartTime}
}

// Cost returns the cost basis used for PNL: the epoch's initPrice. The
// share of it that counts as sunk is a pnl.Config setting.
func (m MinerState) Cost() PositionCost {
	return PositionCost{EntryPrice: m.InitPrice}
}

// RigAuctionState mirrors the launchpad multicall getAuction struct: a
// Dutch auction selling the WETH a rig has accumulated for its LP token.
type RigAuctionState struct {
	Rig                 common.Address `json:"rig"`
	EpochID             uint64         `json:"epoch_id"`
	InitPrice           *big.Int       `json:"init_price"`
	StartTime           int64          `json:"start_time"`
	PaymentToken        common.Address `json:"payment_token"`
	Price               *big.Int       `json:"price"` // on-chain price at the read block
	PaymentTokenPrice   *big.Int       `json:"payment_token_price"`
	WETHAccumulated     *big.Int       `json:"weth_accumulated"`
	WETHBalance         *big.Int       `json:"weth_balance"`
	DonutBalance        *big.Int       `json:"donut_balance"`
	PaymentTokenBalance *big.Int       `json:"payment_token_balance"`
}

// Curve returns the price curve of the auction's current epoch.
func (a RigAuctionState) Curve() PriceCurve {
	return PriceCurve{InitPrice: a.InitPrice, StartTime: a.StartTime, EpochID: a.EpochID}
}

// StrategyState is one entry of the LSG multicall getAllStrategiesData
// list. Each strategy runs its own Dutch auction over its revenue balance.
type StrategyState struct {
	Strategy             common.Address `json:"strategy"`
	PaymentToken         common.Address `json:"payment_token"`
	IsAlive              bool           `json:"is_alive"`
	PaymentTokenDecimals uint8          `json:"payment_token_decimals"`
	VotePercent          *big.Int       `json:"vote_percent"`
	EpochPeriod          int64          `json:"epoch_period"`
	PriceMultiplier      *big.Int       `json:"price_multiplier"`
	MinInitPrice         *big.Int       `json:"min_init_price"`
	EpochID              uint64         `json:"epoch_id"`
	InitPrice            *big.Int       `json:"init_price"`
	StartTime            int64          `json:"start_time"`
	Price                *big.Int       `json:"price"`
	RevenueBalance       *big.Int       `json:"revenue_balance"`
	PaymentTokenBalance  *big.Int       `json:"payment_token_balance"`
}

// Curve returns the price curve of the strategy's current epoch.
func (s StrategyState) Curve() PriceCurve {
	return PriceCurve{InitPrice: s.InitPrice, StartTime: s.StartTime, EpochID: s.EpochID}
}

// AuctionView is the derived state of a rig or strategy auction at one
// instant.
type AuctionView struct {
	Kind           string   `json:"kind"` // "rig" or "strategy"
	Address        string   `json:"address"`
	Now            int64    `json:"now"`
	EpochID        uint64   `json:"epoch_id"`
	Active         bool     `json:"active"`
	PaymentToken   string   `json:"payment_token"`
	PaymentSymbol  string   `json:"payment_symbol"`
	Price          *big.Int `json:"price"`   // payment token, decayed to now
	Revenue        *big.Int `json:"revenue"` // what the buyer receives
	TimeToFloor    int64    `json:"time_to_floor"`
	NextInitPrice  *big.Int `json:"next_init_price,omitempty"`
	PaymentBalance *big.Int `json:"payment_balance"`

	Display AuctionDisplay `json:"display"`
}

// AuctionDisplay holds the formatted strings for an AuctionView.
type AuctionDisplay struct {
	Price          string `json:"price"`
	Revenue        string `json:"revenue"`
	NextDrop       string `json:"next_drop"`
	NextInitPrice  string `json:"next_init_price"`
	PaymentBalance string `json:"payment_balance"`
}

// Prices are USD spot prices. A zero field means upstream had no value.
type Prices struct {
	ETH       float64   `json:"eth"`
	BTC       float64   `json:"btc"`
	QR        float64   `json:"qr"`
	FetchedAt time.Time `json:"fetched_at"`
	Stale     bool      `json:"stale,omitempty"`
}

// Snapshot is one consistent read of on-chain state. Each poll produces a
// new Snapshot that replaces the previous one atomically.
type Snapshot struct {
	ID          string        `json:"id"`
	Miner       MinerState    `json:"miner"`
	Pool        *PoolReserves `json:"pool,omitempty"` // ETH -> DONUT orientation
	GenesisTime int64         `json:"genesis_time"`   // miner contract start, for halvings
	Prices      Prices        `json:"prices"`         // zero until the oracle first answers
	FetchedAt   time.Time     `json:"fetched_at"`
}

// GlazeRecord is an immutable history row written when a new epoch is
// observed. Once created, these are never modified or deleted.
type GlazeRecord struct {
	ID         string    `json:"id" db:"id"`
	EpochID    uint64    `json:"epoch_id" db:"epoch_id"`
	Miner      string    `json:"miner" db:"miner"`
	URI        string    `json:"uri" db:"uri"`
	InitPrice  *big.Int  `json:"init_price" db:"init_price"`
	StartTime  int64     `json:"start_time" db:"start_time"`
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
}

// MinerView is the derived, display-ready state of the miner at one instant.
type MinerView struct {
	SnapshotID string `json:"snapshot_id"`
	Now        int64  `json:"now"`
	EpochID    uint64 `json:"epoch_id"`
	Miner      string `json:"miner"`
	URI        string `json:"uri"`

	CurrentPrice  *big.Int `json:"current_price"`
	RebatePrice   *big.Int `json:"rebate_price"`              // what a displaced holder receives
	NextInitPrice *big.Int `json:"next_init_price,omitempty"` // init price of the epoch a glaze now would open
	Accrued       *big.Int `json:"accrued"`
	AccruedValue  *big.Int `json:"accrued_value"` // in ETH wei
	PNL           *big.Int `json:"pnl"`
	PNLIsGain     bool     `json:"pnl_is_gain"`
	DPS           *big.Int `json:"dps"`
	NextDPS       *big.Int `json:"next_dps"`

	AccruedUSD float64 `json:"accrued_usd"`
	PNLUSD     float64 `json:"pnl_usd"`
	TotalUSD   float64 `json:"total_usd"`
	DPSUSD     float64 `json:"dps_usd"`
	DonutUSD   float64 `json:"donut_usd"`

	Display MinerDisplay `json:"display"`
}

// MinerDisplay holds the formatted strings for a MinerView.
type MinerDisplay struct {
	GlazeTime     string `json:"glaze_time"`
	Price         string `json:"price"`
	RebatePrice   string `json:"rebate_price"`
	NextInitPrice string `json:"next_init_price"`
	Accrued       string `json:"accrued"`
	AccruedUSD    string `json:"accrued_usd"`
	PNL           string `json:"pnl"`
	PNLUSD        string `json:"pnl_usd"`
	Total         string `json:"total"`
	DPS           string `json:"dps"`
	DPSUSD        string `json:"dps_usd"`
	NextDPS       string `json:"next_dps"`
	NextHalving   string `json:"next_halving"`
	DonutPerETH   string `json:"donut_per_eth"`
	DonutUSD      string `json:"donut_usd"`
	ETHBalance    string `json:"eth_balance"`
	DonutBalance  string `json:"donut_balance"`
}

// EpochView describes where a timestamp falls within an EpochSchedule.
type EpochView struct {
	Index     int64  `json:"index"`
	Remaining int64  `json:"remaining_seconds"`
	NextAt    int64  `json:"next_at"`
	Display   string `json:"display"`
}

// SwapQuote is a constant-product quote ready for transaction building.
type SwapQuote struct {
	AmountIn     *big.Int `json:"amount_in"`
	AmountOut    *big.Int `json:"amount_out"`
	MinAmountOut *big.Int `json:"min_amount_out"`
	PriceImpact  string   `json:"price_impact"` // percentage, e.g. "0.99"
	Display      string   `json:"display"`
}
