package terminal

import (
	"errors"
	"log/slog"
	"math/big"

	"github.com/glazecorp/glaze-engine/internal/accrual"
	"github.com/glazecorp/glaze-engine/internal/amm"
	"github.com/glazecorp/glaze-engine/internal/auction"
	"github.com/glazecorp/glaze-engine/internal/contracts"
	"github.com/glazecorp/glaze-engine/internal/display"
	"github.com/glazecorp/glaze-engine/internal/epoch"
	"github.com/glazecorp/glaze-engine/internal/fixedpoint"
	"github.com/glazecorp/glaze-engine/internal/metrics"
	"github.com/glazecorp/glaze-engine/internal/model"
	"github.com/glazecorp/glaze-engine/internal/pnl"
)

// ErrNoPool is returned when a snapshot has no pool reserves.
var ErrNoPool = errors.New("terminal: pool reserves unavailable")

// DeriverConfig configures a Deriver.
type DeriverConfig struct {
	Logger        *slog.Logger
	PNL           pnl.Config
	Decay         auction.DecayParams
	HalvingPeriod int64 // seconds

	// Next-epoch pricing. A nil PriceMultiplier disables the next init
	// price; nil bounds mean no clamp on that side.
	PriceMultiplier *big.Int
	MinInitPrice    *big.Int

	// AuctionDecay is the rig LP auction curve. A zero Period means
	// auction.RigAuctionDecay.
	AuctionDecay auction.DecayParams
}

// Deriver turns a snapshot and a timestamp into views. It holds no state
// beyond its configuration, so one snapshot and one timestamp always give
// the same view.
type Deriver struct {
	log           *slog.Logger
	calc          *pnl.Calculator
	decay         auction.DecayParams
	halvingPeriod int64
	multiplier    *big.Int
	minInit       *big.Int
	auctionDecay  auction.DecayParams
}

// NewDeriver validates the pnl and decay settings. A bad halving period is
// accepted and shows up as a placeholder countdown.
func NewDeriver(cfg DeriverConfig) (*Deriver, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	calc, err := pnl.NewCalculator(cfg.PNL)
	if err != nil {
		return nil, err
	}
	if err := cfg.Decay.Validate(); err != nil {
		return nil, err
	}
	if cfg.AuctionDecay.Period == 0 {
		cfg.AuctionDecay = auction.RigAuctionDecay()
	}
	if err := cfg.AuctionDecay.Validate(); err != nil {
		return nil, err
	}
	return &Deriver{
		log:           cfg.Logger,
		calc:          calc,
		decay:         cfg.Decay,
		halvingPeriod: cfg.HalvingPeriod,
		multiplier:    cfg.PriceMultiplier,
		minInit:       cfg.MinInitPrice,
		auctionDecay:  cfg.AuctionDecay,
	}, nil
}

// MinerDeriverConfig returns the Miner contract's constants with the given
// pnl settings.
func MinerDeriverConfig(log *slog.Logger, cfg pnl.Config) DeriverConfig {
	return DeriverConfig{
		Logger:        log,
		PNL:           cfg,
		Decay:         auction.MinerDecay(),
		HalvingPeriod: accrual.MinerHalvingPeriod,

		PriceMultiplier: auction.MinerPriceMultiplier(),
		MinInitPrice:    auction.MinerMinInitPrice(),
	}
}

// NewMinerDeriver returns a Deriver with the Miner contract's constants.
func NewMinerDeriver(log *slog.Logger, cfg pnl.Config) (*Deriver, error) {
	return NewDeriver(MinerDeriverConfig(log, cfg))
}

func (d *Deriver) placeholder(field string, err error) string {
	d.log.Warn("terminal: derivation failed", "field", field, "error", err)
	metrics.DerivationErrors.WithLabelValues(field).Inc()
	return display.Placeholder
}

// Price returns the auction price of m's epoch at now.
func (d *Deriver) Price(m model.MinerState, now int64) *big.Int {
	return auction.Price(m.Curve(), now, d.decay)
}

// TimeToFloor returns the seconds until m's auction price stops falling.
func (d *Deriver) TimeToFloor(m model.MinerState, now int64) int64 {
	return auction.TimeToFloor(m.Curve(), now, d.decay)
}

// Miner derives the full miner view from the snapshot alone. It never
// fails: values that cannot be derived render as display.Placeholder, and
// every USD field does so until the snapshot carries an ETH price.
func (d *Deriver) Miner(snap *model.Snapshot, now int64) model.MinerView {
	m := snap.Miner
	prices := snap.Prices

	price := d.Price(m, now)
	rebate := d.calc.ExitValue(price)
	accrued := accrual.Accrued(m.Accrual(), now)
	accruedValue := accrual.AccruedValue(accrued, m.DonutPrice)
	res := d.calc.Compute(price, m.Cost().EntryPrice)
	dpsValue := accrual.RateValue(m.DPS, m.DonutPrice)

	accruedUSD := accrual.USD(accruedValue, prices.ETH)
	pnlUSD := res.SignedUSD(prices.ETH)
	totalUSD, _ := pnl.Total(accruedUSD, pnlUSD)
	dpsUSD := accrual.USD(dpsValue, prices.ETH)
	donutUSD := accrual.USD(m.DonutPrice, prices.ETH)

	v := model.MinerView{
		SnapshotID:    snap.ID,
		Now:           now,
		EpochID:       m.EpochID,
		Miner:         contracts.Normalize(m.Miner),
		URI:           m.URI,
		CurrentPrice:  price,
		RebatePrice:   rebate,
		NextInitPrice: d.nextInitPrice(price),
		Accrued:       accrued,
		AccruedValue:  accruedValue,
		PNL:           res.Value,
		PNLIsGain:     res.IsGain,
		DPS:           fixedpoint.Clone(m.DPS),
		NextDPS:       fixedpoint.Clone(m.NextDPS),
		AccruedUSD:    accruedUSD,
		PNLUSD:        pnlUSD,
		TotalUSD:      totalUSD,
		DPSUSD:        dpsUSD,
		DonutUSD:      donutUSD,
	}
	v.Display = model.MinerDisplay{
		GlazeTime:     epoch.FormatElapsed(auction.Elapsed(m.StartTime, now)),
		Price:         display.Eth(price, 5),
		RebatePrice:   display.Eth(rebate, 5),
		NextInitPrice: display.Placeholder,
		Accrued:       display.Format(accrued, display.Token),
		AccruedUSD:    display.Placeholder,
		PNL:           display.SignedEth(res.Value, 5),
		PNLUSD:        display.Placeholder,
		Total:         display.Placeholder,
		DPS:           display.Format(m.DPS, display.Token),
		DPSUSD:        display.Placeholder,
		NextDPS:       display.Placeholder,
		NextHalving:   d.nextHalving(snap, now),
		DonutPerETH:   d.donutPerETH(snap),
		DonutUSD:      display.Placeholder,
		ETHBalance:    display.Format(m.ETHBalance, display.Balance),
		DonutBalance:  display.Format(m.DonutBalance, display.Balance),
	}
	if v.NextInitPrice != nil {
		v.Display.NextInitPrice = display.Eth(v.NextInitPrice, 5)
	}
	if m.NextDPS != nil {
		v.Display.NextDPS = display.Format(m.NextDPS, display.Token)
	}
	if prices.ETH > 0 {
		v.Display.AccruedUSD = display.USD(accruedUSD)
		v.Display.PNLUSD = display.SignedUSD(pnlUSD)
		v.Display.Total = display.SignedUSD(totalUSD)
		v.Display.DPSUSD = display.USDDigits(dpsUSD, 4)
		v.Display.DonutUSD = "$" + display.FormatFloat(donutUSD, display.Token)
	}
	return v
}

// nextInitPrice is the init price of the epoch a glaze at price would
// open, or nil when the deriver has no multiplier.
func (d *Deriver) nextInitPrice(price *big.Int) *big.Int {
	if d.multiplier == nil {
		return nil
	}
	next, err := auction.NextInitPrice(price, d.multiplier, d.minInit, auction.MaxInitPrice())
	if err != nil {
		d.placeholder("next_init_price", err)
		return nil
	}
	return next
}

// Auction kinds.
const (
	AuctionRig      = "rig"
	AuctionStrategy = "strategy"
)

// RigAuction derives a rig LP auction at now. The price decays locally on
// the configured curve; the buyer receives the rig's accumulated WETH.
func (d *Deriver) RigAuction(a model.RigAuctionState, now int64) model.AuctionView {
	curve := a.Curve()
	symbol := contracts.Symbol(a.PaymentToken)
	if symbol == "TOKEN" {
		symbol = "LP"
	}
	v := model.AuctionView{
		Kind:           AuctionRig,
		Address:        contracts.Normalize(a.Rig),
		Now:            now,
		EpochID:        a.EpochID,
		Active:         fixedpoint.Cmp(a.WETHAccumulated, nil) > 0,
		PaymentToken:   contracts.Normalize(a.PaymentToken),
		PaymentSymbol:  symbol,
		Price:          auction.Price(curve, now, d.auctionDecay),
		Revenue:        fixedpoint.Clone(a.WETHAccumulated),
		TimeToFloor:    auction.TimeToFloor(curve, now, d.auctionDecay),
		PaymentBalance: fixedpoint.Clone(a.PaymentTokenBalance),
	}
	v.Display = auctionDisplay(v, fixedpoint.Decimals)
	return v
}

// Strategy derives an LSG strategy auction at now from its own on-chain
// period and multiplier. A strategy without a usable period keeps its
// on-chain price.
func (d *Deriver) Strategy(s model.StrategyState, now int64) model.AuctionView {
	curve := s.Curve()
	decay := auction.DecayParams{Kind: auction.DecayLinear, Period: s.EpochPeriod}
	v := model.AuctionView{
		Kind:           AuctionStrategy,
		Address:        contracts.Normalize(s.Strategy),
		Now:            now,
		EpochID:        s.EpochID,
		Active:         s.IsAlive,
		PaymentToken:   contracts.Normalize(s.PaymentToken),
		PaymentSymbol:  contracts.Symbol(s.PaymentToken),
		Price:          fixedpoint.Clone(s.Price),
		Revenue:        fixedpoint.Clone(s.RevenueBalance),
		PaymentBalance: fixedpoint.Clone(s.PaymentTokenBalance),
	}
	if err := decay.Validate(); err != nil {
		d.placeholder("strategy_price", err)
	} else {
		v.Price = auction.Price(curve, now, decay)
		v.TimeToFloor = auction.TimeToFloor(curve, now, decay)
	}
	if s.PriceMultiplier != nil && s.PriceMultiplier.Sign() > 0 {
		next, err := auction.NextInitPrice(v.Price, s.PriceMultiplier, s.MinInitPrice, auction.MaxInitPrice())
		if err != nil {
			d.placeholder("strategy_next_init_price", err)
		} else {
			v.NextInitPrice = next
		}
	}
	v.Display = auctionDisplay(v, int32(s.PaymentTokenDecimals))
	return v
}

func auctionDisplay(v model.AuctionView, decimals int32) model.AuctionDisplay {
	out := model.AuctionDisplay{
		Price:          display.FormatUnits(v.Price, decimals, display.Token) + " " + v.PaymentSymbol,
		Revenue:        display.Format(v.Revenue, display.Token),
		NextDrop:       epoch.FormatCountdown(v.TimeToFloor),
		NextInitPrice:  display.Placeholder,
		PaymentBalance: display.FormatUnits(v.PaymentBalance, decimals, display.Balance),
	}
	if v.NextInitPrice != nil {
		out.NextInitPrice = display.FormatUnits(v.NextInitPrice, decimals, display.Token)
	}
	return out
}

func (d *Deriver) halvingSchedule(snap *model.Snapshot) model.EpochSchedule {
	return model.EpochSchedule{EpochDurationSeconds: d.halvingPeriod, GenesisTime: snap.GenesisTime}
}

func (d *Deriver) nextHalving(snap *model.Snapshot, now int64) string {
	if snap.GenesisTime == 0 {
		return display.Placeholder
	}
	pos, err := epoch.Locate(d.halvingSchedule(snap), now)
	if err != nil {
		return d.placeholder("next_halving", err)
	}
	return epoch.FormatCountdown(pos.Remaining)
}

func (d *Deriver) donutPerETH(snap *model.Snapshot) string {
	if snap.Pool == nil {
		return display.Placeholder
	}
	spot, err := amm.SpotPrice(*snap.Pool)
	if err != nil {
		return d.placeholder("donut_per_eth", err)
	}
	return display.Format(spot, display.Token)
}

// Epoch locates now within the snapshot's halving schedule.
func (d *Deriver) Epoch(snap *model.Snapshot, now int64) (model.EpochView, error) {
	pos, err := epoch.Locate(d.halvingSchedule(snap), now)
	if err != nil {
		return model.EpochView{}, err
	}
	return model.EpochView{
		Index:     pos.Index,
		Remaining: pos.Remaining,
		NextAt:    pos.NextAt,
		Display:   epoch.FormatCountdown(pos.Remaining),
	}, nil
}

// Side is a swap direction through the DONUT/WETH pool.
type Side string

const (
	Buy  Side = "buy"  // ETH -> DONUT
	Sell Side = "sell" // DONUT -> ETH
)

// ParseSide accepts "buy" and "sell"; empty means buy.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case "", Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	}
	return "", errors.New("side must be buy or sell")
}

// Pool returns the snapshot's reserves oriented for side.
func Pool(snap *model.Snapshot, side Side) (model.PoolReserves, error) {
	if snap.Pool == nil {
		return model.PoolReserves{}, ErrNoPool
	}
	return Orient(*snap.Pool, side), nil
}

// Orient turns ETH -> DONUT reserves into the orientation of side.
func Orient(pool model.PoolReserves, side Side) model.PoolReserves {
	if side == Sell {
		return amm.Reverse(pool)
	}
	return pool
}

// SwapQuote renders an amm quote with its slippage floor.
func SwapQuote(q amm.Quote, minOut *big.Int) model.SwapQuote {
	return model.SwapQuote{
		AmountIn:     q.AmountIn,
		AmountOut:    q.AmountOut,
		MinAmountOut: minOut,
		PriceImpact:  display.Percent(q.PriceImpact),
		Display:      display.Format(q.AmountOut, display.Output),
	}
}
