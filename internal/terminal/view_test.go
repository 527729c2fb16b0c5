package terminal

import (
	"math"
	"math/big"
	"reflect"
	"testing"

	"github.com/glazecorp/glaze-engine/internal/auction"
	"github.com/glazecorp/glaze-engine/internal/display"
	"github.com/glazecorp/glaze-engine/internal/fixedpoint"
	"github.com/glazecorp/glaze-engine/internal/model"
	"github.com/glazecorp/glaze-engine/internal/pnl"
)

func testSnapshot() *model.Snapshot {
	r := newFakeReader()
	pool := model.PoolReserves{
		ReserveIn:  fixedpoint.Ether(10),
		ReserveOut: fixedpoint.Ether(10_000),
		FeeBps:     30,
	}
	m := r.miner
	m.ETHBalance = big.NewInt(15e17)
	m.DonutBalance = nil
	return &model.Snapshot{
		ID:          "snap-1",
		Miner:       m,
		Pool:        &pool,
		GenesisTime: 1000,
		Prices:      model.Prices{ETH: 2000},
	}
}

func TestDeriver_Miner(t *testing.T) {
	d := testDeriver(t)
	// Half way through the hour-long linear decay of a 6 ETH epoch.
	v := d.Miner(testSnapshot(), 2800)

	if v.SnapshotID != "snap-1" || v.EpochID != 1 || v.Now != 2800 {
		t.Errorf("unexpected identity fields: %+v", v)
	}
	checks := []struct {
		name string
		got  *big.Int
		want *big.Int
	}{
		{"price", v.CurrentPrice, fixedpoint.Ether(3)},
		{"rebate", v.RebatePrice, big.NewInt(24e17)},
		{"accrued", v.Accrued, fixedpoint.Ether(9000)},
		{"accrued value", v.AccruedValue, fixedpoint.Ether(9)},
		{"pnl", v.PNL, fixedpoint.Neg(big.NewInt(6e17))},
		{"next init price", v.NextInitPrice, fixedpoint.Ether(6)},
		{"next dps", v.NextDPS, big.NewInt(25e17)},
	}
	for _, c := range checks {
		if c.got.Cmp(c.want) != 0 {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
	if v.PNLIsGain {
		t.Error("pnl below the entry share must be a loss")
	}
	if math.Abs(v.AccruedUSD-18000) > 1e-6 || math.Abs(v.PNLUSD+1200) > 1e-6 {
		t.Errorf("unexpected USD values: accrued=%f pnl=%f", v.AccruedUSD, v.PNLUSD)
	}

	want := model.MinerDisplay{
		GlazeTime:     "30m 0s",
		Price:         "Ξ3.00000",
		RebatePrice:   "Ξ2.40000",
		NextInitPrice: "Ξ6.00000",
		Accrued:       "9.00K",
		AccruedUSD:    "$18000.00",
		PNL:           "-Ξ0.60000",
		PNLUSD:        "-$1200.00",
		Total:         "+$16800.00",
		DPS:           "5.0000",
		DPSUSD:        "$10.0000",
		NextDPS:       "2.5000",
		NextHalving:   "719h 30m",
		DonutPerETH:   "1.00K",
		DonutUSD:      "$2.0000",
		ETHBalance:    "1.50",
		DonutBalance:  "0",
	}
	if v.Display != want {
		t.Errorf("display mismatch:\n got  %+v\n want %+v", v.Display, want)
	}
}

func TestDeriver_MinerIsDeterministic(t *testing.T) {
	d := testDeriver(t)
	snap := testSnapshot()
	snap.Prices.ETH = 3100.5
	a := d.Miner(snap, 3000)
	b := d.Miner(snap, 3000)
	if !reflect.DeepEqual(a, b) {
		t.Error("same snapshot and time must derive identical views")
	}
	if snap.Miner.InitPrice.Cmp(fixedpoint.Ether(6)) != 0 {
		t.Error("derivation must not mutate the snapshot")
	}
}

func TestDeriver_MinerWithoutPrices(t *testing.T) {
	snap := testSnapshot()
	snap.Prices = model.Prices{}
	v := testDeriver(t).Miner(snap, 2800)
	if v.AccruedUSD != 0 || v.PNLUSD != 0 || v.TotalUSD != 0 {
		t.Errorf("expected zero USD values without prices, got %+v", v)
	}
	usd := map[string]string{
		"accrued_usd": v.Display.AccruedUSD,
		"pnl_usd":     v.Display.PNLUSD,
		"total":       v.Display.Total,
		"dps_usd":     v.Display.DPSUSD,
		"donut_usd":   v.Display.DonutUSD,
	}
	for field, got := range usd {
		if got != display.Placeholder {
			t.Errorf("%s = %q without a price, want %q", field, got, display.Placeholder)
		}
	}
	if v.Display.PNL != "-Ξ0.60000" || v.Display.Accrued != "9.00K" {
		t.Errorf("ETH-denominated fields should still derive, got %+v", v.Display)
	}
}

func TestDeriver_NextInitPriceClamps(t *testing.T) {
	d := testDeriver(t)
	m := testSnapshot().Miner
	// The price reaches zero after the period; the next epoch opens at the floor.
	v := d.Miner(testSnapshot(), m.StartTime+auction.MinerEpochPeriod)
	if v.NextInitPrice.Cmp(auction.MinerMinInitPrice()) != 0 {
		t.Errorf("NextInitPrice = %s, want the minimum %s", v.NextInitPrice, auction.MinerMinInitPrice())
	}

	bare, err := NewDeriver(DeriverConfig{Logger: testLogger(), PNL: pnl.DefaultConfig(), Decay: auction.MinerDecay()})
	if err != nil {
		t.Fatalf("NewDeriver: %v", err)
	}
	v = bare.Miner(testSnapshot(), 2800)
	if v.NextInitPrice != nil || v.Display.NextInitPrice != display.Placeholder {
		t.Errorf("no multiplier should leave the next init price unset, got %v %q", v.NextInitPrice, v.Display.NextInitPrice)
	}
}

func TestDeriver_Placeholders(t *testing.T) {
	d, err := NewDeriver(DeriverConfig{
		Logger: testLogger(),
		PNL:    pnl.DefaultConfig(),
		Decay:  auction.MinerDecay(),
	})
	if err != nil {
		t.Fatalf("NewDeriver: %v", err)
	}

	snap := testSnapshot()
	snap.Pool.ReserveIn = new(big.Int)
	v := d.Miner(snap, 2800)
	if v.Display.NextHalving != display.Placeholder {
		t.Errorf("invalid halving period should render %q, got %q", display.Placeholder, v.Display.NextHalving)
	}
	if v.Display.DonutPerETH != display.Placeholder {
		t.Errorf("empty reserve should render %q, got %q", display.Placeholder, v.Display.DonutPerETH)
	}
	if v.Display.Price != "Ξ3.00000" {
		t.Errorf("other fields should still derive, got price %q", v.Display.Price)
	}

	snap = testSnapshot()
	snap.Pool = nil
	snap.GenesisTime = 0
	snap.Miner.NextDPS = nil
	v = testDeriver(t).Miner(snap, 2800)
	if v.Display.DonutPerETH != display.Placeholder || v.Display.NextHalving != display.Placeholder || v.Display.NextDPS != display.Placeholder {
		t.Errorf("missing inputs should render placeholders, got %+v", v.Display)
	}
}

func TestDeriver_PriceFloorsAfterPeriod(t *testing.T) {
	d := testDeriver(t)
	m := testSnapshot().Miner
	if p := d.Price(m, 1000); p.Cmp(fixedpoint.Ether(6)) != 0 {
		t.Errorf("price at start = %s, want init price", p)
	}
	if p := d.Price(m, 1000+auction.MinerEpochPeriod); p.Sign() != 0 {
		t.Errorf("price after the period = %s, want 0", p)
	}
	if got := d.TimeToFloor(m, 2800); got != 1800 {
		t.Errorf("TimeToFloor = %d, want 1800", got)
	}
}

func TestDeriver_Epoch(t *testing.T) {
	d := testDeriver(t)
	ev, err := d.Epoch(testSnapshot(), 1000+2592000+60)
	if err != nil {
		t.Fatalf("Epoch: %v", err)
	}
	if ev.Index != 1 || ev.Remaining != 2592000-60 || ev.NextAt != 1000+2*2592000 {
		t.Errorf("unexpected epoch view: %+v", ev)
	}
	if ev.Display != "719h 59m" {
		t.Errorf("Display = %q", ev.Display)
	}
}

func TestNewDeriver_Invalid(t *testing.T) {
	bad := pnl.DefaultConfig()
	bad.EntryCostDen = 0
	if _, err := NewDeriver(DeriverConfig{PNL: bad, Decay: auction.MinerDecay()}); err == nil {
		t.Error("expected pnl config error")
	}
	if _, err := NewDeriver(DeriverConfig{PNL: pnl.DefaultConfig()}); err == nil {
		t.Error("expected decay config error")
	}
}

func TestDeriver_RigAuction(t *testing.T) {
	d := testDeriver(t)
	a := newFakeReader().rigAuction
	// 1800s into the day-long linear decay of a 10 LP epoch.
	v := d.RigAuction(a, 2800)

	want, _ := new(big.Int).SetString("9791666666666666667", 10)
	if v.Price.Cmp(want) != 0 {
		t.Errorf("price = %s, want %s", v.Price, want)
	}
	if v.Kind != AuctionRig || v.EpochID != 4 || !v.Active || v.TimeToFloor != 84600 {
		t.Errorf("unexpected auction view: %+v", v)
	}
	if v.NextInitPrice != nil {
		t.Errorf("rig auctions carry no next init price, got %s", v.NextInitPrice)
	}
	wantDisplay := model.AuctionDisplay{
		Price:          "9.7917 LP",
		Revenue:        "0.500000",
		NextDrop:       "23h 30m",
		NextInitPrice:  display.Placeholder,
		PaymentBalance: "20.00",
	}
	if v.Display != wantDisplay {
		t.Errorf("display = %+v, want %+v", v.Display, wantDisplay)
	}

	a.WETHAccumulated = nil
	if d.RigAuction(a, 2800).Active {
		t.Error("an auction with nothing accumulated should be inactive")
	}
}

func TestDeriver_RigAuctionHalving(t *testing.T) {
	cfg := MinerDeriverConfig(testLogger(), pnl.DefaultConfig())
	cfg.AuctionDecay = auction.DecayParams{Kind: auction.DecayHalving, Period: 600}
	d, err := NewDeriver(cfg)
	if err != nil {
		t.Fatalf("NewDeriver: %v", err)
	}
	v := d.RigAuction(newFakeReader().rigAuction, 2800)
	if v.Price.Cmp(big.NewInt(125e16)) != 0 || v.TimeToFloor != 600 {
		t.Errorf("three halvings of 10 LP: price=%s ttf=%d", v.Price, v.TimeToFloor)
	}

	cfg.AuctionDecay = auction.DecayParams{Kind: auction.DecayLinear, Period: -1}
	if _, err := NewDeriver(cfg); err == nil {
		t.Error("expected auction decay error")
	}
}

func TestDeriver_Strategy(t *testing.T) {
	d := testDeriver(t)
	s := newFakeReader().strategies[0]
	v := d.Strategy(s, 2800)

	if v.Kind != AuctionStrategy || v.EpochID != 9 || !v.Active || v.PaymentSymbol != "USDC" {
		t.Errorf("unexpected strategy view: %+v", v)
	}
	if v.Price.Int64() != 50_000_000 || v.TimeToFloor != 1800 {
		t.Errorf("price=%s ttf=%d", v.Price, v.TimeToFloor)
	}
	if v.NextInitPrice == nil || v.NextInitPrice.Int64() != 100_000_000 {
		t.Errorf("next init price = %v, want 100000000", v.NextInitPrice)
	}
	wantDisplay := model.AuctionDisplay{
		Price:          "50.0000 USDC",
		Revenue:        "1.0000",
		NextDrop:       "0h 30m",
		NextInitPrice:  "100.0000",
		PaymentBalance: "200.00",
	}
	if v.Display != wantDisplay {
		t.Errorf("display = %+v, want %+v", v.Display, wantDisplay)
	}
}

func TestDeriver_StrategyWithoutPeriodKeepsChainPrice(t *testing.T) {
	d := testDeriver(t)
	s := newFakeReader().strategies[0]
	s.EpochPeriod = 0
	s.Price = big.NewInt(77_000_000)
	s.PriceMultiplier = nil

	v := d.Strategy(s, 2800)
	if v.Price.Int64() != 77_000_000 || v.TimeToFloor != 0 {
		t.Errorf("expected the on-chain price, got %s (ttf %d)", v.Price, v.TimeToFloor)
	}
	if v.NextInitPrice != nil || v.Display.NextInitPrice != display.Placeholder {
		t.Errorf("expected no next init price, got %v %q", v.NextInitPrice, v.Display.NextInitPrice)
	}
}

func TestParseSide(t *testing.T) {
	tests := []struct {
		in      string
		want    Side
		wantErr bool
	}{
		{"", Buy, false},
		{"buy", Buy, false},
		{"sell", Sell, false},
		{"short", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSide(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseSide(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestPool_Orientation(t *testing.T) {
	snap := testSnapshot()
	buy, err := Pool(snap, Buy)
	if err != nil {
		t.Fatalf("Pool: %v", err)
	}
	sell, _ := Pool(snap, Sell)
	if buy.ReserveIn.Cmp(sell.ReserveOut) != 0 || buy.ReserveOut.Cmp(sell.ReserveIn) != 0 {
		t.Errorf("sell should reverse buy: %+v vs %+v", buy, sell)
	}
	snap.Pool = nil
	if _, err := Pool(snap, Buy); err != ErrNoPool {
		t.Errorf("expected ErrNoPool, got %v", err)
	}
}
