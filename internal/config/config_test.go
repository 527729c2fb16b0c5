package config

import (
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/glazecorp/glaze-engine/internal/aggregator"
	"github.com/glazecorp/glaze-engine/internal/auction"
	"github.com/glazecorp/glaze-engine/internal/contracts"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" || cfg.RPCURL != DefaultRPCURL {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Book != contracts.Default() {
		t.Errorf("expected default address book, got %+v", cfg.Book)
	}
	if cfg.TickInterval != time.Second || cfg.PollInterval != 15*time.Second {
		t.Errorf("unexpected intervals: tick=%s poll=%s", cfg.TickInterval, cfg.PollInterval)
	}
	if cfg.ExitDiscountBps != 8000 || cfg.SlippageBps != 100 || cfg.PriceBufferBps != 0 {
		t.Errorf("unexpected bps defaults: %+v", cfg)
	}
	if cfg.Account != (common.Address{}) {
		t.Errorf("expected no account, got %s", cfg.Account)
	}
	if cfg.AggregatorURL != aggregator.DefaultBaseURL {
		t.Errorf("aggregator url = %q, want the default", cfg.AggregatorURL)
	}
	decay, err := cfg.RigAuctionDecay()
	if err != nil || decay.Kind != auction.DecayLinear || decay.Period != auction.RigAuctionEpochPeriod {
		t.Errorf("unexpected default auction decay: %+v (%v)", decay, err)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"PORT":              "9090",
		"DATABASE_URL":      "postgres://localhost/glaze",
		"RPC_URL":           "http://localhost:8545",
		"MINER_ADDRESS":     "0x1111111111111111111111111111111111111111",
		"ACCOUNT":           "0x2222222222222222222222222222222222222222",
		"POLL_INTERVAL":     "5s",
		"TICK_INTERVAL":     "500ms",
		"EXIT_DISCOUNT_BPS": "7500",
		"SLIPPAGE_BPS":      "250",
		"LOG_FORMAT":        "text",
		"LOG_LEVEL":         "debug",
		"LSG_ADDRESS":       "0x3333333333333333333333333333333333333333",
		"AUCTION_DECAY":     "halving",
		"AUCTION_PERIOD":    "6h",
		"PRICE_FAILURE_TTL": "1m",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9090" || cfg.DatabaseURL == "" || cfg.RPCURL != "http://localhost:8545" {
		t.Errorf("string overrides not applied: %+v", cfg)
	}
	if cfg.Book.Miner != common.HexToAddress("0x1111111111111111111111111111111111111111") {
		t.Errorf("miner override not applied: %s", cfg.Book.Miner)
	}
	if cfg.Book.Multicall != contracts.MulticallAddress {
		t.Errorf("unset addresses should keep defaults, got %s", cfg.Book.Multicall)
	}
	if cfg.Account != common.HexToAddress("0x2222222222222222222222222222222222222222") {
		t.Errorf("account override not applied: %s", cfg.Account)
	}
	if cfg.PollInterval != 5*time.Second || cfg.TickInterval != 500*time.Millisecond {
		t.Errorf("interval overrides not applied: %+v", cfg)
	}
	if cfg.Book.LSG != common.HexToAddress("0x3333333333333333333333333333333333333333") {
		t.Errorf("lsg override not applied: %s", cfg.Book.LSG)
	}
	decay, err := cfg.RigAuctionDecay()
	if err != nil || decay.Kind != auction.DecayHalving || decay.Period != 6*60*60 {
		t.Errorf("auction decay override not applied: %+v (%v)", decay, err)
	}
	if cfg.PriceFailureTTL != time.Minute {
		t.Errorf("price failure ttl override not applied: %s", cfg.PriceFailureTTL)
	}
	if cfg.PNL().ExitDiscountBps != 7500 || cfg.SlippageBps != 250 {
		t.Errorf("bps overrides not applied: %+v", cfg)
	}
}

func TestFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad address", map[string]string{"PAIR_ADDRESS": "0x123"}, "PAIR_ADDRESS"},
		{"zero address", map[string]string{"MINER_ADDRESS": "0x0000000000000000000000000000000000000000"}, "miner"},
		{"bad duration", map[string]string{"POLL_INTERVAL": "soon"}, "POLL_INTERVAL"},
		{"bps range", map[string]string{"SLIPPAGE_BPS": "10001"}, "SLIPPAGE_BPS"},
		{"negative bps", map[string]string{"EXIT_DISCOUNT_BPS": "-1"}, "EXIT_DISCOUNT_BPS"},
		{"tick above poll", map[string]string{"TICK_INTERVAL": "1m"}, "TICK_INTERVAL"},
		{"log format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT"},
		{"log level", map[string]string{"LOG_LEVEL": "loud"}, "unknown level"},
		{"auction decay", map[string]string{"AUCTION_DECAY": "cliff"}, "AUCTION_DECAY"},
		{"auction period", map[string]string{"AUCTION_PERIOD": "0s"}, "AUCTION_PERIOD"},
		{"aggregator url", map[string]string{"AGGREGATOR_URL": "kyber"}, "AGGREGATOR_URL"},
		{"zero launchpad", map[string]string{"LAUNCHPAD_ADDRESS": "0x0000000000000000000000000000000000000000"}, "launchpad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(env(tt.env))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestFromEnv_AggregatorDisabled(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{"AGGREGATOR_URL": ""}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AggregatorURL != "" {
		t.Errorf("an empty AGGREGATOR_URL must disable the aggregator, got %q", cfg.AggregatorURL)
	}

	cfg, err = FromEnv(env(map[string]string{
		"AGGREGATOR_URL":       "http://localhost:9000/base",
		"AGGREGATOR_CLIENT_ID": "terminal",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AggregatorURL != "http://localhost:9000/base" || cfg.AggregatorClientID != "terminal" {
		t.Errorf("unexpected aggregator settings: %q %q", cfg.AggregatorURL, cfg.AggregatorClientID)
	}
}

func TestFromEnv_EmptyValuesKeepDefaults(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{"PORT": "", "POLL_INTERVAL": ""}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" || cfg.PollInterval != 15*time.Second {
		t.Errorf("empty values should keep defaults: %+v", cfg)
	}
}
