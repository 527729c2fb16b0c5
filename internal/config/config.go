// Package config reads the engine's settings from the environment, after
// loading an optional .env file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/glazecorp/glaze-engine/internal/aggregator"
	"github.com/glazecorp/glaze-engine/internal/auction"
	"github.com/glazecorp/glaze-engine/internal/bounds"
	"github.com/glazecorp/glaze-engine/internal/contracts"
	"github.com/glazecorp/glaze-engine/internal/logger"
	"github.com/glazecorp/glaze-engine/internal/pnl"
)

// DefaultRPCURL is the public Base mainnet endpoint.
const DefaultRPCURL = "https://mainnet.base.org"

// Config is the full engine configuration.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	RPCURL      string

	Book contracts.Book
	// Account is the wallet whose balances and position are shown. Zero
	// means no wallet is connected.
	Account common.Address

	NeynarAPIKey string

	// AggregatorURL is the swap aggregator base URL. Empty routes every swap
	// through the pool.
	AggregatorURL      string
	AggregatorClientID string

	TickInterval    time.Duration
	PollInterval    time.Duration
	PriceCacheTTL   time.Duration
	PriceFailureTTL time.Duration // oracle backoff after a failed fetch
	PriceTimeout    time.Duration
	ProfileCacheTTL time.Duration
	CacheTTL        time.Duration // redis read-through

	// AuctionDecay and AuctionPeriod describe the rig LP auction curve.
	AuctionDecay  string
	AuctionPeriod time.Duration

	ExitDiscountBps int64
	SlippageBps     int64
	PriceBufferBps  int64

	LogFormat string
	LogLevel  string
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Port:            "8080",
		RPCURL:          DefaultRPCURL,
		Book:            contracts.Default(),
		AggregatorURL:   aggregator.DefaultBaseURL,
		TickInterval:    time.Second,
		PollInterval:    15 * time.Second,
		PriceCacheTTL:   120 * time.Second,
		PriceFailureTTL: 15 * time.Second,
		PriceTimeout:    10 * time.Second,
		ProfileCacheTTL: 10 * time.Minute,
		CacheTTL:        30 * time.Second,
		AuctionDecay:    auction.DecayLinear.String(),
		AuctionPeriod:   time.Duration(auction.RigAuctionEpochPeriod) * time.Second,
		ExitDiscountBps: pnl.DefaultConfig().ExitDiscountBps,
		SlippageBps:     bounds.DefaultSlippageBps,
		LogFormat:       logger.FormatJSON,
		LogLevel:        "info",
	}
}

// Load reads .env if present and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, starting from Defaults.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Defaults()
	p := parser{lookup: lookup}

	p.str("PORT", &cfg.Port)
	p.str("DATABASE_URL", &cfg.DatabaseURL)
	p.str("REDIS_URL", &cfg.RedisURL)
	p.str("RPC_URL", &cfg.RPCURL)
	p.str("NEYNAR_API_KEY", &cfg.NeynarAPIKey)
	p.str("LOG_FORMAT", &cfg.LogFormat)
	p.str("LOG_LEVEL", &cfg.LogLevel)
	p.str("AUCTION_DECAY", &cfg.AuctionDecay)
	p.str("AGGREGATOR_CLIENT_ID", &cfg.AggregatorClientID)
	if v, ok := lookup("AGGREGATOR_URL"); ok {
		// Set but empty disables the aggregator.
		cfg.AggregatorURL = v
	}

	p.address("MULTICALL_ADDRESS", &cfg.Book.Multicall)
	p.address("MINER_ADDRESS", &cfg.Book.Miner)
	p.address("DONUT_ADDRESS", &cfg.Book.Donut)
	p.address("WETH_ADDRESS", &cfg.Book.WETH)
	p.address("PAIR_ADDRESS", &cfg.Book.Pair)
	p.address("ROUTER_ADDRESS", &cfg.Book.Router)
	p.address("LAUNCHPAD_ADDRESS", &cfg.Book.Launchpad)
	p.address("LSG_ADDRESS", &cfg.Book.LSG)
	p.address("ACCOUNT", &cfg.Account)

	p.duration("TICK_INTERVAL", &cfg.TickInterval)
	p.duration("POLL_INTERVAL", &cfg.PollInterval)
	p.duration("PRICE_CACHE_TTL", &cfg.PriceCacheTTL)
	p.duration("PRICE_FAILURE_TTL", &cfg.PriceFailureTTL)
	p.duration("PRICE_TIMEOUT", &cfg.PriceTimeout)
	p.duration("AUCTION_PERIOD", &cfg.AuctionPeriod)
	p.duration("PROFILE_CACHE_TTL", &cfg.ProfileCacheTTL)
	p.duration("CACHE_TTL", &cfg.CacheTTL)

	p.bps("EXIT_DISCOUNT_BPS", &cfg.ExitDiscountBps)
	p.bps("SLIPPAGE_BPS", &cfg.SlippageBps)
	p.bps("PRICE_BUFFER_BPS", &cfg.PriceBufferBps)

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("config: PORT is empty"))
	}
	if c.RPCURL == "" {
		errs = append(errs, errors.New("config: RPC_URL is empty"))
	}
	if err := c.Book.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	if c.TickInterval <= 0 || c.PollInterval <= 0 {
		errs = append(errs, errors.New("config: tick and poll intervals must be positive"))
	}
	if c.TickInterval > c.PollInterval {
		errs = append(errs, fmt.Errorf("config: TICK_INTERVAL %s exceeds POLL_INTERVAL %s", c.TickInterval, c.PollInterval))
	}
	if c.PriceCacheTTL < 0 || c.PriceFailureTTL < 0 || c.ProfileCacheTTL < 0 || c.CacheTTL < 0 {
		errs = append(errs, errors.New("config: cache TTLs must not be negative"))
	}
	if c.AggregatorURL != "" {
		if u, err := url.Parse(c.AggregatorURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("config: AGGREGATOR_URL %q is not an absolute url", c.AggregatorURL))
		}
	}
	if _, err := c.RigAuctionDecay(); err != nil {
		errs = append(errs, fmt.Errorf("config: AUCTION_DECAY/AUCTION_PERIOD: %w", err))
	}
	if c.LogFormat != logger.FormatJSON && c.LogFormat != logger.FormatText {
		errs = append(errs, fmt.Errorf("config: LOG_FORMAT %q is not json or text", c.LogFormat))
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	return errors.Join(errs...)
}

// PNL returns the pnl configuration implied by c.
func (c Config) PNL() pnl.Config {
	p := pnl.DefaultConfig()
	p.ExitDiscountBps = c.ExitDiscountBps
	return p
}

// RigAuctionDecay returns the decay schedule of rig LP auctions.
func (c Config) RigAuctionDecay() (auction.DecayParams, error) {
	kind, err := auction.ParseDecayKind(c.AuctionDecay)
	if err != nil {
		return auction.DecayParams{}, err
	}
	p := auction.DecayParams{Kind: kind, Period: int64(c.AuctionPeriod / time.Second)}
	if err := p.Validate(); err != nil {
		return auction.DecayParams{}, err
	}
	return p, nil
}

type parser struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (p *parser) get(key string) (string, bool) {
	v, ok := p.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (p *parser) str(key string, dst *string) {
	if v, ok := p.get(key); ok {
		*dst = v
	}
}

func (p *parser) address(key string, dst *common.Address) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	addr, err := contracts.ParseAddress(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("config: %s: %w", key, err))
		return
	}
	*dst = addr
}

func (p *parser) duration(key string, dst *time.Duration) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("config: %s: %w", key, err))
		return
	}
	*dst = d
}

func (p *parser) bps(key string, dst *int64) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 || n > 10000 {
		p.errs = append(p.errs, fmt.Errorf("config: %s: %q is not in [0, 10000]", key, v))
		return
	}
	*dst = n
}
