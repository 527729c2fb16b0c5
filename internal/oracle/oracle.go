// Package oracle serves USD spot prices from Coinbase and CoinGecko behind a
// TTL cache. When upstream fails the last good prices are served, marked
// stale.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/glazecorp/glaze-engine/internal/metrics"
	"github.com/glazecorp/glaze-engine/internal/model"
)

const (
	// DefaultTTL is the server-side price freshness window.
	DefaultTTL = 120 * time.Second

	// DefaultFailureTTL is how long a failed upstream fetch is remembered.
	// Callers inside the window get the fallback without a new request.
	DefaultFailureTTL = 15 * time.Second

	// DefaultFetchTimeout bounds one upstream round trip.
	DefaultFetchTimeout = 10 * time.Second
)

const (
	DefaultCoinbaseURL  = "https://api.coinbase.com/v2/prices"
	DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3/simple/price"

	// QRCoinID is the CoinGecko id of the QR token.
	QRCoinID = "qr-coin"
)

// ErrUnavailable is returned when upstream fails and nothing is cached.
var ErrUnavailable = errors.New("oracle: prices unavailable")

// Prices are USD spot prices. A zero field means upstream had no value.
type Prices = model.Prices

// Source supplies prices. *Client implements it; tests and the engine
// accept any Source.
type Source interface {
	Prices(ctx context.Context) (Prices, error)
}

// Config configures a Client.
type Config struct {
	Logger       *slog.Logger
	Clock        clockwork.Clock
	HTTPClient   *http.Client
	TTL          time.Duration
	FailureTTL   time.Duration
	FetchTimeout time.Duration
	CoinbaseURL  string
	CoinGeckoURL string
}

// Validate fills defaults.
func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.TTL < 0 {
		return errors.New("oracle: ttl must not be negative")
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.FailureTTL < 0 {
		return errors.New("oracle: failure ttl must not be negative")
	}
	if cfg.FailureTTL == 0 {
		cfg.FailureTTL = DefaultFailureTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.CoinbaseURL == "" {
		cfg.CoinbaseURL = DefaultCoinbaseURL
	}
	if cfg.CoinGeckoURL == "" {
		cfg.CoinGeckoURL = DefaultCoinGeckoURL
	}
	return nil
}

// Client fetches and caches prices.
type Client struct {
	log   *slog.Logger
	cfg   Config
	cache *Cache[Prices]
	group singleflight.Group

	mu       sync.Mutex
	failedAt time.Time
	lastErr  error
}

// NewClient returns a Client with an empty cache.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		log:   cfg.Logger,
		cfg:   cfg,
		cache: NewCache[Prices](cfg.Clock, cfg.TTL),
	}, nil
}

var _ Source = (*Client)(nil)

// Prices returns cached prices within the TTL, otherwise refetches.
// Concurrent callers share one upstream fetch, which is detached from the
// first caller's cancellation and bounded by FetchTimeout. A failure is
// remembered for FailureTTL; until then no new fetch is attempted. On
// failure the last good prices are returned with Stale set; if there are
// none, ErrUnavailable.
func (c *Client) Prices(ctx context.Context) (Prices, error) {
	if p, ok := c.cache.Fresh(); ok {
		metrics.OracleFetchTotal.WithLabelValues("cached").Inc()
		return p, nil
	}

	if err := c.recentFailure(); err != nil {
		metrics.OracleFetchTotal.WithLabelValues("backoff").Inc()
		return c.fallback(err)
	}

	v, err, _ := c.group.Do("prices", func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.FetchTimeout)
		defer cancel()
		p, err := c.fetch(fctx)
		c.mu.Lock()
		if err != nil {
			c.failedAt, c.lastErr = c.cfg.Clock.Now(), err
		} else {
			c.failedAt, c.lastErr = time.Time{}, nil
		}
		c.mu.Unlock()
		return p, err
	})
	if err == nil {
		p := v.(Prices)
		c.cache.Set(p)
		metrics.OracleFetchTotal.WithLabelValues("ok").Inc()
		return p, nil
	}
	return c.fallback(err)
}

// recentFailure returns the last fetch error if it happened within
// FailureTTL.
func (c *Client) recentFailure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastErr == nil || c.cfg.Clock.Since(c.failedAt) >= c.cfg.FailureTTL {
		return nil
	}
	return c.lastErr
}

func (c *Client) fallback(err error) (Prices, error) {
	if last, _, ok := c.cache.Last(); ok {
		c.log.Warn("oracle: serving stale prices", "error", err, "fetched_at", last.FetchedAt)
		metrics.OracleFetchTotal.WithLabelValues("stale").Inc()
		last.Stale = true
		return last, nil
	}
	c.log.Error("oracle: fetch failed with empty cache", "error", err)
	metrics.OracleFetchTotal.WithLabelValues("error").Inc()
	return Prices{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (c *Client) fetch(ctx context.Context) (Prices, error) {
	p := Prices{FetchedAt: c.cfg.Clock.Now()}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		p.ETH, err = c.coinbaseSpot(ctx, "ETH-USD")
		return err
	})
	g.Go(func() (err error) {
		p.BTC, err = c.coinbaseSpot(ctx, "BTC-USD")
		return err
	})
	g.Go(func() (err error) {
		p.QR, err = c.coingeckoUSD(ctx, QRCoinID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Prices{}, err
	}
	return p, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("oracle: GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("oracle: decode %s: %w", url, err)
	}
	return nil
}

// coinbaseSpot reads {"data":{"amount":"3500.12"}}. A missing amount is 0.
func (c *Client) coinbaseSpot(ctx context.Context, pair string) (float64, error) {
	var body struct {
		Data struct {
			Amount string `json:"amount"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, c.cfg.CoinbaseURL+"/"+pair+"/spot", &body); err != nil {
		return 0, err
	}
	if body.Data.Amount == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(body.Data.Amount, 64)
	if err != nil {
		return 0, fmt.Errorf("oracle: %s amount %q: %w", pair, body.Data.Amount, err)
	}
	return f, nil
}

// coingeckoUSD reads {"<id>":{"usd":0.01}}. A missing entry is 0.
func (c *Client) coingeckoUSD(ctx context.Context, id string) (float64, error) {
	var body map[string]struct {
		USD float64 `json:"usd"`
	}
	url := c.cfg.CoinGeckoURL + "?ids=" + id + "&vs_currencies=usd"
	if err := c.getJSON(ctx, url, &body); err != nil {
		return 0, err
	}
	return body[id].USD, nil
}
