// Package profile resolves wallet addresses to Farcaster profiles through
// Neynar's bulk-by-address endpoint. Lookups never fail the caller:
// addresses without a profile are omitted and upstream errors yield an
// empty result.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"

	"github.com/glazecorp/glaze-engine/internal/metrics"
)

// DefaultBaseURL is Neynar's v2 API root.
const DefaultBaseURL = "https://api.neynar.com/v2/farcaster"

// maxBatch is Neynar's per-request address limit.
const maxBatch = 350

// Profile is the display subset of a Farcaster user.
type Profile struct {
	FID         int64  `json:"fid"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// Lookup resolves addresses to profiles.
type Lookup interface {
	Profiles(ctx context.Context, addresses []string) map[string]Profile
}

// Config configures a Client.
type Config struct {
	Logger     *slog.Logger
	Clock      clockwork.Clock
	HTTPClient *http.Client
	BaseURL    string
	APIKey     string
	CacheTTL   time.Duration // 0 disables caching
}

type entry struct {
	profile   Profile
	found     bool
	fetchedAt time.Time
}

// Client is a Neynar-backed Lookup with an optional per-address cache.
type Client struct {
	log *slog.Logger
	cfg Config

	mu        sync.Mutex
	cache     map[string]entry
	lastSweep time.Time
}

// NewClient fills defaults and returns a Client.
func NewClient(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{log: cfg.Logger, cfg: cfg, cache: make(map[string]entry)}
}

var _ Lookup = (*Client)(nil)

// Normalize lowercases, drops blanks, invalid and zero addresses, and
// dedupes while keeping first-seen order.
func Normalize(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	out := make([]string, 0, len(addresses))
	for _, a := range addresses {
		a = strings.ToLower(strings.TrimSpace(a))
		if !common.IsHexAddress(a) || common.HexToAddress(a) == (common.Address{}) {
			continue
		}
		if !strings.HasPrefix(a, "0x") {
			a = "0x" + a
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

// Profiles returns the profiles found, keyed by lowercase address.
func (c *Client) Profiles(ctx context.Context, addresses []string) map[string]Profile {
	result := make(map[string]Profile)
	missing := c.fromCache(Normalize(addresses), result)

	for start := 0; start < len(missing); start += maxBatch {
		end := min(start+maxBatch, len(missing))
		batch := missing[start:end]
		found, err := c.fetch(ctx, batch)
		if err != nil {
			c.log.Warn("profile: bulk lookup failed", "addresses", len(batch), "error", err)
			metrics.ProfileLookups.WithLabelValues("error").Inc()
			continue
		}
		metrics.ProfileLookups.WithLabelValues("ok").Inc()
		c.store(batch, found)
		for addr, p := range found {
			result[addr] = p
		}
	}
	return result
}

func (c *Client) fromCache(addresses []string, result map[string]Profile) []string {
	if c.cfg.CacheTTL <= 0 {
		return addresses
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var missing []string
	for _, a := range addresses {
		e, ok := c.cache[a]
		if !ok || c.cfg.Clock.Since(e.fetchedAt) >= c.cfg.CacheTTL {
			missing = append(missing, a)
			continue
		}
		if e.found {
			result[a] = e.profile
		}
	}
	return missing
}

// store caches hits and misses alike so absent profiles are not refetched
// every request. Expired entries are swept at most once per CacheTTL.
func (c *Client) store(batch []string, found map[string]Profile) {
	if c.cfg.CacheTTL <= 0 {
		return
	}
	now := c.cfg.Clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Sub(c.lastSweep) >= c.cfg.CacheTTL {
		for a, e := range c.cache {
			if now.Sub(e.fetchedAt) >= c.cfg.CacheTTL {
				delete(c.cache, a)
			}
		}
		c.lastSweep = now
	}
	for _, a := range batch {
		p, ok := found[a]
		c.cache[a] = entry{profile: p, found: ok, fetchedAt: now}
	}
}

type neynarUser struct {
	FID         int64  `json:"fid"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	PfpURL      string `json:"pfp_url"`
}

func (c *Client) fetch(ctx context.Context, batch []string) (map[string]Profile, error) {
	u := c.cfg.BaseURL + "/user/bulk-by-address?addresses=" + url.QueryEscape(strings.Join(batch, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api_key", c.cfg.APIKey)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile: neynar status %d", resp.StatusCode)
	}

	var body map[string][]neynarUser
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("profile: decode: %w", err)
	}
	out := make(map[string]Profile, len(body))
	for _, addr := range batch {
		users := body[addr]
		if len(users) == 0 {
			continue
		}
		user := users[0]
		out[addr] = Profile{
			FID:         user.FID,
			Username:    user.Username,
			DisplayName: user.DisplayName,
			AvatarURL:   user.PfpURL,
		}
	}
	return out, nil
}
