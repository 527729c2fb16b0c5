// Package aggregator routes swaps through the KyberSwap aggregator on Base.
// The terminal tries it first and falls back to the DONUT/WETH pair when it
// fails.
package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/glazecorp/glaze-engine/internal/metrics"
)

const (
	DefaultBaseURL  = "https://aggregator-api.kyberswap.com/base"
	DefaultClientID = "glazecorp"

	// DefaultTimeout bounds each of the route and build round trips.
	DefaultTimeout = 5 * time.Second
)

// ErrNoRoute is returned when the aggregator answers without a usable route.
var ErrNoRoute = errors.New("aggregator: no route")

// Config configures a Client.
type Config struct {
	Logger     *slog.Logger
	HTTPClient *http.Client
	BaseURL    string
	ClientID   string // sent as x-client-id
}

// Validate fills defaults.
func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return fmt.Errorf("aggregator: base url: %w", err)
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	return nil
}

// SwapRequest is an exact-in swap to route and encode.
type SwapRequest struct {
	TokenIn     common.Address // contracts.NativeETH for ETH
	TokenOut    common.Address
	AmountIn    *big.Int
	Sender      common.Address
	Recipient   common.Address
	SlippageBps int64
}

// Swap is encoded router calldata. Router is also the spender an ERC-20
// input must be approved to.
type Swap struct {
	Router    common.Address
	Data      hexutil.Bytes
	AmountIn  *big.Int
	AmountOut *big.Int
	GasUSD    string
}

// Client talks to the aggregator's routes and route/build endpoints.
type Client struct {
	log *slog.Logger
	cfg Config
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{log: cfg.Logger, cfg: cfg}, nil
}

// routeResponse accepts the summary under "data", as the API answers, or
// at the top level.
type routeResponse struct {
	Data struct {
		RouteSummary json.RawMessage `json:"routeSummary"`
	} `json:"data"`
	RouteSummary json.RawMessage `json:"routeSummary"`
}

func (r routeResponse) summary() json.RawMessage {
	if len(r.Data.RouteSummary) > 0 && string(r.Data.RouteSummary) != "null" {
		return r.Data.RouteSummary
	}
	if len(r.RouteSummary) > 0 && string(r.RouteSummary) != "null" {
		return r.RouteSummary
	}
	return nil
}

type routeSummary struct {
	AmountOut string `json:"amountOut"`
	GasUSD    string `json:"gasUsd"`
}

type buildRequest struct {
	RouteSummary      json.RawMessage `json:"routeSummary"`
	Sender            string          `json:"sender"`
	Recipient         string          `json:"recipient"`
	SlippageTolerance int64           `json:"slippageTolerance"` // bps
}

type buildResponse struct {
	Data struct {
		AmountIn      string `json:"amountIn"`
		AmountOut     string `json:"amountOut"`
		RouterAddress string `json:"routerAddress"`
		Data          string `json:"data"`
	} `json:"data"`
}

// Swap finds a route and builds its calldata. The route summary is handed
// back to the build endpoint unchanged.
func (c *Client) Swap(ctx context.Context, req SwapRequest) (Swap, error) {
	if req.AmountIn == nil || req.AmountIn.Sign() <= 0 {
		return Swap{}, errors.New("aggregator: amount in must be positive")
	}

	q := url.Values{}
	q.Set("tokenIn", req.TokenIn.Hex())
	q.Set("tokenOut", req.TokenOut.Hex())
	q.Set("amountIn", req.AmountIn.String())
	q.Set("saveGas", "false")
	q.Set("gasInclude", "true")

	var route routeResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/routes?"+q.Encode(), nil, &route); err != nil {
		metrics.AggregatorRequests.WithLabelValues("route", "error").Inc()
		return Swap{}, err
	}
	raw := route.summary()
	if raw == nil {
		metrics.AggregatorRequests.WithLabelValues("route", "empty").Inc()
		return Swap{}, ErrNoRoute
	}
	var summary routeSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return Swap{}, fmt.Errorf("aggregator: route summary: %w", err)
	}
	metrics.AggregatorRequests.WithLabelValues("route", "ok").Inc()

	var built buildResponse
	body := buildRequest{
		RouteSummary:      raw,
		Sender:            req.Sender.Hex(),
		Recipient:         req.Recipient.Hex(),
		SlippageTolerance: req.SlippageBps,
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/route/build", body, &built); err != nil {
		metrics.AggregatorRequests.WithLabelValues("build", "error").Inc()
		return Swap{}, err
	}

	swap, err := decodeBuild(built, summary)
	if err != nil {
		metrics.AggregatorRequests.WithLabelValues("build", "invalid").Inc()
		return Swap{}, err
	}
	metrics.AggregatorRequests.WithLabelValues("build", "ok").Inc()
	c.log.Debug("aggregator: swap built",
		"token_in", req.TokenIn.Hex(),
		"token_out", req.TokenOut.Hex(),
		"amount_in", swap.AmountIn.String(),
		"amount_out", swap.AmountOut.String(),
		"router", swap.Router.Hex(),
	)
	return swap, nil
}

func decodeBuild(b buildResponse, summary routeSummary) (Swap, error) {
	if !common.IsHexAddress(b.Data.RouterAddress) {
		return Swap{}, fmt.Errorf("%w: router address %q", ErrNoRoute, b.Data.RouterAddress)
	}
	data, err := hexutil.Decode(b.Data.Data)
	if err != nil || len(data) < 4 {
		return Swap{}, fmt.Errorf("%w: calldata %q", ErrNoRoute, b.Data.Data)
	}
	amountIn, ok := new(big.Int).SetString(b.Data.AmountIn, 10)
	if !ok {
		return Swap{}, fmt.Errorf("%w: amount in %q", ErrNoRoute, b.Data.AmountIn)
	}
	out := b.Data.AmountOut
	if out == "" {
		out = summary.AmountOut
	}
	amountOut, ok := new(big.Int).SetString(out, 10)
	if !ok || amountOut.Sign() <= 0 {
		return Swap{}, fmt.Errorf("%w: amount out %q", ErrNoRoute, out)
	}
	return Swap{
		Router:    common.HexToAddress(b.Data.RouterAddress),
		Data:      data,
		AmountIn:  amountIn,
		AmountOut: amountOut,
		GasUSD:    summary.GasUSD,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("aggregator: encode %s: %w", path, err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-client-id", c.cfg.ClientID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("aggregator: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("aggregator: %s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("aggregator: decode %s: %w", path, err)
	}
	return nil
}
