package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"

	"github.com/glazecorp/glaze-engine/internal/aggregator"
	"github.com/glazecorp/glaze-engine/internal/amm"
	"github.com/glazecorp/glaze-engine/internal/bounds"
	"github.com/glazecorp/glaze-engine/internal/chain"
	"github.com/glazecorp/glaze-engine/internal/contracts"
	"github.com/glazecorp/glaze-engine/internal/display"
	"github.com/glazecorp/glaze-engine/internal/fixedpoint"
	"github.com/glazecorp/glaze-engine/internal/metrics"
	"github.com/glazecorp/glaze-engine/internal/model"
	"github.com/glazecorp/glaze-engine/internal/oracle"
	"github.com/glazecorp/glaze-engine/internal/profile"
	"github.com/glazecorp/glaze-engine/internal/store"
)

// DefaultConfirmInterval is how often receipts are polled.
const DefaultConfirmInterval = 2 * time.Second

// AccountReader reads the per-wallet state needed to build transactions.
// *chain.Reader implements it.
type AccountReader interface {
	chain.StateReader
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
}

// SwapAggregator builds swap calldata off-chain. *aggregator.Client
// implements it.
type SwapAggregator interface {
	Swap(ctx context.Context, req aggregator.SwapRequest) (aggregator.Swap, error)
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Logger   *slog.Logger
	Clock    clockwork.Clock
	Engine   *Engine
	Deriver  *Deriver
	Store    store.Store
	Prices   oracle.Source  // optional
	Profiles profile.Lookup // optional
	Accounts AccountReader
	Receipts chain.ReceiptSource // optional; disables /tx/confirm when nil
	Auctions AuctionReader       // optional; disables auction routes when nil
	Builder  *chain.Builder
	Guard    *bounds.Guard
	Book     contracts.Book

	// Aggregator is tried before the pool for swaps. Optional.
	Aggregator SwapAggregator

	ConfirmInterval time.Duration
}

// Validate checks required fields and fills defaults.
func (cfg *ServiceConfig) Validate() error {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Engine == nil || cfg.Deriver == nil {
		return errors.New("terminal: engine and deriver are required")
	}
	if cfg.Store == nil {
		return errors.New("terminal: store is required")
	}
	if cfg.Accounts == nil || cfg.Builder == nil || cfg.Guard == nil {
		return errors.New("terminal: account reader, builder and guard are required")
	}
	if cfg.ConfirmInterval <= 0 {
		cfg.ConfirmInterval = DefaultConfirmInterval
	}
	return nil
}

// Service handles the terminal's HTTP API.
type Service struct {
	log *slog.Logger
	cfg ServiceConfig
}

// NewService validates cfg and returns a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Service{log: cfg.Logger, cfg: cfg}, nil
}

// Routes mounts the API under r.
func (s *Service) Routes(r chi.Router) {
	r.Get("/miner", s.GetMiner)
	r.Get("/epoch", s.GetEpoch)
	r.Get("/quote/out", s.QuoteOut)
	r.Get("/quote/in", s.QuoteIn)
	r.Get("/prices", s.GetPrices)
	r.Get("/profiles", s.GetProfiles)
	r.Get("/glazes", s.ListGlazes)
	r.Get("/glazes/{epochID}", s.GetGlaze)
	r.Post("/refresh", s.Refresh)

	r.Post("/tx/swap", s.BuildSwap)
	r.Post("/tx/glaze", s.BuildGlaze)
	r.Post("/tx/confirm", s.Confirm)

	s.auctionRoutes(r)
}

// --- Request/Response types ---

// EpochResponse is the body of GET /epoch.
type EpochResponse struct {
	Halving     model.EpochView `json:"halving"`
	EpochID     uint64          `json:"epoch_id"`
	TimeToFloor int64           `json:"time_to_floor_seconds"`
}

// GlazesResponse is the body of GET /glazes.
type GlazesResponse struct {
	Glazes   []model.GlazeRecord        `json:"glazes"`
	Profiles map[string]profile.Profile `json:"profiles"`
}

// SwapRequest is the JSON body for POST /tx/swap.
type SwapRequest struct {
	Account  string `json:"account"`
	Side     string `json:"side"`      // "buy" or "sell"
	AmountIn string `json:"amount_in"` // decimal, e.g. "0.05"
}

// GlazeRequest is the JSON body for POST /tx/glaze.
type GlazeRequest struct {
	Account  string `json:"account"`
	Provider string `json:"provider,omitempty"`
	URI      string `json:"uri"`
}

// ConfirmRequest is the JSON body for POST /tx/confirm.
type ConfirmRequest struct {
	Hash string `json:"hash"`
}

// TxResponse is an unsigned transaction plus the approval that must be
// mined before it, if any.
type TxResponse struct {
	Approval *chain.TxRequest   `json:"approval,omitempty"`
	Tx       chain.TxRequest    `json:"tx"`
	Quote    *model.SwapQuote   `json:"quote,omitempty"`
	Auction  *model.AuctionView `json:"auction,omitempty"`
	Route    string             `json:"route,omitempty"` // swaps only
	MaxPrice *big.Int           `json:"max_price,omitempty"`
	Deadline *big.Int           `json:"deadline"`
}

// ConfirmResponse reports a mined transaction.
type ConfirmResponse struct {
	Hash        string `json:"hash"`
	BlockNumber uint64 `json:"block_number"`
	Status      string `json:"status"` // "success" or "reverted"
}

// --- HTTP Handlers ---

// GetMiner handles GET /api/v1/miner
func (s *Service) GetMiner(w http.ResponseWriter, r *http.Request) {
	view, err := s.cfg.Engine.View()
	if err != nil {
		writeError(w, "miner state not loaded yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetEpoch handles GET /api/v1/epoch
func (s *Service) GetEpoch(w http.ResponseWriter, r *http.Request) {
	snap := s.cfg.Engine.Snapshot()
	if snap == nil || snap.GenesisTime == 0 {
		writeError(w, "miner schedule not loaded yet", http.StatusServiceUnavailable)
		return
	}
	now := s.cfg.Clock.Now().Unix()
	halving, err := s.cfg.Deriver.Epoch(snap, now)
	if err != nil {
		s.log.Error("epoch derivation failed", "err", err)
		writeError(w, "invalid epoch schedule", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, EpochResponse{
		Halving:     halving,
		EpochID:     snap.Miner.EpochID,
		TimeToFloor: s.cfg.Deriver.TimeToFloor(snap.Miner, now),
	})
}

// QuoteOut handles GET /api/v1/quote/out?amount_in=&side=
func (s *Service) QuoteOut(w http.ResponseWriter, r *http.Request) {
	s.quote(w, r, "amount_in", amm.QuoteExactIn)
}

// QuoteIn handles GET /api/v1/quote/in?amount_out=&side=
func (s *Service) QuoteIn(w http.ResponseWriter, r *http.Request) {
	s.quote(w, r, "amount_out", amm.QuoteExactOut)
}

func (s *Service) quote(w http.ResponseWriter, r *http.Request, param string, fn func(model.PoolReserves, *big.Int) (amm.Quote, error)) {
	direction := strings.TrimPrefix(param, "amount_")
	q := r.URL.Query()

	side, err := ParseSide(q.Get("side"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	amount, err := fixedpoint.ParseEther(q.Get(param))
	if err != nil {
		metrics.QuotesTotal.WithLabelValues(direction, "invalid").Inc()
		writeError(w, param+" must be a positive decimal amount", http.StatusBadRequest)
		return
	}

	snap := s.cfg.Engine.Snapshot()
	if snap == nil {
		writeError(w, "pool state not loaded yet", http.StatusServiceUnavailable)
		return
	}
	pool, err := Pool(snap, side)
	if err != nil {
		writeError(w, "pool state not loaded yet", http.StatusServiceUnavailable)
		return
	}

	quote, err := fn(pool, amount)
	if err != nil {
		status := quoteStatus(err)
		metrics.QuotesTotal.WithLabelValues(direction, "rejected").Inc()
		writeError(w, quoteMessage(err), status)
		return
	}
	metrics.QuotesTotal.WithLabelValues(direction, "ok").Inc()
	writeJSON(w, http.StatusOK, SwapQuote(quote, s.cfg.Guard.SwapMinOut(quote.AmountOut)))
}

func quoteStatus(err error) int {
	switch {
	case errors.Is(err, amm.ErrInsufficientLiquidity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, amm.ErrInvalidAmount):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func quoteMessage(err error) string {
	switch {
	case errors.Is(err, amm.ErrInsufficientLiquidity):
		return "insufficient liquidity"
	case errors.Is(err, amm.ErrInvalidAmount):
		return "invalid amount"
	}
	return "quote failed"
}

// GetPrices handles GET /api/v1/prices
func (s *Service) GetPrices(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Prices == nil {
		writeError(w, "price oracle not configured", http.StatusServiceUnavailable)
		return
	}
	prices, err := s.cfg.Prices.Prices(r.Context())
	if err != nil {
		writeError(w, "prices unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, prices)
}

// GetProfiles handles GET /api/v1/profiles?addresses=0x..,0x..
func (s *Service) GetProfiles(w http.ResponseWriter, r *http.Request) {
	addrs := strings.Split(r.URL.Query().Get("addresses"), ",")
	writeJSON(w, http.StatusOK, s.profiles(r.Context(), addrs))
}

func (s *Service) profiles(ctx context.Context, addrs []string) map[string]profile.Profile {
	if s.cfg.Profiles == nil {
		return map[string]profile.Profile{}
	}
	return s.cfg.Profiles.Profiles(ctx, addrs)
}

// ListGlazes handles GET /api/v1/glazes?limit=
// Returns the glaze history newest first, with the holders' profiles.
func (s *Service) ListGlazes(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	ctx := r.Context()
	glazes, err := s.cfg.Store.ListGlazes(ctx, limit)
	if err != nil {
		s.log.Error("list glazes failed", "err", err)
		writeError(w, "failed to list glazes", http.StatusInternalServerError)
		return
	}
	if glazes == nil {
		glazes = []model.GlazeRecord{}
	}

	miners := make([]string, 0, len(glazes))
	for _, g := range glazes {
		miners = append(miners, g.Miner)
	}
	writeJSON(w, http.StatusOK, GlazesResponse{Glazes: glazes, Profiles: s.profiles(ctx, miners)})
}

// GetGlaze handles GET /api/v1/glazes/{epochID}
func (s *Service) GetGlaze(w http.ResponseWriter, r *http.Request) {
	epochID, err := strconv.ParseUint(chi.URLParam(r, "epochID"), 10, 64)
	if err != nil {
		writeError(w, "epoch id must be an integer", http.StatusBadRequest)
		return
	}
	rec, err := s.cfg.Store.GetGlaze(r.Context(), epochID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "glaze not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("get glaze failed", "epoch", epochID, "err", err)
		writeError(w, "failed to load glaze", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Refresh handles POST /api/v1/refresh
func (s *Service) Refresh(w http.ResponseWriter, r *http.Request) {
	s.cfg.Engine.Refresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh scheduled"})
}

// BuildSwap handles POST /api/v1/tx/swap
// Routes through the aggregator when one is configured, and otherwise (or
// when it fails) quotes the pair from freshly read reserves. Either way the
// output is bounded by the slippage guard, and sells short of the spender's
// allowance also get an approve.
func (s *Service) BuildSwap(w http.ResponseWriter, r *http.Request) {
	var req SwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	account, err := contracts.ParseContract(req.Account)
	if err != nil {
		writeError(w, "account must be a non-zero address", http.StatusBadRequest)
		return
	}
	side, err := ParseSide(req.Side)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	amountIn, err := fixedpoint.ParseEther(req.AmountIn)
	if err != nil || amountIn.Sign() == 0 {
		writeError(w, "amount_in must be a positive decimal amount", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	wallet, err := s.cfg.Accounts.MinerState(ctx, account)
	if err != nil {
		s.log.Error("wallet read failed", "account", account, "err", err)
		writeError(w, "failed to read wallet", http.StatusBadGateway)
		return
	}

	g := s.cfg.Guard
	resp := TxResponse{Deadline: bounds.Deadline(s.cfg.Clock.Now(), g.SwapTTL), Route: RoutePool}
	spender := s.cfg.Book.Router

	if swap, ok := s.routeSwap(ctx, account, side, amountIn); ok {
		value := new(big.Int)
		if side == Buy {
			value.Set(amountIn)
		}
		resp.Route = RouteAggregator
		resp.Tx = chain.TxRequest{To: swap.Router, Data: swap.Data, Value: value}
		resp.Quote = &model.SwapQuote{
			AmountIn:     amountIn,
			AmountOut:    swap.AmountOut,
			MinAmountOut: g.SwapMinOut(swap.AmountOut),
			PriceImpact:  display.Placeholder,
			Display:      display.Format(swap.AmountOut, display.Output),
		}
		spender = swap.Router
	} else {
		reserves, err := s.cfg.Accounts.PoolReserves(ctx, s.cfg.Book.Pair, s.cfg.Book.WETH)
		if err != nil {
			s.log.Error("pool read failed", "pair", s.cfg.Book.Pair, "err", err)
			writeError(w, "failed to read pool", http.StatusBadGateway)
			return
		}
		quote, err := amm.QuoteExactIn(Orient(reserves, side), amountIn)
		if err != nil {
			writeError(w, quoteMessage(err), quoteStatus(err))
			return
		}
		params := chain.SwapParams{
			AmountIn:     amountIn,
			AmountOutMin: g.SwapMinOut(quote.AmountOut),
			Recipient:    account,
			Deadline:     resp.Deadline,
		}
		if side == Buy {
			params.Path = s.cfg.Builder.BuyPath()
			resp.Tx, err = s.cfg.Builder.SwapExactETHForTokens(params)
		} else {
			params.Path = s.cfg.Builder.SellPath()
			resp.Tx, err = s.cfg.Builder.SwapExactTokensForETH(params)
		}
		if err != nil {
			s.log.Error("swap calldata failed", "side", side, "err", err)
			writeError(w, "failed to build swap", http.StatusInternalServerError)
			return
		}
		sq := SwapQuote(quote, params.AmountOutMin)
		resp.Quote = &sq
	}

	if side == Buy {
		if err := g.CheckSpend(amountIn, wallet.ETHBalance, nil); err != nil {
			writeError(w, "insufficient balance", http.StatusUnprocessableEntity)
			return
		}
	} else {
		allowance, err := s.cfg.Accounts.Allowance(ctx, s.cfg.Book.Donut, account, spender)
		if err != nil {
			s.log.Error("allowance read failed", "account", account, "err", err)
			writeError(w, "failed to read allowance", http.StatusBadGateway)
			return
		}
		if !s.approveSpend(w, &resp, s.cfg.Book.Donut, spender, amountIn, wallet.DonutBalance, allowance) {
			return
		}
	}

	s.log.Info("swap built",
		"account", contracts.Normalize(account),
		"side", side,
		"route", resp.Route,
		"amount_in", amountIn.String(),
		"min_out", resp.Quote.MinAmountOut.String(),
		"needs_approval", resp.Approval != nil,
	)
	writeJSON(w, http.StatusOK, resp)
}

// Swap routes.
const (
	RouteAggregator = "aggregator"
	RoutePool       = "uniswap_v2"
)

// routeSwap asks the aggregator for calldata. It reports false when no
// aggregator is configured or it fails, and the caller falls back to the
// pool.
func (s *Service) routeSwap(ctx context.Context, account common.Address, side Side, amountIn *big.Int) (aggregator.Swap, bool) {
	if s.cfg.Aggregator == nil {
		return aggregator.Swap{}, false
	}
	req := aggregator.SwapRequest{
		TokenIn:     contracts.NativeETH,
		TokenOut:    s.cfg.Book.Donut,
		AmountIn:    amountIn,
		Sender:      account,
		Recipient:   account,
		SlippageBps: s.cfg.Guard.SlippageBps,
	}
	if side == Sell {
		req.TokenIn, req.TokenOut = s.cfg.Book.Donut, contracts.NativeETH
	}
	swap, err := s.cfg.Aggregator.Swap(ctx, req)
	if err != nil {
		s.log.Warn("aggregator swap failed, using pool", "side", side, "err", err)
		return aggregator.Swap{}, false
	}
	if swap.AmountIn.Cmp(amountIn) != 0 {
		s.log.Warn("aggregator changed the input amount, using pool", "want", amountIn.String(), "got", swap.AmountIn.String())
		return aggregator.Swap{}, false
	}
	return swap, true
}

// BuildGlaze handles POST /api/v1/tx/glaze
// Prices the current epoch from a fresh read and returns mine calldata that
// pays at most the buffered price.
func (s *Service) BuildGlaze(w http.ResponseWriter, r *http.Request) {
	var req GlazeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	account, err := contracts.ParseContract(req.Account)
	if err != nil {
		writeError(w, "account must be a non-zero address", http.StatusBadRequest)
		return
	}
	var provider common.Address
	if req.Provider != "" {
		if provider, err = contracts.ParseAddress(req.Provider); err != nil {
			writeError(w, "provider must be an address", http.StatusBadRequest)
			return
		}
	}

	m, err := s.cfg.Accounts.MinerState(r.Context(), account)
	if err != nil {
		s.log.Error("miner read failed", "account", account, "err", err)
		writeError(w, "failed to read miner", http.StatusBadGateway)
		return
	}

	now := s.cfg.Clock.Now()
	g := s.cfg.Guard
	maxPrice := g.AuctionMaxPrice(s.cfg.Deriver.Price(m, now.Unix()))
	if err := g.CheckSpend(maxPrice, m.ETHBalance, nil); err != nil {
		writeError(w, "insufficient balance", http.StatusUnprocessableEntity)
		return
	}

	deadline := bounds.Deadline(now, g.AuctionTTL)
	tx, err := s.cfg.Builder.Mine(provider, m.EpochID, deadline, maxPrice, req.URI)
	if err != nil {
		s.log.Error("mine calldata failed", "err", err)
		writeError(w, "failed to build glaze", http.StatusInternalServerError)
		return
	}

	s.log.Info("glaze built",
		"account", contracts.Normalize(account),
		"epoch", m.EpochID,
		"max_price", maxPrice.String(),
	)
	writeJSON(w, http.StatusOK, TxResponse{Tx: tx, MaxPrice: maxPrice, Deadline: deadline})
}

// Confirm handles POST /api/v1/tx/confirm
// Waits for the receipt and schedules a refresh once it is mined.
func (s *Service) Confirm(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Receipts == nil {
		writeError(w, "receipt source not configured", http.StatusServiceUnavailable)
		return
	}
	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	hash := strings.TrimSpace(req.Hash)
	if len(hash) != 66 || !strings.HasPrefix(hash, "0x") {
		writeError(w, "hash must be a 32-byte hex string", http.StatusBadRequest)
		return
	}

	c, err := chain.WaitConfirmation(r.Context(), s.cfg.Receipts, s.cfg.Clock, common.HexToHash(hash), s.cfg.ConfirmInterval)
	switch {
	case err == nil, errors.Is(err, chain.ErrReverted):
		s.cfg.Engine.Refresh()
		status := "success"
		if !c.Success {
			status = "reverted"
		}
		s.log.Info("transaction confirmed", "hash", c.Hash.Hex(), "block", c.BlockNumber, "status", status)
		writeJSON(w, http.StatusOK, ConfirmResponse{Hash: c.Hash.Hex(), BlockNumber: c.BlockNumber, Status: status})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, "transaction not mined yet", http.StatusGatewayTimeout)
	default:
		s.log.Error("receipt lookup failed", "hash", hash, "err", err)
		writeError(w, "receipt lookup failed", http.StatusBadGateway)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
