package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/glazecorp/glaze-engine/internal/bounds"
	"github.com/glazecorp/glaze-engine/internal/contracts"
	"github.com/glazecorp/glaze-engine/internal/fixedpoint"
	"github.com/glazecorp/glaze-engine/internal/model"
)

// AuctionReader reads rig and strategy auctions. *chain.Reader implements
// it.
type AuctionReader interface {
	RigAuction(ctx context.Context, rig, account common.Address) (model.RigAuctionState, error)
	Strategies(ctx context.Context, account common.Address) ([]model.StrategyState, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
}

// AuctionBuyRequest is the JSON body for POST /tx/auction.
type AuctionBuyRequest struct {
	Account  string `json:"account"`
	Rig      string `json:"rig"`
	LPAmount string `json:"lp_amount,omitempty"` // decimal; defaults to the max price
}

// StrategyBuyRequest is the JSON body for POST /tx/strategy.
type StrategyBuyRequest struct {
	Account  string `json:"account"`
	Strategy string `json:"strategy"`
}

func (s *Service) auctionRoutes(r chi.Router) {
	r.Get("/auctions/{rig}", s.GetRigAuction)
	r.Get("/strategies", s.ListStrategies)
	r.Post("/tx/auction", s.BuildAuctionBuy)
	r.Post("/tx/strategy", s.BuildStrategyBuy)
}

func (s *Service) auctions(w http.ResponseWriter) (AuctionReader, bool) {
	if s.cfg.Auctions == nil {
		writeError(w, "auction reader not configured", http.StatusServiceUnavailable)
		return nil, false
	}
	return s.cfg.Auctions, true
}

// queryAccount parses the optional ?account= parameter.
func queryAccount(r *http.Request) (common.Address, error) {
	v := r.URL.Query().Get("account")
	if v == "" {
		return common.Address{}, nil
	}
	return contracts.ParseAddress(v)
}

// GetRigAuction handles GET /api/v1/auctions/{rig}?account=
func (s *Service) GetRigAuction(w http.ResponseWriter, r *http.Request) {
	reader, ok := s.auctions(w)
	if !ok {
		return
	}
	rig, err := contracts.ParseContract(chi.URLParam(r, "rig"))
	if err != nil {
		writeError(w, "rig must be a non-zero address", http.StatusBadRequest)
		return
	}
	account, err := queryAccount(r)
	if err != nil {
		writeError(w, "account must be an address", http.StatusBadRequest)
		return
	}
	a, err := reader.RigAuction(r.Context(), rig, account)
	if err != nil {
		s.log.Error("rig auction read failed", "rig", rig, "err", err)
		writeError(w, "failed to read auction", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Deriver.RigAuction(a, s.cfg.Clock.Now().Unix()))
}

// ListStrategies handles GET /api/v1/strategies?account=
func (s *Service) ListStrategies(w http.ResponseWriter, r *http.Request) {
	reader, ok := s.auctions(w)
	if !ok {
		return
	}
	account, err := queryAccount(r)
	if err != nil {
		writeError(w, "account must be an address", http.StatusBadRequest)
		return
	}
	states, err := reader.Strategies(r.Context(), account)
	if err != nil {
		s.log.Error("strategies read failed", "err", err)
		writeError(w, "failed to read strategies", http.StatusBadGateway)
		return
	}
	now := s.cfg.Clock.Now().Unix()
	views := make([]model.AuctionView, 0, len(states))
	for _, st := range states {
		views = append(views, s.cfg.Deriver.Strategy(st, now))
	}
	writeJSON(w, http.StatusOK, views)
}

// BuildAuctionBuy handles POST /api/v1/tx/auction
// Reads the rig auction fresh and returns buy calldata that pays at most the
// buffered on-chain price, plus an LP approval when the allowance is short.
func (s *Service) BuildAuctionBuy(w http.ResponseWriter, r *http.Request) {
	reader, ok := s.auctions(w)
	if !ok {
		return
	}
	var req AuctionBuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	account, err := contracts.ParseContract(req.Account)
	if err != nil {
		writeError(w, "account must be a non-zero address", http.StatusBadRequest)
		return
	}
	rig, err := contracts.ParseContract(req.Rig)
	if err != nil {
		writeError(w, "rig must be a non-zero address", http.StatusBadRequest)
		return
	}
	var lpAmount *big.Int
	if req.LPAmount != "" {
		if lpAmount, err = fixedpoint.ParseEther(req.LPAmount); err != nil || lpAmount.Sign() == 0 {
			writeError(w, "lp_amount must be a positive decimal amount", http.StatusBadRequest)
			return
		}
	}

	ctx := r.Context()
	a, err := reader.RigAuction(ctx, rig, account)
	if err != nil {
		s.log.Error("rig auction read failed", "rig", rig, "err", err)
		writeError(w, "failed to read auction", http.StatusBadGateway)
		return
	}
	if fixedpoint.Cmp(a.WETHAccumulated, nil) <= 0 {
		writeError(w, "auction has nothing to sell", http.StatusConflict)
		return
	}

	now := s.cfg.Clock.Now()
	g := s.cfg.Guard
	maxPrice := g.AuctionMaxPrice(a.Price)
	if lpAmount == nil {
		lpAmount = fixedpoint.Clone(maxPrice)
	}
	allowance, err := reader.Allowance(ctx, a.PaymentToken, account, s.cfg.Book.Launchpad)
	if err != nil {
		s.log.Error("allowance read failed", "account", account, "err", err)
		writeError(w, "failed to read allowance", http.StatusBadGateway)
		return
	}

	deadline := bounds.Deadline(now, g.AuctionTTL)
	tx, err := s.cfg.Builder.BuyAuction(rig, account, a.EpochID, deadline, maxPrice, lpAmount)
	if err != nil {
		s.log.Error("auction calldata failed", "rig", rig, "err", err)
		writeError(w, "failed to build auction buy", http.StatusInternalServerError)
		return
	}
	resp := TxResponse{Tx: tx, MaxPrice: maxPrice, Deadline: deadline}
	if !s.approveSpend(w, &resp, a.PaymentToken, s.cfg.Book.Launchpad, lpAmount, a.PaymentTokenBalance, allowance) {
		return
	}
	view := s.cfg.Deriver.RigAuction(a, now.Unix())
	resp.Auction = &view

	s.log.Info("auction buy built",
		"account", contracts.Normalize(account),
		"rig", contracts.Normalize(rig),
		"epoch", a.EpochID,
		"max_price", maxPrice.String(),
		"needs_approval", resp.Approval != nil,
	)
	writeJSON(w, http.StatusOK, resp)
}

// BuildStrategyBuy handles POST /api/v1/tx/strategy
// Reads the strategy list fresh and returns distributeAndBuy calldata that
// pays at most the buffered on-chain price.
func (s *Service) BuildStrategyBuy(w http.ResponseWriter, r *http.Request) {
	reader, ok := s.auctions(w)
	if !ok {
		return
	}
	var req StrategyBuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	account, err := contracts.ParseContract(req.Account)
	if err != nil {
		writeError(w, "account must be a non-zero address", http.StatusBadRequest)
		return
	}
	target, err := contracts.ParseContract(req.Strategy)
	if err != nil {
		writeError(w, "strategy must be a non-zero address", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	states, err := reader.Strategies(ctx, account)
	if err != nil {
		s.log.Error("strategies read failed", "err", err)
		writeError(w, "failed to read strategies", http.StatusBadGateway)
		return
	}
	st, found := findStrategy(states, target)
	if !found {
		writeError(w, "strategy not found", http.StatusNotFound)
		return
	}
	if !st.IsAlive {
		writeError(w, "strategy is not alive", http.StatusConflict)
		return
	}

	now := s.cfg.Clock.Now()
	g := s.cfg.Guard
	maxPayment := g.AuctionMaxPrice(st.Price)
	allowance, err := reader.Allowance(ctx, st.PaymentToken, account, s.cfg.Book.LSG)
	if err != nil {
		s.log.Error("allowance read failed", "account", account, "err", err)
		writeError(w, "failed to read allowance", http.StatusBadGateway)
		return
	}

	deadline := bounds.Deadline(now, g.AuctionTTL)
	tx, err := s.cfg.Builder.DistributeAndBuy(target, st.EpochID, deadline, maxPayment)
	if err != nil {
		s.log.Error("strategy calldata failed", "strategy", target, "err", err)
		writeError(w, "failed to build strategy buy", http.StatusInternalServerError)
		return
	}
	resp := TxResponse{Tx: tx, MaxPrice: maxPayment, Deadline: deadline}
	if !s.approveSpend(w, &resp, st.PaymentToken, s.cfg.Book.LSG, maxPayment, st.PaymentTokenBalance, allowance) {
		return
	}
	view := s.cfg.Deriver.Strategy(st, now.Unix())
	resp.Auction = &view

	s.log.Info("strategy buy built",
		"account", contracts.Normalize(account),
		"strategy", contracts.Normalize(target),
		"epoch", st.EpochID,
		"max_payment", maxPayment.String(),
		"needs_approval", resp.Approval != nil,
	)
	writeJSON(w, http.StatusOK, resp)
}

func findStrategy(states []model.StrategyState, target common.Address) (model.StrategyState, bool) {
	for _, st := range states {
		if st.Strategy == target {
			return st, true
		}
	}
	return model.StrategyState{}, false
}

// approveSpend applies the guard's balance and allowance checks to an
// ERC-20 spend, attaching an approve of exactly amount when needed. It
// writes the error response and returns false when the spend cannot go
// ahead.
func (s *Service) approveSpend(w http.ResponseWriter, resp *TxResponse, token, spender common.Address, amount, balance, allowance *big.Int) bool {
	err := s.cfg.Guard.CheckSpend(amount, balance, allowance)
	switch {
	case errors.Is(err, bounds.ErrInsufficientBalance):
		writeError(w, "insufficient balance", http.StatusUnprocessableEntity)
		return false
	case errors.Is(err, bounds.ErrApprovalRequired):
		approve, err := s.cfg.Builder.Approve(token, spender, amount)
		if err != nil {
			writeError(w, "failed to build approval", http.StatusInternalServerError)
			return false
		}
		resp.Approval = &approve
	}
	return true
}
