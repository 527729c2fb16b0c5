package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/glazecorp/glaze-engine/internal/contracts"
	"github.com/glazecorp/glaze-engine/internal/fixedpoint"
)

// TxRequest is an unsigned transaction ready for a Submitter.
type TxRequest struct {
	To    common.Address `json:"to"`
	Data  hexutil.Bytes  `json:"data"`
	Value *big.Int       `json:"value"`
}

// SwapParams describes a router swap along a two-hop path.
type SwapParams struct {
	AmountIn     *big.Int
	AmountOutMin *big.Int
	Path         []common.Address
	Recipient    common.Address
	Deadline     *big.Int
}

// Builder encodes calldata for one address book.
type Builder struct {
	book contracts.Book
}

// NewBuilder returns a Builder for book.
func NewBuilder(book contracts.Book) *Builder {
	return &Builder{book: book}
}

func checkAmounts(vals ...*big.Int) error {
	for _, v := range vals {
		if v == nil {
			return fmt.Errorf("chain: missing amount: %w", fixedpoint.ErrInvalidAmount)
		}
		if err := fixedpoint.CheckUint256(v); err != nil {
			return fmt.Errorf("chain: %w", err)
		}
	}
	return nil
}

// SwapExactETHForTokens spends AmountIn of native ETH, sent as value.
func (b *Builder) SwapExactETHForTokens(p SwapParams) (TxRequest, error) {
	if err := checkAmounts(p.AmountIn, p.AmountOutMin, p.Deadline); err != nil {
		return TxRequest{}, err
	}
	data, err := routerABI.Pack("swapExactETHForTokens", p.AmountOutMin, p.Path, p.Recipient, p.Deadline)
	if err != nil {
		return TxRequest{}, fmt.Errorf("chain: pack swapExactETHForTokens: %w", err)
	}
	return TxRequest{To: b.book.Router, Data: data, Value: new(big.Int).Set(p.AmountIn)}, nil
}

// SwapExactTokensForETH spends AmountIn of the first path token. The router
// needs an allowance of at least AmountIn.
func (b *Builder) SwapExactTokensForETH(p SwapParams) (TxRequest, error) {
	if err := checkAmounts(p.AmountIn, p.AmountOutMin, p.Deadline); err != nil {
		return TxRequest{}, err
	}
	data, err := routerABI.Pack("swapExactTokensForETH", p.AmountIn, p.AmountOutMin, p.Path, p.Recipient, p.Deadline)
	if err != nil {
		return TxRequest{}, fmt.Errorf("chain: pack swapExactTokensForETH: %w", err)
	}
	return TxRequest{To: b.book.Router, Data: data, Value: new(big.Int)}, nil
}

// Approve lets spender pull amount of token.
func (b *Builder) Approve(token, spender common.Address, amount *big.Int) (TxRequest, error) {
	if err := checkAmounts(amount); err != nil {
		return TxRequest{}, err
	}
	data, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return TxRequest{}, fmt.Errorf("chain: pack approve: %w", err)
	}
	return TxRequest{To: token, Data: data, Value: new(big.Int)}, nil
}

// Mine takes over the miner for epochID, paying at most maxPrice. The
// epoch id guards against paying into a newer epoch than the one quoted.
func (b *Builder) Mine(provider common.Address, epochID uint64, deadline, maxPrice *big.Int, uri string) (TxRequest, error) {
	if err := checkAmounts(deadline, maxPrice); err != nil {
		return TxRequest{}, err
	}
	data, err := multicallABI.Pack("mine", provider, new(big.Int).SetUint64(epochID), deadline, maxPrice, uri)
	if err != nil {
		return TxRequest{}, fmt.Errorf("chain: pack mine: %w", err)
	}
	return TxRequest{To: b.book.Multicall, Data: data, Value: new(big.Int).Set(maxPrice)}, nil
}

// BuyAuction buys a rig's accumulated WETH for at most maxPrice of its LP
// token. The launchpad multicall needs an LP allowance of at least maxPrice.
func (b *Builder) BuyAuction(rig, account common.Address, epochID uint64, deadline, maxPrice, lpAmount *big.Int) (TxRequest, error) {
	if err := checkAmounts(deadline, maxPrice, lpAmount); err != nil {
		return TxRequest{}, err
	}
	data, err := launchpadABI.Pack("buy", rig, account, new(big.Int).SetUint64(epochID), deadline, maxPrice, lpAmount)
	if err != nil {
		return TxRequest{}, fmt.Errorf("chain: pack buy: %w", err)
	}
	return TxRequest{To: b.book.Launchpad, Data: data, Value: new(big.Int)}, nil
}

// DistributeAndBuy distributes a strategy's pending revenue and buys it for
// at most maxPayment of the strategy's payment token.
func (b *Builder) DistributeAndBuy(strategy common.Address, epochID uint64, deadline, maxPayment *big.Int) (TxRequest, error) {
	if err := checkAmounts(deadline, maxPayment); err != nil {
		return TxRequest{}, err
	}
	data, err := lsgABI.Pack("distributeAndBuy", strategy, new(big.Int).SetUint64(epochID), deadline, maxPayment)
	if err != nil {
		return TxRequest{}, fmt.Errorf("chain: pack distributeAndBuy: %w", err)
	}
	return TxRequest{To: b.book.LSG, Data: data, Value: new(big.Int)}, nil
}

// BuyPath returns the router path for ETH -> DONUT.
func (b *Builder) BuyPath() []common.Address {
	return []common.Address{b.book.WETH, b.book.Donut}
}

// SellPath returns the router path for DONUT -> ETH.
func (b *Builder) SellPath() []common.Address {
	return []common.Address{b.book.Donut, b.book.WETH}
}
