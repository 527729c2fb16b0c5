// Package chain reads GlazeCorp contract state over JSON-RPC and builds
// calldata for the transactions the terminal offers. Signing and broadcast
// belong to an external Submitter.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/glazecorp/glaze-engine/internal/amm"
	"github.com/glazecorp/glaze-engine/internal/contracts"
	"github.com/glazecorp/glaze-engine/internal/model"
)

// ErrEmptyResult is returned when a call succeeds but returns no data,
// which is what a call to an address without code looks like.
var ErrEmptyResult = errors.New("chain: empty call result")

// RPCError wraps a failed read with the contract call that failed.
type RPCError struct {
	Method string
	To     common.Address
	Err    error
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("chain: %s on %s: %v", e.Method, e.To.Hex(), e.Err)
}

func (e *RPCError) Unwrap() error { return e.Err }

// Caller is the read half of ethclient.Client.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// StateReader fetches the on-chain inputs of the derivation engine.
type StateReader interface {
	MinerState(ctx context.Context, account common.Address) (model.MinerState, error)
	PoolReserves(ctx context.Context, pair, tokenIn common.Address) (model.PoolReserves, error)
	MinerStartTime(ctx context.Context) (int64, error)
}

// Dial connects to a JSON-RPC endpoint.
func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("chain: dial: %w", err)
	}
	return c, nil
}

// Reader implements StateReader with eth_call against the multicall, miner,
// and pair contracts.
type Reader struct {
	caller Caller
	book   contracts.Book
}

// NewReader returns a Reader for the given address book.
func NewReader(caller Caller, book contracts.Book) *Reader {
	return &Reader{caller: caller, book: book}
}

var _ StateReader = (*Reader)(nil)

func (r *Reader) call(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, &RPCError{Method: method, To: to, Err: err}
	}
	if len(out) == 0 {
		return nil, &RPCError{Method: method, To: to, Err: ErrEmptyResult}
	}
	values, err := contract.Unpack(method, out)
	if err != nil {
		return nil, &RPCError{Method: method, To: to, Err: err}
	}
	return values, nil
}

// MinerState reads the multicall getMiner struct in one round trip. The
// balance fields are those of account; pass the zero address for none.
func (r *Reader) MinerState(ctx context.Context, account common.Address) (model.MinerState, error) {
	values, err := r.call(ctx, multicallABI, r.book.Multicall, "getMiner", account)
	if err != nil {
		return model.MinerState{}, err
	}
	t, ok := abi.ConvertType(values[0], new(minerTuple)).(*minerTuple)
	if !ok {
		return model.MinerState{}, &RPCError{Method: "getMiner", To: r.book.Multicall, Err: errors.New("unexpected output shape")}
	}
	return model.MinerState{
		EpochID:      uint64(t.EpochId),
		InitPrice:    t.InitPrice,
		StartTime:    t.StartTime.Int64(),
		Glazed:       t.Glazed,
		Price:        t.Price,
		DPS:          t.Dps,
		NextDPS:      t.NextDps,
		DonutPrice:   t.DonutPrice,
		Miner:        t.Miner,
		URI:          t.Uri,
		ETHBalance:   t.EthBalance,
		WETHBalance:  t.WethBalance,
		DonutBalance: t.DonutBalance,
	}, nil
}

// MinerStartTime reads the miner contract's deployment start, the genesis of
// the halving schedule.
func (r *Reader) MinerStartTime(ctx context.Context) (int64, error) {
	values, err := r.call(ctx, minerABI, r.book.Miner, "startTime")
	if err != nil {
		return 0, err
	}
	return values[0].(*big.Int).Int64(), nil
}

// PoolReserves reads pair reserves oriented so that ReserveIn belongs to
// tokenIn.
func (r *Reader) PoolReserves(ctx context.Context, pair, tokenIn common.Address) (model.PoolReserves, error) {
	reserves, err := r.call(ctx, pairABI, pair, "getReserves")
	if err != nil {
		return model.PoolReserves{}, err
	}
	token0, err := r.call(ctx, pairABI, pair, "token0")
	if err != nil {
		return model.PoolReserves{}, err
	}
	r0 := reserves[0].(*big.Int)
	r1 := reserves[1].(*big.Int)

	pool := model.PoolReserves{ReserveIn: r1, ReserveOut: r0, FeeBps: amm.UniswapV2FeeBps}
	if token0[0].(common.Address) == tokenIn {
		pool.ReserveIn, pool.ReserveOut = r0, r1
	}
	return pool, nil
}

// TokenBalance reads an ERC-20 balance.
func (r *Reader) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	values, err := r.call(ctx, erc20ABI, token, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return values[0].(*big.Int), nil
}

// Allowance reads an ERC-20 allowance.
func (r *Reader) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	values, err := r.call(ctx, erc20ABI, token, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return values[0].(*big.Int), nil
}

// RigAuction reads the LP auction of one rig. The payment token balance is
// that of account.
func (r *Reader) RigAuction(ctx context.Context, rig, account common.Address) (model.RigAuctionState, error) {
	values, err := r.call(ctx, launchpadABI, r.book.Launchpad, "getAuction", rig, account)
	if err != nil {
		return model.RigAuctionState{}, err
	}
	t, ok := abi.ConvertType(values[0], new(auctionTuple)).(*auctionTuple)
	if !ok {
		return model.RigAuctionState{}, &RPCError{Method: "getAuction", To: r.book.Launchpad, Err: errors.New("unexpected output shape")}
	}
	return model.RigAuctionState{
		Rig:                 rig,
		EpochID:             t.EpochId.Uint64(),
		InitPrice:           t.InitPrice,
		StartTime:           t.StartTime.Int64(),
		PaymentToken:        t.PaymentToken,
		Price:               t.Price,
		PaymentTokenPrice:   t.PaymentTokenPrice,
		WETHAccumulated:     t.WethAccumulated,
		WETHBalance:         t.WethBalance,
		DonutBalance:        t.DonutBalance,
		PaymentTokenBalance: t.PaymentTokenBalance,
	}, nil
}

// Strategies reads every LSG strategy with account's payment balances.
func (r *Reader) Strategies(ctx context.Context, account common.Address) ([]model.StrategyState, error) {
	values, err := r.call(ctx, lsgABI, r.book.LSG, "getAllStrategiesData", account)
	if err != nil {
		return nil, err
	}
	ts, ok := abi.ConvertType(values[0], new([]strategyTuple)).(*[]strategyTuple)
	if !ok {
		return nil, &RPCError{Method: "getAllStrategiesData", To: r.book.LSG, Err: errors.New("unexpected output shape")}
	}
	out := make([]model.StrategyState, 0, len(*ts))
	for _, t := range *ts {
		out = append(out, model.StrategyState{
			Strategy:             t.Strategy,
			PaymentToken:         t.PaymentToken,
			IsAlive:              t.IsAlive,
			PaymentTokenDecimals: t.PaymentTokenDecimals,
			VotePercent:          t.VotePercent,
			EpochPeriod:          t.EpochPeriod.Int64(),
			PriceMultiplier:      t.PriceMultiplier,
			MinInitPrice:         t.MinInitPrice,
			EpochID:              t.EpochId.Uint64(),
			InitPrice:            t.InitPrice,
			StartTime:            t.StartTime.Int64(),
			Price:                t.CurrentPrice,
			RevenueBalance:       t.RevenueBalance,
			PaymentTokenBalance:  t.AccountPaymentTokenBalance,
		})
	}
	return out, nil
}
