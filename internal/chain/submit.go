package chain

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/jonboulle/clockwork"
)

// ErrUserRejected is returned by a Submitter when the signer declines.
var ErrUserRejected = errors.New("chain: user rejected transaction")

// ErrReverted is returned by WaitConfirmation for a failed receipt.
var ErrReverted = errors.New("chain: transaction reverted")

// Submitter signs and broadcasts a TxRequest. Implementations live outside
// this service (wallet, relayer).
type Submitter interface {
	Submit(ctx context.Context, tx TxRequest) (common.Hash, error)
}

// ReceiptSource is the receipt half of ethclient.Client.
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Confirmation is the outcome of a mined transaction.
type Confirmation struct {
	Hash        common.Hash
	BlockNumber uint64
	Success     bool
}

// WaitConfirmation polls for the receipt of hash every interval until it is
// mined or ctx ends. A reverted receipt returns the Confirmation together
// with ErrReverted.
func WaitConfirmation(ctx context.Context, src ReceiptSource, clock clockwork.Clock, hash common.Hash, interval time.Duration) (Confirmation, error) {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := src.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			c := Confirmation{Hash: hash, Success: receipt.Status == types.ReceiptStatusSuccessful}
			if receipt.BlockNumber != nil {
				c.BlockNumber = receipt.BlockNumber.Uint64()
			}
			if !c.Success {
				return c, ErrReverted
			}
			return c, nil
		case !errors.Is(err, ethereum.NotFound):
			return Confirmation{}, &RPCError{Method: "eth_getTransactionReceipt", Err: err}
		}

		select {
		case <-ctx.Done():
			return Confirmation{}, ctx.Err()
		case <-ticker.Chan():
		}
	}
}
