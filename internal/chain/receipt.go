package chain

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ErrTxReverted is returned by WaitForReceipt when the transaction was mined
// with status 0.
var ErrTxReverted = errors.New("transaction reverted")

// DefaultReceiptInterval is the poll interval used when none is given.
const DefaultReceiptInterval = 2 * time.Second

// ReceiptFetcher returns the receipt for hash, or nil while it is pending.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*TxReceipt, error)
}

// WaitForReceipt polls until hash is mined or ctx is done. A reverted
// transaction returns its receipt together with ErrTxReverted.
func WaitForReceipt(ctx context.Context, f ReceiptFetcher, hash common.Hash, interval time.Duration) (*TxReceipt, error) {
	if interval <= 0 {
		interval = DefaultReceiptInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		r, err := f.TransactionReceipt(ctx, hash)
		if err != nil {
			return nil, err
		}
		if r != nil {
			if r.Status == 0 {
				return r, ErrTxReverted
			}
			return r, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
