// Package indexer queries the source chain for outputs paying to an address.
package indexer

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrIndexerUnavailable = errors.New("indexer unavailable")
	ErrBadResponse        = errors.New("unexpected indexer response")
)

// Utxo is an output reported by the indexer. Height is 0 while unconfirmed.
type Utxo struct {
	TxID   string
	Vout   uint32
	Value  int64
	Height uint32
}

// SourceID is "txid:vout".
func (u Utxo) SourceID() string {
	return fmt.Sprintf("%s:%d", u.TxID, u.Vout)
}

// Confirmations returns tip - height + 1, 0 when unconfirmed or above tip.
func (u Utxo) Confirmations(tip uint32) uint32 {
	if u.Height == 0 || u.Height > tip {
		return 0
	}
	return tip - u.Height + 1
}

type Indexer interface {
	GetBalance(ctx context.Context, address string) ([]Utxo, error)
	TipHeight(ctx context.Context) (uint32, error)
}
