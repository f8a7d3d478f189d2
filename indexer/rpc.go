package indexer

import (
	"context"
	"fmt"

	"github.com/TEENet-io/mintburn-bridge/btcman/rpc"
	"github.com/btcsuite/btcd/chaincfg"
)

// NodeClient is the part of rpc.RpcClient the indexer uses.
type NodeClient interface {
	GetLatestBlockHeight() (int64, error)
	ListUnspentOf(address string, params *chaincfg.Params) ([]rpc.UnspentOutput, error)
}

// RpcIndexer answers from a bitcoind wallet. Addresses must be watched by
// the node, see rpc.RpcClient.WatchAddress.
type RpcIndexer struct {
	node   NodeClient
	params *chaincfg.Params
}

func NewRpcIndexer(node NodeClient, params *chaincfg.Params) *RpcIndexer {
	return &RpcIndexer{node: node, params: params}
}

func (r *RpcIndexer) GetBalance(ctx context.Context, address string) ([]Utxo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tip, err := r.TipHeight(ctx)
	if err != nil {
		return nil, err
	}
	unspent, err := r.node.ListUnspentOf(address, r.params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexerUnavailable, err)
	}

	utxos := make([]Utxo, 0, len(unspent))
	for _, u := range unspent {
		var height uint32
		if u.Confirmations > 0 {
			height = tip - uint32(u.Confirmations) + 1
		}
		utxos = append(utxos, Utxo{TxID: u.TxID, Vout: u.Vout, Value: u.Amount, Height: height})
	}
	return utxos, nil
}

func (r *RpcIndexer) TipHeight(ctx context.Context) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	h, err := r.node.GetLatestBlockHeight()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIndexerUnavailable, err)
	}
	return uint32(h), nil
}
