package rpc

import (
	"encoding/hex"
	"errors"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"

	"github.com/TEENet-io/mintburn-bridge/btcman/utxo"
)

const (
	MAX_CONFIRM = 9999999
)

var ErrTxNotFound = errors.New("transaction not found")

type RpcClientConfig struct {
	ServerAddr string // ip address of server
	Port       string // port of server
	Username   string
	Pwd        string
}

// Wrapper of btc rpc client.
type RpcClient struct {
	ServerAddr string
	Port       string
	client     *rpcclient.Client
}

// NewRpcClient connects to a bitcoind node over HTTP POST.
func NewRpcClient(rcc *RpcClientConfig) (*RpcClient, error) {
	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         rcc.ServerAddr + ":" + rcc.Port,
		User:         rcc.Username,
		Pass:         rcc.Pwd,
		HTTPPostMode: true, // bitcoind only supports HTTP POST mode
		DisableTLS:   true, // bitcoind does not support TLS
	}, nil)
	if err != nil {
		return nil, err
	}

	return &RpcClient{ServerAddr: rcc.ServerAddr, Port: rcc.Port, client: client}, nil
}

func (r *RpcClient) Close() {
	r.client.Shutdown()
}

// Get the latest block height.
func (r *RpcClient) GetLatestBlockHeight() (int64, error) {
	return r.client.GetBlockCount()
}

// UnspentOutput is one entry of listunspent.
type UnspentOutput struct {
	utxo.UTXO
	Confirmations int64
}

// ListUnspentOf lists outputs paying to address, including unconfirmed ones.
// bitcoind only tracks addresses imported into its wallet, see WatchAddress.
func (r *RpcClient) ListUnspentOf(address string, params *chaincfg.Params) ([]UnspentOutput, error) {
	addr, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return nil, err
	}

	unspent, err := r.client.ListUnspentMinMaxAddresses(0, MAX_CONFIRM, []btcutil.Address{addr})
	if err != nil {
		return nil, err
	}

	res := make([]UnspentOutput, 0, len(unspent))
	for _, item := range unspent {
		amount, err := btcutil.NewAmount(item.Amount)
		if err != nil {
			return nil, err
		}
		pkScript, err := decodeHexScript(item.ScriptPubKey)
		if err != nil {
			return nil, err
		}
		u, err := utxo.NewUTXO(item.TxID, item.Vout, int64(amount), pkScript)
		if err != nil {
			return nil, err
		}
		res = append(res, UnspentOutput{UTXO: *u, Confirmations: item.Confirmations})
	}
	return res, nil
}

// WatchAddress imports address as watch-only so listunspent reports it.
func (r *RpcClient) WatchAddress(address string) error {
	return r.client.ImportAddressRescan(address, "", false)
}

// GetTxConfirmations returns how deep txID is buried, 0 while in mempool.
func (r *RpcClient) GetTxConfirmations(txID string) (uint64, error) {
	hash, err := chainhash.NewHashFromStr(txID)
	if err != nil {
		return 0, err
	}
	verbose, err := r.client.GetRawTransactionVerbose(hash)
	if err != nil {
		var rpcErr *btcjson.RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == btcjson.ErrRPCNoTxInfo {
			return 0, ErrTxNotFound
		}
		return 0, err
	}
	return verbose.Confirmations, nil
}

// Send raw transaction to bitcoin network.
func (r *RpcClient) SendRawTx(tx *wire.MsgTx) (*chainhash.Hash, error) {
	// allowHighFees=true, the fee was chosen by the assembler
	return r.client.SendRawTransaction(tx, true)
}

func decodeHexScript(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
