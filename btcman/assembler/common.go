package assembler

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// DecodeWIF decodes a string private key to *btcutil.WIF
func DecodeWIF(privKeyStr string) (*btcutil.WIF, error) {
	return btcutil.DecodeWIF(privKeyStr)
}

// AppendPayToAddress adds an output paying amount to dstAddr. Any address
// type btcutil understands is accepted.
func AppendPayToAddress(tx *wire.MsgTx, params *chaincfg.Params, dstAddr string, amount int64) (*wire.MsgTx, error) {
	addr, err := btcutil.DecodeAddress(dstAddr, params)
	if err != nil {
		return nil, err
	}
	if !addr.IsForNet(params) {
		return nil, ErrWrongNetwork
	}

	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}
	tx.AddTxOut(wire.NewTxOut(amount, pkScript))
	return tx, nil
}

// AppendOpReturn adds a zero value OP_RETURN output carrying data.
func AppendOpReturn(tx *wire.MsgTx, data []byte) (*wire.MsgTx, error) {
	script, err := txscript.NullDataScript(data)
	if err != nil {
		return nil, err
	}
	tx.AddTxOut(wire.NewTxOut(0, script))
	return tx, nil
}
