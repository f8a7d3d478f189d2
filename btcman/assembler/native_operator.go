// NativeOperator implements Operator with a single local private key. It can
// spend both legacy (P2PKH) and segwit (P2WPKH) outputs it owns.

package assembler

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/TEENet-io/mintburn-bridge/btcman/utxo"
)

type NativeSigner struct {
	ChainConfig *chaincfg.Params
	PrivKey     *btcec.PrivateKey
	PubKey      *btcec.PublicKey
}

// Recover a basic signer from
// private key string (aka wallet-import-format, WIF)
// This is the standard private key string that bitcoin-core software exports.
func NewNativeSigner(privKeyWIF string, params *chaincfg.Params) (*NativeSigner, error) {
	wif, err := DecodeWIF(privKeyWIF)
	if err != nil {
		return nil, err
	}
	return &NativeSigner{params, wif.PrivKey, wif.PrivKey.PubKey()}, nil
}

type NativeOperator struct {
	NativeSigner
	P2PKH  *btcutil.AddressPubKeyHash
	P2WPKH *btcutil.AddressWitnessPubKeyHash
}

func NewNativeOperator(bw NativeSigner) (*NativeOperator, error) {
	pkHash := btcutil.Hash160(bw.PubKey.SerializeCompressed())
	p2pkhAddr, err := btcutil.NewAddressPubKeyHash(pkHash, bw.ChainConfig)
	if err != nil {
		return nil, err
	}
	p2wpkhAddr, err := btcutil.NewAddressWitnessPubKeyHash(pkHash, bw.ChainConfig)
	if err != nil {
		return nil, err
	}
	return &NativeOperator{bw, p2pkhAddr, p2wpkhAddr}, nil
}

// Unlock adds and signs an input for each previous output. Legacy outputs
// get a signature script, segwit outputs a witness.
func (no *NativeOperator) Unlock(tx *wire.MsgTx, prevOutputs []*utxo.UTXO) (*wire.MsgTx, error) {
	prevOuts := make(map[wire.OutPoint]*wire.TxOut, len(prevOutputs))
	for _, item := range prevOutputs {
		op := wire.NewOutPoint(item.TxHash, item.Vout)
		tx.AddTxIn(wire.NewTxIn(op, nil, nil))
		prevOuts[*op] = wire.NewTxOut(item.Amount, item.PkScript)
	}
	fetcher := txscript.NewMultiPrevOutFetcher(prevOuts)

	// inputs and outputs must be complete before signing
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	for idx, item := range prevOutputs {
		switch utxo.ScriptType(item.PkScript) {
		case utxo.P2PKH_SCRIPT_T:
			script, err := txscript.SignatureScript(tx, idx, item.PkScript, txscript.SigHashAll, no.PrivKey, true)
			if err != nil {
				return nil, err
			}
			tx.TxIn[idx].SignatureScript = script
		case utxo.P2WPKH_SCRIPT_T:
			witness, err := txscript.WitnessSignature(tx, sigHashes, idx, item.Amount, item.PkScript, txscript.SigHashAll, no.PrivKey, true)
			if err != nil {
				return nil, err
			}
			tx.TxIn[idx].Witness = witness
		default:
			return nil, fmt.Errorf("cannot unlock %s: unsupported script", item.SourceID())
		}
	}
	return tx, nil
}
