/*
Bitcoin side data structures shared by the indexer, the vault and the
transaction assembler.
  - PubKeyScriptType: the locking script type of an output
  - UTXO: an unspent transaction output
*/
package utxo

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
)

type PubKeyScriptType int

const (
	ANY_SCRIPT_T PubKeyScriptType = iota
	P2PKH_SCRIPT_T
	P2WPKH_SCRIPT_T
)

// ScriptType classifies a locking script.
func ScriptType(pkScript []byte) PubKeyScriptType {
	switch {
	case txscript.IsPayToPubKeyHash(pkScript):
		return P2PKH_SCRIPT_T
	case txscript.IsPayToWitnessPubKeyHash(pkScript):
		return P2WPKH_SCRIPT_T
	default:
		return ANY_SCRIPT_T
	}
}

type UTXO struct {
	TxID      string           // human readable, big endian hex
	TxHash    *chainhash.Hash  // used when building inputs
	Vout      uint32           // output index inside the tx
	Amount    int64            // in satoshi
	PkScriptT PubKeyScriptType // type of the locking script
	PkScript  []byte
}

// NewUTXO fills TxHash and PkScriptT from txID and pkScript.
func NewUTXO(txID string, vout uint32, amount int64, pkScript []byte) (*UTXO, error) {
	hash, err := chainhash.NewHashFromStr(txID)
	if err != nil {
		return nil, err
	}
	return &UTXO{
		TxID:      txID,
		TxHash:    hash,
		Vout:      vout,
		Amount:    amount,
		PkScriptT: ScriptType(pkScript),
		PkScript:  pkScript,
	}, nil
}

// SourceID is "txid:vout", the identifier of a deposit.
func (u *UTXO) SourceID() string {
	return fmt.Sprintf("%s:%d", u.TxID, u.Vout)
}

// Return a human-readable amount in BTC
// eg. 1e8 (satoshi) = 1.0 (BTC)
func (u *UTXO) AmountHuman() float64 {
	return float64(u.Amount) / 1e8
}
