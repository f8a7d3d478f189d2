/*
Operator is what a tx assembler needs from a wallet: the ability to unlock
previously received outputs.

Always create the "lock" part (outputs) on the Tx first, then the "unlock"
part. Signatures commit to the outputs.
*/
package assembler

import (
	"github.com/TEENet-io/mintburn-bridge/btcman/utxo"
	"github.com/btcsuite/btcd/wire"
)

type Operator interface {
	// Unlock adds one input per previous output and signs each of them.
	Unlock(tx *wire.MsgTx, prevOutputs []*utxo.UTXO) (*wire.MsgTx, error)
}
