package assembler

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"

	"github.com/TEENet-io/mintburn-bridge/btcman/utxo"
)

var (
	ErrNegativeChange = errors.New("change_amount < 0")
	ErrNoInputs       = errors.New("no inputs to spend")
	ErrWrongNetwork   = errors.New("address is not for the configured network")
	ErrDustAmount     = errors.New("amount below dust limit")
)

// DustLimit is the smallest output value the assembler produces. Smaller
// change is left to the miner.
const DustLimit int64 = 546

type Assembler struct {
	ChainConfig *chaincfg.Params // mainnet, testnet or regtest
	Op          Operator         // unlocks the inputs
}

func NewAssembler(params *chaincfg.Params, op Operator) *Assembler {
	return &Assembler{ChainConfig: params, Op: op}
}

// change returns sum(prevOutputs) - dstAmount - feeAmount.
func change(prevOutputs []*utxo.UTXO, dstAmount, feeAmount int64) (int64, error) {
	if len(prevOutputs) == 0 {
		return 0, ErrNoInputs
	}
	sum := utxo.Sum(prevOutputs)
	c := sum - dstAmount - feeAmount
	if c < 0 {
		return 0, fmt.Errorf("%w: sum=%d, dst_amount=%d, fee_amount=%d", ErrNegativeChange, sum, dstAmount, feeAmount)
	}
	return c, nil
}

// MakeWithdrawTx builds the settlement of a burn.
// output #1, dstAmount to the user.
// output #2, OP_RETURN with the withdrawal data.
// output #3, change back to the bridge, omitted when below dust.
func (a *Assembler) MakeWithdrawTx(
	dstAddr string,
	dstAmount int64,
	data WithdrawData,
	changeAddr string,
	feeAmount int64,
	prevOutputs []*utxo.UTXO,
) (*wire.MsgTx, error) {
	if dstAmount < DustLimit {
		return nil, ErrDustAmount
	}
	changeAmount, err := change(prevOutputs, dstAmount, feeAmount)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	if tx, err = AppendPayToAddress(tx, a.ChainConfig, dstAddr, dstAmount); err != nil {
		return nil, err
	}
	if tx, err = AppendOpReturn(tx, data.Encode()); err != nil {
		return nil, err
	}
	if tx, err = a.appendChange(tx, changeAddr, changeAmount); err != nil {
		return nil, err
	}
	return a.Op.Unlock(tx, prevOutputs)
}

func (a *Assembler) appendChange(tx *wire.MsgTx, changeAddr string, amount int64) (*wire.MsgTx, error) {
	if amount < DustLimit {
		return tx, nil
	}
	return AppendPayToAddress(tx, a.ChainConfig, changeAddr, amount)
}
