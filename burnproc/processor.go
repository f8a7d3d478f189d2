// Package burnproc settles burns of the wrapped token with bitcoin
// withdrawals.
package burnproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/TEENet-io/mintburn-bridge/bridge"
	"github.com/TEENet-io/mintburn-bridge/btcman/assembler"
	"github.com/TEENet-io/mintburn-bridge/btcman/rpc"
	"github.com/TEENet-io/mintburn-bridge/btcman/utxo"
	"github.com/TEENet-io/mintburn-bridge/btcvault"
	"github.com/TEENet-io/mintburn-bridge/common"
	"github.com/TEENet-io/mintburn-bridge/mintorder"
	"github.com/TEENet-io/mintburn-bridge/state"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	logger "github.com/sirupsen/logrus"
)

const DefaultMaxAttempts = 5

var (
	// ErrWithdrawalFailed wraps every terminal failure.
	ErrWithdrawalFailed = errors.New("withdrawal failed")

	ErrInvalidRecipient = errors.New("invalid recipient")
	ErrAmountTooSmall   = errors.New("withdrawal amount does not cover the miner fee")
	ErrInvalidAmount    = errors.New("burn amount is not a valid satoshi amount")
	ErrNotRetryable     = errors.New("only failed withdrawals can be retried")
)

// Broadcaster is the bitcoin node. rpc.RpcClient implements it.
type Broadcaster interface {
	SendRawTx(tx *wire.MsgTx) (*chainhash.Hash, error)
	GetTxConfirmations(txID string) (uint64, error)
}

type Config struct {
	MinConfirmations uint32
	MaxAttempts      int

	// satoshi paid to miners, taken from the withdrawn amount
	MinerFee int64
	// receives the change of every withdrawal, usually the vault address
	ChangeAddress string

	Params *chaincfg.Params
}

type Processor struct {
	cfg   Config
	st    *state.State
	vault *btcvault.TreasureVault
	asm   *assembler.Assembler
	node  Broadcaster

	persist func() error
}

func NewProcessor(cfg Config, st *state.State, vault *btcvault.TreasureVault, asm *assembler.Assembler, node Broadcaster) *Processor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Processor{cfg: cfg, st: st, vault: vault, asm: asm, node: node}
}

// SetPersist installs fn to be called after a withdraw tx is signed and
// recorded, before it is broadcast. A failing fn aborts the attempt.
func (p *Processor) SetPersist(fn func() error) {
	p.persist = fn
}

// LinkedID is the id the vault locks are held under for a withdrawal.
func LinkedID(operationID uint32) string {
	return fmt.Sprintf("withdraw-%d", operationID)
}

// UnscaleAmount converts token units of the given decimals into satoshi.
func UnscaleAmount(amount *big.Int, decimals uint8) (int64, error) {
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	v := new(big.Int).Set(amount)
	if decimals >= mintorder.SourceDecimals {
		v.Div(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-mintorder.SourceDecimals)), nil))
	} else {
		v.Mul(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(mintorder.SourceDecimals-decimals)), nil))
	}
	if !v.IsInt64() || v.Sign() == 0 {
		return 0, ErrInvalidAmount
	}
	return v.Int64(), nil
}

// HandleBurn records the withdrawal requested by a burn. It returns false
// when the operation id is already known.
func (p *Processor) HandleBurn(l bridge.Log, ev *bridge.BurnTokenEvent) (*state.Withdrawal, bool) {
	if w, ok := p.st.Withdrawal(ev.OperationID); ok {
		return w, false
	}

	w := &state.Withdrawal{
		OperationID: ev.OperationID,
		Sender:      ev.Sender,
		Amount:      new(big.Int).Set(ev.Amount),
		RecipientID: append([]byte(nil), ev.RecipientID...),
		Receiver:    common.TrimZeroBytes(ev.RecipientID),
		Memo:        ev.Memo,
		EvmTxHash:   l.TxHash,
		Status:      state.WithdrawalStatusRequested,
	}
	satoshi, err := UnscaleAmount(ev.Amount, ev.Decimals)
	if err != nil {
		w.Status = state.WithdrawalStatusFailed
		w.Reason = err.Error()
	}
	w.Satoshi = satoshi

	if !p.st.PutWithdrawal(w) {
		stored, _ := p.st.Withdrawal(ev.OperationID)
		return stored, false
	}

	logger.WithFields(logger.Fields{
		"operationID": w.OperationID,
		"sender":      w.Sender.String(),
		"receiver":    w.Receiver,
		"satoshi":     w.Satoshi,
	}).Info("withdrawal requested")

	return w, true
}

func (p *Processor) withdrawal(opID uint32) (*state.Withdrawal, error) {
	w, ok := p.st.Withdrawal(opID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", state.ErrWithdrawalNotFound, opID)
	}
	return w, nil
}

func (p *Processor) fail(w *state.Withdrawal, reason error) error {
	w.Status = state.WithdrawalStatusFailed
	w.Reason = reason.Error()
	if err := p.st.UpdateWithdrawal(w); err != nil {
		return err
	}

	logger.WithFields(logger.Fields{
		"operationID": w.OperationID,
		"attempts":    w.Attempts,
	}).Errorf("withdrawal failed: %v", reason)

	return fmt.Errorf("%w: %w", ErrWithdrawalFailed, reason)
}

// retry counts a failed attempt and turns it terminal at MaxAttempts.
func (p *Processor) retry(w *state.Withdrawal, cause error) error {
	w.Attempts++
	if w.Attempts >= p.cfg.MaxAttempts {
		return p.fail(w, cause)
	}
	w.Reason = cause.Error()
	if err := p.st.UpdateWithdrawal(w); err != nil {
		return err
	}

	logger.WithFields(logger.Fields{
		"operationID": w.OperationID,
		"attempts":    w.Attempts,
	}).Warnf("withdrawal attempt failed: %v", cause)
	return cause
}

// Step builds, signs and broadcasts the bitcoin tx of a requested withdrawal.
// The signed tx is recorded before it is sent and later attempts resend
// that same tx, so one operation never spends two sets of UTXOs.
// Errors matching ErrWithdrawalFailed are terminal, others may be retried.
func (p *Processor) Step(ctx context.Context, opID uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w, err := p.withdrawal(opID)
	if err != nil {
		return err
	}
	switch w.Status {
	case state.WithdrawalStatusBroadcast, state.WithdrawalStatusConfirmed:
		return nil
	case state.WithdrawalStatusFailed:
		return fmt.Errorf("%w: %s", ErrWithdrawalFailed, w.Reason)
	}

	if len(w.RawTx) > 0 {
		tx, err := decodeTx(w.RawTx)
		if err != nil {
			return p.fail(w, err)
		}
		return p.broadcast(w, tx)
	}

	if !common.IsValidBtcAddress(w.Receiver, p.cfg.Params) {
		return p.fail(w, ErrInvalidRecipient)
	}
	dstAmount := w.Satoshi - p.cfg.MinerFee
	if dstAmount < assembler.DustLimit {
		return p.fail(w, ErrAmountTooSmall)
	}

	linkedID := LinkedID(opID)
	locked, err := p.vault.ChooseAndLock(w.Satoshi, linkedID)
	if err != nil {
		return p.retry(w, err)
	}

	tx, err := p.buildTx(w, dstAmount, locked)
	if err == nil {
		err = p.record(w, tx)
	}
	if err != nil {
		w.BtcTxID, w.RawTx = "", nil
		if rerr := p.vault.ReleaseByLinkedID(linkedID); rerr != nil {
			logger.WithField("linkedID", linkedID).Errorf("failed to release vault utxos: err=%v", rerr)
		}
		return p.retry(w, err)
	}

	return p.broadcast(w, tx)
}

// record stores the signed tx on the withdrawal and persists it.
func (p *Processor) record(w *state.Withdrawal, tx *wire.MsgTx) error {
	raw, err := encodeTx(tx)
	if err != nil {
		return err
	}
	w.BtcTxID = tx.TxHash().String()
	w.RawTx = raw
	if err := p.st.UpdateWithdrawal(w); err != nil {
		return err
	}
	if p.persist == nil {
		return nil
	}
	return p.persist()
}

// broadcast sends the recorded tx of w. A send error is checked against the
// node since the tx may have been accepted anyway. The vault locks are kept
// in both outcomes.
func (p *Processor) broadcast(w *state.Withdrawal, tx *wire.MsgTx) error {
	if _, err := p.node.SendRawTx(tx); err != nil {
		if _, cerr := p.node.GetTxConfirmations(w.BtcTxID); cerr != nil {
			return p.retry(w, err)
		}
		logger.WithFields(logger.Fields{
			"operationID": w.OperationID,
			"btcTx":       w.BtcTxID,
		}).Warnf("send failed but the node knows the tx: %v", err)
	}

	w.Status = state.WithdrawalStatusBroadcast
	w.Reason = ""
	if err := p.st.UpdateWithdrawal(w); err != nil {
		return err
	}

	logger.WithFields(logger.Fields{
		"operationID": w.OperationID,
		"btcTx":       w.BtcTxID,
		"attempts":    w.Attempts,
	}).Info("withdrawal broadcast")
	return nil
}

func encodeTx(tx *wire.MsgTx) ([]byte, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeTx(raw []byte) (*wire.MsgTx, error) {
	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("stored withdraw tx: %w", err)
	}
	return tx, nil
}

func (p *Processor) buildTx(w *state.Withdrawal, dstAmount int64, locked []btcvault.VaultUTXO) (*wire.MsgTx, error) {
	inputs := make([]*utxo.UTXO, 0, len(locked))
	for i := range locked {
		u, err := locked[i].ToUTXO()
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, u)
	}

	data := assembler.WithdrawData{OperationID: w.OperationID, Memo: w.Memo}
	return p.asm.MakeWithdrawTx(w.Receiver, dstAmount, data, p.cfg.ChangeAddress, p.cfg.MinerFee, inputs)
}

// Confirm reports whether the broadcast tx of a withdrawal is deep enough,
// and marks it confirmed when it is.
func (p *Processor) Confirm(ctx context.Context, opID uint32) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	w, err := p.withdrawal(opID)
	if err != nil {
		return false, err
	}
	switch w.Status {
	case state.WithdrawalStatusConfirmed:
		return true, nil
	case state.WithdrawalStatusFailed:
		return false, fmt.Errorf("%w: %s", ErrWithdrawalFailed, w.Reason)
	case state.WithdrawalStatusRequested:
		return false, nil
	}

	n, err := p.node.GetTxConfirmations(w.BtcTxID)
	if errors.Is(err, rpc.ErrTxNotFound) {
		// dropped from the mempool, send it again
		p.resend(w)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if n < uint64(p.cfg.MinConfirmations) {
		return false, nil
	}

	if err := p.vault.MarkSpent(LinkedID(opID)); err != nil {
		return false, err
	}
	w.Status = state.WithdrawalStatusConfirmed
	if err := p.st.UpdateWithdrawal(w); err != nil {
		return false, err
	}

	logger.WithFields(logger.Fields{
		"operationID":   opID,
		"btcTx":         w.BtcTxID,
		"confirmations": n,
	}).Info("withdrawal confirmed")
	return true, nil
}

func (p *Processor) resend(w *state.Withdrawal) {
	if len(w.RawTx) == 0 {
		return
	}
	tx, err := decodeTx(w.RawTx)
	if err == nil {
		_, err = p.node.SendRawTx(tx)
	}
	if err != nil {
		logger.WithField("btcTx", w.BtcTxID).Debugf("failed to resend withdraw tx: %v", err)
	}
}

// Retry puts a failed withdrawal back to requested. A withdrawal that was
// already signed keeps its tx and resends it rather than being rebuilt.
func (p *Processor) Retry(opID uint32) error {
	w, err := p.withdrawal(opID)
	if err != nil {
		return err
	}
	if w.Status != state.WithdrawalStatusFailed || w.Satoshi == 0 {
		return ErrNotRetryable
	}

	w.Status = state.WithdrawalStatusRequested
	w.Attempts = 0
	w.Reason = ""
	return p.st.UpdateWithdrawal(w)
}
