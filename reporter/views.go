package reporter

import (
	"encoding/hex"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/TEENet-io/mintburn-bridge/scheduler"
	"github.com/TEENet-io/mintburn-bridge/state"
)

// Views are the json bodies of the routes. Hashes are 0x prefixed here.

type DepositView struct {
	SourceID      string     `json:"sourceID"`
	Amount        int64      `json:"amount"`
	Height        uint32     `json:"height"`
	Confirmations uint32     `json:"confirmations"`
	Recipient     string     `json:"recipient"`
	Address       string     `json:"address"`
	Status        string     `json:"status"`
	Reason        string     `json:"reason,omitempty"`
	Order         *OrderView `json:"order,omitempty"`
}

func NewDepositView(d *state.Deposit) DepositView {
	return DepositView{
		SourceID:      d.SourceID,
		Amount:        d.Amount,
		Height:        d.Height,
		Confirmations: d.Confirmations,
		Recipient:     d.Recipient.Hex(),
		Address:       d.Address,
		Status:        string(d.Status),
		Reason:        d.Reason,
	}
}

type OrderView struct {
	SourceID   string `json:"sourceID"`
	SenderID   string `json:"senderID"`
	Nonce      uint32 `json:"nonce"`
	Amount     string `json:"amount,omitempty"`
	Recipient  string `json:"recipient,omitempty"`
	ToToken    string `json:"toToken,omitempty"`
	Status     string `json:"status"`
	RejectCode string `json:"rejectCode,omitempty"`
	TxHash     string `json:"txHash,omitempty"`
	Signed     string `json:"signed"`
}

func NewOrderView(rec *state.OrderRecord) *OrderView {
	v := &OrderView{
		SourceID:   rec.SourceID,
		SenderID:   rec.SenderID.Hex(),
		Nonce:      rec.Nonce,
		Status:     string(rec.Status),
		RejectCode: rec.RejectCode,
		Signed:     "0x" + hex.EncodeToString(rec.Payload),
	}
	if rec.TxHash != (ethcommon.Hash{}) {
		v.TxHash = rec.TxHash.Hex()
	}
	if o, err := rec.Order(); err == nil {
		v.Amount = o.Amount.String()
		v.Recipient = o.Recipient.Hex()
		v.ToToken = o.ToToken.Hex()
	}
	return v
}

type WithdrawalView struct {
	OperationID uint32 `json:"operationID"`
	Sender      string `json:"sender"`
	Amount      string `json:"amount"`
	Satoshi     int64  `json:"satoshi"`
	Receiver    string `json:"receiver"`
	Memo        string `json:"memo"`
	EvmTxHash   string `json:"evmTxHash"`
	BtcTxID     string `json:"btcTxID,omitempty"`
	Attempts    int    `json:"attempts"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
}

func NewWithdrawalView(w *state.Withdrawal) WithdrawalView {
	v := WithdrawalView{
		OperationID: w.OperationID,
		Sender:      w.Sender.Hex(),
		Satoshi:     w.Satoshi,
		Receiver:    w.Receiver,
		Memo:        ethcommon.Hash(w.Memo).Hex(),
		EvmTxHash:   w.EvmTxHash.Hex(),
		BtcTxID:     w.BtcTxID,
		Attempts:    w.Attempts,
		Status:      string(w.Status),
		Reason:      w.Reason,
	}
	if w.Amount != nil {
		v.Amount = w.Amount.String()
	}
	return v
}

type TaskView struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Key       string `json:"key"`
	State     string `json:"state"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"lastError,omitempty"`
	NextRun   string `json:"nextRun,omitempty"`
}

func NewTaskView(st scheduler.TaskStatus) TaskView {
	v := TaskView{
		ID:        string(st.ID),
		Kind:      st.Kind,
		Key:       st.Key,
		State:     string(st.State),
		Attempts:  st.Attempts,
		LastError: st.LastError,
	}
	if st.State == scheduler.TaskScheduled && !st.NextRun.IsZero() {
		v.NextRun = st.NextRun.UTC().Format(time.RFC3339)
	}
	return v
}
