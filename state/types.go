package state

import (
	"fmt"
	"math/big"

	"github.com/TEENet-io/mintburn-bridge/order"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

type DepositStatus string

const (
	DepositStatusAwaiting    DepositStatus = "awaiting"
	DepositStatusMintable    DepositStatus = "mintable"
	DepositStatusOrdered     DepositStatus = "ordered"
	DepositStatusMinted      DepositStatus = "minted"
	DepositStatusInvalidated DepositStatus = "invalidated"
)

// Deposit is a source chain output paid to a derived deposit address.
type Deposit struct {
	SourceID      string // txid:vout
	TxID          string
	Vout          uint32
	Amount        int64 // satoshi
	Height        uint32
	Confirmations uint32
	Recipient     ethcommon.Address
	Address       string // deposit address it was paid to
	Status        DepositStatus
	Reason        string
}

func (d *Deposit) String() string {
	return fmt.Sprintf("%+v", *d)
}

type OrderStatus string

const (
	OrderStatusSigned   OrderStatus = "signed"
	OrderStatusSent     OrderStatus = "sent"
	OrderStatusMinted   OrderStatus = "minted"
	OrderStatusRejected OrderStatus = "rejected"
)

// OrderRecord is the signed mint order built for one deposit.
type OrderRecord struct {
	SourceID   string
	SenderID   order.Id256
	Nonce      uint32
	Payload    order.SignedOrder
	TxHash     ethcommon.Hash
	Status     OrderStatus
	RejectCode string
}

func (r *OrderRecord) Order() (*order.MintOrder, error) {
	return r.Payload.Order()
}

type WithdrawalStatus string

const (
	WithdrawalStatusRequested WithdrawalStatus = "requested"
	WithdrawalStatusBroadcast WithdrawalStatus = "broadcast"
	WithdrawalStatusConfirmed WithdrawalStatus = "confirmed"
	WithdrawalStatusFailed    WithdrawalStatus = "failed"
)

// Withdrawal settles one burn on the source chain.
type Withdrawal struct {
	OperationID uint32
	Sender      ethcommon.Address
	Amount      *big.Int // in wrapped token units
	Satoshi     int64
	RecipientID []byte
	Receiver    string // bitcoin address decoded from RecipientID
	Memo        [32]byte
	EvmTxHash   ethcommon.Hash
	BtcTxID     string
	RawTx       []byte // signed withdraw tx, kept until it confirms
	Attempts    int
	Status      WithdrawalStatus
	Reason      string
}

func (w *Withdrawal) IsTerminal() bool {
	return w.Status == WithdrawalStatusConfirmed || w.Status == WithdrawalStatusFailed
}

// TaskRecord is a persisted scheduler task.
type TaskRecord struct {
	ID        string
	Kind      string
	Key       string
	Payload   []byte
	Policy    uint64 // interval in seconds
	NextRun   int64  // unix seconds
	Attempts  int
	State     string
	LastError string
}
