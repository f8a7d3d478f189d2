package state

import (
	"database/sql"
	"fmt"
	"math/big"

	"github.com/TEENet-io/mintburn-bridge/common"
	"github.com/TEENet-io/mintburn-bridge/order"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

type sqlDeposit struct {
	SourceID      string
	TxID          string
	Vout          uint32
	Amount        int64
	Height        uint32
	Confirmations uint32
	Recipient     string // hex representation of address (no 0x prefix)
	Address       string
	Status        string
	Reason        string
	Seq           int
}

func (s *sqlDeposit) encode(d *Deposit, seq int) *sqlDeposit {
	s.SourceID = d.SourceID
	s.TxID = d.TxID
	s.Vout = d.Vout
	s.Amount = d.Amount
	s.Height = d.Height
	s.Confirmations = d.Confirmations
	s.Recipient = d.Recipient.Hex()[2:]
	s.Address = d.Address
	s.Status = string(d.Status)
	s.Reason = d.Reason
	s.Seq = seq
	return s
}

func (s *sqlDeposit) decode() *Deposit {
	return &Deposit{
		SourceID:      s.SourceID,
		TxID:          s.TxID,
		Vout:          s.Vout,
		Amount:        s.Amount,
		Height:        s.Height,
		Confirmations: s.Confirmations,
		Recipient:     ethcommon.HexToAddress(s.Recipient),
		Address:       s.Address,
		Status:        DepositStatus(s.Status),
		Reason:        s.Reason,
	}
}

type sqlMintOrder struct {
	SourceID   string
	SenderID   string
	Nonce      uint32
	Payload    []byte
	TxHash     sql.NullString
	Status     string
	RejectCode string
}

func (s *sqlMintOrder) encode(r *OrderRecord) *sqlMintOrder {
	s.SourceID = r.SourceID
	s.SenderID = r.SenderID.Hex()
	s.Nonce = r.Nonce
	s.Payload = r.Payload
	if r.TxHash != (ethcommon.Hash{}) {
		s.TxHash = sql.NullString{String: r.TxHash.String()[2:], Valid: true}
	}
	s.Status = string(r.Status)
	s.RejectCode = r.RejectCode
	return s
}

func (s *sqlMintOrder) decode() *OrderRecord {
	rec := &OrderRecord{
		SourceID:   s.SourceID,
		SenderID:   order.Id256FromHex(s.SenderID),
		Nonce:      s.Nonce,
		Payload:    order.SignedOrder(s.Payload),
		Status:     OrderStatus(s.Status),
		RejectCode: s.RejectCode,
	}
	if s.TxHash.Valid {
		rec.TxHash = common.HexStrToBytes32(s.TxHash.String)
	}
	return rec
}

type sqlWithdrawal struct {
	OperationID uint32
	Sender      string
	Amount      string // decimal, wrapped token amounts may exceed int64
	Satoshi     int64
	RecipientID []byte
	Receiver    string
	Memo        string
	EvmTxHash   string
	BtcTxID     sql.NullString
	RawTx       []byte
	Attempts    int
	Status      string
	Reason      string
}

func (s *sqlWithdrawal) encode(w *Withdrawal) *sqlWithdrawal {
	s.OperationID = w.OperationID
	s.Sender = w.Sender.Hex()[2:]
	s.Amount = "0"
	if w.Amount != nil {
		s.Amount = w.Amount.String()
	}
	s.Satoshi = w.Satoshi
	s.RecipientID = w.RecipientID
	if s.RecipientID == nil {
		s.RecipientID = []byte{}
	}
	s.Receiver = w.Receiver
	s.Memo = ethcommon.Hash(w.Memo).String()[2:]
	s.EvmTxHash = w.EvmTxHash.String()[2:]
	if w.BtcTxID != "" {
		s.BtcTxID = sql.NullString{String: w.BtcTxID, Valid: true}
	}
	s.RawTx = w.RawTx
	s.Attempts = w.Attempts
	s.Status = string(w.Status)
	s.Reason = w.Reason
	return s
}

func (s *sqlWithdrawal) decode() (*Withdrawal, error) {
	amount, ok := new(big.Int).SetString(s.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("withdrawal %d: invalid amount %q", s.OperationID, s.Amount)
	}

	return &Withdrawal{
		OperationID: s.OperationID,
		Sender:      ethcommon.HexToAddress(s.Sender),
		Amount:      amount,
		Satoshi:     s.Satoshi,
		RecipientID: s.RecipientID,
		Receiver:    s.Receiver,
		Memo:        common.HexStrToBytes32(s.Memo),
		EvmTxHash:   common.HexStrToBytes32(s.EvmTxHash),
		BtcTxID:     s.BtcTxID.String,
		RawTx:       s.RawTx,
		Attempts:    s.Attempts,
		Status:      WithdrawalStatus(s.Status),
		Reason:      s.Reason,
	}, nil
}
