package bridge

import (
	"math/big"

	"github.com/TEENet-io/mintburn-bridge/order"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

type NotificationType uint32

const (
	NotificationDepositRequest      NotificationType = 1
	NotificationRescheduleOperation NotificationType = 2
)

func (n NotificationType) String() string {
	switch n {
	case NotificationDepositRequest:
		return "DepositRequest"
	case NotificationRescheduleOperation:
		return "RescheduleOperation"
	default:
		return "Other"
	}
}

// Event is any log emitted by the bridge contract.
type Event interface {
	EventName() string
}

type MintTokenEvent struct {
	Amount     *big.Int
	FromToken  order.Id256
	SenderID   order.Id256
	ToERC20    ethcommon.Address
	Recipient  ethcommon.Address
	Nonce      uint32
	ChargedFee *big.Int
}

type BurnTokenEvent struct {
	Sender      ethcommon.Address
	Amount      *big.Int
	FromERC20   ethcommon.Address
	RecipientID []byte
	ToToken     [32]byte
	OperationID uint32
	Name        [32]byte
	Symbol      [16]byte
	Decimals    uint8
	Memo        [32]byte
}

type NotifyMinterEvent struct {
	NotificationType uint32
	TxSender         ethcommon.Address
	UserData         []byte
	Memo             [32]byte
}

type WrappedTokenDeployedEvent struct {
	Name         string
	Symbol       string
	Decimals     uint8
	BaseTokenID  order.Id256
	WrappedERC20 ethcommon.Address
}

func (MintTokenEvent) EventName() string { return "MintTokenEvent" }
func (BurnTokenEvent) EventName() string { return "BurnTokenEvent" }
func (NotifyMinterEvent) EventName() string { return "NotifyMinterEvent" }
func (WrappedTokenDeployedEvent) EventName() string { return "WrappedTokenDeployedEvent" }

func (ev *NotifyMinterEvent) Type() NotificationType {
	return NotificationType(ev.NotificationType)
}

// Log is an emitted event together with its position on chain.
type Log struct {
	BlockNumber uint64
	TxHash      ethcommon.Hash
	Index       uint
	Event       Event
}
