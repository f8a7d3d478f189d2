package etherman

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/TEENet-io/mintburn-bridge/bridge"
	"github.com/TEENet-io/mintburn-bridge/order"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const BridgeABI = `[
	{"type":"function","name":"mint","stateMutability":"nonpayable",
	 "inputs":[{"name":"encodedOrder","type":"bytes"}],
	 "outputs":[{"name":"","type":"uint32"}]},
	{"type":"function","name":"batchMint","stateMutability":"nonpayable",
	 "inputs":[{"name":"encodedOrders","type":"bytes"},{"name":"signature","type":"bytes"},{"name":"ordersToProcess","type":"uint32[]"}],
	 "outputs":[{"name":"","type":"uint8[]"}]},
	{"type":"function","name":"burn","stateMutability":"payable",
	 "inputs":[{"name":"amount","type":"uint256"},{"name":"fromERC20","type":"address"},{"name":"toTokenID","type":"bytes32"},{"name":"recipientID","type":"bytes"},{"name":"memo","type":"bytes32"}],
	 "outputs":[{"name":"","type":"uint32"}]},
	{"type":"function","name":"notifyMinter","stateMutability":"nonpayable",
	 "inputs":[{"name":"notificationType","type":"uint32"},{"name":"userData","type":"bytes"},{"name":"memo","type":"bytes32"}],
	 "outputs":[]},
	{"type":"function","name":"isNonceUsed","stateMutability":"view",
	 "inputs":[{"name":"senderID","type":"bytes32"},{"name":"nonce","type":"uint32"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"getWrappedToken","stateMutability":"view",
	 "inputs":[{"name":"baseTokenID","type":"bytes32"}],
	 "outputs":[{"name":"","type":"address"}]},
	{"type":"event","name":"MintTokenEvent","anonymous":false,
	 "inputs":[{"name":"amount","type":"uint256","indexed":false},{"name":"fromToken","type":"bytes32","indexed":false},{"name":"senderID","type":"bytes32","indexed":false},{"name":"toERC20","type":"address","indexed":false},{"name":"recipient","type":"address","indexed":true},{"name":"nonce","type":"uint32","indexed":false},{"name":"chargedFee","type":"uint256","indexed":false}]},
	{"type":"event","name":"BurnTokenEvent","anonymous":false,
	 "inputs":[{"name":"sender","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false},{"name":"fromERC20","type":"address","indexed":false},{"name":"recipientID","type":"bytes","indexed":false},{"name":"toToken","type":"bytes32","indexed":false},{"name":"operationID","type":"uint32","indexed":false},{"name":"name","type":"bytes32","indexed":false},{"name":"symbol","type":"bytes16","indexed":false},{"name":"decimals","type":"uint8","indexed":false},{"name":"memo","type":"bytes32","indexed":false}]},
	{"type":"event","name":"NotifyMinterEvent","anonymous":false,
	 "inputs":[{"name":"notificationType","type":"uint32","indexed":false},{"name":"txSender","type":"address","indexed":true},{"name":"userData","type":"bytes","indexed":false},{"name":"memo","type":"bytes32","indexed":false}]},
	{"type":"event","name":"WrappedTokenDeployedEvent","anonymous":false,
	 "inputs":[{"name":"name","type":"string","indexed":false},{"name":"symbol","type":"string","indexed":false},{"name":"decimals","type":"uint8","indexed":false},{"name":"baseTokenID","type":"bytes32","indexed":false},{"name":"wrappedERC20","type":"address","indexed":false}]}
]`

var (
	// Events
	MintTokenEventSignatureHash            = crypto.Keccak256Hash([]byte("MintTokenEvent(uint256,bytes32,bytes32,address,address,uint32,uint256)"))
	BurnTokenEventSignatureHash            = crypto.Keccak256Hash([]byte("BurnTokenEvent(address,uint256,address,bytes,bytes32,uint32,bytes32,bytes16,uint8,bytes32)"))
	NotifyMinterEventSignatureHash         = crypto.Keccak256Hash([]byte("NotifyMinterEvent(uint32,address,bytes,bytes32)"))
	WrappedTokenDeployedEventSignatureHash = crypto.Keccak256Hash([]byte("WrappedTokenDeployedEvent(string,string,uint8,bytes32,address)"))

	bridgeABI = mustParseABI(BridgeABI)
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

// ParsedABI returns the parsed bridge ABI.
func ParsedABI() abi.ABI {
	return bridgeABI
}

// non-indexed fields as laid out in the log data
type mintTokenData struct {
	Amount     *big.Int
	FromToken  [32]byte
	SenderID   [32]byte
	ToERC20    ethcommon.Address
	Nonce      uint32
	ChargedFee *big.Int
}

type burnTokenData struct {
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

type notifyMinterData struct {
	NotificationType uint32
	UserData         []byte
	Memo             [32]byte
}

type wrappedTokenDeployedData struct {
	Name         string
	Symbol       string
	Decimals     uint8
	BaseTokenID  [32]byte
	WrappedERC20 ethcommon.Address
}

func topicAddress(vlog *types.Log, i int) (ethcommon.Address, error) {
	if len(vlog.Topics) <= i {
		return ethcommon.Address{}, fmt.Errorf("missing topic %d", i)
	}
	return ethcommon.BytesToAddress(vlog.Topics[i].Bytes()), nil
}

// DecodeLog converts a bridge contract log into its event.
func DecodeLog(vlog types.Log) (bridge.Log, error) {
	out := bridge.Log{
		BlockNumber: vlog.BlockNumber,
		TxHash:      vlog.TxHash,
		Index:       vlog.Index,
	}
	if len(vlog.Topics) == 0 {
		return out, ErrUnknownEvent
	}

	switch vlog.Topics[0] {
	case MintTokenEventSignatureHash:
		data := new(mintTokenData)
		if err := bridgeABI.UnpackIntoInterface(data, "MintTokenEvent", vlog.Data); err != nil {
			return out, err
		}
		recipient, err := topicAddress(&vlog, 1)
		if err != nil {
			return out, err
		}
		out.Event = &bridge.MintTokenEvent{
			Amount:     data.Amount,
			FromToken:  order.Id256(data.FromToken),
			SenderID:   order.Id256(data.SenderID),
			ToERC20:    data.ToERC20,
			Recipient:  recipient,
			Nonce:      data.Nonce,
			ChargedFee: data.ChargedFee,
		}
	case BurnTokenEventSignatureHash:
		data := new(burnTokenData)
		if err := bridgeABI.UnpackIntoInterface(data, "BurnTokenEvent", vlog.Data); err != nil {
			return out, err
		}
		sender, err := topicAddress(&vlog, 1)
		if err != nil {
			return out, err
		}
		out.Event = &bridge.BurnTokenEvent{
			Sender:      sender,
			Amount:      data.Amount,
			FromERC20:   data.FromERC20,
			RecipientID: data.RecipientID,
			ToToken:     data.ToToken,
			OperationID: data.OperationID,
			Name:        data.Name,
			Symbol:      data.Symbol,
			Decimals:    data.Decimals,
			Memo:        data.Memo,
		}
	case NotifyMinterEventSignatureHash:
		data := new(notifyMinterData)
		if err := bridgeABI.UnpackIntoInterface(data, "NotifyMinterEvent", vlog.Data); err != nil {
			return out, err
		}
		txSender, err := topicAddress(&vlog, 1)
		if err != nil {
			return out, err
		}
		out.Event = &bridge.NotifyMinterEvent{
			NotificationType: data.NotificationType,
			TxSender:         txSender,
			UserData:         data.UserData,
			Memo:             data.Memo,
		}
	case WrappedTokenDeployedEventSignatureHash:
		data := new(wrappedTokenDeployedData)
		if err := bridgeABI.UnpackIntoInterface(data, "WrappedTokenDeployedEvent", vlog.Data); err != nil {
			return out, err
		}
		out.Event = &bridge.WrappedTokenDeployedEvent{
			Name:         data.Name,
			Symbol:       data.Symbol,
			Decimals:     data.Decimals,
			BaseTokenID:  order.Id256(data.BaseTokenID),
			WrappedERC20: data.WrappedERC20,
		}
	default:
		return out, fmt.Errorf("%w: %s", ErrUnknownEvent, vlog.Topics[0].Hex())
	}

	return out, nil
}
