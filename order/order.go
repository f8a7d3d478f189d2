package order

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/TEENet-io/mintburn-bridge/common"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	OrderSize       = 269
	SignatureSize   = 65
	SignedOrderSize = OrderSize + SignatureSize

	NameSize   = 32
	SymbolSize = 16
)

// field offsets inside the encoded payload
const (
	offAmount           = 0
	offSenderID         = offAmount + 32
	offFromTokenID      = offSenderID + 32
	offRecipient        = offFromTokenID + 32
	offToToken          = offRecipient + 20
	offNonce            = offToToken + 20
	offSenderChainID    = offNonce + 4
	offRecipientChainID = offSenderChainID + 4
	offName             = offRecipientChainID + 4
	offSymbol           = offName + NameSize
	offDecimals         = offSymbol + SymbolSize
	offApproveSpender   = offDecimals + 1
	offApproveAmount    = offApproveSpender + 20
	offFeePayer         = offApproveAmount + 32
)

var (
	ErrInvalidOrderLength = errors.New("invalid mint order length")
	ErrAmountOverflow     = errors.New("amount does not fit into 256 bits")
	ErrNegativeAmount     = errors.New("amount is negative")
)

// MintOrder instructs the bridge contract to credit Recipient with Amount of ToToken.
type MintOrder struct {
	Amount           *big.Int
	SenderID         Id256
	FromTokenID      Id256
	Recipient        ethcommon.Address
	ToToken          ethcommon.Address
	Nonce            uint32
	SenderChainID    uint32
	RecipientChainID uint32
	Name             [NameSize]byte
	Symbol           [SymbolSize]byte
	Decimals         uint8
	ApproveSpender   ethcommon.Address
	ApproveAmount    *big.Int
	FeePayer         ethcommon.Address
}

// SetMetadata fills name and symbol, cutting them to their fixed sizes.
func (o *MintOrder) SetMetadata(name, symbol string, decimals uint8) {
	copy(o.Name[:], common.FitString(name, NameSize))
	copy(o.Symbol[:], common.FitString(symbol, SymbolSize))
	o.Decimals = decimals
}

func (o *MintOrder) NameString() string {
	return common.TrimZeroBytes(o.Name[:])
}

func (o *MintOrder) SymbolString() string {
	return common.TrimZeroBytes(o.Symbol[:])
}

func checkU256(v *big.Int) error {
	if v == nil {
		return nil
	}
	if v.Sign() < 0 {
		return ErrNegativeAmount
	}
	if v.BitLen() > 256 {
		return ErrAmountOverflow
	}
	return nil
}

func u256Bytes(v *big.Int) [32]byte {
	if v == nil {
		return [32]byte{}
	}
	return common.BigInt2Bytes32(v)
}

// Encode returns the canonical 269 bytes payload. All integers are big endian.
func (o *MintOrder) Encode() ([]byte, error) {
	if err := checkU256(o.Amount); err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	if err := checkU256(o.ApproveAmount); err != nil {
		return nil, fmt.Errorf("approve amount: %w", err)
	}

	buf := make([]byte, OrderSize)
	amount := u256Bytes(o.Amount)
	copy(buf[offAmount:], amount[:])
	copy(buf[offSenderID:], o.SenderID[:])
	copy(buf[offFromTokenID:], o.FromTokenID[:])
	copy(buf[offRecipient:], o.Recipient[:])
	copy(buf[offToToken:], o.ToToken[:])
	binary.BigEndian.PutUint32(buf[offNonce:], o.Nonce)
	binary.BigEndian.PutUint32(buf[offSenderChainID:], o.SenderChainID)
	binary.BigEndian.PutUint32(buf[offRecipientChainID:], o.RecipientChainID)
	copy(buf[offName:], o.Name[:])
	copy(buf[offSymbol:], o.Symbol[:])
	buf[offDecimals] = o.Decimals
	copy(buf[offApproveSpender:], o.ApproveSpender[:])
	approve := u256Bytes(o.ApproveAmount)
	copy(buf[offApproveAmount:], approve[:])
	copy(buf[offFeePayer:], o.FeePayer[:])

	return buf, nil
}

// Decode parses exactly one 269 bytes payload.
func Decode(b []byte) (*MintOrder, error) {
	if len(b) != OrderSize {
		return nil, ErrInvalidOrderLength
	}

	o := &MintOrder{
		Amount:           new(big.Int).SetBytes(b[offAmount:offSenderID]),
		SenderID:         Id256FromBytes(b[offSenderID:offFromTokenID]),
		FromTokenID:      Id256FromBytes(b[offFromTokenID:offRecipient]),
		Recipient:        ethcommon.BytesToAddress(b[offRecipient:offToToken]),
		ToToken:          ethcommon.BytesToAddress(b[offToToken:offNonce]),
		Nonce:            binary.BigEndian.Uint32(b[offNonce:]),
		SenderChainID:    binary.BigEndian.Uint32(b[offSenderChainID:]),
		RecipientChainID: binary.BigEndian.Uint32(b[offRecipientChainID:]),
		Decimals:         b[offDecimals],
		ApproveSpender:   ethcommon.BytesToAddress(b[offApproveSpender:offApproveAmount]),
		ApproveAmount:    new(big.Int).SetBytes(b[offApproveAmount:offFeePayer]),
		FeePayer:         ethcommon.BytesToAddress(b[offFeePayer:OrderSize]),
	}
	copy(o.Name[:], b[offName:offSymbol])
	copy(o.Symbol[:], b[offSymbol:offDecimals])

	return o, nil
}

// Hash is keccak256 over the encoded payload, the digest the minter signs.
func (o *MintOrder) Hash() (ethcommon.Hash, error) {
	payload, err := o.Encode()
	if err != nil {
		return ethcommon.Hash{}, err
	}
	return crypto.Keccak256Hash(payload), nil
}

func (o *MintOrder) String() string {
	return fmt.Sprintf("MintOrder{amount=%v, sender=%s, nonce=%d, recipient=%s, toToken=%s, chain=%d->%d}",
		o.Amount, o.SenderID, o.Nonce, o.Recipient, o.ToToken, o.SenderChainID, o.RecipientChainID)
}
