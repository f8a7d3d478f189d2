package order

import (
	"context"
	"errors"
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidSignedOrderLength = errors.New("invalid signed mint order length")
	ErrInvalidSignature         = errors.New("invalid signature")
	ErrEmptyBatch               = errors.New("empty batch")
	ErrIndexOutOfRange          = errors.New("order index out of range")
)

// HashSigner produces a 65 bytes recoverable signature over a 32 bytes digest.
type HashSigner interface {
	Sign(ctx context.Context, hash [32]byte) ([]byte, error)
}

// SignedOrder is the payload followed by the signature over its keccak256 hash.
type SignedOrder []byte

func (o *MintOrder) Sign(ctx context.Context, signer HashSigner) (SignedOrder, error) {
	payload, err := o.Encode()
	if err != nil {
		return nil, err
	}

	sig, err := signer.Sign(ctx, crypto.Keccak256Hash(payload))
	if err != nil {
		return nil, err
	}
	if len(sig) != SignatureSize {
		return nil, ErrInvalidSignature
	}

	return SignedOrder(append(payload, sig...)), nil
}

func (s SignedOrder) Payload() []byte {
	return s[:OrderSize]
}

func (s SignedOrder) Signature() []byte {
	return s[OrderSize:]
}

func (s SignedOrder) Validate() error {
	if len(s) != SignedOrderSize {
		return ErrInvalidSignedOrderLength
	}
	return nil
}

func (s SignedOrder) Order() (*MintOrder, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return Decode(s.Payload())
}

func (s SignedOrder) Recover() (ethcommon.Address, error) {
	if err := s.Validate(); err != nil {
		return ethcommon.Address{}, err
	}
	return RecoverSigner(s.Payload(), s.Signature())
}

// RecoverSigner returns the address that signed keccak256(payload).
// Both v=0/1 and v=27/28 are accepted.
func RecoverSigner(payload, sig []byte) (ethcommon.Address, error) {
	if len(sig) != SignatureSize {
		return ethcommon.Address{}, ErrInvalidSignature
	}

	normalized := make([]byte, SignatureSize)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pub, err := crypto.SigToPub(crypto.Keccak256(payload), normalized)
	if err != nil {
		return ethcommon.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// SignedOrders is N contiguous payloads plus one signature over all of them.
type SignedOrders struct {
	Orders    []byte
	Signature []byte
}

// EncodeBatch concatenates the payloads of the given orders.
func EncodeBatch(orders []*MintOrder) ([]byte, error) {
	if len(orders) == 0 {
		return nil, ErrEmptyBatch
	}

	buf := make([]byte, 0, len(orders)*OrderSize)
	for i, o := range orders {
		payload, err := o.Encode()
		if err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}
		buf = append(buf, payload...)
	}
	return buf, nil
}

func SignBatch(ctx context.Context, orders []*MintOrder, signer HashSigner) (*SignedOrders, error) {
	buf, err := EncodeBatch(orders)
	if err != nil {
		return nil, err
	}

	sig, err := signer.Sign(ctx, crypto.Keccak256Hash(buf))
	if err != nil {
		return nil, err
	}
	if len(sig) != SignatureSize {
		return nil, ErrInvalidSignature
	}

	return &SignedOrders{Orders: buf, Signature: sig}, nil
}

func (s *SignedOrders) Validate() error {
	if len(s.Orders) == 0 || len(s.Orders)%OrderSize != 0 {
		return ErrInvalidOrderLength
	}
	if len(s.Signature) != SignatureSize {
		return ErrInvalidSignature
	}
	return nil
}

func (s *SignedOrders) Len() int {
	return len(s.Orders) / OrderSize
}

func (s *SignedOrders) Order(i int) (*MintOrder, error) {
	if i < 0 || i >= s.Len() {
		return nil, ErrIndexOutOfRange
	}
	return Decode(s.Orders[i*OrderSize : (i+1)*OrderSize])
}

func (s *SignedOrders) All() ([]*MintOrder, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	res := make([]*MintOrder, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		o, err := s.Order(i)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, nil
}

func (s *SignedOrders) Recover() (ethcommon.Address, error) {
	if err := s.Validate(); err != nil {
		return ethcommon.Address{}, err
	}
	return RecoverSigner(s.Orders, s.Signature)
}
