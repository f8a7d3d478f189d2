package signers

import (
	"context"
	"crypto/ecdsa"

	"github.com/TEENet-io/mintburn-bridge/common"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// LocalSigner signs with a private key held in process.
type LocalSigner struct {
	sk   *ecdsa.PrivateKey
	addr ethcommon.Address
}

func NewLocalSigner(sk *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{
		sk:   sk,
		addr: crypto.PubkeyToAddress(sk.PublicKey),
	}
}

// NewLocalSignerFromHex accepts the key with or without 0x prefix.
func NewLocalSignerFromHex(hexKey string) (*LocalSigner, error) {
	if hexKey == "" {
		return nil, ErrMissingPrivateKey
	}
	sk, err := crypto.HexToECDSA(common.Trim0xPrefix(hexKey))
	if err != nil {
		return nil, err
	}
	return NewLocalSigner(sk), nil
}

func NewRandomLocalSigner() (*LocalSigner, error) {
	sk, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return NewLocalSigner(sk), nil
}

func (s *LocalSigner) Sign(_ context.Context, hash [32]byte) ([]byte, error) {
	sig, err := crypto.Sign(hash[:], s.sk)
	if err != nil {
		return nil, err
	}
	return normalize(sig)
}

func (s *LocalSigner) Address() ethcommon.Address {
	return s.addr
}
