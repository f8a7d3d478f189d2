// Package signers produces the recoverable ECDSA signatures that authorize
// mint orders. A bridge instance uses exactly one Signer, picked by Strategy
// at startup.
package signers

import (
	"context"
	"errors"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

var (
	ErrRemoteSignerUnavailable = errors.New("remote signer unavailable")
	ErrInvalidSignatureLength  = errors.New("invalid signature length")
	ErrSignerMismatch          = errors.New("signature does not recover to signer address")
	ErrUnknownStrategy         = errors.New("unknown signing strategy")
	ErrMissingPrivateKey       = errors.New("missing private key")
	ErrUnknownKey              = errors.New("unknown key id")
)

// Signer signs 32-byte hashes. Signatures are 65 bytes [R || S || V] with
// V in {27, 28}.
type Signer interface {
	Sign(ctx context.Context, hash [32]byte) ([]byte, error)
	Address() ethcommon.Address
}

// normalize checks length and lifts V from {0, 1} to {27, 28}.
func normalize(sig []byte) ([]byte, error) {
	if len(sig) != 65 {
		return nil, ErrInvalidSignatureLength
	}
	out := make([]byte, 65)
	copy(out, sig)
	if out[64] < 27 {
		out[64] += 27
	}
	return out, nil
}
