package signers

import (
	"context"
	"strings"

	logger "github.com/sirupsen/logrus"
)

type StrategyKind int

const (
	StrategyLocal StrategyKind = iota
	StrategyRemote
)

func (k StrategyKind) String() string {
	switch k {
	case StrategyLocal:
		return "local"
	case StrategyRemote:
		return "remote"
	default:
		return "unknown"
	}
}

func ParseStrategyKind(s string) (StrategyKind, error) {
	switch strings.ToLower(s) {
	case "", "local":
		return StrategyLocal, nil
	case "remote":
		return StrategyRemote, nil
	default:
		return 0, ErrUnknownStrategy
	}
}

// Strategy is Local(PrivateKey) or Remote(Remote.KeyID). Only the field
// matching Kind is read.
type Strategy struct {
	Kind       StrategyKind
	PrivateKey string
	Remote     RemoteConfig
}

// NewSigner builds the signer for s. The returned closer releases the
// remote connection and is never nil.
func NewSigner(ctx context.Context, s Strategy) (Signer, func() error, error) {
	switch s.Kind {
	case StrategyLocal:
		signer, err := NewLocalSignerFromHex(s.PrivateKey)
		if err != nil {
			return nil, nil, err
		}
		logger.WithField("address", signer.Address().Hex()).Info("using local signer")
		return signer, func() error { return nil }, nil
	case StrategyRemote:
		signer, conn, err := DialRemoteSigner(s.Remote)
		if err != nil {
			return nil, nil, err
		}
		logger.WithFields(logger.Fields{
			"server":  s.Remote.ServerAddress,
			"keyID":   s.Remote.KeyID,
			"address": signer.Address().Hex(),
		}).Info("using remote signer")
		return signer, conn.Close, nil
	default:
		return nil, nil, ErrUnknownStrategy
	}
}
