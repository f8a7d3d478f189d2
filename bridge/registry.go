package bridge

import (
	"github.com/TEENet-io/mintburn-bridge/order"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// TokenPairRegistry is the bijective map between base token ids and wrapped
// token addresses. A pair is written once and never changes.
type TokenPairRegistry struct {
	baseToWrapped map[order.Id256]ethcommon.Address
	wrappedToBase map[ethcommon.Address]order.Id256
}

func NewTokenPairRegistry() *TokenPairRegistry {
	return &TokenPairRegistry{
		baseToWrapped: make(map[order.Id256]ethcommon.Address),
		wrappedToBase: make(map[ethcommon.Address]order.Id256),
	}
}

func (r *TokenPairRegistry) CanRegister(baseID order.Id256, wrapped ethcommon.Address) error {
	if baseID.IsZero() {
		return ErrInvalidBaseToken
	}
	if _, ok := r.baseToWrapped[baseID]; ok {
		return ErrWrapperAlreadyExists
	}
	if _, ok := r.wrappedToBase[wrapped]; ok {
		return ErrWrapperAlreadyExists
	}
	return nil
}

func (r *TokenPairRegistry) Register(baseID order.Id256, wrapped ethcommon.Address) error {
	if err := r.CanRegister(baseID, wrapped); err != nil {
		return err
	}
	r.baseToWrapped[baseID] = wrapped
	r.wrappedToBase[wrapped] = baseID
	return nil
}

// GetWrappedToken returns the zero address for an unknown base id.
func (r *TokenPairRegistry) GetWrappedToken(baseID order.Id256) ethcommon.Address {
	return r.baseToWrapped[baseID]
}

// GetBaseToken returns the zero id for an unknown wrapped token.
func (r *TokenPairRegistry) GetBaseToken(wrapped ethcommon.Address) order.Id256 {
	return r.wrappedToBase[wrapped]
}

func (r *TokenPairRegistry) IsWrapped(addr ethcommon.Address) bool {
	_, ok := r.wrappedToBase[addr]
	return ok
}
