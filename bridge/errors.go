package bridge

import (
	"errors"
	"fmt"
)

// Revert reasons of the bridge and its companion contracts.
var (
	ErrZeroRecipient            = errors.New("Invalid destination address")
	ErrZeroAmount               = errors.New("Invalid order amount")
	ErrUsedNonce                = errors.New("Invalid nonce")
	ErrUnexpectedRecipientChain = errors.New("Invalid chain ID")
	ErrSrcTokenMismatch         = errors.New("SRC token and DST token must be a valid pair")
	ErrTokensNotBridged         = errors.New("Invalid from address; not registered in the bridge")
	ErrInvalidSignature         = errors.New("Invalid signature")
	ErrInsufficientFeeDeposit   = errors.New("Insufficient fee deposit")
	ErrInvalidFromToken         = errors.New("From address must not be BFT bridge address")
	ErrWrapperAlreadyExists     = errors.New("Wrapper already exist")
	ErrInvalidBaseToken         = errors.New("Invalid base token id")
	ErrInvalidOrdersEncoding    = errors.New("Incorrect mint orders data encoding")
	ErrOrderIndexOutOfRange     = errors.New("Invalid order index")
	ErrNotWrappedSide           = errors.New("Only wrapped side can deploy tokens")

	ErrNotOwner              = errors.New("Ownable: caller is not the owner")
	ErrInsufficientBalance   = errors.New("ERC20: transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("ERC20: insufficient allowance")
	ErrUnknownToken          = errors.New("token contract does not exist")
	ErrNotCharger            = errors.New("Sender is not allowed to charge fee")
	ErrFeeInsufficient       = errors.New("Insufficient balance to pay fee")
)

// RevertError is returned by every state changing call that was rolled back.
// The wrapped reason can be matched with errors.Is.
type RevertError struct {
	Reason error
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("execution reverted: %v", e.Reason)
}

func (e *RevertError) Unwrap() error {
	return e.Reason
}

func revert(reason error) error {
	return &RevertError{Reason: reason}
}

// IsRevert reports whether err is a contract revert.
func IsRevert(err error) bool {
	var re *RevertError
	return errors.As(err, &re)
}
