// Package etherman talks to the bridge contract on the destination chain.
package etherman

import (
	"context"
	"errors"
	"math/big"

	"github.com/TEENet-io/mintburn-bridge/bridge"
	"github.com/TEENet-io/mintburn-bridge/order"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

var (
	ErrReverted       = errors.New("transaction reverted")
	ErrUnknownEvent   = errors.New("unknown bridge event")
	ErrInvalidFilter  = errors.New("invalid block range")
	ErrRPCUnavailable = errors.New("destination chain rpc unavailable")
)

const (
	ReceiptStatusFailed     uint64 = 0
	ReceiptStatusSuccessful uint64 = 1
)

type Receipt struct {
	TxHash      ethcommon.Hash
	BlockNumber uint64
	Status      uint64
	// per order result of a batch, aligned with the submitted orders
	BatchResults []bridge.BatchMintErrorCode
}

// Filter selects the blocks [From, To].
type Filter struct {
	From uint64
	To   uint64
}

// Client is what the orchestrator needs from the destination chain. Reverts
// are reported as errors matching ErrReverted.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)

	SubmitMint(ctx context.Context, signed order.SignedOrder) (*Receipt, error)
	SubmitBatchMint(ctx context.Context, signed *order.SignedOrders, indices []uint32) (*Receipt, error)

	IsNonceUsed(ctx context.Context, senderID order.Id256, nonce uint32) (bool, error)
	GetWrappedToken(ctx context.Context, baseID order.Id256) (ethcommon.Address, error)

	GetEvents(ctx context.Context, filter Filter) ([]bridge.Log, error)
}
