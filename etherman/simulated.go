package etherman

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/TEENet-io/mintburn-bridge/bridge"
	"github.com/TEENet-io/mintburn-bridge/order"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// SimulatedClient serves the Client interface from an in-process bridge, with
// the minter as sender of every submitted call.
type SimulatedClient struct {
	bridge *bridge.Bridge
	minter ethcommon.Address

	mu       sync.Mutex
	gasPrice *big.Int
	failures int
}

func NewSimulatedClient(b *bridge.Bridge, minter ethcommon.Address, gasPrice *big.Int) *SimulatedClient {
	if gasPrice == nil {
		gasPrice = big.NewInt(1)
	}
	return &SimulatedClient{bridge: b, minter: minter, gasPrice: gasPrice}
}

func (s *SimulatedClient) Bridge() *bridge.Bridge {
	return s.bridge
}

func (s *SimulatedClient) SetGasPrice(p *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gasPrice = new(big.Int).Set(p)
}

// FailNext makes the next n calls fail as if the node were unreachable.
func (s *SimulatedClient) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
}

func (s *SimulatedClient) unavailable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return fmt.Errorf("%w: simulated outage", ErrRPCUnavailable)
	}
	return nil
}

func (s *SimulatedClient) opts() bridge.CallOpts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bridge.CallOpts{Sender: s.minter, GasPrice: new(big.Int).Set(s.gasPrice)}
}

func (s *SimulatedClient) ChainID(context.Context) (*big.Int, error) {
	if err := s.unavailable(); err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(uint64(s.bridge.Config().ChainID)), nil
}

func (s *SimulatedClient) GasPrice(context.Context) (*big.Int, error) {
	if err := s.unavailable(); err != nil {
		return nil, err
	}
	return s.opts().GasPrice, nil
}

func (s *SimulatedClient) BlockNumber(context.Context) (uint64, error) {
	if err := s.unavailable(); err != nil {
		return 0, err
	}
	return s.bridge.BlockNumber(), nil
}

func (s *SimulatedClient) receipt() *Receipt {
	return &Receipt{
		TxHash:      s.bridge.LastTxHash(),
		BlockNumber: s.bridge.BlockNumber(),
		Status:      ReceiptStatusSuccessful,
	}
}

func (s *SimulatedClient) SubmitMint(_ context.Context, signed order.SignedOrder) (*Receipt, error) {
	if err := s.unavailable(); err != nil {
		return nil, err
	}
	if _, err := s.bridge.Mint(s.opts(), signed); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReverted, err)
	}
	return s.receipt(), nil
}

func (s *SimulatedClient) SubmitBatchMint(_ context.Context, signed *order.SignedOrders, indices []uint32) (*Receipt, error) {
	if err := s.unavailable(); err != nil {
		return nil, err
	}
	codes, err := s.bridge.BatchMint(s.opts(), signed.Orders, signed.Signature, indices)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReverted, err)
	}
	res := s.receipt()
	res.BatchResults = codes
	return res, nil
}

func (s *SimulatedClient) IsNonceUsed(_ context.Context, senderID order.Id256, nonce uint32) (bool, error) {
	if err := s.unavailable(); err != nil {
		return false, err
	}
	return s.bridge.IsNonceUsed(senderID, nonce), nil
}

func (s *SimulatedClient) GetWrappedToken(_ context.Context, baseID order.Id256) (ethcommon.Address, error) {
	if err := s.unavailable(); err != nil {
		return ethcommon.Address{}, err
	}
	return s.bridge.GetWrappedToken(baseID), nil
}

func (s *SimulatedClient) GetEvents(_ context.Context, filter Filter) ([]bridge.Log, error) {
	if filter.To < filter.From {
		return nil, ErrInvalidFilter
	}
	if err := s.unavailable(); err != nil {
		return nil, err
	}
	return s.bridge.Events(filter.From, filter.To), nil
}
